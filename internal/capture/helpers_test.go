package capture

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/skypro1111/ws-audio-capture/internal/audio"
	"github.com/skypro1111/ws-audio-capture/internal/metrics"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestMetrics() *metrics.Metrics {
	return metrics.NewMetrics(prometheus.NewRegistry())
}

func testConfig(interval time.Duration) Config {
	cfg := DefaultConfig()
	cfg.FlushInterval = interval
	return cfg
}

// memorySink keeps recordings in memory and can be told to fail
type memorySink struct {
	mu         sync.Mutex
	recordings [][]byte
	fail       bool
}

var errSinkUnavailable = errors.New("storage unavailable")

func (s *memorySink) WriteRecording(_ context.Context, _ time.Time, f audio.Format, pcm []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail {
		return "", errSinkUnavailable
	}

	wav, err := audio.EncodeWAV(pcm, f)
	if err != nil {
		return "", err
	}
	s.recordings = append(s.recordings, wav)
	return "memory", nil
}

func (s *memorySink) setFail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

func (s *memorySink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recordings)
}

func (s *memorySink) payloads(t *testing.T) [][]byte {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([][]byte, 0, len(s.recordings))
	for _, wav := range s.recordings {
		_, pcm, err := audio.DecodeWAV(wav)
		require.NoError(t, err)
		out = append(out, pcm)
	}
	return out
}

// wavFiles returns the recordings in dir sorted by name
func wavFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "audio_*.wav"))
	require.NoError(t, err)
	sort.Strings(matches)
	return matches
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func pattern(n int, seed byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = seed + byte(i%251)
	}
	return out
}
