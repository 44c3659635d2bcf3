package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/skypro1111/ws-audio-capture/internal/audio"
)

const (
	recordingPrefix = "audio_"
	recordingSuffix = ".wav"

	// maxNameAttempts bounds the search for a free file name when a
	// recording from an earlier run already occupies a timestamp
	maxNameAttempts = 1000
)

// Sink persists one flushed payload as a self-contained recording
type Sink interface {
	WriteRecording(ctx context.Context, at time.Time, f audio.Format, pcm []byte) (string, error)
}

// Recording describes a WAV file produced by a FileSink
type Recording struct {
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	Size       int64     `json:"size_bytes"`
	CapturedAt time.Time `json:"captured_at"`
	Duration   float64   `json:"duration_seconds"`
}

// FileSink writes audio_<unix-millis>.wav files into a directory.
// File names issued by one FileSink are strictly increasing, and existing
// files are never truncated.
type FileSink struct {
	dir string

	lastMillis int64
	mu         sync.Mutex
}

// NewFileSink creates the output directory if needed
func NewFileSink(dir string) (*FileSink, error) {
	if dir == "" {
		dir = "."
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	return &FileSink{dir: dir}, nil
}

// Dir returns the output directory
func (s *FileSink) Dir() string {
	return s.dir
}

// nextMillis returns a timestamp strictly greater than any previously issued one
func (s *FileSink) nextMillis(at time.Time) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms := at.UnixMilli()
	if ms <= s.lastMillis {
		ms = s.lastMillis + 1
	}
	s.lastMillis = ms
	return ms
}

// WriteRecording writes header then payload as one new file named by the flush time
func (s *FileSink) WriteRecording(ctx context.Context, at time.Time, f audio.Format, pcm []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	header, err := audio.BuildHeader(len(pcm), f)
	if err != nil {
		return "", fmt.Errorf("failed to build WAV header: %w", err)
	}

	file, path, err := s.create(at)
	if err != nil {
		return "", err
	}

	if _, err := file.Write(header); err != nil {
		file.Close()
		return path, fmt.Errorf("failed to write WAV header to %s: %w", path, err)
	}

	if _, err := file.Write(pcm); err != nil {
		file.Close()
		return path, fmt.Errorf("failed to write audio data to %s: %w", path, err)
	}

	if err := file.Close(); err != nil {
		return path, fmt.Errorf("failed to close %s: %w", path, err)
	}

	return path, nil
}

// create opens a file that did not exist before
func (s *FileSink) create(at time.Time) (*os.File, string, error) {
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		path := filepath.Join(s.dir, recordingName(s.nextMillis(at)))

		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return file, path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, path, fmt.Errorf("failed to create %s: %w", path, err)
		}
	}

	return nil, "", fmt.Errorf("no free recording name in %s after %d attempts", s.dir, maxNameAttempts)
}

// List returns the recordings in the output directory, oldest first
func (s *FileSink) List() ([]Recording, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read output directory %s: %w", s.dir, err)
	}

	recordings := make([]Recording, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ms, ok := parseRecordingName(entry.Name())
		if !ok {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		rec := Recording{
			Name:       entry.Name(),
			Path:       filepath.Join(s.dir, entry.Name()),
			Size:       info.Size(),
			CapturedAt: time.UnixMilli(ms).UTC(),
		}
		if wavInfo, err := readWAVInfo(rec.Path); err == nil {
			rec.Duration = wavInfo.Duration
		}

		recordings = append(recordings, rec)
	}

	sort.Slice(recordings, func(i, j int) bool {
		return recordings[i].CapturedAt.Before(recordings[j].CapturedAt)
	})

	return recordings, nil
}

func readWAVInfo(path string) (*audio.WAVInfo, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	header := make([]byte, audio.HeaderSize)
	if _, err := io.ReadFull(file, header); err != nil {
		return nil, err
	}

	return audio.GetWAVInfo(header)
}

func recordingName(ms int64) string {
	return recordingPrefix + strconv.FormatInt(ms, 10) + recordingSuffix
}

func parseRecordingName(name string) (int64, bool) {
	if !strings.HasPrefix(name, recordingPrefix) || !strings.HasSuffix(name, recordingSuffix) {
		return 0, false
	}

	ms, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(name, recordingPrefix), recordingSuffix), 10, 64)
	if err != nil {
		return 0, false
	}

	return ms, true
}
