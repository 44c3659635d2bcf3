package capture

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skypro1111/ws-audio-capture/internal/audio"
)

func TestFileSinkWritesHeaderAndPayload(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir)
	require.NoError(t, err)

	at := time.UnixMilli(1700000000123)
	pcm := pattern(32000, 1)

	path, err := sink.WriteRecording(context.Background(), at, audio.DefaultFormat, pcm)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "audio_1700000000123.wav"), path)

	data := readFile(t, path)
	require.Len(t, data, 32044)
	assert.Equal(t, uint32(32036), binary.LittleEndian.Uint32(data[4:8]))
	assert.Equal(t, uint32(32000), binary.LittleEndian.Uint32(data[40:44]))
	assert.Equal(t, pcm, data[audio.HeaderSize:])
}

func TestFileSinkNamesStrictlyIncrease(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir)
	require.NoError(t, err)

	at := time.UnixMilli(1700000000000)
	var paths []string
	for i := 0; i < 3; i++ {
		path, err := sink.WriteRecording(context.Background(), at, audio.DefaultFormat, []byte{byte(i), 0})
		require.NoError(t, err)
		paths = append(paths, filepath.Base(path))
	}

	assert.Equal(t, []string{
		"audio_1700000000000.wav",
		"audio_1700000000001.wav",
		"audio_1700000000002.wav",
	}, paths)

	// A clock step backwards still yields a fresh name
	path, err := sink.WriteRecording(context.Background(), at.Add(-time.Hour), audio.DefaultFormat, []byte{9, 9})
	require.NoError(t, err)
	assert.Equal(t, "audio_1700000000003.wav", filepath.Base(path))
}

func TestFileSinkNeverTruncatesExistingFile(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "audio_1700000000000.wav")
	require.NoError(t, os.WriteFile(existing, []byte("keep me"), 0o644))

	sink, err := NewFileSink(dir)
	require.NoError(t, err)

	path, err := sink.WriteRecording(context.Background(), time.UnixMilli(1700000000000), audio.DefaultFormat, []byte{1, 2})
	require.NoError(t, err)
	assert.Equal(t, "audio_1700000000001.wav", filepath.Base(path))
	assert.Equal(t, []byte("keep me"), readFile(t, existing))
}

func TestFileSinkCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "recordings")
	sink, err := NewFileSink(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, sink.Dir())

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestFileSinkUnavailableDirectory(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir)
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(dir))

	_, err = sink.WriteRecording(context.Background(), time.Now(), audio.DefaultFormat, []byte{1, 2})
	assert.Error(t, err)
}

func TestFileSinkHonoursCancelledContext(t *testing.T) {
	sink, err := NewFileSink(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = sink.WriteRecording(ctx, time.Now(), audio.DefaultFormat, []byte{1, 2})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, wavFiles(t, sink.Dir()))
}

func TestFileSinkList(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir)
	require.NoError(t, err)

	_, err = sink.WriteRecording(context.Background(), time.UnixMilli(2000), audio.DefaultFormat, make([]byte, 32000))
	require.NoError(t, err)
	_, err = sink.WriteRecording(context.Background(), time.UnixMilli(1000), audio.DefaultFormat, make([]byte, 16000))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	recordings, err := sink.List()
	require.NoError(t, err)
	require.Len(t, recordings, 2)

	assert.Equal(t, "audio_2000.wav", recordings[0].Name)
	assert.Equal(t, int64(32044), recordings[0].Size)
	assert.InDelta(t, 1.0, recordings[0].Duration, 0.0001)

	assert.Equal(t, "audio_2001.wav", recordings[1].Name)
	assert.InDelta(t, 0.5, recordings[1].Duration, 0.0001)
}
