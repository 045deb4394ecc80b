package blobstore

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wavHeader is the start of a canonical RIFF/WAVE file.
var wavHeader = append([]byte("RIFF\x24\x00\x00\x00WAVEfmt "), make([]byte, 32)...)

func newTestStore(t *testing.T, maxBytes int64) *Store {
	t.Helper()
	return New(newTestGuard(t), maxBytes)
}

func TestStore_WriteSniffsContentType(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, 1<<20)

	blob, err := s.Write(context.Background(), "t1", "recording.txt", bytes.NewReader(wavHeader))
	require.NoError(t, err)

	assert.Equal(t, "audio/wav", blob.ContentType, "content type comes from bytes, not the extension")
	assert.Equal(t, int64(len(wavHeader)), blob.Size)
	assert.True(t, strings.HasSuffix(blob.Path, ".txt"))

	data, err := os.ReadFile(blob.Path)
	require.NoError(t, err)
	assert.Equal(t, wavHeader, data)
}

func TestStore_WriteLargeContent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, 1<<20)
	content := bytes.Repeat([]byte("abcdefgh"), 10_000)

	blob, err := s.Write(context.Background(), "t1", "big.bin", bytes.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), blob.Size)

	data, err := os.ReadFile(blob.Path)
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func TestStore_WriteTooLarge(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, 10)

	_, err := s.Write(context.Background(), "t1", "a.wav", strings.NewReader("01234567890"))
	assert.ErrorIs(t, err, ErrTooLarge)

	entries, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries, "oversized blob is removed")
}

func TestStore_WriteExactlyAtLimit(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, 10)
	blob, err := s.Write(context.Background(), "t1", "a.wav", strings.NewReader("0123456789"))
	require.NoError(t, err)
	assert.Equal(t, int64(10), blob.Size)
}

func TestStore_WriteCanceled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestStore(t, 10).Write(ctx, "t1", "a.wav", strings.NewReader("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStore_RemoveAndStat(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, 1<<20)
	blob, err := s.Write(context.Background(), "t1", "a.wav", strings.NewReader("data"))
	require.NoError(t, err)

	resolved, info, err := s.Stat(blob.Path)
	require.NoError(t, err)
	assert.Equal(t, blob.Path, resolved)
	assert.Equal(t, int64(4), info.Size())

	require.NoError(t, s.Remove(blob.Path))
	assert.ErrorIs(t, s.Remove(blob.Path), ErrNotFound)

	_, _, err = s.Stat(blob.Path)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_RemoveOutsideRoot(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, 1<<20)
	victim := filepath.Join(t.TempDir(), "victim")
	require.NoError(t, os.WriteFile(victim, []byte("keep"), 0o600))

	assert.ErrorIs(t, s.Remove(victim), ErrOutsideRoot)
	assert.ErrorIs(t, s.Remove(filepath.Join(s.Guard().Root(), "..", "..", filepath.Base(victim))), ErrOutsideRoot)

	_, err := os.Stat(victim)
	assert.NoError(t, err, "file outside the root must survive")
}

func TestStore_List(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, 1<<20)
	ctx := context.Background()

	a, err := s.Write(ctx, "t1", "a.wav", strings.NewReader("a"))
	require.NoError(t, err)
	b, err := s.Write(ctx, "t2", "b.wav", strings.NewReader("b"))
	require.NoError(t, err)
	require.NoError(t, os.Mkdir(filepath.Join(s.Guard().Root(), "subdir"), 0o755))

	entries, err := s.List(ctx)
	require.NoError(t, err)
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	assert.ElementsMatch(t, []string{a.Path, b.Path}, paths)
}
