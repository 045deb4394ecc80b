package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

var (
	// ErrTooLarge is returned when content exceeds the configured ceiling.
	ErrTooLarge = errors.New("blob exceeds maximum size")

	// ErrNotFound is returned when a blob is absent on disk.
	ErrNotFound = errors.New("blob not found")
)

// sniffLen is how many leading bytes are used for content type detection.
const sniffLen = 3072

// Blob describes stored content.
type Blob struct {
	Path        string
	Size        int64
	ContentType string
}

// Entry is a blob found when listing the root.
type Entry struct {
	Path    string
	Name    string
	ModTime time.Time
}

// Store reads and writes blobs beneath a Guard's root.
type Store struct {
	guard    *Guard
	maxBytes int64
}

// New returns a Store that rejects content larger than maxBytes.
func New(guard *Guard, maxBytes int64) *Store {
	return &Store{guard: guard, maxBytes: maxBytes}
}

// Guard returns the store's path guard.
func (s *Store) Guard() *Guard { return s.guard }

// MaxBytes returns the per-blob size ceiling.
func (s *Store) MaxBytes() int64 { return s.maxBytes }

// Write stores r under a fresh name for taskID. The content type is sniffed
// from the leading bytes. Content over the ceiling is removed and reported
// as ErrTooLarge.
func (s *Store) Write(ctx context.Context, taskID, displayName string, r io.Reader) (*Blob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.guard.PathFor(s.guard.NewName(taskID, displayName))
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create blob: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = f.Close()
			_ = os.Remove(path)
		}
	}()

	limited := io.LimitReader(r, s.maxBytes+1)
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(limited, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]

	if _, err := f.Write(head); err != nil {
		return nil, fmt.Errorf("write blob: %w", err)
	}
	rest, err := io.Copy(f, limited)
	if err != nil {
		return nil, fmt.Errorf("write blob: %w", err)
	}
	size := int64(n) + rest
	if size > s.maxBytes {
		return nil, ErrTooLarge
	}
	if err := f.Sync(); err != nil {
		return nil, fmt.Errorf("sync blob: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close blob: %w", err)
	}
	committed = true

	return &Blob{
		Path:        path,
		Size:        size,
		ContentType: mimetype.Detect(head).String(),
	}, nil
}

// Remove deletes the blob at path. It returns ErrNotFound when the blob is
// already absent and ErrOutsideRoot when path escapes the root.
func (s *Store) Remove(path string) error {
	resolved, err := s.guard.Resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(resolved); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("remove blob: %w", err)
	}
	return nil
}

// Stat verifies that the blob at path exists inside the root and returns its
// canonical path.
func (s *Store) Stat(path string) (string, os.FileInfo, error) {
	resolved, err := s.guard.Resolve(path)
	if err != nil {
		return "", nil, err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil, ErrNotFound
		}
		return "", nil, err
	}
	if !info.Mode().IsRegular() {
		return "", nil, ErrNotFound
	}
	return resolved, info, nil
}

// List returns the regular files directly under the root.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.guard.Root())
	if err != nil {
		return nil, fmt.Errorf("list attachment root: %w", err)
	}
	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !de.Type().IsRegular() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			Path:    filepath.Join(s.guard.Root(), de.Name()),
			Name:    de.Name(),
			ModTime: info.ModTime(),
		})
	}
	return entries, nil
}
