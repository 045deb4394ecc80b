package blobstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrOutsideRoot is returned when a path resolves outside the attachment root.
var ErrOutsideRoot = errors.New("path is outside the attachment root")

const maxExtensionLength = 10

// Guard generates blob names and checks that paths stay within the root.
type Guard struct {
	root string // absolute, symlinks resolved
}

// NewGuard creates root if needed and returns a guard for it.
func NewGuard(root string) (*Guard, error) {
	if root == "" {
		return nil, errors.New("attachment root cannot be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create attachment root: %w", err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve attachment root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve attachment root: %w", err)
	}
	return &Guard{root: resolved}, nil
}

// Root returns the canonical attachment root.
func (g *Guard) Root() string {
	return g.root
}

// NewName returns a fresh blob file name for taskID. Only a short
// alphanumeric extension survives from displayName.
func (g *Guard) NewName(taskID, displayName string) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	return sanitizeComponent(taskID) + "_" + token + sanitizeExtension(displayName)
}

// PathFor returns the absolute path of name inside the root. name must be a
// single path element.
func (g *Guard) PathFor(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: invalid blob name", ErrOutsideRoot)
	}
	return g.Resolve(filepath.Join(g.root, name))
}

// Resolve canonicalizes path and verifies it lies strictly beneath the root.
// Symlinks are followed for existing paths; for a path that does not exist
// yet, its parent directory is resolved instead.
func (g *Guard) Resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		parent, perr := filepath.EvalSymlinks(filepath.Dir(abs))
		if perr != nil {
			return "", fmt.Errorf("%w: parent directory does not resolve", ErrOutsideRoot)
		}
		resolved = filepath.Join(parent, filepath.Base(abs))
	}

	if !g.within(resolved) {
		return "", ErrOutsideRoot
	}
	return resolved, nil
}

func (g *Guard) within(path string) bool {
	return strings.HasPrefix(path, g.root+string(filepath.Separator))
}

func sanitizeComponent(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "task"
	}
	return b.String()
}

func sanitizeExtension(displayName string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(strings.ReplaceAll(displayName, `\`, "/"))))
	if len(ext) < 2 || len(ext) > maxExtensionLength+1 {
		return ""
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return ""
		}
	}
	return ext
}
