package fs

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// FindProjectRoot returns the top level of the git work tree containing dir,
// or dir itself when it is not inside one.
func FindProjectRoot(ctx context.Context, dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("could not resolve %s: %w", dir, err)
	}
	cmd := exec.CommandContext(ctx, "git", "-C", abs, "rev-parse", "--show-toplevel")
	output, err := cmd.Output()
	if err != nil {
		return abs, nil
	}
	return strings.TrimSpace(string(output)), nil
}

// PathResolver maps paths written in replies to files under the project root.
type PathResolver struct {
	root string
}

// NewPathResolver creates a resolver for root.
func NewPathResolver(root string) (*PathResolver, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("invalid project root %q: %w", root, err)
	}
	return &PathResolver{root: abs}, nil
}

// Root returns the absolute project root.
func (r *PathResolver) Root() string {
	return r.root
}

// Resolve returns the absolute path of a root-relative path.
func (r *PathResolver) Resolve(relativePath string) string {
	if filepath.IsAbs(relativePath) {
		return filepath.Clean(relativePath)
	}
	return filepath.Join(r.root, filepath.FromSlash(relativePath))
}

// ResolveExisting returns the absolute path only if the file exists.
func (r *PathResolver) ResolveExisting(relativePath string) string {
	absPath := r.Resolve(relativePath)
	if _, err := os.Stat(absPath); err == nil {
		return absPath
	}
	return ""
}

// Rel returns path relative to the root with forward slashes, or path
// unchanged when it lies outside.
func (r *PathResolver) Rel(path string) string {
	rel, err := filepath.Rel(r.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}

// RelAll applies Rel to every path.
func (r *PathResolver) RelAll(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = r.Rel(p)
	}
	return out
}

// GetFileSHA256 returns the hex SHA-256 of a file's content.
func GetFileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashBytes returns the hex SHA-256 of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ReadLines reads a file split on newlines. A file ending in a newline has
// a final empty element, so joining the lines restores the exact content.
// A missing file reads as a single empty line and exists is false.
func ReadLines(path string) (lines []string, exists bool, err error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return []string{""}, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return SplitLines(data), true, nil
}

// SplitLines splits content on "\n".
func SplitLines(data []byte) []string {
	return strings.Split(string(data), "\n")
}

// JoinLines is the inverse of SplitLines.
func JoinLines(lines []string) []byte {
	return []byte(strings.Join(lines, "\n"))
}

// IsEmpty reports whether dir has no entries.
func IsEmpty(dir string) (bool, error) {
	f, err := os.Open(dir)
	if err != nil {
		return false, err
	}
	defer f.Close()

	_, err = f.Readdirnames(1)
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	return false, err
}

// WriteFileAtomic replaces path with data through a temporary file in the
// same directory. Missing parent directories are created.
func WriteFileAtomic(path string, data []byte) error {
	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".rbe-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return fmt.Errorf("failed to set mode on %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
