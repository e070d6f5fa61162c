package fs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sokinpui/rbe/internal/logging"
	"github.com/sokinpui/rbe/internal/patcher"
	"github.com/sokinpui/rbe/model"
)

// Writer applies mutations directly to files on disk. Every change is
// computed in memory first; a failed write restores the files already
// written, so a set of mutations lands completely or not at all.
type Writer struct{}

// NewWriter creates a disk writer.
func NewWriter() *Writer {
	return &Writer{}
}

type pendingWrite struct {
	path    string
	content []byte
	remove  bool
	// State before the write, for rollback.
	previous []byte
	existed  bool
}

// Apply writes all mutations and returns the paths whose content changed.
func (w *Writer) Apply(ctx context.Context, muts []model.Mutation) ([]string, error) {
	if err := patcher.CheckOverlaps(muts); err != nil {
		return nil, err
	}

	paths, groups := patcher.GroupByFile(muts)
	var writes []pendingWrite
	for _, path := range paths {
		lines, exists, err := ReadLines(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		updated, err := patcher.ApplyAll(lines, groups[path])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}

		previous := JoinLines(lines)
		content := JoinLines(updated)
		if exists && bytes.Equal(previous, content) {
			continue
		}
		if !exists {
			previous = nil
		}
		writes = append(writes, pendingWrite{
			path:     path,
			content:  content,
			previous: previous,
			existed:  exists,
		})
	}
	return w.commit(ctx, writes)
}

// Restore puts files back to recorded snapshots as one unit.
func (w *Writer) Restore(ctx context.Context, snapshots []model.Snapshot) ([]string, error) {
	var writes []pendingWrite
	for _, s := range snapshots {
		previous, err := os.ReadFile(s.Path)
		existed := err == nil
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", s.Path, err)
		}
		writes = append(writes, pendingWrite{
			path:     s.Path,
			content:  s.Content,
			remove:   s.Missing,
			previous: previous,
			existed:  existed,
		})
	}
	return w.commit(ctx, writes)
}

// Close is a no-op; it lets Writer stand in for editors that hold a
// connection.
func (w *Writer) Close() error {
	return nil
}

func (w *Writer) commit(ctx context.Context, writes []pendingWrite) ([]string, error) {
	logger := logging.FromContext(ctx)

	var done []pendingWrite
	for _, pw := range writes {
		if err := ctx.Err(); err != nil {
			return nil, w.rollback(ctx, done, err)
		}

		var err error
		if pw.remove {
			err = RemoveFile(pw.path)
		} else {
			err = WriteFileAtomic(pw.path, pw.content)
		}
		if err != nil {
			return nil, w.rollback(ctx, done, err)
		}
		logger.Debug("wrote file", logging.FieldPath, pw.path)
		done = append(done, pw)
	}

	written := make([]string, len(done))
	for i, pw := range done {
		written[i] = pw.path
	}
	return written, nil
}

func (w *Writer) rollback(ctx context.Context, done []pendingWrite, cause error) error {
	logger := logging.FromContext(ctx)
	errs := []error{cause}
	for i := len(done) - 1; i >= 0; i-- {
		pw := done[i]
		var err error
		if pw.existed {
			err = WriteFileAtomic(pw.path, pw.previous)
		} else {
			err = RemoveFile(pw.path)
		}
		if err != nil {
			logger.Error("rollback failed", logging.FieldPath, pw.path, logging.FieldError, err)
			errs = append(errs, fmt.Errorf("rollback of %s: %w", pw.path, err))
		}
	}
	return errors.Join(errs...)
}

// RemoveFile deletes path and its parent directory if that became empty.
func RemoveFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	parent := filepath.Dir(path)
	if empty, _ := IsEmpty(parent); empty {
		os.Remove(parent)
	}
	return nil
}
