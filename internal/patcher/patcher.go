package patcher

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sokinpui/rbe/model"
)

var (
	// ErrOutsideRoot is returned for marker paths that resolve outside the
	// project root.
	ErrOutsideRoot = errors.New("path escapes project root")
	// ErrNegativeLine is returned when a marker line maps before the first line.
	ErrNegativeLine = errors.New("marker line is before the start of the file")
)

// InsertIndex converts an insert marker line to the 0-based line the content
// is placed before. Insert markers are already 0-based.
func InsertIndex(line int) int {
	return line
}

// ReplaceIndex converts a replace marker line (1-based) to the 0-based first
// replaced line.
func ReplaceIndex(line int) int {
	return line - 1
}

// Reconcile turns one edit instruction into a mutation of the file it names
// under root. An insert places its content, terminated by a newline, before
// line InsertIndex(in.Line). A replace overwrites as many lines as it carries,
// starting at ReplaceIndex(in.Line).
func Reconcile(root string, in model.EditInstruction) (model.Mutation, error) {
	path, err := resolve(root, in.File)
	if err != nil {
		return model.Mutation{}, err
	}

	m := model.Mutation{
		Kind:  in.Kind,
		File:  in.File,
		Path:  path,
		Lines: append([]string(nil), in.Content...),
	}

	switch in.Kind {
	case model.Insert:
		m.Start = InsertIndex(in.Line)
		m.End = m.Start
	case model.Replace:
		m.Start = ReplaceIndex(in.Line)
		m.End = m.Start + len(in.Content)
	default:
		return model.Mutation{}, fmt.Errorf("unknown edit kind %d for %s", in.Kind, in.File)
	}

	if m.Start < 0 {
		return model.Mutation{}, fmt.Errorf("%w: %s line %d", ErrNegativeLine, in.File, in.Line)
	}
	return m, nil
}

// ReconcileAll reconciles every instruction in order. All failures are
// reported together.
func ReconcileAll(root string, edits []model.EditInstruction) ([]model.Mutation, error) {
	muts := make([]model.Mutation, 0, len(edits))
	var errs []error
	for _, in := range edits {
		m, err := Reconcile(root, in)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		muts = append(muts, m)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return muts, nil
}

func resolve(root, file string) (string, error) {
	if root == "" {
		return "", errors.New("project root is not set")
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve project root: %w", err)
	}

	path := filepath.Join(absRoot, filepath.FromSlash(file))
	rel, err := filepath.Rel(absRoot, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, file)
	}
	if rel == "." {
		return "", fmt.Errorf("marker path %q names the project root", file)
	}
	return path, nil
}
