package patcher

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sokinpui/rbe/model"
)

// ErrOutOfRange is returned when a mutation starts beyond the end of a file.
var ErrOutOfRange = errors.New("mutation out of range")

// ApplyLines applies one mutation to the lines of a file and returns the new
// lines. lines is not modified. A replace reaching past the last line is
// clamped to it and keeps the final newline; a mutation starting past the end
// is an error. A replace of line 1 of an empty file fills it.
func ApplyLines(lines []string, m model.Mutation) ([]string, error) {
	start, end, err := span(lines, m)
	if err != nil {
		return nil, err
	}

	repl := m.Replacement()
	out := make([]string, 0, len(lines)-(end-start)+len(repl))
	out = append(out, lines[:start]...)
	out = append(out, repl...)
	out = append(out, lines[end:]...)
	return out, nil
}

// ApplyAll applies mutations of a single file in application order.
func ApplyAll(lines []string, muts []model.Mutation) ([]string, error) {
	if err := CheckOverlaps(muts); err != nil {
		return nil, err
	}
	out := lines
	for _, m := range Order(muts) {
		var err error
		if out, err = ApplyLines(out, m); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// IsNoop reports whether applying m would leave lines unchanged.
func IsNoop(lines []string, m model.Mutation) bool {
	if m.Kind == model.Insert {
		return false
	}
	start, end, err := span(lines, m)
	if err != nil {
		return false
	}
	repl := m.Replacement()
	if end-start != len(repl) {
		return false
	}
	for i, l := range repl {
		if lines[start+i] != l {
			return false
		}
	}
	return true
}

// Preview returns the text around m before and after applying it, with up to
// context unchanged lines on each side.
func Preview(lines []string, m model.Mutation, context int) (before, after string, err error) {
	start, end, err := span(lines, m)
	if err != nil {
		return "", "", err
	}
	applied, err := ApplyLines(lines, m)
	if err != nil {
		return "", "", err
	}

	from := max(start-context, 0)
	before = strings.Join(lines[from:min(end+context, len(lines))], "\n")
	newEnd := start + len(m.Replacement())
	after = strings.Join(applied[from:min(newEnd+context, len(applied))], "\n")
	return before, after, nil
}

func span(lines []string, m model.Mutation) (start, end int, err error) {
	start, end = m.Start, m.End
	if start < 0 || end < start {
		return 0, 0, fmt.Errorf("%w: %s", ErrOutOfRange, m)
	}
	n := lineCount(lines)
	switch {
	case start == end && start > n:
		return 0, 0, fmt.Errorf("%w: %s has %d line(s), %s", ErrOutOfRange, m.File, n, m)
	case start < end && start >= max(n, 1):
		return 0, 0, fmt.Errorf("%w: %s has %d line(s), %s", ErrOutOfRange, m.File, n, m)
	}
	return start, min(end, n), nil
}

// lineCount is the number of lines of a file, not counting the empty element
// after its final newline.
func lineCount(lines []string) int {
	n := len(lines)
	if n > 0 && lines[n-1] == "" {
		n--
	}
	return n
}
