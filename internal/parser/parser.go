package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sokinpui/rbe/model"
)

const (
	fence        = "```"
	insertMarker = "//+"
	lineMarker   = "//"
)

var (
	// ErrUnterminatedFence is returned when a reply ends inside a code block.
	ErrUnterminatedFence = errors.New("unterminated code fence")

	errMissingMarker = errors.New("block does not start with a //path:line marker")
	errMissingPath   = errors.New("marker has no file path")
	errMissingLine   = errors.New("marker has no line number")
	errBadLine       = errors.New("marker line number is not an integer")
)

// MarkerError describes a code block whose marker line could not be used.
type MarkerError struct {
	Block  int    // 1-based ordinal of the block in the reply
	Line   int    // 1-based reply line of the marker
	Marker string // marker text as written
	Err    error
}

func (e *MarkerError) Error() string {
	return fmt.Sprintf("block %d (line %d): invalid marker %q: %v", e.Block, e.Line, e.Marker, e.Err)
}

func (e *MarkerError) Unwrap() error { return e.Err }

// Result holds the edits of a reply in document order together with the
// blocks that had to be skipped.
type Result struct {
	Edits    []model.EditInstruction
	Failures []*MarkerError
}

// Err joins every marker failure, or returns nil when all blocks parsed.
func (r Result) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// ParseEdits reads every fenced block of a reply. The line after an opening
// fence must be a marker, either //path:line (replace, 1-based) or
// //+path:line (insert before the 0-based line). Blocks with a bad marker
// are recorded in Result.Failures and skipped; a fence left open fails the
// whole parse.
func ParseEdits(text string) (Result, error) {
	var res Result

	lines := strings.Split(text, "\n")
	var (
		current  *model.EditInstruction
		inBlock  bool
		openedAt int
		ordinal  int
	)

	for i := 0; i < len(lines); i++ {
		line := strings.TrimSuffix(lines[i], "\r")

		if isFence(line) {
			if inBlock {
				if current != nil {
					res.Edits = append(res.Edits, *current)
				}
				current = nil
				inBlock = false
				continue
			}

			inBlock = true
			openedAt = i + 1
			ordinal++

			if i+1 >= len(lines) {
				break
			}
			i++
			marker := strings.TrimSuffix(lines[i], "\r")
			edit, err := parseMarker(marker)
			if err != nil {
				res.Failures = append(res.Failures, &MarkerError{
					Block:  ordinal,
					Line:   i + 1,
					Marker: marker,
					Err:    err,
				})
				// A fence in place of the marker closes the block right away.
				if isFence(marker) {
					inBlock = false
				}
				continue
			}
			current = &edit
			continue
		}

		if current != nil {
			current.Content = append(current.Content, line)
		}
	}

	if inBlock {
		return Result{}, fmt.Errorf("%w: block opened at line %d", ErrUnterminatedFence, openedAt)
	}
	return res, nil
}

// isFence reports whether line is ``` optionally followed by a language tag.
func isFence(line string) bool {
	if !strings.HasPrefix(line, fence) {
		return false
	}
	tag := strings.TrimRight(line[len(fence):], " \t")
	return !strings.ContainsAny(tag, " \t`")
}

func parseMarker(marker string) (model.EditInstruction, error) {
	marker = strings.TrimSpace(marker)

	var edit model.EditInstruction
	switch {
	case strings.HasPrefix(marker, insertMarker):
		edit.Kind = model.Insert
		marker = marker[len(insertMarker):]
	case strings.HasPrefix(marker, lineMarker):
		edit.Kind = model.Replace
		marker = marker[len(lineMarker):]
	default:
		return edit, errMissingMarker
	}

	path, lineText, ok := strings.Cut(marker, ":")
	if !ok {
		return edit, errMissingLine
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return edit, errMissingPath
	}
	lineText = strings.TrimSpace(lineText)
	if lineText == "" {
		return edit, errMissingLine
	}
	n, err := strconv.Atoi(lineText)
	if err != nil {
		return edit, fmt.Errorf("%w: %q", errBadLine, lineText)
	}

	edit.File = path
	edit.Line = n
	return edit, nil
}
