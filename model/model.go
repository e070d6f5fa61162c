package model

import (
	"fmt"
	"strings"
)

// DiffBlock is one changed file of a diff, carrying the content of its
// most recently parsed hunk.
type DiffBlock struct {
	OldPath     string
	NewPath     string
	AnchorLine  int // old-side start of the last hunk header, 1-based
	OldContent  []string
	NewContent  []string
	NewFile     bool
	DeletedFile bool
	Binary      bool
}

// EditKind tells whether an edit instruction inserts or replaces lines.
type EditKind int

const (
	Replace EditKind = iota
	Insert
)

func (k EditKind) String() string {
	switch k {
	case Insert:
		return "insert"
	case Replace:
		return "replace"
	default:
		return "unknown"
	}
}

// EditInstruction is the intent parsed from one fenced block of a reply.
// Line is kept exactly as written in the marker: 1-based for Replace,
// 0-based for Insert.
type EditInstruction struct {
	Kind    EditKind
	File    string
	Line    int
	Content []string
}

// Position is a 0-based line/character pair.
type Position struct {
	Line      int
	Character int
}

// Range is a span between two positions, 0-based.
type Range struct {
	Start Position
	End   Position
}

// MultiLine reports whether the range covers more than one line.
func (r Range) MultiLine() bool {
	return r.End.Line > r.Start.Line
}

// Contains reports whether o lies entirely inside r.
func (r Range) Contains(o Range) bool {
	return !o.Start.before(r.Start) && !r.End.before(o.End)
}

func (p Position) before(o Position) bool {
	if p.Line != o.Line {
		return p.Line < o.Line
	}
	return p.Character < o.Character
}

// Location is a range inside a file. File is relative to the project root.
type Location struct {
	File  string
	Range Range
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d-%d", l.File, l.Range.Start.Line+1, l.Range.End.Line+1)
}

// SelectionRange is one node of a selection-range chain, innermost first.
type SelectionRange struct {
	Range  Range
	Parent *SelectionRange
}

// Mutation is a concrete line-range change against one file.
// Start is the 0-based first line and End the 0-based exclusive end, so an
// insert has Start == End.
type Mutation struct {
	Kind  EditKind
	File  string // as written in the marker
	Path  string // absolute
	Start int
	End   int
	Lines []string
}

// Text returns the text written by the mutation. Inserted content always
// ends with a newline so it becomes whole lines; replaced ranges keep their
// own terminators.
func (m Mutation) Text() string {
	text := strings.Join(m.Lines, "\n")
	if m.Kind == Insert {
		text += "\n"
	}
	return text
}

// Replacement returns the lines spliced into [Start, End).
func (m Mutation) Replacement() []string {
	if m.Kind == Insert {
		return strings.Split(strings.TrimSuffix(m.Text(), "\n"), "\n")
	}
	if m.Start == m.End {
		return nil
	}
	return strings.Split(m.Text(), "\n")
}

func (m Mutation) String() string {
	if m.Kind == Insert {
		return fmt.Sprintf("insert %d line(s) into %s before line %d", len(m.Replacement()), m.File, m.Start+1)
	}
	return fmt.Sprintf("replace lines %d-%d of %s", m.Start+1, m.End, m.File)
}

// Example is a registered refactoring example.
type Example struct {
	ID          string
	Commit      string
	Symbol      string
	Description string
}

// Snapshot is the recorded content of a file. Missing means the file did
// not exist, so restoring the snapshot removes it.
type Snapshot struct {
	Path    string
	Content []byte
	Missing bool
}

// Summary holds the results of an operation for display.
type Summary struct {
	Created  []string
	Modified []string
	Failed   []string
	Notes    []string
	Message  string
}
