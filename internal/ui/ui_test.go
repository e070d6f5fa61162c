package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/rbe/model"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	noColor := color.NoColor
	color.NoColor = true
	var buf bytes.Buffer
	prev := SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(prev)
		color.NoColor = noColor
	})
	return &buf
}

func TestDiffLines(t *testing.T) {
	capture(t)

	got := DiffLines("a\nb\nc\n", "a\nB\nc\nd\n")
	assert.Equal(t, "  a\n- b\n+ B\n  c\n+ d\n", got)
}

func TestPrintUpdateSummary(t *testing.T) {
	buf := capture(t)

	PrintUpdateSummary(model.Summary{
		Modified: []string{"src/app.ts"},
		Created:  []string{"src/registry.ts"},
		Notes:    []string{"Renamed the command."},
	})
	out := buf.String()
	assert.Contains(t, out, "--- Update Summary ---")
	assert.Contains(t, out, "Modified 1 file(s):\n  - src/app.ts\n")
	assert.Contains(t, out, "Created 1 new file(s):\n  - src/registry.ts\n")
	assert.Contains(t, out, "--- Notes ---\nRenamed the command.")
	assert.NotContains(t, out, "No files were updated.")

	buf.Reset()
	PrintUpdateSummary(model.Summary{Message: "dry run"})
	assert.Contains(t, buf.String(), "No files were updated.")
	assert.Contains(t, buf.String(), "dry run")
}

func TestPrintHistorySummaries(t *testing.T) {
	buf := capture(t)

	PrintRevertSummary(model.Summary{Modified: []string{"a.go"}})
	PrintRedoSummary(model.Summary{Failed: []string{"b.go"}, Message: "file changed"})
	out := buf.String()
	assert.Contains(t, out, "--- Revert Summary ---\nSuccessfully reverted 1 file(s):\n  - a.go\n")
	assert.Contains(t, out, "--- Redo Summary ---\nFailed on 1 file(s):\n  - b.go\nfile changed\n")
}

func TestConfirmChanges(t *testing.T) {
	changes := []Change{
		{Title: "one", Before: "a\n", After: "b\n"},
		{Title: "two", Before: "c\n", After: "d\n"},
		{Title: "three", Before: "e\n", After: "f\n"},
	}

	tests := []struct {
		name  string
		input string
		want  bool
		shown int
	}{
		{name: "all yes", input: "y\ny\nyes\n", want: true, shown: 3},
		{name: "accept rest", input: "y\na\n", want: true, shown: 2},
		{name: "decline", input: "y\nn\n", want: false, shown: 2},
		{name: "quit", input: "q\n", want: false, shown: 1},
		{name: "eof", input: "", want: false, shown: 1},
		{name: "answer without newline", input: "y\ny\ny", want: true, shown: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := capture(t)

			ok, err := ConfirmChanges(strings.NewReader(tt.input), changes)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			assert.Equal(t, tt.shown, strings.Count(buf.String(), "Apply change"))
		})
	}
}

func TestProgressBar(t *testing.T) {
	buf := capture(t)

	p := NewProgressBar(2, "Applying")
	p.Start()
	p.Increment()
	p.Set(2, 2)
	p.Finish()
	assert.Contains(t, buf.String(), "[1/2] 50.0%")
	assert.Contains(t, buf.String(), "[2/2] 100.0%")
}
