package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/rbe/model"
)

const fourBlockReply = "```typescript\n" +
	"//src/sample/vick-command.ts:1\n" +
	"import { ICommand } from \"./a,pi\";\n" +
	"\n" +
	"export class VickCommand extends ICommand {\n" +
	"}\n" +
	"```\n" +
	"```typescript\n" +
	"//src/sample/app.ts:3\n" +
	"import { VickCommand } from \"./vick-command\";\n" +
	"\n" +
	"```\n" +
	"```typescript\n" +
	"//src/sample/app.ts:7\n" +
	"    executeNewCommand(VickCommand);\n" +
	"\n" +
	"```\n" +
	"```typescript\n" +
	"//+src/sample/registry.ts:2\n" +
	"import { VickCommand } from \"./vick-command\";\n" +
	"\n" +
	"registerNewCommand(VickCommand)\n" +
	"```"

func TestParseEdits_FourBlocks(t *testing.T) {
	t.Parallel()

	res, err := ParseEdits(fourBlockReply)
	require.NoError(t, err)
	require.NoError(t, res.Err())
	require.Len(t, res.Edits, 4)

	assert.Equal(t, model.EditInstruction{
		Kind: model.Replace,
		File: "src/sample/vick-command.ts",
		Line: 1,
		Content: []string{
			`import { ICommand } from "./a,pi";`,
			"",
			"export class VickCommand extends ICommand {",
			"}",
		},
	}, res.Edits[0])

	assert.Equal(t, "src/sample/app.ts", res.Edits[1].File)
	assert.Equal(t, 3, res.Edits[1].Line)
	assert.Equal(t, []string{`import { VickCommand } from "./vick-command";`, ""}, res.Edits[1].Content)

	assert.Equal(t, 7, res.Edits[2].Line)
	assert.Equal(t, model.Replace, res.Edits[2].Kind)

	assert.Equal(t, model.Insert, res.Edits[3].Kind)
	assert.Equal(t, "src/sample/registry.ts", res.Edits[3].File)
	assert.Equal(t, 2, res.Edits[3].Line)
	assert.Len(t, res.Edits[3].Content, 3)
}

func TestParseEdits_InsertMarker(t *testing.T) {
	t.Parallel()

	res, err := ParseEdits("```ts\n//+util.ts:5\nexport const x = 1;\n```\n")
	require.NoError(t, err)
	require.Len(t, res.Edits, 1)

	assert.Equal(t, model.EditInstruction{
		Kind:    model.Insert,
		File:    "util.ts",
		Line:    5,
		Content: []string{"export const x = 1;"},
	}, res.Edits[0])
}

func TestParseEdits_ProseAroundBlocks(t *testing.T) {
	t.Parallel()

	reply := "Here is the change:\r\n" +
		"\r\n" +
		"```go\r\n" +
		"//main.go:10\r\n" +
		"\treturn nil\r\n" +
		"```\r\n" +
		"That's all.\r\n"

	res, err := ParseEdits(reply)
	require.NoError(t, err)
	require.Len(t, res.Edits, 1)
	assert.Equal(t, "main.go", res.Edits[0].File)
	assert.Equal(t, []string{"\treturn nil"}, res.Edits[0].Content)
}

func TestParseEdits_NoBlocks(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"", "no code here", "inline ```code``` only"} {
		res, err := ParseEdits(text)
		require.NoError(t, err, text)
		assert.Empty(t, res.Edits, text)
		assert.Empty(t, res.Failures, text)
	}
}

func TestParseEdits_EmptyBlock(t *testing.T) {
	t.Parallel()

	res, err := ParseEdits("```\n//a.go:4\n```\n")
	require.NoError(t, err)
	require.Len(t, res.Edits, 1)
	assert.Empty(t, res.Edits[0].Content)
	assert.Equal(t, 4, res.Edits[0].Line)
}

func TestParseEdits_PathSplitOnFirstColon(t *testing.T) {
	t.Parallel()

	res, err := ParseEdits("```\n//a.go:4:extra\nx\n```\n")
	require.NoError(t, err)
	require.Empty(t, res.Edits)
	require.Len(t, res.Failures, 1)
	assert.ErrorIs(t, res.Failures[0], errBadLine)
}

func TestParseEdits_MalformedMarker(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		marker string
		want   error
	}{
		{"no marker", "package main", errMissingMarker},
		{"no colon", "//main.go", errMissingLine},
		{"no path", "//:12", errMissingPath},
		{"no line", "//+main.go:", errMissingLine},
		{"not a number", "//main.go:twelve", errBadLine},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			reply := "```go\n" + tc.marker + "\nbody\n```\n" +
				"```go\n//ok.go:1\nfine\n```\n"

			res, err := ParseEdits(reply)
			require.NoError(t, err)

			require.Len(t, res.Failures, 1)
			f := res.Failures[0]
			assert.Equal(t, 1, f.Block)
			assert.Equal(t, 2, f.Line)
			assert.Equal(t, tc.marker, f.Marker)
			assert.ErrorIs(t, f, tc.want)

			// The bad block is skipped, the next one still parses.
			require.Len(t, res.Edits, 1)
			assert.Equal(t, "ok.go", res.Edits[0].File)
			assert.Equal(t, []string{"fine"}, res.Edits[0].Content)

			var markerErr *MarkerError
			require.True(t, errors.As(res.Err(), &markerErr))
			assert.Equal(t, tc.marker, markerErr.Marker)
		})
	}
}

func TestParseEdits_FenceInPlaceOfMarker(t *testing.T) {
	t.Parallel()

	res, err := ParseEdits("```\n```\n```\n//b.go:2\ny\n```")
	require.NoError(t, err)
	require.Len(t, res.Failures, 1)
	require.Len(t, res.Edits, 1)
	assert.Equal(t, "b.go", res.Edits[0].File)
	assert.Equal(t, 2, res.Failures[0].Line)
}

func TestParseEdits_UnterminatedFence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
	}{
		{"open block", "```go\n//a.go:1\nx := 1\n```\n```go\n//b.go:2\ny := 2\n"},
		{"fence on last line", "text\n```"},
		{"fence then newline", "```\n"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			res, err := ParseEdits(tc.text)
			require.ErrorIs(t, err, ErrUnterminatedFence)
			assert.Empty(t, res.Edits)
		})
	}
}

func TestIsFence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line string
		want bool
	}{
		{"```", true},
		{"```go", true},
		{"```typescript  ", true},
		{"```c++", true},
		{"``` go", false},
		{"```go run main.go", false},
		{"```inline```", false},
		{" ```", false},
		{"``", false},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, isFence(tc.line), tc.line)
	}
}

func TestExtractNotes(t *testing.T) {
	t.Parallel()

	reply := []byte("I renamed the command.\n" +
		"It now extends\nICommand.\n\n" +
		"```ts\n//a.ts:1\nnot a note\n```\n\n" +
		"- list items count too\n")

	notes, err := ExtractNotes(reply)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"I renamed the command. It now extends ICommand.",
		"list items count too",
	}, notes)
}
