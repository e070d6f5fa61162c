package symbols

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/rbe/model"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return root
}

func loc(file string, line, start, end int) model.Location {
	return model.Location{
		File: file,
		Range: model.Range{
			Start: model.Position{Line: line, Character: start},
			End:   model.Position{Line: line, Character: end},
		},
	}
}

func TestFind(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		"src/app.ts":            "import { registerNewCommand } from './registry';\n\nregisterNewCommand(Brob);\n",
		"src/other.ts":          "registerNewCommandLater();\nxregisterNewCommand();\n",
		"src/b.ts":              "const f = registerNewCommand;\n",
		"node_modules/lib/x.js": "registerNewCommand();\n",
		".git/config":           "registerNewCommand\n",
		"README.md":             "registerNewCommand\n",
		"bin/blob":              "\x00\x01registerNewCommand\x00",
	})

	refs, err := Find(context.Background(), root, "registerNewCommand", Options{})
	require.NoError(t, err)
	assert.Equal(t, []model.Location{
		loc("src/app.ts", 0, 9, 27),
		loc("src/app.ts", 2, 0, 18),
		loc("src/b.ts", 0, 10, 28),
	}, refs)
}

func TestFind_Options(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		"a.go": "Foo()\n",
		"b.go": "Foo()\nFoo()\n",
		"c.go": "Foo()\n",
	})

	refs, err := Find(context.Background(), root, "Foo", Options{Max: 2})
	require.NoError(t, err)
	assert.Equal(t, []model.Location{loc("a.go", 0, 0, 3), loc("b.go", 0, 0, 3)}, refs)

	refs, err = Find(context.Background(), root, "Foo", Options{Exclude: []string{"a.go", "b.go"}})
	require.NoError(t, err)
	assert.Equal(t, []model.Location{loc("c.go", 0, 0, 3)}, refs)
}

func TestFind_Errors(t *testing.T) {
	t.Parallel()

	_, err := Find(context.Background(), t.TempDir(), "", Options{})
	assert.Error(t, err)

	_, err = Find(context.Background(), filepath.Join(t.TempDir(), "missing"), "x", Options{})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	root := writeTree(t, map[string]string{"a.go": "x\n"})
	_, err = Find(ctx, root, "x", Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWordPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line string
		want bool
	}{
		{"Foo", true},
		{"a.Foo()", true},
		{"(Foo)", true},
		{"FooBar", false},
		{"myFoo", false},
		{"Foo_x", false},
	}

	p := wordPattern("Foo")
	for _, tt := range tests {
		tt := tt
		t.Run(tt.line, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, p.MatchString(tt.line))
		})
	}
}
