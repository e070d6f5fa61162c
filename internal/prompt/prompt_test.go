package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/rbe/internal/exemplar"
	"github.com/sokinpui/rbe/model"
)

const showOutput = `commit 1427971b6f3a2a1e0a5cf3d5a1a2b8f1f3f6c0de
Author: Tao Wen <taowen@gmail.com>
Date:   Sat Apr 15 10:00:00 2023 +0800

    a refactoring example

diff --git a/src/registry.ts b/src/registry.ts
index 1111111..2222222 100644
--- a/src/registry.ts
+++ b/src/registry.ts
@@ -1,2 +1,3 @@
 import { ICommand } from './command';
+registerNewCommand(BrobCommand);
 export const commands: ICommand[] = [];
diff --git a/src/unrelated.ts b/src/unrelated.ts
index 3333333..4444444 100644
--- a/src/unrelated.ts
+++ b/src/unrelated.ts
@@ -4 +4 @@
-let a = 1;
+let a = 2;
`

func loadExemplar(t *testing.T) *exemplar.Exemplar {
	t.Helper()
	ex, err := exemplar.FromDiff(model.Example{
		ID:     "register",
		Commit: "1427971b",
		Symbol: "registerNewCommand",
	}, showOutput)
	require.NoError(t, err)
	return ex
}

func TestBuild(t *testing.T) {
	t.Parallel()

	out, err := Build(Input{
		Exemplar: loadExemplar(t),
		Target:   "registerOldCommand",
		Snippets: []Snippet{
			{File: "src/main.ts", Start: 2, Lines: []string{"registerOldCommand(Foo);", "run();"}},
		},
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "# Refactoring example\n\nCommit 1427971: a refactoring example\n"))
	assert.Contains(t, out, "made around `registerNewCommand`.")
	assert.Contains(t, out, "## src/registry.ts (line 1)\n\nBefore:\n\n```typescript\n"+
		"import { ICommand } from './command';\nexport const commands: ICommand[] = [];\n```\n\n"+
		"After:\n\n```typescript\nimport { ICommand } from './command';\n"+
		"registerNewCommand(BrobCommand);\nexport const commands: ICommand[] = [];\n```")
	assert.NotContains(t, out, "src/unrelated.ts", "blocks without the symbol are left out")

	assert.Contains(t, out, "Make the same kind of change for `registerOldCommand`.")
	assert.Contains(t, out, "```typescript\n//src/main.ts:3\nregisterOldCommand(Foo);\nrun();\n```")
	assert.Contains(t, out, "# Reply format")
	assert.Contains(t, out, "`//+path:0`")
}

func TestBuild_WithoutExemplar(t *testing.T) {
	t.Parallel()

	out, err := Build(Input{Target: "x"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "# Refactoring example\n\n# Task\n"))
}

func TestBuild_NewFile(t *testing.T) {
	t.Parallel()

	ex := &exemplar.Exemplar{
		Example: model.Example{Symbol: "X"},
		Blocks: []model.DiffBlock{{
			OldPath:    "dev/null",
			NewPath:    "src/x.go",
			NewFile:    true,
			NewContent: []string{"package x"},
		}},
	}
	out, err := Build(Input{Exemplar: ex, Target: "Y"})
	require.NoError(t, err)
	assert.Contains(t, out, "## src/x.go (new file)\n\nAfter:\n\n```go\npackage x\n```")
	assert.NotContains(t, out, "Before:")
}

func TestLanguage(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"main.go":         "go",
		"src/app.ts":      "typescript",
		"script.sh":       "bash",
		"notes.unknownxy": "",
		"Makefile":        "makefile",
	}
	for path, want := range tests {
		path, want := path, want
		t.Run(path, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, want, Language(path))
		})
	}
}

func TestSnippets(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "a.go"),
		[]byte("l1\nl2\nl3\nl4\nl5\nl6\nl7\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.go"), []byte("only\n"), 0644))

	at := func(file string, start, end int) model.Location {
		return model.Location{File: file, Range: model.Range{
			Start: model.Position{Line: start},
			End:   model.Position{Line: end},
		}}
	}

	got, err := Snippets(root, []model.Location{
		at("src/a.go", 5, 6),
		at("b.go", 0, 0),
		at("src/a.go", 0, 1),
		at("src/a.go", 1, 2),
		at("src/a.go", 5, 20),
	})
	require.NoError(t, err)
	assert.Equal(t, []Snippet{
		{File: "src/a.go", Start: 0, Lines: []string{"l1", "l2", "l3"}},
		{File: "src/a.go", Start: 5, Lines: []string{"l6", "l7"}},
		{File: "b.go", Start: 0, Lines: []string{"only"}},
	}, got)
	assert.Equal(t, "//src/a.go:6", got[1].Marker())
	assert.Equal(t, 7, got[1].End())

	_, err = Snippets(root, []model.Location{at("b.go", 4, 4)})
	assert.Error(t, err)

	_, err = Snippets(root, []model.Location{at("missing.go", 0, 0)})
	assert.Error(t, err)
}
