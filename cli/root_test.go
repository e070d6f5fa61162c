package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(BuildInfo{Version: "1.2.3", Commit: "abc1234", Date: "2026-01-01"})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand_Subcommands(t *testing.T) {
	t.Parallel()

	cmd := NewRootCommand(BuildInfo{})
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"list", "prompt", "apply", "undo", "redo", "version"})
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "version=1.2.3")
	assert.Contains(t, out, "commit=abc1234")
}

func TestApplyCommand_DryRunAndUndo(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	app := filepath.Join(root, "app.ts")
	require.NoError(t, os.WriteFile(app, []byte("one\ntwo\n"), 0644))
	reply := filepath.Join(t.TempDir(), "reply.md")
	require.NoError(t, os.WriteFile(reply, []byte("```ts\n//app.ts:2\nTWO\n```\n"), 0644))

	_, err := execute(t, "apply", "-C", root, "--editor", "disk", "--no-tui", "-n", "-f", reply)
	require.NoError(t, err)
	data, err := os.ReadFile(app)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(data))

	_, err = execute(t, "apply", "-C", root, "--editor", "disk", "--no-tui", "-y", "-f", reply)
	require.NoError(t, err)
	data, err = os.ReadFile(app)
	require.NoError(t, err)
	assert.Equal(t, "one\nTWO\n", string(data))

	_, err = execute(t, "undo", "-C", root, "--editor", "disk", "--no-tui")
	require.NoError(t, err)
	data, err = os.ReadFile(app)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(data))
}

func TestCommands_Errors(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	_, err := execute(t, "prompt", "-C", root)
	assert.Error(t, err)

	_, err = execute(t, "prompt", "-C", root, "--editor", "disk", "missing")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "missing"), err.Error())

	_, err = execute(t, "apply", "-C", root, "--editor", "disk", "--buffer", "-y", "-f", "reply.md")
	assert.Error(t, err)
}
