package exemplar

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommit(t *testing.T) {
	t.Parallel()

	c, err := ParseCommit(sampleShow)
	require.NoError(t, err)

	assert.Equal(t, "1427971b3ee60a1df71b4c6cc34ed63eb623edf9", c.SHA)
	assert.Equal(t, "1427971", c.ShortSHA())
	assert.Equal(t, "Tao Wen", c.Author)
	assert.Equal(t, "taowen@gmail.com", c.Email)
	assert.Equal(t, "a refactoring example", c.Subject)
	assert.Equal(t, 2023, c.Date.Year())
	assert.Empty(t, c.Body)
}

func TestParseCommit_Body(t *testing.T) {
	t.Parallel()

	text := "commit 1427971b3ee60a1df71b4c6cc34ed63eb623edf9\n" +
		"Author: Tao Wen <taowen@gmail.com>\n" +
		"Date:   Sun Mar 19 21:22:49 2023 +0800\n" +
		"\n" +
		"    register commands through the registry\n" +
		"\n" +
		"    BrobCommand now extends ICommand.\n" +
		"\n" +
		"diff --git a/a.ts b/a.ts\n"

	c, err := ParseCommit(text)
	require.NoError(t, err)
	assert.Equal(t, "register commands through the registry", c.Subject)
	assert.Equal(t, "BrobCommand now extends ICommand.", c.Body)
}

func TestParseCommit_GitShow(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	dir := t.TempDir()
	git := func(args ...string) string {
		t.Helper()
		full := append([]string{"-C", dir, "-c", "user.name=Test", "-c", "user.email=test@example.com"}, args...)
		out, err := exec.Command("git", full...).CombinedOutput()
		require.NoError(t, err, string(out))
		return string(out)
	}

	git("init", "-q")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.ts"), []byte("old()\n"), 0644))
	git("add", ".")
	git("commit", "-q", "-m", "rename call", "-m", "Callers use new() from now on.")

	c, err := ParseCommit(git("show", "--no-color", "HEAD"))
	require.NoError(t, err)
	assert.Equal(t, "rename call", c.Subject)
	assert.Equal(t, "Callers use new() from now on.", c.Body)
	assert.Equal(t, "Test", c.Author)
	assert.Equal(t, "test@example.com", c.Email)
	assert.Len(t, c.SHA, 40)
}

func TestParseCommit_NoHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"diff only", "diff --git a/x b/x\n@@ -1 +1 @@\n-a\n+b\n"},
		{"blank preamble", "\n\ndiff --git a/x b/x\n"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseCommit(tc.text)
			assert.ErrorIs(t, err, ErrNoCommitHeader)
		})
	}
}

func TestCommitShortSHA(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abc", (&Commit{SHA: "abc"}).ShortSHA())
	assert.Equal(t, "", (&Commit{}).ShortSHA())
}
