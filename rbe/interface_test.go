package rbe

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_Library(t *testing.T) {
	t.Parallel()

	root := setupProject(t)

	result, err := Apply(context.Background(), sampleReply, Config{Root: root})
	require.NoError(t, err)
	assert.Equal(t, []string{"new.ts"}, result["Created"])
	assert.Equal(t, []string{"app.ts"}, result["Modified"])
	assert.Empty(t, result["Failed"])
	assert.Len(t, result["Notes"], 1)

	assert.Equal(t, "line1\nLINE2\nline3\n", readFile(t, filepath.Join(root, "app.ts")))
	assert.DirExists(t, filepath.Join(root, ".rbe", "objects"))
}

func TestApply_LibraryErrors(t *testing.T) {
	t.Parallel()

	root := setupProject(t)

	_, err := Apply(context.Background(), sampleReply, Config{Root: root, Editor: "emacs"})
	assert.Error(t, err)

	_, err = Apply(context.Background(), sampleReply, Config{})
	assert.Error(t, err)

	_, err = Apply(context.Background(), "```ts\n//app.ts\nx\n```\n", Config{Root: root})
	assert.Error(t, err)
	assert.Equal(t, "line1\nline2\nline3\n", readFile(t, filepath.Join(root, "app.ts")))
}
