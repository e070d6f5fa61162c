package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/rbe/model"
)

func TestNew_EmptyState(t *testing.T) {
	t.Parallel()

	m, err := New(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, -1, m.CurrentIndex())
	assert.Empty(t, m.History())

	snaps, err := m.UndoSnapshots()
	require.NoError(t, err)
	assert.Nil(t, snaps)

	snaps, err = m.RedoSnapshots()
	require.NoError(t, err)
	assert.Nil(t, snaps)
}

func TestStoreAndObject(t *testing.T) {
	t.Parallel()

	m, err := New(t.TempDir())
	require.NoError(t, err)

	h1, err := m.Store([]byte("content"))
	require.NoError(t, err)
	h2, err := m.Store([]byte("content"))
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	data, err := m.Object(h1)
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))

	_, err = m.Object("deadbeef")
	assert.Error(t, err)
}

// record simulates one apply run: snapshot, change files, write history.
func record(t *testing.T, m *Manager, files map[string]string) {
	t.Helper()

	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	before, err := m.Snapshot(paths)
	require.NoError(t, err)

	for p, content := range files {
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}

	ops, err := m.CreateOperations(paths, before)
	require.NoError(t, err)
	require.NoError(t, m.Write(ops))
}

func restore(t *testing.T, snaps []model.Snapshot) {
	t.Helper()
	for _, s := range snaps {
		if s.Missing {
			require.NoError(t, os.Remove(s.Path))
			continue
		}
		require.NoError(t, os.WriteFile(s.Path, s.Content, 0644))
	}
}

func TestUndoRedo(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	existing := filepath.Join(root, "app.ts")
	created := filepath.Join(root, "registry.ts")
	require.NoError(t, os.WriteFile(existing, []byte("old\n"), 0644))

	m, err := New(root)
	require.NoError(t, err)
	record(t, m, map[string]string{existing: "new\n", created: "reg\n"})

	require.Len(t, m.History(), 1)
	ops := m.History()[0].Operations
	require.Len(t, ops, 2)
	assert.Equal(t, existing, ops[0].Path)
	assert.Equal(t, ActionModify, ops[0].Action)
	assert.Equal(t, ActionCreate, ops[1].Action)
	assert.Empty(t, ops[1].BeforeHash)

	snaps, err := m.UndoSnapshots()
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "old\n", string(snaps[0].Content))
	assert.True(t, snaps[1].Missing)

	restore(t, snaps)
	require.NoError(t, m.CommitUndo())
	assert.Equal(t, -1, m.CurrentIndex())

	snaps, err = m.RedoSnapshots()
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "new\n", string(snaps[0].Content))
	assert.Equal(t, "reg\n", string(snaps[1].Content))

	restore(t, snaps)
	require.NoError(t, m.CommitRedo())
	assert.Equal(t, 0, m.CurrentIndex())
}

func TestUndo_Conflict(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	path := filepath.Join(root, "a.go")
	require.NoError(t, os.WriteFile(path, []byte("v1\n"), 0644))

	m, err := New(root)
	require.NoError(t, err)
	record(t, m, map[string]string{path: "v2\n"})

	require.NoError(t, os.WriteFile(path, []byte("edited by hand\n"), 0644))

	_, err = m.UndoSnapshots()
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 0, m.CurrentIndex())
}

func TestPersistence(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	a := filepath.Join(root, "a.go")
	b := filepath.Join(root, "sub", "b.go")
	require.NoError(t, os.WriteFile(a, []byte("a0"), 0644))

	m, err := New(root)
	require.NoError(t, err)
	record(t, m, map[string]string{a: "a1"})
	record(t, m, map[string]string{b: "b1"})
	require.NoError(t, m.CommitUndo())

	reloaded, err := New(root)
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.CurrentIndex())
	require.Len(t, reloaded.History(), 2)
	assert.Equal(t, m.History()[0].Operations, reloaded.History()[0].Operations)
	assert.Equal(t, "", reloaded.History()[1].Operations[0].BeforeHash)
	assert.Equal(t, m.History()[1].Timestamp, reloaded.History()[1].Timestamp)
}

func TestWrite_DropsUndoneEntries(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	path := filepath.Join(root, "f")
	require.NoError(t, os.WriteFile(path, []byte("0"), 0644))

	m, err := New(root)
	require.NoError(t, err)
	record(t, m, map[string]string{path: "1"})
	record(t, m, map[string]string{path: "2"})
	require.NoError(t, m.CommitUndo())

	record(t, m, map[string]string{path: "3"})
	assert.Len(t, m.History(), 2)
	assert.Equal(t, 1, m.CurrentIndex())

	snaps, err := m.RedoSnapshots()
	require.NoError(t, err)
	assert.Nil(t, snaps)
}

func TestLoad_Invalid(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"bad index":     "abc\n",
		"bad timestamp": "0\n\nnot-a-time\nmodify\n/p\n-\nabc\n",
		"short record":  "0\n\n1700000000\nmodify\n/p\n",
		"index too big": "3\n\n1700000000\nmodify\n/p\n-\nabc\n",
	}

	for name, content := range tests {
		content := content
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			root := t.TempDir()
			dir := filepath.Join(root, stateDirName)
			require.NoError(t, os.MkdirAll(dir, 0755))
			require.NoError(t, os.WriteFile(filepath.Join(dir, stateFileName), []byte(content), 0644))

			_, err := New(root)
			assert.Error(t, err)
		})
	}
}
