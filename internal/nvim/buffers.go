package nvim

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/neovim/go-client/nvim"

	"github.com/sokinpui/rbe/internal/fs"
	"github.com/sokinpui/rbe/internal/logging"
	"github.com/sokinpui/rbe/internal/patcher"
	"github.com/sokinpui/rbe/model"
)

// ErrUnsavedBuffer is returned when a target buffer has unsaved changes.
var ErrUnsavedBuffer = errors.New("buffer has unsaved changes")

const openBufferLua = `
local path = ...
local buf = vim.fn.bufadd(path)
vim.fn.bufload(buf)
vim.bo[buf].buflisted = true
return { buf = buf, modified = vim.bo[buf].modified, exists = vim.fn.filereadable(path) == 1 }
`

const writeBufferLua = `
local buf, path = ...
vim.fn.mkdir(vim.fn.fnamemodify(path, ':h'), 'p')
vim.api.nvim_buf_call(buf, function() vim.cmd('silent write!') end)
`

const deleteBufferLua = `
local path = ...
local buf = vim.fn.bufnr(path)
if buf ~= -1 then
  vim.api.nvim_buf_delete(buf, { force = true })
end
`

type bufferInfo struct {
	Buf      int  `msgpack:"buf"`
	Modified bool `msgpack:"modified"`
	Exists   bool `msgpack:"exists"`
}

type bufferEdit struct {
	path    string
	buf     nvim.Buffer
	existed bool
	before  [][]byte
	after   [][]byte
	remove  bool
	// Disk content of a removed file, for rollback.
	previous []byte
}

// Apply loads every target file into a buffer, applies the mutations and
// writes the buffers unless the manager is in buffer-only mode. Every change
// is validated before any buffer is touched; a failure afterwards puts the
// touched buffers back.
func (m *Manager) Apply(ctx context.Context, muts []model.Mutation) ([]string, error) {
	if err := patcher.CheckOverlaps(muts); err != nil {
		return nil, err
	}

	paths, groups := patcher.GroupByFile(muts)
	var edits []bufferEdit
	for _, path := range paths {
		info, raw, err := m.openBuffer(path)
		if err != nil {
			return nil, err
		}
		if info.Modified {
			return nil, fmt.Errorf("%w: %s", ErrUnsavedBuffer, path)
		}

		lines := fileLines(raw)
		updated, err := patcher.ApplyAll(lines, groups[path])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if info.Exists && slices.Equal(lines, updated) {
			continue
		}
		edits = append(edits, bufferEdit{
			path:    path,
			buf:     nvim.Buffer(info.Buf),
			existed: info.Exists,
			before:  raw,
			after:   bufferLines(updated),
		})
	}
	return m.commit(ctx, edits, !m.bufferOnly)
}

// Restore puts files back to recorded snapshots through their buffers and
// writes them. A snapshot of a missing file removes the file.
func (m *Manager) Restore(ctx context.Context, snapshots []model.Snapshot) ([]string, error) {
	var edits []bufferEdit
	for _, s := range snapshots {
		info, raw, err := m.openBuffer(s.Path)
		if err != nil {
			return nil, err
		}
		if info.Modified {
			return nil, fmt.Errorf("%w: %s", ErrUnsavedBuffer, s.Path)
		}

		e := bufferEdit{
			path:    s.Path,
			buf:     nvim.Buffer(info.Buf),
			existed: info.Exists,
			before:  raw,
			remove:  s.Missing,
		}
		if s.Missing {
			if e.previous, err = os.ReadFile(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read %s: %w", s.Path, err)
			}
		} else {
			e.after = bufferLines(fs.SplitLines(s.Content))
		}
		edits = append(edits, e)
	}
	return m.commit(ctx, edits, true)
}

func (m *Manager) commit(ctx context.Context, edits []bufferEdit, write bool) ([]string, error) {
	logger := logging.FromContext(ctx)

	var touched []bufferEdit
	err := processSequentially(ctx, edits, func(e bufferEdit) error {
		touched = append(touched, e)
		if e.remove {
			return m.removeFile(e.path)
		}
		if err := m.nvim.SetBufferLines(e.buf, 0, -1, true, e.after); err != nil {
			return fmt.Errorf("failed to update buffer for %s: %w", e.path, err)
		}
		if !write {
			return nil
		}
		if err := m.writeBuffer(e); err != nil {
			return err
		}
		logger.Debug("wrote buffer", logging.FieldPath, e.path)
		return nil
	}, m.progress)
	if err != nil {
		return nil, m.rollback(ctx, touched, write, err)
	}

	paths := make([]string, len(edits))
	for i, e := range edits {
		paths[i] = e.path
	}
	return paths, nil
}

func (m *Manager) rollback(ctx context.Context, touched []bufferEdit, write bool, cause error) error {
	logger := logging.FromContext(ctx)
	errs := []error{cause}
	for i := len(touched) - 1; i >= 0; i-- {
		e := touched[i]
		if err := m.undoEdit(e, write); err != nil {
			logger.Error("rollback failed", logging.FieldPath, e.path, logging.FieldError, err)
			errs = append(errs, fmt.Errorf("rollback of %s: %w", e.path, err))
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) undoEdit(e bufferEdit, write bool) error {
	if e.remove {
		if e.previous == nil {
			return nil
		}
		return fs.WriteFileAtomic(e.path, e.previous)
	}
	if write && !e.existed {
		return m.removeFile(e.path)
	}
	if err := m.nvim.SetBufferLines(e.buf, 0, -1, true, e.before); err != nil {
		return err
	}
	if !write {
		return nil
	}
	return m.writeBuffer(e)
}

func (m *Manager) openBuffer(path string) (bufferInfo, [][]byte, error) {
	var info bufferInfo
	if err := m.nvim.ExecLua(openBufferLua, &info, path); err != nil {
		return info, nil, fmt.Errorf("failed to open %s in neovim: %w", path, err)
	}
	lines, err := m.nvim.BufferLines(nvim.Buffer(info.Buf), 0, -1, true)
	if err != nil {
		return info, nil, fmt.Errorf("failed to read buffer for %s: %w", path, err)
	}
	return info, lines, nil
}

func (m *Manager) writeBuffer(e bufferEdit) error {
	if err := m.nvim.ExecLua(writeBufferLua, nil, int(e.buf), e.path); err != nil {
		return fmt.Errorf("failed to write %s: %w", e.path, err)
	}
	return nil
}

func (m *Manager) removeFile(path string) error {
	if err := m.nvim.ExecLua(deleteBufferLua, nil, path); err != nil {
		return fmt.Errorf("failed to close buffer for %s: %w", path, err)
	}
	return fs.RemoveFile(path)
}

// fileLines converts buffer lines to the line model used by the patcher,
// where a final empty element stands for the trailing newline. A buffer
// holding a single empty line is an empty or missing file.
func fileLines(raw [][]byte) []string {
	lines := make([]string, 0, len(raw)+1)
	if len(raw) != 1 || len(raw[0]) != 0 {
		for _, l := range raw {
			lines = append(lines, string(l))
		}
	}
	return append(lines, "")
}

// bufferLines is the inverse of fileLines.
func bufferLines(lines []string) [][]byte {
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	out := make([][]byte, len(lines))
	for i, l := range lines {
		out[i] = []byte(l)
	}
	return out
}
