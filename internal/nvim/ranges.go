package nvim

import (
	"context"
	"fmt"

	"github.com/sokinpui/rbe/internal/expand"
	"github.com/sokinpui/rbe/model"
)

// Returns the ranges of the named treesitter node at a point and all of its
// ancestors as {start_row, start_col, end_row, end_col}, or nil when the
// buffer has no parser.
const nodeRangesLua = `
local path, row, col = ...
local buf = vim.fn.bufadd(path)
vim.fn.bufload(buf)
local ft = vim.bo[buf].filetype
if ft == '' then
  ft = vim.filetype.match({ buf = buf, filename = path }) or ''
end
if ft == '' then
  return nil
end
local lang = vim.treesitter.language.get_lang(ft) or ft
local ok, parser = pcall(vim.treesitter.get_parser, buf, lang)
if not ok or not parser then
  return nil
end
local tree = parser:parse()[1]
if not tree then
  return nil
end
local node = tree:root():named_descendant_for_range(row, col, row, col)
local out = {}
while node do
  local sr, sc, er, ec = node:range()
  table.insert(out, { sr, sc, er, ec })
  node = node:parent()
end
return out
`

// SelectionRange returns the treesitter node ancestry at pos.
func (m *Manager) SelectionRange(ctx context.Context, file string, pos model.Position) (*model.SelectionRange, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var nodes [][]int
	if err := m.nvim.ExecLua(nodeRangesLua, &nodes, m.resolve(file), pos.Line, pos.Character); err != nil {
		return nil, fmt.Errorf("treesitter query for %s: %w", file, err)
	}
	if len(nodes) == 0 {
		return nil, expand.ErrNoRange
	}

	ranges := make([]model.Range, 0, len(nodes))
	for _, n := range nodes {
		if len(n) != 4 {
			return nil, fmt.Errorf("treesitter query for %s: malformed node range %v", file, n)
		}
		ranges = append(ranges, nodeRange(n[0], n[1], n[2], n[3]))
	}
	return expand.Chain(ranges...), nil
}

// nodeRange converts a treesitter range. A node ending at column 0 ends with
// the newline of the previous line.
func nodeRange(sr, sc, er, ec int) model.Range {
	if ec == 0 && er > sr {
		er--
	}
	return model.Range{
		Start: model.Position{Line: sr, Character: sc},
		End:   model.Position{Line: er, Character: ec},
	}
}
