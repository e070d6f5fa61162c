package expand

import (
	"context"
	"path/filepath"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/sokinpui/rbe/model"
)

// SelectionRanger is the part of a language server client that answers
// textDocument/selectionRange.
type SelectionRanger interface {
	SelectionRange(ctx context.Context, params *protocol.SelectionRangeParams) ([]protocol.SelectionRange, error)
}

// LSPProvider asks a language server for selection ranges.
type LSPProvider struct {
	Root   string
	Client SelectionRanger
}

func (p *LSPProvider) SelectionRange(ctx context.Context, file string, pos model.Position) (*model.SelectionRange, error) {
	params := &protocol.SelectionRangeParams{
		TextDocument: protocol.TextDocumentIdentifier{
			URI: uri.File(filepath.Join(p.Root, filepath.FromSlash(file))),
		},
		Positions: []protocol.Position{ToLSPPosition(pos)},
	}
	result, err := p.Client.SelectionRange(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, ErrNoRange
	}
	return FromLSP(&result[0]), nil
}

// FromLSP converts an LSP selection range chain.
func FromLSP(sr *protocol.SelectionRange) *model.SelectionRange {
	var ranges []model.Range
	for ; sr != nil; sr = sr.Parent {
		ranges = append(ranges, model.Range{
			Start: fromLSPPosition(sr.Range.Start),
			End:   fromLSPPosition(sr.Range.End),
		})
	}
	return Chain(ranges...)
}

// ToLSPPosition converts a position; negative values clamp to zero.
func ToLSPPosition(pos model.Position) protocol.Position {
	return protocol.Position{
		Line:      uint32(max(pos.Line, 0)),
		Character: uint32(max(pos.Character, 0)),
	}
}

func fromLSPPosition(pos protocol.Position) model.Position {
	return model.Position{Line: int(pos.Line), Character: int(pos.Character)}
}
