// Package expand widens a point in a source file to the smallest enclosing
// multi-line syntactic unit, using a selection-range chain from a provider.
package expand

import (
	"context"
	"errors"
	"fmt"

	"github.com/sokinpui/rbe/model"
)

// ErrNoRange is returned when a provider has no selection range for a point.
var ErrNoRange = errors.New("no selection range")

// Provider returns the selection-range chain at a position, innermost first.
// file is relative to the provider's project root.
type Provider interface {
	SelectionRange(ctx context.Context, file string, pos model.Position) (*model.SelectionRange, error)
}

// Expand returns the first range of the chain that spans more than one line.
// When none does, the outermost range is returned.
func Expand(node *model.SelectionRange) (model.Range, error) {
	if node == nil {
		return model.Range{}, ErrNoRange
	}
	for {
		if node.Range.MultiLine() || node.Parent == nil {
			return node.Range, nil
		}
		node = node.Parent
	}
}

// Location expands the start of loc to its enclosing multi-line unit.
func Location(ctx context.Context, p Provider, loc model.Location) (model.Location, error) {
	chain, err := p.SelectionRange(ctx, loc.File, loc.Range.Start)
	if err != nil {
		return model.Location{}, fmt.Errorf("selection range for %s: %w", loc, err)
	}
	r, err := Expand(chain)
	if err != nil {
		return model.Location{}, fmt.Errorf("%s: %w", loc, err)
	}
	return model.Location{File: loc.File, Range: r}, nil
}

// FirstOf tries providers in order and returns the first chain found.
func FirstOf(providers ...Provider) Provider {
	return firstOf(providers)
}

type firstOf []Provider

func (f firstOf) SelectionRange(ctx context.Context, file string, pos model.Position) (*model.SelectionRange, error) {
	var errs []error
	for _, p := range f {
		chain, err := p.SelectionRange(ctx, file, pos)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if chain != nil {
			return chain, nil
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(append([]error{ErrNoRange}, errs...)...)
	}
	return nil, ErrNoRange
}

// Chain builds a selection-range chain from ranges ordered innermost first.
func Chain(ranges ...model.Range) *model.SelectionRange {
	var head *model.SelectionRange
	for i := len(ranges) - 1; i >= 0; i-- {
		head = &model.SelectionRange{Range: ranges[i], Parent: head}
	}
	return head
}
