package exemplar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"github.com/sokinpui/rbe/model"
)

var (
	// ErrUnknownExample is returned for ids missing from the registry.
	ErrUnknownExample = errors.New("unknown example")
	// ErrNoBlocks means the commit diff had no file sections.
	ErrNoBlocks = errors.New("no exemplar found in commit diff")
)

// Registry maps example ids to their commit and symbol.
type Registry struct {
	examples map[string]model.Example
}

// NewRegistry creates a registry from a list of examples.
func NewRegistry(examples []model.Example) *Registry {
	r := &Registry{examples: make(map[string]model.Example, len(examples))}
	for _, ex := range examples {
		r.examples[ex.ID] = ex
	}
	return r
}

// Lookup returns the example registered under id.
func (r *Registry) Lookup(id string) (model.Example, error) {
	ex, ok := r.examples[id]
	if !ok {
		return model.Example{}, fmt.Errorf("%w: %q", ErrUnknownExample, id)
	}
	return ex, nil
}

// List returns all examples sorted by id.
func (r *Registry) List() []model.Example {
	list := make([]model.Example, 0, len(r.examples))
	for _, ex := range r.examples {
		list = append(list, ex)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].ID < list[j].ID
	})
	return list
}

// Exemplar is a parsed example commit.
type Exemplar struct {
	Example model.Example
	Commit  *Commit // nil when the diff had no commit header
	Blocks  []model.DiffBlock
}

// Load runs `git show` for the example commit and parses its output.
func Load(ctx context.Context, root string, ex model.Example) (*Exemplar, error) {
	text, err := Show(ctx, root, ex.Commit)
	if err != nil {
		return nil, err
	}
	return FromDiff(ex, text)
}

// FromDiff builds an exemplar from already fetched diff text.
func FromDiff(ex model.Example, text string) (*Exemplar, error) {
	blocks := ParseDiff(text)
	if len(blocks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoBlocks, ex.Commit)
	}
	commit, err := ParseCommit(text)
	if err != nil {
		commit = nil
	}
	return &Exemplar{Example: ex, Commit: commit, Blocks: blocks}, nil
}

// Relevant returns the blocks that mention the example symbol, or every
// block when none does or no symbol is set.
func (e *Exemplar) Relevant() []model.DiffBlock {
	if e.Example.Symbol == "" {
		return e.Blocks
	}
	var relevant []model.DiffBlock
	for _, b := range e.Blocks {
		if mentions(b.OldContent, e.Example.Symbol) || mentions(b.NewContent, e.Example.Symbol) {
			relevant = append(relevant, b)
		}
	}
	if len(relevant) == 0 {
		return e.Blocks
	}
	return relevant
}

func mentions(lines []string, symbol string) bool {
	for _, l := range lines {
		if strings.Contains(l, symbol) {
			return true
		}
	}
	return false
}

// Show returns the `git show` output of a commit inside root.
func Show(ctx context.Context, root, commit string) (string, error) {
	if commit == "" {
		return "", errors.New("example has no commit")
	}
	cmd := exec.CommandContext(ctx, "git", "-C", root, "show", "--no-color", "--no-ext-diff", "--format=medium", commit)

	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("`git show %s` failed: %s", commit, strings.TrimSpace(stderr.String()))
	}
	return out.String(), nil
}
