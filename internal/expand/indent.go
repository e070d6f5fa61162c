package expand

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sokinpui/rbe/model"
)

// IndentProvider derives selection ranges from indentation. A line followed
// by more deeply indented lines opens a block, and a closing bracket at the
// opening line's depth ends it. It works for any language without a parser.
type IndentProvider struct {
	Root string
}

func (p *IndentProvider) SelectionRange(_ context.Context, file string, pos model.Position) (*model.SelectionRange, error) {
	content, err := os.ReadFile(filepath.Join(p.Root, filepath.FromSlash(file)))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file, err)
	}
	lines := strings.Split(strings.TrimSuffix(string(content), "\n"), "\n")
	return IndentChain(lines, pos)
}

// IndentChain builds the indentation chain around pos in lines.
func IndentChain(lines []string, pos model.Position) (*model.SelectionRange, error) {
	if pos.Line < 0 || pos.Line >= len(lines) {
		return nil, fmt.Errorf("%w: line %d of %d", ErrNoRange, pos.Line+1, len(lines))
	}

	ranges := []model.Range{lineRange(lines, pos.Line, pos.Line)}
	last := ranges[0]
	add := func(r model.Range) {
		if r != last && r.Contains(last) {
			ranges = append(ranges, r)
			last = r
		}
	}

	header := pos.Line
	for header >= 0 {
		add(blockRange(lines, header))
		header = enclosingHeader(lines, header)
	}
	add(lineRange(lines, 0, len(lines)-1))

	return Chain(ranges...), nil
}

// blockRange is the span of header and every following line indented deeper,
// plus a closing bracket line at the header's depth.
func blockRange(lines []string, header int) model.Range {
	depth := indentOf(lines[header])
	end := header
	for j := header + 1; j < len(lines); j++ {
		if blank(lines[j]) {
			continue
		}
		if indentOf(lines[j]) > depth {
			end = j
			continue
		}
		if end > header && indentOf(lines[j]) == depth && closes(lines[j]) {
			end = j
		}
		break
	}
	return lineRange(lines, header, end)
}

// enclosingHeader returns the nearest line above i that is indented less, or
// -1 at the top level.
func enclosingHeader(lines []string, i int) int {
	depth := indentOf(lines[i])
	if blank(lines[i]) {
		depth = int(^uint(0) >> 1)
	}
	for j := i - 1; j >= 0; j-- {
		if !blank(lines[j]) && indentOf(lines[j]) < depth {
			return j
		}
	}
	return -1
}

func lineRange(lines []string, start, end int) model.Range {
	return model.Range{
		Start: model.Position{Line: start},
		End:   model.Position{Line: end, Character: len(lines[end])},
	}
}

func indentOf(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}

func blank(line string) bool {
	return strings.TrimSpace(line) == ""
}

func closes(line string) bool {
	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "end", strings.HasPrefix(trimmed, "end "):
		return true
	case trimmed == "":
		return false
	}
	return strings.ContainsRune("}])", rune(trimmed[0]))
}
