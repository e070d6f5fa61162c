package parser

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ExtractNotes returns the prose paragraphs of a reply, skipping code
// blocks. Replies often explain their edits in between the blocks, and
// those explanations are shown after applying.
func ExtractNotes(reply []byte) ([]string, error) {
	var notes []string
	root := goldmark.DefaultParser().Parse(text.NewReader(reply))

	walker := func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch node.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph, *ast.TextBlock:
			if note := paragraphText(node, reply); note != "" {
				notes = append(notes, note)
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	}

	if err := ast.Walk(root, walker); err != nil {
		return nil, err
	}
	return notes, nil
}

func paragraphText(p ast.Node, source []byte) string {
	var buf bytes.Buffer
	lines := p.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		buf.Write(bytes.TrimSpace(line.Value(source)))
		buf.WriteByte(' ')
	}
	return strings.TrimSpace(buf.String())
}
