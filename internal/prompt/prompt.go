// Package prompt renders the request handed to a text-generation service:
// the example change, the code to transform and the reply format that
// internal/parser understands.
package prompt

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/go-enry/go-enry/v2"

	"github.com/sokinpui/rbe/internal/exemplar"
	"github.com/sokinpui/rbe/model"
)

const fence = "```"

// Snippet is a run of target lines quoted in the prompt.
type Snippet struct {
	File  string
	Start int // 0-based
	Lines []string
}

// Marker is the replace marker for the snippet's first line.
func (s Snippet) Marker() string {
	return fmt.Sprintf("//%s:%d", s.File, s.Start+1)
}

// End returns the 0-based exclusive end line.
func (s Snippet) End() int {
	return s.Start + len(s.Lines)
}

// Input is everything a prompt is built from.
type Input struct {
	Exemplar *exemplar.Exemplar
	Target   string
	Snippets []Snippet
}

var funcs = template.FuncMap{
	"fence": func(path string) string {
		return fence + Language(path)
	},
	"endfence": func() string { return fence },
	"join": func(lines []string) string {
		return strings.Join(lines, "\n")
	},
}

var tmpl = template.Must(template.New("prompt").Funcs(funcs).Parse(`# Refactoring example
{{- with .Exemplar}}
{{with .Commit}}
Commit {{.ShortSHA}}: {{.Subject}}
{{- end}}

The change below was made around ` + "`{{.Example.Symbol}}`" + `.
{{- range .Relevant}}

## {{.NewPath}}{{if .NewFile}} (new file){{else if .AnchorLine}} (line {{.AnchorLine}}){{end}}
{{if .OldContent}}
Before:

{{fence .OldPath}}
{{join .OldContent}}
{{endfence}}
{{end}}
After:

{{fence .NewPath}}
{{join .NewContent}}
{{endfence}}
{{- end}}
{{- end}}

# Task

Make the same kind of change for ` + "`{{.Target}}`" + `. The code that references it follows.
{{- range .Snippets}}

{{fence .File}}
{{.Marker}}
{{join .Lines}}
{{endfence}}
{{- end}}

# Reply format

Reply with one fenced code block per change. The first line inside each block is a marker and the rest is code:

- ` + "`//path:line`" + ` replaces lines of the file starting at 1-based ` + "`line`" + `. The block replaces as many lines as it contains, so keep the line count of the quoted code.
- ` + "`//+path:line`" + ` inserts the block before 0-based ` + "`line`" + `; ` + "`//+path:0`" + ` inserts at the top of the file.

Use the paths exactly as they appear in the markers above. Line numbers always refer to the files as quoted, before any of your changes. Text outside code blocks is shown to the user as notes.
`))

// Build renders the prompt.
func Build(in Input) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, in); err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return buf.String(), nil
}

// Language returns the fence tag for a file path, or "" when unknown.
func Language(path string) string {
	lang, _ := enry.GetLanguageByExtension(path)
	if lang == "" {
		lang, _ = enry.GetLanguageByFilename(path)
	}
	switch lang {
	case "":
		return ""
	case "Shell":
		return "bash"
	}
	return strings.ReplaceAll(strings.ToLower(lang), " ", "-")
}

// Snippets reads the lines of each location from disk and merges
// overlapping or adjacent ranges of the same file.
func Snippets(root string, locs []model.Location) ([]Snippet, error) {
	type span struct{ start, end int }
	spans := make(map[string][]span)
	var files []string
	for _, l := range locs {
		if _, ok := spans[l.File]; !ok {
			files = append(files, l.File)
		}
		spans[l.File] = append(spans[l.File], span{l.Range.Start.Line, l.Range.End.Line + 1})
	}

	var out []Snippet
	for _, file := range files {
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(file)))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")

		ss := spans[file]
		sort.Slice(ss, func(i, j int) bool { return ss[i].start < ss[j].start })
		var merged []span
		for _, s := range ss {
			if s.start < 0 || s.start >= len(lines) {
				return nil, fmt.Errorf("%s: line %d is past the end of the file", file, s.start+1)
			}
			s.end = min(s.end, len(lines))
			if n := len(merged); n > 0 && s.start <= merged[n-1].end {
				merged[n-1].end = max(merged[n-1].end, s.end)
				continue
			}
			merged = append(merged, s)
		}
		for _, s := range merged {
			out = append(out, Snippet{File: file, Start: s.start, Lines: lines[s.start:s.end]})
		}
	}
	return out, nil
}
