package exemplar

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sokinpui/rbe/model"
)

const (
	sectionMarker   = "diff --git "
	hunkMarker      = "@@ -"
	noNewlineMarker = `\`
	// Separates a format-patch signature from the last hunk.
	signatureMarker = "-- "
)

// hunkHeaderRegex extracts old/new start and counts; counts default to 1.
var hunkHeaderRegex = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// ParseDiff splits unified diff text into one block per file section.
// Only the last hunk of a section is kept: every hunk header resets the
// captured content. Malformed input yields fewer blocks, never an error.
func ParseDiff(text string) []model.DiffBlock {
	var blocks []model.DiffBlock
	var current *blockBuilder

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")

		if strings.HasPrefix(line, sectionMarker) {
			if current != nil {
				blocks = append(blocks, current.finish())
			}
			current = nil
			oldPath, newPath, ok := splitGitPaths(strings.TrimPrefix(line, sectionMarker))
			if ok {
				current = &blockBuilder{block: model.DiffBlock{OldPath: oldPath, NewPath: newPath}}
			}
			continue
		}
		// Commit header, or a section whose marker had no usable paths.
		if current == nil {
			continue
		}
		current.feed(line)
	}

	if current != nil {
		blocks = append(blocks, current.finish())
	}
	return blocks
}

// blockBuilder accumulates one file section.
type blockBuilder struct {
	block  model.DiffBlock
	inHunk bool
	// Remaining line counts announced by the hunk header, -1 when unknown.
	// They only tell a signature apart from a removed line.
	oldLeft, newLeft int
	// Raw empty lines that only become context if more hunk lines follow.
	blanks int
}

func (b *blockBuilder) feed(line string) {
	if strings.HasPrefix(line, hunkMarker) {
		b.startHunk(line)
		return
	}

	if !b.inHunk {
		switch {
		case strings.HasPrefix(line, "new file mode"):
			b.block.NewFile = true
		case strings.HasPrefix(line, "deleted file mode"):
			b.block.DeletedFile = true
		case strings.HasPrefix(line, "Binary files ") || line == "GIT binary patch":
			b.block.Binary = true
		}
		// Path echoes (---/+++), index and similarity lines carry no content.
		return
	}

	switch {
	case line == "":
		b.blanks++
	case strings.HasPrefix(line, noNewlineMarker):
		// Not content.
	case line == signatureMarker && b.countsUsed():
		// Everything after it until the next header is the signature.
		b.inHunk = false
		b.blanks = 0
	default:
		b.flushBlanks()
		b.addLine(line[0], line[1:])
	}
}

func (b *blockBuilder) startHunk(header string) {
	b.inHunk = true
	b.blanks = 0
	b.block.OldContent = nil
	b.block.NewContent = nil
	b.block.AnchorLine, b.oldLeft, b.newLeft = parseHunkHeader(header)
}

// countsUsed reports whether the lines announced by the hunk header have all
// been read. Headers undercounting their body keep accumulating regardless.
func (b *blockBuilder) countsUsed() bool {
	return b.oldLeft == 0 && b.newLeft == 0
}

func (b *blockBuilder) flushBlanks() {
	for ; b.blanks > 0 && b.inHunk; b.blanks-- {
		b.addLine(' ', "")
	}
	b.blanks = 0
}

func (b *blockBuilder) addLine(prefix byte, content string) {
	if !b.inHunk {
		return
	}
	switch prefix {
	case '+':
		b.block.NewContent = append(b.block.NewContent, content)
		b.newLeft--
	case '-':
		b.block.OldContent = append(b.block.OldContent, content)
		b.oldLeft--
	default:
		b.block.OldContent = append(b.block.OldContent, content)
		b.block.NewContent = append(b.block.NewContent, content)
		b.oldLeft--
		b.newLeft--
	}
}

// finish drops trailing blank lines, which come from the final newline of
// the input or from separators, never from real hunk content.
func (b *blockBuilder) finish() model.DiffBlock {
	b.blanks = 0
	return b.block
}

// parseHunkHeader returns the old-side start line and the old/new counts.
// Counts are -1 when the header cannot be fully parsed.
func parseHunkHeader(header string) (anchor, oldCount, newCount int) {
	m := hunkHeaderRegex.FindStringSubmatch(header)
	if m == nil {
		return looseAnchor(header), -1, -1
	}
	anchor, _ = strconv.Atoi(m[1])
	oldCount, newCount = 1, 1
	if m[2] != "" {
		oldCount, _ = strconv.Atoi(m[2])
	}
	if m[4] != "" {
		newCount, _ = strconv.Atoi(m[4])
	}
	return anchor, oldCount, newCount
}

// looseAnchor reads the digits between "-" and the next "," or space.
func looseAnchor(header string) int {
	rest := strings.TrimPrefix(header, hunkMarker)
	if i := strings.IndexAny(rest, ", "); i >= 0 {
		rest = rest[:i]
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0
	}
	return n
}

// splitGitPaths extracts both paths from the tail of a "diff --git" line.
func splitGitPaths(rest string) (oldPath, newPath string, ok bool) {
	rest = strings.TrimSpace(rest)

	if strings.HasPrefix(rest, `"`) {
		quoted, err := strconv.QuotedPrefix(rest)
		if err != nil {
			return "", "", false
		}
		oldTok, _ := strconv.Unquote(quoted)
		newTok := strings.TrimSpace(rest[len(quoted):])
		if strings.HasPrefix(newTok, `"`) {
			if newTok, err = strconv.Unquote(newTok); err != nil {
				return "", "", false
			}
		}
		return validPaths(stripPrefix(oldTok), stripPrefix(newTok))
	}

	// Identical names may contain spaces: "a/x y b/x y".
	if n := len(rest); n%2 == 1 && n > 5 {
		mid := n / 2
		if rest[mid] == ' ' && rest[1] == '/' && rest[mid+2] == '/' && rest[2:mid] == rest[mid+3:] {
			return validPaths(rest[2:mid], rest[mid+3:])
		}
	}

	fields := strings.Fields(rest)
	if len(fields) != 2 {
		return "", "", false
	}
	return validPaths(stripPrefix(fields[0]), stripPrefix(fields[1]))
}

// stripPrefix removes git's two-character side prefix ("a/", "b/", "i/", ...).
func stripPrefix(path string) string {
	if len(path) > 2 && path[1] == '/' {
		return path[2:]
	}
	return path
}

func validPaths(oldPath, newPath string) (string, string, bool) {
	if oldPath == "" || newPath == "" {
		return "", "", false
	}
	return oldPath, newPath, true
}
