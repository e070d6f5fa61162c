package exemplar

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
)

// ErrNoCommitHeader is returned when the text carries no commit preamble.
var ErrNoCommitHeader = errors.New("no commit header")

// Commit is the metadata of the commit an exemplar was taken from.
type Commit struct {
	SHA     string
	Author  string
	Email   string
	Date    time.Time
	Subject string
	Body    string
}

// ParseCommit reads the commit preamble that precedes the first file
// section of `git show` or `git format-patch` output.
func ParseCommit(text string) (*Commit, error) {
	preamble := text
	if i := strings.Index(text, "\n"+sectionMarker); i >= 0 {
		preamble = text[:i+1]
	} else if strings.HasPrefix(text, sectionMarker) {
		preamble = ""
	}
	if strings.TrimSpace(preamble) == "" {
		return nil, ErrNoCommitHeader
	}

	header, err := gitdiff.ParsePatchHeader(strings.TrimLeft(preamble, "\n"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse commit header: %w", err)
	}

	c := &Commit{
		SHA:     header.SHA,
		Date:    header.AuthorDate,
		Subject: header.Title,
		Body:    strings.TrimSpace(header.Body),
	}
	if header.Author != nil {
		c.Author = header.Author.Name
		c.Email = header.Author.Email
	}
	return c, nil
}

// ShortSHA returns the abbreviated commit id.
func (c *Commit) ShortSHA() string {
	if len(c.SHA) > 7 {
		return c.SHA[:7]
	}
	return c.SHA
}
