// Package symbols finds references to a symbol in a project tree.
package symbols

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/go-enry/go-enry/v2"

	"github.com/sokinpui/rbe/internal/logging"
	"github.com/sokinpui/rbe/model"
)

// MaxFileSize is the largest file searched, in bytes.
const MaxFileSize = 1 << 20

var errLimit = errors.New("reference limit reached")

// Options narrows a search.
type Options struct {
	// Max caps the number of references; 0 means no cap.
	Max int
	// Exclude lists root-relative paths that are not searched.
	Exclude []string
}

// Find returns whole-word occurrences of symbol under root, at most one per
// line, in lexical file order. Vendored, dot, documentation and binary files
// are skipped.
func Find(ctx context.Context, root, symbol string, opts Options) ([]model.Location, error) {
	if symbol == "" {
		return nil, errors.New("empty symbol")
	}
	logger := logging.FromContext(ctx)
	pattern := wordPattern(symbol)

	excluded := make(map[string]bool, len(opts.Exclude))
	for _, p := range opts.Exclude {
		excluded[filepath.ToSlash(p)] = true
	}

	var refs []model.Location
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if enry.IsDotFile(rel) || enry.IsVendor(rel + "/") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || excluded[rel] || skipFile(rel) {
			return nil
		}

		found, err := searchFile(path, rel, pattern)
		if err != nil {
			logger.Debug("skipping file", logging.FieldPath, rel, logging.FieldError, err)
			return nil
		}
		for _, loc := range found {
			refs = append(refs, loc)
			if opts.Max > 0 && len(refs) >= opts.Max {
				return errLimit
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, errLimit) {
		return nil, fmt.Errorf("searching for %s: %w", symbol, err)
	}
	logger.Debug("found references", logging.FieldSymbol, symbol, logging.FieldCount, len(refs))
	return refs, nil
}

// wordPattern matches symbol not directly preceded or followed by a word
// character. The symbol itself is the first submatch.
func wordPattern(symbol string) *regexp.Regexp {
	return regexp.MustCompile(`(?:^|[^\w])(` + regexp.QuoteMeta(symbol) + `)(?:[^\w]|$)`)
}

func skipFile(rel string) bool {
	return enry.IsDotFile(rel) || enry.IsVendor(rel) || enry.IsDocumentation(rel) || enry.IsImage(rel)
}

func searchFile(path, rel string, pattern *regexp.Regexp) ([]model.Location, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("larger than %d bytes", MaxFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if enry.IsBinary(data) || enry.IsGenerated(rel, data) {
		return nil, nil
	}

	var locs []model.Location
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), MaxFileSize)
	for line := 0; scanner.Scan(); line++ {
		m := pattern.FindStringSubmatchIndex(scanner.Text())
		if m == nil {
			continue
		}
		pos := model.Position{Line: line, Character: m[2]}
		locs = append(locs, model.Location{
			File:  rel,
			Range: model.Range{Start: pos, End: model.Position{Line: line, Character: m[3]}},
		})
	}
	return locs, scanner.Err()
}
