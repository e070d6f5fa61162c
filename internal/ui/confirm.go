package ui

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Change is one mutation as shown to the user.
type Change struct {
	Title  string
	Before string
	After  string
}

// DiffLines renders a line diff of before and after, prefixing removed
// lines with "-", added lines with "+" and unchanged lines with a space.
func DiffLines(before, after string) string {
	dmp := diffmatchpatch.New()
	chars1, chars2, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(chars1, chars2, false)
	lineDiffs := dmp.DiffCharsToLines(diffs, lineArray)

	var b strings.Builder
	for _, d := range lineDiffs {
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			line = strings.TrimSuffix(line, "\n")
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				b.WriteString("  " + line + "\n")
			case diffmatchpatch.DiffDelete:
				b.WriteString(RemovedColor.Sprint("- "+line) + "\n")
			case diffmatchpatch.DiffInsert:
				b.WriteString(AddedColor.Sprint("+ "+line) + "\n")
			}
		}
	}
	return b.String()
}

// PrintChange prints a change title and its diff.
func PrintChange(c Change) {
	PathColor.Fprintf(out, "%s\n", c.Title)
	fmt.Fprint(out, DiffLines(c.Before, c.After))
}

// ConfirmChanges shows each change and asks whether to apply it. Answering
// "a" accepts the rest. It returns false as soon as one change is declined
// or the input ends.
func ConfirmChanges(in io.Reader, changes []Change) (bool, error) {
	reader := bufio.NewReader(in)
	for i, c := range changes {
		fmt.Fprintln(out)
		PrintChange(c)

		fmt.Fprint(out, Prompt("Apply change %d/%d? [y]es/[n]o/[a]ll/[q]uit: ", i+1, len(changes)))
		answer, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return false, fmt.Errorf("failed to read answer: %w", err)
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			continue
		case "a", "all":
			return true, nil
		default:
			return false, nil
		}
	}
	return true, nil
}

// OpenTTY opens the controlling terminal for reading answers when stdin is
// taken by a pipe.
func OpenTTY() (io.ReadCloser, error) {
	tty, err := os.Open("/dev/tty")
	if err != nil {
		return nil, fmt.Errorf("no terminal for confirmation: %w", err)
	}
	return tty, nil
}
