package patcher

import (
	"strings"

	"github.com/sokinpui/rbe/model"
)

// normalizeLine trims a line and collapses its inner whitespace so that
// indentation and spacing changes do not affect matching.
func normalizeLine(line string) string {
	return strings.Join(strings.Fields(line), " ")
}

// Locate finds block inside source, ignoring whitespace differences and
// blank lines on both sides. It returns the 0-based source line where the
// match begins, or -1.
func Locate(source, block []string) int {
	var want []string
	for _, line := range block {
		if n := normalizeLine(line); n != "" {
			want = append(want, n)
		}
	}
	if len(want) == 0 {
		return -1
	}

	var filtered []string
	var origin []int
	for i, line := range source {
		if n := normalizeLine(line); n != "" {
			filtered = append(filtered, n)
			origin = append(origin, i)
		}
	}

	for i := 0; i <= len(filtered)-len(want); i++ {
		match := true
		for j := range want {
			if filtered[i+j] != want[j] {
				match = false
				break
			}
		}
		if match {
			return origin[i]
		}
	}
	return -1
}

// AlreadyPresent reports whether an insert's content already exists in the
// file, which usually means the reply was applied before.
func AlreadyPresent(lines []string, m model.Mutation) bool {
	if m.Kind != model.Insert {
		return false
	}
	return Locate(lines, m.Lines) >= 0
}
