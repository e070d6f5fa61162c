package patcher

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sokinpui/rbe/model"
)

// ErrOverlap is returned when two mutations of a file touch the same lines.
var ErrOverlap = errors.New("overlapping edits")

// Order returns a copy of muts in the order they must be applied so that
// every marker line keeps referring to the original text. Mutations are
// grouped by path and applied bottom-up. At the same line a replace goes
// before an insert, and inserts go in reverse so their content ends up in
// reply order.
func Order(muts []model.Mutation) []model.Mutation {
	type indexed struct {
		m   model.Mutation
		pos int
	}
	items := make([]indexed, len(muts))
	for i, m := range muts {
		items[i] = indexed{m: m, pos: i}
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.m.Path != b.m.Path {
			return a.m.Path < b.m.Path
		}
		if a.m.Start != b.m.Start {
			return a.m.Start > b.m.Start
		}
		if a.m.Kind != b.m.Kind {
			return a.m.Kind == model.Replace
		}
		return a.pos > b.pos
	})

	out := make([]model.Mutation, len(items))
	for i, it := range items {
		out[i] = it.m
	}
	return out
}

// GroupByFile splits muts per target path. Paths keep the order of their
// first mutation; each group is in application order.
func GroupByFile(muts []model.Mutation) (paths []string, groups map[string][]model.Mutation) {
	groups = make(map[string][]model.Mutation)
	for _, m := range muts {
		if _, ok := groups[m.Path]; !ok {
			paths = append(paths, m.Path)
		}
		groups[m.Path] = append(groups[m.Path], m)
	}
	for p, g := range groups {
		groups[p] = Order(g)
	}
	return paths, groups
}

// CheckOverlaps rejects replaces whose spans intersect and inserts that fall
// strictly inside a replaced span. Inserts at either edge of a replace are
// fine.
func CheckOverlaps(muts []model.Mutation) error {
	var errs []error
	for i := 0; i < len(muts); i++ {
		for j := i + 1; j < len(muts); j++ {
			a, b := muts[i], muts[j]
			if a.Path != b.Path || !overlaps(a, b) {
				continue
			}
			errs = append(errs, fmt.Errorf("%w: %s / %s", ErrOverlap, a, b))
		}
	}
	return errors.Join(errs...)
}

func overlaps(a, b model.Mutation) bool {
	aSpan, bSpan := a.End > a.Start, b.End > b.Start
	switch {
	case aSpan && bSpan:
		return a.Start < b.End && b.Start < a.End
	case aSpan:
		return a.Start < b.Start && b.Start < a.End
	case bSpan:
		return b.Start < a.Start && a.Start < b.End
	}
	return false
}
