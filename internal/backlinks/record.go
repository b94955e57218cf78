package backlinks

import (
	"cmp"
	"slices"

	"github.com/starford/mdbook-backlinks/internal/book"
	"github.com/starford/mdbook-backlinks/internal/paths"
)

// Record says that the chapter at Path, named Name, links to some target.
type Record struct {
	Number book.SectionNumber
	Name   string
	Path   paths.Path
}

// Compare orders records by section number (unnumbered first), then name,
// then path.
func Compare(a, b Record) int {
	if c := a.Number.Compare(b.Number); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	return cmp.Compare(a.Path, b.Path)
}

// Ordered returns a sorted copy of rs in which every (name, path) pair
// appears once, however many times the source linked the target.
func Ordered(rs []Record) []Record {
	out := slices.Clone(rs)
	slices.SortFunc(out, Compare)
	return slices.CompactFunc(out, func(a, b Record) bool {
		return a.Name == b.Name && a.Path == b.Path
	})
}
