// Package backlinks builds the reverse link graph of a book and splices a
// "Backlinks" block into every chapter that other chapters link to.
package backlinks

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/starford/mdbook-backlinks/internal/apperr"
	"github.com/starford/mdbook-backlinks/internal/book"
	"github.com/starford/mdbook-backlinks/internal/parser"
	"github.com/starford/mdbook-backlinks/internal/paths"
)

// EscapePolicy decides what happens to a link that resolves above the book root.
type EscapePolicy string

// Escape policies.
const (
	EscapeFail EscapePolicy = "fail"
	EscapeSkip EscapePolicy = "skip"
)

// Index maps every chapter path to the records of chapters linking to it.
// Keys are seeded from the book's chapters, so it never holds unknown targets.
type Index struct {
	entries map[paths.Path][]Record
}

// Has reports whether p is a known chapter.
func (idx *Index) Has(p paths.Path) bool {
	_, ok := idx.entries[p]
	return ok
}

// Len returns the number of known chapters.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Targets returns every known chapter path in lexical order.
func (idx *Index) Targets() []paths.Path {
	out := make([]paths.Path, 0, len(idx.entries))
	for p := range idx.entries {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Backlinks returns the ordered, deduplicated records for target.
func (idx *Index) Backlinks(target paths.Path) []Record {
	return Ordered(idx.entries[target])
}

type buildConfig struct {
	escape EscapePolicy
	logger *slog.Logger
}

// BuildOption customises Build.
type BuildOption func(*buildConfig)

// WithEscapePolicy sets how links escaping the book root are handled.
// The default is EscapeFail.
func WithEscapePolicy(p EscapePolicy) BuildOption {
	return func(c *buildConfig) {
		c.escape = p
	}
}

// WithLogger sets the logger used to report skipped links.
func WithLogger(l *slog.Logger) BuildOption {
	return func(c *buildConfig) {
		c.logger = l
	}
}

// Build indexes every link between chapters of b. Chapters without a source
// path neither contribute nor receive records.
func Build(b *book.Book, opts ...BuildOption) (*Index, error) {
	cfg := buildConfig{
		escape: EscapeFail,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	idx := &Index{entries: make(map[paths.Path][]Record)}

	// Seed with every chapter so links leaving the book are dropped by a
	// membership check.
	for ch := range b.Chapters() {
		if ch.IsDraft() {
			continue
		}
		p, err := paths.Normalize(*ch.SourcePath)
		if err != nil {
			return nil, fmt.Errorf("backlinks: chapter %q: %w", ch.Name, err)
		}
		idx.entries[p] = []Record{}
	}

	for ch := range b.Chapters() {
		if ch.IsDraft() {
			continue
		}
		source, _ := paths.Normalize(*ch.SourcePath)
		if err := idx.populate(ch, source, cfg); err != nil {
			return nil, err
		}
	}

	return idx, nil
}

func (idx *Index) populate(ch *book.Chapter, source paths.Path, cfg buildConfig) error {
	dir := paths.Dir(source)
	for dest := range parser.Links(ch.Content) {
		rel, err := parser.Destination(dest)
		if err != nil {
			cfg.logger.Debug("backlinks: skipping link",
				slog.String("chapter", source.String()),
				slog.String("error", err.Error()))
			continue
		}
		if rel == "" {
			continue
		}

		target, err := paths.Join(dir, rel)
		if err != nil {
			if cfg.escape == EscapeSkip && errors.Is(err, apperr.ErrPathEscapesRoot) {
				cfg.logger.Warn("backlinks: skipping link outside the book",
					slog.String("chapter", source.String()),
					slog.String("link", dest))
				continue
			}
			return fmt.Errorf("backlinks: link %q in %s: %w", dest, source, err)
		}

		if records, ok := idx.entries[target]; ok {
			idx.entries[target] = append(records, Record{
				Number: ch.Number,
				Name:   ch.Name,
				Path:   source,
			})
		}
	}
	return nil
}
