package backlinks

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/starford/mdbook-backlinks/internal/book"
	"github.com/starford/mdbook-backlinks/internal/mdwriter"
	"github.com/starford/mdbook-backlinks/internal/paths"
)

// DefaultHeading is the title of the rendered block.
const DefaultHeading = "Backlinks"

// RenderPolicy decides what happens when a record cannot be turned into a
// relative link.
type RenderPolicy string

// Render policies.
const (
	RenderSkip RenderPolicy = "skip"
	RenderFail RenderPolicy = "fail"
)

// SpliceOptions configures Splice.
type SpliceOptions struct {
	Heading       string
	OnRenderError RenderPolicy
	Logger        *slog.Logger
}

type entry struct {
	name string
	dest string
}

// Splice appends the backlinks block for records to ch, which lives at
// target. It reports whether the chapter was changed: an empty record list,
// or one whose every entry was skipped, leaves the content untouched.
func Splice(ch *book.Chapter, target paths.Path, records []Record, opts SpliceOptions) (bool, error) {
	if len(records) == 0 {
		return false, nil
	}
	if opts.Heading == "" {
		opts.Heading = DefaultHeading
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	base := paths.Dir(target)
	entries := make([]entry, 0, len(records))
	for _, rec := range records {
		dest, err := paths.Relative(base, rec.Path)
		if err != nil {
			if opts.OnRenderError == RenderFail {
				return false, fmt.Errorf("backlinks: render %s in %s: %w", rec.Path, target, err)
			}
			opts.Logger.Warn("backlinks: skipping entry",
				slog.String("chapter", target.String()),
				slog.String("source", rec.Path.String()),
				slog.String("error", err.Error()))
			continue
		}
		entries = append(entries, entry{name: rec.Name, dest: dest})
	}
	if len(entries) == 0 {
		return false, nil
	}

	fragment, err := renderFragment(opts.Heading, entries)
	if err != nil {
		return false, fmt.Errorf("backlinks: render %s: %w", target, err)
	}

	// The blank lines keep the rule from reading as a setext underline of
	// trailing prose.
	ch.Content += "\n\n" + fragment
	return true, nil
}

func renderFragment(heading string, entries []entry) (string, error) {
	b := mdwriter.NewBuilder()
	b.Rule()
	b.BlockQuote(func(b *mdwriter.Builder) {
		b.Heading(4, func(b *mdwriter.Builder) {
			b.Text(heading)
		})
		b.List(func(b *mdwriter.Builder) {
			for _, e := range entries {
				b.Item(func(b *mdwriter.Builder) {
					b.Link(e.dest, func(b *mdwriter.Builder) {
						b.Text(e.name)
					})
				})
			}
		})
	})

	var sb strings.Builder
	if err := b.Render(&sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}
