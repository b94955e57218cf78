package backlinks

import (
	"io"
	"log/slog"

	"github.com/starford/mdbook-backlinks/internal/book"
	"github.com/starford/mdbook-backlinks/internal/paths"
)

// Name is the preprocessor name mdbook knows us by.
const Name = "backlinks"

// Options configures a Processor.
type Options struct {
	Heading       string
	OnEscape      EscapePolicy
	OnRenderError RenderPolicy
	Logger        *slog.Logger
}

// Result describes one run.
type Result struct {
	Index   *Index
	Spliced int
}

// Processor runs the two-phase transform: index every chapter, then splice.
type Processor struct {
	opts Options
}

// NewProcessor returns a Processor with defaults filled in.
func NewProcessor(opts Options) *Processor {
	if opts.OnEscape == "" {
		opts.OnEscape = EscapeFail
	}
	if opts.OnRenderError == "" {
		opts.OnRenderError = RenderSkip
	}
	if opts.Heading == "" {
		opts.Heading = DefaultHeading
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Processor{opts: opts}
}

// Name returns the preprocessor name.
func (p *Processor) Name() string {
	return Name
}

// Run mutates b in place. The index is fully built before any chapter is
// touched; on error b may be partially modified and must be discarded.
func (p *Processor) Run(b *book.Book) (*Result, error) {
	idx, err := Build(b,
		WithEscapePolicy(p.opts.OnEscape),
		WithLogger(p.opts.Logger),
	)
	if err != nil {
		return nil, err
	}

	res := &Result{Index: idx}
	spliceOpts := SpliceOptions{
		Heading:       p.opts.Heading,
		OnRenderError: p.opts.OnRenderError,
		Logger:        p.opts.Logger,
	}
	err = b.MutChapters(func(ch *book.Chapter) error {
		if ch.IsDraft() {
			return nil
		}
		target, err := paths.Normalize(*ch.SourcePath)
		if err != nil {
			return err
		}
		changed, err := Splice(ch, target, idx.Backlinks(target), spliceOpts)
		if err != nil {
			return err
		}
		if changed {
			res.Spliced++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.opts.Logger.Debug("backlinks: book processed",
		slog.Int("chapters", idx.Len()),
		slog.Int("spliced", res.Spliced))
	return res, nil
}
