package book

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/starford/mdbook-backlinks/internal/apperr"
)

// Context is the preprocessor context mdbook sends alongside the book.
type Context struct {
	Root          string          `json:"root"`
	Config        json.RawMessage `json:"config"`
	Renderer      string          `json:"renderer"`
	MdbookVersion string          `json:"mdbook_version"`
}

// ParseInput decodes the [context, book] pair mdbook writes to a
// preprocessor's stdin.
func ParseInput(r io.Reader) (*Context, *Book, error) {
	var pair []json.RawMessage
	if err := json.NewDecoder(r).Decode(&pair); err != nil {
		return nil, nil, fmt.Errorf("book: decode input: %w", err)
	}
	if len(pair) != 2 {
		return nil, nil, fmt.Errorf("book: expected [context, book], got %d elements: %w", len(pair), apperr.ErrInvalidInput)
	}

	var ctx Context
	if err := json.Unmarshal(pair[0], &ctx); err != nil {
		return nil, nil, fmt.Errorf("book: decode context: %w", err)
	}
	var b Book
	if err := json.Unmarshal(pair[1], &b); err != nil {
		return nil, nil, err
	}
	return &ctx, &b, nil
}

// WriteBook encodes b for mdbook to read back from the preprocessor's stdout.
func WriteBook(w io.Writer, b *Book) error {
	if err := json.NewEncoder(w).Encode(b); err != nil {
		return fmt.Errorf("book: encode book: %w", err)
	}
	return nil
}

// PreprocessorConfig decodes the [preprocessor.<name>] table of book.toml
// into target. A missing table leaves target untouched.
func (c *Context) PreprocessorConfig(name string, target any) error {
	if len(c.Config) == 0 {
		return nil
	}
	var cfg struct {
		Preprocessor map[string]json.RawMessage `json:"preprocessor"`
	}
	if err := json.Unmarshal(c.Config, &cfg); err != nil {
		return fmt.Errorf("book: decode config: %w", err)
	}
	raw, ok := cfg.Preprocessor[name]
	if !ok || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("book: decode preprocessor.%s: %w", name, err)
	}
	return nil
}
