// Package parser extracts link destinations from chapter Markdown.
package parser

import (
	"fmt"
	"iter"
	"net/url"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"github.com/starford/mdbook-backlinks/internal/apperr"
)

// markdown mirrors the options mdbook enables on its own parser so that a
// link inside a table cell or footnote is seen the same way.
var markdown = goldmark.New(
	goldmark.WithExtensions(
		extension.Table,
		extension.Strikethrough,
		extension.TaskList,
		extension.Footnote,
	),
)

// Links yields the destination of every link in content: inline links,
// reference links (resolved against their definitions) and autolinks.
// Links inside code spans and code blocks never appear, nor do images.
//
// The content is parsed lazily on first iteration; breaking out of the loop
// stops the walk.
func Links(content string) iter.Seq[string] {
	return func(yield func(string) bool) {
		source := []byte(content)
		doc := markdown.Parser().Parse(text.NewReader(source))

		_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
			if !entering {
				return ast.WalkContinue, nil
			}
			var dest string
			switch link := n.(type) {
			case *ast.Link:
				dest = string(link.Destination)
			case *ast.AutoLink:
				dest = string(link.URL(source))
			default:
				return ast.WalkContinue, nil
			}
			if !yield(dest) {
				return ast.WalkStop, nil
			}
			return ast.WalkContinue, nil
		})
	}
}

// Destination returns the chapter path a link destination points at, with
// any fragment and query removed and percent-escapes decoded. It returns ""
// for links that cannot name a chapter: external URLs, pure fragments and
// empty destinations. Unparseable destinations fail with apperr.ErrMalformedLink.
func Destination(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parser: destination %q: %w", raw, apperr.ErrMalformedLink)
	}
	if u.Scheme != "" || u.Host != "" || u.Opaque != "" {
		return "", nil
	}
	return u.Path, nil
}
