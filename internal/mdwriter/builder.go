// Package mdwriter builds Markdown documents as goldmark AST nodes and
// serializes them back to CommonMark text.
package mdwriter

import (
	"io"
	"strings"

	"github.com/yuin/goldmark/ast"
)

// Builder assembles a document by pushing start nodes, text and end markers.
// The zero value is not usable; call NewBuilder.
type Builder struct {
	doc   *ast.Document
	stack []ast.Node
}

// NewBuilder returns a builder positioned inside an empty document.
func NewBuilder() *Builder {
	doc := ast.NewDocument()
	return &Builder{doc: doc, stack: []ast.Node{doc}}
}

func (b *Builder) current() ast.Node {
	return b.stack[len(b.stack)-1]
}

// Start appends n to the current node and descends into it.
func (b *Builder) Start(n ast.Node) {
	parent := b.current()
	parent.AppendChild(parent, n)
	b.stack = append(b.stack, n)
}

// End closes the node opened by the matching Start. Closing the document
// itself is a no-op.
func (b *Builder) End() {
	if len(b.stack) > 1 {
		b.stack = b.stack[:len(b.stack)-1]
	}
}

// Tag opens n, runs f to fill it and closes it again.
func (b *Builder) Tag(n ast.Node, f func(*Builder)) {
	b.Start(n)
	f(b)
	b.End()
}

// Text appends literal text. It is escaped when rendered.
func (b *Builder) Text(s string) {
	parent := b.current()
	parent.AppendChild(parent, ast.NewString([]byte(s)))
}

// Rule appends a thematic break.
func (b *Builder) Rule() {
	parent := b.current()
	parent.AppendChild(parent, ast.NewThematicBreak())
}

// Heading appends an ATX heading of the given level.
func (b *Builder) Heading(level int, f func(*Builder)) {
	b.Tag(ast.NewHeading(level), f)
}

// BlockQuote appends a block quote.
func (b *Builder) BlockQuote(f func(*Builder)) {
	b.Tag(ast.NewBlockquote(), f)
}

// List appends a tight bullet list.
func (b *Builder) List(f func(*Builder)) {
	list := ast.NewList('*')
	list.IsTight = true
	b.Tag(list, f)
}

// Item appends a list item holding a single line of inline content.
func (b *Builder) Item(f func(*Builder)) {
	b.Tag(ast.NewListItem(2), func(b *Builder) {
		b.Tag(ast.NewTextBlock(), f)
	})
}

// Link appends an inline link to dest.
func (b *Builder) Link(dest string, f func(*Builder)) {
	link := ast.NewLink()
	link.Destination = []byte(dest)
	b.Tag(link, f)
}

// Document returns the root node built so far.
func (b *Builder) Document() *ast.Document {
	return b.doc
}

// Render writes the document as Markdown to w.
func (b *Builder) Render(w io.Writer) error {
	return Render(w, b.doc, nil)
}

// String renders the document, returning "" if it holds unsupported nodes.
func (b *Builder) String() string {
	var sb strings.Builder
	if err := b.Render(&sb); err != nil {
		return ""
	}
	return sb.String()
}
