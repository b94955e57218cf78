package mdwriter

import (
	"slices"
	"strings"
	"testing"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

func TestBuilder_BacklinksFragment(t *testing.T) {
	b := NewBuilder()
	b.Rule()
	b.BlockQuote(func(b *Builder) {
		b.Heading(4, func(b *Builder) { b.Text("Backlinks") })
		b.List(func(b *Builder) {
			b.Item(func(b *Builder) {
				b.Link("relative/path.md", func(b *Builder) { b.Text("Name") })
			})
			b.Item(func(b *Builder) {
				b.Link("../other/path.md", func(b *Builder) { b.Text("Name2") })
			})
		})
	})

	want := "---\n\n >\n > #### Backlinks\n >\n > * [Name](relative/path.md)\n > * [Name2](../other/path.md)"
	if got := b.String(); got != want {
		t.Errorf("fragment mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestBuilder_EscapesText(t *testing.T) {
	b := NewBuilder()
	b.List(func(b *Builder) {
		b.Item(func(b *Builder) {
			b.Link("a.md", func(b *Builder) { b.Text("[C#] *bold* _x_") })
		})
	})
	want := `* [\[C\#\] \*bold\* \_x\_](a.md)`
	if got := b.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestEscapeDestination(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"a/b.md", "a/b.md"},
		{"my file.md", "<my file.md>"},
		{"f(1).md", `f\(1\).md`},
		{"", "<>"},
		{"a<b>.md", `<a\<b\>.md>`},
	}
	for _, tt := range tests {
		if got := escapeDestination(tt.in); got != tt.want {
			t.Errorf("escapeDestination(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRender_ReparsesToSameLinks(t *testing.T) {
	names := []string{"Plain", "With [brackets]", "Star * and _under_", `Back\slash`}
	dests := []string{"a.md", "../b c.md", "index.md", "deep/er/y.md"}

	b := NewBuilder()
	b.List(func(b *Builder) {
		for i := range names {
			b.Item(func(b *Builder) {
				b.Link(dests[i], func(b *Builder) { b.Text(names[i]) })
			})
		}
	})

	source := []byte(b.String())
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(source))

	var gotDests []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if link, ok := n.(*ast.Link); ok && entering {
			gotDests = append(gotDests, string(link.Destination))
		}
		return ast.WalkContinue, nil
	})
	if !slices.Equal(gotDests, dests) {
		t.Errorf("destinations = %q, want %q", gotDests, dests)
	}

	var html strings.Builder
	if err := md.Convert(source, &html); err != nil {
		t.Fatalf("Convert: %v", err)
	}
	for _, name := range names {
		if !strings.Contains(html.String(), ">"+name+"</a>") {
			t.Errorf("link text %q not preserved in %s", name, html.String())
		}
	}
}

func TestRender_ParsedSource(t *testing.T) {
	source := []byte("# Title\n\nSome *emphasis* and `code`.\n\n> quoted\n\n1. one\n2. two\n")
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	var sb strings.Builder
	if err := Render(&sb, doc, source); err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := "# Title\n\nSome *emphasis* and `code`.\n\n >\n > quoted\n\n1. one\n2. two"
	if got := sb.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRender_UnsupportedNode(t *testing.T) {
	source := []byte("```go\nx\n```\n")
	doc := goldmark.New().Parser().Parse(text.NewReader(source))
	var sb strings.Builder
	if err := Render(&sb, doc, source); err == nil {
		t.Fatal("expected error for fenced code block")
	}
}

func TestBuilder_EndAtRootIsNoop(t *testing.T) {
	b := NewBuilder()
	b.End()
	b.Rule()
	if got := b.String(); got != "---" {
		t.Errorf("got %q", got)
	}
}
