package mdwriter

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/yuin/goldmark/ast"
)

// Render serializes the tree rooted at n as Markdown. source backs any
// *ast.Text segments, as produced by goldmark's parser; trees built with
// Builder only hold *ast.String and need no source.
//
// Top-level blocks are separated by blank lines, block quote lines carry a
// " > " prefix and bullet items a "* " marker. No trailing newline is written.
func Render(w io.Writer, n ast.Node, source []byte) error {
	r := &writer{source: source}
	lines, err := r.block(n)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, strings.Join(lines, "\n"))
	return err
}

type writer struct {
	source []byte
}

func (r *writer) block(n ast.Node) ([]string, error) {
	switch n := n.(type) {
	case *ast.Document:
		return r.children(n, true)
	case *ast.ThematicBreak:
		return []string{"---"}, nil
	case *ast.Heading:
		text, err := r.inline(n)
		if err != nil {
			return nil, err
		}
		return []string{strings.Repeat("#", n.Level) + " " + text}, nil
	case *ast.Paragraph, *ast.TextBlock:
		text, err := r.inline(n)
		if err != nil {
			return nil, err
		}
		return strings.Split(text, "\n"), nil
	case *ast.Blockquote:
		inner, err := r.children(n, true)
		if err != nil {
			return nil, err
		}
		lines := make([]string, 0, len(inner)+1)
		lines = append(lines, " >")
		for _, line := range inner {
			if line == "" {
				lines = append(lines, " >")
			} else {
				lines = append(lines, " > "+line)
			}
		}
		return lines, nil
	case *ast.List:
		return r.list(n)
	default:
		return nil, fmt.Errorf("mdwriter: unsupported block node %s", n.Kind())
	}
}

// children renders the block children of n, separated by a blank line when
// loose is set.
func (r *writer) children(n ast.Node, loose bool) ([]string, error) {
	var lines []string
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		sub, err := r.block(c)
		if err != nil {
			return nil, err
		}
		if loose && len(lines) > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, sub...)
	}
	return lines, nil
}

func (r *writer) list(n *ast.List) ([]string, error) {
	var lines []string
	number := n.Start
	if number == 0 {
		number = 1
	}
	for item := n.FirstChild(); item != nil; item = item.NextSibling() {
		marker := string(n.Marker) + " "
		if n.IsOrdered() {
			marker = strconv.Itoa(number) + string(n.Marker) + " "
			number++
		}
		body, err := r.children(item, !n.IsTight)
		if err != nil {
			return nil, err
		}
		if !n.IsTight && len(lines) > 0 {
			lines = append(lines, "")
		}
		indent := strings.Repeat(" ", len(marker))
		for i, line := range body {
			switch {
			case i == 0:
				lines = append(lines, marker+line)
			case line == "":
				lines = append(lines, "")
			default:
				lines = append(lines, indent+line)
			}
		}
		if len(body) == 0 {
			lines = append(lines, strings.TrimRight(marker, " "))
		}
	}
	return lines, nil
}

// inline renders the inline children of a leaf block.
func (r *writer) inline(n ast.Node) (string, error) {
	var sb strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		err := ast.Walk(c, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
			switch node := node.(type) {
			case *ast.String:
				if entering {
					sb.WriteString(escapeText(string(node.Value)))
				}
			case *ast.Text:
				if entering {
					sb.WriteString(escapeText(string(node.Segment.Value(r.source))))
					switch {
					case node.HardLineBreak():
						sb.WriteString("\\\n")
					case node.SoftLineBreak():
						sb.WriteByte('\n')
					}
				}
			case *ast.Emphasis:
				sb.WriteString(strings.Repeat("*", node.Level))
			case *ast.CodeSpan:
				if entering {
					sb.WriteString(r.codeSpan(node))
				}
				return ast.WalkSkipChildren, nil
			case *ast.Link:
				if entering {
					sb.WriteByte('[')
				} else {
					sb.WriteString("](")
					sb.WriteString(escapeDestination(string(node.Destination)))
					if len(node.Title) > 0 {
						sb.WriteString(` "`)
						sb.WriteString(strings.ReplaceAll(string(node.Title), `"`, `\"`))
						sb.WriteByte('"')
					}
					sb.WriteByte(')')
				}
			default:
				return ast.WalkStop, fmt.Errorf("mdwriter: unsupported inline node %s", node.Kind())
			}
			return ast.WalkContinue, nil
		})
		if err != nil {
			return "", err
		}
	}
	return sb.String(), nil
}

func (r *writer) codeSpan(n *ast.CodeSpan) string {
	var raw strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch c := c.(type) {
		case *ast.Text:
			raw.Write(c.Segment.Value(r.source))
		case *ast.String:
			raw.Write(c.Value)
		}
	}
	code := raw.String()
	fence := "`"
	for strings.Contains(code, fence) {
		fence += "`"
	}
	if strings.HasPrefix(code, "`") || strings.HasSuffix(code, "`") {
		code = " " + code + " "
	}
	return fence + code + fence
}

const textSpecials = "\\`*_[]<>#"

func escapeText(s string) string {
	if !strings.ContainsAny(s, textSpecials) {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s) + 4)
	for _, c := range s {
		if strings.ContainsRune(textSpecials, c) {
			sb.WriteByte('\\')
		}
		sb.WriteRune(c)
	}
	return sb.String()
}

// escapeDestination writes dest in the plain form when possible and in the
// pointy-bracket form when it holds spaces or brackets.
func escapeDestination(dest string) string {
	if dest == "" {
		return "<>"
	}
	if strings.ContainsAny(dest, " \t\n<>") {
		r := strings.NewReplacer("<", `\<`, ">", `\>`, "\n", "")
		return "<" + r.Replace(dest) + ">"
	}
	r := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`)
	return r.Replace(dest)
}
