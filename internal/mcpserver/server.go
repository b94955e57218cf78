// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the persisted backlink graph via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/mdbook-backlinks/internal/apperr"
	"github.com/starford/mdbook-backlinks/internal/backlinks"
	"github.com/starford/mdbook-backlinks/internal/book"
	"github.com/starford/mdbook-backlinks/internal/paths"
	"github.com/starford/mdbook-backlinks/internal/store"
)

// Server wraps the MCP server with the backlinks tools.
type Server struct {
	mcp     *server.MCPServer
	idx     store.GraphIndex
	heading string
}

// New creates a new MCP server with all tools registered. heading is the
// title used when rendering a backlinks block.
func New(idx store.GraphIndex, heading string) *Server {
	if heading == "" {
		heading = backlinks.DefaultHeading
	}
	s := &Server{idx: idx, heading: heading}

	s.mcp = server.NewMCPServer(
		"mdbook-backlinks",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_chapters",
		mcp.WithDescription("List the chapters of the last built book in document order."),
	), s.listChapters)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all chapters that link to the specified chapter."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Source path of the chapter (e.g. b/last_chapter.md)")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("render_backlinks",
		mcp.WithDescription("Render the Markdown backlinks block that the preprocessor appends to a chapter. "+
			"See the "+FragmentFormatURI+" resource for the format."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Source path of the chapter")),
	), s.renderBacklinks)

	s.mcp.AddResource(
		mcp.NewResource(FragmentFormatURI, "Backlinks Fragment Format",
			mcp.WithResourceDescription("Format and ordering rules of the appended backlinks block."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFragmentFormatResource,
	)

	return s
}

// Listen serves MCP over the given streams until ctx is cancelled or in is
// closed. Transport errors are written to errLog.
func (s *Server) Listen(ctx context.Context, in io.Reader, out io.Writer, errLog *log.Logger) error {
	stdio := server.NewStdioServer(s.mcp)
	if errLog != nil {
		stdio.SetErrorLogger(errLog)
	}
	return stdio.Listen(ctx, in, out)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

type chapterJSON struct {
	Path   string `json:"path"`
	Name   string `json:"name"`
	Number string `json:"number,omitempty"`
}

func (s *Server) listChapters(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rows, err := s.idx.Chapters()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out := make([]chapterJSON, 0, len(rows))
	for _, r := range rows {
		out = append(out, chapterJSON{Path: r.Path, Name: r.Name, Number: r.Number.String()})
	}
	data, _ := json.MarshalIndent(out, "", "  ")
	return mcp.NewToolResultText(string(data)), nil
}

// lookup normalizes the path argument and loads its backlinks.
func (s *Server) lookup(req mcp.CallToolRequest) (paths.Path, []backlinks.Record, error) {
	raw, err := req.RequireString("path")
	if err != nil {
		return "", nil, err
	}
	target, err := paths.Normalize(raw)
	if err != nil {
		return "", nil, err
	}
	if _, err := s.idx.GetChapter(target.String()); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return "", nil, fmt.Errorf("not found: %s", target)
		}
		return "", nil, err
	}
	recs, err := s.idx.Backlinks(target.String())
	if err != nil {
		return "", nil, err
	}
	return target, recs, nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, recs, err := s.lookup(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(recs) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	lines := make([]string, 0, len(recs))
	for _, r := range recs {
		lines = append(lines, r.Path.String())
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) renderBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	target, recs, err := s.lookup(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ch := book.NewChapter("", "", target.String(), nil)
	ok, err := backlinks.Splice(ch, target, recs, backlinks.SpliceOptions{Heading: s.heading})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !ok {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return mcp.NewToolResultText(strings.TrimPrefix(ch.Content, "\n\n")), nil
}

func (s *Server) readFragmentFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      FragmentFormatURI,
			MIMEType: "text/markdown",
			Text:     FragmentFormat,
		},
	}, nil
}
