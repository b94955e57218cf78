package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/starford/mdbook-backlinks/internal/apperr"
	"github.com/starford/mdbook-backlinks/internal/paths"
	"github.com/starford/mdbook-backlinks/internal/store"
)

// Handler holds API route handlers.
type Handler struct {
	idx store.GraphIndex
}

// NewHandler creates a new Handler.
func NewHandler(idx store.GraphIndex) *Handler {
	return &Handler{idx: idx}
}

// chapterPath extracts and normalizes the chapter path from the URL wildcard.
// Supports encoded slashes from OpenAPI clients (e.g. b%2Fch2.md).
func chapterPath(r *http.Request) (paths.Path, error) {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if decoded, err := url.PathUnescape(raw); err == nil {
		raw = decoded
	}
	p, err := paths.Normalize(raw)
	if err != nil {
		return "", err
	}
	if p == "" {
		return "", apperr.ErrInvalidInput
	}
	return p, nil
}

func writePathError(w http.ResponseWriter, err error) {
	if errors.Is(err, apperr.ErrPathEscapesRoot) {
		writeError(w, http.StatusBadRequest, "path escapes book root")
		return
	}
	writeError(w, http.StatusBadRequest, "path is required")
}

// ListChapters handles GET /api/chapters.
//
//	@Summary		List chapters in document order
//	@Tags			chapters
//	@Produce		json
//	@Success		200	{object}	ChapterListResponse
//	@Security		BearerAuth
//	@Router			/chapters [get]
func (h *Handler) ListChapters(w http.ResponseWriter, r *http.Request) {
	rows, err := h.idx.Chapters()
	if err != nil {
		writeInternal(w, "list chapters failed", err)
		return
	}
	items := make([]ChapterItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, chapterItem(row))
	}
	writeJSON(w, http.StatusOK, ChapterListResponse{Chapters: items, Total: len(items)})
}

// GetChapter handles GET /api/chapters/*.
//
//	@Summary		Get a single chapter by source path
//	@Tags			chapters
//	@Produce		json
//	@Param			path	path		string	true	"Chapter source path"
//	@Success		200		{object}	ChapterItem
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/chapters/{path} [get]
func (h *Handler) GetChapter(w http.ResponseWriter, r *http.Request) {
	p, err := chapterPath(r)
	if err != nil {
		writePathError(w, err)
		return
	}
	row, err := h.idx.GetChapter(p.String())
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
		} else {
			writeInternal(w, "get chapter failed", err, slog.String("path", p.String()))
		}
		return
	}
	writeJSON(w, http.StatusOK, chapterItem(*row))
}

// Backlinks handles GET /api/backlinks/*.
//
//	@Summary		List the chapters linking to a chapter
//	@Tags			backlinks
//	@Produce		json
//	@Param			path	path		string	true	"Target chapter source path"
//	@Success		200		{object}	BacklinksResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/backlinks/{path} [get]
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	target, err := chapterPath(r)
	if err != nil {
		writePathError(w, err)
		return
	}
	if _, err := h.idx.GetChapter(target.String()); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
		} else {
			writeInternal(w, "backlinks failed", err, slog.String("path", target.String()))
		}
		return
	}

	recs, err := h.idx.Backlinks(target.String())
	if err != nil {
		writeInternal(w, "backlinks failed", err, slog.String("path", target.String()))
		return
	}

	items := make([]BacklinkItem, 0, len(recs))
	for _, rec := range recs {
		link, err := paths.Relative(paths.Dir(target), rec.Path)
		if err != nil {
			slog.Warn("backlink without relative path", slog.String("source", rec.Path.String()), slog.String("error", err.Error()))
			continue
		}
		items = append(items, BacklinkItem{
			ChapterItem: ChapterItem{Path: rec.Path.String(), Name: rec.Name, Number: rec.Number.String()},
			Link:        link,
		})
	}
	writeJSON(w, http.StatusOK, BacklinksResponse{Target: target.String(), Backlinks: items})
}

// Graph handles GET /api/graph.
//
//	@Summary		Get the chapter link graph
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	GraphResponse
//	@Security		BearerAuth
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	rows, edges, err := h.idx.Graph()
	if err != nil {
		writeInternal(w, "graph failed", err)
		return
	}
	resp := GraphResponse{
		Nodes: make([]GraphNode, 0, len(rows)),
		Links: make([]GraphLink, 0, len(edges)),
	}
	for _, row := range rows {
		resp.Nodes = append(resp.Nodes, GraphNode{ID: row.Path, Title: row.Name})
	}
	for _, e := range edges {
		resp.Links = append(resp.Links, GraphLink{Source: e.Source, Target: e.Target})
	}
	writeJSON(w, http.StatusOK, resp)
}
