package api

import "github.com/starford/mdbook-backlinks/internal/store"

// ChapterItem is a chapter in API responses.
type ChapterItem struct {
	Path   string `json:"path" example:"b/last_chapter.md" validate:"required"`
	Name   string `json:"name" example:"Last chapter" validate:"required"`
	Number string `json:"number,omitempty" example:"2.3."`
}

// ChapterListResponse wraps the chapter listing.
type ChapterListResponse struct {
	Chapters []ChapterItem `json:"chapters" validate:"required"`
	Total    int           `json:"total" example:"5" validate:"required"`
}

// BacklinkItem is one entry of a backlinks block.
type BacklinkItem struct {
	ChapterItem
	Link string `json:"link" example:"../a/ch1.md" validate:"required"`
}

// BacklinksResponse lists the chapters linking to Target, in rendering order.
type BacklinksResponse struct {
	Target    string         `json:"target" example:"b/last_chapter.md" validate:"required"`
	Backlinks []BacklinkItem `json:"backlinks" validate:"required"`
}

// GraphNode is a chapter in the link graph.
type GraphNode struct {
	ID    string `json:"id" example:"a/ch1.md" validate:"required"`
	Title string `json:"title,omitempty" example:"ch1"`
}

// GraphLink is an edge in the link graph.
type GraphLink struct {
	Source string `json:"source" example:"a/ch1.md" validate:"required"`
	Target string `json:"target" example:"b/last_chapter.md" validate:"required"`
}

// GraphResponse wraps the link graph.
type GraphResponse struct {
	Nodes []GraphNode `json:"nodes" validate:"required"`
	Links []GraphLink `json:"links" validate:"required"`
}

func chapterItem(r store.ChapterRow) ChapterItem {
	return ChapterItem{Path: r.Path, Name: r.Name, Number: r.Number.String()}
}
