package store

import "github.com/starford/mdbook-backlinks/internal/backlinks"

// GraphIndex defines the read side of the persisted graph.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type GraphIndex interface {
	Chapters() ([]ChapterRow, error)
	GetChapter(path string) (*ChapterRow, error)
	Backlinks(target string) ([]backlinks.Record, error)
	Graph() ([]ChapterRow, []Edge, error)
	Checksum() (string, error)
}

// Verify *DB satisfies GraphIndex at compile time.
var _ GraphIndex = (*DB)(nil)
