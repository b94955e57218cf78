// Package testutil provides shared test helpers for books and databases.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/mdbook-backlinks/internal/backlinks"
	"github.com/starford/mdbook-backlinks/internal/book"
	"github.com/starford/mdbook-backlinks/internal/store"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "mdbook-backlinks-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() {
		os.Remove(dbFile.Name())
		os.Remove(dbFile.Name() + "-wal")
		os.Remove(dbFile.Name() + "-shm")
	})

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// SampleBook returns a small book where four chapters link to
// b/last_chapter.md.
func SampleBook() *book.Book {
	return &book.Book{Sections: []book.Item{
		book.ChapterItem(book.NewChapter("index", "Start at [the end](b/last_chapter.md).", "index.md", nil)),
		book.ChapterItem(book.NewChapter("ch1", "[last](../b/last_chapter.md)", "a/ch1.md", book.SectionNumber{1, 1})),
		book.ChapterItem(book.NewChapter("ch2", "[last](last_chapter.md)", "b/ch2.md", book.SectionNumber{2, 2})),
		book.ChapterItem(book.NewChapter("ch3", "[last](last_chapter.md)", "b/ch3.md", book.SectionNumber{2, 1})),
		book.ChapterItem(book.NewChapter("last_chapter", "", "b/last_chapter.md", book.SectionNumber{2, 3})),
	}}
}

// SeededDB returns a TestDB holding the graph of SampleBook.
func SeededDB(t *testing.T) *store.DB {
	t.Helper()
	db := TestDB(t)
	b := SampleBook()
	idx, err := backlinks.Build(b)
	if err != nil {
		t.Fatalf("build index: %v", err)
	}
	if _, err := db.ReplaceGraph(b, idx); err != nil {
		t.Fatalf("replace graph: %v", err)
	}
	return db
}
