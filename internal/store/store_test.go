package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/starford/mdbook-backlinks/internal/apperr"
	"github.com/starford/mdbook-backlinks/internal/backlinks"
	"github.com/starford/mdbook-backlinks/internal/book"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "mdbook-backlinks-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() {
		os.Remove(f.Name())
		os.Remove(f.Name() + "-wal")
		os.Remove(f.Name() + "-shm")
	})

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleBook() *book.Book {
	return &book.Book{Sections: []book.Item{
		book.ChapterItem(book.NewChapter("index", "[last](b/last.md)", "index.md", nil)),
		book.ChapterItem(book.NewChapter("ch1", "[last](../b/last.md) [self](ch1.md)", "a/ch1.md", book.SectionNumber{1})),
		book.ChapterItem(book.NewChapter("last", "", "b/last.md", book.SectionNumber{2, 1})),
		book.ChapterItem(book.NewChapter("draft", "", "", nil)),
	}}
}

func replace(t *testing.T, db *DB, b *book.Book) bool {
	t.Helper()
	idx, err := backlinks.Build(b)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	changed, err := db.ReplaceGraph(b, idx)
	if err != nil {
		t.Fatalf("ReplaceGraph: %v", err)
	}
	return changed
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	for _, table := range []string{"chapters", "links", "meta"} {
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestReplaceGraph_Chapters(t *testing.T) {
	db := testDB(t)
	if !replace(t, db, sampleBook()) {
		t.Fatal("first replace should report a change")
	}

	rows, err := db.Chapters()
	if err != nil {
		t.Fatalf("Chapters: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d chapters, want 3 (draft excluded)", len(rows))
	}
	if rows[0].Path != "index.md" || rows[1].Path != "a/ch1.md" || rows[2].Path != "b/last.md" {
		t.Errorf("unexpected order: %+v", rows)
	}
	if rows[0].Number != nil {
		t.Errorf("index number = %v, want nil", rows[0].Number)
	}
	if rows[2].Number.Compare(book.SectionNumber{2, 1}) != 0 {
		t.Errorf("last number = %v, want 2.1.", rows[2].Number)
	}
}

func TestReplaceGraph_UnchangedIsSkipped(t *testing.T) {
	db := testDB(t)
	replace(t, db, sampleBook())
	first, _ := db.Checksum()
	if first == "" {
		t.Fatal("checksum not stored")
	}

	if replace(t, db, sampleBook()) {
		t.Error("identical graph should not report a change")
	}

	b := sampleBook()
	b.Sections = b.Sections[:2]
	if !replace(t, db, b) {
		t.Error("smaller graph should report a change")
	}
	second, _ := db.Checksum()
	if second == first {
		t.Error("checksum should change with the graph")
	}
	rows, _ := db.Chapters()
	if len(rows) != 2 {
		t.Errorf("got %d chapters after replace, want 2", len(rows))
	}
}

func TestBacklinks(t *testing.T) {
	db := testDB(t)
	replace(t, db, sampleBook())

	recs, err := db.Backlinks("b/last.md")
	if err != nil {
		t.Fatalf("Backlinks: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d backlinks, want 2", len(recs))
	}
	// Unnumbered chapters sort first.
	if recs[0].Name != "index" || recs[1].Name != "ch1" {
		t.Errorf("unexpected order: %+v", recs)
	}

	self, err := db.Backlinks("a/ch1.md")
	if err != nil {
		t.Fatalf("Backlinks self: %v", err)
	}
	if len(self) != 1 || self[0].Path != "a/ch1.md" {
		t.Errorf("self link = %+v", self)
	}

	none, err := db.Backlinks("index.md")
	if err != nil {
		t.Fatalf("Backlinks none: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("index.md should have no backlinks, got %+v", none)
	}
}

func TestGetChapter(t *testing.T) {
	db := testDB(t)
	replace(t, db, sampleBook())

	ch, err := db.GetChapter("a/ch1.md")
	if err != nil {
		t.Fatalf("GetChapter: %v", err)
	}
	if ch.Name != "ch1" {
		t.Errorf("name = %q, want ch1", ch.Name)
	}

	if _, err := db.GetChapter("missing.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestGraph(t *testing.T) {
	db := testDB(t)
	replace(t, db, sampleBook())

	nodes, edges, err := db.Graph()
	if err != nil {
		t.Fatalf("Graph: %v", err)
	}
	if len(nodes) != 3 {
		t.Errorf("got %d nodes, want 3", len(nodes))
	}
	want := []Edge{
		{Source: "a/ch1.md", Target: "a/ch1.md"},
		{Source: "a/ch1.md", Target: "b/last.md"},
		{Source: "index.md", Target: "b/last.md"},
	}
	if len(edges) != len(want) {
		t.Fatalf("got %d edges, want %d: %+v", len(edges), len(want), edges)
	}
	for i := range want {
		if edges[i] != want[i] {
			t.Errorf("edge %d = %+v, want %+v", i, edges[i], want[i])
		}
	}
}

func TestWatch_ReportsReplacement(t *testing.T) {
	db := testDB(t)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var sums []string
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = Watch(ctx, db, logger, func(sum string) {
			mu.Lock()
			sums = append(sums, sum)
			mu.Unlock()
		})
	}()

	time.Sleep(100 * time.Millisecond)

	// A second connection stands in for a separate preprocessor run.
	writer, err := Open(db.Path())
	if err != nil {
		t.Fatalf("Open writer: %v", err)
	}
	defer writer.Close()
	replace(t, writer, sampleBook())
	want, _ := writer.Checksum()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(sums)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(sums) == 0 {
		t.Fatal("watcher did not report the replaced graph")
	}
	if sums[len(sums)-1] != want {
		t.Errorf("reported checksum = %q, want %q", sums[len(sums)-1], want)
	}

	cancel()
	<-done
}
