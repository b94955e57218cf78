package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/mdbook-backlinks/internal/apperr"
	"github.com/starford/mdbook-backlinks/internal/book"
	"github.com/starford/mdbook-backlinks/internal/sse"
	"github.com/starford/mdbook-backlinks/internal/store"
	"github.com/starford/mdbook-backlinks/internal/testutil"
)

func preprocessorInput(t *testing.T, b *book.Book, bookToml map[string]any) io.Reader {
	t.Helper()
	ctx := map[string]any{
		"root":           t.TempDir(),
		"config":         bookToml,
		"renderer":       "html",
		"mdbook_version": "0.4.40",
	}
	data, err := json.Marshal([]any{ctx, b})
	if err != nil {
		t.Fatalf("marshal input: %v", err)
	}
	return bytes.NewReader(data)
}

func preprocess(t *testing.T, cfg *Config, in io.Reader) (*book.Book, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := Preprocess(context.Background(), WithConfig(cfg), WithIO(in, &out, &errOut))
	if err != nil {
		return nil, errOut.String(), err
	}
	var b book.Book
	if err := json.Unmarshal(out.Bytes(), &b); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out.String())
	}
	return &b, errOut.String(), nil
}

func chapterContent(t *testing.T, b *book.Book, sourcePath string) string {
	t.Helper()
	for ch := range b.Chapters() {
		if ch.SourcePath != nil && *ch.SourcePath == sourcePath {
			return ch.Content
		}
	}
	t.Fatalf("chapter %s not found", sourcePath)
	return ""
}

func TestPreprocess_Scenario(t *testing.T) {
	in := preprocessorInput(t, testutil.SampleBook(), map[string]any{"book": map[string]any{"title": "t"}})

	b, _, err := preprocess(t, NewDefaultConfig(), in)
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}

	want := "\n\n---\n\n >\n > #### Backlinks\n >\n" +
		" > * [index](../index.md)\n" +
		" > * [ch1](../a/ch1.md)\n" +
		" > * [ch3](ch3.md)\n" +
		" > * [ch2](ch2.md)"
	if got := chapterContent(t, b, "b/last_chapter.md"); got != want {
		t.Errorf("last_chapter\n got: %q\nwant: %q", got, want)
	}
	if got := chapterContent(t, b, "b/ch2.md"); got != "[last](last_chapter.md)" {
		t.Errorf("ch2 changed: %q", got)
	}
}

func TestPreprocess_BookConfigOverrides(t *testing.T) {
	toml := map[string]any{
		"preprocessor": map[string]any{
			"backlinks": map[string]any{
				"command": "mdbook-backlinks",
				"heading": "Referenced by",
			},
		},
	}
	b, _, err := preprocess(t, NewDefaultConfig(), preprocessorInput(t, testutil.SampleBook(), toml))
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	if got := chapterContent(t, b, "b/last_chapter.md"); !strings.Contains(got, " > #### Referenced by\n") {
		t.Errorf("heading not overridden: %q", got)
	}
}

func TestPreprocess_InvalidBookConfig(t *testing.T) {
	toml := map[string]any{
		"preprocessor": map[string]any{
			"backlinks": map[string]any{"on-escape": "ignore"},
		},
	}
	_, _, err := preprocess(t, NewDefaultConfig(), preprocessorInput(t, testutil.SampleBook(), toml))
	if err == nil {
		t.Fatal("expected validation error for unknown on-escape policy")
	}
}

func TestPreprocess_EscapeAbortsWithoutOutput(t *testing.T) {
	b := testutil.SampleBook()
	b.Sections = append(b.Sections, book.ChapterItem(
		book.NewChapter("out", "[x](../../outside.md)", "a/out.md", book.SectionNumber{3})))

	var out, errOut bytes.Buffer
	err := Preprocess(context.Background(),
		WithConfig(NewDefaultConfig()),
		WithIO(preprocessorInput(t, b, nil), &out, &errOut))
	if !errors.Is(err, apperr.ErrPathEscapesRoot) {
		t.Fatalf("err = %v, want ErrPathEscapesRoot", err)
	}
	if out.Len() != 0 {
		t.Errorf("output written on failure: %q", out.String())
	}
}

func TestPreprocess_EscapeSkipPolicy(t *testing.T) {
	b := testutil.SampleBook()
	b.Sections = append(b.Sections, book.ChapterItem(
		book.NewChapter("out", "[x](../../outside.md)", "a/out.md", book.SectionNumber{3})))

	cfg := NewDefaultConfig()
	cfg.Backlinks.OnEscape = "skip"
	if _, _, err := preprocess(t, cfg, preprocessorInput(t, b, nil)); err != nil {
		t.Fatalf("Preprocess with skip policy: %v", err)
	}
}

func TestPreprocess_MalformedInput(t *testing.T) {
	_, _, err := preprocess(t, NewDefaultConfig(), strings.NewReader(`{"not":"a pair"}`))
	if err == nil {
		t.Fatal("expected error for malformed input")
	}
}

func TestPreprocess_VersionMismatchOnlyWarns(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.App.MdbookVersion = "^0.5.0"

	_, logs, err := preprocess(t, cfg, preprocessorInput(t, testutil.SampleBook(), nil))
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	if !strings.Contains(logs, "mdbook version may be incompatible") {
		t.Errorf("missing version warning in logs: %s", logs)
	}
}

func TestPreprocess_PersistsGraph(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "graph.db")
	cfg := NewDefaultConfig()
	cfg.Store.Path = dbPath

	if _, _, err := preprocess(t, cfg, preprocessorInput(t, testutil.SampleBook(), nil)); err != nil {
		t.Fatalf("Preprocess: %v", err)
	}

	db, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()
	recs, err := db.Backlinks("b/last_chapter.md")
	if err != nil {
		t.Fatalf("Backlinks: %v", err)
	}
	if len(recs) != 4 {
		t.Errorf("persisted %d backlinks, want 4", len(recs))
	}
}

func TestApplyBookConfig_DatabaseRelativeToRoot(t *testing.T) {
	cfg := NewDefaultConfig()
	bctx := &book.Context{
		Root:   "/books/guide",
		Config: json.RawMessage(`{"preprocessor":{"backlinks":{"database":"build/graph.db","on-render-error":"fail"}}}`),
	}
	if err := applyBookConfig(cfg, bctx); err != nil {
		t.Fatalf("applyBookConfig: %v", err)
	}
	if cfg.Store.Path != filepath.Join("/books/guide", "build/graph.db") {
		t.Errorf("store path = %q", cfg.Store.Path)
	}
	if cfg.Backlinks.OnRenderError != "fail" {
		t.Errorf("on-render-error = %q, want fail", cfg.Backlinks.OnRenderError)
	}
	if cfg.Backlinks.Heading != "Backlinks" {
		t.Errorf("heading = %q, default should be kept", cfg.Backlinks.Heading)
	}
}

func TestVersionCompatible(t *testing.T) {
	tests := []struct {
		constraint, version string
		want                bool
		wantErr             bool
	}{
		{"^0.4.0", "0.4.40", true, false},
		{"^0.4.0", "0.5.0", false, false},
		{"^0.4.0", "not-a-version", false, true},
		{"not a constraint", "0.4.0", false, true},
	}
	for _, tt := range tests {
		got, err := versionCompatible(tt.constraint, tt.version)
		if (err != nil) != tt.wantErr {
			t.Errorf("versionCompatible(%q, %q) err = %v", tt.constraint, tt.version, err)
			continue
		}
		if got != tt.want {
			t.Errorf("versionCompatible(%q, %q) = %v, want %v", tt.constraint, tt.version, got, tt.want)
		}
	}
}

func TestSupports(t *testing.T) {
	for _, r := range []string{"html", "markdown", "epub"} {
		if !Supports(r) {
			t.Errorf("renderer %q should be supported", r)
		}
	}
}

func TestHTTPHandler(t *testing.T) {
	db := testutil.SeededDB(t)
	broker := sse.NewBroker(0)
	defer broker.Close()
	slog.SetDefault(slog.New(slog.NewJSONHandler(io.Discard, nil)))

	h := newHTTPHandler(NewDefaultConfig(), db, broker)

	for _, path := range []string{"/health/live", "/health/ready", "/api/chapters", "/api/backlinks/b/last_chapter.md"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("GET %s = %d, body = %s", path, w.Code, w.Body.String())
		}
	}
}

func TestServe_RequiresDatabase(t *testing.T) {
	var out bytes.Buffer
	err := Serve(context.Background(), WithConfig(NewDefaultConfig()), WithIO(nil, &out, &out))
	if err == nil {
		t.Fatal("serve without a database should fail")
	}
}

func TestServeMCP_RequiresDatabase(t *testing.T) {
	var out bytes.Buffer
	err := ServeMCP(context.Background(), WithConfig(NewDefaultConfig()), WithIO(nil, &out, &out))
	if err == nil {
		t.Fatal("mcp without a database should fail")
	}
}

func TestEntryPoints_RequireConfig(t *testing.T) {
	if err := Preprocess(context.Background()); err == nil {
		t.Error("Preprocess without config should fail")
	}
	if err := Serve(context.Background()); err == nil {
		t.Error("Serve without config should fail")
	}
	if err := ServeMCP(context.Background()); err == nil {
		t.Error("ServeMCP without config should fail")
	}
}
