package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/starford/mdbook-backlinks/internal/apperr"
	"github.com/starford/mdbook-backlinks/internal/backlinks"
	"github.com/starford/mdbook-backlinks/internal/book"
	"github.com/starford/mdbook-backlinks/internal/checksum"
	"github.com/starford/mdbook-backlinks/internal/paths"
)

const checksumKey = "graph_checksum"

// ChapterRow represents a row in the chapters table.
type ChapterRow struct {
	Path     string
	Name     string
	Number   book.SectionNumber
	Position int
}

// Edge is a link from one chapter to another.
type Edge struct {
	Source string
	Target string
}

// ReplaceGraph stores the chapters of b and the edges of idx, replacing
// whatever graph was stored before. It reports false and writes nothing when
// the stored graph is already identical.
func (db *DB) ReplaceGraph(b *book.Book, idx *backlinks.Index) (bool, error) {
	rows, err := chapterRows(b)
	if err != nil {
		return false, err
	}
	var edges []Edge
	for _, target := range idx.Targets() {
		for _, rec := range idx.Backlinks(target) {
			edges = append(edges, Edge{Source: rec.Path.String(), Target: target.String()})
		}
	}

	sum := fingerprint(rows, edges)
	current, err := db.Checksum()
	if err != nil {
		return false, err
	}
	if current == sum {
		return false, nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return false, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.Exec(`DELETE FROM links`); err != nil {
		return false, fmt.Errorf("store: clear links: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM chapters`); err != nil {
		return false, fmt.Errorf("store: clear chapters: %w", err)
	}

	chStmt, err := tx.Prepare(`INSERT OR REPLACE INTO chapters (path, name, number, position) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return false, fmt.Errorf("store: prepare chapter insert: %w", err)
	}
	defer chStmt.Close()
	for _, r := range rows {
		number, _ := json.Marshal(r.Number)
		if _, err := chStmt.Exec(r.Path, r.Name, string(number), r.Position); err != nil {
			return false, fmt.Errorf("store: insert chapter: %w", err)
		}
	}

	if len(edges) > 0 {
		linkStmt, err := tx.Prepare(`INSERT OR IGNORE INTO links (source, target) VALUES (?, ?)`)
		if err != nil {
			return false, fmt.Errorf("store: prepare link insert: %w", err)
		}
		defer linkStmt.Close()
		for _, e := range edges {
			if _, err := linkStmt.Exec(e.Source, e.Target); err != nil {
				return false, fmt.Errorf("store: insert link: %w", err)
			}
		}
	}

	_, err = tx.Exec(`
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, checksumKey, sum)
	if err != nil {
		return false, fmt.Errorf("store: update checksum: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("store: commit: %w", err)
	}
	return true, nil
}

// Checksum returns the fingerprint of the stored graph, or empty string if
// nothing has been stored yet.
func (db *DB) Checksum() (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT value FROM meta WHERE key = ?`, checksumKey).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: checksum: %w", err)
	}
	return cs, nil
}

// Chapters returns every stored chapter in document order.
func (db *DB) Chapters() ([]ChapterRow, error) {
	rows, err := db.conn.Query(`SELECT path, name, number, position FROM chapters ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("store: chapters: %w", err)
	}
	defer rows.Close()

	var out []ChapterRow
	for rows.Next() {
		r, err := scanChapter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// GetChapter returns the chapter stored at path, or apperr.ErrNotFound.
func (db *DB) GetChapter(path string) (*ChapterRow, error) {
	row := db.conn.QueryRow(`SELECT path, name, number, position FROM chapters WHERE path = ?`, path)
	r, err := scanChapter(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	return r, err
}

// Backlinks returns the chapters linking to target, ordered the same way as
// the rendered block.
func (db *DB) Backlinks(target string) ([]backlinks.Record, error) {
	rows, err := db.conn.Query(`
		SELECT c.path, c.name, c.number, c.position
		FROM links l
		JOIN chapters c ON c.path = l.source
		WHERE l.target = ?
	`, target)
	if err != nil {
		return nil, fmt.Errorf("store: backlinks: %w", err)
	}
	defer rows.Close()

	var out []backlinks.Record
	for rows.Next() {
		r, err := scanChapter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, backlinks.Record{
			Number: r.Number,
			Name:   r.Name,
			Path:   paths.Path(r.Path),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return backlinks.Ordered(out), nil
}

// Graph returns every chapter and every edge.
func (db *DB) Graph() ([]ChapterRow, []Edge, error) {
	nodes, err := db.Chapters()
	if err != nil {
		return nil, nil, err
	}

	rows, err := db.conn.Query(`SELECT source, target FROM links ORDER BY source, target`)
	if err != nil {
		return nil, nil, fmt.Errorf("store: graph: %w", err)
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.Source, &e.Target); err != nil {
			return nil, nil, err
		}
		edges = append(edges, e)
	}
	return nodes, edges, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanChapter(s scanner) (*ChapterRow, error) {
	var (
		r      ChapterRow
		number string
	)
	if err := s.Scan(&r.Path, &r.Name, &number, &r.Position); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(number), &r.Number); err != nil {
		return nil, fmt.Errorf("store: decode number of %s: %w", r.Path, err)
	}
	return &r, nil
}

func chapterRows(b *book.Book) ([]ChapterRow, error) {
	var rows []ChapterRow
	for ch := range b.Chapters() {
		if ch.IsDraft() {
			continue
		}
		p, err := paths.Normalize(*ch.SourcePath)
		if err != nil {
			return nil, fmt.Errorf("store: chapter %q: %w", ch.Name, err)
		}
		rows = append(rows, ChapterRow{
			Path:     p.String(),
			Name:     ch.Name,
			Number:   ch.Number,
			Position: len(rows),
		})
	}
	return rows, nil
}

// fingerprint hashes a canonical text form of the graph.
func fingerprint(rows []ChapterRow, edges []Edge) string {
	h := checksum.New()
	for _, r := range rows {
		h.Record("c", strconv.Itoa(r.Position), r.Path, r.Name, r.Number.String())
	}
	for _, e := range edges {
		h.Record("l", e.Source, e.Target)
	}
	return h.Sum()
}
