// Package book models the mdbook document tree exchanged with the host over
// the preprocessor protocol.
package book

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/starford/mdbook-backlinks/internal/apperr"
)

// Book is an ordered forest of items. Keys the preprocessor does not know
// about are kept and written back unchanged.
type Book struct {
	Sections []Item

	extra map[string]json.RawMessage
}

// Item is one entry of the book forest: a chapter, a separator or a part title.
type Item struct {
	Chapter   *Chapter
	Separator bool
	PartTitle string

	raw json.RawMessage // unrecognised variant, re-emitted verbatim
}

// Chapter is a single content unit.
type Chapter struct {
	Name        string
	Content     string
	Number      SectionNumber
	SubItems    []Item
	Path        *string
	SourcePath  *string
	ParentNames []string

	extra map[string]json.RawMessage
}

// SectionNumber is a hierarchical chapter number such as 2.1. Unnumbered
// chapters carry a nil SectionNumber.
type SectionNumber []uint32

// String renders the number the way mdbook prints it in the summary ("2.1.").
func (n SectionNumber) String() string {
	if len(n) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, part := range n {
		sb.WriteString(strconv.FormatUint(uint64(part), 10))
		sb.WriteByte('.')
	}
	return sb.String()
}

// Compare orders numbers element by element; a shorter prefix sorts first and
// a nil number sorts before every numbered one.
func (n SectionNumber) Compare(other SectionNumber) int {
	switch {
	case n == nil && other == nil:
		return 0
	case n == nil:
		return -1
	case other == nil:
		return 1
	}
	for i := 0; i < len(n) && i < len(other); i++ {
		if n[i] != other[i] {
			if n[i] < other[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(n) < len(other):
		return -1
	case len(n) > len(other):
		return 1
	}
	return 0
}

// NewChapter builds a chapter whose path and source path are both sourcePath.
// An empty sourcePath produces a draft chapter.
func NewChapter(name, content, sourcePath string, number SectionNumber, parentNames ...string) *Chapter {
	ch := &Chapter{
		Name:        name,
		Content:     content,
		Number:      number,
		ParentNames: parentNames,
	}
	if sourcePath != "" {
		p, sp := sourcePath, sourcePath
		ch.Path, ch.SourcePath = &p, &sp
	}
	return ch
}

// ChapterItem wraps ch into an Item.
func ChapterItem(ch *Chapter) Item {
	return Item{Chapter: ch}
}

// IsDraft reports whether the chapter has no source file.
func (c *Chapter) IsDraft() bool {
	return c.SourcePath == nil || *c.SourcePath == ""
}

type chapterJSON struct {
	Name        string        `json:"name"`
	Content     string        `json:"content"`
	Number      SectionNumber `json:"number"`
	SubItems    []Item        `json:"sub_items"`
	Path        *string       `json:"path"`
	SourcePath  *string       `json:"source_path"`
	ParentNames []string      `json:"parent_names"`
}

var chapterKeys = []string{"name", "content", "number", "sub_items", "path", "source_path", "parent_names"}

// UnmarshalJSON decodes an mdbook chapter object.
func (c *Chapter) UnmarshalJSON(data []byte) error {
	var known chapterJSON
	if err := json.Unmarshal(data, &known); err != nil {
		return fmt.Errorf("book: decode chapter: %w", err)
	}
	extra, err := leftovers(data, chapterKeys)
	if err != nil {
		return fmt.Errorf("book: decode chapter: %w", err)
	}
	*c = Chapter{
		Name:        known.Name,
		Content:     known.Content,
		Number:      known.Number,
		SubItems:    known.SubItems,
		Path:        known.Path,
		SourcePath:  known.SourcePath,
		ParentNames: known.ParentNames,
		extra:       extra,
	}
	return nil
}

// MarshalJSON encodes the chapter in mdbook's shape, including unknown keys.
func (c Chapter) MarshalJSON() ([]byte, error) {
	subItems := c.SubItems
	if subItems == nil {
		subItems = []Item{}
	}
	parents := c.ParentNames
	if parents == nil {
		parents = []string{}
	}
	return mergeObject(chapterJSON{
		Name:        c.Name,
		Content:     c.Content,
		Number:      c.Number,
		SubItems:    subItems,
		Path:        c.Path,
		SourcePath:  c.SourcePath,
		ParentNames: parents,
	}, c.extra)
}

// UnmarshalJSON decodes mdbook's externally tagged BookItem enum.
func (it *Item) UnmarshalJSON(data []byte) error {
	*it = Item{}
	trimmed := bytes.TrimSpace(data)

	var tag string
	if err := json.Unmarshal(trimmed, &tag); err == nil {
		if tag == "Separator" {
			it.Separator = true
		} else {
			it.raw = append(json.RawMessage(nil), trimmed...)
		}
		return nil
	}

	var variant map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &variant); err != nil {
		return fmt.Errorf("book: decode item: %w", apperr.ErrInvalidInput)
	}
	switch {
	case variant["Chapter"] != nil:
		var ch Chapter
		if err := json.Unmarshal(variant["Chapter"], &ch); err != nil {
			return err
		}
		it.Chapter = &ch
	case variant["PartTitle"] != nil:
		if err := json.Unmarshal(variant["PartTitle"], &it.PartTitle); err != nil {
			return fmt.Errorf("book: decode part title: %w", err)
		}
	default:
		it.raw = append(json.RawMessage(nil), trimmed...)
	}
	return nil
}

// MarshalJSON encodes the item as mdbook's externally tagged enum.
func (it Item) MarshalJSON() ([]byte, error) {
	switch {
	case it.Chapter != nil:
		return json.Marshal(map[string]*Chapter{"Chapter": it.Chapter})
	case it.Separator:
		return json.Marshal("Separator")
	case it.raw != nil:
		return it.raw, nil
	default:
		return json.Marshal(map[string]string{"PartTitle": it.PartTitle})
	}
}

type bookJSON struct {
	Sections []Item `json:"sections"`
}

// UnmarshalJSON decodes an mdbook book object.
func (b *Book) UnmarshalJSON(data []byte) error {
	var known bookJSON
	if err := json.Unmarshal(data, &known); err != nil {
		return fmt.Errorf("book: decode book: %w", err)
	}
	extra, err := leftovers(data, []string{"sections"})
	if err != nil {
		return fmt.Errorf("book: decode book: %w", err)
	}
	*b = Book{Sections: known.Sections, extra: extra}
	return nil
}

// MarshalJSON encodes the book, including unknown keys.
func (b Book) MarshalJSON() ([]byte, error) {
	sections := b.Sections
	if sections == nil {
		sections = []Item{}
	}
	return mergeObject(bookJSON{Sections: sections}, b.extra)
}

// leftovers returns every key of the JSON object data not listed in known.
func leftovers(data []byte, known []string) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for _, k := range known {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

// mergeObject marshals v and adds extra keys that v does not define.
func mergeObject(v any, extra map[string]json.RawMessage) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return data, err
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	for k, raw := range extra {
		if _, ok := obj[k]; !ok {
			obj[k] = raw
		}
	}
	return json.Marshal(obj)
}
