package book

import "iter"

// Chapters yields every chapter of the book in document order, descending
// into sub-items. Separators and part titles are skipped.
func (b *Book) Chapters() iter.Seq[*Chapter] {
	return func(yield func(*Chapter) bool) {
		walkItems(b.Sections, yield)
	}
}

func walkItems(items []Item, yield func(*Chapter) bool) bool {
	for i := range items {
		ch := items[i].Chapter
		if ch == nil {
			continue
		}
		if !yield(ch) {
			return false
		}
		if !walkItems(ch.SubItems, yield) {
			return false
		}
	}
	return true
}

// MutChapters calls fn on every chapter in document order and stops at the
// first error.
func (b *Book) MutChapters(fn func(*Chapter) error) error {
	for ch := range b.Chapters() {
		if err := fn(ch); err != nil {
			return err
		}
	}
	return nil
}
