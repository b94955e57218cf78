// Package paths resolves chapter paths lexically, without touching a file system.
package paths

import (
	"fmt"
	"strings"

	"github.com/starford/mdbook-backlinks/internal/apperr"
)

// Path is a root-relative, slash-separated chapter path with no "." or ".."
// segments. Two chapters are the same iff their Paths are equal.
type Path string

// String returns the path as a string.
func (p Path) String() string {
	return string(p)
}

// Segments splits p into its components. The root path has none.
func (p Path) Segments() []string {
	if p == "" {
		return nil
	}
	return strings.Split(string(p), "/")
}

// Normalize resolves "." and ".." in p. A relative p is anchored to the book
// root; a leading "/" means p is already anchored there. Popping past the
// root fails with apperr.ErrPathEscapesRoot.
func Normalize(p string) (Path, error) {
	parts := strings.Split(p, "/")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			if len(out) == 0 {
				return "", fmt.Errorf("paths: normalize %q: %w", p, apperr.ErrPathEscapesRoot)
			}
			out = out[:len(out)-1]
		default:
			out = append(out, part)
		}
	}
	return Path(strings.Join(out, "/")), nil
}

// Dir returns the directory holding p, or the root for top-level files.
func Dir(p Path) Path {
	i := strings.LastIndexByte(string(p), '/')
	if i < 0 {
		return ""
	}
	return p[:i]
}

// Join resolves rel against the directory dir. A rel starting with "/" is
// resolved from the book root instead.
func Join(dir Path, rel string) (Path, error) {
	if strings.HasPrefix(rel, "/") || dir == "" {
		return Normalize(rel)
	}
	return Normalize(string(dir) + "/" + rel)
}

// Relative returns the slash-separated path that leads from the directory base
// to target: "ch2.md" for a sibling, "../a/ch1.md" across directories.
func Relative(base, target Path) (string, error) {
	if target == "" {
		return "", fmt.Errorf("paths: relative %q -> %q: %w", base, target, apperr.ErrMissingRelativePath)
	}
	from, to := base.Segments(), target.Segments()

	common := 0
	for common < len(from) && common < len(to) && from[common] == to[common] {
		common++
	}

	parts := make([]string, 0, len(from)-common+len(to)-common)
	for range from[common:] {
		parts = append(parts, "..")
	}
	parts = append(parts, to[common:]...)
	if len(parts) == 0 {
		return ".", nil
	}
	return strings.Join(parts, "/"), nil
}
