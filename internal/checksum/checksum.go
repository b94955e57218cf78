// Package checksum fingerprints content so unchanged data can be detected.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Hasher accumulates records into a SHA-256 digest. Fields of a record are
// tab separated and every record ends with a newline, so moving text between
// fields changes the digest.
type Hasher struct {
	h hash.Hash
}

// New returns an empty Hasher.
func New() *Hasher {
	return &Hasher{h: sha256.New()}
}

// Record adds one record made of fields.
func (h *Hasher) Record(fields ...string) {
	h.h.Write([]byte(strings.Join(fields, "\t")))
	h.h.Write([]byte{'\n'})
}

// Sum returns the hex-encoded digest of the records added so far.
func (h *Hasher) Sum() string {
	return hex.EncodeToString(h.h.Sum(nil))
}
