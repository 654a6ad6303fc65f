package domain

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"
)

// Document is one retrievable chunk produced from an uploaded source file.
type Document struct {
	ID          string
	Name        string
	KBName      string
	Content     string
	ContentHash string
	Page        int
	ChunkIndex  int
	Meta        map[string]any
	Embedding   []float32
	Score       float64
	CreatedAt   time.Time
}

// CleanContent replaces NUL bytes, which Postgres text columns reject.
func CleanContent(content string) string {
	return strings.ReplaceAll(content, "\x00", "�")
}

// HashContent returns the identity hash used for skip-existing upserts.
func HashContent(content string) string {
	sum := md5.Sum([]byte(CleanContent(content)))
	return hex.EncodeToString(sum[:])
}

// Normalize cleans the content and fills in the hash if it is missing.
func (d *Document) Normalize() {
	d.Content = CleanContent(d.Content)
	if d.ContentHash == "" {
		d.ContentHash = HashContent(d.Content)
	}
}
