package index

import (
	"strings"

	"github.com/viewkit/viewkit/collate"
)

// Row is a single emitted (key, value, id) triple. Rows are never modified after they are emitted.
type Row struct {
	Key   collate.Value `json:"key"`
	Value collate.Value `json:"value"`
	ID    string        `json:"id"`
}

// CompareRows orders rows by key (prefix comparison for array keys), then by document id
func CompareRows(a, b *Row) int {
	if c := collate.Compare(a.Key, b.Key, false); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

// DocEntry holds the rows a document emitted in a generation
type DocEntry struct {
	ID       string
	Revision string
	Rows     []*Row
}

// ContentType describes how a document body was decoded before being handed to the map function
type ContentType string

const (
	// ContentJSON is a structured (json) body
	ContentJSON ContentType = "json"
	// ContentBase64 is an opaque binary body, passed to the map function as a base64 string
	ContentBase64 ContentType = "base64"
)

// Document is the raw input to the indexer
type Document struct {
	ID       string
	Revision string
	Body     []byte
}

// Meta is the document metadata handed to the map function
type Meta struct {
	ID       string      `json:"id"`
	Revision string      `json:"rev"`
	Type     ContentType `json:"type"`
}

// EmitFunc records a row for the document currently being mapped
type EmitFunc func(key, value collate.Value)

// MapFunc maps a decoded document into zero or more rows by calling emit
type MapFunc func(doc collate.Value, meta Meta, emit EmitFunc) error
