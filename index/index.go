// Package index builds the ordered row index of a view incrementally, one generation at a time.
//
// A generation starts with Prepare, feeds every live document through IndexDoc and ends with SetDone. Documents
// whose revision did not change since the previous generation reuse their previous DocEntry without running the
// map function, and when nothing that affects the global order changed SetDone reuses the previous sorted
// projections without sorting.
package index

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/samber/lo"
	"github.com/tidwall/gjson"

	"github.com/viewkit/viewkit/collate"
	"github.com/viewkit/viewkit/errors"
	"github.com/viewkit/viewkit/logging"
)

type generation struct {
	byID       map[string]*DocEntry
	ascending  []*Row
	descending []*Row
}

func newGeneration() *generation {
	return &generation{
		byID:       map[string]*DocEntry{},
		ascending:  []*Row{},
		descending: []*Row{},
	}
}

// Stats describes the most recent generation
type Stats struct {
	Generation int  `json:"generation"`
	Mapped     int  `json:"mapped"`
	Reused     int  `json:"reused"`
	Failed     int  `json:"failed"`
	Resorted   bool `json:"resorted"`
	Rows       int  `json:"rows"`
}

// Index is the map output of a single view. It is not safe for concurrent use: callers serialize generations
// against queries.
type Index struct {
	logger    logging.Logger
	current   *generation
	prev      *generation
	sortValid bool
	indexing  *DocEntry
	stats     Stats
}

// New creates an empty index
func New(logger logging.Logger) *Index {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Index{
		logger:  logger,
		current: newGeneration(),
	}
}

// Prepare begins a new generation. The current generation becomes the previous one.
func (i *Index) Prepare() {
	i.prev = i.current
	i.current = &generation{byID: map[string]*DocEntry{}}
	i.sortValid = true
	i.indexing = nil
	i.stats = Stats{Generation: i.stats.Generation + 1}
}

// IndexDoc maps a single document into the current generation. A document whose revision is unchanged reuses its
// previous entry. A failing map function is logged and its error returned; the document contributes no rows and
// the generation carries on.
func (i *Index) IndexDoc(ctx context.Context, doc Document, fn MapFunc) error {
	var last *DocEntry
	if i.prev != nil {
		last = i.prev.byID[doc.ID]
	}
	if last != nil && last.Revision == doc.Revision {
		i.current.byID[doc.ID] = last
		i.stats.Reused++
		return nil
	}
	if last != nil && len(last.Rows) > 0 {
		// the old rows are still in the previous projections
		i.sortValid = false
	}
	body, typ := decodeBody(doc.Body)
	meta := Meta{
		ID:       doc.ID,
		Revision: doc.Revision,
		Type:     typ,
	}
	entry := &DocEntry{
		ID:       doc.ID,
		Revision: doc.Revision,
		Rows:     []*Row{},
	}
	i.indexing = entry
	err := i.runMap(fn, body, meta)
	i.indexing = nil
	if err != nil {
		i.stats.Failed++
		i.logger.Error(ctx, "map function failed", err, map[string]any{
			"doc.id":  doc.ID,
			"doc.rev": doc.Revision,
		})
		return errors.Wrap(err, errors.Internal, errors.MapError, "document %s", doc.ID)
	}
	i.current.byID[doc.ID] = entry
	i.stats.Mapped++
	return nil
}

func (i *Index) runMap(fn MapFunc, body collate.Value, meta Meta) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("map function panic: %v", r)
		}
	}()
	return fn(body, meta, i.Emit)
}

// Emit appends a row to the document currently being mapped. Emitting invalidates the sort order of the generation.
func (i *Index) Emit(key, value collate.Value) {
	if i.indexing == nil {
		i.logger.Warn(context.Background(), "emit called outside of a map function", map[string]any{
			"key": key.String(),
		})
		return
	}
	i.indexing.Rows = append(i.indexing.Rows, &Row{
		Key:   key,
		Value: value,
		ID:    i.indexing.ID,
	})
	i.sortValid = false
}

// SetDone finalizes the current generation, reusing the previous sorted projections when the order is still valid
// and sorting every row otherwise.
func (i *Index) SetDone(ctx context.Context) {
	if i.prev == nil {
		i.sortValid = false
	}
	if i.sortValid {
		for id := range i.prev.byID {
			if _, ok := i.current.byID[id]; !ok {
				i.sortValid = false
				break
			}
		}
	}
	if i.sortValid {
		i.current.ascending = i.prev.ascending
		i.current.descending = i.prev.descending
	} else {
		i.sort()
		i.stats.Resorted = true
	}
	i.prev = nil
	i.stats.Rows = len(i.current.ascending)
	i.logger.Debug(ctx, "index generation done", map[string]any{
		"generation": i.stats.Generation,
		"mapped":     i.stats.Mapped,
		"reused":     i.stats.Reused,
		"failed":     i.stats.Failed,
		"resorted":   i.stats.Resorted,
		"rows":       i.stats.Rows,
	})
}

func (i *Index) sort() {
	ids := lo.Keys(i.current.byID)
	sort.Strings(ids)
	rows := make([]*Row, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, i.current.byID[id].Rows...)
	}
	sort.SliceStable(rows, func(a, b int) bool {
		return CompareRows(rows[a], rows[b]) < 0
	})
	descending := make([]*Row, len(rows))
	for n, row := range rows {
		descending[len(rows)-1-n] = row
	}
	i.current.ascending = rows
	i.current.descending = descending
}

// SortedAscending returns the rows of the last finalized generation in collation order
func (i *Index) SortedAscending() []*Row {
	return i.current.ascending
}

// SortedDescending returns the rows of the last finalized generation in reverse collation order
func (i *Index) SortedDescending() []*Row {
	return i.current.descending
}

// SortValid reports whether the previous sort order still holds for the current generation. After SetDone it is
// true exactly when the previous projections were reused.
func (i *Index) SortValid() bool {
	return i.sortValid
}

// Stats returns statistics about the most recent generation
func (i *Index) Stats() Stats {
	return i.stats
}

// Get returns the entry of a document in the current generation
func (i *Index) Get(id string) (*DocEntry, bool) {
	entry, ok := i.current.byID[id]
	return entry, ok
}

// Len returns the number of documents in the current generation
func (i *Index) Len() int {
	return len(i.current.byID)
}

func decodeBody(body []byte) (collate.Value, ContentType) {
	if utf8.Valid(body) && gjson.ValidBytes(body) {
		if v, err := collate.ParseJSON(body); err == nil {
			return v, ContentJSON
		}
	}
	return collate.NewString(base64.StdEncoding.EncodeToString(body)), ContentBase64
}
