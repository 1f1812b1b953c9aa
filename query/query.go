// Package query executes view queries (range scans, key filters, grouping, reduce and pagination) over the sorted
// projections of a view index.
package query

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/viewkit/viewkit/collate"
	"github.com/viewkit/viewkit/errors"
	"github.com/viewkit/viewkit/index"
	"github.com/viewkit/viewkit/logging"
	"github.com/viewkit/viewkit/reduce"
)

// Snapshot is a finalized, read-only view of an index
type Snapshot interface {
	SortedAscending() []*index.Row
	SortedDescending() []*index.Row
}

// Row is a single result row. Reduced rows carry no document id.
type Row struct {
	ID      string
	Key     collate.Value
	Value   collate.Value
	Reduced bool
}

// MarshalJSON satisfies the json Marshaler interface
func (r Row) MarshalJSON() ([]byte, error) {
	if r.Reduced {
		return json.Marshal(struct {
			Key   collate.Value `json:"key"`
			Value collate.Value `json:"value"`
		}{r.Key, r.Value})
	}
	return json.Marshal(struct {
		ID    string        `json:"id"`
		Key   collate.Value `json:"key"`
		Value collate.Value `json:"value"`
	}{r.ID, r.Key, r.Value})
}

// Result is the query result envelope. TotalRows is the size of the scanned projection, regardless of filtering,
// reduction or pagination.
type Result struct {
	Rows      []Row          `json:"rows"`
	TotalRows int            `json:"total_rows"`
	DebugInfo map[string]any `json:"debug_info,omitempty"`
}

// Engine executes queries
type Engine struct {
	logger logging.Logger
}

// NewEngine creates a query engine
func NewEngine(logger logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{logger: logger}
}

type bounds struct {
	startKey       *collate.Value
	endKey         *collate.Value
	startKeyDocID  *string
	endKeyDocID    *string
	inclusiveStart bool
	inclusiveEnd   bool
}

func (b bounds) admits(row *index.Row) bool {
	if b.startKey != nil {
		c := collate.Compare(row.Key, *b.startKey, false)
		if c == 0 && b.startKeyDocID != nil {
			c = strings.Compare(row.ID, *b.startKeyDocID)
		}
		if c < 0 || (!b.inclusiveStart && c == 0) {
			return false
		}
	}
	if b.endKey != nil {
		c := collate.Compare(row.Key, *b.endKey, false)
		if c == 0 && b.endKeyDocID != nil {
			c = strings.Compare(row.ID, *b.endKeyDocID)
		}
		if c > 0 || (!b.inclusiveEnd && c == 0) {
			return false
		}
	}
	return true
}

// Execute runs a query given its raw parameters. reducer may be nil for map only views. Invalid parameters fail
// with a query_parse_error.
func (e *Engine) Execute(ctx context.Context, raw map[string]string, snapshot Snapshot, reducer reduce.Func) (*Result, error) {
	start := time.Now()
	opts, err := ParseOptions(raw)
	if err != nil {
		return nil, err
	}
	b := bounds{
		startKey:       opts.StartKey,
		endKey:         opts.EndKey,
		startKeyDocID:  opts.StartKeyDocID,
		endKeyDocID:    opts.EndKeyDocID,
		inclusiveStart: opts.InclusiveStart,
		inclusiveEnd:   opts.InclusiveEnd,
	}
	if opts.Descending {
		b.startKey, b.endKey = b.endKey, b.startKey
		b.startKeyDocID, b.endKeyDocID = b.endKeyDocID, b.startKeyDocID
		b.inclusiveStart, b.inclusiveEnd = b.inclusiveEnd, b.inclusiveStart
	}
	if b.startKey != nil && b.endKey != nil && collate.Compare(*b.startKey, *b.endKey, false) > 0 {
		return nil, errors.ParseError("No rows can match your key range, reverse your start_key and end_key or set descending=false")
	}
	doReduce := reducer != nil
	if opts.Reduce != nil {
		if *opts.Reduce && reducer == nil {
			return nil, errors.ParseError("Invalid URL parameter `reduce` for map view.")
		}
		doReduce = *opts.Reduce
	}
	if opts.GroupLevel != nil && opts.Group != nil {
		return nil, errors.ParseError("Query parameter `group_level` is not compatible with `group`")
	}
	if opts.Key != nil && opts.Keys != nil {
		return nil, errors.ParseError("`keys` and `key` are incompatible. Specify one or the other")
	}
	filter := newKeyFilterFromOptions(opts)

	projection := "ascending"
	rows := snapshot.SortedAscending()
	if opts.Descending {
		projection = "descending"
		rows = snapshot.SortedDescending()
	}

	var matched []*index.Row
	for _, row := range rows {
		if filter != nil && !filter.Exists(row.Key) {
			continue
		}
		if !b.admits(row) {
			continue
		}
		matched = append(matched, row)
	}

	groupLevel := 0
	switch {
	case opts.GroupLevel != nil:
		groupLevel = *opts.GroupLevel
	case opts.Group != nil && *opts.Group:
		groupLevel = -1
	}

	var results []Row
	if doReduce {
		results, err = reduceRows(matched, groupLevel, reducer)
		if err != nil {
			return nil, err
		}
	} else {
		results = make([]Row, 0, len(matched))
		for _, row := range matched {
			results = append(results, Row{ID: row.ID, Key: row.Key, Value: row.Value})
		}
	}
	results = paginate(results, opts.Skip, opts.Limit)

	result := &Result{
		Rows:      results,
		TotalRows: len(rows),
	}
	if opts.Debug {
		result.DebugInfo = map[string]any{
			"projection":  projection,
			"scanned":     len(rows),
			"matched":     len(matched),
			"reduce":      doReduce,
			"group_level": groupLevel,
			"key_filter":  filter != nil,
			"stale":       opts.Stale,
		}
	}
	e.logger.Debug(ctx, "view query executed", map[string]any{
		"projection": projection,
		"matched":    len(matched),
		"returned":   len(results),
		"reduce":     doReduce,
		"duration":   float64(time.Since(start).Microseconds()) / float64(1000),
	})
	return result, nil
}

type group struct {
	key    collate.Value
	values []collate.Value
}

// reduceRows partitions rows by normalized key in first seen order and reduces each group
func reduceRows(rows []*index.Row, groupLevel int, reducer reduce.Func) ([]Row, error) {
	var (
		groups []*group
		keys   []collate.Value
	)
	for _, row := range rows {
		key := collate.NormKey(row.Key, groupLevel)
		var g *group
		if n := len(groups); n > 0 && collate.Equal(groups[n-1].key, key) {
			g = groups[n-1]
		} else if at := collate.IndexOf(keys, key); at >= 0 {
			g = groups[at]
		} else {
			g = &group{key: key}
			groups = append(groups, g)
			keys = append(keys, key)
		}
		g.values = append(g.values, row.Value)
	}
	results := make([]Row, 0, len(groups))
	for _, g := range groups {
		value, err := reducer(g.key, g.values, false)
		if err != nil {
			return nil, errors.Wrap(err, errors.Internal, errors.ReduceError, "reduce failed for key %s", g.key.String())
		}
		results = append(results, Row{Key: g.key, Value: value, Reduced: true})
	}
	return results, nil
}

func paginate(rows []Row, skip, limit *int) []Row {
	if skip != nil {
		if *skip >= len(rows) {
			rows = rows[:0]
		} else {
			rows = rows[*skip:]
		}
	}
	if limit != nil && *limit < len(rows) {
		rows = rows[:*limit]
	}
	return rows
}
