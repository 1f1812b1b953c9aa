package viewkit

import (
	"context"
	"sync"
	"time"

	"github.com/spf13/cast"

	"github.com/viewkit/viewkit/errors"
	"github.com/viewkit/viewkit/index"
	"github.com/viewkit/viewkit/logging"
	"github.com/viewkit/viewkit/metrics"
	"github.com/viewkit/viewkit/query"
	"github.com/viewkit/viewkit/reduce"
)

// DocumentSource lists the documents a view indexes
type DocumentSource interface {
	Documents(ctx context.Context) ([]index.Document, error)
}

// View is a compiled map/reduce view over a document source. Refreshes and queries are serialized.
type View struct {
	mu      sync.Mutex
	name    string
	source  DocumentSource
	mapFn   index.MapFunc
	reducer reduce.Func
	index   *index.Index
	engine  *query.Engine
	logger  logging.Logger
}

// NewView creates a view. reducer may be nil.
func NewView(name string, source DocumentSource, mapFn index.MapFunc, reducer reduce.Func, logger logging.Logger) *View {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.WithTags(context.Background(), map[string]any{"view": name})
	return &View{
		name:    name,
		source:  source,
		mapFn:   mapFn,
		reducer: reducer,
		index:   index.New(logger),
		engine:  query.NewEngine(logger),
		logger:  logger,
	}
}

// Name returns the "<design>/<view>" name of the view
func (v *View) Name() string {
	return v.name
}

// HasReduce reports whether the view has a reducer
func (v *View) HasReduce() bool {
	return v.reducer != nil
}

// Refresh runs one index generation over docs
func (v *View) Refresh(ctx context.Context, docs []index.Document) index.Stats {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.refresh(ctx, docs)
}

func (v *View) refresh(ctx context.Context, docs []index.Document) index.Stats {
	v.index.Prepare()
	for _, doc := range docs {
		// map failures only drop the document's rows
		_ = v.index.IndexDoc(ctx, doc, v.mapFn)
	}
	v.index.SetDone(ctx)
	stats := v.index.Stats()
	metrics.IndexGenerations.WithLabelValues(v.name, cast.ToString(stats.Resorted)).Inc()
	metrics.IndexedDocuments.WithLabelValues(v.name, "mapped").Add(float64(stats.Mapped))
	metrics.IndexedDocuments.WithLabelValues(v.name, "reused").Add(float64(stats.Reused))
	metrics.IndexedDocuments.WithLabelValues(v.name, "failed").Add(float64(stats.Failed))
	metrics.IndexRows.WithLabelValues(v.name).Set(float64(stats.Rows))
	return stats
}

// Query refreshes the index from the document source and executes a query with the given raw parameters
func (v *View) Query(ctx context.Context, params map[string]string) (*query.Result, error) {
	start := time.Now()
	v.mu.Lock()
	defer v.mu.Unlock()
	docs, err := v.source.Documents(ctx)
	if err != nil {
		metrics.QueryTotal.WithLabelValues(v.name, "error").Inc()
		return nil, errors.Wrap(err, errors.Internal, errors.InternalError, "failed to list documents")
	}
	v.refresh(ctx, docs)
	result, err := v.engine.Execute(ctx, params, v.index, v.reducer)
	metrics.QueryDuration.WithLabelValues(v.name).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.QueryTotal.WithLabelValues(v.name, errors.Extract(err).Type).Inc()
		return nil, err
	}
	metrics.QueryTotal.WithLabelValues(v.name, "ok").Inc()
	return result, nil
}

// Stats returns the statistics of the latest index generation
func (v *View) Stats() index.Stats {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.index.Stats()
}
