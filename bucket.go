// Package viewkit hosts documents and design documents in a key value store and serves map/reduce view queries
// over them.
package viewkit

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/segmentio/ksuid"

	"github.com/viewkit/viewkit/errors"
	"github.com/viewkit/viewkit/index"
	"github.com/viewkit/viewkit/internal/safe"
	"github.com/viewkit/viewkit/kv"
	_ "github.com/viewkit/viewkit/kv/badger"
	"github.com/viewkit/viewkit/kv/registry"
	"github.com/viewkit/viewkit/logging"
	"github.com/viewkit/viewkit/query"
)

var (
	docPrefix    = []byte("docs.")
	designPrefix = []byte("design.")
)

func docKey(id string) []byte {
	return append(append([]byte{}, docPrefix...), id...)
}

func designKey(name string) []byte {
	return append(append([]byte{}, designPrefix...), name...)
}

type storedDocument struct {
	Revision string `json:"rev"`
	Body     []byte `json:"body"`
}

type design struct {
	doc   *DesignDocument
	views map[string]*View
}

// Bucket stores documents and design documents and serves view queries over them
type Bucket struct {
	db      kv.DB
	logger  logging.Logger
	designs *safe.Map[*design]
}

// Open opens a bucket on the configured kv provider
func Open(ctx context.Context, cfg Config) (*Bucket, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.logLevel(), map[string]any{"provider": cfg.Provider})
	if err != nil {
		return nil, err
	}
	db, err := registry.Open(cfg.Provider, cfg.Params)
	if err != nil {
		return nil, err
	}
	logger.Debug(ctx, "bucket opened", map[string]any{"params": cfg.Params})
	return New(db, logger), nil
}

// New creates a bucket on an open kv database
func New(db kv.DB, logger logging.Logger) *Bucket {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Bucket{
		db:      db,
		logger:  logger,
		designs: safe.NewMap[*design](nil),
	}
}

// Put stores a document body under id and returns its new revision
func (b *Bucket) Put(ctx context.Context, id string, body []byte) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", errors.New(errors.Validation, errors.BadRequest, "empty document id")
	}
	rev := ksuid.New().String()
	bits, err := json.Marshal(storedDocument{Revision: rev, Body: body})
	if err != nil {
		return "", errors.Wrap(err, errors.Internal, errors.InternalError, "failed to encode document %s", id)
	}
	if err := b.db.Tx(true, func(tx kv.Tx) error {
		return tx.Set(docKey(id), bits)
	}); err != nil {
		return "", errors.Wrap(err, errors.Internal, errors.InternalError, "failed to store document %s", id)
	}
	b.logger.Debug(ctx, "document stored", map[string]any{"doc.id": id, "doc.rev": rev})
	return rev, nil
}

// PutMany stores documents by id in a single batch
func (b *Bucket) PutMany(ctx context.Context, docs map[string][]byte) error {
	batch := b.db.Batch()
	ids := lo.Keys(docs)
	sort.Strings(ids)
	for _, id := range ids {
		bits, err := json.Marshal(storedDocument{Revision: ksuid.New().String(), Body: docs[id]})
		if err != nil {
			return errors.Wrap(err, errors.Internal, errors.InternalError, "failed to encode document %s", id)
		}
		if err := batch.Set(docKey(id), bits); err != nil {
			return errors.Wrap(err, errors.Internal, errors.InternalError, "failed to store document %s", id)
		}
	}
	if err := batch.Flush(); err != nil {
		return errors.Wrap(err, errors.Internal, errors.InternalError, "failed to flush documents")
	}
	b.logger.Debug(ctx, "documents stored", map[string]any{"count": len(ids)})
	return nil
}

// Get returns the document stored under id
func (b *Bucket) Get(ctx context.Context, id string) (index.Document, error) {
	var doc index.Document
	err := b.db.Tx(false, func(tx kv.Tx) error {
		bits, err := tx.Get(docKey(id))
		if err != nil {
			return err
		}
		if bits == nil {
			return errors.New(errors.NotFound, errors.NotFoundError, "document %s does not exist", id)
		}
		doc, err = decodeDocument(id, bits)
		return err
	})
	if err != nil {
		if errors.Is(err, errors.NotFoundError) {
			return doc, err
		}
		return doc, errors.Wrap(err, errors.Internal, errors.InternalError, "failed to load document %s", id)
	}
	return doc, nil
}

// Delete removes the document stored under id
func (b *Bucket) Delete(ctx context.Context, id string) error {
	err := b.db.Tx(true, func(tx kv.Tx) error {
		bits, err := tx.Get(docKey(id))
		if err != nil {
			return err
		}
		if bits == nil {
			return errors.New(errors.NotFound, errors.NotFoundError, "document %s does not exist", id)
		}
		return tx.Delete(docKey(id))
	})
	if err != nil {
		if errors.Is(err, errors.NotFoundError) {
			return err
		}
		return errors.Wrap(err, errors.Internal, errors.InternalError, "failed to delete document %s", id)
	}
	b.logger.Debug(ctx, "document deleted", map[string]any{"doc.id": id})
	return nil
}

// Flush deletes every document. Design documents are kept and their views empty on the next query.
func (b *Bucket) Flush(ctx context.Context) error {
	if err := b.db.DropPrefix(docPrefix); err != nil {
		return errors.Wrap(err, errors.Internal, errors.InternalError, "failed to flush documents")
	}
	b.logger.Info(ctx, "bucket flushed", map[string]any{})
	return nil
}

// Documents returns every stored document in id order
func (b *Bucket) Documents(ctx context.Context) ([]index.Document, error) {
	var docs []index.Document
	err := b.db.Tx(false, func(tx kv.Tx) error {
		iter := tx.NewIterator(kv.IterOpts{Prefix: docPrefix})
		defer iter.Close()
		for ; iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := iter.Item()
			bits, err := item.Value()
			if err != nil {
				return err
			}
			doc, err := decodeDocument(string(item.Key()[len(docPrefix):]), bits)
			if err != nil {
				return err
			}
			docs = append(docs, doc)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.Internal, errors.InternalError, "failed to list documents")
	}
	return docs, nil
}

func decodeDocument(id string, bits []byte) (index.Document, error) {
	var stored storedDocument
	if err := json.Unmarshal(bits, &stored); err != nil {
		return index.Document{}, errors.Wrap(err, errors.Internal, errors.InternalError, "corrupt document %s", id)
	}
	return index.Document{ID: id, Revision: stored.Revision, Body: stored.Body}, nil
}

// PutDesign parses, compiles and stores a design document. Its views start with empty indexes.
func (b *Bucket) PutDesign(ctx context.Context, name string, content []byte) (*DesignDocument, error) {
	doc, err := ParseDesignDocument(name, content)
	if err != nil {
		return nil, err
	}
	views, err := doc.compile(b, b.logger)
	if err != nil {
		return nil, err
	}
	if err := b.db.Tx(true, func(tx kv.Tx) error {
		return tx.Set(designKey(doc.Name), doc.raw)
	}); err != nil {
		return nil, errors.Wrap(err, errors.Internal, errors.InternalError, "failed to store design document %s", doc.Name)
	}
	b.designs.Set(doc.Name, &design{doc: doc, views: views})
	b.logger.Info(ctx, "design document stored", map[string]any{"design": doc.Name, "views": doc.ViewNames()})
	return doc, nil
}

// GetDesign returns a stored design document
func (b *Bucket) GetDesign(ctx context.Context, name string) (*DesignDocument, error) {
	d, err := b.design(ctx, name)
	if err != nil {
		return nil, err
	}
	return d.doc, nil
}

// DeleteDesign removes a design document and drops its views
func (b *Bucket) DeleteDesign(ctx context.Context, name string) error {
	name = strings.TrimPrefix(name, DesignPrefix)
	err := b.db.Tx(true, func(tx kv.Tx) error {
		bits, err := tx.Get(designKey(name))
		if err != nil {
			return err
		}
		if bits == nil {
			return errors.New(errors.NotFound, errors.NotFoundError, "design document %s does not exist", name)
		}
		return tx.Delete(designKey(name))
	})
	if err != nil {
		if errors.Is(err, errors.NotFoundError) {
			return err
		}
		return errors.Wrap(err, errors.Internal, errors.InternalError, "failed to delete design document %s", name)
	}
	b.designs.Del(name)
	b.logger.Info(ctx, "design document deleted", map[string]any{"design": name})
	return nil
}

// Designs returns the names of the stored design documents
func (b *Bucket) Designs(ctx context.Context) ([]string, error) {
	var names []string
	err := b.db.Tx(false, func(tx kv.Tx) error {
		iter := tx.NewIterator(kv.IterOpts{Prefix: designPrefix})
		defer iter.Close()
		for ; iter.Valid(); iter.Next() {
			names = append(names, string(iter.Item().Key()[len(designPrefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.Internal, errors.InternalError, "failed to list design documents")
	}
	return names, nil
}

// design returns the compiled design document, loading it from storage when it is not cached
func (b *Bucket) design(ctx context.Context, name string) (*design, error) {
	name = strings.TrimPrefix(name, DesignPrefix)
	return b.designs.GetOrCreate(name, func() (*design, error) {
		var content []byte
		if err := b.db.Tx(false, func(tx kv.Tx) error {
			bits, err := tx.Get(designKey(name))
			content = bits
			return err
		}); err != nil {
			return nil, errors.Wrap(err, errors.Internal, errors.InternalError, "failed to load design document %s", name)
		}
		if content == nil {
			return nil, errors.New(errors.NotFound, errors.NotFoundError, "design document %s does not exist", name)
		}
		doc, err := ParseDesignDocument(name, content)
		if err != nil {
			return nil, err
		}
		views, err := doc.compile(b, b.logger)
		if err != nil {
			return nil, err
		}
		b.logger.Debug(ctx, "design document loaded", map[string]any{"design": name})
		return &design{doc: doc, views: views}, nil
	})
}

// View returns a compiled view of a design document
func (b *Bucket) View(ctx context.Context, ddoc, view string) (*View, error) {
	d, err := b.design(ctx, ddoc)
	if err != nil {
		return nil, err
	}
	v, ok := d.views[view]
	if !ok {
		return nil, errors.New(errors.NotFound, errors.NotFoundError, "view %s/%s does not exist", d.doc.Name, view)
	}
	return v, nil
}

// QueryView refreshes a view and runs a query against it
func (b *Bucket) QueryView(ctx context.Context, ddoc, view string, params map[string]string) (*query.Result, error) {
	v, err := b.View(ctx, ddoc, view)
	if err != nil {
		return nil, err
	}
	return v.Query(ctx, params)
}

// Close closes the underlying kv database
func (b *Bucket) Close(ctx context.Context) error {
	b.logger.Sync(ctx)
	return b.db.Close()
}
