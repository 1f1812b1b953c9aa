// Package kv is the key value storage abstraction documents and design documents are persisted in.
// Providers register themselves with the registry package.
package kv

// DB is a transactional key value database
type DB interface {
	// Tx runs fn in a transaction. Update transactions are committed when fn returns nil.
	Tx(isUpdate bool, fn func(Tx) error) error
	// Batch returns a write batch for bulk loading
	Batch() Batch
	// DropPrefix deletes every key starting with one of the prefixes
	DropPrefix(prefix ...[]byte) error
	Close() error
}

// IterOpts configure an iterator
type IterOpts struct {
	Prefix []byte `json:"prefix"`
}

// Tx is a key value transaction. Get returns a nil value when the key does not exist.
type Tx interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	NewIterator(opts IterOpts) Iterator
}

// Iterator iterates over keys in byte order
type Iterator interface {
	Close()
	Valid() bool
	Item() Item
	Next()
}

// Item is a key value pair
type Item interface {
	Key() []byte
	Value() ([]byte, error)
}

// Batch is a write only batch
type Batch interface {
	Flush() error
	Set(key, value []byte) error
}
