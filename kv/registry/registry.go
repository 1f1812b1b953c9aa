// Package registry maps provider names to key value database openers
package registry

import (
	"sort"
	"sync"

	"github.com/samber/lo"

	"github.com/viewkit/viewkit/errors"
	"github.com/viewkit/viewkit/kv"
)

// KVDBOpener opens a key value database
type KVDBOpener func(params map[string]any) (kv.DB, error)

var (
	mu                sync.RWMutex
	registeredOpeners = map[string]KVDBOpener{}
)

// Register registers a KVDBOpener opener by name
func Register(name string, opener KVDBOpener) {
	mu.Lock()
	defer mu.Unlock()
	registeredOpeners[name] = opener
}

// Open opens a registered key value database
func Open(name string, params map[string]any) (kv.DB, error) {
	mu.RLock()
	opener, ok := registeredOpeners[name]
	mu.RUnlock()
	if !ok {
		return nil, errors.New(errors.NotFound, errors.NotFoundError, "kv provider %s is not registered", name)
	}
	db, err := opener(params)
	if err != nil {
		return nil, errors.Wrap(err, errors.Internal, errors.InternalError, "failed to open kv provider %s", name)
	}
	return db, nil
}

// Providers returns the names of the registered providers in sorted order
func Providers() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := lo.Keys(registeredOpeners)
	sort.Strings(names)
	return names
}
