package query

import (
	"github.com/viewkit/viewkit/collate"
)

// KeyFilter answers whether a key is one of the requested keys. Scalar and single element array keys are looked
// up in constant time; other keys are matched by exact comparison.
type KeyFilter struct {
	numbers       map[float64]struct{}
	strings       map[string]struct{}
	singleNumbers map[float64]struct{}
	singleStrings map[string]struct{}
	general       []collate.Value
}

// NewKeyFilter builds a filter over keys
func NewKeyFilter(keys []collate.Value) *KeyFilter {
	f := &KeyFilter{
		numbers:       map[float64]struct{}{},
		strings:       map[string]struct{}{},
		singleNumbers: map[float64]struct{}{},
		singleStrings: map[string]struct{}{},
	}
	for _, key := range keys {
		switch {
		case isQuick(key):
			insertQuick(key, f.numbers, f.strings)
		case isSingleQuick(key):
			insertQuick(key.Array()[0], f.singleNumbers, f.singleStrings)
		default:
			f.general = append(f.general, key)
		}
	}
	return f
}

func newKeyFilterFromOptions(opts *Options) *KeyFilter {
	switch {
	case opts.Keys != nil:
		return NewKeyFilter(opts.Keys)
	case opts.Key != nil:
		return NewKeyFilter([]collate.Value{*opts.Key})
	default:
		return nil
	}
}

// Exists reports whether key is one of the filter keys
func (f *KeyFilter) Exists(key collate.Value) bool {
	switch {
	case isQuick(key):
		return checkQuick(key, f.numbers, f.strings)
	case isSingleQuick(key):
		return checkQuick(key.Array()[0], f.singleNumbers, f.singleStrings)
	default:
		return collate.IndexOf(f.general, key) >= 0
	}
}

func isQuick(key collate.Value) bool {
	return key.Kind() == collate.Number || key.Kind() == collate.String
}

func isSingleQuick(key collate.Value) bool {
	return key.Kind() == collate.Array && key.Len() == 1 && isQuick(key.Array()[0])
}

func insertQuick(key collate.Value, numbers map[float64]struct{}, strings map[string]struct{}) {
	if key.Kind() == collate.Number {
		numbers[key.Number()] = struct{}{}
		return
	}
	strings[key.Text()] = struct{}{}
}

func checkQuick(key collate.Value, numbers map[float64]struct{}, strings map[string]struct{}) bool {
	if key.Kind() == collate.Number {
		_, ok := numbers[key.Number()]
		return ok
	}
	_, ok := strings[key.Text()]
	return ok
}
