// Package reduce holds the reduce function contract and the builtin reducers that can be selected by name.
package reduce

import (
	"strings"

	"github.com/samber/lo"

	"github.com/viewkit/viewkit/collate"
	"github.com/viewkit/viewkit/errors"
)

// Func reduces the values of a group. When rereduce is true the values are results of previous reductions.
type Func func(key collate.Value, values []collate.Value, rereduce bool) (collate.Value, error)

const (
	Count = "_count"
	Sum   = "_sum"
	Stats = "_stats"
)

var builtins = map[string]Func{
	Count: countReducer,
	Sum:   sumReducer,
	Stats: statsReducer,
}

// Builtin returns the builtin reducer with the given name
func Builtin(name string) (Func, bool) {
	fn, ok := builtins[strings.TrimSpace(name)]
	return fn, ok
}

// IsBuiltin reports whether name refers to a builtin reducer
func IsBuiltin(name string) bool {
	_, ok := Builtin(name)
	return ok
}

func countReducer(_ collate.Value, values []collate.Value, rereduce bool) (collate.Value, error) {
	if !rereduce {
		return collate.NewNumber(float64(len(values))), nil
	}
	return sumReducer(collate.Value{}, values, true)
}

func sumReducer(_ collate.Value, values []collate.Value, _ bool) (collate.Value, error) {
	for _, v := range values {
		if v.Kind() != collate.Number {
			return collate.Value{}, errors.New(errors.Internal, errors.ReduceError, "builtin _sum function requires numeric values, got %s", v.Kind())
		}
	}
	return collate.NewNumber(lo.SumBy(values, func(v collate.Value) float64 {
		return v.Number()
	})), nil
}

// statsReducer is declared so that views referencing _stats compile; it yields null.
func statsReducer(_ collate.Value, _ []collate.Value, _ bool) (collate.Value, error) {
	return collate.Value{}, nil
}
