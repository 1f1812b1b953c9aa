package reduce_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viewkit/viewkit/collate"
	"github.com/viewkit/viewkit/reduce"
)

func numbers(n ...float64) []collate.Value {
	var out []collate.Value
	for _, f := range n {
		out = append(out, collate.NewNumber(f))
	}
	return out
}

func TestBuiltins(t *testing.T) {
	t.Run("count", func(t *testing.T) {
		fn, ok := reduce.Builtin(reduce.Count)
		require.True(t, ok)
		v, err := fn(collate.Value{}, numbers(1, 1, 1), false)
		assert.NoError(t, err)
		assert.EqualValues(t, 3, v.Number())
	})
	t.Run("count rereduce", func(t *testing.T) {
		fn, _ := reduce.Builtin(reduce.Count)
		v, err := fn(collate.Value{}, numbers(3, 2), true)
		assert.NoError(t, err)
		assert.EqualValues(t, 5, v.Number())
	})
	t.Run("count ignores value types", func(t *testing.T) {
		fn, _ := reduce.Builtin(reduce.Count)
		v, err := fn(collate.Value{}, []collate.Value{collate.NewString("x"), {}}, false)
		assert.NoError(t, err)
		assert.EqualValues(t, 2, v.Number())
	})
	t.Run("sum", func(t *testing.T) {
		fn, _ := reduce.Builtin(reduce.Sum)
		v, err := fn(collate.Value{}, numbers(0, 1, 2, 3, 4, 5, 6, 7, 8), false)
		assert.NoError(t, err)
		assert.EqualValues(t, 36, v.Number())
		v, err = fn(collate.Value{}, numbers(10, 26), true)
		assert.NoError(t, err)
		assert.EqualValues(t, 36, v.Number())
	})
	t.Run("sum rejects non numbers", func(t *testing.T) {
		fn, _ := reduce.Builtin(reduce.Sum)
		_, err := fn(collate.Value{}, []collate.Value{collate.NewString("1")}, false)
		assert.Error(t, err)
	})
	t.Run("stats yields null", func(t *testing.T) {
		fn, ok := reduce.Builtin(reduce.Stats)
		require.True(t, ok)
		v, err := fn(collate.Value{}, numbers(1, 2), false)
		assert.NoError(t, err)
		assert.True(t, v.IsNull())
	})
	t.Run("unknown builtin", func(t *testing.T) {
		assert.False(t, reduce.IsBuiltin("_median"))
		assert.True(t, reduce.IsBuiltin(" _sum "))
	})
}
