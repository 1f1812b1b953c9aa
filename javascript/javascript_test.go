package javascript_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viewkit/viewkit/collate"
	"github.com/viewkit/viewkit/errors"
	"github.com/viewkit/viewkit/index"
	"github.com/viewkit/viewkit/javascript"
)

type emitted struct {
	key   string
	value string
}

func run(t *testing.T, fn index.MapFunc, doc string, meta index.Meta) ([]emitted, error) {
	body, err := collate.ParseJSON([]byte(doc))
	require.NoError(t, err)
	var out []emitted
	err = fn(body, meta, func(key, value collate.Value) {
		out = append(out, emitted{key: key.String(), value: value.String()})
	})
	return out, err
}

func TestCompileMap(t *testing.T) {
	meta := index.Meta{ID: "doc-1", Revision: "rev-1", Type: index.ContentJSON}
	t.Run("emit fields", func(t *testing.T) {
		fn, err := javascript.CompileMap(`function(doc, meta) { emit(doc.name, doc.age); }`)
		require.NoError(t, err)
		out, err := run(t, fn, `{"name":"alice","age":30}`, meta)
		require.NoError(t, err)
		assert.Equal(t, []emitted{{`"alice"`, `30`}}, out)
	})
	t.Run("meta is available", func(t *testing.T) {
		fn, err := javascript.CompileMap(`function(doc, meta) { emit([meta.type, meta.id], meta.rev); }`)
		require.NoError(t, err)
		out, err := run(t, fn, `{}`, meta)
		require.NoError(t, err)
		assert.Equal(t, []emitted{{`["json","doc-1"]`, `"rev-1"`}}, out)
	})
	t.Run("undefined becomes null", func(t *testing.T) {
		fn, err := javascript.CompileMap(`function(doc) { emit(doc.missing); emit(null, undefined); }`)
		require.NoError(t, err)
		out, err := run(t, fn, `{}`, meta)
		require.NoError(t, err)
		assert.Equal(t, []emitted{{"null", "null"}, {"null", "null"}}, out)
	})
	t.Run("object member order is preserved", func(t *testing.T) {
		fn, err := javascript.CompileMap(`function(doc) { emit(doc.id, {z: 1, a: 2}); }`)
		require.NoError(t, err)
		out, err := run(t, fn, `{"id":7}`, meta)
		require.NoError(t, err)
		assert.Equal(t, []emitted{{`7`, `{"z":1,"a":2}`}}, out)
	})
	t.Run("multiple emits and loops", func(t *testing.T) {
		fn, err := javascript.CompileMap(`function(doc) { doc.tags.forEach(function(tag) { emit(tag, 1); }); }`)
		require.NoError(t, err)
		out, err := run(t, fn, `{"tags":["a","b","c"]}`, meta)
		require.NoError(t, err)
		assert.Len(t, out, 3)
	})
	t.Run("named function", func(t *testing.T) {
		fn, err := javascript.CompileMap(`function byName(doc) { emit(doc.name, null); }`)
		require.NoError(t, err)
		out, err := run(t, fn, `{"name":"bob"}`, meta)
		require.NoError(t, err)
		assert.Equal(t, []emitted{{`"bob"`, "null"}}, out)
	})
	t.Run("opaque document", func(t *testing.T) {
		fn, err := javascript.CompileMap(`function(doc, meta) { if (meta.type == "base64") { emit(doc, null); } }`)
		require.NoError(t, err)
		out, err := run(t, fn, `"AAEC"`, index.Meta{ID: "bin", Type: index.ContentBase64})
		require.NoError(t, err)
		assert.Equal(t, []emitted{{`"AAEC"`, "null"}}, out)
	})
	t.Run("thrown errors are map errors", func(t *testing.T) {
		fn, err := javascript.CompileMap(`function(doc) { emit(1, 1); throw new Error("boom"); }`)
		require.NoError(t, err)
		out, err := run(t, fn, `{}`, meta)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.MapError))
		assert.Len(t, out, 1)
	})
	t.Run("trailing comment and semicolon", func(t *testing.T) {
		for _, src := range []string{
			`function(doc, meta) { emit(doc.name, null); } // keyed by name`,
			`function(doc, meta) { emit(doc.name, null); };`,
			"function(doc, meta) {\n  emit(doc.name, null);\n};\n",
		} {
			fn, err := javascript.CompileMap(src)
			require.NoError(t, err, src)
			out, err := run(t, fn, `{"name":"alice"}`, meta)
			require.NoError(t, err)
			assert.Equal(t, []emitted{{`"alice"`, "null"}}, out)
		}
	})
	t.Run("syntax error", func(t *testing.T) {
		_, err := javascript.CompileMap(`function(doc) { emit(`)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.InvalidDesignDocument))
	})
	t.Run("not a function", func(t *testing.T) {
		_, err := javascript.CompileMap(`42`)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.InvalidDesignDocument))
	})
}

func numbers(n ...float64) []collate.Value {
	var out []collate.Value
	for _, f := range n {
		out = append(out, collate.NewNumber(f))
	}
	return out
}

func TestCompileReduce(t *testing.T) {
	t.Run("builtin by name", func(t *testing.T) {
		fn, err := javascript.CompileReduce(" _count ")
		require.NoError(t, err)
		v, err := fn(collate.Value{}, numbers(5, 5), false)
		require.NoError(t, err)
		assert.EqualValues(t, 2, v.Number())
	})
	t.Run("unknown builtin", func(t *testing.T) {
		_, err := javascript.CompileReduce("_median")
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.InvalidDesignDocument))
	})
	t.Run("sum helper", func(t *testing.T) {
		fn, err := javascript.CompileReduce(`function(key, values, rereduce) { return sum(values); }`)
		require.NoError(t, err)
		v, err := fn(collate.Value{}, numbers(1, 2, 3), false)
		require.NoError(t, err)
		assert.EqualValues(t, 6, v.Number())
	})
	t.Run("trailing comment and semicolon", func(t *testing.T) {
		for _, src := range []string{
			`function(k, v, r) { return sum(v); } // total`,
			`function(k, v, r) { return sum(v); };`,
		} {
			fn, err := javascript.CompileReduce(src)
			require.NoError(t, err, src)
			v, err := fn(collate.Value{}, numbers(1, 2), false)
			require.NoError(t, err)
			assert.EqualValues(t, 3, v.Number())
		}
	})
	t.Run("count helper and rereduce", func(t *testing.T) {
		fn, err := javascript.CompileReduce(`function(key, values, rereduce) { return rereduce ? sum(values) : count(values); }`)
		require.NoError(t, err)
		v, err := fn(collate.Value{}, numbers(9, 9, 9), false)
		require.NoError(t, err)
		assert.EqualValues(t, 3, v.Number())
		v, err = fn(collate.Value{}, numbers(3, 4), true)
		require.NoError(t, err)
		assert.EqualValues(t, 7, v.Number())
	})
	t.Run("key is passed", func(t *testing.T) {
		fn, err := javascript.CompileReduce(`function(key, values) { return {key: key, n: values.length}; }`)
		require.NoError(t, err)
		v, err := fn(collate.NewArray(collate.NewString("odd")), numbers(1), false)
		require.NoError(t, err)
		assert.Equal(t, `{"key":["odd"],"n":1}`, v.String())
	})
	t.Run("thrown errors are reduce errors", func(t *testing.T) {
		fn, err := javascript.CompileReduce(`function() { throw "nope"; }`)
		require.NoError(t, err)
		_, err = fn(collate.Value{}, nil, false)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ReduceError))
	})
}
