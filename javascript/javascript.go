// Package javascript compiles javascript map and reduce function sources into view functions using the goja runtime.
// Every compiled function owns its own runtime; calls into a runtime are serialized.
package javascript

import (
	"strings"
	"sync"

	"github.com/dop251/goja"

	"github.com/viewkit/viewkit/collate"
	"github.com/viewkit/viewkit/errors"
	"github.com/viewkit/viewkit/index"
	"github.com/viewkit/viewkit/reduce"
)

const helpers = `
function sum(values) {
	var total = 0;
	for (var i = 0; i < values.length; i++) {
		total += values[i];
	}
	return total;
}
function count(values) {
	return values.length;
}
`

type runtime struct {
	mu        sync.Mutex
	vm        *goja.Runtime
	fn        goja.Callable
	parse     goja.Callable
	stringify goja.Callable
}

// functionExpression wraps a function source so it evaluates to the function. A trailing semicolon is dropped and
// the closing paren goes on its own line so a trailing line comment does not swallow it.
func functionExpression(src string) string {
	src = strings.TrimSuffix(strings.TrimSpace(src), ";")
	return "(" + src + "\n)"
}

func newRuntime(kind, src string, prelude string) (*runtime, error) {
	vm := goja.New()
	if prelude != "" {
		if _, err := vm.RunString(prelude); err != nil {
			return nil, errors.Wrap(err, errors.Internal, errors.InternalError, "failed to load %s helpers", kind)
		}
	}
	compiled, err := vm.RunString(functionExpression(src))
	if err != nil {
		return nil, errors.Wrap(err, errors.Validation, errors.InvalidDesignDocument, "failed to compile %s function", kind)
	}
	fn, ok := goja.AssertFunction(compiled)
	if !ok {
		return nil, errors.New(errors.Validation, errors.InvalidDesignDocument, "%s source is not a function", kind)
	}
	json := vm.Get("JSON").ToObject(vm)
	parse, _ := goja.AssertFunction(json.Get("parse"))
	stringify, _ := goja.AssertFunction(json.Get("stringify"))
	return &runtime{
		vm:        vm,
		fn:        fn,
		parse:     parse,
		stringify: stringify,
	}, nil
}

// toJS converts a value into a native javascript value
func (r *runtime) toJS(v collate.Value) (goja.Value, error) {
	return r.parse(goja.Undefined(), r.vm.ToValue(v.String()))
}

// fromJS converts a javascript value into a Value. undefined and values json cannot represent become null.
func (r *runtime) fromJS(v goja.Value) (collate.Value, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return collate.Value{}, nil
	}
	encoded, err := r.stringify(goja.Undefined(), v)
	if err != nil {
		return collate.Value{}, err
	}
	if goja.IsUndefined(encoded) {
		return collate.Value{}, nil
	}
	return collate.ParseJSON([]byte(encoded.String()))
}

type mapper struct {
	*runtime
	emit index.EmitFunc
}

// CompileMap compiles a javascript map function of the form function(doc, meta) { emit(key, value) }
func CompileMap(src string) (index.MapFunc, error) {
	r, err := newRuntime("map", src, "")
	if err != nil {
		return nil, err
	}
	m := &mapper{runtime: r}
	if err := r.vm.Set("emit", m.jsEmit); err != nil {
		return nil, errors.Wrap(err, errors.Internal, errors.InternalError, "failed to register emit")
	}
	return m.call, nil
}

func (m *mapper) jsEmit(call goja.FunctionCall) goja.Value {
	key, err := m.fromJS(call.Argument(0))
	if err != nil {
		panic(m.vm.NewGoError(err))
	}
	value, err := m.fromJS(call.Argument(1))
	if err != nil {
		panic(m.vm.NewGoError(err))
	}
	if m.emit != nil {
		m.emit(key, value)
	}
	return goja.Undefined()
}

func (m *mapper) call(doc collate.Value, meta index.Meta, emit index.EmitFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emit = emit
	defer func() {
		m.emit = nil
	}()
	jsDoc, err := m.toJS(doc)
	if err != nil {
		return errors.Wrap(err, errors.Internal, errors.MapError, "failed to convert document")
	}
	jsMeta := m.vm.NewObject()
	_ = jsMeta.Set("id", meta.ID)
	_ = jsMeta.Set("rev", meta.Revision)
	_ = jsMeta.Set("type", string(meta.Type))
	if _, err := m.fn(goja.Undefined(), jsDoc, jsMeta); err != nil {
		return errors.Wrap(err, errors.Internal, errors.MapError, "map function failed")
	}
	return nil
}

// CompileReduce compiles a reduce source. The source is either the name of a builtin reducer or a javascript
// function of the form function(key, values, rereduce). Javascript reducers may call sum(values) and count(values).
func CompileReduce(src string) (reduce.Func, error) {
	name := strings.TrimSpace(src)
	if fn, ok := reduce.Builtin(name); ok {
		return fn, nil
	}
	if strings.HasPrefix(name, "_") {
		return nil, errors.New(errors.Validation, errors.InvalidDesignDocument, "unknown builtin reduce function: %s", name)
	}
	r, err := newRuntime("reduce", src, helpers)
	if err != nil {
		return nil, err
	}
	return func(key collate.Value, values []collate.Value, rereduce bool) (collate.Value, error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		jsKey, err := r.toJS(key)
		if err != nil {
			return collate.Value{}, errors.Wrap(err, errors.Internal, errors.ReduceError, "failed to convert key")
		}
		jsValues, err := r.toJS(collate.NewArray(values...))
		if err != nil {
			return collate.Value{}, errors.Wrap(err, errors.Internal, errors.ReduceError, "failed to convert values")
		}
		out, err := r.fn(goja.Undefined(), jsKey, jsValues, r.vm.ToValue(rereduce))
		if err != nil {
			return collate.Value{}, errors.Wrap(err, errors.Internal, errors.ReduceError, "reduce function failed")
		}
		result, err := r.fromJS(out)
		if err != nil {
			return collate.Value{}, errors.Wrap(err, errors.Internal, errors.ReduceError, "invalid reduce result")
		}
		return result, nil
	}, nil
}
