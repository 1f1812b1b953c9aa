package errors_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/viewkit/viewkit/errors"
)

func TestErrors(t *testing.T) {
	t.Run("wrap nil error", func(t *testing.T) {
		var err error
		err = errors.Wrap(err, errors.NotFound, errors.NotFoundError, "")
		assert.Nil(t, err)
	})
	t.Run("wrap error", func(t *testing.T) {
		var err = fmt.Errorf("not found")
		err = errors.Wrap(err, errors.NotFound, errors.NotFoundError, "")
		assert.Equal(t, errors.NotFound, errors.Extract(err).Code)
		assert.Equal(t, "not found", errors.Extract(err).Reason)
	})
	t.Run("new error", func(t *testing.T) {
		err := errors.New(errors.NotFound, errors.NotFoundError, "missing %s", "doc")
		assert.Equal(t, errors.NotFound, errors.Extract(err).Code)
		assert.True(t, errors.Is(err, errors.NotFoundError))
	})
	t.Run("new error then wrap", func(t *testing.T) {
		err := errors.New(0, errors.InternalError, "boom")
		err = errors.Wrap(err, errors.NotFound, "", "while loading")
		e := errors.Extract(err)
		assert.Equal(t, errors.NotFound, e.Code)
		assert.Equal(t, "while loading: boom", e.Reason)
	})
	t.Run("wrap leaves the original untouched", func(t *testing.T) {
		original := errors.New(errors.NotFound, errors.NotFoundError, "missing")
		wrapped := errors.Wrap(original, errors.Internal, errors.InternalError, "while loading")
		assert.Equal(t, errors.InternalError, errors.Extract(wrapped).Type)
		assert.Equal(t, "while loading: missing", errors.Extract(wrapped).Reason)
		e := errors.Extract(original)
		assert.Equal(t, errors.NotFound, e.Code)
		assert.Equal(t, errors.NotFoundError, e.Type)
		assert.Equal(t, "missing", e.Reason)
	})
	t.Run("extract foreign error", func(t *testing.T) {
		e := errors.Extract(fmt.Errorf("plain"))
		assert.Equal(t, errors.InternalError, e.Type)
		assert.Equal(t, 500, e.Status())
	})
	t.Run("parse error json string", func(t *testing.T) {
		err := errors.ParseError("invalid value for %s parameter", "boolean")
		assert.JSONEq(t, `{"error":"query_parse_error","reason":"invalid value for boolean parameter"}`, err.Error())
		assert.Equal(t, 400, errors.Extract(err).Status())
	})
}
