package http_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viewkit/viewkit"
	transport "github.com/viewkit/viewkit/transport/http"
)

const design = `{"views":{"by_name":{"map":"function(doc) { emit(doc.name, doc.age); }","reduce":"_sum"}}}`

func do(t *testing.T, handler http.Handler, method, target, contentType, body string) (*http.Response, string) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	resp := rec.Result()
	bits, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(bits)
}

type envelope struct {
	Rows []struct {
		ID    string          `json:"id"`
		Key   json.RawMessage `json:"key"`
		Value json.RawMessage `json:"value"`
	} `json:"rows"`
	TotalRows int            `json:"total_rows"`
	DebugInfo map[string]any `json:"debug_info"`
}

func decode(t *testing.T, body string) envelope {
	var e envelope
	require.NoError(t, json.Unmarshal([]byte(body), &e), body)
	return e
}

func TestHandler(t *testing.T) {
	ctx := context.Background()
	bucket, err := viewkit.Open(ctx, viewkit.DefaultConfig())
	require.NoError(t, err)
	defer bucket.Close(ctx)
	handler := transport.Handler(bucket, nil)

	t.Run("put design", func(t *testing.T) {
		resp, body := do(t, handler, http.MethodPut, "/_design/people", "application/json", design)
		require.Equal(t, http.StatusCreated, resp.StatusCode, body)
		assert.JSONEq(t, `{"ok":true,"id":"_design/people","views":["by_name"]}`, body)
	})
	t.Run("get design injects id", func(t *testing.T) {
		resp, body := do(t, handler, http.MethodGet, "/_design/people", "", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var doc map[string]any
		require.NoError(t, json.Unmarshal([]byte(body), &doc))
		assert.Equal(t, "_design/people", doc["_id"])
	})
	t.Run("get design as yaml", func(t *testing.T) {
		resp, body := do(t, handler, http.MethodGet, "/_design/people?format=yaml", "", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/yaml", resp.Header.Get("Content-Type"))
		assert.Contains(t, body, "_id: _design/people")
		assert.Contains(t, body, "by_name:")
		assert.Contains(t, body, "reduce: _sum")
	})
	t.Run("invalid design", func(t *testing.T) {
		resp, body := do(t, handler, http.MethodPut, "/_design/bad", "application/json", `{"views":{"v":{}}}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, body, "invalid_design_document")
	})
	t.Run("put documents", func(t *testing.T) {
		for id, doc := range map[string]string{
			"a": `{"name":"alice","age":30}`,
			"b": `{"name":"bob","age":40}`,
			"c": `{"name":"carol","age":50}`,
		} {
			resp, body := do(t, handler, http.MethodPut, "/docs/"+id, "application/json", doc)
			require.Equal(t, http.StatusCreated, resp.StatusCode, body)
			assert.Contains(t, body, `"rev"`)
		}
	})
	t.Run("get document", func(t *testing.T) {
		resp, body := do(t, handler, http.MethodGet, "/docs/a", "", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"name":"alice","age":30}`, body)
		assert.NotEmpty(t, resp.Header.Get("ETag"))
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	})
	t.Run("missing document", func(t *testing.T) {
		resp, body := do(t, handler, http.MethodGet, "/docs/zzz", "", "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Contains(t, body, `"error":"not_found"`)
	})
	t.Run("reduced query", func(t *testing.T) {
		resp, body := do(t, handler, http.MethodGet, "/_design/people/_view/by_name", "", "")
		require.Equal(t, http.StatusOK, resp.StatusCode, body)
		assert.JSONEq(t, `{"rows":[{"key":null,"value":120}],"total_rows":3}`, body)
	})
	t.Run("map query with range", func(t *testing.T) {
		target := `/_design/people/_view/by_name?reduce=false&startkey="b"&inclusive_end=true&endkey="carol"`
		resp, body := do(t, handler, http.MethodGet, strings.ReplaceAll(target, `"`, "%22"), "", "")
		require.Equal(t, http.StatusOK, resp.StatusCode, body)
		e := decode(t, body)
		require.Len(t, e.Rows, 2)
		assert.Equal(t, "b", e.Rows[0].ID)
		assert.Equal(t, "c", e.Rows[1].ID)
		assert.Equal(t, 3, e.TotalRows)
	})
	t.Run("post query", func(t *testing.T) {
		resp, body := do(t, handler, http.MethodPost, "/_design/people/_view/by_name?limit=1", "application/json; charset=utf-8",
			`{"keys":["carol","alice"],"reduce":false,"limit":5,"debug":true}`)
		require.Equal(t, http.StatusOK, resp.StatusCode, body)
		e := decode(t, body)
		require.Len(t, e.Rows, 1)
		assert.Equal(t, "a", e.Rows[0].ID)
		assert.NotNil(t, e.DebugInfo)
	})
	t.Run("post requires json", func(t *testing.T) {
		resp, _ := do(t, handler, http.MethodPost, "/_design/people/_view/by_name", "text/plain", `{}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp, _ = do(t, handler, http.MethodPost, "/_design/people/_view/by_name", "application/json", `[1]`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
	t.Run("query parse error", func(t *testing.T) {
		resp, body := do(t, handler, http.MethodGet, "/_design/people/_view/by_name?limit=abc", "", "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, body, `"error":"query_parse_error"`)
	})
	t.Run("unknown view", func(t *testing.T) {
		resp, _ := do(t, handler, http.MethodGet, "/_design/people/_view/nope", "", "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		resp, _ = do(t, handler, http.MethodGet, "/_design/nobody/_view/nope", "", "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
	t.Run("delete document", func(t *testing.T) {
		resp, _ := do(t, handler, http.MethodDelete, "/docs/b", "", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp, body := do(t, handler, http.MethodGet, "/_design/people/_view/by_name", "", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"rows":[{"key":null,"value":80}],"total_rows":2}`, body)
	})
	t.Run("flush", func(t *testing.T) {
		resp, body := do(t, handler, http.MethodPost, "/_flush", "", "")
		require.Equal(t, http.StatusOK, resp.StatusCode, body)
		resp, _ = do(t, handler, http.MethodGet, "/docs/a", "", "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		resp, body = do(t, handler, http.MethodGet, "/_design/people/_view/by_name", "", "")
		require.Equal(t, http.StatusOK, resp.StatusCode, body)
		assert.JSONEq(t, `{"rows":[],"total_rows":0}`, body)
	})
	t.Run("delete design", func(t *testing.T) {
		resp, _ := do(t, handler, http.MethodDelete, "/_design/people", "", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp, _ = do(t, handler, http.MethodGet, "/_design/people", "", "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
	t.Run("metrics", func(t *testing.T) {
		resp, body := do(t, handler, http.MethodGet, "/metrics", "", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "viewkit_queries_total")
		assert.Contains(t, body, "viewkit_http_requests_total")
	})
}
