// Package http serves a bucket as a REST API
//
//	PUT/GET/DELETE "/docs/{id}"
//	PUT/GET/DELETE "/_design/{ddoc}"
//	GET/POST "/_design/{ddoc}/_view/{view}"
//	POST "/_flush"
//	GET "/metrics"
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cast"
	"github.com/tidwall/gjson"

	"github.com/viewkit/viewkit"
	"github.com/viewkit/viewkit/errors"
	"github.com/viewkit/viewkit/logging"
	"github.com/viewkit/viewkit/metrics"
	"github.com/viewkit/viewkit/util"
)

const (
	documentPath = "/docs/{id}"
	designPath   = "/_design/{ddoc}"
	viewPath     = "/_design/{ddoc}/_view/{view}"
	flushPath    = "/_flush"
	metricsPath  = "/metrics"
)

type server struct {
	bucket *viewkit.Bucket
	logger logging.Logger
}

// Handler returns an http handler that serves the bucket
func Handler(bucket *viewkit.Bucket, logger logging.Logger) http.Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &server{bucket: bucket, logger: logger}
	router := mux.NewRouter()
	router.Use(s.instrument)
	s.handle(router, documentPath, s.putDocument, http.MethodPut)
	s.handle(router, documentPath, s.getDocument, http.MethodGet)
	s.handle(router, documentPath, s.deleteDocument, http.MethodDelete)
	s.handle(router, viewPath, s.queryView, http.MethodGet, http.MethodPost)
	s.handle(router, designPath, s.putDesign, http.MethodPut)
	s.handle(router, designPath, s.getDesign, http.MethodGet)
	s.handle(router, designPath, s.deleteDesign, http.MethodDelete)
	s.handle(router, flushPath, s.flush, http.MethodPost)
	router.Handle(metricsPath, promhttp.Handler()).Methods(http.MethodGet)
	return router
}

func (s *server) handle(router *mux.Router, path string, fn http.HandlerFunc, methods ...string) {
	s.logger.Debug(context.Background(), fmt.Sprintf("registered endpoint: %v %s", methods, path), map[string]any{})
	router.HandleFunc(path, fn).Methods(methods...)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument counts requests by route template and logs them
func (s *server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		metrics.RequestTotal.WithLabelValues(r.Method, route, cast.ToString(rec.status)).Inc()
		s.logger.Debug(r.Context(), "request served", map[string]any{
			"request.method": r.Method,
			"request.path":   r.URL.Path,
			"request.vars":   mux.Vars(r),
			"status":         rec.status,
			"duration":       float64(time.Since(start).Microseconds()) / float64(1000),
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := errors.Extract(err)
	if e.Status() >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed", err, map[string]any{
			"request.path": r.URL.Path,
			"request.vars": mux.Vars(r),
		})
	}
	writeJSON(w, e.Status(), e)
}

func readBody(r *http.Request) ([]byte, error) {
	bits, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.Validation, errors.BadRequest, "failed to read request body")
	}
	return bits, nil
}

func (s *server) putDocument(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	body, err := readBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rev, err := s.bucket.Put(r.Context(), id, body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "id": id, "rev": rev})
}

func (s *server) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.bucket.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	contentType := "application/octet-stream"
	if utf8.Valid(doc.Body) && gjson.ValidBytes(doc.Body) {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("ETag", fmt.Sprintf("%q", doc.Revision))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Body)
}

func (s *server) deleteDocument(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.bucket.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": id})
}

func (s *server) putDesign(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	doc, err := s.bucket.PutDesign(r.Context(), mux.Vars(r)["ddoc"], body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "id": doc.ID, "views": doc.ViewNames()})
}

// getDesign writes the stored design document, as yaml when format=yaml
func (s *server) getDesign(w http.ResponseWriter, r *http.Request) {
	doc, err := s.bucket.GetDesign(r.Context(), mux.Vars(r)["ddoc"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	contentType, bits := "application/json", doc.Bytes()
	if r.URL.Query().Get("format") == "yaml" {
		bits, err = util.JSONToYAML(bits)
		if err != nil {
			s.writeError(w, r, errors.Wrap(err, errors.Internal, errors.InternalError, "failed to encode design document"))
			return
		}
		contentType = "application/yaml"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(bits)
}

func (s *server) deleteDesign(w http.ResponseWriter, r *http.Request) {
	if err := s.bucket.DeleteDesign(r.Context(), mux.Vars(r)["ddoc"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *server) flush(w http.ResponseWriter, r *http.Request) {
	if err := s.bucket.Flush(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// viewParams collects raw query parameters. Members of a POST json body become parameters holding their json
// text; url parameters take precedence over body members.
func viewParams(r *http.Request) (map[string]string, error) {
	params := map[string]string{}
	if r.Method == http.MethodPost {
		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "application/json" {
			return nil, errors.New(errors.Validation, errors.BadRequest, "view POST requests must be application/json")
		}
		body, err := readBody(r)
		if err != nil {
			return nil, err
		}
		parsed := gjson.ParseBytes(body)
		if !gjson.ValidBytes(body) || !parsed.IsObject() {
			return nil, errors.New(errors.Validation, errors.BadRequest, "view POST body must be a json object")
		}
		parsed.ForEach(func(key, value gjson.Result) bool {
			if value.Type == gjson.String {
				switch key.String() {
				case "startkey_docid", "endkey_docid", "stale":
					params[key.String()] = value.String()
					return true
				}
			}
			params[key.String()] = value.Raw
			return true
		})
	}
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	return params, nil
}

func (s *server) queryView(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	params, err := viewParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.bucket.QueryView(r.Context(), vars["ddoc"], vars["view"], params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
