package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
)

type Code int

const (
	Internal   Code = http.StatusInternalServerError
	NotFound   Code = http.StatusNotFound
	Validation Code = http.StatusBadRequest
)

// Error types reported in the "error" field of the json envelope
const (
	QueryParseError       = "query_parse_error"
	NotFoundError         = "not_found"
	BadRequest            = "bad_request"
	InvalidDesignDocument = "invalid_design_document"
	MapError              = "map_error"
	ReduceError           = "reduce_error"
	InternalError         = "internal_error"
)

// Error is a custom error
type Error struct {
	Code   Code   `json:"-"`
	Type   string `json:"error"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

// Error returns the Error as a json string
func (e *Error) Error() string {
	bits, _ := json.Marshal(e)
	return string(bits)
}

// Unwrap returns the underlying error, if any
func (e *Error) Unwrap() error {
	return e.Err
}

// Status returns the http status code of the error
func (e *Error) Status() int {
	if e.Code == 0 {
		return http.StatusInternalServerError
	}
	return int(e.Code)
}

// New creates a new error of the given type
func New(code Code, typ string, msg string, args ...any) error {
	return &Error{
		Code:   code,
		Type:   typ,
		Reason: fmt.Sprintf(msg, args...),
	}
}

// Extract extracts the custom Error from the given error
func Extract(err error) *Error {
	e, ok := err.(*Error)
	if !ok {
		return &Error{
			Code:   Internal,
			Type:   InternalError,
			Reason: err.Error(),
			Err:    err,
		}
	}
	return e
}

// Is reports whether err is an Error of the given type
func Is(err error, typ string) bool {
	e, ok := err.(*Error)
	return ok && e.Type == typ
}

// Wrap wraps the given error and returns a new one. A nil error stays nil and an *Error is copied, never modified.
func Wrap(err error, code Code, typ string, msg string, args ...any) error {
	if err == nil {
		return nil
	}
	if existing, ok := err.(*Error); ok {
		e := *existing
		if msg != "" {
			e.Reason = fmt.Sprintf("%s: %s", fmt.Sprintf(msg, args...), e.Reason)
		}
		if code > 0 {
			e.Code = code
		}
		if typ != "" {
			e.Type = typ
		}
		return &e
	}
	e := &Error{
		Code:   code,
		Type:   typ,
		Reason: err.Error(),
		Err:    err,
	}
	if msg != "" {
		e.Reason = fmt.Sprintf("%s: %s", fmt.Sprintf(msg, args...), err.Error())
	}
	return e
}

// ParseError is a query_parse_error
func ParseError(msg string, args ...any) error {
	return New(Validation, QueryParseError, msg, args...)
}
