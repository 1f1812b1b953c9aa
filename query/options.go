package query

import (
	"math"

	"github.com/spf13/cast"

	"github.com/viewkit/viewkit/collate"
	"github.com/viewkit/viewkit/errors"
)

// Options are the validated, typed parameters of a view query. Pointer and nil-slice fields are unset when the
// parameter was absent.
type Options struct {
	StartKey       *collate.Value
	EndKey         *collate.Value
	StartKeyDocID  *string
	EndKeyDocID    *string
	InclusiveStart bool
	InclusiveEnd   bool
	Descending     bool
	Key            *collate.Value
	Keys           []collate.Value
	Reduce         *bool
	Group          *bool
	GroupLevel     *int
	Stale          string
	Skip           *int
	Limit          *int
	Debug          bool
}

type optionType string

const (
	typeJSON    optionType = "json"
	typeRaw     optionType = "raw"
	typeBoolean optionType = "boolean"
	typeNumber  optionType = "number"
	typeArray   optionType = "array"
)

type optionSpec struct {
	name string
	typ  optionType
	set  func(o *Options, raw string, v collate.Value)
}

// optionSpecs enumerates every recognized parameter. Parameters not listed here are ignored.
var optionSpecs = []optionSpec{
	{name: "startkey", typ: typeJSON, set: func(o *Options, _ string, v collate.Value) { o.StartKey = &v }},
	{name: "endkey", typ: typeJSON, set: func(o *Options, _ string, v collate.Value) { o.EndKey = &v }},
	{name: "startkey_docid", typ: typeRaw, set: func(o *Options, raw string, _ collate.Value) { o.StartKeyDocID = &raw }},
	{name: "endkey_docid", typ: typeRaw, set: func(o *Options, raw string, _ collate.Value) { o.EndKeyDocID = &raw }},
	{name: "inclusive_start", typ: typeBoolean, set: func(o *Options, _ string, v collate.Value) { o.InclusiveStart = v.Bool() }},
	{name: "inclusive_end", typ: typeBoolean, set: func(o *Options, _ string, v collate.Value) { o.InclusiveEnd = v.Bool() }},
	{name: "descending", typ: typeBoolean, set: func(o *Options, _ string, v collate.Value) { o.Descending = v.Bool() }},
	{name: "key", typ: typeJSON, set: func(o *Options, _ string, v collate.Value) { o.Key = &v }},
	{name: "keys", typ: typeArray, set: func(o *Options, _ string, v collate.Value) { o.Keys = v.Array() }},
	{name: "reduce", typ: typeBoolean, set: func(o *Options, _ string, v collate.Value) { o.Reduce = boolPtr(v.Bool()) }},
	{name: "group", typ: typeBoolean, set: func(o *Options, _ string, v collate.Value) { o.Group = boolPtr(v.Bool()) }},
	{name: "group_level", typ: typeNumber, set: func(o *Options, _ string, v collate.Value) { o.GroupLevel = intPtr(v) }},
	{name: "stale", typ: typeRaw, set: func(o *Options, raw string, _ collate.Value) { o.Stale = raw }},
	{name: "skip", typ: typeNumber, set: func(o *Options, _ string, v collate.Value) { o.Skip = intPtr(v) }},
	{name: "limit", typ: typeNumber, set: func(o *Options, _ string, v collate.Value) { o.Limit = intPtr(v) }},
	{name: "debug", typ: typeBoolean, set: func(o *Options, _ string, v collate.Value) { o.Debug = v.Bool() }},
}

func boolPtr(b bool) *bool {
	return &b
}

func intPtr(v collate.Value) *int {
	n := cast.ToInt(v.Number())
	return &n
}

// DefaultOptions returns the options of a query without parameters
func DefaultOptions() *Options {
	return &Options{
		InclusiveStart: true,
		InclusiveEnd:   false,
		Descending:     false,
		Stale:          "ok",
		Debug:          false,
	}
}

// ParseOptions validates raw query parameters. Every value except the raw ones (docids, stale) must be json
// encoded; typed parameters must decode to their declared type.
func ParseOptions(raw map[string]string) (*Options, error) {
	opts := DefaultOptions()
	for _, spec := range optionSpecs {
		value, ok := raw[spec.name]
		if !ok {
			continue
		}
		if spec.typ == typeRaw {
			spec.set(opts, value, collate.Value{})
			continue
		}
		parsed, err := collate.ParseJSON([]byte(value))
		if err != nil {
			return nil, errors.ParseError("invalid json value for %s parameter: %q", spec.name, value)
		}
		if err := checkType(spec, value, parsed); err != nil {
			return nil, err
		}
		spec.set(opts, value, parsed)
	}
	return opts, nil
}

func checkType(spec optionSpec, raw string, v collate.Value) error {
	switch spec.typ {
	case typeBoolean:
		if v.Kind() != collate.Bool {
			return errors.ParseError("invalid value for boolean parameter %s: %q", spec.name, raw)
		}
	case typeNumber:
		if v.Kind() != collate.Number {
			return errors.ParseError("invalid value for number parameter %s: %q", spec.name, raw)
		}
		if n := v.Number(); n < 0 || n != math.Trunc(n) || n > math.MaxInt32 {
			return errors.ParseError("%s parameter must be a non-negative integer: %q", spec.name, raw)
		}
	case typeArray:
		if v.Kind() != collate.Array {
			return errors.ParseError("invalid value for array parameter %s: %q", spec.name, raw)
		}
	}
	return nil
}
