package viewkit

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/tidwall/sjson"
	"github.com/xeipuuv/gojsonschema"

	"github.com/viewkit/viewkit/errors"
	"github.com/viewkit/viewkit/javascript"
	"github.com/viewkit/viewkit/logging"
	"github.com/viewkit/viewkit/reduce"
	"github.com/viewkit/viewkit/util"
)

//go:embed schemas/design_document.json
var designSchemaContent string

var designSchema = gojsonschema.NewStringLoader(designSchemaContent)

// DesignPrefix is the implicit id prefix of design documents
const DesignPrefix = "_design/"

// ViewDefinition holds the sources of a view. Reduce is optional and is either a builtin reducer name or a
// javascript function.
type ViewDefinition struct {
	Map    string `json:"map"`
	Reduce string `json:"reduce,omitempty"`
}

// DesignDocument groups view definitions under a name
type DesignDocument struct {
	ID    string                    `json:"_id"`
	Name  string                    `json:"-"`
	Views map[string]ViewDefinition `json:"views"`
	raw   []byte
}

// ParseDesignDocument parses and validates a json or yaml design document. An "_id" member overrides the implicit
// "_design/<name>" id.
func ParseDesignDocument(name string, content []byte) (*DesignDocument, error) {
	name = strings.TrimPrefix(strings.TrimSpace(name), DesignPrefix)
	if name == "" {
		return nil, errors.New(errors.Validation, errors.InvalidDesignDocument, "empty design document name")
	}
	bits, err := util.YAMLToJSON(content)
	if err != nil {
		return nil, errors.Wrap(err, errors.Validation, errors.InvalidDesignDocument, "design document %s", name)
	}
	result, err := gojsonschema.Validate(designSchema, gojsonschema.NewBytesLoader(bits))
	if err != nil {
		return nil, errors.Wrap(err, errors.Validation, errors.InvalidDesignDocument, "design document %s", name)
	}
	if !result.Valid() {
		reasons := lo.Map(result.Errors(), func(e gojsonschema.ResultError, _ int) string {
			return e.String()
		})
		return nil, errors.New(errors.Validation, errors.InvalidDesignDocument, "design document %s: %s", name, strings.Join(reasons, ", "))
	}
	doc := &DesignDocument{}
	if err := json.Unmarshal(bits, doc); err != nil {
		return nil, errors.Wrap(err, errors.Validation, errors.InvalidDesignDocument, "design document %s", name)
	}
	doc.Name = name
	if doc.ID == "" {
		doc.ID = DesignPrefix + name
	}
	doc.raw = bits
	return doc, nil
}

// ViewNames returns the names of the views in sorted order
func (d *DesignDocument) ViewNames() []string {
	names := lo.Keys(d.Views)
	sort.Strings(names)
	return names
}

// Bytes returns the json encoded design document with its effective "_id"
func (d *DesignDocument) Bytes() []byte {
	bits, err := sjson.SetBytes(d.raw, "_id", d.ID)
	if err != nil {
		return d.raw
	}
	return bits
}

// compile compiles every view of the design document
func (d *DesignDocument) compile(source DocumentSource, logger logging.Logger) (map[string]*View, error) {
	views := map[string]*View{}
	for _, name := range d.ViewNames() {
		def := d.Views[name]
		mapFn, err := javascript.CompileMap(def.Map)
		if err != nil {
			return nil, errors.Wrap(err, errors.Validation, errors.InvalidDesignDocument, "view %s/%s", d.Name, name)
		}
		var reducer reduce.Func
		if strings.TrimSpace(def.Reduce) != "" {
			reducer, err = javascript.CompileReduce(def.Reduce)
			if err != nil {
				return nil, errors.Wrap(err, errors.Validation, errors.InvalidDesignDocument, "view %s/%s", d.Name, name)
			}
		}
		views[name] = NewView(fmt.Sprintf("%s/%s", d.Name, name), source, mapFn, reducer, logger)
	}
	return views, nil
}
