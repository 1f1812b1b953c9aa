// Package util holds decoding and validation helpers shared by configuration and design document loading
package util

import (
	"encoding/json"

	"github.com/ghodss/yaml"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/viewkit/viewkit/errors"
)

var validate = validator.New()

// ValidateStruct validates a struct against its validate tags
func ValidateStruct(val any) error {
	return errors.Wrap(validate.Struct(val), errors.Validation, errors.BadRequest, "")
}

// Decode decodes the input into the output based on json tags
func Decode(input any, output any) error {
	config := &mapstructure.DecoderConfig{
		WeaklyTypedInput:     true,
		Result:               output,
		TagName:              "json",
		IgnoreUntaggedFields: true,
	}
	decoder, err := mapstructure.NewDecoder(config)
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

// YAMLToJSON converts yaml content to json. Content that is already json is returned as is.
func YAMLToJSON(content []byte) ([]byte, error) {
	if json.Valid(content) {
		return content, nil
	}
	bits, err := yaml.YAMLToJSON(content)
	if err != nil {
		return nil, errors.Wrap(err, errors.Validation, errors.BadRequest, "invalid yaml")
	}
	return bits, nil
}

// JSONToYAML converts json content to yaml
func JSONToYAML(content []byte) ([]byte, error) {
	bits, err := yaml.JSONToYAML(content)
	if err != nil {
		return nil, errors.Wrap(err, errors.Validation, errors.BadRequest, "invalid json")
	}
	return bits, nil
}
