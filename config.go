package viewkit

import (
	"encoding/json"

	"github.com/viewkit/viewkit/errors"
	"github.com/viewkit/viewkit/util"
)

// Config configures a bucket
type Config struct {
	// Provider is the name of a registered kv provider
	Provider string `json:"provider" validate:"required"`
	// Params are passed to the kv provider. The badger provider reads "storage_path" and runs in memory when it
	// is empty.
	Params map[string]any `json:"params"`
	// LogLevel is one of debug, info, warn or error
	LogLevel string `json:"log_level" validate:"omitempty,oneof=debug info warn error"`
	// Debug forces debug logging
	Debug bool `json:"debug"`
}

// DefaultConfig returns an in-memory badger configuration
func DefaultConfig() Config {
	return Config{
		Provider: "badger",
		Params:   map[string]any{},
		LogLevel: "info",
	}
}

// LoadConfig loads a yaml or json configuration on top of the defaults
func LoadConfig(content []byte) (Config, error) {
	cfg := DefaultConfig()
	bits, err := util.YAMLToJSON(content)
	if err != nil {
		return cfg, err
	}
	data := map[string]any{}
	if err := json.Unmarshal(bits, &data); err != nil {
		return cfg, errors.Wrap(err, errors.Validation, errors.BadRequest, "invalid config")
	}
	if err := util.Decode(data, &cfg); err != nil {
		return cfg, errors.Wrap(err, errors.Validation, errors.BadRequest, "invalid config")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate validates the configuration
func (c Config) Validate() error {
	return util.ValidateStruct(c)
}

func (c Config) logLevel() string {
	if c.Debug {
		return "debug"
	}
	return c.LogLevel
}
