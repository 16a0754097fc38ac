package config

import (
	"fmt"
	"os"

	"dario.cat/mergo"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Load reads path, expands ${VAR}/$VAR environment references, unmarshals
// YAML, merges the result onto Default() (user values override defaults
// per-field via mergo.WithOverride), and validates the result (spec.md §3
// ServerConfig load sequence).
func Load(path string) (*ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, newLoadError(path, ErrConfigNotFound)
		}
		return nil, newLoadError(path, err)
	}

	expanded := os.ExpandEnv(string(data))

	var loaded ServerConfig
	if err := yaml.Unmarshal([]byte(expanded), &loaded); err != nil {
		return nil, newLoadError(path, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
	}

	cfg := Default()
	if err := mergo.Merge(cfg, loaded, mergo.WithOverride); err != nil {
		return nil, newLoadError(path, fmt.Errorf("merge defaults: %w", err))
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, newLoadError(path, fmt.Errorf("validation failed: %w", err))
	}

	return cfg, nil
}
