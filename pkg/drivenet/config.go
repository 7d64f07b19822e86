package drivenet

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cyclopcam/drivenet/pkg/gen"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid decoder config")

// Decoder configuration. Fields that are absent from a config file keep their default values.
type Config struct {
	FCW5ms2Low    float32 `json:"fcw5ms2Low" yaml:"fcw5ms2Low"`       // Threshold for the two oldest 5 m/s² samples
	FCW5ms2High   float32 `json:"fcw5ms2High" yaml:"fcw5ms2High"`     // Threshold for the three newest 5 m/s² samples
	FCW3ms2       float32 `json:"fcw3ms2" yaml:"fcw3ms2"`             // Threshold for all 3 m/s² samples
	WarnNonFinite bool    `json:"warnNonFinite" yaml:"warnNonFinite"` // Log a warning when the model emits NaN or Inf
}

func DefaultConfig() *Config {
	fcw := DefaultFCWThresholds()
	return &Config{
		FCW5ms2Low:    fcw.Brake5Low,
		FCW5ms2High:   fcw.Brake5High,
		FCW3ms2:       fcw.Brake3,
		WarnNonFinite: true,
	}
}

// Load config from a JSON or YAML file, depending on its extension
func LoadConfig(filename string) (*Config, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	config := DefaultConfig()
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		err = json.Unmarshal(b, config)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, config)
	default:
		return nil, fmt.Errorf("%w: unsupported config file extension '%v'", ErrInvalidConfig, filepath.Ext(filename))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks that all thresholds are probabilities
func (c *Config) Validate() error {
	for _, th := range []struct {
		name string
		v    float32
	}{
		{"fcw5ms2Low", c.FCW5ms2Low},
		{"fcw5ms2High", c.FCW5ms2High},
		{"fcw3ms2", c.FCW3ms2},
	} {
		if !gen.InRange(th.v, 0, 1) {
			return fmt.Errorf("%w: %v must be between 0 and 1, not %v", ErrInvalidConfig, th.name, th.v)
		}
	}
	return nil
}

func (c *Config) FCWThresholds() FCWThresholds {
	return FCWThresholds{
		Brake5Low:  c.FCW5ms2Low,
		Brake5High: c.FCW5ms2High,
		Brake3:     c.FCW3ms2,
	}
}
