// Package config loads a table's configurable defaults from a JWCC
// (JSON-with-comments) config file, the same format and precedence chain
// the teacher's root config.go uses for its own settings.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"

	"github.com/segstore/segstore/pkg/value"
)

var (
	// ErrConfigFileNotFound is returned when an explicitly named config
	// file does not exist.
	ErrConfigFileNotFound = errors.New("config: file not found")

	// ErrConfigInvalid is returned when a config file fails to parse as
	// JWCC or fails validation.
	ErrConfigInvalid = errors.New("config: invalid config file")

	// ErrUnknownValueType is returned when order.valueType names anything
	// other than "number" or "string".
	ErrUnknownValueType = errors.New("config: unknown order.valueType")
)

// ConfigFileName is the default project config file name, checked in the
// working directory when no explicit path is given.
const ConfigFileName = ".segstore.json"

// Order holds the designated order column's name and value type.
type Order struct {
	Key       string `json:"key"`
	ValueType string `json:"valueType"`
}

// Config holds a table's configurable defaults.
type Config struct {
	SegmentCount int   `json:"segmentCount"`
	ChunkCount   int   `json:"chunkCount"`
	Order        Order `json:"order"`
}

// Default returns segstore's built-in defaults, used as the base of the
// precedence chain before any config file is consulted.
func Default() Config {
	return Config{
		SegmentCount: 1024,
		ChunkCount:   64,
		Order:        Order{Key: "data_timestamp", ValueType: "number"},
	}
}

// OrderValueKind translates c.Order.ValueType into a [value.Kind], failing
// if it names anything but "number" or "string".
func (c Config) OrderValueKind() (value.Kind, error) {
	switch c.Order.ValueType {
	case "number":
		return value.Number, nil
	case "string":
		return value.String, nil
	default:
		return value.Missing, fmt.Errorf("%w: %q", ErrUnknownValueType, c.Order.ValueType)
	}
}

// Load resolves a Config with the following precedence (highest wins):
//  1. Default()
//  2. The project config file at workDir/ConfigFileName, if present
//  3. An explicit config file at configPath, if non-empty (must exist)
//
// Either file may be JWCC (JSON with comments and trailing commas); Load
// standardizes it to plain JSON before decoding, matching the teacher's
// config.go.
func Load(workDir, configPath string) (Config, error) {
	cfg := Default()

	projectPath := filepath.Join(workDir, ConfigFileName)

	projectCfg, loaded, err := loadFile(projectPath, false)
	if err != nil {
		return Config{}, err
	}

	if loaded {
		cfg = merge(cfg, projectCfg)
	}

	if configPath != "" {
		explicitCfg, loaded, err := loadFile(configPath, true)
		if err != nil {
			return Config{}, err
		}

		if loaded {
			cfg = merge(cfg, explicitCfg)
		}
	}

	if _, err := cfg.OrderValueKind(); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}

	return cfg, nil
}

func loadFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if mustExist {
				return Config{}, false, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
			}

			return Config{}, false, nil
		}

		return Config{}, false, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg, err := parse(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	return cfg, true, nil
}

func parse(data []byte) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JWCC: %w", err)
	}

	var cfg Config

	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}

	return cfg, nil
}

func merge(base, overlay Config) Config {
	if overlay.SegmentCount != 0 {
		base.SegmentCount = overlay.SegmentCount
	}

	if overlay.ChunkCount != 0 {
		base.ChunkCount = overlay.ChunkCount
	}

	if overlay.Order.Key != "" {
		base.Order.Key = overlay.Order.Key
	}

	if overlay.Order.ValueType != "" {
		base.Order.ValueType = overlay.Order.ValueType
	}

	return base
}
