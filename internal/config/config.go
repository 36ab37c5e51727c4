// Package config provides configuration management for the window evaluation
// engine.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Config represents the global configuration for window operator execution
type Config struct {
	// Execution Configuration
	OutputBatchRows int `json:"output_batch_rows" yaml:"output_batch_rows"` // Target row count of each output batch
	LaneCount       int `json:"lane_count" yaml:"lane_count"`               // Number of parallel operator lanes (0 = auto-detect)
	LaneThreshold   int `json:"lane_threshold" yaml:"lane_threshold"`       // Minimum input rows before multiple lanes are used

	// Memory Management Configuration
	MemoryThreshold int64 `json:"memory_threshold" yaml:"memory_threshold"` // Memory threshold in bytes (0 = unlimited)

	// Debugging Configuration
	VerboseLogging bool `json:"verbose_logging" yaml:"verbose_logging"` // Enable verbose logging
}

// Default configuration values
const (
	DefaultOutputBatchRows = 1024
	DefaultLaneThreshold   = 10000
)

// Global configuration instance
var (
	globalConfig Config
	configMutex  sync.RWMutex
)

// Initialize global configuration with defaults
func init() {
	globalConfig = NewConfig()
}

// NewConfig creates a new configuration with default values
func NewConfig() Config {
	return Config{
		OutputBatchRows: DefaultOutputBatchRows,
		LaneCount:       0, // Auto-detect
		LaneThreshold:   DefaultLaneThreshold,
		MemoryThreshold: 0, // Unlimited
		VerboseLogging:  false,
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	if c.OutputBatchRows <= 0 {
		return fmt.Errorf("OutputBatchRows must be positive, got %d", c.OutputBatchRows)
	}

	if c.LaneCount < 0 {
		return fmt.Errorf("LaneCount must be non-negative, got %d", c.LaneCount)
	}

	if c.LaneThreshold < 0 {
		return fmt.Errorf("LaneThreshold must be non-negative, got %d", c.LaneThreshold)
	}

	if c.MemoryThreshold < 0 {
		return fmt.Errorf("MemoryThreshold must be non-negative, got %d", c.MemoryThreshold)
	}

	return nil
}

// WithDefaults returns a new configuration with default values filled in for
// zero values
func (c Config) WithDefaults() Config {
	defaults := NewConfig()

	if c.OutputBatchRows == 0 {
		c.OutputBatchRows = defaults.OutputBatchRows
	}
	if c.LaneThreshold == 0 {
		c.LaneThreshold = defaults.LaneThreshold
	}

	// LaneCount and MemoryThreshold keep their zero values: zero means
	// auto-detect and unlimited respectively.

	return c
}

// EffectiveLaneCount returns the lane count to use, resolving auto-detection
// to the CPU count.
func (c Config) EffectiveLaneCount() int {
	if c.LaneCount > 0 {
		return c.LaneCount
	}
	return runtime.NumCPU()
}

// SetGlobalConfig sets the global configuration
func SetGlobalConfig(config Config) {
	configMutex.Lock()
	defer configMutex.Unlock()
	globalConfig = config
}

// GetGlobalConfig returns the current global configuration
func GetGlobalConfig() Config {
	configMutex.RLock()
	defer configMutex.RUnlock()
	return globalConfig
}

// LoadFromJSON loads configuration from JSON data
func LoadFromJSON(data []byte) (Config, error) {
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing JSON configuration: %w", err)
	}
	return config.WithDefaults(), nil
}

// LoadFromFile loads configuration from a file (supports JSON and YAML)
func LoadFromFile(filename string) (Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file %s: %w", filename, err)
	}

	var config Config
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".json":
		err = json.Unmarshal(data, &config)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		return Config{}, fmt.Errorf("unsupported config file format: %s", ext)
	}

	if err != nil {
		return Config{}, fmt.Errorf("parsing config file %s: %w", filename, err)
	}

	return config.WithDefaults(), nil
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() Config {
	config := NewConfig()

	if val := os.Getenv("VELOX_OUTPUT_BATCH_ROWS"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			config.OutputBatchRows = parsed
		}
	}

	if val := os.Getenv("VELOX_LANE_COUNT"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			config.LaneCount = parsed
		}
	}

	if val := os.Getenv("VELOX_LANE_THRESHOLD"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			config.LaneThreshold = parsed
		}
	}

	if val := os.Getenv("VELOX_MEMORY_THRESHOLD"); val != "" {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			config.MemoryThreshold = parsed
		}
	}

	if val := os.Getenv("VELOX_VERBOSE_LOGGING"); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			config.VerboseLogging = parsed
		}
	}

	return config
}
