package apidiff

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/PentesterFlow/APIDiff/internal/diff"
)

// Config holds all comparison tool configuration.
type Config struct {
	// Comparison level: basic, detailed or comprehensive
	ComparisonLevel string `json:"comparison_level" yaml:"comparison_level"`

	// Human-readable labels for the snapshots, in input order. When
	// empty, file base names are used. Echoed into the report; not used
	// by the comparison itself.
	VersionLabels []string `json:"version_labels" yaml:"version_labels"`

	// Whether a status-code-set change alone marks an endpoint modified
	// when its shapes are otherwise identical
	StatusCodesAffectClassification bool `json:"status_codes_affect_classification" yaml:"status_codes_affect_classification"`

	// Collapse repeated identical exchanges during ingest
	Dedupe bool `json:"dedupe" yaml:"dedupe"`

	// Per-endpoint diff parallelism (0 = one worker per CPU)
	Workers int `json:"workers" yaml:"workers"`

	// Output configuration
	Output OutputConfig `json:"output" yaml:"output"`

	// Report history persistence
	Store StoreConfig `json:"store" yaml:"store"`

	// Verbose logging
	Verbose bool `json:"verbose" yaml:"verbose"`

	// Debug mode
	Debug bool `json:"debug" yaml:"debug"`
}

// OutputConfig holds report serialization settings.
type OutputConfig struct {
	// Format is "json" or "html".
	Format string `json:"format" yaml:"format"`
	Pretty bool   `json:"pretty" yaml:"pretty"`
	// Path is the output file; empty means stdout.
	Path string `json:"path" yaml:"path"`
}

// StoreConfig holds report archive settings.
type StoreConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ComparisonLevel:                 "detailed",
		StatusCodesAffectClassification: true,
		Dedupe:                          false,
		Output: OutputConfig{
			Format: "json",
			Pretty: true,
		},
		Store: StoreConfig{
			Enabled: false,
			Path:    "apidiff-reports.db",
		},
	}
}

// LoadFromFile loads configuration from a file (JSON or YAML).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()

	// Try YAML first, then JSON
	if err := yaml.Unmarshal(data, config); err != nil {
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	return config, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if _, err := diff.ParseLevel(c.ComparisonLevel); err != nil {
		return err
	}

	if c.Output.Format != "json" && c.Output.Format != "html" {
		return fmt.Errorf("output format must be json or html, got %q", c.Output.Format)
	}

	if len(c.VersionLabels) > 3 {
		return fmt.Errorf("at most 3 version labels are supported")
	}

	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}

	if c.Store.Enabled && c.Store.Path == "" {
		return fmt.Errorf("store path is required when the store is enabled")
	}

	return nil
}
