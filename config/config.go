// Package config holds the small set of tunables that govern the
// dynamic filter service's runtime behavior: the collector's poll
// interval, the display-simplification threshold, and the per-query
// filter-count ceiling past which registering a query panics.
// Loading follows the same "defaults, then optional YAML override" shape
// datalog's own CLI tools use for their flag/file layering.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the tunables for one dynamic filter service instance.
type Config struct {
	// DynamicFilteringRefreshInterval is how often the Collector polls
	// every registered query's StageSupplier for fresh task summaries.
	DynamicFilteringRefreshInterval time.Duration

	// SimplifyThreshold bounds how many disjuncts a Domain may carry in
	// the stats view's rendered form before collapsing to ALL.
	SimplifyThreshold int `yaml:"simplify_threshold"`

	// MaxDomainsPerQuery caps how many distinct dynamic filters one query
	// may register; Register panics past this, treating it as a planning
	// bug rather than a runtime condition to recover from.
	MaxDomainsPerQuery int `yaml:"max_domains_per_query"`
}

// yamlConfig mirrors Config with RefreshInterval as a duration string
// (e.g. "5s"), since yaml.v3 has no built-in time.Duration decoding.
type yamlConfig struct {
	RefreshInterval    string `yaml:"refresh_interval"`
	SimplifyThreshold  *int   `yaml:"simplify_threshold"`
	MaxDomainsPerQuery *int   `yaml:"max_domains_per_query"`
}

// UnmarshalYAML applies only the fields present in the document on top of
// c's current values, so LoadFile's "defaults, then override" contract
// holds even though decoding into a differently-shaped struct.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw yamlConfig
	if err := unmarshal(&raw); err != nil {
		return err
	}
	if raw.RefreshInterval != "" {
		d, err := time.ParseDuration(raw.RefreshInterval)
		if err != nil {
			return fmt.Errorf("config: invalid refresh_interval %q: %w", raw.RefreshInterval, err)
		}
		c.DynamicFilteringRefreshInterval = d
	}
	if raw.SimplifyThreshold != nil {
		c.SimplifyThreshold = *raw.SimplifyThreshold
	}
	if raw.MaxDomainsPerQuery != nil {
		c.MaxDomainsPerQuery = *raw.MaxDomainsPerQuery
	}
	return nil
}

// Default returns the configuration the service runs with absent any
// file override: a one-second refresh (matching the real service's
// default collection period), a one-disjunct display cap (matching the
// original service's simplify(1) stats rendering), and a generous but
// bounded per-query filter ceiling.
func Default() Config {
	return Config{
		DynamicFilteringRefreshInterval: time.Second,
		SimplifyThreshold:               1,
		MaxDomainsPerQuery:              100,
	}
}

// Validate reports whether c describes a runnable configuration.
func (c Config) Validate() error {
	if c.DynamicFilteringRefreshInterval <= 0 {
		return fmt.Errorf("config: refresh_interval must be positive, got %s", c.DynamicFilteringRefreshInterval)
	}
	if c.SimplifyThreshold < 0 {
		return fmt.Errorf("config: simplify_threshold must be non-negative, got %d", c.SimplifyThreshold)
	}
	if c.MaxDomainsPerQuery <= 0 {
		return fmt.Errorf("config: max_domains_per_query must be positive, got %d", c.MaxDomainsPerQuery)
	}
	return nil
}

// LoadFile reads a YAML config file at path, starting from Default() and
// letting only the fields present in the file override it.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
