// Package config handles tinkergraph configuration.
//
// Configuration is layered: built-in defaults, then an optional YAML file, then
// environment variables prefixed with TINKERGRAPH_. The result is checked with
// Validate() before a graph is built from it; every tunable must be positive.
//
// Example Usage:
//
//	cfg, err := config.Load("./tinkergraph.yaml")
//	if err != nil {
//		log.Fatalf("Invalid config: %v", err)
//	}
//	graph, err := storage.NewGraph(cfg)
//
// Environment Variables:
//
//   - TINKERGRAPH_GRAPH_DEFAULT_CARDINALITY="single" | "list" | "set"
//   - TINKERGRAPH_GRAPH_VERTEX_ID_MANAGER="long" | "integer" | "uuid" | "any"
//   - TINKERGRAPH_GRAPH_EDGE_ID_MANAGER=...
//   - TINKERGRAPH_GRAPH_VERTEX_PROPERTY_ID_MANAGER=...
//   - TINKERGRAPH_INDEX_CACHE_ENABLED=true
//   - TINKERGRAPH_INDEX_CACHE_MAX_SIZE=1000
//   - TINKERGRAPH_INDEX_CACHE_MAX_AGE=5m
//   - TINKERGRAPH_MEMORY_HIGH_WATER_MARK=5000
//   - TINKERGRAPH_MEMORY_MIN_EFFICIENCY=0.5
//   - TINKERGRAPH_MEMORY_MIN_SAMPLES=1000
//   - TINKERGRAPH_MEMORY_MAX_ALLOCATION_LATENCY=1ms
//   - TINKERGRAPH_POOL_ENABLED=true
//   - TINKERGRAPH_POOL_MAX_IDLE=1000
//   - TINKERGRAPH_LOGGING_LEVEL="info"
//   - TINKERGRAPH_LOGGING_FORMAT="text" | "json"
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "TINKERGRAPH"

// Default values.
const (
	DefaultIndexCacheMaxSize    = 1000
	DefaultIndexCacheMaxAge     = 300_000 * time.Millisecond
	DefaultHighWaterMark        = 5000
	DefaultMinEfficiency        = 0.5
	DefaultMinSamples           = 1000
	DefaultMaxAllocationLatency = time.Millisecond
	DefaultPoolMaxIdle          = 1000
)

// IDManagerNames lists the accepted id manager names.
var IDManagerNames = []string{"long", "integer", "uuid", "any"}

// CardinalityNames lists the accepted default cardinalities.
var CardinalityNames = []string{"single", "list", "set"}

// Config holds all tinkergraph configuration.
//
// Configuration is organized into sections:
//   - Graph: element defaults (cardinality, id managers)
//   - IndexCache: bounds of the cache in front of composite lookups
//   - Memory: thresholds of the memory-pressure heuristic
//   - Pool: element shell pooling
//   - Logging: logger level and format
type Config struct {
	Graph      GraphConfig      `yaml:"graph" envconfig:"GRAPH"`
	IndexCache IndexCacheConfig `yaml:"index_cache" envconfig:"INDEX_CACHE"`
	Memory     MemoryConfig     `yaml:"memory" envconfig:"MEMORY"`
	Pool       PoolConfig       `yaml:"pool" envconfig:"POOL"`
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
}

// GraphConfig holds element defaults.
type GraphConfig struct {
	// DefaultCardinality applies to Vertex.SetProperty and AddVertex properties.
	DefaultCardinality string `yaml:"default_cardinality" envconfig:"DEFAULT_CARDINALITY"`
	// VertexIDManager generates and converts vertex ids.
	VertexIDManager string `yaml:"vertex_id_manager" envconfig:"VERTEX_ID_MANAGER"`
	// EdgeIDManager generates and converts edge ids.
	EdgeIDManager string `yaml:"edge_id_manager" envconfig:"EDGE_ID_MANAGER"`
	// VertexPropertyIDManager generates and converts vertex property ids.
	VertexPropertyIDManager string `yaml:"vertex_property_id_manager" envconfig:"VERTEX_PROPERTY_ID_MANAGER"`
}

// IndexCacheConfig bounds the index cache.
type IndexCacheConfig struct {
	// Enabled routes composite, range and scan lookups through the cache.
	Enabled bool `yaml:"enabled" envconfig:"ENABLED"`
	// MaxSize is the maximum number of cached result sets (FIFO eviction).
	MaxSize int `yaml:"max_size" envconfig:"MAX_SIZE"`
	// MaxAge is how long a cached result set stays visible.
	MaxAge time.Duration `yaml:"max_age" envconfig:"MAX_AGE"`
}

// MemoryConfig holds the memory-pressure thresholds.
type MemoryConfig struct {
	// HighWaterMark is the active allocation count above which pressure is reported.
	HighWaterMark int64 `yaml:"high_water_mark" envconfig:"HIGH_WATER_MARK"`
	// MinEfficiency is the freed/allocated ratio below which pressure is reported.
	MinEfficiency float64 `yaml:"min_efficiency" envconfig:"MIN_EFFICIENCY"`
	// MinSamples is the allocation count before the efficiency rule applies.
	MinSamples int64 `yaml:"min_samples" envconfig:"MIN_SAMPLES"`
	// MaxAllocationLatency is the average allocation latency above which pressure is reported.
	MaxAllocationLatency time.Duration `yaml:"max_allocation_latency" envconfig:"MAX_ALLOCATION_LATENCY"`
}

// PoolConfig configures element shell pooling.
type PoolConfig struct {
	// Enabled controls whether released shells are kept for reuse.
	Enabled bool `yaml:"enabled" envconfig:"ENABLED"`
	// MaxIdle limits the idle shells kept per kind.
	MaxIdle int `yaml:"max_idle" envconfig:"MAX_IDLE"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level (debug, info, warn, error)
	Level string `yaml:"level" envconfig:"LEVEL"`
	// Format (text, json)
	Format string `yaml:"format" envconfig:"FORMAT"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Graph: GraphConfig{
			DefaultCardinality:      "single",
			VertexIDManager:         "long",
			EdgeIDManager:           "long",
			VertexPropertyIDManager: "long",
		},
		IndexCache: IndexCacheConfig{
			Enabled: true,
			MaxSize: DefaultIndexCacheMaxSize,
			MaxAge:  DefaultIndexCacheMaxAge,
		},
		Memory: MemoryConfig{
			HighWaterMark:        DefaultHighWaterMark,
			MinEfficiency:        DefaultMinEfficiency,
			MinSamples:           DefaultMinSamples,
			MaxAllocationLatency: DefaultMaxAllocationLatency,
		},
		Pool: PoolConfig{
			Enabled: true,
			MaxIdle: DefaultPoolMaxIdle,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds a configuration from defaults, the YAML file at path (skipped
// when path is empty) and TINKERGRAPH_ environment variables, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(EnvPrefix); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML document at path onto c. Keys absent from the
// file keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrapf(err, "parse config %s", path)
	}
	return nil
}

// ApplyEnv overlays environment variables named <prefix>_<SECTION>_<FIELD>.
// Unset variables leave the current values untouched.
func (c *Config) ApplyEnv(prefix string) error {
	if err := envconfig.Process(prefix, c); err != nil {
		return errors.Wrap(err, "apply environment")
	}
	return nil
}

// YAML renders the configuration as a YAML document.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate checks every section and reports all problems at once.
//
// Every failure is a *ConfigurationError; the returned error matches
// ErrInvalidConfig with errors.Is.
func (c *Config) Validate() error {
	var result *multierror.Error

	if !oneOf(c.Graph.DefaultCardinality, CardinalityNames) {
		result = multierror.Append(result, NewConfigurationError("graph.default_cardinality", c.Graph.DefaultCardinality,
			"must be one of "+strings.Join(CardinalityNames, ", ")))
	}
	for field, name := range map[string]string{
		"graph.vertex_id_manager":          c.Graph.VertexIDManager,
		"graph.edge_id_manager":            c.Graph.EdgeIDManager,
		"graph.vertex_property_id_manager": c.Graph.VertexPropertyIDManager,
	} {
		if !oneOf(name, IDManagerNames) {
			result = multierror.Append(result, NewConfigurationError(field, name,
				"must be one of "+strings.Join(IDManagerNames, ", ")))
		}
	}

	if err := PositiveInt("index_cache.max_size", c.IndexCache.MaxSize); err != nil {
		result = multierror.Append(result, err)
	}
	if err := PositiveDuration("index_cache.max_age", c.IndexCache.MaxAge); err != nil {
		result = multierror.Append(result, err)
	}

	if c.Memory.HighWaterMark <= 0 {
		result = multierror.Append(result, NewConfigurationError("memory.high_water_mark", c.Memory.HighWaterMark, "must be positive"))
	}
	if c.Memory.MinEfficiency <= 0 || c.Memory.MinEfficiency > 1 {
		result = multierror.Append(result, NewConfigurationError("memory.min_efficiency", c.Memory.MinEfficiency, "must be in (0, 1]"))
	}
	if c.Memory.MinSamples <= 0 {
		result = multierror.Append(result, NewConfigurationError("memory.min_samples", c.Memory.MinSamples, "must be positive"))
	}
	if err := PositiveDuration("memory.max_allocation_latency", c.Memory.MaxAllocationLatency); err != nil {
		result = multierror.Append(result, err)
	}

	if err := PositiveInt("pool.max_idle", c.Pool.MaxIdle); err != nil {
		result = multierror.Append(result, err)
	}

	if _, err := parseLevel(c.Logging.Level); err != nil {
		result = multierror.Append(result, NewConfigurationError("logging.level", c.Logging.Level, err.Error()))
	}
	if !oneOf(c.Logging.Format, []string{"text", "json"}) {
		result = multierror.Append(result, NewConfigurationError("logging.format", c.Logging.Format, "must be text or json"))
	}

	return result.ErrorOrNil()
}

// String returns a compact representation suitable for logging.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Cardinality: %s, IDs: %s/%s/%s, Cache: %v(%d, %s), Pressure: %d/%.2f/%s, Pool: %v(%d)}",
		c.Graph.DefaultCardinality,
		c.Graph.VertexIDManager, c.Graph.EdgeIDManager, c.Graph.VertexPropertyIDManager,
		c.IndexCache.Enabled, c.IndexCache.MaxSize, c.IndexCache.MaxAge,
		c.Memory.HighWaterMark, c.Memory.MinEfficiency, c.Memory.MaxAllocationLatency,
		c.Pool.Enabled, c.Pool.MaxIdle,
	)
}

func oneOf(s string, allowed []string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, a := range allowed {
		if s == a {
			return true
		}
	}
	return false
}
