package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "single", cfg.Graph.DefaultCardinality)
	assert.Equal(t, "long", cfg.Graph.VertexIDManager)
	assert.True(t, cfg.IndexCache.Enabled)
	assert.Equal(t, 1000, cfg.IndexCache.MaxSize)
	assert.Equal(t, 5*time.Minute, cfg.IndexCache.MaxAge)
	assert.Equal(t, int64(5000), cfg.Memory.HighWaterMark)
	assert.Equal(t, 0.5, cfg.Memory.MinEfficiency)
	assert.Equal(t, time.Millisecond, cfg.Memory.MaxAllocationLatency)
	assert.True(t, cfg.Pool.Enabled)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	t.Run("collects every problem", func(t *testing.T) {
		cfg := Default()
		cfg.IndexCache.MaxSize = 0
		cfg.IndexCache.MaxAge = -time.Second
		cfg.Memory.MinEfficiency = 1.5
		cfg.Graph.EdgeIDManager = "snowflake"

		err := cfg.Validate()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidConfig))

		var merr *multierror.Error
		require.True(t, errors.As(err, &merr))
		assert.Len(t, merr.Errors, 4)

		var cerr *ConfigurationError
		require.True(t, errors.As(err, &cerr))
		assert.NotEmpty(t, cerr.Field)
	})

	t.Run("cardinality and logging", func(t *testing.T) {
		cfg := Default()
		cfg.Graph.DefaultCardinality = "bag"
		cfg.Logging.Level = "loud"
		cfg.Logging.Format = "xml"

		var merr *multierror.Error
		require.True(t, errors.As(cfg.Validate(), &merr))
		assert.Len(t, merr.Errors, 3)
	})

	t.Run("case insensitive names", func(t *testing.T) {
		cfg := Default()
		cfg.Graph.DefaultCardinality = "LIST"
		cfg.Graph.VertexIDManager = "UUID"
		assert.NoError(t, cfg.Validate())
	})
}

func TestConfigurationError(t *testing.T) {
	err := PositiveInt("index_cache.max_size", -1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
	assert.Contains(t, err.Error(), "index_cache.max_size=-1")

	assert.NoError(t, PositiveInt("x", 1))
	assert.NoError(t, PositiveDuration("x", time.Nanosecond))
	assert.Error(t, PositiveDuration("x", 0))
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tinkergraph.yaml")
	doc := `
graph:
  default_cardinality: list
  vertex_id_manager: uuid
index_cache:
  max_size: 64
  max_age: 30s
logging:
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg := Default()
	require.NoError(t, cfg.LoadFile(path))

	assert.Equal(t, "list", cfg.Graph.DefaultCardinality)
	assert.Equal(t, "uuid", cfg.Graph.VertexIDManager)
	assert.Equal(t, "long", cfg.Graph.EdgeIDManager, "absent keys keep defaults")
	assert.Equal(t, 64, cfg.IndexCache.MaxSize)
	assert.Equal(t, 30*time.Second, cfg.IndexCache.MaxAge)
	assert.Equal(t, "json", cfg.Logging.Format)

	t.Run("missing file", func(t *testing.T) {
		err := Default().LoadFile(filepath.Join(dir, "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("malformed file", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("index_cache: [1, 2"), 0o600))
		assert.Error(t, Default().LoadFile(bad))
	})
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("TINKERGRAPH_INDEX_CACHE_MAX_SIZE", "42")
	t.Setenv("TINKERGRAPH_INDEX_CACHE_MAX_AGE", "2m")
	t.Setenv("TINKERGRAPH_MEMORY_HIGH_WATER_MARK", "10")
	t.Setenv("TINKERGRAPH_POOL_ENABLED", "false")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(EnvPrefix))

	assert.Equal(t, 42, cfg.IndexCache.MaxSize)
	assert.Equal(t, 2*time.Minute, cfg.IndexCache.MaxAge)
	assert.Equal(t, int64(10), cfg.Memory.HighWaterMark)
	assert.False(t, cfg.Pool.Enabled)
	assert.Equal(t, 0.5, cfg.Memory.MinEfficiency, "unset variables keep values")

	t.Run("bad value", func(t *testing.T) {
		t.Setenv("TINKERGRAPH_POOL_MAX_IDLE", "lots")
		assert.Error(t, Default().ApplyEnv(EnvPrefix))
	})
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("index_cache:\n  max_size: 10\n"), 0o600))

	t.Run("env overrides file", func(t *testing.T) {
		t.Setenv("TINKERGRAPH_INDEX_CACHE_MAX_SIZE", "20")
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 20, cfg.IndexCache.MaxSize)
	})

	t.Run("no file", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, DefaultIndexCacheMaxSize, cfg.IndexCache.MaxSize)
	})

	t.Run("invalid result", func(t *testing.T) {
		t.Setenv("TINKERGRAPH_MEMORY_MIN_SAMPLES", "0")
		_, err := Load("")
		assert.True(t, errors.Is(err, ErrInvalidConfig))
	})
}

func TestYAMLRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Pool.MaxIdle = 7
	data, err := cfg.YAML()
	require.NoError(t, err)
	assert.Contains(t, string(data), "max_idle: 7")

	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	loaded := Default()
	require.NoError(t, loaded.LoadFile(path))
	assert.Equal(t, cfg, loaded)
}

func TestNewLogger(t *testing.T) {
	logger := LoggingConfig{Level: "debug", Format: "json"}.NewLogger()
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	fallback := LoggingConfig{Level: "nonsense"}.NewLogger()
	assert.Equal(t, logrus.InfoLevel, fallback.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, fallback.Formatter)
}

func TestString(t *testing.T) {
	s := Default().String()
	assert.Contains(t, s, "Cardinality: single")
	assert.Contains(t, s, "Cache: true(1000, 5m0s)")
}
