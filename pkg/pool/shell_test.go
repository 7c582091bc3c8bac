package pool

import (
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/tinkergraph/pkg/config"
)

type shell struct {
	key   string
	value any
	meta  map[string]any
}

func newShellPool(t *testing.T, cfg config.PoolConfig) (*ShellPool[shell], *Tracker) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	tr := NewTracker(config.Default().Memory, WithTrackerLogger(logger))
	p := NewShellPool(KindProperty, cfg, tr,
		func() *shell { return &shell{meta: map[string]any{}} },
		func(s *shell) {
			s.key, s.value = "", nil
			clear(s.meta)
		})
	return p, tr
}

func TestShellPool_Reuse(t *testing.T) {
	p, tr := newShellPool(t, config.PoolConfig{Enabled: true, MaxIdle: 10})
	assert.Equal(t, KindProperty, p.Kind())
	assert.Positive(t, p.ShellSize())

	s := p.Get()
	s.key, s.value = "name", "marko"
	s.meta["since"] = 2010
	p.Put(s)
	assert.Equal(t, 1, p.Idle())

	again := p.Get()
	require.Same(t, s, again)
	assert.Empty(t, again.key)
	assert.Nil(t, again.value)
	assert.Empty(t, again.meta)

	stats := tr.Statistics()
	assert.Equal(t, int64(2), stats.Allocations)
	assert.Equal(t, int64(1), stats.PoolHits)
	assert.Equal(t, int64(1), stats.PoolReturns)
	assert.Equal(t, int64(1), stats.Active)
	assert.Equal(t, 2*p.ShellSize(), stats.TotalAllocatedBytes)
}

func TestShellPool_MaxIdle(t *testing.T) {
	p, tr := newShellPool(t, config.PoolConfig{Enabled: true, MaxIdle: 2})

	shells := []*shell{p.Get(), p.Get(), p.Get()}
	for _, s := range shells {
		p.Put(s)
	}
	assert.Equal(t, 2, p.Idle())

	stats := tr.Statistics()
	assert.Equal(t, int64(3), stats.Deallocations, "every release is recorded")
	assert.Equal(t, int64(2), stats.PoolReturns)
}

func TestShellPool_Disabled(t *testing.T) {
	p, tr := newShellPool(t, config.PoolConfig{Enabled: false, MaxIdle: 10})

	s := p.Get()
	p.Put(s)
	assert.Equal(t, 0, p.Idle())
	assert.NotSame(t, s, p.Get())

	stats := tr.Statistics()
	assert.Equal(t, int64(2), stats.Allocations)
	assert.Equal(t, int64(0), stats.PoolHits)
	assert.Equal(t, int64(1), stats.Deallocations)
}

func TestShellPool_CompactedByForceCleanup(t *testing.T) {
	p, tr := newShellPool(t, config.PoolConfig{Enabled: true, MaxIdle: 10})
	p.Put(p.Get())
	p.Put(p.Get())
	require.Equal(t, 1, p.Idle())

	assert.Equal(t, 1, tr.ForceCleanup())
	assert.Equal(t, 0, p.Idle())
}

func TestShellPool_NilPut(t *testing.T) {
	p, tr := newShellPool(t, config.PoolConfig{Enabled: true, MaxIdle: 10})
	p.Put(nil)
	assert.Equal(t, int64(0), tr.Statistics().Deallocations)
}
