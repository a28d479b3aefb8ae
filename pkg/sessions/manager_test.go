package sessions

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/toolmap/pkg/config"
	"github.com/harun/toolmap/pkg/toolmap"
)

type echoTool struct{}

func (echoTool) Execute(_ context.Context, execCtx toolmap.Context) (toolmap.Result, error) {
	return toolmap.Result{"success": true, "echo": execCtx.Query()}, nil
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	return NewManager(Config{
		MaxTools:       5,
		MaxHistorySize: 10,
		Logger:         zerolog.Nop(),
	})
}

func TestCreateSession(t *testing.T) {
	t.Run("explicit id", func(t *testing.T) {
		m := newTestManager(t)

		reg, err := m.CreateSession("sess-1")
		require.NoError(t, err)
		assert.Equal(t, "sess-1", reg.SessionID())
		assert.Equal(t, 5, reg.MaxTools())
		assert.Equal(t, 1, m.Count())
	})

	t.Run("generated id", func(t *testing.T) {
		m := newTestManager(t)

		reg, err := m.CreateSession("")
		require.NoError(t, err)
		assert.NotEmpty(t, reg.SessionID())
		assert.Same(t, reg, m.GetSession(reg.SessionID()))
	})

	t.Run("duplicate id rejected", func(t *testing.T) {
		m := newTestManager(t)

		_, err := m.CreateSession("sess-1")
		require.NoError(t, err)

		_, err = m.CreateSession("sess-1")
		assert.ErrorContains(t, err, "already exists")
		assert.Equal(t, 1, m.Count())
	})

	t.Run("invalid id rejected", func(t *testing.T) {
		m := newTestManager(t)

		_, err := m.CreateSession("has space")
		assert.Error(t, err)

		_, err = m.CreateSession("null\x00byte")
		assert.Error(t, err)
	})
}

func TestSessionIsolation(t *testing.T) {
	m := newTestManager(t)

	a, err := m.CreateSession("a")
	require.NoError(t, err)
	b, err := m.CreateSession("b")
	require.NoError(t, err)

	require.True(t, a.AddTool("echo", echoTool{}, toolmap.ToolOptions{Name: "Echo"}))

	assert.Equal(t, 1, a.Count())
	assert.Equal(t, 0, b.Count())
	assert.Nil(t, b.GetTool("echo"))
}

func TestEndSession(t *testing.T) {
	m := newTestManager(t)

	reg, err := m.CreateSession("sess-1")
	require.NoError(t, err)
	require.True(t, reg.AddTool("echo", echoTool{}, toolmap.ToolOptions{Name: "Echo"}))

	assert.True(t, m.EndSession("sess-1"))
	assert.Nil(t, m.GetSession("sess-1"))
	assert.Equal(t, 0, reg.Count())

	// Ending twice reports false
	assert.False(t, m.EndSession("sess-1"))
}

func TestListSessions(t *testing.T) {
	m := newTestManager(t)

	for _, id := range []string{"charlie", "alpha", "bravo"} {
		_, err := m.CreateSession(id)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"alpha", "bravo", "charlie"}, m.ListSessions())
}

func TestNewManagerFromConfig(t *testing.T) {
	t.Run("metrics enabled", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Registry.MaxTools = 3
		cfg.Metrics.Enabled = true

		m, err := NewManagerFromConfig(cfg)
		require.NoError(t, err)
		defer m.Shutdown()

		require.NotNil(t, m.Metrics())

		reg, err := m.CreateSession("sess-1")
		require.NoError(t, err)
		assert.Equal(t, 3, reg.MaxTools())
	})

	t.Run("metrics disabled", func(t *testing.T) {
		m, err := NewManagerFromConfig(config.DefaultConfig())
		require.NoError(t, err)
		defer m.Shutdown()

		assert.Nil(t, m.Metrics())
	})

	t.Run("invalid config rejected", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Registry.MaxTools = -1

		_, err := NewManagerFromConfig(cfg)
		assert.ErrorContains(t, err, "max_tools")
	})
}

func TestShutdown(t *testing.T) {
	m := newTestManager(t)

	a, err := m.CreateSession("a")
	require.NoError(t, err)
	require.True(t, a.AddTool("echo", echoTool{}, toolmap.ToolOptions{Name: "Echo"}))
	_, err = m.CreateSession("b")
	require.NoError(t, err)

	m.Shutdown()

	assert.Equal(t, 0, m.Count())
	assert.Equal(t, 0, a.Count())
	assert.Empty(t, m.ListSessions())
}
