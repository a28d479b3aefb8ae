// Package sessions manages the lifecycle of per-session tool registries.
// Each session owns an isolated toolmap.Registry; creating, looking up and
// ending sessions goes through a single Manager.
package sessions

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/harun/toolmap/pkg/config"
	"github.com/harun/toolmap/pkg/logger"
	"github.com/harun/toolmap/pkg/metrics"
	"github.com/harun/toolmap/pkg/toolmap"
)

// Manager owns all live session registries
type Manager struct {
	maxTools       int
	maxHistorySize int
	logger         zerolog.Logger
	recorder       toolmap.Recorder

	// Set only by NewManagerFromConfig; released on Shutdown.
	ownedLogger *logger.Logger
	metrics     *metrics.Metrics

	mu       sync.RWMutex
	sessions map[string]*toolmap.Registry
}

// Config holds manager configuration
type Config struct {
	// MaxTools and MaxHistorySize apply to every session created by this
	// manager. Zero values fall back to the toolmap defaults.
	MaxTools       int
	MaxHistorySize int

	Logger   zerolog.Logger
	Recorder toolmap.Recorder
}

// NewManager creates a session manager
func NewManager(cfg Config) *Manager {
	if cfg.Recorder == nil {
		cfg.Recorder = toolmap.NopRecorder{}
	}

	m := &Manager{
		maxTools:       cfg.MaxTools,
		maxHistorySize: cfg.MaxHistorySize,
		logger:         cfg.Logger.With().Str("component", "session_manager").Logger(),
		recorder:       cfg.Recorder,
		sessions:       make(map[string]*toolmap.Registry),
	}

	m.logger.Info().Msg("Session manager initialized")

	return m
}

// NewManagerFromConfig wires a manager from a loaded configuration: the
// logger is built per cfg.Logging and, when metrics are enabled, a
// Prometheus recorder is attached. The manager owns both; Shutdown
// releases the logger.
func NewManagerFromConfig(cfg *config.Config) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: cfg.Logging.Console,
		Pretty:  cfg.Logging.Pretty,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	var rec toolmap.Recorder = toolmap.NopRecorder{}
	var mx *metrics.Metrics
	if cfg.Metrics.Enabled {
		mx = metrics.New()
		rec = mx
	}

	m := NewManager(Config{
		MaxTools:       cfg.Registry.MaxTools,
		MaxHistorySize: cfg.Registry.MaxHistorySize,
		Logger:         log.Zerolog(),
		Recorder:       rec,
	})
	m.ownedLogger = log
	m.metrics = mx

	return m, nil
}

// Metrics returns the Prometheus metrics when the manager was built from a
// configuration with metrics enabled, else nil. Hosts expose its Handler()
// on their own mux.
func (m *Manager) Metrics() *metrics.Metrics {
	return m.metrics
}

// validateSessionID rejects ids that would be ambiguous in logs or metrics.
// An empty id is allowed; a fresh one is generated for it.
func validateSessionID(sessionID string) error {
	if strings.ContainsAny(sessionID, " \t\n") {
		return fmt.Errorf("session id cannot contain whitespace")
	}
	if strings.Contains(sessionID, "\x00") {
		return fmt.Errorf("session id cannot contain null bytes")
	}
	return nil
}

// CreateSession creates a registry for a new session. When sessionID is
// empty a unique id is generated. Creating a session that already exists
// is an error.
func (m *Manager) CreateSession(sessionID string) (*toolmap.Registry, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if sessionID != "" {
		if _, exists := m.sessions[sessionID]; exists {
			return nil, fmt.Errorf("session %q already exists", sessionID)
		}
	}

	reg := toolmap.New(toolmap.Config{
		SessionID:      sessionID,
		MaxTools:       m.maxTools,
		MaxHistorySize: m.maxHistorySize,
		Logger:         m.logger,
		Recorder:       m.recorder,
	})

	m.sessions[reg.SessionID()] = reg

	m.logger.Info().
		Str("session_id", reg.SessionID()).
		Int("active_sessions", len(m.sessions)).
		Msg("Session created")

	return reg, nil
}

// GetSession returns the registry for a session, or nil if none exists
func (m *Manager) GetSession(sessionID string) *toolmap.Registry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.sessions[sessionID]
}

// EndSession tears down a session and releases all of its tools. It
// returns false if the session does not exist.
func (m *Manager) EndSession(sessionID string) bool {
	m.mu.Lock()
	reg, exists := m.sessions[sessionID]
	if exists {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()

	if !exists {
		return false
	}

	reg.Cleanup()

	m.logger.Info().Str("session_id", sessionID).Msg("Session ended")

	return true
}

// ListSessions returns the ids of all live sessions, sorted
func (m *Manager) ListSessions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids
}

// Count returns the number of live sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.sessions)
}

// Shutdown ends every live session and releases owned resources
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*toolmap.Registry)
	m.mu.Unlock()

	for id, reg := range sessions {
		reg.Cleanup()
		m.logger.Debug().Str("session_id", id).Msg("Session ended during shutdown")
	}

	m.logger.Info().Int("sessions", len(sessions)).Msg("Session manager shut down")

	if m.ownedLogger != nil {
		m.ownedLogger.Close()
	}
}
