package toolmap

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// DefaultMaxTools is the registry capacity when none is configured.
const DefaultMaxTools = 20

// DefaultMatchThreshold is the conventional minimum score for discovery.
const DefaultMatchThreshold = 0.3

// Config holds registry configuration.
type Config struct {
	SessionID      string
	MaxTools       int
	MaxHistorySize int
	Logger         zerolog.Logger
	Recorder       Recorder
}

// initTask is the handle for one in-flight background initialization.
// done is closed when the unit of work finishes, whatever the outcome.
type initTask struct {
	done   chan struct{}
	cancel context.CancelFunc
}

// Registry owns the tool map for one session. Registries are independent;
// multiple sessions may run concurrently without coordination.
type Registry struct {
	sessionID      string
	maxTools       int
	maxHistorySize int
	logger         zerolog.Logger
	recorder       Recorder

	mu        sync.RWMutex
	tools     map[string]*Entry
	order     []string
	initTasks map[string]*initTask

	totalAdded      int
	totalRemoved    int
	totalExecutions int
	createdAt       time.Time
}

// New creates a registry for one session. A missing session id is generated;
// capacity and history bounds fall back to their defaults.
func New(cfg Config) *Registry {
	if cfg.SessionID == "" {
		id, err := gonanoid.New()
		if err != nil {
			id = fmt.Sprintf("session-%d", time.Now().UnixNano())
		}
		cfg.SessionID = id
	}
	if cfg.MaxTools <= 0 {
		cfg.MaxTools = DefaultMaxTools
	}
	if cfg.MaxHistorySize <= 0 {
		cfg.MaxHistorySize = DefaultMaxHistorySize
	}
	if cfg.Recorder == nil {
		cfg.Recorder = NopRecorder{}
	}

	r := &Registry{
		sessionID:      cfg.SessionID,
		maxTools:       cfg.MaxTools,
		maxHistorySize: cfg.MaxHistorySize,
		logger:         cfg.Logger.With().Str("session_id", cfg.SessionID).Logger(),
		recorder:       cfg.Recorder,
		tools:          make(map[string]*Entry),
		initTasks:      make(map[string]*initTask),
		createdAt:      time.Now(),
	}

	r.logger.Info().Int("max_tools", r.maxTools).Msg("Tool registry created")

	return r
}

// SessionID returns the session this registry belongs to.
func (r *Registry) SessionID() string {
	return r.sessionID
}

// MaxTools returns the capacity bound.
func (r *Registry) MaxTools() int {
	return r.maxTools
}

// CreatedAt returns when the registry was constructed.
func (r *Registry) CreatedAt() time.Time {
	return r.createdAt
}

// AddTool registers a tool. It returns false, without creating an entry,
// when the registry is at capacity or the id already exists. Tools that
// implement Initializer are initialized in the background; AddTool returns
// immediately either way.
func (r *Registry) AddTool(toolID string, tool Tool, opts ToolOptions) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.tools) >= r.maxTools {
		r.logger.Warn().Int("max_tools", r.maxTools).Msg("Session at maximum tool capacity")
		return false
	}
	if _, exists := r.tools[toolID]; exists {
		r.logger.Warn().Str("tool_id", toolID).Msg("Tool already exists in session")
		return false
	}

	if opts.MaxHistorySize <= 0 {
		opts.MaxHistorySize = r.maxHistorySize
	}

	entry, err := NewEntry(toolID, tool, opts)
	if err != nil {
		r.logger.Error().Err(err).Msg("Rejected malformed tool registration")
		return false
	}
	if tool == nil {
		r.logger.Warn().Str("tool_id", toolID).Msg("Tool registered without instance")
	}

	r.tools[toolID] = entry
	r.order = append(r.order, toolID)
	r.totalAdded++

	if init, ok := tool.(Initializer); ok {
		ctx, cancel := context.WithCancel(context.Background())
		task := &initTask{done: make(chan struct{}), cancel: cancel}
		r.initTasks[toolID] = task
		go r.initializeTool(ctx, entry, init, task)
	} else {
		entry.markReady(time.Now())
	}

	r.recorder.ToolRegistered(r.sessionID)
	r.logger.Info().Str("tool_id", toolID).Str("name", entry.Name).Msg("Tool added")

	return true
}

// initializeTool is the detached background unit of work for one tool.
// Its only observable effects are the entry's status transition and, on
// failure, the error-record fields.
func (r *Registry) initializeTool(ctx context.Context, entry *Entry, init Initializer, task *initTask) {
	defer func() {
		close(task.done)
		r.mu.Lock()
		if r.initTasks[entry.ToolID] == task {
			delete(r.initTasks, entry.ToolID)
		}
		r.mu.Unlock()
	}()

	err := safeInitialize(ctx, init)
	if ctx.Err() != nil {
		// Cancelled by removal or cleanup; side effects up to this point
		// are not rolled back.
		return
	}
	if err != nil {
		entry.recordError(err.Error())
		r.recorder.ToolInitFailed(entry.ToolID)
		r.logger.Error().Err(err).Str("tool_id", entry.ToolID).Msg("Failed to initialize tool")
		return
	}

	entry.markReady(time.Now())
	r.logger.Info().Str("tool_id", entry.ToolID).Msg("Tool initialized")
}

// RemoveTool removes a tool, cancelling any pending initialization.
// It returns false when the id is unknown.
func (r *Registry) RemoveTool(toolID string) bool {
	r.mu.Lock()
	if _, exists := r.tools[toolID]; !exists {
		r.mu.Unlock()
		r.logger.Warn().Str("tool_id", toolID).Msg("Tool not found in session")
		return false
	}

	if task, pending := r.initTasks[toolID]; pending {
		task.cancel()
		delete(r.initTasks, toolID)
	}

	delete(r.tools, toolID)
	for i, id := range r.order {
		if id == toolID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.totalRemoved++
	r.mu.Unlock()

	r.recorder.ToolRemoved(r.sessionID)
	r.logger.Info().Str("tool_id", toolID).Msg("Tool removed")

	return true
}

// GetTool returns the entry for an id, or nil.
func (r *Registry) GetTool(toolID string) *Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[toolID]
}

// GetAllTools returns a defensive copy of the tool map.
func (r *Registry) GetAllTools() map[string]*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*Entry, len(r.tools))
	for id, entry := range r.tools {
		out[id] = entry
	}
	return out
}

// GetReadyTools returns the tools currently in READY status.
func (r *Registry) GetReadyTools() map[string]*Entry {
	return r.filterTools(func(e *Entry) bool { return e.IsReady() })
}

// GetToolsByCapability returns the tools listing the given capability.
func (r *Registry) GetToolsByCapability(capability string) map[string]*Entry {
	return r.filterTools(func(e *Entry) bool {
		for _, c := range e.Capabilities {
			if c == capability {
				return true
			}
		}
		return false
	})
}

// GetToolsByStatus returns the tools currently in the given status.
func (r *Registry) GetToolsByStatus(status Status) map[string]*Entry {
	return r.filterTools(func(e *Entry) bool { return e.Status() == status })
}

func (r *Registry) filterTools(keep func(*Entry) bool) map[string]*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*Entry)
	for id, entry := range r.tools {
		if keep(entry) {
			out[id] = entry
		}
	}
	return out
}

// Match is one discovery result.
type Match struct {
	ToolID string
	Entry  *Entry
	Score  float64
}

// FindMatchingTools scores every available tool against the query and
// returns those at or above the threshold, sorted by descending score.
// Ties keep insertion order.
func (r *Registry) FindMatchingTools(query string, threshold float64) []Match {
	r.mu.RLock()
	entries := make([]*Entry, 0, len(r.order))
	for _, id := range r.order {
		entries = append(entries, r.tools[id])
	}
	r.mu.RUnlock()

	var matches []Match
	for _, entry := range entries {
		if !entry.IsAvailable() {
			continue
		}
		score := entry.MatchesQuery(query)
		if score >= threshold {
			matches = append(matches, Match{ToolID: entry.ToolID, Entry: entry, Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

// WaitForToolInitialization waits up to timeout for one tool's background
// initialization. When no work is pending it returns immediately: true iff
// the entry exists and is READY. A timeout returns false without cancelling
// the background work.
func (r *Registry) WaitForToolInitialization(ctx context.Context, toolID string, timeout time.Duration) bool {
	r.mu.RLock()
	task := r.initTasks[toolID]
	entry := r.tools[toolID]
	r.mu.RUnlock()

	if task == nil {
		return entry != nil && entry.IsReady()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-task.done:
		return true
	case <-timer.C:
		r.logger.Error().Str("tool_id", toolID).Msg("Timeout waiting for tool initialization")
		return false
	case <-ctx.Done():
		return false
	}
}

// WaitForAllInitializations waits up to timeout for every pending
// initialization jointly. On success the handle set is cleared; on timeout
// the handles are left intact so the wait can be retried.
func (r *Registry) WaitForAllInitializations(ctx context.Context, timeout time.Duration) bool {
	r.mu.RLock()
	tasks := make([]*initTask, 0, len(r.initTasks))
	for _, task := range r.initTasks {
		tasks = append(tasks, task)
	}
	r.mu.RUnlock()

	if len(tasks) == 0 {
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for _, task := range tasks {
		select {
		case <-task.done:
		case <-timer.C:
			r.logger.Error().Msg("Timeout waiting for tool initializations")
			return false
		case <-ctx.Done():
			return false
		}
	}

	r.mu.Lock()
	clear(r.initTasks)
	r.mu.Unlock()

	return true
}

// Cleanup cancels every pending initialization and removes every tool, so
// per-removal bookkeeping runs uniformly.
func (r *Registry) Cleanup() {
	r.mu.Lock()
	for _, task := range r.initTasks {
		task.cancel()
	}
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	r.mu.Unlock()

	for _, id := range ids {
		r.RemoveTool(id)
	}

	r.logger.Info().Msg("Tool registry cleaned up")
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// CountReady returns the number of READY tools.
func (r *Registry) CountReady() int {
	return len(r.GetReadyTools())
}

// Statistics is an aggregate snapshot of a registry.
type Statistics struct {
	SessionID            string        `json:"session_id"`
	CreatedAt            time.Time     `json:"created_at"`
	TotalTools           int           `json:"total_tools"`
	ReadyTools           int           `json:"ready_tools"`
	UninitializedTools   int           `json:"uninitialized_tools"`
	ErrorTools           int           `json:"error_tools"`
	TotalAdded           int           `json:"total_added"`
	TotalRemoved         int           `json:"total_removed"`
	TotalExecutions      int           `json:"total_executions"`
	AverageExecutionTime time.Duration `json:"average_execution_time"`
	MaxTools             int           `json:"max_tools"`
	CapacityUsed         float64       `json:"capacity_used"`
}

// GetStatistics returns an aggregate snapshot across all tools.
func (r *Registry) GetStatistics() Statistics {
	r.mu.RLock()
	entries := make([]*Entry, 0, len(r.tools))
	for _, entry := range r.tools {
		entries = append(entries, entry)
	}
	stats := Statistics{
		SessionID:       r.sessionID,
		CreatedAt:       r.createdAt,
		TotalTools:      len(r.tools),
		TotalAdded:      r.totalAdded,
		TotalRemoved:    r.totalRemoved,
		TotalExecutions: r.totalExecutions,
		MaxTools:        r.maxTools,
	}
	r.mu.RUnlock()

	var totalTime time.Duration
	var totalCount int
	for _, entry := range entries {
		switch entry.Status() {
		case StatusReady:
			stats.ReadyTools++
		case StatusUninitialized:
			stats.UninitializedTools++
		case StatusError:
			stats.ErrorTools++
		}
		totalTime += entry.TotalExecutionTime()
		totalCount += entry.ExecutionCount()
	}
	if totalCount > 0 {
		stats.AverageExecutionTime = totalTime / time.Duration(totalCount)
	}
	if stats.MaxTools > 0 {
		stats.CapacityUsed = float64(stats.TotalTools) / float64(stats.MaxTools) * 100
	}

	return stats
}

// ToolInfo is a summary row for ListTools.
type ToolInfo struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Status         Status   `json:"status"`
	Capabilities   []string `json:"capabilities"`
	ExecutionCount int      `json:"execution_count"`
}

// ListTools returns a summary of every tool, in insertion order.
func (r *Registry) ListTools() []ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ToolInfo, 0, len(r.order))
	for _, id := range r.order {
		entry := r.tools[id]
		out = append(out, ToolInfo{
			ID:             id,
			Name:           entry.Name,
			Description:    entry.Description,
			Status:         entry.Status(),
			Capabilities:   entry.Capabilities,
			ExecutionCount: entry.ExecutionCount(),
		})
	}
	return out
}
