package toolmap

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

// Status describes where a tool is in its lifecycle.
type Status string

const (
	StatusUninitialized Status = "uninitialized"
	StatusReady         Status = "ready"
	StatusExecuting     Status = "executing"
	StatusError         Status = "error"
	StatusDisabled      Status = "disabled"
)

// DefaultMaxHistorySize bounds the per-tool execution history.
const DefaultMaxHistorySize = 50

// historyResultLimit caps the serialized result stored per history record.
const historyResultLimit = 200

// ExecutionRecord is one bounded-history item for a tool.
type ExecutionRecord struct {
	Query     string        `json:"query,omitempty"`
	Result    string        `json:"result,omitempty"`
	Error     string        `json:"error,omitempty"`
	Success   bool          `json:"success"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// ToolOptions carries the optional registration fields for a tool.
type ToolOptions struct {
	Name           string
	Description    string
	HandlerName    string
	LLMConfig      map[string]interface{}
	SystemPrompt   string
	Capabilities   []string
	Keywords       []string
	Metadata       map[string]interface{}
	Parameters     []Parameter
	MaxHistorySize int
}

// Entry is the registry's bookkeeping record for one tool, distinct from the
// tool instance itself. Identity and configuration are fixed at registration;
// runtime state is guarded by the entry's own mutex so the background
// initializer and readers don't race.
type Entry struct {
	ToolID       string
	Name         string
	Description  string
	Category     string
	HandlerName  string
	LLMConfig    map[string]interface{}
	SystemPrompt string
	Capabilities []string
	Keywords     []string
	Metadata     map[string]interface{}

	tool           Tool
	schema         *gojsonschema.Schema
	maxHistorySize int

	// execMu serializes executions so a single entry never has two in
	// flight at once.
	execMu sync.Mutex

	mu                 sync.RWMutex
	status             Status
	initializedAt      time.Time
	lastExecuted       time.Time
	executionCount     int
	totalExecutionTime time.Duration
	history            []ExecutionRecord
	errorCount         int
	lastError          string
	lastErrorTime      time.Time
}

// NewEntry builds an entry in UNINITIALIZED status. An empty tool id is
// programming misuse and is the only construction error.
func NewEntry(toolID string, tool Tool, opts ToolOptions) (*Entry, error) {
	if toolID == "" {
		return nil, fmt.Errorf("tool id is required")
	}

	if opts.Name == "" {
		opts.Name = toolID
	}
	if opts.LLMConfig == nil {
		opts.LLMConfig = map[string]interface{}{}
	}
	if opts.Metadata == nil {
		opts.Metadata = map[string]interface{}{}
	}
	if opts.MaxHistorySize <= 0 {
		opts.MaxHistorySize = DefaultMaxHistorySize
	}

	var schema *gojsonschema.Schema
	if len(opts.Parameters) > 0 {
		var err error
		schema, err = buildParameterSchema(opts.Parameters)
		if err != nil {
			return nil, fmt.Errorf("invalid tool parameters: %w", err)
		}
	}

	return &Entry{
		ToolID:         toolID,
		Name:           opts.Name,
		Description:    opts.Description,
		Category:       "tool",
		HandlerName:    opts.HandlerName,
		LLMConfig:      opts.LLMConfig,
		SystemPrompt:   opts.SystemPrompt,
		Capabilities:   opts.Capabilities,
		Keywords:       opts.Keywords,
		Metadata:       opts.Metadata,
		tool:           tool,
		schema:         schema,
		maxHistorySize: opts.MaxHistorySize,
		status:         StatusUninitialized,
	}, nil
}

// Tool returns the externally-owned tool instance this entry references.
func (e *Entry) Tool() Tool {
	return e.tool
}

// Status returns the current lifecycle status.
func (e *Entry) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status
}

func (e *Entry) setStatus(s Status) {
	e.mu.Lock()
	e.status = s
	e.mu.Unlock()
}

// markReady transitions the entry to READY and stamps initialized_at.
func (e *Entry) markReady(at time.Time) {
	e.mu.Lock()
	e.status = StatusReady
	e.initializedAt = at
	e.mu.Unlock()
}

// IsReady reports whether the tool can execute right now.
func (e *Entry) IsReady() bool {
	return e.Status() == StatusReady
}

// IsAvailable reports whether the tool is usable: READY, or UNINITIALIZED
// because initialization is triggered lazily on first use.
func (e *Entry) IsAvailable() bool {
	s := e.Status()
	return s == StatusReady || s == StatusUninitialized
}

// InitializedAt returns when initialization completed (zero if it hasn't).
func (e *Entry) InitializedAt() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.initializedAt
}

// LastExecuted returns when the tool last finished a successful execution.
func (e *Entry) LastExecuted() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastExecuted
}

// ExecutionCount returns the number of successful executions.
func (e *Entry) ExecutionCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.executionCount
}

// TotalExecutionTime returns the accumulated execution time.
func (e *Entry) TotalExecutionTime() time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.totalExecutionTime
}

// AverageExecutionTime is total execution time over execution count, or 0
// when nothing has executed yet.
func (e *Entry) AverageExecutionTime() time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.executionCount == 0 {
		return 0
	}
	return e.totalExecutionTime / time.Duration(e.executionCount)
}

// ErrorCount returns the number of recorded errors.
func (e *Entry) ErrorCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.errorCount
}

// LastError returns the most recent error message.
func (e *Entry) LastError() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastError
}

// LastErrorTime returns when the most recent error was recorded.
func (e *Entry) LastErrorTime() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastErrorTime
}

// updateExecutionStats records one successful execution.
func (e *Entry) updateExecutionStats(duration time.Duration) {
	e.mu.Lock()
	e.lastExecuted = time.Now()
	e.executionCount++
	e.totalExecutionTime += duration
	e.mu.Unlock()
}

// addToHistory appends a record, stamping the current time if absent, and
// evicts the oldest records once the cap is exceeded.
func (e *Entry) addToHistory(rec ExecutionRecord) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	e.mu.Lock()
	e.history = append(e.history, rec)
	if len(e.history) > e.maxHistorySize {
		e.history = e.history[len(e.history)-e.maxHistorySize:]
	}
	e.mu.Unlock()
}

// recordError stores the error, forces status to ERROR, and appends a
// failure record to history.
func (e *Entry) recordError(msg string) {
	now := time.Now()

	e.mu.Lock()
	e.errorCount++
	e.lastError = msg
	e.lastErrorTime = now
	e.status = StatusError
	e.mu.Unlock()

	e.addToHistory(ExecutionRecord{
		Error:     msg,
		Success:   false,
		Timestamp: now,
	})
}

// RecentExecutions returns a copy of the most recent n history records,
// oldest first.
func (e *Entry) RecentExecutions(n int) []ExecutionRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if n <= 0 || len(e.history) == 0 {
		return nil
	}
	if n > len(e.history) {
		n = len(e.history)
	}
	out := make([]ExecutionRecord, n)
	copy(out, e.history[len(e.history)-n:])
	return out
}

// MatchesQuery scores how well this tool matches a natural-language query,
// case-insensitively: 0.4 per keyword hit, 0.3 per capability hit, 0.2 when
// the tool name appears, 0.1 when any description word appears. Clamped to
// [0, 1].
func (e *Entry) MatchesQuery(query string) float64 {
	q := strings.ToLower(query)
	score := 0.0

	for _, kw := range e.Keywords {
		if kw != "" && strings.Contains(q, strings.ToLower(kw)) {
			score += 0.4
		}
	}

	for _, capability := range e.Capabilities {
		if capability != "" && strings.Contains(q, strings.ToLower(capability)) {
			score += 0.3
		}
	}

	if e.Name != "" && strings.Contains(q, strings.ToLower(e.Name)) {
		score += 0.2
	}

	for _, word := range strings.Fields(strings.ToLower(e.Description)) {
		if strings.Contains(q, word) {
			score += 0.1
			break
		}
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// ToMap returns a serializable view of the entry.
func (e *Entry) ToMap() map[string]interface{} {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := map[string]interface{}{
		"tool_id":                e.ToolID,
		"name":                   e.Name,
		"description":            e.Description,
		"category":               e.Category,
		"handler_name":           e.HandlerName,
		"llm_config":             e.LLMConfig,
		"capabilities":           e.Capabilities,
		"keywords":               e.Keywords,
		"status":                 string(e.status),
		"execution_count":        e.executionCount,
		"average_execution_time": averageSeconds(e.totalExecutionTime, e.executionCount),
		"error_count":            e.errorCount,
		"last_error":             e.lastError,
		"metadata":               e.Metadata,
	}
	if !e.initializedAt.IsZero() {
		out["initialized_at"] = e.initializedAt.Format(time.RFC3339)
	}
	if !e.lastExecuted.IsZero() {
		out["last_executed"] = e.lastExecuted.Format(time.RFC3339)
	}
	return out
}

func averageSeconds(total time.Duration, count int) float64 {
	if count == 0 {
		return 0
	}
	return total.Seconds() / float64(count)
}

// truncateForHistory serializes a result for the bounded history: newlines
// collapsed to spaces, capped at historyResultLimit characters.
func truncateForHistory(result Result) string {
	s := strings.ReplaceAll(fmt.Sprintf("%v", result), "\n", " ")
	if r := []rune(s); len(r) > historyResultLimit {
		s = string(r[:historyResultLimit])
	}
	return s
}
