package toolmap

import "time"

// Recorder receives execution and registration signals from a registry.
// Implementations must be safe for concurrent use.
type Recorder interface {
	ToolExecuted(toolID string, duration time.Duration, success bool)
	ToolRegistered(sessionID string)
	ToolRemoved(sessionID string)
	ToolInitFailed(toolID string)
}

// NopRecorder discards all signals. It is the default when no recorder is
// configured.
type NopRecorder struct{}

func (NopRecorder) ToolExecuted(string, time.Duration, bool) {}
func (NopRecorder) ToolRegistered(string)                    {}
func (NopRecorder) ToolRemoved(string)                       {}
func (NopRecorder) ToolInitFailed(string)                    {}
