// Package schedule runs registered tools on a timed basis. Jobs fire a
// single tool with a fixed execution context, either once ("at"), on a
// fixed interval ("every") or on a cron expression ("cron").
package schedule

import (
	"time"

	"github.com/harun/toolmap/pkg/toolmap"
)

// Kind represents the type of schedule
type Kind string

const (
	KindAt    Kind = "at"
	KindEvery Kind = "every"
	KindCron  Kind = "cron"
)

// Schedule represents a time specification for job execution
type Schedule struct {
	Kind Kind `json:"kind"`

	// For "at" schedule
	At string `json:"at,omitempty"` // ISO 8601 timestamp

	// For "every" schedule
	EveryMs  int64  `json:"everyMs,omitempty"`  // Interval in milliseconds
	AnchorMs *int64 `json:"anchorMs,omitempty"` // Optional anchor point

	// For "cron" schedule
	Expr string `json:"expr,omitempty"` // Cron expression (5-field format)
	TZ   string `json:"tz,omitempty"`   // Optional timezone
}

// JobState tracks runtime state of a job
type JobState struct {
	NextRunAtMs       *int64 `json:"nextRunAtMs,omitempty"`
	RunningAtMs       *int64 `json:"runningAtMs,omitempty"`
	LastRunAtMs       *int64 `json:"lastRunAtMs,omitempty"`
	LastStatus        string `json:"lastStatus,omitempty"` // "ok" or "error"
	LastError         string `json:"lastError,omitempty"`
	LastDurationMs    *int64 `json:"lastDurationMs,omitempty"`
	ConsecutiveErrors int    `json:"consecutiveErrors,omitempty"`
}

// Job binds a tool to a schedule
type Job struct {
	ID             string          `json:"id"`
	ToolID         string          `json:"toolId"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Enabled        bool            `json:"enabled"`
	DeleteAfterRun bool            `json:"deleteAfterRun,omitempty"`
	CreatedAtMs    int64           `json:"createdAtMs"`
	UpdatedAtMs    int64           `json:"updatedAtMs"`
	Schedule       Schedule        `json:"schedule"`
	Context        toolmap.Context `json:"context,omitempty"` // Execution context passed on each run
	State          JobState        `json:"state"`
}

// AddParams contains parameters for creating a job
type AddParams struct {
	ToolID         string          `json:"toolId"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Enabled        bool            `json:"enabled"`
	DeleteAfterRun bool            `json:"deleteAfterRun,omitempty"`
	Schedule       Schedule        `json:"schedule"`
	Context        toolmap.Context `json:"context,omitempty"`
}

// JobPatch contains fields that can be updated
type JobPatch struct {
	Name           *string          `json:"name,omitempty"`
	Description    *string          `json:"description,omitempty"`
	Enabled        *bool            `json:"enabled,omitempty"`
	DeleteAfterRun *bool            `json:"deleteAfterRun,omitempty"`
	Schedule       *Schedule        `json:"schedule,omitempty"`
	Context        *toolmap.Context `json:"context,omitempty"`
}

// EventAction represents the type of event
type EventAction string

const (
	EventActionFinished EventAction = "finished"
	EventActionAdded    EventAction = "added"
	EventActionUpdated  EventAction = "updated"
	EventActionDeleted  EventAction = "deleted"
)

// Event represents a scheduler event
type Event struct {
	Action      EventAction `json:"action"`
	JobID       string      `json:"jobId"`
	Status      string      `json:"status,omitempty"`
	Error       string      `json:"error,omitempty"`
	DurationMs  *int64      `json:"durationMs,omitempty"`
	NextRunAtMs *int64      `json:"nextRunAtMs,omitempty"`
}

// Now returns current time in milliseconds
func Now() int64 {
	return time.Now().UnixMilli()
}

// Int64Ptr returns a pointer to an int64 value
func Int64Ptr(v int64) *int64 {
	return &v
}

// StringPtr returns a pointer to a string value
func StringPtr(v string) *string {
	return &v
}

// BoolPtr returns a pointer to a bool value
func BoolPtr(v bool) *bool {
	return &v
}
