package schedule

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/harun/toolmap/pkg/toolmap"
)

// Options configures the scheduler service
type Options struct {
	// Registry to execute jobs against. Required.
	Registry *toolmap.Registry

	Logger zerolog.Logger

	// OnEvent receives lifecycle and completion events. Optional.
	OnEvent func(evt Event)
}

// Service runs scheduled tool executions against one registry. Jobs are
// held in memory; they live and die with the service.
type Service struct {
	registry *toolmap.Registry
	logger   zerolog.Logger
	onEvent  func(evt Event)

	mu      sync.RWMutex
	jobs    map[string]*Job
	timers  map[string]*time.Timer
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewService creates a scheduler bound to a registry
func NewService(opts Options) (*Service, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if opts.OnEvent == nil {
		opts.OnEvent = func(Event) {}
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Service{
		registry: opts.Registry,
		logger:   opts.Logger.With().Str("component", "scheduler").Str("session_id", opts.Registry.SessionID()).Logger(),
		onEvent:  opts.OnEvent,
		jobs:     make(map[string]*Job),
		timers:   make(map[string]*time.Timer),
		ctx:      ctx,
		cancel:   cancel,
	}

	s.logger.Info().Msg("Scheduler initialized")

	return s, nil
}

// AddJob creates a new scheduled job. The target tool must already be
// registered in the session.
func (s *Service) AddJob(params AddParams) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil, fmt.Errorf("scheduler is stopped")
	}
	if params.Name == "" {
		return nil, fmt.Errorf("job name is required")
	}
	if params.ToolID == "" {
		return nil, fmt.Errorf("tool id is required")
	}
	if s.registry.GetTool(params.ToolID) == nil {
		return nil, fmt.Errorf("tool not found in session: %s", params.ToolID)
	}

	nextRunAtMs, err := CalculateNextRun(params.Schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule: %w", err)
	}

	now := Now()
	job := &Job{
		ID:             uuid.New().String(),
		ToolID:         params.ToolID,
		Name:           params.Name,
		Description:    params.Description,
		Enabled:        params.Enabled,
		DeleteAfterRun: params.DeleteAfterRun,
		CreatedAtMs:    now,
		UpdatedAtMs:    now,
		Schedule:       params.Schedule,
		Context:        params.Context.Clone(),
		State: JobState{
			NextRunAtMs: Int64Ptr(nextRunAtMs),
		},
	}

	s.jobs[job.ID] = job

	if job.Enabled {
		s.scheduleJobLocked(job)
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("tool_id", job.ToolID).
		Str("name", job.Name).
		Bool("enabled", job.Enabled).
		Msg("Job created")

	s.onEvent(Event{Action: EventActionAdded, JobID: job.ID})

	return job, nil
}

// UpdateJob updates an existing job
func (s *Service) UpdateJob(id string, patch JobPatch) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil, fmt.Errorf("scheduler is stopped")
	}

	job, exists := s.jobs[id]
	if !exists {
		return nil, fmt.Errorf("job not found: %s", id)
	}

	scheduleChanged := false
	enabledChanged := false
	oldEnabled := job.Enabled

	if patch.Name != nil {
		job.Name = *patch.Name
	}
	if patch.Description != nil {
		job.Description = *patch.Description
	}
	if patch.Enabled != nil {
		job.Enabled = *patch.Enabled
		enabledChanged = oldEnabled != job.Enabled
	}
	if patch.DeleteAfterRun != nil {
		job.DeleteAfterRun = *patch.DeleteAfterRun
	}
	if patch.Schedule != nil {
		job.Schedule = *patch.Schedule
		scheduleChanged = true
	}
	if patch.Context != nil {
		job.Context = patch.Context.Clone()
	}

	job.UpdatedAtMs = Now()

	if scheduleChanged {
		nextRunAtMs, err := CalculateNextRun(job.Schedule)
		if err != nil {
			return nil, fmt.Errorf("invalid schedule: %w", err)
		}
		job.State.NextRunAtMs = Int64Ptr(nextRunAtMs)
	}

	if scheduleChanged || enabledChanged {
		s.cancelJobLocked(id)
		if job.Enabled {
			s.scheduleJobLocked(job)
		}
	}

	s.logger.Info().
		Str("job_id", id).
		Bool("schedule_changed", scheduleChanged).
		Bool("enabled_changed", enabledChanged).
		Msg("Job updated")

	s.onEvent(Event{Action: EventActionUpdated, JobID: id})

	return job, nil
}

// RemoveJob deletes a job and cancels its timer
func (s *Service) RemoveJob(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return fmt.Errorf("scheduler is stopped")
	}

	job, exists := s.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}

	s.cancelJobLocked(id)
	delete(s.jobs, id)

	s.logger.Info().Str("job_id", id).Str("name", job.Name).Msg("Job removed")

	s.onEvent(Event{Action: EventActionDeleted, JobID: id})

	return nil
}

// RunJob executes a job immediately, regardless of its schedule. Disabled
// jobs are skipped unless force is set.
func (s *Service) RunJob(id string, force bool) error {
	s.mu.RLock()
	job, exists := s.jobs[id]
	s.mu.RUnlock()

	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}

	if !force && !job.Enabled {
		s.logger.Debug().Str("job_id", id).Msg("Skipping disabled job")
		return nil
	}

	go s.executeJob(job)

	return nil
}

// ListJobs returns all jobs ordered by creation time
func (s *Service) ListJobs() []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAtMs < jobs[j].CreatedAtMs
	})

	return jobs
}

// GetJob returns a specific job, or nil
func (s *Service) GetJob(id string) *Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.jobs[id]
}

// Count returns the number of jobs
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.jobs)
}

// Stop cancels all timers and stops the scheduler
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	s.stopped = true
	s.cancel()

	for id := range s.timers {
		s.cancelJobLocked(id)
	}

	s.logger.Info().Msg("Scheduler stopped")
}

// scheduleJobLocked arms the timer for a job (must hold lock)
func (s *Service) scheduleJobLocked(job *Job) {
	if job.State.NextRunAtMs == nil {
		s.logger.Warn().Str("job_id", job.ID).Msg("Cannot schedule job without next run time")
		return
	}

	delay := *job.State.NextRunAtMs - Now()
	if delay < 0 {
		delay = 0
	}

	timer := time.AfterFunc(time.Duration(delay)*time.Millisecond, func() {
		s.executeJob(job)
	})

	s.timers[job.ID] = timer

	s.logger.Debug().
		Str("job_id", job.ID).
		Int64("delay_ms", delay).
		Msg("Job scheduled")
}

// cancelJobLocked stops a job's timer (must hold lock)
func (s *Service) cancelJobLocked(id string) {
	if timer, exists := s.timers[id]; exists {
		timer.Stop()
		delete(s.timers, id)
	}
}

// executeJob runs the job's tool and updates job state
func (s *Service) executeJob(job *Job) {
	s.mu.Lock()

	currentJob, exists := s.jobs[job.ID]
	if !exists {
		s.mu.Unlock()
		return
	}
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if currentJob.State.RunningAtMs != nil {
		s.mu.Unlock()
		s.logger.Debug().Str("job_id", job.ID).Msg("Job already running, skipping")
		return
	}

	startMs := Now()
	currentJob.State.RunningAtMs = Int64Ptr(startMs)
	toolID := currentJob.ToolID
	execCtx := currentJob.Context.Clone()
	s.mu.Unlock()

	s.logger.Info().Str("job_id", job.ID).Str("tool_id", toolID).Msg("Executing job")

	result := s.registry.ExecuteTool(s.ctx, toolID, execCtx)

	s.mu.Lock()
	defer s.mu.Unlock()

	endMs := Now()
	durationMs := endMs - startMs

	currentJob.State.RunningAtMs = nil
	currentJob.State.LastRunAtMs = Int64Ptr(startMs)
	currentJob.State.LastDurationMs = Int64Ptr(durationMs)

	success := result.Success()
	if success {
		currentJob.State.LastStatus = "ok"
		currentJob.State.LastError = ""
		currentJob.State.ConsecutiveErrors = 0
	} else {
		currentJob.State.LastStatus = "error"
		currentJob.State.LastError = result.ErrorMessage()
		currentJob.State.ConsecutiveErrors++

		s.logger.Error().
			Str("job_id", job.ID).
			Str("error", currentJob.State.LastError).
			Int("consecutive_errors", currentJob.State.ConsecutiveErrors).
			Msg("Job execution failed")
	}

	if currentJob.DeleteAfterRun && success {
		s.cancelJobLocked(job.ID)
		delete(s.jobs, job.ID)
		s.onEvent(Event{Action: EventActionFinished, JobID: job.ID, Status: "ok", DurationMs: Int64Ptr(durationMs)})
		s.onEvent(Event{Action: EventActionDeleted, JobID: job.ID})
		return
	}

	// One-shot jobs stay around for inspection but do not rearm
	if currentJob.Schedule.Kind == KindAt {
		currentJob.Enabled = false
		currentJob.State.NextRunAtMs = nil
	} else {
		nextRunAtMs, calcErr := CalculateNextRun(currentJob.Schedule)
		if calcErr != nil {
			s.logger.Error().Str("job_id", job.ID).Err(calcErr).Msg("Failed to calculate next run")
			currentJob.State.NextRunAtMs = nil
		} else {
			currentJob.State.NextRunAtMs = Int64Ptr(nextRunAtMs)
		}
	}

	s.onEvent(Event{
		Action:      EventActionFinished,
		JobID:       job.ID,
		Status:      currentJob.State.LastStatus,
		Error:       currentJob.State.LastError,
		DurationMs:  Int64Ptr(durationMs),
		NextRunAtMs: currentJob.State.NextRunAtMs,
	})

	if currentJob.Enabled && !s.stopped && currentJob.State.NextRunAtMs != nil {
		s.scheduleJobLocked(currentJob)
	}
}
