package toolmap

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ExecuteTool runs one tool against the given context and returns either the
// tool's result unchanged or the uniform failure shape. An UNINITIALIZED
// tool is initialized first (the caller blocks until that finishes); a tool
// in any other non-READY status is rejected without executing. Tool-side
// faults are recorded on the entry and converted to a failure result; the
// entry returns to READY so a single failure never strands a tool.
func (r *Registry) ExecuteTool(ctx context.Context, toolID string, execCtx Context) Result {
	r.mu.RLock()
	entry := r.tools[toolID]
	r.mu.RUnlock()

	if entry == nil {
		return failureResult(toolID, fmt.Sprintf("tool %s not found", toolID))
	}
	if execCtx == nil {
		execCtx = Context{}
	}

	if entry.schema != nil {
		if err := validateParams(entry.schema, execCtx); err != nil {
			r.logger.Error().Err(err).Str("tool_id", toolID).Msg("Parameter validation failed")
			return failureResult(toolID, fmt.Sprintf("parameter validation failed: %v", err))
		}
	}

	// Serializes concurrent callers of the same id: at most one execution
	// (or lazy initialization) is in flight per entry.
	entry.execMu.Lock()
	defer entry.execMu.Unlock()

	if entry.Status() == StatusUninitialized {
		r.ensureInitialized(ctx, entry)
	}

	if !entry.IsReady() {
		return failureResult(toolID, fmt.Sprintf("tool %s is not ready (status: %s)", toolID, entry.Status()))
	}

	entry.setStatus(StatusExecuting)
	start := time.Now()

	result, err := callTool(ctx, entry.tool, execCtx)
	duration := time.Since(start)

	if err != nil {
		entry.recordError(err.Error())
		// Errors are transient; the tool stays usable for the next call.
		entry.setStatus(StatusReady)
		r.recorder.ToolExecuted(toolID, duration, false)
		r.logger.Error().Err(err).Str("tool_id", toolID).Dur("duration", duration).Msg("Error executing tool")
		return failureResult(toolID, err.Error())
	}

	entry.updateExecutionStats(duration)
	entry.addToHistory(ExecutionRecord{
		Query:    execCtx.Query(),
		Result:   truncateForHistory(result),
		Success:  result.Success(),
		Duration: duration,
	})

	r.mu.Lock()
	r.totalExecutions++
	r.mu.Unlock()

	entry.setStatus(StatusReady)
	r.recorder.ToolExecuted(toolID, duration, true)
	r.logger.Info().Str("tool_id", toolID).Dur("duration", duration).Msg("Executed tool")

	return result
}

// ensureInitialized brings an UNINITIALIZED entry to a settled state before
// first use. If a background unit of work is pending, the caller waits for
// it; otherwise initialization runs inline.
func (r *Registry) ensureInitialized(ctx context.Context, entry *Entry) {
	r.mu.RLock()
	task := r.initTasks[entry.ToolID]
	r.mu.RUnlock()

	if task != nil {
		select {
		case <-task.done:
		case <-ctx.Done():
		}
		return
	}

	if entry.Status() != StatusUninitialized {
		return
	}

	init, ok := entry.tool.(Initializer)
	if !ok {
		entry.markReady(time.Now())
		return
	}
	if err := safeInitialize(ctx, init); err != nil {
		entry.recordError(err.Error())
		r.recorder.ToolInitFailed(entry.ToolID)
		r.logger.Error().Err(err).Str("tool_id", entry.ToolID).Msg("Failed to initialize tool")
		return
	}
	entry.markReady(time.Now())
}

// BatchResult aggregates one execute-multiple call.
type BatchResult struct {
	ToolsExecuted []string          `json:"tools_executed"`
	ToolResults   map[string]Result `json:"tool_results"`
	Success       bool              `json:"success"`
	TotalTime     time.Duration     `json:"total_time"`
}

// ExecuteMultipleTools executes the listed tools either sequentially or in
// parallel.
//
// Sequential mode runs tools in the given order against the same context;
// after each success the result is injected under "<tool_id>_result" so
// later tools can chain on it. A failure marks the batch failed but the
// remaining tools still run.
//
// Parallel mode launches every tool concurrently, each with an independent
// clone of the context. The executed-ids list preserves request order
// regardless of completion order.
func (r *Registry) ExecuteMultipleTools(ctx context.Context, toolIDs []string, execCtx Context, sequential bool) BatchResult {
	batch := BatchResult{
		ToolsExecuted: make([]string, 0, len(toolIDs)),
		ToolResults:   make(map[string]Result, len(toolIDs)),
		Success:       true,
	}
	if execCtx == nil {
		execCtx = Context{}
	}

	start := time.Now()

	if sequential {
		for _, toolID := range toolIDs {
			result := r.ExecuteTool(ctx, toolID, execCtx)
			batch.ToolsExecuted = append(batch.ToolsExecuted, toolID)
			batch.ToolResults[toolID] = result

			if result.Success() {
				execCtx[toolID+"_result"] = result
			} else {
				batch.Success = false
			}
		}
	} else {
		results := make([]Result, len(toolIDs))
		var wg sync.WaitGroup
		for i, toolID := range toolIDs {
			wg.Add(1)
			go func(i int, toolID string) {
				defer wg.Done()
				results[i] = r.ExecuteTool(ctx, toolID, execCtx.Clone())
			}(i, toolID)
		}
		wg.Wait()

		for i, toolID := range toolIDs {
			batch.ToolsExecuted = append(batch.ToolsExecuted, toolID)
			batch.ToolResults[toolID] = results[i]
			if !results[i].Success() {
				batch.Success = false
			}
		}
	}

	batch.TotalTime = time.Since(start)
	return batch
}

// callTool invokes the tool's execute operation, converting a panic into an
// error so no fault propagates past the registry boundary.
func callTool(ctx context.Context, tool Tool, execCtx Context) (result Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = fmt.Errorf("tool panicked: %v", rec)
		}
	}()

	if tool == nil {
		return nil, fmt.Errorf("tool instance is nil")
	}
	return tool.Execute(ctx, execCtx)
}

// safeInitialize invokes an initializer with the same panic conversion.
func safeInitialize(ctx context.Context, init Initializer) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("initializer panicked: %v", rec)
		}
	}()
	return init.Initialize(ctx)
}
