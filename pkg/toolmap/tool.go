package toolmap

import "context"

// Context carries the key/value payload handed to a tool execution.
type Context map[string]interface{}

// Clone returns a shallow copy of the context. Parallel batch execution
// hands every tool its own clone so no mutation crosses tool boundaries.
func (c Context) Clone() Context {
	dup := make(Context, len(c))
	for k, v := range c {
		dup[k] = v
	}
	return dup
}

// Query returns the "query" value when present.
func (c Context) Query() string {
	q, _ := c["query"].(string)
	return q
}

// Result is the key/value map a tool execution produces. A well-behaved tool
// sets at least the "success" boolean; its absence is treated as false.
type Result map[string]interface{}

// Success reports whether the result carries a true "success" flag.
func (r Result) Success() bool {
	ok, _ := r["success"].(bool)
	return ok
}

// ErrorMessage returns the "error" string when present.
func (r Result) ErrorMessage() string {
	msg, _ := r["error"].(string)
	return msg
}

// ToolID returns the "tool" string when present.
func (r Result) ToolID() string {
	id, _ := r["tool"].(string)
	return id
}

// failureResult is the uniform shape returned for every call that could not
// execute or whose tool failed: missing tool, not ready, or a raised fault.
func failureResult(toolID, msg string) Result {
	return Result{
		"success": false,
		"error":   msg,
		"tool":    toolID,
	}
}

// Tool is the capability contract the registry consumes. Tools are stateless,
// one-shot executors; the registry only holds a reference and never copies or
// owns their internal state.
type Tool interface {
	Execute(ctx context.Context, execCtx Context) (Result, error)
}

// Initializer is implemented by tools that need setup before first use.
// The registry runs it in the background after AddTool; a nil error marks
// the tool READY, anything else marks it ERROR.
type Initializer interface {
	Initialize(ctx context.Context) error
}

// QueryMatcher is implemented by tools that carry their own scoring.
// Discovery always scores with the entry-level heuristic; this hook exists
// for hosts that want to consult a tool directly.
type QueryMatcher interface {
	MatchesQuery(query string) float64
}
