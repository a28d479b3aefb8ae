// Package toolmap manages a bounded set of stateless, one-shot tool agents
// within a single session: registration, background initialization, query
// matching, and single or batch execution with per-tool statistics.
//
// Invariants:
// - Tool ids are unique within a registry and immutable once added.
// - At most one execution is in flight per tool id; concurrent callers
//   requesting the same id are serialized.
// - A failed execution returns the tool to READY; errors never strand a tool.
//
// Usage:
//
//	reg := toolmap.New(toolmap.Config{SessionID: "sess-1", MaxTools: 8})
//	_ = reg.AddTool("cost_estimator", tool, toolmap.ToolOptions{
//		Keywords: []string{"cost", "estimate"},
//	})
//	result := reg.ExecuteTool(ctx, "cost_estimator", toolmap.Context{"query": "estimate my cost"})
package toolmap
