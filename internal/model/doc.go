// Package model holds the format-agnostic representation of a workflow
// definition as decoded from the user's .hcl files, plus the error vocabulary
// shared by the graph builder and the executor.
//
// Most configuration fields that can reference other nodes are kept as raw
// hcl.Expression values rather than concrete Go types. Evaluation is deferred
// until the dependency graph is executing and upstream outputs exist; this is
// what makes data-dependent conditionals and runtime-sized scatter possible.
// Fields that must be known before execution starts (retry budgets, timeouts,
// explicit dependencies) are decoded to concrete values at load time.
package model
