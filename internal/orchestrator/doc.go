// Package orchestrator is the single entry point transports use to reach the
// corethink core.
//
// RunReasoning drives one invocation end to end:
//
//	classify → compose → collect → reason → score → audit
//
// Every exported operation returns a value or rendered text, never a panic.
// Sandbox failures come back as descriptive error text. Each operation
// appends one record to the audit log.
package orchestrator
