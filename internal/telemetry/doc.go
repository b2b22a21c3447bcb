// Package telemetry provides OpenTelemetry instrumentation for corethink.
//
// Tracing covers the reasoning pipeline: one span per invocation
// (orchestrator.run_reasoning), one per material gather (material.gather)
// and one per stage (reasoning.stage). Telemetry is disabled by default and
// never fails the caller; when an exporter cannot be created the instance
// reports itself degraded and falls back to the global no-op providers.
package telemetry
