// Package services assembles the corethink components from configuration
// and exposes them through a Registry.
//
// Transports and the CLI build one Registry per process with Build and hand
// it to the orchestrator. Tests use NewRegistry with hand-built components.
package services
