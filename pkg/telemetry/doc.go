// Package telemetry provides the observability plumbing for reconciliation
// runs: zerolog structured logging with context propagation, Prometheus
// metrics for runs, steps and drift, and an optional OpenTelemetry tracer
// spanning the observe/diff/plan/execute phases.
package telemetry
