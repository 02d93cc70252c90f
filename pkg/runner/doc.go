// Package runner composes the reconciliation pipeline: manifest parsing,
// observation, diffing, planning, exclusion filtering, execution and
// reporting. Commands construct a Runner with their collaborators and call
// Diff or Run; everything in between is driven here so that every entry
// point shares the same ordering, telemetry and error handling.
package runner
