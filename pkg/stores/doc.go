// Package stores persists reconciliation reports. It provides a SQLite
// store with WAL mode and embedded schema migrations so past runs can be
// listed and re-rendered. The reconciliation core never depends on it;
// saving reports is a reporter-side concern wired in by the CLI.
package stores
