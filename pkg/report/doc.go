// Package report turns diff and execution results into the user-facing
// reconciliation report. One Report struct feeds all three renderers (text,
// JSON, HTML) and the overall severity is computed in a single place, so the
// formats cannot disagree about the status of the same run.
package report
