// Package observe defines the State Observer contract the reconciliation
// core uses to learn the current state of a host. Observers are external
// collaborators registered per domain; Gather collects all domains
// concurrently with a per-domain timeout and degrades unavailable domains to
// warnings instead of failing the run.
package observe
