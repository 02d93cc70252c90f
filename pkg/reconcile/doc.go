// Package reconcile implements the core reconciliation pipeline: it diffs
// declared manifest entries against observed host state, orders the result
// into a deterministic plan, and executes the plan sequentially through an
// external applier, in dry-run or apply mode. Severity classification and
// the classified error taxonomy of the whole system live here too.
package reconcile
