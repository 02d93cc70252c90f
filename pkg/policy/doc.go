// Package policy gates the destructive side of reconciliation. Extra
// observed resources are reported but never removed unless a Rego prune
// policy explicitly authorizes the removal; the builtin policy denies
// everything. Policies are plain Rego modules in the hostconform.prune
// package, loaded from files or registered programmatically.
package policy
