package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/hostconform/hostconform/pkg/manifest"
	"github.com/hostconform/hostconform/pkg/reconcile"
)

// ChangedItem is one drifted entry in a domain section.
type ChangedItem struct {
	// ID is the resource identifier.
	ID string `json:"id"`

	// Diffs lists the attribute mismatches.
	Diffs []reconcile.AttrDiff `json:"diffs"`
}

// DomainSection is the per-domain part of a report. Field names are part of
// the wire contract and identical across the text, JSON, and HTML renderers.
type DomainSection struct {
	// Domain is the domain this section covers.
	Domain manifest.Domain `json:"domain"`

	// Status is the domain severity.
	Status reconcile.Severity `json:"status"`

	// Missing lists identifiers declared but not observed.
	Missing []string `json:"missing"`

	// Extra lists observed identifiers not declared (detailed mode only).
	Extra []string `json:"extra"`

	// Changed lists drifted entries.
	Changed []ChangedItem `json:"changed"`

	// Unchanged counts conforming entries.
	Unchanged int `json:"unchanged"`

	// Note carries the observation failure message for unavailable
	// domains.
	Note string `json:"note,omitempty"`
}

// Report is the complete outcome of one reconciliation run. All renderers
// consume this one struct; the overall status is computed in exactly one
// place (Finalize) so the formats can never disagree.
type Report struct {
	// Generated is when the report was produced.
	Generated time.Time `json:"generated"`

	// Hostname identifies the host the run reconciled.
	Hostname string `json:"hostname"`

	// RunID is the unique identifier of the run.
	RunID string `json:"run_id"`

	// Mode records how the run ended: "diff", "dry-run", or "apply".
	Mode string `json:"mode"`

	// Domains are the per-domain sections, in fixed domain order.
	Domains []DomainSection `json:"domains"`

	// Execution is the plan execution outcome, when a plan was run.
	Execution *reconcile.ExecutionReport `json:"execution,omitempty"`

	// ExcludedSteps counts plan steps removed by exclusion patterns.
	ExcludedSteps int `json:"excluded_steps"`

	// Warnings carries manifest parse warnings.
	Warnings []string `json:"warnings,omitempty"`

	// OverallStatus is the maximum severity across all domains and the
	// execution outcome.
	OverallStatus reconcile.Severity `json:"overall_status"`
}

// New creates an empty report for a host.
func New(hostname, runID string) *Report {
	return &Report{
		Generated: time.Now().UTC(),
		Hostname:  hostname,
		RunID:     runID,
		Mode:      "diff",
		Domains:   []DomainSection{},
	}
}

// AddDiff appends a domain section built from a diff result.
func (r *Report) AddDiff(diff reconcile.DiffResult) {
	section := DomainSection{
		Domain:    diff.Domain,
		Status:    diff.Severity(),
		Missing:   []string{},
		Extra:     []string{},
		Changed:   []ChangedItem{},
		Unchanged: diff.Unchanged,
	}
	for _, e := range diff.Missing {
		section.Missing = append(section.Missing, e.ID)
	}
	for _, item := range diff.Extra {
		section.Extra = append(section.Extra, item.ID)
	}
	for _, pair := range diff.Changed {
		section.Changed = append(section.Changed, ChangedItem{ID: pair.Desired.ID, Diffs: pair.Diffs})
	}
	r.Domains = append(r.Domains, section)
}

// AddUnavailable appends a warning section for a domain whose state source
// could not be reached.
func (r *Report) AddUnavailable(domain manifest.Domain, err error) {
	r.Domains = append(r.Domains, DomainSection{
		Domain:  domain,
		Status:  reconcile.SeverityWarning,
		Missing: []string{},
		Extra:   []string{},
		Changed: []ChangedItem{},
		Note:    fmt.Sprintf("observation unavailable: %v", err),
	})
}

// AddWarnings records manifest parse warnings.
func (r *Report) AddWarnings(warnings []manifest.Warning) {
	for _, w := range warnings {
		r.Warnings = append(r.Warnings, w.String())
	}
}

// SetExecution attaches the execution outcome and records the mode.
func (r *Report) SetExecution(exec *reconcile.ExecutionReport) {
	r.Execution = exec
	r.Mode = string(exec.Mode)
}

// Finalize sorts the domain sections into fixed order and computes the
// overall status as the maximum severity across domains and execution.
// It must be called before rendering.
func (r *Report) Finalize() {
	sort.SliceStable(r.Domains, func(i, j int) bool {
		return r.Domains[i].Domain.Order() < r.Domains[j].Domain.Order()
	})

	overall := reconcile.SeverityOK
	for _, section := range r.Domains {
		overall = overall.Max(section.Status)
	}
	if r.Execution != nil {
		overall = overall.Max(r.Execution.Severity())
	}
	r.OverallStatus = overall
}

// ExitCode maps the overall status to the CLI exit code.
func (r *Report) ExitCode() int {
	return r.OverallStatus.ExitCode()
}
