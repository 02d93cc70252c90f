package reconcile

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hostconform/hostconform/pkg/manifest"
	"github.com/hostconform/hostconform/pkg/observe"
)

// Action is the operation a plan step performs on a resource.
type Action string

const (
	// ActionInstall creates a missing resource.
	ActionInstall Action = "install"

	// ActionRemove deletes an extra resource. Only emitted when the
	// prune policy authorizes it.
	ActionRemove Action = "remove"

	// ActionRepair brings a drifted resource back to its declared state.
	ActionRepair Action = "repair"

	// ActionSkip marks a step that is recorded but never applied.
	ActionSkip Action = "skip"
)

// IsDestructive returns true for actions that delete live resources.
func (a Action) IsDestructive() bool {
	return a == ActionRemove
}

// Validate checks that the action is one of the known values.
func (a Action) Validate() error {
	switch a {
	case ActionInstall, ActionRemove, ActionRepair, ActionSkip:
		return nil
	default:
		return NewApplyError("invalid action: "+string(a), nil)
	}
}

// Step is one unit of work in a plan.
type Step struct {
	// Domain is the resource category.
	Domain manifest.Domain `json:"domain"`

	// ID is the resource identifier within the domain.
	ID string `json:"id"`

	// Action is the operation to perform.
	Action Action `json:"action"`

	// Reason explains why the step is in the plan.
	Reason string `json:"reason"`

	// Attrs carries the declared attributes the applier needs (source
	// path, checksum, driver, ...). Empty for Remove steps.
	Attrs map[string]string `json:"attrs,omitempty"`
}

// Key returns the composite key "prefix.identifier" used for exclusion
// matching.
func (s Step) Key() string {
	return s.Domain.Prefix() + "." + s.ID
}

// PlanSummary counts the steps of a plan by action.
type PlanSummary struct {
	// ToInstall is the number of install steps.
	ToInstall int `json:"to_install"`

	// ToRepair is the number of repair steps.
	ToRepair int `json:"to_repair"`

	// ToRemove is the number of remove steps.
	ToRemove int `json:"to_remove"`

	// ExtrasReported is the number of extra items reported but not
	// planned for removal.
	ExtrasReported int `json:"extras_reported"`
}

// Plan is an ordered sequence of steps. Steps are grouped by the fixed
// domain order and sorted by identifier within each domain, so building a
// plan twice from the same diffs yields the same plan.
type Plan struct {
	// ID is the unique identifier of this plan.
	ID string `json:"id"`

	// CreatedAt is when the plan was built.
	CreatedAt time.Time `json:"created_at"`

	// Steps are the ordered plan steps.
	Steps []Step `json:"steps"`

	// Summary counts steps by action.
	Summary PlanSummary `json:"summary"`
}

// Len returns the number of steps.
func (p *Plan) Len() int {
	return len(p.Steps)
}

// Pruner decides whether an extra observed item may be removed. The default
// stance is that nothing unrecognized is ever removed; a Pruner makes the
// exception explicit.
type Pruner interface {
	// AllowPrune returns whether removal of the item is authorized and a
	// short reason for the decision.
	AllowPrune(ctx context.Context, item observe.Item) (bool, string, error)
}

// PlanOptions configures plan building.
type PlanOptions struct {
	// Pruner authorizes Remove steps for extra items. When nil, extras
	// are reported but never planned for removal.
	Pruner Pruner
}

// BuildPlan turns per-domain diff results into an ordered plan. Missing
// entries become Install steps, changed entries become Repair steps, and
// extra items become Remove steps only when the prune policy allows them.
func BuildPlan(ctx context.Context, diffs []DiffResult, opts PlanOptions) (*Plan, error) {
	plan := &Plan{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
		Steps:     []Step{},
	}

	ordered := make([]DiffResult, len(diffs))
	copy(ordered, diffs)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Domain.Order() < ordered[j].Domain.Order() })

	for _, diff := range ordered {
		steps, err := domainSteps(ctx, diff, opts, &plan.Summary)
		if err != nil {
			return nil, err
		}
		sort.Slice(steps, func(i, j int) bool { return steps[i].ID < steps[j].ID })
		plan.Steps = append(plan.Steps, steps...)
	}

	return plan, nil
}

func domainSteps(ctx context.Context, diff DiffResult, opts PlanOptions, summary *PlanSummary) ([]Step, error) {
	var steps []Step

	for _, entry := range diff.Missing {
		steps = append(steps, Step{
			Domain: entry.Domain,
			ID:     entry.ID,
			Action: ActionInstall,
			Reason: "declared but not present",
			Attrs:  entry.Attrs,
		})
		summary.ToInstall++
	}

	for _, pair := range diff.Changed {
		steps = append(steps, Step{
			Domain: pair.Desired.Domain,
			ID:     pair.Desired.ID,
			Action: ActionRepair,
			Reason: changeReason(pair),
			Attrs:  pair.Desired.Attrs,
		})
		summary.ToRepair++
	}

	for _, item := range diff.Extra {
		if opts.Pruner == nil {
			summary.ExtrasReported++
			continue
		}
		allowed, reason, err := opts.Pruner.AllowPrune(ctx, item)
		if err != nil {
			return nil, NewApplyError("prune policy evaluation failed", err).WithStep(item.Key())
		}
		if !allowed {
			summary.ExtrasReported++
			continue
		}
		steps = append(steps, Step{
			Domain: item.Domain,
			ID:     item.ID,
			Action: ActionRemove,
			Reason: "not declared, removal authorized: " + reason,
		})
		summary.ToRemove++
	}

	return steps, nil
}

func changeReason(pair ChangedPair) string {
	reason := "drifted:"
	for i, d := range pair.Diffs {
		if i > 0 {
			reason += ","
		}
		reason += " " + d.Name + " is " + orNone(d.Got) + " instead of " + d.Want
	}
	return reason
}

func orNone(v string) string {
	if v == "" {
		return "(unset)"
	}
	return v
}
