// Package exclude filters plan steps against user-supplied exclusion
// patterns. Patterns are matched against the composite key
// "domain.identifier" (e.g. "package.official.vim") and may be exact strings
// or shell-style globs with * and ?. A malformed pattern is a fatal error:
// silently ignoring one could let a destructive step through.
package exclude

import (
	"github.com/gobwas/glob"

	"github.com/hostconform/hostconform/pkg/reconcile"
)

// Pattern is one compiled exclusion pattern.
type Pattern struct {
	raw     string
	matcher glob.Glob
}

// String returns the pattern source text.
func (p Pattern) String() string {
	return p.raw
}

// Match reports whether the composite key matches the pattern. Exact
// patterns must match the full key; glob patterns use * and ? wildcards
// over the whole key, dots included.
func (p Pattern) Match(key string) bool {
	return p.matcher.Match(key)
}

// List is an ordered list of exclusion patterns.
type List []Pattern

// Compile compiles raw pattern strings in order. The ordering is preserved
// so reporting can say which pattern removed a step first.
func Compile(raw []string) (List, error) {
	list := make(List, 0, len(raw))
	for _, r := range raw {
		g, err := glob.Compile(r)
		if err != nil {
			return nil, reconcile.NewExclusionError("invalid exclusion pattern "+r, err)
		}
		list = append(list, Pattern{raw: r, matcher: g})
	}
	return list, nil
}

// Match reports whether any pattern matches the key, and which one.
func (l List) Match(key string) (Pattern, bool) {
	for _, p := range l {
		if p.Match(key) {
			return p, true
		}
	}
	return Pattern{}, false
}

// Filter removes every plan step matching any pattern and returns the
// filtered plan together with the removal count. Matching steps are removed
// entirely, not downgraded to skips. An empty list is a no-op. Filtering
// itself never fails; all failure happens at Compile time.
func Filter(plan *reconcile.Plan, list List) (*reconcile.Plan, int) {
	if len(list) == 0 {
		return plan, 0
	}

	filtered := &reconcile.Plan{
		ID:        plan.ID,
		CreatedAt: plan.CreatedAt,
		Steps:     make([]reconcile.Step, 0, len(plan.Steps)),
	}
	filtered.Summary.ExtrasReported = plan.Summary.ExtrasReported

	removed := 0
	for _, step := range plan.Steps {
		if _, ok := list.Match(step.Key()); ok {
			removed++
			continue
		}
		filtered.Steps = append(filtered.Steps, step)
		switch step.Action {
		case reconcile.ActionInstall:
			filtered.Summary.ToInstall++
		case reconcile.ActionRepair:
			filtered.Summary.ToRepair++
		case reconcile.ActionRemove:
			filtered.Summary.ToRemove++
		}
	}

	return filtered, removed
}
