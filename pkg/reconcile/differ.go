package reconcile

import (
	"sort"

	"github.com/hostconform/hostconform/pkg/manifest"
	"github.com/hostconform/hostconform/pkg/observe"
)

// AttrDiff records one comparable attribute that differs between declared
// and observed state.
type AttrDiff struct {
	// Name is the attribute name.
	Name string `json:"name"`

	// Want is the declared value.
	Want string `json:"want"`

	// Got is the observed value.
	Got string `json:"got"`
}

// ChangedPair couples a declared entry with its drifted observed item.
type ChangedPair struct {
	// Desired is the manifest entry.
	Desired manifest.Entry `json:"desired"`

	// Observed is the matching observed item.
	Observed observe.Item `json:"observed"`

	// Diffs lists the attributes that differ.
	Diffs []AttrDiff `json:"diffs"`
}

// DiffResult is the per-domain comparison of declared vs observed state.
// Every identifier present on the desired side lands in exactly one of
// missing, changed, or the unchanged count.
type DiffResult struct {
	// Domain is the domain this result covers.
	Domain manifest.Domain `json:"domain"`

	// Missing lists declared entries absent from the observed state.
	Missing []manifest.Entry `json:"missing"`

	// Extra lists observed items not declared in the manifest. Populated
	// only in detailed mode.
	Extra []observe.Item `json:"extra"`

	// Changed lists entries whose comparable attributes drifted.
	Changed []ChangedPair `json:"changed"`

	// Unchanged counts entries matching their observed state.
	Unchanged int `json:"unchanged"`

	// Detailed records whether Extra was computed.
	Detailed bool `json:"detailed"`
}

// Empty reports whether the domain is fully in conformance.
func (r DiffResult) Empty() bool {
	return len(r.Missing) == 0 && len(r.Changed) == 0
}

// Severity classifies the diff: any missing or changed entry is an error
// (the host does not conform); extras on their own are informational.
func (r DiffResult) Severity() Severity {
	if !r.Empty() {
		return SeverityError
	}
	return SeverityOK
}

// comparableAttrs names, per domain, the attributes whose values are
// compared for entries present on both sides. Package domains are
// presence-only.
var comparableAttrs = map[manifest.Domain][]string{
	manifest.DomainServiceSystem: {"state", "active"},
	manifest.DomainServiceUser:   {"state", "active"},
	manifest.DomainServiceMasked: {"state"},
	manifest.DomainConfigFile:    {"checksum"},
	manifest.DomainDockerNetwork: {"driver"},
	manifest.DomainDockerVolume:  {"driver"},
	manifest.DomainDockerCompose: {"checksum"},
}

// desiredAttr resolves the value the manifest expects for a comparable
// attribute. An enabled service implies an active unit even though the
// manifest never spells that out, which is how enabled-but-failed units are
// caught as drift.
func desiredAttr(e manifest.Entry, name string) (string, bool) {
	if v, ok := e.Attrs[name]; ok {
		return v, true
	}
	if name == "active" &&
		(e.Domain == manifest.DomainServiceSystem || e.Domain == manifest.DomainServiceUser) &&
		e.Attr(manifest.DefaultAttr) == "enabled" {
		return "active", true
	}
	return "", false
}

// Diff compares the declared entries of one domain against its observed
// items. The desired set is the post-merge manifest; the differ never
// re-resolves duplicates itself. Extra items are collected only when
// detailed is set.
func Diff(domain manifest.Domain, desired []manifest.Entry, observed []observe.Item, detailed bool) DiffResult {
	result := DiffResult{
		Domain:   domain,
		Missing:  []manifest.Entry{},
		Extra:    []observe.Item{},
		Changed:  []ChangedPair{},
		Detailed: detailed,
	}

	observedByID := make(map[string]observe.Item, len(observed))
	for _, item := range observed {
		observedByID[item.ID] = item
	}
	desiredIDs := make(map[string]bool, len(desired))

	for _, entry := range desired {
		desiredIDs[entry.ID] = true

		item, ok := observedByID[entry.ID]
		if !ok {
			result.Missing = append(result.Missing, entry)
			continue
		}

		diffs := compareAttrs(entry, item)
		if len(diffs) > 0 {
			result.Changed = append(result.Changed, ChangedPair{Desired: entry, Observed: item, Diffs: diffs})
			continue
		}
		result.Unchanged++
	}

	if detailed {
		for _, item := range observed {
			if !desiredIDs[item.ID] {
				result.Extra = append(result.Extra, item)
			}
		}
		sort.Slice(result.Extra, func(i, j int) bool { return result.Extra[i].ID < result.Extra[j].ID })
	}

	sort.Slice(result.Missing, func(i, j int) bool { return result.Missing[i].ID < result.Missing[j].ID })
	sort.Slice(result.Changed, func(i, j int) bool { return result.Changed[i].Desired.ID < result.Changed[j].Desired.ID })

	return result
}

// compareAttrs compares the comparable attributes of an entry present on
// both sides.
func compareAttrs(entry manifest.Entry, item observe.Item) []AttrDiff {
	var diffs []AttrDiff
	for _, name := range comparableAttrs[entry.Domain] {
		want, ok := desiredAttr(entry, name)
		if !ok || want == "" {
			continue
		}
		if got := item.Attr(name); got != want {
			diffs = append(diffs, AttrDiff{Name: name, Want: want, Got: got})
		}
	}
	return diffs
}
