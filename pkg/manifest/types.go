package manifest

import (
	"fmt"
	"sort"
)

// DefaultAttr is the attribute assigned when a manifest line carries no
// explicit field name, e.g. "package.official.vim=required" declares
// state=required.
const DefaultAttr = "state"

// Entry is a single declared resource in the manifest.
type Entry struct {
	// Domain is the resource category.
	Domain Domain `json:"domain"`

	// ID is the identifier, unique within the domain.
	ID string `json:"id"`

	// Attrs holds the declared attributes (state, checksum, source, ...).
	Attrs map[string]string `json:"attrs"`
}

// Key returns the composite key "prefix.identifier" used for exclusion
// matching and reporting, e.g. "package.official.vim".
func (e Entry) Key() string {
	return e.Domain.Prefix() + "." + e.ID
}

// Attr returns the named attribute value, or "" when absent.
func (e Entry) Attr(name string) string {
	return e.Attrs[name]
}

// WarningKind classifies a parse warning.
type WarningKind string

const (
	// WarningDuplicate indicates an attribute was re-declared and the
	// earlier value was discarded.
	WarningDuplicate WarningKind = "duplicate"

	// WarningUnrecognized indicates a line that matched no known domain
	// prefix and was skipped.
	WarningUnrecognized WarningKind = "unrecognized"

	// WarningMalformed indicates a line that did not match the grammar
	// at all and was skipped.
	WarningMalformed WarningKind = "malformed"
)

// Warning records a non-fatal problem found while parsing.
type Warning struct {
	// Line is the 1-based line number in the input.
	Line int `json:"line"`

	// Kind is the warning classification.
	Kind WarningKind `json:"kind"`

	// Key is the composite key involved, when known.
	Key string `json:"key,omitempty"`

	// Message is the human-readable description.
	Message string `json:"message"`
}

func (w Warning) String() string {
	if w.Key != "" {
		return fmt.Sprintf("line %d: %s: %s (%s)", w.Line, w.Kind, w.Message, w.Key)
	}
	return fmt.Sprintf("line %d: %s: %s", w.Line, w.Kind, w.Message)
}

// Set holds the declared entries of a manifest, keyed by domain and
// identifier. A Set is immutable for the duration of a reconciliation run
// once parsing has finished.
type Set struct {
	entries map[Domain]map[string]*Entry
}

// NewSet creates an empty entry set.
func NewSet() *Set {
	return &Set{entries: make(map[Domain]map[string]*Entry)}
}

// Len returns the total number of entries across all domains.
func (s *Set) Len() int {
	n := 0
	for _, byID := range s.entries {
		n += len(byID)
	}
	return n
}

// Get returns the entry for (domain, id) if present.
func (s *Set) Get(d Domain, id string) (*Entry, bool) {
	e, ok := s.entries[d][id]
	return e, ok
}

// SetAttr records an attribute for (domain, id), creating the entry if
// needed. It returns true if an existing value was overwritten; the caller
// turns that into a duplicate warning so the last-occurrence-wins policy is
// never silent.
func (s *Set) SetAttr(d Domain, id, attr, value string) bool {
	byID, ok := s.entries[d]
	if !ok {
		byID = make(map[string]*Entry)
		s.entries[d] = byID
	}
	e, ok := byID[id]
	if !ok {
		e = &Entry{Domain: d, ID: id, Attrs: make(map[string]string)}
		byID[id] = e
	}
	_, overwritten := e.Attrs[attr]
	e.Attrs[attr] = value
	return overwritten
}

// Domain returns the entries of one domain, sorted by identifier.
func (s *Set) Domain(d Domain) []Entry {
	byID := s.entries[d]
	out := make([]Entry, 0, len(byID))
	for _, e := range byID {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Entries returns all entries in deterministic order: fixed domain order,
// then identifier.
func (s *Set) Entries() []Entry {
	var out []Entry
	for _, d := range Domains {
		out = append(out, s.Domain(d)...)
	}
	return out
}

// Equal reports whether two sets contain the same entries with the same
// attributes. Used by the round-trip tests.
func (s *Set) Equal(other *Set) bool {
	if s.Len() != other.Len() {
		return false
	}
	for _, d := range Domains {
		for id, e := range s.entries[d] {
			oe, ok := other.entries[d][id]
			if !ok || len(e.Attrs) != len(oe.Attrs) {
				return false
			}
			for k, v := range e.Attrs {
				if oe.Attrs[k] != v {
					return false
				}
			}
		}
	}
	return true
}
