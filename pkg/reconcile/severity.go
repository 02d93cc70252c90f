package reconcile

import (
	"encoding/json"
	"fmt"
)

// Severity classifies the outcome of a domain or of a whole run. Values are
// ordered: OK < Warning < Error. The overall severity of a run is the
// maximum across its domains and is never downgraded.
type Severity int

const (
	// SeverityOK indicates the domain matches its declared state.
	SeverityOK Severity = iota

	// SeverityWarning indicates a degraded but non-fatal condition, such
	// as an unobservable domain.
	SeverityWarning

	// SeverityError indicates missing or drifted entries, or a failed
	// apply step.
	SeverityError
)

// severityNames maps severities to their wire representation. The same
// strings appear in text, JSON, and HTML reports.
var severityNames = map[Severity]string{
	SeverityOK:      "ok",
	SeverityWarning: "warning",
	SeverityError:   "error",
}

// String returns the wire name of the severity.
func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// ExitCode maps the severity to the process exit code contract:
// OK=0, Warning=1, Error=2.
func (s Severity) ExitCode() int {
	return int(s)
}

// Max returns the higher of two severities.
func (s Severity) Max(other Severity) Severity {
	if other > s {
		return other
	}
	return s
}

// MarshalJSON renders the severity as its wire name.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON parses the wire name back into a severity.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseSeverity(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSeverity converts a wire name into a Severity.
func ParseSeverity(name string) (Severity, error) {
	for sev, n := range severityNames {
		if n == name {
			return sev, nil
		}
	}
	return SeverityOK, fmt.Errorf("invalid severity: %q", name)
}
