package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Format selects a report output format.
type Format string

const (
	// FormatText renders a markdown-like text report.
	FormatText Format = "text"

	// FormatJSON renders the report as a JSON object.
	FormatJSON Format = "json"

	// FormatHTML renders a styled standalone HTML page.
	FormatHTML Format = "html"
)

// ParseFormat converts a format name into a Format.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(name)) {
	case FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatHTML:
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("invalid report format: %q", name)
	}
}

// Render writes the report in the requested format.
func Render(w io.Writer, r *Report, format Format) error {
	switch format {
	case FormatText:
		return RenderText(w, r)
	case FormatJSON:
		return RenderJSON(w, r)
	case FormatHTML:
		return RenderHTML(w, r)
	default:
		return fmt.Errorf("invalid report format: %q", format)
	}
}

// RenderJSON writes the report as indented JSON.
func RenderJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// RenderText writes the markdown-like text form.
func RenderText(w io.Writer, r *Report) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# Reconciliation report for %s\n\n", r.Hostname)
	fmt.Fprintf(&b, "- Generated: %s\n", r.Generated.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "- Run: %s\n", r.RunID)
	fmt.Fprintf(&b, "- Mode: %s\n", r.Mode)
	fmt.Fprintf(&b, "- Status: %s\n", r.OverallStatus)
	if r.ExcludedSteps > 0 {
		fmt.Fprintf(&b, "- Excluded steps: %d\n", r.ExcludedSteps)
	}
	b.WriteString("\n")

	if len(r.Warnings) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, warning := range r.Warnings {
			fmt.Fprintf(&b, "- %s\n", warning)
		}
		b.WriteString("\n")
	}

	for _, section := range r.Domains {
		fmt.Fprintf(&b, "## %s (%s)\n\n", section.Domain, section.Status)
		if section.Note != "" {
			fmt.Fprintf(&b, "- %s\n", section.Note)
		}
		for _, id := range section.Missing {
			fmt.Fprintf(&b, "- missing: %s\n", id)
		}
		for _, changed := range section.Changed {
			for _, d := range changed.Diffs {
				fmt.Fprintf(&b, "- changed: %s: %s is %q, want %q\n", changed.ID, d.Name, d.Got, d.Want)
			}
		}
		for _, id := range section.Extra {
			fmt.Fprintf(&b, "- extra: %s\n", id)
		}
		if section.Unchanged > 0 {
			fmt.Fprintf(&b, "- unchanged: %d\n", section.Unchanged)
		}
		b.WriteString("\n")
	}

	if r.Execution != nil {
		fmt.Fprintf(&b, "## Execution (%s)\n\n", r.Execution.Mode)
		for _, result := range r.Execution.Results {
			line := fmt.Sprintf("- %s %s.%s: %s", result.Step.Action, result.Step.Domain, result.Step.ID, result.Outcome)
			if result.Reason != "" {
				line += " (" + result.Reason + ")"
			}
			b.WriteString(line + "\n")
		}
		s := r.Execution.Summary
		fmt.Fprintf(&b, "\napplied=%d failed=%d skipped=%d would_apply=%d\n",
			s.Applied, s.Failed, s.Skipped, s.WouldApply)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
