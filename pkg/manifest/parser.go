package manifest

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ParseError is a fatal manifest parse failure. It is only produced in
// strict mode; the lenient default downgrades problems to warnings so that
// manifests written by older tool versions keep loading.
type ParseError struct {
	// Line is the 1-based line number of the offending line.
	Line int

	// Text is the offending line, trimmed.
	Text string

	// Reason describes why the line was rejected.
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("manifest line %d: %s: %q", e.Line, e.Reason, e.Text)
}

// ParseOptions controls parser behavior.
type ParseOptions struct {
	// Strict turns malformed and unrecognized lines into fatal errors
	// instead of warnings.
	Strict bool
}

// Parse reads a manifest in the line-oriented declarative format and returns
// the entry set together with any warnings. Multiple concatenated fragments
// are valid input; when the same attribute is declared more than once the
// last occurrence wins and a duplicate warning records the discarded value.
//
// Grammar per line (comments and blank lines skipped):
//
//	<domain-prefix>.<identifier>[.<field>]=<value>
//
// Identifiers may contain dots; a trailing dotted token is treated as a
// field name only when the domain recognizes it (e.g. "checksum" for
// config.system), so "config.system.etc.fstab.checksum=abc" declares the
// checksum of the identifier "etc.fstab".
func Parse(r io.Reader, opts ParseOptions) (*Set, []Warning, error) {
	set := NewSet()
	var warnings []Warning

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		warn, err := parseLine(set, lineNo, line, opts)
		if err != nil {
			return nil, nil, err
		}
		if warn != nil {
			warnings = append(warnings, *warn)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading manifest: %w", err)
	}

	return set, warnings, nil
}

// parseLine parses a single non-blank, non-comment line into the set.
func parseLine(set *Set, lineNo int, line string, opts ParseOptions) (*Warning, error) {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		if opts.Strict {
			return nil, &ParseError{Line: lineNo, Text: line, Reason: "missing '='"}
		}
		return &Warning{
			Line:    lineNo,
			Kind:    WarningMalformed,
			Message: "line does not match key=value",
		}, nil
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)

	domain, rest, ok := matchDomain(key)
	if !ok {
		if opts.Strict {
			return nil, &ParseError{Line: lineNo, Text: line, Reason: "unknown domain prefix"}
		}
		return &Warning{
			Line:    lineNo,
			Kind:    WarningUnrecognized,
			Key:     key,
			Message: "no known domain prefix, line skipped",
		}, nil
	}
	if rest == "" {
		if opts.Strict {
			return nil, &ParseError{Line: lineNo, Text: line, Reason: "missing identifier"}
		}
		return &Warning{
			Line:    lineNo,
			Kind:    WarningMalformed,
			Key:     key,
			Message: "missing identifier after domain prefix",
		}, nil
	}

	id, attr := splitField(domain, rest)
	if overwritten := set.SetAttr(domain, id, attr, value); overwritten {
		return &Warning{
			Line:    lineNo,
			Kind:    WarningDuplicate,
			Key:     domain.Prefix() + "." + id,
			Message: fmt.Sprintf("attribute %q declared again, last occurrence wins", attr),
		}, nil
	}
	return nil, nil
}

// matchDomain resolves the domain prefix of a key and returns the remainder
// after the prefix.
func matchDomain(key string) (Domain, string, bool) {
	for _, d := range Domains {
		prefix := d.Prefix() + "."
		if strings.HasPrefix(key, prefix) {
			return d, key[len(prefix):], true
		}
	}
	return "", "", false
}

// splitField separates a trailing field name from the identifier. When the
// last dotted token is not a recognized field for the domain, the whole
// remainder is the identifier and the declaration targets the default
// "state" attribute.
func splitField(d Domain, rest string) (id, attr string) {
	if i := strings.LastIndex(rest, "."); i > 0 {
		if tail := rest[i+1:]; d.Field(tail) {
			return rest[:i], tail
		}
	}
	return rest, DefaultAttr
}
