package manifest

import (
	"bufio"
	"fmt"
	"io"
	"sort"
)

// Serialize writes the set back out in the manifest text format. Output is
// deterministic: domains in fixed order, identifiers sorted, the default
// state attribute first and remaining attributes sorted by name. Parsing the
// produced text yields a set equal to the input.
func Serialize(w io.Writer, set *Set) error {
	bw := bufio.NewWriter(w)

	for _, d := range Domains {
		entries := set.Domain(d)
		if len(entries) == 0 {
			continue
		}
		if _, err := fmt.Fprintf(bw, "# %s\n", d); err != nil {
			return err
		}
		for _, e := range entries {
			if err := writeEntry(bw, e); err != nil {
				return err
			}
		}
	}

	return bw.Flush()
}

func writeEntry(w io.Writer, e Entry) error {
	if v, ok := e.Attrs[DefaultAttr]; ok {
		if _, err := fmt.Fprintf(w, "%s.%s=%s\n", e.Domain.Prefix(), e.ID, v); err != nil {
			return err
		}
	}

	fields := make([]string, 0, len(e.Attrs))
	for name := range e.Attrs {
		if name != DefaultAttr {
			fields = append(fields, name)
		}
	}
	sort.Strings(fields)

	for _, name := range fields {
		if _, err := fmt.Fprintf(w, "%s.%s.%s=%s\n", e.Domain.Prefix(), e.ID, name, e.Attrs[name]); err != nil {
			return err
		}
	}
	return nil
}
