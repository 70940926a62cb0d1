// Package output renders command results as a table, JSON or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

type Format string

const (
	Table Format = "table"
	JSON  Format = "json"
	YAML  Format = "yaml"
)

func Parse(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "", Table:
		return Table, nil
	case JSON, YAML:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q (table, json, yaml)", s)
}

// Printer writes values in one format. Table output needs a row function
// since each resource picks its own columns.
type Printer struct {
	Format Format
	Out    io.Writer
}

func (p Printer) Print(v any, header []string, rows func(add func(cols ...any))) error {
	switch p.Format {
	case JSON:
		enc := json.NewEncoder(p.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case YAML:
		enc := yaml.NewEncoder(p.Out)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	}
	w := tabwriter.NewWriter(p.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(header, "\t"))
	n := 0
	rows(func(cols ...any) {
		n++
		parts := make([]string, len(cols))
		for i, c := range cols {
			parts[i] = fmt.Sprint(c)
		}
		fmt.Fprintln(w, strings.Join(parts, "\t"))
	})
	if n == 0 {
		_, err := fmt.Fprintln(p.Out, "No resources found.")
		return err
	}
	return w.Flush()
}
