package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cuemby/failwatch/pkg/types"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by -o
const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

// writeStructured renders v as JSON or YAML. It reports false for the table
// format, which callers render themselves.
func writeStructured(w io.Writer, format string, v interface{}) (bool, error) {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return true, enc.Encode(v)
	case outputTable, "":
		return false, nil
	default:
		return true, fmt.Errorf("unknown output format %q (use table, json or yaml)", format)
	}
}

func printRecords(w io.Writer, records []types.FailureRecord, now time.Time) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No failing hosts recorded")
		return
	}

	fmt.Fprintf(w, "%-40s %-24s %-6s %s\n", "HOST", "LAST ERROR", "HITS", "LAST SEEN")
	for _, r := range records {
		fmt.Fprintf(w, "%-40s %-24s %-6d %s\n",
			truncate(r.Host, 40),
			truncate(r.LastError, 24),
			r.Hits,
			humanize.RelTime(r.LastSeenTime(), now, "ago", "from now"),
		)
	}
}

func printSubmitResults(w io.Writer, results []types.SubmitResult) {
	for _, r := range results {
		switch {
		case r.OK:
			fmt.Fprintf(w, "✓ %s (status %d)\n", r.Domain, r.Status)
		case r.Rejected():
			fmt.Fprintf(w, "✗ %s rejected (status %d)\n", r.Domain, r.Status)
		default:
			fmt.Fprintf(w, "✗ %s unreachable: %s\n", r.Domain, r.Error)
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n-1]) + "…"
}
