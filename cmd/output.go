package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func validateOutputFormat(format string) error {
	switch format {
	case formatTable, formatJSON, formatYAML:
		return nil
	}
	return fmt.Errorf("invalid output format %q (must be table, json or yaml)", format)
}

// treeItem is one entry of a tree listing
type treeItem struct {
	Title   string
	Details []string
}

// formatTree renders items as a tree under a counted header
func formatTree(noun string, items []treeItem) string {
	if len(items) == 0 {
		return fmt.Sprintf("No %ss found\n", noun)
	}

	var sb strings.Builder

	// Header
	sb.WriteString("\n")
	sb.WriteString(strings.ToUpper(noun[:1]) + noun[1:])
	if len(items) != 1 {
		sb.WriteString("s")
	}
	fmt.Fprintf(&sb, " (%d):\n\n", len(items))

	for i, item := range items {
		isLast := i == len(items)-1
		prefix := "├"
		indent := "│   "
		if isLast {
			prefix = "╰"
			indent = "    "
		}

		fmt.Fprintf(&sb, "%s── %s\n", prefix, item.Title)
		for _, detail := range item.Details {
			if detail == "" {
				continue
			}
			fmt.Fprintf(&sb, "%s%s\n", indent, detail)
		}
	}

	sb.WriteString("\n")
	return sb.String()
}

// render writes v as JSON or YAML, or calls table for the table format
func render(cmd *cobra.Command, v any, table func(w io.Writer)) error {
	return renderTo(cmd.OutOrStdout(), outputFormat, v, table)
}

func renderTo(w io.Writer, format string, v any, table func(w io.Writer)) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		// go through JSON so keys match the API's field names
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}
		var generic any
		if err := yaml.Unmarshal(raw, &generic); err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(generic)
	default:
		table(w)
		return nil
	}
}

// printResult reports a completed or previewed change in table mode
func printResult(cmd *cobra.Command, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if isDryRun() {
		msg = "[dry-run] " + msg
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg)
}
