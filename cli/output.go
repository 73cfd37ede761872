package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"maps"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/kaptinlin/jsonrepair"
	"github.com/spf13/cobra"
)

const maxColumnWidth = 40

// parseJSONArg decodes a JSON command line argument. Shell-mangled input such
// as single quotes or unquoted keys is repaired before giving up.
func parseJSONArg(content string, out any) error {
	err := json.Unmarshal([]byte(content), out)
	if err == nil {
		return nil
	}

	repairedJSON, repairErr := jsonrepair.JSONRepair(content)
	if repairErr != nil {
		return fmt.Errorf("failed to parse JSON argument %q: %w (repair error: %v)", content, err, repairErr)
	}
	if err := json.Unmarshal([]byte(repairedJSON), out); err != nil {
		return fmt.Errorf("failed to parse repaired JSON argument %q: %w", repairedJSON, err)
	}
	return nil
}

// jsonLines yields one decoded document per non-empty line of r. A read or
// parse failure stops the sequence and is stored in errp.
func jsonLines(r io.Reader, errp *error) iter.Seq[any] {
	return func(yield func(any) bool) {
		scanner := bufio.NewScanner(r)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var doc any
			if err := parseJSONArg(line, &doc); err != nil {
				*errp = fmt.Errorf("line %d: %w", lineNo, err)
				return
			}
			if !yield(doc) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			*errp = err
		}
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshalling to JSON: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(jsonData))
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

// printMessages prints chat messages as "role: content" lines. Items that
// are not messages are printed as JSON.
func printMessages(cmd *cobra.Command, messages []any) {
	out := cmd.OutOrStdout()
	if len(messages) == 0 {
		fmt.Fprintln(out, "No messages found")
		return
	}
	for _, item := range messages {
		if msg, ok := item.(map[string]any); ok && msg["role"] != nil {
			fmt.Fprintf(out, "%v: %v\n", msg["role"], msg["content"])
			continue
		}
		fmt.Fprintln(out, formatCell(item))
	}
}

// printTableHeader prints a table header with specified column widths
func printTableHeader(out io.Writer, columns []string, widths []int) {
	for i, col := range columns {
		fmt.Fprintf(out, "%-*s", widths[i], col)
		if i < len(columns)-1 {
			fmt.Fprint(out, " | ")
		}
	}
	fmt.Fprintln(out)

	for i, width := range widths {
		fmt.Fprint(out, strings.Repeat("-", width))
		if i < len(widths)-1 {
			fmt.Fprint(out, "-+-")
		}
	}
	fmt.Fprintln(out)
}

// printRows prints rows in a table, "id" first and the other columns sorted
func printRows(cmd *cobra.Command, rows []map[string]any, title string) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n%s:\n", title)
	if len(rows) == 0 {
		fmt.Fprintf(out, "No %s found\n", strings.ToLower(title))
		return
	}

	seen := make(map[string]bool)
	for _, row := range rows {
		for k := range row {
			seen[k] = true
		}
	}
	columns := sortedKeys(seen)
	if seen["id"] {
		columns = slices.DeleteFunc(columns, func(c string) bool { return c == "id" })
		columns = append([]string{"id"}, columns...)
	}

	widths := make([]int, len(columns))
	for i, col := range columns {
		widths[i] = utf8.RuneCountInString(col)
		for _, row := range rows {
			widths[i] = max(widths[i], utf8.RuneCountInString(formatCell(row[col])))
		}
		widths[i] = min(widths[i], maxColumnWidth)
	}

	printTableHeader(out, columns, widths)
	for _, row := range rows {
		for i, col := range columns {
			fmt.Fprintf(out, "%-*s", widths[i], truncateString(formatCell(row[col]), widths[i]))
			if i < len(columns)-1 {
				fmt.Fprint(out, " | ")
			}
		}
		fmt.Fprintln(out)
	}
}

func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case map[string]any, []any:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	default:
		return fmt.Sprint(val)
	}
}

// truncateString truncates a string if it's longer than maxLen runes and adds "..."
func truncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
