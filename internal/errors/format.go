// Package errors provides error formatting for cp2kit CLI output.
package errors

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// PrintOptions controls error output formatting.
type PrintOptions struct {
	// Verbose enables detailed error output with more context keys.
	Verbose bool
}

// Context key whitelist (default mode, in order).
var defaultContextKeys = []string{
	"op",
	"project",
	"phase",
	"deck",
	"engine",
	"kind",
	"expected_path",
	"exit_code",
	"duration",
	"found",
	"log",
	"report",
	"failed_checks",
}

// Additional context keys for verbose mode.
var verboseContextKeys = []string{
	"op",
	"project",
	"phase",
	"deck",
	"engine",
	"kind",
	"expected_path",
	"exit_code",
	"signal",
	"duration",
	"duration_ms",
	"timed_out",
	"cancelled",
	"found",
	"log",
	"report",
	"failed_checks",
	"config",
	"profile",
	"mode",
	"hint",
}

// maxValueLen bounds single-line context values.
const maxValueLen = 256

// Format formats an error for display without I/O.
// This is a pure function ready for printing.
func Format(err error, opts PrintOptions) string {
	if err == nil {
		return ""
	}

	var sb strings.Builder

	ke, isKit := AsKitError(err)
	if !isKit {
		sb.WriteString(err.Error())
		sb.WriteString("\n")
		return sb.String()
	}

	sb.WriteString("error_code: ")
	sb.WriteString(string(ke.Code))
	sb.WriteString("\n")
	sb.WriteString(ke.Msg)
	sb.WriteString("\n")

	if len(ke.Details) == 0 && ke.Cause == nil {
		return sb.String()
	}
	sb.WriteString("\n")

	contextKeys := defaultContextKeys
	if opts.Verbose {
		contextKeys = verboseContextKeys
	}

	printedKeys := make(map[string]bool)
	for _, key := range contextKeys {
		if ke.Details == nil {
			continue
		}
		val, ok := ke.Details[key]
		if !ok || val == "" {
			continue
		}
		if key == "hint" {
			// Printed last.
			continue
		}
		printedKeys[key] = true
		sb.WriteString(key)
		sb.WriteString(": ")
		sb.WriteString(sanitizeValue(val, maxValueLen))
		sb.WriteString("\n")
	}

	// In verbose mode, print any unlisted keys under an extra section,
	// sorted for stable output.
	if opts.Verbose {
		var extra []string
		for key := range ke.Details {
			if !printedKeys[key] && key != "hint" {
				extra = append(extra, key)
			}
		}
		sort.Strings(extra)
		if len(extra) > 0 {
			sb.WriteString("extra:\n")
			for _, key := range extra {
				sb.WriteString("  ")
				sb.WriteString(key)
				sb.WriteString(": ")
				sb.WriteString(sanitizeValue(ke.Details[key], maxValueLen))
				sb.WriteString("\n")
			}
		}
	}

	if opts.Verbose && ke.Cause != nil {
		sb.WriteString("cause: ")
		sb.WriteString(sanitizeValue(ke.Cause.Error(), maxValueLen))
		sb.WriteString("\n")
	}

	if ke.Details != nil {
		if hint := ke.Details["hint"]; hint != "" {
			sb.WriteString("hint: ")
			sb.WriteString(sanitizeValue(hint, maxValueLen))
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

// PrintWithOptions writes the formatted error to w.
func PrintWithOptions(w io.Writer, err error, opts PrintOptions) {
	if err == nil {
		return
	}
	_, _ = fmt.Fprint(w, Format(err, opts))
}

// sanitizeValue collapses newlines and truncates to maxLen.
func sanitizeValue(val string, maxLen int) string {
	val = strings.ReplaceAll(val, "\n", " ")
	val = strings.ReplaceAll(val, "\r", " ")
	if len(val) > maxLen {
		val = val[:maxLen] + "..."
	}
	return val
}
