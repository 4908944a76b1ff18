package errors

import (
	"fmt"
	"sort"
	"strings"
)

// FormatForUser returns a user-friendly error message.
// If debug is true, includes additional technical details.
func FormatForUser(err error, debug bool) string {
	if err == nil {
		return ""
	}

	te, ok := err.(*TreedexError)
	if !ok {
		// Standard error - just return message
		return err.Error()
	}

	var sb strings.Builder

	sb.WriteString("Error: ")
	sb.WriteString(te.Message)
	sb.WriteString("\n")

	if debug {
		if len(te.Details) > 0 {
			keys := make([]string, 0, len(te.Details))
			for k := range te.Details {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			sb.WriteString("\nDetails:\n")
			for _, k := range keys {
				sb.WriteString(fmt.Sprintf("  %s: %s\n", k, te.Details[k]))
			}
		}
		if te.Cause != nil {
			sb.WriteString(fmt.Sprintf("\nCause: %v\n", te.Cause))
		}
	}

	// Error code for reference
	sb.WriteString(fmt.Sprintf("\n[%s]", te.Code))

	return sb.String()
}

// FormatForCLI formats an error for CLI output.
// Uses a concise format suitable for terminal display.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	te, ok := err.(*TreedexError)
	if !ok {
		te = Wrap(ErrCodeInternal, err)
	}

	return fmt.Sprintf("Error: %s [%s]", te.Message, te.Code)
}
