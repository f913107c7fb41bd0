package profile

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// maxSummaryChars caps the summary so it stays readable in a terminal or an
// MCP tool result.
const maxSummaryChars = 2000

// Summarize renders the collected fields of s as one line per schema field,
// in schema order, followed by the progress ratio.
func Summarize(s Session) string {
	fields := requiredFields[s.Role]
	if len(fields) == 0 {
		return "Session profile: unknown role."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Role: %s. Language: %s.\n", s.Role, s.Language)
	for _, name := range fields {
		v := s.Fields[name]
		if isEmpty(v) {
			fmt.Fprintf(&sb, "- %s: (unknown)\n", name)
			continue
		}
		fmt.Fprintf(&sb, "- %s: %s\n", name, v)
	}
	fmt.Fprintf(&sb, "Collected %d/%d fields.", len(fields)-len(Missing(s.Role, s.Fields)), len(fields))

	summary := sb.String()
	if len(summary) > maxSummaryChars {
		// Don't split a multi-byte UTF-8 character.
		end := maxSummaryChars
		for end > 0 && !utf8.RuneStart(summary[end]) {
			end--
		}
		summary = summary[:end]
	}
	return summary
}

// Complete reports whether every field of the role's schema is known.
func Complete(s Session) bool {
	return len(requiredFields[s.Role]) > 0 && len(Missing(s.Role, s.Fields)) == 0
}
