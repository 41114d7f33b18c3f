package runtime

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/brainrot/internal/store"
)

// SummaryLength is the rune budget of generated summaries.
const SummaryLength = 200

// Summarize shortens content to at most maxLen runes plus an ellipsis,
// cutting after the last sentence or line end when one falls in the final
// 30% of the budget.
func Summarize(content string, maxLen int) string {
	runes := []rune(content)
	if len(runes) <= maxLen {
		return content
	}
	truncated := string(runes[:maxLen])

	brk := max(strings.LastIndexByte(truncated, '.'), strings.LastIndexByte(truncated, '\n'))
	if brk >= 0 && len([]rune(truncated[:brk])) > maxLen*7/10 {
		return truncated[:brk+1] + "..."
	}
	return truncated + "..."
}

// ParseTags accepts the tag shapes clients send: a list, a JSON-encoded
// list, or a comma separated string. Blank entries are dropped.
func ParseTags(v any) []string {
	var raw []string
	switch t := v.(type) {
	case nil:
	case []string:
		raw = t
	case []any:
		for _, item := range t {
			raw = append(raw, fmt.Sprint(item))
		}
	case string:
		s := strings.TrimSpace(t)
		if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
			var list []any
			if err := json.Unmarshal([]byte(s), &list); err == nil {
				return ParseTags(list)
			}
		}
		raw = strings.Split(s, ",")
	default:
		raw = []string{fmt.Sprint(t)}
	}

	out := make([]string, 0, len(raw))
	for _, tag := range raw {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

// Instructions explains how a popped context should be applied, based on
// the first matching category tag.
func Instructions(rec *store.Record) string {
	var lines []string
	switch {
	case rec.HasTag("architecture"):
		lines = []string{
			"ARCHITECTURE DECISION:",
			"Apply this architectural pattern consistently across the codebase.",
			"Consider its implications for related components.",
		}
	case rec.HasTag("todo"):
		lines = []string{"TODO ITEM:", "This task needs to be completed."}
		switch Priority(rec) {
		case "high":
			lines = append(lines, "HIGH PRIORITY - Address this immediately.")
		case "low":
			lines = append(lines, "LOW PRIORITY - Can be addressed later.")
		}
	case rec.HasTag("tech-debt"), rec.HasTag("tech_debt"):
		lines = []string{
			"TECHNICAL DEBT:",
			"This represents accumulated technical debt that should be addressed.",
			"Consider refactoring when touching related code.",
		}
	case rec.HasTag("security"):
		lines = []string{
			"SECURITY CONSIDERATION:",
			"Ensure this security pattern is properly implemented.",
			"Review for potential vulnerabilities.",
		}
	case rec.HasTag("pattern"):
		lines = []string{
			"CODE PATTERN:",
			"Use this pattern for similar implementations.",
			"Maintain consistency with this approach.",
		}
	default:
		lines = []string{
			"STORED CONTEXT:",
			"Apply this information as appropriate to your current task.",
		}
	}
	return strings.Join(lines, "\n")
}
