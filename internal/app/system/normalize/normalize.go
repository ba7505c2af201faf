// internal/app/system/normalize/normalize.go
// Package normalize trims and case-folds user input before it is stored or
// compared.
package normalize

import "strings"

// Email lower-cases and trims an address.
func Email(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Name trims a display name and collapses inner runs of whitespace.
func Name(s string) string { return strings.Join(strings.Fields(s), " ") }

// Status lower-cases and trims an account or record status.
func Status(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Role lower-cases and trims a role name.
func Role(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// QueryParam trims a query-string value, preserving case.
func QueryParam(s string) string { return strings.TrimSpace(s) }

// SchoolCode upper-cases and trims a school code.
func SchoolCode(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

// SchoolCodes normalizes each code and drops blanks and repeats.
func SchoolCodes(codes []string) []string {
	out := make([]string, 0, len(codes))
	seen := make(map[string]bool, len(codes))
	for _, c := range codes {
		c = SchoolCode(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// Columns turns "a, b ,,c" into "a,b,c". "*" and "" both mean every column
// and come back as "".
func Columns(s string) string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if p == "*" {
			return ""
		}
		out = append(out, p)
	}
	return strings.Join(out, ",")
}
