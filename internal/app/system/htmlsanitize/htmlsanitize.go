// internal/app/system/htmlsanitize/htmlsanitize.go
// Package htmlsanitize cleans user-supplied strings before they are stored.
// Rich-text columns keep a safe subset of HTML; every other string is reduced
// to plain text.
package htmlsanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	richPolicy   = newRichPolicy()
	strictPolicy = bluemonday.StrictPolicy()
)

func newRichPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").OnElements("table", "thead", "tbody", "tr", "th", "td")
	p.AllowStyles("width", "text-align").OnElements("table", "th", "td")
	return p
}

// Sanitize keeps safe formatting markup and drops scripts, event handlers,
// iframes, forms and unsafe URLs.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	return richPolicy.Sanitize(s)
}

// StripTags removes all markup and returns the text as a person would read
// it (entities decoded, surrounding space trimmed).
func StripTags(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(s)))
}

// IsPlainText reports whether s contains nothing that looks like a tag.
func IsPlainText(s string) bool {
	return !(strings.Contains(s, "<") && strings.Contains(s, ">"))
}

// Cleaner sanitizes row values. Columns named in Rich keep safe HTML; every
// other string value is stripped to plain text. Nested maps and slices are
// walked.
type Cleaner struct {
	Rich map[string]bool
}

// NewCleaner returns a Cleaner treating richColumns as rich text.
func NewCleaner(richColumns ...string) Cleaner {
	c := Cleaner{Rich: make(map[string]bool, len(richColumns))}
	for _, col := range richColumns {
		c.Rich[col] = true
	}
	return c
}

// Row returns a cleaned copy of row.
func (c Cleaner) Row(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = c.value(v, c.Rich[k])
	}
	return out
}

func (c Cleaner) value(v any, rich bool) any {
	switch t := v.(type) {
	case string:
		if rich {
			return Sanitize(t)
		}
		return StripTags(t)
	case map[string]any:
		return c.Row(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = c.value(e, rich)
		}
		return out
	}
	return v
}
