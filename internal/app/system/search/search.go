// internal/app/system/search/search.go
package search

import (
	"strings"
	"unicode"

	"github.com/dalemusser/waffle/pantry/text"
)

// Terms splits q into folded, whitespace-separated terms.
func Terms(q string) []string {
	return strings.Fields(text.Fold(q))
}

// Match reports whether every term of q occurs in at least one of fields,
// ignoring case. An empty query matches everything.
func Match(q string, fields ...string) bool {
	terms := Terms(q)
	if len(terms) == 0 {
		return true
	}
	folded := make([]string, len(fields))
	for i, f := range fields {
		folded[i] = text.Fold(f)
	}
	for _, term := range terms {
		found := false
		for _, f := range folded {
			if strings.Contains(f, term) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// NumberPivotOK reports whether q looks like a student number rather than a
// name: a single term containing a digit. Callers then match the number
// field by prefix only.
//
//	if search.NumberPivotOK(q) {
//	    ok = search.HasPrefixFold(s.StudentNumber, q)
//	} else {
//	    ok = search.Match(q, s.FirstName, s.LastName, s.StudentNumber)
//	}
func NumberPivotOK(q string) bool {
	terms := Terms(q)
	if len(terms) != 1 {
		return false
	}
	return strings.IndexFunc(terms[0], unicode.IsDigit) >= 0
}

// HasPrefixFold reports whether s begins with prefix, ignoring case and
// surrounding space.
func HasPrefixFold(s, prefix string) bool {
	return strings.HasPrefix(text.Fold(strings.TrimSpace(s)), text.Fold(strings.TrimSpace(prefix)))
}

// Filter keeps the rows whose fields match q.
func Filter[T any](rows []T, q string, fields func(T) []string) []T {
	if len(Terms(q)) == 0 {
		return rows
	}
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		if Match(q, fields(r)...) {
			out = append(out, r)
		}
	}
	return out
}
