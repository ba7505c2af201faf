package search

import "testing"

func TestMatch(t *testing.T) {
	tests := []struct {
		name   string
		q      string
		fields []string
		want   bool
	}{
		{"empty query matches", "", []string{"Ada", "Lovelace"}, true},
		{"blank query matches", "   ", nil, true},
		{"single term in first field", "ada", []string{"Ada", "Lovelace"}, true},
		{"single term in second field", "LOVE", []string{"Ada", "Lovelace"}, true},
		{"terms across fields", "ada love", []string{"Ada", "Lovelace"}, true},
		{"one term missing", "ada hopper", []string{"Ada", "Lovelace"}, false},
		{"no fields", "ada", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Match(tt.q, tt.fields...); got != tt.want {
				t.Errorf("Match(%q, %v) = %v, want %v", tt.q, tt.fields, got, tt.want)
			}
		})
	}
}

func TestNumberPivotOK(t *testing.T) {
	tests := []struct {
		q    string
		want bool
	}{
		{"S-100", true},
		{"100", true},
		{" s-1 ", true},
		{"grace", false},
		{"grace 10", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := NumberPivotOK(tt.q); got != tt.want {
			t.Errorf("NumberPivotOK(%q) = %v, want %v", tt.q, got, tt.want)
		}
	}
}

func TestHasPrefixFold(t *testing.T) {
	if !HasPrefixFold("S-100", "s-1") {
		t.Error("expected S-100 to have prefix s-1")
	}
	if HasPrefixFold("S-200", "s-1") {
		t.Error("expected S-200 not to have prefix s-1")
	}
}

func TestFilter(t *testing.T) {
	type person struct{ first, last string }
	rows := []person{{"Ada", "Lovelace"}, {"Grace", "Hopper"}, {"Alan", "Turing"}}
	fields := func(p person) []string { return []string{p.first, p.last} }

	got := Filter(rows, "a", fields)
	if len(got) != 3 {
		t.Errorf("expected 3 rows for %q, got %d", "a", len(got))
	}
	got = Filter(rows, "hop", fields)
	if len(got) != 1 || got[0].first != "Grace" {
		t.Errorf("expected Grace for %q, got %v", "hop", got)
	}
	if got := Filter(rows, "", fields); len(got) != len(rows) {
		t.Errorf("empty query should keep every row, got %d", len(got))
	}
}
