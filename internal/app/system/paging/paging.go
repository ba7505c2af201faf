// internal/app/system/paging/paging.go
package paging

import (
	"net/http"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
)

// PageSize is the default number of rows in a paged list.
const PageSize = 50

// MaxPageSize is the largest page a caller may ask for.
const MaxPageSize = 500

// ParseStart extracts the human-friendly "start" query parameter (1-based index).
// Returns 1 if not present or invalid.
func ParseStart(r *http.Request) int {
	s := query.Get(r, "start")
	if s == "" {
		return 1
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// ParseSize extracts the "limit" query parameter. Missing or invalid values
// give PageSize; values above MaxPageSize are cut down.
func ParseSize(r *http.Request) int {
	n, err := strconv.Atoi(query.Get(r, "limit"))
	switch {
	case err != nil || n < 1:
		return PageSize
	case n > MaxPageSize:
		return MaxPageSize
	}
	return n
}

// Range holds computed display range values for a paginated list.
type Range struct {
	Start     int // 1-based start index (0 if no results)
	End       int // 1-based end index (0 if no results)
	Total     int
	PrevStart int // start value for previous page link
	NextStart int // start value for next page link
	HasPrev   bool
	HasNext   bool
}

// Window cuts the page beginning at the 1-based start out of rows, which
// must already be filtered and sorted.
func Window[T any](rows []T, start, size int) ([]T, Range) {
	if start < 1 {
		start = 1
	}
	if size < 1 {
		size = PageSize
	}
	total := len(rows)
	if start > total {
		rg := computeRangeWithSize(start, 0, size)
		rg.Total = total
		rg.HasPrev = total > 0
		return rows[:0], rg
	}
	end := min(start-1+size, total)
	page := rows[start-1 : end]
	rg := computeRangeWithSize(start, len(page), size)
	rg.Total = total
	rg.HasPrev = start > 1
	rg.HasNext = end < total
	return page, rg
}

// ComputeRange calculates display range values given the current start index
// and number of items shown.
func ComputeRange(start, shown int) Range {
	return computeRangeWithSize(start, shown, PageSize)
}

func computeRangeWithSize(start, shown, pageSize int) Range {
	if shown == 0 {
		return Range{Start: 0, End: 0, PrevStart: 1, NextStart: 1}
	}

	prevStart := start - pageSize
	if prevStart < 1 {
		prevStart = 1
	}

	return Range{
		Start:     start,
		End:       start + shown - 1,
		PrevStart: prevStart,
		NextStart: start + shown,
	}
}
