// internal/app/system/merge/merge.go
// Package merge joins two separately fetched result sets in memory.
package merge

import (
	"errors"
	"fmt"
)

// ErrDuplicateKey is returned when the right side repeats a key.
var ErrDuplicateKey = errors.New("merge: duplicate right-hand key")

// Pair is one left row with its match, or nil when there is none.
type Pair[L, R any] struct {
	Left  L
	Right *R
}

// ByKey is a left join of left onto right. Keys on the right must be unique;
// left order is preserved. It runs in O(len(left)+len(right)).
func ByKey[L, R any, K comparable](left []L, right []R, leftKey func(L) K, rightKey func(R) K) ([]Pair[L, R], error) {
	index := make(map[K]int, len(right))
	for i, r := range right {
		k := rightKey(r)
		if _, dup := index[k]; dup {
			return nil, fmt.Errorf("%w %v", ErrDuplicateKey, k)
		}
		index[k] = i
	}

	out := make([]Pair[L, R], len(left))
	for i, l := range left {
		out[i].Left = l
		if j, ok := index[leftKey(l)]; ok {
			r := right[j]
			out[i].Right = &r
		}
	}
	return out, nil
}

// Inner is ByKey without the unmatched left rows.
func Inner[L, R any, K comparable](left []L, right []R, leftKey func(L) K, rightKey func(R) K) ([]Pair[L, R], error) {
	all, err := ByKey(left, right, leftKey, rightKey)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, p := range all {
		if p.Right != nil {
			out = append(out, p)
		}
	}
	return out, nil
}
