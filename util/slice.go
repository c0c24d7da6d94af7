package util

import (
	"golang.org/x/exp/slices"
)

// ContainsAll reports whether every element of want is present in have.
func ContainsAll(have []string, want []string) bool {
	for _, v := range want {
		if !slices.Contains(have, v) {
			return false
		}
	}
	return true
}

// Distinct returns the input with duplicates removed, preserving order.
func Distinct(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}
