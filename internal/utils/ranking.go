package utils

import "sort"

// TopN returns at most n items ordered by score, highest first. The input is not modified.
func TopN[T any](items []T, n int, score func(T) float64) []T {
	if n <= 0 || len(items) == 0 {
		return nil
	}
	sorted := make([]T, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return score(sorted[i]) > score(sorted[j])
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
