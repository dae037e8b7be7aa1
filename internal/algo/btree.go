// Package algo contains the slice primitives used for searching and editing
// b+ tree nodes.
//
// Node arrays have a fixed capacity and an explicit count of occupied slots.
// Everything here works within that occupied prefix and never reallocates.
package algo

import "slices"

const searchThreshold = 16

// Search returns the position of the first key in keys[:n] that is >= key,
// and whether that key is equal to key.
func Search[K any](keys []K, n int, key K, cmp func(a, b K) int) (int, bool) {
	if n < searchThreshold {
		for i := 0; i < n; i++ {
			c := cmp(keys[i], key)
			if c >= 0 {
				return i, c == 0
			}
		}
		return n, false
	}

	return slices.BinarySearchFunc(keys[:n], key, cmp)
}

// ChildIndex returns the child to follow for key in a branch holding n
// separator keys. Separator i is the smallest key reachable through child
// i+1, so an exact match routes right.
func ChildIndex[K any](keys []K, n int, key K, cmp func(a, b K) int) int {
	i, found := Search(keys, n, key, cmp)
	if found {
		return i + 1
	}
	return i
}

// StealCount is the number of entries moved from a sibling holding count
// entries when the minimum occupancy is min.
func StealCount(count, min int) int {
	return max(1, (count-min)/2)
}
