package algo

// InsertAt shifts slice[index:n] one slot right and stores value at index.
// The caller guarantees n < len(slice).
func InsertAt[T any](slice []T, n, index int, value T) {
	copy(slice[index+1:n+1], slice[index:n])
	slice[index] = value
}

// RemoveAt shifts slice[index+1:n] one slot left and clears the vacated
// last slot so it does not pin the removed element.
func RemoveAt[T any](slice []T, n, index int) {
	copy(slice[index:n-1], slice[index+1:n])
	var zero T
	slice[n-1] = zero
}

// ShiftRight moves slice[:n] right by k slots. The caller guarantees
// n+k <= len(slice). The first k slots keep their old contents.
func ShiftRight[T any](slice []T, n, k int) {
	copy(slice[k:n+k], slice[:n])
}

// ShiftLeft drops the first k elements of slice[:n] and clears the k slots
// freed at the tail.
func ShiftLeft[T any](slice []T, n, k int) {
	copy(slice[:n-k], slice[k:n])
	clear(slice[n-k : n])
}
