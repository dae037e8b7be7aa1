package mvtree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// evenTree holds the even keys in [0, 2n) with value key*10.
func evenTree(t *testing.T, n int) *Tree[int, int] {
	t.Helper()
	tree := newSmallTree(t)
	for i := 0; i < n; i++ {
		require.NoError(t, tree.Insert(nil, 2*i, 20*i))
	}
	return tree
}

func TestIterator_Bounds(t *testing.T) {
	tree := evenTree(t, 20) // 0, 2, ..., 38

	tests := []struct {
		name string
		it   func() *Iterator[int, int]
		want []int
	}{
		{name: "ascend_from_present", it: func() *Iterator[int, int] { return tree.AscendFrom(nil, 30) }, want: []int{30, 32, 34, 36, 38}},
		{name: "ascend_from_absent", it: func() *Iterator[int, int] { return tree.AscendFrom(nil, 31) }, want: []int{32, 34, 36, 38}},
		{name: "ascend_from_below_all", it: func() *Iterator[int, int] { return tree.AscendFrom(nil, -5) }, want: evens(0, 38)},
		{name: "ascend_from_above_all", it: func() *Iterator[int, int] { return tree.AscendFrom(nil, 39) }, want: nil},
		{name: "descend_from_present", it: func() *Iterator[int, int] { return tree.DescendFrom(nil, 8) }, want: []int{8, 6, 4, 2, 0}},
		{name: "descend_from_absent", it: func() *Iterator[int, int] { return tree.DescendFrom(nil, 9) }, want: []int{8, 6, 4, 2, 0}},
		{name: "descend_from_below_all", it: func() *Iterator[int, int] { return tree.DescendFrom(nil, -1) }, want: nil},
		{name: "descend_from_above_all", it: func() *Iterator[int, int] { return tree.DescendFrom(nil, 100) }, want: reversed(evens(0, 38))},
		{name: "ascend", it: func() *Iterator[int, int] { return tree.Ascend(nil) }, want: evens(0, 38)},
		{name: "descend", it: func() *Iterator[int, int] { return tree.Descend(nil) }, want: reversed(evens(0, 38))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, collectKeys(tt.it()))
		})
	}
}

// TestIterator_SeparatorBoundaries starts iterators at every key and every
// gap so each leaf boundary is crossed in both directions.
func TestIterator_SeparatorBoundaries(t *testing.T) {
	tree := evenTree(t, 50)
	all := evens(0, 98)

	for from := -1; from <= 99; from++ {
		var up, down []int
		for _, k := range all {
			if k >= from {
				up = append(up, k)
			}
			if k <= from {
				down = append([]int{k}, down...)
			}
		}
		require.Equal(t, up, collectKeys(tree.AscendFrom(nil, from)), "ascend from %d", from)
		require.Equal(t, down, collectKeys(tree.DescendFrom(nil, from)), "descend from %d", from)
	}
}

func TestIterator_Empty(t *testing.T) {
	tree := newSmallTree(t)

	for _, it := range []*Iterator[int, int]{
		tree.Ascend(nil), tree.Descend(nil), tree.AscendFrom(nil, 1), tree.DescendFrom(nil, 1),
	} {
		assert.False(t, it.HasNext())
		_, _, err := it.Next()
		assert.ErrorIs(t, err, ErrIteratorExhausted)
	}
}

func TestIterator_Next(t *testing.T) {
	tree := evenTree(t, 3)
	it := tree.Ascend(nil)

	for i := 0; i < 3; i++ {
		require.True(t, it.HasNext())
		k, v, err := it.Next()
		require.NoError(t, err)
		assert.Equal(t, 2*i, k)
		assert.Equal(t, 20*i, v)
	}
	assert.False(t, it.HasNext())
	_, _, err := it.Next()
	assert.ErrorIs(t, err, ErrIteratorExhausted)
}

func TestIterator_Projections(t *testing.T) {
	tree := evenTree(t, 10)

	var values []int
	for v := range tree.Descend(nil).Values() {
		values = append(values, v)
	}
	assert.Equal(t, []int{180, 160, 140, 120, 100, 80, 60, 40, 20, 0}, values)

	entries := map[int]int{}
	for k, v := range tree.Ascend(nil).All() {
		entries[k] = v
	}
	assert.Len(t, entries, 10)
	assert.Equal(t, 180, entries[18])

	// Breaking out of a range leaves the rest of the iterator.
	it := tree.Ascend(nil)
	for k := range it.Keys() {
		if k == 4 {
			break
		}
	}
	k, _, err := it.Next()
	require.NoError(t, err)
	assert.Equal(t, 6, k)
}

func TestIterator_PointInTime(t *testing.T) {
	mgr := NewManager()
	tree := evenTree(t, 10)

	rtx, err := mgr.Begin(false)
	require.NoError(t, err)
	defer rtx.Rollback()
	it := tree.Ascend(rtx)

	require.NoError(t, mgr.Update(func(tx *Tx) error {
		for k := 0; k < 20; k += 2 {
			if _, err := tree.Delete(tx, k); err != nil {
				return err
			}
		}
		return tree.Insert(tx, 1, 1)
	}))

	assert.Equal(t, evens(0, 18), collectKeys(it))
	assert.Equal(t, []int{1}, collectKeys(tree.Ascend(nil)))
}

func evens(from, to int) []int {
	var out []int
	for k := from; k <= to; k += 2 {
		out = append(out, k)
	}
	return out
}

func reversed(s []int) []int {
	out := make([]int, len(s))
	for i, v := range s {
		out[len(s)-1-i] = v
	}
	return out
}
