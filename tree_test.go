package mvtree

import (
	"math/rand/v2"
	"slices"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSmallTree(t *testing.T, options ...Option) *Tree[int, int] {
	t.Helper()
	return New[int, int](append([]Option{WithBlockSizes(3, 1, 3, 1)}, options...)...)
}

func collectKeys[K, V any](it *Iterator[K, V]) []K {
	var keys []K
	for k := range it.Keys() {
		keys = append(keys, k)
	}
	return keys
}

func requireConsistent[K, V any](t *testing.T, tree *Tree[K, V], tx *Tx) {
	t.Helper()
	report := tree.ConsistencyReport(tx)
	require.True(t, report.OK(), "%s\n%s", report, tree.Format(tx))
}

func TestNew_InvalidBlockSizes(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{name: "value_block_too_small", opt: WithBlockSizes(2, 1, 3, 1)},
		{name: "min_value_block_zero", opt: WithBlockSizes(3, 0, 3, 1)},
		{name: "min_value_block_too_large", opt: WithBlockSizes(4, 2, 3, 1)},
		{name: "internal_block_even", opt: WithBlockSizes(3, 1, 4, 1)},
		{name: "internal_block_too_small", opt: WithBlockSizes(3, 1, 1, 1)},
		{name: "min_internal_block_too_large", opt: WithBlockSizes(3, 1, 5, 3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.opt(&opts)
			require.ErrorIs(t, opts.Validate(), ErrInvalidBlockSize)
			require.Panics(t, func() { New[int, int](tt.opt) })
		})
	}
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{name: "defaults"},
		{name: "smallest", opts: []Option{WithBlockSizes(3, 1, 3, 1)}},
		{name: "individual", opts: []Option{
			WithValueBlockSize(10),
			WithMinValueBlockSize(4),
			WithInternalNodeBlockSize(9),
			WithMinInternalNodeBlockSize(4),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			for _, opt := range tt.opts {
				opt(&opts)
			}
			require.NoError(t, opts.Validate())
		})
	}
}

func TestTree_SplitTrigger(t *testing.T) {
	tree := newSmallTree(t)
	for k := 1; k <= 3; k++ {
		require.NoError(t, tree.Insert(nil, k, k*10))
	}
	assert.Equal(t, 1, tree.Height(nil))

	require.NoError(t, tree.Insert(nil, 4, 40))
	assert.Equal(t, 2, tree.Height(nil))
	assert.Equal(t, "internal [3]\n  leaf [1 2]\n  leaf [3 4]\n", tree.Format(nil))
	requireConsistent(t, tree, nil)
}

func TestTree_MergeTrigger(t *testing.T) {
	tree := newSmallTree(t)
	for k := 1; k <= 4; k++ {
		require.NoError(t, tree.Insert(nil, k, k))
	}

	for _, k := range []int{4, 3, 2} {
		ok, err := tree.Delete(nil, k)
		require.NoError(t, err)
		require.True(t, ok)
		requireConsistent(t, tree, nil)
	}
	assert.Equal(t, 1, tree.Height(nil))
	assert.Equal(t, "leaf [1]\n", tree.Format(nil))
}

func TestTree_RoundTrip(t *testing.T) {
	tree := New[string, string]()

	require.NoError(t, tree.Insert(nil, "k", "v"))
	v, ok := tree.Search(nil, "k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	require.NoError(t, tree.Insert(nil, "k", "w"))
	v, _ = tree.Search(nil, "k")
	assert.Equal(t, "w", v)
	assert.Equal(t, 1, tree.Size(nil))

	ok, err := tree.Delete(nil, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	_, ok = tree.Search(nil, "k")
	assert.False(t, ok)

	ok, err = tree.Delete(nil, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, tree.Size(nil))
}

func TestTree_Upsert(t *testing.T) {
	tree := newSmallTree(t)
	for k := 0; k < 10; k++ {
		require.NoError(t, tree.Insert(nil, k, k))
	}

	require.NoError(t, tree.Upsert(nil, 5, func(old int, ok bool) int {
		assert.True(t, ok)
		assert.Equal(t, 5, old)
		return old + 100
	}))
	assert.Equal(t, 10, tree.Size(nil))
	v, _ := tree.Search(nil, 5)
	assert.Equal(t, 105, v)

	require.NoError(t, tree.Upsert(nil, 42, func(old int, ok bool) int {
		assert.False(t, ok)
		assert.Zero(t, old)
		return 7
	}))
	assert.Equal(t, 11, tree.Size(nil))
	v, _ = tree.Search(nil, 42)
	assert.Equal(t, 7, v)
	requireConsistent(t, tree, nil)
}

func TestTree_NewFunc(t *testing.T) {
	tree := NewFunc[string, int](func(a, b string) int {
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	}, WithBlockSizes(3, 1, 3, 1))

	for i, k := range []string{"delta", "Alpha", "charlie", "Bravo", "echo"} {
		require.NoError(t, tree.Insert(nil, k, i))
	}
	require.NoError(t, tree.Insert(nil, "ALPHA", 99))

	assert.Equal(t, 5, tree.Size(nil))
	assert.Equal(t, []string{"Alpha", "Bravo", "charlie", "delta", "echo"}, collectKeys(tree.Ascend(nil)))
	v, ok := tree.Search(nil, "alpha")
	require.True(t, ok)
	assert.Equal(t, 99, v)
	requireConsistent(t, tree, nil)
}

func TestTree_Metrics(t *testing.T) {
	m := NewMetrics()
	tree := newSmallTree(t, WithMetrics(m))

	for k := 1; k <= 4; k++ {
		require.NoError(t, tree.Insert(nil, k, k))
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Splits))

	for _, k := range []int{4, 3, 2} {
		_, err := tree.Delete(nil, k)
		require.NoError(t, err)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Steals))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Merges))
}

// TestTree_RandomOperations applies random inserts, upserts and deletes and
// compares the tree against a map after every operation.
func TestTree_RandomOperations(t *testing.T) {
	tests := []struct {
		name   string
		sizes  Option
		keys   int
		ops    int
		seed   uint64
		commit int // commit every n operations; 0 runs without a transaction
	}{
		{name: "smallest_blocks", sizes: WithBlockSizes(3, 1, 3, 1), keys: 200, ops: 3000, seed: 1},
		{name: "medium_blocks", sizes: WithBlockSizes(8, 3, 7, 3), keys: 500, ops: 4000, seed: 2},
		{name: "wide_min", sizes: WithBlockSizes(6, 2, 5, 2), keys: 100, ops: 3000, seed: 3},
		{name: "transactional", sizes: WithBlockSizes(4, 1, 5, 2), keys: 300, ops: 3000, seed: 4, commit: 17},
		{name: "default_blocks", sizes: WithBlockSizes(64, 16, 63, 15), keys: 5000, ops: 20000, seed: 5, commit: 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng := rand.New(rand.NewPCG(tt.seed, tt.seed))
			tree := New[int, int](tt.sizes)
			model := map[int]int{}

			mgr := NewManager()
			var tx *Tx
			begin := func() {
				if tt.commit == 0 {
					return
				}
				var err error
				tx, err = mgr.Begin(true)
				require.NoError(t, err)
			}
			begin()

			for i := 0; i < tt.ops; i++ {
				k := rng.IntN(tt.keys)
				switch op := rng.IntN(10); {
				case op < 5:
					require.NoError(t, tree.Insert(tx, k, i))
					model[k] = i
				case op < 6:
					require.NoError(t, tree.Upsert(tx, k, func(old int, ok bool) int {
						_, want := model[k]
						assert.Equal(t, want, ok)
						return old + 1
					}))
					model[k]++
				default:
					ok, err := tree.Delete(tx, k)
					require.NoError(t, err)
					_, want := model[k]
					require.Equal(t, want, ok)
					delete(model, k)
				}

				require.Equal(t, len(model), tree.Size(tx))
				if i%7 == 0 || tt.keys <= 300 {
					requireConsistent(t, tree, tx)
				}

				if tt.commit > 0 && (i+1)%tt.commit == 0 {
					require.NoError(t, tx.Commit())
					requireConsistent(t, tree, nil)
					begin()
				}
			}
			if tx != nil {
				require.NoError(t, tx.Commit())
			}

			requireConsistent(t, tree, nil)
			want := make([]int, 0, len(model))
			for k := range model {
				want = append(want, k)
			}
			slices.Sort(want)
			assert.Equal(t, want, collectKeys(tree.Ascend(nil)))
			for k, v := range model {
				got, ok := tree.Search(nil, k)
				require.True(t, ok)
				require.Equal(t, v, got)
			}
		})
	}
}

func TestTree_DeleteAll(t *testing.T) {
	tree := newSmallTree(t)
	const n = 100
	for k := 0; k < n; k++ {
		require.NoError(t, tree.Insert(nil, k, k))
	}
	assert.Greater(t, tree.Height(nil), 3)

	rng := rand.New(rand.NewPCG(9, 9))
	for _, k := range rng.Perm(n) {
		ok, err := tree.Delete(nil, k)
		require.NoError(t, err)
		require.True(t, ok)
		requireConsistent(t, tree, nil)
	}
	assert.Equal(t, 0, tree.Size(nil))
	assert.Equal(t, 1, tree.Height(nil))
	assert.Equal(t, "leaf []\n", tree.Format(nil))
}
