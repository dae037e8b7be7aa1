package mvtree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTx_Layers(t *testing.T) {
	tx := &Tx{writable: true}

	_, ok := tx.layer(1)
	assert.False(t, ok)

	created := 0
	create := func() any { created++; return created }
	assert.Equal(t, 1, tx.layerFor(7, create))
	assert.Equal(t, 1, tx.layerFor(7, create), "existing layer is reused")
	assert.Equal(t, 1, created)

	tx.setLayer(3, "three")
	got, ok := tx.layer(3)
	require.True(t, ok)
	assert.Equal(t, "three", got)
	assert.Equal(t, 2, tx.shadows())

	tx.discard(3)
	_, ok = tx.layer(3)
	assert.False(t, ok)

	tx.finish()
	assert.True(t, tx.done)
	assert.Equal(t, 0, tx.shadows())
	assert.ErrorIs(t, tx.check(), ErrTxDone)
}

func TestTx_Enlist(t *testing.T) {
	tx := &Tx{writable: true}
	a, b := newSmallTree(t), newSmallTree(t)

	tx.enlist(a)
	tx.enlist(b)
	tx.enlist(a)
	assert.Len(t, tx.enlisted, 2)
}

func TestCell_LoadStore(t *testing.T) {
	one, two, three := 1, 2, 3
	c := newCell(&one)
	tx := &Tx{writable: true}

	assert.Same(t, &one, c.load(tx))
	assert.False(t, c.shadowed(tx))

	c.store(tx, &two)
	assert.True(t, c.shadowed(tx))
	assert.Same(t, &two, c.load(tx))
	assert.Same(t, &one, c.load(nil), "committed value unchanged")

	c.store(nil, &three)
	assert.Same(t, &three, c.committed())
	assert.Same(t, &two, c.load(tx))

	reader := &Tx{}
	assert.Same(t, &three, c.pin(reader, c.committed))
	c.publish(&one)
	assert.Same(t, &three, c.pin(reader, c.committed), "pinned value is repeatable")
}

func TestManager_MultipleTrees(t *testing.T) {
	mgr := NewManager()
	a := newSmallTree(t)
	b := New[string, int]()

	require.NoError(t, mgr.Update(func(tx *Tx) error {
		for k := 0; k < 10; k++ {
			if err := a.Insert(tx, k, k); err != nil {
				return err
			}
		}
		return b.Insert(tx, "x", 1)
	}))

	rtx, err := mgr.Begin(false)
	require.NoError(t, err)
	defer rtx.Rollback()

	require.NoError(t, mgr.Update(func(tx *Tx) error {
		if _, err := a.Delete(tx, 0); err != nil {
			return err
		}
		return b.Upsert(tx, "x", func(old int, _ bool) int { return old + 1 })
	}))

	assert.Equal(t, 10, a.Size(rtx))
	v, _ := b.Search(rtx, "x")
	assert.Equal(t, 1, v)

	assert.Equal(t, 9, a.Size(nil))
	v, _ = b.Search(nil, "x")
	assert.Equal(t, 2, v)
}
