package mvtree

import "sync/atomic"

var objectIDs atomic.Uint64

// nextObjectID returns a process-wide unique identity for a versioned
// object. Transactions key their shadow layers by this id.
func nextObjectID() uint64 {
	return objectIDs.Add(1)
}

// cell is a versioned holder for one immutable value. The committed value is
// published atomically; a transaction that stores into the cell keeps its
// value in a private layer until commit.
type cell[T any] struct {
	id   uint64
	base atomic.Pointer[T]
}

func newCell[T any](v *T) *cell[T] {
	c := &cell[T]{id: nextObjectID()}
	c.base.Store(v)
	return c
}

// load returns the transaction's layer if it has one, else the committed
// value.
func (c *cell[T]) load(tx *Tx) *T {
	if tx != nil {
		if v, ok := tx.layer(c.id); ok {
			return v.(*T)
		}
	}
	return c.base.Load()
}

// pin returns the value the transaction first observed, resolving it with
// visible on first access.
func (c *cell[T]) pin(tx *Tx, visible func() *T) *T {
	return tx.layerFor(c.id, func() any { return visible() }).(*T)
}

// store writes v into the transaction's layer. Outside a transaction the
// value is published immediately.
func (c *cell[T]) store(tx *Tx, v *T) {
	if tx == nil {
		c.base.Store(v)
		return
	}
	tx.setLayer(c.id, v)
}

// shadowed reports whether tx holds a private value for the cell.
func (c *cell[T]) shadowed(tx *Tx) bool {
	if tx == nil {
		return false
	}
	_, ok := tx.layer(c.id)
	return ok
}

// publish installs v as the committed value.
func (c *cell[T]) publish(v *T) {
	c.base.Store(v)
}

// committed returns the last published value.
func (c *cell[T]) committed() *T {
	return c.base.Load()
}
