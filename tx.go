package mvtree

import (
	"time"

	"github.com/google/btree"
)

const layerDegree = 16

// participant is a versioned structure that a write transaction changed and
// that must be resolved into a new committed generation on commit.
type participant interface {
	objectID() uint64
	commit(tx *Tx, version uint64)
	prune(minVersion uint64)
}

// layer is a transaction-private shadow of one versioned object.
type layer struct {
	id    uint64
	value any
}

func layerLess(a, b *layer) bool {
	return a.id < b.id
}

// Tx represents a transaction on a Manager.
//
// CONCURRENCY: Transactions are NOT thread-safe and must only be used by a single
// goroutine at a time.
//
// A write transaction records every change in private shadow layers, so trees
// keep serving their last committed generation to everyone else until
// Commit. A read transaction pins, per tree, the generation that was committed
// when the transaction began.
type Tx struct {
	id       uint64
	mgr      *Manager
	writable bool
	done     bool
	snapshot uint64 // Last committed manager version visible to this transaction
	slot     int    // Reader slot (read-only transactions only)
	started  time.Time

	layers   *btree.BTreeG[*layer] // Shadows keyed by object id
	probe    layer                 // Reused lookup key for layers
	enlisted []participant         // Trees changed by this transaction
}

// ID returns the transaction id.
func (tx *Tx) ID() uint64 {
	return tx.id
}

// Writable reports whether the transaction may modify trees.
func (tx *Tx) Writable() bool {
	return tx.writable
}

// Snapshot returns the manager version this transaction reads from.
func (tx *Tx) Snapshot() uint64 {
	return tx.snapshot
}

// Commit resolves every tree changed by the transaction into a new committed
// generation and makes it visible to transactions that begin afterwards.
// Returns ErrTxNotWritable if called on a read-only transaction.
// Returns ErrTxDone if transaction has already been committed or rolled back.
func (tx *Tx) Commit() error {
	if err := tx.check(); err != nil {
		return err
	}
	if !tx.writable {
		return ErrTxNotWritable
	}
	return tx.mgr.commit(tx)
}

// Rollback discards all changes made in the transaction.
// Safe to call after Commit() (becomes a no-op).
// Safe to call multiple times (idempotent).
func (tx *Tx) Rollback() error {
	if tx.done {
		return nil
	}
	tx.mgr.rollback(tx)
	return nil
}

// check verifies the transaction is still active.
// Returns ErrTxDone if the transaction has been committed or rolled back.
func (tx *Tx) check() error {
	if tx.done {
		return ErrTxDone
	}
	return nil
}

// active reports whether tx is a live transaction.
func (tx *Tx) active() bool {
	return tx != nil && !tx.done
}

// layer returns the shadow stored for id, if any.
func (tx *Tx) layer(id uint64) (any, bool) {
	if tx.layers == nil || tx.layers.Len() == 0 {
		return nil, false
	}
	tx.probe.id = id
	l, ok := tx.layers.Get(&tx.probe)
	if !ok {
		return nil, false
	}
	return l.value, true
}

// layerFor returns the shadow stored for id, creating it on first use.
func (tx *Tx) layerFor(id uint64, create func() any) any {
	if v, ok := tx.layer(id); ok {
		return v
	}
	v := create()
	tx.setLayer(id, v)
	return v
}

// setLayer stores v as the shadow for id, replacing any previous shadow.
func (tx *Tx) setLayer(id uint64, v any) {
	if tx.layers == nil {
		tx.layers = btree.NewG[*layer](layerDegree, layerLess)
	}
	tx.layers.ReplaceOrInsert(&layer{id: id, value: v})
}

// discard drops the shadow for id.
func (tx *Tx) discard(id uint64) {
	if tx.layers == nil {
		return
	}
	tx.probe.id = id
	tx.layers.Delete(&tx.probe)
}

// shadows returns the number of shadow layers held by the transaction.
func (tx *Tx) shadows() int {
	if tx.layers == nil {
		return 0
	}
	return tx.layers.Len()
}

// enlist registers p to be resolved when the transaction commits.
func (tx *Tx) enlist(p participant) {
	for _, e := range tx.enlisted {
		if e.objectID() == p.objectID() {
			return
		}
	}
	tx.enlisted = append(tx.enlisted, p)
}

// finish marks the transaction done and drops its layers.
func (tx *Tx) finish() {
	tx.done = true
	if tx.layers != nil {
		tx.layers.Clear(false)
	}
	tx.enlisted = nil
}
