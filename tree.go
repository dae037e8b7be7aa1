package mvtree

import (
	"cmp"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/elastic/go-freelru"

	"github.com/alexhholmes/mvtree/internal/algo"
)

// header is one committed or in-flight generation of a tree. Root and size
// are versioned together so a commit publishes both with one store.
type header[K, V any] struct {
	root    *node[K, V]
	size    int
	version uint64 // Manager version that committed this header
	gen     uint64 // Unique per stored header
}

// Tree is a copy-on-write b+ tree.
//
// Operations take the transaction they run in. Passing a nil *Tx reads the
// last committed generation and applies writes to it directly, which is only
// safe when no transaction uses the tree concurrently.
//
// Inside a write transaction, changes stay private to the transaction until
// it commits. Read transactions see the generation that was committed when
// they began.
type Tree[K, V any] struct {
	head     *cell[header[K, V]]
	versions *versionMap[header[K, V]]
	gens     atomic.Uint64

	cmp     func(a, b K) int
	opts    Options
	logger  Logger
	metrics *Metrics
	reports *freelru.SyncedLRU[uint64, Report]
}

// New creates an empty tree ordered by cmp.Compare.
// Panics if the options hold invalid block sizes.
func New[K cmp.Ordered, V any](options ...Option) *Tree[K, V] {
	return NewFunc[K, V](cmp.Compare[K], options...)
}

// NewFunc creates an empty tree ordered by compare.
// Panics if the options hold invalid block sizes.
func NewFunc[K, V any](compare func(a, b K) int, options ...Option) *Tree[K, V] {
	opts := DefaultOptions()
	for _, opt := range options {
		opt(&opts)
	}
	if err := opts.Validate(); err != nil {
		panic(errors.NewAssertionErrorWithWrappedErrf(err, "mvtree: invalid options"))
	}
	if opts.logger == nil {
		opts.logger = DiscardLogger{}
	}
	if opts.metrics == nil {
		opts.metrics = NewMetrics()
	}

	t := &Tree[K, V]{
		versions: newVersionMap[header[K, V]](),
		cmp:      compare,
		opts:     opts,
		logger:   opts.logger,
		metrics:  opts.metrics,
	}
	root := &node[K, V]{id: nextObjectID(), base: newLeafState[K, V](opts.valueBlockSize)}
	t.head = newCell(&header[K, V]{root: root, gen: t.gens.Add(1)})

	if opts.reportCacheSize > 0 {
		reports, err := freelru.NewSynced[uint64, Report](uint32(opts.reportCacheSize), hashGeneration)
		if err != nil {
			t.logger.Warn("consistency report cache disabled", "error", err)
		} else {
			t.reports = reports
		}
	}
	return t
}

// Options returns the configuration the tree was built with.
func (t *Tree[K, V]) Options() Options {
	return t.opts
}

// view returns the view for tx. A finished transaction behaves like no
// transaction.
func (t *Tree[K, V]) view(tx *Tx) view[K, V] {
	if !tx.active() {
		tx = nil
	}
	return view[K, V]{t: t, tx: tx}
}

// header returns the generation visible to v.
func (v view[K, V]) header() *header[K, V] {
	t, tx := v.t, v.tx
	switch {
	case tx == nil:
		return t.head.committed()
	case tx.writable:
		return t.head.load(tx)
	default:
		return t.head.pin(tx, func() *header[K, V] { return t.visible(tx.snapshot) })
	}
}

// visible returns the newest header committed at or before snapshot.
func (t *Tree[K, V]) visible(snapshot uint64) *header[K, V] {
	h := t.head.committed()
	if h.version <= snapshot {
		return h
	}
	if old, ok := t.versions.latestVisible(snapshot); ok {
		return old
	}
	return h
}

// store records h as the tree's new generation.
func (v view[K, V]) store(h header[K, V]) {
	h.gen = v.t.gens.Add(1)
	v.t.head.store(v.tx, &h)
}

// beginWrite validates tx for a write and enlists the tree in it.
func (t *Tree[K, V]) beginWrite(tx *Tx) error {
	if tx == nil {
		return nil
	}
	if err := tx.check(); err != nil {
		return err
	}
	if !tx.writable {
		return ErrTxNotWritable
	}
	tx.enlist(t)
	return nil
}

// Insert stores value under key, replacing any existing value.
func (t *Tree[K, V]) Insert(tx *Tx, key K, value V) error {
	if err := t.beginWrite(tx); err != nil {
		return err
	}
	v := t.view(tx)
	h := *v.header()

	c := v.cursor(h.root, key)
	v.writePath(c)
	if v.write(c.node()).insert(key, value, t.cmp) {
		h.size++
		v.split(c, &h)
	}
	v.store(h)
	return nil
}

// Upsert stores fn(old, true) under key if key is present and fn(zero,
// false) otherwise.
func (t *Tree[K, V]) Upsert(tx *Tx, key K, fn func(old V, ok bool) V) error {
	if err := t.beginWrite(tx); err != nil {
		return err
	}
	v := t.view(tx)
	h := *v.header()

	c := v.cursor(h.root, key)
	s := v.read(c.node())
	i, found := s.find(key, t.cmp)
	if found {
		value := fn(s.values[i], true)
		v.writePath(c)
		v.write(c.node()).mutValues()[i] = value
	} else {
		var zero V
		value := fn(zero, false)
		v.writePath(c)
		v.write(c.node()).insert(key, value, t.cmp)
		h.size++
		v.split(c, &h)
	}
	v.store(h)
	return nil
}

// Delete removes key and reports whether it was present.
func (t *Tree[K, V]) Delete(tx *Tx, key K) (bool, error) {
	if err := t.beginWrite(tx); err != nil {
		return false, err
	}
	v := t.view(tx)
	h := *v.header()

	c := v.cursor(h.root, key)
	i, found := v.read(c.node()).find(key, t.cmp)
	if !found {
		return false, nil
	}

	v.writePath(c)
	leaf := v.write(c.node())
	leaf.deleteAt(i)
	h.size--
	if i == 0 && leaf.peek >= 0 {
		// The separator routing to this leaf was the removed key.
		v.updateParentKeys(c, leaf.keys[0])
	}
	v.consolidate(c, &h)
	v.store(h)
	return true, nil
}

// Search returns the value stored under key.
func (t *Tree[K, V]) Search(tx *Tx, key K) (V, bool) {
	v := t.view(tx)
	s := v.read(v.header().root)
	for !s.leaf {
		s = v.read(s.children[s.childIndex(key, t.cmp)])
	}
	if i, found := s.find(key, t.cmp); found {
		return s.values[i], true
	}
	var zero V
	return zero, false
}

// Size returns the number of entries.
func (t *Tree[K, V]) Size(tx *Tx) int {
	return t.view(tx).header().size
}

// Height returns the number of levels, 1 for a tree that is a single leaf.
func (t *Tree[K, V]) Height(tx *Tx) int {
	v := t.view(tx)
	height := 1
	for s := v.read(v.header().root); !s.leaf; s = v.read(s.children[0]) {
		height++
	}
	return height
}

// Format renders the tree one node per line, children indented below their
// parent.
func (t *Tree[K, V]) Format(tx *Tx) string {
	v := t.view(tx)
	var b strings.Builder
	v.format(&b, v.header().root, 0)
	return b.String()
}

func (v view[K, V]) format(b *strings.Builder, n *node[K, V], depth int) {
	s := v.read(n)
	b.WriteString(strings.Repeat("  ", depth))
	if s.leaf {
		fmt.Fprintf(b, "leaf %v\n", s.keys[:s.peek+1])
		return
	}
	fmt.Fprintf(b, "internal %v\n", s.keys[:max(s.peek, 0)])
	for i := 0; i <= s.peek; i++ {
		v.format(b, s.children[i], depth+1)
	}
}

// split splits the cursor's node while it is full, moving up the path.
func (v view[K, V]) split(c *cursor[K, V], h *header[K, V]) {
	t := v.t
	for {
		n := c.node()
		s := v.write(n)
		if !s.isFull() {
			return
		}

		var (
			right *node[K, V]
			sep   K
		)
		if s.leaf {
			rs := newLeafState[K, V](t.opts.valueBlockSize)
			sep = s.splitLeaf(&rs)
			right = v.newNode(rs)
		} else {
			rs := newInternalState[K, V](t.opts.internalNodeBlockSize)
			sep = s.splitInternal(&rs)
			right = v.newNode(rs)
		}
		t.metrics.Splits.Inc()

		if c.level == 0 {
			rs := newInternalState[K, V](t.opts.internalNodeBlockSize)
			rs.children[0], rs.children[1] = n, right
			rs.keys[0] = sep
			rs.peek = 1
			h.root = v.newNode(rs)
			t.logger.Debug("root split", "height", len(c.path)+1, "size", h.size)
			return
		}

		c.up()
		v.write(c.node()).adaptToLeafSplit(sep, n, n, right)
	}
}

// consolidate rebalances from the cursor's node towards the root after a
// delete, stealing from or merging with siblings under the same parent.
func (v view[K, V]) consolidate(c *cursor[K, V], h *header[K, V]) {
	t := v.t
	for {
		n := c.node()
		s := v.read(n)

		if c.level == 0 {
			v.collapseRoot(n, s, h)
			return
		}

		minimum := t.minCount(s)
		if s.count() >= minimum {
			return
		}

		prev, hasPrev := c.previous()
		next, hasNext := c.next()
		var ps, ns *nodeState[K, V]
		if hasPrev {
			ps = v.read(prev.node())
		}
		if hasNext {
			ns = v.read(next.node())
		}

		switch {
		case hasPrev && ps.count() > minimum:
			v.steal(c, prev, true, minimum)
			v.refreshSeparator(c)
			return

		case hasNext && ns.count() > minimum:
			v.steal(c, next, false, minimum)
			v.refreshSeparator(next)
			v.refreshSeparator(c)
			return

		case hasPrev && t.fits(ps, s):
			v.merge(c, prev, true)
			idx := c.path[c.level].index
			v.write(c.parent()).removeChild(idx-1, idx-1)

		case hasNext && t.fits(ns, s):
			v.merge(c, next, false)
			idx := c.path[c.level].index
			v.write(c.parent()).removeChild(idx+1, idx)

		default:
			panic(errors.AssertionFailedf("node %d underflows with no sibling to steal from or merge with", n.id))
		}

		c = c.withReplacedCurrentNode(n)
		v.refreshSeparator(c)
		c.up()
	}
}

// collapseRoot shrinks the tree when the root is an internal node with at
// most one child.
func (v view[K, V]) collapseRoot(root *node[K, V], s *nodeState[K, V], h *header[K, V]) {
	if s.leaf || s.peek > 0 {
		return
	}
	if s.peek == 0 {
		h.root = s.children[0]
	} else {
		h.root = v.newNode(newLeafState[K, V](v.t.opts.valueBlockSize))
	}
	v.retire(root)
	v.t.logger.Debug("root collapsed", "size", h.size)
}

// steal refills the cursor's node from the sibling under sib.
func (v view[K, V]) steal(c, sib *cursor[K, V], left bool, minimum int) {
	s := v.write(c.node())
	ss := v.write(sib.node())
	m := algo.StealCount(ss.count(), minimum)

	switch {
	case s.leaf && left:
		s.stealLeafFromLeft(ss, m)
	case s.leaf:
		s.stealLeafFromRight(ss, m)
	case left:
		s.stealInternalFromLeft(ss, m, v.mustLeftBoundary(s.children[0]))
	default:
		s.stealInternalFromRight(ss, m, v.mustLeftBoundary(ss.children[0]))
	}
	v.t.metrics.Steals.Inc()
}

// merge moves every entry of the sibling under sib into the cursor's node
// and retires the sibling. The caller detaches it from the parent.
func (v view[K, V]) merge(c, sib *cursor[K, V], left bool) {
	s := v.write(c.node())
	ss := v.read(sib.node())

	switch {
	case s.leaf && left:
		s.mergeLeafWithLeft(ss)
	case s.leaf:
		s.mergeLeafWithRight(ss)
	case left:
		s.mergeInternalWithLeft(ss, v.mustLeftBoundary(s.children[0]))
	default:
		s.mergeInternalWithRight(ss, v.mustLeftBoundary(ss.children[0]))
	}
	v.retire(sib.node())
	v.t.metrics.Merges.Inc()
}

// minCount is the smallest count a non-root node of s's kind may hold.
func (t *Tree[K, V]) minCount(s *nodeState[K, V]) int {
	if s.leaf {
		return t.opts.minValueBlockSize
	}
	return t.opts.minInternalNodeBlockSize
}

// fits reports whether a and b can be merged into a node that is not full.
func (t *Tree[K, V]) fits(a, b *nodeState[K, V]) bool {
	if a.leaf {
		return a.count()+b.count() < t.opts.valueBlockSize
	}
	return a.count()+b.count()+1 < t.opts.internalNodeBlockSize
}

func (t *Tree[K, V]) objectID() uint64 {
	return t.head.id
}

// commit resolves the transaction's generation of the tree into committed
// nodes and publishes it. The superseded header is kept for readers whose
// snapshot predates version.
func (t *Tree[K, V]) commit(tx *Tx, version uint64) {
	if !t.head.shadowed(tx) {
		return
	}
	v := view[K, V]{t: t, tx: tx}
	next := *t.head.load(tx)
	next.root = v.resolve(next.root)
	next.version = version
	next.gen = t.gens.Add(1)

	old := t.head.committed()
	t.versions.track(old.version, old)
	t.head.publish(&next)
}

// prune drops retained headers no reader at or after minVersion can see.
func (t *Tree[K, V]) prune(minVersion uint64) {
	t.versions.cleanup(minVersion, t.head.committed().version)
}
