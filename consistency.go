package mvtree

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
)

// State is the outcome of a consistency check.
type State int

const (
	Consistent State = iota
	Broken
)

func (s State) String() string {
	switch s {
	case Consistent:
		return "CONSISTENT"
	case Broken:
		return "BROKEN"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Report describes whether a tree satisfies its structural invariants.
type Report struct {
	State   State
	Message string
}

// OK reports whether the tree was found consistent.
func (r Report) OK() bool {
	return r.State == Consistent
}

func (r Report) String() string {
	if r.Message == "" {
		return r.State.String()
	}
	return r.State.String() + ": " + r.Message
}

// hashGeneration is the freelru hash callback for report cache keys.
func hashGeneration(gen uint64) uint32 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], gen)
	return uint32(xxhash.Sum64(b[:]))
}

// ConsistencyReport checks the generation of the tree visible to tx. It
// checks, in order, that all leaves are at the same depth, that every
// non-root node is within its occupancy bounds, that every separator equals
// the smallest key of the child it routes to, and that forward and reverse
// iteration are strictly ordered and agree with Size.
//
// Faults found along the way are reported as Broken, never raised.
// Reports on committed generations are cached.
func (t *Tree[K, V]) ConsistencyReport(tx *Tx) Report {
	v := t.view(tx)
	h := v.header()

	cacheable := t.reports != nil && (v.tx == nil || !v.tx.writable || !t.head.shadowed(v.tx))
	if cacheable {
		if r, ok := t.reports.Get(h.gen); ok {
			return r
		}
	}

	report := Report{State: Consistent}
	if err := v.check(h); err != nil {
		report = Report{State: Broken, Message: err.Error()}
		t.logger.Error("tree is inconsistent", "gen", h.gen, "size", h.size, "error", err)
	}
	if cacheable {
		t.reports.Add(h.gen, report)
	}
	return report
}

func (v view[K, V]) check(h *header[K, V]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = errors.Wrap(e, "check panicked")
			} else {
				err = errors.Newf("check panicked: %v", r)
			}
		}
	}()

	if _, err := v.checkDepth(h.root); err != nil {
		return err
	}
	if err := v.checkOccupancy(h.root, true); err != nil {
		return err
	}
	if err := v.checkSeparators(h.root); err != nil {
		return err
	}
	if err := v.checkOrder(h, false); err != nil {
		return err
	}
	return v.checkOrder(h, true)
}

// checkDepth returns the number of levels under n, failing if leaves are
// not all at the same depth.
func (v view[K, V]) checkDepth(n *node[K, V]) (int, error) {
	s := v.read(n)
	if s.leaf {
		return 1, nil
	}
	depth := -1
	for i := 0; i <= s.peek; i++ {
		d, err := v.checkDepth(s.children[i])
		if err != nil {
			return 0, err
		}
		if depth >= 0 && d != depth {
			return 0, errors.Newf("node %d: child %d has height %d, child 0 has height %d", n.id, i, d, depth)
		}
		depth = d
	}
	return depth + 1, nil
}

func (v view[K, V]) checkOccupancy(n *node[K, V], root bool) error {
	t := v.t
	s := v.read(n)
	if s.isFull() {
		return errors.Newf("node %d: %d entries exceed block size", n.id, s.count())
	}
	if !root && s.count() < t.minCount(s) {
		return errors.Newf("node %d: %d entries below minimum %d", n.id, s.count(), t.minCount(s))
	}
	if s.leaf {
		return nil
	}
	if !root && s.peek < 1 {
		return errors.Newf("node %d: internal node has %d children", n.id, s.peek+1)
	}
	for i := 0; i <= s.peek; i++ {
		if err := v.checkOccupancy(s.children[i], false); err != nil {
			return err
		}
	}
	return nil
}

func (v view[K, V]) checkSeparators(n *node[K, V]) error {
	s := v.read(n)
	if s.leaf {
		return nil
	}
	for i := 1; i <= s.peek; i++ {
		lb, ok := v.leftBoundary(s.children[i])
		if !ok {
			return errors.Newf("node %d: child %d is empty", n.id, i)
		}
		if v.t.cmp(s.keys[i-1], lb) != 0 {
			return errors.Newf("node %d: separator %d is %v, child %d starts at %v", n.id, i-1, s.keys[i-1], i, lb)
		}
	}
	for i := 0; i <= s.peek; i++ {
		if err := v.checkSeparators(s.children[i]); err != nil {
			return err
		}
	}
	return nil
}

func (v view[K, V]) checkOrder(h *header[K, V], reverse bool) error {
	direction := "forward"
	if reverse {
		direction = "reverse"
	}

	it := v.edgeIterator(h.root, reverse)
	var prev K
	count := 0
	for k := range it.Keys() {
		if count > 0 && outOfOrder(v.t.cmp(k, prev), reverse) {
			return errors.Newf("%s iteration: %v follows %v", direction, k, prev)
		}
		prev = k
		count++
	}
	if count != h.size {
		return errors.Newf("%s iteration returned %d entries, size is %d", direction, count, h.size)
	}
	return nil
}

func outOfOrder(c int, reverse bool) bool {
	if reverse {
		return c >= 0
	}
	return c <= 0
}
