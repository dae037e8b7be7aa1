package mvtree

import (
	"slices"

	"github.com/cockroachdb/errors"
)

// Resolvable is implemented by values that are themselves transactional.
// Commit replaces each stored Resolvable value with the result of Resolve.
type Resolvable[V any] interface {
	Resolve(tx *Tx) V
}

// view binds a tree to the transaction an operation runs in. A nil tx means
// the operation reads and writes committed state directly.
type view[K, V any] struct {
	t  *Tree[K, V]
	tx *Tx
}

// shadowing reports whether writes go to transaction layers.
func (v view[K, V]) shadowing() bool {
	return v.tx != nil && v.tx.writable
}

// read returns the state of n visible to the view.
func (v view[K, V]) read(n *node[K, V]) *nodeState[K, V] {
	s := &n.base
	if v.shadowing() {
		if l, ok := v.tx.layer(n.id); ok {
			s = l.(*nodeState[K, V])
		}
	}
	if s.removed {
		panic(errors.AssertionFailedf("node %d has already been removed", n.id))
	}
	return s
}

// write returns a state of n that may be modified.
func (v view[K, V]) write(n *node[K, V]) *nodeState[K, V] {
	if !v.shadowing() {
		if n.base.removed {
			panic(errors.AssertionFailedf("node %d has already been removed", n.id))
		}
		return &n.base
	}
	s := v.tx.layerFor(n.id, func() any { return n.base.shadow() }).(*nodeState[K, V])
	if s.removed {
		panic(errors.AssertionFailedf("node %d has already been removed", n.id))
	}
	return s
}

// newNode creates a node holding s. Inside a transaction the node is private
// to it until commit.
func (v view[K, V]) newNode(s nodeState[K, V]) *node[K, V] {
	n := &node[K, V]{id: nextObjectID(), base: s}
	if v.shadowing() {
		v.tx.setLayer(n.id, &n.base)
	}
	return n
}

// retire marks n as removed from the tree. Any further access is a fault.
func (v view[K, V]) retire(n *node[K, V]) {
	tombstone := nodeState[K, V]{removed: true, peek: -1}
	if !v.shadowing() {
		n.base = tombstone
		return
	}
	v.tx.setLayer(n.id, &tombstone)
}

// leftBoundary returns the smallest key under n.
func (v view[K, V]) leftBoundary(n *node[K, V]) (K, bool) {
	s := v.read(n)
	for !s.leaf {
		s = v.read(s.children[0])
	}
	if s.peek < 0 {
		var zero K
		return zero, false
	}
	return s.keys[0], true
}

// mustLeftBoundary is leftBoundary for subtrees that cannot be empty.
func (v view[K, V]) mustLeftBoundary(n *node[K, V]) K {
	k, ok := v.leftBoundary(n)
	if !ok {
		panic(errors.AssertionFailedf("subtree under node %d is empty", n.id))
	}
	return k
}

// resolve turns the shadowed subtree under n into committed nodes. Nodes
// the transaction never touched are returned as is.
func (v view[K, V]) resolve(n *node[K, V]) *node[K, V] {
	l, ok := v.tx.layer(n.id)
	if !ok {
		return n
	}
	shadow := l.(*nodeState[K, V])
	if shadow.removed {
		panic(errors.AssertionFailedf("removed node %d is still reachable", n.id))
	}

	s := *shadow
	if s.leaf {
		v.resolveValues(&s)
	} else {
		for i := 0; i <= s.peek; i++ {
			child := v.resolve(s.children[i])
			if child != s.children[i] {
				s.mutChildren()[i] = child
			}
		}
	}
	s.owned = ownAll
	return &node[K, V]{id: nextObjectID(), base: s}
}

func (v view[K, V]) resolveValues(s *nodeState[K, V]) {
	var values []V
	for i := 0; i <= s.peek; i++ {
		r, ok := any(s.values[i]).(Resolvable[V])
		if !ok {
			continue
		}
		if values == nil {
			values = slices.Clone(s.values)
		}
		values[i] = r.Resolve(v.tx)
	}
	if values != nil {
		s.values = values
	}
}

// writePath shadows every node from the root down to the cursor's level.
func (v view[K, V]) writePath(c *cursor[K, V]) {
	if !v.shadowing() {
		return
	}
	for l := 0; l <= c.level; l++ {
		v.write(c.nodeAt(l))
	}
}

// updateParentKeys replaces the separator that routes to the cursor's node
// with key. That separator lives in the nearest ancestor where the path does
// not follow the first child.
func (v view[K, V]) updateParentKeys(c *cursor[K, V], key K) {
	for l := c.level; l > 0; l-- {
		idx := c.path[l].index
		if idx > 0 {
			v.write(c.nodeAt(l - 1)).mutKeys()[idx-1] = key
			return
		}
	}
}

// refreshSeparator recomputes the separator for the cursor's node from its
// left boundary.
func (v view[K, V]) refreshSeparator(c *cursor[K, V]) {
	if key, ok := v.leftBoundary(c.node()); ok {
		v.updateParentKeys(c, key)
	}
}
