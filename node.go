package mvtree

import (
	"slices"

	"github.com/cockroachdb/errors"

	"github.com/alexhholmes/mvtree/internal/algo"
)

// Ownership bits of a nodeState. A shadow starts out sharing every array
// with the state it was copied from and takes ownership of an array (by
// copying it) right before the first write to it.
const (
	ownKeys uint8 = 1 << iota
	ownValues
	ownChildren

	ownAll = ownKeys | ownValues | ownChildren
)

// node is a b+ tree node with a stable identity. The committed state lives
// in base; transactions keep their changes in shadow states keyed by id.
type node[K, V any] struct {
	id   uint64
	base nodeState[K, V]
}

// nodeState holds the contents of a leaf or internal node.
//
// Leaf: keys and values are parallel, peek is the index of the last entry
// (-1 when empty).
// Internal: peek is the index of the last child, keys[i-1] separates
// children[i-1] and children[i].
//
// Arrays have fixed length. A node is full when peek reaches the last slot,
// which is one past the largest size allowed at rest, so a full node must be
// split before anything else touches it.
type nodeState[K, V any] struct {
	leaf    bool
	removed bool
	owned   uint8
	peek    int

	keys     []K
	values   []V           // leaf only
	children []*node[K, V] // internal only
}

func newLeafState[K, V any](blockSize int) nodeState[K, V] {
	return nodeState[K, V]{
		leaf:   true,
		owned:  ownAll,
		peek:   -1,
		keys:   make([]K, blockSize+1),
		values: make([]V, blockSize+1),
	}
}

func newInternalState[K, V any](blockSize int) nodeState[K, V] {
	return nodeState[K, V]{
		owned:    ownAll,
		peek:     -1,
		keys:     make([]K, blockSize),
		children: make([]*node[K, V], blockSize+1),
	}
}

// shadow returns a copy of s that shares all of its arrays.
func (s *nodeState[K, V]) shadow() *nodeState[K, V] {
	c := *s
	c.owned = 0
	return &c
}

func (s *nodeState[K, V]) mutKeys() []K {
	if s.owned&ownKeys == 0 {
		s.keys = slices.Clone(s.keys)
		s.owned |= ownKeys
	}
	return s.keys
}

func (s *nodeState[K, V]) mutValues() []V {
	if s.owned&ownValues == 0 {
		s.values = slices.Clone(s.values)
		s.owned |= ownValues
	}
	return s.values
}

func (s *nodeState[K, V]) mutChildren() []*node[K, V] {
	if s.owned&ownChildren == 0 {
		s.children = slices.Clone(s.children)
		s.owned |= ownChildren
	}
	return s.children
}

// count returns the number of entries for a leaf and the number of
// separator keys for an internal node.
func (s *nodeState[K, V]) count() int {
	if s.leaf {
		return s.peek + 1
	}
	return s.peek
}

// isFull reports whether the node has reached its last slot and must split.
func (s *nodeState[K, V]) isFull() bool {
	if s.leaf {
		return s.peek == len(s.values)-1
	}
	return s.peek == len(s.children)-1
}

func (s *nodeState[K, V]) mustBeLeaf(op string) {
	if !s.leaf {
		panic(errors.AssertionFailedf("%s: expected leaf node", errors.Safe(op)))
	}
}

func (s *nodeState[K, V]) mustBeInternal(op string) {
	if s.leaf {
		panic(errors.AssertionFailedf("%s: expected internal node", errors.Safe(op)))
	}
}

// find returns the position of key in a leaf, or its insertion point.
func (s *nodeState[K, V]) find(key K, cmp func(a, b K) int) (int, bool) {
	return algo.Search(s.keys, s.peek+1, key, cmp)
}

// childIndex returns the child of an internal node that covers key.
func (s *nodeState[K, V]) childIndex(key K, cmp func(a, b K) int) int {
	return algo.ChildIndex(s.keys, s.peek, key, cmp)
}

// insert stores value under key. An existing key has its value replaced and
// insert returns false.
func (s *nodeState[K, V]) insert(key K, value V, cmp func(a, b K) int) bool {
	s.mustBeLeaf("insert")
	i, found := s.find(key, cmp)
	if found {
		s.mutValues()[i] = value
		return false
	}
	if s.isFull() {
		panic(errors.AssertionFailedf("insert into full leaf (%d entries)", s.count()))
	}

	n := s.peek + 1
	algo.InsertAt(s.mutKeys(), n, i, key)
	algo.InsertAt(s.mutValues(), n, i, value)
	s.peek++
	return true
}

// delete removes key from a leaf and reports whether it was present.
func (s *nodeState[K, V]) delete(key K, cmp func(a, b K) int) bool {
	i, found := s.find(key, cmp)
	if !found {
		return false
	}
	s.deleteAt(i)
	return true
}

func (s *nodeState[K, V]) deleteAt(i int) {
	s.mustBeLeaf("delete")
	n := s.peek + 1
	algo.RemoveAt(s.mutKeys(), n, i)
	algo.RemoveAt(s.mutValues(), n, i)
	s.peek--
}

// childPosition returns the index of child c, or -1.
func (s *nodeState[K, V]) childPosition(c *node[K, V]) int {
	for i := 0; i <= s.peek; i++ {
		if s.children[i] == c {
			return i
		}
	}
	return -1
}

// adaptToLeafSplit replaces original with left and inserts right after it,
// separated by key.
func (s *nodeState[K, V]) adaptToLeafSplit(key K, original, left, right *node[K, V]) {
	s.mustBeInternal("adaptToLeafSplit")
	if s.isFull() {
		panic(errors.AssertionFailedf("adaptToLeafSplit on full internal node"))
	}
	idx := s.childPosition(original)
	if idx < 0 {
		panic(errors.AssertionFailedf("adaptToLeafSplit: node %d is not a child", original.id))
	}

	children := s.mutChildren()
	children[idx] = left
	algo.InsertAt(children, s.peek+1, idx+1, right)
	algo.InsertAt(s.mutKeys(), s.peek, idx, key)
	s.peek++
}

// removeChild drops children[childIdx] and keys[keyIdx].
func (s *nodeState[K, V]) removeChild(childIdx, keyIdx int) {
	s.mustBeInternal("removeChild")
	algo.RemoveAt(s.mutChildren(), s.peek+1, childIdx)
	algo.RemoveAt(s.mutKeys(), s.peek, keyIdx)
	s.peek--
}

// splitLeaf moves the upper half of s into right. The separator is right's
// first key.
func (s *nodeState[K, V]) splitLeaf(right *nodeState[K, V]) K {
	count := s.peek + 1
	mid := count / 2

	keys, values := s.mutKeys(), s.mutValues()
	copy(right.keys, keys[mid:count])
	copy(right.values, values[mid:count])
	clear(keys[mid:count])
	clear(values[mid:count])

	right.peek = count - mid - 1
	s.peek = mid - 1
	return right.keys[0]
}

// splitInternal moves the upper half of the children of s into right. The
// key between the halves moves up and is returned.
func (s *nodeState[K, V]) splitInternal(right *nodeState[K, V]) K {
	c := s.peek + 1
	mid := c / 2

	keys, children := s.mutKeys(), s.mutChildren()
	sep := keys[mid-1]
	copy(right.children, children[mid:c])
	copy(right.keys, keys[mid:c-1])
	clear(children[mid:c])
	clear(keys[mid-1 : c-1])

	right.peek = c - mid - 1
	s.peek = mid - 1
	return sep
}

// stealLeafFromLeft moves the last m entries of sib to the front of s.
func (s *nodeState[K, V]) stealLeafFromLeft(sib *nodeState[K, V], m int) {
	n, sc := s.peek+1, sib.peek+1
	keys, values := s.mutKeys(), s.mutValues()
	sk, sv := sib.mutKeys(), sib.mutValues()

	algo.ShiftRight(keys, n, m)
	algo.ShiftRight(values, n, m)
	copy(keys[:m], sk[sc-m:sc])
	copy(values[:m], sv[sc-m:sc])
	clear(sk[sc-m : sc])
	clear(sv[sc-m : sc])

	s.peek += m
	sib.peek -= m
}

// stealLeafFromRight moves the first m entries of sib to the back of s.
func (s *nodeState[K, V]) stealLeafFromRight(sib *nodeState[K, V], m int) {
	n, sc := s.peek+1, sib.peek+1
	keys, values := s.mutKeys(), s.mutValues()
	sk, sv := sib.mutKeys(), sib.mutValues()

	copy(keys[n:n+m], sk[:m])
	copy(values[n:n+m], sv[:m])
	algo.ShiftLeft(sk, sc, m)
	algo.ShiftLeft(sv, sc, m)

	s.peek += m
	sib.peek -= m
}

// mergeLeafWithLeft prepends every entry of sib to s. sib is left intact.
func (s *nodeState[K, V]) mergeLeafWithLeft(sib *nodeState[K, V]) {
	n, sc := s.peek+1, sib.peek+1
	keys, values := s.mutKeys(), s.mutValues()

	algo.ShiftRight(keys, n, sc)
	algo.ShiftRight(values, n, sc)
	copy(keys[:sc], sib.keys[:sc])
	copy(values[:sc], sib.values[:sc])
	s.peek += sc
}

// mergeLeafWithRight appends every entry of sib to s. sib is left intact.
func (s *nodeState[K, V]) mergeLeafWithRight(sib *nodeState[K, V]) {
	n, sc := s.peek+1, sib.peek+1
	copy(s.mutKeys()[n:n+sc], sib.keys[:sc])
	copy(s.mutValues()[n:n+sc], sib.values[:sc])
	s.peek += sc
}

// stealInternalFromLeft moves the last m children of sib to the front of s.
// sep is the smallest key under the first child of s; it separates the
// moved children from the old ones.
func (s *nodeState[K, V]) stealInternalFromLeft(sib *nodeState[K, V], m int, sep K) {
	c, k := s.peek+1, s.peek
	lc := sib.peek + 1
	keys, children := s.mutKeys(), s.mutChildren()
	sk, sch := sib.mutKeys(), sib.mutChildren()

	algo.ShiftRight(children, c, m)
	algo.ShiftRight(keys, k, m)
	copy(children[:m], sch[lc-m:lc])
	copy(keys[:m-1], sk[lc-m:lc-1])
	keys[m-1] = sep

	clear(sch[lc-m : lc])
	clear(sk[lc-m-1 : lc-1])

	s.peek += m
	sib.peek -= m
}

// stealInternalFromRight moves the first m children of sib to the back of
// s. sep is the smallest key under the first child of sib.
func (s *nodeState[K, V]) stealInternalFromRight(sib *nodeState[K, V], m int, sep K) {
	c, k := s.peek+1, s.peek
	rc := sib.peek + 1
	keys, children := s.mutKeys(), s.mutChildren()
	sk, sch := sib.mutKeys(), sib.mutChildren()

	copy(children[c:c+m], sch[:m])
	keys[k] = sep
	copy(keys[k+1:k+m], sk[:m-1])

	algo.ShiftLeft(sch, rc, m)
	algo.ShiftLeft(sk, sib.peek, m)

	s.peek += m
	sib.peek -= m
}

// mergeInternalWithLeft prepends every child of sib to s. sep is the
// smallest key under the first child of s.
func (s *nodeState[K, V]) mergeInternalWithLeft(sib *nodeState[K, V], sep K) {
	c, k := s.peek+1, s.peek
	lc, lk := sib.peek+1, sib.peek
	keys, children := s.mutKeys(), s.mutChildren()

	algo.ShiftRight(children, c, lc)
	algo.ShiftRight(keys, k, lk+1)
	copy(children[:lc], sib.children[:lc])
	copy(keys[:lk], sib.keys[:lk])
	keys[lk] = sep
	s.peek += lc
}

// mergeInternalWithRight appends every child of sib to s. sep is the
// smallest key under the first child of sib.
func (s *nodeState[K, V]) mergeInternalWithRight(sib *nodeState[K, V], sep K) {
	c, k := s.peek+1, s.peek
	rc, rk := sib.peek+1, sib.peek
	keys, children := s.mutKeys(), s.mutChildren()

	copy(children[c:c+rc], sib.children[:rc])
	keys[k] = sep
	copy(keys[k+1:k+1+rk], sib.keys[:rk])
	s.peek += rc
}
