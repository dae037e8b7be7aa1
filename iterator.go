package mvtree

import "iter"

// Iterator walks the entries of a tree in key order, or in reverse.
//
// An iterator is a single pass over the nodes it captured when it was
// created; it is not affected by later commits. It must not be used after
// its transaction modifies the same tree.
type Iterator[K, V any] struct {
	v       view[K, V]
	path    []frame[K, V]
	leaf    *nodeState[K, V]
	index   int
	reverse bool
	valid   bool
}

// Ascend returns an iterator over all entries in ascending key order.
func (t *Tree[K, V]) Ascend(tx *Tx) *Iterator[K, V] {
	v := t.view(tx)
	return v.edgeIterator(v.header().root, false)
}

// AscendFrom returns an iterator over entries with keys >= key in
// ascending order.
func (t *Tree[K, V]) AscendFrom(tx *Tx, key K) *Iterator[K, V] {
	v := t.view(tx)
	it := newIterator(v, v.cursor(v.header().root, key), false)
	it.index, _ = it.leaf.find(key, t.cmp)
	it.valid = it.index <= it.leaf.peek || it.stepLeaf()
	return it
}

// Descend returns an iterator over all entries in descending key order.
func (t *Tree[K, V]) Descend(tx *Tx) *Iterator[K, V] {
	v := t.view(tx)
	return v.edgeIterator(v.header().root, true)
}

// DescendFrom returns an iterator over entries with keys <= key in
// descending order.
func (t *Tree[K, V]) DescendFrom(tx *Tx, key K) *Iterator[K, V] {
	v := t.view(tx)
	it := newIterator(v, v.cursor(v.header().root, key), true)
	i, found := it.leaf.find(key, t.cmp)
	if !found {
		i--
	}
	it.index = i
	it.valid = it.index >= 0 || it.stepLeaf()
	return it
}

// edgeIterator returns an iterator over every entry under root, starting at
// the first entry or at the last one in reverse.
func (v view[K, V]) edgeIterator(root *node[K, V], reverse bool) *Iterator[K, V] {
	it := newIterator(v, v.edgeCursor(root, reverse), reverse)
	if reverse {
		it.index = it.leaf.peek
		it.valid = it.index >= 0 || it.stepLeaf()
	} else {
		it.index = 0
		it.valid = it.index <= it.leaf.peek || it.stepLeaf()
	}
	return it
}

func newIterator[K, V any](v view[K, V], c *cursor[K, V], reverse bool) *Iterator[K, V] {
	return &Iterator[K, V]{
		v:       v,
		path:    c.path,
		leaf:    v.read(c.node()),
		reverse: reverse,
	}
}

// HasNext reports whether Next will return an entry.
func (it *Iterator[K, V]) HasNext() bool {
	return it.valid
}

// Next returns the next entry. It returns ErrIteratorExhausted once every
// entry has been returned.
func (it *Iterator[K, V]) Next() (K, V, error) {
	if !it.valid {
		var (
			k K
			v V
		)
		return k, v, ErrIteratorExhausted
	}

	k, v := it.leaf.keys[it.index], it.leaf.values[it.index]
	if it.reverse {
		it.index--
		if it.index < 0 {
			it.valid = it.stepLeaf()
		}
	} else {
		it.index++
		if it.index > it.leaf.peek {
			it.valid = it.stepLeaf()
		}
	}
	return k, v, nil
}

// stepLeaf moves to the first entry of the next leaf, or the last entry of
// the previous one in reverse. It walks up to the deepest level that has a
// sibling in the walking direction and descends from there.
func (it *Iterator[K, V]) stepLeaf() bool {
	last := len(it.path) - 1
	for l := last; l > 0; l-- {
		f := &it.path[l]
		if it.reverse {
			if f.index == 0 {
				continue
			}
			f.index--
		} else {
			if f.index >= f.peek {
				continue
			}
			f.index++
		}

		for d := l + 1; d <= last; d++ {
			up := it.path[d-1]
			p := it.v.read(up.siblings[up.index])
			idx := 0
			if it.reverse {
				idx = p.peek
			}
			it.path[d] = frame[K, V]{siblings: p.children, index: idx, peek: p.peek}
		}

		f = &it.path[last]
		it.leaf = it.v.read(f.siblings[f.index])
		if it.reverse {
			it.index = it.leaf.peek
			return it.index >= 0
		}
		it.index = 0
		return it.leaf.peek >= 0
	}
	return false
}

// Keys drains the iterator, yielding keys.
func (it *Iterator[K, V]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		for it.valid {
			k, _, _ := it.Next()
			if !yield(k) {
				return
			}
		}
	}
}

// Values drains the iterator, yielding values.
func (it *Iterator[K, V]) Values() iter.Seq[V] {
	return func(yield func(V) bool) {
		for it.valid {
			_, v, _ := it.Next()
			if !yield(v) {
				return
			}
		}
	}
}

// All drains the iterator, yielding entries.
func (it *Iterator[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for it.valid {
			k, v, _ := it.Next()
			if !yield(k, v) {
				return
			}
		}
	}
}
