package mvtree

// frame is one level of a cursor path. siblings is the children array of
// the parent (or just the root at level 0), index is the entry the path
// follows and peek is the last valid index of siblings.
type frame[K, V any] struct {
	siblings []*node[K, V]
	index    int
	peek     int
}

// cursor is a root-to-leaf path through one view of a tree. level selects
// the node the cursor currently points at; deeper frames stay valid until a
// structural change replaces that node.
//
// Cursors are built per operation and never outlive it.
type cursor[K, V any] struct {
	v     view[K, V]
	path  []frame[K, V]
	level int
}

// cursor descends from root to the leaf that covers key.
func (v view[K, V]) cursor(root *node[K, V], key K) *cursor[K, V] {
	c := &cursor[K, V]{v: v}
	c.path = append(c.path, frame[K, V]{siblings: []*node[K, V]{root}})

	s := v.read(root)
	for !s.leaf {
		idx := s.childIndex(key, v.t.cmp)
		c.path = append(c.path, frame[K, V]{siblings: s.children, index: idx, peek: s.peek})
		s = v.read(s.children[idx])
	}
	c.level = len(c.path) - 1
	return c
}

// edgeCursor descends from root to the first leaf, or the last when last is
// set.
func (v view[K, V]) edgeCursor(root *node[K, V], last bool) *cursor[K, V] {
	c := &cursor[K, V]{v: v}
	c.path = append(c.path, frame[K, V]{siblings: []*node[K, V]{root}})
	c.descend(last)
	return c
}

// descend extends the path from its deepest frame down to a leaf, following
// the first or last child at every level.
func (c *cursor[K, V]) descend(last bool) {
	s := c.v.read(c.nodeAt(len(c.path) - 1))
	for !s.leaf {
		idx := 0
		if last {
			idx = s.peek
		}
		c.path = append(c.path, frame[K, V]{siblings: s.children, index: idx, peek: s.peek})
		s = c.v.read(s.children[idx])
	}
	c.level = len(c.path) - 1
}

func (c *cursor[K, V]) nodeAt(level int) *node[K, V] {
	f := &c.path[level]
	return f.siblings[f.index]
}

func (c *cursor[K, V]) node() *node[K, V] {
	return c.nodeAt(c.level)
}

// parent returns the node one level above the cursor's node.
func (c *cursor[K, V]) parent() *node[K, V] {
	return c.nodeAt(c.level - 1)
}

// up moves the cursor one level towards the root.
func (c *cursor[K, V]) up() {
	c.level--
}

// previous returns a cursor on the sibling left of the cursor's node under
// the same parent, with deeper levels on that sibling's last descendants.
func (c *cursor[K, V]) previous() (*cursor[K, V], bool) {
	if c.path[c.level].index == 0 {
		return nil, false
	}
	return c.sibling(-1, true), true
}

// next returns a cursor on the sibling right of the cursor's node under the
// same parent, with deeper levels on that sibling's first descendants.
func (c *cursor[K, V]) next() (*cursor[K, V], bool) {
	f := c.path[c.level]
	if f.index >= f.peek {
		return nil, false
	}
	return c.sibling(1, false), true
}

func (c *cursor[K, V]) sibling(delta int, last bool) *cursor[K, V] {
	depth := len(c.path)
	s := &cursor[K, V]{v: c.v, path: make([]frame[K, V], c.level+1, depth)}
	copy(s.path, c.path[:c.level+1])
	s.path[c.level].index += delta

	for l := c.level + 1; l < depth; l++ {
		p := c.v.read(s.nodeAt(l - 1))
		idx := 0
		if last {
			idx = p.peek
		}
		s.path = append(s.path, frame[K, V]{siblings: p.children, index: idx, peek: p.peek})
	}
	s.level = c.level
	return s
}

// withReplacedCurrentNode returns a cursor whose current node is n, found
// by re-reading the parent. Levels below the current one are dropped.
func (c *cursor[K, V]) withReplacedCurrentNode(n *node[K, V]) *cursor[K, V] {
	r := &cursor[K, V]{v: c.v, path: make([]frame[K, V], c.level+1), level: c.level}
	copy(r.path, c.path[:c.level+1])
	if c.level == 0 {
		r.path[0] = frame[K, V]{siblings: []*node[K, V]{n}}
		return r
	}

	p := c.v.read(c.parent())
	r.path[c.level] = frame[K, V]{siblings: p.children, index: p.childPosition(n), peek: p.peek}
	return r
}
