package index

import (
	"fmt"
	"sort"
	"time"
)

// Insert stores value under key, overwriting any previous value
func (t *Tree[V]) Insert(key string, value V) {
	start := time.Now()
	defer t.metrics.observe(start)

	if t.root == nilNode {
		id := t.alloc(true)
		root := t.n(id)
		root.keys = []string{key}
		root.values = []V{value}
		t.root = id
		t.size++
		t.metrics.insertions.Add(1)
		return
	}

	leafID := t.findLeaf(key)
	leaf := t.n(leafID)
	i := sort.SearchStrings(leaf.keys, key)
	if i < len(leaf.keys) && leaf.keys[i] == key {
		leaf.values[i] = value
		return
	}

	leaf.keys = insertAt(leaf.keys, i, key)
	leaf.values = insertAt(leaf.values, i, value)
	t.size++
	t.metrics.insertions.Add(1)

	if len(leaf.keys) > t.maxKeys {
		t.split(leafID)
	}
}

// split divides an overflowing node at its midpoint and pushes a separator
// into the parent, recursing while parents overflow
func (t *Tree[V]) split(id nodeID) {
	t.metrics.splits.Add(1)

	rightID := t.alloc(t.n(id).leaf)
	nd, right := t.n(id), t.n(rightID)
	mid := len(nd.keys) / 2

	var sep string
	if nd.leaf {
		right.keys = append([]string(nil), nd.keys[mid:]...)
		right.values = append([]V(nil), nd.values[mid:]...)
		clear(nd.values[mid:])
		nd.keys = nd.keys[:mid]
		nd.values = nd.values[:mid]
		right.next = nd.next
		nd.next = rightID
		sep = right.keys[0]
	} else {
		sep = nd.keys[mid]
		right.keys = append([]string(nil), nd.keys[mid+1:]...)
		right.children = append([]nodeID(nil), nd.children[mid+1:]...)
		nd.keys = nd.keys[:mid]
		nd.children = nd.children[:mid+1]
		for _, c := range right.children {
			t.n(c).parent = rightID
		}
	}

	if id == t.root {
		rootID := t.alloc(false)
		root := t.n(rootID)
		root.keys = []string{sep}
		root.children = []nodeID{id, rightID}
		t.n(id).parent = rootID
		t.n(rightID).parent = rootID
		t.root = rootID
		return
	}

	parentID := t.n(id).parent
	if parentID == nilNode {
		panic(fmt.Errorf("%w: non-root node %d has no parent", ErrStructuralInvariant, id))
	}
	idx := t.childIndex(parentID, id)
	parent := t.n(parentID)
	parent.keys = insertAt(parent.keys, idx, sep)
	parent.children = insertAt(parent.children, idx+1, rightID)
	t.n(rightID).parent = parentID

	if len(parent.keys) > t.maxKeys {
		t.split(parentID)
	}
}
