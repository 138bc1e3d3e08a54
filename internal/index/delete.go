package index

import (
	"fmt"
	"sort"
	"time"
)

// Delete removes key and reports whether it was present
func (t *Tree[V]) Delete(key string) bool {
	start := time.Now()
	defer t.metrics.observe(start)

	if t.root == nilNode {
		return false
	}

	leafID := t.findLeaf(key)
	leaf := t.n(leafID)
	i := sort.SearchStrings(leaf.keys, key)
	if i >= len(leaf.keys) || leaf.keys[i] != key {
		return false
	}

	leaf.keys = removeAt(leaf.keys, i)
	leaf.values = removeAt(leaf.values, i)
	t.size--
	t.metrics.deletions.Add(1)

	if leafID == t.root {
		if len(leaf.keys) == 0 {
			t.release(leafID)
			t.root = nilNode
		}
		return true
	}

	if len(leaf.keys) < t.minKeys {
		t.rebalance(leafID)
	}
	return true
}

// rebalance restores the minimum fill of a non-root node by borrowing from a
// sibling, or merging with one when neither can spare a key
func (t *Tree[V]) rebalance(id nodeID) {
	parentID := t.n(id).parent
	if parentID == nilNode {
		panic(fmt.Errorf("%w: underflowing node %d has no parent", ErrStructuralInvariant, id))
	}
	idx := t.childIndex(parentID, id)
	siblings := t.n(parentID).children

	if idx > 0 {
		left := siblings[idx-1]
		if len(t.n(left).keys) > t.minKeys {
			t.borrowFromLeft(id, left, parentID, idx)
			return
		}
	}
	if idx < len(siblings)-1 {
		right := siblings[idx+1]
		if len(t.n(right).keys) > t.minKeys {
			t.borrowFromRight(id, right, parentID, idx)
			return
		}
	}

	if idx > 0 {
		t.merge(siblings[idx-1], id, parentID, idx)
	} else {
		t.merge(id, siblings[idx+1], parentID, idx+1)
	}
}

func (t *Tree[V]) borrowFromLeft(id, leftID, parentID nodeID, idx int) {
	t.metrics.borrows.Add(1)
	nd, left, parent := t.n(id), t.n(leftID), t.n(parentID)
	last := len(left.keys) - 1

	if nd.leaf {
		nd.keys = insertAt(nd.keys, 0, left.keys[last])
		nd.values = insertAt(nd.values, 0, left.values[last])
		left.keys = removeAt(left.keys, last)
		left.values = removeAt(left.values, last)
		parent.keys[idx-1] = nd.keys[0]
		return
	}

	moved := left.children[len(left.children)-1]
	nd.keys = insertAt(nd.keys, 0, parent.keys[idx-1])
	parent.keys[idx-1] = left.keys[last]
	left.keys = removeAt(left.keys, last)
	nd.children = insertAt(nd.children, 0, moved)
	left.children = removeAt(left.children, len(left.children)-1)
	t.n(moved).parent = id
}

func (t *Tree[V]) borrowFromRight(id, rightID, parentID nodeID, idx int) {
	t.metrics.borrows.Add(1)
	nd, right, parent := t.n(id), t.n(rightID), t.n(parentID)

	if nd.leaf {
		nd.keys = append(nd.keys, right.keys[0])
		nd.values = append(nd.values, right.values[0])
		right.keys = removeAt(right.keys, 0)
		right.values = removeAt(right.values, 0)
		parent.keys[idx] = right.keys[0]
		return
	}

	moved := right.children[0]
	nd.keys = append(nd.keys, parent.keys[idx])
	parent.keys[idx] = right.keys[0]
	right.keys = removeAt(right.keys, 0)
	nd.children = append(nd.children, moved)
	right.children = removeAt(right.children, 0)
	t.n(moved).parent = id
}

// merge folds the child at rightIdx into its left neighbour and drops the
// separator between them from the parent
func (t *Tree[V]) merge(leftID, rightID, parentID nodeID, rightIdx int) {
	t.metrics.merges.Add(1)
	left, right, parent := t.n(leftID), t.n(rightID), t.n(parentID)

	if left.leaf {
		left.keys = append(left.keys, right.keys...)
		left.values = append(left.values, right.values...)
		left.next = right.next
	} else {
		left.keys = append(left.keys, parent.keys[rightIdx-1])
		left.keys = append(left.keys, right.keys...)
		left.children = append(left.children, right.children...)
		for _, c := range right.children {
			t.n(c).parent = leftID
		}
	}

	parent.keys = removeAt(parent.keys, rightIdx-1)
	parent.children = removeAt(parent.children, rightIdx)
	t.release(rightID)

	if parentID == t.root {
		if len(parent.keys) == 0 {
			t.root = leftID
			t.n(leftID).parent = nilNode
			t.release(parentID)
		}
		return
	}
	if len(parent.keys) < t.minKeys {
		t.rebalance(parentID)
	}
}
