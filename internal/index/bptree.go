// Package index implements the ordered submission index: a B+ tree keyed by
// submission id.
//
// Nodes live in an arena owned by the tree and refer to each other by integer
// handle. Every node keeps the handle of its parent; the parent link is only
// consulted while rebalancing and never implies ownership.
//
// # Thread Safety
//
// Tree is NOT synchronized. Callers must serialize Insert, Delete, Clear and
// Restore; reads running concurrently with a mutation are undefined.
package index

import (
	"fmt"
	"sort"
	"time"
)

// DefaultOrder is the maximum number of children per internal node.
const DefaultOrder = 4

type nodeID int32

const nilNode nodeID = -1

type node[V any] struct {
	leaf     bool
	keys     []string
	values   []V      // leaves only, aligned with keys
	children []nodeID // internal only, len(keys)+1
	next     nodeID   // next leaf in ascending order
	parent   nodeID
}

// Entry is one key/value pair returned by range scans
type Entry[V any] struct {
	Key   string
	Value V
}

// Tree is a B+ tree mapping string keys to values of type V
type Tree[V any] struct {
	nodes   []node[V]
	free    []nodeID
	root    nodeID
	order   int
	minKeys int
	maxKeys int
	size    int
	metrics counters
}

// New creates an empty tree. Orders below 3 are raised to 3.
func New[V any](order int) *Tree[V] {
	if order < 3 {
		order = 3
	}
	return &Tree[V]{
		root:    nilNode,
		order:   order,
		minKeys: (order+1)/2 - 1,
		maxKeys: order - 1,
	}
}

// Order returns the branching factor
func (t *Tree[V]) Order() int {
	return t.order
}

// Len returns the number of stored keys
func (t *Tree[V]) Len() int {
	return t.size
}

// Empty reports whether the tree has no root
func (t *Tree[V]) Empty() bool {
	return t.root == nilNode
}

func (t *Tree[V]) n(id nodeID) *node[V] {
	return &t.nodes[id]
}

func (t *Tree[V]) alloc(leaf bool) nodeID {
	nd := node[V]{leaf: leaf, next: nilNode, parent: nilNode}
	if k := len(t.free); k > 0 {
		id := t.free[k-1]
		t.free = t.free[:k-1]
		t.nodes[id] = nd
		return id
	}
	t.nodes = append(t.nodes, nd)
	return nodeID(len(t.nodes) - 1)
}

func (t *Tree[V]) release(id nodeID) {
	t.nodes[id] = node[V]{next: nilNode, parent: nilNode}
	t.free = append(t.free, id)
}

// Search returns the value stored under key
func (t *Tree[V]) Search(key string) (V, bool) {
	start := time.Now()
	defer t.metrics.observe(start)
	t.metrics.searches.Add(1)

	var zero V
	if t.root == nilNode {
		return zero, false
	}
	leaf := t.n(t.findLeaf(key))
	i := sort.SearchStrings(leaf.keys, key)
	if i < len(leaf.keys) && leaf.keys[i] == key {
		return leaf.values[i], true
	}
	return zero, false
}

// RangeSearch returns every entry with low <= key <= high in ascending order
func (t *Tree[V]) RangeSearch(low, high string) []Entry[V] {
	results := make([]Entry[V], 0)
	if t.root == nilNode || low > high {
		return results
	}
	for id := t.findLeaf(low); id != nilNode; id = t.n(id).next {
		leaf := t.n(id)
		for i, k := range leaf.keys {
			if k < low {
				continue
			}
			if k > high {
				return results
			}
			results = append(results, Entry[V]{Key: k, Value: leaf.values[i]})
		}
	}
	return results
}

// Entries walks the whole leaf chain and returns every entry in key order
func (t *Tree[V]) Entries() []Entry[V] {
	results := make([]Entry[V], 0, t.size)
	for id := t.firstLeaf(); id != nilNode; id = t.n(id).next {
		leaf := t.n(id)
		for i, k := range leaf.keys {
			results = append(results, Entry[V]{Key: k, Value: leaf.values[i]})
		}
	}
	return results
}

// Keys returns every key in ascending order
func (t *Tree[V]) Keys() []string {
	keys := make([]string, 0, t.size)
	for id := t.firstLeaf(); id != nilNode; id = t.n(id).next {
		keys = append(keys, t.n(id).keys...)
	}
	return keys
}

// Clear drops every node and resets the performance counters
func (t *Tree[V]) Clear() {
	t.nodes = nil
	t.free = nil
	t.root = nilNode
	t.size = 0
	t.metrics.reset()
}

func (t *Tree[V]) findLeaf(key string) nodeID {
	id := t.root
	for !t.n(id).leaf {
		nd := t.n(id)
		id = nd.children[upperBound(nd.keys, key)]
	}
	return id
}

func (t *Tree[V]) firstLeaf() nodeID {
	if t.root == nilNode {
		return nilNode
	}
	id := t.root
	for !t.n(id).leaf {
		id = t.n(id).children[0]
	}
	return id
}

// childIndex locates child within parent's child list
func (t *Tree[V]) childIndex(parent, child nodeID) int {
	for i, c := range t.n(parent).children {
		if c == child {
			return i
		}
	}
	panic(fmt.Errorf("%w: node %d not listed among children of %d", ErrStructuralInvariant, child, parent))
}

// upperBound returns the first index whose key is strictly greater than key
func upperBound(keys []string, key string) int {
	return sort.Search(len(keys), func(i int) bool { return keys[i] > key })
}

func insertAt[T any](s []T, i int, v T) []T {
	var zero T
	s = append(s, zero)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func removeAt[T any](s []T, i int) []T {
	copy(s[i:], s[i+1:])
	var zero T
	s[len(s)-1] = zero
	return s[:len(s)-1]
}
