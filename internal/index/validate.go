package index

import (
	"errors"
	"fmt"
)

// Validate checks every structural invariant of the tree: key ordering and
// routing bounds, node fill, child counts, parent links, uniform leaf depth
// and the ascending leaf chain
func (t *Tree[V]) Validate() error {
	if t.root == nilNode {
		if t.size != 0 {
			return fmt.Errorf("empty tree reports %d keys", t.size)
		}
		return nil
	}
	if p := t.n(t.root).parent; p != nilNode {
		return fmt.Errorf("root %d has parent %d", t.root, p)
	}

	leafDepth := -1
	var leaves []nodeID
	count, err := t.validateNode(t.root, nilNode, nil, nil, 0, &leafDepth, &leaves)
	if err != nil {
		return err
	}
	if count != t.size {
		return fmt.Errorf("tree holds %d keys but reports %d", count, t.size)
	}

	// the chain must visit exactly the leaves found by descent, in order
	id := t.firstLeaf()
	var prev *string
	for i, want := range leaves {
		if id != want {
			return fmt.Errorf("leaf chain position %d is node %d, expected %d", i, id, want)
		}
		for _, k := range t.n(id).keys {
			if prev != nil && *prev >= k {
				return fmt.Errorf("leaf chain not ascending at key %q", k)
			}
			k := k
			prev = &k
		}
		id = t.n(id).next
	}
	if id != nilNode {
		return errors.New("leaf chain continues past the last leaf")
	}
	return nil
}

func (t *Tree[V]) validateNode(id, parent nodeID, low, high *string, depth int, leafDepth *int, leaves *[]nodeID) (int, error) {
	nd := t.n(id)
	if nd.parent != parent {
		return 0, fmt.Errorf("node %d has parent %d, expected %d", id, nd.parent, parent)
	}
	if id != t.root && (len(nd.keys) < t.minKeys || len(nd.keys) > t.maxKeys) {
		return 0, fmt.Errorf("node %d holds %d keys, allowed [%d, %d]", id, len(nd.keys), t.minKeys, t.maxKeys)
	}
	if id == t.root && len(nd.keys) > t.maxKeys {
		return 0, fmt.Errorf("root holds %d keys, max %d", len(nd.keys), t.maxKeys)
	}
	for i, k := range nd.keys {
		if i > 0 && nd.keys[i-1] >= k {
			return 0, fmt.Errorf("node %d keys not strictly sorted at %q", id, k)
		}
		if low != nil && k < *low {
			return 0, fmt.Errorf("node %d key %q below separator %q", id, k, *low)
		}
		if high != nil && k >= *high {
			return 0, fmt.Errorf("node %d key %q not below separator %q", id, k, *high)
		}
	}

	if nd.leaf {
		if len(nd.values) != len(nd.keys) {
			return 0, fmt.Errorf("leaf %d has %d keys and %d values", id, len(nd.keys), len(nd.values))
		}
		if *leafDepth == -1 {
			*leafDepth = depth
		} else if *leafDepth != depth {
			return 0, fmt.Errorf("leaf %d at depth %d, expected %d", id, depth, *leafDepth)
		}
		*leaves = append(*leaves, id)
		return len(nd.keys), nil
	}

	if len(nd.children) != len(nd.keys)+1 {
		return 0, fmt.Errorf("internal node %d has %d keys and %d children", id, len(nd.keys), len(nd.children))
	}
	total := 0
	for i, c := range nd.children {
		lo, hi := low, high
		if i > 0 {
			lo = &nd.keys[i-1]
		}
		if i < len(nd.keys) {
			hi = &nd.keys[i]
		}
		n, err := t.validateNode(c, id, lo, hi, depth+1, leafDepth, leaves)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}
