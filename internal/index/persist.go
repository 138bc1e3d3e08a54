package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// NodeRecord is the persisted form of a node. Values are set on leaves only,
// Children on internal nodes only. A nil *NodeRecord encodes an empty tree.
type NodeRecord[V any] struct {
	IsLeaf   bool             `bson:"is_leaf" json:"is_leaf"`
	Keys     []string         `bson:"keys" json:"keys"`
	Values   []V              `bson:"values" json:"values"`
	Children []*NodeRecord[V] `bson:"children" json:"children"`
}

// Snapshot serializes the tree into nested records
func (t *Tree[V]) Snapshot() *NodeRecord[V] {
	if t.root == nilNode {
		return nil
	}
	return t.snapshotNode(t.root)
}

func (t *Tree[V]) snapshotNode(id nodeID) *NodeRecord[V] {
	nd := t.n(id)
	rec := &NodeRecord[V]{
		IsLeaf: nd.leaf,
		Keys:   append([]string(nil), nd.keys...),
	}
	if nd.leaf {
		rec.Values = append([]V(nil), nd.values...)
		return rec
	}
	rec.Children = make([]*NodeRecord[V], 0, len(nd.children))
	for _, c := range nd.children {
		rec.Children = append(rec.Children, t.snapshotNode(c))
	}
	return rec
}

// Restore replaces the tree contents with the snapshot. Parent links and the
// leaf chain are rebuilt. On error the current contents are left untouched.
func (t *Tree[V]) Restore(rec *NodeRecord[V]) error {
	fresh := New[V](t.order)
	if rec != nil {
		var lastLeaf nodeID = nilNode
		root, err := fresh.restoreNode(rec, nilNode, &lastLeaf)
		if err != nil {
			return err
		}
		fresh.root = root
	}
	if err := fresh.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}

	t.nodes = fresh.nodes
	t.free = nil
	t.root = fresh.root
	t.size = fresh.size
	return nil
}

func (t *Tree[V]) restoreNode(rec *NodeRecord[V], parent nodeID, lastLeaf *nodeID) (nodeID, error) {
	if rec == nil {
		return nilNode, fmt.Errorf("%w: null child record", ErrCorruptSnapshot)
	}
	id := t.alloc(rec.IsLeaf)
	t.n(id).parent = parent
	t.n(id).keys = append([]string(nil), rec.Keys...)

	if rec.IsLeaf {
		if len(rec.Values) != len(rec.Keys) {
			return nilNode, fmt.Errorf("%w: leaf has %d keys and %d values", ErrCorruptSnapshot, len(rec.Keys), len(rec.Values))
		}
		t.n(id).values = append([]V(nil), rec.Values...)
		if *lastLeaf != nilNode {
			t.n(*lastLeaf).next = id
		}
		*lastLeaf = id
		t.size += len(rec.Keys)
		return id, nil
	}

	if len(rec.Children) != len(rec.Keys)+1 {
		return nilNode, fmt.Errorf("%w: internal node has %d keys and %d children", ErrCorruptSnapshot, len(rec.Keys), len(rec.Children))
	}
	children := make([]nodeID, 0, len(rec.Children))
	for _, child := range rec.Children {
		c, err := t.restoreNode(child, id, lastLeaf)
		if err != nil {
			return nilNode, err
		}
		children = append(children, c)
	}
	t.n(id).children = children
	return id, nil
}

// Save writes the tree as JSON to path, replacing the file atomically
func (t *Tree[V]) Save(path string) error {
	data, err := json.Marshal(t.Snapshot())
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close index file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move index into place: %w", err)
	}

	log.Info().Str("path", path).Int("keys", t.size).Msg("Index saved")
	return nil
}

// Load replaces the tree with the one stored at path. A failed load leaves
// the current tree untouched.
func (t *Tree[V]) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read index: %w", err)
	}

	var rec *NodeRecord[V]
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if err := t.Restore(rec); err != nil {
		if errors.Is(err, ErrCorruptSnapshot) {
			log.Error().Err(err).Str("path", path).Msg("Rejected index snapshot")
		}
		return err
	}

	log.Info().Str("path", path).Int("keys", t.size).Msg("Index loaded")
	return nil
}
