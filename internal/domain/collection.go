package domain

// CollectionID identifies a collection in the library database.
type CollectionID int64

// Collection is one row of the flat collection listing.
type Collection struct {
	ID       CollectionID
	Name     string
	ParentID *CollectionID
}

// CollectionNode is a collection placed in the built tree.
// Children preserve the listing order of the snapshot.
type CollectionNode struct {
	ID       CollectionID
	Name     string
	Children []*CollectionNode
}

// Forest is the collection hierarchy built once from a flat snapshot.
// It is not mutated after construction.
type Forest struct {
	Roots []*CollectionNode
	byID  map[CollectionID]*CollectionNode
}

// BuildForest assembles the collection tree from a flat listing.
// A node whose parent is missing from the listing is treated as a root.
// Nodes unreachable from any root indicate a parent cycle, which fails
// the build rather than looping during traversal.
func BuildForest(collections []Collection) (*Forest, error) {
	f := &Forest{
		byID: make(map[CollectionID]*CollectionNode, len(collections)),
	}
	for _, c := range collections {
		f.byID[c.ID] = &CollectionNode{ID: c.ID, Name: c.Name}
	}
	for _, c := range collections {
		node := f.byID[c.ID]
		if c.ParentID != nil {
			if parent, ok := f.byID[*c.ParentID]; ok {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		f.Roots = append(f.Roots, node)
	}

	// Every node must be reachable from a root; leftovers form cycles.
	reached := 0
	stack := append([]*CollectionNode(nil), f.Roots...)
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		reached++
		stack = append(stack, node.Children...)
	}
	if reached != len(f.byID) {
		return nil, ErrCollectionCycle
	}

	return f, nil
}

// FindByName locates a collection by its exact display name anywhere in
// the forest. Duplicate names are an error so the caller never exports
// a surprise subtree.
func (f *Forest) FindByName(name string) (*CollectionNode, error) {
	var found *CollectionNode
	for _, node := range f.byID {
		if node.Name != name {
			continue
		}
		if found != nil {
			return nil, ErrCollectionAmbiguous
		}
		found = node
	}
	if found == nil {
		return nil, ErrCollectionNotFound
	}
	return found, nil
}

// Get returns the node for an ID, or nil if absent.
func (f *Forest) Get(id CollectionID) *CollectionNode {
	return f.byID[id]
}

// Size returns the number of collections in the forest.
func (f *Forest) Size() int {
	return len(f.byID)
}
