// Package catalog materializes the category hierarchy.
//
// Categories reference their parent by id. Tree holds every node in one flat
// slice and links parents and children by index, built breadth-first from the
// roots, so no node points back at another and cycles in the source rows are
// detected instead of followed.
package catalog

import (
	"context"
	"fmt"
	"sort"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

const noParent = -1

type Node struct {
	ID       string
	Name     string
	Parent   int // index into Tree.Nodes, -1 for roots
	Children []int
	Depth    int
}

type Tree struct {
	Nodes []Node
	Roots []int
	index map[string]int
}

// Build materializes the tree. Rows whose parent is unknown become roots;
// rows unreachable from any root (a parent cycle) are an error.
func Build(categories []orders.Category) (*Tree, error) {
	byID := make(map[string]orders.Category, len(categories))
	children := make(map[string][]string, len(categories))
	var roots []string
	for _, c := range categories {
		byID[c.ID] = c
	}
	for _, c := range categories {
		if c.ParentID == nil || *c.ParentID == c.ID {
			roots = append(roots, c.ID)
			continue
		}
		if _, ok := byID[*c.ParentID]; !ok {
			roots = append(roots, c.ID)
			continue
		}
		children[*c.ParentID] = append(children[*c.ParentID], c.ID)
	}
	sort.Strings(roots)

	t := &Tree{Nodes: make([]Node, 0, len(categories)), index: make(map[string]int, len(categories))}
	queue := make([]int, 0, len(categories))
	for _, id := range roots {
		t.Roots = append(t.Roots, t.add(byID[id], noParent, 0))
		queue = append(queue, len(t.Nodes)-1)
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		kids := children[t.Nodes[cur].ID]
		sort.Strings(kids)
		for _, id := range kids {
			idx := t.add(byID[id], cur, t.Nodes[cur].Depth+1)
			t.Nodes[cur].Children = append(t.Nodes[cur].Children, idx)
			queue = append(queue, idx)
		}
	}
	if len(t.Nodes) != len(byID) {
		return nil, fmt.Errorf("catalog: %d categories form a parent cycle", len(byID)-len(t.Nodes))
	}
	return t, nil
}

func (t *Tree) add(c orders.Category, parent, depth int) int {
	t.Nodes = append(t.Nodes, Node{ID: c.ID, Name: c.Name, Parent: parent, Depth: depth})
	idx := len(t.Nodes) - 1
	t.index[c.ID] = idx
	return idx
}

// Ancestors returns the ids from the direct parent up to the root.
func (t *Tree) Ancestors(id string) []string {
	idx, ok := t.index[id]
	if !ok {
		return nil
	}
	var out []string
	for p := t.Nodes[idx].Parent; p != noParent; p = t.Nodes[p].Parent {
		out = append(out, t.Nodes[p].ID)
	}
	return out
}

// Descendants returns every id below id, breadth-first.
func (t *Tree) Descendants(id string) []string {
	idx, ok := t.index[id]
	if !ok {
		return nil
	}
	var out []string
	queue := append([]int(nil), t.Nodes[idx].Children...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		out = append(out, t.Nodes[cur].ID)
		queue = append(queue, t.Nodes[cur].Children...)
	}
	return out
}

// InAny reports whether id or one of its ancestors is in set.
func (t *Tree) InAny(id string, set map[string]bool) bool {
	if set[id] {
		return true
	}
	if t == nil {
		return false
	}
	for _, a := range t.Ancestors(id) {
		if set[a] {
			return true
		}
	}
	return false
}

// View is the nested read model served to clients.
type View struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Children []View `json:"children,omitempty"`
}

func (t *Tree) Views() []View {
	out := make([]View, 0, len(t.Roots))
	for _, r := range t.Roots {
		out = append(out, t.view(r))
	}
	return out
}

func (t *Tree) view(idx int) View {
	n := t.Nodes[idx]
	v := View{ID: n.ID, Name: n.Name}
	for _, c := range n.Children {
		v.Children = append(v.Children, t.view(c))
	}
	return v
}

// Load reads every category from the store and builds the tree.
func Load(ctx context.Context, store orders.Store) (*Tree, error) {
	var cats []orders.Category
	err := store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		var err error
		cats, err = tx.ListCategories(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return Build(cats)
}
