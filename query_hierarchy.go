package marstools

import (
	"context"
	"fmt"
	"io"

	"github.com/ddddddO/gtree"

	"github.com/jward/marstools/internal/scene"
)

// TreeNode is one object in a subtree view. Children keep scan order.
type TreeNode struct {
	Object   *Object
	Children []*TreeNode
}

// Size returns the number of objects in the subtree rooted at n.
func (n *TreeNode) Size() int {
	total := 1
	for _, c := range n.Children {
		total += c.Size()
	}
	return total
}

// Walk visits n and its descendants depth-first, passing each node's depth
// below n.
func (n *TreeNode) Walk(fn func(node *TreeNode, depth int)) {
	n.walk(fn, 0)
}

func (n *TreeNode) walk(fn func(*TreeNode, int), depth int) {
	fn(n, depth)
	for _, c := range n.Children {
		c.walk(fn, depth+1)
	}
}

// Subtree returns the parent/child tree below root, built from the same
// membership FindChildren reports. root must be a parentless object in the
// scene; anything else fails with ErrUnknownObject.
func (q *QueryBuilder) Subtree(ctx context.Context, root *Object) (*TreeNode, error) {
	members, err := q.FindChildren(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("subtree: %w", err)
	}

	nodes := make(map[int64]*TreeNode, len(members))
	for _, o := range members {
		nodes[o.ID] = &TreeNode{Object: o}
	}

	var top *TreeNode
	for _, o := range members {
		n := nodes[o.ID]
		if o.ID == root.ID {
			top = n
			continue
		}
		// Members share root, so every non-root member's parent is a member.
		parent := nodes[*o.ParentID]
		parent.Children = append(parent.Children, n)
	}
	if top == nil {
		return nil, fmt.Errorf("subtree: %q is not a scene root: %w", root.Name, ErrUnknownObject)
	}
	return top, nil
}

// Ancestors returns the parent chain of obj, nearest parent first and the
// root last. A root has no ancestors.
func (q *QueryBuilder) Ancestors(ctx context.Context, obj *Object) ([]*Object, error) {
	if obj == nil {
		return nil, fmt.Errorf("ancestors: nil object")
	}
	objs, err := q.provider.Objects(ctx)
	if err != nil {
		return nil, fmt.Errorf("ancestors: %w", err)
	}
	idx := scene.Index(objs)
	cur, ok := idx[obj.ID]
	if !ok {
		return nil, fmt.Errorf("ancestors: %q: %w", obj.Name, ErrUnknownObject)
	}
	chain, err := newRootResolver(idx).ancestors(cur)
	if err != nil {
		return nil, fmt.Errorf("ancestors of %q: %w", obj.Name, err)
	}
	return chain, nil
}

// RenderTree writes the subtree below root as an indented text tree, one
// object per line labelled "name (type)".
func (q *QueryBuilder) RenderTree(ctx context.Context, w io.Writer, root *Object) error {
	tree, err := q.Subtree(ctx, root)
	if err != nil {
		return fmt.Errorf("render tree: %w", err)
	}

	gr := gtree.NewRoot(nodeLabel(tree.Object))
	addBranches(gr, tree.Children)
	if err := gtree.OutputFromRoot(w, gr); err != nil {
		return fmt.Errorf("render tree: %w", err)
	}
	return nil
}

func addBranches(parent *gtree.Node, children []*TreeNode) {
	for _, c := range children {
		addBranches(parent.Add(nodeLabel(c.Object)), c.Children)
	}
}

func nodeLabel(o *Object) string {
	return fmt.Sprintf("%s (%s)", o.Name, o.Type)
}
