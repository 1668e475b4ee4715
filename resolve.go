package marstools

import "github.com/jward/marstools/internal/scene"

// rootResolver maps objects to their roots over one snapshot. Every object
// visited on a successful walk is memoized, so resolving a whole scene costs
// one pass over each parent link.
type rootResolver struct {
	idx  map[int64]*scene.Object
	memo map[int64]*scene.Object
}

func newRootResolver(idx map[int64]*scene.Object) *rootResolver {
	return &rootResolver{idx: idx, memo: make(map[int64]*scene.Object, len(idx))}
}

func (r *rootResolver) resolve(o *scene.Object) (*scene.Object, error) {
	var path []*scene.Object
	onPath := make(map[int64]bool)

	cur := o
	var root *scene.Object
	for {
		if m, ok := r.memo[cur.ID]; ok {
			root = m
			break
		}
		if onPath[cur.ID] {
			return nil, newCycleError(path, cur)
		}
		onPath[cur.ID] = true
		path = append(path, cur)

		if cur.ParentID == nil {
			root = cur
			break
		}
		p, ok := r.idx[*cur.ParentID]
		if !ok {
			return nil, &DanglingParentError{Object: cur.Name, ParentID: *cur.ParentID}
		}
		cur = p
	}

	for _, n := range path {
		r.memo[n.ID] = root
	}
	return root, nil
}

// ancestors returns the parent chain of o, nearest first, ending at the root.
func (r *rootResolver) ancestors(o *scene.Object) ([]*scene.Object, error) {
	chain := []*scene.Object{}
	seen := map[int64]bool{o.ID: true}
	path := []*scene.Object{o}

	cur := o
	for cur.ParentID != nil {
		p, ok := r.idx[*cur.ParentID]
		if !ok {
			return nil, &DanglingParentError{Object: cur.Name, ParentID: *cur.ParentID}
		}
		if seen[p.ID] {
			return nil, newCycleError(path, p)
		}
		seen[p.ID] = true
		path = append(path, p)
		chain = append(chain, p)
		cur = p
	}
	return chain, nil
}

// newCycleError names the loop starting at the first visit of repeat.
func newCycleError(path []*scene.Object, repeat *scene.Object) *CycleError {
	start := 0
	for i, p := range path {
		if p.ID == repeat.ID {
			start = i
			break
		}
	}
	chain := make([]string, 0, len(path)-start+1)
	for _, p := range path[start:] {
		chain = append(chain, p.Name)
	}
	chain = append(chain, repeat.Name)
	return &CycleError{Chain: chain}
}
