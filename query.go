package marstools

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jward/marstools/internal/scene"
)

// QueryBuilder answers structural questions about the object forest held by
// a scene provider. Every call reads a fresh snapshot; nothing is cached
// between calls.
type QueryBuilder struct {
	provider scene.Provider
	logger   *zap.Logger
	bodyType string
}

// NewQueryBuilder returns a QueryBuilder over any provider. Only the logger
// and body type options apply; script options are ignored.
func NewQueryBuilder(p scene.Provider, opts ...Option) *QueryBuilder {
	s := newSettings(opts)
	return &QueryBuilder{provider: p, logger: s.logger, bodyType: s.bodyType}
}

// Provider returns the scene provider the builder reads from.
func (q *QueryBuilder) Provider() scene.Provider {
	return q.provider
}

// Objects returns the provider's current snapshot in scan order.
func (q *QueryBuilder) Objects(ctx context.Context) ([]*Object, error) {
	objs, err := q.provider.Objects(ctx)
	if err != nil {
		return nil, fmt.Errorf("objects: %w", err)
	}
	return objs, nil
}

// FindRoot walks parent links from obj to the object that has no parent.
// A nil obj means the single currently selected object; zero or several
// selected objects fail with ErrNoSelection or ErrAmbiguousSelection.
func (q *QueryBuilder) FindRoot(ctx context.Context, obj *Object) (*Object, error) {
	objs, err := q.provider.Objects(ctx)
	if err != nil {
		return nil, fmt.Errorf("find root: %w", err)
	}
	idx := scene.Index(objs)

	start, err := startObject(objs, idx, obj)
	if err != nil {
		return nil, fmt.Errorf("find root: %w", err)
	}

	root, err := newRootResolver(idx).resolve(start)
	if err != nil {
		return nil, fmt.Errorf("find root: %w", err)
	}
	return root, nil
}

// FindAllRoots returns the parentless objects tagged with the body type, in
// scan order. An empty scene yields an empty slice.
func (q *QueryBuilder) FindAllRoots(ctx context.Context) ([]*Object, error) {
	objs, err := q.provider.Objects(ctx)
	if err != nil {
		return nil, fmt.Errorf("find all roots: %w", err)
	}

	roots := []*Object{}
	for _, o := range objs {
		if o.IsRoot() && o.Type == q.bodyType {
			roots = append(roots, o)
		}
	}

	if len(roots) == 0 {
		q.logger.Info("no root objects found", zap.String("type", q.bodyType))
	} else {
		q.logger.Info("found root objects",
			zap.Int("count", len(roots)),
			zap.Strings("names", objectNames(roots)))
	}
	return roots, nil
}

// FindChildren returns every object whose root is root, at any depth,
// including root itself, or an empty slice when root is not a scene root.
// No type filtering is applied. A parent cycle
// anywhere in the scene fails the call.
func (q *QueryBuilder) FindChildren(ctx context.Context, root *Object) ([]*Object, error) {
	if root == nil {
		return nil, fmt.Errorf("find children: nil root")
	}
	objs, err := q.provider.Objects(ctx)
	if err != nil {
		return nil, fmt.Errorf("find children: %w", err)
	}

	r := newRootResolver(scene.Index(objs))
	children := []*Object{}
	for _, o := range objs {
		got, err := r.resolve(o)
		if err != nil {
			return nil, fmt.Errorf("find children of %q: %w", root.Name, err)
		}
		if got.ID == root.ID {
			children = append(children, o)
		}
	}
	return children, nil
}

// FindObjectsByType returns objects whose type tag equals tag, in scan order.
// No match yields an empty slice.
func (q *QueryBuilder) FindObjectsByType(ctx context.Context, tag string) ([]*Object, error) {
	objs, err := q.provider.Objects(ctx)
	if err != nil {
		return nil, fmt.Errorf("find objects by type: %w", err)
	}
	out := []*Object{}
	for _, o := range objs {
		if o.Type == tag {
			out = append(out, o)
		}
	}
	return out, nil
}

// FindObjectByName returns the first object named name. A missing name is
// not an error: the result is nil and a warning is logged.
func (q *QueryBuilder) FindObjectByName(ctx context.Context, name string) (*Object, error) {
	objs, err := q.provider.Objects(ctx)
	if err != nil {
		return nil, fmt.Errorf("find object by name: %w", err)
	}
	for _, o := range objs {
		if o.Name == name {
			return o, nil
		}
	}
	q.logger.Warn("no object could be found", zap.String("name", name))
	return nil, nil
}

// ObjectsNamed resolves each name to its object, in argument order. Unlike
// FindObjectByName, a missing name fails with ErrUnknownObject.
func (q *QueryBuilder) ObjectsNamed(ctx context.Context, names ...string) ([]*Object, error) {
	objs, err := q.provider.Objects(ctx)
	if err != nil {
		return nil, fmt.Errorf("objects named: %w", err)
	}
	byName := make(map[string]*Object, len(objs))
	for _, o := range objs {
		if _, dup := byName[o.Name]; !dup {
			byName[o.Name] = o
		}
	}
	out := make([]*Object, 0, len(names))
	for _, n := range names {
		o, ok := byName[n]
		if !ok {
			return nil, fmt.Errorf("objects named: %q: %w", n, ErrUnknownObject)
		}
		out = append(out, o)
	}
	return out, nil
}

// SelectObjects marks each of objs selected. With clearFirst, every
// currently selected object is deselected beforehand.
func (q *QueryBuilder) SelectObjects(ctx context.Context, objs []*Object, clearFirst bool) error {
	if clearFirst {
		all, err := q.provider.Objects(ctx)
		if err != nil {
			return fmt.Errorf("select objects: %w", err)
		}
		for _, o := range all {
			if !o.Selected {
				continue
			}
			if err := q.provider.SetSelected(ctx, o.ID, false); err != nil {
				return fmt.Errorf("select objects: deselect %q: %w", o.Name, err)
			}
		}
	}
	for i, o := range objs {
		if o == nil {
			return fmt.Errorf("select objects: nil object at index %d", i)
		}
		if err := q.provider.SetSelected(ctx, o.ID, true); err != nil {
			return fmt.Errorf("select objects: select %q: %w", o.Name, err)
		}
	}
	q.logger.Debug("selection updated",
		zap.Int("selected", len(objs)),
		zap.Bool("cleared", clearFirst))
	return nil
}

// ReplaceInName rewrites property key on every selected object whose value
// contains old, replacing all occurrences with repl. It returns the number
// of objects changed. An empty old changes nothing.
func (q *QueryBuilder) ReplaceInName(ctx context.Context, key, old, repl string) (int, error) {
	if old == "" {
		return 0, nil
	}
	objs, err := q.provider.Objects(ctx)
	if err != nil {
		return 0, fmt.Errorf("replace in name: %w", err)
	}

	changed := 0
	for _, o := range objs {
		if !o.Selected {
			continue
		}
		v, ok := o.Property(key)
		if !ok || !strings.Contains(v, old) {
			continue
		}
		nv := strings.ReplaceAll(v, old, repl)
		if err := q.provider.SetProperty(ctx, o.ID, key, nv); err != nil {
			return changed, fmt.Errorf("replace in name: %q: %w", o.Name, err)
		}
		q.logger.Debug("property rewritten",
			zap.String("object", o.Name),
			zap.String("key", key),
			zap.String("value", nv))
		changed++
	}
	return changed, nil
}

// startObject picks the object a root walk begins from. A caller-supplied
// object is re-read from the snapshot so its parent link is current.
func startObject(objs []*Object, idx map[int64]*Object, obj *Object) (*Object, error) {
	if obj != nil {
		cur, ok := idx[obj.ID]
		if !ok {
			return nil, fmt.Errorf("%q (id %d): %w", obj.Name, obj.ID, ErrUnknownObject)
		}
		return cur, nil
	}

	var selected []*Object
	for _, o := range objs {
		if o.Selected {
			selected = append(selected, o)
		}
	}
	switch len(selected) {
	case 0:
		return nil, ErrNoSelection
	case 1:
		return selected[0], nil
	default:
		return nil, fmt.Errorf("%w (%d selected)", ErrAmbiguousSelection, len(selected))
	}
}

func objectNames(objs []*Object) []string {
	names := make([]string, len(objs))
	for i, o := range objs {
		names[i] = o.Name
	}
	return names
}
