package runtime

import (
	"context"
	"fmt"

	"github.com/risor-io/risor/object"

	"github.com/jward/marstools/internal/scene"
)

// Scene host functions. Objects cross into Risor as maps with the keys id,
// name, type, parent (name or nil), selected and properties. Scripts refer
// to objects by name; the Go side resolves names against a fresh snapshot.

func makeObjectsFn(q SceneQuery) *object.Builtin {
	return object.NewBuiltin("objects", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("objects", 0, len(args))
		}
		objs, err := q.Objects(ctx)
		if err != nil {
			return object.Errorf("objects: %v", err)
		}
		return objectsToList(objs, objs)
	})
}

func makeRootsFn(q SceneQuery) *object.Builtin {
	return object.NewBuiltin("roots", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("roots", 0, len(args))
		}
		roots, err := q.FindAllRoots(ctx)
		if err != nil {
			return object.Errorf("roots: %v", err)
		}
		return snapshotList(ctx, q, "roots", roots)
	})
}

// find_root() uses the current selection; find_root(name) starts at the
// named object.
func makeFindRootFn(q SceneQuery) *object.Builtin {
	return object.NewBuiltin("find_root", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) > 1 {
			return object.Errorf("find_root: expected 0 or 1 arguments, got %d", len(args))
		}
		var start *scene.Object
		if len(args) == 1 {
			obj, errObj := namedObject(ctx, q, "find_root", args[0])
			if errObj != nil {
				return errObj
			}
			start = obj
		}
		root, err := q.FindRoot(ctx, start)
		if err != nil {
			return object.Errorf("find_root: %v", err)
		}
		return snapshotMap(ctx, q, "find_root", root)
	})
}

func makeChildrenFn(q SceneQuery) *object.Builtin {
	return object.NewBuiltin("children", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("children", 1, len(args))
		}
		root, errObj := namedObject(ctx, q, "children", args[0])
		if errObj != nil {
			return errObj
		}
		children, err := q.FindChildren(ctx, root)
		if err != nil {
			return object.Errorf("children: %v", err)
		}
		return snapshotList(ctx, q, "children", children)
	})
}

func makeObjectsByTypeFn(q SceneQuery) *object.Builtin {
	return object.NewBuiltin("objects_by_type", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("objects_by_type", 1, len(args))
		}
		tag, err := toString(args[0])
		if err != nil {
			return object.Errorf("objects_by_type: %v", err)
		}
		objs, err := q.FindObjectsByType(ctx, tag)
		if err != nil {
			return object.Errorf("objects_by_type: %v", err)
		}
		return snapshotList(ctx, q, "objects_by_type", objs)
	})
}

// object_by_name returns nil, not an error, for a missing name.
func makeObjectByNameFn(q SceneQuery) *object.Builtin {
	return object.NewBuiltin("object_by_name", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("object_by_name", 1, len(args))
		}
		name, err := toString(args[0])
		if err != nil {
			return object.Errorf("object_by_name: %v", err)
		}
		obj, err := q.FindObjectByName(ctx, name)
		if err != nil {
			return object.Errorf("object_by_name: %v", err)
		}
		if obj == nil {
			return object.Nil
		}
		return snapshotMap(ctx, q, "object_by_name", obj)
	})
}

// select_objects(names) or select_objects(names, clear). Returns the number selected.
func makeSelectFn(q SceneQuery) *object.Builtin {
	return object.NewBuiltin("select_objects", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 || len(args) > 2 {
			return object.Errorf("select_objects: expected 1 or 2 arguments, got %d", len(args))
		}
		names, err := toStringList(args[0])
		if err != nil {
			return object.Errorf("select_objects: %v", err)
		}
		clearFirst := false
		if len(args) == 2 {
			b, ok := args[1].(*object.Bool)
			if !ok {
				return object.Errorf("select_objects: clear must be a bool, got %s", args[1].Type())
			}
			clearFirst = b.Value()
		}

		objs, err := q.ObjectsNamed(ctx, names...)
		if err != nil {
			return object.Errorf("select_objects: %v", err)
		}
		if err := q.SelectObjects(ctx, objs, clearFirst); err != nil {
			return object.Errorf("select_objects: %v", err)
		}
		return object.NewInt(int64(len(objs)))
	})
}

func makeReplaceInNameFn(q SceneQuery) *object.Builtin {
	return object.NewBuiltin("replace_in_name", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 3 {
			return object.NewArgsError("replace_in_name", 3, len(args))
		}
		var strs [3]string
		for i, a := range args {
			s, err := toString(a)
			if err != nil {
				return object.Errorf("replace_in_name: argument %d: %v", i+1, err)
			}
			strs[i] = s
		}
		n, err := q.ReplaceInName(ctx, strs[0], strs[1], strs[2])
		if err != nil {
			return object.Errorf("replace_in_name: %v", err)
		}
		return object.NewInt(int64(n))
	})
}

// bbox_center(corners) takes eight [x, y, z] lists and returns their mean.
func makeBBoxCenterFn() *object.Builtin {
	return object.NewBuiltin("bbox_center", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("bbox_center", 1, len(args))
		}
		list, ok := args[0].(*object.List)
		if !ok {
			return object.Errorf("bbox_center: expected list, got %s", args[0].Type())
		}
		items := list.Value()
		if len(items) != 8 {
			return object.Errorf("bbox_center: expected 8 corners, got %d", len(items))
		}
		var corners [8]scene.Vec3
		for i, item := range items {
			v, err := toVec3(item)
			if err != nil {
				return object.Errorf("bbox_center: corner %d: %v", i, err)
			}
			corners[i] = v
		}
		c := scene.BoundingBoxCenter(corners)
		return object.NewList([]object.Object{
			object.NewFloat(c.X), object.NewFloat(c.Y), object.NewFloat(c.Z),
		})
	})
}

// --- Conversion helpers ---

// namedObject resolves a Risor string argument to a scene object.
func namedObject(ctx context.Context, q SceneQuery, fn string, arg object.Object) (*scene.Object, *object.Error) {
	name, err := toString(arg)
	if err != nil {
		return nil, object.Errorf("%s: %v", fn, err)
	}
	objs, err := q.ObjectsNamed(ctx, name)
	if err != nil {
		return nil, object.Errorf("%s: %v", fn, err)
	}
	return objs[0], nil
}

// snapshotList converts objs to Risor maps, naming parents from a fresh
// snapshot.
func snapshotList(ctx context.Context, q SceneQuery, fn string, objs []*scene.Object) object.Object {
	all, err := q.Objects(ctx)
	if err != nil {
		return object.Errorf("%s: %v", fn, err)
	}
	return objectsToList(objs, all)
}

func snapshotMap(ctx context.Context, q SceneQuery, fn string, o *scene.Object) object.Object {
	all, err := q.Objects(ctx)
	if err != nil {
		return object.Errorf("%s: %v", fn, err)
	}
	return objectToMap(o, scene.Index(all))
}

// objectsToList converts objs to Risor maps. all is the snapshot used to
// turn parent IDs into names.
func objectsToList(objs []*scene.Object, all []*scene.Object) object.Object {
	idx := scene.Index(all)
	results := make([]object.Object, 0, len(objs))
	for _, o := range objs {
		results = append(results, objectToMap(o, idx))
	}
	return object.NewList(results)
}

func objectToMap(o *scene.Object, idx map[int64]*scene.Object) object.Object {
	props := make(map[string]object.Object, len(o.Properties))
	for _, k := range scene.PropertyKeys(o) {
		props[k] = object.NewString(o.Properties[k])
	}

	m := map[string]object.Object{
		"id":         object.NewInt(o.ID),
		"name":       object.NewString(o.Name),
		"type":       object.NewString(o.Type),
		"selected":   object.NewBool(o.Selected),
		"parent":     object.Nil,
		"properties": object.NewMap(props),
	}
	if o.ParentID != nil {
		if p, ok := idx[*o.ParentID]; ok {
			m["parent"] = object.NewString(p.Name)
		} else {
			m["parent"] = object.NewInt(*o.ParentID)
		}
	}
	return object.NewMap(m)
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}

func toStringList(obj object.Object) ([]string, error) {
	list, ok := obj.(*object.List)
	if !ok {
		return nil, fmt.Errorf("expected list, got %s", obj.Type())
	}
	out := make([]string, 0, len(list.Value()))
	for i, item := range list.Value() {
		s, err := toString(item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func toFloat(obj object.Object) (float64, error) {
	switch v := obj.(type) {
	case *object.Float:
		return v.Value(), nil
	case *object.Int:
		return float64(v.Value()), nil
	}
	return 0, fmt.Errorf("expected number, got %s", obj.Type())
}

func toVec3(obj object.Object) (scene.Vec3, error) {
	list, ok := obj.(*object.List)
	if !ok {
		return scene.Vec3{}, fmt.Errorf("expected [x, y, z], got %s", obj.Type())
	}
	items := list.Value()
	if len(items) != 3 {
		return scene.Vec3{}, fmt.Errorf("expected 3 components, got %d", len(items))
	}
	var xyz [3]float64
	for i, item := range items {
		f, err := toFloat(item)
		if err != nil {
			return scene.Vec3{}, err
		}
		xyz[i] = f
	}
	return scene.Vec3{X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
}
