// Package scene defines the boundary between hierarchy queries and the host
// that owns scene objects. Queries read the live object list and mutate only
// the selection flag and string properties, always through a Provider.
package scene

import "context"

// BodyType is the type tag carried by robot-model body objects.
const BodyType = "body"

// Object is a snapshot of one host-owned scene object.
type Object struct {
	ID         int64
	Name       string
	Type       string
	ParentID   *int64 // nil for roots
	Selected   bool
	Properties map[string]string
}

// IsRoot reports whether the object has no parent.
func (o *Object) IsRoot() bool {
	return o.ParentID == nil
}

// Property returns the value stored under key and whether it exists.
func (o *Object) Property(key string) (string, bool) {
	if o.Properties == nil {
		return "", false
	}
	v, ok := o.Properties[key]
	return v, ok
}

// Clone returns a deep copy so callers can hold a snapshot across mutations.
func (o *Object) Clone() *Object {
	c := *o
	if o.ParentID != nil {
		p := *o.ParentID
		c.ParentID = &p
	}
	if o.Properties != nil {
		c.Properties = make(map[string]string, len(o.Properties))
		for k, v := range o.Properties {
			c.Properties[k] = v
		}
	}
	return &c
}

// Provider is the host scene. Objects returns the ordered object list; the
// two setters are the only writes a query is allowed to perform.
type Provider interface {
	Objects(ctx context.Context) ([]*Object, error)
	SetSelected(ctx context.Context, id int64, selected bool) error
	SetProperty(ctx context.Context, id int64, key, value string) error
}

// Index maps object IDs to objects for parent lookups.
func Index(objs []*Object) map[int64]*Object {
	idx := make(map[int64]*Object, len(objs))
	for _, o := range objs {
		idx[o.ID] = o
	}
	return idx
}
