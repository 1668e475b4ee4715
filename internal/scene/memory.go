package scene

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-memory Provider. It backs scene snapshot files and stands
// in for the host in tests.
type Memory struct {
	mu     sync.Mutex
	objs   []*Object
	byName map[string]*Object
	nextID int64
}

// Compile-time check: *Memory satisfies Provider.
var _ Provider = (*Memory)(nil)

// NewMemory returns an empty scene.
func NewMemory() *Memory {
	return &Memory{
		byName: make(map[string]*Object),
		nextID: 1,
	}
}

// Add appends an object named name with the given type tag. parent is the
// name of an existing object, or "" for a root. Returns the assigned ID.
func (m *Memory) Add(name, typ, parent string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if name == "" {
		return 0, fmt.Errorf("add object: empty name")
	}
	if _, dup := m.byName[name]; dup {
		return 0, fmt.Errorf("add object %q: name already in scene", name)
	}
	obj := &Object{
		ID:         m.nextID,
		Name:       name,
		Type:       typ,
		Properties: make(map[string]string),
	}
	if parent != "" {
		p, ok := m.byName[parent]
		if !ok {
			return 0, fmt.Errorf("add object %q: unknown parent %q", name, parent)
		}
		pid := p.ID
		obj.ParentID = &pid
	}
	m.nextID++
	m.objs = append(m.objs, obj)
	m.byName[name] = obj
	return obj.ID, nil
}

// MustAdd is Add for fixtures; it panics on error.
func (m *Memory) MustAdd(name, typ, parent string) int64 {
	id, err := m.Add(name, typ, parent)
	if err != nil {
		panic(err)
	}
	return id
}

// Reparent points child at parent. An empty parent makes child a root.
// No acyclicity check is made; hosts can produce cycles and queries guard
// against them.
func (m *Memory) Reparent(child, parent string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.byName[child]
	if !ok {
		return fmt.Errorf("reparent: unknown object %q", child)
	}
	if parent == "" {
		c.ParentID = nil
		return nil
	}
	p, ok := m.byName[parent]
	if !ok {
		return fmt.Errorf("reparent %q: unknown parent %q", child, parent)
	}
	pid := p.ID
	c.ParentID = &pid
	return nil
}

// Objects returns copies of all objects in insertion order.
func (m *Memory) Objects(ctx context.Context) ([]*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Object, len(m.objs))
	for i, o := range m.objs {
		out[i] = o.Clone()
	}
	return out, nil
}

// SetSelected sets the selection flag of object id.
func (m *Memory) SetSelected(ctx context.Context, id int64, selected bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, err := m.lookup(id)
	if err != nil {
		return fmt.Errorf("set selected: %w", err)
	}
	o.Selected = selected
	return nil
}

// SetProperty stores value under key on object id.
func (m *Memory) SetProperty(ctx context.Context, id int64, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, err := m.lookup(id)
	if err != nil {
		return fmt.Errorf("set property: %w", err)
	}
	if o.Properties == nil {
		o.Properties = make(map[string]string)
	}
	o.Properties[key] = value
	return nil
}

// SetSelectedByName is a fixture helper for building selections.
func (m *Memory) SetSelectedByName(name string, selected bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byName[name]
	if !ok {
		return fmt.Errorf("set selected: unknown object %q", name)
	}
	o.Selected = selected
	return nil
}

// SetPropertyByName is a fixture helper for seeding properties.
func (m *Memory) SetPropertyByName(name, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byName[name]
	if !ok {
		return fmt.Errorf("set property: unknown object %q", name)
	}
	o.Properties[key] = value
	return nil
}

// Len returns the number of objects in the scene.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objs)
}

func (m *Memory) lookup(id int64) (*Object, error) {
	for _, o := range m.objs {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, fmt.Errorf("no object with id %d", id)
}
