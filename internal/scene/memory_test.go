package scene

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_AddAssignsIDsInOrder(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	a := m.MustAdd("A", BodyType, "")
	b := m.MustAdd("B", "joint", "A")

	objs, err := m.Objects(context.Background())
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, a, objs[0].ID)
	assert.Equal(t, b, objs[1].ID)
	assert.True(t, objs[0].IsRoot())
	require.NotNil(t, objs[1].ParentID)
	assert.Equal(t, a, *objs[1].ParentID)
}

func TestMemory_AddRejectsDuplicateAndUnknownParent(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	m.MustAdd("A", BodyType, "")

	_, err := m.Add("A", BodyType, "")
	assert.ErrorContains(t, err, "already in scene")

	_, err = m.Add("B", BodyType, "missing")
	assert.ErrorContains(t, err, "unknown parent")

	_, err = m.Add("", BodyType, "")
	assert.Error(t, err)
}

func TestMemory_ObjectsReturnsCopies(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	m.MustAdd("A", BodyType, "")
	require.NoError(t, m.SetPropertyByName("A", "k", "v"))

	objs, err := m.Objects(context.Background())
	require.NoError(t, err)
	objs[0].Name = "changed"
	objs[0].Properties["k"] = "changed"

	again, err := m.Objects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "A", again[0].Name)
	assert.Equal(t, "v", again[0].Properties["k"])
}

func TestMemory_SettersByID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()
	id := m.MustAdd("A", BodyType, "")

	require.NoError(t, m.SetSelected(ctx, id, true))
	require.NoError(t, m.SetProperty(ctx, id, "name", "a"))

	objs, err := m.Objects(ctx)
	require.NoError(t, err)
	assert.True(t, objs[0].Selected)
	v, ok := objs[0].Property("name")
	assert.True(t, ok)
	assert.Equal(t, "a", v)

	assert.Error(t, m.SetSelected(ctx, 99, true))
	assert.Error(t, m.SetProperty(ctx, 99, "k", "v"))
}

func TestMemory_ReparentAllowsCycles(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	m.MustAdd("A", BodyType, "")
	m.MustAdd("B", BodyType, "A")
	require.NoError(t, m.Reparent("A", "B"))

	objs, err := m.Objects(context.Background())
	require.NoError(t, err)
	assert.False(t, objs[0].IsRoot())
	assert.False(t, objs[1].IsRoot())

	require.NoError(t, m.Reparent("A", ""))
	objs, err = m.Objects(context.Background())
	require.NoError(t, err)
	assert.True(t, objs[0].IsRoot())
}

func TestMemory_ObjectsHonorsCancelledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemory().Objects(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestObject_CloneIsDeep(t *testing.T) {
	t.Parallel()
	pid := int64(1)
	o := &Object{ID: 2, Name: "x", ParentID: &pid, Properties: map[string]string{"a": "b"}}
	c := o.Clone()
	*c.ParentID = 7
	c.Properties["a"] = "z"
	assert.Equal(t, int64(1), *o.ParentID)
	assert.Equal(t, "b", o.Properties["a"])
}
