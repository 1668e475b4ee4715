package marstools

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jward/marstools/internal/scene"
	"github.com/jward/marstools/internal/store"
)

// robotYAML is a two-model forest plus a free-floating sensor.
const robotYAML = `
objects:
  - {name: base, type: body}
  - {name: base_joint, type: joint, parent: base, properties: {joint/name: base_joint}}
  - {name: arm, type: body, parent: base_joint}
  - {name: arm_sensor, type: sensor, parent: arm}
  - {name: wheel, type: body}
  - {name: wheel_joint, type: joint, parent: wheel, properties: {joint/name: wheel_joint}}
  - {name: camera, type: sensor}
`

// abcYAML: A is a body root, B hangs off A, C (also a body) hangs off B.
const abcYAML = `
objects:
  - {name: A, type: body}
  - {name: B, type: joint, parent: A}
  - {name: C, type: body, parent: B}
`

// cycleYAML: A -> B -> C -> A with no true root.
const cycleYAML = `
objects:
  - {name: A, type: body, parent: C}
  - {name: B, type: body, parent: A}
  - {name: C, type: body, parent: B}
`

// newMemoryProvider loads src into an in-memory scene.
func newMemoryProvider(t *testing.T, src string) scene.Provider {
	t.Helper()
	f, err := scene.Decode(strings.NewReader(src))
	require.NoError(t, err)
	m, err := f.Memory()
	require.NoError(t, err)
	return m
}

// newStoreProvider imports src into a fresh SQLite store.
func newStoreProvider(t *testing.T, src string) scene.Provider {
	t.Helper()
	s, err := store.NewStore(filepath.Join(t.TempDir(), "scene.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })

	f, err := scene.Decode(strings.NewReader(src))
	require.NoError(t, err)
	_, err = s.ImportScene(f, false, nil)
	require.NoError(t, err)
	return s
}

// forEachProvider runs fn against the same scene held by each provider.
func forEachProvider(t *testing.T, src string, fn func(t *testing.T, q *QueryBuilder)) {
	t.Helper()
	for name, build := range map[string]func(*testing.T, string) scene.Provider{
		"memory": newMemoryProvider,
		"sqlite": newStoreProvider,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			fn(t, NewQueryBuilder(build(t, src)))
		})
	}
}

func mustFind(t *testing.T, q *QueryBuilder, name string) *Object {
	t.Helper()
	o, err := q.FindObjectByName(context.Background(), name)
	require.NoError(t, err)
	require.NotNil(t, o, "object %q", name)
	return o
}

func names(objs []*Object) []string {
	return objectNames(objs)
}

// sliceProvider serves a fixed object list; used for shapes the real
// providers refuse to hold.
type sliceProvider struct {
	objs []*Object
	err  error
}

func (p *sliceProvider) Objects(ctx context.Context) ([]*Object, error) {
	return p.objs, p.err
}

func (p *sliceProvider) SetSelected(ctx context.Context, id int64, selected bool) error {
	return p.err
}

func (p *sliceProvider) SetProperty(ctx context.Context, id int64, key, value string) error {
	return p.err
}

// =============================================================================
// Scenario: A / B / C
// =============================================================================

func TestScenario_ABC(t *testing.T) {
	t.Parallel()
	forEachProvider(t, abcYAML, func(t *testing.T, q *QueryBuilder) {
		ctx := context.Background()

		roots, err := q.FindAllRoots(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"A"}, names(roots))

		children, err := q.FindChildren(ctx, roots[0])
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"A", "B", "C"}, names(children))

		root, err := q.FindRoot(ctx, mustFind(t, q, "C"))
		require.NoError(t, err)
		assert.Equal(t, roots[0].ID, root.ID)
		assert.Equal(t, "A", root.Name)
	})
}

// =============================================================================
// FindRoot
// =============================================================================

func TestFindRoot_AlwaysParentlessAndIdempotent(t *testing.T) {
	t.Parallel()
	forEachProvider(t, robotYAML, func(t *testing.T, q *QueryBuilder) {
		ctx := context.Background()
		all, err := q.Objects(ctx)
		require.NoError(t, err)
		require.Len(t, all, 7)

		for _, x := range all {
			root, err := q.FindRoot(ctx, x)
			require.NoError(t, err, x.Name)
			assert.True(t, root.IsRoot(), "root of %s has a parent", x.Name)

			again, err := q.FindRoot(ctx, root)
			require.NoError(t, err)
			assert.Equal(t, root.ID, again.ID, "root of root of %s", x.Name)
		}
	})
}

func TestFindRoot_ExpectedRoots(t *testing.T) {
	t.Parallel()
	forEachProvider(t, robotYAML, func(t *testing.T, q *QueryBuilder) {
		ctx := context.Background()
		for obj, want := range map[string]string{
			"base":        "base",
			"arm_sensor":  "base",
			"arm":         "base",
			"wheel_joint": "wheel",
			"camera":      "camera",
		} {
			root, err := q.FindRoot(ctx, mustFind(t, q, obj))
			require.NoError(t, err)
			assert.Equal(t, want, root.Name, "root of %s", obj)
		}
	})
}

func TestFindRoot_UsesSingleSelection(t *testing.T) {
	t.Parallel()
	forEachProvider(t, robotYAML, func(t *testing.T, q *QueryBuilder) {
		ctx := context.Background()
		require.NoError(t, q.SelectObjects(ctx, []*Object{mustFind(t, q, "arm_sensor")}, true))

		root, err := q.FindRoot(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, "base", root.Name)
	})
}

func TestFindRoot_SelectionErrors(t *testing.T) {
	t.Parallel()
	forEachProvider(t, robotYAML, func(t *testing.T, q *QueryBuilder) {
		ctx := context.Background()

		_, err := q.FindRoot(ctx, nil)
		require.ErrorIs(t, err, ErrNoSelection)
		assert.ErrorIs(t, err, ErrSelection)
		assert.NotErrorIs(t, err, ErrAmbiguousSelection)

		two := []*Object{mustFind(t, q, "arm"), mustFind(t, q, "wheel")}
		require.NoError(t, q.SelectObjects(ctx, two, true))

		_, err = q.FindRoot(ctx, nil)
		require.ErrorIs(t, err, ErrAmbiguousSelection)
		assert.ErrorIs(t, err, ErrSelection)
		assert.Contains(t, err.Error(), "2 selected")
	})
}

func TestFindRoot_CycleDetected(t *testing.T) {
	t.Parallel()
	forEachProvider(t, cycleYAML, func(t *testing.T, q *QueryBuilder) {
		ctx := context.Background()
		for _, n := range []string{"A", "B", "C"} {
			_, err := q.FindRoot(ctx, mustFind(t, q, n))
			require.ErrorIs(t, err, ErrCycleDetected, "find root of %s", n)

			var ce *CycleError
			require.ErrorAs(t, err, &ce)
			require.Len(t, ce.Chain, 4)
			assert.Equal(t, n, ce.Chain[0])
			assert.Equal(t, ce.Chain[0], ce.Chain[3])
		}
	})
}

func TestFindRoot_SelfParent(t *testing.T) {
	t.Parallel()
	m := scene.NewMemory()
	m.MustAdd("loop", "body", "")
	require.NoError(t, m.Reparent("loop", "loop"))
	q := NewQueryBuilder(m)

	_, err := q.FindRoot(context.Background(), mustFind(t, q, "loop"))
	var ce *CycleError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []string{"loop", "loop"}, ce.Chain)
}

func TestFindRoot_CycleAboveStart(t *testing.T) {
	t.Parallel()
	m := scene.NewMemory()
	m.MustAdd("A", "body", "")
	m.MustAdd("B", "body", "A")
	m.MustAdd("leaf", "sensor", "B")
	require.NoError(t, m.Reparent("A", "B"))
	q := NewQueryBuilder(m)

	_, err := q.FindRoot(context.Background(), mustFind(t, q, "leaf"))
	var ce *CycleError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []string{"B", "A", "B"}, ce.Chain, "chain starts at the first repeated object")
}

func TestFindRoot_UnknownObject(t *testing.T) {
	t.Parallel()
	q := NewQueryBuilder(newMemoryProvider(t, abcYAML))

	_, err := q.FindRoot(context.Background(), &Object{ID: 999, Name: "ghost"})
	require.ErrorIs(t, err, ErrUnknownObject)
	assert.Contains(t, err.Error(), "ghost")
}

func TestFindRoot_DanglingParent(t *testing.T) {
	t.Parallel()
	missing := int64(42)
	orphan := &Object{ID: 1, Name: "orphan", Type: "joint", ParentID: &missing}
	q := NewQueryBuilder(&sliceProvider{objs: []*Object{orphan}})

	_, err := q.FindRoot(context.Background(), orphan)
	var de *DanglingParentError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "orphan", de.Object)
	assert.Equal(t, int64(42), de.ParentID)
	assert.ErrorIs(t, err, ErrUnknownObject)
}

func TestFindRoot_ReadsLiveParentLinks(t *testing.T) {
	t.Parallel()
	m := scene.NewMemory()
	m.MustAdd("A", "body", "")
	m.MustAdd("B", "body", "")
	m.MustAdd("x", "joint", "A")
	q := NewQueryBuilder(m)
	x := mustFind(t, q, "x")

	require.NoError(t, m.Reparent("x", "B"))

	root, err := q.FindRoot(context.Background(), x)
	require.NoError(t, err)
	assert.Equal(t, "B", root.Name, "stale snapshot must not be trusted")
}

// =============================================================================
// FindAllRoots
// =============================================================================

func TestFindAllRoots_BodiesWithoutParent(t *testing.T) {
	t.Parallel()
	forEachProvider(t, robotYAML, func(t *testing.T, q *QueryBuilder) {
		roots, err := q.FindAllRoots(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"base", "wheel"}, names(roots))
		for _, r := range roots {
			assert.True(t, r.IsRoot())
			assert.Equal(t, scene.BodyType, r.Type)
		}
	})
}

func TestFindAllRoots_EmptyLogsDistinctly(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zap.InfoLevel)
	q := NewQueryBuilder(scene.NewMemory(), WithLogger(zap.New(core)))

	roots, err := q.FindAllRoots(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, roots)
	assert.Empty(t, roots)
	assert.Equal(t, 1, logs.FilterMessage("no root objects found").Len())
	assert.Zero(t, logs.FilterMessage("found root objects").Len())
}

func TestFindAllRoots_LogsCount(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zap.InfoLevel)
	q := NewQueryBuilder(newMemoryProvider(t, robotYAML), WithLogger(zap.New(core)))

	_, err := q.FindAllRoots(context.Background())
	require.NoError(t, err)

	found := logs.FilterMessage("found root objects").All()
	require.Len(t, found, 1)
	fields := found[0].ContextMap()
	assert.Equal(t, int64(2), fields["count"])
	assert.Equal(t, []interface{}{"base", "wheel"}, fields["names"])
}

func TestFindAllRoots_CustomBodyType(t *testing.T) {
	t.Parallel()
	q := NewQueryBuilder(newMemoryProvider(t, robotYAML), WithBodyType("sensor"))

	roots, err := q.FindAllRoots(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"camera"}, names(roots))
}

// =============================================================================
// FindChildren
// =============================================================================

func TestFindChildren_ContainsRootAndDescendants(t *testing.T) {
	t.Parallel()
	forEachProvider(t, robotYAML, func(t *testing.T, q *QueryBuilder) {
		ctx := context.Background()

		children, err := q.FindChildren(ctx, mustFind(t, q, "base"))
		require.NoError(t, err)
		assert.Equal(t, []string{"base", "base_joint", "arm", "arm_sensor"}, names(children))
	})
}

func TestFindChildren_EveryObjectUnderItsRoot(t *testing.T) {
	t.Parallel()
	forEachProvider(t, robotYAML, func(t *testing.T, q *QueryBuilder) {
		ctx := context.Background()
		all, err := q.Objects(ctx)
		require.NoError(t, err)

		for _, x := range all {
			root, err := q.FindRoot(ctx, x)
			require.NoError(t, err)
			children, err := q.FindChildren(ctx, root)
			require.NoError(t, err)
			assert.Contains(t, names(children), x.Name)
		}
	})
}

func TestFindChildren_NoTypeFilter(t *testing.T) {
	t.Parallel()
	q := NewQueryBuilder(newMemoryProvider(t, robotYAML))

	children, err := q.FindChildren(context.Background(), mustFind(t, q, "camera"))
	require.NoError(t, err)
	assert.Equal(t, []string{"camera"}, names(children), "a sensor root is still its own root")
}

func TestFindChildren_NonRootMatchesNothing(t *testing.T) {
	t.Parallel()
	q := NewQueryBuilder(newMemoryProvider(t, robotYAML))

	children, err := q.FindChildren(context.Background(), mustFind(t, q, "arm"))
	require.NoError(t, err)
	assert.NotNil(t, children)
	assert.Empty(t, children)
}

func TestFindChildren_CycleFails(t *testing.T) {
	t.Parallel()
	m := newMemoryProvider(t, robotYAML).(*scene.Memory)
	m.MustAdd("x", "body", "")
	m.MustAdd("y", "body", "x")
	require.NoError(t, m.Reparent("x", "y"))
	q := NewQueryBuilder(m)

	_, err := q.FindChildren(context.Background(), mustFind(t, q, "base"))
	require.ErrorIs(t, err, ErrCycleDetected)
}

func TestFindChildren_NilRoot(t *testing.T) {
	t.Parallel()
	q := NewQueryBuilder(scene.NewMemory())
	_, err := q.FindChildren(context.Background(), nil)
	assert.Error(t, err)
}

func TestFindChildren_MatchesPerObjectWalk(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))

	// Random forest: each object picks an earlier object as parent or none.
	m := scene.NewMemory()
	var created []string
	for i := 0; i < 300; i++ {
		name := fmt.Sprintf("obj%03d", i)
		parent := ""
		if len(created) > 0 && rng.Intn(5) > 0 {
			parent = created[rng.Intn(len(created))]
		}
		m.MustAdd(name, "body", parent)
		created = append(created, name)
	}
	q := NewQueryBuilder(m)

	all, err := q.Objects(ctx)
	require.NoError(t, err)
	roots, err := q.FindAllRoots(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, roots)

	total := 0
	for _, r := range roots {
		children, err := q.FindChildren(ctx, r)
		require.NoError(t, err)
		total += len(children)

		var want []string
		for _, x := range all {
			xr, err := q.FindRoot(ctx, x)
			require.NoError(t, err)
			if xr.ID == r.ID {
				want = append(want, x.Name)
			}
		}
		assert.Equal(t, want, names(children), "subtree of %s", r.Name)
	}
	assert.Equal(t, len(all), total, "every object belongs to exactly one root")
}

// =============================================================================
// Lookups
// =============================================================================

func TestFindObjectsByType_ScanOrder(t *testing.T) {
	t.Parallel()
	forEachProvider(t, robotYAML, func(t *testing.T, q *QueryBuilder) {
		ctx := context.Background()

		joints, err := q.FindObjectsByType(ctx, "joint")
		require.NoError(t, err)
		assert.Equal(t, []string{"base_joint", "wheel_joint"}, names(joints))

		none, err := q.FindObjectsByType(ctx, "light")
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})
}

func TestFindObjectByName_FoundAndMissing(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zap.WarnLevel)
	q := NewQueryBuilder(newMemoryProvider(t, robotYAML), WithLogger(zap.New(core)))
	ctx := context.Background()

	o, err := q.FindObjectByName(ctx, "arm")
	require.NoError(t, err)
	require.NotNil(t, o)
	assert.Equal(t, "arm", o.Name)
	assert.Zero(t, logs.Len())

	o, err = q.FindObjectByName(ctx, "tail")
	require.NoError(t, err, "a missing name is not an error")
	assert.Nil(t, o)

	warned := logs.FilterMessage("no object could be found").All()
	require.Len(t, warned, 1)
	assert.Equal(t, "tail", warned[0].ContextMap()["name"])
}

func TestObjectsNamed(t *testing.T) {
	t.Parallel()
	q := NewQueryBuilder(newMemoryProvider(t, robotYAML))
	ctx := context.Background()

	objs, err := q.ObjectsNamed(ctx, "wheel", "base")
	require.NoError(t, err)
	assert.Equal(t, []string{"wheel", "base"}, names(objs))

	_, err = q.ObjectsNamed(ctx, "base", "tail")
	require.ErrorIs(t, err, ErrUnknownObject)
	assert.Contains(t, err.Error(), `"tail"`)
}

// =============================================================================
// Mutations
// =============================================================================

func selectedNames(t *testing.T, q *QueryBuilder) []string {
	t.Helper()
	all, err := q.Objects(context.Background())
	require.NoError(t, err)
	var out []string
	for _, o := range all {
		if o.Selected {
			out = append(out, o.Name)
		}
	}
	return out
}

func TestSelectObjects_ClearFirst(t *testing.T) {
	t.Parallel()
	forEachProvider(t, robotYAML, func(t *testing.T, q *QueryBuilder) {
		ctx := context.Background()

		require.NoError(t, q.SelectObjects(ctx, []*Object{mustFind(t, q, "arm"), mustFind(t, q, "camera")}, false))
		assert.Equal(t, []string{"arm", "camera"}, selectedNames(t, q))

		require.NoError(t, q.SelectObjects(ctx, []*Object{mustFind(t, q, "wheel")}, false))
		assert.Equal(t, []string{"arm", "wheel", "camera"}, selectedNames(t, q), "without clear, prior selection stays")

		require.NoError(t, q.SelectObjects(ctx, []*Object{mustFind(t, q, "base")}, true))
		assert.Equal(t, []string{"base"}, selectedNames(t, q))

		require.NoError(t, q.SelectObjects(ctx, nil, true))
		assert.Empty(t, selectedNames(t, q), "empty selection with clear selects nothing")
	})
}

func TestSelectObjects_NilEntry(t *testing.T) {
	t.Parallel()
	q := NewQueryBuilder(newMemoryProvider(t, robotYAML))
	err := q.SelectObjects(context.Background(), []*Object{nil}, false)
	assert.ErrorContains(t, err, "nil object at index 0")
}

func TestReplaceInName(t *testing.T) {
	t.Parallel()
	forEachProvider(t, robotYAML, func(t *testing.T, q *QueryBuilder) {
		ctx := context.Background()
		sel := []*Object{mustFind(t, q, "base_joint"), mustFind(t, q, "arm")}
		require.NoError(t, q.SelectObjects(ctx, sel, true))

		n, err := q.ReplaceInName(ctx, "joint/name", "_joint", "_hinge")
		require.NoError(t, err)
		assert.Equal(t, 1, n, "arm lacks the key and wheel_joint is not selected")

		v, _ := mustFind(t, q, "base_joint").Property("joint/name")
		assert.Equal(t, "base_hinge", v)
		v, _ = mustFind(t, q, "wheel_joint").Property("joint/name")
		assert.Equal(t, "wheel_joint", v)

		n, err = q.ReplaceInName(ctx, "joint/name", "absent", "x")
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestReplaceInName_AllOccurrences(t *testing.T) {
	t.Parallel()
	m := scene.NewMemory()
	m.MustAdd("leg", "joint", "")
	require.NoError(t, m.SetPropertyByName("leg", "link/name", "l_leg_l"))
	require.NoError(t, m.SetSelectedByName("leg", true))
	q := NewQueryBuilder(m)

	n, err := q.ReplaceInName(context.Background(), "link/name", "l", "r")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	v, _ := mustFind(t, q, "leg").Property("link/name")
	assert.Equal(t, "r_reg_r", v)
}

func TestReplaceInName_EmptyOldIsNoOp(t *testing.T) {
	t.Parallel()
	m := scene.NewMemory()
	m.MustAdd("leg", "joint", "")
	require.NoError(t, m.SetPropertyByName("leg", "link/name", "leg"))
	require.NoError(t, m.SetSelectedByName("leg", true))
	q := NewQueryBuilder(m)

	n, err := q.ReplaceInName(context.Background(), "link/name", "", "x")
	require.NoError(t, err)
	assert.Zero(t, n)
	v, _ := mustFind(t, q, "leg").Property("link/name")
	assert.Equal(t, "leg", v)
}

// =============================================================================
// Provider failures
// =============================================================================

func TestProviderErrorsPropagate(t *testing.T) {
	t.Parallel()
	boom := errors.New("host unavailable")
	q := NewQueryBuilder(&sliceProvider{err: boom})
	ctx := context.Background()

	_, err := q.FindRoot(ctx, nil)
	assert.ErrorIs(t, err, boom)
	_, err = q.FindAllRoots(ctx)
	assert.ErrorIs(t, err, boom)
	_, err = q.FindChildren(ctx, &Object{ID: 1})
	assert.ErrorIs(t, err, boom)
	_, err = q.FindObjectsByType(ctx, "body")
	assert.ErrorIs(t, err, boom)
	_, err = q.FindObjectByName(ctx, "x")
	assert.ErrorIs(t, err, boom)
	err = q.SelectObjects(ctx, nil, true)
	assert.ErrorIs(t, err, boom)
	_, err = q.ReplaceInName(ctx, "k", "a", "b")
	assert.ErrorIs(t, err, boom)
}

func TestCancelledContext(t *testing.T) {
	t.Parallel()
	q := NewQueryBuilder(newMemoryProvider(t, robotYAML))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.FindAllRoots(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
