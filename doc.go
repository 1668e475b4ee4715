// Package marstools answers structural questions about the parent/child
// forest of robot-model objects held by a scene host: root discovery,
// subtree collection, name and type lookup, and bulk selection and property
// edits.
//
// # Providers
//
// Queries never touch host state directly. They go through a [Provider],
// which returns the live ordered object list and exposes the only two writes
// a query may perform: the selection flag and string properties. Two
// providers ship with the package:
//
//   - [Memory]: an in-memory forest, also the result of loading a YAML
//     scene snapshot.
//   - [Store]: a SQLite database populated with [Engine.ImportFile].
//
// # Usage
//
// Open an Engine, import a snapshot and query:
//
//	e, err := marstools.New(".marstools/scene.db")
//	if err != nil { ... }
//	defer e.Close()
//
//	ctx := context.Background()
//	_, err = e.ImportFile(ctx, "seekur.yaml", false)
//
//	q := e.Query()
//	roots, err := q.FindAllRoots(ctx)
//	parts, err := q.FindChildren(ctx, roots[0])
//
// Or query any provider directly:
//
//	q := marstools.NewQueryBuilder(mem, marstools.WithLogger(logger))
//
// # Query API
//
//   - [QueryBuilder.FindRoot]: walk parents to the root; nil means the
//     single selected object.
//   - [QueryBuilder.FindAllRoots]: parentless objects tagged "body".
//   - [QueryBuilder.FindChildren]: every object below a root, root included.
//   - [QueryBuilder.FindObjectsByType]: objects with a type tag.
//   - [QueryBuilder.FindObjectByName]: first object with a name, or nil.
//   - [QueryBuilder.SelectObjects]: select objects, optionally clearing first.
//   - [QueryBuilder.ReplaceInName]: substring replace in a property of every
//     selected object.
//
// Parent chains are verified while walking. A chain that revisits an object
// fails with an error matching [ErrCycleDetected]; a missing or ambiguous
// selection fails with an error matching [ErrSelection].
//
// # Scripts
//
// [Engine.RunScript] executes Risor scripts with the query operations bound
// as globals. See the internal/runtime package for the full set.
package marstools
