package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jward/marstools"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the stored scene hierarchy",
	Long:  "Run hierarchy queries against the imported scene. Objects are named by their scene name.",
}

func init() {
	queryCmd.AddCommand(rootsCmd)
	queryCmd.AddCommand(rootCmdQuery)
	queryCmd.AddCommand(childrenCmd)
	queryCmd.AddCommand(typeCmd)
	queryCmd.AddCommand(objectCmd)
	queryCmd.AddCommand(ancestorsCmd)
	queryCmd.AddCommand(treeCmd)
}

// --- Helpers ---

// namedObject resolves one object by name, failing when it is absent.
func namedObject(ctx context.Context, q *marstools.QueryBuilder, name string) (*marstools.Object, error) {
	objs, err := q.ObjectsNamed(ctx, name)
	if err != nil {
		return nil, err
	}
	return objs[0], nil
}

// objectsToCLI converts objects to CLIObjects, naming parents from a fresh
// snapshot of the scene.
func objectsToCLI(ctx context.Context, q *marstools.QueryBuilder, objs []*marstools.Object) ([]CLIObject, error) {
	all, err := q.Objects(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]string, len(all))
	for _, o := range all {
		byID[o.ID] = o.Name
	}

	out := make([]CLIObject, 0, len(objs))
	for _, o := range objs {
		out = append(out, objectToCLI(o, byID))
	}
	return out, nil
}

// objectToCLI converts one object, looking its parent's name up in names.
func objectToCLI(o *marstools.Object, names map[int64]string) CLIObject {
	c := CLIObject{
		ID:         o.ID,
		Name:       o.Name,
		Type:       o.Type,
		ParentID:   o.ParentID,
		Selected:   o.Selected,
		Properties: o.Properties,
	}
	if o.ParentID != nil {
		c.Parent = names[*o.ParentID]
	}
	return c
}

// runObjectsQuery runs a query returning a list of objects and writes the
// result.
func runObjectsQuery(cmd *cobra.Command, command string, fn func(ctx context.Context, q *marstools.QueryBuilder) ([]*marstools.Object, error)) error {
	e, err := openEngine()
	if err != nil {
		return outputError(cmd, command, err)
	}
	defer e.Close()

	ctx := cmd.Context()
	q := e.Query()
	objs, err := fn(ctx, q)
	if err != nil {
		return outputError(cmd, command, err)
	}
	results, err := objectsToCLI(ctx, q, objs)
	if err != nil {
		return outputError(cmd, command, err)
	}
	total := len(results)
	return outputResult(cmd, CLIResult{Command: command, Results: results, TotalCount: &total})
}

// runObjectQuery runs a query returning at most one object. A nil object is
// written as a null result.
func runObjectQuery(cmd *cobra.Command, command string, fn func(ctx context.Context, q *marstools.QueryBuilder) (*marstools.Object, error)) error {
	e, err := openEngine()
	if err != nil {
		return outputError(cmd, command, err)
	}
	defer e.Close()

	ctx := cmd.Context()
	q := e.Query()
	obj, err := fn(ctx, q)
	if err != nil {
		return outputError(cmd, command, err)
	}
	if obj == nil {
		return outputResult(cmd, CLIResult{Command: command, Results: nil})
	}
	results, err := objectsToCLI(ctx, q, []*marstools.Object{obj})
	if err != nil {
		return outputError(cmd, command, err)
	}
	return outputResult(cmd, CLIResult{Command: command, Results: results[0]})
}

// --- Commands ---

var rootsCmd = &cobra.Command{
	Use:   "roots",
	Short: "List every model root in the scene",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runObjectsQuery(cmd, "roots", func(ctx context.Context, q *marstools.QueryBuilder) ([]*marstools.Object, error) {
			return q.FindAllRoots(ctx)
		})
	},
}

var rootCmdQuery = &cobra.Command{
	Use:   "root [name]",
	Short: "Find the model root above an object",
	Long:  "Follows parent links from the named object to the top of its hierarchy. Without a name the single selected object is used.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runObjectQuery(cmd, "root", func(ctx context.Context, q *marstools.QueryBuilder) (*marstools.Object, error) {
			var start *marstools.Object
			if len(args) == 1 {
				o, err := namedObject(ctx, q, args[0])
				if err != nil {
					return nil, err
				}
				start = o
			}
			return q.FindRoot(ctx, start)
		})
	},
}

var childrenCmd = &cobra.Command{
	Use:   "children <root>",
	Short: "List every object belonging to a model root",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runObjectsQuery(cmd, "children", func(ctx context.Context, q *marstools.QueryBuilder) ([]*marstools.Object, error) {
			root, err := namedObject(ctx, q, args[0])
			if err != nil {
				return nil, err
			}
			return q.FindChildren(ctx, root)
		})
	},
}

var typeCmd = &cobra.Command{
	Use:   "type <tag>",
	Short: "List objects with the given type tag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runObjectsQuery(cmd, "type", func(ctx context.Context, q *marstools.QueryBuilder) ([]*marstools.Object, error) {
			return q.FindObjectsByType(ctx, args[0])
		})
	},
}

var objectCmd = &cobra.Command{
	Use:   "object <name>",
	Short: "Look an object up by name",
	Long:  "Prints the named object, or a null result when no object has that name.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runObjectQuery(cmd, "object", func(ctx context.Context, q *marstools.QueryBuilder) (*marstools.Object, error) {
			return q.FindObjectByName(ctx, args[0])
		})
	},
}

var ancestorsCmd = &cobra.Command{
	Use:   "ancestors <name>",
	Short: "List an object's parent chain, nearest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runObjectsQuery(cmd, "ancestors", func(ctx context.Context, q *marstools.QueryBuilder) ([]*marstools.Object, error) {
			o, err := namedObject(ctx, q, args[0])
			if err != nil {
				return nil, err
			}
			return q.Ancestors(ctx, o)
		})
	},
}

var treeCmd = &cobra.Command{
	Use:   "tree <root>",
	Short: "Show a model root's hierarchy as a tree",
	Args:  cobra.ExactArgs(1),
	RunE:  runTree,
}

func runTree(cmd *cobra.Command, args []string) error {
	e, err := openEngine()
	if err != nil {
		return outputError(cmd, "tree", err)
	}
	defer e.Close()

	ctx := cmd.Context()
	q := e.Query()
	root, err := namedObject(ctx, q, args[0])
	if err != nil {
		return outputError(cmd, "tree", err)
	}

	if flagFormat == "text" {
		if err := q.RenderTree(ctx, cmd.OutOrStdout(), root); err != nil {
			return outputError(cmd, "tree", err)
		}
		return nil
	}

	tree, err := q.Subtree(ctx, root)
	if err != nil {
		return outputError(cmd, "tree", err)
	}
	all, err := q.Objects(ctx)
	if err != nil {
		return outputError(cmd, "tree", err)
	}
	names := make(map[int64]string, len(all))
	for _, o := range all {
		names[o.ID] = o.Name
	}
	total := tree.Size()
	return outputResult(cmd, CLIResult{
		Command:    "tree",
		Results:    treeToCLI(tree, names),
		TotalCount: &total,
	})
}

func treeToCLI(n *marstools.TreeNode, names map[int64]string) CLITreeNode {
	c := CLITreeNode{Object: objectToCLI(n.Object, names)}
	for _, child := range n.Children {
		c.Children = append(c.Children, treeToCLI(child, names))
	}
	return c
}

// --- Mutations ---

var flagClear bool

var selectCmd = &cobra.Command{
	Use:   "select [name...]",
	Short: "Select objects by name",
	Long:  "Marks the named objects as selected. With --clear the current selection is dropped first; --clear with no names deselects everything.",
	RunE:  runSelect,
}

func init() {
	selectCmd.Flags().BoolVar(&flagClear, "clear", false, "deselect everything first")
}

func runSelect(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !flagClear {
		return outputError(cmd, "select", fmt.Errorf("nothing to do: give object names or --clear"))
	}

	e, err := openEngine()
	if err != nil {
		return outputError(cmd, "select", err)
	}
	defer e.Close()

	ctx := cmd.Context()
	q := e.Query()
	var objs []*marstools.Object
	if len(args) > 0 {
		objs, err = q.ObjectsNamed(ctx, args...)
		if err != nil {
			return outputError(cmd, "select", err)
		}
	}
	if err := q.SelectObjects(ctx, objs, flagClear); err != nil {
		return outputError(cmd, "select", err)
	}
	return outputResult(cmd, CLIResult{
		Command: "select",
		Results: CLICount{Count: len(objs)},
	})
}

var (
	flagProp string
	flagOld  string
	flagNew  string
)

var renameCmd = &cobra.Command{
	Use:   "rename",
	Short: "Rewrite a property across the selected objects",
	Long:  "Replaces every occurrence of --old with --new in property --prop of each selected object that has it.",
	Args:  cobra.NoArgs,
	RunE:  runRename,
}

func init() {
	renameCmd.Flags().StringVar(&flagProp, "prop", "", "property key to rewrite")
	renameCmd.Flags().StringVar(&flagOld, "old", "", "substring to replace")
	renameCmd.Flags().StringVar(&flagNew, "new", "", "replacement text")
	_ = renameCmd.MarkFlagRequired("prop")
	_ = renameCmd.MarkFlagRequired("old")
}

func runRename(cmd *cobra.Command, args []string) error {
	e, err := openEngine()
	if err != nil {
		return outputError(cmd, "rename", err)
	}
	defer e.Close()

	n, err := e.Query().ReplaceInName(cmd.Context(), flagProp, flagOld, flagNew)
	if err != nil {
		return outputError(cmd, "rename", err)
	}
	return outputResult(cmd, CLIResult{
		Command: "rename",
		Results: CLICount{Count: n},
	})
}
