package store

import (
	"crypto/sha256"
	"fmt"
	"sort"

	"github.com/jward/marstools/internal/scene"
)

// ComputeSceneHash computes a deterministic hash of a scene file's content.
// Object order, property order and YAML formatting do NOT affect the hash;
// names, types, parents, selection and property values do.
//
// Every string field is written Go-quoted, so separators inside names or
// values cannot make two different scenes hash alike.
func ComputeSceneHash(f *scene.File) string {
	h := sha256.New()

	objs := make([]scene.FileObject, len(f.Objects))
	copy(objs, f.Objects)
	sort.Slice(objs, func(i, j int) bool {
		return objs[i].Name < objs[j].Name
	})

	for _, o := range objs {
		fmt.Fprintf(h, "name:%q\n", o.Name)
		fmt.Fprintf(h, "type:%q\n", o.Type)
		fmt.Fprintf(h, "parent:%q\n", o.Parent)
		fmt.Fprintf(h, "selected:%t\n", o.Selected)

		// Properties sorted by key for determinism.
		keys := make([]string, 0, len(o.Properties))
		for k := range o.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintf(h, "properties:%d\n", len(keys))
		for _, k := range keys {
			fmt.Fprintf(h, "%q=%q\n", k, o.Properties[k])
		}
	}

	return fmt.Sprintf("%x", h.Sum(nil))
}
