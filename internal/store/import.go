package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/jward/marstools/internal/scene"
)

// ImportScene inserts every object of f within a single transaction and
// returns the number of objects written. When replace is set the existing
// scene is cleared first; otherwise names already present fail the import.
// meta is upserted into the metadata table in the same transaction, so a
// failed import leaves both the scene and its metadata as they were.
//
// Objects are inserted parentless in file order, then parent names are
// rewritten to the assigned IDs. This tolerates forward references and
// parent cycles, which the host may legitimately contain.
func (s *Store) ImportScene(f *scene.File, replace bool, meta map[string]string) (int, error) {
	if err := f.Validate(); err != nil {
		return 0, fmt.Errorf("import scene: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("import scene: begin: %w", err)
	}
	defer tx.Rollback()

	if replace {
		if err := clearTx(tx); err != nil {
			return 0, fmt.Errorf("import scene: %w", err)
		}
	}

	nameToID := make(map[string]int64, len(f.Objects))

	// 1. Objects and properties
	for _, fo := range f.Objects {
		o := &scene.Object{
			Name:       fo.Name,
			Type:       fo.Type,
			Selected:   fo.Selected,
			Properties: fo.Properties,
		}
		id, err := insertObjectTx(tx, o)
		if err != nil {
			return 0, fmt.Errorf("import scene: %w", err)
		}
		nameToID[fo.Name] = id
	}

	// 2. Parent links
	for _, fo := range f.Objects {
		if fo.Parent == "" {
			continue
		}
		if _, err := tx.Exec(
			"UPDATE objects SET parent_id = ? WHERE id = ?",
			nameToID[fo.Parent], nameToID[fo.Name],
		); err != nil {
			return 0, fmt.Errorf("import scene: parent of %q: %w", fo.Name, err)
		}
	}

	// 3. Metadata
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := setMetadataTx(tx, k, meta[k]); err != nil {
			return 0, fmt.Errorf("import scene: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("import scene: commit: %w", err)
	}
	return len(f.Objects), nil
}

// Export snapshots the stored scene in file form.
func (s *Store) Export(ctx context.Context) (*scene.File, error) {
	objs, err := s.Objects(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	return scene.FromObjects(objs), nil
}

// clearTx removes every object and property. Parent links are cut first so
// the FK on parent_id never blocks the delete.
func clearTx(tx *sql.Tx) error {
	for _, q := range []string{
		"DELETE FROM properties",
		"UPDATE objects SET parent_id = NULL",
		"DELETE FROM objects",
	} {
		if _, err := tx.Exec(q); err != nil {
			return fmt.Errorf("clear scene: %w", err)
		}
	}
	return nil
}
