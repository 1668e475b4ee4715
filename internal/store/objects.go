package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jward/marstools/internal/scene"
)

// Compile-time check: *Store satisfies scene.Provider.
var _ scene.Provider = (*Store)(nil)

// objectCols is the column list for object queries.
const objectCols = `id, name, type, parent_id, selected`

// --- Object operations ---

// InsertObject inserts o and its properties, assigning o.ID.
func (s *Store) InsertObject(o *scene.Object) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("insert object: begin: %w", err)
	}
	defer tx.Rollback()

	id, err := insertObjectTx(tx, o)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("insert object: commit: %w", err)
	}
	o.ID = id
	return id, nil
}

func insertObjectTx(tx *sql.Tx, o *scene.Object) (int64, error) {
	res, err := tx.Exec(
		"INSERT INTO objects (name, type, parent_id, selected) VALUES (?, ?, ?, ?)",
		o.Name, o.Type, o.ParentID, o.Selected,
	)
	if err != nil {
		return 0, fmt.Errorf("insert object %q: %w", o.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	for _, k := range scene.PropertyKeys(o) {
		if _, err := tx.Exec(
			"INSERT INTO properties (object_id, key, value) VALUES (?, ?, ?)",
			id, k, o.Properties[k],
		); err != nil {
			return 0, fmt.Errorf("insert property %q of %q: %w", k, o.Name, err)
		}
	}
	return id, nil
}

func scanObject(scanner interface{ Scan(...any) error }) (*scene.Object, error) {
	o := &scene.Object{}
	var parent sql.NullInt64
	if err := scanner.Scan(&o.ID, &o.Name, &o.Type, &parent, &o.Selected); err != nil {
		return nil, err
	}
	if parent.Valid {
		p := parent.Int64
		o.ParentID = &p
	}
	return o, nil
}

func (s *Store) queryObjects(ctx context.Context, query string, args ...any) ([]*scene.Object, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var objs []*scene.Object
	for rows.Next() {
		o, err := scanObject(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan object: %w", err)
		}
		objs = append(objs, o)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if err := s.attachProperties(ctx, objs); err != nil {
		return nil, err
	}
	return objs, nil
}

// attachProperties fills Properties for every object in objs.
func (s *Store) attachProperties(ctx context.Context, objs []*scene.Object) error {
	if len(objs) == 0 {
		return nil
	}
	byID := make(map[int64]*scene.Object, len(objs))
	ids := make([]int64, 0, len(objs))
	for _, o := range objs {
		o.Properties = make(map[string]string)
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	for _, chunk := range chunkIDs(ids, maxParams) {
		rows, err := s.db.QueryContext(ctx,
			"SELECT object_id, key, value FROM properties WHERE object_id IN ("+placeholderList(len(chunk))+")",
			int64sToArgs(chunk)...,
		)
		if err != nil {
			return fmt.Errorf("query properties: %w", err)
		}
		for rows.Next() {
			var id int64
			var k, v string
			if err := rows.Scan(&id, &k, &v); err != nil {
				rows.Close()
				return fmt.Errorf("scan property: %w", err)
			}
			byID[id].Properties[k] = v
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return fmt.Errorf("query properties: %w", err)
		}
	}
	return nil
}

// Objects returns every object in scene order (ascending ID).
func (s *Store) Objects(ctx context.Context) ([]*scene.Object, error) {
	objs, err := s.queryObjects(ctx, "SELECT "+objectCols+" FROM objects ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("objects: %w", err)
	}
	return objs, nil
}

// SetSelected sets the selection flag of object id.
func (s *Store) SetSelected(ctx context.Context, id int64, selected bool) error {
	res, err := s.db.ExecContext(ctx, "UPDATE objects SET selected = ? WHERE id = ?", selected, id)
	if err != nil {
		return fmt.Errorf("set selected: %w", err)
	}
	return expectOneRow(res, "set selected", id)
}

// SetProperty upserts a string property on object id.
func (s *Store) SetProperty(ctx context.Context, id int64, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO properties (object_id, key, value) VALUES (?, ?, ?)
		 ON CONFLICT(object_id, key) DO UPDATE SET value = excluded.value`,
		id, key, value,
	)
	if err != nil {
		return fmt.Errorf("set property %q on %d: %w", key, id, err)
	}
	return nil
}

func expectOneRow(res sql.Result, op string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: no object with id %d", op, id)
	}
	return nil
}
