package database

import (
	"context"
	"fmt"
	"time"

	"book-library/internal/library"
)

// GetAllRelations returns every parent/child edge.
func (d *Database) GetAllRelations(ctx context.Context) ([]library.Relation, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_all_relations", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx,
		"SELECT parent_id, child_id, relation_type FROM entity_relations ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query relations: %w", err)
	}
	defer rows.Close()

	var rels []library.Relation
	for rows.Next() {
		var r library.Relation
		if err = rows.Scan(&r.ParentID, &r.ChildID, &r.Type); err != nil {
			return nil, fmt.Errorf("failed to scan relation: %w", err)
		}
		rels = append(rels, r)
	}
	err = rows.Err()
	return rels, err
}

// AddRelation links parent to child. Adding an existing pair is a no-op.
func (d *Database) AddRelation(ctx context.Context, r library.Relation) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("add_relation", start, err) }()

	if r.ParentID == "" || r.ChildID == "" {
		err = fmt.Errorf("%w: relation needs both ends", library.ErrInvalidState)
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO entity_relations (parent_id, child_id, relation_type, created_at)
		VALUES (?, ?, ?, ?)
	`, r.ParentID, r.ChildID, r.Type, time.Now().Unix())
	return err
}

// RemoveRelation deletes the edge between parent and child, if any.
func (d *Database) RemoveRelation(ctx context.Context, parentID, childID string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("remove_relation", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx,
		"DELETE FROM entity_relations WHERE parent_id = ? AND child_id = ?", parentID, childID)
	return err
}
