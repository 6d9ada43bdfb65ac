package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"book-library/internal/library"
)

// GetAllCategories returns every stored category without children.
func (d *Database) GetAllCategories(ctx context.Context) ([]*library.Category, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_all_categories", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, "SELECT "+categoryColumns+" FROM categories ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var cats []*library.Category
	for rows.Next() {
		c, scanErr := scanCategory(rows)
		if scanErr != nil {
			err = fmt.Errorf("failed to scan category: %w", scanErr)
			return nil, err
		}
		cats = append(cats, c)
	}
	err = rows.Err()
	return cats, err
}

// GetCategory returns one category or library.ErrNotFound.
func (d *Database) GetCategory(ctx context.Context, id string) (*library.Category, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	c, err := scanCategory(d.db.QueryRowContext(ctx, "SELECT "+categoryColumns+" FROM categories WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("category %s: %w", id, library.ErrNotFound)
	}
	return c, err
}

// AddCategory inserts a category. An existing ID yields
// library.ErrDuplicateID.
func (d *Database) AddCategory(ctx context.Context, c *library.Category) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("add_category", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, path, is_deleted, deleted_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.Name, c.Path, c.IsDeleted, toNullUnix(c.DeletedAt), stamp(c.CreatedAt), time.Now().Unix())
	if isConstraintViolation(err) {
		err = fmt.Errorf("category %s: %w", c.ID, library.ErrDuplicateID)
	}
	return err
}

// UpdateCategory overwrites the name and path of an existing category.
func (d *Database) UpdateCategory(ctx context.Context, c *library.Category) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("update_category", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := d.db.ExecContext(ctx, `
		UPDATE categories SET name = ?, path = ?, is_deleted = ?, deleted_at = ?, updated_at = ?
		WHERE id = ?
	`, c.Name, c.Path, c.IsDeleted, toNullUnix(c.DeletedAt), time.Now().Unix(), c.ID)
	if err != nil {
		return err
	}
	err = requireAffected(res, "category", c.ID)
	return err
}

// DeleteCategory removes a category and every relation it takes part in.
// Deleting a missing category is not an error.
func (d *Database) DeleteCategory(ctx context.Context, id string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_category", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.BeginBatch(ctx)
	if err != nil {
		return err
	}

	err = func() error {
		ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
		defer cancel()

		if _, err := tx.ExecContext(ctx,
			"DELETE FROM entity_relations WHERE parent_id = ? OR child_id = ?", id, id,
		); err != nil {
			return fmt.Errorf("failed to delete category relations: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM categories WHERE id = ?", id); err != nil {
			return fmt.Errorf("failed to delete category: %w", err)
		}
		return nil
	}()
	err = d.EndBatch(tx, err)
	return err
}
