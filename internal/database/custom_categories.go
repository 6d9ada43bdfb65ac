package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"book-library/internal/library"
)

// ListCustomCategories returns all custom categories by name.
func (d *Database) ListCustomCategories(ctx context.Context) ([]*library.CustomCategory, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx,
		"SELECT "+customCategoryColumns+" FROM custom_categories ORDER BY name COLLATE NOCASE, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query custom categories: %w", err)
	}
	defer rows.Close()

	return collectCustomCategories(rows)
}

// GetCustomCategory returns one custom category or library.ErrNotFound.
func (d *Database) GetCustomCategory(ctx context.Context, id string) (*library.CustomCategory, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	return getCustomCategory(ctx, d.db, id)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getCustomCategory(ctx context.Context, q queryRower, id string) (*library.CustomCategory, error) {
	c, err := scanCustomCategory(q.QueryRowContext(ctx,
		"SELECT "+customCategoryColumns+" FROM custom_categories WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("custom category %s: %w", id, library.ErrNotFound)
	}
	return c, err
}

// CreateCustomCategory stores a new, empty custom category.
func (d *Database) CreateCustomCategory(ctx context.Context, name, description string) (*library.CustomCategory, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("create_custom_category", start, err) }()

	name = strings.TrimSpace(name)
	if name == "" {
		err = fmt.Errorf("%w: custom category name cannot be empty", library.ErrInvalidState)
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := time.Now()
	c := &library.CustomCategory{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		CreatedAt:   time.Unix(now.Unix(), 0),
		UpdatedAt:   time.Unix(now.Unix(), 0),
	}
	_, err = d.db.ExecContext(ctx, `
		INSERT INTO custom_categories (id, name, description, book_count, created_at, updated_at)
		VALUES (?, ?, ?, 0, ?, ?)
	`, c.ID, c.Name, c.Description, now.Unix(), now.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to create custom category: %w", err)
	}
	return c, nil
}

// UpdateCustomCategory renames a custom category and replaces its
// description.
func (d *Database) UpdateCustomCategory(ctx context.Context, id, name, description string) (*library.CustomCategory, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("update_custom_category", start, err) }()

	name = strings.TrimSpace(name)
	if name == "" {
		err = fmt.Errorf("%w: custom category name cannot be empty", library.ErrInvalidState)
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := d.db.ExecContext(ctx,
		"UPDATE custom_categories SET name = ?, description = ?, updated_at = ? WHERE id = ?",
		name, description, time.Now().Unix(), id)
	if err != nil {
		return nil, err
	}
	if err = requireAffected(res, "custom category", id); err != nil {
		return nil, err
	}
	return getCustomCategory(ctx, d.db, id)
}

// DeleteCustomCategory removes a custom category and its memberships.
// The books themselves are untouched.
func (d *Database) DeleteCustomCategory(ctx context.Context, id string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_custom_category", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.BeginBatch(ctx)
	if err != nil {
		return err
	}

	err = func() error {
		ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
		defer cancel()

		if _, err := tx.ExecContext(ctx, "DELETE FROM book_custom_category WHERE custom_category_id = ?", id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM custom_categories WHERE id = ?", id)
		if err != nil {
			return err
		}
		return requireAffected(res, "custom category", id)
	}()
	err = d.EndBatch(tx, err)
	return err
}

// AddBookToCustomCategory adds a book to a custom category. Both must
// exist; adding a member twice yields library.ErrDuplicateID.
func (d *Database) AddBookToCustomCategory(ctx context.Context, categoryID, bookID string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("add_book_to_custom_category", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.BeginBatch(ctx)
	if err != nil {
		return err
	}

	err = func() error {
		ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
		defer cancel()

		if _, err := getCustomCategory(ctx, tx, categoryID); err != nil {
			return err
		}
		var exists bool
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) > 0 FROM books WHERE id = ?", bookID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("book %s: %w", bookID, library.ErrNotFound)
		}

		now := time.Now().Unix()
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO book_custom_category (book_id, custom_category_id, created_at) VALUES (?, ?, ?)",
			bookID, categoryID, now,
		); err != nil {
			if isConstraintViolation(err) {
				return fmt.Errorf("book %s already in custom category %s: %w", bookID, categoryID, library.ErrDuplicateID)
			}
			return err
		}
		_, err := tx.ExecContext(ctx,
			"UPDATE custom_categories SET book_count = book_count + 1, updated_at = ? WHERE id = ?",
			now, categoryID)
		return err
	}()
	err = d.EndBatch(tx, err)
	return err
}

// RemoveBookFromCustomCategory removes a membership. A missing membership
// yields library.ErrNotFound.
func (d *Database) RemoveBookFromCustomCategory(ctx context.Context, categoryID, bookID string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("remove_book_from_custom_category", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.BeginBatch(ctx)
	if err != nil {
		return err
	}

	err = func() error {
		ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
		defer cancel()

		res, err := tx.ExecContext(ctx,
			"DELETE FROM book_custom_category WHERE book_id = ? AND custom_category_id = ?",
			bookID, categoryID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("book %s in custom category %s: %w", bookID, categoryID, library.ErrNotFound)
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE custom_categories SET book_count = MAX(0, book_count - 1), updated_at = ? WHERE id = ?",
			time.Now().Unix(), categoryID)
		return err
	}()
	err = d.EndBatch(tx, err)
	return err
}

// GetCustomCategoryBooks returns the books of a custom category.
func (d *Database) GetCustomCategoryBooks(ctx context.Context, categoryID string) ([]*library.Book, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := getCustomCategory(ctx, d.db, categoryID); err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT `+prefixed("b", bookColumns)+`
		FROM books b
		JOIN book_custom_category bcc ON b.id = bcc.book_id
		WHERE bcc.custom_category_id = ?
		ORDER BY bcc.created_at, bcc.id
	`, categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query custom category books: %w", err)
	}
	defer rows.Close()

	var books []*library.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// GetBookCustomCategories returns the custom categories a book belongs to.
func (d *Database) GetBookCustomCategories(ctx context.Context, bookID string) ([]*library.CustomCategory, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT `+prefixed("cc", customCategoryColumns)+`
		FROM custom_categories cc
		JOIN book_custom_category bcc ON cc.id = bcc.custom_category_id
		WHERE bcc.book_id = ?
		ORDER BY cc.name COLLATE NOCASE, cc.id
	`, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to query book custom categories: %w", err)
	}
	defer rows.Close()

	return collectCustomCategories(rows)
}

func collectCustomCategories(rows *sql.Rows) ([]*library.CustomCategory, error) {
	cats := []*library.CustomCategory{}
	for rows.Next() {
		c, err := scanCustomCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan custom category: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// prefixed qualifies every column of a comma separated list with alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
