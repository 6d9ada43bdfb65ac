package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"book-library/internal/library"
)

// GetAllBooks returns every stored book ordered by creation time.
func (d *Database) GetAllBooks(ctx context.Context) ([]*library.Book, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_all_books", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, "SELECT "+bookColumns+" FROM books ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query books: %w", err)
	}
	defer rows.Close()

	var books []*library.Book
	for rows.Next() {
		b, scanErr := scanBook(rows)
		if scanErr != nil {
			err = fmt.Errorf("failed to scan book: %w", scanErr)
			return nil, err
		}
		books = append(books, b)
	}
	err = rows.Err()
	return books, err
}

// GetBook returns one book or library.ErrNotFound.
func (d *Database) GetBook(ctx context.Context, id string) (*library.Book, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_book", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	b, err := scanBook(d.db.QueryRowContext(ctx, "SELECT "+bookColumns+" FROM books WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		err = fmt.Errorf("book %s: %w", id, library.ErrNotFound)
	}
	return b, err
}

// AddBook inserts a book. An existing ID yields library.ErrDuplicateID.
func (d *Database) AddBook(ctx context.Context, b *library.Book) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("add_book", start, err) }()

	pages, err := encodePages(b.Pages)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := time.Now().Unix()
	_, err = d.db.ExecContext(ctx, `
		INSERT INTO books (id, title, path, type, cover_path, page_count, pages, inode, device_id,
			optimization_strategy, page_dimension_type, is_favorite, is_deleted, deleted_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		b.ID, b.Title, b.Path, b.Type, b.CoverPath, b.PageCount, pages, b.Inode, b.DeviceID,
		b.OptimizationStrategy, b.PageDimensionType, b.IsFavorite, b.IsDeleted, toNullUnix(b.DeletedAt),
		stamp(b.CreatedAt), now,
	)
	if isConstraintViolation(err) {
		err = fmt.Errorf("book %s: %w", b.ID, library.ErrDuplicateID)
	}
	return err
}

// UpdateBook overwrites the scanned fields of an existing book. The
// favorite flag and creation time are kept.
func (d *Database) UpdateBook(ctx context.Context, b *library.Book) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("update_book", start, err) }()

	pages, err := encodePages(b.Pages)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := d.db.ExecContext(ctx, `
		UPDATE books
		SET title = ?, path = ?, type = ?, cover_path = ?, page_count = ?, pages = ?, inode = ?,
			device_id = ?, optimization_strategy = ?, page_dimension_type = ?, is_deleted = ?,
			deleted_at = ?, updated_at = ?
		WHERE id = ?
	`,
		b.Title, b.Path, b.Type, b.CoverPath, b.PageCount, pages, b.Inode,
		b.DeviceID, b.OptimizationStrategy, b.PageDimensionType, b.IsDeleted,
		toNullUnix(b.DeletedAt), time.Now().Unix(), b.ID,
	)
	if err != nil {
		return err
	}
	err = requireAffected(res, "book", b.ID)
	return err
}

// DeleteBook removes a book together with its category links and custom
// category memberships. Custom category counts are decremented, never
// below zero. Deleting a missing book is not an error.
func (d *Database) DeleteBook(ctx context.Context, id string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_book", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.BeginBatch(ctx)
	if err != nil {
		return err
	}

	err = deleteBookTx(ctx, tx, id)
	err = d.EndBatch(tx, err)
	return err
}

func deleteBookTx(ctx context.Context, tx *sql.Tx, id string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	// Only category_book edges: a root folder that is itself an image book
	// shares its ID with the root category, whose child edges must survive.
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM entity_relations WHERE child_id = ? AND relation_type = ?",
		id, library.CategoryBook,
	); err != nil {
		return fmt.Errorf("failed to delete book relations: %w", err)
	}

	now := time.Now().Unix()
	if _, err := tx.ExecContext(ctx, `
		UPDATE custom_categories
		SET book_count = MAX(0, book_count - 1), updated_at = ?
		WHERE id IN (SELECT custom_category_id FROM book_custom_category WHERE book_id = ?)
	`, now, id); err != nil {
		return fmt.Errorf("failed to update custom category counts: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM book_custom_category WHERE book_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete custom category memberships: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM books WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete book: %w", err)
	}
	return nil
}

// SetFavorite sets the favorite flag of a book.
func (d *Database) SetFavorite(ctx context.Context, id string, favorite bool) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_favorite", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := d.db.ExecContext(ctx,
		"UPDATE books SET is_favorite = ?, updated_at = ? WHERE id = ?",
		favorite, time.Now().Unix(), id,
	)
	if err != nil {
		return err
	}
	err = requireAffected(res, "book", id)
	return err
}

func requireAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, library.ErrNotFound)
	}
	return nil
}
