package database

import (
	"database/sql"
	"encoding/json"
	"time"

	"book-library/internal/library"
)

const bookColumns = `id, title, path, type, cover_path, page_count, pages, inode, device_id,
	optimization_strategy, page_dimension_type, is_favorite, is_deleted, deleted_at, created_at, updated_at`

const categoryColumns = `id, name, path, is_deleted, deleted_at, created_at, updated_at`

const customCategoryColumns = `id, name, description, book_count, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (*library.Book, error) {
	var (
		b                    library.Book
		pages                string
		isFavorite           bool
		isDeleted            bool
		deletedAt            sql.NullInt64
		createdAt, updatedAt int64
	)

	err := row.Scan(
		&b.ID, &b.Title, &b.Path, &b.Type, &b.CoverPath, &b.PageCount, &pages,
		&b.Inode, &b.DeviceID, &b.OptimizationStrategy, &b.PageDimensionType,
		&isFavorite, &isDeleted, &deletedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if pages != "" {
		if err := json.Unmarshal([]byte(pages), &b.Pages); err != nil {
			return nil, err
		}
	}
	b.IsFavorite = isFavorite
	b.IsDeleted = isDeleted
	b.DeletedAt = fromNullUnix(deletedAt)
	b.CreatedAt = time.Unix(createdAt, 0)
	b.UpdatedAt = time.Unix(updatedAt, 0)
	return &b, nil
}

func scanCategory(row rowScanner) (*library.Category, error) {
	var (
		c                    library.Category
		isDeleted            bool
		deletedAt            sql.NullInt64
		createdAt, updatedAt int64
	)

	if err := row.Scan(&c.ID, &c.Name, &c.Path, &isDeleted, &deletedAt, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	c.IsDeleted = isDeleted
	c.DeletedAt = fromNullUnix(deletedAt)
	c.CreatedAt = time.Unix(createdAt, 0)
	c.UpdatedAt = time.Unix(updatedAt, 0)
	return &c, nil
}

func scanCustomCategory(row rowScanner) (*library.CustomCategory, error) {
	var (
		c                    library.CustomCategory
		createdAt, updatedAt int64
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.BookCount, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	c.CreatedAt = time.Unix(createdAt, 0)
	c.UpdatedAt = time.Unix(updatedAt, 0)
	return &c, nil
}

func encodePages(pages []string) (string, error) {
	if pages == nil {
		pages = []string{}
	}
	data, err := json.Marshal(pages)
	return string(data), err
}

func toNullUnix(t *time.Time) sql.NullInt64 {
	if t == nil || t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func fromNullUnix(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0)
	return &t
}

// stamp returns the creation time to store, defaulting to now.
func stamp(t time.Time) int64 {
	if t.IsZero() {
		return time.Now().Unix()
	}
	return t.Unix()
}
