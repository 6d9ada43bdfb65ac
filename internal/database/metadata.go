package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"book-library/internal/library"
)

// Keys of the metadata table.
const (
	metaLastScan = "last_scan"
)

// GetMetadata reads one metadata value; an absent key is
// library.ErrNotFound.
func (d *Database) GetMetadata(ctx context.Context, key string) (string, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_metadata", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var value string
	err = d.db.QueryRowContext(ctx, "SELECT COALESCE(value, '') FROM metadata WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("metadata %q: %w", key, library.ErrNotFound)
	}
	return value, err
}

// SetMetadata upserts a metadata value.
func (d *Database) SetMetadata(ctx context.Context, key, value string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_metadata", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx,
		"INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	return err
}

// GetLastScan returns when the last successful run finished, or the zero
// time if none has.
func (d *Database) GetLastScan(ctx context.Context) (time.Time, error) {
	raw, err := d.GetMetadata(ctx, metaLastScan)
	switch {
	case errors.Is(err, library.ErrNotFound):
		return time.Time{}, nil
	case err != nil:
		return time.Time{}, err
	case raw == "" || raw == "0":
		return time.Time{}, nil
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("metadata %q: %w", metaLastScan, err)
	}
	return time.Unix(secs, 0).UTC(), nil
}

// SetLastScan records t in unix seconds, like every other timestamp in the
// database. The zero time clears it.
func (d *Database) SetLastScan(ctx context.Context, t time.Time) error {
	value := "0"
	if !t.IsZero() {
		value = strconv.FormatInt(t.Unix(), 10)
	}
	return d.SetMetadata(ctx, metaLastScan, value)
}
