package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"book-library/internal/library"
	"book-library/internal/metrics"
)

// Integration tests against a real SQLite database

func setupTestDB(t testing.TB) *Database {
	t.Helper()

	db, err := New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testBook(id string) *library.Book {
	return &library.Book{
		ID:                   id,
		Title:                "Book " + id,
		Path:                 "/library/" + id,
		Type:                 library.ImageBook,
		CoverPath:            "/library/" + id + "/01.jpg",
		PageCount:            2,
		Pages:                []string{"/library/" + id + "/01.jpg", "/library/" + id + "/02.jpg"},
		OptimizationStrategy: library.StrategyOriginal,
		PageDimensionType:    "1200x1800",
	}
}

func TestNewDatabase(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	db, err := New(context.Background(), dbPath)
	require.NoError(t, err)
	defer db.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "database file should be created")
	assert.Equal(t, dbPath, db.Path())
	assert.NoError(t, db.Ping(context.Background()))
}

func TestNewDatabaseReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	db, err := New(ctx, dbPath)
	require.NoError(t, err)
	require.NoError(t, db.AddBook(ctx, testBook("a")))
	require.NoError(t, db.Close())

	db, err = New(ctx, dbPath)
	require.NoError(t, err)
	defer db.Close()

	b, err := db.GetBook(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Book a", b.Title)
}

func TestBookRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	in := testBook("b1")
	in.CreatedAt = time.Unix(1_700_000_000, 0)
	require.NoError(t, db.AddBook(ctx, in))

	got, err := db.GetBook(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, in.Pages, got.Pages)
	assert.Equal(t, library.ImageBook, got.Type)
	assert.Equal(t, library.StrategyOriginal, got.OptimizationStrategy)
	assert.Equal(t, "1200x1800", got.PageDimensionType)
	assert.Equal(t, in.CreatedAt.Unix(), got.CreatedAt.Unix())
	assert.False(t, got.IsFavorite)
	assert.Nil(t, got.DeletedAt)

	err = db.AddBook(ctx, in)
	assert.ErrorIs(t, err, library.ErrDuplicateID)

	_, err = db.GetBook(ctx, "missing")
	assert.ErrorIs(t, err, library.ErrNotFound)
}

func TestUpdateBookKeepsFavorite(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.AddBook(ctx, testBook("b1")))
	require.NoError(t, db.SetFavorite(ctx, "b1", true))

	changed := testBook("b1")
	changed.Pages = append(changed.Pages, "/library/b1/03.jpg")
	changed.PageCount = 3
	require.NoError(t, db.UpdateBook(ctx, changed))

	got, err := db.GetBook(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.PageCount)
	assert.Len(t, got.Pages, 3)
	assert.True(t, got.IsFavorite)

	assert.ErrorIs(t, db.UpdateBook(ctx, testBook("nope")), library.ErrNotFound)
	assert.ErrorIs(t, db.SetFavorite(ctx, "nope", true), library.ErrNotFound)
}

func TestPDFBookHasNoPages(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	pdf := &library.Book{
		ID: "p1", Title: "manual", Path: "/library/manual.pdf", Type: library.PDFBook,
		PageCount: 12, Inode: "42", DeviceID: "2049",
	}
	require.NoError(t, db.AddBook(ctx, pdf))

	got, err := db.GetBook(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, got.Pages)
	assert.Equal(t, 12, got.PageCount)
	assert.Equal(t, "42", got.Inode)
	assert.Equal(t, "2049", got.DeviceID)
}

func TestCategoriesAndRelations(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	root := &library.Category{ID: "root", Name: "lib", Path: "/lib"}
	sub := &library.Category{ID: "sub", Name: "comics", Path: "/lib/comics"}
	require.NoError(t, db.AddCategory(ctx, root))
	require.NoError(t, db.AddCategory(ctx, sub))
	assert.ErrorIs(t, db.AddCategory(ctx, root), library.ErrDuplicateID)

	rel := library.Relation{ParentID: "root", ChildID: "sub", Type: library.CategoryCategory}
	require.NoError(t, db.AddRelation(ctx, rel))
	require.NoError(t, db.AddRelation(ctx, rel), "adding an existing relation is a no-op")

	rels, err := db.GetAllRelations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []library.Relation{rel}, rels)

	sub.Name = "manga"
	require.NoError(t, db.UpdateCategory(ctx, sub))
	got, err := db.GetCategory(ctx, "sub")
	require.NoError(t, err)
	assert.Equal(t, "manga", got.Name)

	assert.ErrorIs(t, db.UpdateCategory(ctx, &library.Category{ID: "x"}), library.ErrNotFound)
	assert.ErrorIs(t, db.AddRelation(ctx, library.Relation{ParentID: "root"}), library.ErrInvalidState)

	require.NoError(t, db.RemoveRelation(ctx, "root", "sub"))
	rels, err = db.GetAllRelations(ctx)
	require.NoError(t, err)
	assert.Empty(t, rels)
}

func TestDeleteCategoryCascadesRelations(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for _, id := range []string{"root", "sub"} {
		require.NoError(t, db.AddCategory(ctx, &library.Category{ID: id, Name: id, Path: "/" + id}))
	}
	require.NoError(t, db.AddBook(ctx, testBook("b1")))
	require.NoError(t, db.AddRelation(ctx, library.Relation{ParentID: "root", ChildID: "sub", Type: library.CategoryCategory}))
	require.NoError(t, db.AddRelation(ctx, library.Relation{ParentID: "sub", ChildID: "b1", Type: library.CategoryBook}))

	require.NoError(t, db.DeleteCategory(ctx, "sub"))
	require.NoError(t, db.DeleteCategory(ctx, "sub"), "deleting twice is not an error")

	rels, err := db.GetAllRelations(ctx)
	require.NoError(t, err)
	assert.Empty(t, rels)

	_, err = db.GetCategory(ctx, "sub")
	assert.ErrorIs(t, err, library.ErrNotFound)
	_, err = db.GetBook(ctx, "b1")
	assert.NoError(t, err, "books survive category deletion")
}

func TestDeleteBookCascade(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	// A root folder that is itself an image book shares the root's ID.
	require.NoError(t, db.AddCategory(ctx, &library.Category{ID: "root", Name: "lib", Path: "/lib"}))
	require.NoError(t, db.AddCategory(ctx, &library.Category{ID: "sub", Name: "sub", Path: "/lib/sub"}))
	require.NoError(t, db.AddBook(ctx, testBook("root")))
	require.NoError(t, db.AddBook(ctx, testBook("b2")))
	require.NoError(t, db.AddRelation(ctx, library.Relation{ParentID: "root", ChildID: "sub", Type: library.CategoryCategory}))
	require.NoError(t, db.AddRelation(ctx, library.Relation{ParentID: "root", ChildID: "root", Type: library.CategoryBook}))
	require.NoError(t, db.AddRelation(ctx, library.Relation{ParentID: "sub", ChildID: "b2", Type: library.CategoryBook}))

	cc, err := db.CreateCustomCategory(ctx, "to read", "")
	require.NoError(t, err)
	require.NoError(t, db.AddBookToCustomCategory(ctx, cc.ID, "root"))

	require.NoError(t, db.DeleteBook(ctx, "root"))

	rels, err := db.GetAllRelations(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []library.Relation{
		{ParentID: "root", ChildID: "sub", Type: library.CategoryCategory},
		{ParentID: "sub", ChildID: "b2", Type: library.CategoryBook},
	}, rels)

	got, err := db.GetCustomCategory(ctx, cc.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.BookCount)

	books, err := db.GetCustomCategoryBooks(ctx, cc.ID)
	require.NoError(t, err)
	assert.Empty(t, books)

	require.NoError(t, db.DeleteBook(ctx, "root"), "deleting twice is not an error")
}

func TestCustomCategories(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.AddBook(ctx, testBook("b1")))
	require.NoError(t, db.AddBook(ctx, testBook("b2")))

	_, err := db.CreateCustomCategory(ctx, "   ", "")
	assert.ErrorIs(t, err, library.ErrInvalidState)

	fav, err := db.CreateCustomCategory(ctx, "Favourites", "best ones")
	require.NoError(t, err)
	other, err := db.CreateCustomCategory(ctx, "archive", "")
	require.NoError(t, err)

	list, err := db.ListCustomCategories(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "archive", list[0].Name)

	require.NoError(t, db.AddBookToCustomCategory(ctx, fav.ID, "b1"))
	require.NoError(t, db.AddBookToCustomCategory(ctx, fav.ID, "b2"))
	require.NoError(t, db.AddBookToCustomCategory(ctx, other.ID, "b1"))
	assert.ErrorIs(t, db.AddBookToCustomCategory(ctx, fav.ID, "b1"), library.ErrDuplicateID)
	assert.ErrorIs(t, db.AddBookToCustomCategory(ctx, fav.ID, "missing"), library.ErrNotFound)
	assert.ErrorIs(t, db.AddBookToCustomCategory(ctx, "missing", "b1"), library.ErrNotFound)

	got, err := db.GetCustomCategory(ctx, fav.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.BookCount)

	books, err := db.GetCustomCategoryBooks(ctx, fav.ID)
	require.NoError(t, err)
	assert.Len(t, books, 2)

	memberships, err := db.GetBookCustomCategories(ctx, "b1")
	require.NoError(t, err)
	assert.Len(t, memberships, 2)

	require.NoError(t, db.RemoveBookFromCustomCategory(ctx, fav.ID, "b2"))
	assert.ErrorIs(t, db.RemoveBookFromCustomCategory(ctx, fav.ID, "b2"), library.ErrNotFound)

	updated, err := db.UpdateCustomCategory(ctx, fav.ID, "Top", "renamed")
	require.NoError(t, err)
	assert.Equal(t, "Top", updated.Name)
	assert.Equal(t, 1, updated.BookCount)

	_, err = db.UpdateCustomCategory(ctx, "missing", "x", "")
	assert.ErrorIs(t, err, library.ErrNotFound)

	require.NoError(t, db.DeleteCustomCategory(ctx, fav.ID))
	assert.ErrorIs(t, db.DeleteCustomCategory(ctx, fav.ID), library.ErrNotFound)

	memberships, err = db.GetBookCustomCategories(ctx, "b1")
	require.NoError(t, err)
	assert.Len(t, memberships, 1)
}

func TestStatsAndCounts(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	big := testBook("big")
	big.OptimizationStrategy = library.StrategySuggestCompression
	require.NoError(t, db.AddBook(ctx, big))
	require.NoError(t, db.AddBook(ctx, testBook("small")))
	require.NoError(t, db.AddBook(ctx, &library.Book{ID: "pdf", Title: "p", Path: "/p.pdf", Type: library.PDFBook}))
	require.NoError(t, db.AddCategory(ctx, &library.Category{ID: "root", Name: "lib", Path: "/lib"}))
	require.NoError(t, db.SetFavorite(ctx, "small", true))
	_, err := db.CreateCustomCategory(ctx, "c", "")
	require.NoError(t, err)

	s, err := db.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, s.ImageBooks)
	assert.Equal(t, 1, s.PDFBooks)
	assert.Equal(t, 3, s.TotalBooks())
	assert.Equal(t, 1, s.Categories)
	assert.Equal(t, 1, s.Favorites)
	assert.Equal(t, 1, s.CustomCategories)
	assert.Equal(t, 1, s.OptimizationNeeded)

	c, err := db.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, library.ScanCounts{Categories: 1, Books: 3}, c)
}

func TestMetadataAndLastScan(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.GetMetadata(ctx, "nope")
	assert.ErrorIs(t, err, library.ErrNotFound)

	last, err := db.GetLastScan(ctx)
	require.NoError(t, err)
	assert.True(t, last.IsZero())

	when := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, db.SetLastScan(ctx, when))
	last, err = db.GetLastScan(ctx)
	require.NoError(t, err)
	assert.True(t, when.Equal(last))

	raw, err := db.GetMetadata(ctx, "last_scan")
	require.NoError(t, err)
	assert.Equal(t, "1772366400", raw)

	require.NoError(t, db.SetLastScan(ctx, time.Time{}))
	last, err = db.GetLastScan(ctx)
	require.NoError(t, err)
	assert.True(t, last.IsZero())

	require.NoError(t, db.SetMetadata(ctx, "last_scan", "yesterday"))
	_, err = db.GetLastScan(ctx)
	assert.Error(t, err)
}

func TestVacuumAndMetrics(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Vacuum(context.Background()))
	db.UpdateDBMetrics()

	info, err := os.Stat(db.dbPath)
	require.NoError(t, err)
	assert.Equal(t, float64(info.Size()), testutil.ToFloat64(metrics.DBSizeBytes.WithLabelValues("main")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(metrics.DBSizeBytes.WithLabelValues("wal")), float64(0))
	assert.GreaterOrEqual(t, testutil.ToFloat64(metrics.DBConnectionsOpen), float64(0))
}
