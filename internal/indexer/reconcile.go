package indexer

import (
	"context"
	"errors"
	"fmt"

	"book-library/internal/library"
	"book-library/internal/logging"
	"book-library/internal/metrics"
)

// ReconcileStore is the persistence the reconciler writes to.
type ReconcileStore interface {
	GetCategory(ctx context.Context, id string) (*library.Category, error)
	AddCategory(ctx context.Context, c *library.Category) error
	UpdateCategory(ctx context.Context, c *library.Category) error
	DeleteCategory(ctx context.Context, id string) error
	AddBook(ctx context.Context, b *library.Book) error
	UpdateBook(ctx context.Context, b *library.Book) error
	DeleteBook(ctx context.Context, id string) error
	AddRelation(ctx context.Context, r library.Relation) error
}

// CoverGenerator renders the cover of a newly added book.
type CoverGenerator interface {
	GenerateCover(ctx context.Context, b *library.Book) (string, error)
}

// CacheCleaner drops cached render output of a book.
type CacheCleaner interface {
	ClearBookCache(bookID string) bool
}

// Emitter receives progress events. A nil Emitter discards them.
type Emitter func(library.Event)

func (e Emitter) send(t library.EventType, format string, args ...any) {
	if e != nil {
		e(library.Event{Type: t, Message: fmt.Sprintf(format, args...)})
	}
}

// Result is the outcome of one reconciliation.
type Result struct {
	Synced    library.SyncCounts
	Relations int
	Failures  int
}

// Reconciler applies the difference between a scanned tree and the stored
// rows. Every per-entity write is independent: a failure is reported and
// counted, and the remaining items are still attempted.
type Reconciler struct {
	store   ReconcileStore
	covers  CoverGenerator
	cleaner CacheCleaner
}

// NewReconciler creates a Reconciler. covers and cleaner may be nil.
func NewReconciler(store ReconcileStore, covers CoverGenerator, cleaner CacheCleaner) *Reconciler {
	return &Reconciler{store: store, covers: covers, cleaner: cleaner}
}

// Reconcile brings the store in line with root. The returned error is
// non-nil only when ctx ends; counts up to that point are still returned.
func (r *Reconciler) Reconcile(
	ctx context.Context,
	root *library.Category,
	persistedCategories []*library.Category,
	persistedBooks []*library.Book,
	emit Emitter,
) (Result, error) {
	var res Result

	scannedCategories, scannedBooks := library.Flatten(root)

	if err := r.reconcileBooks(ctx, scannedBooks, persistedBooks, emit, &res); err != nil {
		return res, err
	}
	if err := r.reconcileCategories(ctx, scannedCategories, persistedCategories, emit, &res); err != nil {
		return res, err
	}
	if err := r.reconcileRelations(ctx, root, emit, &res); err != nil {
		return res, err
	}

	logging.Info("Reconciliation: %+v, %d relations, %d failures", res.Synced, res.Relations, res.Failures)
	return res, nil
}

func (r *Reconciler) reconcileBooks(
	ctx context.Context,
	scanned, persisted []*library.Book,
	emit Emitter,
	res *Result,
) error {
	existing := make(map[string]*library.Book, len(persisted))
	for _, b := range persisted {
		existing[b.ID] = b
	}
	seen := make(map[string]struct{}, len(scanned))

	for _, b := range scanned {
		if err := ctx.Err(); err != nil {
			return err
		}
		seen[b.ID] = struct{}{}

		old, ok := existing[b.ID]
		if !ok {
			r.addBook(ctx, b, emit, res)
			continue
		}
		n, err := r.updateBook(ctx, old, b)
		if err != nil {
			r.fail(emit, res, "book", "update", b.Title, err)
			continue
		}
		if n > 0 {
			res.Synced.UpdatedBooks++
			metrics.ReconcileChangesTotal.WithLabelValues("book", "update").Inc()
			emit.send(library.EventSuccess, "Updated book: %s", b.Title)
		}
	}

	for _, b := range persisted {
		if _, ok := seen[b.ID]; ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.store.DeleteBook(ctx, b.ID); err != nil {
			if errors.Is(err, library.ErrNotFound) {
				continue
			}
			r.fail(emit, res, "book", "delete", b.Title, err)
			continue
		}
		if r.cleaner != nil {
			r.cleaner.ClearBookCache(b.ID)
		}
		res.Synced.DeletedBooks++
		metrics.ReconcileChangesTotal.WithLabelValues("book", "delete").Inc()
		emit.send(library.EventSuccess, "Deleted book: %s", b.Title)
	}
	return nil
}

func (r *Reconciler) addBook(ctx context.Context, b *library.Book, emit Emitter, res *Result) {
	if err := r.store.AddBook(ctx, b); err != nil {
		if errors.Is(err, library.ErrDuplicateID) {
			logging.Debug("Book %s already stored", b.ID)
			return
		}
		r.fail(emit, res, "book", "add", b.Title, err)
		return
	}
	res.Synced.AddedBooks++
	metrics.ReconcileChangesTotal.WithLabelValues("book", "add").Inc()
	emit.send(library.EventSuccess, "Added book: %s", b.Title)

	if r.covers != nil {
		if _, err := r.covers.GenerateCover(ctx, b); err != nil {
			logging.Warn("Cover generation failed for %s: %v", b.Path, err)
		}
	}
}

// updateBook writes b over old when its pages changed and returns the
// number of rows written. PDF books are never updated.
func (r *Reconciler) updateBook(ctx context.Context, old, b *library.Book) (int, error) {
	if b.IsPDF() {
		return 0, nil
	}
	if old.PageCount == b.PageCount && old.PagesEqual(b) {
		return 0, nil
	}
	if err := r.store.UpdateBook(ctx, b); err != nil {
		return 0, err
	}
	if r.cleaner != nil {
		r.cleaner.ClearBookCache(b.ID)
	}
	return 1, nil
}

func (r *Reconciler) reconcileCategories(
	ctx context.Context,
	scanned, persisted []*library.Category,
	emit Emitter,
	res *Result,
) error {
	existing := make(map[string]*library.Category, len(persisted))
	for _, c := range persisted {
		existing[c.ID] = c
	}
	seen := make(map[string]struct{}, len(scanned))

	for _, c := range scanned {
		if err := ctx.Err(); err != nil {
			return err
		}
		seen[c.ID] = struct{}{}

		old, ok := existing[c.ID]
		if !ok {
			// The snapshot may be stale; ask the store again.
			current, err := r.store.GetCategory(ctx, c.ID)
			switch {
			case err == nil:
				old = current
			case errors.Is(err, library.ErrNotFound):
				r.addCategory(ctx, c, emit, res)
				continue
			default:
				r.fail(emit, res, "category", "add", c.Name, err)
				continue
			}
		}

		if old.Name == c.Name && old.Path == c.Path {
			continue
		}
		if err := r.store.UpdateCategory(ctx, c); err != nil {
			r.fail(emit, res, "category", "update", c.Name, err)
			continue
		}
		metrics.ReconcileChangesTotal.WithLabelValues("category", "update").Inc()
		emit.send(library.EventSuccess, "Updated category: %s", c.Name)
	}

	for _, c := range persisted {
		if _, ok := seen[c.ID]; ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.store.DeleteCategory(ctx, c.ID); err != nil {
			if errors.Is(err, library.ErrNotFound) {
				continue
			}
			r.fail(emit, res, "category", "delete", c.Name, err)
			continue
		}
		res.Synced.DeletedCategories++
		metrics.ReconcileChangesTotal.WithLabelValues("category", "delete").Inc()
		emit.send(library.EventSuccess, "Deleted category: %s", c.Name)
	}
	return nil
}

func (r *Reconciler) addCategory(ctx context.Context, c *library.Category, emit Emitter, res *Result) {
	if err := r.store.AddCategory(ctx, c); err != nil {
		if errors.Is(err, library.ErrDuplicateID) {
			logging.Debug("Category %s already stored", c.ID)
			return
		}
		r.fail(emit, res, "category", "add", c.Name, err)
		return
	}
	res.Synced.AddedCategories++
	metrics.ReconcileChangesTotal.WithLabelValues("category", "add").Inc()
	emit.send(library.EventSuccess, "Added category: %s", c.Name)
}

func (r *Reconciler) reconcileRelations(ctx context.Context, root *library.Category, emit Emitter, res *Result) error {
	for _, edge := range library.Edges(root) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.store.AddRelation(ctx, edge); err != nil {
			r.fail(emit, res, "relation", "add", edge.ParentID+" -> "+edge.ChildID, err)
			continue
		}
		res.Relations++
	}
	return nil
}

func (r *Reconciler) fail(emit Emitter, res *Result, entity, action, name string, err error) {
	res.Failures++
	metrics.ReconcileFailuresTotal.WithLabelValues(entity, action).Inc()
	logging.Warn("Failed to %s %s %s: %v", action, entity, name, err)
	emit.send(library.EventWarn, "Failed to %s %s %s: %v", action, entity, name, err)
}
