// Package treecache holds an in-memory, read-optimized copy of the stored
// library tree.
//
// The cache is rebuilt from the persistence layer after every write and
// swapped in atomically: readers see either the previous tree or the new
// one, never a partially assembled tree. Snapshots are shared between
// readers and must be treated as read-only.
package treecache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"book-library/internal/library"
	"book-library/internal/logging"
	"book-library/internal/metrics"
)

// Source supplies the stored rows a cache is assembled from.
type Source interface {
	GetAllCategories(ctx context.Context) ([]*library.Category, error)
	GetAllBooks(ctx context.Context) ([]*library.Book, error)
	GetAllRelations(ctx context.Context) ([]library.Relation, error)
}

// State describes the cache contents.
type State struct {
	Populated  bool      `json:"populated"`
	Roots      int       `json:"roots"`
	Categories int       `json:"categories"`
	Books      int       `json:"books"`
	BuiltAt    time.Time `json:"built_at,omitempty"`
}

type snapshot struct {
	roots      []*library.Category
	categories []*library.Category
	books      []*library.Book
	catByID    map[string]*library.Category
	bookByID   map[string]*library.Book
	builtAt    time.Time
}

// Cache is safe for concurrent use.
type Cache struct {
	src  Source
	snap atomic.Pointer[snapshot]

	// buildMu serializes builds so a slow build cannot overwrite a newer one.
	buildMu sync.Mutex
}

// New returns an empty cache over src.
func New(src Source) *Cache {
	return &Cache{src: src}
}

// Build assembles a fresh tree from the source and swaps it in. On error
// the current contents are kept.
func (c *Cache) Build(ctx context.Context) error {
	c.buildMu.Lock()
	defer c.buildMu.Unlock()

	start := time.Now()
	snap, err := c.assemble(ctx)
	metrics.TreeCacheRebuildDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.TreeCacheRebuildsTotal.WithLabelValues("error").Inc()
		return err
	}

	c.snap.Store(snap)
	metrics.TreeCacheRebuildsTotal.WithLabelValues("ok").Inc()
	metrics.TreeCacheEntities.WithLabelValues("category").Set(float64(len(snap.categories)))
	metrics.TreeCacheEntities.WithLabelValues("book").Set(float64(len(snap.books)))
	logging.Debug("Tree cache built: %d roots, %d categories, %d books in %v",
		len(snap.roots), len(snap.categories), len(snap.books), time.Since(start))
	return nil
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.snap.Store(nil)
}

// Rebuild replaces the cache with a fresh build. The new tree is fully
// assembled before it replaces the old one; if the build fails the cache
// is left empty.
func (c *Cache) Rebuild(ctx context.Context) error {
	if err := c.Build(ctx); err != nil {
		c.Clear()
		return err
	}
	return nil
}

func (c *Cache) assemble(ctx context.Context) (*snapshot, error) {
	cats, err := c.src.GetAllCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	books, err := c.src.GetAllBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load books: %w", err)
	}
	rels, err := c.src.GetAllRelations(ctx)
	if err != nil {
		return nil, fmt.Errorf("load relations: %w", err)
	}

	// Work on copies; the children lists are rebuilt from relations.
	catByID := make(map[string]*library.Category, len(cats))
	order := make([]string, 0, len(cats))
	for _, src := range cats {
		if src == nil || src.IsDeleted {
			continue
		}
		cp := *src
		cp.SubCategories = []*library.Category{}
		cp.Books = []*library.Book{}
		catByID[cp.ID] = &cp
		order = append(order, cp.ID)
	}

	bookByID := make(map[string]*library.Book, len(books))
	for _, b := range books {
		if b == nil || b.IsDeleted {
			continue
		}
		bookByID[b.ID] = b
	}

	childCats := make(map[string][]string)
	isChild := make(map[string]bool)
	for _, r := range rels {
		parent, ok := catByID[r.ParentID]
		if !ok {
			continue
		}
		switch r.Type {
		case library.CategoryCategory:
			if _, ok := catByID[r.ChildID]; ok && r.ChildID != r.ParentID {
				childCats[r.ParentID] = append(childCats[r.ParentID], r.ChildID)
				isChild[r.ChildID] = true
			}
		case library.CategoryBook:
			if b, ok := bookByID[r.ChildID]; ok {
				parent.Books = append(parent.Books, b)
			}
		}
	}

	snap := &snapshot{
		catByID:  make(map[string]*library.Category, len(catByID)),
		bookByID: make(map[string]*library.Book, len(bookByID)),
		builtAt:  time.Now(),
	}
	for _, id := range order {
		if !isChild[id] {
			snap.roots = append(snap.roots, catByID[id])
		}
	}

	// Breadth-first attach; the visited set drops duplicate and cyclic edges.
	visited := make(map[string]bool, len(catByID))
	queue := make([]*library.Category, 0, len(snap.roots))
	for _, r := range snap.roots {
		visited[r.ID] = true
		queue = append(queue, r)
	}
	for len(queue) > 0 {
		cat := queue[0]
		queue = queue[1:]

		snap.categories = append(snap.categories, cat)
		snap.catByID[cat.ID] = cat
		for _, b := range cat.Books {
			if _, ok := snap.bookByID[b.ID]; !ok {
				snap.bookByID[b.ID] = b
				snap.books = append(snap.books, b)
			}
		}

		for _, childID := range childCats[cat.ID] {
			if visited[childID] {
				continue
			}
			visited[childID] = true
			child := catByID[childID]
			cat.SubCategories = append(cat.SubCategories, child)
			queue = append(queue, child)
		}
	}

	if unreachable := len(catByID) - len(visited); unreachable > 0 {
		logging.Warn("Tree cache: %d categories are unreachable from any root (cyclic relations)", unreachable)
	}
	return snap, nil
}

func (c *Cache) load() *snapshot {
	return c.snap.Load()
}

// Roots returns the top-level categories.
func (c *Cache) Roots() []*library.Category {
	s := c.load()
	if s == nil {
		return []*library.Category{}
	}
	return append([]*library.Category(nil), s.roots...)
}

// AllBooks returns every book in the tree, each once.
func (c *Cache) AllBooks() []*library.Book {
	s := c.load()
	if s == nil {
		return []*library.Book{}
	}
	return append([]*library.Book(nil), s.books...)
}

// BookByID looks a book up by ID.
func (c *Cache) BookByID(id string) (*library.Book, bool) {
	s := c.load()
	if s == nil {
		return nil, false
	}
	b, ok := s.bookByID[id]
	return b, ok
}

// AllCategories returns every category in the tree in breadth-first order.
func (c *Cache) AllCategories() []*library.Category {
	s := c.load()
	if s == nil {
		return []*library.Category{}
	}
	return append([]*library.Category(nil), s.categories...)
}

// CategoryByID looks a category up by ID.
func (c *Cache) CategoryByID(id string) (*library.Category, bool) {
	s := c.load()
	if s == nil {
		return nil, false
	}
	cat, ok := s.catByID[id]
	return cat, ok
}

// ChildrenOf returns the direct sub-categories of a category.
func (c *Cache) ChildrenOf(id string) ([]*library.Category, bool) {
	cat, ok := c.CategoryByID(id)
	if !ok {
		return []*library.Category{}, false
	}
	return append([]*library.Category(nil), cat.SubCategories...), true
}

// CategoryBooks returns the books of a category and all its descendants,
// each once.
func (c *Cache) CategoryBooks(id string) ([]*library.Book, bool) {
	cat, ok := c.CategoryByID(id)
	if !ok {
		return []*library.Book{}, false
	}
	books := library.CollectBooks(cat)
	if books == nil {
		books = []*library.Book{}
	}
	return books, true
}

// State reports whether the cache is populated and how large it is.
func (c *Cache) State() State {
	s := c.load()
	if s == nil {
		return State{}
	}
	return State{
		Populated:  true,
		Roots:      len(s.roots),
		Categories: len(s.categories),
		Books:      len(s.books),
		BuiltAt:    s.builtAt,
	}
}
