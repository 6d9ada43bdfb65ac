package handlers

import (
	"context"

	"book-library/internal/database"
	"book-library/internal/filesystem"
	"book-library/internal/indexer"
	"book-library/internal/library"
	"book-library/internal/media"
	"book-library/internal/settings"
	"book-library/internal/treecache"
)

// Handlers serves the library API. Reads of the library tree go to the
// tree cache; writes go to the database and are followed by a cache
// rebuild.
type Handlers struct {
	db       *database.Database
	cache    *treecache.Cache
	indexer  *indexer.Indexer
	renderer *media.Renderer
	settings *settings.Store
	retry    filesystem.RetryConfig
}

func New(db *database.Database, cache *treecache.Cache, idx *indexer.Indexer, renderer *media.Renderer, store *settings.Store) *Handlers {
	return &Handlers{
		db:       db,
		cache:    cache,
		indexer:  idx,
		renderer: renderer,
		settings: store,
		retry:    filesystem.DefaultRetryConfig(),
	}
}

// lookupBook prefers the cache and falls back to the database while the
// cache is still empty.
func (h *Handlers) lookupBook(ctx context.Context, id string) (*library.Book, error) {
	if b, ok := h.cache.BookByID(id); ok {
		return b, nil
	}
	if h.cache.State().Populated {
		return nil, library.ErrNotFound
	}
	return h.db.GetBook(ctx, id)
}
