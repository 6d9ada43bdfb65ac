package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	volumes := []string{"library", "cache", "database", "unknown"}
	events := []string{"stale", "scheduled", "recovered", "exhausted"}
	for _, op := range []string{"stat", "open", "readdir"} {
		for _, vol := range volumes {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
			for _, e := range events {
				FilesystemRetryEvents.WithLabelValues(op, vol, e)
			}
		}
	}

	for _, kind := range []string{"category", "image_book", "pdf_book"} {
		ScannerEntitiesScanned.WithLabelValues(kind)
	}
	for _, t := range []string{"image_book", "pdf_book"} {
		ScannerAnalysisDuration.WithLabelValues(t)
		LibraryBooksTotal.WithLabelValues(t)
	}

	for _, entity := range []string{"category", "book", "relation"} {
		for _, action := range []string{"add", "update", "delete"} {
			ReconcileChangesTotal.WithLabelValues(entity, action)
			ReconcileFailuresTotal.WithLabelValues(entity, action)
		}
	}

	for _, status := range []string{"ok", "error"} {
		IndexerRunsTotal.WithLabelValues(status)
		TreeCacheRebuildsTotal.WithLabelValues(status)
		TranscoderJobsTotal.WithLabelValues(status)
	}
	for _, kind := range []string{"category", "book"} {
		TreeCacheEntities.WithLabelValues(kind)
	}

	for _, kind := range []string{"cover", "thumbnail", "svg"} {
		RenderGenerationsTotal.WithLabelValues(kind, "success")
		RenderGenerationsTotal.WithLabelValues(kind, "error")
		RenderGenerationDuration.WithLabelValues(kind)
		RenderCacheHits.WithLabelValues(kind)
		RenderCacheMisses.WithLabelValues(kind)
	}

	for _, status := range []string{"ok", "error", "canceled"} {
		WorkerPoolTasksTotal.WithLabelValues(status)
	}

	for _, op := range []string{"initialize_schema", "get_all_categories", "get_all_books",
		"get_all_relations", "add_category", "add_book", "update_category", "update_book",
		"delete_category", "delete_book", "add_relation", "set_favorite", "get_metadata", "set_metadata", "begin_transaction",
		"commit", "rollback"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	for _, t := range []string{"commit", "rollback"} {
		DBTransactionDuration.WithLabelValues(t)
	}
}
