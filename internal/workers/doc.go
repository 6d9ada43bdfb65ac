/*
Package workers sizes and runs the bounded worker pool used for rendering
covers, page thumbnails and PDF page SVGs.

# Sizing

Count and ForCPU derive a worker count from GOMAXPROCS,
which Go 1.19+ sets from the container CPU limit, rather than from
runtime.NumCPU, which reports the host:

	numWorkers := workers.ForCPU(8) // one per available CPU, at most 8

RENDER_WORKERS overrides the computed value (still capped by the limit).

# Pool

A Pool starts its goroutines on the first Submit and reclaims them after
IdleTimeout with no active task. Do adds in-flight deduplication on top:

	path, err := workers.Do(ctx, pool, "cover:"+book.ID, func(ctx context.Context) (string, error) {
	    return renderCover(ctx, book)
	})

Concurrent callers with the same key share one execution and one result.
Shutdown drains every submitted task before stopping the workers; after
it, Submit returns ErrPoolClosed.

When PoolConfig.Enabled is false the pool runs tasks inline on the caller's
goroutine, which is how the use_thread_pool setting is honoured.
*/
package workers
