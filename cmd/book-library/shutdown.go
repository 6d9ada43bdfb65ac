package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"book-library/internal/media"
	"book-library/internal/startup"
)

// handleShutdown waits for SIGINT or SIGTERM and stops the components.
// done is closed when every step has run.
func handleShutdown(done chan<- struct{}, c components) {
	defer close(done)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())
	shutdown(c)
}

// shutdown refuses new scans before the HTTP server and the database go
// away.
func shutdown(c components) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	startup.ShutdownStep("Stop indexer", func() error {
		c.cancelRuns()
		return c.indexer.Stop(ctx)
	})
	startup.ShutdownStep("Shut down HTTP server", func() error {
		return c.server.Shutdown(ctx)
	})
	if c.metrics != nil {
		startup.ShutdownStep("Shut down metrics server", func() error {
			c.collector.Stop()
			return c.metrics.Shutdown(ctx)
		})
	}
	startup.ShutdownStep("Drain worker pool", func() error {
		defer c.monitor.Stop()
		return c.pool.Shutdown(ctx)
	})
	startup.ShutdownStep("Release renderer", func() error {
		c.svg.Cleanup()
		media.ShutdownVips()
		return nil
	})
	startup.ShutdownStep("Close database", c.db.Close)

	startup.LogShutdownComplete()
}
