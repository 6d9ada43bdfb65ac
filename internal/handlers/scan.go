package handlers

import (
	"context"
	"net/http"

	"book-library/internal/library"
	"book-library/internal/logging"
	"book-library/internal/streaming"
)

// Scan runs a sync and streams its events to the client as Server-Sent
// Events. The sync is not tied to the request: a client that disconnects
// stops receiving events but the run finishes.
func (h *Handlers) Scan(w http.ResponseWriter, r *http.Request) {
	stream, err := streaming.NewEventStream(r.Context(), w, streaming.DefaultConfig())
	if err != nil {
		writeJSONError(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}
	defer stream.Close()

	clientGone := false
	_, err = h.indexer.SyncStream(context.WithoutCancel(r.Context()), func(ev library.Event) {
		if clientGone {
			return
		}
		if sendErr := stream.Send(ev); sendErr != nil {
			clientGone = true
			logging.Debug("Scan stream ended early: %v", sendErr)
		}
	})
	if err != nil {
		logging.Warn("Scan from %s failed: %v", r.RemoteAddr, err)
	}

	events, elapsed := stream.Stats()
	logging.Debug("Scan stream sent %d events in %v", events, elapsed)
}

// Sync runs a sync and returns its result once it has finished.
func (h *Handlers) Sync(w http.ResponseWriter, r *http.Request) {
	res, err := h.indexer.Sync(context.WithoutCancel(r.Context()))
	if err != nil {
		writeError(w, err, false)
		return
	}
	writeJSON(w, res)
}

// GetScanStatus reports the scan in progress and the last result.
func (h *Handlers) GetScanStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.indexer.GetStatus())
}
