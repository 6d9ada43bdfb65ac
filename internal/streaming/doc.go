/*
Package streaming writes server-sent events (SSE) to HTTP clients.

Long-running operations such as a library scan report progress as a
sequence of JSON events. EventStream frames each value as a "data:" line,
flushes it immediately, and bounds every write with a timeout so a client
that stops reading cannot hold the handler goroutine forever.

# Usage

	stream, err := streaming.NewEventStream(r.Context(), w, streaming.DefaultConfig())
	if err != nil {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	defer stream.Close()

	for ev := range events {
		if err := stream.Send(ev); err != nil {
			return // client gone or too slow
		}
	}

# Heartbeats

When no event has been written for HeartbeatInterval, a comment line
(": keep-alive") is sent. Clients ignore comments, but proxies see traffic
and keep the connection open.

# Errors

	ErrClientGone        the request context was canceled
	ErrWriteTimeout      a write exceeded WriteTimeout
	ErrStreamClosed      Send after Close
	ErrFlushUnsupported  the ResponseWriter cannot flush

Responses must not be compressed by intermediate middleware; the
compression middleware in this module skips text/event-stream.
*/
package streaming
