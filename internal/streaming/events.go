package streaming

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"book-library/internal/logging"
)

var (
	// ErrWriteTimeout indicates that a single write took longer than the
	// configured timeout, usually because the client stopped reading.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrClientGone indicates that the client disconnected.
	ErrClientGone = errors.New("client disconnected")

	// ErrStreamClosed is returned by writes after Close.
	ErrStreamClosed = errors.New("stream closed")

	// ErrFlushUnsupported is returned when the ResponseWriter cannot flush.
	ErrFlushUnsupported = errors.New("response writer does not support flushing")
)

// Config configures an EventStream.
type Config struct {
	// WriteTimeout bounds a single write to the client.
	WriteTimeout time.Duration
	// HeartbeatInterval sends a comment line after this long without an
	// event so proxies keep the connection open. Zero disables heartbeats.
	HeartbeatInterval time.Duration
}

// DefaultConfig returns a 30s write timeout and 15s heartbeats.
func DefaultConfig() Config {
	return Config{
		WriteTimeout:      30 * time.Second,
		HeartbeatInterval: 15 * time.Second,
	}
}

// EventStream writes server-sent events to an HTTP response. It is safe
// for concurrent use.
type EventStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	ctx     context.Context
	cancel  context.CancelFunc
	config  Config

	mu        sync.Mutex
	closed    bool
	lastWrite time.Time
	events    int64
	startTime time.Time
}

// NewEventStream sets the SSE response headers and starts the heartbeat.
// The stream ends when ctx ends or Close is called.
func NewEventStream(ctx context.Context, w http.ResponseWriter, config Config) (*EventStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrFlushUnsupported
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultConfig().WriteTimeout
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	streamCtx, cancel := context.WithCancel(ctx)
	now := time.Now()
	s := &EventStream{
		w:         w,
		flusher:   flusher,
		ctx:       streamCtx,
		cancel:    cancel,
		config:    config,
		lastWrite: now,
		startTime: now,
	}

	if config.HeartbeatInterval > 0 {
		go s.heartbeat()
	}
	return s, nil
}

// Send writes v as one JSON-encoded "data:" event.
func (s *EventStream) Send(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("data: ")
	buf.Write(payload)
	buf.WriteString("\n\n")

	if err := s.write(buf.Bytes()); err != nil {
		return err
	}

	s.mu.Lock()
	s.events++
	s.mu.Unlock()
	return nil
}

// Comment writes an SSE comment line, which clients ignore.
func (s *EventStream) Comment(text string) error {
	text = strings.ReplaceAll(text, "\n", " ")
	return s.write([]byte(": " + text + "\n\n"))
}

// write performs one write and flush, bounded by WriteTimeout.
func (s *EventStream) write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStreamClosed
	}
	if err := s.ctx.Err(); err != nil {
		return s.contextError()
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.w.Write(p)
		if err == nil {
			s.flusher.Flush()
		}
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return err
		}
		s.lastWrite = time.Now()
		return nil
	case <-time.After(s.config.WriteTimeout):
		s.cancel()
		return ErrWriteTimeout
	case <-s.ctx.Done():
		return s.contextError()
	}
}

func (s *EventStream) heartbeat() {
	ticker := time.NewTicker(s.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			idle := time.Since(s.lastWrite)
			s.mu.Unlock()
			if idle < s.config.HeartbeatInterval {
				continue
			}
			if err := s.Comment("keep-alive"); err != nil {
				if !errors.Is(err, ErrStreamClosed) {
					logging.Debug("Event stream heartbeat failed: %v", err)
				}
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *EventStream) contextError() error {
	if s.ctx.Err() == context.Canceled {
		return ErrClientGone
	}
	return ErrWriteTimeout
}

// Done is closed when the client goes away or the stream is closed.
func (s *EventStream) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Close stops the heartbeat. Later writes fail with ErrStreamClosed.
func (s *EventStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.cancel()
	logging.Debug("Event stream closed: %d events in %v", s.events, time.Since(s.startTime))
	return nil
}

// Stats returns the number of events sent and the stream age.
func (s *EventStream) Stats() (events int64, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events, time.Since(s.startTime)
}
