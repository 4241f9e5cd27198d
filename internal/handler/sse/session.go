// Package sse owns the server side of one Server-Sent Events connection.
package sse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	llmModels "llmarena/internal/domain/models/llm"
	"llmarena/internal/observability"
)

// State is the lifecycle state of a Session
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	default:
		return "CLOSED"
	}
}

// ErrStreamingUnsupported is returned when the ResponseWriter cannot flush
var ErrStreamingUnsupported = errors.New("response writer does not support flushing")

var errSessionClosed = errors.New("sse session closed")

// Session relays stream events to one client.
//
// Every frame is stamped with the stream's key triple and emit time. The
// session closes exactly once, on whichever comes first: a terminal event
// (complete or error), a failed write, a failed heartbeat, or the request
// context ending. Nothing is written after close.
type Session struct {
	mu       sync.Mutex
	w        http.ResponseWriter
	flusher  http.Flusher
	meta     llmModels.StreamMeta
	state    State
	terminal bool

	heartbeat *Heartbeat
	closeOnce sync.Once
	done      chan struct{}

	metrics *observability.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewSession writes the SSE response headers, starts the heartbeat and
// begins watching ctx for client disconnect.
func NewSession(
	ctx context.Context,
	w http.ResponseWriter,
	meta llmModels.StreamMeta,
	cfg Config,
	metrics *observability.Metrics,
	logger *slog.Logger,
) (*Session, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}

	s := &Session{
		w:         w,
		flusher:   flusher,
		meta:      meta,
		state:     StateConnecting,
		heartbeat: NewHeartbeat(cfg.heartbeatInterval()),
		done:      make(chan struct{}),
		metrics:   metrics,
		logger: logger.With(
			"task_id", meta.TaskID,
			"model_key", meta.ModelKey,
			"session_id", meta.SessionID,
		),
		now: time.Now,
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	s.mu.Lock()
	s.state = StateOpen
	s.mu.Unlock()

	if metrics != nil {
		metrics.ActiveSSESessions.Inc()
	}

	s.heartbeat.Start(s, s.Close, s.logger)

	go func() {
		select {
		case <-ctx.Done():
			s.logger.Info("sse client disconnected")
			s.Close()
		case <-s.done:
		}
	}()

	s.logger.Debug("sse session opened")
	return s, nil
}

// State returns the current lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed when the session closes
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) Init(event llmModels.StreamInitEvent) {
	s.send(llmModels.SSEEventInit, event)
}

func (s *Session) Status(event llmModels.StreamStatusEvent) {
	s.send(llmModels.SSEEventStatus, event)
}

func (s *Session) Chunk(event llmModels.StreamChunkEvent) {
	s.send(llmModels.SSEEventChunk, event)
}

// Error emits stream.error and closes the session
func (s *Session) Error(event llmModels.StreamErrorEvent) {
	s.send(llmModels.SSEEventError, event)
}

// Complete emits stream.complete and closes the session
func (s *Session) Complete(event llmModels.StreamCompleteEvent) {
	s.send(llmModels.SSEEventComplete, event)
}

// WriteKeepAlive implements KeepAliveWriter
func (s *Session) WriteKeepAlive() error {
	return s.write(llmModels.SSEEventKeepAlive, llmModels.StreamKeepAliveEvent{
		Timestamp: s.now().UnixMilli(),
	})
}

// Close tears the session down. Only the first call has any effect.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.heartbeat.Stop()

		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()

		close(s.done)
		if s.metrics != nil {
			s.metrics.ActiveSSESessions.Dec()
		}
		s.logger.Debug("sse session closed")
	})
}

// send writes one event and closes the session after a terminal event or a failed write
func (s *Session) send(event string, data interface{}) {
	err := s.write(event, data)
	switch {
	case errors.Is(err, errSessionClosed):
		return
	case err != nil:
		s.logger.Info("sse write failed, closing", "event", event, "error", err)
		s.Close()
	case llmModels.IsTerminalEvent(event):
		s.Close()
	}
}

func (s *Session) write(event string, data interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateOpen || s.terminal {
		return errSessionClosed
	}

	meta := s.meta
	meta.EmittedAt = s.now()
	stamped, err := llmModels.StampEvent(meta, data)
	if err != nil {
		return err
	}
	frame, err := llmModels.FormatSSE(event, stamped)
	if err != nil {
		return err
	}

	if llmModels.IsTerminalEvent(event) {
		s.terminal = true
	}

	if _, err := io.WriteString(s.w, frame); err != nil {
		return fmt.Errorf("write %s: %w", event, err)
	}
	s.flusher.Flush()

	if s.metrics != nil {
		s.metrics.StreamEvents.WithLabelValues(event).Inc()
	}
	return nil
}
