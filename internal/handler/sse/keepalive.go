package sse

import (
	"log/slog"
	"sync"
	"time"
)

// KeepAliveWriter writes one heartbeat frame.
// An error means the connection is gone.
type KeepAliveWriter interface {
	WriteKeepAlive() error
}

// Heartbeat sends keep-alive frames at a fixed interval until stopped or a write fails.
type Heartbeat struct {
	interval time.Duration
	done     chan struct{}
	stopOnce sync.Once
}

// NewHeartbeat creates a stopped heartbeat
func NewHeartbeat(interval time.Duration) *Heartbeat {
	return &Heartbeat{
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start launches the heartbeat goroutine.
// onDead runs from that goroutine when a write fails.
func (h *Heartbeat) Start(writer KeepAliveWriter, onDead func(), logger *slog.Logger) {
	ticker := time.NewTicker(h.interval)

	go func() {
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := writer.WriteKeepAlive(); err != nil {
					logger.Debug("keep-alive write failed, stopping", "error", err)
					onDead()
					return
				}
			case <-h.done:
				return
			}
		}
	}()
}

// Stop terminates the heartbeat. Safe to call multiple times.
func (h *Heartbeat) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}
