package sse

import "time"

// DefaultHeartbeatInterval keeps idle streams alive through proxies with ~30s idle timeouts
const DefaultHeartbeatInterval = 15 * time.Second

// Config holds configuration for SSE sessions
type Config struct {
	// HeartbeatInterval is how often stream.keepalive is emitted while a session is open
	HeartbeatInterval time.Duration
}

// DefaultConfig returns the default SSE configuration
func DefaultConfig() Config {
	return Config{HeartbeatInterval: DefaultHeartbeatInterval}
}

func (c Config) heartbeatInterval() time.Duration {
	if c.HeartbeatInterval <= 0 {
		return DefaultHeartbeatInterval
	}
	return c.HeartbeatInterval
}
