package opsfeed

import (
	"time"
)

// ConnState is the lifecycle state of the feed connection.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	// StateFailed is terminal: the retry ceiling was reached and only an
	// explicit Connect call leaves it.
	StateFailed
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Config captures all construction-time inputs for a Client. It is immutable
// after NewClient.
type Config struct {
	// URL is the websocket endpoint of the ops feed (ws:// or wss://).
	URL string
	// AutoConnect dials immediately from NewClient.
	AutoConnect bool
	// RetryDelay is the fixed interval between reconnect attempts.
	RetryDelay time.Duration
	// MaxRetries caps consecutive reconnect attempts before the connection
	// is marked failed.
	MaxRetries int
}

const (
	defaultRetryDelay = 3 * time.Second
	defaultMaxRetries = 5
)

func (c Config) withDefaults() Config {
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaultRetryDelay
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	return c
}

// Bus topics for connection lifecycle and raw envelope fan-out.
const (
	TopicConnected          = "connected"
	TopicDisconnected       = "disconnected"
	TopicError              = "error"
	TopicMessage            = "message"
	TopicLLMReasoning       = "llm_reasoning"
	TopicLLMTestStream      = "llm_test_stream"
	TopicTestComplete       = "test_complete"
	TopicSimulationEvent    = "simulation_event"
	TopicSimulationComplete = "simulation_complete"
)

// Bus topics for stream registry notifications.
const (
	TopicStreamToken    = "stream.token"
	TopicStreamSection  = "stream.section"
	TopicStreamStep     = "stream.step"
	TopicStreamComplete = "stream.complete"
)

// ConnectedNotification is the payload on TopicConnected.
type ConnectedNotification struct {
	URL string `json:"url"`
}

// CloseInfo is the payload on TopicDisconnected.
type CloseInfo struct {
	Code   int    `json:"code"`
	Reason string `json:"reason,omitempty"`
	// Clean marks an operator-initiated close; only unclean closes are
	// eligible for retry.
	Clean bool `json:"clean"`
}

// ErrorNotification is the payload on TopicError. Terminal is set when the
// retry ceiling was reached and the connection entered StateFailed.
type ErrorNotification struct {
	Message  string `json:"message"`
	Terminal bool   `json:"terminal,omitempty"`
}
