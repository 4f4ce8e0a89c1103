package opsfeed

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Client owns the single feed connection, its lifecycle state and the retry
// schedule. All inbound frames are processed one at a time on the read-loop
// goroutine, so registry mutations are naturally serialized.
type Client struct {
	cfg        Config
	bus        *Bus
	registry   *Registry
	classifier *Classifier
	dialer     *websocket.Dialer
	retry      *retrier
	log        zerolog.Logger

	mu      sync.Mutex
	state   ConnState
	conn    *websocket.Conn
	closing bool
}

func NewClient(cfg Config, bus *Bus, registry *Registry) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("feed URL is required")
	}
	if bus == nil {
		return nil, errors.New("bus is nil")
	}
	if registry == nil {
		return nil, errors.New("registry is nil")
	}
	cfg = cfg.withDefaults()
	c := &Client{
		cfg:        cfg,
		bus:        bus,
		registry:   registry,
		classifier: NewClassifier(),
		dialer:     &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		retry:      newRetrier(cfg.RetryDelay, cfg.MaxRetries),
		state:      StateDisconnected,
		log:        log.With().Str("component", "opsfeed").Str("url", cfg.URL).Logger(),
	}
	if cfg.AutoConnect {
		c.Connect()
	}
	return c, nil
}

// State reports the current connection lifecycle state.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect opens the feed connection. It is idempotent: a no-op while
// connecting or connected. Calling it after the retry budget was exhausted
// resets the budget (operator action). Dial failures take the same path as
// an abnormal close and feed the retry schedule; they are not returned here.
func (c *Client) Connect() {
	c.mu.Lock()
	if c.state == StateConnecting || c.state == StateConnected {
		state := c.state
		c.mu.Unlock()
		c.log.Debug().Stringer("state", state).Msg("connect is a no-op")
		return
	}
	if c.state == StateFailed {
		c.retry.reset()
	}
	c.closing = false
	c.state = StateConnecting
	c.mu.Unlock()
	go c.dial()
}

// Disconnect closes the transport cleanly. A clean close never schedules a
// retry, and any pending retry is cancelled.
func (c *Client) Disconnect() {
	c.retry.cancel()
	c.mu.Lock()
	switch c.state {
	case StateConnected:
		c.closing = true
		conn := c.conn
		c.mu.Unlock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = conn.Close()
		// the read loop observes the close and finishes the transition
	case StateConnecting:
		c.closing = true
		c.mu.Unlock()
		// an in-flight dial observes closing and discards its connection
	case StateFailed:
		c.state = StateDisconnected
		c.mu.Unlock()
	default:
		c.mu.Unlock()
	}
}

func (c *Client) dial() {
	conn, resp, err := c.dialer.Dial(c.cfg.URL, nil)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		c.log.Warn().Err(err).Msg("dial failed")
		c.bus.Publish(TopicError, ErrorNotification{Message: err.Error()})
		c.finishClose(CloseInfo{Code: websocket.CloseAbnormalClosure, Reason: err.Error()})
		return
	}

	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		_ = conn.Close()
		c.finishClose(CloseInfo{Code: websocket.CloseNormalClosure, Reason: "client disconnect", Clean: true})
		return
	}
	c.conn = conn
	c.state = StateConnected
	c.retry.reset()
	c.mu.Unlock()

	c.log.Info().Msg("connected")
	c.bus.Publish(TopicConnected, ConnectedNotification{URL: c.cfg.URL})
	go c.readLoop(conn)
}

// readLoop is the single consumer of inbound frames. Nothing in the
// per-frame path blocks or escapes as a fault that could tear the loop down.
func (c *Client) readLoop(conn *websocket.Conn) {
	info := CloseInfo{Code: websocket.CloseAbnormalClosure}
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				info.Code = ce.Code
				info.Reason = ce.Text
			} else {
				info.Reason = err.Error()
			}
			normal := websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
			if !normal && !c.isClosing() {
				c.bus.Publish(TopicError, ErrorNotification{Message: err.Error()})
			}
			break
		}
		c.handleFrame(data)
	}
	_ = conn.Close()
	c.finishClose(info)
}

func (c *Client) handleFrame(data []byte) {
	ev, topic, err := c.classifier.Classify(data)
	if err != nil {
		c.log.Warn().Err(err).Msg("dropping malformed frame")
		return
	}
	c.bus.Publish(TopicMessage, Message{Raw: data, Event: ev})
	if topic != "" {
		c.bus.Publish(topic, ev)
	}
	switch ev := ev.(type) {
	case Token:
		if ev.StreamID != "" {
			c.registry.RecordToken(ev.StreamID, ev.Content, ev.Section)
		}
	case ReasoningStep:
		if ev.StreamID != "" {
			c.registry.RecordStep(ev.StreamID, ev.Step, ev.Content)
		}
	case StreamComplete:
		if ev.StreamID != "" {
			c.registry.RecordCompletion(ev.StreamID, ev.Success, ev.Payload)
		}
	}
}

// finishClose performs the transition out of Connected/Connecting once the
// transport is gone, and feeds the retry schedule for unclean closes.
func (c *Client) finishClose(info CloseInfo) {
	c.mu.Lock()
	if c.closing {
		info.Clean = true
	}
	c.closing = false
	c.conn = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	c.log.Info().Int("code", info.Code).Str("reason", info.Reason).Bool("clean", info.Clean).Msg("disconnected")
	c.bus.Publish(TopicDisconnected, info)
	if !info.Clean {
		c.scheduleRetry()
	}
}

func (c *Client) scheduleRetry() {
	if err := c.retry.schedule(c.Connect); err != nil {
		c.mu.Lock()
		c.state = StateFailed
		c.mu.Unlock()
		c.log.Error().Int("attempts", c.cfg.MaxRetries).Msg("reconnect attempts exhausted")
		c.bus.Publish(TopicError, ErrorNotification{Message: err.Error(), Terminal: true})
		return
	}
	c.log.Info().
		Int("attempt", c.retry.attemptCount()).
		Int("max", c.cfg.MaxRetries).
		Dur("delay", c.cfg.RetryDelay).
		Msg("reconnect scheduled")
}

func (c *Client) isClosing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closing
}
