package opsfeed

import (
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrNilBus       = errors.New("bus is nil")
	ErrNilPublisher = errors.New("publisher is nil")
)

// forwardTopicPrefix namespaces the watermill topics carrying forwarded bus
// events.
const forwardTopicPrefix = "opsfeed."

// DefaultForwardTopics is the set of bus topics a Forwarder bridges when none
// are given explicitly.
var DefaultForwardTopics = []string{
	TopicConnected,
	TopicDisconnected,
	TopicError,
	TopicSimulationComplete,
	TopicStreamToken,
	TopicStreamSection,
	TopicStreamStep,
	TopicStreamComplete,
}

// ForwardedEvent is the JSON payload of a forwarded watermill message.
type ForwardedEvent struct {
	Topic   string `json:"topic"`
	Payload any    `json:"payload"`
}

// Forwarder republishes bus topics onto a watermill publisher, so consumers
// doing heavier work (rendering, export) run decoupled from the read loop.
// Publish failures are logged and dropped; the read loop never blocks or
// faults on a slow consumer.
type Forwarder struct {
	pub  message.Publisher
	subs []*Subscription
	log  zerolog.Logger
}

func NewForwarder(bus *Bus, pub message.Publisher, topics ...string) (*Forwarder, error) {
	if bus == nil {
		return nil, ErrNilBus
	}
	if pub == nil {
		return nil, ErrNilPublisher
	}
	if len(topics) == 0 {
		topics = DefaultForwardTopics
	}
	f := &Forwarder{
		pub: pub,
		log: log.With().Str("component", "opsfeed").Logger(),
	}
	for _, topic := range topics {
		topic := topic
		f.subs = append(f.subs, bus.Subscribe(topic, func(payload any) {
			f.forward(topic, payload)
		}))
	}
	return f, nil
}

func (f *Forwarder) forward(topic string, payload any) {
	b, err := json.Marshal(ForwardedEvent{Topic: topic, Payload: payload})
	if err != nil {
		f.log.Warn().Err(err).Str("topic", topic).Msg("forwarder: marshal failed")
		return
	}
	msg := message.NewMessage(uuid.NewString(), b)
	if err := f.pub.Publish(forwardTopicPrefix+topic, msg); err != nil {
		f.log.Warn().Err(err).Str("topic", topic).Msg("forwarder: publish failed")
	}
}

// Close detaches the forwarder from the bus. The publisher is owned by the
// caller and stays open.
func (f *Forwarder) Close() {
	if f == nil {
		return
	}
	for _, s := range f.subs {
		s.Cancel()
	}
	f.subs = nil
}

// ForwardTopic returns the watermill topic a bus topic is forwarded on.
func ForwardTopic(busTopic string) string {
	return forwardTopicPrefix + busTopic
}
