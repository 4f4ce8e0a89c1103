package opsfeed

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Wire envelope, server to client. Only Type is required; the remaining
// fields are validated per type.
type envelope struct {
	Type     string          `json:"type"`
	StreamID string          `json:"stream_id"`
	Content  string          `json:"content"`
	Error    string          `json:"error"`
	Event    json.RawMessage `json:"event"`
}

// Inner reasoning event as emitted by the LLM streaming agents.
type llmEvent struct {
	Type     string `json:"type"`
	StreamID string `json:"stream_id"`
	Content  string `json:"content"`
	Section  string `json:"section"`
	Step     string `json:"step"`
	Decision string `json:"decision"`
}

// Simulation sub-event wrapping a nested reasoning event.
type simEvent struct {
	Type     string          `json:"type"`
	FlightID string          `json:"flight_id"`
	LLMEvent json.RawMessage `json:"llm_event"`
}

// compositeReasoningTypes is the explicit set of simulation sub-event types
// that carry nested per-flight reasoning streams. This is the extension
// point for additional agent producers.
var compositeReasoningTypes = map[string]struct{}{
	"llm_crew_reasoning": {},
	"llm_ops_reasoning":  {},
}

// compositeIDSeparator joins flight id and sub-event type into a stream
// identity, so two agents reasoning about the same flight stay distinct.
const compositeIDSeparator = "/"

// Classifier maps decoded wire envelopes onto normalized events and bus
// topics. It is stateless and safe for reuse across frames.
type Classifier struct {
	log zerolog.Logger
}

func NewClassifier() *Classifier {
	return &Classifier{log: log.With().Str("component", "opsfeed").Logger()}
}

// Classify decodes one wire frame. It returns the normalized event plus the
// bus topic for the envelope type; the topic is empty for unrecognized types
// (the caller still publishes those on TopicMessage). Decode failures return
// an error and no event; no fault escapes past this boundary.
func (c *Classifier) Classify(raw []byte) (Event, string, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, "", errors.Wrap(err, "decode envelope")
	}
	if env.Type == "" {
		return nil, "", errors.New("envelope missing type discriminator")
	}

	switch env.Type {
	case "llm_reasoning":
		inner, err := decodeInner(env.Event)
		if err != nil {
			return nil, "", errors.Wrap(err, "llm_reasoning event")
		}
		// identity rule 1: the nested event's own stream_id
		return normalizeInner(inner.StreamID, inner), TopicLLMReasoning, nil

	case "llm_test_stream":
		inner, err := decodeInner(env.Event)
		if err != nil {
			return nil, "", errors.Wrap(err, "llm_test_stream event")
		}
		// identity rule 2: the top-level stream_id
		return normalizeInner(env.StreamID, inner), TopicLLMTestStream, nil

	case "llm_test_complete":
		return StreamComplete{StreamID: env.StreamID, Success: true, Payload: env.Content}, TopicTestComplete, nil

	case "llm_test_error":
		return StreamComplete{StreamID: env.StreamID, Success: false, Payload: env.Error}, TopicTestComplete, nil

	case "simulation_event":
		return c.classifySimulation(env, raw)

	case "simulation_complete", "simulation_error":
		// bus-only bookkeeping, never routed into the registry
		return Unclassified{Type: env.Type, Raw: json.RawMessage(raw)}, TopicSimulationComplete, nil

	default:
		c.log.Info().Str("type", env.Type).Msg("unrecognized message type")
		return Unclassified{Type: env.Type, Raw: json.RawMessage(raw)}, "", nil
	}
}

func (c *Classifier) classifySimulation(env envelope, raw []byte) (Event, string, error) {
	var sim simEvent
	if len(env.Event) > 0 {
		if err := json.Unmarshal(env.Event, &sim); err != nil {
			return nil, "", errors.Wrap(err, "simulation_event payload")
		}
	}
	if _, ok := compositeReasoningTypes[sim.Type]; !ok || sim.FlightID == "" || len(sim.LLMEvent) == 0 {
		return Unclassified{Type: env.Type, Raw: json.RawMessage(raw)}, TopicSimulationEvent, nil
	}
	inner, err := decodeInner(sim.LLMEvent)
	if err != nil {
		return nil, "", errors.Wrap(err, "simulation llm_event")
	}
	// identity rule 3: composite flight id plus sub-event type
	return normalizeInner(sim.FlightID+compositeIDSeparator+sim.Type, inner), TopicSimulationEvent, nil
}

func decodeInner(raw json.RawMessage) (llmEvent, error) {
	var inner llmEvent
	if len(raw) == 0 {
		return inner, errors.New("missing event object")
	}
	if err := json.Unmarshal(raw, &inner); err != nil {
		return inner, err
	}
	if inner.Type == "" {
		return inner, errors.New("event missing type")
	}
	return inner, nil
}

func normalizeInner(streamID string, inner llmEvent) Event {
	switch inner.Type {
	case "token":
		return Token{StreamID: streamID, Content: inner.Content, Section: inner.Section}
	case "reasoning_step":
		return ReasoningStep{StreamID: streamID, Step: inner.Step, Content: inner.Content}
	case "reasoning_complete":
		payload := inner.Decision
		if payload == "" {
			payload = inner.Content
		}
		return StreamComplete{StreamID: streamID, Success: true, Payload: payload}
	default:
		return Unclassified{Type: inner.Type}
	}
}
