package opsfeed

import "encoding/json"

// Event is the classifier's output contract: exactly one of the variants
// below. Variants carrying a stream identity reach the Registry; Unclassified
// events are fanned out on the bus only.
type Event interface {
	isEvent()
}

// Token is one incremental content fragment within a stream.
type Token struct {
	StreamID string `json:"stream_id"`
	Content  string `json:"content"`
	Section  string `json:"section,omitempty"`
}

// ReasoningStep is a discrete named milestone within a stream, distinct from
// raw tokens.
type ReasoningStep struct {
	StreamID string `json:"stream_id"`
	Step     string `json:"step"`
	Content  string `json:"content,omitempty"`
}

// StreamComplete marks a stream's terminal outcome. Payload carries the final
// content for successful completions and the error text otherwise.
type StreamComplete struct {
	StreamID string `json:"stream_id"`
	Success  bool   `json:"success"`
	Payload  string `json:"payload,omitempty"`
}

// Unclassified wraps envelopes that carry no stream identity (unknown types,
// simulation bookkeeping events). Raw holds the decoded envelope verbatim.
type Unclassified struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"raw,omitempty"`
}

func (Token) isEvent()          {}
func (ReasoningStep) isEvent()  {}
func (StreamComplete) isEvent() {}
func (Unclassified) isEvent()   {}

// Message is the payload on TopicMessage: every successfully decoded
// envelope, post-classification.
type Message struct {
	Raw   json.RawMessage `json:"raw"`
	Event Event           `json:"event"`
}
