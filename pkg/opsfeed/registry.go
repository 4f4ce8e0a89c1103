package opsfeed

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StepRecord is one named reasoning milestone within a stream.
type StepRecord struct {
	Step    string    `json:"step"`
	Content string    `json:"content,omitempty"`
	At      time.Time `json:"at"`
}

// StreamState is a read-only projection of one stream buffer. Renderers
// consume projections; they never see the live buffer.
type StreamState struct {
	StreamID    string       `json:"stream_id"`
	Content     string       `json:"content"`
	LastSection string       `json:"last_section,omitempty"`
	Steps       []StepRecord `json:"steps,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	Completed   bool         `json:"completed"`
	Success     bool         `json:"success"`
	Payload     string       `json:"payload,omitempty"`
}

type streamBuffer struct {
	id          string
	content     strings.Builder
	lastSection string
	steps       []StepRecord
	createdAt   time.Time
	completed   bool
	success     bool
	payload     string
}

func (b *streamBuffer) snapshot() StreamState {
	return StreamState{
		StreamID:    b.id,
		Content:     b.content.String(),
		LastSection: b.lastSection,
		Steps:       append([]StepRecord(nil), b.steps...),
		CreatedAt:   b.createdAt,
		Completed:   b.completed,
		Success:     b.success,
		Payload:     b.payload,
	}
}

// SectionNotification is the payload on TopicStreamSection, fired once per
// section boundary (a changed, non-empty section value).
type SectionNotification struct {
	StreamID string `json:"stream_id"`
	Section  string `json:"section"`
	Previous string `json:"previous,omitempty"`
}

// CompletionNotification is the payload on TopicStreamComplete.
type CompletionNotification struct {
	StreamID string `json:"stream_id"`
	Success  bool   `json:"success"`
	Payload  string `json:"payload,omitempty"`
}

// Registry demultiplexes the flat event feed into per-stream buffers. It is
// the exclusive owner of all stream state; buffers are created lazily on
// first reference and only removed by ClearAll. Mutations publish
// notifications on the bus after the state transition is complete.
type Registry struct {
	mu      sync.Mutex
	bus     *Bus
	streams map[string]*streamBuffer
	order   []string
	log     zerolog.Logger
}

func NewRegistry(bus *Bus) *Registry {
	return &Registry{
		bus:     bus,
		streams: map[string]*streamBuffer{},
		log:     log.With().Str("component", "opsfeed").Logger(),
	}
}

// ensureLocked returns the buffer for streamID, creating it on demand. The
// feed has no explicit stream-open message, so unknown identities are never
// an error.
func (r *Registry) ensureLocked(streamID string) *streamBuffer {
	buf, ok := r.streams[streamID]
	if !ok {
		buf = &streamBuffer{id: streamID, createdAt: time.Now()}
		r.streams[streamID] = buf
		r.order = append(r.order, streamID)
		r.log.Debug().Str("stream_id", streamID).Msg("opened stream buffer")
	}
	return buf
}

// RecordToken appends content to the stream's buffer. A non-empty section
// that differs from the last seen one is a section boundary and fires a
// TopicStreamSection notification before the token notification.
func (r *Registry) RecordToken(streamID, content, section string) {
	r.mu.Lock()
	buf := r.ensureLocked(streamID)
	buf.content.WriteString(content)
	boundary := section != "" && section != buf.lastSection
	previous := buf.lastSection
	if boundary {
		buf.lastSection = section
	}
	r.mu.Unlock()

	if boundary {
		r.bus.Publish(TopicStreamSection, SectionNotification{StreamID: streamID, Section: section, Previous: previous})
	}
	r.bus.Publish(TopicStreamToken, Token{StreamID: streamID, Content: content, Section: section})
}

// RecordStep appends a structured step record. Steps do not affect the
// section tracking.
func (r *Registry) RecordStep(streamID, step, content string) {
	rec := StepRecord{Step: step, Content: content, At: time.Now()}
	r.mu.Lock()
	buf := r.ensureLocked(streamID)
	buf.steps = append(buf.steps, rec)
	r.mu.Unlock()

	r.bus.Publish(TopicStreamStep, ReasoningStep{StreamID: streamID, Step: step, Content: content})
}

// RecordCompletion marks the buffer's terminal outcome without deleting it;
// trailing tokens and steps are still accepted afterwards. Duplicate
// completions keep the original outcome and imply no further lifecycle
// transition.
func (r *Registry) RecordCompletion(streamID string, success bool, payload string) {
	r.mu.Lock()
	buf := r.ensureLocked(streamID)
	if buf.completed {
		r.mu.Unlock()
		r.log.Debug().Str("stream_id", streamID).Msg("duplicate completion ignored")
		return
	}
	buf.completed = true
	buf.success = success
	buf.payload = payload
	r.mu.Unlock()

	r.bus.Publish(TopicStreamComplete, CompletionNotification{StreamID: streamID, Success: success, Payload: payload})
}

// ClearAll empties the registry. Operator action only; nothing in the
// message path calls this.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	n := len(r.streams)
	r.streams = map[string]*streamBuffer{}
	r.order = nil
	r.mu.Unlock()
	r.log.Info().Int("streams", n).Msg("cleared all stream buffers")
}

// Stream returns a projection of one stream buffer.
func (r *Registry) Stream(streamID string) (StreamState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	buf, ok := r.streams[streamID]
	if !ok {
		return StreamState{}, false
	}
	return buf.snapshot(), true
}

// Snapshot returns projections of all stream buffers in creation order.
func (r *Registry) Snapshot() []StreamState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]StreamState, 0, len(r.order))
	for _, id := range r.order {
		if buf, ok := r.streams[id]; ok {
			out = append(out, buf.snapshot())
		}
	}
	return out
}

// Len reports the number of live stream buffers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.streams)
}
