package opsfeed

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyLLMReasoningToken(t *testing.T) {
	c := NewClassifier()
	raw := []byte(`{"type":"llm_reasoning","event":{"type":"token","stream_id":"r1","content":"The","section":"situation_analysis"}}`)

	ev, topic, err := c.Classify(raw)
	require.NoError(t, err)
	require.Equal(t, TopicLLMReasoning, topic)
	require.Equal(t, Token{StreamID: "r1", Content: "The", Section: "situation_analysis"}, ev)
}

func TestClassifyLLMTestStreamUsesTopLevelStreamID(t *testing.T) {
	c := NewClassifier()
	raw := []byte(`{"type":"llm_test_stream","stream_id":"s1","event":{"type":"token","content":"Hello","section":"intro"}}`)

	ev, topic, err := c.Classify(raw)
	require.NoError(t, err)
	require.Equal(t, TopicLLMTestStream, topic)
	require.Equal(t, Token{StreamID: "s1", Content: "Hello", Section: "intro"}, ev)
}

func TestClassifyInnerStreamIDTakesPriority(t *testing.T) {
	c := NewClassifier()
	raw := []byte(`{"type":"llm_reasoning","stream_id":"outer","event":{"type":"token","stream_id":"inner","content":"x"}}`)

	ev, _, err := c.Classify(raw)
	require.NoError(t, err)
	require.Equal(t, "inner", ev.(Token).StreamID)
}

func TestClassifyReasoningStep(t *testing.T) {
	c := NewClassifier()
	raw := []byte(`{"type":"llm_reasoning","event":{"type":"reasoning_step","stream_id":"r1","step":"options_evaluation","content":"Evaluating possible options..."}}`)

	ev, _, err := c.Classify(raw)
	require.NoError(t, err)
	require.Equal(t, ReasoningStep{StreamID: "r1", Step: "options_evaluation", Content: "Evaluating possible options..."}, ev)
}

func TestClassifyReasoningComplete(t *testing.T) {
	c := NewClassifier()
	raw := []byte(`{"type":"llm_reasoning","event":{"type":"reasoning_complete","stream_id":"r1","content":"full text","decision":"assign spare crew"}}`)

	ev, _, err := c.Classify(raw)
	require.NoError(t, err)
	require.Equal(t, StreamComplete{StreamID: "r1", Success: true, Payload: "assign spare crew"}, ev)
}

func TestClassifyTestComplete(t *testing.T) {
	c := NewClassifier()
	raw := []byte(`{"type":"llm_test_complete","stream_id":"s1","content":"done"}`)

	ev, topic, err := c.Classify(raw)
	require.NoError(t, err)
	require.Equal(t, TopicTestComplete, topic)
	require.Equal(t, StreamComplete{StreamID: "s1", Success: true, Payload: "done"}, ev)
}

func TestClassifyTestError(t *testing.T) {
	c := NewClassifier()
	raw := []byte(`{"type":"llm_test_error","stream_id":"s2","error":"timeout"}`)

	ev, topic, err := c.Classify(raw)
	require.NoError(t, err)
	require.Equal(t, TopicTestComplete, topic)
	require.Equal(t, StreamComplete{StreamID: "s2", Success: false, Payload: "timeout"}, ev)
}

func TestClassifyCompositeSimulationIdentity(t *testing.T) {
	c := NewClassifier()
	crew := []byte(`{"type":"simulation_event","event":{"type":"llm_crew_reasoning","flight_id":"UA100","llm_event":{"type":"token","content":"a"}}}`)
	ops := []byte(`{"type":"simulation_event","event":{"type":"llm_ops_reasoning","flight_id":"UA100","llm_event":{"type":"token","content":"b"}}}`)

	evCrew, topic, err := c.Classify(crew)
	require.NoError(t, err)
	require.Equal(t, TopicSimulationEvent, topic)
	evOps, _, err := c.Classify(ops)
	require.NoError(t, err)

	crewID := evCrew.(Token).StreamID
	opsID := evOps.(Token).StreamID
	require.Equal(t, "UA100/llm_crew_reasoning", crewID)
	require.Equal(t, "UA100/llm_ops_reasoning", opsID)
	require.NotEqual(t, crewID, opsID, "two agents on the same flight are two streams")

	// deterministic: the same frame derives the same identity
	evAgain, _, err := c.Classify(crew)
	require.NoError(t, err)
	require.Equal(t, crewID, evAgain.(Token).StreamID)
}

func TestClassifyUnknownSimulationSubtypeStaysBusOnly(t *testing.T) {
	c := NewClassifier()
	raw := []byte(`{"type":"simulation_event","event":{"type":"disruption_detected","flight_id":"UA100","delay_minutes":180}}`)

	ev, topic, err := c.Classify(raw)
	require.NoError(t, err)
	require.Equal(t, TopicSimulationEvent, topic)
	require.IsType(t, Unclassified{}, ev)
}

func TestClassifySimulationCompleteIsBusOnly(t *testing.T) {
	c := NewClassifier()
	for _, typ := range []string{"simulation_complete", "simulation_error"} {
		ev, topic, err := c.Classify([]byte(`{"type":"` + typ + `"}`))
		require.NoError(t, err)
		require.Equal(t, TopicSimulationComplete, topic)
		require.Equal(t, typ, ev.(Unclassified).Type)
	}
}

func TestClassifyUnknownType(t *testing.T) {
	c := NewClassifier()
	ev, topic, err := c.Classify([]byte(`{"type":"heartbeat","ts":123}`))
	require.NoError(t, err)
	require.Empty(t, topic)
	require.Equal(t, "heartbeat", ev.(Unclassified).Type)
}

func TestClassifyMalformedInput(t *testing.T) {
	c := NewClassifier()
	cases := map[string][]byte{
		"not json":      []byte(`{{{`),
		"missing type":  []byte(`{"stream_id":"s1"}`),
		"missing event": []byte(`{"type":"llm_reasoning"}`),
		"invalid event": []byte(`{"type":"llm_test_stream","stream_id":"s1","event":{"content":"x"}}`),
		"bad sim event": []byte(`{"type":"simulation_event","event":{"type":"llm_crew_reasoning","flight_id":"UA1","llm_event":{"no_type":true}}}`),
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			ev, _, err := c.Classify(raw)
			require.Error(t, err)
			require.Nil(t, ev)
		})
	}
}
