package opsfeed

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestRegistryAccumulatesTokensInOrder(t *testing.T) {
	bus := NewBus()
	reg := NewRegistry(bus)

	reg.RecordToken("s1", "Hello", "intro")
	reg.RecordToken("s1", " world", "intro")

	st, ok := reg.Stream("s1")
	require.True(t, ok)
	require.Equal(t, "Hello world", st.Content)
	require.Equal(t, "intro", st.LastSection)
	require.Equal(t, 1, reg.Len())
}

func TestRegistryInterleavedStreamsStayIsolated(t *testing.T) {
	bus := NewBus()
	reg := NewRegistry(bus)

	reg.RecordToken("a", "A1", "")
	reg.RecordToken("b", "B1", "")
	reg.RecordToken("a", "A2", "")
	reg.RecordToken("b", "B2", "")

	a, _ := reg.Stream("a")
	b, _ := reg.Stream("b")
	require.Equal(t, "A1A2", a.Content)
	require.Equal(t, "B1B2", b.Content)
}

func TestRegistrySectionBoundaryFiresOncePerRun(t *testing.T) {
	bus := NewBus()
	reg := NewRegistry(bus)
	var boundaries []SectionNotification
	bus.Subscribe(TopicStreamSection, func(p any) {
		boundaries = append(boundaries, p.(SectionNotification))
	})

	for _, section := range []string{"A", "A", "A", "B", "B"} {
		reg.RecordToken("s1", "x", section)
	}

	require.Len(t, boundaries, 2)
	require.Equal(t, SectionNotification{StreamID: "s1", Section: "A"}, boundaries[0])
	require.Equal(t, SectionNotification{StreamID: "s1", Section: "B", Previous: "A"}, boundaries[1])
}

func TestRegistryEmptySectionIsNotABoundary(t *testing.T) {
	bus := NewBus()
	reg := NewRegistry(bus)
	var boundaries int
	bus.Subscribe(TopicStreamSection, func(any) { boundaries++ })

	reg.RecordToken("s1", "x", "")
	reg.RecordToken("s1", "y", "A")
	reg.RecordToken("s1", "z", "")

	require.Equal(t, 1, boundaries)
	st, _ := reg.Stream("s1")
	require.Equal(t, "A", st.LastSection, "empty sections leave the last section untouched")
}

func TestRegistrySectionNotificationPrecedesToken(t *testing.T) {
	bus := NewBus()
	reg := NewRegistry(bus)
	var order []string
	bus.Subscribe(TopicStreamSection, func(any) { order = append(order, "section") })
	bus.Subscribe(TopicStreamToken, func(any) { order = append(order, "token") })

	reg.RecordToken("s1", "x", "A")
	require.Equal(t, []string{"section", "token"}, order)
}

func TestRegistryStepsDoNotTouchSections(t *testing.T) {
	bus := NewBus()
	reg := NewRegistry(bus)
	var boundaries int
	bus.Subscribe(TopicStreamSection, func(any) { boundaries++ })

	reg.RecordToken("s1", "x", "A")
	reg.RecordStep("s1", "policy_considerations", "Reviewing applicable policies...")
	reg.RecordToken("s1", "y", "A")

	require.Equal(t, 1, boundaries)
	st, _ := reg.Stream("s1")
	require.Len(t, st.Steps, 1)
	require.Equal(t, "policy_considerations", st.Steps[0].Step)
	require.Equal(t, "xy", st.Content)
}

func TestRegistryCompletionWithoutPriorTokensCreatesBuffer(t *testing.T) {
	bus := NewBus()
	reg := NewRegistry(bus)
	var completions []CompletionNotification
	bus.Subscribe(TopicStreamComplete, func(p any) {
		completions = append(completions, p.(CompletionNotification))
	})

	reg.RecordCompletion("s2", false, "timeout")

	st, ok := reg.Stream("s2")
	require.True(t, ok)
	require.True(t, st.Completed)
	require.False(t, st.Success)
	require.Equal(t, "timeout", st.Payload)
	require.Len(t, completions, 1)
}

func TestRegistryCompletionIsNotABarrier(t *testing.T) {
	bus := NewBus()
	reg := NewRegistry(bus)
	var completions int
	bus.Subscribe(TopicStreamComplete, func(any) { completions++ })

	reg.RecordToken("s1", "before", "")
	reg.RecordCompletion("s1", true, "ok")
	reg.RecordToken("s1", " after", "")
	reg.RecordCompletion("s1", false, "trailing duplicate")

	st, _ := reg.Stream("s1")
	require.Equal(t, "before after", st.Content, "trailing tokens are still appended")
	require.True(t, st.Success, "duplicate completion keeps the original outcome")
	require.Equal(t, "ok", st.Payload)
	require.Equal(t, 1, completions, "duplicate completion implies no further transition")
}

func TestRegistryClearAll(t *testing.T) {
	bus := NewBus()
	reg := NewRegistry(bus)
	reg.RecordToken("a", "x", "")
	reg.RecordToken("b", "y", "")
	require.Equal(t, 2, reg.Len())

	reg.ClearAll()
	require.Equal(t, 0, reg.Len())
	_, ok := reg.Stream("a")
	require.False(t, ok)
	require.Empty(t, reg.Snapshot())
}

func TestRegistrySnapshotIsInCreationOrder(t *testing.T) {
	bus := NewBus()
	reg := NewRegistry(bus)
	reg.RecordToken("c", "1", "")
	reg.RecordToken("a", "2", "")
	reg.RecordToken("b", "3", "")
	reg.RecordToken("a", "4", "")

	snap := reg.Snapshot()
	require.Len(t, snap, 3)
	require.Equal(t, "c", snap[0].StreamID)
	require.Equal(t, "a", snap[1].StreamID)
	require.Equal(t, "b", snap[2].StreamID)
}

// Accumulated content equals the ordered concatenation of token contents for
// any split of the text and any interleaving with other streams.
func TestRegistryAccumulationProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		bus := NewBus()
		reg := NewRegistry(bus)

		text := rapid.String().Draw(t, "text")
		noise := rapid.SliceOfN(rapid.String(), 0, 10).Draw(t, "noise")

		rest := text
		i := 0
		for rest != "" {
			n := rapid.IntRange(1, len(rest)).Draw(t, "chunk")
			reg.RecordToken("main", rest[:n], "")
			rest = rest[n:]
			if i < len(noise) {
				reg.RecordToken("other", noise[i], "")
				i++
			}
		}

		st, ok := reg.Stream("main")
		if text == "" {
			require.False(t, ok)
			return
		}
		require.True(t, ok)
		require.Equal(t, text, st.Content)
	})
}
