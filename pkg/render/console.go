// Package render holds example rendering adapters for the opsfeed core. A
// renderer subscribes to bus topics and owns no core state; the core stays
// fully headless without one.
package render

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/flightops/opsfeed/pkg/opsfeed"
)

var (
	streamStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	sectionStyle   = lipgloss.NewStyle().Bold(true).Underline(true).Foreground(lipgloss.Color("#FFFDF5"))
	stepStyle      = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#AFAFAF"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	failureStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	terminalErrSty = lipgloss.NewStyle().Bold(true).Background(lipgloss.Color("196")).Foreground(lipgloss.Color("#FFFDF5"))
)

// Console paints stream lifecycle notifications to a writer. Tokens for the
// same stream flow together; a switch to another stream or a section
// boundary starts a new labeled block.
type Console struct {
	mu         sync.Mutex
	w          io.Writer
	lastStream string
	subs       []*opsfeed.Subscription
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// Attach subscribes the console to bus topics. Call Detach to stop painting.
func (c *Console) Attach(bus *opsfeed.Bus) {
	c.subs = append(c.subs,
		bus.Subscribe(opsfeed.TopicConnected, c.onConnected),
		bus.Subscribe(opsfeed.TopicDisconnected, c.onDisconnected),
		bus.Subscribe(opsfeed.TopicError, c.onError),
		bus.Subscribe(opsfeed.TopicStreamToken, c.onToken),
		bus.Subscribe(opsfeed.TopicStreamSection, c.onSection),
		bus.Subscribe(opsfeed.TopicStreamStep, c.onStep),
		bus.Subscribe(opsfeed.TopicStreamComplete, c.onComplete),
	)
}

func (c *Console) Detach() {
	for _, s := range c.subs {
		s.Cancel()
	}
	c.subs = nil
}

func (c *Console) onConnected(payload any) {
	n, ok := payload.(opsfeed.ConnectedNotification)
	if !ok {
		return
	}
	c.println(statusStyle.Render(fmt.Sprintf("● connected to %s", n.URL)))
}

func (c *Console) onDisconnected(payload any) {
	n, ok := payload.(opsfeed.CloseInfo)
	if !ok {
		return
	}
	c.println(statusStyle.Render(fmt.Sprintf("○ disconnected (code=%d clean=%t)", n.Code, n.Clean)))
}

func (c *Console) onError(payload any) {
	n, ok := payload.(opsfeed.ErrorNotification)
	if !ok {
		return
	}
	if n.Terminal {
		c.println(terminalErrSty.Render(" connection failed: " + n.Message + " "))
		return
	}
	c.println(failureStyle.Render("! " + n.Message))
}

func (c *Console) onToken(payload any) {
	t, ok := payload.(opsfeed.Token)
	if !ok {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.StreamID != c.lastStream {
		c.lastStream = t.StreamID
		fmt.Fprintf(c.w, "\n%s\n", streamStyle.Render("▸ "+t.StreamID))
	}
	fmt.Fprint(c.w, t.Content)
}

func (c *Console) onSection(payload any) {
	n, ok := payload.(opsfeed.SectionNotification)
	if !ok {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "\n%s\n", sectionStyle.Render(n.Section))
}

func (c *Console) onStep(payload any) {
	s, ok := payload.(opsfeed.ReasoningStep)
	if !ok {
		return
	}
	c.println(stepStyle.Render(fmt.Sprintf("… %s: %s", s.Step, s.Content)))
}

func (c *Console) onComplete(payload any) {
	n, ok := payload.(opsfeed.CompletionNotification)
	if !ok {
		return
	}
	if n.Success {
		c.println(successStyle.Render("✔ " + n.StreamID + " complete"))
		return
	}
	c.println(failureStyle.Render("✘ " + n.StreamID + " failed: " + n.Payload))
}

func (c *Console) println(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "\n%s\n", line)
}
