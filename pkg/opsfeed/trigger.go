package opsfeed

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Ack is the server's JSON acknowledgment for trigger calls.
type Ack struct {
	Status       string `json:"status"`
	StreamID     string `json:"stream_id,omitempty"`
	SimulationID string `json:"simulation_id,omitempty"`
	Message      string `json:"message,omitempty"`
}

// TriggerClient calls the HTTP endpoints that start server-side work. These
// calls are independent of the streaming loop and may be outstanding while
// streaming is active; failures propagate to the caller, never through the
// bus.
type TriggerClient struct {
	baseURL string
	hc      *http.Client
}

func NewTriggerClient(baseURL string) *TriggerClient {
	return &TriggerClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: 30 * time.Second},
	}
}

// StartTestStream asks the server to run one test reasoning stream for the
// given query. The resulting events arrive on the feed connection as
// llm_test_stream frames.
func (t *TriggerClient) StartTestStream(ctx context.Context, query string) (*Ack, error) {
	form := url.Values{"query": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/api/test-llm-stream", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "build test stream request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return t.do(req)
}

// StartSimulation asks the server to run a simulated operations day.
func (t *TriggerClient) StartSimulation(ctx context.Context) (*Ack, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/api/simulation/start-day", nil)
	if err != nil {
		return nil, errors.Wrap(err, "build simulation request")
	}
	return t.do(req)
}

func (t *TriggerClient) do(req *http.Request) (*Ack, error) {
	resp, err := t.hc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "trigger request")
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, "read trigger response")
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, errors.Errorf("trigger %s: status %d: %s", req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var ack Ack
	if err := json.Unmarshal(body, &ack); err != nil {
		return nil, errors.Wrapf(err, "decode trigger response from %s", req.URL.Path)
	}
	return &ack, nil
}
