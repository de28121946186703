// Package perception holds the completion collaborators: the LLMClient
// interface the core depends on, a Gemini-backed implementation, and an
// echo client for offline runs and tests. Retries, rate limiting, and
// timeouts are the collaborator's business; the core never catches or
// repairs a completion failure.
package perception

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// LLMClient is the single operation the core requires from a language
// model. Implementations may be slow, costly, or non-deterministic;
// errors propagate to the caller unchanged.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// EchoClient is a deterministic offline collaborator. It answers with a
// canned phrase that varies with the prompt's scaffold and a running
// call counter, which is enough for the quality heuristics to produce
// distinct, reproducible scores.
type EchoClient struct {
	mu    sync.Mutex
	calls int
}

// NewEchoClient returns a fresh echo collaborator with a zero counter.
func NewEchoClient() *EchoClient {
	return &EchoClient{}
}

// Complete never fails. The response shape follows the prompt: a
// reasoning scaffold gets a "detailed" answer, an approach-comparison
// scaffold gets a "multi-approach" answer, anything else a basic one.
func (c *EchoClient) Complete(_ context.Context, prompt string) (string, error) {
	c.mu.Lock()
	c.calls++
	n := c.calls
	c.mu.Unlock()

	lower := strings.ToLower(prompt)
	switch {
	case strings.Contains(lower, "step-by-step"):
		return fmt.Sprintf("Detailed solution with reasoning (call %d)", n), nil
	case strings.Contains(lower, "approach"):
		return fmt.Sprintf("Multi-approach solution (call %d)", n), nil
	default:
		return fmt.Sprintf("Basic solution (call %d)", n), nil
	}
}

// Calls reports how many completions have been served.
func (c *EchoClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// ScriptedClient replays a fixed sequence of responses and fails once
// the script runs out. Used to test collaborator-failure propagation.
type ScriptedClient struct {
	mu        sync.Mutex
	responses []string
	next      int
}

// NewScriptedClient builds a collaborator that returns the given
// responses in order.
func NewScriptedClient(responses ...string) *ScriptedClient {
	return &ScriptedClient{responses: responses}
}

// Complete returns the next scripted response, or an error when the
// script is exhausted.
func (c *ScriptedClient) Complete(_ context.Context, _ string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.next >= len(c.responses) {
		return "", fmt.Errorf("scripted client: no response for call %d", c.next+1)
	}
	r := c.responses[c.next]
	c.next++
	return r, nil
}
