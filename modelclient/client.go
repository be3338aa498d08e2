// ABOUTME: modelclient narrows the teacher's multi-provider llm.Client down to the
// ABOUTME: Generate(ctx, messages, opts) contract the orchestrator needs, with Transient/Permanent error classification.

package modelclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2389-research/dialogued/llm"
)

// Kind classifies a Generate failure for the orchestrator's fallback decision.
type Kind int

const (
	// Transient failures (timeouts, rate limits, server errors, network
	// errors) trigger the orchestrator's deterministic fallback reply.
	Transient Kind = iota
	// Permanent failures (bad auth, invalid request, content filtered,
	// context too long, quota exhausted) are not expected to succeed on retry
	// either, but the orchestrator still falls back rather than failing the
	// request outright, per the spec's "never fail the outer request" policy.
	Permanent
)

func (k Kind) String() string {
	if k == Transient {
		return "transient"
	}
	return "permanent"
}

// Error wraps a Generate failure with its classification.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("modelclient: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Options carries the per-call generation parameters the spec names: model,
// temperature, and max output tokens.
type Options struct {
	Model       string
	Temperature *float64
	MaxTokens   *int
	Provider    string
}

// Usage mirrors llm.Usage; re-exported so callers need not import llm directly.
type Usage = llm.Usage

// Message mirrors llm.Message; re-exported so callers need not import llm directly.
type Message = llm.Message

// Client is the narrow interface the dialogue orchestrator, tool invoker, and
// proactive scheduler depend on.
type Client interface {
	Generate(ctx context.Context, messages []Message, opts Options) (text string, usage Usage, err error)
}

// DefaultDeadline is the spec's default per-call timeout. The orchestrator
// applies this at the call site via context.WithTimeout, not inside the
// adapter, so the deadline is a property of the caller.
const DefaultDeadline = 60 * time.Second

// Adapter implements Client on top of the teacher's llm.Client, which already
// multiplexes OpenAI, OpenAI-compatible, Gemini, and Anthropic providers.
type Adapter struct {
	underlying *llm.Client
}

// New wraps an llm.Client.
func New(underlying *llm.Client) *Adapter {
	return &Adapter{underlying: underlying}
}

// FromEnv builds an Adapter from whichever provider API keys are present in
// the environment.
func FromEnv() (*Adapter, error) {
	c, err := llm.FromEnv()
	if err != nil {
		return nil, err
	}
	return New(c), nil
}

// Generate sends messages to the underlying provider and returns the
// concatenated text content of the reply plus token usage. Any error is
// wrapped as a classified *Error.
func (a *Adapter) Generate(ctx context.Context, messages []Message, opts Options) (string, Usage, error) {
	req := llm.Request{
		Model:       opts.Model,
		Messages:    messages,
		Provider:    opts.Provider,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}

	resp, err := a.underlying.Complete(ctx, req)
	if err != nil {
		return "", Usage{}, &Error{Kind: classify(err), Err: err}
	}

	return resp.TextContent(), resp.Usage, nil
}

// Close releases the underlying provider adapters.
func (a *Adapter) Close() error {
	return a.underlying.Close()
}

// classify maps an llm error into Transient or Permanent using the
// IsRetryable() interface the error hierarchy already implements, plus
// context deadline/cancellation as an explicit Transient case.
func classify(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return Transient
	}

	type retryable interface {
		IsRetryable() bool
	}
	var r retryable
	if errors.As(err, &r) {
		if r.IsRetryable() {
			return Transient
		}
		return Permanent
	}

	return Permanent
}

var _ Client = (*Adapter)(nil)
