// ABOUTME: ToolDecider adapts a Client to the tools.Decider interface the ToolInvoker's
// ABOUTME: fallback decision prompt depends on, without tools importing modelclient.

package modelclient

import (
	"context"

	"github.com/2389-research/dialogued/llm"
	"github.com/2389-research/dialogued/tools"
)

// ToolDecider wraps a Client so it can be passed to tools.NewInvoker.
type ToolDecider struct {
	client Client
}

// NewToolDecider wraps client. A nil client yields a ToolDecider whose
// Generate always reports "no client configured", matching the invoker's
// degrade-to-no-tool policy.
func NewToolDecider(client Client) *ToolDecider {
	return &ToolDecider{client: client}
}

// Generate implements tools.Decider.
func (d *ToolDecider) Generate(ctx context.Context, messages []tools.DeciderMessage, opts tools.DeciderOptions) (string, error) {
	if d.client == nil {
		return "", errNoClient
	}
	converted := make([]llm.Message, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			converted = append(converted, llm.SystemMessage(m.Content))
		case "assistant":
			converted = append(converted, llm.AssistantMessage(m.Content))
		default:
			converted = append(converted, llm.UserMessage(m.Content))
		}
	}

	text, _, err := d.client.Generate(ctx, converted, Options{MaxTokens: opts.MaxTokens})
	return text, err
}

var errNoClient = &Error{Kind: Permanent, Err: errClientNotConfigured{}}

type errClientNotConfigured struct{}

func (errClientNotConfigured) Error() string { return "modelclient: no client configured" }

var _ tools.Decider = (*ToolDecider)(nil)
