// ABOUTME: Fake is a test double for Client used by dialogue and proactive package tests.
// ABOUTME: It never touches a real provider, so tests exercise the orchestrator's fallback paths deterministically.

package modelclient

import "context"

// Fake is a scriptable Client implementation for tests.
type Fake struct {
	// Reply is returned verbatim when Err is nil.
	Reply string
	// Usage is returned alongside Reply.
	Usage Usage
	// Err, when non-nil, is returned from Generate instead of Reply.
	Err error
	// Calls records every message list passed to Generate, for assertions.
	Calls [][]Message
}

// Generate implements Client.
func (f *Fake) Generate(ctx context.Context, messages []Message, opts Options) (string, Usage, error) {
	f.Calls = append(f.Calls, messages)
	if f.Err != nil {
		return "", Usage{}, f.Err
	}
	return f.Reply, f.Usage, nil
}

var _ Client = (*Fake)(nil)
