package contextassembler

import (
	"strings"
	"testing"
	"time"

	"github.com/2389-research/dialogued/llm"
	"github.com/2389-research/dialogued/store"
)

func turn(role store.Role, content string, at time.Time) *store.Turn {
	return &store.Turn{ID: store.NewID(), Role: role, Content: content, CreatedAt: at}
}

func TestBuildProducesSystemThenTurnsThenUser(t *testing.T) {
	base := time.Now()
	prior := []*store.Turn{
		turn(store.RoleHuman, "what's the capital of France", base),
		turn(store.RoleAI, "Paris", base.Add(time.Second)),
	}
	messages := Build(prior, "thanks", nil, store.HumanAIPrivate, Options{})

	if len(messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(messages))
	}
	if messages[0].Role != llm.RoleSystem {
		t.Fatalf("expected first message to be system, got %s", messages[0].Role)
	}
	if messages[1].Role != llm.RoleUser || messages[1].TextContent() != "what's the capital of France" {
		t.Fatalf("unexpected second message: %+v", messages[1])
	}
	if messages[2].Role != llm.RoleAssistant || messages[2].TextContent() != "Paris" {
		t.Fatalf("unexpected third message: %+v", messages[2])
	}
	if messages[3].Role != llm.RoleUser || messages[3].TextContent() != "thanks" {
		t.Fatalf("unexpected trailing user message: %+v", messages[3])
	}
}

func TestBuildReordersOutOfOrderTurns(t *testing.T) {
	base := time.Now()
	prior := []*store.Turn{
		turn(store.RoleAI, "second", base.Add(time.Second)),
		turn(store.RoleHuman, "first", base),
	}
	messages := Build(prior, "next", nil, store.HumanAIPrivate, Options{})

	if messages[1].TextContent() != "first" {
		t.Fatalf("expected turns reordered ascending, got %+v", messages[1])
	}
	if messages[2].TextContent() != "second" {
		t.Fatalf("expected turns reordered ascending, got %+v", messages[2])
	}
}

func TestBuildContinuityClauseNamesExtractedTopic(t *testing.T) {
	base := time.Now()
	prior := []*store.Turn{
		turn(store.RoleHuman, "tell me about black holes", base),
		turn(store.RoleAI, "black holes are dense", base.Add(time.Second)),
	}
	messages := Build(prior, "continue", nil, store.HumanAIPrivate, Options{})
	system := messages[0].TextContent()
	if !strings.Contains(system, "black holes") {
		t.Fatalf("expected continuity clause to name extracted topic, got %q", system)
	}
}

func TestBuildCallerContextProcessorsByType(t *testing.T) {
	cases := []struct {
		name    string
		ctx     map[string]any
		wantSub string
	}{
		{"general", map[string]any{"type": "general", "plan": "pro"}, "User context:"},
		{"user_profile", map[string]any{"type": "user_profile", "name": "Ada"}, "User is Ada"},
		{"domain", map[string]any{"type": "domain", "facts": []any{"fact one"}}, "fact one"},
		{"system", map[string]any{"type": "system", "load": "high"}, "Current system state:"},
		{"location", map[string]any{"type": "location", "place": "NYC", "coords": "40,-74"}, "NYC"},
		{"custom", map[string]any{"type": "custom", "text": "verbatim text"}, "verbatim text"},
		{"unknown", map[string]any{"type": "bogus", "a": "b"}, "User context:"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			messages := Build(nil, "hi", tc.ctx, store.HumanAIPrivate, Options{})
			system := messages[0].TextContent()
			if !strings.Contains(system, tc.wantSub) {
				t.Fatalf("expected system prompt to contain %q, got %q", tc.wantSub, system)
			}
		})
	}
}

func TestBuildTruncatesContextOverBudget(t *testing.T) {
	words := make([]string, 50)
	for i := range words {
		words[i] = "word"
	}
	ctx := map[string]any{"type": "custom", "text": strings.Join(words, " ")}
	messages := Build(nil, "hi", ctx, store.HumanAIPrivate, Options{TokenBudget: 5})
	system := messages[0].TextContent()
	if !strings.Contains(system, "…") {
		t.Fatalf("expected ellipsis marker on truncated context, got %q", system)
	}
}
