package dialogue

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/2389-research/dialogued/modelclient"
	"github.com/2389-research/dialogued/store"
	"github.com/2389-research/dialogued/tools"
)

func newTestOrchestrator(t *testing.T, model modelclient.Client) (*Orchestrator, *store.MemoryFallback) {
	t.Helper()
	mem := store.NewMemoryFallback(100, time.Hour)
	registry := tools.NewRegistry()
	invoker := tools.NewInvoker(registry, nil)
	return New(mem, model, registry, invoker, nil), mem
}

func TestProcessInputHappyPathCreatesTwoTurns(t *testing.T) {
	fake := &modelclient.Fake{Reply: "hello back"}
	orch, mem := newTestOrchestrator(t, fake)

	result, err := orch.ProcessInput(context.Background(), "u1", "", "Hello", nil)
	if err != nil {
		t.Fatalf("process input: %v", err)
	}
	if result.SessionID == "" || result.TurnID == "" {
		t.Fatalf("expected non-empty session and turn ids, got %+v", result)
	}
	if result.Reply != "hello back" {
		t.Fatalf("unexpected reply %q", result.Reply)
	}

	turns, _ := mem.GetTurns(context.Background(), result.SessionID, 0, "")
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Role != store.RoleHuman || turns[1].Role != store.RoleAI {
		t.Fatalf("expected human then ai roles, got %s then %s", turns[0].Role, turns[1].Role)
	}
}

func TestProcessInputModelFallbackEchoesText(t *testing.T) {
	fake := &modelclient.Fake{Err: &modelclient.Error{Kind: modelclient.Transient, Err: context.DeadlineExceeded}}
	orch, _ := newTestOrchestrator(t, fake)

	result, err := orch.ProcessInput(context.Background(), "u1", "", "Hi", nil)
	if err != nil {
		t.Fatalf("process input: %v", err)
	}
	if !result.ModelFallback {
		t.Fatalf("expected ModelFallback to be set")
	}
	if !strings.Contains(result.Reply, "Hi") {
		t.Fatalf("expected fallback reply to echo input, got %q", result.Reply)
	}
}

func TestProcessInputReusesExistingSession(t *testing.T) {
	fake := &modelclient.Fake{Reply: "ok"}
	orch, _ := newTestOrchestrator(t, fake)

	first, err := orch.ProcessInput(context.Background(), "u1", "", "first", nil)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := orch.ProcessInput(context.Background(), "u1", first.SessionID, "second", nil)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if second.SessionID != first.SessionID {
		t.Fatalf("expected same session reused, got %q vs %q", second.SessionID, first.SessionID)
	}
}

func TestProcessInputCommitsToolTurnBetweenHumanAndAI(t *testing.T) {
	fake := &modelclient.Fake{Reply: "sum computed"}
	mem := store.NewMemoryFallback(100, time.Hour)
	registry := tools.NewRegistry()
	if err := registry.Register(tools.NewCalculator(), "1.0.0", tools.Stable, true); err != nil {
		t.Fatalf("register: %v", err)
	}
	invoker := tools.NewInvoker(registry, nil)
	orch := New(mem, fake, registry, invoker, nil)

	result, err := orch.ProcessInput(context.Background(), "u1", "", "calculate compute 2+2", nil)
	if err != nil {
		t.Fatalf("process input: %v", err)
	}
	if len(result.ToolsUsed) != 1 || result.ToolsUsed[0] != "calculator" {
		t.Fatalf("expected calculator tool used, got %+v", result.ToolsUsed)
	}

	turns, _ := mem.GetTurns(context.Background(), result.SessionID, 0, "")
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns (human, tool, ai), got %d", len(turns))
	}
	if turns[0].Role != store.RoleHuman || turns[1].Role != store.RoleTool || turns[2].Role != store.RoleAI {
		t.Fatalf("expected human,tool,ai role order, got %s,%s,%s", turns[0].Role, turns[1].Role, turns[2].Role)
	}
	if turns[1].Content != "4" {
		t.Fatalf("expected tool turn to record the calculator result, got %q", turns[1].Content)
	}
}

func TestProcessInputAIAIAlternatesUntilTurnBudget(t *testing.T) {
	fake := &modelclient.Fake{Reply: "next thought"}
	mem := store.NewMemoryFallback(100, time.Hour)
	registry := tools.NewRegistry()
	invoker := tools.NewInvoker(registry, nil)
	orch := New(mem, fake, registry, invoker, nil)

	session, err := mem.CreateSession(context.Background(), "u1", "loop", store.AIAI, nil)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	result, err := orch.ProcessInput(context.Background(), "u1", session.ID, "seed thought", nil)
	if err != nil {
		t.Fatalf("process input: %v", err)
	}
	if result.Reply != "next thought" {
		t.Fatalf("unexpected final reply %q", result.Reply)
	}

	turns, _ := mem.GetTurns(context.Background(), session.ID, 0, "")
	if len(turns) != defaultMaxAIAITurns+1 {
		t.Fatalf("expected %d turns (seed plus turn budget), got %d", defaultMaxAIAITurns+1, len(turns))
	}
	for _, turn := range turns {
		if turn.Role != store.RoleAI {
			t.Fatalf("expected every AI_AI turn to have AI role, got %s", turn.Role)
		}
	}
}

func TestProcessInputRoutesGroupRepliesRoundRobin(t *testing.T) {
	fake := &modelclient.Fake{Reply: "hi"}
	mem := store.NewMemoryFallback(100, time.Hour)
	registry := tools.NewRegistry()
	invoker := tools.NewInvoker(registry, nil)
	orch := New(mem, fake, registry, invoker, nil)

	session, err := mem.CreateSession(context.Background(), "u1", "group", store.HumanHumanGroup, map[string]any{
		"participants": []any{"alice", "bob"},
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	if _, err := orch.ProcessInput(context.Background(), "u1", session.ID, "hello", nil); err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, err := orch.ProcessInput(context.Background(), "u1", session.ID, "hello again", nil); err != nil {
		t.Fatalf("second: %v", err)
	}

	turns, _ := mem.GetTurns(context.Background(), session.ID, 0, "")
	var aiTurns []*store.Turn
	for _, turn := range turns {
		if turn.Role == store.RoleAI {
			aiTurns = append(aiTurns, turn)
		}
	}
	if len(aiTurns) != 2 {
		t.Fatalf("expected 2 ai turns, got %d", len(aiTurns))
	}
	if aiTurns[0].Metadata["recipient"] != "alice" {
		t.Fatalf("expected first reply routed to alice, got %v", aiTurns[0].Metadata["recipient"])
	}
	if aiTurns[1].Metadata["recipient"] != "bob" {
		t.Fatalf("expected second reply routed to bob, got %v", aiTurns[1].Metadata["recipient"])
	}
}

func TestProcessInputUnknownSessionIDCreatesNew(t *testing.T) {
	fake := &modelclient.Fake{Reply: "ok"}
	orch, _ := newTestOrchestrator(t, fake)

	result, err := orch.ProcessInput(context.Background(), "u1", "does-not-exist", "hi", nil)
	if err != nil {
		t.Fatalf("process input: %v", err)
	}
	if result.SessionID == "" || result.SessionID == "does-not-exist" {
		t.Fatalf("expected a freshly created session id, got %q", result.SessionID)
	}
}
