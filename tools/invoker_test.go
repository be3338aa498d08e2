package tools

import (
	"context"
	"regexp"
	"testing"
)

type weatherTool struct{ calls int }

func (w *weatherTool) Name() string        { return "weather" }
func (w *weatherTool) Description() string { return "reports weather" }
func (w *weatherTool) Usage() string       { return "weather(city)" }
func (w *weatherTool) SupportedModalities() []Modality {
	return []Modality{ModalityText}
}
func (w *weatherTool) Triggers() []*regexp.Regexp {
	return []*regexp.Regexp{regexp.MustCompile("weather"), regexp.MustCompile("forecast")}
}
func (w *weatherTool) Run(args map[string]any) (string, error) {
	w.calls++
	return "sunny", nil
}

type failingTool struct{}

func (f *failingTool) Name() string                      { return "boom" }
func (f *failingTool) Description() string                { return "always fails" }
func (f *failingTool) Usage() string                       { return "boom()" }
func (f *failingTool) SupportedModalities() []Modality     { return []Modality{ModalityText} }
func (f *failingTool) Triggers() []*regexp.Regexp          { return nil }
func (f *failingTool) Run(args map[string]any) (string, error) {
	return "", errBoom
}

var errBoom = fmtErrorf("boom")

func fmtErrorf(s string) error { return &simpleErr{s} }

type simpleErr struct{ s string }

func (e *simpleErr) Error() string { return e.s }

func newTestRegistry(t *testing.T, tool Tool) *Registry {
	t.Helper()
	r := NewRegistry()
	if err := r.Register(tool, "1.0.0", Stable, true); err != nil {
		t.Fatalf("register: %v", err)
	}
	return r
}

func TestInvokerRulePassHighConfidenceSkipsModel(t *testing.T) {
	w := &weatherTool{}
	r := newTestRegistry(t, w)
	inv := NewInvoker(r, nil)

	decision, err := inv.Decide(context.Background(), "what's the weather like", r.List())
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if decision.Tool != "weather" {
		t.Fatalf("expected weather tool picked by rule pass, got %q", decision.Tool)
	}
}

func TestInvokerNoTriggerMatchWithNoDeciderReturnsNoTool(t *testing.T) {
	w := &weatherTool{}
	r := newTestRegistry(t, w)
	inv := NewInvoker(r, nil)

	decision, err := inv.Decide(context.Background(), "tell me a joke", r.List())
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if decision.Tool != "" {
		t.Fatalf("expected no tool, got %q", decision.Tool)
	}
}

func TestInvokerEmptyCandidatesReturnsNoTool(t *testing.T) {
	r := NewRegistry()
	inv := NewInvoker(r, nil)
	decision, err := inv.Decide(context.Background(), "anything", nil)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if decision.Tool != "" {
		t.Fatalf("expected no tool for empty candidate set")
	}
}

func TestInvokerRunCachesResult(t *testing.T) {
	w := &weatherTool{}
	r := newTestRegistry(t, w)
	inv := NewInvoker(r, nil)

	result1, err := inv.Run("weather", "", map[string]any{"city": "nyc"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	result2, err := inv.Run("weather", "", map[string]any{"city": "nyc"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result1 != result2 {
		t.Fatalf("expected identical cached result")
	}
	if w.calls != 1 {
		t.Fatalf("expected tool invoked once, got %d calls", w.calls)
	}
}

func TestInvokerRunFailingToolReturnsErrorAsResultNotError(t *testing.T) {
	r := newTestRegistry(t, &failingTool{})
	inv := NewInvoker(r, nil)

	result, err := inv.Run("boom", "", nil)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result == "" {
		t.Fatalf("expected failure message in result string")
	}
}

func TestInvokerDecideAndRunCalculatorEndToEnd(t *testing.T) {
	r := newTestRegistry(t, NewCalculator())
	inv := NewInvoker(r, nil)

	decision, err := inv.Decide(context.Background(), "calculate 15*7+22/11", r.List())
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if decision.Tool != "calculator" {
		t.Fatalf("expected calculator picked by rule pass, got %q", decision.Tool)
	}

	result, err := inv.Run(decision.Tool, "", decision.Args)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result != "107" {
		t.Fatalf("expected 107, got %q", result)
	}
}

func TestInvokerRunUnknownToolDoesNotError(t *testing.T) {
	r := NewRegistry()
	inv := NewInvoker(r, nil)
	result, err := inv.Run("missing", "", nil)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result == "" {
		t.Fatalf("expected unavailable message in result string")
	}
}
