package tools

import (
	"errors"
	"regexp"
	"testing"
)

type echoTool struct {
	name   string
	suffix string
}

func (e *echoTool) Name() string                      { return e.name }
func (e *echoTool) Description() string                { return "echoes input" }
func (e *echoTool) Usage() string                       { return "echo()" }
func (e *echoTool) SupportedModalities() []Modality     { return []Modality{ModalityText} }
func (e *echoTool) Triggers() []*regexp.Regexp          { return nil }
func (e *echoTool) Run(args map[string]any) (string, error) {
	return e.suffix, nil
}

type alwaysFailTool struct{ name string }

func (a *alwaysFailTool) Name() string                      { return a.name }
func (a *alwaysFailTool) Description() string                { return "fails" }
func (a *alwaysFailTool) Usage() string                       { return "fail()" }
func (a *alwaysFailTool) SupportedModalities() []Modality     { return nil }
func (a *alwaysFailTool) Triggers() []*regexp.Regexp          { return nil }
func (a *alwaysFailTool) Run(args map[string]any) (string, error) {
	return "", errors.New("step failed")
}

func TestChainRunsStepsInOrder(t *testing.T) {
	c := NewChain("pipeline", "two step pipeline", &echoTool{name: "a", suffix: "first"}, &echoTool{name: "b", suffix: "second"})
	result, err := c.Run(map[string]any{"input": "x"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result != "second" {
		t.Fatalf("expected last step's result, got %q", result)
	}
}

func TestChainStopsOnFirstFailure(t *testing.T) {
	c := NewChain("pipeline", "fails on step 2", &echoTool{name: "a", suffix: "first"}, &alwaysFailTool{name: "b"})
	if _, err := c.Run(nil); err == nil {
		t.Fatalf("expected error from failing step")
	}
}

func TestConditionalChainSelectsByPredicate(t *testing.T) {
	cc := NewConditionalChain("router", "routes by flag",
		func(args map[string]any) bool { return args["flag"] == true },
		&echoTool{name: "yes", suffix: "yes-branch"},
		&echoTool{name: "no", suffix: "no-branch"},
	)

	result, err := cc.Run(map[string]any{"flag": true})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result != "yes-branch" {
		t.Fatalf("expected yes branch, got %q", result)
	}

	result, err = cc.Run(map[string]any{"flag": false})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result != "no-branch" {
		t.Fatalf("expected no branch, got %q", result)
	}
}
