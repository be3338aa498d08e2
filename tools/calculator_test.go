package tools

import "testing"

func TestCalculatorEvaluatesExpression(t *testing.T) {
	c := NewCalculator()
	got, err := c.Run(map[string]any{"expression": "15*7+22/11"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got != "107" {
		t.Fatalf("expected 107, got %q", got)
	}
}

func TestCalculatorFallsBackToInputKey(t *testing.T) {
	c := NewCalculator()
	got, err := c.Run(map[string]any{"input": "2+2"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got != "4" {
		t.Fatalf("expected 4, got %q", got)
	}
}

func TestCalculatorRejectsMissingExpression(t *testing.T) {
	c := NewCalculator()
	if _, err := c.Run(map[string]any{}); err == nil {
		t.Fatalf("expected error for missing expression")
	}
}

func TestCalculatorRejectsMalformedExpression(t *testing.T) {
	c := NewCalculator()
	if _, err := c.Run(map[string]any{"expression": "2 +* 2"}); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestCalculatorTriggersMatchArithmeticText(t *testing.T) {
	c := NewCalculator()
	matched := false
	for _, re := range c.Triggers() {
		if re.MatchString("calculate 15*7+22/11") {
			matched = true
		}
	}
	if !matched {
		t.Fatalf("expected a trigger to match %q", "calculate 15*7+22/11")
	}
}
