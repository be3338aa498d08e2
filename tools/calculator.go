// ABOUTME: Calculator is a builtin Tool that evaluates an arithmetic expression
// ABOUTME: via expr-lang/expr and formats the numeric result as a string.

package tools

import (
	"fmt"
	"regexp"

	"github.com/expr-lang/expr"
)

var calculatorTriggers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bcalculate\b`),
	regexp.MustCompile(`(?i)\bcompute\b`),
	regexp.MustCompile(`\d+\s*[-+*/]\s*\d+`),
}

// expressionPattern finds the longest arithmetic-looking substring in free
// text, so a rule-pass decision's raw "text" arg can still be evaluated
// without the caller having extracted an "expression" key itself.
var expressionPattern = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)?(?:\s*[-+*/%]\s*[0-9]+(?:\.[0-9]+)?)+`)

// Calculator evaluates a single arithmetic expression passed under the
// "expression" (or "input") arg key.
type Calculator struct{}

// NewCalculator returns a ready-to-register Calculator tool.
func NewCalculator() *Calculator { return &Calculator{} }

func (c *Calculator) Name() string        { return "calculator" }
func (c *Calculator) Description() string { return "Evaluates an arithmetic expression and returns the numeric result." }
func (c *Calculator) Usage() string       { return `{"expression": "15*7+22/11"}` }

func (c *Calculator) SupportedModalities() []Modality { return []Modality{ModalityText} }

func (c *Calculator) Triggers() []*regexp.Regexp { return calculatorTriggers }

// Run evaluates args["expression"] (falling back to args["input"], then to
// the arithmetic substring of args["text"] — the shape the invoker's rule
// pass hands every tool) with expr-lang/expr's arithmetic grammar and
// formats the result. Non-numeric results are rejected: this tool never
// echoes back arbitrary expr output.
func (c *Calculator) Run(args map[string]any) (string, error) {
	raw, ok := args["expression"].(string)
	if !ok || raw == "" {
		raw, ok = args["input"].(string)
	}
	if !ok || raw == "" {
		if text, textOK := args["text"].(string); textOK {
			raw = expressionPattern.FindString(text)
			ok = raw != ""
		}
	}
	if !ok || raw == "" {
		return "", fmt.Errorf("calculator: missing expression")
	}

	program, err := expr.Compile(raw, expr.AllowUndefinedVariables())
	if err != nil {
		return "", fmt.Errorf("calculator: parse %q: %w", raw, err)
	}
	out, err := expr.Run(program, map[string]any{})
	if err != nil {
		return "", fmt.Errorf("calculator: evaluate %q: %w", raw, err)
	}

	switch v := out.(type) {
	case int:
		return fmt.Sprintf("%d", v), nil
	case int64:
		return fmt.Sprintf("%d", v), nil
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v)), nil
		}
		return fmt.Sprintf("%g", v), nil
	default:
		return "", fmt.Errorf("calculator: non-numeric result for %q", raw)
	}
}

var _ Tool = (*Calculator)(nil)
