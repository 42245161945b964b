package scoring

import (
	"fmt"

	"github.com/dop251/goja"

	"github.com/me/taskpilot/pkg/model"
)

// RuleSet evaluates deployment-specific scoring adjustments written as
// JavaScript expressions. Each expression sees `task`, `factors`, and `score`
// and must evaluate to the adjusted composite score (a number in [0,1]).
//
// Rules run after the weighted sum and before the priority multiplier, so a
// rule of "score" is the identity and "Math.min(score + 0.1, 1)" is a flat
// bump.
type RuleSet struct {
	exprs []string
}

// NewRuleSet compiles the given expressions, rejecting ones that do not parse.
func NewRuleSet(exprs []string) (*RuleSet, error) {
	for i, expr := range exprs {
		if _, err := goja.Compile(fmt.Sprintf("rule[%d]", i), expr, true); err != nil {
			return nil, fmt.Errorf("compile rule[%d]: %w", i, err)
		}
	}
	return &RuleSet{exprs: exprs}, nil
}

// Apply runs every rule in order, threading the score through. A rule that
// fails at runtime or yields a non-number is skipped; scoring must not abort
// over a bad rule.
func (rs *RuleSet) Apply(task *model.Task, factors Factors, score float64) float64 {
	for i, expr := range rs.exprs {
		adjusted, err := rs.eval(i, expr, task, factors, score)
		if err != nil {
			continue
		}
		score = clamp(adjusted, 0, 1)
	}
	return score
}

// eval runs one expression in a fresh VM. A new runtime per evaluation keeps
// rules from leaking state into each other.
func (rs *RuleSet) eval(i int, expr string, task *model.Task, factors Factors, score float64) (float64, error) {
	vm := goja.New()

	taskCtx := map[string]any{
		"id":       task.ID,
		"status":   string(task.Status),
		"priority": string(task.Priority),
		"category": task.Category,
		"project":  task.ProjectID,
		"metadata": task.Metadata,
	}
	if err := vm.Set("task", taskCtx); err != nil {
		return 0, fmt.Errorf("set task: %w", err)
	}
	factorsCtx := map[string]any{
		"urgency":       factors.Urgency,
		"importance":    factors.Importance,
		"effort":        factors.Effort,
		"dependency":    factors.Dependency,
		"businessValue": factors.BusinessValue,
		"risk":          factors.Risk,
		"availability":  factors.Availability,
	}
	if err := vm.Set("factors", factorsCtx); err != nil {
		return 0, fmt.Errorf("set factors: %w", err)
	}
	if err := vm.Set("score", score); err != nil {
		return 0, fmt.Errorf("set score: %w", err)
	}

	result, err := vm.RunString(expr)
	if err != nil {
		return 0, fmt.Errorf("rule[%d]: %w", i, err)
	}

	num := result.ToFloat()
	if num != num { // NaN
		return 0, fmt.Errorf("rule[%d]: result is not a number", i)
	}
	return num, nil
}
