// Package scoring computes priority scores for tasks. Scoring is a pure
// function of the task, its project, its dependency states, and the assigned
// worker's current load: no stores are touched and no state is kept between
// calls, so the orchestrator can score items in any order.
package scoring

import (
	"time"

	"github.com/me/taskpilot/internal/config"
	"github.com/me/taskpilot/pkg/model"
)

// DefaultWeights are the factor weights used when no engine config overrides them.
var DefaultWeights = config.Weights{
	Urgency:       0.25,
	Importance:    0.20,
	Effort:        0.10,
	Dependency:    0.15,
	BusinessValue: 0.15,
	Risk:          0.10,
	Availability:  0.05,
}

// WorkerLoadUnassigned marks a task with no assigned worker for the
// availability factor.
const WorkerLoadUnassigned = -1

// Inputs captures everything Score reads for one task.
type Inputs struct {
	Task    *model.Task
	Project *model.Project // nil when the project is unknown

	// Dependencies are the resolved DependsOn tasks. Missing dependencies
	// (dangling ids) are simply absent.
	Dependencies []*model.Task

	// WorkerLoad is the assigned worker's in_progress count, or
	// WorkerLoadUnassigned when the task has no assignee.
	WorkerLoad int

	Now time.Time
}

// Factors holds the seven normalized scoring components, each in [0,1].
type Factors struct {
	Urgency       float64 `json:"urgency"`
	Importance    float64 `json:"importance"`
	Effort        float64 `json:"effort"`
	Dependency    float64 `json:"dependency"`
	BusinessValue float64 `json:"business_value"`
	Risk          float64 `json:"risk"`
	Availability  float64 `json:"availability"`
}

// Scorer computes priority scores with configurable weights, multipliers,
// and optional rule expressions.
type Scorer struct {
	weights     config.Weights
	multipliers map[model.Priority]float64
	rules       *RuleSet
}

// NewScorer creates a Scorer from an optional engine config.
// A nil config yields the built-in defaults.
func NewScorer(cfg *config.EngineConfig) (*Scorer, error) {
	s := &Scorer{weights: DefaultWeights}
	if cfg == nil {
		return s, nil
	}
	if cfg.Weights != nil {
		s.weights = *cfg.Weights
	}
	if len(cfg.Multipliers) > 0 {
		s.multipliers = make(map[model.Priority]float64, len(cfg.Multipliers))
		for level, m := range cfg.Multipliers {
			s.multipliers[model.Priority(level)] = m
		}
	}
	if len(cfg.Rules) > 0 {
		rs, err := NewRuleSet(cfg.Rules)
		if err != nil {
			return nil, err
		}
		s.rules = rs
	}
	return s, nil
}

// Score computes the priority score in [0,100] and returns the factor
// breakdown alongside it.
func (s *Scorer) Score(in Inputs) (float64, Factors) {
	f := Compute(in)

	composite := f.Urgency*s.weights.Urgency +
		f.Importance*s.weights.Importance +
		f.Effort*s.weights.Effort +
		f.Dependency*s.weights.Dependency +
		f.BusinessValue*s.weights.BusinessValue +
		f.Risk*s.weights.Risk +
		f.Availability*s.weights.Availability

	if s.rules != nil {
		composite = s.rules.Apply(in.Task, f, composite)
	}

	score := composite * s.multiplier(in.Task.Priority) * 100
	return clamp(score, 0, 100), f
}

func (s *Scorer) multiplier(p model.Priority) float64 {
	if s.multipliers != nil {
		if m, ok := s.multipliers[p]; ok {
			return m
		}
	}
	return p.Multiplier()
}

// Compute evaluates all seven normalized factors for a task.
func Compute(in Inputs) Factors {
	return Factors{
		Urgency:       urgencyFactor(in.Task, in.Now),
		Importance:    importanceFactor(in.Task, in.Project),
		Effort:        effortFactor(in.Task),
		Dependency:    dependencyFactor(in.Task, in.Dependencies),
		BusinessValue: businessValueFactor(in.Task, in.Project),
		Risk:          riskFactor(in.Task, in.Now),
		Availability:  availabilityFactor(in.WorkerLoad),
	}
}

// urgencyFactor rates deadline pressure. Tasks without a due date are treated
// as moderately urgent rather than cold.
func urgencyFactor(t *model.Task, now time.Time) float64 {
	if t.DueDate == nil {
		return 0.5
	}
	until := t.DueDate.Sub(now)
	switch {
	case until <= 0:
		return 1.0 // overdue
	case until < 24*time.Hour:
		return 0.9
	case until < 72*time.Hour:
		return 0.7
	case until < 168*time.Hour:
		return 0.5
	default:
		return 0.3
	}
}

// importanceFactor rates the task's weight within its project context.
func importanceFactor(t *model.Task, p *model.Project) float64 {
	importance := 0.5
	if p != nil {
		if p.Stage == model.StageReview || p.Stage == model.StageTesting {
			importance += 0.2
		}
		if p.CollaborationScore != nil && *p.CollaborationScore > 70 {
			importance += 0.1
		}
	}
	switch t.Category {
	case "bug", "security":
		importance += 0.3
	case "feature":
		importance += 0.1
	}
	return min(importance, 1.0)
}

// effortFactor rewards quick wins: smaller estimates score higher.
func effortFactor(t *model.Task) float64 {
	if t.EstimatedHours == nil || *t.EstimatedHours <= 0 {
		return 0.5
	}
	switch h := *t.EstimatedHours; {
	case h <= 1:
		return 0.9
	case h <= 4:
		return 0.7
	case h <= 8:
		return 0.5
	default:
		return 0.3
	}
}

// dependencyFactor rates readiness: tasks that unblock others score high,
// tasks waiting on incomplete dependencies score by completion fraction.
func dependencyFactor(t *model.Task, deps []*model.Task) float64 {
	if len(t.DependsOn) > 0 {
		completed := 0
		for _, dep := range deps {
			if dep.Status == model.TaskStatusCompleted {
				completed++
			}
		}
		return float64(completed) / float64(len(t.DependsOn))
	}
	if len(t.Blocks) > 0 {
		return 0.8
	}
	return 0.5
}

// businessValueFactor uses an explicit metadata value when present, otherwise
// leans on project progress (late-stage work is closer to payoff).
func businessValueFactor(t *model.Task, p *model.Project) float64 {
	if v, ok := t.BusinessValue(); ok {
		return clamp(v/100, 0, 1)
	}
	if p != nil && p.Progress > 80 {
		return 0.7
	}
	return 0.5
}

// riskFactor rates staleness and blockage.
func riskFactor(t *model.Task, now time.Time) float64 {
	risk := 0.3
	if t.Status == model.TaskStatusPending {
		age := now.Sub(t.CreatedAt)
		switch {
		case age > 14*24*time.Hour:
			risk = 0.9
		case age > 7*24*time.Hour:
			risk = 0.7
		}
	}
	if t.Status == model.TaskStatusBlocked {
		risk += 0.3
	}
	return min(risk, 1.0)
}

// availabilityFactor rates how free the assigned worker is.
func availabilityFactor(load int) float64 {
	switch {
	case load == WorkerLoadUnassigned:
		return 0.5
	case load == 0:
		return 1.0
	case load < 3:
		return 0.7
	default:
		return 0.3
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
