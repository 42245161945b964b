package scheduler

import (
	"time"

	"github.com/me/taskpilot/pkg/model"
)

// Slot confidence constants for non-naive placements.
const (
	confidenceInProgress = 0.9 // items already being worked on
	confidenceGapFill    = 0.6 // placed into a gap between existing slots
	confidenceLeadingGap = 0.5 // squeezed in before the first existing slot
)

// buildContext carries the shared cycle state every per-worker build reads:
// the cycle clock, the planning horizon, the full task index for dependency
// lookups, and the partially built schedules of all workers (cross-worker
// dependency lookahead).
type buildContext struct {
	now       time.Time
	horizon   time.Time
	tasks     map[string]*model.Task
	schedules map[string][]model.Slot
}

// buildWorkerSchedule walks the sorted candidates for one worker and places
// them into an ordered, non-overlapping slot list.
//
// In-progress items are seeded first at fixed high confidence. Each candidate
// is then placed at the cursor unless its deadline forces a gap search; when
// no earlier gap satisfies the deadline, the late naive slot is kept and
// flagged at-risk rather than dropping the task from the schedule.
func buildWorkerSchedule(bc *buildContext, workerID string, inProgress, candidates []*model.Task) []model.Slot {
	cursor := bc.now
	slots := make([]model.Slot, 0, len(inProgress)+len(candidates))

	for _, t := range inProgress {
		end := cursor.Add(effortDuration(t))
		slots = append(slots, model.Slot{
			TaskID:     t.ID,
			WorkerID:   workerID,
			StartTime:  cursor,
			EndTime:    end,
			Confidence: confidenceInProgress,
		})
		cursor = end
	}

	for _, t := range candidates {
		if cursor.After(bc.horizon) {
			break
		}
		if !dependenciesSatisfied(bc, slots, t, cursor) {
			continue
		}

		dur := effortDuration(t)
		naive := model.Slot{
			TaskID:    t.ID,
			WorkerID:  workerID,
			StartTime: cursor,
			EndTime:   cursor.Add(dur),
		}

		if t.DueDate != nil && naive.EndTime.After(*t.DueDate) {
			if early, ok := findEarlierSlot(slots, bc.now, dur, *t.DueDate); ok {
				early.TaskID = t.ID
				early.WorkerID = workerID
				slots = insertSorted(slots, early)
				continue
			}
			// No placement meets the deadline; accept the late slot but
			// surface it distinctly.
			naive.Confidence = slotConfidence(t, naive.EndTime)
			naive.AtRisk = true
			slots = append(slots, naive)
			cursor = naive.EndTime
			continue
		}

		naive.Confidence = slotConfidence(t, naive.EndTime)
		slots = append(slots, naive)
		cursor = naive.EndTime
	}

	return slots
}

// dependenciesSatisfied reports whether every dependency of t is completed or
// already placed (in any worker's schedule this cycle, or earlier in this
// worker's own list) with an end time no later than the prospective start.
//
// This is an ordering guarantee only: two dependent tasks may still land on
// different workers running in parallel, which models sequencing of work,
// not exclusive resource access.
func dependenciesSatisfied(bc *buildContext, local []model.Slot, t *model.Task, start time.Time) bool {
	for _, depID := range t.DependsOn {
		dep, ok := bc.tasks[depID]
		if !ok {
			// The dependency record is gone; nothing left to wait on.
			continue
		}
		if dep.Status == model.TaskStatusCompleted {
			continue
		}
		if end, placed := placedEnd(bc, local, depID); placed && !end.After(start) {
			continue
		}
		return false
	}
	return true
}

// placedEnd finds the end time of a task's slot in the partially built cycle.
func placedEnd(bc *buildContext, local []model.Slot, taskID string) (time.Time, bool) {
	for _, slot := range local {
		if slot.TaskID == taskID {
			return slot.EndTime, true
		}
	}
	for _, slots := range bc.schedules {
		for _, slot := range slots {
			if slot.TaskID == taskID {
				return slot.EndTime, true
			}
		}
	}
	return time.Time{}, false
}

// findEarlierSlot searches for a placement of the given duration that ends by
// the due date: first in gaps between already-placed slots, then in the
// window before the first slot.
func findEarlierSlot(slots []model.Slot, now time.Time, dur time.Duration, due time.Time) (model.Slot, bool) {
	for i := 0; i+1 < len(slots); i++ {
		gapStart := slots[i].EndTime
		gapEnd := slots[i+1].StartTime
		if gapEnd.Sub(gapStart) >= dur && !gapStart.Add(dur).After(due) {
			return model.Slot{
				StartTime:  gapStart,
				EndTime:    gapStart.Add(dur),
				Confidence: confidenceGapFill,
			}, true
		}
	}

	if len(slots) > 0 {
		first := slots[0].StartTime
		if first.Sub(now) >= dur && !now.Add(dur).After(due) {
			return model.Slot{
				StartTime:  now,
				EndTime:    now.Add(dur),
				Confidence: confidenceLeadingGap,
			}, true
		}
	}

	return model.Slot{}, false
}

// slotConfidence rates a naive placement: deadline fit dominates, with a
// small bump for high-priority work.
func slotConfidence(t *model.Task, end time.Time) float64 {
	conf := 0.7
	if t.DueDate != nil {
		buffer := t.DueDate.Sub(end)
		switch {
		case buffer < 0:
			conf -= 0.3
		case buffer < 24*time.Hour:
			conf -= 0.1
		default:
			conf += 0.1
		}
	}
	if t.PriorityScore > 80 {
		conf += 0.1
	}
	return clampConfidence(conf)
}

func clampConfidence(c float64) float64 {
	if c < 0.1 {
		return 0.1
	}
	if c > 1.0 {
		return 1.0
	}
	return c
}

// insertSorted inserts a slot keeping the list ordered by start time.
func insertSorted(slots []model.Slot, slot model.Slot) []model.Slot {
	for i, s := range slots {
		if slot.StartTime.Before(s.StartTime) {
			slots = append(slots, model.Slot{})
			copy(slots[i+1:], slots[i:])
			slots[i] = slot
			return slots
		}
	}
	return append(slots, slot)
}

func effortDuration(t *model.Task) time.Duration {
	return time.Duration(t.EffortHours() * float64(time.Hour))
}
