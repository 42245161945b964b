package scheduler

import (
	"sort"

	"github.com/me/taskpilot/pkg/model"
)

// scoreTieBand is the score gap below which two candidates are considered
// tied and fall through to the next sort criterion.
const scoreTieBand = 10.0

// SortCandidates orders candidate tasks for slot placement:
//
//  1. descending priority score, where only a gap larger than scoreTieBand
//     is decisive
//  2. ascending due date, tasks without a due date last
//  3. ascending estimated effort (quick jobs first)
//
// The sort is stable so equally ranked tasks keep their input order.
func SortCandidates(tasks []*model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]

		if diff := a.PriorityScore - b.PriorityScore; diff > scoreTieBand {
			return true
		} else if diff < -scoreTieBand {
			return false
		}

		switch {
		case a.DueDate != nil && b.DueDate == nil:
			return true
		case a.DueDate == nil && b.DueDate != nil:
			return false
		case a.DueDate != nil && b.DueDate != nil && !a.DueDate.Equal(*b.DueDate):
			return a.DueDate.Before(*b.DueDate)
		}

		return a.EffortHours() < b.EffortHours()
	})
}
