package scheduler

import (
	"testing"
	"time"

	"github.com/me/taskpilot/pkg/model"
)

func TestCache_ReplaceAndLookup(t *testing.T) {
	c := NewCache()
	now := time.Now().UTC()

	c.Replace(map[string][]model.Slot{
		"w1": {
			{TaskID: "a", WorkerID: "w1", StartTime: now, EndTime: now.Add(time.Hour)},
			{TaskID: "b", WorkerID: "w1", StartTime: now.Add(time.Hour), EndTime: now.Add(2 * time.Hour)},
		},
		"w2": {
			{TaskID: "c", WorkerID: "w2", StartTime: now, EndTime: now.Add(time.Hour)},
		},
	})

	if c.Len() != 3 {
		t.Errorf("len = %d, want 3", c.Len())
	}

	slot, ok := c.TaskSlot("c")
	if !ok || slot.WorkerID != "w2" {
		t.Errorf("slot = %+v, ok = %v", slot, ok)
	}
	if _, ok := c.TaskSlot("z"); ok {
		t.Error("found slot for unknown task")
	}

	if got := c.WorkerSchedule("w1"); len(got) != 2 {
		t.Errorf("w1 schedule = %+v", got)
	}
	if got := c.WorkerSchedule("ghost"); len(got) != 0 {
		t.Errorf("unknown worker schedule = %+v", got)
	}
}

// Mutating a returned schedule must not leak into the cache.
func TestCache_WorkerScheduleIsCopy(t *testing.T) {
	c := NewCache()
	now := time.Now().UTC()

	c.Replace(map[string][]model.Slot{
		"w1": {{TaskID: "a", StartTime: now, EndTime: now.Add(time.Hour)}},
	})

	got := c.WorkerSchedule("w1")
	got[0].TaskID = "mutated"

	fresh := c.WorkerSchedule("w1")
	if fresh[0].TaskID != "a" {
		t.Errorf("cache mutated through returned slice: %+v", fresh)
	}
}

func TestCache_ReplaceDropsOldCycle(t *testing.T) {
	c := NewCache()
	now := time.Now().UTC()

	c.Replace(map[string][]model.Slot{
		"w1": {{TaskID: "old", StartTime: now, EndTime: now.Add(time.Hour)}},
	})
	c.Replace(map[string][]model.Slot{
		"w1": {{TaskID: "new", StartTime: now, EndTime: now.Add(time.Hour)}},
	})

	if _, ok := c.TaskSlot("old"); ok {
		t.Error("previous cycle's slot survived the swap")
	}
	if _, ok := c.TaskSlot("new"); !ok {
		t.Error("current cycle's slot missing")
	}
}
