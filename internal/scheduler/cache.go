package scheduler

import (
	"sync"

	"github.com/me/taskpilot/pkg/model"
)

// Cache holds the current cycle's per-worker schedules. The build phase
// assembles a complete replacement map and swaps it in atomically, so readers
// only ever observe a fully built cycle, never a partial one.
type Cache struct {
	mu        sync.RWMutex
	schedules map[string][]model.Slot // worker ID → ordered slots
}

// NewCache returns an empty schedule cache.
func NewCache() *Cache {
	return &Cache{schedules: make(map[string][]model.Slot)}
}

// Replace swaps in a freshly built schedule map.
func (c *Cache) Replace(schedules map[string][]model.Slot) {
	c.mu.Lock()
	c.schedules = schedules
	c.mu.Unlock()
}

// WorkerSchedule returns a copy of the worker's slot list for this cycle.
func (c *Cache) WorkerSchedule(workerID string) []model.Slot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	slots := c.schedules[workerID]
	out := make([]model.Slot, len(slots))
	copy(out, slots)
	return out
}

// TaskSlot returns the slot placed for a task this cycle, if any.
func (c *Cache) TaskSlot(taskID string) (model.Slot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, slots := range c.schedules {
		for _, slot := range slots {
			if slot.TaskID == taskID {
				return slot, true
			}
		}
	}
	return model.Slot{}, false
}

// Len returns the total number of cached slots across all workers.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, slots := range c.schedules {
		n += len(slots)
	}
	return n
}
