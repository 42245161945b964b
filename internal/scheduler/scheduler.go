package scheduler

import "context"

// Scheduler recomputes task priorities and builds per-worker schedules on a
// fixed cycle.
type Scheduler interface {
	// Start begins the cycle loop. Blocks until ctx is cancelled.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the scheduler.
	Stop() error

	// RunCycle runs a single scoring+building+applying cycle. Used on
	// startup and for testing.
	RunCycle(ctx context.Context) error
}
