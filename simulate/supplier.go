// Package simulate stands in for the wire-level task-to-coordinator
// transport that the coordination core treats as an external
// collaborator: it gives the demo CLI a concrete, in-memory
// StageSupplier to register queries against, the same role
// datalog/executor's test fixtures play for the query executor.
package simulate

import (
	"sync"

	"github.com/dfcoord/dfcoord/coordination"
)

// FakeSupplier is a mutable, mutex-guarded in-memory
// coordination.StageSupplier used by the demo CLI to drive the
// collector through a scripted sequence of stage snapshots.
type FakeSupplier struct {
	mu     sync.Mutex
	stages []coordination.StageSnapshot
	failed bool
}

// NewFakeSupplier returns an empty FakeSupplier reporting no progress.
func NewFakeSupplier() *FakeSupplier {
	return &FakeSupplier{}
}

// SetStages replaces the snapshots this supplier will return.
func (f *FakeSupplier) SetStages(stages []coordination.StageSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stages = stages
}

// FailNextCall makes the next Supplier() call panic once, simulating a
// supplier failure so callers can exercise the collector's per-tick
// isolation.
func (f *FakeSupplier) FailNextCall() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = true
}

// Supplier returns a coordination.StageSupplier bound to this fake's
// current state.
func (f *FakeSupplier) Supplier() coordination.StageSupplier {
	return func() []coordination.StageSnapshot {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failed {
			f.failed = false
			panic("simulated supplier failure")
		}
		out := make([]coordination.StageSnapshot, len(f.stages))
		copy(out, f.stages)
		return out
	}
}
