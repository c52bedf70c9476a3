package coordination

import (
	"context"
	"testing"
	"time"

	"github.com/dfcoord/dfcoord/predicate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeSupplier(stages ...StageSnapshot) StageSupplier {
	return func() []StageSnapshot { return stages }
}

// TestSingleNonReplicatedFilter is scenario S1: two tasks report disjoint
// ranges for a single non-replicated filter in a closed stage; one tick
// finalizes the union and unblocks a previously-registered waiter.
func TestSingleNonReplicatedFilter(t *testing.T) {
	registry := NewRegistry(nil)
	supplier := fakeSupplier(StageSnapshot{
		State:         Finishing,
		NumberOfTasks: 2,
		TaskSummaries: []TaskSummary{
			{"f1": predicate.OfRanges(predicate.Range{Low: predicate.Int(1), High: predicate.Int(5), HasLow: true, HasHigh: true})},
			{"f1": predicate.OfRanges(predicate.Range{Low: predicate.Int(7), High: predicate.Int(9), HasLow: true, HasHigh: true})},
		},
	})

	registry.Register("Q1", supplier, NewFilterIdSet("f1"), NewFilterIdSet("f1"), NewFilterIdSet())
	filter := CreateDynamicFilter(registry, "Q1", []FilterDescriptor{{FilterId: "f1", Symbol: "?x"}}, map[Symbol]predicate.ColHandle{"?x": predicate.Col("t.x")})

	blocked := filter.Blocked(context.Background())

	collector := NewCollector(registry, time.Hour, nil)
	collector.Tick()

	select {
	case <-blocked:
	case <-time.After(time.Second):
		t.Fatal("expected blocked() to complete after finalization")
	}

	assert.True(t, filter.IsComplete())
	pred := filter.CurrentPredicate()
	cols := pred.ColumnDomains()
	require.Contains(t, cols, predicate.Col("t.x"))
	assert.Equal(t, 2, cols[predicate.Col("t.x")].RangeCount())
}

// TestPartialCoverageLeavesBlocked is scenario S2: only one of two
// expected tasks has reported; the collector must not finalize, and a
// previously-taken Blocked() must remain pending.
func TestPartialCoverageLeavesBlocked(t *testing.T) {
	registry := NewRegistry(nil)
	supplier := fakeSupplier(StageSnapshot{
		State:         Finishing,
		NumberOfTasks: 2,
		TaskSummaries: []TaskSummary{
			{"f1": predicate.OfRanges(predicate.Range{Low: predicate.Int(1), High: predicate.Int(5), HasLow: true, HasHigh: true})},
		},
	})

	registry.Register("Q1", supplier, NewFilterIdSet("f1"), NewFilterIdSet("f1"), NewFilterIdSet())
	filter := CreateDynamicFilter(registry, "Q1", []FilterDescriptor{{FilterId: "f1", Symbol: "?x"}}, map[Symbol]predicate.ColHandle{"?x": predicate.Col("t.x")})
	blocked := filter.Blocked(context.Background())

	collector := NewCollector(registry, time.Hour, nil)
	collector.Tick()

	select {
	case <-blocked:
		t.Fatal("blocked() should not complete with partial coverage")
	case <-time.After(50 * time.Millisecond):
	}

	assert.False(t, filter.IsComplete())
}

// TestAllShortCircuit is scenario S3: one of two tasks reports ALL before
// the stage closes; the filter finalizes immediately as ALL.
func TestAllShortCircuit(t *testing.T) {
	registry := NewRegistry(nil)
	supplier := fakeSupplier(StageSnapshot{
		State:         Running, // still schedulable, doesn't matter for rule A
		NumberOfTasks: 2,
		TaskSummaries: []TaskSummary{
			{"f1": predicate.All()},
		},
	})

	registry.Register("Q1", supplier, NewFilterIdSet("f1"), NewFilterIdSet("f1"), NewFilterIdSet())
	filter := CreateDynamicFilter(registry, "Q1", []FilterDescriptor{{FilterId: "f1", Symbol: "?x"}}, map[Symbol]predicate.ColHandle{"?x": predicate.Col("t.x")})

	NewCollector(registry, time.Hour, nil).Tick()

	assert.True(t, filter.IsComplete())
	assert.True(t, filter.CurrentPredicate().IsAll())
}

// TestReplicatedFinalizesFromOneTask is scenario S4: a replicated filter
// finalizes from a single task's report even while the stage can still
// schedule more tasks.
func TestReplicatedFinalizesFromOneTask(t *testing.T) {
	registry := NewRegistry(nil)
	supplier := fakeSupplier(StageSnapshot{
		State:         Running,
		NumberOfTasks: 4,
		TaskSummaries: []TaskSummary{
			{"f2": predicate.Discrete(predicate.Int(42))},
		},
	})

	registry.Register("Q1", supplier, NewFilterIdSet("f2"), NewFilterIdSet(), NewFilterIdSet("f2"))
	NewCollector(registry, time.Hour, nil).Tick()

	filter := CreateDynamicFilter(registry, "Q1", []FilterDescriptor{{FilterId: "f2", Symbol: "?y"}}, map[Symbol]predicate.ColHandle{"?y": predicate.Col("t.y")})
	assert.True(t, filter.IsComplete())
}

// TestUnknownQueryReturnsEmptySentinel is scenario S5.
func TestUnknownQueryReturnsEmptySentinel(t *testing.T) {
	registry := NewRegistry(nil)
	filter := CreateDynamicFilter(registry, "no-such-query", []FilterDescriptor{{FilterId: "f1", Symbol: "?x"}}, map[Symbol]predicate.ColHandle{"?x": predicate.Col("t.x")})

	assert.True(t, filter.IsComplete())
	assert.True(t, filter.CurrentPredicate().IsAll())
	select {
	case <-filter.Blocked(context.Background()):
	default:
		t.Fatal("empty sentinel's Blocked() must already be complete")
	}
}

// TestTwoFiltersIncrementalUnblock is scenario S6: a handle waiting on two
// lazy filters unblocks on the first finalization but stays incomplete
// until the second arrives, and a fresh Blocked() call after the first
// tick still waits for the second.
func TestTwoFiltersIncrementalUnblock(t *testing.T) {
	registry := NewRegistry(nil)
	stage1 := StageSnapshot{
		State:         Finishing,
		NumberOfTasks: 1,
		TaskSummaries: []TaskSummary{
			{"f1": predicate.Discrete(predicate.Int(1))},
		},
	}
	fake := &controllableSupplier{stages: stage1}

	registry.Register("Q1", fake.Supplier(), NewFilterIdSet("f1", "f2"), NewFilterIdSet("f1", "f2"), NewFilterIdSet())
	filter := CreateDynamicFilter(registry, "Q1", []FilterDescriptor{
		{FilterId: "f1", Symbol: "?x"},
		{FilterId: "f2", Symbol: "?y"},
	}, map[Symbol]predicate.ColHandle{"?x": predicate.Col("t.x"), "?y": predicate.Col("t.y")})

	firstBlocked := filter.Blocked(context.Background())

	collector := NewCollector(registry, time.Hour, nil)
	collector.Tick()

	select {
	case <-firstBlocked:
	case <-time.After(time.Second):
		t.Fatal("expected unblock after f1 finalizes")
	}
	assert.False(t, filter.IsComplete())

	secondBlocked := filter.Blocked(context.Background())
	select {
	case <-secondBlocked:
		t.Fatal("second blocked() must wait for f2")
	case <-time.After(50 * time.Millisecond):
	}

	fake.setStages(StageSnapshot{
		State:         Finishing,
		NumberOfTasks: 1,
		TaskSummaries: []TaskSummary{
			{"f2": predicate.Discrete(predicate.Int(2))},
		},
	})
	collector.Tick()

	select {
	case <-secondBlocked:
	case <-time.After(time.Second):
		t.Fatal("expected unblock after f2 finalizes")
	}
	assert.True(t, filter.IsComplete())
}

type controllableSupplier struct {
	stages StageSnapshot
}

func (c *controllableSupplier) setStages(s StageSnapshot) { c.stages = s }

func (c *controllableSupplier) Supplier() StageSupplier {
	return func() []StageSnapshot { return []StageSnapshot{c.stages} }
}
