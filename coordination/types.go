// Package coordination implements the dynamic filter service: the
// per-coordinator component that registers executing queries and their
// expected dynamic filters, periodically harvests per-task partial
// summaries from the distributed execution of build-side operators,
// merges them into per-filter domains once the completion predicate
// permits, and publishes monotonically-tightening predicates to
// probe-side consumers.
package coordination

import (
	"github.com/dfcoord/dfcoord/plan"
	"github.com/dfcoord/dfcoord/predicate"
)

// FilterId identifies one dynamic filter, assigned at planning time.
type FilterId = plan.FilterId

// FilterIdSet is a set of dynamic filter identifiers.
type FilterIdSet = plan.FilterIdSet

// NewFilterIdSet builds a FilterIdSet from the given ids. Re-exported from
// plan so callers that only otherwise depend on this package (tests, the
// demo CLI) never need to import plan directly for this one helper.
func NewFilterIdSet(ids ...FilterId) FilterIdSet { return plan.NewFilterIdSet(ids...) }

// QueryId identifies one executing query.
type QueryId string

// StageState is the execution state of one build stage. The coordination
// core only ever consults CanScheduleMoreTasks.
type StageState uint8

const (
	Planned StageState = iota
	Scheduling
	Running
	Finishing
	Done
)

// CanScheduleMoreTasks reports whether this stage might still add tasks.
func (s StageState) CanScheduleMoreTasks() bool {
	return s == Planned || s == Scheduling || s == Running
}

func (s StageState) String() string {
	switch s {
	case Planned:
		return "PLANNED"
	case Scheduling:
		return "SCHEDULING"
	case Running:
		return "RUNNING"
	case Finishing:
		return "FINISHING"
	case Done:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// TaskSummary is one reporting task's per-filter partial domains.
type TaskSummary map[FilterId]predicate.Domain

// StageSnapshot is an immutable record of one build stage at one moment,
// returned by a StageSupplier.
type StageSnapshot struct {
	State         StageState
	NumberOfTasks int
	TaskSummaries []TaskSummary
}

// StageSupplier returns the current list of stage snapshots for one
// query. Implementations must be safe to call concurrently, at any
// moment; an empty result means "no progress to report." Encapsulates the
// wire-level task-to-coordinator transport, which the coordination core
// treats as an external collaborator.
type StageSupplier func() []StageSnapshot

// FilterDescriptor names which filter id a scan intends to use and which
// plan-side symbol the filter's predicate applies to.
type FilterDescriptor = plan.FilterDescriptor

// Symbol names a plan-side binding, resolved to a concrete ColHandle once
// a scan operator knows which physical column it reads.
type Symbol = plan.Symbol
