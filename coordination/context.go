package coordination

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dfcoord/dfcoord/predicate"
)

// queryContext holds the mutable aggregation state for one registered
// query. It is created at Register, mutated only by the Collector, and
// dropped at Remove. DynamicFilter handles hold a shared reference and
// may legally outlive removal; such a handle keeps reading this context,
// which no collector tick reaches any more.
//
// Invariants preserved by this type (spec §3):
//   - I1: summaries is monotonic — insert-only, never overwritten.
//   - I2: a lazy filter's readySignal fires exactly once, at the same
//     linearization point its entry is added to summaries.
//   - I3: completed=true implies summaries covers exactly expected and no
//     further mutation occurs.
type queryContext struct {
	supplier   StageSupplier
	expected   FilterIdSet
	replicated FilterIdSet
	lazy       map[FilterId]*readySignal

	mu        sync.Mutex // serializes addDynamicFilters calls only
	summaries sync.Map   // FilterId -> predicate.Domain, lock-free reads
	completed atomic.Bool
}

func newQueryContext(supplier StageSupplier, expected, lazySet, replicated FilterIdSet) *queryContext {
	lazy := make(map[FilterId]*readySignal, len(lazySet))
	for id := range lazySet {
		lazy[id] = newReadySignal()
	}
	return &queryContext{
		supplier:   supplier,
		expected:   expected,
		replicated: replicated,
		lazy:       lazy,
	}
}

// uncollected returns the filter ids in expected that have no finalized
// summary yet.
func (c *queryContext) uncollected() FilterIdSet {
	out := make(FilterIdSet, len(c.expected))
	for id := range c.expected {
		if _, ok := c.summaries.Load(id); !ok {
			out[id] = struct{}{}
		}
	}
	return out
}

func (c *queryContext) summary(id FilterId) (predicate.Domain, bool) {
	v, ok := c.summaries.Load(id)
	if !ok {
		return predicate.Domain{}, false
	}
	return v.(predicate.Domain), true
}

func (c *queryContext) isCompleted() bool {
	return c.completed.Load()
}

// addDynamicFilters finalizes a batch of {filterId -> domain} pairs. It is
// the only place summaries is written and the only place readySignals are
// fired; the Collector is its sole caller, which is what makes the
// concurrency model in spec §5 sound. Insert happens before fire, and
// fire happens before this call returns, so any observer that sees a
// signal fired is guaranteed (via the channel-close happens-before edge)
// to see the corresponding summaries entry on any subsequent read.
func (c *queryContext) addDynamicFilters(batch map[FilterId]predicate.Domain) {
	if len(batch) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for filterId, domain := range batch {
		if _, exists := c.summaries.Load(filterId); exists {
			panic(fmt.Sprintf("BUG: dynamic filter %q finalized twice", filterId))
		}
		c.summaries.Store(filterId, domain)

		if signal, isLazy := c.lazy[filterId]; isLazy {
			if signal.fired() {
				panic(fmt.Sprintf("BUG: readiness signal for dynamic filter %q fired twice", filterId))
			}
			signal.fire()
		}
	}

	c.completed.Store(len(c.uncollected()) == 0)
}
