package coordination

import (
	"sync"
	"time"

	"github.com/dfcoord/dfcoord/observability"
	"github.com/dfcoord/dfcoord/predicate"
)

// Collector is the single-threaded periodic task that scans all active
// query contexts, pulls fresh per-stage snapshots from each one's
// supplier, applies the completion predicate per filter, and installs
// finalized domains. Exactly one goroutine runs the tick loop, matching
// the "single dedicated worker thread with a periodic fixed-delay
// schedule" requirement of spec §5.
type Collector struct {
	registry *Registry
	interval time.Duration
	events   *observability.Collector

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewCollector returns a Collector that, once Started, ticks against
// registry every interval. interval must be positive.
func NewCollector(registry *Registry, interval time.Duration, handler observability.Handler) *Collector {
	if interval <= 0 {
		panic("BUG: Collector interval must be positive")
	}
	return &Collector{
		registry: registry,
		interval: interval,
		events:   observability.NewCollector(handler),
	}
}

// Start launches the single collection goroutine. Calling Start twice on
// the same Collector without an intervening Stop is a programming error.
func (c *Collector) Start() {
	if c.stopCh != nil {
		panic("BUG: Collector started twice without an intervening Stop")
	}
	c.stopCh = make(chan struct{})
	ticker := time.NewTicker(c.interval)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-c.stopCh:
				return
			case <-ticker.C:
				c.tick()
			}
		}
	}()
}

// Stop cancels the periodic task and waits for the in-flight tick, if
// any, to finish. Registered queries are left exactly as they were; Stop
// never mutates any context.
func (c *Collector) Stop() {
	if c.stopCh == nil {
		return
	}
	close(c.stopCh)
	c.wg.Wait()
	c.stopCh = nil
}

// Tick runs one collection pass synchronously. Exported for tests and the
// demo CLI, which need deterministic control over when a pass happens
// rather than waiting on the ticker.
func (c *Collector) Tick() {
	c.tick()
}

func (c *Collector) tick() {
	contexts := c.registry.snapshot()
	c.events.Add(observability.Event{
		Name: observability.CollectorTick,
		Data: map[string]interface{}{"query_count": len(contexts)},
	})

	for queryId, ctx := range contexts {
		c.collectOne(queryId, ctx)
	}
}

// collectOne runs one context's collection pass. A panicking or
// misbehaving supplier is isolated to this one context — spec §7 requires
// that a single tick's supplier failure not affect other queries' ticks.
func (c *Collector) collectOne(queryId QueryId, ctx *queryContext) {
	defer func() {
		if r := recover(); r != nil {
			c.events.Add(observability.Event{
				Name: observability.SupplierFailed,
				Data: map[string]interface{}{
					"query_id": string(queryId),
					"error":    r,
				},
			})
		}
	}()

	if ctx.isCompleted() {
		return
	}

	uncollected := ctx.uncollected()
	if len(uncollected) == 0 {
		return
	}

	stages := ctx.supplier()
	finalized := make(map[FilterId]predicate.Domain)

	for _, stage := range stages {
		perFilter := groupByFilter(stage.TaskSummaries, uncollected)
		for filterId, domains := range perFilter {
			if value, ok := finalizeIfReady(filterId, domains, stage, ctx.replicated); ok {
				finalized[filterId] = value
			}
		}
	}

	for filterId, domain := range finalized {
		c.events.Add(observability.Event{
			Name: observability.FilterFinalized,
			Data: map[string]interface{}{
				"query_id":  string(queryId),
				"filter_id": string(filterId),
				"domain":    domain.String(),
			},
		})
	}

	ctx.addDynamicFilters(finalized)
}

// groupByFilter collects, for each uncollected filter id that appears in
// any task of the stage, the list of per-task domains reported for it.
func groupByFilter(tasks []TaskSummary, uncollected FilterIdSet) map[FilterId][]predicate.Domain {
	out := make(map[FilterId][]predicate.Domain)
	for _, task := range tasks {
		for filterId, domain := range task {
			if !uncollected.Contains(filterId) {
				continue
			}
			out[filterId] = append(out[filterId], domain)
		}
	}
	return out
}

// finalizeIfReady applies the completion predicate (spec §4.3 rules A/B/C)
// to one filter's per-task domains within one stage snapshot.
//
//   - Rule A: any reported domain is ALL -> finalize as ALL immediately.
//   - Rule B: filterId is replicated -> one task is authoritative; union
//     whatever has been reported so far (semantically equal to any single
//     report for a broadcast build).
//   - Rule C: otherwise, finalize only once the stage can no longer
//     schedule more tasks and every expected task has reported; the
//     finalized value is the union of all reported domains.
func finalizeIfReady(filterId FilterId, domains []predicate.Domain, stage StageSnapshot, replicated FilterIdSet) (predicate.Domain, bool) {
	for _, d := range domains {
		if d.IsAll() {
			return predicate.All(), true
		}
	}

	if replicated.Contains(filterId) {
		return predicate.UnionAll(domains...), true
	}

	if !stage.State.CanScheduleMoreTasks() && len(domains) == stage.NumberOfTasks {
		return predicate.UnionAll(domains...), true
	}

	return predicate.Domain{}, false
}
