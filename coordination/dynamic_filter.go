package coordination

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dfcoord/dfcoord/predicate"
)

// DynamicFilter is the view a consumer (a probe-side scan operator) holds
// of the dynamic filters it requested. Every operation beyond Blocked is
// non-blocking; Blocked is the service's only suspension point.
type DynamicFilter interface {
	// IsComplete reports whether every filter this handle requested has a
	// finalized summary.
	IsComplete() bool

	// CurrentPredicate returns the best-known TupleDomain. Calls at
	// t1 < t2 return values where the later one is at least as selective
	// (intersect-refined) as the earlier one. Once IsComplete is true the
	// returned value never changes again.
	CurrentPredicate() predicate.TupleDomain

	// Blocked returns a channel that closes when the set of ready
	// filters grows, or immediately if every requested filter already
	// has an answer (or none needed waiting on in the first place).
	// Callers are expected to re-call Blocked in a loop, checking
	// IsComplete between calls, until done or until ctx is cancelled.
	Blocked(ctx context.Context) <-chan struct{}
}

// CreateDynamicFilter builds a DynamicFilter view for one scan operator.
// descriptors names which filters the scan intends to use and on which
// plan-side symbol; symbolToColumn resolves those symbols to concrete
// source columns in the scan's view of the world.
//
// If queryId is not registered (the query was already removed, or
// dynamic filtering is disabled for it), CreateDynamicFilter returns a
// sentinel that is always complete with TupleDomain.All() and never
// blocks — callers treat this exactly like "dynamic filtering disabled."
func CreateDynamicFilter(registry *Registry, queryId QueryId, descriptors []FilterDescriptor, symbolToColumn map[Symbol]predicate.ColHandle) DynamicFilter {
	sourceCols := make(map[FilterId]predicate.ColHandle, len(descriptors))
	filterIds := make(FilterIdSet, len(descriptors))
	for _, d := range descriptors {
		col, ok := symbolToColumn[d.Symbol]
		if !ok {
			panic(fmt.Sprintf("BUG: no column binding for symbol %q (dynamic filter %q) — plan and scan disagree", d.Symbol, d.FilterId))
		}
		sourceCols[d.FilterId] = col
		filterIds[d.FilterId] = struct{}{}
	}

	ctx, ok := registry.lookup(queryId)
	if !ok {
		return emptyDynamicFilter{}
	}

	pendingSignals := make([]*readySignal, 0, len(filterIds))
	for id := range filterIds {
		if signal, isLazy := ctx.lazy[id]; isLazy {
			pendingSignals = append(pendingSignals, signal)
		}
	}

	return &liveDynamicFilter{
		ctx:            ctx,
		filterIds:      filterIds,
		sourceCols:     sourceCols,
		pendingSignals: pendingSignals,
	}
}

// emptyDynamicFilter is the sentinel returned for an unknown query.
type emptyDynamicFilter struct{}

func (emptyDynamicFilter) IsComplete() bool { return true }

func (emptyDynamicFilter) CurrentPredicate() predicate.TupleDomain { return predicate.AllTuples() }

func (emptyDynamicFilter) Blocked(context.Context) <-chan struct{} { return closedChan() }

// liveDynamicFilter is the real view backed by a registered queryContext.
type liveDynamicFilter struct {
	ctx            *queryContext
	filterIds      FilterIdSet
	sourceCols     map[FilterId]predicate.ColHandle
	pendingSignals []*readySignal

	latched   atomic.Bool
	latchOnce sync.Once
	memoized  predicate.TupleDomain
}

func (f *liveDynamicFilter) IsComplete() bool {
	for id := range f.filterIds {
		if _, ok := f.ctx.summary(id); !ok {
			return false
		}
	}
	return true
}

// CurrentPredicate recomputes the best-known TupleDomain on demand until
// IsComplete becomes true, at which point the result is memoized and
// every subsequent call returns the same value forever (P3). The latch is
// sync.Once-guarded so a race between two callers both observing
// completion for the first time still memoizes exactly one value.
func (f *liveDynamicFilter) CurrentPredicate() predicate.TupleDomain {
	if f.latched.Load() {
		return f.memoized
	}

	result := predicate.AllTuples()
	for id := range f.filterIds {
		domain, ok := f.ctx.summary(id)
		if !ok {
			continue
		}
		col := f.sourceCols[id]
		result = result.Intersect(predicate.WithColumnDomains(map[predicate.ColHandle]predicate.Domain{col: domain}))
	}

	if f.IsComplete() {
		f.latchOnce.Do(func() {
			f.memoized = result
			f.latched.Store(true)
		})
		return f.memoized
	}

	return result
}

func (f *liveDynamicFilter) Blocked(ctx context.Context) <-chan struct{} {
	pending := make([]*readySignal, 0, len(f.pendingSignals))
	for _, signal := range f.pendingSignals {
		if !signal.fired() {
			pending = append(pending, signal)
		}
	}
	if len(pending) == 0 {
		return closedChan()
	}

	result := make(chan struct{})
	go func() {
		cases := make([]<-chan struct{}, 0, len(pending)+1)
		for _, signal := range pending {
			cases = append(cases, signal.done())
		}
		waitAny(ctx, cases)
		close(result)
	}()
	return result
}

// waitAny blocks until ctx is done or any channel in chans closes.
func waitAny(ctx context.Context, chans []<-chan struct{}) {
	// A small, fixed set of cases covers every practical fan-in width
	// (one scan rarely waits on more than a handful of lazy filters); for
	// a handful of pending signals, launching one goroutine per channel
	// that forwards to a shared channel is simpler and just as correct as
	// hand-rolled reflect.Select, and avoids importing reflect. The
	// forwarders share a context cancelled when waitAny returns, so those
	// still waiting on an unfired signal exit instead of lingering.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan struct{})
	var once sync.Once
	fire := func() { once.Do(func() { close(done) }) }

	for _, ch := range chans {
		ch := ch
		go func() {
			select {
			case <-ch:
				fire()
			case <-ctx.Done():
				fire()
			}
		}()
	}

	<-done
}
