package coordination

import (
	"fmt"
	"sync"

	"github.com/dfcoord/dfcoord/observability"
	"github.com/dfcoord/dfcoord/predicate"
)

// Registry is the process-wide mapping from QueryId to queryContext,
// safe for concurrent register/remove/lookup. It is an explicit
// dependency passed to the Collector and to CreateDynamicFilter, never an
// ambient singleton, so tests can construct an isolated Registry per case.
type Registry struct {
	contexts sync.Map // QueryId -> *queryContext
	events   *observability.Collector

	maxDomainsPerQuery int
	simplifyThreshold  int
}

// defaultSimplifyThreshold is the display-simplification bound the
// original service uses when nothing overrides it: simplify(1).
const defaultSimplifyThreshold = 1

// NewRegistry returns an empty Registry. A nil handler disables event
// recording entirely.
func NewRegistry(handler observability.Handler) *Registry {
	return &Registry{events: observability.NewCollector(handler)}
}

// SetMaxDomainsPerQuery bounds how many expected filters a single query
// may register; Register panics past this limit. Zero (the default)
// means unlimited. This mirrors config.Config.MaxDomainsPerQuery — wiring
// it here is a call the process embedding this Registry makes once at
// startup, not something the coordination core decides for itself.
func (r *Registry) SetMaxDomainsPerQuery(n int) {
	r.maxDomainsPerQuery = n
}

// SetSimplifyThreshold sets how many disjuncts a finalized Domain may show
// in the stats view before it collapses to ALL. Zero (the default) falls
// back to defaultSimplifyThreshold; this mirrors config.Config.SimplifyThreshold.
func (r *Registry) SetSimplifyThreshold(n int) {
	r.simplifyThreshold = n
}

// SimplifyThreshold returns the display-simplification bound in effect for
// this registry, applying defaultSimplifyThreshold if none was set.
func (r *Registry) SimplifyThreshold() int {
	if r.simplifyThreshold > 0 {
		return r.simplifyThreshold
	}
	return defaultSimplifyThreshold
}

// Register records a new query's expected dynamic filters. It is
// idempotent: if a context already exists for queryId, this call is a
// no-op, matching putIfAbsent semantics. Register must only be called
// with a non-empty expected set — calling it with an empty set is a
// programming error (a query with no dynamic filters should simply never
// be registered) and panics rather than silently creating a context that
// can never complete meaningfully.
func (r *Registry) Register(queryId QueryId, supplier StageSupplier, expected, lazy, replicated FilterIdSet) {
	if len(expected) == 0 {
		panic(fmt.Sprintf("BUG: Register called for query %q with an empty expected filter set", queryId))
	}
	if r.maxDomainsPerQuery > 0 && len(expected) > r.maxDomainsPerQuery {
		panic(fmt.Sprintf("BUG: query %q registers %d dynamic filters, exceeding the configured limit of %d", queryId, len(expected), r.maxDomainsPerQuery))
	}

	ctx := newQueryContext(supplier, expected, lazy, replicated)
	_, loaded := r.contexts.LoadOrStore(queryId, ctx)
	r.events.Add(observability.Event{
		Name: observability.QueryRegistered,
		Data: map[string]interface{}{
			"query_id":        string(queryId),
			"already_present": loaded,
			"expected":        len(expected),
			"lazy":            len(lazy),
			"replicated":      len(replicated),
		},
	})
}

// Remove drops the context for queryId, if any. Any collector tick
// already in flight for that query completes harmlessly: it finishes
// writing to a *queryContext object nobody else can reach any more. The
// return value of the underlying delete is intentionally not surfaced —
// removing an unknown query is not an error.
func (r *Registry) Remove(queryId QueryId) {
	r.contexts.Delete(queryId)
	r.events.Add(observability.Event{
		Name: observability.QueryRemoved,
		Data: map[string]interface{}{"query_id": string(queryId)},
	})
}

// lookup returns the context for queryId, if one is registered.
func (r *Registry) lookup(queryId QueryId) (*queryContext, bool) {
	v, ok := r.contexts.Load(queryId)
	if !ok {
		return nil, false
	}
	return v.(*queryContext), true
}

// QueryState is the introspection view of one query's aggregation state,
// exported so the stats package can render it without reaching into
// unexported queryContext internals.
type QueryState struct {
	Expected   FilterIdSet
	Lazy       FilterIdSet
	Replicated FilterIdSet
	Domains    map[FilterId]predicate.Domain
	Completed  bool
}

// State returns the current QueryState for queryId, or ok=false if no
// query is registered under that id.
func (r *Registry) State(queryId QueryId) (state QueryState, ok bool) {
	ctx, found := r.lookup(queryId)
	if !found {
		return QueryState{}, false
	}
	domains := make(map[FilterId]predicate.Domain, len(ctx.expected))
	for id := range ctx.expected {
		if d, has := ctx.summary(id); has {
			domains[id] = d
		}
	}
	lazy := make(FilterIdSet, len(ctx.lazy))
	for id := range ctx.lazy {
		lazy[id] = struct{}{}
	}
	return QueryState{
		Expected:   ctx.expected,
		Lazy:       lazy,
		Replicated: ctx.replicated,
		Domains:    domains,
		Completed:  ctx.isCompleted(),
	}, true
}

// snapshot returns every currently-registered (QueryId, *queryContext)
// pair. Order is unspecified; concurrent Register/Remove calls during the
// scan are tolerated (spec §4.3 step 1).
func (r *Registry) snapshot() map[QueryId]*queryContext {
	out := make(map[QueryId]*queryContext)
	r.contexts.Range(func(key, value interface{}) bool {
		out[key.(QueryId)] = value.(*queryContext)
		return true
	})
	return out
}
