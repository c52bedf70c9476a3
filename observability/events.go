// Package observability provides a low-overhead event collector for
// tracking dynamic filter coordination activity, in the same spirit as
// the query engine's own annotation system: zero cost when no handler is
// installed, structured fields when one is.
package observability

import (
	"sync"
	"time"
)

// Event names used by the coordination package. Hierarchical, slash-
// separated naming follows the engine's own annotation convention.
const (
	QueryRegistered  = "query/registered"
	QueryRemoved     = "query/removed"
	CollectorTick    = "collector/tick"
	FilterFinalized  = "filter/finalized"
	FilterSignalFire = "filter/signal.fired"
	SupplierFailed   = "supplier/failed"
)

// Event represents a single observable occurrence during coordination.
type Event struct {
	Name    string
	At      time.Time
	Latency time.Duration
	Data    map[string]interface{}
}

// Handler processes events as they occur. Implementations must not block
// for long: the collector calls the handler synchronously, outside any
// internal lock, after the event is recorded.
type Handler func(Event)

// Collector accumulates and fans out events. The zero value is not usable;
// construct with NewCollector.
type Collector struct {
	mu      sync.Mutex
	enabled bool
	handler Handler
	events  []Event
}

// NewCollector returns a Collector that fans events to handler. A nil
// handler disables recording entirely so the caller pays no overhead.
func NewCollector(handler Handler) *Collector {
	return &Collector{
		enabled: handler != nil,
		handler: handler,
		events:  make([]Event, 0, 16),
	}
}

// Add records event and, if a handler is installed, invokes it outside the
// collector's internal lock so a slow or blocking handler cannot create a
// deadlock with concurrent Add calls.
func (c *Collector) Add(event Event) {
	if c == nil || !c.enabled {
		return
	}
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()

	if c.handler != nil {
		c.handler(event)
	}
}

// Timed records an event whose Latency is measured from start to now.
func (c *Collector) Timed(name string, start time.Time, data map[string]interface{}) {
	if c == nil || !c.enabled {
		return
	}
	c.Add(Event{
		Name:    name,
		At:      start,
		Latency: time.Since(start),
		Data:    data,
	})
}

// Events returns a snapshot copy of everything recorded so far.
func (c *Collector) Events() []Event {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}
