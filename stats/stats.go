// Package stats renders the introspection view of one query's dynamic
// filters: which filters are still pending, which have finalized, and
// (for finalized filters) a size-bounded summary of the published domain.
// This mirrors DynamicFiltersStats/DynamicFilterDomainStats from the
// original service, whose whole purpose is a debug/monitoring surface —
// nothing here feeds back into the aggregation protocol.
package stats

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/dfcoord/dfcoord/coordination"
	"github.com/dfcoord/dfcoord/predicate"
)

// DomainStats is the per-filter row of a Snapshot, mirroring the original
// service's DynamicFilterDomainStats: a size-bounded rendering of the
// published domain plus the raw shape counts behind it.
type DomainStats struct {
	FilterId           coordination.FilterId
	Completed          bool
	Replicated         bool
	Simplified         string
	RangeCount         int
	DiscreteValueCount int
}

// Snapshot is the full introspection view for one query at one moment,
// mirroring the original service's DynamicFiltersStats.
type Snapshot struct {
	QueryId           coordination.QueryId
	TotalFilters      int
	LazyFilters       int
	ReplicatedFilters int
	CompletedFilters  int
	Domains           []DomainStats
}

// Collect builds a Snapshot for queryId from registry's current state. It
// returns a Snapshot carrying only QueryId (TotalFilters 0) if queryId is unknown —
// callers should treat that identically to "no dynamic filters."
func Collect(registry *coordination.Registry, queryId coordination.QueryId) Snapshot {
	state, ok := registry.State(queryId)
	if !ok {
		return Snapshot{QueryId: queryId}
	}

	threshold := registry.SimplifyThreshold()
	domains := make([]DomainStats, 0, len(state.Expected))
	completed := 0
	for id := range state.Expected {
		d, finalized := state.Domains[id]
		if finalized {
			completed++
		}
		row := DomainStats{
			FilterId:   id,
			Completed:  finalized,
			Replicated: state.Replicated.Contains(id),
		}
		if finalized {
			row.Simplified = simplify(d, threshold)
			row.RangeCount = d.RangeCount()
			row.DiscreteValueCount = d.DiscreteValueCount()
		} else {
			row.Simplified = "-"
		}
		domains = append(domains, row)
	}

	return Snapshot{
		QueryId:           queryId,
		TotalFilters:      len(state.Expected),
		LazyFilters:       len(state.Lazy),
		ReplicatedFilters: len(state.Replicated),
		CompletedFilters:  completed,
		Domains:           domains,
	}
}

// Render writes s as a markdown table to w, in the same
// tablewriter-with-markdown-renderer style the rest of this codebase uses
// for tabular debug output.
func Render(w io.Writer, s Snapshot) {
	if s.TotalFilters == 0 {
		fmt.Fprintf(w, "_No dynamic filters for query %s_\n", s.QueryId)
		return
	}

	tableString := &strings.Builder{}
	table := tablewriter.NewTable(tableString,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)
	table.Header([]string{"Filter", "Status", "Replicated", "Ranges", "Values", "Domain"})

	for _, d := range s.Domains {
		status := "PENDING"
		if d.Completed {
			status = "FINALIZED"
		}
		table.Append([]string{
			string(d.FilterId),
			status,
			fmt.Sprintf("%t", d.Replicated),
			fmt.Sprintf("%d", d.RangeCount),
			fmt.Sprintf("%d", d.DiscreteValueCount),
			d.Simplified,
		})
	}
	table.Render()

	fmt.Fprintf(w, "%s\n_%d/%d filters finalized for query %s (%d lazy, %d replicated)_\n",
		tableString.String(), s.CompletedFilters, s.TotalFilters, s.QueryId, s.LazyFilters, s.ReplicatedFilters)
}

// simplify renders a Domain in its bounded, human-readable form.
func simplify(d predicate.Domain, threshold int) string {
	return d.Simplify(threshold).String()
}
