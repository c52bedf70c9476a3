// Command dfcoord-demo drives a small simulated multi-stage query through
// the dynamic filter service end to end: it registers a query with two
// dynamic filters (one lazy, one same-fragment), scripts a build stage
// through several task reports, and prints the collector's activity and
// the resulting per-filter stats as it converges.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dfcoord/dfcoord/config"
	"github.com/dfcoord/dfcoord/coordination"
	"github.com/dfcoord/dfcoord/observability"
	"github.com/dfcoord/dfcoord/predicate"
	"github.com/dfcoord/dfcoord/simulate"
	"github.com/dfcoord/dfcoord/stats"

	"github.com/fatih/color"
)

func main() {
	var configPath string
	var verbose bool
	flag.StringVar(&configPath, "config", "", "path to a YAML config file (optional)")
	flag.BoolVar(&verbose, "verbose", false, "print every coordination event as it happens")
	flag.Parse()

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.LoadFile(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "dfcoord-demo: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	var handler observability.Handler
	if verbose {
		handler = observability.ConsoleHandler()
	}

	registry := coordination.NewRegistry(handler)
	registry.SetMaxDomainsPerQuery(cfg.MaxDomainsPerQuery)
	registry.SetSimplifyThreshold(cfg.SimplifyThreshold)
	fake := simulate.NewFakeSupplier()

	const queryId coordination.QueryId = "demo-query-1"
	fake.SetStages([]coordination.StageSnapshot{{
		State:         coordination.Running,
		NumberOfTasks: 2,
		TaskSummaries: nil,
	}})

	registry.Register(queryId, fake.Supplier(),
		coordination.NewFilterIdSet("build_key", "region"),
		coordination.NewFilterIdSet("build_key"),
		coordination.NewFilterIdSet("region"),
	)

	filter := coordination.CreateDynamicFilter(registry, queryId, []coordination.FilterDescriptor{
		{FilterId: "build_key", Symbol: "?k"},
		{FilterId: "region", Symbol: "?r"},
	}, map[coordination.Symbol]predicate.ColHandle{
		"?k": predicate.Col("orders.customer_id"),
		"?r": predicate.Col("orders.region"),
	})

	collector := coordination.NewCollector(registry, cfg.DynamicFilteringRefreshInterval, handler)

	fmt.Println(color.CyanString("=== dfcoord-demo: initial state ==="))
	printSnapshot(registry, queryId)

	fmt.Println(color.CyanString("\n=== stage reports region (replicated) ==="))
	fake.SetStages([]coordination.StageSnapshot{{
		State:         coordination.Running,
		NumberOfTasks: 2,
		TaskSummaries: []coordination.TaskSummary{
			{"region": predicate.Discrete(predicate.Str("us-east"), predicate.Str("us-west"))},
		},
	}})
	collector.Tick()
	printSnapshot(registry, queryId)

	fmt.Println(color.CyanString("\n=== waiting for the lazy build_key filter ==="))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	<-filter.Blocked(ctx)
	fmt.Println("build_key not yet ready; still uncomplete:", !filter.IsComplete())

	fmt.Println(color.CyanString("\n=== both build tasks report build_key, stage finishes ==="))
	fake.SetStages([]coordination.StageSnapshot{{
		State:         coordination.Finishing,
		NumberOfTasks: 2,
		TaskSummaries: []coordination.TaskSummary{
			{"region": predicate.Discrete(predicate.Str("us-east"), predicate.Str("us-west")),
				"build_key": predicate.OfRanges(predicate.Range{Low: predicate.Int(100), High: predicate.Int(200), HasLow: true, HasHigh: true})},
			{"build_key": predicate.OfRanges(predicate.Range{Low: predicate.Int(250), High: predicate.Int(300), HasLow: true, HasHigh: true})},
		},
	}})
	collector.Tick()

	select {
	case <-filter.Blocked(context.Background()):
	case <-time.After(time.Second):
	}
	printSnapshot(registry, queryId)

	fmt.Printf("\nfinal predicate complete: %t, value: %s\n", filter.IsComplete(), filter.CurrentPredicate())
	registry.Remove(queryId)
}

func printSnapshot(registry *coordination.Registry, queryId coordination.QueryId) {
	snap := stats.Collect(registry, queryId)
	stats.Render(os.Stdout, snap)
}
