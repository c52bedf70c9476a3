package plan

import (
	"testing"

	"github.com/dfcoord/dfcoord/predicate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProducedCollectsAllJoinNodes(t *testing.T) {
	root := &JoinNode{
		Left: &ScanNode{Table: "orders"},
		Right: &JoinNode{
			Left:           &ScanNode{Table: "lineitem"},
			Right:          &ScanNode{Table: "supplier"},
			DynamicFilters: map[FilterId]predicate.ColHandle{"df2": predicate.Col("supplier.id")},
		},
		DynamicFilters: map[FilterId]predicate.ColHandle{"df1": predicate.Col("orders.id")},
	}

	produced := Produced(root)
	assert.True(t, produced.Contains("df1"))
	assert.True(t, produced.Contains("df2"))
	assert.Len(t, produced, 2)
}

func TestConsumedCollectsScanDescriptors(t *testing.T) {
	root := &FilterNode{
		Input: &ScanNode{
			Table:       "lineitem",
			Descriptors: []FilterDescriptor{{FilterId: "df1", Symbol: "?orderkey"}},
		},
	}

	consumed := Consumed(root)
	assert.True(t, consumed.Contains("df1"))
	assert.Len(t, consumed, 1)
}

func TestReplicatedOnlyCountsBroadcastJoins(t *testing.T) {
	root := &JoinNode{
		Left:            &ScanNode{Table: "orders"},
		Right:           &ScanNode{Table: "nation"},
		DynamicFilters:  map[FilterId]predicate.ColHandle{"df_nation": predicate.Col("nation.id")},
		ReplicatedBuild: true,
	}
	nested := &JoinNode{
		Left:           root,
		Right:          &ScanNode{Table: "lineitem"},
		DynamicFilters: map[FilterId]predicate.ColHandle{"df_order": predicate.Col("orders.id")},
	}

	replicated := Replicated(nested)
	assert.True(t, replicated.Contains("df_nation"))
	assert.False(t, replicated.Contains("df_order"))
}

func TestLazyExcludesSameFragmentFilters(t *testing.T) {
	// df_local is produced and consumed within the same fragment: not lazy.
	sameFragmentRoot := &JoinNode{
		Left: &ScanNode{
			Table:       "build",
			Descriptors: nil,
		},
		Right: &ScanNode{
			Table:       "probe",
			Descriptors: []FilterDescriptor{{FilterId: "df_local", Symbol: "?x"}},
		},
		DynamicFilters: map[FilterId]predicate.ColHandle{"df_local": predicate.Col("build.x")},
	}

	// df_remote is produced in this fragment but consumed in another.
	producerFragment := &JoinNode{
		Left:           &ScanNode{Table: "build2"},
		Right:          &ExchangeNode{Input: &ScanNode{Table: "probe2"}},
		DynamicFilters: map[FilterId]predicate.ColHandle{"df_remote": predicate.Col("build2.y")},
	}
	consumerFragment := &ScanNode{
		Table:       "probe2-remote",
		Descriptors: []FilterDescriptor{{FilterId: "df_remote", Symbol: "?y"}},
	}

	lazy := Lazy([]Fragment{
		{Root: sameFragmentRoot},
		{Root: producerFragment},
		{Root: consumerFragment},
	})

	assert.False(t, lazy.Contains("df_local"))
	require.True(t, lazy.Contains("df_remote"))
	assert.Len(t, lazy, 1)
}

func TestFilterIdSetOperations(t *testing.T) {
	a := NewFilterIdSet("x", "y")
	b := NewFilterIdSet("y", "z")

	assert.Len(t, a.Union(b), 3)
	diff := a.Difference(b)
	assert.Len(t, diff, 1)
	assert.True(t, diff.Contains("x"))
}
