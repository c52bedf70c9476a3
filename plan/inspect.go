package plan

// FilterIdSet is a set of dynamic filter identifiers.
type FilterIdSet map[FilterId]struct{}

// NewFilterIdSet builds a FilterIdSet from the given ids.
func NewFilterIdSet(ids ...FilterId) FilterIdSet {
	set := make(FilterIdSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Contains reports whether id is a member of the set.
func (s FilterIdSet) Contains(id FilterId) bool {
	_, ok := s[id]
	return ok
}

// Union returns a new set containing every id in s or other.
func (s FilterIdSet) Union(other FilterIdSet) FilterIdSet {
	out := make(FilterIdSet, len(s)+len(other))
	for id := range s {
		out[id] = struct{}{}
	}
	for id := range other {
		out[id] = struct{}{}
	}
	return out
}

// Difference returns a new set containing every id in s that is not in other.
func (s FilterIdSet) Difference(other FilterIdSet) FilterIdSet {
	out := make(FilterIdSet, len(s))
	for id := range s {
		if !other.Contains(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// Slice returns the set's members in no particular order.
func (s FilterIdSet) Slice() []FilterId {
	out := make([]FilterId, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	return out
}

// Produced returns the filter ids declared on any join node reachable from root.
func Produced(root Node) FilterIdSet {
	out := make(FilterIdSet)
	walk(root, func(n Node) {
		if j, ok := n.(*JoinNode); ok {
			for id := range j.DynamicFilters {
				out[id] = struct{}{}
			}
		}
	})
	return out
}

// Consumed returns the filter ids referenced by any scan-filter descriptor
// reachable from root.
func Consumed(root Node) FilterIdSet {
	out := make(FilterIdSet)
	walk(root, func(n Node) {
		if s, ok := n.(*ScanNode); ok {
			for _, d := range s.Descriptors {
				out[d.FilterId] = struct{}{}
			}
		}
	})
	return out
}

// Replicated returns the filter ids declared on join nodes whose build
// side is broadcast to every probe task.
func Replicated(root Node) FilterIdSet {
	out := make(FilterIdSet)
	walk(root, func(n Node) {
		j, ok := n.(*JoinNode)
		if !ok || !j.ReplicatedBuild {
			return
		}
		for id := range j.DynamicFilters {
			out[id] = struct{}{}
		}
	})
	return out
}

// Lazy returns the union, across all fragments, of each fragment's
// produced-but-not-consumed filter ids. The per-fragment set difference
// enforces I4: a filter whose producer and consumer live in the same
// fragment cannot be lazy, because a scan in that fragment would otherwise
// block its own fragment's build side from ever running.
func Lazy(fragments []Fragment) FilterIdSet {
	out := make(FilterIdSet)
	for _, f := range fragments {
		produced := Produced(f.Root)
		consumed := Consumed(f.Root)
		for id := range produced.Difference(consumed) {
			out[id] = struct{}{}
		}
	}
	return out
}
