package crdt

import "sort"

// IDSet is a per-client set of sorted, disjoint clock ranges. DeleteSet is
// built directly on top of it; it is also the shape state vectors and
// block stores reduce to when asked "what clocks do you have for client
// c", so it is kept as its own small type rather than folding its logic
// into DeleteSet.
type IDSet struct {
	ranges map[ClientID][]IDRange
}

// NewIDSet returns an empty set.
func NewIDSet() *IDSet {
	return &IDSet{ranges: make(map[ClientID][]IDRange)}
}

// Clients returns the set of clients with at least one range.
func (s *IDSet) Clients() []ClientID {
	out := make([]ClientID, 0, len(s.ranges))
	for c := range s.ranges {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Ranges returns the sorted, disjoint ranges held for client.
func (s *IDSet) Ranges(client ClientID) []IDRange {
	return s.ranges[client]
}

// Insert unions [clock, clock+length) into client's range list, merging
// any touching or overlapping ranges so the invariant of sorted,
// disjoint ranges is preserved.
func (s *IDSet) Insert(client ClientID, clock Clock, length uint32) {
	if length == 0 {
		return
	}
	incoming := IDRange{Clock: clock, Len: length}
	list := s.ranges[client]

	// Find the insertion point and merge with any overlapping/adjacent
	// neighbors, scanning outward from there.
	i := sort.Search(len(list), func(i int) bool { return list[i].Clock >= incoming.Clock })

	merged := incoming
	start, end := i, i
	if i > 0 && (list[i-1].Adjacent(merged) || list[i-1].Overlaps(merged)) {
		start = i - 1
		merged = list[i-1].Merge(merged)
	}
	for end < len(list) && (list[end].Adjacent(merged) || list[end].Overlaps(merged)) {
		merged = list[end].Merge(merged)
		end++
	}

	next := make([]IDRange, 0, len(list)-(end-start)+1)
	next = append(next, list[:start]...)
	next = append(next, merged)
	next = append(next, list[end:]...)
	s.ranges[client] = next
}

// Contains reports whether id falls inside one of client's stored ranges.
func (s *IDSet) Contains(id ID) bool {
	list := s.ranges[id.Client]
	i := sort.Search(len(list), func(i int) bool { return list[i].End() > id.Clock })
	return i < len(list) && list[i].Clock <= id.Clock
}

// IsEmpty reports whether the set has no ranges at all.
func (s *IDSet) IsEmpty() bool {
	for _, list := range s.ranges {
		if len(list) > 0 {
			return false
		}
	}
	return true
}
