package crdt

import "testing"

import "github.com/stretchr/testify/require"

func TestIDLess(t *testing.T) {
	require.True(t, ID{Client: 1, Clock: 5}.Less(ID{Client: 2, Clock: 0}))
	require.True(t, ID{Client: 1, Clock: 5}.Less(ID{Client: 1, Clock: 6}))
	require.False(t, ID{Client: 1, Clock: 5}.Less(ID{Client: 1, Clock: 5}))
}

func TestIDRangeAdjacentAndMerge(t *testing.T) {
	a := IDRange{Clock: 0, Len: 5}
	b := IDRange{Clock: 5, Len: 3}
	require.True(t, a.Adjacent(b))
	require.False(t, a.Overlaps(b))

	merged := a.Merge(b)
	require.Equal(t, Clock(0), merged.Clock)
	require.Equal(t, uint32(8), merged.Len)
}

func TestIDRangeOverlap(t *testing.T) {
	a := IDRange{Clock: 0, Len: 10}
	b := IDRange{Clock: 4, Len: 3}
	require.True(t, a.Overlaps(b))
	require.True(t, a.Contains(4))
	require.False(t, a.Contains(10))
}

func TestIDSetInsertMergesAdjacentRanges(t *testing.T) {
	set := NewIDSet()
	set.Insert(1, 0, 5)
	set.Insert(1, 5, 3)
	ranges := set.Ranges(1)
	require.Len(t, ranges, 1)
	require.Equal(t, IDRange{Clock: 0, Len: 8}, ranges[0])
}

func TestIDSetContains(t *testing.T) {
	set := NewIDSet()
	set.Insert(7, 10, 5)
	require.True(t, set.Contains(ID{Client: 7, Clock: 12}))
	require.False(t, set.Contains(ID{Client: 7, Clock: 20}))
	require.False(t, set.Contains(ID{Client: 8, Clock: 12}))
}
