package crdt

import (
	"testing"

	"github.com/cshekharsharma/go-yata/internal/varint"
	"github.com/stretchr/testify/require"
)

func TestDeleteSetEncodeDecodeRoundTrip(t *testing.T) {
	ds := NewDeleteSet()
	ds.Insert(1, 0, 5)
	ds.Insert(1, 10, 2)
	ds.Insert(2, 3, 1)

	w := varint.NewWriter(32)
	ds.Encode(w)

	r := varint.NewReader(w.Bytes())
	decoded, err := DecodeDeleteSet(r)
	require.NoError(t, err)

	require.Equal(t, ds.Clients(), decoded.Clients())
	for _, c := range ds.Clients() {
		require.Equal(t, ds.Ranges(c), decoded.Ranges(c))
	}
}

func TestDeleteSetMerge(t *testing.T) {
	a := NewDeleteSet()
	a.Insert(1, 0, 3)
	b := NewDeleteSet()
	b.Insert(1, 3, 2)
	b.Insert(2, 0, 1)

	a.Merge(b)
	require.True(t, a.Contains(ID{Client: 1, Clock: 4}))
	require.True(t, a.Contains(ID{Client: 2, Clock: 0}))
	require.False(t, a.Contains(ID{Client: 2, Clock: 1}))
}

func TestStateVectorMergeTakesMax(t *testing.T) {
	a := NewStateVector()
	a.Set(1, 5)
	b := NewStateVector()
	b.Set(1, 3)
	b.Set(2, 7)

	a.Merge(b)
	require.Equal(t, Clock(5), a.Get(1))
	require.Equal(t, Clock(7), a.Get(2))
}

func TestStateVectorEncodeDecodeRoundTrip(t *testing.T) {
	sv := NewStateVector()
	sv.Set(1, 5)
	sv.Set(42, 100)

	decoded, err := DecodeStateVector(sv.Encode())
	require.NoError(t, err)
	require.Equal(t, Clock(5), decoded.Get(1))
	require.Equal(t, Clock(100), decoded.Get(42))
}
