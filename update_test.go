package crdt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// docWithText builds a single-client document with a "doc" text root
// containing s, returning the document and its text branch.
func docWithText(t *testing.T, client ClientID, s string) (*Document, *Branch) {
	t.Helper()
	d := NewDocument(WithClientID(client))
	text := d.GetOrInsertText("doc")
	require.NoError(t, d.Transact(context.Background(), AnyNull(), func(txn *Transaction) {
		require.NoError(t, text.InsertText(txn, 0, s))
	}))
	return d, text
}

// TestUpdateV1RoundTrip checks that encoding and decoding a v1 update
// preserves every client's block run and the delete set (spec.md §8 R1
// "encode(decode(update)) == update" in logical, not byte-literal, terms).
func TestUpdateV1RoundTrip(t *testing.T) {
	d, text := docWithText(t, 7, "hello")
	ctx := context.Background()
	require.NoError(t, d.Transact(ctx, AnyNull(), func(txn *Transaction) {
		require.NoError(t, text.RemoveAt(txn, 1, 2))
	}))

	raw := d.EncodeStateAsUpdate(NewStateVector())
	u, err := DecodeUpdateV1(raw)
	require.NoError(t, err)

	require.Len(t, u.Blocks, 1)
	blocks, ok := u.Blocks[ClientID(7)]
	require.True(t, ok)
	require.NotEmpty(t, blocks)
	require.Equal(t, Clock(5), u.StateVectorOf().Get(7))

	reencoded := EncodeUpdateV1(u)
	u2, err := DecodeUpdateV1(reencoded)
	require.NoError(t, err)
	require.Equal(t, u.StateVectorOf().Get(7), u2.StateVectorOf().Get(7))
}

// TestUpdateV2RoundTrip mirrors TestUpdateV1RoundTrip for the columnar
// encoding: a v2-encoded update decodes to the same state vector and
// block count as the document state it was built from.
func TestUpdateV2RoundTrip(t *testing.T) {
	d, _ := docWithText(t, 3, "abcdef")

	sv := NewStateVector()
	u := BuildUpdate(d.store, sv)

	v1 := EncodeUpdateV1(u)
	v2 := EncodeUpdateV2(u)

	uFromV1, err := DecodeUpdateV1(v1)
	require.NoError(t, err)
	uFromV2, err := DecodeUpdateV2(v2)
	require.NoError(t, err)

	require.Equal(t, uFromV1.StateVectorOf().Get(3), uFromV2.StateVectorOf().Get(3))
	require.Equal(t, len(uFromV1.Blocks[3]), len(uFromV2.Blocks[3]))
}

// TestApplyUpdateTextInsertDelete exercises spec.md §8's text_insert_delete
// scenario logically: two replicas converge to the same visible text after
// one inserts and deletes and the other applies the resulting update.
func TestApplyUpdateTextInsertDelete(t *testing.T) {
	ctx := context.Background()
	a, ta := docWithText(t, 1, "hello world")
	require.NoError(t, a.Transact(ctx, AnyNull(), func(txn *Transaction) {
		require.NoError(t, ta.RemoveAt(txn, 5, 6))
	}))
	require.Equal(t, "hello", textValue(t, ta))

	b := NewDocument(WithClientID(2))
	tb := b.GetOrInsertText("doc")
	require.NoError(t, b.ApplyUpdate(ctx, a.EncodeStateAsUpdate(NewStateVector())))
	require.Equal(t, "hello", textValue(t, tb))
}

// TestApplyUpdateMapSet exercises spec.md §8's map_set scenario: a remote
// replica applies an update and sees the same key/value as the origin.
func TestApplyUpdateMapSet(t *testing.T) {
	ctx := context.Background()
	a := NewDocument(WithClientID(1))
	ma := a.GetOrInsertMap("config")
	require.NoError(t, a.Transact(ctx, AnyNull(), func(txn *Transaction) {
		require.NoError(t, ma.Set(txn, "theme", AnyString("dark")))
	}))

	b := NewDocument(WithClientID(2))
	mb := b.GetOrInsertMap("config")
	require.NoError(t, b.ApplyUpdate(ctx, a.EncodeStateAsUpdate(NewStateVector())))

	it, ok := mb.GetKey("theme")
	require.True(t, ok)
	require.True(t, it.Content.Values[0].Equal(AnyString("dark")))
}

// TestApplyUpdateArrayInsert exercises spec.md §8's array_insert scenario:
// sequential inserts at the tail converge to the same element order.
func TestApplyUpdateArrayInsert(t *testing.T) {
	ctx := context.Background()
	a := NewDocument(WithClientID(1))
	arrA := a.GetOrInsertArray("items")
	require.NoError(t, a.Transact(ctx, AnyNull(), func(txn *Transaction) {
		require.NoError(t, arrA.InsertValues(txn, 0, []Any{AnyString("x")}))
		require.NoError(t, arrA.InsertValues(txn, 1, []Any{AnyString("y")}))
	}))

	b := NewDocument(WithClientID(2))
	arrB := b.GetOrInsertArray("items")
	require.NoError(t, b.ApplyUpdate(ctx, a.EncodeStateAsUpdate(NewStateVector())))
	require.Equal(t, arrA.ContentLength(), arrB.ContentLength())

	var gotA, gotB []string
	for it := arrA.Start; it != nil; it = it.Right {
		if !it.Deleted {
			for _, v := range it.Content.Values {
				gotA = append(gotA, v.Interface().(string))
			}
		}
	}
	for it := arrB.Start; it != nil; it = it.Right {
		if !it.Deleted {
			for _, v := range it.Content.Values {
				gotB = append(gotB, v.Interface().(string))
			}
		}
	}
	require.Equal(t, gotA, gotB)
}

// TestMergeUpdatesCompatibility merges updates from two independent
// replicas and checks the merged update covers both clients' state
// (spec.md §4.5 "MergeUpdates ... module-level byte operation").
func TestMergeUpdatesCompatibility(t *testing.T) {
	ctx := context.Background()
	a, _ := docWithText(t, 1, "foo")
	b, _ := docWithText(t, 2, "bar")

	merged, err := MergeUpdates([][]byte{
		a.EncodeStateAsUpdate(NewStateVector()),
		b.EncodeStateAsUpdate(NewStateVector()),
	})
	require.NoError(t, err)

	c := NewDocument(WithClientID(3))
	require.NoError(t, c.ApplyUpdate(ctx, merged))
	require.Empty(t, c.PendingClients())

	u, err := DecodeUpdate(merged)
	require.NoError(t, err)
	require.Equal(t, Clock(3), u.StateVectorOf().Get(1))
	require.Equal(t, Clock(3), u.StateVectorOf().Get(2))
}

// TestMergeUpdatesSameClientConcatenates checks that two successive
// updates from the same client (a later one building on an earlier one)
// merge into one contiguous run instead of clobbering it.
func TestMergeUpdatesSameClientConcatenates(t *testing.T) {
	ctx := context.Background()
	a, ta := docWithText(t, 1, "ab")
	first := a.EncodeStateAsUpdate(NewStateVector())

	require.NoError(t, a.Transact(ctx, AnyNull(), func(txn *Transaction) {
		require.NoError(t, ta.InsertText(txn, 2, "cd"))
	}))
	second := a.EncodeStateAsUpdate(NewStateVector())

	merged, err := MergeUpdates([][]byte{first, second})
	require.NoError(t, err)

	b := NewDocument(WithClientID(2))
	tb := b.GetOrInsertText("doc")
	require.NoError(t, b.ApplyUpdate(ctx, merged))
	require.Equal(t, "abcd", textValue(t, tb))
}

// TestDiffUpdatesCompatibility checks that diffing a full update against a
// partial state vector yields only the tail the recipient is missing
// (spec.md §4.5 "DiffUpdates").
func TestDiffUpdatesCompatibility(t *testing.T) {
	ctx := context.Background()
	a, ta := docWithText(t, 1, "ab")
	require.NoError(t, a.Transact(ctx, AnyNull(), func(txn *Transaction) {
		require.NoError(t, ta.InsertText(txn, 2, "cd"))
	}))

	sv := NewStateVector()
	sv.Set(1, 2)
	full := a.EncodeStateAsUpdate(NewStateVector())

	diff, err := DiffUpdates(full, sv)
	require.NoError(t, err)

	u, err := DecodeUpdate(diff)
	require.NoError(t, err)
	require.Equal(t, Clock(2), u.StartVectorOf().Get(1))
	require.Equal(t, Clock(4), u.StateVectorOf().Get(1))
}

// TestEncodeStateVectorFromUpdate checks the state vector extracted from a
// raw update matches the one produced by decoding the update directly.
func TestEncodeStateVectorFromUpdate(t *testing.T) {
	a, _ := docWithText(t, 5, "xyz")
	raw := a.EncodeStateAsUpdate(NewStateVector())

	svBytes, err := EncodeStateVectorFromUpdate(raw)
	require.NoError(t, err)
	sv, err := DecodeStateVector(svBytes)
	require.NoError(t, err)

	u, err := DecodeUpdate(raw)
	require.NoError(t, err)
	require.Equal(t, u.StateVectorOf().Get(5), sv.Get(5))
}
