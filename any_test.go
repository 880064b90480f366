package crdt

import (
	"testing"

	"github.com/cshekharsharma/go-yata/internal/varint"
	"github.com/stretchr/testify/require"
)

func roundTripAny(t *testing.T, v Any) Any {
	t.Helper()
	w := varint.NewWriter(32)
	v.Encode(w)
	r := varint.NewReader(w.Bytes())
	out, err := DecodeAny(r)
	require.NoError(t, err)
	return out
}

func TestAnyRoundTrip(t *testing.T) {
	cases := []Any{
		AnyUndefined(),
		AnyNull(),
		AnyBool(true),
		AnyBool(false),
		AnyInt(42),
		AnyInt(-17),
		AnyBigInt(1 << 40),
		AnyFloat(3.5),
		AnyFloat(1.0 / 3.0),
		AnyString("hello, world"),
		AnyBuffer([]byte{1, 2, 3, 4}),
		AnyArray([]Any{AnyInt(1), AnyString("two"), AnyBool(true)}),
		AnyMap(map[string]Any{"a": AnyInt(1), "b": AnyString("x")}),
	}
	for _, c := range cases {
		got := roundTripAny(t, c)
		require.True(t, c.Equal(got), "round-trip mismatch for %+v -> %+v", c, got)
	}
}

func TestAnyFloat32PreferredWhenLossless(t *testing.T) {
	v := AnyFloat(2.5)
	w := varint.NewWriter(16)
	v.Encode(w)
	require.Equal(t, byte(anyTagFloat32), w.Bytes()[0])
	got := roundTripAny(t, v)
	require.True(t, v.Equal(got))
}

func TestAnyInterfaceMaterializes(t *testing.T) {
	require.Nil(t, AnyNull().Interface())
	require.Nil(t, AnyUndefined().Interface())
	require.Equal(t, true, AnyBool(true).Interface())
	require.Equal(t, "hi", AnyString("hi").Interface())
	require.Equal(t, int64(7), AnyInt(7).Interface())
}

func TestAnyEqualRejectsDifferentKinds(t *testing.T) {
	require.False(t, AnyInt(1).Equal(AnyString("1")))
	require.False(t, AnyNull().Equal(AnyUndefined()))
}
