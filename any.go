package crdt

import (
	"github.com/cshekharsharma/go-yata/internal/varint"
	"github.com/pkg/errors"
)

// Any is the opaque JSON-plus value type blocks carry as content. Per
// spec.md §1 its JSON surface (parsing, host-language marshalling) is an
// external collaborator's concern; only its self-describing binary
// encoding lives in this package, since update bytes must round-trip it.
type Any struct {
	kind    anyKind
	boolean bool
	number  float64
	integer int64
	isInt   bool
	isBig   bool
	str     string
	buf     []byte
	arr     []Any
	obj     map[string]Any
}

type anyKind int

const (
	anyUndefined anyKind = iota
	anyNull
	anyBool
	anyNumber
	anyString
	anyBuffer
	anyArray
	anyMap
)

// AnyUndefined is the canonical "undefined" value.
func AnyUndefined() Any { return Any{kind: anyUndefined} }

// AnyNull is the canonical "null" value.
func AnyNull() Any { return Any{kind: anyNull} }

// AnyBool wraps a boolean.
func AnyBool(b bool) Any { return Any{kind: anyBool, boolean: b} }

// AnyFloat wraps a floating-point number.
func AnyFloat(f float64) Any { return Any{kind: anyNumber, number: f} }

// AnyInt wraps an integer that fits the varint-encoded integer case.
func AnyInt(i int64) Any { return Any{kind: anyNumber, integer: i, isInt: true} }

// AnyBigInt wraps an integer outside the varint-friendly range, encoded
// as a fixed-width 8-byte integer instead.
func AnyBigInt(i int64) Any { return Any{kind: anyNumber, integer: i, isInt: true, isBig: true} }

// AnyString wraps a UTF-8 string.
func AnyString(s string) Any { return Any{kind: anyString, str: s} }

// AnyBuffer wraps raw bytes.
func AnyBuffer(b []byte) Any { return Any{kind: anyBuffer, buf: b} }

// AnyArray wraps a slice of Any.
func AnyArray(items []Any) Any { return Any{kind: anyArray, arr: items} }

// AnyMap wraps a string-keyed map of Any.
func AnyMap(m map[string]Any) Any { return Any{kind: anyMap, obj: m} }

// IsUndefined reports whether a is the undefined sentinel.
func (a Any) IsUndefined() bool { return a.kind == anyUndefined }

// IsNull reports whether a is the null sentinel.
func (a Any) IsNull() bool { return a.kind == anyNull }

// Interface materializes a into a plain Go value (bool, float64, int64,
// string, []byte, []any, map[string]any, or nil for null/undefined) for
// host consumption — the one seam where this opaque type meets ordinary
// Go data.
func (a Any) Interface() interface{} {
	switch a.kind {
	case anyUndefined, anyNull:
		return nil
	case anyBool:
		return a.boolean
	case anyNumber:
		if a.isInt {
			return a.integer
		}
		return a.number
	case anyString:
		return a.str
	case anyBuffer:
		return a.buf
	case anyArray:
		out := make([]interface{}, len(a.arr))
		for i, v := range a.arr {
			out[i] = v.Interface()
		}
		return out
	case anyMap:
		out := make(map[string]interface{}, len(a.obj))
		for k, v := range a.obj {
			out[k] = v.Interface()
		}
		return out
	default:
		return nil
	}
}

// Equal reports deep equality between two Any values.
func (a Any) Equal(b Any) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case anyUndefined, anyNull:
		return true
	case anyBool:
		return a.boolean == b.boolean
	case anyNumber:
		if a.isInt != b.isInt {
			return false
		}
		if a.isInt {
			return a.integer == b.integer
		}
		return a.number == b.number
	case anyString:
		return a.str == b.str
	case anyBuffer:
		if len(a.buf) != len(b.buf) {
			return false
		}
		for i := range a.buf {
			if a.buf[i] != b.buf[i] {
				return false
			}
		}
		return true
	case anyArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !a.arr[i].Equal(b.arr[i]) {
				return false
			}
		}
		return true
	case anyMap:
		if len(a.obj) != len(b.obj) {
			return false
		}
		for k, v := range a.obj {
			ov, ok := b.obj[k]
			if !ok || !v.Equal(ov) {
				return false
			}
		}
		return true
	}
	return false
}

// Encoding tags, matching lib0::any::Any's binary format exactly (see
// original_source/lib0/src/any.rs): the high end of the byte range
// [116..127] is reserved for these self-describing primitives so it can
// share a byte-space with content-kind discriminators that use the low
// end, without the caller needing extra framing to tell them apart.
const (
	anyTagUndefined = 127
	anyTagNull      = 126
	anyTagInt       = 125
	anyTagFloat32   = 124
	anyTagFloat64   = 123
	anyTagBigInt    = 122
	anyTagBoolFalse = 121
	anyTagBoolTrue  = 120
	anyTagString    = 119
	anyTagMap       = 118
	anyTagArray     = 117
	anyTagBuffer    = 116
)

// Encode appends a's self-describing binary form to w.
func (a Any) Encode(w *varint.Writer) {
	switch a.kind {
	case anyUndefined:
		w.WriteByte(anyTagUndefined)
	case anyNull:
		w.WriteByte(anyTagNull)
	case anyBool:
		if a.boolean {
			w.WriteByte(anyTagBoolTrue)
		} else {
			w.WriteByte(anyTagBoolFalse)
		}
	case anyString:
		w.WriteByte(anyTagString)
		w.WriteString(a.str)
	case anyNumber:
		switch {
		case a.isBig:
			w.WriteByte(anyTagBigInt)
			w.WriteInt64(a.integer)
		case a.isInt:
			w.WriteByte(anyTagInt)
			w.WriteVarint(a.integer)
		default:
			f32 := float32(a.number)
			if float64(f32) == a.number {
				w.WriteByte(anyTagFloat32)
				w.WriteFloat32(f32)
			} else {
				w.WriteByte(anyTagFloat64)
				w.WriteFloat64(a.number)
			}
		}
	case anyArray:
		w.WriteByte(anyTagArray)
		w.WriteUvarint(uint64(len(a.arr)))
		for _, v := range a.arr {
			v.Encode(w)
		}
	case anyMap:
		w.WriteByte(anyTagMap)
		w.WriteUvarint(uint64(len(a.obj)))
		for k, v := range a.obj {
			w.WriteString(k)
			v.Encode(w)
		}
	case anyBuffer:
		w.WriteByte(anyTagBuffer)
		w.WriteBuf(a.buf)
	}
}

// DecodeAny reads one Any value from r.
func DecodeAny(r *varint.Reader) (Any, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return Any{}, wrapError(KindMalformedUpdate, err, "any: tag")
	}
	switch tag {
	case anyTagUndefined:
		return AnyUndefined(), nil
	case anyTagNull:
		return AnyNull(), nil
	case anyTagInt:
		v, err := r.ReadVarint()
		if err != nil {
			return Any{}, wrapError(KindMalformedUpdate, err, "any: int")
		}
		return AnyInt(v), nil
	case anyTagFloat32:
		v, err := r.ReadFloat32()
		if err != nil {
			return Any{}, wrapError(KindMalformedUpdate, err, "any: float32")
		}
		return AnyFloat(float64(v)), nil
	case anyTagFloat64:
		v, err := r.ReadFloat64()
		if err != nil {
			return Any{}, wrapError(KindMalformedUpdate, err, "any: float64")
		}
		return AnyFloat(v), nil
	case anyTagBigInt:
		v, err := r.ReadInt64()
		if err != nil {
			return Any{}, wrapError(KindMalformedUpdate, err, "any: bigint")
		}
		return AnyBigInt(v), nil
	case anyTagBoolFalse:
		return AnyBool(false), nil
	case anyTagBoolTrue:
		return AnyBool(true), nil
	case anyTagString:
		s, err := r.ReadString()
		if err != nil {
			return Any{}, wrapError(KindMalformedUpdate, err, "any: string")
		}
		return AnyString(s), nil
	case anyTagMap:
		n, err := r.ReadUvarint()
		if err != nil {
			return Any{}, wrapError(KindMalformedUpdate, err, "any: map len")
		}
		m := make(map[string]Any, n)
		for i := uint64(0); i < n; i++ {
			k, err := r.ReadString()
			if err != nil {
				return Any{}, wrapError(KindMalformedUpdate, err, "any: map key")
			}
			v, err := DecodeAny(r)
			if err != nil {
				return Any{}, err
			}
			m[k] = v
		}
		return AnyMap(m), nil
	case anyTagArray:
		n, err := r.ReadUvarint()
		if err != nil {
			return Any{}, wrapError(KindMalformedUpdate, err, "any: array len")
		}
		arr := make([]Any, n)
		for i := uint64(0); i < n; i++ {
			v, err := DecodeAny(r)
			if err != nil {
				return Any{}, err
			}
			arr[i] = v
		}
		return AnyArray(arr), nil
	case anyTagBuffer:
		b, err := r.ReadBuf()
		if err != nil {
			return Any{}, wrapError(KindMalformedUpdate, err, "any: buffer")
		}
		return AnyBuffer(b), nil
	default:
		return Any{}, wrapError(KindMalformedUpdate, errors.Errorf("unknown Any tag %d", tag), "any: tag")
	}
}
