package xscript

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
)

// ValueKind discriminates the TypedValue union.
type ValueKind int

const (
	KindNil ValueKind = iota
	KindBool
	KindI32
	KindU32
	KindI64
	KindU64
	KindF64
	KindString
	KindArray
	KindMap
)

// TypedValue is a discriminated union over the value types State and
// caching need to round-trip: nil, bool, the four integer widths, float64,
// string, and recursively Array/Map of TypedValue. Every TypedValue carries
// a canonical textual form (used by State.Is, guard evaluation, and
// parameter substitution) and a self-describing binary encoding (Encode).
// Neither FingerprintKey nor the distributed cache tier uses that encoding.
type TypedValue struct {
	kind ValueKind
	b    bool
	i64  int64
	u64  uint64
	f64  float64
	s    string
	arr  []TypedValue
	m    *TypedMap
}

func NilValue() TypedValue               { return TypedValue{kind: KindNil} }
func BoolValue(v bool) TypedValue        { return TypedValue{kind: KindBool, b: v} }
func I32Value(v int32) TypedValue        { return TypedValue{kind: KindI32, i64: int64(v)} }
func U32Value(v uint32) TypedValue       { return TypedValue{kind: KindU32, u64: uint64(v)} }
func I64Value(v int64) TypedValue        { return TypedValue{kind: KindI64, i64: v} }
func U64Value(v uint64) TypedValue       { return TypedValue{kind: KindU64, u64: v} }
func F64Value(v float64) TypedValue      { return TypedValue{kind: KindF64, f64: v} }
func StringValue(v string) TypedValue    { return TypedValue{kind: KindString, s: v} }
func ArrayValue(v []TypedValue) TypedValue {
	return TypedValue{kind: KindArray, arr: v}
}
func MapValue(v *TypedMap) TypedValue { return TypedValue{kind: KindMap, m: v} }

// Kind returns the value's discriminant.
func (v TypedValue) Kind() ValueKind { return v.kind }

// AsString returns the canonical textual form of the value.
func (v TypedValue) AsString() string {
	switch v.kind {
	case KindNil:
		return ""
	case KindBool:
		if v.b {
			return "1"
		}
		return "0"
	case KindI32, KindI64:
		return strconv.FormatInt(v.i64, 10)
	case KindU32, KindU64:
		return strconv.FormatUint(v.u64, 10)
	case KindF64:
		return strconv.FormatFloat(v.f64, 'g', -1, 64)
	case KindString:
		return v.s
	case KindArray:
		out := ""
		for i, e := range v.arr {
			if i > 0 {
				out += ","
			}
			out += e.AsString()
		}
		return out
	case KindMap:
		return v.m.AsString()
	}
	return ""
}

// AsLong parses the canonical textual form as a base-10 integer.
func (v TypedValue) AsLong() (int64, error) {
	switch v.kind {
	case KindI32, KindI64:
		return v.i64, nil
	case KindU32, KindU64:
		return int64(v.u64), nil
	default:
		return strconv.ParseInt(v.AsString(), 10, 64)
	}
}

// AsBool applies State.Is truthiness: false for a missing value, numeric
// zero, empty string, or boolean false; true otherwise. Note the literal
// string "0" is NOT the numeric zero case here — callers that need the
// spec.md §8 "is" truthiness (where string "0" is truthy) should call
// IsTruthy on the raw string instead.
func (v TypedValue) AsBool() bool {
	switch v.kind {
	case KindNil:
		return false
	case KindBool:
		return v.b
	case KindI32, KindI64:
		return v.i64 != 0
	case KindU32, KindU64:
		return v.u64 != 0
	case KindF64:
		return v.f64 != 0
	case KindString:
		return v.s != ""
	case KindArray:
		return len(v.arr) > 0
	case KindMap:
		return v.m != nil && v.m.Len() > 0
	}
	return false
}

// Array returns the element slice for a KindArray value, or nil.
func (v TypedValue) Array() []TypedValue { return v.arr }

// Map returns the backing TypedMap for a KindMap value, or nil.
func (v TypedValue) Map() *TypedMap { return v.m }

// IsTruthy implements the spec.md §8 "is" predicate directly on a string:
// false for missing/empty, numeric zero, or boolean-false spellings; true
// otherwise — notably the literal string "0" is truthy.
func IsTruthy(s string, present bool) bool {
	if !present || s == "" {
		return false
	}
	switch s {
	case "false", "False", "FALSE":
		return false
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil && s != "0" {
		return n != 0
	}
	return true
}

// Encode writes the self-describing little-endian binary encoding used by
// the distributed cache wire format (spec.md §6): a one-byte kind tag
// followed by the kind-specific payload, length-prefixed for variable-size
// kinds.
func (v TypedValue) Encode() []byte {
	var out []byte
	out = append(out, byte(v.kind))
	switch v.kind {
	case KindNil:
	case KindBool:
		if v.b {
			out = append(out, 1)
		} else {
			out = append(out, 0)
		}
	case KindI32:
		out = binary.LittleEndian.AppendUint32(out, uint32(int32(v.i64)))
	case KindU32:
		out = binary.LittleEndian.AppendUint32(out, uint32(v.u64))
	case KindI64:
		out = binary.LittleEndian.AppendUint64(out, uint64(v.i64))
	case KindU64:
		out = binary.LittleEndian.AppendUint64(out, v.u64)
	case KindF64:
		out = binary.LittleEndian.AppendUint64(out, math.Float64bits(v.f64))
	case KindString:
		out = appendLengthPrefixed(out, []byte(v.s))
	case KindArray:
		out = binary.LittleEndian.AppendUint32(out, uint32(len(v.arr)))
		for _, e := range v.arr {
			out = appendLengthPrefixed(out, e.Encode())
		}
	case KindMap:
		enc := v.m.Encode()
		out = append(out, enc...)
	}
	return out
}

// DecodeTypedValue reads a value previously produced by Encode, returning
// the value and the number of bytes consumed.
func DecodeTypedValue(b []byte) (TypedValue, int, error) {
	if len(b) < 1 {
		return TypedValue{}, 0, fmt.Errorf("xscript: truncated typed value")
	}
	kind := ValueKind(b[0])
	pos := 1
	switch kind {
	case KindNil:
		return NilValue(), pos, nil
	case KindBool:
		if pos >= len(b) {
			return TypedValue{}, 0, fmt.Errorf("xscript: truncated bool")
		}
		return BoolValue(b[pos] != 0), pos + 1, nil
	case KindI32:
		if pos+4 > len(b) {
			return TypedValue{}, 0, fmt.Errorf("xscript: truncated i32")
		}
		return I32Value(int32(binary.LittleEndian.Uint32(b[pos:]))), pos + 4, nil
	case KindU32:
		if pos+4 > len(b) {
			return TypedValue{}, 0, fmt.Errorf("xscript: truncated u32")
		}
		return U32Value(binary.LittleEndian.Uint32(b[pos:])), pos + 4, nil
	case KindI64:
		if pos+8 > len(b) {
			return TypedValue{}, 0, fmt.Errorf("xscript: truncated i64")
		}
		return I64Value(int64(binary.LittleEndian.Uint64(b[pos:]))), pos + 8, nil
	case KindU64:
		if pos+8 > len(b) {
			return TypedValue{}, 0, fmt.Errorf("xscript: truncated u64")
		}
		return U64Value(binary.LittleEndian.Uint64(b[pos:])), pos + 8, nil
	case KindF64:
		if pos+8 > len(b) {
			return TypedValue{}, 0, fmt.Errorf("xscript: truncated f64")
		}
		return F64Value(math.Float64frombits(binary.LittleEndian.Uint64(b[pos:]))), pos + 8, nil
	case KindString:
		s, n, err := readLengthPrefixed(b[pos:])
		if err != nil {
			return TypedValue{}, 0, err
		}
		return StringValue(string(s)), pos + n, nil
	case KindArray:
		if pos+4 > len(b) {
			return TypedValue{}, 0, fmt.Errorf("xscript: truncated array length")
		}
		count := int(binary.LittleEndian.Uint32(b[pos:]))
		pos += 4
		arr := make([]TypedValue, 0, count)
		for i := 0; i < count; i++ {
			elemBytes, n, err := readLengthPrefixed(b[pos:])
			if err != nil {
				return TypedValue{}, 0, err
			}
			pos += n
			elem, _, err := DecodeTypedValue(elemBytes)
			if err != nil {
				return TypedValue{}, 0, err
			}
			arr = append(arr, elem)
		}
		return ArrayValue(arr), pos, nil
	case KindMap:
		m, n, err := DecodeTypedMap(b[pos:])
		if err != nil {
			return TypedValue{}, 0, err
		}
		return MapValue(m), pos + n, nil
	}
	return TypedValue{}, 0, fmt.Errorf("xscript: unknown typed value kind %d", kind)
}

func errTruncated(what string) error {
	return fmt.Errorf("xscript: truncated %s", what)
}

func appendLengthPrefixed(out []byte, payload []byte) []byte {
	out = binary.LittleEndian.AppendUint32(out, uint32(len(payload)))
	return append(out, payload...)
}

func readLengthPrefixed(b []byte) ([]byte, int, error) {
	if len(b) < 4 {
		return nil, 0, fmt.Errorf("xscript: truncated length prefix")
	}
	n := int(binary.LittleEndian.Uint32(b))
	if len(b) < 4+n {
		return nil, 0, fmt.Errorf("xscript: truncated length-prefixed payload")
	}
	return b[4 : 4+n], 4 + n, nil
}
