package ptuple

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"time"
	"unsafe"
)

// Field is one directory entry together with its payload. It aliases the
// tuple's bytes and is invalidated by any later mutation of the tuple.
//
// Typed getters return the zero value when the field holds another type.
type Field struct {
	ct   uint16
	off  uint16
	data []byte // exact payload body, nil for inline types or unresolvable offsets
}

// makeField resolves a descriptor against the payload area pay.
func makeField(ct, off uint16, pay []byte) Field {
	f := Field{ct: ct, off: off}
	t := ctType(ct)
	if t.inline() || !t.Valid() {
		return f
	}
	p := int(off) * UnitSize
	if p >= len(pay) {
		return f
	}
	if n, ok := payloadUnits(t, pay[p:]); ok {
		f.data = pay[p : p+n*UnitSize : p+n*UnitSize]
	}
	return f
}

// payloadUnits returns the size of the body of type t starting at b.
func payloadUnits(t Type, b []byte) (int, bool) {
	if n := t.fixedUnits(); n > 0 {
		return n, n*UnitSize <= len(b)
	}
	if t == TypeCStr {
		i := bytes.IndexByte(b, 0)
		if i < 0 {
			return 0, false
		}
		return i/UnitSize + 1, true
	}
	if len(b) < UnitSize {
		return 0, false
	}
	n := int(getU16(b, 0))
	return n, n > 0 && n*UnitSize <= len(b)
}

func (f Field) Tag() uint16 { return ctTag(f.ct) }
func (f Field) Type() Type  { return ctType(f.ct) }

// Size returns the payload bytes of the field, zero for inline types.
func (f Field) Size() int { return len(f.data) }

func (f Field) String() string {
	return fmt.Sprintf("%d:%s", f.Tag(), f.Type())
}

// body returns the payload when the field is of type t.
func (f Field) body(t Type) []byte {
	if f.Type() != t {
		return nil
	}
	return f.data
}

func (f Field) Uint16() uint16 {
	if f.Type() != TypeUint16 {
		return 0
	}
	return f.off
}

func (f Field) Uint32() uint32 {
	if b := f.body(TypeUint32); b != nil {
		return getU32(b, 0)
	}
	return 0
}

func (f Field) Int32() int32 {
	if b := f.body(TypeInt32); b != nil {
		return int32(getU32(b, 0))
	}
	return 0
}

func (f Field) Float32() float32 {
	if b := f.body(TypeFloat32); b != nil {
		return math.Float32frombits(getU32(b, 0))
	}
	return 0
}

func (f Field) Uint64() uint64 {
	if b := f.body(TypeUint64); b != nil {
		return getU64(b, 0)
	}
	return 0
}

func (f Field) Int64() int64 {
	if b := f.body(TypeInt64); b != nil {
		return int64(getU64(b, 0))
	}
	return 0
}

func (f Field) Float64() float64 {
	if b := f.body(TypeFloat64); b != nil {
		return math.Float64frombits(getU64(b, 0))
	}
	return 0
}

// DatetimeFixed returns the raw 32.32 fixed point timestamp.
func (f Field) DatetimeFixed() uint64 {
	if b := f.body(TypeDatetime); b != nil {
		return getU64(b, 0)
	}
	return 0
}

// Datetime returns the timestamp in UTC, or the zero time.
func (f Field) Datetime() time.Time {
	if f.body(TypeDatetime) == nil {
		return time.Time{}
	}
	return fixedToTime(f.DatetimeFixed())
}

func (f Field) Bits96() (r [12]byte) {
	copy(r[:], f.body(Type96))
	return r
}

func (f Field) Bits128() (r [16]byte) {
	copy(r[:], f.body(Type128))
	return r
}

func (f Field) Bits160() (r [20]byte) {
	copy(r[:], f.body(Type160))
	return r
}

func (f Field) Bits256() (r [32]byte) {
	copy(r[:], f.body(Type256))
	return r
}

func cstrBytes(b []byte) []byte {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return b[:i]
	}
	return b
}

func (f Field) CStr() string {
	return string(cstrBytes(f.body(TypeCStr)))
}

// CStrUnsafe returns the text without copying. The string shares the
// tuple's memory; it must not outlive the buffer or any later mutation.
func (f Field) CStrUnsafe() string {
	b := cstrBytes(f.body(TypeCStr))
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(unsafe.SliceData(b), len(b))
}

// Opaque returns the blob, aliasing the tuple's bytes.
func (f Field) Opaque() []byte {
	b := f.body(TypeOpaque)
	if b == nil {
		return nil
	}
	return opaqueData(b)
}

func opaqueData(b []byte) []byte {
	n := int(getU16(b, 2))
	if UnitSize+n > len(b) {
		return nil
	}
	return b[UnitSize : UnitSize+n : UnitSize+n]
}

// Nested returns the embedded tuple, aliasing the tuple's bytes.
func (f Field) Nested() Tuple {
	return Tuple(f.body(TypeNested))
}

// ArrayLen returns the element count of an array field, else zero.
func (f Field) ArrayLen() int {
	if !f.Type().IsArray() || len(f.data) < UnitSize {
		return 0
	}
	return int(getU16(f.data, 2))
}

func fixedElems[T any](f Field, base Type, get func([]byte) T) []T {
	b := f.body(base | TypeArray)
	if b == nil {
		return nil
	}
	n, w := int(getU16(b, 2)), base.elemWidth()
	b = b[UnitSize:]
	if n*w > len(b) {
		return nil
	}
	out := make([]T, n)
	for i := range out {
		out[i] = get(b[i*w:])
	}
	return out
}

// walkElems calls fn with the body of each element of a variable-length
// array. It stops early and returns false if an element is malformed.
func walkElems(body []byte, base Type, fn func([]byte)) bool {
	n := int(getU16(body, 2))
	rest := body[UnitSize:]
	for range n {
		u, ok := payloadUnits(base, rest)
		if !ok {
			return false
		}
		fn(rest[:u*UnitSize])
		rest = rest[u*UnitSize:]
	}
	return len(rest) == 0
}

func variableElems[T any](f Field, base Type, get func([]byte) T) []T {
	b := f.body(base | TypeArray)
	if b == nil {
		return nil
	}
	out := make([]T, 0, getU16(b, 2))
	walkElems(b, base, func(e []byte) { out = append(out, get(e)) })
	return out
}

func (f Field) Uint16Array() []uint16 {
	return fixedElems(f, TypeUint16, binary.LittleEndian.Uint16)
}

func (f Field) Uint32Array() []uint32 {
	return fixedElems(f, TypeUint32, binary.LittleEndian.Uint32)
}

func (f Field) Uint64Array() []uint64 {
	return fixedElems(f, TypeUint64, binary.LittleEndian.Uint64)
}

func (f Field) Int32Array() []int32 {
	return fixedElems(f, TypeInt32, func(b []byte) int32 { return int32(getU32(b, 0)) })
}

func (f Field) Int64Array() []int64 {
	return fixedElems(f, TypeInt64, func(b []byte) int64 { return int64(getU64(b, 0)) })
}

func (f Field) Float32Array() []float32 {
	return fixedElems(f, TypeFloat32, func(b []byte) float32 {
		return math.Float32frombits(getU32(b, 0))
	})
}

func (f Field) Float64Array() []float64 {
	return fixedElems(f, TypeFloat64, func(b []byte) float64 {
		return math.Float64frombits(getU64(b, 0))
	})
}

func (f Field) CStrArray() []string {
	return variableElems(f, TypeCStr, func(b []byte) string { return string(cstrBytes(b)) })
}

// OpaqueArray returns the blobs, aliasing the tuple's bytes.
func (f Field) OpaqueArray() [][]byte {
	return variableElems(f, TypeOpaque, opaqueData)
}

// NestedArray returns the embedded tuples, aliasing the tuple's bytes.
func (f Field) NestedArray() []Tuple {
	return variableElems(f, TypeNested, func(b []byte) Tuple { return Tuple(b) })
}
