package ptuple

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"
	"unsafe"

	"github.com/rawbytedev/ptuple/internal/common"
)

// Value is a typed field value ready to be stored. Constructors size the
// encoding up front, so a mutation can check capacity before it writes.
// A constructor given an unrepresentable value returns a Value whose Err
// is non-nil; storing it fails with that error.
type Value struct {
	typ    Type
	units  int
	err    error
	inline uint16
	wide   [32]byte
	str    string
	bytes  []byte
}

func (v Value) Type() Type { return v.typ }

// Size returns the payload bytes the value occupies, zero for inline types.
func (v Value) Size() int { return v.units * UnitSize }

func (v Value) Err() error { return v.err }

// encode writes the payload into dst, which is Size bytes long for a
// fresh field or the old body size for an in-place replace. The source
// may overlap dst; only the bytes past the copied value are zeroed.
func (v Value) encode(dst []byte) {
	n := 0
	switch t := v.typ; {
	case t.fixedUnits() > 0:
		n = copy(dst, v.wide[:t.fixedUnits()*UnitSize])
	case t == TypeCStr:
		n = copy(dst, v.str)
	case t == TypeOpaque:
		copy(dst[UnitSize:], v.bytes)
		putU16(dst, 0, uint16(v.units))
		putU16(dst, 2, uint16(len(v.bytes)))
		n = UnitSize + len(v.bytes)
	case t == TypeNested && len(v.bytes) == 0:
		writeROHeader(dst, 0, 1, 0)
		n = UnitSize
	case t == TypeNested, t.IsArray():
		n = copy(dst, v.bytes)
	}
	clear(dst[n:])
}

// source returns the caller-owned bytes v copies when it is written.
func (v Value) source() []byte {
	if v.typ == TypeCStr && len(v.str) > 0 {
		return unsafe.Slice(unsafe.StringData(v.str), len(v.str))
	}
	return v.bytes
}

// detached returns v with its source copied out of buf when the two
// share memory, so a write into buf cannot clobber it first.
func (v Value) detached(buf []byte) Value {
	src := v.source()
	if !overlaps(buf, src) {
		return v
	}
	if v.typ == TypeCStr {
		v.str = strings.Clone(v.str)
	} else {
		v.bytes = bytes.Clone(v.bytes)
	}
	return v
}

func overlaps(a, b []byte) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	pa := uintptr(unsafe.Pointer(unsafe.SliceData(a)))
	pb := uintptr(unsafe.Pointer(unsafe.SliceData(b)))
	return pb < pa+uintptr(len(a)) && pa < pb+uintptr(len(b))
}

func invalid(t Type, format string, args ...any) Value {
	return Value{typ: t, err: fmt.Errorf("%w: %s: "+format, append([]any{ErrInvalidValue, t}, args...)...)}
}

func Null() Value { return Value{typ: TypeNull} }

func Uint16(x uint16) Value { return Value{typ: TypeUint16, inline: x} }

func fixed(t Type) Value { return Value{typ: t, units: t.fixedUnits()} }

func Uint32(x uint32) Value {
	v := fixed(TypeUint32)
	binary.LittleEndian.PutUint32(v.wide[:], x)
	return v
}

func Int32(x int32) Value {
	v := fixed(TypeInt32)
	binary.LittleEndian.PutUint32(v.wide[:], uint32(x))
	return v
}

func Float32(x float32) Value {
	v := fixed(TypeFloat32)
	binary.LittleEndian.PutUint32(v.wide[:], math.Float32bits(x))
	return v
}

func Uint64(x uint64) Value {
	v := fixed(TypeUint64)
	binary.LittleEndian.PutUint64(v.wide[:], x)
	return v
}

func Int64(x int64) Value {
	v := fixed(TypeInt64)
	binary.LittleEndian.PutUint64(v.wide[:], uint64(x))
	return v
}

func Float64(x float64) Value {
	v := fixed(TypeFloat64)
	binary.LittleEndian.PutUint64(v.wide[:], math.Float64bits(x))
	return v
}

// Datetime stores t as 32.32 fixed point seconds since the Unix epoch,
// rounded to the nearest 2^-32 s. Instants before 1970 or past 2106
// cannot be represented.
func Datetime(t time.Time) Value {
	fp, ok := timeToFixed(t)
	if !ok {
		return invalid(TypeDatetime, "%s out of range", t.Format(time.RFC3339))
	}
	return DatetimeFixed(fp)
}

// DatetimeFixed stores a raw 32.32 fixed point timestamp.
func DatetimeFixed(fp uint64) Value {
	v := fixed(TypeDatetime)
	binary.LittleEndian.PutUint64(v.wide[:], fp)
	return v
}

func Bits96(b [12]byte) Value {
	v := fixed(Type96)
	copy(v.wide[:], b[:])
	return v
}

func Bits128(b [16]byte) Value {
	v := fixed(Type128)
	copy(v.wide[:], b[:])
	return v
}

func Bits160(b [20]byte) Value {
	v := fixed(Type160)
	copy(v.wide[:], b[:])
	return v
}

func Bits256(b [32]byte) Value {
	v := fixed(Type256)
	v.wide = b
	return v
}

// CStr stores s NUL terminated; s itself must not contain NUL.
func CStr(s string) Value {
	if strings.IndexByte(s, 0) >= 0 {
		return invalid(TypeCStr, "embedded NUL")
	}
	n := common.Units(len(s) + 1)
	if n > maxBodyUnits {
		return invalid(TypeCStr, "%d bytes is too long", len(s))
	}
	return Value{typ: TypeCStr, units: n, str: s}
}

// Opaque stores up to 65535 raw bytes. b is copied when the value is
// written, not when the Value is built.
func Opaque(b []byte) Value {
	if len(b) > math.MaxUint16 {
		return invalid(TypeOpaque, "%d bytes is too long", len(b))
	}
	return Value{typ: TypeOpaque, units: 1 + common.Units(len(b)), bytes: b}
}

// Nested embeds a frozen tuple verbatim. A nil Tuple embeds an empty one.
func Nested(t Tuple) Value {
	if len(t) == 0 {
		return Value{typ: TypeNested, units: 1}
	}
	if err := t.Check(); err != nil {
		return invalid(TypeNested, "%v", err)
	}
	return Value{typ: TypeNested, units: len(t) / UnitSize, bytes: t}
}

// fixedArray packs elems at the element width of base behind the array
// header.
func fixedArray[T any](base Type, elems []T, put func([]byte, T)) Value {
	t := base | TypeArray
	if len(elems) > math.MaxUint16 {
		return invalid(t, "%d elements", len(elems))
	}
	w := base.elemWidth()
	n := 1 + common.Units(len(elems)*w)
	if n > maxBodyUnits {
		return invalid(t, "%d elements do not fit", len(elems))
	}
	body := make([]byte, n*UnitSize)
	putU16(body, 0, uint16(n))
	putU16(body, 2, uint16(len(elems)))
	for i, e := range elems {
		put(body[UnitSize+i*w:], e)
	}
	return Value{typ: t, units: n, bytes: body}
}

func Uint16Array(a []uint16) Value {
	return fixedArray(TypeUint16, a, binary.LittleEndian.PutUint16)
}

func Uint32Array(a []uint32) Value {
	return fixedArray(TypeUint32, a, binary.LittleEndian.PutUint32)
}

func Uint64Array(a []uint64) Value {
	return fixedArray(TypeUint64, a, binary.LittleEndian.PutUint64)
}

func Int32Array(a []int32) Value {
	return fixedArray(TypeInt32, a, func(b []byte, x int32) {
		binary.LittleEndian.PutUint32(b, uint32(x))
	})
}

func Int64Array(a []int64) Value {
	return fixedArray(TypeInt64, a, func(b []byte, x int64) {
		binary.LittleEndian.PutUint64(b, uint64(x))
	})
}

func Float32Array(a []float32) Value {
	return fixedArray(TypeFloat32, a, func(b []byte, x float32) {
		binary.LittleEndian.PutUint32(b, math.Float32bits(x))
	})
}

func Float64Array(a []float64) Value {
	return fixedArray(TypeFloat64, a, func(b []byte, x float64) {
		binary.LittleEndian.PutUint64(b, math.Float64bits(x))
	})
}

// variableArray concatenates the element encodings produced by enc.
func variableArray[T any](base Type, elems []T, enc func(T) Value) Value {
	t := base | TypeArray
	if len(elems) > math.MaxUint16 {
		return invalid(t, "%d elements", len(elems))
	}
	vals := make([]Value, len(elems))
	n := 1
	for i, e := range elems {
		vals[i] = enc(e)
		if err := vals[i].err; err != nil {
			return invalid(t, "element %d: %v", i, err)
		}
		n += vals[i].units
	}
	if n > maxBodyUnits {
		return invalid(t, "%d elements do not fit", len(elems))
	}
	body := make([]byte, n*UnitSize)
	putU16(body, 0, uint16(n))
	putU16(body, 2, uint16(len(elems)))
	pos := UnitSize
	for _, v := range vals {
		v.encode(body[pos : pos+v.Size()])
		pos += v.Size()
	}
	return Value{typ: t, units: n, bytes: body}
}

func CStrArray(a []string) Value { return variableArray(TypeCStr, a, CStr) }

func OpaqueArray(a [][]byte) Value { return variableArray(TypeOpaque, a, Opaque) }

func NestedArray(a []Tuple) Value { return variableArray(TypeNested, a, Nested) }

func timeToFixed(t time.Time) (uint64, bool) {
	sec := t.Unix()
	frac := (uint64(t.Nanosecond())<<32 + 5e8) / 1e9
	if frac == 1<<32 {
		sec, frac = sec+1, 0
	}
	if sec < 0 || sec > math.MaxUint32 {
		return 0, false
	}
	return uint64(sec)<<32 | frac, true
}

func fixedToTime(fp uint64) time.Time {
	ns := (fp&math.MaxUint32*1e9 + 1<<31) >> 32
	return time.Unix(int64(fp>>32), int64(ns)).UTC()
}
