package ptuple

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"
	"testing/quick"
	"time"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newBuilder(t *testing.T, fields, data int) *Builder {
	t.Helper()
	b, err := Init(make([]byte, BufferSize(fields, data)), fields)
	require.NoError(t, err)
	return b
}

func TestInitInvalidCapacity(t *testing.T) {
	_, err := Init(make([]byte, MinBufferSize-1), 0)
	require.ErrorIs(t, err, ErrInvalidCapacity)

	_, err = Init(make([]byte, BufferSize(3, 0)), 4)
	require.ErrorIs(t, err, ErrInvalidCapacity)

	_, err = Init(make([]byte, 1024), -1)
	require.ErrorIs(t, err, ErrInvalidCapacity)

	_, err = Init(make([]byte, BufferSize(MaxFields+1, 0)), MaxFields+1)
	require.ErrorIs(t, err, ErrInvalidCapacity)

	b, err := Init(make([]byte, BufferSize(4, 0)+3), 4)
	require.NoError(t, err)
	assert.Equal(t, 4, b.SpaceForItems())
	assert.Zero(t, b.SpaceForData())
	assert.Equal(t, 4*UnitSize, b.Capacity())
}

func TestInitCapsTupleSize(t *testing.T) {
	b := newBuilder(t, 10, 2*MaxTupleBytes)
	assert.Equal(t, (MaxTupleUnits-1)*UnitSize, b.Capacity())
	require.NoError(t, b.Check())

	big := make([]byte, math.MaxUint16)
	for b.Insert(1, Opaque(big)) == nil {
	}
	require.NoError(t, b.Check())
	assert.LessOrEqual(t, b.TakeNoShrink().Size(), MaxTupleBytes)
}

func TestInvalidTag(t *testing.T) {
	b := newBuilder(t, 4, 16)
	require.ErrorIs(t, b.InsertNull(TagLimit), ErrInvalidTag)
	require.ErrorIs(t, b.UpsertUint32(TagLimit+1, 1), ErrInvalidTag)
	require.Zero(t, b.Len())
	require.NoError(t, b.InsertNull(MaxTag))
	assert.Equal(t, uint16(MaxTag), b.Field(0).Tag())
}

func TestUpsertReplaces(t *testing.T) {
	b := newBuilder(t, 8, 64)
	require.NoError(t, b.UpsertUint32(1, 10))
	require.NoError(t, b.UpsertUint32(1, 20))
	require.NoError(t, b.UpsertUint16(1, 30))
	require.NoError(t, b.UpsertUint16(1, 40))

	assert.Equal(t, 1, b.FieldCount(ByType(1, MaskOf(TypeUint32))))
	assert.Equal(t, 1, b.FieldCount(ByType(1, MaskOf(TypeUint16))))
	f, ok := b.Lookup(1, TypeUint32)
	require.True(t, ok)
	assert.Equal(t, uint32(20), f.Uint32())
	f, _ = b.Lookup(1, TypeUint16)
	assert.Equal(t, uint16(40), f.Uint16())
	assert.Zero(t, b.JunkSpace())
	requireConsistent(t, b)
}

func TestUpsertTouchesFirstMatchOnly(t *testing.T) {
	b := newBuilder(t, 8, 64)
	require.NoError(t, b.InsertInt32(1, 1))
	require.NoError(t, b.InsertInt32(1, 2))
	require.NoError(t, b.UpsertInt32(1, 3))
	assert.Equal(t, int32(3), b.Field(0).Int32())
	assert.Equal(t, int32(2), b.Field(1).Int32())
}

func TestUpsertResizes(t *testing.T) {
	b := newBuilder(t, 4, 64)
	require.NoError(t, b.UpsertCStr(7, "hello world"))
	require.NoError(t, b.InsertUint32(8, 99))
	assert.Equal(t, 4*UnitSize, b.Space().Live)

	require.NoError(t, b.UpsertCStr(7, "hi"))
	assert.Equal(t, 2*UnitSize, b.JunkSpace())
	f, _ := b.Lookup(7, TypeCStr)
	assert.Equal(t, "hi", f.CStr())
	requireConsistent(t, b)

	long := "a much longer string value"
	require.NoError(t, b.UpsertCStr(7, long))
	assert.Equal(t, 3*UnitSize, b.JunkSpace())
	f, _ = b.Lookup(7, TypeCStr)
	assert.Equal(t, long, f.CStr())
	assert.Equal(t, 0, b.First(0, b.Len(), ByType(7, MaskAny)))
	requireConsistent(t, b)

	b.Shrink()
	assert.Zero(t, b.JunkSpace())
	f, _ = b.Lookup(7, TypeCStr)
	assert.Equal(t, long, f.CStr())
	f, _ = b.Lookup(8, TypeUint32)
	assert.Equal(t, uint32(99), f.Uint32())
	requireConsistent(t, b)
}

func TestUpsertGrowsIntoOwnSpace(t *testing.T) {
	b := newBuilder(t, 2, 16)
	require.NoError(t, b.UpsertCStr(1, "abcdef"))
	require.NoError(t, b.UpsertUint32(2, 5))
	require.Equal(t, UnitSize, b.SpaceForData())

	// only fits once the old body is dropped
	require.NoError(t, b.UpsertCStr(1, "abcdefghij"))
	assert.Zero(t, b.SpaceForData())
	assert.Zero(t, b.JunkSpace())
	f, _ := b.Lookup(1, TypeCStr)
	assert.Equal(t, "abcdefghij", f.CStr())
	f, _ = b.Lookup(2, TypeUint32)
	assert.Equal(t, uint32(5), f.Uint32())
	requireConsistent(t, b)
}

func TestEraseFreesSlotsAndKeepsOrder(t *testing.T) {
	b := newBuilder(t, 8, 64)
	for i := range 6 {
		require.NoError(t, b.InsertUint32(uint16(i), uint32(i)))
	}
	free := b.SpaceForItems()

	assert.Equal(t, 1, b.Erase(2, MaskAny))
	assert.Equal(t, free+1, b.SpaceForItems())
	assert.Equal(t, UnitSize, b.JunkSpace())
	requireConsistent(t, b)

	var got []uint32
	for _, f := range b.Fields(All()) {
		got = append(got, f.Uint32())
	}
	assert.Equal(t, []uint32{0, 1, 3, 4, 5}, got)

	assert.Zero(t, b.Erase(2, MaskAny))
	assert.Zero(t, b.Erase(3, MaskOf(TypeCStr)))
	assert.Equal(t, 5, b.Erase(TagLimit, MaskOf(TypeUint32)))
	assert.Zero(t, b.Len())
	assert.Equal(t, 6*UnitSize, b.JunkSpace())
	requireConsistent(t, b)
}

func TestEraseAt(t *testing.T) {
	b := newBuilder(t, 4, 32)
	require.NoError(t, b.InsertCStr(1, "one"))
	require.NoError(t, b.InsertCStr(2, "two"))
	require.NoError(t, b.InsertCStr(3, "three"))

	require.NoError(t, b.EraseAt(1))
	assert.Equal(t, "one", b.Field(0).CStr())
	assert.Equal(t, "three", b.Field(1).CStr())
	require.ErrorIs(t, b.EraseAt(2), ErrNoField)
	require.ErrorIs(t, b.EraseAt(-1), ErrNoField)
	requireConsistent(t, b)
}

func TestAutoShrink(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	b, err := NewBuilder(make([]byte, BufferSize(4, 16)), 4, Options{Logger: zap.New(core)})
	require.NoError(t, err)

	require.NoError(t, b.InsertOpaque(1, []byte("12345678")))
	require.NoError(t, b.InsertUint32(2, 7))
	require.Zero(t, b.SpaceForData())
	require.Equal(t, 1, b.Erase(1, MaskAny))
	require.Equal(t, 3*UnitSize, b.JunkSpace())

	require.NoError(t, b.InsertUint64(3, 1<<40))
	assert.Zero(t, b.JunkSpace())
	assert.Equal(t, UnitSize, b.SpaceForData())
	f, _ := b.Lookup(2, TypeUint32)
	assert.Equal(t, uint32(7), f.Uint32())
	f, _ = b.Lookup(3, TypeUint64)
	assert.Equal(t, uint64(1<<40), f.Uint64())
	assert.Equal(t, 1, logs.FilterMessage("tuple shrunk").Len())
	requireConsistent(t, b)
}

func TestNoAutoShrink(t *testing.T) {
	b, err := NewBuilder(make([]byte, BufferSize(4, 16)), 4, Options{NoAutoShrink: true})
	require.NoError(t, err)

	require.NoError(t, b.InsertOpaque(1, []byte("12345678")))
	require.NoError(t, b.InsertUint32(2, 7))
	require.Equal(t, 1, b.Erase(1, MaskAny))

	require.ErrorIs(t, b.InsertUint64(3, 1), ErrCapacityExceeded)
	b.Shrink()
	require.NoError(t, b.InsertUint64(3, 1))
	requireConsistent(t, b)
}

func TestFailedMutationLeavesBufferUntouched(t *testing.T) {
	b := newBuilder(t, 2, 12)
	require.NoError(t, b.InsertUint64(1, 1))
	require.NoError(t, b.InsertCStr(2, "x"))
	before := bytes.Clone(b.Bytes())

	failing := []func() error{
		func() error { return b.InsertNull(3) },
		func() error { return b.UpsertCStr(2, strings.Repeat("y", 40)) },
		func() error { return b.InsertCStr(4, "a\x00b") },
		func() error { return b.InsertUint32(TagLimit, 1) },
		func() error { return b.Upsert(1, Datetime(time.Unix(-1, 0))) },
	}
	for i, op := range failing {
		require.Error(t, op(), "op %d", i)
		require.Equal(t, before, b.Bytes(), "op %d", i)
	}
	requireConsistent(t, b)
}

func TestClear(t *testing.T) {
	b := newBuilder(t, 4, 32)
	require.NoError(t, b.InsertCStr(1, "abc"))
	require.NoError(t, b.InsertUint16(2, 3))
	b.Erase(1, MaskAny)

	b.Clear()
	assert.Zero(t, b.Len())
	assert.Zero(t, b.JunkSpace())
	assert.Equal(t, 4, b.SpaceForItems())
	assert.Equal(t, 32, b.SpaceForData())
	requireConsistent(t, b)

	fresh := newBuilder(t, 4, 32)
	assert.Equal(t, fresh.Bytes(), b.Bytes())
}

func TestTakeShrinks(t *testing.T) {
	b := newBuilder(t, 4, 64)
	require.NoError(t, b.InsertCStr(1, "first value"))
	require.NoError(t, b.InsertCStr(2, "second"))
	b.Erase(1, MaskAny)

	loose := b.TakeNoShrink()
	assert.Equal(t, 3*UnitSize, loose.Junk())
	require.NoError(t, loose.Check())

	tight := b.Take()
	assert.Zero(t, tight.Junk())
	assert.Zero(t, b.JunkSpace())
	assert.Equal(t, (1+1+2)*UnitSize, tight.Size())
	assert.Equal(t, "second", tight.Field(0).CStr())
	requireConsistent(t, b)
}

func TestTakeCompact(t *testing.T) {
	b := newBuilder(t, 8, 128)
	require.NoError(t, b.InsertCStr(1, "gone"))
	require.NoError(t, b.InsertFloat64(2, 2.5))
	require.NoError(t, b.InsertUint16(3, 3))
	require.NoError(t, b.InsertOpaque(4, []byte{1, 2, 3}))
	b.Erase(1, MaskAny)
	require.NoError(t, b.UpsertFloat64(2, 3.5))
	before := bytes.Clone(b.Bytes())

	c, err := b.TakeCompact(nil)
	require.NoError(t, err)
	require.NoError(t, c.Check())
	assert.Zero(t, c.Junk())
	assert.Equal(t, before, b.Bytes())
	assert.Equal(t, b.Len(), c.Len())
	for i := range b.Len() {
		assert.Equal(t, b.Field(i).Tag(), c.Field(i).Tag())
		assert.Equal(t, b.Field(i).Type(), c.Field(i).Type())
	}
	assert.Equal(t, 3.5, c.Field(0).Float64())
	assert.Equal(t, []byte{1, 2, 3}, c.Field(2).Opaque())

	// independent storage
	require.NoError(t, b.UpsertFloat64(2, 9))
	assert.Equal(t, 3.5, c.Field(0).Float64())

	_, err = b.TakeCompact(make([]byte, c.Size()-1))
	require.ErrorIs(t, err, ErrCapacityExceeded)

	dst := make([]byte, 256)
	c2, err := b.TakeCompact(dst)
	require.NoError(t, err)
	assert.Equal(t, c.Size(), c2.Size())
	assert.Equal(t, []byte(b.Take()), []byte(c2))
}

func TestFetch(t *testing.T) {
	src := newBuilder(t, 4, 64)
	require.NoError(t, src.InsertCStr(1, "abc"))
	require.NoError(t, src.InsertInt64(2, -7))
	require.NoError(t, src.InsertCStr(3, "drop me"))
	src.Erase(3, MaskAny)
	frozen := src.TakeNoShrink().Clone()

	b, err := Fetch(frozen, make([]byte, BufferSize(4, 64)), 2, Options{})
	require.NoError(t, err)
	assert.Equal(t, 4, b.MaxFields())
	assert.Equal(t, 2, b.Len())
	assert.Equal(t, frozen.Junk(), b.JunkSpace())
	assert.Equal(t, "abc", b.Field(0).CStr())
	assert.Equal(t, int64(-7), b.Field(1).Int64())
	requireConsistent(t, b)

	require.NoError(t, b.InsertNull(4))
	require.NoError(t, b.InsertNull(5))
	require.ErrorIs(t, b.InsertNull(6), ErrCapacityExceeded)

	empty, err := Fetch(nil, make([]byte, BufferSize(1, 0)), 1, Options{})
	require.NoError(t, err)
	assert.Zero(t, empty.Len())

	_, err = Fetch(frozen, make([]byte, BufferSize(2, 4)), 0, Options{})
	require.ErrorIs(t, err, ErrCapacityExceeded)

	_, err = Fetch(Tuple{1, 0, 0}, make([]byte, 64), 0, Options{})
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestAttach(t *testing.T) {
	b := newBuilder(t, 4, 32)
	require.NoError(t, b.InsertCStr(1, "kept"))

	again, err := Attach(b.Bytes(), Options{})
	require.NoError(t, err)
	assert.Equal(t, "kept", again.Field(0).CStr())
	require.NoError(t, again.InsertUint32(2, 2))
	assert.Equal(t, 2, b.Len())

	raw := bytes.Clone(b.Bytes())
	raw[0] ^= 0xFF
	_, err = Attach(raw, Options{})
	require.ErrorIs(t, err, ErrCorrupt)

	_, err = Attach(make([]byte, 8), Options{})
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestValueRoundTrip(t *testing.T) {
	inner := newBuilder(t, 2, 16)
	require.NoError(t, inner.InsertCStr(1, "inner"))
	nested := inner.Take().Clone()

	when := time.Date(2024, 2, 29, 12, 30, 15, 250_000_000, time.UTC)
	b96 := [12]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	var b256 [32]byte
	b256[31] = 0xEE

	b := newBuilder(t, 32, 1024)
	vals := []Value{
		Null(), Uint16(65535), Uint32(1 << 31), Uint64(math.MaxUint64),
		Int32(math.MinInt32), Int64(-42), Float32(1.25), Float64(math.Pi),
		Datetime(when), Bits96(b96), Bits128([16]byte{15: 1}), Bits160([20]byte{0: 2}), Bits256(b256),
		CStr(""), CStr("four"), Opaque(nil), Opaque([]byte("blob")), Nested(nested), Nested(nil),
		Uint16Array([]uint16{1, 2, 3}), Uint32Array(nil), Uint64Array([]uint64{5}),
		Int32Array([]int32{-1, 1}), Int64Array([]int64{math.MinInt64}),
		Float32Array([]float32{0.5}), Float64Array([]float64{1, 2}),
		CStrArray([]string{"a", "", "abcd"}), OpaqueArray([][]byte{{1}, nil}),
		NestedArray([]Tuple{nested, nil}),
	}
	for i, v := range vals {
		require.NoError(t, v.Err(), "value %d", i)
		require.NoError(t, b.Insert(uint16(i), v), "value %d %s", i, v.Type())
	}
	requireConsistent(t, b)

	for _, d := range []Directory{b, b.TakeNoShrink()} {
		f := func(i int) Field { return d.Field(i) }
		assert.Equal(t, TypeNull, f(0).Type())
		assert.Equal(t, uint16(65535), f(1).Uint16())
		assert.Equal(t, uint32(1<<31), f(2).Uint32())
		assert.Equal(t, uint64(math.MaxUint64), f(3).Uint64())
		assert.Equal(t, int32(math.MinInt32), f(4).Int32())
		assert.Equal(t, int64(-42), f(5).Int64())
		assert.Equal(t, float32(1.25), f(6).Float32())
		assert.Equal(t, math.Pi, f(7).Float64())
		assert.True(t, when.Equal(f(8).Datetime()), f(8).Datetime())
		assert.Equal(t, b96, f(9).Bits96())
		assert.Equal(t, [16]byte{15: 1}, f(10).Bits128())
		assert.Equal(t, [20]byte{0: 2}, f(11).Bits160())
		assert.Equal(t, b256, f(12).Bits256())
		assert.Equal(t, "", f(13).CStr())
		assert.Equal(t, "four", f(14).CStr())
		assert.Equal(t, "four", f(14).CStrUnsafe())
		assert.Equal(t, 2*UnitSize, f(14).Size())
		assert.Empty(t, f(15).Opaque())
		assert.Equal(t, []byte("blob"), f(16).Opaque())
		assert.Equal(t, "inner", f(17).Nested().Field(0).CStr())
		assert.Zero(t, f(18).Nested().Len())
		assert.Equal(t, []uint16{1, 2, 3}, f(19).Uint16Array())
		assert.Equal(t, 3, f(19).ArrayLen())
		assert.Empty(t, f(20).Uint32Array())
		assert.Equal(t, []uint64{5}, f(21).Uint64Array())
		assert.Equal(t, []int32{-1, 1}, f(22).Int32Array())
		assert.Equal(t, []int64{math.MinInt64}, f(23).Int64Array())
		assert.Equal(t, []float32{0.5}, f(24).Float32Array())
		assert.Equal(t, []float64{1, 2}, f(25).Float64Array())
		assert.Equal(t, []string{"a", "", "abcd"}, f(26).CStrArray())
		opaques := f(27).OpaqueArray()
		require.Len(t, opaques, 2)
		assert.Equal(t, []byte{1}, opaques[0])
		assert.Empty(t, opaques[1])
		tuples := f(28).NestedArray()
		require.Len(t, tuples, 2)
		assert.Equal(t, "inner", tuples[0].Field(0).CStr())
		assert.Zero(t, tuples[1].Len())
	}

	// getters of another type read as zero
	assert.Zero(t, b.Field(2).Uint64())
	assert.Empty(t, b.Field(2).CStr())
	assert.Nil(t, b.Field(2).Uint16Array())
	assert.Zero(t, b.Field(99).Uint32())
}

func TestDatetimeRounding(t *testing.T) {
	for _, ts := range []time.Time{
		time.Unix(0, 0),
		time.Unix(1, 999_999_999),
		time.Unix(math.MaxUint32, 0),
		time.Unix(1700000000, 123_456_789),
	} {
		v := Datetime(ts)
		require.NoError(t, v.Err())
		b := newBuilder(t, 1, 8)
		require.NoError(t, b.Insert(1, v))
		got := b.Field(0).Datetime()
		assert.InDelta(t, 0, got.Sub(ts).Nanoseconds(), 1, "%s vs %s", got, ts)
	}
	require.ErrorIs(t, Datetime(time.Unix(-1, 0)).Err(), ErrInvalidValue)
	require.ErrorIs(t, Datetime(time.Unix(math.MaxUint32+1, 0)).Err(), ErrInvalidValue)
}

func TestValueErrors(t *testing.T) {
	cases := map[string]Value{
		"cstr with NUL":   CStr("a\x00"),
		"long opaque":     Opaque(make([]byte, math.MaxUint16+1)),
		"corrupt nested":  Nested(Tuple{9, 0, 0, 0}),
		"bad array elem":  CStrArray([]string{"ok", "no\x00"}),
		"too many elems":  Uint16Array(make([]uint16, math.MaxUint16+1)),
		"oversized array": Uint64Array(make([]uint64, math.MaxUint16)),
	}
	b := newBuilder(t, 2, 64)
	for name, v := range cases {
		require.ErrorIs(t, v.Err(), ErrInvalidValue, name)
		require.ErrorIs(t, b.Insert(1, v), ErrInvalidValue, name)
	}
	assert.Zero(t, b.Len())
}

func TestSpaceIdentity(t *testing.T) {
	b := newBuilder(t, 6, 100)
	s := b.Space()
	assert.True(t, s.Balanced())
	assert.Zero(t, s.UsedSlots)
	assert.Zero(t, s.Live)
	assert.Zero(t, s.Junk)
	assert.Equal(t, 6, s.FreeSlots)
	assert.Equal(t, 100, s.FreeData)

	require.NoError(t, b.InsertCStr(1, "12345"))
	require.NoError(t, b.InsertUint16(2, 1))
	b.Erase(1, MaskAny)
	s = b.Space()
	assert.True(t, s.Balanced(), "%+v", s)
	assert.Equal(t, 1, s.UsedSlots)
	assert.Equal(t, 2*UnitSize, s.Junk)
}

type modelField struct {
	tag uint16
	typ Type
	u   uint32
	s   string
}

// TestRandomOperations drives a builder with random scripts and compares
// it with a plain slice after every step.
func TestRandomOperations(t *testing.T) {
	script := func(ops []byte) bool {
		b, err := Init(make([]byte, BufferSize(12, 96)), 12)
		require.NoError(t, err)
		var model []modelField
		for _, op := range ops {
			tag := uint16(op>>2) % 4
			before := bytes.Clone(b.Bytes())
			switch op % 4 {
			case 0:
				err = b.InsertUint32(tag, uint32(op))
				if err == nil {
					model = append(model, modelField{tag: tag, typ: TypeUint32, u: uint32(op)})
				}
			case 1:
				s := strings.Repeat("z", int(op>>4))
				err = b.UpsertCStr(tag, s)
				if err == nil {
					found := false
					for i := range model {
						if model[i].tag == tag && model[i].typ == TypeCStr {
							model[i].s, found = s, true
							break
						}
					}
					if !found {
						model = append(model, modelField{tag: tag, typ: TypeCStr, s: s})
					}
				}
			case 2:
				n := b.Erase(tag, MaskAny)
				kept := model[:0]
				for _, m := range model {
					if m.tag != tag {
						kept = append(kept, m)
					}
				}
				require.Equal(t, len(model)-len(kept), n)
				model = kept
			default:
				if op&0x80 != 0 {
					b.Take()
				} else {
					b.Shrink()
				}
			}
			if err != nil {
				require.True(t, errors.Is(err, ErrCapacityExceeded), err)
				require.Equal(t, before, b.Bytes())
				err = nil
			}
			requireConsistent(t, b)
			require.Equal(t, len(model), b.Len())
			for i, m := range model {
				f := b.Field(i)
				require.Equal(t, m.tag, f.Tag())
				require.Equal(t, m.typ, f.Type())
				require.Equal(t, m.u, f.Uint32())
				require.Equal(t, m.s, f.CStr())
			}
		}
		return true
	}
	require.NoError(t, quick.Check(script, &quick.Config{MaxCount: 300}))
}

func TestUpsertFromOwnBytes(t *testing.T) {
	b := newBuilder(t, 4, 64)
	require.NoError(t, b.InsertOpaque(2, []byte("payload!")))
	require.NoError(t, b.InsertCStr(5, "hello"))

	f, ok := b.Lookup(2, TypeOpaque)
	require.True(t, ok)
	require.NoError(t, b.UpsertOpaque(2, f.Opaque()))
	f, _ = b.Lookup(2, TypeOpaque)
	assert.Equal(t, []byte("payload!"), f.Opaque())

	s, ok := b.Lookup(5, TypeCStr)
	require.True(t, ok)
	require.NoError(t, b.UpsertCStr(5, s.CStrUnsafe()))
	s, _ = b.Lookup(5, TypeCStr)
	assert.Equal(t, "hello", s.CStr())
	require.NoError(t, b.Check())
}

func TestInsertFromOwnBytesWhileShrinking(t *testing.T) {
	b := newBuilder(t, 4, 24)
	require.NoError(t, b.InsertCStr(1, "junkjunk"))
	require.NoError(t, b.InsertOpaque(2, []byte("payload!")))
	require.Zero(t, b.SpaceForData())
	require.Equal(t, 1, b.Erase(1, MaskOf(TypeCStr)))

	src, ok := b.Lookup(2, TypeOpaque)
	require.True(t, ok)
	require.NoError(t, b.InsertOpaque(3, src.Opaque()))
	require.Zero(t, b.JunkSpace())
	got, ok := b.Lookup(3, TypeOpaque)
	require.True(t, ok)
	assert.Equal(t, []byte("payload!"), got.Opaque())
	require.NoError(t, b.Check())

	n := newBuilder(t, 4, 20)
	require.NoError(t, n.InsertCStr(1, "abc"))
	require.NoError(t, n.InsertUint32(2, 7))
	require.Equal(t, 1, n.Erase(1, MaskAny))
	require.NoError(t, n.InsertNested(3, n.TakeNoShrink()))
	require.Zero(t, n.JunkSpace())
	require.NoError(t, n.Check())
	inner, ok := n.Lookup(3, TypeNested)
	require.True(t, ok)
	assert.Equal(t, 1, inner.Nested().Len())
	assert.Equal(t, uint32(7), inner.Nested().Field(0).Uint32())
}

func TestEncodeOverlappingSource(t *testing.T) {
	buf := make([]byte, 12)
	copy(buf, "abcdefg")
	CStr(unsafe.String(&buf[0], 7)).encode(buf)
	assert.Equal(t, []byte("abcdefg\x00\x00\x00\x00\x00"), buf)

	copy(buf[UnitSize:], "payload!")
	Opaque(buf[UnitSize:]).encode(buf)
	assert.Equal(t, []byte("payload!"), Field{ct: makeCT(1, TypeOpaque), data: buf}.Opaque())
	assert.Equal(t, uint16(3), getU16(buf, 0))
}

func TestEraseIgnoresUnstorableTags(t *testing.T) {
	b := newBuilder(t, 2, 8)
	require.NoError(t, b.InsertUint32(1, 1))
	assert.Zero(t, b.Erase(TagLimit+1, MaskAny))
	assert.Zero(t, b.Erase(math.MaxUint16, MaskAny))
	assert.Equal(t, 1, b.Len())
}
