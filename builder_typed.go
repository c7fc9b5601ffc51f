package ptuple

import "time"

// Typed shorthands for Upsert and Insert.

func (b *Builder) UpsertNull(tag uint16) error {
	return b.Upsert(tag, Null())
}

func (b *Builder) UpsertUint16(tag uint16, v uint16) error {
	return b.Upsert(tag, Uint16(v))
}

func (b *Builder) UpsertUint32(tag uint16, v uint32) error {
	return b.Upsert(tag, Uint32(v))
}

func (b *Builder) UpsertUint64(tag uint16, v uint64) error {
	return b.Upsert(tag, Uint64(v))
}

func (b *Builder) UpsertInt32(tag uint16, v int32) error {
	return b.Upsert(tag, Int32(v))
}

func (b *Builder) UpsertInt64(tag uint16, v int64) error {
	return b.Upsert(tag, Int64(v))
}

func (b *Builder) UpsertFloat32(tag uint16, v float32) error {
	return b.Upsert(tag, Float32(v))
}

func (b *Builder) UpsertFloat64(tag uint16, v float64) error {
	return b.Upsert(tag, Float64(v))
}

func (b *Builder) UpsertDatetime(tag uint16, v time.Time) error {
	return b.Upsert(tag, Datetime(v))
}

func (b *Builder) UpsertCStr(tag uint16, v string) error {
	return b.Upsert(tag, CStr(v))
}

func (b *Builder) UpsertOpaque(tag uint16, v []byte) error {
	return b.Upsert(tag, Opaque(v))
}

func (b *Builder) UpsertNested(tag uint16, v Tuple) error {
	return b.Upsert(tag, Nested(v))
}

func (b *Builder) InsertNull(tag uint16) error {
	return b.Insert(tag, Null())
}

func (b *Builder) InsertUint16(tag uint16, v uint16) error {
	return b.Insert(tag, Uint16(v))
}

func (b *Builder) InsertUint32(tag uint16, v uint32) error {
	return b.Insert(tag, Uint32(v))
}

func (b *Builder) InsertUint64(tag uint16, v uint64) error {
	return b.Insert(tag, Uint64(v))
}

func (b *Builder) InsertInt32(tag uint16, v int32) error {
	return b.Insert(tag, Int32(v))
}

func (b *Builder) InsertInt64(tag uint16, v int64) error {
	return b.Insert(tag, Int64(v))
}

func (b *Builder) InsertFloat32(tag uint16, v float32) error {
	return b.Insert(tag, Float32(v))
}

func (b *Builder) InsertFloat64(tag uint16, v float64) error {
	return b.Insert(tag, Float64(v))
}

func (b *Builder) InsertDatetime(tag uint16, v time.Time) error {
	return b.Insert(tag, Datetime(v))
}

func (b *Builder) InsertCStr(tag uint16, v string) error {
	return b.Insert(tag, CStr(v))
}

func (b *Builder) InsertOpaque(tag uint16, v []byte) error {
	return b.Insert(tag, Opaque(v))
}

func (b *Builder) InsertNested(tag uint16, v Tuple) error {
	return b.Insert(tag, Nested(v))
}
