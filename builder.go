package ptuple

import (
	"cmp"
	"fmt"
	"slices"

	"go.uber.org/zap"
)

// Builder mutates a tuple in place inside a caller-owned buffer. It never
// allocates or resizes the buffer. A Builder is not safe for concurrent use.
type Builder struct {
	buf  []byte
	opts Options
	log  *zap.Logger
}

// Init prepares buf to hold up to maxFields fields with default options.
func Init(buf []byte, maxFields int) (*Builder, error) {
	return NewBuilder(buf, maxFields, Options{})
}

// NewBuilder writes an empty tuple with room for maxFields directory
// slots into buf. The remaining whole units of buf are payload space.
func NewBuilder(buf []byte, maxFields int, opts Options) (*Builder, error) {
	if maxFields < 0 || maxFields > MaxFields {
		return nil, fmt.Errorf("%w: %d fields, limit %d", ErrInvalidCapacity, maxFields, MaxFields)
	}
	if need := BufferSize(maxFields, 0); len(buf) < need {
		return nil, fmt.Errorf("%w: %d bytes, need %d for %d fields",
			ErrInvalidCapacity, len(buf), need, maxFields)
	}
	pivot := dirBase + maxFields
	end := min(len(buf)/UnitSize, pivot+MaxTupleUnits-1-maxFields)

	b := &Builder{buf: buf, opts: opts, log: opts.logger()}
	clear(buf[:end*UnitSize])
	putU32(buf, hdrMagic, magicRW)
	b.set(hdrPivot, pivot)
	b.set(hdrEnd, end)
	b.set(hdrHead, pivot)
	b.set(hdrTail, pivot)
	b.sync()
	return b, nil
}

// Attach reopens a buffer previously prepared by NewBuilder. The buffer is
// validated first.
func Attach(buf []byte, opts Options) (*Builder, error) {
	b := &Builder{buf: buf, opts: opts, log: opts.logger()}
	if err := b.Check(); err != nil {
		return nil, err
	}
	return b, nil
}

// Fetch builds a mutable copy of t in buf with room for moreItems fields
// beyond those t already has.
func Fetch(t Tuple, buf []byte, moreItems int, opts Options) (*Builder, error) {
	if err := t.Check(); err != nil {
		return nil, err
	}
	items := t.Len()
	var pay []byte
	if len(t) > 0 {
		pay = t[(1+items)*UnitSize:]
	}
	if moreItems < 0 || items+moreItems > MaxFields {
		return nil, fmt.Errorf("%w: %d fields", ErrInvalidCapacity, items+moreItems)
	}
	if 1+items+moreItems+len(pay)/UnitSize > MaxTupleUnits {
		return nil, fmt.Errorf("%w: %d more fields over %d bytes", ErrCapacityExceeded, moreItems, len(t))
	}
	if need := BufferSize(items+moreItems, len(pay)); len(buf) < need {
		return nil, fmt.Errorf("%w: %d bytes, need %d", ErrCapacityExceeded, len(buf), need)
	}
	b, err := NewBuilder(buf, items+moreItems, opts)
	if err != nil {
		return nil, err
	}
	pivot := b.pivot()
	payUnits := len(pay) / UnitSize
	head := pivot - items
	copy(buf[head*UnitSize:], t[UnitSize:(1+items)*UnitSize])
	copy(buf[pivot*UnitSize:], pay)
	b.set(hdrHead, head)
	b.set(hdrTail, pivot+payUnits)
	b.set(hdrJunk, payUnits-b.liveUnits())
	b.sync()
	b.log.Debug("tuple fetched",
		zap.Int("fields", items),
		zap.Int("bytes", len(t)),
		zap.Int("junk", b.JunkSpace()))
	return b, nil
}

func (b *Builder) get(hdr int) int { return int(getU32(b.buf, hdr)) }
func (b *Builder) set(hdr, v int)  { putU32(b.buf, hdr, uint32(v)) }
func (b *Builder) junk() int       { return b.get(hdrJunk) }
func (b *Builder) head() int       { return b.get(hdrHead) }
func (b *Builder) pivot() int      { return b.get(hdrPivot) }
func (b *Builder) tail() int       { return b.get(hdrTail) }
func (b *Builder) end() int        { return b.get(hdrEnd) }
func (b *Builder) slot(i int) int  { return b.pivot() - 1 - i }

func (b *Builder) payload() []byte {
	return b.buf[b.pivot()*UnitSize : b.tail()*UnitSize]
}

func (b *Builder) desc(i int) (ct, off uint16) {
	return readDesc(b.buf, b.slot(i))
}

// sync rewrites the frozen header that precedes the directory.
func (b *Builder) sync() {
	head := b.head()
	writeROHeader(b.buf, head-1, b.tail()-head+1, b.pivot()-head)
}

func (b *Builder) reset() {
	pivot := b.pivot()
	clear(b.buf[(b.head()-1)*UnitSize : b.tail()*UnitSize])
	b.set(hdrJunk, 0)
	b.set(hdrHead, pivot)
	b.set(hdrTail, pivot)
	b.sync()
}

// Len returns the number of fields.
func (b *Builder) Len() int { return b.pivot() - b.head() }

// MaxFields returns the directory capacity fixed at initialization.
func (b *Builder) MaxFields() int { return b.pivot() - dirBase }

// Field returns the field at cursor i, or the zero Field when i is out of
// range.
func (b *Builder) Field(i int) Field {
	if i < 0 || i >= b.Len() {
		return Field{}
	}
	ct, off := b.desc(i)
	return makeField(ct, off, b.payload())
}

// Clear removes every field. The directory capacity is kept.
func (b *Builder) Clear() { b.reset() }

// Insert appends a field even when one with the same tag and type exists.
// v may be built from bytes of this same builder, e.g. Field.Opaque.
func (b *Builder) Insert(tag uint16, v Value) error {
	if err := checkValue(tag, v); err != nil {
		return err
	}
	v = v.detached(b.buf)
	if _, err := b.reserve(1, v.units, -1); err != nil {
		return err
	}
	b.append(tag, v)
	return nil
}

// Upsert replaces the value of the first field with the same tag and type,
// or appends a new field when there is none.
func (b *Builder) Upsert(tag uint16, v Value) error {
	if err := checkValue(tag, v); err != nil {
		return err
	}
	v = v.detached(b.buf)
	end := b.Len()
	i := First(b, 0, end, ByType(tag, MaskOf(v.typ)))
	if i == end {
		if _, err := b.reserve(1, v.units, -1); err != nil {
			return err
		}
		b.append(tag, v)
		return nil
	}
	return b.replace(i, v)
}

func checkValue(tag uint16, v Value) error {
	if err := checkTag(tag); err != nil {
		return err
	}
	if v.err != nil {
		return v.err
	}
	if !v.typ.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidValue, v.typ)
	}
	return nil
}

// append assumes reserve succeeded.
func (b *Builder) append(tag uint16, v Value) {
	off := v.inline
	if !v.typ.inline() {
		pivot, tail := b.pivot(), b.tail()
		v.encode(b.buf[tail*UnitSize : (tail+v.units)*UnitSize])
		off = uint16(tail - pivot)
		b.set(hdrTail, tail+v.units)
	}
	head := b.head() - 1
	writeDesc(b.buf, head, makeCT(tag, v.typ), off)
	b.set(hdrHead, head)
	b.sync()
}

func (b *Builder) replace(i int, v Value) error {
	u := b.slot(i)
	ct, off := readDesc(b.buf, u)
	if v.typ.inline() {
		writeDesc(b.buf, u, ct, v.inline)
		return nil
	}
	old := b.Field(i).Size() / UnitSize
	pivot := b.pivot()
	if v.units <= old {
		p := (pivot + int(off)) * UnitSize
		v.encode(b.buf[p : p+old*UnitSize])
		b.set(hdrJunk, b.junk()+old-v.units)
		return nil
	}
	dropped, err := b.reserve(0, v.units, i)
	if err != nil {
		return err
	}
	if !dropped {
		b.set(hdrJunk, b.junk()+old)
	}
	tail := b.tail()
	v.encode(b.buf[tail*UnitSize : (tail+v.units)*UnitSize])
	writeDesc(b.buf, u, ct, uint16(tail-pivot))
	b.set(hdrTail, tail+v.units)
	b.sync()
	return nil
}

// reserve makes room for slots directory entries and units of payload,
// compacting when junk would cover the shortfall. The payload of field
// skip, if any, is discarded by such a compaction; dropped reports it.
// On error nothing has been modified.
func (b *Builder) reserve(slots, units, skip int) (dropped bool, err error) {
	if free := b.head() - dirBase; slots > free {
		b.log.Debug("tuple directory full", zap.Int("max_fields", b.MaxFields()))
		return false, fmt.Errorf("%w: directory full at %d fields", ErrCapacityExceeded, b.MaxFields())
	}
	free := b.end() - b.tail()
	if units <= free {
		return false, nil
	}
	reclaim := b.junk()
	if skip >= 0 {
		reclaim += b.Field(skip).Size() / UnitSize
	}
	if b.opts.NoAutoShrink || units > free+reclaim {
		b.log.Debug("tuple payload full",
			zap.Int("need", units*UnitSize),
			zap.Int("free", free*UnitSize),
			zap.Int("junk", b.JunkSpace()))
		return false, fmt.Errorf("%w: need %d bytes, %d free, %d junk",
			ErrCapacityExceeded, units*UnitSize, free*UnitSize, b.JunkSpace())
	}
	b.shrink(skip)
	return skip >= 0, nil
}

// Erase removes every field with the given tag (TagLimit for any) whose
// type is in mask and returns how many were removed. Their directory slots
// are freed at once; their payload becomes junk until the next Shrink.
// Tags above TagLimit are never stored, so they match nothing.
func (b *Builder) Erase(tag uint16, mask TypeMask) int {
	f := ByType(tag, mask)
	n := 0
	for i := b.Len() - 1; i >= 0; i-- {
		if f.Match(b.Field(i)) {
			b.remove(i)
			n++
		}
	}
	if n > 0 {
		b.sync()
	}
	return n
}

// EraseAt removes the field at cursor i.
func (b *Builder) EraseAt(i int) error {
	if i < 0 || i >= b.Len() {
		return fmt.Errorf("%w: cursor %d of %d", ErrNoField, i, b.Len())
	}
	b.remove(i)
	b.sync()
	return nil
}

// remove drops the slot of field i, shifting newer slots toward the
// pivot so the remaining fields keep their relative order.
func (b *Builder) remove(i int) {
	head, u := b.head(), b.slot(i)
	b.set(hdrJunk, b.junk()+b.Field(i).Size()/UnitSize)
	copy(b.buf[(head+1)*UnitSize:], b.buf[head*UnitSize:u*UnitSize])
	clear(b.buf[(head-1)*UnitSize : (head+1)*UnitSize])
	b.set(hdrHead, head+1)
}

type span struct {
	u       int
	ct, off uint16
	units   int
}

// spans lists the payload bodies in payload order, leaving out field skip.
func (b *Builder) spans(skip int) []span {
	out := make([]span, 0, b.Len())
	for i := range b.Len() {
		if i == skip {
			continue
		}
		f := b.Field(i)
		if f.data == nil {
			continue
		}
		out = append(out, span{u: b.slot(i), ct: f.ct, off: f.off, units: f.Size() / UnitSize})
	}
	slices.SortFunc(out, func(x, y span) int { return cmp.Compare(x.off, y.off) })
	return out
}

func (b *Builder) liveUnits() int {
	return liveBytes(b.buf, b.head(), b.pivot(), b.payload()) / UnitSize
}

// Shrink compacts the payload in place, reclaiming all junk.
func (b *Builder) Shrink() {
	if b.junk() == 0 {
		return
	}
	b.shrink(-1)
}

func (b *Builder) shrink(skip int) {
	pivot, tail := b.pivot(), b.tail()
	reclaimed := b.junk()
	pos := 0
	for _, s := range b.spans(skip) {
		if int(s.off) != pos {
			src := (pivot + int(s.off)) * UnitSize
			copy(b.buf[(pivot+pos)*UnitSize:], b.buf[src:src+s.units*UnitSize])
			writeDesc(b.buf, s.u, s.ct, uint16(pos))
		}
		pos += s.units
	}
	clear(b.buf[(pivot+pos)*UnitSize : tail*UnitSize])
	b.set(hdrTail, pivot+pos)
	b.set(hdrJunk, 0)
	b.sync()
	b.log.Debug("tuple shrunk",
		zap.Int("reclaimed", (tail-pivot-pos)*UnitSize),
		zap.Int("junk", reclaimed*UnitSize))
}

// TakeNoShrink returns a read-only view of the current bytes, junk
// included, without copying. The view aliases the buffer.
func (b *Builder) TakeNoShrink() Tuple {
	from, to := (b.head()-1)*UnitSize, b.tail()*UnitSize
	return Tuple(b.buf[from:to:to])
}

// Take compacts the buffer in place and returns a view of it.
func (b *Builder) Take() Tuple {
	b.Shrink()
	return b.TakeNoShrink()
}

// TakeCompact writes a dense copy of the tuple into dst, allocating when
// dst is nil. Field order is preserved and the builder is left untouched.
func (b *Builder) TakeCompact(dst []byte) (Tuple, error) {
	items := b.Len()
	spans := b.spans(-1)
	n := 1 + items
	for _, s := range spans {
		n += s.units
	}
	size := n * UnitSize
	if dst == nil {
		dst = make([]byte, size)
	}
	if len(dst) < size {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrCapacityExceeded, size, len(dst))
	}
	out := dst[:size:size]
	head, pivot := b.head(), b.pivot()
	writeROHeader(out, 0, n, items)
	copy(out[UnitSize:], b.buf[head*UnitSize:pivot*UnitSize])
	base := 1 + items
	pos := 0
	for _, s := range spans {
		src := (pivot + int(s.off)) * UnitSize
		copy(out[(base+pos)*UnitSize:], b.buf[src:src+s.units*UnitSize])
		writeDesc(out, s.u-head+1, s.ct, uint16(pos))
		pos += s.units
	}
	return Tuple(out), nil
}

// Bytes returns the whole buffer, headers included. Attach reopens it.
func (b *Builder) Bytes() []byte { return b.buf[:b.end()*UnitSize] }
