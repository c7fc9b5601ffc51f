package ptuple

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/rawbytedev/ptuple/internal/common"
)

// Check validates the buffer: header ordering and counters, the frozen
// header, every descriptor, every payload body, and the space identity.
// It returns nil or an error wrapping ErrCorrupt that describes the first
// violation. Check never modifies the buffer.
func (b *Builder) Check() error {
	buf := b.buf
	if len(buf) < MinBufferSize {
		return corrupt("buffer of %d bytes is shorter than the header", len(buf))
	}
	if m := getU32(buf, hdrMagic); m != magicRW {
		return corrupt("bad magic %#x", m)
	}
	junk, head, pivot, tail, end := b.junk(), b.head(), b.pivot(), b.tail(), b.end()
	if !(dirBase <= head && head <= pivot && pivot <= tail && tail <= end && end*UnitSize <= len(buf)) {
		return corrupt("header out of order: head %d, pivot %d, tail %d, end %d, buffer %d units",
			head, pivot, tail, end, len(buf)/UnitSize)
	}
	if end-dirBase+1 > MaxTupleUnits {
		return corrupt("%d units exceed the tuple limit", end-dirBase+1)
	}
	if junk > tail-pivot {
		return corrupt("junk %d exceeds payload %d", junk, tail-pivot)
	}
	brutto, items := readDesc(buf, head-1)
	if int(brutto) != tail-head+1 || int(items) != pivot-head {
		return corrupt("frozen header {%d, %d} disagrees with {%d, %d}",
			brutto, items, tail-head+1, pivot-head)
	}
	live, err := checkDirectory(buf, head, pivot, buf[pivot*UnitSize:tail*UnitSize])
	if err != nil {
		return err
	}
	if live+junk != tail-pivot {
		return corrupt("space identity broken: live %d + junk %d != payload %d units",
			live, junk, tail-pivot)
	}
	return nil
}

// Check validates a frozen tuple the same way Builder.Check validates a
// buffer. The empty Tuple is valid.
func (t Tuple) Check() error {
	if len(t) == 0 {
		return nil
	}
	if len(t)%UnitSize != 0 {
		return corrupt("length %d is not a whole number of units", len(t))
	}
	brutto, items := readDesc(t, 0)
	if int(brutto)*UnitSize != len(t) {
		return corrupt("header says %d units, have %d", brutto, len(t)/UnitSize)
	}
	if int(items) >= int(brutto) {
		return corrupt("%d fields do not fit in %d units", items, brutto)
	}
	n := 1 + int(items)
	_, err := checkDirectory(t, 1, n, t[n*UnitSize:])
	return err
}

// checkDirectory validates the descriptors in units [from, to) of b
// against the payload area pay and returns the live payload units.
func checkDirectory(b []byte, from, to int, pay []byte) (int, error) {
	units := len(pay) / UnitSize
	used := roaring.New()
	live := 0
	for u := from; u < to; u++ {
		ct, off := readDesc(b, u)
		t := ctType(ct)
		if !t.Valid() {
			return 0, corrupt("slot %d: type code %d", u-from, uint8(t))
		}
		if tag := ctTag(ct); tag >= TagLimit {
			return 0, corrupt("slot %d: tag %d out of range", u-from, tag)
		}
		if t.inline() {
			continue
		}
		if int(off) >= units {
			return 0, corrupt("slot %d: %s offset %d past payload of %d units", u-from, t, off, units)
		}
		n, ok := payloadUnits(t, pay[int(off)*UnitSize:])
		if !ok {
			return 0, corrupt("slot %d: %s body at %d runs out of bounds", u-from, t, off)
		}
		before := used.GetCardinality()
		used.AddRange(uint64(off), uint64(int(off)+n))
		if used.GetCardinality()-before != uint64(n) {
			return 0, corrupt("slot %d: %s body at %d overlaps another field", u-from, t, off)
		}
		body := pay[int(off)*UnitSize : (int(off)+n)*UnitSize]
		if err := checkBody(t, body); err != nil {
			return 0, fmt.Errorf("slot %d: %w", u-from, err)
		}
		live += n
	}
	return live, nil
}

func checkBody(t Type, body []byte) error {
	switch {
	case t.fixedUnits() > 0, t == TypeCStr:
		return nil
	case t == TypeOpaque:
		if n := int(getU16(body, 2)); 1+common.Units(n) != len(body)/UnitSize {
			return corrupt("opaque of %d bytes in %d units", n, len(body)/UnitSize)
		}
		return nil
	case t == TypeNested:
		return Tuple(body).Check()
	}
	base, count := t.Base(), int(getU16(body, 2))
	if w := base.elemWidth(); w > 0 {
		if 1+common.Units(count*w) != len(body)/UnitSize {
			return corrupt("%s of %d elements in %d units", t, count, len(body)/UnitSize)
		}
		return nil
	}
	var err error
	ok := walkElems(body, base, func(e []byte) {
		if err == nil {
			err = checkBody(base, e)
		}
	})
	if err != nil {
		return err
	}
	if !ok {
		return corrupt("%s elements disagree with count %d", t, count)
	}
	return nil
}
