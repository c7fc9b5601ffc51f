package ptuple

// Tuple is a frozen, read-only tuple: [brutto u16 | items u16], the
// directory, then the payload. The bytes are the serialized form; a nil
// or empty Tuple is the empty tuple.
//
// A Tuple from Builder.TakeNoShrink aliases the builder's buffer and is
// only meaningful until the builder is mutated again.
type Tuple []byte

func (t Tuple) items() int {
	if len(t) < UnitSize {
		return 0
	}
	n := int(getU16(t, 2))
	return min(n, len(t)/UnitSize-1)
}

// Len returns the number of fields.
func (t Tuple) Len() int { return t.items() }

// Field returns the field at cursor i, or the zero Field when i is out of
// range.
func (t Tuple) Field(i int) Field {
	n := t.items()
	if i < 0 || i >= n {
		return Field{}
	}
	ct, off := readDesc(t, n-i)
	return makeField(ct, off, t[(1+n)*UnitSize:])
}

// Size returns the serialized size in bytes.
func (t Tuple) Size() int { return len(t) }

// Clone returns a copy that does not alias t.
func (t Tuple) Clone() Tuple {
	if t == nil {
		return nil
	}
	return append(Tuple(make([]byte, 0, len(t))), t...)
}

// Junk returns the bytes of payload no field references.
func (t Tuple) Junk() int {
	n := t.items()
	if len(t) < UnitSize {
		return 0
	}
	return len(t) - (1+n)*UnitSize - liveBytes(t, 1, 1+n, t[(1+n)*UnitSize:])
}

// liveBytes sums the payload of the descriptors in units [from, to) of b.
func liveBytes(b []byte, from, to int, pay []byte) int {
	live := 0
	for u := from; u < to; u++ {
		ct, off := readDesc(b, u)
		live += makeField(ct, off, pay).Size()
	}
	return live
}
