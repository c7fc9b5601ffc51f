package ptuple

import (
	"encoding/binary"

	"github.com/rawbytedev/ptuple/internal/common"
)

// Layout of a mutable buffer, in 4-byte units:
//
//	[rw header][ro header][free slots | directory][payload | free data]
//	 0          head-1     dirBase      head       pivot     tail      end
//
// The directory grows down from the pivot and the payload grows up from
// it. The unit at head-1 always holds a current frozen header, so
// buf[head-1:tail] is a valid Tuple at any moment.
//
// A frozen Tuple is [brutto u16 | items u16][directory][payload], where
// brutto counts every unit including the header.
//
// A descriptor is [ct u16 | off u16] with ct = tag<<5 | type. off is the
// inline value for uint16, zero for null, else the payload offset in
// units from the first unit after the directory.
const (
	UnitSize = common.UnitSize

	tagBits = 16 - typeBits

	// TagLimit is one past the largest storable tag. Passing it as the
	// tag of a filter matches every tag.
	TagLimit = 1<<tagBits - 1
	MaxTag   = TagLimit - 1

	MaxTupleUnits = 1<<16 - 1
	MaxTupleBytes = MaxTupleUnits * UnitSize
	MaxFields     = 1<<15 - 1

	// maxBodyUnits bounds any variable payload body (brutto is a u16).
	maxBodyUnits = 1<<16 - 1

	magicRW = 0x31575450 // "PTW1"

	hdrMagic = 0
	hdrJunk  = 4
	hdrHead  = 8
	hdrPivot = 12
	hdrTail  = 16
	hdrEnd   = 20

	rwHeaderUnits = 6
	dirBase       = rwHeaderUnits + 1

	// MinBufferSize hosts an empty tuple with no room for fields.
	MinBufferSize = dirBase * UnitSize
)

// BufferSize returns the buffer length that holds up to fields slots and
// dataBytes of payload.
func BufferSize(fields, dataBytes int) int {
	return (dirBase + fields + common.Units(dataBytes)) * UnitSize
}

func getU16(b []byte, off int) uint16 { return binary.LittleEndian.Uint16(b[off:]) }
func putU16(b []byte, off int, v uint16) {
	binary.LittleEndian.PutUint16(b[off:], v)
}
func getU32(b []byte, off int) uint32 { return binary.LittleEndian.Uint32(b[off:]) }
func putU32(b []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(b[off:], v)
}
func getU64(b []byte, off int) uint64 { return binary.LittleEndian.Uint64(b[off:]) }
func putU64(b []byte, off int, v uint64) {
	binary.LittleEndian.PutUint64(b[off:], v)
}

func makeCT(tag uint16, t Type) uint16 { return tag<<typeBits | uint16(t) }
func ctTag(ct uint16) uint16           { return ct >> typeBits }
func ctType(ct uint16) Type            { return Type(ct & typeMask) }

// readDesc decodes the descriptor stored at unit u of b.
func readDesc(b []byte, u int) (ct, off uint16) {
	p := u * UnitSize
	return getU16(b, p), getU16(b, p+2)
}

func writeDesc(b []byte, u int, ct, off uint16) {
	p := u * UnitSize
	putU16(b, p, ct)
	putU16(b, p+2, off)
}

// writeROHeader stores a frozen header at unit u of b.
func writeROHeader(b []byte, u, brutto, items int) {
	p := u * UnitSize
	putU16(b, p, uint16(brutto))
	putU16(b, p+2, uint16(items))
}

func checkTag(tag uint16) error {
	if tag > MaxTag {
		return tagError(tag)
	}
	return nil
}
