package wire

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/rawbytedev/ptuple"
	"github.com/rawbytedev/ptuple/internal/common"
)

type header struct {
	c       Compression
	rawLen  int
	bodyLen int
	size    int // bytes before the body
}

func parseHeader(b []byte) (header, error) {
	var h header
	if len(b) < preambleSize {
		return h, ErrTruncated
	}
	if b[0] != magic0 || b[1] != magic1 {
		return h, ErrBadMagic
	}
	if b[2] != KindTuple {
		return h, fmt.Errorf("%w: kind %d", ErrMalformed, b[2])
	}
	h.c = Compression(b[3] & compressionMask)
	if b[3]&^compressionMask != 0 || !h.c.valid() {
		return h, fmt.Errorf("%w: flags %#x", ErrUnknownCompression, b[3])
	}
	raw, n := common.ReadVarUint(b[preambleSize:])
	if n == 0 {
		return h, ErrTruncated
	}
	body, m := common.ReadVarUint(b[preambleSize+n:])
	if m == 0 {
		return h, ErrTruncated
	}
	if raw > maxRaw || body > maxRaw || (h.c == CompressionNone && raw != body) {
		return h, fmt.Errorf("%w: raw %d, body %d", ErrMalformed, raw, body)
	}
	h.rawLen, h.bodyLen, h.size = int(raw), int(body), preambleSize+n+m
	return h, nil
}

// Decode parses the frame at the start of frame and returns its tuple and
// the number of bytes consumed. An uncompressed tuple aliases frame.
func Decode(frame []byte) (ptuple.Tuple, int, error) {
	h, err := parseHeader(frame)
	if err != nil {
		return nil, 0, err
	}
	end := h.size + h.bodyLen
	if len(frame) < end+crcSize {
		return nil, 0, ErrTruncated
	}
	want := binary.LittleEndian.Uint32(frame[end:])
	if crc32.ChecksumIEEE(frame[2:end]) != want {
		return nil, 0, ErrChecksum
	}
	body := frame[h.size:end:end]
	if h.c != CompressionNone {
		if body, err = decompress(body, h.rawLen, h.c); err != nil {
			return nil, 0, err
		}
	}
	t := ptuple.Tuple(body)
	if err := t.Check(); err != nil {
		return nil, 0, err
	}
	return t, end + crcSize, nil
}

// Reader reads a stream of frames.
type Reader struct {
	r       *bufio.Reader
	scratch []byte
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next returns the next tuple. It returns io.EOF at a clean end of stream
// and ErrTruncated when the stream ends inside a frame. The tuple is a
// fresh copy the caller may keep.
func (r *Reader) Next() (ptuple.Tuple, error) {
	head := r.scratch[:0]
	var pre [preambleSize]byte
	if _, err := io.ReadFull(r.r, pre[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrTruncated
		}
		return nil, err
	}
	head = append(head, pre[:]...)
	for range 2 {
		v, err := binary.ReadUvarint(r.r)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, ErrTruncated
			}
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		head = common.WriteVarUintTo(head, v)
	}
	h, err := parseHeader(head)
	if err != nil {
		return nil, err
	}
	frame := append(head, make([]byte, h.bodyLen+crcSize)...)
	if _, err := io.ReadFull(r.r, frame[h.size:]); err != nil {
		return nil, ErrTruncated
	}
	r.scratch = frame
	t, _, err := Decode(frame)
	if err != nil {
		return nil, err
	}
	return t.Clone(), nil
}
