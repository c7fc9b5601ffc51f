package wire

import (
	"bufio"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/rawbytedev/ptuple"
	"github.com/rawbytedev/ptuple/internal/common"
)

// Encode appends the frame of t to dst. A compressed body that does not
// pay for itself is stored uncompressed instead. t is validated first.
func Encode(dst []byte, t ptuple.Tuple, c Compression) ([]byte, error) {
	if !c.valid() {
		return dst, ErrUnknownCompression
	}
	if err := t.Check(); err != nil {
		return dst, err
	}
	start := len(dst)
	dst = append(dst, magic0, magic1, KindTuple, 0)
	dst = common.WriteVarUintTo(dst, uint64(len(t)))

	body := []byte(t)
	if c != CompressionNone && len(t) > 0 {
		out, ok, err := compress(nil, t, c)
		if err != nil {
			return dst[:start], err
		}
		if ok {
			body = out
			dst[start+3] = byte(c)
		}
	}
	dst = common.WriteVarUintTo(dst, uint64(len(body)))
	dst = append(dst, body...)

	crc := crc32.ChecksumIEEE(dst[start+2:])
	return binary.LittleEndian.AppendUint32(dst, crc), nil
}

// Writer writes a stream of frames.
type Writer struct {
	w       *bufio.Writer
	c       Compression
	scratch []byte
}

func NewWriter(w io.Writer, c Compression) *Writer {
	return &Writer{w: bufio.NewWriter(w), c: c}
}

// Write frames t and buffers it.
func (w *Writer) Write(t ptuple.Tuple) error {
	frame, err := Encode(w.scratch[:0], t, w.c)
	if err != nil {
		return err
	}
	w.scratch = frame
	_, err = w.w.Write(frame)
	return err
}

// Flush writes any buffered frames to the underlying writer.
func (w *Writer) Flush() error { return w.w.Flush() }
