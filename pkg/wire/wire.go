// Package wire frames tuples for storage and transport.
//
// A frame is
//
//	'P' 'T' | kind | flags | uvarint raw length | uvarint body length | body | crc32
//
// where body is the serialized tuple, compressed as flags say, and the
// little-endian IEEE crc32 covers everything from kind to the end of body.
package wire

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rawbytedev/ptuple"
)

const (
	magic0 = 'P'
	magic1 = 'T'

	// KindTuple marks a frame carrying one tuple.
	KindTuple byte = 1

	compressionMask = 0x03

	preambleSize = 4
	crcSize      = 4
	// MaxHeaderSize bounds the bytes before the body.
	MaxHeaderSize = preambleSize + 2*3
)

var (
	ErrBadMagic           = errors.New("not a tuple frame")
	ErrChecksum           = errors.New("crc mismatch")
	ErrTruncated          = errors.New("frame truncated")
	ErrUnknownCompression = errors.New("unknown compression")
	ErrMalformed          = errors.New("malformed frame")
)

// Compression selects how a frame body is stored.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionLZ4
	CompressionZstd
)

var compressionNames = [...]string{
	CompressionNone: "none",
	CompressionLZ4:  "lz4",
	CompressionZstd: "zstd",
}

func (c Compression) String() string {
	if int(c) < len(compressionNames) {
		return compressionNames[c]
	}
	return fmt.Sprintf("compression(%d)", uint8(c))
}

// ParseCompression accepts the names printed by Compression.String.
func ParseCompression(s string) (Compression, error) {
	for i, name := range compressionNames {
		if strings.EqualFold(name, s) {
			return Compression(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCompression, s)
}

func (c Compression) valid() bool { return int(c) < len(compressionNames) }

// maxRaw is the largest tuple a frame may carry.
const maxRaw = ptuple.MaxTupleBytes
