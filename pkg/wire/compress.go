package wire

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	return enc, nil
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	dec, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(uint64(maxRaw)))
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return dec, nil
}

// compress appends the compressed form of raw to dst. ok is false when
// compression does not shrink raw by at least a tenth, in which case the
// caller stores it as is.
func compress(dst, raw []byte, c Compression) (out []byte, ok bool, err error) {
	switch c {
	case CompressionLZ4:
		start := len(dst)
		dst = append(dst, make([]byte, lz4.CompressBlockBound(len(raw)))...)
		n, err := lz4.CompressBlock(raw, dst[start:], nil)
		if err != nil {
			return dst[:start], false, err
		}
		out = dst[:start+n]
		return out, n > 0 && n*10 <= len(raw)*9, nil
	case CompressionZstd:
		enc, err := getZstdEncoder()
		if err != nil {
			return dst, false, err
		}
		defer zstdEncoderPool.Put(enc)
		start := len(dst)
		out = enc.EncodeAll(raw, dst)
		n := len(out) - start
		return out, n*10 <= len(raw)*9, nil
	default:
		return dst, false, fmt.Errorf("%w: %s", ErrUnknownCompression, c)
	}
}

// decompress expands body into a new slice of exactly rawLen bytes.
func decompress(body []byte, rawLen int, c Compression) ([]byte, error) {
	raw := make([]byte, rawLen)
	switch c {
	case CompressionLZ4:
		n, err := lz4.UncompressBlock(body, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %v", ErrMalformed, err)
		}
		if n != rawLen {
			return nil, fmt.Errorf("%w: lz4 produced %d bytes, want %d", ErrMalformed, n, rawLen)
		}
		return raw, nil
	case CompressionZstd:
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, err
		}
		defer zstdDecoderPool.Put(dec)
		out, err := dec.DecodeAll(body, raw[:0])
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrMalformed, err)
		}
		if len(out) != rawLen {
			return nil, fmt.Errorf("%w: zstd produced %d bytes, want %d", ErrMalformed, len(out), rawLen)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCompression, c)
	}
}
