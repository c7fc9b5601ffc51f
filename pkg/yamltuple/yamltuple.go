// Package yamltuple renders tuples as YAML and builds tuples from it.
//
// A tuple is a sequence of fields in cursor order:
//
//	- tag: 1
//	  type: cstr
//	  value: hello
//	- tag: 2
//	  type: uint32[]
//	  value: [1, 2, 3]
//
// Opaque bytes are base64, the 96 to 256 bit types are hex, datetimes are
// RFC 3339 and nested tuples are nested sequences of fields.
package yamltuple

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rawbytedev/ptuple"
)

// Field is the YAML form of one field.
type Field struct {
	Tag   uint16    `yaml:"tag"`
	Type  string    `yaml:"type"`
	Value yaml.Node `yaml:"value"`
}

// Marshal renders every field of d.
func Marshal(d ptuple.Directory) ([]byte, error) {
	docs, err := Fields(d)
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(docs)
}

// Fields converts every field of d to its YAML form.
func Fields(d ptuple.Directory) ([]Field, error) {
	out := make([]Field, 0, d.Len())
	for i, f := range ptuple.Fields(d, ptuple.All()) {
		v, err := plain(f)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		doc := Field{Tag: f.Tag(), Type: f.Type().String()}
		if err := doc.Value.Encode(v); err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		out = append(out, doc)
	}
	return out, nil
}

// plain returns the value of f as something yaml can encode.
func plain(f ptuple.Field) (any, error) {
	switch t := f.Type(); t {
	case ptuple.TypeNull:
		return nil, nil
	case ptuple.TypeUint16:
		return f.Uint16(), nil
	case ptuple.TypeInt32:
		return f.Int32(), nil
	case ptuple.TypeUint32:
		return f.Uint32(), nil
	case ptuple.TypeFloat32:
		return f.Float32(), nil
	case ptuple.TypeInt64:
		return f.Int64(), nil
	case ptuple.TypeUint64:
		return f.Uint64(), nil
	case ptuple.TypeFloat64:
		return f.Float64(), nil
	case ptuple.TypeDatetime:
		return f.Datetime().Format(time.RFC3339Nano), nil
	case ptuple.Type96:
		b := f.Bits96()
		return hex.EncodeToString(b[:]), nil
	case ptuple.Type128:
		b := f.Bits128()
		return hex.EncodeToString(b[:]), nil
	case ptuple.Type160:
		b := f.Bits160()
		return hex.EncodeToString(b[:]), nil
	case ptuple.Type256:
		b := f.Bits256()
		return hex.EncodeToString(b[:]), nil
	case ptuple.TypeCStr:
		return f.CStr(), nil
	case ptuple.TypeOpaque:
		return base64.StdEncoding.EncodeToString(f.Opaque()), nil
	case ptuple.TypeNested:
		return Fields(f.Nested())
	case ptuple.TypeUint16 | ptuple.TypeArray:
		return f.Uint16Array(), nil
	case ptuple.TypeInt32 | ptuple.TypeArray:
		return f.Int32Array(), nil
	case ptuple.TypeUint32 | ptuple.TypeArray:
		return f.Uint32Array(), nil
	case ptuple.TypeFloat32 | ptuple.TypeArray:
		return f.Float32Array(), nil
	case ptuple.TypeInt64 | ptuple.TypeArray:
		return f.Int64Array(), nil
	case ptuple.TypeUint64 | ptuple.TypeArray:
		return f.Uint64Array(), nil
	case ptuple.TypeFloat64 | ptuple.TypeArray:
		return f.Float64Array(), nil
	case ptuple.TypeCStr | ptuple.TypeArray:
		return f.CStrArray(), nil
	case ptuple.TypeOpaque | ptuple.TypeArray:
		blobs := f.OpaqueArray()
		out := make([]string, len(blobs))
		for i, b := range blobs {
			out[i] = base64.StdEncoding.EncodeToString(b)
		}
		return out, nil
	case ptuple.TypeNested | ptuple.TypeArray:
		tuples := f.NestedArray()
		out := make([][]Field, len(tuples))
		for i, sub := range tuples {
			docs, err := Fields(sub)
			if err != nil {
				return nil, err
			}
			out[i] = docs
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: no YAML form for %s", ptuple.ErrInvalidValue, t)
	}
}
