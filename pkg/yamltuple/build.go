package yamltuple

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rawbytedev/ptuple"
)

type entry struct {
	tag uint16
	v   ptuple.Value
}

// Unmarshal inserts the fields described by data into b, in order and
// without replacing existing fields. It stops at the first field that
// fails; the fields before it stay inserted.
func Unmarshal(data []byte, b *ptuple.Builder) error {
	var docs []Field
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return err
	}
	entries, err := values(docs)
	if err != nil {
		return err
	}
	for i, e := range entries {
		if err := b.Insert(e.tag, e.v); err != nil {
			return fmt.Errorf("field %d: %w", i, err)
		}
	}
	return nil
}

// Build returns a dense tuple holding the fields described by data, in a
// buffer sized to fit them exactly.
func Build(data []byte) (ptuple.Tuple, error) {
	var docs []Field
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, err
	}
	return BuildFields(docs)
}

// BuildFields is Build for already decoded fields.
func BuildFields(docs []Field) (ptuple.Tuple, error) {
	entries, err := values(docs)
	if err != nil {
		return nil, err
	}
	size := 0
	for _, e := range entries {
		size += e.v.Size()
	}
	b, err := ptuple.Init(make([]byte, ptuple.BufferSize(len(entries), size)), len(entries))
	if err != nil {
		return nil, err
	}
	for i, e := range entries {
		if err := b.Insert(e.tag, e.v); err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
	}
	return b.Take(), nil
}

func values(docs []Field) ([]entry, error) {
	out := make([]entry, 0, len(docs))
	for i, d := range docs {
		t, err := ptuple.ParseType(d.Type)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		if d.Value.Kind == 0 && t != ptuple.TypeNull {
			return nil, fmt.Errorf("field %d: %w: %s without a value", i, ptuple.ErrInvalidValue, t)
		}
		v, err := value(t, &d.Value)
		if err == nil {
			err = v.Err()
		}
		if err != nil {
			return nil, fmt.Errorf("field %d (%d:%s): %w", i, d.Tag, t, err)
		}
		out = append(out, entry{tag: d.Tag, v: v})
	}
	return out, nil
}

// decode is node.Decode into a fresh T.
func decode[T any](node *yaml.Node) (T, error) {
	var x T
	err := node.Decode(&x)
	return x, err
}

func scalar[T any](node *yaml.Node, mk func(T) ptuple.Value) (ptuple.Value, error) {
	x, err := decode[T](node)
	if err != nil {
		return ptuple.Value{}, err
	}
	return mk(x), nil
}

func hexBits(node *yaml.Node, n int, mk func([]byte) ptuple.Value) (ptuple.Value, error) {
	s, err := decode[string](node)
	if err != nil {
		return ptuple.Value{}, err
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return ptuple.Value{}, err
	}
	if len(raw) != n {
		return ptuple.Value{}, fmt.Errorf("%w: want %d hex bytes, have %d", ptuple.ErrInvalidValue, n, len(raw))
	}
	return mk(raw), nil
}

func blob(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

func nested(node *yaml.Node) (ptuple.Tuple, error) {
	docs, err := decode[[]Field](node)
	if err != nil {
		return nil, err
	}
	return BuildFields(docs)
}

func value(t ptuple.Type, node *yaml.Node) (ptuple.Value, error) {
	switch t {
	case ptuple.TypeNull:
		return ptuple.Null(), nil
	case ptuple.TypeUint16:
		return scalar(node, ptuple.Uint16)
	case ptuple.TypeInt32:
		return scalar(node, ptuple.Int32)
	case ptuple.TypeUint32:
		return scalar(node, ptuple.Uint32)
	case ptuple.TypeFloat32:
		return scalar(node, ptuple.Float32)
	case ptuple.TypeInt64:
		return scalar(node, ptuple.Int64)
	case ptuple.TypeUint64:
		return scalar(node, ptuple.Uint64)
	case ptuple.TypeFloat64:
		return scalar(node, ptuple.Float64)
	case ptuple.TypeDatetime:
		s, err := decode[string](node)
		if err != nil {
			return ptuple.Value{}, err
		}
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return ptuple.Value{}, fmt.Errorf("%w: %v", ptuple.ErrInvalidValue, err)
		}
		return ptuple.Datetime(ts), nil
	case ptuple.Type96:
		return hexBits(node, 12, func(b []byte) ptuple.Value { return ptuple.Bits96([12]byte(b)) })
	case ptuple.Type128:
		return hexBits(node, 16, func(b []byte) ptuple.Value { return ptuple.Bits128([16]byte(b)) })
	case ptuple.Type160:
		return hexBits(node, 20, func(b []byte) ptuple.Value { return ptuple.Bits160([20]byte(b)) })
	case ptuple.Type256:
		return hexBits(node, 32, func(b []byte) ptuple.Value { return ptuple.Bits256([32]byte(b)) })
	case ptuple.TypeCStr:
		return scalar(node, ptuple.CStr)
	case ptuple.TypeOpaque:
		s, err := decode[string](node)
		if err != nil {
			return ptuple.Value{}, err
		}
		b, err := blob(s)
		if err != nil {
			return ptuple.Value{}, err
		}
		return ptuple.Opaque(b), nil
	case ptuple.TypeNested:
		sub, err := nested(node)
		if err != nil {
			return ptuple.Value{}, err
		}
		return ptuple.Nested(sub), nil
	case ptuple.TypeUint16 | ptuple.TypeArray:
		return scalar(node, ptuple.Uint16Array)
	case ptuple.TypeInt32 | ptuple.TypeArray:
		return scalar(node, ptuple.Int32Array)
	case ptuple.TypeUint32 | ptuple.TypeArray:
		return scalar(node, ptuple.Uint32Array)
	case ptuple.TypeFloat32 | ptuple.TypeArray:
		return scalar(node, ptuple.Float32Array)
	case ptuple.TypeInt64 | ptuple.TypeArray:
		return scalar(node, ptuple.Int64Array)
	case ptuple.TypeUint64 | ptuple.TypeArray:
		return scalar(node, ptuple.Uint64Array)
	case ptuple.TypeFloat64 | ptuple.TypeArray:
		return scalar(node, ptuple.Float64Array)
	case ptuple.TypeCStr | ptuple.TypeArray:
		return scalar(node, ptuple.CStrArray)
	case ptuple.TypeOpaque | ptuple.TypeArray:
		strs, err := decode[[]string](node)
		if err != nil {
			return ptuple.Value{}, err
		}
		blobs := make([][]byte, len(strs))
		for i, s := range strs {
			if blobs[i], err = blob(s); err != nil {
				return ptuple.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
		}
		return ptuple.OpaqueArray(blobs), nil
	case ptuple.TypeNested | ptuple.TypeArray:
		nodes, err := decode[[]yaml.Node](node)
		if err != nil {
			return ptuple.Value{}, err
		}
		tuples := make([]ptuple.Tuple, len(nodes))
		for i := range nodes {
			if tuples[i], err = nested(&nodes[i]); err != nil {
				return ptuple.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
		}
		return ptuple.NestedArray(tuples), nil
	default:
		return ptuple.Value{}, fmt.Errorf("%w: no YAML form for %s", ptuple.ErrInvalidValue, t)
	}
}
