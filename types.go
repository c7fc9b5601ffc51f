package ptuple

import (
	"fmt"
	"strings"
)

// Type is the 5-bit type code stored in every directory slot.
type Type uint8

const (
	TypeNull Type = iota
	TypeUint16
	TypeInt32
	TypeUint32
	TypeFloat32
	TypeInt64
	TypeUint64
	TypeFloat64
	TypeDatetime
	Type96
	Type128
	Type160
	Type256
	TypeCStr
	TypeOpaque
	TypeNested

	// TypeArray is or-ed with a base type to form an array of it.
	TypeArray Type = 16

	typeBits = 5
	typeMask = 1<<typeBits - 1
)

var typeNames = [...]string{
	TypeNull:     "null",
	TypeUint16:   "uint16",
	TypeInt32:    "int32",
	TypeUint32:   "uint32",
	TypeFloat32:  "float32",
	TypeInt64:    "int64",
	TypeUint64:   "uint64",
	TypeFloat64:  "float64",
	TypeDatetime: "datetime",
	Type96:       "b96",
	Type128:      "b128",
	Type160:      "b160",
	Type256:      "b256",
	TypeCStr:     "cstr",
	TypeOpaque:   "opaque",
	TypeNested:   "nested",
}

// Base strips the array flag.
func (t Type) Base() Type { return t &^ TypeArray }

// IsArray reports whether t is an array type.
func (t Type) IsArray() bool { return t&TypeArray != 0 }

// Valid reports whether t belongs to the closed set of storable codes.
// An array of null is reserved.
func (t Type) Valid() bool {
	return t <= typeMask && t != TypeNull|TypeArray
}

func (t Type) String() string {
	if !t.Valid() {
		return fmt.Sprintf("type(%d)", uint8(t))
	}
	name := typeNames[t.Base()]
	if t.IsArray() {
		return name + "[]"
	}
	return name
}

// ParseType is the inverse of Type.String.
func ParseType(s string) (Type, error) {
	var arr Type
	if base, ok := strings.CutSuffix(s, "[]"); ok {
		s, arr = base, TypeArray
	}
	for i, name := range typeNames {
		if name == s {
			t := Type(i) | arr
			if !t.Valid() {
				break
			}
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown type %q", ErrInvalidValue, s)
}

// inline types keep their value in the descriptor and own no payload.
func (t Type) inline() bool {
	return t == TypeNull || t == TypeUint16
}

// fixedUnits returns the payload size of a fixed-width scalar, or 0.
func (t Type) fixedUnits() int {
	switch t {
	case TypeInt32, TypeUint32, TypeFloat32:
		return 1
	case TypeInt64, TypeUint64, TypeFloat64, TypeDatetime:
		return 2
	case Type96:
		return 3
	case Type128:
		return 4
	case Type160:
		return 5
	case Type256:
		return 8
	default:
		return 0
	}
}

// elemWidth returns the packed byte width of an array element of base
// type t, or 0 for variable-length elements.
func (t Type) elemWidth() int {
	if t == TypeUint16 {
		return 2
	}
	return t.fixedUnits() * UnitSize
}

// TypeMask is a set of type codes; bit N matches code N.
type TypeMask uint32

// MaskOf returns the mask matching exactly t.
func MaskOf(t Type) TypeMask {
	return 1 << (t & typeMask)
}

// Has reports whether t is in m.
func (m TypeMask) Has(t Type) bool {
	return m&MaskOf(t) != 0
}

const (
	MaskNone TypeMask = 0
	MaskAny  TypeMask = ^TypeMask(0)

	MaskAnyScalar TypeMask = 0x0000FFFF
	MaskAnyArray  TypeMask = 0xFFFF0000

	// MaskAnyInt matches the signed integers.
	MaskAnyInt TypeMask = 1<<TypeInt32 | 1<<TypeInt64
	// MaskAnyUint matches the unsigned integers.
	MaskAnyUint    TypeMask = 1<<TypeUint16 | 1<<TypeUint32 | 1<<TypeUint64
	MaskAnyInteger          = MaskAnyInt | MaskAnyUint
	MaskAnyFloat   TypeMask = 1<<TypeFloat32 | 1<<TypeFloat64

	MaskAnyFixed TypeMask = MaskAnyInteger | MaskAnyFloat |
		1<<TypeDatetime | 1<<Type96 | 1<<Type128 | 1<<Type160 | 1<<Type256
	MaskAnyVariable TypeMask = 1<<TypeCStr | 1<<TypeOpaque | 1<<TypeNested | MaskAnyArray
)
