package ptuple

import "iter"

// Directory is the view iteration runs over. Cursors are logical field
// indices: 0 is the oldest field and Len() is the end sentinel.
type Directory interface {
	Len() int
	Field(i int) Field
}

var (
	_ Directory = (*Builder)(nil)
	_ Directory = Tuple(nil)
)

// Predicate decides whether a field matches. ctx and param are passed
// through from ByFunc untouched.
type Predicate func(f Field, ctx, param any) bool

type filterKind uint8

const (
	filterType filterKind = iota
	filterFunc
)

// Filter selects fields either by tag and type mask or by a predicate.
type Filter struct {
	kind  filterKind
	tag   uint16
	mask  TypeMask
	pred  Predicate
	ctx   any
	param any
}

// ByType matches fields with the given tag whose type is in mask. A tag of
// TagLimit matches any tag.
func ByType(tag uint16, mask TypeMask) Filter {
	return Filter{kind: filterType, tag: tag, mask: mask}
}

// ByFunc matches fields for which pred returns true. A nil pred matches
// nothing.
func ByFunc(pred Predicate, ctx, param any) Filter {
	return Filter{kind: filterFunc, pred: pred, ctx: ctx, param: param}
}

// All matches every field.
func All() Filter { return ByType(TagLimit, MaskAny) }

func (f Filter) Match(fl Field) bool {
	switch f.kind {
	case filterFunc:
		return f.pred != nil && f.pred(fl, f.ctx, f.param)
	default:
		return (f.tag == TagLimit || fl.Tag() == f.tag) && f.mask.Has(fl.Type())
	}
}

// First returns the first cursor in [begin, end) whose field matches f, or
// end.
func First(d Directory, begin, end int, f Filter) int {
	stop := min(end, d.Len())
	for i := max(begin, 0); i < stop; i++ {
		if f.Match(d.Field(i)) {
			return i
		}
	}
	return end
}

// Next returns the first cursor after cursor and before end whose field
// matches f, or end.
func Next(d Directory, cursor, end int, f Filter) int {
	return First(d, cursor+1, end, f)
}

// FieldCount returns how many fields of d match f.
func FieldCount(d Directory, f Filter) int {
	n := 0
	for i := range d.Len() {
		if f.Match(d.Field(i)) {
			n++
		}
	}
	return n
}

// Lookup returns the first field with the given tag and type.
func Lookup(d Directory, tag uint16, t Type) (Field, bool) {
	end := d.Len()
	i := First(d, 0, end, ByType(tag, MaskOf(t)))
	if i == end {
		return Field{}, false
	}
	return d.Field(i), true
}

// Fields yields the cursor and field of every match, in order.
func Fields(d Directory, f Filter) iter.Seq2[int, Field] {
	return func(yield func(int, Field) bool) {
		for i := range d.Len() {
			fl := d.Field(i)
			if f.Match(fl) && !yield(i, fl) {
				return
			}
		}
	}
}

func (b *Builder) First(begin, end int, f Filter) int    { return First(b, begin, end, f) }
func (b *Builder) Next(cursor, end int, f Filter) int    { return Next(b, cursor, end, f) }
func (b *Builder) FieldCount(f Filter) int               { return FieldCount(b, f) }
func (b *Builder) Fields(f Filter) iter.Seq2[int, Field] { return Fields(b, f) }
func (b *Builder) Lookup(tag uint16, t Type) (Field, bool) {
	return Lookup(b, tag, t)
}

func (t Tuple) First(begin, end int, f Filter) int    { return First(t, begin, end, f) }
func (t Tuple) Next(cursor, end int, f Filter) int    { return Next(t, cursor, end, f) }
func (t Tuple) FieldCount(f Filter) int               { return FieldCount(t, f) }
func (t Tuple) Fields(f Filter) iter.Seq2[int, Field] { return Fields(t, f) }
func (t Tuple) Lookup(tag uint16, typ Type) (Field, bool) {
	return Lookup(t, tag, typ)
}
