package ptuple

// Space is a snapshot of how a builder's buffer is divided. Slot figures
// count directory entries; the rest are bytes.
//
// UsedSlots*UnitSize + FreeSlots*UnitSize + Live + Junk + FreeData == Capacity.
type Space struct {
	UsedSlots int
	FreeSlots int
	Live      int
	Junk      int
	FreeData  int
	Capacity  int
}

// SpaceForItems returns how many more fields the directory can take.
func (b *Builder) SpaceForItems() int { return b.head() - dirBase }

// SpaceForData returns the free payload bytes past the tail.
func (b *Builder) SpaceForData() int { return (b.end() - b.tail()) * UnitSize }

// JunkSpace returns the payload bytes a Shrink would reclaim.
func (b *Builder) JunkSpace() int { return b.junk() * UnitSize }

// Capacity returns the bytes available to the directory and payload.
func (b *Builder) Capacity() int { return (b.end() - dirBase) * UnitSize }

func (b *Builder) Space() Space {
	return Space{
		UsedSlots: b.Len(),
		FreeSlots: b.SpaceForItems(),
		Live:      b.liveUnits() * UnitSize,
		Junk:      b.JunkSpace(),
		FreeData:  b.SpaceForData(),
		Capacity:  b.Capacity(),
	}
}

// Balanced reports whether the figures add up to the capacity.
func (s Space) Balanced() bool {
	return (s.UsedSlots+s.FreeSlots)*UnitSize+s.Live+s.Junk+s.FreeData == s.Capacity
}
