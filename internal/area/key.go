package area

import "math"

// Key packs a chunk coordinate pair into one int64: Z in the upper 32 bits,
// X in the lower 32 bits.
type Key int64

// Unmapped marks "no anchor" in change events, e.g. the previous anchor of an
// actor that was just added.
const Unmapped Key = math.MinInt64

// Pack encodes (x, z) into a Key.
func Pack(x, z int32) Key {
	return Key(int64(z)<<32 | int64(uint32(x)))
}

func (k Key) X() int32 { return int32(k) }
func (k Key) Z() int32 { return int32(k >> 32) }

// Unpack returns the (x, z) pair encoded in k.
func Unpack(k Key) (x, z int32) {
	return k.X(), k.Z()
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// chebyshev is the square distance between two chunk coordinates.
func chebyshev(ax, az, bx, bz int) int {
	return max(abs(ax-bx), abs(az-bz))
}
