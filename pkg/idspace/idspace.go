// Package idspace implements the pure arithmetic of the 32-bit image ID
// partitioning scheme: feature-spaces (which bytes of the ID may be
// nonzero) and subspaces (a further refinement by fixing low bits of a
// designated "subspace byte"). Nothing here touches storage; see
// pkg/idstore for the durable allocator built on top of this math.
package idspace

import "fmt"

// FeatureSpace is one of the four disjoint classes of nonzero 32-bit image
// IDs, distinguished by which bytes may be nonzero.
type FeatureSpace struct {
	// ColorBits is 0, 8, or 24: how many bits of color the ID's low bytes
	// carry. 0 means only the 4th byte is usable.
	ColorBits int
	// Uses4thByte reports whether the high (4th) byte may be nonzero.
	Uses4thByte bool
}

var (
	// Color8 packs the ID into byte 0 (8-bit indexed color), 4th byte zero.
	Color8 = FeatureSpace{ColorBits: 8, Uses4thByte: false}
	// Color24 packs the ID into bytes 0-2 (24-bit color), 4th byte zero.
	Color24 = FeatureSpace{ColorBits: 24, Uses4thByte: false}
	// Color8Plus4th packs the ID into byte 0 plus a nonzero 4th byte.
	Color8Plus4th = FeatureSpace{ColorBits: 8, Uses4thByte: true}
	// Color24Plus4th packs the ID into bytes 0-2 plus a nonzero 4th byte.
	Color24Plus4th = FeatureSpace{ColorBits: 24, Uses4thByte: true}
)

// All lists the four feature-spaces in a fixed, stable order.
var All = [4]FeatureSpace{Color8, Color24, Color8Plus4th, Color24Plus4th}

func (fs FeatureSpace) String() string {
	switch fs {
	case Color8:
		return "8-bit color"
	case Color24:
		return "24-bit color"
	case Color8Plus4th:
		return "8-bit color + 4th byte"
	case Color24Plus4th:
		return "24-bit color + 4th byte"
	default:
		return fmt.Sprintf("FeatureSpace{%d,%v}", fs.ColorBits, fs.Uses4thByte)
	}
}

func byte0(id uint32) byte  { return byte(id) }
func byte1(id uint32) byte  { return byte(id >> 8) }
func byte2(id uint32) byte  { return byte(id >> 16) }
func byte3(id uint32) byte  { return byte(id >> 24) }

// FromID returns the feature-space that id belongs to. id must be nonzero;
// the inverse map from nonzero ID to feature-space is total.
func FromID(id uint32) FeatureSpace {
	fourth := byte3(id) != 0
	highColor := byte1(id) != 0 || byte2(id) != 0
	switch {
	case !fourth && !highColor:
		return Color8
	case !fourth && highColor:
		return Color24
	case fourth && !highColor:
		return Color8Plus4th
	default:
		return Color24Plus4th
	}
}

// Contains reports whether id belongs to fs (id must be nonzero).
func (fs FeatureSpace) Contains(id uint32) bool {
	if id == 0 {
		return false
	}
	return FromID(id) == fs
}

// subspaceByteValue extracts the byte that subspaces of fs fix bits on:
// byte 0 when the space has color bits, otherwise the 4th byte.
func (fs FeatureSpace) subspaceByteValue(id uint32) byte {
	if fs.ColorBits == 0 {
		return byte3(id)
	}
	return byte0(id)
}

// SubspaceByte is the same extraction, exposed publicly for the CLI's
// --subspace-byte diagnostic.
func SubspaceByte(id uint32, fs FeatureSpace) byte {
	return fs.subspaceByteValue(id)
}

// Subspace is a refinement of a FeatureSpace: the k low bits of the
// subspace byte are fixed to value v.
type Subspace struct {
	K int // number of fixed bits, 0..8
	V int // fixed value, 0..2^K-1
}

// Mask returns the 32-bit mask selecting the subspace-identifying bits.
func (fs FeatureSpace) Mask(sub Subspace) uint32 {
	m := uint32(0)
	if sub.K > 0 {
		m = (uint32(1) << uint(sub.K)) - 1
	}
	if fs.ColorBits == 0 {
		return m << 24
	}
	return m
}

// MaskedValue returns the masked bit pattern a matching ID must exhibit.
func (fs FeatureSpace) MaskedValue(sub Subspace) uint32 {
	v := uint32(sub.V)
	if fs.ColorBits == 0 {
		return v << 24
	}
	return v
}

// ContainsAndInSubspace reports whether id is in fs and within sub.
func (fs FeatureSpace) ContainsAndInSubspace(id uint32, sub Subspace) bool {
	if !fs.Contains(id) {
		return false
	}
	return id&fs.Mask(sub) == fs.MaskedValue(sub)
}

// highByteCombinations returns, for a color-bearing feature-space, the
// number of free (caller-chosen) values the non-subspace-byte portion of
// the ID may take: the bytes 1-2 (if ColorBits==24) and byte 3 (if
// Uses4thByte), independently of the subspace's fixed bits (which live in
// byte 0).
func (fs FeatureSpace) highByteCombinations() uint64 {
	var n uint64 = 1
	if fs.ColorBits == 24 {
		// bytes 1,2 each 0..255, but not both zero (24-bit color requires
		// byte1 or byte2 nonzero).
		n *= 256*256 - 1
	}
	if fs.Uses4thByte {
		n *= 255 // byte 3 in 1..255
	}
	return n
}

// SubspaceSize returns the closed-form cardinality of sub within fs:
// |{ id : fs.ContainsAndInSubspace(id, sub) }|.
func (fs FeatureSpace) SubspaceSize(sub Subspace) uint64 {
	if fs.ColorBits == 0 {
		// IDs are b<<24 for b in 1..255 (when v==0, b==0 excluded), or for
		// v!=0 all 256 values of byte0 are free combined with the fixed
		// 4th-byte bits per the mask. Subspace fixes k bits of the 4th
		// byte; the low 3 bytes are always zero in this space.
		free := uint64(1) << uint(8-sub.K)
		if sub.V == 0 {
			// b=0 (4th byte within this subspace's fixed bits all zero,
			// remaining free bits also zero) is excluded since id==0 is
			// not a valid ID.
			free--
		}
		return free
	}
	// Subspace fixes k bits of byte 0; the other (8-k) bits of byte0 are
	// free, combined with the independent high-byte combinations.
	freeByte0Bits := uint64(1) << uint(8-sub.K)
	n := freeByte0Bits * fs.highByteCombinations()
	if fs.ColorBits == 8 && !fs.Uses4thByte && sub.V == 0 {
		// byte0 is the whole ID here, and the all-zero combination is
		// not a valid ID; it only falls inside subspaces with V == 0.
		n--
	}
	return n
}

// AllIDs returns every ID in fs that belongs to subspace sub. Used only
// for small subspaces (see idstore's small-subspace allocation path); it
// materializes the whole set, so callers must bound N via SubspaceSize
// before calling.
func (fs FeatureSpace) AllIDs(sub Subspace) []uint32 {
	mask := fs.Mask(sub)
	maskedValue := fs.MaskedValue(sub)

	var out []uint32
	if fs.ColorBits == 0 {
		for b := 0; b < 256; b++ {
			id := uint32(b) << 24
			if id&mask != maskedValue {
				continue
			}
			if id == 0 {
				continue
			}
			out = append(out, id)
		}
		return out
	}

	for b0 := 0; b0 < 256; b0++ {
		id0 := uint32(b0)
		for _, b3 := range fs.fourthByteChoices() {
			for _, hi := range fs.highColorChoices() {
				id := id0 | hi | (uint32(b3) << 24)
				if id == 0 {
					continue
				}
				if id&mask != maskedValue {
					continue
				}
				out = append(out, id)
			}
		}
	}
	return out
}

// fourthByteChoices yields the allowed values for byte 3: just {0} if the
// space does not use the 4th byte, else 1..255.
func (fs FeatureSpace) fourthByteChoices() []int {
	if !fs.Uses4thByte {
		return []int{0}
	}
	choices := make([]int, 0, 255)
	for b := 1; b < 256; b++ {
		choices = append(choices, b)
	}
	return choices
}

// highColorChoices yields the allowed (byte1<<8 | byte2<<16) combinations:
// just {0} for 8-bit color, else every combination with byte1 or byte2
// nonzero for 24-bit color.
func (fs FeatureSpace) highColorChoices() []uint32 {
	if fs.ColorBits != 24 {
		return []uint32{0}
	}
	choices := make([]uint32, 0, 256*256-1)
	for b1 := 0; b1 < 256; b1++ {
		for b2 := 0; b2 < 256; b2++ {
			if b1 == 0 && b2 == 0 {
				continue
			}
			choices = append(choices, uint32(b1)<<8|uint32(b2)<<16)
		}
	}
	return choices
}

// ParseSubspaceBits parses a binary-digit string ("0110") into a
// Subspace, the format the id_subspace config key uses.
func ParseSubspaceBits(bits string) (Subspace, error) {
	if len(bits) > 8 {
		return Subspace{}, fmt.Errorf("idspace: subspace bit string %q longer than 8 bits", bits)
	}
	v := 0
	for _, c := range bits {
		v <<= 1
		switch c {
		case '0':
		case '1':
			v |= 1
		default:
			return Subspace{}, fmt.Errorf("idspace: invalid bit %q in subspace string %q", c, bits)
		}
	}
	return Subspace{K: len(bits), V: v}, nil
}
