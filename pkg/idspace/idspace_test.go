package idspace

import "testing"

func TestFromIDDisjoint(t *testing.T) {
	cases := []struct {
		id   uint32
		want FeatureSpace
	}{
		{0x0000002A, Color8},
		{0x00010000, Color24},
		{0x00002A01, Color24},
		{0x01000000, Color8Plus4th},
		{0x0100002A, Color8Plus4th},
		{0x01010000, Color24Plus4th},
		{0x01012A2A, Color24Plus4th},
	}
	for _, c := range cases {
		got := FromID(c.id)
		if got != c.want {
			t.Errorf("FromID(%#x) = %v, want %v", c.id, got, c.want)
		}
	}
}

func TestSubspaceMaskCorrectness(t *testing.T) {
	for _, fs := range All {
		for k := 0; k <= 8; k++ {
			for v := 0; v < (1 << uint(k)); v++ {
				sub := Subspace{K: k, V: v}
				for _, id := range sampleIDs(fs) {
					want := fs.Contains(id) && id&fs.Mask(sub) == fs.MaskedValue(sub)
					got := fs.ContainsAndInSubspace(id, sub)
					if got != want {
						t.Fatalf("fs=%v sub=%+v id=%#x: got %v want %v", fs, sub, id, got, want)
					}
				}
			}
		}
	}
}

func TestSubspaceSizeMatchesEnumeration(t *testing.T) {
	// The 24-bit spaces are too large to enumerate exhaustively; the
	// 8-bit spaces cover every branch of the closed form, including the
	// excluded all-zero ID.
	check := func(fs FeatureSpace, sub Subspace) {
		t.Helper()
		ids := fs.AllIDs(sub)
		if uint64(len(ids)) != fs.SubspaceSize(sub) {
			t.Errorf("fs=%v sub=%+v: SubspaceSize=%d, enumerated=%d", fs, sub, fs.SubspaceSize(sub), len(ids))
		}
		for _, id := range ids {
			if !fs.ContainsAndInSubspace(id, sub) {
				t.Errorf("fs=%v sub=%+v: enumerated id %#x not in subspace per predicate", fs, sub, id)
			}
		}
	}

	for k := 0; k <= 8; k++ {
		for v := 0; v < (1 << uint(k)); v += 17 { // sample values, always including 0
			check(Color8, Subspace{K: k, V: v})
		}
	}
	for k := 6; k <= 8; k++ {
		for _, v := range []int{0, 1, (1 << uint(k)) - 1} {
			check(Color8Plus4th, Subspace{K: k, V: v})
		}
	}
}

func TestParseSubspaceBits(t *testing.T) {
	sub, err := ParseSubspaceBits("0110")
	if err != nil {
		t.Fatalf("ParseSubspaceBits: %v", err)
	}
	if sub.K != 4 || sub.V != 0b0110 {
		t.Errorf("got %+v, want K=4 V=6", sub)
	}

	if _, err := ParseSubspaceBits("012"); err == nil {
		t.Error("expected error for invalid bit string")
	}
	if _, err := ParseSubspaceBits("123456789"); err == nil {
		t.Error("expected error for subspace string longer than 8 bits")
	}
}

func TestSubspaceByteDerivation(t *testing.T) {
	if SubspaceByte(0x0000002A, Color8) != 0x2A {
		t.Error("color8 subspace byte should be byte 0")
	}
	if SubspaceByte(0x0100002A, Color8Plus4th) != 0x2A {
		t.Error("color-bearing space subspace byte should be byte 0")
	}
	if SubspaceByte(0x01000000, FeatureSpace{Uses4thByte: true}) != 0x01 {
		t.Error("colorless space subspace byte should be byte 3")
	}
}

// sampleIDs returns a small, deterministic set of candidate IDs covering
// edge cases (zero bytes, max bytes) for the given feature-space so
// TestSubspaceMaskCorrectness exercises boundary conditions without
// enumerating the full 32-bit space.
func sampleIDs(fs FeatureSpace) []uint32 {
	var ids []uint32
	byte0Vals := []uint32{0, 1, 0x2A, 0x7F, 0xFF}
	fourthVals := []uint32{0}
	if fs.Uses4thByte {
		fourthVals = []uint32{1, 0x2A, 0xFF}
	}
	highVals := []uint32{0}
	if fs.ColorBits == 24 {
		highVals = []uint32{0x0001, 0x2A00, 0xFFFF}
	}
	for _, b0 := range byte0Vals {
		for _, hi := range highVals {
			for _, b3 := range fourthVals {
				id := b0 | (hi << 8) | (b3 << 24)
				if id == 0 {
					continue
				}
				ids = append(ids, id)
			}
		}
	}
	return ids
}
