package placeholder

import (
	"strings"
	"testing"
)

// TestEncodeExactBytes pins the exact byte sequence for a single cell:
// image_id = 0x01_00_00_2A (4th
// byte=1, low byte=42), rect start=(0,0), end=(1,1). The output must be
// the reset SGR, then the 24-bit foreground color carrying the id, the
// placeholder rune, the row-0/col-0/4th-byte diacritics, then the reset
// SGR again.
func TestEncodeExactBytes(t *testing.T) {
	var buf strings.Builder
	rect := Rect{StartCol: 0, StartRow: 0, EndCol: 1, EndRow: 1}
	mode := PlaceholderMode{FirstColumn: LevelRowColFourthIfNonzero, Rest: LevelRowColFourthIfNonzero}

	const imageID = 0x01_00_00_2A
	err := EncodeToStream(&buf, imageID, 0, rect, mode, Formatting{Allow256Color: true}, false, nil)
	if err != nil {
		t.Fatalf("EncodeToStream: %v", err)
	}

	row0, _ := diacriticFor(0)
	col0, _ := diacriticFor(0)
	fourth, _ := diacriticFor(1)
	want := sgrReset + "\x1b[38;2;0;0;42m" + string(Placeholder) + string(row0) + string(col0) + string(fourth) + sgrReset
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestEncodeWith24BitColorWhenIDExceedsByte(t *testing.T) {
	var buf strings.Builder
	rect := Rect{StartCol: 0, StartRow: 0, EndCol: 1, EndRow: 1}
	mode := PlaceholderMode{FirstColumn: LevelRow, Rest: LevelRow}

	id := uint32(0x010203) // bytes (r,g,b) = (01,02,03)
	if err := EncodeToStream(&buf, id, 0, rect, mode, Formatting{Allow256Color: true}, false, nil); err != nil {
		t.Fatalf("EncodeToStream: %v", err)
	}
	if !strings.Contains(buf.String(), "\x1b[38;2;1;2;3m") {
		t.Errorf("expected 24-bit SGR for id exceeding one byte, got %q", buf.String())
	}
}

func TestEncodeWritesPlacementUnderlineColor(t *testing.T) {
	var buf strings.Builder
	rect := Rect{StartCol: 0, StartRow: 0, EndCol: 1, EndRow: 1}
	mode := PlaceholderMode{FirstColumn: LevelRow, Rest: LevelRow}

	if err := EncodeToStream(&buf, 5, 9, rect, mode, Formatting{Allow256Color: true}, false, nil); err != nil {
		t.Fatalf("EncodeToStream: %v", err)
	}
	if !strings.Contains(buf.String(), "\x1b[58;5;9m") {
		t.Errorf("expected placement underline-color SGR, got %q", buf.String())
	}
}

func TestEncodeSkipsPlacementColorWhenRequested(t *testing.T) {
	var buf strings.Builder
	rect := Rect{StartCol: 0, StartRow: 0, EndCol: 1, EndRow: 1}
	mode := PlaceholderMode{FirstColumn: LevelRow, Rest: LevelRow}

	err := EncodeToStream(&buf, 5, 9, rect, mode, Formatting{Allow256Color: true, SkipPlacementColor: true}, false, nil)
	if err != nil {
		t.Fatalf("EncodeToStream: %v", err)
	}
	if strings.Contains(buf.String(), "58;") {
		t.Errorf("expected no underline-color SGR, got %q", buf.String())
	}
}

func TestEncodeFourthByteOmittedWhenZeroUnderIfNonzeroLevel(t *testing.T) {
	var buf strings.Builder
	rect := Rect{StartCol: 0, StartRow: 1, EndCol: 1, EndRow: 2}
	mode := PlaceholderMode{FirstColumn: LevelRowColFourthIfNonzero, Rest: LevelRowColFourthIfNonzero}

	if err := EncodeToStream(&buf, 5, 0, rect, mode, Formatting{Allow256Color: true}, false, nil); err != nil {
		t.Fatalf("EncodeToStream: %v", err)
	}
	row, _ := diacriticFor(1)
	col, _ := diacriticFor(0)
	want := sgrReset + "\x1b[38;5;5m" + string(Placeholder) + string(row) + string(col) + sgrReset
	if buf.String() != want {
		t.Errorf("got %q, want %q (no 4th-byte diacritic when zero)", buf.String(), want)
	}
}

func TestEncodeFourthByteIncludedWhenNonzero(t *testing.T) {
	var buf strings.Builder
	rect := Rect{StartCol: 0, StartRow: 1, EndCol: 1, EndRow: 2}
	mode := PlaceholderMode{FirstColumn: LevelRowColFourthIfNonzero, Rest: LevelRowColFourthIfNonzero}

	id := uint32(7) | (uint32(42) << 24)
	if err := EncodeToStream(&buf, id, 0, rect, mode, Formatting{Allow256Color: true}, false, nil); err != nil {
		t.Fatalf("EncodeToStream: %v", err)
	}
	fourth, _ := diacriticFor(42)
	if !strings.ContainsRune(buf.String(), fourth) {
		t.Errorf("expected 4th-byte diacritic in output: %q", buf.String())
	}
}

func TestModeValidateRejectsFirstColumnBelowRow(t *testing.T) {
	m := PlaceholderMode{FirstColumn: LevelNone, Rest: LevelRow}
	if err := m.Validate(); err == nil {
		t.Fatal("expected error for first column below ROW")
	}
}

func TestRectValidateRejectsInvertedRect(t *testing.T) {
	var buf strings.Builder
	rect := Rect{StartCol: 5, StartRow: 0, EndCol: 1, EndRow: 1}
	err := EncodeToStream(&buf, 1, 0, rect, PlaceholderMode{FirstColumn: LevelRow}, Formatting{}, false, nil)
	if err == nil {
		t.Fatal("expected InvalidGeometry error for start >= end")
	}
}

func TestEncodeClipsRowsBeyondTableSize(t *testing.T) {
	var buf strings.Builder
	rect := Rect{StartCol: 0, StartRow: 0, EndCol: 1, EndRow: MaxRows + 50}
	mode := PlaceholderMode{FirstColumn: LevelRow, Rest: LevelRow}
	if err := EncodeToStream(&buf, 1, 0, rect, mode, Formatting{Allow256Color: true}, true, nil); err != nil {
		t.Fatalf("EncodeToStream: %v", err)
	}
	if strings.Count(buf.String(), "\n") != MaxRows-1 {
		t.Errorf("expected clipping to %d rows, got %d newlines", MaxRows, strings.Count(buf.String(), "\n"))
	}
}

func TestMultiCellRowUsesCursorRightSeparator(t *testing.T) {
	var buf strings.Builder
	rect := Rect{StartCol: 0, StartRow: 0, EndCol: 3, EndRow: 1}
	mode := PlaceholderMode{FirstColumn: LevelRow, Rest: LevelRow}
	if err := EncodeToStream(&buf, 1, 0, rect, mode, Formatting{Allow256Color: true}, false, nil); err != nil {
		t.Fatalf("EncodeToStream: %v", err)
	}
	if strings.Count(buf.String(), "\x1b[1C") != 2 {
		t.Errorf("expected 2 cursor-right separators between 3 cells, got %q", buf.String())
	}
}

func TestDecodeCellRunesRoundTrips(t *testing.T) {
	row, col := 12, 34
	rowD, _ := diacriticFor(row)
	colD, _ := diacriticFor(col)
	d := DecodeCellRunes([]rune{rowD, colD})
	if !d.HasRow || d.Row != row {
		t.Errorf("row mismatch: %+v", d)
	}
	if !d.HasCol || d.Col != col {
		t.Errorf("col mismatch: %+v", d)
	}
}
