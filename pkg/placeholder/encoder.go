// Package placeholder renders Unicode placeholder cells: the
// SGR-colored, diacritic-marked codepoints a terminal resolves into a
// virtual Kitty graphics placement.
package placeholder

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/kittyplace/imgplace/pkg/ikerr"
)

// Placeholder is the base codepoint the terminal paints over with image
// content; U+10EEEE per the Kitty Unicode-placeholder extension.
const Placeholder rune = 0x10EEEE

// sgrReset clears any inherited SGR state before a row's color codes and
// after its last cell.
const sgrReset = "\x1b[0m"

// Level is a diacritic-inclusion policy for one column class (first
// column vs remaining columns).
type Level int

const (
	LevelNone Level = iota
	LevelRow
	LevelRowCol
	LevelRowColFourth
	LevelRowColFourthIfNonzero
)

// PlaceholderMode pairs the first-column level with the level used for
// every other column in a row.
type PlaceholderMode struct {
	FirstColumn Level
	Rest        Level
}

// GetMode returns the mode imgplace uses for imageID. When
// fewerDiacritics is set, the remaining columns drop to ROW+COL
// (cheaper to emit, less robust to copy/paste) instead of including
// the 4th-byte diacritic.
func GetMode(imageID uint32, fewerDiacritics bool) PlaceholderMode {
	rest := LevelRowColFourthIfNonzero
	if fewerDiacritics {
		rest = LevelRowCol
	}
	return PlaceholderMode{FirstColumn: LevelRow, Rest: rest}
}

// Validate rejects a mode whose first column falls below ROW; a cell
// without at least a row diacritic cannot anchor a placement.
func (m PlaceholderMode) Validate() error {
	if m.FirstColumn < LevelRow {
		return ikerr.New(ikerr.InvalidConfig, "placeholder.PlaceholderMode.Validate")
	}
	return nil
}

// Rect is a half-open cell rectangle, [StartCol,EndCol) x [StartRow,EndRow).
type Rect struct {
	StartCol, StartRow int
	EndCol, EndRow     int
}

func (r Rect) validate() error {
	if r.StartCol < 0 || r.StartRow < 0 {
		return ikerr.New(ikerr.InvalidGeometry, "placeholder.Rect")
	}
	if r.StartCol >= r.EndCol || r.StartRow >= r.EndRow {
		return ikerr.New(ikerr.InvalidGeometry, "placeholder.Rect")
	}
	return nil
}

func (r Rect) clip(maxRows int) Rect {
	if r.EndRow > maxRows {
		r.EndRow = maxRows
	}
	return r
}

// Formatting controls the color encoding used for the image and
// placement IDs.
type Formatting struct {
	// Allow256Color permits the cheaper SGR 38;5;n / 58;5;n encoding
	// when an ID fits in 8 bits; otherwise (or when the ID doesn't
	// fit) 24-bit SGR 38;2;r;g;b / 58;2;r;g;b is used.
	Allow256Color bool
	// SkipPlacementColor omits the underline-color placement-id SGR
	// entirely (placement id 0, the implicit/default placement).
	SkipPlacementColor bool
}

// AbsolutePos, when passed to EncodeToStream, switches cell separators
// from relative cursor-right movement to absolute positioning anchored
// at (Col,Row) (0-based, added to the cell's offset within rect).
type AbsolutePos struct {
	Col, Row int
}

// EncodeToStream writes the placeholder cells for every position in
// rect, clipped to the table's row limit, to out.
func EncodeToStream(
	out io.Writer,
	imageID, placementID uint32,
	rect Rect,
	mode PlaceholderMode,
	formatting Formatting,
	useLineFeeds bool,
	absolutePos *AbsolutePos,
) error {
	if err := rect.validate(); err != nil {
		return err
	}
	if err := mode.Validate(); err != nil {
		return err
	}
	rect = rect.clip(MaxRows)

	w := &strings.Builder{}
	for row := rect.StartRow; row < rect.EndRow; row++ {
		w.WriteString(sgrReset)
		for col := rect.StartCol; col < rect.EndCol; col++ {
			level := mode.Rest
			if col == rect.StartCol {
				level = mode.FirstColumn
			}
			writeCell(w, imageID, placementID, row, col, level, formatting)

			lastCol := col == rect.EndCol-1
			if lastCol {
				continue
			}
			if useLineFeeds {
				continue
			}
			if absolutePos != nil {
				writeAbsoluteMove(w, absolutePos.Col+col-rect.StartCol+1, absolutePos.Row+row-rect.StartRow)
			} else {
				w.WriteString(cursorRight(1))
			}
		}
		w.WriteString(sgrReset)
		if row != rect.EndRow-1 {
			switch {
			case useLineFeeds:
				w.WriteByte('\n')
			case absolutePos != nil:
				writeAbsoluteMove(w, absolutePos.Col, absolutePos.Row+row-rect.StartRow+1)
			default:
				// Move back over the row's cells to the rectangle's
				// start column, then one row down, since plain
				// cursor-right movement only tracks position within
				// a row.
				fmt.Fprintf(w, "\x1b[%dD\x1b[1B", rect.EndCol-rect.StartCol)
			}
		}
	}

	_, err := io.WriteString(out, w.String())
	if err != nil {
		return ikerr.Wrap(ikerr.IOError, "placeholder.EncodeToStream", err)
	}
	return nil
}

func writeCell(w *strings.Builder, imageID, placementID uint32, row, col int, level Level, f Formatting) {
	writeColorSGR(w, 38, imageID, f.Allow256Color)
	if placementID != 0 && !f.SkipPlacementColor {
		writeColorSGR(w, 58, placementID, f.Allow256Color)
	}
	w.WriteRune(Placeholder)

	fourth := byte(imageID >> 24)
	writeDiacritics(w, row, col, fourth, level)
}

// writeColorSGR emits the foreground (code 38) or underline (code 58)
// color sequence carrying id.
func writeColorSGR(w *strings.Builder, sgrCode int, id uint32, allow256 bool) {
	if allow256 && id <= 0xff {
		fmt.Fprintf(w, "\x1b[%d;5;%dm", sgrCode, id)
		return
	}
	r := byte(id >> 16)
	g := byte(id >> 8)
	b := byte(id)
	fmt.Fprintf(w, "\x1b[%d;2;%d;%d;%dm", sgrCode, r, g, b)
}

func writeDiacritics(w *strings.Builder, row, col int, fourth byte, level Level) {
	if level == LevelNone {
		return
	}
	if d, ok := diacriticFor(row); ok {
		w.WriteRune(d)
	}
	if level == LevelRow {
		return
	}
	if d, ok := diacriticFor(col); ok {
		w.WriteRune(d)
	}
	switch level {
	case LevelRowColFourth:
		if d, ok := diacriticFor(int(fourth)); ok {
			w.WriteRune(d)
		}
	case LevelRowColFourthIfNonzero:
		if fourth != 0 {
			if d, ok := diacriticFor(int(fourth)); ok {
				w.WriteRune(d)
			}
		}
	}
}

// cursorRight is the relative-cursor-movement separator, built as a
// raw CSI literal (charmbracelet/x/ansi only exposes the absolute form
// used by writeAbsoluteMove).
func cursorRight(n int) string {
	return fmt.Sprintf("\x1b[%dC", n)
}

func writeAbsoluteMove(w *strings.Builder, col, row int) {
	w.WriteString(ansi.CursorPosition(col+1, row+1))
}

// DecodedCell is what DecodeCellRunes reconstructs from a rendered
// cell's trailing diacritics, for round-trip tests: the row/col the
// diacritics encode and the 4th byte when present. Full image/placement
// IDs are not recovered (those live in the preceding SGR sequence, not
// the diacritics).
type DecodedCell struct {
	Row, Col  int
	HasRow    bool
	HasCol    bool
	Fourth    int
	HasFourth bool
}

// DecodeCellRunes parses the diacritics following a single placeholder
// rune, assuming the ordering EncodeToStream produces ([row], [col],
// [4th]).
func DecodeCellRunes(runes []rune) DecodedCell {
	var d DecodedCell
	if len(runes) > 0 {
		if i, ok := indexOfDiacritic(runes[0]); ok {
			d.Row, d.HasRow = i, true
		}
	}
	if len(runes) > 1 {
		if i, ok := indexOfDiacritic(runes[1]); ok {
			d.Col, d.HasCol = i, true
		}
	}
	if len(runes) > 2 {
		if i, ok := indexOfDiacritic(runes[2]); ok {
			d.Fourth, d.HasFourth = i, true
		}
	}
	return d
}
