// Package geometry computes the terminal cell grid an image should
// occupy: explicit or aspect-derived cols/rows, per-dimension caps,
// and a final clamp.
package geometry

import (
	"math"

	"github.com/kittyplace/imgplace/pkg/placeholder"
)

// DefaultCellWidth and DefaultCellHeight are the fallback cell pixel
// dimensions used when terminal detection fails.
const (
	DefaultCellWidth  = 8
	DefaultCellHeight = 16
)

// MaxRows is the hard row cap imposed by the placeholder diacritic
// table.
const MaxRows = placeholder.MaxRows

// CellSize is a terminal cell's pixel dimensions.
type CellSize struct {
	Width, Height int
}

// Request describes one fit computation's inputs.
type Request struct {
	ImageWidthPx, ImageHeightPx int
	Cell                        CellSize
	// Cols and Rows are explicit cell counts; nil means "auto-compute
	// from the image's aspect ratio".
	Cols, Rows     *int
	MaxCols        int
	MaxRows        int
	Scale          float64 // per-call multiplier, default 1
	GlobalScale    float64 // config-wide multiplier, default 1
}

// Result is the computed grid plus which dimensions were derived
// rather than given explicitly.
type Result struct {
	Cols, Rows         int
	ColsWereAuto       bool
	RowsWereAuto       bool
}

// Fit computes the cell grid for req.
func Fit(req Request) Result {
	cell := req.Cell
	if cell.Width <= 0 {
		cell.Width = DefaultCellWidth
	}
	if cell.Height <= 0 {
		cell.Height = DefaultCellHeight
	}
	maxCols := req.MaxCols
	if maxCols <= 0 {
		maxCols = 1
	}
	maxRows := req.MaxRows
	if maxRows <= 0 || maxRows > MaxRows {
		maxRows = MaxRows
	}

	scale := req.Scale
	if scale <= 0 {
		scale = 1
	}
	globalScale := req.GlobalScale
	if globalScale <= 0 {
		globalScale = 1
	}

	w := float64(req.ImageWidthPx) * globalScale * scale
	h := float64(req.ImageHeightPx) * globalScale * scale
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = 1
	}

	var cols, rows int
	var colsAuto, rowsAuto bool

	switch {
	case req.Cols == nil && req.Rows == nil:
		cols = ceilDiv(w, float64(cell.Width))
		rows = ceilDiv(h, float64(cell.Height))
		colsAuto, rowsAuto = true, true
	case req.Cols == nil:
		rows = *req.Rows
		cols = ceilDiv(float64(rows)*float64(cell.Height)*w, h*float64(cell.Width))
		colsAuto = true
	case req.Rows == nil:
		cols = *req.Cols
		rows = ceilDiv(float64(cols)*float64(cell.Width)*h, w*float64(cell.Height))
		rowsAuto = true
	default:
		cols = *req.Cols
		rows = *req.Rows
	}

	// Clip whichever dimension was auto-derived to its cap, then
	// recompute the other dimension from the clipped value.
	if colsAuto && cols > maxCols {
		cols = maxCols
		rows = ceilDiv(float64(cols)*float64(cell.Width)*h, w*float64(cell.Height))
	}
	if rowsAuto && rows > maxRows {
		rows = maxRows
		cols = ceilDiv(float64(rows)*float64(cell.Height)*w, h*float64(cell.Width))
	}

	cols = clamp(cols, 1, maxCols)
	rows = clamp(rows, 1, maxRows)

	return Result{Cols: cols, Rows: rows, ColsWereAuto: colsAuto, RowsWereAuto: rowsAuto}
}

func ceilDiv(numerator, denominator float64) int {
	if denominator == 0 {
		return 1
	}
	v := int(math.Ceil(numerator / denominator))
	if v < 1 {
		v = 1
	}
	return v
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
