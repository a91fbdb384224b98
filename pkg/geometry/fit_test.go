package geometry

import "testing"

func ptr(n int) *int { return &n }

func TestFitBothAutoPreservesAspect(t *testing.T) {
	res := Fit(Request{
		ImageWidthPx: 800, ImageHeightPx: 400,
		Cell:    CellSize{Width: 8, Height: 16},
		MaxCols: 200, MaxRows: 100,
	})
	// 800/8=100 cols, 400/16=25 rows, well within caps.
	if res.Cols != 100 || res.Rows != 25 {
		t.Errorf("got %dx%d, want 100x25", res.Cols, res.Rows)
	}
	if !res.ColsWereAuto || !res.RowsWereAuto {
		t.Errorf("expected both dims auto, got %+v", res)
	}
}

func TestFitRowsGivenDerivesCols(t *testing.T) {
	res := Fit(Request{
		ImageWidthPx: 800, ImageHeightPx: 400,
		Cell:    CellSize{Width: 8, Height: 16},
		Rows:    ptr(10),
		MaxCols: 200, MaxRows: 100,
	})
	if res.Rows != 10 {
		t.Fatalf("rows should stay as given: got %d", res.Rows)
	}
	if res.RowsWereAuto {
		t.Error("rows given explicitly should not be marked auto")
	}
	if !res.ColsWereAuto {
		t.Error("cols should be derived and marked auto")
	}
	if res.Cols <= 0 {
		t.Errorf("expected positive derived cols, got %d", res.Cols)
	}
}

func TestFitColsGivenDerivesRows(t *testing.T) {
	res := Fit(Request{
		ImageWidthPx: 800, ImageHeightPx: 400,
		Cell:    CellSize{Width: 8, Height: 16},
		Cols:    ptr(40),
		MaxCols: 200, MaxRows: 100,
	})
	if res.Cols != 40 {
		t.Fatalf("cols should stay as given: got %d", res.Cols)
	}
	if !res.RowsWereAuto {
		t.Error("rows should be derived and marked auto")
	}
}

func TestFitClipsAutoColsToMaxThenRecomputesRows(t *testing.T) {
	res := Fit(Request{
		ImageWidthPx: 8000, ImageHeightPx: 1600, // very wide image
		Cell:    CellSize{Width: 8, Height: 16},
		MaxCols: 50, MaxRows: 100,
	})
	if res.Cols != 50 {
		t.Fatalf("expected cols clipped to max 50, got %d", res.Cols)
	}
	if res.Rows < 1 || res.Rows > 100 {
		t.Errorf("recomputed rows out of range: %d", res.Rows)
	}
}

func TestFitNeverExceedsRowTableCeiling(t *testing.T) {
	res := Fit(Request{
		ImageWidthPx: 100, ImageHeightPx: 100000,
		Cell:    CellSize{Width: 8, Height: 1},
		MaxCols: 1000, MaxRows: 100000, // caller passes an oversized cap
	})
	if res.Rows > MaxRows {
		t.Errorf("rows %d exceeds hard ceiling %d", res.Rows, MaxRows)
	}
}

func TestFitExplicitBothDimensionsNotMarkedAuto(t *testing.T) {
	res := Fit(Request{
		ImageWidthPx: 800, ImageHeightPx: 400,
		Cell:    CellSize{Width: 8, Height: 16},
		Cols:    ptr(30), Rows: ptr(20),
		MaxCols: 200, MaxRows: 100,
	})
	if res.Cols != 30 || res.Rows != 20 {
		t.Errorf("explicit dims should pass through unchanged, got %dx%d", res.Cols, res.Rows)
	}
	if res.ColsWereAuto || res.RowsWereAuto {
		t.Error("explicit dims should not be marked auto")
	}
}

func TestFitZeroCellSizeFallsBackToDefaults(t *testing.T) {
	res := Fit(Request{
		ImageWidthPx: DefaultCellWidth * 10, ImageHeightPx: DefaultCellHeight * 5,
		MaxCols: 200, MaxRows: 100,
	})
	if res.Cols != 10 || res.Rows != 5 {
		t.Errorf("expected default cell size fallback to yield 10x5, got %dx%d", res.Cols, res.Rows)
	}
}
