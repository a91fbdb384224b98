package convcache

import (
	"math"
	"sort"

	"github.com/kittyplace/imgplace/pkg/ikerr"
)

// maxOptimizeIterations bounds the byte-budget refinement loop.
const maxOptimizeIterations = 6

// Sample is one observed (area, encoded-size) data point for a given
// source+format pair, used to fit the linear area/size model.
type Sample struct {
	Area      int64
	SizeBytes int64
}

// RecodeFunc resizes the source to width x height and encodes it,
// returning the encoded bytes. Supplied by the caller (pkg/imaging in
// production, a synthetic model in tests) so the optimizer stays free of
// codec details.
type RecodeFunc func(width, height int) ([]byte, error)

// OptimizeParams configures one byte-budget optimization run.
type OptimizeParams struct {
	SrcWidth, SrcHeight int
	MaxSizeBytes        int64
	Tolerance           float64 // in (0,1)
	Samples             []Sample
}

// OptimizeResult is the artifact the optimizer settled on, plus the
// updated sample set for the caller to persist.
type OptimizeResult struct {
	Width, Height int
	Data          []byte
	SizeBytes     int64
	Samples       []Sample
	Quality       float64 // dst_area / src_area, clipped to [0,1]
	IsBiggest     bool    // dst_area == src_area
}

// OptimizeImageToSize finds the largest recode of the source fitting
// MaxSizeBytes: fit a linear area/size model, recode toward the target
// size, and stop once within [max*(1-tolerance), max] or after
// maxOptimizeIterations passes. The model is seeded with prior samples
// ordered nearest-to-budget first; every measurement taken during the
// run is prepended, so the fit is always anchored on the freshest
// point. A model guess that lands at or outside the tightest
// within-budget/over-budget dimension bounds found so far cannot
// improve on them, so those iterations bisect the dimension bracket
// instead.
func OptimizeImageToSize(p OptimizeParams, recode RecodeFunc) (OptimizeResult, error) {
	if p.SrcWidth <= 0 || p.SrcHeight <= 0 || p.MaxSizeBytes <= 0 {
		return OptimizeResult{}, ikerr.New(ikerr.InvalidGeometry, "convcache.OptimizeImageToSize")
	}

	srcArea := int64(p.SrcWidth) * int64(p.SrcHeight)
	targetSize := float64(p.MaxSizeBytes) * (1 - p.Tolerance/2)
	lowerBound := int64(float64(p.MaxSizeBytes) * (1 - p.Tolerance))

	model := append([]Sample(nil), p.Samples...)
	sort.SliceStable(model, func(i, j int) bool {
		return absDiff(model[i].SizeBytes, p.MaxSizeBytes) < absDiff(model[j].SizeBytes, p.MaxSizeBytes)
	})
	var measured []Sample // in measurement order, appended to p.Samples for persistence

	var bestWithin *OptimizeResult
	bestW, bestH := 0, 0
	// Over-budget bound starts just above the source so any real guess
	// is inside it; its size starts unbounded.
	exceedW, exceedH := p.SrcWidth+1, p.SrcHeight+1
	exceedSize := int64(math.MaxInt64)

	for iter := 0; iter < maxOptimizeIterations; iter++ {
		a, b := fitAreaSizeModel(model)
		targetArea := math.Max(0, a*targetSize+b)
		scale := math.Sqrt(targetArea / float64(srcArea))

		newW := clampDim(roundHalfAwayFromZero(float64(p.SrcWidth)*scale), p.SrcWidth)
		newH := clampDim(roundHalfAwayFromZero(float64(p.SrcHeight)*scale), p.SrcHeight)

		tooSmall := bestWithin != nil && newW <= bestW && newH <= bestH
		tooLarge := newW >= exceedW && newH >= exceedH
		if tooSmall || tooLarge {
			newW = clampDim(roundHalfAwayFromZero(float64(bestW+exceedW)/2), p.SrcWidth)
			newH = clampDim(roundHalfAwayFromZero(float64(bestH+exceedH)/2), p.SrcHeight)
		}

		data, err := recode(newW, newH)
		if err != nil {
			return OptimizeResult{}, ikerr.Wrap(ikerr.IOError, "convcache.OptimizeImageToSize", err)
		}
		size := int64(len(data))
		area := int64(newW) * int64(newH)
		sample := Sample{Area: area, SizeBytes: size}
		model = append([]Sample{sample}, model...)
		measured = append(measured, sample)

		result := OptimizeResult{
			Width: newW, Height: newH, Data: data, SizeBytes: size,
			Samples:   append(append([]Sample(nil), p.Samples...), measured...),
			Quality:   clipUnit(float64(area) / float64(srcArea)),
			IsBiggest: area == srcArea,
		}

		if newW == 1 && newH == 1 && size > p.MaxSizeBytes {
			return result, nil // smallest possible artifact still exceeds budget
		}

		if size <= p.MaxSizeBytes {
			if newW == p.SrcWidth && newH == p.SrcHeight {
				return result, nil // upscaling forbidden; full source already fits
			}
			if size >= lowerBound {
				return result, nil
			}
			if bestWithin == nil || size > bestWithin.SizeBytes {
				r := result
				bestWithin = &r
				bestW, bestH = newW, newH
			}
		} else if size < exceedSize {
			exceedSize = size
			exceedW, exceedH = newW, newH
		}
	}

	if bestWithin != nil {
		r := *bestWithin
		r.Samples = append(append([]Sample(nil), p.Samples...), measured...)
		return r, nil
	}

	data, err := recode(1, 1)
	if err != nil {
		return OptimizeResult{}, ikerr.Wrap(ikerr.IOError, "convcache.OptimizeImageToSize", err)
	}
	size := int64(len(data))
	measured = append(measured, Sample{Area: 1, SizeBytes: size})
	return OptimizeResult{
		Width: 1, Height: 1, Data: data, SizeBytes: size,
		Samples: append(append([]Sample(nil), p.Samples...), measured...),
		Quality: clipUnit(1.0 / float64(srcArea)),
	}, nil
}

// fitAreaSizeModel fits area = a*size + b through the head sample (the
// freshest measurement, or the nearest prior sample before any
// measurement is taken) and the first sample after it with a distinct
// size. No samples, or a zero-byte head, falls back to (2, 0), biasing
// the first guess upward; a head with no distinct-size partner fits a
// line through the origin.
func fitAreaSizeModel(samples []Sample) (a, b float64) {
	if len(samples) == 0 || samples[0].SizeBytes == 0 {
		return 2, 0
	}
	s0 := samples[0]
	for _, s := range samples[1:] {
		if s.SizeBytes != s0.SizeBytes {
			a = float64(s0.Area-s.Area) / float64(s0.SizeBytes-s.SizeBytes)
			b = float64(s0.Area) - a*float64(s0.SizeBytes)
			return a, b
		}
	}
	return float64(s0.Area) / float64(s0.SizeBytes), 0
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}

func clampDim(v float64, max int) int {
	d := int(v)
	if d < 1 {
		d = 1
	}
	if d > max {
		d = max
	}
	return d
}

func roundHalfAwayFromZero(v float64) float64 {
	if v < 0 {
		return math.Ceil(v - 0.5)
	}
	return math.Floor(v + 0.5)
}

func clipUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
