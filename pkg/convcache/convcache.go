package convcache

import (
	"context"
	"os"
	"time"

	"github.com/kittyplace/imgplace/pkg/ikerr"
	"github.com/kittyplace/imgplace/pkg/imaging"
)

// Source describes the image being converted: a file on disk (path +
// mtime) and its decoded pixels/format, already resolved by the caller
// (cmd/imgplace decodes once via DecodeSource and passes the result
// through).
type Source struct {
	Path     string // empty for non-file (in-memory) sources
	ModTime  time.Time
	Decoded  imaging.Decoded
	SrcWidth int
	SrcHeight int
}

// Target is either exact dimensions (Width/Height, zero means "impute")
// or a byte budget (MaxSizeBytes>0); DstFormat is always required.
type Target struct {
	DstFormat imaging.Format
	Width     int
	Height    int

	// Kernel selects the resampling filter (defaults to CatmullRom, the
	// zero value, when unset).
	Kernel imaging.Kernel
	// Sharpen is an unsharp-mask amount applied after every resize;
	// 0 disables it.
	Sharpen float64

	MaxSizeBytes int64
	Tolerance    float64
}

func (t Target) kernel() imaging.Kernel {
	if t.Kernel == "" {
		return imaging.KernelCatmullRom
	}
	return t.Kernel
}

// Result is the resolved cache artifact.
type Result struct {
	ArtifactPath string
	Width        int
	Height       int
	SizeBytes    int64
	Quality      float64
	IsBiggest    bool
}

// Resolve looks up or creates a cache artifact for src matching
// target, in either dimension mode or byte-budget mode.
func (s *Store) Resolve(ctx context.Context, src Source, target Target) (Result, error) {
	if target.MaxSizeBytes > 0 {
		return s.resolveByteBudget(ctx, src, target)
	}
	return s.resolveDimensions(ctx, src, target)
}

func (s *Store) key(src Source, target Target, width, height int) entryKey {
	return entryKey{
		srcPath:   src.Path,
		srcMtime:  src.ModTime.UnixNano(),
		dstFormat: string(target.DstFormat),
		width:     width,
		height:    height,
	}
}

func (s *Store) resolveDimensions(ctx context.Context, src Source, target Target) (Result, error) {
	width, height := target.Width, target.Height
	switch {
	case width == 0 && height == 0:
		width, height = src.SrcWidth, src.SrcHeight
	case width == 0:
		width = int(roundHalfAwayFromZero(float64(height) * float64(src.SrcWidth) / float64(src.SrcHeight)))
		if width < 1 {
			width = 1
		}
	case height == 0:
		height = int(roundHalfAwayFromZero(float64(width) * float64(src.SrcHeight) / float64(src.SrcWidth)))
		if height < 1 {
			height = 1
		}
	}

	k := s.key(src, target, width, height)
	if path, size, hit, err := s.lookup(ctx, k); err != nil {
		return Result{}, ikerr.Wrap(ikerr.IOError, "convcache.resolveDimensions", err)
	} else if hit {
		return finishResult(path, width, height, size, src.SrcWidth, src.SrcHeight), nil
	}

	srcFormat, _ := imaging.ParseFormat(src.Decoded.Format)
	sameAsSource := width == src.SrcWidth && height == src.SrcHeight && srcFormat == target.DstFormat && src.Path != ""

	var path string
	var size int64
	var err error
	if sameAsSource {
		path, size, err = s.copyIntoCache(ctx, k, src.Path)
	} else {
		resized := imaging.Resize(src.Decoded.Image, width, height, target.kernel())
		resized = imaging.Sharpen(resized, target.Sharpen)
		data, encErr := imaging.EncodeToBytes(resized, target.DstFormat)
		if encErr != nil {
			return Result{}, ikerr.Wrap(ikerr.IOError, "convcache.resolveDimensions", encErr)
		}
		path, size, err = s.store(ctx, k, data)
	}
	if err != nil {
		return Result{}, err
	}
	return finishResult(path, width, height, size, src.SrcWidth, src.SrcHeight), nil
}

func (s *Store) resolveByteBudget(ctx context.Context, src Source, target Target) (Result, error) {
	k := s.key(src, target, 0, 0) // width/height resolved below; samples are keyed independent of dims

	samples, err := s.sampleModel(ctx, k)
	if err != nil {
		return Result{}, err
	}
	already := len(samples)

	params := OptimizeParams{
		SrcWidth:     src.SrcWidth,
		SrcHeight:    src.SrcHeight,
		MaxSizeBytes: target.MaxSizeBytes,
		Tolerance:    target.Tolerance,
		Samples:      samples,
	}
	recode := func(width, height int) ([]byte, error) {
		resized := imaging.Resize(src.Decoded.Image, width, height, target.kernel())
		resized = imaging.Sharpen(resized, target.Sharpen)
		return imaging.EncodeToBytes(resized, target.DstFormat)
	}
	opt, err := OptimizeImageToSize(params, recode)
	if err != nil {
		return Result{}, err
	}
	if err := s.saveSamples(ctx, k, opt.Samples, already); err != nil {
		return Result{}, err
	}

	entryK := s.key(src, target, opt.Width, opt.Height)
	if path, size, hit, lookupErr := s.lookup(ctx, entryK); lookupErr != nil {
		return Result{}, ikerr.Wrap(ikerr.IOError, "convcache.resolveByteBudget", lookupErr)
	} else if hit {
		r := finishResult(path, opt.Width, opt.Height, size, src.SrcWidth, src.SrcHeight)
		r.Quality, r.IsBiggest = opt.Quality, opt.IsBiggest
		return r, nil
	}

	path, size, err := s.store(ctx, entryK, opt.Data)
	if err != nil {
		return Result{}, err
	}
	r := finishResult(path, opt.Width, opt.Height, size, src.SrcWidth, src.SrcHeight)
	r.Quality, r.IsBiggest = opt.Quality, opt.IsBiggest
	return r, nil
}

func finishResult(path string, width, height int, size int64, srcW, srcH int) Result {
	srcArea := float64(srcW) * float64(srcH)
	dstArea := float64(width) * float64(height)
	q := 0.0
	if srcArea > 0 {
		q = clipUnit(dstArea / srcArea)
	}
	return Result{
		ArtifactPath: path,
		Width:        width,
		Height:       height,
		SizeBytes:    size,
		Quality:      q,
		IsBiggest:    width == srcW && height == srcH,
	}
}

// DecodeSource is a convenience used by callers (cmd/imgplace)
// to build a Source from a file path.
func DecodeSource(path string) (Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Source{}, ikerr.Wrap(ikerr.FileMissing, "convcache.DecodeSource", err)
		}
		return Source{}, ikerr.Wrap(ikerr.IOError, "convcache.DecodeSource", err)
	}
	decoded, err := imaging.DecodeFile(path)
	if err != nil {
		return Source{}, err
	}
	w, h := imaging.PixelSize(decoded.Image)
	return Source{
		Path: path, ModTime: info.ModTime(), Decoded: decoded,
		SrcWidth: w, SrcHeight: h,
	}, nil
}
