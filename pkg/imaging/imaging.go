// Package imaging is the decode/resize/encode collaborator used by
// pkg/convcache: a thin façade over disintegration/imaging,
// disintegration/imageorient, and golang.org/x/image/draw so the cache
// and optimizer never touch codec details directly.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"strings"

	"github.com/disintegration/imageorient"
	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"

	"github.com/kittyplace/imgplace/pkg/ikerr"
)

// Decoded is a source image plus the format it was decoded from.
type Decoded struct {
	Image  image.Image
	Format string // "jpeg", "png", "gif", ...
}

// DecodeFile opens and decodes path, applying EXIF orientation if present.
func DecodeFile(path string) (Decoded, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Decoded{}, ikerr.Wrap(ikerr.FileMissing, "imaging.DecodeFile", err)
		}
		return Decoded{}, ikerr.Wrap(ikerr.IOError, "imaging.DecodeFile", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads and decodes r, applying EXIF orientation if present.
func Decode(r io.Reader) (Decoded, error) {
	img, format, err := imageorient.Decode(r)
	if err != nil {
		return Decoded{}, ikerr.Wrap(ikerr.IOError, "imaging.Decode", err)
	}
	return Decoded{Image: img, Format: format}, nil
}

// PixelSize returns the image's width and height in pixels.
func PixelSize(img image.Image) (width, height int) {
	b := img.Bounds()
	return b.Dx(), b.Dy()
}

// Kernel selects the resampling filter used when resizing,
// configurable via the resize_kernel config key.
type Kernel string

const (
	KernelNearest    Kernel = "nearest"
	KernelLinear     Kernel = "linear"
	KernelCatmullRom Kernel = "catmullrom"
	KernelLanczos    Kernel = "lanczos"
)

func (k Kernel) filter() imaging.ResampleFilter {
	switch k {
	case KernelNearest:
		return imaging.NearestNeighbor
	case KernelLinear:
		return imaging.Linear
	case KernelLanczos:
		return imaging.Lanczos
	default:
		return imaging.CatmullRom
	}
}

// ParseKernel normalizes a config/CLI resize-kernel name, defaulting to
// CatmullRom for an empty or unrecognized string.
func ParseKernel(s string) Kernel {
	switch strings.ToLower(s) {
	case "nearest":
		return KernelNearest
	case "linear":
		return KernelLinear
	case "lanczos":
		return KernelLanczos
	default:
		return KernelCatmullRom
	}
}

// Resize scales img to exactly width x height using kernel. Both
// dimensions must already be resolved (aspect computation happens in
// pkg/convcache, not here).
func Resize(img image.Image, width, height int, kernel Kernel) image.Image {
	if width <= 0 || height <= 0 {
		return imaging.Resize(img, 1, 1, kernel.filter())
	}
	return imaging.Resize(img, width, height, kernel.filter())
}

// ResizeDraw is an alternate resize path exercising golang.org/x/image/draw
// directly, used when the caller wants draw.Scaler's in-place semantics
// (e.g. resizing into a pre-allocated RGBA for repeated conversions).
func ResizeDraw(img image.Image, width, height int, scaler draw.Scaler) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	scaler.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

// Sharpen applies an unsharp mask (result = original + amount*(original -
// boxBlurred)) to restore edge detail lost during downscaling.
// amount <= 0 returns img unchanged. Meant as a subtle pass after a
// downscale, not a user-facing filter.
func Sharpen(img image.Image, amount float64) image.Image {
	if img == nil || amount <= 0 {
		return img
	}
	nrgba := toNRGBA(img)
	bounds := nrgba.Bounds()
	if bounds.Dx() < 3 || bounds.Dy() < 3 {
		return img
	}
	blurred := boxBlur3(nrgba)
	result := image.NewNRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			origR, origG, origB, origA := nrgba.At(x, y).RGBA()
			blurR, blurG, blurB, _ := blurred.At(x, y).RGBA()
			result.Set(x, y, color.NRGBA{
				R: clampU16ToU8(int(origR) + int(amount*float64(int(origR)-int(blurR)))),
				G: clampU16ToU8(int(origG) + int(amount*float64(int(origG)-int(blurG)))),
				B: clampU16ToU8(int(origB) + int(amount*float64(int(origB)-int(blurB)))),
				A: uint8(origA >> 8),
			})
		}
	}
	return result
}

func toNRGBA(src image.Image) *image.NRGBA {
	if n, ok := src.(*image.NRGBA); ok {
		return n
	}
	bounds := src.Bounds()
	dst := image.NewNRGBA(bounds)
	draw.Draw(dst, bounds, src, bounds.Min, draw.Src)
	return dst
}

// boxBlur3 is a separable 3x3 box blur, the blur half of the unsharp mask.
func boxBlur3(img *image.NRGBA) *image.NRGBA {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	temp := image.NewNRGBA(bounds)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			temp.Set(bounds.Min.X+x, bounds.Min.Y+y, averageRow(img, bounds, x, y, 1))
		}
	}
	result := image.NewNRGBA(bounds)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			result.Set(bounds.Min.X+x, bounds.Min.Y+y, averageCol(temp, bounds, x, y, 1))
		}
	}
	return result
}

func averageRow(img *image.NRGBA, bounds image.Rectangle, x, y, radius int) color.NRGBA {
	var rSum, gSum, bSum, aSum, count int
	w := bounds.Dx()
	for dx := -radius; dx <= radius; dx++ {
		sx := x + dx
		if sx < 0 || sx >= w {
			continue
		}
		r, g, b, a := img.At(bounds.Min.X+sx, bounds.Min.Y+y).RGBA()
		rSum += int(r)
		gSum += int(g)
		bSum += int(b)
		aSum += int(a)
		count++
	}
	if count == 0 {
		count = 1
	}
	return color.NRGBA{R: uint8((rSum / count) >> 8), G: uint8((gSum / count) >> 8), B: uint8((bSum / count) >> 8), A: uint8((aSum / count) >> 8)}
}

func averageCol(img *image.NRGBA, bounds image.Rectangle, x, y, radius int) color.NRGBA {
	var rSum, gSum, bSum, aSum, count int
	h := bounds.Dy()
	for dy := -radius; dy <= radius; dy++ {
		sy := y + dy
		if sy < 0 || sy >= h {
			continue
		}
		r, g, b, a := img.At(bounds.Min.X+x, bounds.Min.Y+sy).RGBA()
		rSum += int(r)
		gSum += int(g)
		bSum += int(b)
		aSum += int(a)
		count++
	}
	if count == 0 {
		count = 1
	}
	return color.NRGBA{R: uint8((rSum / count) >> 8), G: uint8((gSum / count) >> 8), B: uint8((bSum / count) >> 8), A: uint8((aSum / count) >> 8)}
}

func clampU16ToU8(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 65535 {
		v = 65535
	}
	return uint8(v >> 8)
}

// Format identifies an output codec by lowercase extension-ish name.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatGIF  Format = "gif"
)

// ParseFormat normalizes a format/extension string (case-insensitive,
// accepts "jpg" as an alias for "jpeg").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "gif":
		return FormatGIF, nil
	default:
		return "", ikerr.New(ikerr.InvalidConfig, fmt.Sprintf("imaging.ParseFormat(%q)", s))
	}
}

func (f Format) imagingFormat() imaging.Format {
	switch f {
	case FormatJPEG:
		return imaging.JPEG
	case FormatGIF:
		return imaging.GIF
	default:
		return imaging.PNG
	}
}

// Ext returns the canonical file extension (without the dot) for f.
func (f Format) Ext() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return string(f)
}

// EncodeToBytes encodes img in the given format, returning the encoded
// bytes and their length (convcache needs the byte count for the
// optimizer's (area, size) sample model). JPEG has no alpha channel, so
// sources with transparency are flattened onto an opaque background
// first.
func EncodeToBytes(img image.Image, format Format) ([]byte, error) {
	if format == FormatJPEG {
		img = flattenForJPEG(img)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format.imagingFormat()); err != nil {
		return nil, ikerr.Wrap(ikerr.IOError, "imaging.EncodeToBytes", err)
	}
	return buf.Bytes(), nil
}

// flattenForJPEG composites img over an opaque black background.
// Encoding translucent pixels straight to JPEG discards the alpha
// channel and leaves whatever premultiplied color values happened to be
// under the transparency, so a defined composite is produced instead.
// Already-opaque images pass through untouched.
func flattenForJPEG(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}
	bounds := img.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, image.NewUniform(color.Black), image.Point{}, draw.Src)
	draw.Draw(dst, bounds, img, bounds.Min, draw.Over)
	return dst
}
