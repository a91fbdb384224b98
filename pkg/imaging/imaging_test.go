package imaging

import (
	"image"
	"image/color"
	"testing"
)

func TestFlattenForJPEGPassesThroughOpaqueImages(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
		}
	}
	if flattenForJPEG(img) != image.Image(img) {
		t.Error("fully opaque image should pass through without copying")
	}
}

func TestFlattenForJPEGCompositesTransparencyOntoBlack(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 0})   // fully transparent red
	img.SetNRGBA(1, 0, color.NRGBA{R: 255, A: 128}) // half-transparent red

	flat := flattenForJPEG(img)
	if flat == image.Image(img) {
		t.Fatal("translucent image should be composited, not passed through")
	}

	r0, g0, b0, a0 := flat.At(0, 0).RGBA()
	if r0 != 0 || g0 != 0 || b0 != 0 || a0 != 0xffff {
		t.Errorf("fully transparent pixel should become opaque black, got rgba(%d,%d,%d,%d)", r0, g0, b0, a0)
	}

	r1, _, _, a1 := flat.At(1, 0).RGBA()
	if a1 != 0xffff {
		t.Errorf("composited pixel should be opaque, got alpha %d", a1)
	}
	if r8 := r1 >> 8; r8 < 126 || r8 > 130 {
		t.Errorf("half-transparent red over black should give r around 128, got %d", r8)
	}
}
