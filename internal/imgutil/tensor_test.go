package imgutil

import (
	"image"
	"image/color"
	"testing"
)

// solidImage builds a uniform NRGBA test image, used to check scale
// invariants without needing bilinear blending math in the assertion.
func solidImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestRGBToCHWFloat32SolidColorRoundTrips(t *testing.T) {
	img := solidImage(8, 8, color.NRGBA{R: 128, G: 64, B: 32, A: 255})
	lb := ComputeLetterbox(8, 8, 4)

	out := RGBToCHWFloat32(img, lb)
	plane := lb.DstSize * lb.DstSize
	idx := lb.OffsetY*lb.DstSize + lb.OffsetX

	approxFloat(t, float64(out[0*plane+idx]), 128.0/255.0)
	approxFloat(t, float64(out[1*plane+idx]), 64.0/255.0)
	approxFloat(t, float64(out[2*plane+idx]), 32.0/255.0)
}

func TestRGBToHWCFloat32MatchesCHWValues(t *testing.T) {
	img := solidImage(8, 8, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
	lb := ComputeLetterbox(8, 8, 4)

	chw := RGBToCHWFloat32(img, lb)
	hwc := RGBToHWCFloat32(img, lb)
	plane := lb.DstSize * lb.DstSize
	idx := lb.OffsetY*lb.DstSize + lb.OffsetX

	for ch := 0; ch < 3; ch++ {
		chwVal := chw[ch*plane+idx]
		hwcVal := hwc[idx*3+ch]
		if chwVal != hwcVal {
			t.Fatalf("channel %d mismatch between layouts: chw=%f hwc=%f", ch, chwVal, hwcVal)
		}
	}
}

// TestBilinearSampleBlendsNeighbors checks that resampling a sharp
// two-color edge produces an intermediate value at the midpoint,
// something nearest-neighbor sampling would never produce (spec.md
// §4.2 "Resize input ... with bilinear filtering").
func TestBilinearSampleBlendsNeighbors(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 0, G: 0, B: 0, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	r, _, _ := bilinearSample(img, img.Bounds(), 2, 1, 0.5, 0)
	if r <= 0.0 || r >= 1.0 {
		t.Fatalf("expected a blended value strictly between 0 and 1, got %f", r)
	}
}

func approxFloat(t *testing.T, got, want float64) {
	t.Helper()
	const eps = 1e-6
	if got < want-eps || got > want+eps {
		t.Fatalf("got %f, want %f", got, want)
	}
}
