package imgutil

import (
	"image"
	"image/color"
	"math"
)

// RGBToCHWFloat32 repacks an RGBA image into a flat NCHW float32 tensor
// (batch size 1), scaling channel values to [0, 1] and applying the
// letterbox placement computed by ComputeLetterbox. Pixels outside the
// content rectangle are left at zero (black padding), matching the
// teacher's black-canvas letterbox fill. Resampling is bilinear, per
// spec.md §4.2.
func RGBToCHWFloat32(src image.Image, lb Letterbox) []float32 {
	size := lb.DstSize
	out := make([]float32, 3*size*size)
	plane := size * size

	forEachContentPixel(src, lb, func(canvasX, canvasY int, r, g, b float64) {
		idx := canvasY*size + canvasX
		out[0*plane+idx] = float32(r)
		out[1*plane+idx] = float32(g)
		out[2*plane+idx] = float32(b)
	})
	return out
}

// RGBToHWCFloat32 repacks an RGBA image into a flat NHWC float32 tensor
// (batch size 1), the layout ONNX models probed as channel-last expect
// (spec.md §4.2). Scaling, padding, and resampling match
// RGBToCHWFloat32; only the channel interleaving differs.
func RGBToHWCFloat32(src image.Image, lb Letterbox) []float32 {
	size := lb.DstSize
	out := make([]float32, 3*size*size)

	forEachContentPixel(src, lb, func(canvasX, canvasY int, r, g, b float64) {
		base := (canvasY*size + canvasX) * 3
		out[base+0] = float32(r)
		out[base+1] = float32(g)
		out[base+2] = float32(b)
	})
	return out
}

// forEachContentPixel bilinearly resamples src into lb's content
// rectangle and invokes fn once per destination pixel with channel
// values already scaled to [0, 1]. Pixels outside the content
// rectangle (the letterbox padding) are left untouched by the caller's
// zero-initialized buffer.
func forEachContentPixel(src image.Image, lb Letterbox, fn func(canvasX, canvasY int, r, g, b float64)) {
	bounds := src.Bounds()
	srcW := bounds.Dx()
	srcH := bounds.Dy()
	if srcW == 0 || srcH == 0 || lb.ContentW == 0 || lb.ContentH == 0 {
		return
	}

	scaleX := float64(srcW) / float64(lb.ContentW)
	scaleY := float64(srcH) / float64(lb.ContentH)

	for dy := 0; dy < lb.ContentH; dy++ {
		fy := (float64(dy)+0.5)*scaleY - 0.5
		for dx := 0; dx < lb.ContentW; dx++ {
			fx := (float64(dx)+0.5)*scaleX - 0.5
			r, g, b := bilinearSample(src, bounds, srcW, srcH, fx, fy)
			fn(lb.OffsetX+dx, lb.OffsetY+dy, r, g, b)
		}
	}
}

// bilinearSample samples src at the fractional source coordinate
// (fx, fy), clamping the four surrounding integer taps to the image
// bounds, and returns channel values scaled to [0, 1] (spec.md §4.2
// "Resize input ... with bilinear filtering").
func bilinearSample(src image.Image, bounds image.Rectangle, srcW, srcH int, fx, fy float64) (r, g, b float64) {
	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	wx := fx - float64(x0)
	wy := fy - float64(y0)
	x1 := clampInt(x0+1, 0, srcW-1)
	y1 := clampInt(y0+1, 0, srcH-1)
	x0 = clampInt(x0, 0, srcW-1)
	y0 = clampInt(y0, 0, srcH-1)

	r00, g00, b00, _ := pixelAt(src, bounds.Min.X+x0, bounds.Min.Y+y0)
	r10, g10, b10, _ := pixelAt(src, bounds.Min.X+x1, bounds.Min.Y+y0)
	r01, g01, b01, _ := pixelAt(src, bounds.Min.X+x0, bounds.Min.Y+y1)
	r11, g11, b11, _ := pixelAt(src, bounds.Min.X+x1, bounds.Min.Y+y1)

	lerp := func(a, c uint8) float64 { return float64(a)*(1-wx) + float64(c)*wx }
	top := func(a00, a10 uint8) float64 { return lerp(a00, a10) }

	rTop, rBot := top(r00, r10), top(r01, r11)
	gTop, gBot := top(g00, g10), top(g01, g11)
	bTop, bBot := top(b00, b10), top(b01, b11)

	r = (rTop*(1-wy) + rBot*wy) / 255.0
	g = (gTop*(1-wy) + gBot*wy) / 255.0
	b = (bTop*(1-wy) + bBot*wy) / 255.0
	return r, g, b
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func pixelAt(img image.Image, x, y int) (r, g, b, a uint8) {
	switch im := img.(type) {
	case *image.NRGBA:
		i := im.PixOffset(x, y)
		return im.Pix[i], im.Pix[i+1], im.Pix[i+2], im.Pix[i+3]
	case *image.RGBA:
		i := im.PixOffset(x, y)
		return im.Pix[i], im.Pix[i+1], im.Pix[i+2], im.Pix[i+3]
	default:
		c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
		return c.R, c.G, c.B, c.A
	}
}
