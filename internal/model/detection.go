// Package model holds the data types shared by every backend and by the
// YOLO decoder: the canonical detection representation, the label table,
// and the model manifest.
package model

const (
	// MaxLabels is the cap on class names in a label table (spec.md §3).
	MaxLabels = 256
	// MaxLabelLen is the cap on a single label's byte length.
	MaxLabelLen = 64
	// MaxDetections is the cap on the bounded detection list (spec.md §3).
	MaxDetections = 256
	// UnknownLabel is rendered for any class id outside the label table.
	UnknownLabel = "unknown"

	// DefaultInputSize is the hard fallback input width/height (spec.md §4.2).
	DefaultInputSize = 416
	// DefaultConfidenceThreshold is applied when no manifest overrides it.
	DefaultConfidenceThreshold = 0.5
	// DefaultNMSThreshold is applied when no manifest overrides it.
	DefaultNMSThreshold = 0.4
)

// Detection is the canonical bounding box: normalized top-left + size in
// [0, 1], confidence in [0, 1], and a class index. This is the only form
// held in the context's shared detection list and the only form that
// crosses the decoder/context boundary (spec.md §3).
type Detection struct {
	X, Y, W, H float64
	Confidence float64
	ClassID    int
}

// Clamp enforces the invariant x+w<=1, y+h<=1, all fields in [0,1]
// (spec.md §8 invariant 1). It mutates d in place and is the mandatory
// clamping step at the decoder/context boundary (spec.md §3).
func (d *Detection) Clamp() {
	d.X = clamp01(d.X)
	d.Y = clamp01(d.Y)
	d.W = clamp01(d.W)
	d.H = clamp01(d.H)
	d.Confidence = clamp01(d.Confidence)

	if d.X+d.W > 1 {
		d.W = 1 - d.X
	}
	if d.Y+d.H > 1 {
		d.H = 1 - d.Y
	}
	if d.W < 0 {
		d.W = 0
	}
	if d.H < 0 {
		d.H = 0
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// PixelBBox converts a normalized detection into integer pixel-space
// [x, y, w, h] relative to the given frame dimensions, rounding as
// required by the JSON result contract (spec.md §4.1, §6).
func (d Detection) PixelBBox(frameW, frameH int) [4]int {
	return [4]int{
		roundInt(d.X * float64(frameW)),
		roundInt(d.Y * float64(frameH)),
		roundInt(d.W * float64(frameW)),
		roundInt(d.H * float64(frameH)),
	}
}

func roundInt(v float64) int {
	if v < 0 {
		return int(v - 0.5)
	}
	return int(v + 0.5)
}
