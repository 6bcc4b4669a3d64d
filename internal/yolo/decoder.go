package yolo

import "math"

// Activations tells the per-row decoders whether to trust raw tensor
// values as already-activated probabilities or to apply sigmoid,
// resolving the ambiguity flagged in spec.md §9 (manifest field
// "activations"). ActivationsAuto falls back to the out-of-[0,1]
// heuristic.
type Activations int

const (
	ActivationsAuto Activations = iota
	ActivationsApplied
	ActivationsRaw
)

// Config parametrizes one decode call. It carries no backend- or
// context-specific state: the decoder is a pure function of (tensor,
// shape, Config) (spec.md §4.3).
type Config struct {
	Version        Version
	InputW         int
	InputH         int
	NumClasses     int
	ConfThreshold  float64
	NMSThreshold   float64
	MaxDetections  int
	Activations    Activations
}

// Box is a decoded detection in pixel-space corner form, relative to
// (InputW, InputH). Conversion to the normalized top-left+size form
// used by the shared detection list happens at the decoder/context
// boundary, not here (spec.md §3).
type Box struct {
	X1, Y1, X2, Y2 float64
	Score          float64
	ClassID        int
}

// Decode runs the version-appropriate parser over a raw float tensor
// and returns NMS-filtered boxes, capped at cfg.MaxDetections. A
// VersionAuto Config resolves the version from shape before decoding.
// An unrecognized 5-D shape that the raw-grid path cannot classify
// returns (nil, false): the caller should log and continue rather than
// treat it as fatal (spec.md §4.3).
func Decode(tensor []float32, shape []int, cfg Config) ([]Box, bool) {
	version := Resolve(cfg.Version, shape)

	var boxes []Box
	switch version {
	case VersionV10:
		boxes = decodeV10(tensor, shape, cfg)
	case VersionV8V9V11:
		boxes = decodeTransposed(tensor, shape, cfg)
	case VersionV4:
		boxes = decodeRows(tensor, shape, cfg)
	case VersionRawGrid:
		b, ok := decodeRawGrid(tensor, shape, cfg)
		if !ok {
			return nil, false
		}
		boxes = b
	default:
		boxes = decodeRows(tensor, shape, cfg)
	}

	if version != VersionV10 {
		boxes = NMS(boxes, cfg.NMSThreshold)
	}

	if cfg.MaxDetections > 0 && len(boxes) > cfg.MaxDetections {
		boxes = boxes[:cfg.MaxDetections]
	}
	return boxes, true
}

// sigmoid is the standard logistic activation used to convert raw
// logits to probabilities.
func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// needsActivation implements the out-of-[0,1] heuristic from spec.md
// §4.3/§9: any sampled field outside [0,1] means the row is raw
// logits. An explicit manifest Activations setting overrides the
// heuristic entirely.
func needsActivation(mode Activations, fields ...float64) bool {
	switch mode {
	case ActivationsApplied:
		return false
	case ActivationsRaw:
		return true
	default:
		for _, f := range fields {
			if f < 0 || f > 1 {
				return true
			}
		}
		return false
	}
}

// centerToCorners converts a center-form box in (possibly normalized)
// coordinates to pixel-space corners relative to (inputW, inputH).
// Values already in [0,1] are treated as normalized; anything else is
// treated as already pixel-scaled (spec.md §4.3).
func centerToCorners(cx, cy, w, h float64, inputW, inputH int) (x1, y1, x2, y2 float64) {
	normalized := cx >= 0 && cx <= 1 && cy >= 0 && cy <= 1 && w >= 0 && w <= 1 && h >= 0 && h <= 1
	if normalized {
		cx *= float64(inputW)
		cy *= float64(inputH)
		w *= float64(inputW)
		h *= float64(inputH)
	}
	return cx - w/2, cy - h/2, cx + w/2, cy + h/2
}
