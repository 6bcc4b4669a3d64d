// Package imgutil holds the frame<->tensor conversion helpers shared by
// every backend adapter: letterbox resize, HWC->CHW repacking, and
// pixel normalization. Backends that already have a framework-native
// blob builder (gocv) use it directly; backends that only accept a flat
// float32 tensor (onnxruntime) go through this package instead.
package imgutil

// Letterbox describes the placement of a resized source image inside a
// square destination canvas, preserving aspect ratio with padding on one
// axis (spec.md §4.2, grounded on the teacher's createOptimizedBlob).
type Letterbox struct {
	SrcW, SrcH int
	DstSize    int
	ContentW   int
	ContentH   int
	OffsetX    int
	OffsetY    int
}

// ComputeLetterbox derives the content rectangle a source image of size
// (srcW, srcH) occupies once resized to fit inside a dstSize x dstSize
// square canvas without distortion.
func ComputeLetterbox(srcW, srcH, dstSize int) Letterbox {
	if srcW <= 0 || srcH <= 0 || dstSize <= 0 {
		return Letterbox{SrcW: srcW, SrcH: srcH, DstSize: dstSize}
	}

	aspect := float64(srcW) / float64(srcH)
	var contentW, contentH int
	if aspect >= 1 {
		contentW = dstSize
		contentH = int(float64(dstSize) / aspect)
	} else {
		contentH = dstSize
		contentW = int(float64(dstSize) * aspect)
	}
	if contentW < 1 {
		contentW = 1
	}
	if contentH < 1 {
		contentH = 1
	}

	return Letterbox{
		SrcW:     srcW,
		SrcH:     srcH,
		DstSize:  dstSize,
		ContentW: contentW,
		ContentH: contentH,
		OffsetX:  (dstSize - contentW) / 2,
		OffsetY:  (dstSize - contentH) / 2,
	}
}

// ToContentSpace maps a point in the letterboxed canvas back to a
// fraction of the content rectangle, used when decoding detections that
// come back in canvas-normalized coordinates (spec.md §4.3).
func (l Letterbox) ToContentSpace(xNorm, yNorm float64) (fx, fy float64) {
	xPixel := xNorm * float64(l.DstSize)
	yPixel := yNorm * float64(l.DstSize)

	xContent := xPixel - float64(l.OffsetX)
	yContent := yPixel - float64(l.OffsetY)

	if l.ContentW == 0 || l.ContentH == 0 {
		return 0, 0
	}
	return xContent / float64(l.ContentW), yContent / float64(l.ContentH)
}
