package yolo

import "math"

// decodeRows handles the v3/v4/v5/v7 family: a 3-D tensor [1, N, 5+C],
// each row [cx, cy, w, h, obj, p0, ..., p_{C-1}] (spec.md §4.3).
func decodeRows(tensor []float32, shape []int, cfg Config) []Box {
	if len(shape) != 3 {
		return nil
	}
	n := shape[1]
	stride := shape[2]
	numClasses := cfg.NumClasses
	if numClasses <= 0 {
		numClasses = stride - 5
	}
	if numClasses <= 0 || stride < 5+numClasses {
		return nil
	}

	boxes := make([]Box, 0, n)
	for i := 0; i < n; i++ {
		base := i * stride
		if base+stride > len(tensor) {
			break
		}
		row := tensor[base : base+stride]

		cx, cy, w, h := float64(row[0]), float64(row[1]), float64(row[2]), float64(row[3])
		obj := float64(row[4])

		classID, classProb := argmaxClass(row[5:5+numClasses], 0)

		if needsActivation(cfg.Activations, obj, classProb) {
			obj = sigmoid(obj)
			classProb = sigmoid(classProb)
		}

		score := obj * classProb
		if score < cfg.ConfThreshold {
			continue
		}

		x1, y1, x2, y2 := centerToCorners(cx, cy, w, h, cfg.InputW, cfg.InputH)
		boxes = append(boxes, Box{X1: x1, Y1: y1, X2: x2, Y2: y2, Score: score, ClassID: classID})
	}
	return boxes
}

// decodeTransposed handles the v8/v9/v11 family: a 3-D tensor
// [1, 4+C, N] with no objectness column (spec.md §4.3).
func decodeTransposed(tensor []float32, shape []int, cfg Config) []Box {
	if len(shape) != 3 {
		return nil
	}
	channels := shape[1]
	n := shape[2]
	numClasses := cfg.NumClasses
	if numClasses <= 0 {
		numClasses = channels - 4
	}
	if numClasses <= 0 {
		return nil
	}

	boxes := make([]Box, 0, n)
	for i := 0; i < n; i++ {
		if i >= len(tensor) {
			break
		}
		get := func(ch int) float64 {
			idx := ch*n + i
			if idx >= len(tensor) {
				return 0
			}
			return float64(tensor[idx])
		}

		cx, cy, w, h := get(0), get(1), get(2), get(3)

		classID := 0
		classProb := get(4)
		for c := 1; c < numClasses; c++ {
			v := get(4 + c)
			if v > classProb {
				classProb = v
				classID = c
			}
		}

		if needsActivation(cfg.Activations, classProb) {
			classProb = sigmoid(classProb)
		}

		if classProb < cfg.ConfThreshold {
			continue
		}

		x1, y1, x2, y2 := centerToCorners(cx, cy, w, h, cfg.InputW, cfg.InputH)
		boxes = append(boxes, Box{X1: x1, Y1: y1, X2: x2, Y2: y2, Score: classProb, ClassID: classID})
	}
	return boxes
}

// decodeV10 handles the NMS-free v10 family: [1, 300, 6] rows of
// [x1, y1, x2, y2, score, class], emitted as already-decoded corners
// (spec.md §4.3).
func decodeV10(tensor []float32, shape []int, cfg Config) []Box {
	if len(shape) != 3 || shape[2] < 6 {
		return nil
	}
	n := shape[1]
	stride := shape[2]

	boxes := make([]Box, 0, n)
	for i := 0; i < n; i++ {
		base := i * stride
		if base+6 > len(tensor) {
			break
		}
		row := tensor[base : base+6]
		score := float64(row[4])
		if score < cfg.ConfThreshold {
			continue
		}

		x1, y1 := float64(row[0]), float64(row[1])
		x2, y2 := float64(row[2]), float64(row[3])
		if x1 <= 1 && y1 <= 1 && x2 <= 1 && y2 <= 1 {
			x1 *= float64(cfg.InputW)
			y1 *= float64(cfg.InputH)
			x2 *= float64(cfg.InputW)
			y2 *= float64(cfg.InputH)
		}

		boxes = append(boxes, Box{X1: x1, Y1: y1, X2: x2, Y2: y2, Score: score, ClassID: int(row[5])})
	}
	return boxes
}

// yolov4Anchors is the fixed 9-anchor table used by the raw-grid path
// when the grid height matches a standard YOLOv4 scale (spec.md §4.3).
var yolov4Anchors = [9][2]float64{
	{12, 16}, {19, 36}, {40, 28},
	{36, 75}, {76, 55}, {72, 146},
	{142, 110}, {192, 243}, {459, 401},
}

// decodeRawGrid handles the optional 5-D anchor-per-cell ONNX layout
// [1, numAnchors, gridH, gridW, 5+C]. Returns ok=false for shapes it
// cannot classify, per spec.md §4.3's "return -1 ... log and continue"
// allowance.
func decodeRawGrid(tensor []float32, shape []int, cfg Config) ([]Box, bool) {
	if len(shape) != 5 {
		return nil, false
	}
	numAnchors, gridH, gridW, fieldLen := shape[1], shape[2], shape[3], shape[4]
	numClasses := cfg.NumClasses
	if numClasses <= 0 {
		numClasses = fieldLen - 5
	}
	if numClasses <= 0 || numAnchors <= 0 || gridH <= 0 || gridW <= 0 {
		return nil, false
	}
	if fieldLen < 5+numClasses {
		return nil, false
	}

	anchorBase := 0
	switch gridH {
	case 13:
		anchorBase = 6
	case 26:
		anchorBase = 3
	case 52:
		anchorBase = 0
	}

	strideX := float64(cfg.InputW) / float64(gridW)
	strideY := float64(cfg.InputH) / float64(gridH)

	var boxes []Box
	for a := 0; a < numAnchors; a++ {
		anchorIdx := anchorBase + a
		if anchorBase == 0 && gridH != 52 {
			anchorIdx = a % 3
		}
		aw, ah := yolov4Anchors[anchorIdx%9][0], yolov4Anchors[anchorIdx%9][1]

		for gy := 0; gy < gridH; gy++ {
			for gx := 0; gx < gridW; gx++ {
				base := (((a*gridH+gy)*gridW + gx) * fieldLen)
				if base+fieldLen > len(tensor) {
					continue
				}
				field := tensor[base : base+fieldLen]

				tx, ty := float64(field[0]), float64(field[1])
				tw, th := float64(field[2]), float64(field[3])
				obj := float64(field[4])
				classID, classProb := argmaxClass(field[5:5+numClasses], 0)

				if needsActivation(cfg.Activations, tx, ty, obj, classProb) {
					tx, ty = sigmoid(tx), sigmoid(ty)
					obj = sigmoid(obj)
					classProb = sigmoid(classProb)
				}

				score := obj * classProb
				if score < cfg.ConfThreshold {
					continue
				}

				cx := (float64(gx) + tx) * strideX
				cy := (float64(gy) + ty) * strideY
				w := aw * math.Exp(tw)
				h := ah * math.Exp(th)

				boxes = append(boxes, Box{
					X1: cx - w/2, Y1: cy - h/2, X2: cx + w/2, Y2: cy + h/2,
					Score: score, ClassID: classID,
				})
			}
		}
	}
	return boxes, true
}

func argmaxClass(probs []float32, offset int) (classID int, prob float64) {
	if len(probs) == 0 {
		return 0, 0
	}
	bestIdx := 0
	best := probs[0]
	for i := 1; i < len(probs); i++ {
		if probs[i] > best {
			best = probs[i]
			bestIdx = i
		}
	}
	return bestIdx + offset, float64(best)
}
