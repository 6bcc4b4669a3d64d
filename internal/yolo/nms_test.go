package yolo

import "testing"

func TestNMSSuppressesOverlappingSameClass(t *testing.T) {
	boxes := []Box{
		{X1: 10, Y1: 10, X2: 110, Y2: 110, Score: 0.9, ClassID: 0},
		{X1: 12, Y1: 12, X2: 112, Y2: 112, Score: 0.85, ClassID: 0},
	}

	out := NMS(boxes, 0.5)
	if len(out) != 1 {
		t.Fatalf("expected 1 surviving box, got %d", len(out))
	}
	if out[0].Score != 0.9 {
		t.Fatalf("expected the higher-scoring box to survive, got score %f", out[0].Score)
	}
}

func TestNMSKeepsDifferentClasses(t *testing.T) {
	boxes := []Box{
		{X1: 10, Y1: 10, X2: 110, Y2: 110, Score: 0.9, ClassID: 0},
		{X1: 12, Y1: 12, X2: 112, Y2: 112, Score: 0.85, ClassID: 1},
	}

	out := NMS(boxes, 0.5)
	if len(out) != 2 {
		t.Fatalf("expected both boxes to survive (different classes), got %d", len(out))
	}
}

func TestNMSKeepsNonOverlapping(t *testing.T) {
	boxes := []Box{
		{X1: 0, Y1: 0, X2: 50, Y2: 50, Score: 0.9, ClassID: 0},
		{X1: 500, Y1: 500, X2: 550, Y2: 550, Score: 0.8, ClassID: 0},
	}

	out := NMS(boxes, 0.5)
	if len(out) != 2 {
		t.Fatalf("expected both non-overlapping boxes to survive, got %d", len(out))
	}
}

func TestIoUZeroForDisjointBoxes(t *testing.T) {
	a := Box{X1: 0, Y1: 0, X2: 10, Y2: 10}
	b := Box{X1: 20, Y1: 20, X2: 30, Y2: 30}
	if iou(a, b) != 0 {
		t.Fatalf("expected zero IoU for disjoint boxes")
	}
}
