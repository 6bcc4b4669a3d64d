package imgutil

import "testing"

func TestComputeLetterboxWideSource(t *testing.T) {
	lb := ComputeLetterbox(2688, 1520, 832)

	if lb.ContentW != 832 {
		t.Fatalf("expected full-width content, got %d", lb.ContentW)
	}
	if lb.ContentH <= 0 || lb.ContentH >= 832 {
		t.Fatalf("expected letterboxed height within canvas, got %d", lb.ContentH)
	}
	if lb.OffsetX != 0 {
		t.Fatalf("expected zero x offset for wide source, got %d", lb.OffsetX)
	}
	if lb.OffsetY <= 0 {
		t.Fatalf("expected positive y offset (pillarbox... letterbox) for wide source, got %d", lb.OffsetY)
	}
}

func TestComputeLetterboxTallSource(t *testing.T) {
	lb := ComputeLetterbox(480, 1080, 640)

	if lb.ContentH != 640 {
		t.Fatalf("expected full-height content, got %d", lb.ContentH)
	}
	if lb.OffsetY != 0 {
		t.Fatalf("expected zero y offset for tall source, got %d", lb.OffsetY)
	}
	if lb.OffsetX <= 0 {
		t.Fatalf("expected positive x offset for tall source, got %d", lb.OffsetX)
	}
}

func TestToContentSpaceRoundTrip(t *testing.T) {
	lb := ComputeLetterbox(1920, 1080, 640)

	centerNorm := float64(lb.OffsetX+lb.ContentW/2) / float64(lb.DstSize)
	fx, _ := lb.ToContentSpace(centerNorm, 0.5)

	if fx < 0.45 || fx > 0.55 {
		t.Fatalf("expected content-space x near 0.5, got %f", fx)
	}
}

func TestComputeLetterboxDegenerate(t *testing.T) {
	lb := ComputeLetterbox(0, 0, 640)
	if lb.ContentW != 0 || lb.ContentH != 0 {
		t.Fatalf("expected zero content for degenerate source")
	}
}
