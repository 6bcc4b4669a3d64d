package backend

import "testing"

// TestProbeInputLayoutNCHW covers a standard fixed-shape NCHW input,
// e.g. a YOLOv5 export declaring [1, 3, 640, 640].
func TestProbeInputLayoutNCHW(t *testing.T) {
	nhwc, w, h := probeInputLayout([]int64{1, 3, 640, 640})
	if nhwc {
		t.Fatal("expected NCHW, got NHWC")
	}
	if w != 640 || h != 640 {
		t.Fatalf("expected 640x640, got %dx%d", w, h)
	}
}

// TestProbeInputLayoutNHWC covers a TensorFlow-style export declaring
// [1, 640, 640, 3] (spec.md §4.2: NHWC when the last dim is small and
// the second dim is larger).
func TestProbeInputLayoutNHWC(t *testing.T) {
	nhwc, w, h := probeInputLayout([]int64{1, 640, 640, 3})
	if !nhwc {
		t.Fatal("expected NHWC, got NCHW")
	}
	if w != 640 || h != 640 {
		t.Fatalf("expected 640x640, got %dx%d", w, h)
	}
}

// TestProbeInputLayoutDynamicDimsReportZero covers a dynamic-axis
// export, e.g. [-1, 3, -1, -1]: the batch dimension is irrelevant to
// this helper (the caller always drives batch=1), and a <=0 spatial
// dimension must report 0 so the caller falls back through the
// manifest/reported/default precedence chain rather than trying to
// build a zero-sized tensor.
func TestProbeInputLayoutDynamicDimsReportZero(t *testing.T) {
	nhwc, w, h := probeInputLayout([]int64{-1, 3, -1, -1})
	if nhwc {
		t.Fatal("expected NCHW for a 3-channel second dimension")
	}
	if w != 0 || h != 0 {
		t.Fatalf("expected dynamic spatial dims to report 0, got %dx%d", w, h)
	}
}

// TestProbeInputLayoutWrongRankIsNCHWZero covers a malformed or
// unexpected-rank declaration, which should fail safe to NCHW with no
// probed size rather than panic on an out-of-range index.
func TestProbeInputLayoutWrongRankIsNCHWZero(t *testing.T) {
	nhwc, w, h := probeInputLayout([]int64{1, 3, 640})
	if nhwc {
		t.Fatal("expected NCHW fallback for non-4D dims")
	}
	if w != 0 || h != 0 {
		t.Fatalf("expected 0x0 for non-4D dims, got %dx%d", w, h)
	}
}
