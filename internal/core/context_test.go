package core

import (
	"encoding/json"
	"testing"

	"github.com/nolovision/ciraedge/internal/cerr"
	"github.com/nolovision/ciraedge/internal/model"
)

func TestNewDefaults(t *testing.T) {
	ctx := New(nil)
	if ctx.state != StateReady {
		t.Fatalf("expected StateReady, got %v", ctx.state)
	}
	if ctx.inputW != model.DefaultInputSize || ctx.inputH != model.DefaultInputSize {
		t.Fatalf("expected default input size %d, got %dx%d", model.DefaultInputSize, ctx.inputW, ctx.inputH)
	}
	if ctx.confThreshold != model.DefaultConfidenceThreshold {
		t.Fatalf("expected default confidence threshold, got %v", ctx.confThreshold)
	}
	if ctx.ResultCount() != 0 {
		t.Fatalf("expected zero detections, got %d", ctx.ResultCount())
	}
}

func TestLoadEmptyPathIsInputError(t *testing.T) {
	ctx := New(nil)
	err := ctx.Load("")
	if err == nil {
		t.Fatal("expected error for empty path")
	}
	if cerr.KindOf(err) != cerr.Input {
		t.Fatalf("expected Input kind, got %v", cerr.KindOf(err))
	}
}

func TestPredictImageWithoutBackendFails(t *testing.T) {
	ctx := New(nil)
	data := make([]byte, 4*4*3)
	if err := ctx.PredictImage(data, 4, 4, 3); err == nil {
		t.Fatal("expected error predicting with no bound backend")
	}
	if ctx.ResultCount() != 0 {
		t.Fatalf("expected detections cleared at entry, got %d", ctx.ResultCount())
	}
}

func TestPredictImageRejectsWrongChannelCount(t *testing.T) {
	ctx := New(nil)
	data := make([]byte, 4*4*4)
	if err := ctx.PredictImage(data, 4, 4, 4); err == nil {
		t.Fatal("expected input error for non-3-channel frame")
	}
}

func TestZeroDetectionsJSONShape(t *testing.T) {
	ctx := New(nil)
	var view resultJSONView
	if err := json.Unmarshal(ctx.ResultJSON(), &view); err != nil {
		t.Fatal(err)
	}
	if view.Count != 0 || len(view.Detections) != 0 {
		t.Fatalf("expected empty detections view, got %+v", view)
	}
}

func TestSnapshotWithoutFrameReturnsNil(t *testing.T) {
	ctx := New(nil)
	data, w, h := ctx.Snapshot()
	if data != nil || w != 0 || h != 0 {
		t.Fatalf("expected nil snapshot before any frame, got %v %dx%d", data, w, h)
	}
}

func TestSetFrameThenSnapshot(t *testing.T) {
	ctx := New(nil)
	src := []byte{1, 2, 3, 4, 5, 6}
	ctx.SetFrame(src, 2, 1)

	got, w, h := ctx.Snapshot()
	if w != 2 || h != 1 {
		t.Fatalf("expected 2x1, got %dx%d", w, h)
	}
	if len(got) != len(src) {
		t.Fatalf("expected %d bytes, got %d", len(src), len(got))
	}
	for i := range src {
		if got[i] != src[i] {
			t.Fatalf("snapshot byte %d mismatch: got %d want %d", i, got[i], src[i])
		}
	}

	// Mutating the returned slice must not affect the context's buffer.
	got[0] = 99
	got2, _, _ := ctx.Snapshot()
	if got2[0] != src[0] {
		t.Fatal("snapshot leaked internal buffer to caller")
	}
}

func TestModelInfoUnloaded(t *testing.T) {
	ctx := New(nil)
	format, path, loaded := ctx.ModelInfo()
	if loaded || format != "none" || path != "" {
		t.Fatalf("expected unloaded model info, got format=%q path=%q loaded=%v", format, path, loaded)
	}
}

func TestDestroyIdempotent(t *testing.T) {
	ctx := New(nil)
	if err := ctx.Destroy(); err != nil {
		t.Fatalf("first destroy: %v", err)
	}
	if err := ctx.Destroy(); err != nil {
		t.Fatalf("second destroy: %v", err)
	}
}
