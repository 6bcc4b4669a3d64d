package annotate

import (
	"testing"

	"github.com/nolovision/ciraedge/internal/cerr"
	"github.com/nolovision/ciraedge/internal/model"
)

func TestColorForClassCyclesAndHandlesNegative(t *testing.T) {
	c0 := colorForClass(0)
	cWrap := colorForClass(len(palette))
	if c0 != cWrap {
		t.Fatalf("expected palette to cycle: %v != %v", c0, cWrap)
	}
	// Out-of-range negative class ids must not panic or index out of bounds.
	_ = colorForClass(-5)
}

func TestPublishRejectsUndersizedBuffer(t *testing.T) {
	p := New(t.TempDir(), "test")
	err := p.Publish(make([]byte, 4), 4, 4, nil, model.Labels{})
	if err == nil {
		t.Fatal("expected error for undersized frame buffer")
	}
	if cerr.KindOf(err) != cerr.Input {
		t.Fatalf("expected Input kind, got %v", cerr.KindOf(err))
	}
}

func TestSequenceStartsAtZero(t *testing.T) {
	p := New(t.TempDir(), "test")
	if p.Sequence() != 0 {
		t.Fatalf("expected sequence 0 before any publish, got %d", p.Sequence())
	}
}

func TestPathIncludesContextID(t *testing.T) {
	p := New("/tmp", "7")
	want := "/tmp/cira_frame_7.jpg"
	if got := p.Path(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
