package cerr

import "testing"

func TestKindStatus(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{Generic, -1},
		{File, -2},
		{Model, -3},
		{Memory, -4},
		{Input, -5},
	}
	for _, c := range cases {
		if got := c.kind.Status(); got != c.want {
			t.Errorf("%v.Status() = %d, want %d", c.kind, got, c.want)
		}
	}
}

func TestWrapUnwrap(t *testing.T) {
	cause := New(Generic, "cause")
	wrapped := Wrap(Model, "context", cause)
	if wrapped.Unwrap() != cause {
		t.Fatal("expected Unwrap to return the wrapped cause")
	}
	if KindOf(wrapped) != Model {
		t.Fatalf("expected Model kind, got %v", KindOf(wrapped))
	}
}

func TestKindOfPlainError(t *testing.T) {
	if KindOf(errPlaceholder{}) != Generic {
		t.Fatal("expected Generic for a non-*Error")
	}
}

type errPlaceholder struct{}

func (errPlaceholder) Error() string { return "plain" }
