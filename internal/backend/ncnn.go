package backend

import (
	"github.com/nolovision/ciraedge/internal/cerr"
	"github.com/nolovision/ciraedge/internal/model"
)

// ncnnBackend is a backend slot for Tencent NCNN's .param/.bin format
// (spec.md §4.1 format table). No Go binding for NCNN exists in this
// runtime's dependency stack; the slot stays present so format
// detection and the dispatcher's load path are complete, but Load
// always fails with ErrorModel until a binding is wired in (spec.md §9:
// "leave the slot present but return Model errors from load until
// implemented").
type ncnnBackend struct{}

// NewNCNNBackend constructs the NCNN stub adapter.
func NewNCNNBackend() Backend {
	return &ncnnBackend{}
}

func (b *ncnnBackend) Configure(Config) {}

func (b *ncnnBackend) Load(string) (int, int, error) {
	return 0, 0, cerr.New(cerr.Model, "ncnn backend has no local runtime binding in this build")
}

func (b *ncnnBackend) Predict(Frame) ([]model.Detection, error) {
	return nil, cerr.New(cerr.Model, "ncnn backend is not loaded")
}

func (b *ncnnBackend) Unload() error { return nil }
