package backend

import (
	"github.com/nolovision/ciraedge/internal/cerr"
	"github.com/nolovision/ciraedge/internal/model"
)

// tensorrtBackend is a backend slot for externally-built TensorRT
// .engine/.trt files (spec.md §4.2: "same as ONNX with an externally
// built engine file ... specification-level contract only;
// implementation may be a stub"). No Go TensorRT binding exists
// anywhere in this runtime's reference stack, so Load reports
// ErrorModel rather than attempting cgo against a runtime that may not
// be present on the host.
type tensorrtBackend struct{}

// NewTensorRTBackend constructs the TensorRT stub adapter.
func NewTensorRTBackend() Backend {
	return &tensorrtBackend{}
}

func (b *tensorrtBackend) Configure(Config) {}

func (b *tensorrtBackend) Load(string) (int, int, error) {
	return 0, 0, cerr.New(cerr.Model, "tensorrt backend has no local runtime binding in this build")
}

func (b *tensorrtBackend) Predict(Frame) ([]model.Detection, error) {
	return nil, cerr.New(cerr.Model, "tensorrt backend is not loaded")
}

func (b *tensorrtBackend) Unload() error { return nil }
