// Package backend implements the format-specific model adapters
// (Darknet, ONNX, NCNN, TensorRT) behind the single Backend contract
// the dispatcher drives: load, predict, unload (spec.md §4.2).
package backend

import (
	"os"
	"path/filepath"

	"github.com/nolovision/ciraedge/internal/cerr"
	"github.com/nolovision/ciraedge/internal/model"
	"github.com/nolovision/ciraedge/internal/yolo"
)

// Format identifies the on-disk model layout a directory or file holds.
type Format int

const (
	FormatUnknown Format = iota
	FormatDarknet
	FormatNCNN
	FormatONNX
	FormatTensorRT
)

func (f Format) String() string {
	switch f {
	case FormatDarknet:
		return "darknet"
	case FormatNCNN:
		return "ncnn"
	case FormatONNX:
		return "onnx"
	case FormatTensorRT:
		return "tensorrt"
	default:
		return "unknown"
	}
}

// Frame is one preprocessed-ready camera frame: packed RGB bytes plus
// its dimensions, the input to every backend's Predict (spec.md §3).
type Frame struct {
	Data   []byte
	Width  int
	Height int
}

// Config carries the dispatcher-resolved thresholds and decode
// parameters into a backend: manifest values where present, the
// backend's own reported dimensions otherwise, hard defaults as the
// last resort (spec.md §4.1 precedence rule).
type Config struct {
	InputW        int
	InputH        int
	ConfThreshold float64
	NMSThreshold  float64
	NumClasses    int
	Version       yolo.Version
	Activations   yolo.Activations
}

// Backend is the uniform contract every format-specific adapter
// implements (spec.md §4.2). Load binds the backend to one model on
// disk; Configure applies dispatcher-resolved thresholds once the
// manifest has been read; Predict runs one forward pass and returns
// canonical detections, normalized and clamped to [0, 1]; Unload releases every resource
// Load acquired.
type Backend interface {
	// Load locates the required files under path, initializes the
	// runtime, and reports the model's native input dimensions.
	Load(path string) (inputW, inputH int, err error)
	// Configure applies resolved thresholds and decode parameters.
	Configure(cfg Config)
	// Predict runs one forward pass over frame and returns decoded
	// detections in normalized top-left+size form, already clamped.
	Predict(frame Frame) ([]model.Detection, error)
	// Unload releases the bound handle and all backend resources.
	Unload() error
}

// DetectFormat implements the directory/file probe order from
// spec.md §4.1: (.cfg+.weights) -> Darknet; (.param+.bin) -> NCNN;
// .onnx -> ONNX; (.engine|.trt) -> TensorRT.
func DetectFormat(path string) (Format, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FormatUnknown, cerr.Wrap(cerr.File, "stat model path", err)
	}

	if !info.IsDir() {
		switch filepath.Ext(path) {
		case ".cfg", ".weights":
			return FormatDarknet, nil
		case ".param", ".bin":
			return FormatNCNN, nil
		case ".onnx":
			return FormatONNX, nil
		case ".engine", ".trt":
			return FormatTensorRT, nil
		default:
			return FormatUnknown, cerr.New(cerr.Model, "unrecognized model file extension")
		}
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return FormatUnknown, cerr.Wrap(cerr.File, "read model directory", err)
	}

	var hasCfg, hasWeights, hasParam, hasBin, hasONNX, hasEngine bool
	for _, e := range entries {
		switch filepath.Ext(e.Name()) {
		case ".cfg":
			hasCfg = true
		case ".weights":
			hasWeights = true
		case ".param":
			hasParam = true
		case ".bin":
			hasBin = true
		case ".onnx":
			hasONNX = true
		case ".engine", ".trt":
			hasEngine = true
		}
	}

	switch {
	case hasCfg && hasWeights:
		return FormatDarknet, nil
	case hasParam && hasBin:
		return FormatNCNN, nil
	case hasONNX:
		return FormatONNX, nil
	case hasEngine:
		return FormatTensorRT, nil
	default:
		return FormatUnknown, cerr.New(cerr.Model, "no recognized model files in directory")
	}
}

// New constructs the backend for the given format. NCNN and TensorRT
// return working stub adapters whose Load reports ErrorModel: no Go
// binding for either runtime exists anywhere in the reference corpus
// this runtime was built from, so the slots stay present but inert
// per spec.md §9's explicit guidance for partial backend paths.
func New(format Format) (Backend, error) {
	switch format {
	case FormatDarknet:
		return NewDarknetBackend(), nil
	case FormatONNX:
		return NewONNXBackend(), nil
	case FormatNCNN:
		return NewNCNNBackend(), nil
	case FormatTensorRT:
		return NewTensorRTBackend(), nil
	default:
		return nil, cerr.New(cerr.Model, "unknown backend format")
	}
}
