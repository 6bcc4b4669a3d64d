package backend

import (
	"image"
	"os"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/nolovision/ciraedge/internal/cerr"
	"github.com/nolovision/ciraedge/internal/imgutil"
	"github.com/nolovision/ciraedge/internal/model"
	"github.com/nolovision/ciraedge/internal/yolo"
)

// rgbBytesToImage copies a packed-RGB frame buffer (3 bytes/pixel, no
// padding) into a new opaque NRGBA image, the same buffer layout the
// capture worker's frame buffer holds (spec.md §3).
func rgbBytesToImage(data []byte, w, h int) image.Image {
	nrgba := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			srcIdx := (y*w + x) * 3
			if srcIdx+2 >= len(data) {
				continue
			}
			dstIdx := nrgba.PixOffset(x, y)
			nrgba.Pix[dstIdx+0] = data[srcIdx+0]
			nrgba.Pix[dstIdx+1] = data[srcIdx+1]
			nrgba.Pix[dstIdx+2] = data[srcIdx+2]
			nrgba.Pix[dstIdx+3] = 255
		}
	}
	return nrgba
}

// onnxBackend adapts an ONNX Runtime session via onnxruntime_go
// (grounded on SkyClf's ORTPredictor: a session created at Load, and a
// reload path that swaps the session under a mutex rather than
// rebuilding the adapter). The session is a dynamic one; input tensors
// are allocated on every Predict call.
type onnxBackend struct {
	mu sync.Mutex

	session   *ort.DynamicAdvancedSession
	loaded    bool
	inputW    int
	inputH    int
	inputName string

	version       yolo.Version
	confThreshold float64
	nmsThreshold  float64
	numClasses    int
	activations   yolo.Activations

	// nhwc records the input-tensor layout probed at Load time (spec.md
	// §4.2): NHWC when the last dimension is small (<=4) and the second
	// is larger, NCHW otherwise.
	nhwc bool
}

// NewONNXBackend constructs an unloaded ONNX Runtime adapter.
func NewONNXBackend() Backend {
	return &onnxBackend{
		inputW:        model.DefaultInputSize,
		inputH:        model.DefaultInputSize,
		confThreshold: model.DefaultConfidenceThreshold,
		nmsThreshold:  model.DefaultNMSThreshold,
		inputName:     "images",
		version:       yolo.VersionAuto,
	}
}

func (b *onnxBackend) Configure(cfg Config) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cfg.InputW > 0 && cfg.InputH > 0 {
		b.inputW, b.inputH = cfg.InputW, cfg.InputH
	}
	if cfg.ConfThreshold > 0 {
		b.confThreshold = cfg.ConfThreshold
	}
	if cfg.NMSThreshold > 0 {
		b.nmsThreshold = cfg.NMSThreshold
	}
	if cfg.NumClasses > 0 {
		b.numClasses = cfg.NumClasses
	}
	b.version = cfg.Version
	b.activations = cfg.Activations
}

func (b *onnxBackend) Load(path string) (int, int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	onnxPath, err := findONNXFile(path)
	if err != nil {
		return 0, 0, err
	}

	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return 0, 0, cerr.Wrap(cerr.Model, "initialize onnxruntime environment", err)
		}
	}

	// external-data .onnx.data files resolve relative to the working
	// directory; onnxruntime_go only accepts a path, so we run the
	// session creation from the model's own directory.
	modelDir := filepath.Dir(onnxPath)
	origDir, err := os.Getwd()
	if err != nil {
		return 0, 0, cerr.Wrap(cerr.Generic, "get working directory", err)
	}
	if err := os.Chdir(modelDir); err != nil {
		return 0, 0, cerr.Wrap(cerr.File, "chdir to model directory", err)
	}
	defer os.Chdir(origDir)

	modelFile := filepath.Base(onnxPath)

	inputs, _, err := ort.GetInputOutputInfo(modelFile)
	if err != nil {
		return 0, 0, cerr.Wrap(cerr.Model, "probe onnx input tensor info", err)
	}
	if len(inputs) == 0 {
		return 0, 0, cerr.New(cerr.Model, "onnx model declares no input tensor")
	}
	if inputs[0].Name != "" {
		b.inputName = inputs[0].Name
	}
	nhwc, probedW, probedH := probeInputLayout(inputs[0].Dimensions)
	b.nhwc = nhwc

	sess, err := ort.NewDynamicAdvancedSession(
		modelFile,
		[]string{b.inputName},
		[]string{"output0"},
		nil,
	)
	if err != nil {
		return 0, 0, cerr.Wrap(cerr.Model, "create onnxruntime session", err)
	}

	if b.loaded && b.session != nil {
		b.session.Destroy()
	}
	b.session = sess
	b.loaded = true
	return probedW, probedH, nil
}

// probeInputLayout inspects the ONNX model's declared input tensor
// dimensions and selects NHWC vs NCHW per spec.md §4.2: NHWC when the
// last dimension is small (<=4 channels) and the second dimension is
// larger; NCHW otherwise. The batch dimension is always driven as 1
// regardless of what is declared, the spec's "dynamic batch dimension
// (<= 0) is clamped to 1" rule. A declared-dynamic (<=0) spatial
// dimension is reported as 0 so the caller falls back through the
// manifest/backend/hard-default precedence chain (spec.md §4.2's
// "dynamic spatial dimensions default to 416" resolves there).
func probeInputLayout(dims []int64) (nhwc bool, w, h int) {
	if len(dims) != 4 {
		return false, 0, 0
	}
	d1, d2, d3 := dims[1], dims[2], dims[3]

	if d3 > 0 && d3 <= 4 && d1 > d3 {
		if d1 > 0 {
			h = int(d1)
		}
		if d2 > 0 {
			w = int(d2)
		}
		return true, w, h
	}

	if d2 > 0 {
		h = int(d2)
	}
	if d3 > 0 {
		w = int(d3)
	}
	return false, w, h
}

func (b *onnxBackend) Predict(frame Frame) ([]model.Detection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.loaded {
		return nil, cerr.New(cerr.Model, "onnx backend has no bound model")
	}
	if len(frame.Data) == 0 || frame.Width <= 0 || frame.Height <= 0 {
		return nil, cerr.New(cerr.Input, "invalid frame buffer")
	}

	img := rgbBytesToImage(frame.Data, frame.Width, frame.Height)
	lb := imgutil.ComputeLetterbox(frame.Width, frame.Height, b.inputW)

	var inShape ort.Shape
	var planar []float32
	if b.nhwc {
		inShape = ort.NewShape(1, int64(b.inputH), int64(b.inputW), 3)
		planar = imgutil.RGBToHWCFloat32(img, lb)
	} else {
		inShape = ort.NewShape(1, 3, int64(b.inputH), int64(b.inputW))
		planar = imgutil.RGBToCHWFloat32(img, lb)
	}

	inTensor, err := ort.NewTensor(inShape, planar)
	if err != nil {
		return nil, cerr.Wrap(cerr.Memory, "allocate onnx input tensor", err)
	}
	defer inTensor.Destroy()

	outputs, err := b.session.Run([]ort.Value{inTensor}, []ort.Value{nil})
	if err != nil {
		return nil, cerr.Wrap(cerr.Model, "onnx inference run failed", err)
	}

	var allBoxes []yolo.Box
	for _, out := range outputs {
		tensor, ok := out.(*ort.Tensor[float32])
		if !ok {
			continue
		}
		shape := intShape(tensor.GetShape())
		cfg := yolo.Config{
			Version:       b.version,
			InputW:        b.inputW,
			InputH:        b.inputH,
			NumClasses:    b.numClasses,
			ConfThreshold: b.confThreshold,
			NMSThreshold:  b.nmsThreshold,
			MaxDetections: model.MaxDetections,
			Activations:   b.activations,
		}
		boxes, ok := yolo.Decode(tensor.GetData(), shape, cfg)
		if ok {
			allBoxes = append(allBoxes, boxes...)
		}
		out.Destroy()
	}

	// Load binds only the output named "output0", so outputs holds a
	// single tensor; other outputs of a multi-scale model are not read.
	// The NMS below runs over that one tensor's decoded boxes.
	allBoxes = yolo.NMS(allBoxes, b.nmsThreshold)
	if len(allBoxes) > model.MaxDetections {
		allBoxes = allBoxes[:model.MaxDetections]
	}

	out := make([]model.Detection, 0, len(allBoxes))
	for _, box := range allBoxes {
		fx1, fy1 := lb.ToContentSpace(box.X1/float64(b.inputW), box.Y1/float64(b.inputH))
		fx2, fy2 := lb.ToContentSpace(box.X2/float64(b.inputW), box.Y2/float64(b.inputH))

		d := model.Detection{
			X:          fx1,
			Y:          fy1,
			W:          fx2 - fx1,
			H:          fy2 - fy1,
			Confidence: box.Score,
			ClassID:    box.ClassID,
		}
		d.Clamp()
		out = append(out, d)
	}
	return out, nil
}

func (b *onnxBackend) Unload() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.loaded && b.session != nil {
		b.session.Destroy()
	}
	b.loaded = false
	return nil
}

func intShape(s ort.Shape) []int {
	out := make([]int, len(s))
	for i, v := range s {
		out[i] = int(v)
	}
	return out
}

func findONNXFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", cerr.Wrap(cerr.File, "stat onnx model path", err)
	}
	if !info.IsDir() {
		return path, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return "", cerr.Wrap(cerr.File, "read onnx model directory", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".onnx" {
			return filepath.Join(path, e.Name()), nil
		}
	}
	return "", cerr.New(cerr.File, "onnx model directory missing .onnx file")
}
