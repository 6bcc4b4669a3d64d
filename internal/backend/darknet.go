package backend

import (
	"image"
	"os"
	"path/filepath"
	"sync"

	"gocv.io/x/gocv"

	"github.com/nolovision/ciraedge/internal/cerr"
	"github.com/nolovision/ciraedge/internal/imgutil"
	"github.com/nolovision/ciraedge/internal/model"
	"github.com/nolovision/ciraedge/internal/yolo"
)

// darknetBackend adapts a Darknet .cfg/.weights pair via gocv's DNN
// module (grounded on the teacher's YOLOv3Model/cpu_provider/gpu_provider
// and createOptimizedBlob letterboxing).
type darknetBackend struct {
	mu sync.Mutex

	net     gocv.Net
	loaded  bool
	inputW  int
	inputH  int
	version yolo.Version

	confThreshold float64
	nmsThreshold  float64
	numClasses    int
	activations   yolo.Activations
}

// NewDarknetBackend constructs an unloaded Darknet adapter.
func NewDarknetBackend() Backend {
	return &darknetBackend{
		inputW:        model.DefaultInputSize,
		inputH:        model.DefaultInputSize,
		confThreshold: model.DefaultConfidenceThreshold,
		nmsThreshold:  model.DefaultNMSThreshold,
		version:       yolo.VersionAuto,
	}
}

// Configure applies manifest/label overrides before or after Load; the
// dispatcher calls this once it has read the manifest (spec.md §4.1
// precedence: manifest > backend-reported > hard default).
func (b *darknetBackend) Configure(cfg Config) {
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

func (b *darknetBackend) Load(path string) (int, int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cfgPath, weightsPath, err := findDarknetFiles(path)
	if err != nil {
		return 0, 0, err
	}

	net := gocv.ReadNet(weightsPath, cfgPath)
	if net.Empty() {
		return 0, 0, cerr.New(cerr.Model, "darknet backend rejected model files")
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	b.net = net
	b.loaded = true
	return b.inputW, b.inputH, nil
}

func (b *darknetBackend) Predict(frame Frame) ([]model.Detection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.loaded {
		return nil, cerr.New(cerr.Model, "darknet backend has no bound model")
	}
	if len(frame.Data) == 0 || frame.Width <= 0 || frame.Height <= 0 {
		return nil, cerr.New(cerr.Input, "invalid frame buffer")
	}

	mat, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Data)
	if err != nil {
		return nil, cerr.Wrap(cerr.Input, "build frame mat", err)
	}
	defer mat.Close()

	lb := imgutil.ComputeLetterbox(frame.Width, frame.Height, b.inputW)
	letterboxed := gocv.NewMatWithSize(b.inputW, b.inputW, gocv.MatTypeCV8UC3)
	defer letterboxed.Close()
	letterboxed.SetTo(gocv.NewScalar(0, 0, 0, 0))

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(mat, &resized, image.Pt(lb.ContentW, lb.ContentH), 0, 0, gocv.InterpolationLinear)

	contentROI := letterboxed.Region(image.Rect(lb.OffsetX, lb.OffsetY, lb.OffsetX+lb.ContentW, lb.OffsetY+lb.ContentH))
	resized.CopyTo(&contentROI)
	contentROI.Close()

	blob := gocv.BlobFromImage(letterboxed, 1.0/255.0, image.Pt(b.inputW, b.inputW), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	b.net.SetInput(blob, "")
	output := b.net.Forward("")
	defer output.Close()

	tensor, shape := matToTensor(output)

	cfg := yolo.Config{
		Version:       b.version,
		InputW:        b.inputW,
		InputH:        b.inputW,
		NumClasses:    b.numClasses,
		ConfThreshold: b.confThreshold,
		NMSThreshold:  b.nmsThreshold,
		MaxDetections: model.MaxDetections,
		Activations:   b.activations,
	}

	boxes, ok := yolo.Decode(tensor, shape, cfg)
	if !ok {
		return nil, nil
	}

	out := make([]model.Detection, 0, len(boxes))
	for _, box := range boxes {
		fx1, fy1 := lb.ToContentSpace(box.X1/float64(b.inputW), box.Y1/float64(b.inputW))
		fx2, fy2 := lb.ToContentSpace(box.X2/float64(b.inputW), box.Y2/float64(b.inputW))

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

func (b *darknetBackend) Unload() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.loaded {
		b.net.Close()
		b.loaded = false
	}
	return nil
}

// matToTensor flattens a gocv output Mat into a row-major float32
// tensor plus its shape, the common boundary between OpenCV's DNN
// output and the backend-agnostic decoder.
func matToTensor(m gocv.Mat) ([]float32, []int) {
	rows, cols := m.Rows(), m.Cols()
	shape := []int{1, rows, cols}
	tensor := make([]float32, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			tensor[r*cols+c] = m.GetFloatAt(r, c)
		}
	}
	return tensor, shape
}

func findDarknetFiles(dir string) (cfgPath, weightsPath string, err error) {
	entries, readErr := os.ReadDir(dir)
	if readErr != nil {
		return "", "", cerr.Wrap(cerr.File, "read darknet model directory", readErr)
	}
	for _, e := range entries {
		switch filepath.Ext(e.Name()) {
		case ".cfg":
			cfgPath = filepath.Join(dir, e.Name())
		case ".weights":
			weightsPath = filepath.Join(dir, e.Name())
		}
	}
	if cfgPath == "" || weightsPath == "" {
		return "", "", cerr.New(cerr.File, "darknet model directory missing .cfg or .weights")
	}
	return cfgPath, weightsPath, nil
}
