// Package core implements the dispatcher/context: the single owner of
// the bound backend, label table, thresholds, detection list, and
// cumulative statistics, serializing load/predict/unload across the
// capture worker, the HTTP service, and the foreground caller
// (spec.md §4.1, §5).
package core

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nolovision/ciraedge/internal/backend"
	"github.com/nolovision/ciraedge/internal/cerr"
	"github.com/nolovision/ciraedge/internal/logging"
	"github.com/nolovision/ciraedge/internal/model"
	"github.com/nolovision/ciraedge/internal/yolo"
)

// State is the context lifecycle state (spec.md §3).
type State int

const (
	StateReady State = iota
	StateLoading
	StateError
)

// Context is the single dispatcher instance a process runs. One
// context per process is the normal configuration; nothing here
// prevents more, but nothing requires it either (spec.md §3).
type Context struct {
	log *logging.Logger

	// model mutex: the bound backend handle and format tag.
	modelMu  sync.Mutex
	swapping atomic.Bool
	be       backend.Backend
	format   backend.Format
	modelDir string

	labels   model.Labels
	manifest model.Manifest

	inputW, inputH int
	confThreshold  float64
	nmsThreshold   float64
	version        yolo.Version

	state   State
	lastErr string

	// result mutex: detection list, JSON buffer, previous-detections
	// persistence state.
	resultMu     sync.Mutex
	detections   []model.Detection
	prevDetect   []model.Detection
	emptyStreak  int
	resultJSON   []byte
	lastFrameW   int
	lastFrameH   int

	// frame mutex: the shared frame buffer and its dimensions (spec.md
	// §3, §5). The capture worker is the only writer; snapshot/stream
	// readers take a copy under this lock.
	frameMu sync.RWMutex
	frame   []byte
	frameW  int
	frameH  int

	stats *Stats
	agg   *Aggregator
}

// New creates a context in the default READY state (spec.md §4.1
// contract: input 416x416, conf 0.5, nms 0.4, auto version, empty
// tables, zeroed statistics).
func New(log *logging.Logger) *Context {
	return &Context{
		log:           log,
		inputW:        model.DefaultInputSize,
		inputH:        model.DefaultInputSize,
		confThreshold: model.DefaultConfidenceThreshold,
		nmsThreshold:  model.DefaultNMSThreshold,
		version:       yolo.VersionAuto,
		state:         StateReady,
		stats:         NewStats(),
		agg:           NewAggregator(24),
		resultJSON:    []byte(`{"detections":[],"count":0}`),
	}
}

// SetFrame publishes a newly captured frame into the shared buffer,
// reallocating it if the resolution changed (spec.md §3 "Frame
// buffer"). It is the capture worker's exclusive write path; readers
// take Snapshot under the same lock (spec.md §5 frame mutex).
func (c *Context) SetFrame(data []byte, w, h int) {
	c.frameMu.Lock()
	defer c.frameMu.Unlock()
	if cap(c.frame) < len(data) {
		c.frame = make([]byte, len(data))
	} else {
		c.frame = c.frame[:len(data)]
	}
	copy(c.frame, data)
	c.frameW, c.frameH = w, h
}

// Snapshot copies the current frame buffer out under the frame mutex
// so callers never hold the lock across network I/O or JPEG encoding
// (spec.md §5 suspension-point rule). It reports ErrorGeneric-taxonomy
// "no frame yet" via a nil slice when no frame has ever been captured.
func (c *Context) Snapshot() (data []byte, w, h int) {
	c.frameMu.RLock()
	defer c.frameMu.RUnlock()
	if c.frame == nil {
		return nil, 0, 0
	}
	out := make([]byte, len(c.frame))
	copy(out, c.frame)
	return out, c.frameW, c.frameH
}

// Load transitions READY -> LOADING -> READY on success, or -> ERROR
// on failure (spec.md §4.1). A context that already has a backend
// bound first unloads it.
func (c *Context) Load(path string) error {
	if path == "" {
		return cerr.New(cerr.Input, "model path is empty")
	}

	format, err := backend.DetectFormat(path)
	if err != nil {
		c.setError(err)
		return err
	}

	be, err := backend.New(format)
	if err != nil {
		c.setError(err)
		return err
	}

	labels, err := model.LoadLabels(path)
	if err != nil {
		c.setError(err)
		return err
	}

	manifest, err := model.LoadManifest(path)
	if err != nil {
		c.setError(err)
		return err
	}

	c.modelMu.Lock()
	defer c.modelMu.Unlock()

	c.swapping.Store(true)
	defer c.swapping.Store(false)

	c.state = StateLoading

	if c.be != nil {
		_ = c.be.Unload()
		c.be = nil
	}

	reportedW, reportedH, err := be.Load(path)
	if err != nil {
		c.state = StateError
		c.lastErr = err.Error()
		return err
	}

	inputW, inputH := manifest.ResolvedInputSize()
	if inputW == 0 || inputH == 0 {
		if reportedW > 0 && reportedH > 0 {
			inputW, inputH = reportedW, reportedH
		} else {
			inputW, inputH = model.DefaultInputSize, model.DefaultInputSize
		}
	}

	confThreshold := model.DefaultConfidenceThreshold
	if manifest.ConfidenceThreshold != nil {
		confThreshold = *manifest.ConfidenceThreshold
	}
	nmsThreshold := model.DefaultNMSThreshold
	if manifest.NMSThreshold != nil {
		nmsThreshold = *manifest.NMSThreshold
	}
	numClasses := manifest.NumClasses
	if numClasses == 0 {
		numClasses = labels.Len()
	}
	version := yolo.ParseVersion(manifest.YOLOVersion)

	be.Configure(backend.Config{
		InputW:        inputW,
		InputH:        inputH,
		ConfThreshold: confThreshold,
		NMSThreshold:  nmsThreshold,
		NumClasses:    numClasses,
		Version:       version,
		Activations:   activationsFromManifest(manifest.Activations),
	})

	c.be = be
	c.format = format
	c.modelDir = path
	c.labels = labels
	c.manifest = manifest
	c.inputW, c.inputH = inputW, inputH
	c.confThreshold = confThreshold
	c.nmsThreshold = nmsThreshold
	c.version = version
	c.state = StateReady
	c.lastErr = ""

	if c.log != nil {
		c.log.Component("core").WithField("format", format.String()).
			WithField("input_w", inputW).WithField("input_h", inputH).
			Info("model loaded")
	}
	return nil
}

func (c *Context) setError(err error) {
	c.modelMu.Lock()
	c.state = StateError
	c.lastErr = err.Error()
	c.modelMu.Unlock()
}

// PredictImage runs one forward pass over a packed-RGB frame buffer
// and rebuilds the shared detection list and JSON view (spec.md
// §4.1). It holds the model mutex for the entire call, the same
// non-blocking discipline the capture worker uses (spec.md §5 "the
// predict path (tries non-blocking)"), so a concurrent load_model
// cannot rebind the backend out from under an in-flight predict:
// load_model serializes behind any predict already holding the lock,
// and a predict that cannot acquire it fails fast with ErrorModel
// rather than racing the swap (spec.md §5 model-swap protocol,
// scenario 4).
func (c *Context) PredictImage(data []byte, w, h, channels int) error {
	if channels != 3 || data == nil || w <= 0 || h <= 0 {
		return cerr.New(cerr.Input, "invalid frame buffer")
	}

	if c.swapping.Load() {
		return cerr.New(cerr.Model, "model swap in progress")
	}
	if !c.modelMu.TryLock() {
		return cerr.New(cerr.Model, "model swap in progress")
	}
	defer c.modelMu.Unlock()

	return c.predictLocked(data, w, h)
}

// predictLocked runs the forward pass and republishes the shared
// result view against the backend bound under modelMu. Callers must
// hold modelMu for the duration of this call.
func (c *Context) predictLocked(data []byte, w, h int) error {
	be := c.be
	if be == nil {
		return cerr.New(cerr.Model, "no backend bound")
	}

	c.resultMu.Lock()
	c.detections = c.detections[:0]
	c.resultMu.Unlock()

	dets, err := be.Predict(backend.Frame{Data: data, Width: w, Height: h})
	if err != nil {
		return err
	}
	if len(dets) > model.MaxDetections {
		dets = dets[:model.MaxDetections]
	}

	c.stats.AddFrame()
	c.stats.AddDetections(dets, c.labels)
	c.agg.Record(dets, c.labels, time.Now())

	c.resultMu.Lock()
	c.detections = dets
	if len(dets) > 0 {
		c.prevDetect = dets
		c.emptyStreak = 0
	} else {
		c.emptyStreak++
	}
	c.lastFrameW, c.lastFrameH = w, h
	c.resultJSON = buildResultJSON(dets, w, h, c.labels)
	c.resultMu.Unlock()

	return nil
}

// PredictBatch runs predict_image sequentially over each frame in
// order, stopping at the first error (spec.md §4.1: "sequential
// iteration over predict_image; no shared batching is required"). The
// result view after return reflects only the last frame processed.
func (c *Context) PredictBatch(frames []struct {
	Data          []byte
	W, H, Channels int
}) error {
	for i, f := range frames {
		if err := c.PredictImage(f.Data, f.W, f.H, f.Channels); err != nil {
			return fmt.Errorf("predict_batch: frame %d: %w", i, err)
		}
	}
	return nil
}

// TryPredictImage is the capture worker's non-blocking entry point:
// it only predicts if the model mutex is free and no swap is in
// progress, silently skipping the iteration otherwise (spec.md §4.4
// step 4, §5 model-swap protocol). The model mutex is held for the
// full duration of the predict call, not just the lookup of the bound
// backend, so load_model cannot rebind or unload the backend while
// this predict is still running against it (spec.md §5 scenario 4).
func (c *Context) TryPredictImage(data []byte, w, h, channels int) (ran bool, err error) {
	if channels != 3 || data == nil || w <= 0 || h <= 0 {
		return false, nil
	}
	if c.swapping.Load() {
		return false, nil
	}
	if !c.modelMu.TryLock() {
		return false, nil
	}
	defer c.modelMu.Unlock()

	if c.be == nil {
		return false, nil
	}
	if err := c.predictLocked(data, w, h); err != nil {
		return true, err
	}
	return true, nil
}

// ResultJSON returns the stable JSON view of the most recent
// detection list, under the result mutex (spec.md §4.1, §4.6).
func (c *Context) ResultJSON() []byte {
	c.resultMu.Lock()
	defer c.resultMu.Unlock()
	out := make([]byte, len(c.resultJSON))
	copy(out, c.resultJSON)
	return out
}

// ResultCount returns the number of detections in the most recent list.
func (c *Context) ResultCount() int {
	c.resultMu.Lock()
	defer c.resultMu.Unlock()
	return len(c.detections)
}

// DetectionsForRender returns the list to annotate: the current list,
// or the previous non-empty list if the current one is empty and
// fewer than 3 frames have elapsed since it went empty (spec.md §4.5
// anti-flicker rule). The JSON/stats view is unaffected by this rule.
func (c *Context) DetectionsForRender() []model.Detection {
	c.resultMu.Lock()
	defer c.resultMu.Unlock()
	if len(c.detections) > 0 || c.emptyStreak >= 3 || len(c.prevDetect) == 0 {
		out := make([]model.Detection, len(c.detections))
		copy(out, c.detections)
		return out
	}
	out := make([]model.Detection, len(c.prevDetect))
	copy(out, c.prevDetect)
	return out
}

// Labels returns the currently loaded label table.
func (c *Context) Labels() model.Labels {
	c.modelMu.Lock()
	defer c.modelMu.Unlock()
	return c.labels
}

// ModelInfo reports the bound backend's format and directory for the
// stats view (spec.md §6 "model_name"/"model_path").
func (c *Context) ModelInfo() (format string, path string, loaded bool) {
	c.modelMu.Lock()
	defer c.modelMu.Unlock()
	if c.be == nil {
		return "none", "", false
	}
	return c.format.String(), c.modelDir, true
}

// Stats exposes the cumulative statistics tracker.
func (c *Context) Stats() *Stats { return c.stats }

// Aggregator exposes the hourly detection rollup (spec.md §1 "persistence
// of detection history beyond hourly aggregation" is the non-goal boundary;
// the hourly bucket itself is in scope).
func (c *Context) Aggregator() *Aggregator { return c.agg }

// Destroy idempotently unloads the backend and releases buffers
// (spec.md §4.1). Stopping the capture worker and HTTP service is the
// caller's responsibility at the harness level.
func (c *Context) Destroy() error {
	c.frameMu.Lock()
	c.frame = nil
	c.frameW, c.frameH = 0, 0
	c.frameMu.Unlock()

	c.modelMu.Lock()
	defer c.modelMu.Unlock()
	if c.be != nil {
		err := c.be.Unload()
		c.be = nil
		return err
	}
	return nil
}

// resultJSONView mirrors the wire format in spec.md §6.
type resultJSONView struct {
	Detections []detectionJSON `json:"detections"`
	Count      int             `json:"count"`
}

type detectionJSON struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	BBox       [4]int  `json:"bbox"`
}

// maxResultJSONBytes bounds the encoded result buffer (spec.md §6).
const maxResultJSONBytes = 64 * 1024

func buildResultJSON(dets []model.Detection, frameW, frameH int, labels model.Labels) []byte {
	view := resultJSONView{Detections: make([]detectionJSON, 0, len(dets)), Count: len(dets)}
	for _, d := range dets {
		view.Detections = append(view.Detections, detectionJSON{
			Label:      labels.Name(d.ClassID),
			Confidence: round3(d.Confidence),
			BBox:       d.PixelBBox(frameW, frameH),
		})
	}

	buf, err := json.Marshal(view)
	if err != nil {
		return []byte(`{"detections":[],"count":0}`)
	}

	// Total encoded size is bounded; once it would overflow, further
	// detections are omitted while count still reflects all emitted
	// detections (spec.md §4.1).
	for len(buf) > maxResultJSONBytes && len(view.Detections) > 0 {
		view.Detections = view.Detections[:len(view.Detections)-1]
		buf, err = json.Marshal(view)
		if err != nil {
			return []byte(`{"detections":[],"count":0}`)
		}
	}
	return buf
}

// activationsFromManifest maps the manifest's pre-/post-activation
// declaration onto the decoder's own enum, resolving spec.md §9's open
// question by forwarding an explicit manifest override straight into
// the backend's decode configuration.
func activationsFromManifest(a model.Activations) yolo.Activations {
	switch a {
	case model.ActivationsApplied:
		return yolo.ActivationsApplied
	case model.ActivationsRaw:
		return yolo.ActivationsRaw
	default:
		return yolo.ActivationsAuto
	}
}

func round3(v float64) float64 {
	return float64(int64(v*1000+0.5)) / 1000
}
