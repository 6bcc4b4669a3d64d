// Package capture implements the camera capture worker: it owns the
// camera handle, drives the per-frame loop, publishes frames into the
// context's shared buffer, and invokes predict through the
// non-blocking model-swap-aware path (spec.md §4.4).
//
// Grounded on the teacher's captureFrames/writeFrames loop in NOLO.go:
// a gocv.VideoCapture read loop and a rolling PipelineStats-style FPS
// counter, generalized
// from the RTMP pipeline to the detection pipeline and reduced from a
// producer/consumer channel pair to a single worker goroutine since
// there is no downstream encoder to decouple from.
package capture

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"

	"github.com/nolovision/ciraedge/internal/core"
	"github.com/nolovision/ciraedge/internal/logging"
	"github.com/nolovision/ciraedge/internal/model"
)

// annotatePublisher is the contract the capture worker drives every
// Nth frame to publish an annotated JPEG (spec.md §4.4 step 3). It is
// satisfied by internal/annotate.Publisher; kept as an interface here
// so this package does not import an imaging-heavy dependency it does
// not otherwise need.
type annotatePublisher interface {
	Publish(rgb []byte, w, h int, dets []model.Detection, labels model.Labels) error
}

// everyNth is the annotation cadence from spec.md §4.4.
const everyNth = 3

// retrySleep is the pause between failed frame reads before retrying.
// A failed read is logged (rate-limited) and retried; the worker does
// not exit on repeated read failures and keeps retrying until Stop.
const retrySleep = 50 * time.Millisecond

// Worker drives the camera capture loop in its own goroutine,
// publishing into ctx's shared frame buffer and detection list
// (spec.md §4.4). One Worker is bound to one camera device at a time.
type Worker struct {
	ctx *core.Context
	log *logging.Logger

	reqW, reqH int

	mu       sync.Mutex
	cam      *gocv.VideoCapture
	deviceID int
	running  atomic.Bool
	stopCh   chan struct{}
	doneCh   chan struct{}

	annotator annotatePublisher

	fpsMu       sync.Mutex
	fps         float64
	windowCount int
	windowStart time.Time

	errCount uint64
}

// New constructs a capture worker bound to ctx, requesting (reqW,
// reqH) from the device and accepting whatever the device grants
// (spec.md §4.4).
func New(ctx *core.Context, log *logging.Logger, reqW, reqH int, annotator annotatePublisher) *Worker {
	return &Worker{
		ctx:       ctx,
		log:       log,
		reqW:      reqW,
		reqH:      reqH,
		annotator: annotator,
	}
}

// Start opens deviceID and launches the worker goroutine. It is
// idempotent: calling Start twice on an already-running worker for
// the same device returns nil without reopening the camera (spec.md
// §8 round-trip law).
func (w *Worker) Start(deviceID int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running.Load() && w.deviceID == deviceID {
		return nil
	}
	if w.running.Load() {
		w.stopLocked()
	}

	cam, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return fmt.Errorf("open camera device %d: %w", deviceID, err)
	}
	cam.Set(gocv.VideoCaptureFrameWidth, float64(w.reqW))
	cam.Set(gocv.VideoCaptureFrameHeight, float64(w.reqH))
	cam.Set(gocv.VideoCaptureBufferSize, 1)

	w.cam = cam
	w.deviceID = deviceID
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.running.Store(true)

	go w.run(w.stopCh, w.doneCh, cam)
	return nil
}

// Stop joins the worker and releases the camera. It is idempotent:
// calling Stop on an already-stopped worker returns nil (spec.md §8
// round-trip law). It does not interrupt the current iteration; it
// waits for it to finish (spec.md §5 cancellation rule).
func (w *Worker) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stopLocked()
}

func (w *Worker) stopLocked() error {
	if !w.running.Load() {
		return nil
	}
	close(w.stopCh)
	<-w.doneCh
	w.running.Store(false)
	if w.cam != nil {
		err := w.cam.Close()
		w.cam = nil
		return err
	}
	return nil
}

// Running reports whether the capture loop is currently active.
func (w *Worker) Running() bool { return w.running.Load() }

// FPS returns the capture-side rolling frame rate, recomputed once per
// wall-clock second (spec.md §4.4 step 5).
func (w *Worker) FPS() float64 {
	w.fpsMu.Lock()
	defer w.fpsMu.Unlock()
	return w.fps
}

func (w *Worker) run(stopCh <-chan struct{}, doneCh chan<- struct{}, cam *gocv.VideoCapture) {
	defer close(doneCh)

	frameNum := int64(0)
	mat := gocv.NewMat()
	defer mat.Close()
	rgbMat := gocv.NewMat()
	defer rgbMat.Close()

	rateLimit := logging.NewRateLimited(100)

	for {
		select {
		case <-stopCh:
			return
		default:
		}

		if !cam.Read(&mat) || mat.Empty() {
			w.errCount++
			if rateLimit.Allow() && w.log != nil {
				w.log.Component("capture").WithField("errors", w.errCount).
					Warn("camera read failed, retrying")
			}
			select {
			case <-stopCh:
				return
			case <-time.After(retrySleep):
			}
			continue
		}

		gocv.CvtColor(mat, &rgbMat, gocv.ColorBGRToRGB)
		h, wd := rgbMat.Rows(), rgbMat.Cols()
		data, err := rgbMat.DataPtrUint8()
		if err != nil {
			continue
		}
		w.ctx.SetFrame(data, wd, h)
		w.bumpFPS()

		if frameNum%everyNth == 0 && w.annotator != nil {
			rgbCopy := make([]byte, len(data))
			copy(rgbCopy, data)
			dets := w.ctx.DetectionsForRender()
			if err := w.annotator.Publish(rgbCopy, wd, h, dets, w.ctx.Labels()); err != nil && w.log != nil {
				w.log.Component("capture").WithError(err).Warn("annotated frame publish failed")
			}
		}

		if ran, err := w.ctx.TryPredictImage(data, wd, h, 3); ran && err != nil {
			w.errCount++
			if rateLimit.Allow() && w.log != nil {
				w.log.Component("capture").WithError(err).Warn("predict failed")
			}
		}

		frameNum++
		time.Sleep(time.Millisecond)
	}
}

func (w *Worker) bumpFPS() {
	w.fpsMu.Lock()
	defer w.fpsMu.Unlock()
	if w.windowStart.IsZero() {
		w.windowStart = time.Now()
	}
	w.windowCount++
	if elapsed := time.Since(w.windowStart); elapsed >= time.Second {
		w.fps = float64(w.windowCount) / elapsed.Seconds()
		w.windowCount = 0
		w.windowStart = time.Now()
	}
}

