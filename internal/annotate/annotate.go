// Package annotate draws detections onto a frame and atomically
// publishes the result as a JPEG file for polling clients (spec.md
// §4.5). It is grounded on the teacher's overlay.Renderer box-drawing
// style (gocv.Rectangle/gocv.PutText with a per-class color and a
// "<name> <conf%>" label) reduced from the teacher's military-HUD
// drawing to the plain bounding-box rendering the spec calls for, and
// on the go-coffee example's gocv.IMEncode(JPEGFileExt, ...) JPEG
// encode path.
package annotate

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"gocv.io/x/gocv"

	"github.com/nolovision/ciraedge/internal/cerr"
	"github.com/nolovision/ciraedge/internal/model"
)

// jpegQuality is the encode quality from spec.md §4.5.
const jpegQuality = 85

// palette assigns a stable BGR color per class id, cycled, the same
// approach the teacher's renderer uses for its YOLO overlay colors but
// reduced to a small fixed table instead of an animated HUD palette.
var palette = []color.RGBA{
	{R: 0x00, G: 0x7f, B: 0xff, A: 255}, // light blue
	{R: 0x11, G: 0x8a, B: 0x28, A: 255}, // green
	{R: 0xff, G: 0x8c, B: 0x00, A: 255}, // orange
	{R: 0xff, G: 0x00, B: 0x5a, A: 255}, // pink
	{R: 0xff, G: 0xd7, B: 0x00, A: 255}, // gold
	{R: 0x9b, G: 0x30, B: 0xff, A: 255}, // purple
}

func colorForClass(id int) color.RGBA {
	if id < 0 {
		id = 0
	}
	return palette[id%len(palette)]
}

// State holds the publisher's monotonically increasing frame-file
// sequence number (spec.md §3 "Frame-file state", §4.5 protocol); the
// frame-file path itself comes from Publisher.Path.
type State struct {
	seq atomic.Uint64
}

// Sequence returns the current frame-file sequence number.
func (s *State) Sequence() uint64 { return s.seq.Load() }

// Publisher draws detections and atomically publishes the resulting
// JPEG to <tempDir>/cira_frame_<ctxID>.jpg (spec.md §4.5, §6).
type Publisher struct {
	tempDir string
	ctxID   string

	mu    sync.Mutex
	state State
}

// New constructs a Publisher writing under tempDir, tagged with ctxID
// (so multiple contexts in one process, however unusual per spec.md
// §3, never collide on the same frame-file path).
func New(tempDir, ctxID string) *Publisher {
	return &Publisher{tempDir: tempDir, ctxID: ctxID}
}

// Sequence returns the current frame-file sequence counter, read under
// the frame-file mutex (spec.md §5).
func (p *Publisher) Sequence() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Sequence()
}

// Path returns the canonical (always-current) frame-file path.
func (p *Publisher) Path() string {
	return filepath.Join(p.tempDir, fmt.Sprintf("cira_frame_%s.jpg", p.ctxID))
}

func (p *Publisher) tempPath() string {
	return filepath.Join(p.tempDir, fmt.Sprintf("cira_frame_%s.tmp", p.ctxID))
}

// Publish draws dets onto a copy of the packed-RGB frame, encodes it
// as JPEG (quality 85), writes it to a temp file, and renames it onto
// the canonical path, bumping the sequence counter only after the
// rename succeeds (spec.md §4.5, §5 ordering guarantee).
func (p *Publisher) Publish(rgb []byte, w, h int, dets []model.Detection, labels model.Labels) error {
	if w <= 0 || h <= 0 || len(rgb) < w*h*3 {
		return cerr.New(cerr.Input, "invalid frame for annotation")
	}

	mat, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC3, rgb)
	if err != nil {
		return cerr.Wrap(cerr.Generic, "build annotation mat", err)
	}
	defer mat.Close()

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(mat, &bgr, gocv.ColorRGBToBGR)

	for _, d := range dets {
		drawDetection(&bgr, d, labels, w, h)
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, bgr, []int{gocv.IMWriteJpegQuality, jpegQuality})
	if err != nil {
		return cerr.Wrap(cerr.Generic, "encode annotated jpeg", err)
	}
	defer buf.Close()
	jpegBytes := buf.GetBytes()

	tmp := p.tempPath()
	if err := os.WriteFile(tmp, jpegBytes, 0o644); err != nil {
		return cerr.Wrap(cerr.Generic, "write temp frame file", err)
	}

	target := p.Path()
	p.mu.Lock()
	defer p.mu.Unlock()

	// Atomic rename is required; on platforms where rename does not
	// replace an existing file, unlink the target first (spec.md
	// §4.5). os.Rename already replaces on Linux/macOS; the explicit
	// remove covers the rare platform where it does not.
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(target)
		if err2 := os.Rename(tmp, target); err2 != nil {
			return cerr.Wrap(cerr.Generic, "rename frame file", err2)
		}
	}
	p.state.seq.Add(1)
	return nil
}

func drawDetection(bgr *gocv.Mat, d model.Detection, labels model.Labels, frameW, frameH int) {
	bbox := d.PixelBBox(frameW, frameH)
	rect := image.Rect(bbox[0], bbox[1], bbox[0]+bbox[2], bbox[1]+bbox[3])
	col := colorForClass(d.ClassID)

	gocv.Rectangle(bgr, rect, col, 2)

	label := fmt.Sprintf("%s %.0f%%", labels.Name(d.ClassID), d.Confidence*100)
	textPos := image.Pt(rect.Min.X, rect.Min.Y-6)
	if textPos.Y < 12 {
		textPos.Y = rect.Min.Y + 14
	}
	gocv.PutText(bgr, label, textPos, gocv.FontHersheySimplex, 0.5, col, 1)
}
