package core

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/nolovision/ciraedge/internal/model"
)

// Stats holds the cumulative, monotonic counters described in
// spec.md §3: total frames, total detections, per-label counts,
// process start time, and FPS recomputed once per second. Grounded on
// the teacher's PipelineStats rolling-counter pattern in NOLO.go,
// generalized from RTMP/PTZ metrics to detection metrics.
type Stats struct {
	startTime time.Time

	totalFrames     atomic.Uint64
	totalDetections atomic.Uint64

	byLabelMu sync.Mutex
	byLabel   map[string]uint64

	fpsMu       sync.Mutex
	fps         float64
	windowStart time.Time
	windowCount uint64
}

// NewStats creates a zeroed tracker with the start time stamped now.
func NewStats() *Stats {
	now := time.Now()
	return &Stats{
		startTime:   now,
		byLabel:     make(map[string]uint64),
		windowStart: now,
	}
}

// AddFrame records one processed frame and rolls the one-second FPS
// window forward if it has elapsed.
func (s *Stats) AddFrame() {
	s.totalFrames.Add(1)

	s.fpsMu.Lock()
	s.windowCount++
	if elapsed := time.Since(s.windowStart); elapsed >= time.Second {
		s.fps = float64(s.windowCount) / elapsed.Seconds()
		s.windowCount = 0
		s.windowStart = time.Now()
	}
	s.fpsMu.Unlock()
}

// AddDetections records a completed predict's emitted detections,
// bumping the total counter and the per-label counter for each one
// (indexed by class id through labels).
func (s *Stats) AddDetections(dets []model.Detection, labels model.Labels) {
	if len(dets) == 0 {
		return
	}
	s.totalDetections.Add(uint64(len(dets)))

	s.byLabelMu.Lock()
	for _, d := range dets {
		s.byLabel[labels.Name(d.ClassID)]++
	}
	s.byLabelMu.Unlock()
}

// Snapshot is an immutable view of the counters for the JSON stats
// view (spec.md §6).
type Snapshot struct {
	TotalFrames     uint64
	TotalDetections uint64
	ByLabel         map[string]uint64
	FPS             float64
	UptimeSec       int64
	StartTime       time.Time
}

// Snapshot reads the current counters without mutating state.
func (s *Stats) Snapshot() Snapshot {
	s.byLabelMu.Lock()
	byLabel := make(map[string]uint64, len(s.byLabel))
	for k, v := range s.byLabel {
		byLabel[k] = v
	}
	s.byLabelMu.Unlock()

	s.fpsMu.Lock()
	fps := s.fps
	s.fpsMu.Unlock()

	return Snapshot{
		TotalFrames:     s.totalFrames.Load(),
		TotalDetections: s.totalDetections.Load(),
		ByLabel:         byLabel,
		FPS:             fps,
		UptimeSec:       int64(time.Since(s.startTime).Seconds()),
		StartTime:       s.startTime,
	}
}
