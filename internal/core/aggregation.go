package core

import (
	"sync"
	"time"

	"github.com/nolovision/ciraedge/internal/model"
)

// HourlyBucket is one hour's worth of rolled-up detection counts,
// the persistence boundary spec.md §1's non-goals explicitly allow
// ("persistence of detection history beyond hourly aggregation" is out
// of scope; the hourly aggregate itself is not).
type HourlyBucket struct {
	HourStart  time.Time
	TotalCount uint64
	ByLabel    map[string]uint64
}

// Aggregator keeps a bounded ring of recent HourlyBuckets in memory.
// It is deliberately not a persistence layer: it survives only for the
// life of the process, matching the non-goal that excludes history
// beyond hourly granularity.
type Aggregator struct {
	mu         sync.Mutex
	maxBuckets int
	buckets    []HourlyBucket
}

// NewAggregator creates an aggregator retaining at most maxBuckets
// hours of history.
func NewAggregator(maxBuckets int) *Aggregator {
	if maxBuckets <= 0 {
		maxBuckets = 24
	}
	return &Aggregator{maxBuckets: maxBuckets}
}

// Record folds a predict call's detections into the bucket for the
// current wall-clock hour, opening a new bucket if the hour rolled
// over since the last call.
func (a *Aggregator) Record(dets []model.Detection, labels model.Labels, now time.Time) {
	if len(dets) == 0 {
		return
	}
	hourStart := now.Truncate(time.Hour)

	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.buckets) == 0 || !a.buckets[len(a.buckets)-1].HourStart.Equal(hourStart) {
		a.buckets = append(a.buckets, HourlyBucket{HourStart: hourStart, ByLabel: make(map[string]uint64)})
		if len(a.buckets) > a.maxBuckets {
			a.buckets = a.buckets[len(a.buckets)-a.maxBuckets:]
		}
	}

	cur := &a.buckets[len(a.buckets)-1]
	cur.TotalCount += uint64(len(dets))
	for _, d := range dets {
		cur.ByLabel[labels.Name(d.ClassID)]++
	}
}

// Recent returns a copy of the retained hourly buckets, oldest first.
func (a *Aggregator) Recent() []HourlyBucket {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]HourlyBucket, len(a.buckets))
	for i, b := range a.buckets {
		byLabel := make(map[string]uint64, len(b.ByLabel))
		for k, v := range b.ByLabel {
			byLabel[k] = v
		}
		out[i] = HourlyBucket{HourStart: b.HourStart, TotalCount: b.TotalCount, ByLabel: byLabel}
	}
	return out
}
