package model

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/nolovision/ciraedge/internal/cerr"
)

// MaxManifestBytes bounds cira_model.json reads (spec.md §6).
const MaxManifestBytes = 64 * 1024

// Activations records whether a manifest declares its outputs pre- or
// post-activation, resolving the open question in spec.md §9/SPEC_FULL.md.
type Activations int

const (
	// ActivationsAuto defers to the out-of-range heuristic.
	ActivationsAuto Activations = iota
	ActivationsApplied
	ActivationsRaw
)

// Manifest is the cira_model.json sidecar (spec.md §3). Zero value is the
// all-defaults manifest described there.
type Manifest struct {
	YOLOVersion         string
	InputSize           int
	InputWidth          int
	InputHeight         int
	ConfidenceThreshold *float64
	NMSThreshold        *float64
	NumClasses          int
	Activations         Activations
}

// manifestJSON mirrors the recognized fields for decoding; unrecognized
// fields are ignored by encoding/json automatically.
type manifestJSON struct {
	YOLOVersion         string   `json:"yolo_version"`
	InputSize           int      `json:"input_size"`
	InputWidth          int      `json:"input_width"`
	InputHeight         int      `json:"input_height"`
	ConfidenceThreshold *float64 `json:"confidence_threshold"`
	NMSThreshold        *float64 `json:"nms_threshold"`
	NumClasses          int      `json:"num_classes"`
	Activations         string   `json:"activations"`
}

// LoadManifest reads cira_model.json from dir if present, using a real
// streaming decoder rather than substring search (spec.md §9 design note).
// A missing or malformed manifest is not an error: the caller receives the
// zero-value (all-defaults) Manifest.
func LoadManifest(dir string) (Manifest, error) {
	path := filepath.Join(dir, "cira_model.json")
	f, err := os.Open(path)
	if err != nil {
		return Manifest{}, nil
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Manifest{}, nil
	}
	if info.Size() > MaxManifestBytes {
		return Manifest{}, cerr.New(cerr.File, "manifest exceeds size cap")
	}

	var raw manifestJSON
	dec := json.NewDecoder(io.LimitReader(f, MaxManifestBytes))
	if err := dec.Decode(&raw); err != nil {
		// Malformed manifest is not an error per spec.md §4.1: defaults stand.
		return Manifest{}, nil
	}

	m := Manifest{
		YOLOVersion: raw.YOLOVersion,
		InputSize:   raw.InputSize,
		InputWidth:  raw.InputWidth,
		InputHeight: raw.InputHeight,
		NumClasses:  raw.NumClasses,
	}
	if raw.ConfidenceThreshold != nil {
		m.ConfidenceThreshold = raw.ConfidenceThreshold
	}
	if raw.NMSThreshold != nil {
		m.NMSThreshold = raw.NMSThreshold
	}
	switch raw.Activations {
	case "applied":
		m.Activations = ActivationsApplied
	case "raw":
		m.Activations = ActivationsRaw
	default:
		m.Activations = ActivationsAuto
	}
	if m.YOLOVersion == "" {
		m.YOLOVersion = "auto"
	}
	return m, nil
}

// ResolvedInputSize returns the width/height the manifest overrides to, or
// (0, 0) if it does not override (spec.md §3 precedence rules).
func (m Manifest) ResolvedInputSize() (w, h int) {
	if m.InputWidth > 0 && m.InputHeight > 0 {
		return m.InputWidth, m.InputHeight
	}
	if m.InputSize > 0 {
		return m.InputSize, m.InputSize
	}
	return 0, 0
}
