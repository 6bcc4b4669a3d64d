// Package yolo implements the version-aware YOLO output decoder: shape
// based auto-detection, per-version box decoding, and class-aware NMS.
// The decoder is a pure function over a raw tensor; it has no knowledge
// of any particular backend (spec.md §4.3).
package yolo

// Version identifies the output tensor layout a model emits.
type Version int

const (
	// VersionAuto requests shape-based auto-detection.
	VersionAuto Version = iota
	// VersionV4 is the per-scale pre-decoded row layout (v4 anchors).
	VersionV4
	// VersionV5V7 is the concatenated row-per-box layout, pre-decoded.
	VersionV5V7
	// VersionV8V9V11 is the transposed [1, 4+C, N] layout, no objectness.
	VersionV8V9V11
	// VersionV10 is the NMS-free [1, 300, 6] corner layout.
	VersionV10
	// VersionRawGrid is the optional 5-D anchor-per-cell ONNX layout.
	VersionRawGrid
)

// String names the version the way manifests and logs spell it.
func (v Version) String() string {
	switch v {
	case VersionV4:
		return "v4"
	case VersionV5V7:
		return "v5"
	case VersionV8V9V11:
		return "v8"
	case VersionV10:
		return "v10"
	case VersionRawGrid:
		return "rawgrid"
	default:
		return "auto"
	}
}

// ParseVersion maps a manifest's yolo_version string to a Version,
// defaulting to VersionAuto for anything unrecognized.
func ParseVersion(s string) Version {
	switch s {
	case "v3", "v4":
		return VersionV4
	case "v5", "v7":
		return VersionV5V7
	case "v8", "v9", "v11":
		return VersionV8V9V11
	case "v10":
		return VersionV10
	case "rawgrid":
		return VersionRawGrid
	default:
		return VersionAuto
	}
}

// DetectVersion infers a Version from a tensor's shape, following the
// signature table in spec.md §4.3. Shape is ordered outermost-first,
// e.g. [1, 4+C, 8400] for a transposed v8 tensor.
func DetectVersion(shape []int) Version {
	switch len(shape) {
	case 3:
		d1, d2 := shape[1], shape[2]

		if d1 == 300 && d2 == 6 {
			return VersionV10
		}
		if d2 == 8400 || (d1 < 100 && d2 > 1000) {
			return VersionV8V9V11
		}
		if d1 == 25200 || d1 == 18900 || d1 == 6300 || (d1 > 1000 && d2 < 100) {
			return VersionV5V7
		}
		if d1 == 507 || d1 == 2028 || d1 == 8112 {
			return VersionV4
		}
		return VersionV5V7

	case 5:
		if shape[4] >= 6 {
			return VersionRawGrid
		}
		return VersionV5V7

	default:
		return VersionV5V7
	}
}

// Resolve picks the effective decode version: an explicit non-auto
// preference wins, otherwise shape-based detection runs.
func Resolve(pref Version, shape []int) Version {
	if pref != VersionAuto {
		return pref
	}
	return DetectVersion(shape)
}
