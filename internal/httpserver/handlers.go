package httpserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"gocv.io/x/gocv"

	"github.com/nolovision/ciraedge/internal/cerr"
)

// handleHealth reports liveness and context state (spec.md §4.6).
func (rt *Runtime) handleHealth(w http.ResponseWriter, r *http.Request) {
	format, path, loaded := rt.ctx.ModelInfo()
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"model_loaded":   loaded,
		"model_name":     format,
		"model_path":     path,
		"camera_running": rt.worker.Running(),
	})
}

// statsView mirrors the wire format in spec.md §6.
type statsView struct {
	TotalDetections uint64            `json:"total_detections"`
	TotalFrames     uint64            `json:"total_frames"`
	ByLabel         map[string]uint64 `json:"by_label"`
	FPS             float64           `json:"fps"`
	UptimeSec       int64             `json:"uptime_sec"`
	Timestamp       string            `json:"timestamp"`
	ModelLoaded     bool              `json:"model_loaded"`
	ModelName       string            `json:"model_name"`
	ModelPath       string            `json:"model_path"`
}

func (rt *Runtime) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := rt.ctx.Stats().Snapshot()
	format, path, loaded := rt.ctx.ModelInfo()

	respondWithJSON(w, http.StatusOK, statsView{
		TotalDetections: snap.TotalDetections,
		TotalFrames:     snap.TotalFrames,
		ByLabel:         snap.ByLabel,
		FPS:             snap.FPS,
		UptimeSec:       snap.UptimeSec,
		Timestamp:       time.Now().UTC().Format("2006-01-02T15:04:05"),
		ModelLoaded:     loaded,
		ModelName:       format,
		ModelPath:       path,
	})
}

// handleResults serves the stable JSON result view (spec.md §4.1,
// §4.6 "Detection view"); the bytes are already a valid JSON document
// so they are written through verbatim rather than re-marshaled.
func (rt *Runtime) handleResults(w http.ResponseWriter, r *http.Request) {
	body := rt.ctx.ResultJSON()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// handleSnapshot encodes the current frame buffer as JPEG (spec.md
// §4.6 "Snapshot read"). A 503 is returned if no frame has been
// captured yet (spec.md §5 cancellation/timeout rule).
func (rt *Runtime) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	data, fw, fh := rt.ctx.Snapshot()
	if data == nil {
		respondWithError(w, http.StatusServiceUnavailable, "no frame captured yet")
		return
	}

	jpegBytes, err := encodeRGBAsJPEG(data, fw, fh)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.WriteHeader(http.StatusOK)
	w.Write(jpegBytes)
}

// handleStream serves an MJPEG multipart/x-mixed-replace stream
// (spec.md §6 "MJPEG stream protocol"). Until a frame becomes
// available it waits on a short ticker rather than failing; no part
// and no empty chunk is written while it waits.
func (rt *Runtime) handleStream(w http.ResponseWriter, r *http.Request) {
	const boundary = "frame"
	w.Header().Set("Content-Type", fmt.Sprintf("multipart/x-mixed-replace; boundary=%s", boundary))
	w.WriteHeader(http.StatusOK)

	flusher, canFlush := w.(http.Flusher)

	ticker := time.NewTicker(66 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		data, fw, fh := rt.ctx.Snapshot()
		if data == nil {
			continue
		}
		jpegBytes, err := encodeRGBAsJPEG(data, fw, fh)
		if err != nil {
			continue
		}

		if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", boundary, len(jpegBytes)); err != nil {
			return
		}
		if _, err := w.Write(jpegBytes); err != nil {
			return
		}
		if _, err := io.WriteString(w, "\r\n"); err != nil {
			return
		}
		if canFlush {
			flusher.Flush()
		}
	}
}

// handleFrameLatest serves the atomically-published frame file and
// the X-Frame-Sequence header (spec.md §4.5, §6).
func (rt *Runtime) handleFrameLatest(w http.ResponseWriter, r *http.Request) {
	seq := rt.annotator.Sequence()
	if seq == 0 {
		respondWithError(w, http.StatusServiceUnavailable, "no frame published yet")
		return
	}

	body, err := os.ReadFile(rt.annotator.Path())
	if err != nil {
		respondWithError(w, http.StatusServiceUnavailable, "frame file not yet available")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("X-Frame-Sequence", fmt.Sprintf("%d", seq))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// modelLoadRequest is the single documented field for the control
// surface's load_model operation (spec.md §6).
type modelLoadRequest struct {
	Path string `json:"path"`
}

func (rt *Runtime) handleModelLoad(w http.ResponseWriter, r *http.Request) {
	var req modelLoadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		respondWithError(w, http.StatusBadRequest, "path is required")
		return
	}

	if err := rt.LoadModel(req.Path); err != nil {
		respondWithError(w, statusForError(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "loaded"})
}

type cameraStartRequest struct {
	DeviceID int `json:"device_id"`
}

func (rt *Runtime) handleCameraStart(w http.ResponseWriter, r *http.Request) {
	var req cameraStartRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if err := rt.StartCamera(req.DeviceID); err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

func (rt *Runtime) handleCameraStop(w http.ResponseWriter, r *http.Request) {
	if err := rt.StopCamera(); err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// encodeRGBAsJPEG converts a packed-RGB frame buffer into a BGR mat
// and encodes it as JPEG, the same conversion the annotator applies
// before writing the frame file (spec.md §9's per-call owned buffer
// redesign: this allocates its own output rather than sharing a
// process-wide encoder scratch buffer).
func encodeRGBAsJPEG(rgb []byte, w, h int) ([]byte, error) {
	mat, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC3, rgb)
	if err != nil {
		return nil, cerr.Wrap(cerr.Generic, "build snapshot mat", err)
	}
	defer mat.Close()

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(mat, &bgr, gocv.ColorRGBToBGR)

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, bgr)
	if err != nil {
		return nil, cerr.Wrap(cerr.Generic, "encode snapshot jpeg", err)
	}
	defer buf.Close()
	return buf.GetBytes(), nil
}
