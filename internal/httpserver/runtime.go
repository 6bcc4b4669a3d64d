// Package httpserver exposes the core context over HTTP: read-only
// views (health, stats, results, snapshot, MJPEG stream, frame-file)
// and control operations (model load, camera start/stop). It owns no
// detection logic itself; every handler copies data out of the shared
// context state under the relevant lock before writing a response
// (spec.md §4.6, §5 suspension-point rule).
//
// Grounded on the teacher corpus's nearest HTTP precedent for this
// kind of read-view/control-operation API: go-coffee's gorilla/mux
// server (internal/auth/transport/http), generalized from an auth
// service's request/response shapes to the capture/detection runtime's
// shapes, with the "Global mutable server and camera singletons"
// redesign (spec.md §9) resolved by rooting both the capture worker and
// the HTTP server as fields of this Runtime rather than file-scope
// globals.
package httpserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/nolovision/ciraedge/internal/annotate"
	"github.com/nolovision/ciraedge/internal/capture"
	"github.com/nolovision/ciraedge/internal/cerr"
	"github.com/nolovision/ciraedge/internal/core"
	"github.com/nolovision/ciraedge/internal/logging"
)

// Runtime is the sibling object that owns the capture worker and the
// HTTP server alongside the core context, replacing the teacher's
// file-scope globals (spec.md §9 design note).
type Runtime struct {
	ctx       *core.Context
	worker    *capture.Worker
	annotator *annotate.Publisher
	log       *logging.Logger

	mu         sync.Mutex
	httpServer *http.Server
}

// New constructs a Runtime wiring a context, capture worker, and
// frame-file publisher together.
func New(ctx *core.Context, worker *capture.Worker, annotator *annotate.Publisher, log *logging.Logger) *Runtime {
	return &Runtime{ctx: ctx, worker: worker, annotator: annotator, log: log}
}

// LoadModel implements the HTTP-facing model-swap control operation
// (spec.md §4.6 "Model control"). It may run concurrently with the
// capture worker; Context.Load already implements the model-swap
// protocol from spec.md §5.
func (rt *Runtime) LoadModel(path string) error {
	return rt.ctx.Load(path)
}

// StartCamera starts (or no-ops, idempotently) the capture worker on
// the given device (spec.md §4.6, §8 round-trip law).
func (rt *Runtime) StartCamera(deviceID int) error {
	return rt.worker.Start(deviceID)
}

// StopCamera stops (or no-ops, idempotently) the capture worker
// (spec.md §4.6, §8 round-trip law).
func (rt *Runtime) StopCamera() error {
	return rt.worker.Stop()
}

// ListenAndServe builds the route table and serves, blocking until
// Shutdown closes the server or listening fails.
func (rt *Runtime) ListenAndServe(addr string, readTimeout, writeTimeout time.Duration) error {
	router := mux.NewRouter()
	rt.registerRoutes(router)

	rt.mu.Lock()
	rt.httpServer = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
	srv := rt.httpServer
	rt.mu.Unlock()

	if rt.log != nil {
		rt.log.Component("httpserver").WithField("addr", addr).Info("starting HTTP service")
	}
	return srv.ListenAndServe()
}

// Shutdown stops the HTTP server and the capture worker; it does not
// unload the bound backend (the caller does that via Context.Destroy
// once both subsystems have stopped, per spec.md §4.1 Destroy contract).
func (rt *Runtime) Shutdown() error {
	rt.mu.Lock()
	srv := rt.httpServer
	rt.mu.Unlock()

	var httpErr error
	if srv != nil {
		httpErr = srv.Close()
	}
	if err := rt.worker.Stop(); err != nil && httpErr == nil {
		return err
	}
	return httpErr
}

func (rt *Runtime) registerRoutes(router *mux.Router) {
	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", rt.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/stats", rt.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/results", rt.handleResults).Methods(http.MethodGet)
	api.HandleFunc("/snapshot", rt.handleSnapshot).Methods(http.MethodGet)
	api.HandleFunc("/stream", rt.handleStream).Methods(http.MethodGet)
	api.HandleFunc("/frame/latest", rt.handleFrameLatest).Methods(http.MethodGet)
	api.HandleFunc("/host", rt.handleHost).Methods(http.MethodGet)

	api.HandleFunc("/model/load", rt.handleModelLoad).Methods(http.MethodPost)
	api.HandleFunc("/camera/start", rt.handleCameraStart).Methods(http.MethodPost)
	api.HandleFunc("/camera/stop", rt.handleCameraStop).Methods(http.MethodPost)
}

// statusForError translates a core Kind into the HTTP status from
// spec.md §7's propagation policy.
func statusForError(err error) int {
	switch cerr.KindOf(err) {
	case cerr.Input:
		return http.StatusBadRequest
	case cerr.File:
		return http.StatusNotFound
	case cerr.Memory, cerr.Generic:
		return http.StatusInternalServerError
	case cerr.Model:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"failed to encode response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(body)
}
