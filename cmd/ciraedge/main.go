// Command ciraedge is the sealed edge-inference runtime process: it
// loads configuration, wires the dispatcher context, capture worker,
// frame-file annotator, and HTTP service together, and runs until
// signalled to stop.
//
// Flag parsing and argument handling are the CLI harness spec.md §1
// marks out of scope; this entrypoint only wires the documented
// core/runtime contracts together, the same shallow main() shape the
// corpus's service entrypoints use (e.g. go-coffee's producer/cmd).
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nolovision/ciraedge/internal/annotate"
	"github.com/nolovision/ciraedge/internal/capture"
	"github.com/nolovision/ciraedge/internal/config"
	"github.com/nolovision/ciraedge/internal/core"
	"github.com/nolovision/ciraedge/internal/httpserver"
	"github.com/nolovision/ciraedge/internal/logging"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to service config YAML")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.New(cfg.Logging.Level)
	logger.Component("main").WithField("config", *configPath).Info("starting ciraedge")

	ctx := core.New(logger)

	if cfg.Model.Path != "" {
		if err := ctx.Load(cfg.Model.Path); err != nil {
			logger.Component("main").WithError(err).Warn("initial model load failed, starting unloaded")
		}
	}

	tempDir := os.TempDir()
	annotator := annotate.New(tempDir, "0")
	worker := capture.New(ctx, logger, cfg.Camera.RequestWidth, cfg.Camera.RequestHeight, annotator)

	if cfg.Camera.AutoStart {
		if err := worker.Start(cfg.Camera.DeviceID); err != nil {
			logger.Component("main").WithError(err).Warn("auto-start camera failed")
		}
	}

	runtime := httpserver.New(ctx, worker, annotator, logger)

	go func() {
		if err := runtime.ListenAndServe(cfg.HTTP.Address, cfg.HTTP.ReadTimeout, cfg.HTTP.WriteTimeout); err != nil {
			logger.Component("main").WithError(err).Error("http service stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Component("main").Info("shutting down")

	if err := runtime.Shutdown(); err != nil {
		logger.Component("main").WithError(err).Warn("error during http/capture shutdown")
	}
	if err := ctx.Destroy(); err != nil {
		logger.Component("main").WithError(err).Warn("error unloading backend")
	}
}
