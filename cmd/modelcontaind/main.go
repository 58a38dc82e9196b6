package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	modelcontainer "github.com/vasplatform/modelcontainer"
	"github.com/vasplatform/modelcontainer/internal/logging"
)

func main() {
	var (
		modelsRoot = flag.String("models-root", "/opt/models", "Directory of model subdirectories, each holding a model.yaml descriptor")
		socketDir  = flag.String("socket-dir", "/run/modelcontainer", "Directory in which the IPC socket is created")
		modelID    = flag.String("model-id", "", "model_id of the descriptor this process serves (required)")
		grace      = flag.Duration("drain-grace", 5*time.Second, "How long to wait for in-flight requests before forcing shutdown")
		verbose    = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if *modelID == "" {
		fmt.Fprintln(os.Stderr, "modelcontaind: -model-id is required")
		os.Exit(2)
	}

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	if err := os.MkdirAll(*socketDir, 0o700); err != nil {
		logger.Error("failed to create socket directory", "dir", *socketDir, "error", err.Error())
		os.Exit(1)
	}

	container := modelcontainer.New(modelcontainer.Config{
		ModelsRoot: *modelsRoot,
		SocketDir:  *socketDir,
		ModelID:    *modelID,
		DrainGrace: *grace,
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	}()

	logger.Info("starting", "model_id", *modelID, "models_root", *modelsRoot)
	if err := container.Start(ctx); err != nil {
		logger.Error("container exited with error", "error", err.Error())
		os.Exit(1)
	}

	logger.Info("stopped cleanly")
}
