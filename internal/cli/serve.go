package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/scriptmaster/wasinn-gateway/internal/config"
	"github.com/scriptmaster/wasinn-gateway/internal/httpapi"
	"github.com/scriptmaster/wasinn-gateway/internal/logx"
	"github.com/scriptmaster/wasinn-gateway/internal/modelhub"
	"github.com/scriptmaster/wasinn-gateway/internal/registry"
	"github.com/scriptmaster/wasinn-gateway/internal/sandbox"
	"github.com/scriptmaster/wasinn-gateway/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the inference gateway's HTTP server",
	RunE:  runServe,
}

const shutdownGracePeriod = 10 * time.Second

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgDir)
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	if _, err := modelhub.EnsureONNXRuntimeSharedLib(); err != nil {
		return fmt.Errorf("serve: provision onnxruntime: %w", err)
	}

	reg := registry.New()
	if err := registry.InitializeEnvironment(); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	if err := loadAllModels(reg, cfg.ModelDir); err != nil {
		logx.Errorf("serve: initial model load: %v", err)
	}

	stop := make(chan struct{})
	defer close(stop)
	if err := reg.WatchDirectory(cfg.ModelDir, classifyModel, stop); err != nil {
		logx.Errorf("serve: watch %s: %v", cfg.ModelDir, err)
	}

	engine := sandbox.NewEngine(reg)
	defer engine.Close(cmd.Context())
	if err := engine.LoadGuest(sandbox.GuestImage, cfg.ImageGuestPath); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	if err := engine.LoadGuest(sandbox.GuestChat, cfg.ChatGuestPath); err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	w := worker.New(engine, reg, worker.Config{
		PoolSize:        cfg.WorkerPoolSize,
		RequestTimeout:  cfg.RequestTimeout,
		MaxTokenCeiling: cfg.MaxTokenCeiling,
		DefaultMaxToken: cfg.DefaultMaxToken,
	})

	server := httpapi.NewServer(w, httpapi.NewBroadcaster())
	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: server}

	serverErr := make(chan error, 1)
	go func() {
		logx.Printf("serve: listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("serve: %w", err)
	case <-sigCh:
		logx.Printf("serve: shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()
	return httpServer.Shutdown(ctx)
}

// loadAllModels walks modelRoot's immediate subdirectories and loads each
// as a registry entry, classifying it by directory contents
// (spec §4.1 "Graph Registry").
func loadAllModels(reg *registry.Registry, modelRoot string) error {
	entries, err := os.ReadDir(modelRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read model root %s: %w", modelRoot, err)
	}

	var firstErr error
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		registryID := entry.Name()
		kind, err := classifyModel(registryID)
		if err != nil {
			logx.Errorf("serve: skip %s: %v", registryID, err)
			continue
		}
		dir := filepath.Join(modelRoot, registryID)
		if loadErr := reg.Load(dir, registryID, kind); loadErr != nil {
			logx.Errorf("serve: load %s: %v", registryID, loadErr)
			if firstErr == nil {
				firstErr = loadErr
			}
			continue
		}
	}
	return firstErr
}
