package main

import (
	"context"
	"embed"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/danger-dream/apollo-ips/internal/capture"
	"github.com/danger-dream/apollo-ips/internal/config"
	"github.com/danger-dream/apollo-ips/internal/engine"
	"github.com/danger-dream/apollo-ips/internal/server"
)

//go:embed web/dist
var Static embed.FS

func main() {
	if err := config.Init(); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}
	cfg := config.GetConfig()
	data, _ := json.MarshalIndent(cfg, "", "  ")
	log.Printf("Current configuration:\n%s", string(data))

	eng, err := engine.New(cfg)
	if err != nil {
		log.Fatalf("failed to start engine: %v", err)
	}
	go eng.Run()

	// The packet-capture driver (reading frames off cfg.Interface) is an
	// external collaborator; here it is a replay source reading
	// newline-delimited packet events from stdin, which any real capture
	// process can pipe into.
	captureCtx, cancelCapture := context.WithCancel(context.Background())
	source := capture.NewJSONLines(os.Stdin)
	go func() {
		if err := source.Run(captureCtx, eng.Ingest); err != nil {
			log.Printf("capture source stopped: %v", err)
		}
	}()

	appServer := server.New(eng)

	// priority: Try to serve local static files first
	distPath := filepath.Join(cfg.DataDir, "dist")
	if info, err := os.Stat(distPath); err == nil && info.IsDir() {
		log.Printf("Using local static files from: %s", distPath)
		appServer.ServeStaticDirectory(distPath)
	} else {
		if os.IsNotExist(err) {
			log.Printf("Local static directory not found, using embedded files")
		} else {
			log.Printf("Error accessing local static directory: %v, falling back to embedded files", err)
		}
		appServer.ServeEmbeddedFiles(Static)
	}

	appServer.HandleStatusNotFound()

	errChan := make(chan error, 1)
	go func() {
		if err := appServer.Start(); err != nil {
			errChan <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	select {
	case err := <-errChan:
		log.Printf("server start failed: %v", err)
	case <-stop:
		log.Println("shutting down application...")
	}
	cancelCapture()
	closeWithTimeout("appServer", appServer.Close, time.Second)
	closeWithTimeout("engine", eng.Close, time.Second)
}

func closeWithTimeout(name string, fn func() error, timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		start := time.Now()
		fn()
		log.Printf("Component %s closed in %v", name, time.Since(start))
		close(done)
	}()

	select {
	case <-done:
		return
	case <-time.After(timeout):
		log.Printf("Warning: %s close timeout after %v", name, timeout)
	}
}
