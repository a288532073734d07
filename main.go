package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/vrsandeep/sd-gallery/internal/api"
	"github.com/vrsandeep/sd-gallery/internal/core"
)

func main() {
	log.SetReportTimestamp(true)

	// A .env file is optional; SDG_ variables may come from the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("could not read .env file", "err", err)
	}

	// Initialize the core application components
	app, err := core.New()
	if err != nil {
		log.Fatal("fatal error during application setup", "err", err)
	}
	defer app.Close()

	log.Info("serving library", "path", app.Config.Library.Path, "extensions", app.Matcher.Extensions())

	// Watch the library so connected clients can refresh
	if err := app.StartWatcher(); err != nil {
		log.Warn("file watcher disabled", "err", err)
	}

	server := api.NewServer(app)
	addr := fmt.Sprintf("%s:%d", app.Config.Host, app.Config.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// --- Graceful Shutdown ---
	// Start the server in a goroutine so it doesn't block.
	go func() {
		log.Info("starting web server", "addr", httpServer.Addr, "version", app.Version)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("could not start server", "err", err)
		}
	}()

	// Wait for an interrupt signal.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server...")

	// Create a context with a timeout to allow existing connections to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", "err", err)
	}

	log.Info("server exiting")
}
