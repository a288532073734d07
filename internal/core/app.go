package core

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/vrsandeep/sd-gallery/internal/config"
	"github.com/vrsandeep/sd-gallery/internal/library"
	"github.com/vrsandeep/sd-gallery/internal/websocket"
)

// Version is reported by /api/config. It is set at build time with
// -ldflags "-X github.com/vrsandeep/sd-gallery/internal/core.Version=...".
var Version = "dev"

// App holds the core components of the application that are shared
// between the server and the CLI.
type App struct {
	Config    *config.Config
	Matcher   *library.FileMatcher
	Extractor *library.Extractor
	Scanner   *library.Scanner
	WsHub     *websocket.Hub
	Watcher   *library.WatcherService
	Version   string
}

// New sets up and returns a new App instance. It loads the configuration
// and checks that the base directory exists.
func New() (*App, error) {
	// Load configuration from config.yml and SDG_ variables
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig builds an App around an already loaded configuration.
func NewWithConfig(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if level, err := log.ParseLevel(cfg.Log.Level); err == nil {
		log.SetLevel(level)
	} else if cfg.Log.Level != "" {
		log.Warn("unknown log level, keeping default", "level", cfg.Log.Level)
	}

	matcher := library.NewFileMatcher(cfg.Library.Extensions)
	extractor := library.NewExtractor(matcher)
	hub := websocket.NewHub()
	go hub.Run()

	app := &App{
		Config:    cfg,
		Matcher:   matcher,
		Extractor: extractor,
		Scanner:   library.NewScanner(cfg, extractor),
		WsHub:     hub,
		Version:   Version,
	}

	log.Info("core application setup complete",
		"base", cfg.Library.Path,
		"extensions", cfg.Library.Extensions)
	return app, nil
}

// StartWatcher begins broadcasting library changes when watching is
// enabled in the configuration.
func (a *App) StartWatcher() error {
	if !a.Config.Watch.Enabled {
		return nil
	}
	debounce := time.Duration(a.Config.Watch.DebounceMs) * time.Millisecond
	a.Watcher = library.NewWatcherService(a.Config.Library.Path, a.Matcher, a.WsHub, debounce)
	return a.Watcher.Start()
}

// Close gracefully releases the application's resources.
func (a *App) Close() {
	if a.Watcher != nil {
		if err := a.Watcher.Stop(); err != nil {
			log.Warn("failed to stop file watcher", "err", err)
		}
	}
}
