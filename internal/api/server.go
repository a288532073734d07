// It defines the API server, sets up the routes (endpoints)
// using chi, and links them to the handler functions.

package api

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/vrsandeep/sd-gallery/internal/core"
)

// Server holds the dependencies for our API.
type Server struct {
	app    *core.App
	logger *log.Logger
}

// NewServer creates a new Server instance.
func NewServer(app *core.App) *Server {
	return &Server{
		app:    app,
		logger: log.With("component", "api"),
	}
}

// App returns the application the server was built with.
func (s *Server) App() *core.App {
	return s.app
}

// Router sets up and returns the main router for the application.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.RequestLogger)
	r.Use(middleware.Recoverer) // Recovers from panics
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.app.Config.CORS.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/api/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.AuthMiddleware)

		r.Route("/api", func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Get("/config", s.handleGetConfig)

			// Gallery routes
			r.Get("/groups", s.handleGetGroups)
			r.Get("/directories", s.handleListDirectories)
			r.Get("/images/*", s.handleServeImage)
			r.Get("/metadata/*", s.handleGetImageMetadata)
			r.Get("/thumbnails/*", s.handleGetThumbnail)

			// Statistics routes
			r.Get("/analytics", s.handleGetAnalytics)
			r.Get("/common-tags", s.handleGetCommonTags)
		})

		// WebSocket route
		r.Get("/ws/library", func(w http.ResponseWriter, r *http.Request) {
			s.app.WsHub.ServeWs(w, r)
		})
	})

	return r
}
