package api

// This file contains the middleware for request logging and the optional
// bearer-token check.

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/vrsandeep/sd-gallery/internal/auth"
)

// RequestLogger logs one line per request with its id, status and duration.
func (s *Server) RequestLogger(next http.Handler) http.Handler {
	base := s.logger.With("component", "http")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := middleware.GetReqID(r.Context())
		if reqID != "" {
			w.Header().Set("X-Request-Id", reqID)
		}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		base.Debug("request started", "reqId", reqID, "method", r.Method, "path", r.URL.Path, "ip", r.RemoteAddr)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		dur := time.Since(start)
		if status >= http.StatusInternalServerError {
			base.Error("request failed", "reqId", reqID, "method", r.Method, "path", r.URL.Path, "status", status, "dur", dur.String())
			return
		}
		base.Info("request completed", "reqId", reqID, "method", r.Method, "path", r.URL.Path, "status", status, "dur", dur.String())
	})
}

// AuthMiddleware rejects requests without a valid bearer token when
// auth.token_hash is configured. Browsers cannot set headers on websocket
// upgrades, so a "token" query parameter is accepted as well.
func (s *Server) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hash := s.app.Config.Auth.TokenHash
		if hash == "" {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := auth.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			token = r.URL.Query().Get("token")
		}
		if token == "" || !auth.CheckTokenHash(token, hash) {
			RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
