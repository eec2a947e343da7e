package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
// Paths match the ones field devices already call.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	r.Get("/", s.handleHealth)

	// Device self-reports
	r.Post("/assign-user", s.handleAssignUser)
	r.Post("/register-device", s.handleRegisterDevice)

	// Queries
	r.Get("/check-device", s.handleCheckDevice)
	r.Get("/device-info", s.handleDeviceInfo)
	r.Get("/get-all-devices", s.handleListDevices)
	if s.audit != nil {
		r.Get("/audit", s.handleListAudit)
	}

	// Live event stream
	r.Get(s.wsPath(), s.handleWebSocket)

	return r
}

func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return "/ws"
	}
	return s.wsCfg.Path
}

// handleHealth reports that the server is up.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "up",
		"message":   "Server is running",
		"version":   s.version,
		"timestamp": time.Now().Format(time.RFC3339Nano),
	})
}
