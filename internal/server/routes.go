package server

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
)

// Routes bundles the handlers served by solardash
type Routes struct {
	Version string
	Page    *PageHandler
	API     *APIHandler
	Hub     *Hub
	Logger  zerolog.Logger
}

// NewMux registers every endpoint and wraps the mux in the logging and
// recovery middleware.
func NewMux(rt Routes) http.Handler {
	mux := http.NewServeMux()

	// Dashboard page
	mux.Handle("/", rt.Page)

	// API endpoints
	mux.HandleFunc("/api/dashboard", rt.API.HandleDashboard)
	mux.HandleFunc("/api/readings", rt.API.HandleReadings)
	mux.HandleFunc("/api/report.xlsx", rt.API.HandleReport)
	mux.HandleFunc("/api/cache", rt.API.HandleCacheStats)
	mux.HandleFunc("/api/cache/reset", rt.API.HandleCacheReset)
	mux.HandleFunc("/api/archive", rt.API.HandleArchive)

	// Reload notifications
	if rt.Hub != nil {
		mux.Handle("/ws/updates", rt.Hub)
		mux.HandleFunc("/api/subscribers", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, rt.Hub.Subscribers())
		})
	}

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok","version":"%s"}`, rt.Version)
	})

	return LogRequests(Recover(mux, rt.Logger), rt.Logger)
}
