package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/afroash/solardash/internal/loader"
	"github.com/afroash/solardash/internal/models"
	"github.com/afroash/solardash/internal/pipeline"
	"github.com/afroash/solardash/internal/report"
	"github.com/afroash/solardash/internal/storage"
)

// APIHandler handles HTTP API requests for the dashboard
type APIHandler struct {
	cache      ReadingCache
	archive    HistoricalStore
	notifier   Notifier
	reports    *report.Generator
	threshold  float64
	adminToken string
	logger     zerolog.Logger
}

// NewAPIHandler creates a new API handler. notifier may be nil.
func NewAPIHandler(cache ReadingCache, notifier Notifier, threshold float64, adminToken string, logger zerolog.Logger) *APIHandler {
	return &APIHandler{
		cache:      cache,
		notifier:   notifier,
		reports:    report.NewGenerator(logger),
		threshold:  threshold,
		adminToken: adminToken,
		logger:     logger,
	}
}

// NewAPIHandlerWithHistory creates an API handler that also serves archive statistics
func NewAPIHandlerWithHistory(cache ReadingCache, archive HistoricalStore, notifier Notifier, threshold float64, adminToken string, logger zerolog.Logger) *APIHandler {
	api := NewAPIHandler(cache, notifier, threshold, adminToken, logger)
	api.archive = archive
	return api
}

// errorResponse is the JSON body of every API error
type errorResponse struct {
	Error string `json:"error"`
}

// dashboard loads the readings and builds the dashboard for the request's range.
func (api *APIHandler) dashboard(r *http.Request) (pipeline.Dashboard, int, error) {
	start, end, err := parseRange(r)
	if err != nil {
		return pipeline.Dashboard{}, http.StatusBadRequest, err
	}

	readings, err := api.cache.Get(r.Context())
	if err != nil {
		return pipeline.Dashboard{}, http.StatusInternalServerError, err
	}

	return pipeline.Build(readings, pipeline.Options{
		Start:     start,
		End:       end,
		Threshold: api.threshold,
	}), http.StatusOK, nil
}

// HandleDashboard returns the three views for ?start=YYYY-MM-DD&end=YYYY-MM-DD.
// Missing bounds default to the first and last date in the data.
func (api *APIHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	d, status, err := api.dashboard(r)
	if err != nil {
		api.writeError(w, r, status, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// HandleReadings returns the full cached table
func (api *APIHandler) HandleReadings(w http.ResponseWriter, r *http.Request) {
	readings, err := api.cache.Get(r.Context())
	if err != nil {
		api.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, readings)
}

// HandleReport returns the low-efficiency report for the range as an Excel workbook
func (api *APIHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	d, status, err := api.dashboard(r)
	if err != nil {
		api.writeError(w, r, status, err)
		return
	}

	var buf bytes.Buffer
	if err := api.reports.WriteLowEfficiency(r.Context(), &buf, d); err != nil {
		api.writeError(w, r, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+report.Filename(d)+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// HandleCacheStats returns cache statistics
func (api *APIHandler) HandleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.cache.Stats())
}

// HandleCacheReset drops the cached table so the next request reloads it.
// When an admin token is configured it must be sent as "Bearer <token>".
func (api *APIHandler) HandleCacheReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		api.writeError(w, r, http.StatusMethodNotAllowed, errors.New("use POST"))
		return
	}
	if api.adminToken != "" && !validateToken(r.Header.Get("Authorization"), api.adminToken) {
		api.writeError(w, r, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	notified := api.Reload("manual")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "reset",
		"notified": notified,
	})
}

// ArchiveData contains the archive statistics. Readings is only filled when
// the request names a start or end date.
type ArchiveData struct {
	Stats    *storage.StorageStats  `json:"stats"`
	Features []storage.FeatureTotal `json:"features"`
	Readings []models.Reading       `json:"readings,omitempty"`
}

// HandleArchive returns statistics about the SQLite archive
func (api *APIHandler) HandleArchive(w http.ResponseWriter, r *http.Request) {
	if api.archive == nil {
		api.writeError(w, r, http.StatusNotFound, errors.New("archive not configured"))
		return
	}

	stats, err := api.archive.GetStorageStats(r.Context())
	if err != nil {
		api.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	features, err := api.archive.GetFeatures(r.Context())
	if err != nil {
		api.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	if features == nil {
		features = []storage.FeatureTotal{}
	}
	data := ArchiveData{Stats: stats, Features: features}

	q := r.URL.Query()
	if q.Has("start") || q.Has("end") {
		start, end, err := parseRange(r)
		if err != nil {
			api.writeError(w, r, http.StatusBadRequest, err)
			return
		}
		if start.IsZero() {
			start = stats.FirstDate
		}
		if end.IsZero() {
			end = stats.LastDate
		}
		readings, err := api.archive.GetReadingsInRange(r.Context(), start, end)
		if err != nil {
			api.writeError(w, r, http.StatusInternalServerError, err)
			return
		}
		data.Readings = readings
	}

	writeJSON(w, http.StatusOK, data)
}

// Reload resets the cache and tells open dashboards to refresh. It returns
// the number of dashboards notified.
func (api *APIHandler) Reload(reason string) int {
	api.cache.Reset()
	if api.notifier == nil {
		return 0
	}
	return api.notifier.Broadcast(models.MessageTypeReload, models.ReloadMessage{Reason: reason})
}

func (api *APIHandler) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	event := api.logger.Warn()
	if status >= http.StatusInternalServerError {
		event = api.logger.Error()
	}
	event.Err(err).
		Str("path", r.URL.Path).
		Str("request_id", RequestID(r.Context())).
		Int("status", status).
		Msg("Request failed")

	writeJSON(w, status, errorResponse{Error: publicMessage(status, err)})
}

// genericLoadMessage replaces server errors that may carry file system paths
const genericLoadMessage = "The data could not be loaded."

// publicMessage hides file system details of load failures
func publicMessage(status int, err error) string {
	var perr *loader.ParseError
	switch {
	case errors.Is(err, loader.ErrFileNotFound):
		return loader.ErrFileNotFound.Error()
	case errors.As(err, &perr):
		return perr.Error()
	case status >= http.StatusInternalServerError:
		return genericLoadMessage
	default:
		return err.Error()
	}
}

// parseRange reads the optional start and end query parameters
func parseRange(r *http.Request) (start, end time.Time, err error) {
	q := r.URL.Query()
	if v := strings.TrimSpace(q.Get("start")); v != "" {
		if start, err = models.ParseDate(v); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if v := strings.TrimSpace(q.Get("end")); v != "" {
		if end, err = models.ParseDate(v); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	return start, end, nil
}

// validateToken checks if the auth header carries token
func validateToken(authHeader, token string) bool {
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return false
	}
	return strings.TrimPrefix(authHeader, "Bearer ") == token
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
