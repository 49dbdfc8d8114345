package server

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"math"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/afroash/solardash/internal/chart"
	"github.com/afroash/solardash/internal/loader"
	"github.com/afroash/solardash/internal/models"
	"github.com/afroash/solardash/internal/pipeline"
)

//go:embed templates/*.html
var templateFS embed.FS

// PageSettings holds the fixed texts of the dashboard page
type PageSettings struct {
	Title    string
	Subtitle string
	Footer   string
}

// PageHandler renders the dashboard as HTML
type PageHandler struct {
	cache     ReadingCache
	settings  PageSettings
	threshold float64
	layout    chart.Layout
	tmpl      *template.Template
	logger    zerolog.Logger
}

type pageData struct {
	Settings  PageSettings
	Start     string
	End       string
	Dashboard pipeline.Dashboard
	Line      chart.LineChart
	Bars      chart.BarChart
}

type errorData struct {
	Settings PageSettings
	Message  string
}

var templateFuncs = template.FuncMap{
	"comma": func(n int) string { return humanize.Comma(int64(n)) },
	"date":  func(t time.Time) string { return t.Format(models.DateLayout) },
	"pct": func(v float64) string {
		if math.IsNaN(v) {
			return "n/a"
		}
		return humanize.FtoaWithDigits(v, 2)
	},
	"add": func(a, b float64) float64 { return a + b },
	"sub": func(a, b float64) float64 { return a - b },
}

// NewPageHandler parses the embedded templates
func NewPageHandler(cache ReadingCache, settings PageSettings, threshold float64, logger zerolog.Logger) (*PageHandler, error) {
	tmpl, err := template.New("page").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	return &PageHandler{
		cache:     cache,
		settings:  settings,
		threshold: threshold,
		layout:    chart.DefaultLayout(),
		tmpl:      tmpl,
		logger:    logger,
	}, nil
}

// ServeHTTP renders the page for ?start=YYYY-MM-DD&end=YYYY-MM-DD. Nothing of
// the dashboard is shown when the data cannot be loaded.
func (p *PageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}

	start, end, err := parseRange(r)
	if err != nil {
		p.renderError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	readings, err := p.cache.Get(r.Context())
	if err != nil {
		p.renderError(w, r, http.StatusInternalServerError, loadErrorMessage(err))
		return
	}

	d := pipeline.Build(readings, pipeline.Options{Start: start, End: end, Threshold: p.threshold})
	data := pageData{
		Settings:  p.settings,
		Dashboard: d,
		Line:      chart.Line(d.Trend, p.layout),
		Bars:      chart.Bars(d.Features, p.layout),
	}
	if d.HasData || !start.IsZero() {
		data.Start = d.Range.Start.Format(models.DateLayout)
	}
	if d.HasData || !end.IsZero() {
		data.End = d.Range.End.Format(models.DateLayout)
	}

	p.render(w, r, http.StatusOK, "dashboard", data)
}

func (p *PageHandler) renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	p.logger.Warn().
		Str("path", r.URL.Path).
		Str("request_id", RequestID(r.Context())).
		Int("status", status).
		Str("message", message).
		Msg("Dashboard not rendered")

	p.render(w, r, status, "error", errorData{Settings: p.settings, Message: message})
}

// render executes into a buffer first so a template failure never sends half a page
func (p *PageHandler) render(w http.ResponseWriter, r *http.Request, status int, name string, data interface{}) {
	var buf bytes.Buffer
	if err := p.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		p.logger.Error().Err(err).Str("template", name).Msg("Failed to render page")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func loadErrorMessage(err error) string {
	var perr *loader.ParseError
	switch {
	case errors.Is(err, loader.ErrFileNotFound):
		return "The data file could not be found."
	case errors.As(err, &perr):
		return fmt.Sprintf("The data file could not be read: %v", perr)
	default:
		return "The data could not be loaded."
	}
}
