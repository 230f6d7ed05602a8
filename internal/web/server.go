// Package web provides an HTTP status server for the lampd daemon.
package web

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/lampd/internal/status"
)

// ModelView is the read-only part of the usage model served at /model.json.
type ModelView interface {
	Trained() bool
	Bins() []float64
	IntervalMinutes() int
	WindowDays() int
	Predict(ts float64) float64
}

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	model      ModelView
	now        func() time.Time
}

// New creates a Server that reads state from the given tracker and model.
// A nil gatherer disables /metrics; a nil model disables /model.json.
func New(addr string, tracker *status.Tracker, model ModelView, gatherer prometheus.Gatherer) *Server {
	s := &Server{tracker: tracker, model: model, now: time.Now}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	if model != nil {
		mux.HandleFunc("/model.json", s.handleModel)
	}
	if gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the request multiplexer. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// ModelJSON is the JSON representation of the usage model.
type ModelJSON struct {
	Model ModelInner `json:"model"`
}

// ModelInner contains the model details. Bins are fractions in [0,1],
// one per interval starting at midnight UTC.
type ModelInner struct {
	Trained         bool      `json:"trained"`
	WindowDays      int       `json:"window_days"`
	IntervalMinutes int       `json:"interval_minutes"`
	Prediction      float64   `json:"prediction"`
	Timestamp       string    `json:"timestamp"`
	Bins            []float64 `json:"bins"`
}

func formatModel(m ModelView, now time.Time) []byte {
	bins := m.Bins()
	if bins == nil {
		bins = []float64{}
	}
	mj := ModelJSON{
		Model: ModelInner{
			Trained:         m.Trained(),
			WindowDays:      m.WindowDays(),
			IntervalMinutes: m.IntervalMinutes(),
			Prediction:      m.Predict(float64(now.UnixNano()) / 1e9),
			Timestamp:       now.UTC().Format(time.RFC3339),
			Bins:            bins,
		},
	}
	data, _ := json.MarshalIndent(mj, "", "  ")
	return data
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(formatModel(s.model, s.now()))
}
