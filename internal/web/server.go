// Package web provides an HTTP status server for the climate-bridge daemon.
package web

import (
	"context"
	"net"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/sweeney/climate-bridge/internal/accessory"
	"github.com/sweeney/climate-bridge/internal/metrics"
	"github.com/sweeney/climate-bridge/internal/mqtt"
	"github.com/sweeney/climate-bridge/internal/status"
)

// Server serves the status page, the characteristic table and metrics.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	store      *accessory.Store
}

// New creates a Server that reads state from the given tracker and store.
// m may be nil, in which case /metrics is not served.
func New(addr string, tracker *status.Tracker, store *accessory.Store, m *metrics.Metrics, log *zap.SugaredLogger) *Server {
	s := &Server{tracker: tracker, store: store}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/index.html", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/index.json", s.handleJSON).Methods(http.MethodGet)
	r.HandleFunc("/accessories.json", s.handleAccessories).Methods(http.MethodGet)
	if m != nil {
		r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	}

	access := zap.NewStdLog(log.Desugar().Named("http")).Writer()
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: handlers.LoggingHandler(access, r),
	}
	return s
}

// Handler returns the root handler. Useful for tests.
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
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap, s.store.Snapshot())
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// handleAccessories serves the registration table in the same form it is
// published to the broker.
func (s *Server) handleAccessories(w http.ResponseWriter, r *http.Request) {
	data, err := mqtt.FormatAccessories(s.store.Accessories())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}
