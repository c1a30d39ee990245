// Package server exposes ingestion triggers, the dashboard and event
// recording over HTTP.
//
// Authentication happens upstream: an identity proxy forwards the signed-in
// user's id in the X-User-ID header and every /api route requires it.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	muxprom "gitlab.com/msvechla/mux-prometheus/pkg/middleware"

	"github.com/jgoulah/dayboard/internal/config"
	"github.com/jgoulah/dayboard/internal/dashboard"
	"github.com/jgoulah/dayboard/internal/database"
	"github.com/jgoulah/dayboard/internal/fetcher"
	"github.com/jgoulah/dayboard/internal/ingest"
	"github.com/jgoulah/dayboard/internal/journal"
	"github.com/jgoulah/dayboard/internal/publisher"
)

// UserHeader carries the authenticated user id
const UserHeader = "X-User-ID"

// Options configures a Server
type Options struct {
	Config *config.Config
	Store  *database.DB
	// Geocoder defaults to the configured ZIP lookup API
	Geocoder journal.Geocoder
	// Publisher, when set, receives the rows of every successful triggered ingestion
	Publisher publisher.Sender
	// Registry defaults to a fresh registry
	Registry *prometheus.Registry
	Log      logrus.FieldLogger
	Now      func() time.Time
}

// Server handles the dayboard HTTP API
type Server struct {
	store     *database.DB
	deps      ingest.Deps
	dashboard *dashboard.Service
	journal   *journal.Journal
	publisher publisher.Sender
	registry  *prometheus.Registry
	log       logrus.FieldLogger
}

// New wires a Server from opts
func New(opts Options) *Server {
	cfg := opts.Config
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	geocoder := opts.Geocoder
	if geocoder == nil {
		geocoder = fetcher.NewGeocoder(cfg.GetGeocodeBaseURL(), fetcher.NewHTTPClient(cfg.GetHTTPTimeout()))
	}
	loc := cfg.Location()

	return &Server{
		store: opts.Store,
		deps: ingest.Deps{
			Config:  cfg,
			Store:   opts.Store,
			Log:     log,
			Metrics: ingest.NewMetrics(reg),
			Now:     opts.Now,
		},
		dashboard: &dashboard.Service{
			Store:       opts.Store,
			Location:    loc,
			Now:         opts.Now,
			ChartDays:   cfg.GetChartDays(),
			HeatmapDays: cfg.GetHeatmapDays(),
			Log:         log,
		},
		journal: &journal.Journal{
			Store:    opts.Store,
			Geocoder: geocoder,
			Location: loc,
			Now:      opts.Now,
			Log:      log,
		},
		publisher: opts.Publisher,
		registry:  reg,
		log:       log,
	}
}

// Handler returns the routed and instrumented handler
func (s *Server) Handler() http.Handler {
	instrumentation := muxprom.NewCustomInstrumentation(true, "dayboard", "http", prometheus.DefBuckets, nil, s.registry)

	rtr := mux.NewRouter()
	rtr.Use(instrumentation.Middleware)
	rtr.Path("/metrics").Handler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	rtr.HandleFunc("/healthz", s.getHealth).Methods(http.MethodGet)
	rtr.HandleFunc("/jobs/{source}", s.triggerJob).Methods(http.MethodGet, http.MethodPost)

	api := rtr.PathPrefix("/api").Subrouter()
	api.Use(s.requireUser)
	api.HandleFunc("/dashboard", s.getDashboard).Methods(http.MethodGet)
	api.HandleFunc("/checkins", s.postCheckIn).Methods(http.MethodPost)
	api.HandleFunc("/personal", s.postPersonal).Methods(http.MethodPost)
	api.HandleFunc("/personal/today", s.getPersonalToday).Methods(http.MethodGet)
	api.HandleFunc("/scripture", s.postScripture).Methods(http.MethodPost)
	api.HandleFunc("/settings", s.getSettings).Methods(http.MethodGet)
	api.HandleFunc("/settings", s.putSettings).Methods(http.MethodPut)

	var h http.Handler = handlers.CompressHandler(rtr)
	h = handlers.CustomLoggingHandler(io.Discard, h, s.accessLog)
	return handlers.RecoveryHandler(handlers.RecoveryLogger(s.log))(h)
}

func (s *Server) accessLog(_ io.Writer, p handlers.LogFormatterParams) {
	s.log.WithFields(logrus.Fields{
		"method": p.Request.Method,
		"path":   p.URL.Path,
		"status": p.StatusCode,
		"size":   p.Size,
	}).Debug("request")
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type userKey struct{}

func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(UserHeader)
		if userID == "" {
			s.jsonError(w, r, errorMissingUser)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, userID)))
	})
}

func userFrom(ctx context.Context) string {
	id, _ := ctx.Value(userKey{}).(string)
	return id
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.MarshalWrite(w, v, json.Deterministic(true)); err != nil {
		s.log.WithError(err).Warn("writing response")
	}
}

func (s *Server) readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.UnmarshalRead(r.Body, v); err != nil {
		s.jsonError(w, r, errorBadRequest.SetInternalMessage(err))
		return false
	}
	return true
}
