// Package api exposes the funnel over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"solar-funnel/internal/common/config"
	"solar-funnel/internal/common/logger"
	"solar-funnel/internal/common/observability"
	"solar-funnel/internal/funnel/availability"
	"solar-funnel/internal/funnel/estimate"
	"solar-funnel/internal/funnel/session"
	"solar-funnel/internal/funnel/steps"
	"solar-funnel/internal/funnel/submission"
)

const defaultFunnel = "solar"

// Dependencies are the collaborators the handlers run against.
type Dependencies struct {
	Sessions   *session.Manager
	Proposals  steps.ProposalFetcher
	Calculator *estimate.Calculator
	Resolver   *availability.Resolver
	Bookings   *submission.Bookings
	Leads      *submission.Leads
	Branding   config.BrandingConfig
	Server     config.ServerConfig

	// Ready reports whether the answer store is reachable.
	Ready func(ctx context.Context) error

	Observability *observability.Observability
	Logger        logger.Logger
}

type Server struct {
	deps   Dependencies
	logger logger.Logger
}

func New(deps Dependencies) *Server {
	return &Server{deps: deps, logger: deps.Logger}
}

// Handler returns the routed API wrapped in CORS handling.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.instrument)

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.HandleFunc("/ready", s.ready).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/branding", s.branding).Methods(http.MethodGet)

	r.HandleFunc("/availability/first", s.firstAvailable).Methods(http.MethodGet)
	r.HandleFunc("/availability/dates/{date}/slots", s.slots).Methods(http.MethodGet)

	r.HandleFunc("/sessions", s.createSession).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}", s.deleteSession).Methods(http.MethodDelete)
	sr := r.PathPrefix("/sessions/{id}").Subrouter()
	sr.HandleFunc("/visit", s.visit).Methods(http.MethodPost)
	sr.HandleFunc("/contact/params", s.contactParams).Methods(http.MethodPost)
	sr.HandleFunc("/funnel", s.getFunnel).Methods(http.MethodGet)
	sr.HandleFunc("/funnel/{event}", s.fireFunnel).Methods(http.MethodPost)
	sr.HandleFunc("/scheduling", s.getScheduling).Methods(http.MethodGet)
	sr.HandleFunc("/scheduling/{event}", s.fireScheduling).Methods(http.MethodPost)
	sr.HandleFunc("/lead", s.submitLead).Methods(http.MethodPost)

	origins := s.deps.Server.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(r)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument records request count and latency per route template.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		if s.deps.Observability != nil {
			s.deps.Observability.RecordRequest(r.Context(), route, rec.status, time.Since(start))
		}
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		if err := s.deps.Ready(r.Context()); err != nil {
			s.logger.Warn("Readiness check failed", map[string]interface{}{"error": err.Error()})
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) branding(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Branding)
}
