// Package api serves stored enforcement data and collector health over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sells-group/ohss-collector/internal/metrics"
	"github.com/sells-group/ohss-collector/internal/store"
)

// Name and Version are reported by the index route.
const (
	Name    = "OHSS Collector API"
	Version = "1.0.0"
)

const (
	queryTimeout = 10 * time.Second
	pingTimeout  = 5 * time.Second
)

// Server routes read requests to a store.Reader.
type Server struct {
	reader  store.Reader
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewServer creates a Server. m may be nil; now defaults to time.Now.
func NewServer(reader store.Reader, m *metrics.Metrics, now func() time.Time) *Server {
	if now == nil {
		now = time.Now
	}
	return &Server{reader: reader, metrics: m, now: now}
}

// Routes lists the endpoints shown by the index route.
var Routes = []string{
	"/api/v1/health",
	"/api/v1/arrests",
	"/api/v1/detentions",
	"/api/v1/removals",
	"/api/v1/aggregates/national",
	"/api/v1/aggregates/state/{state}",
	"/metrics",
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Requested-With"},
		MaxAge:         300,
	}))
	r.Use(s.instrument)

	r.Get("/", s.handleIndex)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Get("/health", s.handleHealth)
		r.Get("/arrests", s.handleArrests)
		r.Get("/detentions", s.handleDetentions)
		r.Get("/removals", s.handleRemovals)
		r.Get("/aggregates/national", s.handleNationalAggregate)
		r.Get("/aggregates/state/{state}", s.handleStateAggregate)
	})

	return r
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":      Name,
		"version":   Version,
		"status":    "running",
		"endpoints": Routes,
	})
}
