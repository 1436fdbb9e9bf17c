// Package api exposes the ingestion gateway over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trobanga/rastergate/internal/lib"
	"github.com/trobanga/rastergate/internal/models"
	"github.com/trobanga/rastergate/internal/obs"
)

const maxRequestBodyBytes = 1 << 20

// RequestIDHeader carries the correlation id of a request
const RequestIDHeader = "X-Request-ID"

// Ingestion is the admission logic behind the routes
type Ingestion interface {
	ValidateSources(ctx context.Context, files models.InputFiles) (models.ValidationOutcome, error)
	NewLayer(ctx context.Context, req models.NewLayerRequest) (models.JobResponse, error)
	UpdateLayer(ctx context.Context, catalogID string, req models.UpdateLayerRequest) (models.JobResponse, error)
	RetryJob(ctx context.Context, jobID string) error
}

// Server holds the HTTP handlers
type Server struct {
	ingestion Ingestion
	logger    *lib.Logger
}

// NewServer creates the HTTP layer for an ingestion backend
func NewServer(ingestion Ingestion, logger *lib.Logger) *Server {
	return &Server{ingestion: ingestion, logger: logger}
}

// Router builds the route table
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(obs.MetricsMiddleware)
	r.Use(requestID)
	r.Use(limitRequestBody)

	r.Get("/liveness", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/ingestion", func(r chi.Router) {
		r.Post("/validate/sources", s.handleValidateSources)
		r.Post("/", s.handleNewLayer)
		r.Put("/{id}", s.handleUpdateLayer)
		r.Put("/{jobId}/retry", s.handleRetryJob)
	})

	return r
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func limitRequestBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}
