package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/atomic"

	"keyledger.app/cloud/activation"
	"keyledger.app/cloud/internal/config"
	"keyledger.app/cloud/internal/ratelimit"
	"keyledger.app/cloud/internal/results"
	"keyledger.app/cloud/ledger"
)

// Server wires the HTTP surface around the activation engine. Version is
// set from the VERSION file by main.
type Server struct {
	Router  chi.Router
	Engine  *activation.Engine
	Store   ledger.Store
	Config  *config.Config
	Sink    results.Sink
	Limiter ratelimit.RateLimit
	Version string

	requestsServed     atomic.Int64
	activationsGranted atomic.Int64
}

type HealthResponse struct {
	Status             string    `json:"status"`
	Version            string    `json:"version"`
	Timestamp          time.Time `json:"timestamp"`
	RequestsServed     int64     `json:"requestsServed"`
	ActivationsGranted int64     `json:"activationsGranted"`
}

func NewServer(cfg *config.Config, store ledger.Store) *Server {
	s := &Server{
		Engine:  activation.NewEngine(store, cfg.LicenseSecret, cfg.MaxActivations),
		Store:   store,
		Config:  cfg,
		Limiter: ratelimit.New(60, 10*time.Minute),
		Version: "dev",
	}

	if cfg.ResultsDir != "" {
		s.Sink = results.NewFileSink(cfg.ResultsDir)
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.Health)
	r.Post("/api/v1/licenses/activate", s.Activate)
	r.Post("/api/v1/webhooks/stripe", s.Stripe)

	s.Router = r
	return s
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:             "healthy",
		Version:            s.Version,
		Timestamp:          time.Now().UTC(),
		RequestsServed:     s.requestsServed.Load(),
		ActivationsGranted: s.activationsGranted.Load(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response) //nolint:errcheck
}

func writeErrorResponse(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message}) //nolint:errcheck
}
