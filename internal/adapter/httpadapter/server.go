package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/storm-dol-service/internal/domain"
)

// Inferrer runs a single date-of-loss inference.
type Inferrer interface {
	InferDateOfLoss(ctx context.Context, property domain.PropertyContext, window domain.TimeWindow) (domain.DOLResult, error)
}

// Server exposes the inference endpoint alongside health, readiness, and
// metrics routes.
type Server struct {
	httpServer *http.Server
	inferrer   Inferrer
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, and
// POST /v1/date-of-loss routes.
func NewServer(addr string, inferrer Inferrer, ready sharedobs.ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		inferrer: inferrer,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /v1/date-of-loss", s.handleDateOfLoss)

	return s
}

// dolRequest is the inference request body.
type dolRequest struct {
	Lat     float64   `json:"lat"`
	Lon     float64   `json:"lon"`
	Address string    `json:"address,omitempty"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleDateOfLoss(w http.ResponseWriter, r *http.Request) {
	var req dolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Start.IsZero() || req.End.IsZero() || req.End.Before(req.Start) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "window start and end are required, end must not precede start"})
		return
	}

	property := domain.PropertyContext{Lat: req.Lat, Lon: req.Lon, Address: req.Address}
	window := domain.TimeWindow{Start: req.Start, End: req.End}

	result, err := s.inferrer.InferDateOfLoss(r.Context(), property, window)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidLocation):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		case errors.Is(err, context.Canceled):
			// Client went away; nothing useful to write.
		default:
			s.logger.Error("inference failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
