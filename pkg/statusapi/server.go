// Package statusapi serves the local status and metrics endpoint standing in
// for the dashboard UI: connection state, permission snapshot, result log,
// and Prometheus metrics.
package statusapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/remotia/remotia/pkg/channel"
	"github.com/remotia/remotia/pkg/observability"
	"github.com/remotia/remotia/pkg/permission"
	"github.com/remotia/remotia/pkg/protocol"
)

// Session is the channel surface the status endpoint reads. *channel.Channel
// satisfies it.
type Session interface {
	SessionID() string
	State() channel.State
	Permissions() *permission.Set
	Results() []channel.Result
	Processes() []protocol.ProcessInfo
	PendingCount() int
	FrameCount() int
}

// Server is the local status HTTP listener.
type Server struct {
	session Session
	logger  *observability.Logger
	http    *http.Server
}

// New creates a status server bound to the given address.
func New(bind string, session Session, logger *observability.Logger) *Server {
	s := &Server{
		session: session,
		logger:  logger,
	}

	router := chi.NewRouter()
	router.Get("/healthz", s.handleHealthz)
	router.Get("/status", s.handleStatus)
	router.Get("/metrics", promhttp.Handler().ServeHTTP)

	s.http = &http.Server{
		Addr:              bind,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// ListenAndServe blocks serving the status endpoint.
func (s *Server) ListenAndServe() error {
	s.logger.Info("status endpoint listening")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

type statusPayload struct {
	SessionID   string                 `json:"sessionId"`
	State       string                 `json:"state"`
	Permissions *permission.Set        `json:"permissions"`
	Results     []channel.Result       `json:"results"`
	Processes   []protocol.ProcessInfo `json:"processes"`
	Pending     int                    `json:"pendingCommands"`
	Frames      int                    `json:"retainedFrames"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, statusPayload{
		SessionID:   s.session.SessionID(),
		State:       s.session.State().String(),
		Permissions: s.session.Permissions(),
		Results:     s.session.Results(),
		Processes:   s.session.Processes(),
		Pending:     s.session.PendingCount(),
		Frames:      s.session.FrameCount(),
	})
}

// respondJSON sends a JSON response with appropriate headers.
func respondJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
	}
}
