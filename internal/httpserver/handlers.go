package httpserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/skillcoder/gracehook/internal/infra/pinger"
	"github.com/skillcoder/gracehook/internal/infra/shutdownhook"
)

type statusResponse struct {
	State        string                       `json:"state"`
	Uptime       string                       `json:"uptime"`
	StartTime    time.Time                    `json:"startTime"`
	UptimeSec    float64                      `json:"uptimeSeconds"`
	Checks       map[string]pinger.Statistics `json:"checks"`
	ShutdownHook shutdownhook.Status          `json:"shutdownHook"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	if !s.appState.IsHealthy() || !s.checks.IsHealthy() {
		w.WriteHeader(http.StatusServiceUnavailable)

		return
	}

	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if !s.appState.IsReady() || !s.checks.IsReady() {
		w.WriteHeader(http.StatusServiceUnavailable)

		return
	}

	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	uptime := s.appState.GetUptime()

	s.writeJSON(w, r, statusResponse{
		State:        string(s.appState.GetState()),
		Uptime:       uptime.String(),
		StartTime:    s.appState.GetStartTime(),
		UptimeSec:    uptime.Seconds(),
		Checks:       s.checks.GetAllStats(),
		ShutdownHook: s.hook.Status(),
	})
}

func (s *Server) handleShutdownHook(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, s.hook.Status())
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.ErrorContext(r.Context(), "failed to encode response",
			"path", r.URL.Path,
			"reason", err,
		)
	}
}
