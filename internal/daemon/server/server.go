// Package server provides the HTTP surface of the dash daemon: the JSON
// request gateway plus the SSE and WebSocket live-update streams.
package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/bmad-tools/dash/config"
	"github.com/bmad-tools/dash/errors"
	"github.com/bmad-tools/dash/internal/daemon/session"
	"github.com/bmad-tools/dash/internal/daemon/store"
	"github.com/bmad-tools/dash/logging"
	"github.com/bmad-tools/dash/pkg/dispatch"
	"github.com/bmad-tools/dash/pkg/probe"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// Server manages the daemon's HTTP server on a local TCP port.
type Server struct {
	cfg        *config.Config
	store      *store.Store
	sessions   *session.Manager
	prober     *probe.Prober
	dispatcher *dispatch.Dispatcher
	logger     *logrus.Entry
	server     *http.Server
	startedAt  time.Time
}

// New wires a Server over the shared daemon components.
func New(cfg *config.Config, st *store.Store, mgr *session.Manager, prober *probe.Prober, disp *dispatch.Dispatcher) *Server {
	return &Server{
		cfg:        cfg,
		store:      st,
		sessions:   mgr,
		prober:     prober,
		dispatcher: disp,
		logger:     logging.NewLogger("server"),
		startedAt:  time.Now(),
	}
}

// Handler builds the full route table. Exposed so tests can drive the
// server through httptest without a real listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/config", s.handleConfig)

	mux.HandleFunc("/project/open", s.handleProjectOpen)
	mux.HandleFunc("/project/create", s.handleProjectCreate)
	mux.HandleFunc("/recent-projects", s.handleRecentProjects)

	mux.HandleFunc("/workflow-status", s.handleWorkflowStatus)
	mux.HandleFunc("/sprint-status", s.handleSprintStatus)
	mux.HandleFunc("/implementation-flow", s.handleImplementationFlow)
	mux.HandleFunc("/story/active", s.handleActiveStory)
	mux.HandleFunc("/story/update-status", s.handleStoryUpdate)
	mux.HandleFunc("/story/", s.handleStoryByID)

	mux.HandleFunc("/agents", s.handleAgents)
	mux.HandleFunc("/agents/", s.handleAgentByName)

	mux.HandleFunc("/claude/status", s.handleClaudeStatus)
	mux.HandleFunc("/claude/launch", s.handleClaudeLaunch)
	mux.HandleFunc("/claude/send-input", s.handleSendInput)
	mux.HandleFunc("/claude/debug", s.handleClaudeDebug)
	mux.HandleFunc("/command/execute", s.handleCommandExecute)

	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/ws", s.handleWebSocket)

	return h2c.NewHandler(mux, &http2.Server{})
}

// ListenAndServe starts the daemon on the configured address.
// It blocks until the server stops or fails.
func (s *Server) ListenAndServe() error {
	listener, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return err
	}
	s.server = &http.Server{Handler: s.Handler()}
	s.logger.WithField("addr", s.cfg.Addr()).Info("Daemon listening")
	return s.server.Serve(listener)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// envelope is the uniform response wrapper.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *errorBody  `json:"error,omitempty"`
}

type errorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) ok(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	de := errors.AsDash(err)
	if de.HTTPStatus() >= 500 {
		s.logger.WithError(err).Error("Request failed")
	}
	writeJSON(w, de.HTTPStatus(), envelope{
		Success: false,
		Error:   &errorBody{Code: string(de.Code), Message: de.Message, Details: de.Details},
	})
}

// decode parses a JSON request body into dst.
func decode(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.InvalidRequest("invalid request body")
	}
	return nil
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		writeJSON(w, http.StatusMethodNotAllowed, envelope{
			Success: false,
			Error:   &errorBody{Code: string(errors.ErrCodeInvalidRequest), Message: "method not allowed"},
		})
		return false
	}
	return true
}
