// Package httpmcp implements the HTTP transport (§4.8/§6): a single MCP
// endpoint path accepting GET/POST/DELETE/OPTIONS, a health endpoint, host
// and origin admission control, bearer-token auth, and session binding in
// stateful mode.
package httpmcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/scholarmcp/server/internal/dispatcher"
	"github.com/scholarmcp/server/internal/session"
)

const sessionHeader = "Mcp-Session-Id"

// Config tunes admission control and the listening address.
type Config struct {
	Address         string
	EndpointPath    string
	HealthPath      string
	MetricsPath     string
	AllowedOrigins  []string
	AllowedHosts    []string
	APIKey          string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Server is the HTTP transport.
type Server struct {
	cfg        Config
	router     chi.Router
	httpServer *http.Server
	dispatcher *dispatcher.Dispatcher
	sessions   *session.Manager
	log        zerolog.Logger
}

// New builds the HTTP transport server.
func New(cfg Config, d *dispatcher.Dispatcher, sessions *session.Manager, log zerolog.Logger) *Server {
	s := &Server{cfg: cfg, dispatcher: d, sessions: sessions, log: log.With().Str("component", "http-transport").Logger()}
	s.router = s.buildRouter()
	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.recoverer)

	endpoint := s.cfg.EndpointPath
	if endpoint == "" {
		endpoint = "/mcp"
	}
	health := s.cfg.HealthPath
	if health == "" {
		health = "/health"
	}

	r.Get(health, s.handleHealth)
	if s.cfg.MetricsPath != "" {
		r.Handle(s.cfg.MetricsPath, promhttp.Handler())
	}

	withCORS := r.With(s.corsMiddleware)
	withCORS.Options(endpoint, s.handlePreflight)

	withAdmission := withCORS.With(s.admissionMiddleware)
	withAdmission.Get(endpoint, s.handleMCP)
	withAdmission.Post(endpoint, s.handleMCP)
	withAdmission.Delete(endpoint, s.handleMCP)
	return r
}

// Start runs the HTTP server until it returns (on Shutdown, ErrServerClosed).
func (s *Server) Start() error {
	s.log.Info().Str("address", s.httpServer.Addr).Msg("http transport starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on http address: %w", err)
	}
	if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server and closes every open session.
func (s *Server) Shutdown(ctx context.Context) error {
	s.sessions.Shutdown()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"openSessions": s.sessions.Len(),
	})
}

// corsMiddleware sets CORS headers only when an Origin header is present,
// and always sets Vary: Origin, per §4.8.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Origin")
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+sessionHeader)
			w.Header().Set("Access-Control-Expose-Headers", sessionHeader)
		}
		next.ServeHTTP(w, r)
	})
}

// recoverer catches a panic from any handler downstream and responds with
// the uniform JSON-RPC-shaped error envelope §6 requires, instead of
// leaking a process stack trace over the wire.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("unhandled panic in http transport")
				writeJSON(w, http.StatusInternalServerError, map[string]any{
					"jsonrpc": "2.0",
					"error":   map[string]any{"code": -32603, "message": "Internal server error"},
					"id":      nil,
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handlePreflight(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// admissionMiddleware enforces the host allow-list, origin allow-list, and
// bearer-token check. OPTIONS requests never reach this middleware because
// the preflight route is registered before it in the chain.
func (s *Server) admissionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.hostAllowed(r.Host) {
			writeError(w, http.StatusForbidden, "host not allowed")
			return
		}
		if origin := r.Header.Get("Origin"); origin != "" && !s.originAllowed(origin) {
			writeError(w, http.StatusForbidden, "origin not allowed")
			return
		}
		if s.cfg.APIKey != "" {
			auth := r.Header.Get("Authorization")
			if auth != "Bearer "+s.cfg.APIKey {
				writeError(w, http.StatusUnauthorized, "missing or invalid bearer token")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) hostAllowed(host string) bool {
	if len(s.cfg.AllowedHosts) == 0 {
		hostOnly, _, err := net.SplitHostPort(host)
		if err != nil {
			hostOnly = host
		}
		return hostOnly == "localhost" || hostOnly == "127.0.0.1" || hostOnly == "::1"
	}
	for _, h := range s.cfg.AllowedHosts {
		if h == host {
			return true
		}
	}
	return false
}

func (s *Server) originAllowed(origin string) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return strings.Contains(origin, "localhost") || strings.Contains(origin, "127.0.0.1")
	}
	for _, o := range s.cfg.AllowedOrigins {
		if o == origin {
			return true
		}
	}
	return false
}

// rpcRequest is the minimal envelope the handler decodes to extract the
// tool name and arguments; the framing protocol itself is out of scope.
type rpcRequest struct {
	ID     any             `json:"id"`
	Tool   string          `json:"tool"`
	Params json.RawMessage `json:"params"`
}

func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodDelete:
		s.handleClose(w, r)
		return
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"openSessions": s.sessions.Len()})
		return
	}

	sessionID := r.Header.Get(sessionHeader)

	if s.sessions.IsStateful() {
		s.sessions.Prune()
		isInit := r.Method == http.MethodPost && sessionID == ""
		switch {
		case isInit:
			sessionID = uuid.NewString()
			s.sessions.Create(sessionID, nil)
			w.Header().Set(sessionHeader, sessionID)
		case sessionID == "":
			writeError(w, http.StatusBadRequest, "missing session id")
			return
		default:
			if _, ok := s.sessions.Touch(sessionID); !ok {
				writeError(w, http.StatusNotFound, "unknown session id")
				return
			}
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 8<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	result, toolErr := s.dispatcher.Dispatch(r.Context(), req.Tool, req.Params)
	if toolErr != nil {
		writeJSON(w, http.StatusOK, map[string]any{"id": req.ID, "error": toolErr})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": req.ID, "result": result})
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(sessionHeader)
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing session id")
		return
	}
	if !s.sessions.Close(sessionID) {
		writeError(w, http.StatusNotFound, "unknown session id")
		return
	}
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
