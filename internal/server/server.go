// Package server exposes the token exchange over HTTP.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/systmms/dbsts/internal/config"
	dberrors "github.com/systmms/dbsts/internal/errors"
	"github.com/systmms/dbsts/internal/identity"
	"github.com/systmms/dbsts/internal/issuer"
	"github.com/systmms/dbsts/internal/logging"
)

// anonymousClient is the principal recorded for requests that present
// no client credentials when none are required.
const anonymousClient = "anonymous"

// TokenResponse is the payload returned for a successful exchange.
type TokenResponse struct {
	ClientID   string `json:"clientId"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	Database   string `json:"database"`
	Expiration int64  `json:"expiration"`
	Platform   string `json:"platform"`
	Host       string `json:"host,omitempty"`
	Port       int    `json:"port,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server ties the identity resolver and credential issuer to an HTTP
// listener.
type Server struct {
	resolver *identity.Resolver
	issuer   *issuer.Issuer
	client   config.ClientConfig
	backend  config.AdapterConfig
	addr     string
	logger   *logging.Logger
	server   *http.Server
}

// New builds a server. Client credentials are optional: when unset any
// caller is accepted as the anonymous principal.
func New(r *identity.Resolver, iss *issuer.Issuer, cfg config.ServerConfig, client config.ClientConfig, backend config.AdapterConfig, logger *logging.Logger) *Server {
	return &Server{
		resolver: r,
		issuer:   iss,
		client:   client,
		backend:  backend,
		addr:     cfg.Addr,
		logger:   logger,
	}
}

// Handler returns the full route table, including metrics and health.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/sts/web", s.handleExchange)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.logger.Info("listening on %s", s.addr)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server: %v", err)
		}
	}()
}

// Stop gracefully shuts down the listener.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleExchange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	clientID, err := s.authenticate(r)
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	if err := r.ParseForm(); err != nil {
		s.writeFailure(w, dberrors.InvalidRequestError{Message: "malformed request parameters"})
		return
	}

	req, err := parseExchangeRequest(r)
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	id, err := s.resolver.Resolve(req)
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	cred, err := s.issuer.Exchange(r.Context(), id, req.Roles)
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	resp := TokenResponse{
		ClientID:   clientID,
		Username:   cred.Username,
		Password:   cred.Password,
		Database:   cred.Database,
		Expiration: int64(time.Until(cred.ValidUntil).Seconds()),
		Platform:   s.backend.Platform,
		Host:       s.backend.Host,
		Port:       s.backend.Port,
	}
	writeJSON(w, http.StatusOK, resp)
}

// authenticate checks HTTP basic credentials against the configured
// client. With no client configured every caller maps to the anonymous
// principal.
func (s *Server) authenticate(r *http.Request) (string, error) {
	if s.client.ClientID == "" {
		return anonymousClient, nil
	}

	id, secret, ok := r.BasicAuth()
	if !ok {
		return "", dberrors.AuthenticationError{Message: "client credentials required"}
	}
	idOK := subtle.ConstantTimeCompare([]byte(id), []byte(s.client.ClientID)) == 1
	secretOK := subtle.ConstantTimeCompare([]byte(secret), []byte(s.client.ClientSecret)) == 1
	if !idOK || !secretOK {
		return "", dberrors.AuthenticationError{Message: "invalid client credentials"}
	}
	return id, nil
}

func parseExchangeRequest(r *http.Request) (identity.ExchangeRequest, error) {
	req := identity.ExchangeRequest{
		Token:    r.Form.Get("token"),
		Username: r.Form.Get("username"),
		Database: r.Form.Get("database"),
	}

	if roles := r.Form.Get("roles"); roles != "" {
		for _, role := range strings.Split(roles, ",") {
			if role = strings.TrimSpace(role); role != "" {
				req.Roles = append(req.Roles, role)
			}
		}
	}

	if raw := r.Form.Get("duration"); raw != "" {
		duration, err := strconv.Atoi(raw)
		if err != nil || duration < 0 {
			return identity.ExchangeRequest{}, dberrors.InvalidRequestError{
				Message: "duration must be a non-negative integer",
			}
		}
		req.Duration = duration
	}

	return req, nil
}

func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	var authErr dberrors.AuthenticationError
	if errors.As(err, &authErr) {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}
	if dberrors.IsClientError(err) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Error("exchange failed: %v", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
