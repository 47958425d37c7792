package httpapi

import (
	stdcontext "context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Paintersrp/intthread/internal/api"
	"github.com/Paintersrp/intthread/internal/logging"
	"github.com/Paintersrp/intthread/internal/metrics"
)

const (
	defaultAddr            = "127.0.0.1:7663"
	defaultReadHeader      = 5 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	threadsPath = "/api/v1/threads"
)

// Config controls construction of the API server.
type Config struct {
	Addr              string
	Controller        api.Controller
	Listener          net.Listener
	Logger            *logrus.Entry
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server wraps an http.Server exposing thread controls and metrics.
type Server struct {
	ctrl            api.Controller
	srv             *http.Server
	listener        net.Listener
	log             *logrus.Entry
	shutdownTimeout time.Duration
}

// NewServer constructs a Server with sane defaults.
func NewServer(cfg Config) (*Server, error) {
	if isNil(cfg.Controller) {
		return nil, fmt.Errorf("controller is required (got %T)", cfg.Controller)
	}
	addr := NormalizeAddr(cfg.Addr)
	mux := http.NewServeMux()
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
	if srv.ReadHeaderTimeout == 0 {
		srv.ReadHeaderTimeout = defaultReadHeader
	}
	server := &Server{
		ctrl:            cfg.Controller,
		srv:             srv,
		listener:        cfg.Listener,
		log:             cfg.Logger,
		shutdownTimeout: cfg.ShutdownTimeout,
	}
	if server.log == nil {
		server.log = logging.Component(logrus.StandardLogger(), "api")
	}
	if server.shutdownTimeout == 0 {
		server.shutdownTimeout = defaultShutdownTimeout
	}
	server.registerRoutes(mux)
	return server, nil
}

func isNil(ctrl api.Controller) bool {
	if ctrl == nil {
		return true
	}
	v := reflect.ValueOf(ctrl)
	return v.Kind() == reflect.Ptr && v.IsNil()
}

// Run starts serving until the provided context is cancelled.
func (s *Server) Run(ctx stdcontext.Context) error {
	if ctx == nil {
		ctx = stdcontext.Background()
	}
	errCh := make(chan error, 1)
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := stdcontext.WithTimeout(stdcontext.Background(), s.shutdownTimeout)
			defer cancel()
			_ = s.srv.Shutdown(shutdownCtx)
		case <-stop:
		}
	}()

	go func() {
		var err error
		if s.listener != nil {
			err = s.srv.Serve(s.listener)
		} else {
			err = s.srv.ListenAndServe()
		}
		errCh <- err
	}()

	s.log.WithField("addr", s.Addr()).Info("control api listening")
	err := <-errCh
	close(stop)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.srv.Addr
}

// Handler exposes the route table, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc(threadsPath, s.handleThreads)
	mux.HandleFunc(threadsPath+"/", s.handleThread)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
}

func (s *Server) handleThreads(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}
	result, err := s.ctrl.Status(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// handleThread serves /api/v1/threads/{id} and /api/v1/threads/{id}/{action}.
func (s *Server) handleThread(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, threadsPath+"/"), "/")
	parts := strings.Split(rest, "/")
	if len(parts) > 2 {
		s.writeErrorWithDetails(w, fmt.Errorf("%w: invalid thread path", api.ErrUnknownThread), map[string]any{"path": r.URL.Path})
		return
	}

	id, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil || id == 0 {
		s.writeErrorWithDetails(w, fmt.Errorf("%w %q", api.ErrInvalidID, parts[0]), map[string]any{"thread": parts[0]})
		return
	}
	details := map[string]any{"thread": id}

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			s.methodNotAllowed(w, http.MethodGet)
			return
		}
		report, err := s.ctrl.Thread(r.Context(), id)
		if err != nil {
			s.writeErrorWithDetails(w, err, details)
			return
		}
		s.writeJSON(w, http.StatusOK, report)
		return
	}

	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}
	details["action"] = parts[1]
	action, err := api.ParseAction(parts[1])
	if err != nil {
		s.writeErrorWithDetails(w, err, details)
		return
	}
	result, err := s.ctrl.Apply(r.Context(), id, action)
	if err != nil {
		s.writeErrorWithDetails(w, err, details)
		return
	}
	s.log.WithFields(logrus.Fields{"thread": id, "action": action}).Debug("action applied")
	s.writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, method string) {
	w.Header().Set("Allow", method)
	s.writeJSON(w, http.StatusMethodNotAllowed, errorBody{
		Code:    "method_not_allowed",
		Message: fmt.Sprintf("method %s not allowed", method),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

type errorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeErrorWithDetails(w, err, nil)
}

func (s *Server) writeErrorWithDetails(w http.ResponseWriter, err error, extra map[string]any) {
	status, code := classifyError(err)
	details := map[string]any{
		"timestamp": time.Now().UTC(),
	}
	for k, v := range extra {
		details[k] = v
	}
	if status >= http.StatusInternalServerError {
		s.log.WithError(err).WithField("code", code).Error("request failed")
	}
	body := errorBody{
		Code:    code,
		Message: err.Error(),
		Details: details,
	}
	s.writeJSON(w, status, body)
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, stdcontext.Canceled):
		return 499, "context_canceled"
	case errors.Is(err, api.ErrUnknownThread):
		return http.StatusNotFound, "unknown_thread"
	case errors.Is(err, api.ErrInvalidID):
		return http.StatusBadRequest, "invalid_thread_id"
	case errors.Is(err, api.ErrUnknownAction):
		return http.StatusBadRequest, "unknown_action"
	case errors.Is(err, api.ErrNotStarted):
		return http.StatusConflict, "not_started"
	case errors.Is(err, api.ErrThreadRunning):
		return http.StatusConflict, "thread_running"
	case errors.Is(err, api.ErrRegistryClosed):
		return http.StatusServiceUnavailable, "registry_closed"
	case errors.Is(err, api.ErrSpawnFailed):
		return http.StatusInternalServerError, "spawn_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// NormalizeAddr fills in the default address and maps wildcard hosts to
// loopback.
func NormalizeAddr(addr string) string {
	if strings.TrimSpace(addr) == "" {
		return defaultAddr
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		// If parsing failed, trust caller.
		return addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}
