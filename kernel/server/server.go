package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Listen       string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Server serves a Backend over the orchestrator's REST contract.
type Server struct {
	backend *Backend
	server  *http.Server
}

func NewRouter(backend *Backend) *mux.Router {
	router := mux.NewRouter()
	NewHandler(backend).RegisterRoutes(router)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")
	router.Use(loggingMiddleware)
	router.Use(recoveryMiddleware)
	return router
}

func NewServer(config Config, backend *Backend) *Server {
	return &Server{
		backend: backend,
		server: &http.Server{
			Addr:         config.Listen,
			Handler:      NewRouter(backend),
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
	}
}

// Start blocks until the server stops; a graceful Shutdown returns nil.
func (s *Server) Start() error {
	logrus.Infof("mock orchestrator listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	logrus.Info("shutting down mock orchestrator")
	s.backend.Close()
	return s.server.Shutdown(ctx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logrus.WithField("requestId", r.Header.Get("X-Request-ID")).
			Debugf("%s %s %s %v", r.Method, r.URL.Path, r.RemoteAddr, time.Since(start))
	})
}

func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logrus.Errorf("panic recovered: %v", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
