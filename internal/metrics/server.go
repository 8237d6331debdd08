package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/Felps0156/SDR-Agent/internal/logger"
)

const (
	// DefaultAddr is the default address for the metrics server.
	DefaultAddr = ":9090"

	DefaultReadTimeout  = 10 * time.Second
	DefaultWriteTimeout = 10 * time.Second
	DefaultIdleTimeout  = 60 * time.Second
)

// Server serves /metrics and /healthz on a dedicated port, away from the
// tool transport.
type Server struct {
	httpServer *http.Server
	addr       string
	log        *logger.Logger
}

func NewServer(addr string, recorder *Recorder, log *logger.Logger) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	if log == nil {
		log = logger.Discard()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", recorder.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &Server{
		addr: addr,
		log:  log,
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: DefaultReadTimeout,
			WriteTimeout:      DefaultWriteTimeout,
			IdleTimeout:       DefaultIdleTimeout,
		},
	}
}

// Start blocks until the server stops. A graceful Shutdown returns nil.
func (s *Server) Start() error {
	s.log.Info("Starting metrics server", logger.F("ADDR", s.addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down metrics server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.addr
}

// Handler returns the mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
