package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"dexindexer/internal/api/http/handlers"
	"dexindexer/internal/api/http/mw"
	"dexindexer/internal/config"

	"gitlab.com/nevasik7/alerting/logger"
)

type ServerDeps struct {
	Logger  logger.Logger
	Cfg     config.HTTPConfig
	Checker handlers.DependencyChecker
}

type Server struct {
	log logger.Logger
	srv *http.Server
}

func NewServer(d *ServerDeps) *Server {
	cfg := d.Cfg
	// sane defaults
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 5 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 20 * time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 60 * time.Second
	}

	router := BuildRouter(handlers.NewHandler(d.Logger, d.Checker), mw.NewLogging(d.Logger))

	return &Server{
		log: d.Logger,
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           router,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
		},
	}
}

func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start blocks until the server stops; http.ErrServerClosed after Shutdown
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.log.Infof("HTTP server listening on %s", ln.Addr().String())
	return s.srv.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
