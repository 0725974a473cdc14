package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/charmbracelet/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthgrpc "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/emmett/streamvox/internal/app"
	"github.com/emmett/streamvox/internal/telemetry"
)

// Server wraps the gRPC server and services
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	cfg        Config
	logger     *log.Logger
}

// Config holds server configuration
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
}

// Addr is the host:port the server listens on
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, fmt.Sprint(c.Port))
}

// NewServer creates a gRPC server exposing the recogniser and the standard
// health service.
func NewServer(cfg Config, rec *app.Recognizer, recorder *telemetry.Recorder, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}

	s := &Server{
		grpcServer: grpc.NewServer(),
		health:     health.NewServer(),
		cfg:        cfg,
		logger:     logger.WithPrefix("server"),
	}
	healthgrpc.RegisterHealthServer(s.grpcServer, s.health)
	s.setServing(false)
	RegisterRecognizerServer(s.grpcServer, NewRecognizerService(rec, recorder, logger))
	return s
}

func (s *Server) setServing(serving bool) {
	st := healthgrpc.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthgrpc.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// ListenAndServe binds the configured address and serves until ctx is done
func (s *Server) ListenAndServe(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr(), err)
	}
	return s.Serve(ctx, lis)
}

// Serve serves on lis until ctx is done, then stops gracefully. Streams
// still open after the shutdown timeout are cut off.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	s.setServing(true)
	s.logger.Info("gRPC server listening", "addr", lis.Addr().String())

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-done:
			return
		case <-ctx.Done():
		}
		s.logger.Info("shutdown requested, stopping gRPC server")
		s.Stop()
	}()

	if err := s.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("gRPC server terminated: %w", err)
	}
	return nil
}

// Stop marks the server as not serving and stops it gracefully
func (s *Server) Stop() {
	s.setServing(false)

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(s.cfg.ShutdownTimeout):
		s.logger.Warn("graceful stop timed out, forcing stop")
		s.grpcServer.Stop()
	}
}
