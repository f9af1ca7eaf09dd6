// Package health exposes the standard gRPC health service next to the HTTP
// API so orchestrators can probe either.
package health

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

type Server struct {
	grpc    *grpc.Server
	health  *health.Server
	lis     net.Listener
	service string
	log     *zap.Logger
}

// Listen binds addr and registers the health and reflection services.
func Listen(addr, service string, log *zap.Logger) (*Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)
	hs.SetServingStatus(service, healthpb.HealthCheckResponse_NOT_SERVING)
	return &Server{grpc: gs, health: hs, lis: lis, service: service, log: log}, nil
}

// Serve blocks until the server stops.
func (s *Server) Serve() error {
	s.log.Info("grpc health server starting", zap.String("addr", s.lis.Addr().String()))
	return s.grpc.Serve(s.lis)
}

// SetReady flips the service status reported to probes.
func (s *Server) SetReady(ready bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ready {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(s.service, st)
	s.health.SetServingStatus("", st)
}

func (s *Server) Addr() string { return s.lis.Addr().String() }

// Shutdown stops gracefully, forcing a stop when ctx ends first.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.Shutdown()
	stopped := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		s.grpc.Stop()
	}
	return nil
}

// Probe reports whether the store answers within timeout; it backs /readyz.
func Probe(ping func(ctx context.Context) error, timeout time.Duration) func() error {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return ping(ctx)
	}
}
