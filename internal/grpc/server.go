// Package grpc exposes the standard gRPC health service for probes.
package grpc

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported alongside the overall "" status.
const ServiceName = "weatheralerts.v1.AlertService"

type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
}

func NewServer() *Server {
	s := &Server{
		grpcServer: grpc.NewServer(grpc.UnaryInterceptor(logUnary)),
		health:     health.NewServer(),
	}
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	reflection.Register(s.grpcServer)
	s.SetServing(true)
	return s
}

func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	slog.Info("gRPC server listening", "addr", addr)
	return s.Serve(lis)
}

// Serve blocks accepting on lis. Health status is left as already set.
func (s *Server) Serve(lis net.Listener) error {
	return s.grpcServer.Serve(lis)
}

func (s *Server) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// Stop flips health to NOT_SERVING, then drains in-flight RPCs.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}

func logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	if err != nil {
		slog.Warn("grpc call failed", "method", info.FullMethod, "duration", time.Since(start), "error", err)
	} else {
		slog.Debug("grpc call", "method", info.FullMethod, "duration", time.Since(start))
	}
	return resp, err
}
