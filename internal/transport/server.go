// Package transport exposes locally compiled filters over gRPC so remote
// pipelines can call them as grpc stages.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	pb "refinery/api/v1"
	"refinery/internal/filter"
	"refinery/internal/logging"
	"refinery/internal/record"
)

type Server struct {
	grpc   *grpc.Server
	lis    net.Listener
	health *health.Server
}

// StartServer binds :port and prepares a server for filters. Serve must be
// called to start accepting calls.
func StartServer(port int, filters []filter.Filter) (*Server, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, err
	}
	return NewServer(lis, filters), nil
}

// NewServer registers FilterService and the standard health service on lis.
// Every filter is reported SERVING under its own name.
func NewServer(lis net.Listener, filters []filter.Filter, opts ...grpc.ServerOption) *Server {
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(logCalls)}, opts...)
	s := &Server{
		grpc:   grpc.NewServer(opts...),
		lis:    lis,
		health: health.NewServer(),
	}

	svc := &filterService{filters: make(map[string]filter.Filter, len(filters))}
	for _, f := range filters {
		svc.filters[f.Name()] = f
		s.health.SetServingStatus(f.Name(), healthpb.HealthCheckResponse_SERVING)
	}
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	pb.RegisterFilterServiceServer(s.grpc, svc)
	healthpb.RegisterHealthServer(s.grpc, s.health)
	return s
}

func (s *Server) Addr() net.Addr { return s.lis.Addr() }

func (s *Server) Serve() error {
	logging.L().Info("filter server listening", "addr", s.lis.Addr().String())
	return s.grpc.Serve(s.lis)
}

func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

type filterService struct {
	pb.UnimplementedFilterServiceServer
	filters map[string]filter.Filter
}

// Filter applies one named filter. A nil response record means the filter
// dropped it.
func (s *filterService) Filter(ctx context.Context, req *pb.FilterRequest) (*pb.FilterResponse, error) {
	f, ok := s.filters[req.Filter]
	if !ok {
		return nil, status.Errorf(codes.NotFound, "filter %q is not served here", req.Filter)
	}
	rec := req.Record
	if rec == nil {
		rec = record.New()
	}
	out, err := f.Apply(ctx, req.Tag, rec)
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.FilterResponse{Record: out}, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, filter.ErrConfig), errors.Is(err, filter.ErrUnknownFilter):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func logCalls(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := next(ctx, req)
	l := logging.L().With("method", info.FullMethod, "took", time.Since(start))
	if r, ok := req.(*pb.FilterRequest); ok {
		l = l.With("filter", r.Filter, "tag", r.Tag)
	}
	if err != nil {
		l.Warn("filter call failed", "code", status.Code(err).String(), "err", err)
	} else {
		l.Debug("filter call")
	}
	return resp, err
}
