package transform

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	pb "refinery/api/v1"
)

// Client wraps a remote filter server and exposes a uniform API.
type Client interface {
	Filter(ctx context.Context, req *pb.FilterRequest) (*pb.FilterResponse, error)
	Health(ctx context.Context, filter string) (bool, error)
	Close() error
}

// GRPCClient talks to a transport.Server.
type GRPCClient struct {
	conn   *grpc.ClientConn
	svc    pb.FilterServiceClient
	health healthpb.HealthClient
}

// NewGRPCClient creates a lazily connecting client; plaintext unless opts
// say otherwise.
func NewGRPCClient(target string, opts ...grpc.DialOption) (*GRPCClient, error) {
	if len(opts) == 0 {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("transform: dial %s: %w", target, err)
	}
	return &GRPCClient{
		conn:   conn,
		svc:    pb.NewFilterServiceClient(conn),
		health: healthpb.NewHealthClient(conn),
	}, nil
}

func (c *GRPCClient) Filter(ctx context.Context, req *pb.FilterRequest) (*pb.FilterResponse, error) {
	return c.svc.Filter(ctx, req)
}

// Health reports whether the server is SERVING filter.
func (c *GRPCClient) Health(ctx context.Context, filter string) (bool, error) {
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: filter})
	if err != nil {
		return false, err
	}
	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING, nil
}

func (c *GRPCClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
