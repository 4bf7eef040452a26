package pb

import (
	context "context"

	grpc "google.golang.org/grpc"
	codes "google.golang.org/grpc/codes"
	status "google.golang.org/grpc/status"

	"refinery/internal/record"
)

const (
	FilterService_Filter_FullMethodName = "/refinery.v1.FilterService/Filter"
)

type FilterRequest struct {
	Filter string         `msgpack:"filter"`
	Tag    string         `msgpack:"tag"`
	Record *record.Record `msgpack:"record"`
}

type FilterResponse struct {
	Record *record.Record `msgpack:"record"`
}

type FilterServiceClient interface {
	Filter(ctx context.Context, in *FilterRequest, opts ...grpc.CallOption) (*FilterResponse, error)
}

type filterServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewFilterServiceClient(cc grpc.ClientConnInterface) FilterServiceClient {
	return &filterServiceClient{cc}
}

func (c *filterServiceClient) Filter(ctx context.Context, in *FilterRequest, opts ...grpc.CallOption) (*FilterResponse, error) {
	cOpts := append([]grpc.CallOption{grpc.StaticMethod(), grpc.CallContentSubtype(CodecName)}, opts...)
	out := new(FilterResponse)
	if err := c.cc.Invoke(ctx, FilterService_Filter_FullMethodName, in, out, cOpts...); err != nil {
		return nil, err
	}
	return out, nil
}

type FilterServiceServer interface {
	Filter(context.Context, *FilterRequest) (*FilterResponse, error)
}

type UnimplementedFilterServiceServer struct{}

func (UnimplementedFilterServiceServer) Filter(context.Context, *FilterRequest) (*FilterResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Filter not implemented")
}

func RegisterFilterServiceServer(s grpc.ServiceRegistrar, srv FilterServiceServer) {
	s.RegisterService(&FilterService_ServiceDesc, srv)
}

func _FilterService_Filter_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(FilterRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FilterServiceServer).Filter(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: FilterService_Filter_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(FilterServiceServer).Filter(ctx, req.(*FilterRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var FilterService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "refinery.v1.FilterService",
	HandlerType: (*FilterServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Filter",
			Handler:    _FilterService_Filter_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "api/v1/filter_grpc.go",
}
