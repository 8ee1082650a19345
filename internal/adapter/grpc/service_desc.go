package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified name of the valuation service
const ServiceName = "portfolio.v1.PortfolioValuationService"

// ValuationServer is the server API of the valuation service.
// Requests and responses are google.protobuf.Struct messages.
type ValuationServer interface {
	GetPortfolioValueSeries(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetWeightsFromInception(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SimulateTrade(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RecordDeposit(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RecordPrice(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetOverview(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Reconcile(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(ValuationServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ValuationServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + method,
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ValuationServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes the valuation service for grpc.Server.RegisterService
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ValuationServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("GetPortfolioValueSeries", ValuationServer.GetPortfolioValueSeries),
		unaryHandler("GetWeightsFromInception", ValuationServer.GetWeightsFromInception),
		unaryHandler("SimulateTrade", ValuationServer.SimulateTrade),
		unaryHandler("RecordDeposit", ValuationServer.RecordDeposit),
		unaryHandler("RecordPrice", ValuationServer.RecordPrice),
		unaryHandler("GetOverview", ValuationServer.GetOverview),
		unaryHandler("Reconcile", ValuationServer.Reconcile),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "portfolio/v1/valuation.proto",
}

// RegisterValuationServer registers srv on s
func RegisterValuationServer(s grpc.ServiceRegistrar, srv ValuationServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client calls the valuation service over a client connection
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient creates a new valuation client
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call invokes method with a Struct request
func (c *Client) Call(ctx context.Context, method string, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
