package queryservice

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/net/context"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oceanografia/bathy/metrics"
	"github.com/oceanografia/bathy/processor"
)

const ServiceName = "bathy.RasterQuery"

// RasterQueryServer is the gRPC face of a processor.Provider. Requests and
// responses are JSON objects carried as google.protobuf.Struct.
type RasterQueryServer interface {
	Preconsult(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Resolve(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Catalog(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

func RegisterRasterQueryServer(s *grpc.Server, srv RasterQueryServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RasterQueryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Preconsult", Handler: preconsultHandler},
		{MethodName: "Resolve", Handler: resolveHandler},
		{MethodName: "Catalog", Handler: catalogHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "bathy/raster_query.proto",
}

func preconsultHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RasterQueryServer).Preconsult(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Preconsult"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RasterQueryServer).Preconsult(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func resolveHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RasterQueryServer).Resolve(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Resolve"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RasterQueryServer).Resolve(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func catalogHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RasterQueryServer).Catalog(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Catalog"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RasterQueryServer).Catalog(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// Server serves a processor.Provider over gRPC.
type Server struct {
	Provider *processor.Provider
	Logger   metrics.Logger
}

func NewServer(p *processor.Provider, logger metrics.Logger) *Server {
	return &Server{Provider: p, Logger: logger}
}

func (s *Server) collector(ctx context.Context) *metrics.QueryCollector {
	mc := metrics.NewQueryCollector(s.Logger, "grpc")
	if pr, ok := peer.FromContext(ctx); ok && pr.Addr != nil {
		mc.Info.RemoteAddr = pr.Addr.String()
	}
	return mc
}

func (s *Server) Preconsult(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	body, err := in.MarshalJSON()
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "%v", err)
	}
	req, err := processor.DecodePreconsultRequest(bytes.NewReader(body))
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "%v", err)
	}

	res, err := s.Provider.RunPreconsult(ctx, req, s.collector(ctx))
	if err != nil {
		return nil, StatusError(err)
	}
	return toStruct(res)
}

func (s *Server) Resolve(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	body, err := in.MarshalJSON()
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "%v", err)
	}
	req, err := processor.DecodeResolveRequest(bytes.NewReader(body))
	if err != nil {
		if processor.ErrorKind(err) != nil {
			return nil, StatusError(err)
		}
		return nil, status.Errorf(codes.InvalidArgument, "%v", err)
	}

	res, err := s.Provider.RunResolve(ctx, req, s.collector(ctx))
	if err != nil {
		return nil, StatusError(err)
	}
	return toStruct(res)
}

func (s *Server) Catalog(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error) {
	return toStruct(s.Provider.Catalog())
}

// StatusError maps the query error taxonomy onto gRPC codes.
func StatusError(err error) error {
	code := codes.Internal
	switch processor.ErrorKind(err) {
	case processor.ErrEmptyWindow:
		code = codes.InvalidArgument
	case processor.ErrUnsupportedOperation:
		code = codes.Unimplemented
	case processor.ErrDatasetUnavailable:
		code = codes.NotFound
	case processor.ErrToolkitFailure:
		code = codes.Unavailable
	case processor.ErrArtifactIO:
		code = codes.Internal
	default:
		if errors.Is(err, context.Canceled) {
			code = codes.Canceled
		} else if errors.Is(err, context.DeadlineExceeded) {
			code = codes.DeadlineExceeded
		}
	}
	return status.Error(code, err.Error())
}

// toStruct converts any JSON encodable result into a Struct.
func toStruct(v interface{}) (*structpb.Struct, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding result: %v", err)
	}
	out := &structpb.Struct{}
	if err := out.UnmarshalJSON(body); err != nil {
		return nil, status.Errorf(codes.Internal, "encoding result: %v", err)
	}
	return out, nil
}

// fromStruct decodes a Struct into out.
func fromStruct(in *structpb.Struct, out interface{}) error {
	body, err := in.MarshalJSON()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response: %v", err)
	}
	return nil
}
