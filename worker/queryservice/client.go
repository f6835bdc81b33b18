package queryservice

import (
	"encoding/json"

	"golang.org/x/net/context"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oceanografia/bathy/processor"
)

// Client calls a RasterQuery server.
type Client struct {
	cc *grpc.ClientConn
}

func NewClient(cc *grpc.ClientConn) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in interface{}, out interface{}, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...)
}

// PreconsultRaw sends a raw Struct, for callers that render the reply
// themselves.
func (c *Client) PreconsultRaw(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, "Preconsult", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ResolveRaw(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, "Resolve", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Preconsult(ctx context.Context, req *processor.PreconsultRequest, opts ...grpc.CallOption) (*processor.PreconsultResult, error) {
	in, err := requestStruct(req)
	if err != nil {
		return nil, err
	}
	out, err := c.PreconsultRaw(ctx, in, opts...)
	if err != nil {
		return nil, err
	}
	res := &processor.PreconsultResult{}
	if err := fromStruct(out, res); err != nil {
		return nil, err
	}
	return res, nil
}

// Resolve decodes the reply into out, which should match the result type of
// req.Kind.
func (c *Client) Resolve(ctx context.Context, req *processor.ResolveRequest, out interface{}, opts ...grpc.CallOption) error {
	in, err := requestStruct(req)
	if err != nil {
		return err
	}
	res, err := c.ResolveRaw(ctx, in, opts...)
	if err != nil {
		return err
	}
	return fromStruct(res, out)
}

func (c *Client) Catalog(ctx context.Context, opts ...grpc.CallOption) (*processor.Catalog, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, "Catalog", &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	cat := &processor.Catalog{}
	if err := fromStruct(out, cat); err != nil {
		return nil, err
	}
	return cat, nil
}

func requestStruct(req interface{}) (*structpb.Struct, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	return ParseStruct(body)
}

// ParseStruct decodes a JSON object into a Struct.
func ParseStruct(body []byte) (*structpb.Struct, error) {
	in := &structpb.Struct{}
	if err := in.UnmarshalJSON(body); err != nil {
		return nil, err
	}
	return in, nil
}
