package queryservice

import (
	"context"
	"fmt"
	"net"
	"regexp"
	"testing"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/oceanografia/bathy/processor"
	"github.com/oceanografia/bathy/processor/processortest"
)

func startServer(t *testing.T, tk *processortest.Toolkit) *Client {
	t.Helper()
	p, err := processor.NewProvider(processortest.Config(t.TempDir()), tk, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	RegisterRasterQueryServer(s, NewServer(p, nil))
	go s.Serve(lis)
	t.Cleanup(s.Stop)

	conn, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }),
		grpc.WithInsecure())
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewClient(conn)
}

func TestCatalog(t *testing.T) {
	c := startServer(t, processortest.NewToolkit())

	cat, err := c.Catalog(context.Background())
	if err != nil {
		t.Fatalf("catalog failed: %v", err)
	}
	if len(cat.Layers) != 1 || cat.Layers[0].Code != processortest.Dataset || !cat.Layers[0].Formats["point-value"] {
		t.Errorf("unexpected catalog %+v", cat)
	}
}

func TestPreconsultAndContours(t *testing.T) {
	c := startServer(t, processortest.NewToolkit())
	ctx := context.Background()

	res, err := c.Preconsult(ctx, &processor.PreconsultRequest{
		Dataset: processortest.Dataset,
		Box:     processor.GeoBox{Lng0: 0, Lat0: 0, Lng1: 5, Lat1: 2.5},
	})
	if err != nil {
		t.Fatalf("preconsult failed: %v", err)
	}
	if !regexp.MustCompile(`^tmp_[0-9]+\.tif$`).MatchString(res.TmpFileName) || res.ResX != 200 || !res.Interpolated {
		t.Errorf("unexpected preconsult result %+v", res)
	}
	if res.Attributes["units"] != "m" {
		t.Errorf("unexpected attributes %v", res.Attributes)
	}

	var lines processor.ContourResult
	err = c.Resolve(ctx, &processor.ResolveRequest{
		Kind:          processor.KindContourLines,
		ResolveParams: processor.ResolveParams{TmpFileName: res.TmpFileName, Increment: 100},
	}, &lines)
	if err != nil {
		t.Fatalf("contour lines failed: %v", err)
	}
	if !regexp.MustCompile(`\.isolines\.shp$`).MatchString(lines.FileName) {
		t.Errorf("unexpected contour artifact %s", lines.FileName)
	}
}

func TestResolvePoint(t *testing.T) {
	c := startServer(t, processortest.NewToolkit())

	var pt processor.PointResult
	err := c.Resolve(context.Background(), &processor.ResolveRequest{
		Kind:          processor.KindPointValue,
		ResolveParams: processor.ResolveParams{Variable: processortest.Dataset, Lng: 1, Lat: 1},
	}, &pt)
	if err != nil {
		t.Fatalf("point query failed: %v", err)
	}
	if pt.Value == nil || *pt.Value != -100 || pt.Unit != "m" {
		t.Errorf("unexpected point %+v", pt)
	}
}

func TestStatusCodes(t *testing.T) {
	tk := processortest.NewToolkit()
	tk.SampleErr = fmt.Errorf("gdallocationinfo: exit status 1")
	c := startServer(t, tk)
	ctx := context.Background()

	point := func(variable string, lng float64) error {
		var pt processor.PointResult
		return c.Resolve(ctx, &processor.ResolveRequest{
			Kind:          processor.KindPointValue,
			ResolveParams: processor.ResolveParams{Variable: variable, Lng: lng, Lat: 1},
		}, &pt)
	}

	tests := []struct {
		name string
		err  error
		code codes.Code
	}{
		{"outside", point(processortest.Dataset, 50), codes.InvalidArgument},
		{"unknown variable", point("NOPE", 1), codes.Unimplemented},
		{"toolkit", point(processortest.Dataset, 1), codes.Unavailable},
		{"bad variable", point("a b", 1), codes.InvalidArgument},
	}

	raw, err := ParseStruct([]byte(`{"kind":"uv","variable":"BATIMETRIA_2019"}`))
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.ResolveRaw(ctx, raw)
	tests = append(tests, struct {
		name string
		err  error
		code codes.Code
	}{"unsupported kind", err, codes.Unimplemented})

	raw, err = ParseStruct([]byte(`{"dataset":"BATIMETRIA_2019","bounds":[0,0,1,1]}`))
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.PreconsultRaw(ctx, raw)
	tests = append(tests, struct {
		name string
		err  error
		code codes.Code
	}{"unknown field", err, codes.InvalidArgument})

	for _, tc := range tests {
		if s, _ := status.FromError(tc.err); s.Code() != tc.code {
			t.Errorf("%s: expected %v, actual %v", tc.name, tc.code, tc.err)
		}
	}
}

func TestStatusCodesDatasetUnavailable(t *testing.T) {
	tk := processortest.NewToolkit()
	tk.InspectErr = fmt.Errorf("gebco_2019.nc: No such file or directory")
	c := startServer(t, tk)

	_, err := c.Preconsult(context.Background(), &processor.PreconsultRequest{
		Dataset: processortest.Dataset,
		Box:     processor.GeoBox{Lng0: 0, Lat0: 0, Lng1: 1, Lat1: 1},
	})
	if s, _ := status.FromError(err); s.Code() != codes.NotFound {
		t.Errorf("expected NotFound, actual %v", err)
	}
}

func TestStatusError(t *testing.T) {
	if s, _ := status.FromError(StatusError(context.Canceled)); s.Code() != codes.Canceled {
		t.Errorf("expected Canceled, actual %v", s.Code())
	}
	if s, _ := status.FromError(StatusError(fmt.Errorf("boom"))); s.Code() != codes.Internal {
		t.Errorf("expected Internal, actual %v", s.Code())
	}
}
