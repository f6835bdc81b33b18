package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/golang/protobuf/jsonpb"
	"golang.org/x/crypto/ssh/terminal"
	"google.golang.org/grpc"

	proc "github.com/oceanografia/bathy/processor"
	"github.com/oceanografia/bathy/worker/queryservice"
)

var passed string = "Passed"
var failed string = "Failed"

func parseBox(s string) proc.GeoBox {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		log.Fatalf("invalid box %q", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			log.Fatalf("invalid box %q: %v", s, err)
		}
		v[i] = f
	}
	return proc.GeoBox{Lng0: v[0], Lat0: v[1], Lng1: v[2], Lat1: v[3]}
}

// splitBox tiles box into n x n sub boxes.
func splitBox(box proc.GeoBox, n int) []proc.GeoBox {
	dLng := (box.Lng1 - box.Lng0) / float64(n)
	dLat := (box.Lat1 - box.Lat0) / float64(n)
	var out []proc.GeoBox
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			lng0 := box.Lng0 + float64(i)*dLng
			lat0 := box.Lat0 + float64(j)*dLat
			out = append(out, proc.GeoBox{Lng0: lng0, Lat0: lat0, Lng1: lng0 + dLng, Lat1: lat0 + dLat})
		}
	}
	return out
}

func postJSON(url string, req interface{}, out interface{}) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != 200 {
		return fmt.Errorf("%s: %d %s", url, resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	return json.Unmarshal(payload, out)
}

func Catalog(host, dataset string) bool {
	resp, err := http.Get(fmt.Sprintf("http://%s/catalog", host))
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return false
	}
	var cat proc.Catalog
	if err := json.NewDecoder(resp.Body).Decode(&cat); err != nil {
		return false
	}
	for _, l := range cat.Layers {
		if l.Code == dataset {
			return true
		}
	}
	return false
}

// Windows runs preconsult plus contour lines and bands over every box.
func Windows(host, dataset string, boxes []proc.GeoBox, increment float64, concLevel int) (bool, time.Duration) {
	start := time.Now()
	var nFailed int32

	conc := proc.NewConcLimiter(concLevel)
	for _, box := range boxes {
		conc.Acquire(context.Background())
		go func(box proc.GeoBox) {
			defer conc.Release()

			var pre proc.PreconsultResult
			req := &proc.PreconsultRequest{Dataset: dataset, Box: box}
			if err := postJSON(fmt.Sprintf("http://%s/preconsult", host), req, &pre); err != nil {
				fmt.Println(err)
				atomic.AddInt32(&nFailed, 1)
				return
			}

			for _, kind := range []string{"contour-lines", "contour-bands"} {
				var res proc.ContourResult
				params := proc.ResolveParams{Variable: dataset, TmpFileName: pre.TmpFileName, Increment: increment}
				if err := postJSON(fmt.Sprintf("http://%s/resolve/%s", host, kind), params, &res); err != nil {
					fmt.Println(err)
					atomic.AddInt32(&nFailed, 1)
					return
				}
			}
		}(box)
	}
	conc.Wait()

	return nFailed == 0, time.Since(start)
}

// Samples runs a point value at the centre of every box and a matrix over it.
func Samples(host, dataset string, boxes []proc.GeoBox, concLevel int) (bool, time.Duration) {
	start := time.Now()
	var nFailed int32

	conc := proc.NewConcLimiter(concLevel)
	for _, box := range boxes {
		conc.Acquire(context.Background())
		go func(box proc.GeoBox) {
			defer conc.Release()

			var pt proc.PointResult
			params := proc.ResolveParams{Variable: dataset, Lng: (box.Lng0 + box.Lng1) / 2, Lat: (box.Lat0 + box.Lat1) / 2}
			if err := postJSON(fmt.Sprintf("http://%s/resolve/point-value", host), params, &pt); err != nil {
				fmt.Println(err)
				atomic.AddInt32(&nFailed, 1)
				return
			}

			var m proc.MatrixResult
			params = proc.ResolveParams{Variable: dataset, Box: box}
			if err := postJSON(fmt.Sprintf("http://%s/resolve/rectangular-matrix", host), params, &m); err != nil {
				fmt.Println(err)
				atomic.AddInt32(&nFailed, 1)
				return
			}
			if m.NCols*m.NRows == 0 || len(m.Rows) != m.NRows {
				fmt.Printf("matrix %s: %dx%d with %d rows\n", box, m.NCols, m.NRows, len(m.Rows))
				atomic.AddInt32(&nFailed, 1)
			}
		}(box)
	}
	conc.Wait()

	return nFailed == 0, time.Since(start)
}

// GRPC queries the catalog and one preconsult over the gRPC server and
// prints the raw replies.
func GRPC(addr, dataset string, box proc.GeoBox) bool {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cc, err := grpc.DialContext(ctx, addr, grpc.WithInsecure(), grpc.WithBlock())
	if err != nil {
		fmt.Println(err)
		return false
	}
	defer cc.Close()
	client := queryservice.NewClient(cc)

	if _, err := client.Catalog(ctx); err != nil {
		fmt.Println(err)
		return false
	}

	in, err := json.Marshal(&proc.PreconsultRequest{Dataset: dataset, Box: box})
	if err != nil {
		fmt.Println(err)
		return false
	}
	req, err := queryservice.ParseStruct(in)
	if err != nil {
		fmt.Println(err)
		return false
	}
	res, err := client.PreconsultRaw(ctx, req)
	if err != nil {
		fmt.Println(err)
		return false
	}

	m := jsonpb.Marshaler{Indent: "  "}
	out, err := m.MarshalToString(res)
	if err != nil {
		fmt.Println(err)
		return false
	}
	fmt.Println()
	fmt.Println(out)
	return true
}

func inRed(str string) string {
	return fmt.Sprintf("\x1b[31;1m%s\x1b[0m", str)
}

func inGreen(str string) string {
	return fmt.Sprintf("\x1b[32;1m%s\x1b[0m", str)
}

func main() {
	host := flag.String("h", "localhost:8080", "Provider HTTP host name or address")
	grpcAddr := flag.String("g", "localhost:6000", "Provider gRPC address")
	suite := flag.String("s", "http", "Test suite [http, grpc]")
	dataset := flag.String("d", "BATIMETRIA_2019", "Layer code")
	boxArg := flag.String("b", "-100,15,-85,25", "Query area lng0,lat0,lng1,lat1")
	split := flag.Int("split", 5, "Split the query area into split x split boxes")
	increment := flag.Float64("i", 500, "Contour increment")
	conc := flag.Int("n", 6, "Concurrency level for acceptance tests")
	flag.Parse()

	var t time.Duration
	var ok bool

	if terminal.IsTerminal(int(os.Stdout.Fd())) {
		passed = inGreen(passed)
		failed = inRed(failed)
	}

	box := parseBox(*boxArg)
	if *split < 1 {
		*split = 1
	}
	boxes := splitBox(box, *split)

	switch *suite {
	case "http":
		fmt.Printf("Testing catalog: ")
		if !Catalog(*host, *dataset) {
			fmt.Println(failed)
			os.Exit(1)
		}
		fmt.Println(passed)

		fmt.Printf("Testing preconsult and contours over %d boxes: ", len(boxes))
		if ok, t = Windows(*host, *dataset, boxes, *increment, *conc); !ok {
			fmt.Println(failed)
			os.Exit(1)
		}
		fmt.Println(passed, t)

		fmt.Printf("Testing point values and matrices over %d boxes: ", len(boxes))
		if ok, t = Samples(*host, *dataset, boxes, *conc); !ok {
			fmt.Println(failed)
			os.Exit(1)
		}
		fmt.Println(passed, t)
	case "grpc":
		fmt.Printf("Testing gRPC catalog and preconsult: ")
		if !GRPC(*grpcAddr, *dataset, boxes[0]) {
			fmt.Println(failed)
			os.Exit(1)
		}
		fmt.Println(passed)
	default:
		fmt.Printf("unknown suite %q\n", *suite)
		os.Exit(2)
	}
}
