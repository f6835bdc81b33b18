package main

/* ows is the web front of the bathymetry provider. It exposes the two
   entry points the layer catalog framework routes client requests to,
   preconsult and resolve, plus the catalog of origins and layers and
   the published artifacts themselves. Configuration of the provider
   is specified in a YAML document where the origins, the layers and
   their enabled formats are defined. Raster work is delegated to the
   GDAL command line utilities run by a bounded process pool. */

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	reuseport "github.com/kavu/go_reuseport"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/net/netutil"

	"github.com/oceanografia/bathy/metrics"
	"github.com/oceanografia/bathy/processor"
	"github.com/oceanografia/bathy/utils"
)

var (
	port           = flag.Int("p", 8080, "Server listening port.")
	serverDataDir  = flag.String("data_dir", utils.DataDir, "Server data directory.")
	serverConfig   = flag.String("conf", filepath.Join(utils.EtcDir, "config.yaml"), "Server config file.")
	serverLogDir   = flag.String("log_dir", "", "Query log directory, '-' for stdout.")
	validateConfig = flag.Bool("check_conf", false, "Validate server config file.")
	dumpConfig     = flag.Bool("dump_conf", false, "Dump server config file.")
	verbose        = flag.Bool("v", false, "Verbose mode for more server outputs.")
)

// publishNameRe matches the files a provider writes: window artifacts and
// the derivatives sharing their stem.
var publishNameRe = regexp.MustCompile(`^tmp_[0-9]+(\.[A-Za-z0-9_]+)+$`)

type owsServer struct {
	provider *processor.Provider
	queryLog metrics.Logger
	log      zerolog.Logger
}

func newRouter(p *processor.Provider, queryLog metrics.Logger, log zerolog.Logger) http.Handler {
	s := &owsServer{provider: p, queryLog: queryLog, log: log}

	r := chi.NewRouter()
	r.Use(s.recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/catalog", s.catalogHandler)
	r.Get("/catalog.html", s.catalogHTMLHandler)
	r.Post("/preconsult", s.preconsultHandler)
	r.Post("/resolve/{kind}", s.resolveHandler)
	r.Get("/publish/{file}", s.publishHandler)
	return r
}

func (s *owsServer) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("handler panic")
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *owsServer) collector(r *http.Request) *metrics.QueryCollector {
	mc := metrics.NewQueryCollector(s.queryLog, "http")
	mc.Info.RemoteAddr = remoteAddr(r)
	return mc
}

func remoteAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); len(fwd) > 0 {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// httpStatus maps the query error taxonomy onto HTTP status codes.
func httpStatus(err error) int {
	switch processor.ErrorKind(err) {
	case processor.ErrEmptyWindow, processor.ErrUnsupportedOperation:
		return http.StatusBadRequest
	case processor.ErrDatasetUnavailable:
		return http.StatusNotFound
	case processor.ErrToolkitFailure:
		return http.StatusBadGateway
	case processor.ErrArtifactIO:
		return http.StatusInternalServerError
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeJSON encodes v before touching the response so an unencodable value
// turns into a 500 instead of a 200 with a truncated body.
func (s *owsServer) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		s.log.Error().Err(err).Int("status", status).Msg("encoding response")
		status = http.StatusInternalServerError
		buf.Reset()
		enc.Encode(map[string]string{"error": "error encoding response: " + err.Error()})
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.log.Debug().Err(err).Msg("writing response")
	}
}

func (s *owsServer) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *owsServer) catalogHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.provider.Catalog())
}

func (s *owsServer) catalogHTMLHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := processor.RenderCatalogHTML(w, s.provider.Catalog()); err != nil {
		s.log.Error().Err(err).Msg("rendering catalog")
		http.Error(w, "catalog unavailable", http.StatusInternalServerError)
	}
}

func (s *owsServer) preconsultHandler(w http.ResponseWriter, r *http.Request) {
	req, err := processor.DecodePreconsultRequest(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := s.provider.RunPreconsult(r.Context(), req, s.collector(r))
	if err != nil {
		s.writeError(w, httpStatus(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *owsServer) resolveHandler(w http.ResponseWriter, r *http.Request) {
	kind, err := processor.ParseArtifactKind(chi.URLParam(r, "kind"))
	if err != nil {
		s.writeError(w, httpStatus(err), err)
		return
	}

	req, err := processor.DecodeResolveRequest(r.Body)
	if err != nil {
		status := http.StatusBadRequest
		if processor.ErrorKind(err) != nil {
			status = httpStatus(err)
		}
		s.writeError(w, status, err)
		return
	}
	req.Kind = kind

	res, err := s.provider.RunResolve(r.Context(), req, s.collector(r))
	if err != nil {
		s.writeError(w, httpStatus(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *owsServer) publishHandler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "file")
	if !publishNameRe.MatchString(name) {
		http.Error(w, "invalid artifact name", http.StatusBadRequest)
		return
	}
	path := filepath.Join(s.provider.PublishDir(), name)

	if *verbose {
		s.log.Debug().Str("url", r.URL.String()).Str("path", path).Msg("serving artifact")
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "artifact expired or not found", http.StatusNotFound)
			return
		}
		http.Error(w, "artifact unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate, max-age=0")
	http.ServeFile(w, r, path)
}

func main() {
	flag.Parse()
	utils.DataDir = *serverDataDir

	conf := &utils.Config{}
	if err := conf.LoadConfigFile(*serverConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Error in loading config file: %v\n", err)
		os.Exit(2)
	}
	if err := processor.ValidateLayers(conf); err != nil {
		fmt.Fprintf(os.Stderr, "Error in config file: %v\n", err)
		os.Exit(2)
	}

	if *validateConfig {
		os.Exit(0)
	}

	if *dumpConfig {
		out, err := utils.DumpConfig(conf)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error in dumping config: %v\n", err)
			os.Exit(1)
		}
		fmt.Print(out)
		os.Exit(0)
	}

	level := conf.ServiceConfig.LogLevel
	if *verbose {
		level = "debug"
	}
	log := utils.BuildLogger(utils.LogConfig{Level: level, Console: conf.ServiceConfig.LogConsole, Component: "ows"}, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := processor.NewService(ctx, conf, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start provider")
	}
	defer svc.Close()

	queryLog := metrics.NewQueryLogger(*serverLogDir, log)
	if fl, ok := queryLog.(*metrics.FileLogger); ok {
		defer fl.Close()
	}

	lis, err := reuseport.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", *port))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to listen")
	}
	if n := conf.ServiceConfig.MaxConnections; n > 0 {
		lis = netutil.LimitListener(lis, n)
	}

	srv := &http.Server{
		Handler:           newRouter(svc.Provider, queryLog, log),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(lis); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	log.Info().Int("port", *port).Str("publish_dir", svc.Provider.PublishDir()).Msg("bathymetry provider is ready")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		log.Error().Err(err).Msg("server stopped")
	}
}
