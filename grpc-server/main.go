package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"golang.org/x/net/netutil"
	"google.golang.org/grpc"

	"github.com/oceanografia/bathy/metrics"
	"github.com/oceanografia/bathy/processor"
	"github.com/oceanografia/bathy/utils"
	"github.com/oceanografia/bathy/worker/queryservice"
)

func main() {
	port := flag.Int("p", 6000, "gRPC server listening port.")
	confFile := flag.String("conf", filepath.Join(utils.EtcDir, "config.yaml"), "Provider config file.")
	logDir := flag.String("log_dir", "", "Query log directory, '-' for stdout.")
	maxConns := flag.Int("max_conns", 0, "Maximum number of concurrent connections, 0 for the config value.")
	debug := flag.Bool("debug", false, "verbose logging")
	flag.Parse()

	conf := &utils.Config{}
	if err := conf.LoadConfigFile(*confFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	level := conf.ServiceConfig.LogLevel
	if *debug {
		level = "debug"
	}
	log := utils.BuildLogger(utils.LogConfig{Level: level, Console: conf.ServiceConfig.LogConsole, Component: "grpc-server"}, os.Stderr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := processor.NewService(ctx, conf, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start provider")
	}

	queryLog := metrics.NewQueryLogger(*logDir, log)

	s := grpc.NewServer()
	queryservice.RegisterRasterQueryServer(s, queryservice.NewServer(svc.Provider, queryLog))

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", *port))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to listen")
	}
	if *maxConns <= 0 {
		*maxConns = conf.ServiceConfig.MaxConnections
	}
	if *maxConns > 0 {
		lis = netutil.LimitListener(lis, *maxConns)
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-signals
		log.Info().Msg("shutting down")
		s.GracefulStop()
	}()

	log.Info().Int("port", *port).Msg("RasterQuery gRPC server is ready")
	if err := s.Serve(lis); err != nil {
		log.Error().Err(err).Msg("failed to serve")
	}

	svc.Close()
	if fl, ok := queryLog.(*metrics.FileLogger); ok {
		fl.Close()
	}
}
