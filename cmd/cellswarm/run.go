package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cellswarm/config"
	"cellswarm/inflate"
	"cellswarm/logging"
	"cellswarm/metrics"
	"cellswarm/network"
	"cellswarm/proxies"
	"cellswarm/session"
)

type runFlags struct {
	envFile         string
	controlAddr     string
	metricsAddr     string
	proxyFile       string
	logLevel        string
	logDev          bool
	compression     string
	namePrefix      string
	trackOwnCells   bool
	address         string
	protocolVersion uint32
	clientVersion   uint32
}

func runCmd() *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Serve the control channel and run sessions",
		Long: `Serve the control channel and launch sessions when the operator sends a
start command. With --address the pool starts right away.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.InitConfig(envFiles(f.envFile)...); err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			f.apply(cmd, &cfg)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.envFile, "env-file", "", "env file to load (default .env if present)")
	fl.StringVar(&f.controlAddr, "control-addr", "", "control channel listen address")
	fl.StringVar(&f.metricsAddr, "metrics-addr", "", "metrics listen address, \"off\" to disable")
	fl.StringVarP(&f.proxyFile, "proxies", "p", "", "proxy list file")
	fl.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	fl.BoolVar(&f.logDev, "log-dev", false, "human readable logs")
	fl.StringVar(&f.compression, "compression", "", "payload compression: flate, lz4 or zstd")
	fl.StringVar(&f.namePrefix, "name-prefix", "", "session name prefix")
	fl.BoolVar(&f.trackOwnCells, "track-own-cells", false, "take owned cell ids from tick-start messages")
	fl.StringVarP(&f.address, "address", "a", "", "game server address to start immediately")
	fl.Uint32Var(&f.protocolVersion, "protocol-version", 22, "protocol version announced with --address")
	fl.Uint32Var(&f.clientVersion, "client-version", 31500, "client version announced with --address")

	return cmd
}

func envFiles(path string) []string {
	if path == "" {
		return nil
	}
	return []string{path}
}

// apply overrides cfg with the flags given on the command line.
func (f *runFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("control-addr") {
		cfg.ControlAddr = f.controlAddr
	}
	if changed("metrics-addr") {
		cfg.MetricsAddr = f.metricsAddr
		if cfg.MetricsAddr == "off" {
			cfg.MetricsAddr = ""
		}
	}
	if changed("proxies") {
		cfg.ProxyFile = f.proxyFile
	}
	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if changed("log-dev") {
		cfg.LogDev = f.logDev
	}
	if changed("compression") {
		cfg.Compression = f.compression
	}
	if changed("name-prefix") {
		cfg.NamePrefix = f.namePrefix
	}
	if changed("track-own-cells") {
		cfg.TrackOwnCells = f.trackOwnCells
	}
}

func run(ctx context.Context, cfg config.Config, f runFlags) error {
	log, err := logging.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	list, err := proxies.Load(cfg.ProxyFile)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return fmt.Errorf("no proxies in %s", cfg.ProxyFile)
	}
	dec, err := inflate.ByName(cfg.Compression)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	dialer := network.NewDialer()
	dialer.Origin = cfg.Origin
	dialer.UserAgent = cfg.UserAgent
	dialer.HandshakeTimeout = cfg.HandshakeTimeout

	pool := session.NewPool(session.PoolConfig{
		Dialer:     dialer,
		Proxies:    list,
		NamePrefix: cfg.NamePrefix,
		Stagger:    cfg.SpawnStagger,
		Session: session.Options{
			TrackOwnCells: cfg.TrackOwnCells,
			Decompressor:  dec,
			Logger:        log,
			Metrics:       m,
		},
	})
	defer pool.Close()

	control := network.NewControlServer(ctx, pool, log.Named("control"))
	servers := []*http.Server{{Addr: cfg.ControlAddr, Handler: control.Handler()}}
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		servers = append(servers, &http.Server{Addr: cfg.MetricsAddr, Handler: mux})
	}

	errc := make(chan error, len(servers))
	for _, srv := range servers {
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- fmt.Errorf("listen %s: %w", srv.Addr, err)
			}
		}()
	}
	log.Info("cellswarm running",
		zap.String("control_addr", cfg.ControlAddr),
		zap.String("metrics_addr", cfg.MetricsAddr),
		zap.Int("proxies", len(list)),
		zap.String("compression", cfg.Compression),
	)

	if f.address != "" {
		hs := session.NewHandshake(f.address, f.protocolVersion, f.clientVersion)
		if err := pool.Start(ctx, hs); err != nil {
			return err
		}
	}

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err = <-errc:
		log.Error("server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, srv := range servers {
		_ = srv.Shutdown(shutdownCtx)
	}
	return err
}

func proxiesCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "proxies",
		Short: "Validate a proxy list",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := proxies.Load(path)
			if err != nil {
				return err
			}
			for _, u := range list {
				fmt.Fprintln(cmd.OutOrStdout(), u.Redacted())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d proxies\n", len(list))
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "proxies", "p", "./proxies.txt", "proxy list file")
	return cmd
}
