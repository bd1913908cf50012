package main

import (
	"context"
	"io"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mini-thrift/config"
	"mini-thrift/log"
	"mini-thrift/middleware"
	"mini-thrift/registry"
	"mini-thrift/server"
	"mini-thrift/service"
	"mini-thrift/shared"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve SharedService until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a.cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

// serve runs the RPC server and, when enabled, the metrics endpoint until
// ctx is done or either fails.
func serve(ctx context.Context, cfg *config.Config) error {
	logger := log.L().Named("serve")
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	mws := []middleware.Middleware{
		middleware.MetricsMiddleware(middleware.NewMetrics(reg, "server")),
		middleware.LoggingMiddleware(log.L().Named("call")),
	}
	if cfg.Server.RateLimit > 0 {
		mws = append(mws, middleware.RateLimitMiddleware(cfg.Server.RateLimit, cfg.Server.RateBurst))
	}
	proc, err := shared.NewProcessor(&shared.Handler{}, service.WithMiddleware(mws...))
	if err != nil {
		return err
	}

	opts := []server.Option{
		server.WithMaxConns(cfg.Server.MaxConns),
		server.WithTransport(cfg.Protocol.Layers()...),
		server.WithProtocol(cfg.Protocol.NewProtocol()),
	}
	if cfg.Registry.Kind == "etcd" {
		r, err := cfg.Registry.Open(shared.ServiceName)
		if err != nil {
			return err
		}
		if c, ok := r.(io.Closer); ok {
			defer c.Close()
		}
		opts = append(opts, server.WithRegistry(r, registry.ServiceInstance{
			Addr:    cfg.Server.Advertise,
			Weight:  cfg.Server.Weight,
			Version: cfg.Server.Version,
		}, cfg.Registry.TTL))
	}
	srv, err := server.NewServer(proc, opts...)
	if err != nil {
		return err
	}

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := srv.ListenAndServe(cfg.Server.Network, cfg.Server.Addr)
		if errors.Is(err, server.ErrServerClosed) {
			return nil
		}
		return err
	})
	if metricsSrv != nil {
		g.Go(func() error {
			logger.Info("metrics listening", zap.String("addr", cfg.Metrics.Addr), zap.String("path", cfg.Metrics.Path))
			if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", zap.Duration("timeout", cfg.Server.ShutdownTimeout))
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(sctx)
		if metricsSrv != nil {
			err = errors.CombineErrors(err, metricsSrv.Shutdown(sctx))
		}
		return err
	})
	return g.Wait()
}
