// Package main runs the SOAP server for the webservice operations.
package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mini-soap/config"
	"mini-soap/middleware"
	"mini-soap/registry"
	"mini-soap/server"
	"mini-soap/webservice"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "soapd: %v\n", err)
		os.Exit(1)
	}
	level, _ := cfg.Level()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("soapd stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	c, err := webservice.Build(cfg.ServerAddr)
	if err != nil {
		return fmt.Errorf("build contract: %w", err)
	}

	opts := []server.Option{
		server.WithPolicy(cfg.Policy()),
		server.WithTrustForwardedProto(cfg.TrustForwardedProto),
		server.WithMaxBodyBytes(cfg.MaxBodyBytes),
		server.WithLogger(logger),
	}
	if cfg.TLSEnabled() {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			return fmt.Errorf("load tls key pair: %w", err)
		}
		opts = append(opts, server.WithTLS(&tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}))
	}
	svr, err := server.NewServer(c, opts...)
	if err != nil {
		return err
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := middleware.NewMetrics(promReg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	svr.Use(middleware.LoggingMiddleware(logger))
	svr.Use(middleware.MetricsMiddleware(metrics))
	if cfg.RateLimit > 0 {
		svr.Use(middleware.RateLimitMiddleware(cfg.RateLimit, cfg.Burst()))
	}
	if cfg.RequestTimeout > 0 {
		svr.Use(middleware.TimeOutMiddleware(cfg.RequestTimeout))
	}

	var reg registry.Registry
	if len(cfg.EtcdEndpoints) > 0 {
		etcdReg, err := registry.NewEtcdRegistry(cfg.EtcdEndpoints)
		if err != nil {
			return fmt.Errorf("connect etcd: %w", err)
		}
		defer etcdReg.Close()
		reg = etcdReg
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", svr.Guard(promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})))
	mux.Handle("/", svr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- svr.ServeHandler(cfg.ListenAddr, cfg.AdvertiseAddr, reg, mux)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", slog.Duration("timeout", shutdownTimeout))
	if err := svr.Shutdown(shutdownTimeout); err != nil {
		return err
	}
	return <-errCh
}
