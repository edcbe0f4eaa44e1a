package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"nftlend/gateway/middleware"
	"nftlend/gateway/quotes"
	nativecommon "nftlend/native/common"
	"nftlend/observability"
	"nftlend/observability/logging"
	telemetry "nftlend/observability/otel"
)

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfig, "Path to the markets TOML file")
	listen := fs.String("listen", "", "Listen address; defaults to Service.ListenAddress")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, tables, err := loadTables(*configPath)
	if err != nil {
		return err
	}
	svc := cfg.Service
	logger, closer := logging.SetupFile(serviceName, svc.Environment, svc.LogFile)
	defer closer.Close()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: serviceName,
		Environment: svc.Environment,
		Endpoint:    svc.Telemetry.Endpoint,
		Insecure:    svc.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(svc.Telemetry.Headers),
		Traces:      svc.Telemetry.Traces,
		Metrics:     svc.Telemetry.Metrics,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	paused := nativecommon.PausedSet{}
	for _, symbol := range svc.PausedMarkets {
		paused[symbol] = true
	}
	handler, err := quotes.New(quotes.Config{
		Tables:    tables,
		Pauses:    paused,
		RateLimit: middleware.RateLimit{RatePerSecond: svc.RateLimitPerSecond, Burst: svc.RateLimitBurst},
		Metrics:   observability.Quotes(),
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	addr := *listen
	if addr == "" {
		addr = svc.ListenAddress
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	return serve(ctx, server, logger, tables.Symbols(), tables.AuctionNames())
}

func serve(ctx context.Context, server *http.Server, logger *slog.Logger, symbols, auctions []string) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("quote gateway listening",
			slog.String("addr", server.Addr),
			slog.Any("markets", symbols),
			slog.Any("auctions", auctions))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutting down quote gateway")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
