package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"parking-facility/internal/config"
	"parking-facility/internal/logging"
	"parking-facility/internal/parking"
	"parking-facility/internal/server"
)

var (
	mode     = flag.String("mode", "", "Mode to run: cli, server, or both (overrides PARKING_MODE)")
	port     = flag.String("port", "", "Port for HTTP server (overrides PORT)")
	capacity = flag.Int("capacity", -1, "Spots in the facility served over HTTP (overrides FACILITY_CAPACITY)")
)

func main() {
	flag.Parse()
	logging.InitWithWriter(os.Stderr, "info", false)

	cfg, err := config.Load()
	if err != nil {
		logging.Logger().Fatal().Err(err).Msg("failed to load configuration")
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		logging.Logger().Fatal().Err(err).Msg("invalid configuration")
	}

	logging.Init(cfg.Logger.Level, cfg.Logger.Development)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryProvider, err := newTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		logging.Logger().Fatal().Err(err).Msg("failed to initialize telemetry")
	}

	payments := parking.NewSimulatedProcessor()
	payments.SetDecline(cfg.Payment.Decline)
	opts := []parking.Option{
		parking.WithAddress(cfg.Facility.Address),
		parking.WithPaymentProcessor(payments),
		parking.WithTicketPrefix(cfg.Facility.TicketPrefix),
		parking.WithMaxCapacity(cfg.Facility.MaxCapacity),
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logging.Info(ctx).Str("mode", cfg.Mode).Str("facility", cfg.Facility.Name).Msg("parking facility starting")

	switch cfg.Mode {
	case "cli":
		runCLI(ctx, cancel, telemetryProvider, opts, sigChan)
	case "server":
		runServer(ctx, cancel, cfg, telemetryProvider, opts, sigChan)
	case "both":
		runBoth(ctx, cancel, cfg, telemetryProvider, opts, sigChan)
	}
}

func applyFlags(cfg *config.Config) {
	if *mode != "" {
		cfg.Mode = *mode
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *capacity >= 0 {
		cfg.Facility.Capacity = *capacity
	}
}

func newTelemetry(ctx context.Context, cfg config.TelemetryConfig) (*parking.TelemetryProvider, error) {
	if !cfg.Enabled {
		return parking.NewLocalTelemetryProvider(nil), nil
	}
	return parking.NewTelemetryProvider(ctx, parking.TelemetryConfig{
		ServiceName:    cfg.ServiceName,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		ExportInterval: cfg.ExportInterval,
	})
}

func runCLI(ctx context.Context, cancel context.CancelFunc, telemetryProvider *parking.TelemetryProvider, opts []parking.Option, sigChan chan os.Signal) {
	go func() {
		<-sigChan
		logging.Info(ctx).Msg("shutting down")
		cancel()
	}()

	shell := parking.NewShell(telemetryProvider, os.Stdin, os.Stdout, opts...)
	shell.Run(ctx)

	shutdownTelemetry(telemetryProvider)
}

func newServer(cfg *config.Config, telemetryProvider *parking.TelemetryProvider, opts []parking.Option) (*server.Server, error) {
	handler := server.NewHandler(telemetryProvider, cfg.Telemetry.ServiceName, opts...)

	if cfg.Facility.Capacity > 0 {
		facility, err := parking.NewInstrumentedFacility(cfg.Facility.Name, cfg.Facility.Capacity, telemetryProvider, opts...)
		if err != nil {
			return nil, err
		}
		handler.SetFacility(facility)
	}

	return server.NewServer(cfg.Server, handler), nil
}

func runServer(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, telemetryProvider *parking.TelemetryProvider, opts []parking.Option, sigChan chan os.Signal) {
	srv, err := newServer(cfg, telemetryProvider, opts)
	if err != nil {
		logging.Logger().Fatal().Err(err).Msg("failed to create facility")
	}

	go func() {
		<-sigChan
		logging.Info(ctx).Msg("received shutdown signal")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Error(ctx).Err(err).Msg("server shutdown error")
		}

		cancel()
	}()

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Error(ctx).Err(err).Msg("server error")
	}

	shutdownTelemetry(telemetryProvider)
}

func runBoth(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, telemetryProvider *parking.TelemetryProvider, opts []parking.Option, sigChan chan os.Signal) {
	srv, err := newServer(cfg, telemetryProvider, opts)
	if err != nil {
		logging.Logger().Fatal().Err(err).Msg("failed to create facility")
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Start()
	}()

	cliDone := make(chan bool, 1)
	go func() {
		shell := parking.NewShell(telemetryProvider, os.Stdin, os.Stdout, opts...)
		shell.Run(ctx)
		cliDone <- true
	}()

	go func() {
		<-sigChan
		logging.Info(ctx).Msg("received shutdown signal")
		cancel()
	}()

	select {
	case err := <-serverDone:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error(ctx).Err(err).Msg("server error")
		}
	case <-cliDone:
		logging.Info(ctx).Msg("CLI exited")
	case <-ctx.Done():
		logging.Info(ctx).Msg("context cancelled")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error(ctx).Err(err).Msg("server shutdown error")
	}

	shutdownTelemetry(telemetryProvider)
}

func shutdownTelemetry(telemetryProvider *parking.TelemetryProvider) {
	logging.Info(context.Background()).Msg("shutting down telemetry")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := telemetryProvider.Shutdown(shutdownCtx); err != nil {
		logging.Error(shutdownCtx).Err(err).Msg("error shutting down telemetry")
	}
}
