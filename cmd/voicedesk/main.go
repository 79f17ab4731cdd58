package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kwhalen/voicedesk/internal/calllog"
	"github.com/kwhalen/voicedesk/internal/config"
	"github.com/kwhalen/voicedesk/internal/ivr"
	"github.com/kwhalen/voicedesk/internal/metrics"
	"github.com/kwhalen/voicedesk/internal/nlu"
	"github.com/kwhalen/voicedesk/internal/router"
	"github.com/kwhalen/voicedesk/internal/server"
	"github.com/kwhalen/voicedesk/internal/session"
	"github.com/kwhalen/voicedesk/internal/telemetry"
	"github.com/kwhalen/voicedesk/internal/telephony"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	shutdownTracer, err := telemetry.InitTracer("voicedesk", logger)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	cfg, err := config.Load(os.Getenv("VOICEDESK_CONFIG"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.Telnyx.APIKey == "" {
		logger.Warn("telnyx api key is not set, call control commands will fail")
	}
	if cfg.Transfer.OperatorNumber == "" {
		logger.Warn("operator number is not set, escalations fall back to menu transfer numbers")
	}

	callLog, err := calllog.New(cfg.Storage.Path)
	if err != nil {
		log.Fatalf("failed to open call log: %v", err)
	}
	defer callLog.Close()

	loc, err := time.LoadLocation(cfg.Hours.Timezone)
	if err != nil {
		logger.Warn("unknown timezone, using UTC", slog.String("timezone", cfg.Hours.Timezone))
		loc = time.UTC
	}

	var clientOpts []telephony.ClientOption
	if cfg.Telnyx.BaseURL != "" {
		clientOpts = append(clientOpts, telephony.WithBaseURL(cfg.Telnyx.BaseURL))
	}
	commands := telephony.NewClient(cfg.Telnyx.APIKey, clientOpts...)

	settings := ivr.NewSource(cfg.IVR.SettingsURL, logger,
		ivr.WithCacheTTL(cfg.IVR.CacheTTLDuration()),
		ivr.WithAPIKey(cfg.IVR.APIKey))

	m := metrics.New()
	sessions := session.NewStore()

	events := router.New(
		router.Config{
			OperatorNumber: cfg.Transfer.OperatorNumber,
			Hours: router.Hours{
				Start:    cfg.Hours.Start,
				End:      cfg.Hours.End,
				Location: loc,
			},
		},
		router.Deps{
			Commands:   commands,
			Sessions:   sessions,
			Settings:   settings,
			Classifier: nlu.NewRuleClassifier(),
			CallLog:    callLog,
			Metrics:    m,
			Logger:     logger,
		},
	)

	srv := server.New(cfg.Server.Port, server.Deps{
		Events:   events,
		Sessions: sessions,
		CallLog:  callLog,
		Metrics:  m,
		Settings: settings,
		Logger:   logger,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logger.Info("voicedesk started",
		slog.Int("port", cfg.Server.Port),
		slog.String("call_log", cfg.Storage.Path),
		slog.Int("hours_start", cfg.Hours.Start),
		slog.Int("hours_end", cfg.Hours.End))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server failed: %v", err)
		}
	case <-sigCh:
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("voicedesk shutdown complete")
}
