package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	_ "go.uber.org/automaxprocs"

	"github.com/wirebus/wirebus/config"
	"github.com/wirebus/wirebus/internal/broker"
	"github.com/wirebus/wirebus/internal/handlers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info().
		Str("addr", cfg.Addr()).
		Int("max_queue_size", cfg.MaxQueueSize).
		Int("ring_buffer_size", cfg.RingBufferSize).
		Str("backpressure_policy", cfg.BackpressurePolicy).
		Msg("starting wirebus server")

	registry := broker.New(broker.Options{
		MaxQueueSize:   cfg.MaxQueueSize,
		RingBufferSize: cfg.RingBufferSize,
		Policy:         cfg.Policy(),
	}, logger)

	restHandler := handlers.NewRESTHandler(registry, cfg.DevMode, logger)
	wsHandler := handlers.NewWebSocketHandler(registry, handlers.SessionOptions{
		WriteWait:    cfg.WriteWait,
		PingPeriod:   cfg.PingPeriod,
		PongWait:     cfg.PongWait,
		InboundRate:  cfg.InboundRate,
		InboundBurst: cfg.InboundBurst,
	}, logger)

	gin.SetMode(cfg.GinMode)
	router := handlers.NewRouter(restHandler, wsHandler)

	srv := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     router,
		ReadTimeout: cfg.ReadTimeout,
		IdleTimeout: cfg.IdleTimeout,
	}

	go func() {
		logger.Info().Str("addr", cfg.Addr()).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")

	// Broker first: refuses new sessions, drains queues within the
	// deadline, closes transports with 1001.
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.DrainTimeout)
	registry.Shutdown(drainCtx)
	cancelDrain()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
	}

	logger.Info().Msg("shutdown complete")
}

func newLogger(level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	var out io.Writer = os.Stdout
	if format == "pretty" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).
		Level(lvl).
		With().
		Timestamp().
		Str("service", "wirebus").
		Logger()
}
