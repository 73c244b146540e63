package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sigma-social/voiced/internal/adapters/httpapi"
	"github.com/sigma-social/voiced/internal/adapters/rtc"
	"github.com/sigma-social/voiced/internal/adapters/signalws"
	"github.com/sigma-social/voiced/internal/adapters/social"
	"github.com/sigma-social/voiced/internal/app/call"
	"github.com/sigma-social/voiced/internal/config"
	"github.com/sigma-social/voiced/internal/media"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	backend := social.NewClient(cfg.APIBaseURL, cfg.RefreshToken)

	engine, err := rtc.NewEngine(cfg.StunServers)
	if err != nil {
		log.Fatal().Err(err).Msg("webrtc engine init")
	}

	ctrl := call.NewController(call.Deps{
		Media: media.NewAcquirer(media.Options{
			Synthetic:  cfg.Media.Synthetic,
			SampleRate: cfg.Media.SampleRate,
			Channels:   cfg.Media.Channels,
		}),
		Channels:          &signalws.Dialer{BaseURL: cfg.SignalURL, Tokens: backend},
		Transports:        engine.NewTransport,
		Profiles:          backend,
		ActivityInterval:  cfg.Activity.Interval,
		ActivityThreshold: cfg.Activity.Threshold,
		AudioLevelExtID:   rtc.AudioLevelExtensionID,
	})

	r := httpapi.SetupRouter(cfg, ctrl, backend)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("voiced control API started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	// Hang up before killing the HTTP surface so peers see a clean leave.
	ctrl.Leave()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
