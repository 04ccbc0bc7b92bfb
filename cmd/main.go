package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"feedbackbot/internal/config"
	"feedbackbot/internal/entities"
	"feedbackbot/internal/infrastructure"
	"feedbackbot/internal/interfaces/http"
	"feedbackbot/internal/usecases"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func main() {
	mode := flag.String("mode", "", "run, introduce or serve (overrides BOT_MODE)")
	flag.Parse()

	cfg, err := config.Load()
	if err == nil && *mode != "" {
		cfg, err = cfg.WithMode(config.Mode(*mode))
	}
	if err != nil {
		var cfgErr *entities.ConfigurationError
		if errors.As(err, &cfgErr) {
			fmt.Fprintln(os.Stderr, "configuration error:", cfgErr)
		} else {
			fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		}
		os.Exit(2)
	}

	logger := infrastructure.NewLogger(cfg.Env, cfg.LogLevel)

	notion, err := infrastructure.NewNotionClient(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create notion client")
	}
	publisher, err := infrastructure.NewSlackPublisher(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create slack publisher")
	}
	bot := usecases.NewFeedbackBot(cfg, notion, publisher, nil, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cfg.Mode {
	case config.ModeRun:
		err = bot.Run(ctx)
	case config.ModeIntroduce:
		err = bot.Introduce(ctx)
	case config.ModeServe:
		err = serve(ctx, cfg, bot, logger)
	}
	if err != nil {
		logger.Error().Err(err).Str("mode", string(cfg.Mode)).Msg("feedbackbot exited with error")
		stop()
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg config.Config, bot *usecases.FeedbackBot, logger zerolog.Logger) error {
	if !cfg.VerifiesSignatures() {
		ev := logger.Warn()
		if !cfg.IsDevelopment() {
			ev = logger.Error()
		}
		ev.Msg("SLACK_SIGNING_SECRET is not set, inbound requests are NOT authenticated")
	}

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	mw := http.NewMiddleware(cfg.SigningSecret, logger)
	srv := &nethttp.Server{
		Addr:              ":" + cfg.Port,
		Handler:           http.NewRouter(bot, mw, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("listening for slack events")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
