package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lcarvalho/tgrelay/internal/bot"
	"github.com/lcarvalho/tgrelay/internal/config"
	"github.com/lcarvalho/tgrelay/internal/http/rest"
	"github.com/lcarvalho/tgrelay/internal/logctx"
	"github.com/lcarvalho/tgrelay/internal/notifier"
	"github.com/lcarvalho/tgrelay/internal/session"
	"github.com/lcarvalho/tgrelay/internal/telemetry"
	"github.com/lcarvalho/tgrelay/internal/transfer"
)

const serviceName = "tgrelay"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	logger := slog.New(logctx.NewSpanHandler(
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}),
	))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	slog.Info("media relay starting...", "log_level", cfg.LogLevel)

	if err := run(logctx.WithLogger(ctx, logger), cfg); err != nil {
		slog.Error("fatal error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logctx.LoggerFromContext(ctx)

	// =========================================================================
	// Start Telemetry
	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:     cfg.TelemetryEnabled,
		ServiceName: serviceName,
	})
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown telemetry", "err", err)
		}
	}()

	// =========================================================================
	// Start Database
	database, err := session.InitDB(cfg.DBPath)
	if err != nil {
		logger.Error("DB error", "err", err)

		return err
	}
	defer database.Close()

	// =========================================================================
	// Start Session Bridge
	gotdLogger := zap.NewNop()
	if cfg.SlogLevel() == slog.LevelDebug {
		if gotdLogger, err = zap.NewDevelopment(); err != nil {
			return fmt.Errorf("failed to build mtproto logger: %w", err)
		}
	}

	bridge := session.NewBridge(session.Options{
		APIID:   cfg.APIID,
		APIHash: cfg.APIHash,
		Storage: session.NewSQLiteStorage(database, cfg.SessionName),
		Logger:  gotdLogger,
	}, logger)
	bridge.Start(ctx)

	authenticator := session.NewAuthenticator(bridge)

	// =========================================================================
	// Start Bot and Pipeline
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return fmt.Errorf("failed to connect to the bot api: %w", err)
	}

	pipeline := transfer.NewPipeline(
		session.NewSource(bridge),
		bot.NewDelivery(api),
		tel,
		cfg.MaxFileSize,
		cfg.TempDir,
	)

	var notif notifier.Notifier = notifier.NopNotifier{}
	if cfg.DiscordWebhookURL != "" {
		notif = notifier.NewDiscordNotifier(cfg.DiscordWebhookURL)
	}

	relayBot := bot.New(api, authenticator, pipeline, notif, tel, logger, cfg.OwnerID, cfg.MaxFileSize)

	// =========================================================================
	// Start API Service
	server := setupServer(ctx, authenticator, tel, cfg)

	logger.Info("waiting for messages...",
		"owner_id", cfg.OwnerID,
		"max_file_size", cfg.MaxFileSize,
		"session_name", cfg.SessionName,
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := relayBot.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("bot loop: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("initializing API support", "host", cfg.Web.BindAddress)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("start shutdown")

		// Give outstanding requests a deadline for completion.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to gracefully shutdown the server", "err", err)

			if err = server.Close(); err != nil {
				return fmt.Errorf("could not stop server gracefully: %w", err)
			}
		}
		return nil
	})

	return g.Wait()
}

// setupServer prepares the handlers and services to create the http rest server.
func setupServer(ctx context.Context, authenticator *session.Authenticator, tel *telemetry.Telemetry, cfg *config.Config) *http.Server {
	hHandler := rest.NewHealthHandler(authenticator.State, cfg.MaxFileSize, tel)

	r := chi.NewRouter()
	r.Mount("/", hHandler.Routes())

	return &http.Server{
		Addr:         cfg.Web.BindAddress,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		Handler:      otelhttp.NewHandler(r, "liveness"),
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
}
