// Package main is the entrypoint for the client portal API server.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/twopelicans/portal/internal/auth"
	"github.com/twopelicans/portal/internal/cache"
	"github.com/twopelicans/portal/internal/config"
	"github.com/twopelicans/portal/internal/events"
	"github.com/twopelicans/portal/internal/handler"
	"github.com/twopelicans/portal/internal/inbox"
	"github.com/twopelicans/portal/internal/mailer"
	"github.com/twopelicans/portal/internal/metrics"
	"github.com/twopelicans/portal/internal/repository"
	"github.com/twopelicans/portal/internal/server"
	"github.com/twopelicans/portal/internal/service"
)

// tokenIssuer is the iss claim of portal session tokens.
const tokenIssuer = "client-portal"

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := config.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	srv, err := build(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// build connects every backend and assembles the server. Components are
// registered for shutdown as they come up so a later failure still closes them.
func build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*server.Server, error) {
	var closers []func()
	fail := func(err error) (*server.Server, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
		return nil, err
	}

	repo, err := repository.New(ctx, cfg.DatabaseURL, auth.NewHasher(auth.DefaultParams))
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", config.SanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", config.RedactURL(cfg.DatabaseURL)),
		)
		return fail(err)
	}
	closers = append(closers, repo.Close)
	logger.Info("connected to database")

	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", config.SanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", config.RedactURL(cfg.RedisURL)),
		)
		return fail(err)
	}
	closers = append(closers, func() { _ = cacheClient.Close() })
	logger.Info("connected to Redis")

	db, err := inbox.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open message store",
			slog.String("error", config.SanitizeError(err, cfg.DatabaseURL)),
		)
		return fail(err)
	}
	messages := inbox.NewStore(db)
	closers = append(closers, func() { _ = messages.Close() })

	var publisher events.Publisher = events.NoopPublisher{}
	var rabbit *events.RabbitPublisher
	if cfg.Events.AMQPURL != "" {
		rabbit, err = events.DialRabbit(ctx, cfg.Events.AMQPURL, cfg.Events.Exchange, logger)
		if err != nil {
			logger.Error("failed to connect to RabbitMQ",
				slog.String("error", config.SanitizeError(err, cfg.Events.AMQPURL)),
				slog.String("amqp_url", config.RedactURL(cfg.Events.AMQPURL)),
			)
			return fail(err)
		}
		publisher = rabbit
		closers = append(closers, func() { _ = rabbit.Close() })
		logger.Info("connected to RabbitMQ", "exchange", cfg.Events.Exchange)
	}

	m, err := newMailer(cfg.Mail, logger)
	if err != nil {
		return fail(err)
	}

	tokens, err := auth.NewTokenIssuer(cfg.SessionSecret, tokenIssuer)
	if err != nil {
		return fail(err)
	}

	recorder := metrics.NewPrometheus()

	guard := service.NewGuard(tokens, cacheClient, repo, repo)
	sessions := service.NewSessions(tokens, cacheClient, repo, repo, cfg.SessionTTL, recorder, logger)
	relay := service.NewRelay(m, messages, service.RelayConfig{
		From:      cfg.Mail.From,
		Operator:  cfg.Mail.To,
		PortalURL: cfg.Mail.PortalURL,
	}, recorder, logger)
	provisioner := service.NewProvisioner(service.ProvisionerDeps{
		Identities: repo,
		Profiles:   repo,
		Prober:     sessions,
		Notifier:   relay,
		Sessions:   sessions,
		Events:     publisher,
		Metrics:    recorder,
		Logger:     logger,
	}, service.ProvisionerConfig{
		LoginProbe: cfg.Provision.LoginProbe,
		Timeout:    cfg.Provision.Timeout,
	})

	r := setupRouter(routes{
		root:     handler.New(),
		health:   handler.NewHealthHandler(logger, handler.Dependency{Name: "database", Checker: repo}, handler.Dependency{Name: "redis", Checker: cacheClient}, handler.Dependency{Name: "messages", Checker: messages}),
		metrics:  handler.NewMetricsHandler(recorder.Gatherer()),
		sessions: handler.NewSessionHandler(sessions, cfg.IsProduction(), logger),
		users:    handler.NewUserHandler(provisioner, logger),
		messages: handler.NewMessageHandler(relay, logger),
		contact:  handler.NewContactHandler(relay, logger),
		guard:    guard,
		limiter:  cacheClient,
	}, cfg, logger)

	srv := server.New(r, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Logger:          logger,
	})

	// LIFO: events closes first, postgres last.
	srv.OnShutdown("postgres", func(context.Context) error {
		repo.Close()
		return nil
	})
	srv.OnShutdown("redis", func(context.Context) error {
		return cacheClient.Close()
	})
	srv.OnShutdown("messages", func(context.Context) error {
		return messages.Close()
	})
	if rabbit != nil {
		srv.OnShutdown("events", func(context.Context) error {
			return rabbit.Close()
		})
	}

	return srv, nil
}

// newMailer returns the Resend mailer, or a logging mailer when no API key is set.
func newMailer(cfg config.MailConfig, logger *slog.Logger) (mailer.Mailer, error) {
	if cfg.ResendAPIKey == "" {
		logger.Warn("RESEND_API_KEY not set, mail is logged instead of sent")
		return mailer.NewLogMailer(logger), nil
	}
	return mailer.NewResendMailer(mailer.ResendConfig{
		APIKey:  cfg.ResendAPIKey,
		BaseURL: cfg.ResendBaseURL,
		Logger:  logger,
	})
}
