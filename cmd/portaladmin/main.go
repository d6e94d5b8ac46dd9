// Package main is portaladmin, the operator CLI for portal users.
//
//	portaladmin create  --email a@b.com --company Acme [--password ...] [--welcome]
//	portaladmin list    [--role admin|client]
//	portaladmin verify  --email a@b.com
//	portaladmin delete  --email a@b.com [--yes]
//	portaladmin promote --email a@b.com
//	portaladmin orphans
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/twopelicans/portal/internal/auth"
	"github.com/twopelicans/portal/internal/cache"
	"github.com/twopelicans/portal/internal/config"
	"github.com/twopelicans/portal/internal/events"
	"github.com/twopelicans/portal/internal/mailer"
	"github.com/twopelicans/portal/internal/repository"
	"github.com/twopelicans/portal/internal/service"
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	cfg, err := config.LoadAdmin()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	// CLI output is for humans; component logs go to stderr.
	logger := config.NewLogger(config.LogConfig{Level: cfg.Log.Level, Format: "text"}, os.Stderr)

	ctx := context.Background()
	svc, closeAll, err := buildProvisioner(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, config.SanitizeError(err, cfg.DatabaseURL, cfg.RedisURL, cfg.Events.AMQPURL))
		return 1
	}
	defer closeAll()

	app := &cli{svc: svc, stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	return app.run(ctx, os.Args[1:])
}

func buildProvisioner(ctx context.Context, cfg *config.AdminConfig, logger *slog.Logger) (*service.Provisioner, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	repo, err := repository.New(ctx, cfg.DatabaseURL, auth.NewHasher(auth.DefaultParams))
	if err != nil {
		return nil, closeAll, fmt.Errorf("connect database: %w", err)
	}
	closers = append(closers, repo.Close)

	deps := service.ProvisionerDeps{
		Identities: repo,
		Profiles:   repo,
		Logger:     logger,
	}

	// Without Redis there is no session store: no login probe, no revocation.
	if cfg.RedisURL != "" {
		c, err := cache.New(ctx, cfg.RedisURL)
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("connect redis: %w", err)
		}
		closers = append(closers, func() { _ = c.Close() })

		var tokens *auth.TokenIssuer
		if cfg.SessionSecret != "" {
			if tokens, err = auth.NewTokenIssuer(cfg.SessionSecret, "client-portal"); err != nil {
				closeAll()
				return nil, func() {}, err
			}
		}
		sessions := service.NewSessions(tokens, c, repo, repo, 0, nil, logger)
		deps.Prober = sessions
		deps.Sessions = sessions
	}

	if cfg.Mail.ResendAPIKey != "" {
		m, err := mailer.NewResendMailer(mailer.ResendConfig{
			APIKey:  cfg.Mail.ResendAPIKey,
			BaseURL: cfg.Mail.ResendBaseURL,
			Logger:  logger,
		})
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		// Welcome mail is never echoed to the inbox.
		deps.Notifier = service.NewRelay(m, nil, service.RelayConfig{
			From:      cfg.Mail.From,
			Operator:  cfg.Mail.To,
			PortalURL: cfg.Mail.PortalURL,
		}, nil, logger)
	}

	if cfg.Events.AMQPURL != "" {
		pub, err := events.DialRabbit(ctx, cfg.Events.AMQPURL, cfg.Events.Exchange, logger)
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		closers = append(closers, func() { _ = pub.Close() })
		deps.Events = pub
	}

	return service.NewProvisioner(deps, service.ProvisionerConfig{
		LoginProbe: cfg.Provision.LoginProbe,
		Timeout:    cfg.Provision.Timeout,
	}), closeAll, nil
}
