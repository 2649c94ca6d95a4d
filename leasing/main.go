package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/parkrow-labs/parkrow-go/internal/checklist"
	"github.com/parkrow-labs/parkrow-go/internal/migrate"
	"github.com/parkrow-labs/parkrow-go/internal/platform/auditlog"
	"github.com/parkrow-labs/parkrow-go/internal/platform/auth"
	"github.com/parkrow-labs/parkrow-go/internal/platform/env"
	"github.com/parkrow-labs/parkrow-go/internal/platform/httpserver"
	"github.com/parkrow-labs/parkrow-go/internal/platform/postgres"
	"github.com/parkrow-labs/parkrow-go/internal/screening"
	"github.com/parkrow-labs/parkrow-go/internal/service/bulkops"
	"github.com/parkrow-labs/parkrow-go/internal/service/onboarding"
	"github.com/parkrow-labs/parkrow-go/internal/service/transition"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := env.String("LEASING_HTTP_ADDR", ":8082")
	shutdownTimeout, err := env.Duration("LEASING_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		logger.Error("invalid env", "error", err)
		os.Exit(2)
	}

	dbCfg, err := postgres.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid database config", "error", err)
		os.Exit(2)
	}
	db, err := postgres.Open(ctx, dbCfg)
	if err != nil {
		logger.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if migrateOn, err := migrate.Enabled(); err != nil {
		logger.Error("invalid migrate config", "error", err)
		os.Exit(2)
	} else if migrateOn {
		if err := migrate.Migrate(ctx, db, logger); err != nil {
			logger.Error("migrations failed", "error", err)
			os.Exit(1)
		}
	}

	template, err := checklist.DefaultTemplate()
	if err != nil {
		logger.Error("invalid default checklist template", "error", err)
		os.Exit(2)
	}
	if path := env.String("LEASING_CHECKLIST_TEMPLATE", ""); path != "" {
		template, err = checklist.LoadTemplateFile(path)
		if err != nil {
			logger.Error("invalid checklist template", "path", path, "error", err)
			os.Exit(2)
		}
		logger.Info("checklist template loaded", "path", path, "steps", len(template.Steps))
	}

	screeningCfg, err := screening.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid screening config", "error", err)
		os.Exit(2)
	}
	screener, err := screening.NewClient(screeningCfg)
	if err != nil {
		logger.Error("screening client init failed", "error", err)
		os.Exit(2)
	}

	authCfg, err := auth.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid auth config", "error", err)
		os.Exit(2)
	}
	authenticator, err := auth.NewAuthenticator(authCfg)
	if err != nil {
		logger.Error("auth init failed", "error", err)
		os.Exit(2)
	}

	transitions := transition.NewService(db, logger)
	onboardings := onboarding.NewService(db, transitions, template, logger)
	bulk := bulkops.NewService(db, transitions, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", httpserver.Healthz("leasing"))
	mux.HandleFunc(
		"/readyz",
		httpserver.ReadyzWithChecks(
			"leasing",
			httpserver.ReadinessCheck{
				Name:  "postgres",
				Check: auth.WithTimeout(750*time.Millisecond, db.PingContext),
			},
		),
	)

	api := newLeasingAPI(logger, db, transitions, onboardings, bulk, screener)
	api.register(mux)

	handler := auth.Middleware{
		Logger:        logger,
		Authenticator: authenticator,
		Authorize:     auth.MethodRoleAuthorizer(),
		SiteResolve:   auth.RequireSiteIDResolver([]string{"/healthz", "/readyz"}),
		Audit: func(ctx context.Context, event auth.DenyEvent) error {
			auditCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
			defer cancel()
			return auditlog.InsertAuthDeny(auditCtx, db, "leasing", event)
		},
		SkipPrefixes: []string{"/healthz", "/readyz"},
	}.Wrap(mux)

	cfg := httpserver.Config{
		Service:         "leasing",
		Addr:            addr,
		ShutdownTimeout: shutdownTimeout,
	}

	if err := httpserver.Run(ctx, logger, cfg, httpserver.Wrap(logger, "leasing", handler)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
