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

	"github.com/parkrow-labs/parkrow-go/internal/migrate"
	"github.com/parkrow-labs/parkrow-go/internal/platform/auditlog"
	"github.com/parkrow-labs/parkrow-go/internal/platform/auth"
	"github.com/parkrow-labs/parkrow-go/internal/platform/env"
	"github.com/parkrow-labs/parkrow-go/internal/platform/httpserver"
	"github.com/parkrow-labs/parkrow-go/internal/platform/objectstore"
	"github.com/parkrow-labs/parkrow-go/internal/platform/postgres"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := env.String("DOCUMENTS_HTTP_ADDR", ":8083")
	shutdownTimeout, err := env.Duration("DOCUMENTS_SHUTDOWN_TIMEOUT", 10*time.Second)
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

	storeCfg, err := objectstore.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid object store config", "error", err)
		os.Exit(2)
	}
	minioClient, err := objectstore.NewMinIOClient(storeCfg)
	if err != nil {
		logger.Error("object store init failed", "error", err)
		os.Exit(2)
	}
	if err := objectstore.EnsureBucket(ctx, minioClient, storeCfg); err != nil {
		logger.Error("object store unavailable", "error", err)
		os.Exit(1)
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

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", httpserver.Healthz("documents"))
	mux.HandleFunc(
		"/readyz",
		httpserver.ReadyzWithChecks(
			"documents",
			httpserver.ReadinessCheck{
				Name:  "postgres",
				Check: auth.WithTimeout(750*time.Millisecond, db.PingContext),
			},
			httpserver.ReadinessCheck{
				Name: "minio",
				Check: auth.WithTimeout(2*time.Second, func(ctx context.Context) error {
					return objectstore.CheckBucket(ctx, minioClient, storeCfg)
				}),
			},
		),
	)

	api := newDocumentsAPI(logger, db, objectstore.NewMinioStore(minioClient, storeCfg.BucketDocuments))
	api.register(mux)

	handler := auth.Middleware{
		Logger:        logger,
		Authenticator: authenticator,
		Authorize:     auth.MethodRoleAuthorizer(),
		SiteResolve:   auth.RequireSiteIDResolver([]string{"/healthz", "/readyz"}),
		Audit: func(ctx context.Context, event auth.DenyEvent) error {
			auditCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
			defer cancel()
			return auditlog.InsertAuthDeny(auditCtx, db, "documents", event)
		},
		SkipPrefixes: []string{"/healthz", "/readyz"},
	}.Wrap(mux)

	cfg := httpserver.Config{
		Service:         "documents",
		Addr:            addr,
		ShutdownTimeout: shutdownTimeout,
	}

	if err := httpserver.Run(ctx, logger, cfg, httpserver.Wrap(logger, "documents", handler)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
