package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/centinela-ac/centinela/cmd/centinela/cli"
	"github.com/centinela-ac/centinela/internal/app"
	"github.com/centinela-ac/centinela/internal/audit"
	"github.com/centinela-ac/centinela/internal/catalog"
	"github.com/centinela-ac/centinela/internal/exceptions"
	"github.com/centinela-ac/centinela/internal/groups"
	"github.com/centinela-ac/centinela/internal/identity"
	"github.com/centinela-ac/centinela/internal/observability"
	"github.com/centinela-ac/centinela/internal/platform/cache"
	"github.com/centinela-ac/centinela/internal/platform/db"
	"github.com/centinela-ac/centinela/internal/resolver"
	"github.com/centinela-ac/centinela/internal/shared"
	"github.com/centinela-ac/centinela/jobs"
)

func main() {
	if len(os.Args) > 1 {
		if err := cli.Run(os.Args[1:]); err != nil {
			slog.Default().Error("cli", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	tokens := shared.NewTokenManager(redisClient, "centinela_token", cfg.TokenTTL)
	auditStore := audit.NewStore(pool)
	metrics := observability.NewMetrics()

	resolverCache := resolver.NewCache(redisClient, cfg.CacheTTL)
	resolverRepo := resolver.NewPGRepository(pool)
	resolverService := resolver.NewService(resolverRepo, resolverCache, metrics)
	resolverHandler := resolver.NewHandler(logger, resolverService)
	authz := resolver.Middleware{Service: resolverService, Logger: logger}

	catalogRepo := catalog.NewRepository(pool)
	catalogService := catalog.NewService(catalogRepo, resolverCache, logger)
	catalogHandler := catalog.NewHandler(logger, catalogService, authz,
		[]string{shared.CapCatalogView, shared.CapCatalogEdit},
		[]string{shared.CapCatalogEdit},
	)

	groupsRepo := groups.NewRepository(pool)
	groupsService := groups.NewService(groupsRepo, auditStore, resolverCache, logger)
	groupsHandler := groups.NewHandler(logger, groupsService, authz,
		[]string{shared.CapGroupsView, shared.CapGroupsEdit},
		[]string{shared.CapGroupsEdit},
	)

	exceptionsRepo := exceptions.NewRepository(pool)
	exceptionsService := exceptions.NewService(exceptionsRepo, auditStore, resolverCache, logger)
	exceptionsHandler := exceptions.NewHandler(logger, exceptionsService, authz,
		[]string{shared.CapExceptionsView, shared.CapExceptionsEdit},
		[]string{shared.CapExceptionsEdit},
	)

	identityRepo := identity.NewRepository(pool)
	identityService := identity.NewService(identityRepo)
	authHandler := identity.NewHandler(logger, identityService, tokens)

	auditService := audit.NewService(auditStore)
	auditHandler := audit.NewHandler(logger, auditService, authz, []string{shared.CapAuditView})

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Tokens:            tokens,
		AuthHandler:       authHandler,
		CatalogHandler:    catalogHandler,
		GroupsHandler:     groupsHandler,
		ExceptionsHandler: exceptionsHandler,
		ResolverHandler:   resolverHandler,
		AuditHandler:      auditHandler,
		JobHandler:        jobHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
