// Package server initializes and runs the photo backend: it opens storage,
// applies migrations, wires services and serves the HTTP API and the gRPC
// health endpoint until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/photoai/internal/logging"
	"github.com/dmitrijs2005/photoai/internal/server/config"
	"github.com/dmitrijs2005/photoai/internal/server/conversion"
	"github.com/dmitrijs2005/photoai/internal/server/httpapi"
	"github.com/dmitrijs2005/photoai/internal/server/identity"
	"github.com/dmitrijs2005/photoai/internal/server/payments"
	"github.com/dmitrijs2005/photoai/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/photoai/internal/server/services"
	"github.com/dmitrijs2005/photoai/internal/server/uploads"
	"github.com/dmitrijs2005/photoai/internal/server/webhookdedup"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/photoai/internal/server/grpc"
)

const (
	serviceName     = "photoai"
	shutdownTimeout = 15 * time.Second
)

// Version is set at build time with -ldflags.
var Version = "dev"

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	redis      *redis.Client
	dispatcher *conversion.Dispatcher
	handler    http.Handler
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, serviceName, c.LogLevel)

	db, err := repomanager.OpenDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	app := &App{config: c, logger: logger, db: db}

	var deduper httpapi.Deduper = webhookdedup.Passthrough{}
	if c.RedisAddr != "" {
		rc, err := webhookdedup.NewRedisClient(ctx, c.RedisAddr, c.RedisPassword)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("redis init error: %w", err)
		}
		app.redis = rc
		deduper = webhookdedup.NewRedisDeduper(rc, c.WebhookDedupTTL)
	} else {
		logger.Warn(ctx, "REDIS_ADDR not set; webhook events are not de-duplicated before the credit ledger")
	}

	var presigner httpapi.Uploads
	if c.S3RootUser != "" {
		p, err := uploads.NewPresigner(ctx, c)
		if err != nil {
			app.close(ctx)
			return nil, fmt.Errorf("s3 init error: %w", err)
		}
		presigner = p
	} else {
		logger.Warn(ctx, "S3 credentials not set; upload presigning disabled")
	}

	if c.IdentityBaseURL == "" {
		logger.Warn(ctx, "identity base URL not set; code delivery will fail")
	}
	if c.AdminBypassCode != "" {
		logger.Warn(ctx, "administrative bypass code is ENABLED")
	}

	webhook := conversion.NewWebhook(c.ConversionWebhookURL, c.ConversionWebhookTimeout, c.DefaultCurrency)
	if !webhook.Enabled() {
		logger.Warn(ctx, "conversion webhook URL not set; conversion events are discarded")
	}
	app.dispatcher = conversion.NewDispatcher(webhook, c.ConversionWorkers, c.ConversionQueueSize, c.ConversionWebhookTimeout, logger)

	issuer := identity.NewClient(c.IdentityBaseURL, c.IdentityAPIKey, 10*time.Second)
	resolver := services.NewProfileResolver(db, rm, issuer, c.ResolverAttempts, c.ResolverDelay, logger)
	codeFlow := services.NewCodeFlowService(db, rm, issuer, resolver, app.dispatcher, c, logger)
	credits := services.NewCreditService(db, rm, payments.NewStripeVerifier(c.StripeSecretKey), app.dispatcher, c, logger)

	app.handler = httpapi.NewRouter(httpapi.Deps{
		Logger:              logger,
		CodeFlow:            codeFlow,
		Credits:             credits,
		Uploads:             presigner,
		Deduper:             deduper,
		JWTSecret:           []byte(c.SecretKey),
		StripeWebhookSecret: c.StripeWebhookSecret,
		Service:             serviceName,
		Version:             Version,
	})

	return app, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	srv := &http.Server{
		Addr:              app.config.EndpointAddrHTTP,
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			app.logger.Error(ctx, "http shutdown error", "err", err)
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.db)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "version", Version)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.close(context.WithoutCancel(ctx))
	app.logger.Info(ctx, "App stopped")
}

// close drains pending conversion events before releasing connections.
func (app *App) close(ctx context.Context) {
	if app.dispatcher != nil {
		if err := app.dispatcher.Close(); err != nil {
			app.logger.Error(ctx, "dispatcher close error", "err", err)
		}
	}
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error(ctx, "redis close error", "err", err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "err", err)
	}
}
