package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"giftregistry/internal/amqp"
	"giftregistry/internal/cache"
	"giftregistry/internal/cli"
	"giftregistry/internal/config"
	"giftregistry/internal/core"
	"giftregistry/internal/feed"
	apphttp "giftregistry/internal/http"
	"giftregistry/internal/inspiration"
	"giftregistry/internal/log"
	"giftregistry/internal/metrics"
	"giftregistry/internal/middleware/identity"
	"giftregistry/internal/middleware/ratelimit"
	"giftregistry/internal/services"
	"giftregistry/internal/sheets/google"
	"giftregistry/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentApp)

	if err := run(cfg, logger); err != nil {
		logger.Error("Registry server failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := cli.ShutdownContext()
	defer stop()

	result, err := cli.CreateBackend(ctx, logger, cfg, nil)
	if err != nil {
		return err
	}
	defer cli.Cleanup(logger, result)

	m := metrics.New()

	var publisher services.EventPublisher
	if result.Events != nil {
		publisher = result.Events
	}
	gifts := services.NewGiftService(result.Store, publisher, logger, m)

	registry := feed.New(result.Store, result.Store, logger, feed.WithMetrics(m))

	views := cache.NewViewCache(cfg.ViewCacheSize, cfg.ViewCacheTTL, m)
	caches := cache.NewManager(logger)
	caches.Register(views)

	catalog, err := inspiration.Load(cfg.InspirationFile)
	if err != nil {
		return err
	}

	var auth identity.Authenticator = identity.HeaderAuthenticator{}
	if cfg.AuthMode == config.AuthFirebase {
		auth, err = identity.NewFirebaseAuthenticatorFromApp(ctx, result.Firebase)
		if err != nil {
			return err
		}
	}

	limiter := ratelimit.NewLimiter(ratelimit.DefaultConfig())

	srv := apphttp.NewServer(apphttp.Options{
		Addr:           ":" + cfg.Port,
		Gifts:          gifts,
		Feed:           registry,
		Views:          views,
		Inspiration:    catalog,
		Metrics:        m,
		Logger:         logger,
		Authenticator:  auth,
		Limiter:        limiter,
		DefaultGroupBy: core.ParseGroupKey(cfg.DefaultGroupBy),
		PublicBaseURL:  cfg.PublicBaseURL,
		FirebaseAuth:   cfg.AuthMode == config.AuthFirebase,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return registry.Run(gctx) })
	g.Go(func() error { return caches.Run(gctx, time.Minute) })
	g.Go(func() error { return limiter.Run(gctx) })

	if result.Events != nil {
		// Changes made by other instances arrive here. A store that only
		// sees its own writes pushes a fresh snapshot through its
		// subscription; any other store is reloaded directly.
		g.Go(func() error {
			return result.Events.ConsumeWithRetry(gctx, func(ctx context.Context, msg *amqp.GiftChangedMessage) error {
				if result.Refresher != nil {
					result.Refresher.Refresh()
					return nil
				}
				_, err := registry.Reload(ctx)
				return err
			})
		})
	}

	if cfg.ExportEnabled() && result.Events == nil {
		exporter, err := google.New(ctx, google.ConfigFromEnv(cfg.GoogleSpreadsheetID, cfg.GoogleSheetName))
		if err != nil {
			return fmt.Errorf("create sheets exporter: %w", err)
		}
		export := worker.NewExportWorker(result.Store, exporter, core.ParseGroupKey(cfg.DefaultGroupBy), cfg.ExportInterval, logger, m)
		registry.OnChange(func(*feed.Snapshot) { export.Trigger() })
		g.Go(func() error { return export.Run(gctx) })
		logger.Info("In-process sheet export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	}

	g.Go(func() error {
		logger.Info("Starting registry server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"auth_mode", cfg.AuthMode,
			"events", result.Events != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
