package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/newrelic/go-agent/v3/newrelic"

	"github.com/gocomet/ride-sdk/internal/backend"
	"github.com/gocomet/ride-sdk/internal/config"
	domain "github.com/gocomet/ride-sdk/internal/domain/booking"
	"github.com/gocomet/ride-sdk/internal/domain/geo"
	"github.com/gocomet/ride-sdk/internal/domain/ride"
	"github.com/gocomet/ride-sdk/internal/history"
	"github.com/gocomet/ride-sdk/internal/sandbox"
	"github.com/gocomet/ride-sdk/internal/service/pricing"
	"github.com/gocomet/ride-sdk/internal/service/routing"
	"github.com/gocomet/ride-sdk/internal/session"
	"github.com/gocomet/ride-sdk/pkg/cache"
	"github.com/gocomet/ride-sdk/pkg/database"
	"github.com/gocomet/ride-sdk/pkg/logger"
	"github.com/gocomet/ride-sdk/pkg/monitoring"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting ride SDK sandbox",
		logger.String("addr", cfg.Sandbox.Addr),
		logger.String("env", cfg.Sandbox.Env),
	)

	nrApp, err := monitoring.New(monitoring.Config{
		LicenseKey: cfg.NewRelic.LicenseKey,
		AppName:    cfg.NewRelic.AppName,
		Enabled:    cfg.NewRelic.Enabled,
	})
	if err != nil {
		appLogger.Warn("Failed to initialize New Relic", logger.Err(err))
		nrApp, _ = monitoring.New(monitoring.Config{})
	}
	defer nrApp.Shutdown(10 * time.Second)

	// Promos come from Redis when configured, otherwise the static seed
	var promos pricing.PromoSource = pricing.StaticPromos(cfg.Promos.Codes)
	if cfg.Redis.Addr != "" {
		redisClient, err := cache.NewRedisClient(cache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			appLogger.Fatal("Failed to connect to Redis", logger.Err(err))
		}
		defer cache.Close(redisClient)
		promos = pricing.NewRedisPromos(redisClient)
		appLogger.Info("Connected to Redis for promo lookups")
	}

	// Ride history goes to Postgres when configured, otherwise in memory
	var store history.Store = history.NewMemoryStore()
	if cfg.Database.DSN != "" {
		db, err := database.NewPostgresDB(database.Config{
			DSN:      cfg.Database.DSN,
			MaxConns: cfg.Database.MaxConns,
			MaxIdle:  cfg.Database.MaxIdle,
		})
		if err != nil {
			appLogger.Fatal("Failed to connect to PostgreSQL", logger.Err(err))
		}
		defer db.Close()

		pgStore := history.NewPostgresStore(db)
		if err := pgStore.EnsureSchema(context.Background()); err != nil {
			appLogger.Fatal("Failed to prepare ride_history schema", logger.Err(err))
		}
		store = pgStore
		appLogger.Info("Connected to PostgreSQL for ride history")
	}

	// Fake backend
	if cfg.Sandbox.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	server := sandbox.NewServer(appLogger)
	var nrApplication *newrelic.Application
	if nrApp.IsEnabled() {
		nrApplication = nrApp.Application
	}
	server.SetupRoutes(router, nrApplication)

	srv := &http.Server{
		Addr:         cfg.Sandbox.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		appLogger.Info("Sandbox backend listening", logger.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start sandbox backend", logger.Err(err))
		}
	}()

	// Give the listener a moment, then run a scripted session against it
	time.Sleep(200 * time.Millisecond)
	if err := runDemo(cfg, promos, store, nrApp, appLogger); err != nil {
		appLogger.Error("Demo session failed", logger.Err(err))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down sandbox...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Sandbox forced to shutdown", logger.Err(err))
	}
	appLogger.Info("Sandbox stopped gracefully")
}

// runDemo walks one ride through booking, acceptance, chat and completion
func runDemo(cfg *config.Config, promos pricing.PromoSource, store history.Store, nrApp *monitoring.NewRelicApp, appLogger *logger.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	riderID := uuid.New()
	driverID := uuid.New()

	// sandbox convention: the bearer token is the caller's uuid
	client := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, backend.StaticToken(riderID.String()))

	sess := session.New(session.Options{
		RiderID:     riderID,
		Resolver:    routing.NewOSRMResolver(cfg.Routing.Endpoint, cfg.Routing.Timeout, nrApp),
		Calculator:  pricing.NewCalculator(pricing.Rates{Base: cfg.Pricing.BaseFare, PerKM: cfg.Pricing.PerKMRate, PerMinute: cfg.Pricing.PerMinute}, promos),
		Notifier:    backend.NewHTTPNotifier(client),
		History:     store,
		ChatAPI:     backend.NewChatAPI(client),
		Monitor:     nrApp,
		Logger:      appLogger,
		RealtimeURL: cfg.Backend.RealtimeURL,
		AuthToken:   riderID.String(),
		OnUnauthenticated: func() {
			appLogger.Warn("Demo session lost authentication")
		},
	})
	defer sess.Close()

	bk := sess.Booking()
	if err := bk.SetPickup(ctx, geo.Location{Latitude: 33.8938, Longitude: 35.5018, Address: "Hamra Street"}); err != nil {
		return err
	}
	if err := bk.SetDestination(ctx, geo.Location{Latitude: 33.8750, Longitude: 35.4444, Address: "Airport Road"}); err != nil {
		return err
	}
	if err := bk.SetVehicleType(ctx, domain.VehicleComfort); err != nil {
		return err
	}
	if err := bk.ApplyPromoCode(ctx, "FIRST10"); err != nil {
		return err
	}

	draft := bk.Booking()
	if draft == nil {
		return fmt.Errorf("no booking derived")
	}
	appLogger.Info("Booking derived",
		logger.Int64("base_fare", draft.BaseFare),
		logger.Int64("final_fare", draft.FinalFare),
		logger.Int64("discount", draft.Discount),
	)

	requested, err := bk.Confirm(ctx)
	if err != nil {
		return err
	}

	rides := sess.Rides()
	if _, err := rides.Accept(ctx, requested.ID, driverID); err != nil {
		return err
	}

	// Chat while the driver heads over
	engine, err := sess.OpenChat(ctx, driverID)
	if err != nil {
		return err
	}
	if _, err := engine.Send(ctx, "I'm at the main entrance"); err != nil {
		return err
	}

	for _, status := range []ride.Status{ride.StatusOnWay, ride.StatusStarted, ride.StatusCompleted} {
		if _, err := rides.UpdateStatus(ctx, status); err != nil {
			return err
		}
	}
	sess.LeaveChat()

	// Effects run asynchronously; give the archive a moment to land
	time.Sleep(500 * time.Millisecond)
	archived, err := sess.History(ctx)
	if err != nil {
		return err
	}
	appLogger.Info("Demo ride archived", logger.Int("history_count", len(archived)))
	return nil
}
