package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"bookys-sync/internal/config"
	"bookys-sync/internal/confirmation"
	"bookys-sync/internal/database"
	"bookys-sync/internal/ghl"
	"bookys-sync/internal/handlers"
	"bookys-sync/internal/lease"
	"bookys-sync/internal/metrics"
	"bookys-sync/internal/platform"
	"bookys-sync/internal/repository"
	"bookys-sync/internal/router"
	"bookys-sync/internal/scheduler"
)

// Run initializes and starts the application
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	logrus.SetFormatter(&logrus.JSONFormatter{})
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	logrus.Info("Starting Bookys Sync Service")

	dbConn, err := database.Init(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	m := metrics.NewMetrics()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	locker := lease.NewRedisLocker(redisClient, cfg.Scheduler.LeaseTimeout)

	healthAtom := platform.NewHealthAtomAdapter()
	healthAtom.DentalinkBaseURL = cfg.Platforms.DentalinkBaseURL
	healthAtom.MedilinkBaseURL = cfg.Platforms.MedilinkBaseURL
	reservo := platform.NewReservoAdapter()
	reservo.BaseURL = cfg.Platforms.ReservoBaseURL
	resolver := platform.NewResolver(healthAtom, reservo)

	ghlClient := ghl.NewClient()
	ghlClient.BaseURL = cfg.Platforms.GoHighLevelBaseURL

	tenants := repository.NewTenantRepository(dbConn)
	configs := repository.NewConfigRepository(dbConn)
	pending := repository.NewPendingRepository(dbConn)

	service := confirmation.New(tenants, configs, pending, resolver, ghlClient, locker, m, cfg.Pacing)
	sched := scheduler.NewScheduler(&cfg.Scheduler, service, m)

	h := handlers.NewHandlers(dbConn, tenants, configs, pending, service, sched, resolver, healthAtom, ghlClient, m)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router.SetupRouter(h),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	go func() {
		logrus.Infof("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sched.Stop(); err != nil {
		logrus.Errorf("Failed to stop scheduler: %v", err)
	}
	sched.Wait()
	service.Wait()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("HTTP server shutdown error: %v", err)
	}
	if err := redisClient.Close(); err != nil {
		logrus.Errorf("Failed to close redis client: %v", err)
	}

	logrus.Info("Server stopped gracefully")
	return nil
}
