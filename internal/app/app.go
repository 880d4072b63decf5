package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"appointment-notifier/internal/config"
	"appointment-notifier/internal/db"
	"appointment-notifier/internal/handler"
	"appointment-notifier/internal/metrics"
	"appointment-notifier/internal/repository"
	"appointment-notifier/internal/router"
	"appointment-notifier/internal/service"
	"appointment-notifier/internal/service/scheduler"
)

// Run initializes and starts the application
func Run() error {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.Info("Starting Appointment Notifier")

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	cfg.Log.ApplyLogging()

	dbConn, err := db.Init(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	repo := repository.New(dbConn)

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	notifier, err := service.NewNotifier(&cfg.Mail)
	if err != nil {
		return fmt.Errorf("failed to create notifier: %w", err)
	}
	logrus.Infof("Using %s for outbound mail", cfg.Mail.Provider)

	cache := service.NewMemoryDedupCache()
	scanner := service.NewReminderScanner(repo, notifier, cache, m, cfg.Scheduler.ReminderWindow, cfg.Scheduler.PendingStatus)
	digest := service.NewDigestJob(repo, notifier, m, cfg.Mail.OperatorAddress)
	sched := scheduler.New(&cfg.Scheduler, scanner, digest, cache, m)

	h := handler.NewHandlers(repo, notifier, sched, m)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router.SetupRouter(h),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if cfg.Scheduler.Enabled {
		if err := sched.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	} else {
		logrus.Warn("Scheduler disabled by configuration")
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

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("HTTP server shutdown error: %v", err)
	}

	if sqlDB, err := dbConn.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logrus.Errorf("Failed to close database: %v", err)
		}
	}

	logrus.Info("Server stopped gracefully")
	return nil
}
