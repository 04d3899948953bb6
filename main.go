package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"grievance/config"
	"grievance/handler"
	"grievance/metrics"
	"grievance/notification"
	"grievance/repository"
	"grievance/routes"
	"grievance/schema"
	"grievance/service"
	"grievance/utils"
	"grievance/worker"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	// Load .env file
	envErr := godotenv.Load()

	cfg := config.LoadConfig()
	logger, err := utils.NewLogger(cfg.Log.Level, cfg.Log.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if envErr != nil {
		logger.Info(".env file not found, using environment variables")
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dsn, err := cfg.Database.DSN()
	if err != nil {
		return err
	}
	db, err := repository.Open(ctx, dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("database connection established")

	if cfg.Database.InitSchema {
		if err := schema.InitializeDatabase(ctx, db, logger); err != nil {
			return err
		}
	}
	if err := schema.ValidateRequiredColumns(ctx, db, nil); err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(registry)

	store := repository.NewStore(db)

	sender := notification.NewEmailSender(notification.Config{
		APIKey:          cfg.Notification.SendGridAPIKey,
		FromEmail:       cfg.Notification.FromEmail,
		FromName:        cfg.Notification.FromName,
		ShadowAddress:   cfg.Notification.ShadowRecipient(),
		Endpoint:        cfg.Notification.SendGridURL,
		RatePerSecond:   cfg.Notification.RatePerSecond,
		Burst:           cfg.Notification.Burst,
		BreakerFailures: uint32(max(cfg.Notification.BreakerFailures, 0)),
	}, logger)
	if cfg.Notification.SendGridAPIKey == "" {
		logger.Warn("SENDGRID_API_KEY not set; emails will be logged, not sent")
	}
	if shadow := cfg.Notification.ShadowRecipient(); shadow != "" {
		logger.Info("email shadow mode enabled", zap.String("shadow_address", shadow))
	}
	dispatcher := service.NewNotificationDispatcher(sender, store.NotificationLogs, logger, m)

	escalationService := service.NewEscalationService(store, dispatcher, logger,
		service.WithMultiHop(cfg.Escalation.MultiHop),
		service.WithMetrics(m),
	)
	complaintService := service.NewComplaintService(store, escalationService, dispatcher, logger)

	if path := cfg.Escalation.LadderFile; path != "" {
		ladder, err := config.LoadLadderFile(path)
		if err != nil {
			return err
		}
		if err := escalationService.SeedLadder(ctx, ladder); err != nil {
			return err
		}
		logger.Info("seeded escalation ladder", zap.String("file", path), zap.Int("levels", len(ladder)))
	}

	escalationWorker := worker.NewEscalationWorker(escalationService, cfg.Escalation.WorkerInterval(), logger)
	var trigger handler.PassTrigger
	if cfg.Escalation.WorkerEnabled {
		escalationWorker.Start(ctx)
		trigger = escalationWorker
	} else {
		logger.Warn("escalation worker disabled; passes run only on admin request")
	}

	if cfg.Auth.AdminToken == "" {
		logger.Warn("ADMIN_TOKEN not set; admin endpoints will reject every request")
	}
	if cfg.Auth.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set; complaint endpoints will reject every request")
	}

	router := routes.SetupRoutes(routes.Deps{
		Complaints:  handler.NewComplaintHandler(complaintService, escalationService, logger),
		Escalations: handler.NewEscalationHandler(escalationService, trigger, logger),
		AdminToken:  cfg.Auth.AdminToken,
		JWTSecret:   cfg.Auth.JWTSecret,
		DB:          db,
		Gatherer:    registry,
	})

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{Addr: addr, Handler: routes.CORS(router)}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			escalationWorker.Stop()
			return fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	escalationWorker.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	escalationService.Wait()
	complaintService.Wait()
	logger.Info("server stopped")
	return nil
}
