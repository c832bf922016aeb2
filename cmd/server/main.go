package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"trustlane/internal/admin"
	adminadapters "trustlane/internal/admin/adapters"
	automationhandler "trustlane/internal/automation/handler"
	"trustlane/internal/automation/lock"
	automationmetrics "trustlane/internal/automation/metrics"
	"trustlane/internal/automation/models"
	"trustlane/internal/automation/scheduler"
	automationservice "trustlane/internal/automation/service"
	collabhandler "trustlane/internal/collaboration/handler"
	collabmetrics "trustlane/internal/collaboration/metrics"
	collabservice "trustlane/internal/collaboration/service"
	"trustlane/internal/notification"
	notificationhandler "trustlane/internal/notification/handler"
	"trustlane/internal/notification/kafka"
	notificationmetrics "trustlane/internal/notification/metrics"
	"trustlane/internal/platform/config"
	"trustlane/internal/platform/httpserver"
	"trustlane/internal/platform/logger"
	"trustlane/internal/platform/metrics"
	"trustlane/internal/platform/redis"
	profilehandler "trustlane/internal/profile/handler"
	profileservice "trustlane/internal/profile/service"
	reporthandler "trustlane/internal/report/handler"
	reportservice "trustlane/internal/report/service"
	verificationhandler "trustlane/internal/verification/handler"
	verificationmetrics "trustlane/internal/verification/metrics"
	verificationservice "trustlane/internal/verification/service"
	verificationworker "trustlane/internal/verification/worker"
	"trustlane/pkg/platform/audit/publisher"
)

const auditBufferSize = 1024

// main loads configuration and hands over to run, which owns every resource
// so deferred cleanup happens before the process exits.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "trustlane: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := openStores(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := stores.close(); err != nil {
			log.Error("close database", "error", err)
		}
	}()

	auditPublisher := publisher.NewPublisher(stores.audit,
		publisher.WithAsyncBuffer(auditBufferSize),
		publisher.WithLogger(log),
	)
	defer auditPublisher.Close()

	checks := []healthCheck{{name: "database", ping: stores.ping}}

	sinks := []notification.Sink{notification.NewStoreSink(stores.notifications)}
	if cfg.Kafka.Enabled() {
		kp, err := kafka.NewPublisher(cfg.Kafka, log)
		if err != nil {
			return err
		}
		defer kp.Close()
		if err := kp.EnsureTopic(ctx, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
			return err
		}
		sinks = append(sinks, kp)
		checks = append(checks, healthCheck{name: "kafka", ping: kp.Ping})
	}
	dispatcher := notification.NewDispatcher(cfg.Notification.QueueSize, sinks,
		notification.WithDispatcherLogger(log),
		notification.WithDispatcherMetrics(notificationmetrics.New()),
		notification.WithWorkers(cfg.Notification.Workers),
		notification.WithRetryMaxElapsed(cfg.Notification.RetryMaxElapsed),
	)

	profileSvc, err := profileservice.New(stores.profiles, stores.collaborations, stores.tx,
		profileservice.WithLogger(log),
		profileservice.WithAuditPublisher(auditPublisher),
	)
	if err != nil {
		return fmt.Errorf("profile service: %w", err)
	}

	evalQueue := verificationworker.New(cfg.Verification.QueueSize,
		verificationworker.WithLogger(log),
		verificationworker.WithWorkers(cfg.Verification.Workers),
		verificationworker.WithDelay(cfg.Verification.AutoEvalDelay),
	)
	verificationSvc, err := verificationservice.New(stores.verifications, stores.profiles, profileSvc, stores.tx,
		verificationservice.WithLogger(log),
		verificationservice.WithAuditPublisher(auditPublisher),
		verificationservice.WithMetrics(verificationmetrics.New()),
		verificationservice.WithNotifier(dispatcher),
		verificationservice.WithQueue(evalQueue),
	)
	if err != nil {
		return fmt.Errorf("verification service: %w", err)
	}

	collabSvc, err := collabservice.New(stores.collaborations, stores.profiles, profileSvc, stores.tx,
		collabservice.WithLogger(log),
		collabservice.WithAuditPublisher(auditPublisher),
		collabservice.WithMetrics(collabmetrics.New()),
		collabservice.WithNotifier(dispatcher),
	)
	if err != nil {
		return fmt.Errorf("collaboration service: %w", err)
	}

	reportSvc, err := reportservice.New(stores.reports, stores.profiles, stores.tx,
		reportservice.WithLogger(log),
		reportservice.WithAuditPublisher(auditPublisher),
	)
	if err != nil {
		return fmt.Errorf("report service: %w", err)
	}

	notificationSvc, err := notification.NewService(stores.notifications, notification.WithLogger(log))
	if err != nil {
		return fmt.Errorf("notification service: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	var locker automationservice.Locker
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error("close redis", "error", err)
			}
		}()
		locker = lock.NewRedis(redisClient.Client)
		checks = append(checks, healthCheck{name: "redis", ping: redisClient.Health})
	} else {
		log.WarnContext(ctx, "no REDIS_URL configured, automation leases are process-local")
		locker = lock.NewInMemory()
	}

	automationMetrics := automationmetrics.New()
	automationSvc, err := automationservice.New(stores.profiles, stores.collaborations, stores.verifications, reportSvc, stores.tx,
		automationservice.WithLogger(log),
		automationservice.WithAuditPublisher(auditPublisher),
		automationservice.WithMetrics(automationMetrics),
		automationservice.WithLocker(locker, cfg.Automation.LeaseTTL),
		automationservice.WithInactivity(cfg.Automation.InactivityDays, cfg.Automation.InactivityDecayPercent),
	)
	if err != nil {
		return fmt.Errorf("automation service: %w", err)
	}

	adminSvc, err := admin.NewService(
		adminadapters.NewProfileStatsAdapter(stores.profiles),
		adminadapters.NewCollaborationStatsAdapter(stores.collaborations),
		adminadapters.NewWorkflowStatsAdapter(stores.verifications, stores.reports),
		log,
	)
	if err != nil {
		return fmt.Errorf("admin service: %w", err)
	}

	router := newRouter(log, metrics.New(), checks,
		profilehandler.New(profileSvc, log),
		verificationhandler.New(verificationSvc, log),
		collabhandler.New(collabSvc, log),
		notificationhandler.New(notificationSvc, log),
		reporthandler.New(reportSvc, log),
		automationhandler.New(automationSvc, log),
		admin.NewHandler(adminSvc, log),
	)

	// Background work runs on its own context so it outlives in-flight
	// requests during shutdown.
	bgCtx, cancelBackground := context.WithCancel(context.Background())
	defer cancelBackground()
	var bg errgroup.Group
	bg.Go(func() error { return evalQueue.Run(bgCtx, verificationSvc) })
	bg.Go(func() error { return dispatcher.Run(bgCtx) })
	if cfg.Automation.Enabled {
		sched, err := scheduler.New(automationSvc, scheduleEntries(cfg.Automation),
			scheduler.WithLogger(log),
			scheduler.WithMetrics(automationMetrics),
		)
		if err != nil {
			cancelBackground()
			_ = bg.Wait()
			return fmt.Errorf("automation scheduler: %w", err)
		}
		bg.Go(func() error { return sched.Run(bgCtx) })
	}

	srv := httpserver.New(cfg.Server, router)
	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting trustlane", "addr", cfg.Server.Addr, "in_memory", cfg.Database.InMemory())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serveErr:
		runErr = fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	cancelBackground()
	if err := bg.Wait(); err != nil && runErr == nil {
		runErr = err
	}
	log.Info("trustlane stopped")
	return runErr
}

func scheduleEntries(cfg config.AutomationConfig) []scheduler.Entry {
	return []scheduler.Entry{
		{Job: models.JobRecalculateScores, Spec: cfg.ScoresSpec},
		{Job: models.JobDowngradeInactive, Spec: cfg.InactivitySpec},
		{Job: models.JobFlagSuspicious, Spec: cfg.SuspiciousSpec},
		{Job: models.JobRecalculateCompletion, Spec: cfg.CompletionSpec},
	}
}
