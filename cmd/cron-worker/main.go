package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mutirao/castracao-backend/internal/auth"
	"github.com/mutirao/castracao-backend/internal/cron"
	"github.com/mutirao/castracao-backend/internal/dispatch"
	"github.com/mutirao/castracao-backend/internal/gateway"
	"github.com/mutirao/castracao-backend/internal/queue"
	"github.com/mutirao/castracao-backend/pkg/config"
	"github.com/mutirao/castracao-backend/pkg/db"
	"github.com/mutirao/castracao-backend/pkg/instance"
	"github.com/mutirao/castracao-backend/pkg/logger"
	"github.com/mutirao/castracao-backend/pkg/metrics"
	"github.com/mutirao/castracao-backend/pkg/migrate"
	"github.com/mutirao/castracao-backend/pkg/redis"
)

const lockKeyFormat = "cron-worker:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.RunDev(context.Background(), cfg.App, cfg.FeatureFlags, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	messageStore, err := queue.NewStore(queue.StoreParams{
		DB:     dbClient.DB(),
		Policy: queue.PolicyFromConfig(cfg.Dispatch),
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create message store", err)
		os.Exit(1)
	}

	sender, err := gateway.New(cfg.Gateway, logg, gateway.WithTimeout(cfg.Dispatch.SendTimeout))
	if err != nil {
		logg.Error(context.Background(), "failed to create gateway sender", err)
		os.Exit(1)
	}

	worker, err := dispatch.NewWorker(dispatch.WorkerParams{
		Config:  dispatch.ConfigFrom(cfg.Dispatch),
		Store:   messageStore,
		Sender:  sender,
		Logger:  logg,
		Metrics: metrics.NewDispatchMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create dispatch worker", err)
		os.Exit(1)
	}

	// The trigger shares its lock key with the HTTP trigger so both paths never overlap.
	var newLock dispatch.LockFactory
	if cfg.Dispatch.Exclusive {
		newLock = func() (dispatch.Lock, error) {
			lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("dispatch"), cfg.Dispatch.LockTTL)
			if err != nil {
				return nil, err
			}
			return lock, nil
		}
	}
	trigger, err := dispatch.NewTrigger(worker, newLock, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create dispatch trigger", err)
		os.Exit(1)
	}
	dispatchJob, err := dispatch.NewJob(trigger, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create dispatch job", err)
		os.Exit(1)
	}

	otpCleanupJob, err := cron.NewOTPCleanupJob(cron.OTPCleanupJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: auth.NewRepository(),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create otp cleanup job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockKey(cfg.App.Env)), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry, err := cron.NewRegistry(dispatchJob, otpCleanupJob)
	if err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Dispatch.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
		"interval":    cfg.Dispatch.Interval.String(),
		"jobs":        registry.Names(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
