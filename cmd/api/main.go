package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/mutirao/castracao-backend/api/routes"
	"github.com/mutirao/castracao-backend/internal/auth"
	"github.com/mutirao/castracao-backend/internal/capacity"
	"github.com/mutirao/castracao-backend/internal/cron"
	"github.com/mutirao/castracao-backend/internal/dispatch"
	"github.com/mutirao/castracao-backend/internal/gateway"
	"github.com/mutirao/castracao-backend/internal/queue"
	"github.com/mutirao/castracao-backend/internal/ratelimit"
	"github.com/mutirao/castracao-backend/internal/registrations"
	"github.com/mutirao/castracao-backend/internal/webhooks/messaging"
	"github.com/mutirao/castracao-backend/pkg/config"
	"github.com/mutirao/castracao-backend/pkg/db"
	"github.com/mutirao/castracao-backend/pkg/instance"
	"github.com/mutirao/castracao-backend/pkg/logger"
	"github.com/mutirao/castracao-backend/pkg/metrics"
	"github.com/mutirao/castracao-backend/pkg/migrate"
	"github.com/mutirao/castracao-backend/pkg/redis"
)

const shutdownTimeout = 20 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.RunDev(ctx, cfg.App, cfg.FeatureFlags, logg, dbClient); err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, redisClient.Close()) }()
	} else {
		logg.Warn(ctx, "redis not configured; webhook idempotency and exclusive dispatch disabled")
	}

	var limiterStore ratelimit.Store = ratelimit.NewDBStore(dbClient.DB(), nil)
	if cfg.RateLimit.UsesRedis() {
		if redisClient == nil {
			return errors.New("redis rate limit backend selected but redis is not configured")
		}
		limiterStore = ratelimit.NewRedisStore(redisClient)
	}
	limiter, err := ratelimit.New(limiterStore)
	if err != nil {
		return err
	}

	catalog, err := capacity.LoadCatalog(cfg.Campaign.CitiesFile)
	if err != nil {
		return err
	}
	capacityService, err := capacity.NewService(capacity.ServiceParams{
		DB:              dbClient.DB(),
		Catalog:         catalog,
		StrictAdmission: cfg.Campaign.StrictAdmission,
		Logger:          logg,
	})
	if err != nil {
		return err
	}

	messageStore, err := queue.NewStore(queue.StoreParams{
		DB:     dbClient.DB(),
		Policy: queue.PolicyFromConfig(cfg.Dispatch),
		Logger: logg,
	})
	if err != nil {
		return err
	}

	registrationService, err := registrations.NewService(registrations.ServiceParams{
		DB:       dbClient.DB(),
		Capacity: capacityService,
		Queue:    messageStore,
		Logger:   logg,
	})
	if err != nil {
		return err
	}

	authRepo := auth.NewRepository()
	authService, err := auth.NewService(auth.ServiceParams{
		DB:        dbClient.DB(),
		Repo:      authRepo,
		JWTConfig: cfg.JWT,
		Logger:    logg,
	})
	if err != nil {
		return err
	}
	adminRegisterService, err := auth.NewAdminRegisterService(auth.AdminRegisterServiceParams{
		DB:             dbClient.DB(),
		Repo:           authRepo,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		return err
	}
	otpService, err := auth.NewOTPService(auth.OTPServiceParams{
		DB:             dbClient.DB(),
		Repo:           authRepo,
		Queue:          messageStore,
		OTPConfig:      cfg.OTP,
		PasswordConfig: cfg.Password,
		JWTConfig:      cfg.JWT,
		Logger:         logg,
	})
	if err != nil {
		return err
	}

	sender, err := gateway.New(cfg.Gateway, logg, gateway.WithTimeout(cfg.Dispatch.SendTimeout))
	if err != nil {
		return err
	}
	worker, err := dispatch.NewWorker(dispatch.WorkerParams{
		Config:  dispatch.ConfigFrom(cfg.Dispatch),
		Store:   messageStore,
		Sender:  sender,
		Logger:  logg,
		Metrics: metrics.NewDispatchMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return err
	}
	trigger, err := dispatch.NewTrigger(worker, dispatchLockFactory(cfg, redisClient), logg)
	if err != nil {
		return err
	}

	webhookService, err := messaging.NewService(messaging.ServiceParams{
		DB:     dbClient.DB(),
		Queue:  messageStore,
		Logger: logg,
	})
	if err != nil {
		return err
	}

	params := routes.RouterParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		Limiter:       limiter,
		BlockRecorder: metrics.NewRateLimitMetrics(prometheus.DefaultRegisterer),
		Capacity:      capacityService,
		Registrations: registrationService,
		Messages:      messageStore,
		Dispatch:      trigger,
		Auth:          authService,
		AdminRegister: adminRegisterService,
		OTP:           otpService,
		Webhook:       webhookService,
	}
	if redisClient != nil {
		params.Redis = redisClient
		guard, err := messaging.NewIdempotencyGuard(redisClient, cfg.Webhook.IdempotencyTTL, "messaging")
		if err != nil {
			return err
		}
		params.WebhookGuard = guard
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":                cfg.App.Env,
		"addr":               addr,
		"instance":           instance.GetID(),
		"rate_limit_backend": cfg.RateLimit.Backend,
		"campaign_cities":    len(catalog.Cities()),
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(params),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(logCtx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// dispatchLockFactory returns nil when exclusivity is off or redis is absent;
// overlapping triggers then rely on the store's exclusive claims.
func dispatchLockFactory(cfg *config.Config, client *redis.Client) dispatch.LockFactory {
	if !cfg.Dispatch.Exclusive || client == nil {
		return nil
	}
	return func() (dispatch.Lock, error) {
		lock, err := cron.NewRedisLock(client, client.LockKey("dispatch"), cfg.Dispatch.LockTTL)
		if err != nil {
			return nil, err
		}
		return lock, nil
	}
}
