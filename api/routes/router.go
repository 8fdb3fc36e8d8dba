package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mutirao/castracao-backend/api/controllers"
	webhookcontrollers "github.com/mutirao/castracao-backend/api/controllers/webhooks"
	"github.com/mutirao/castracao-backend/api/middleware"
	"github.com/mutirao/castracao-backend/internal/auth"
	"github.com/mutirao/castracao-backend/internal/capacity"
	"github.com/mutirao/castracao-backend/internal/dispatch"
	"github.com/mutirao/castracao-backend/internal/queue"
	"github.com/mutirao/castracao-backend/internal/ratelimit"
	"github.com/mutirao/castracao-backend/internal/registrations"
	"github.com/mutirao/castracao-backend/pkg/config"
	"github.com/mutirao/castracao-backend/pkg/db/models"
	"github.com/mutirao/castracao-backend/pkg/enums"
	"github.com/mutirao/castracao-backend/pkg/logger"
	"github.com/mutirao/castracao-backend/pkg/pagination"
)

type RateLimiter interface {
	Check(ctx context.Context, key string, max int, window time.Duration) (ratelimit.Decision, error)
}

type BlockRecorder interface {
	IncBlocked(policy string)
}

type CapacityService interface {
	Summary(ctx context.Context) (capacity.Summary, error)
}

type DispatchRunner interface {
	RunOnce(ctx context.Context) (dispatch.Result, error)
}

type MessageAdmin interface {
	List(ctx context.Context, params queue.ListParams) (pagination.Page[models.Message], error)
	Requeue(ctx context.Context, id uuid.UUID) (*models.Message, error)
}

type WebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

// RouterParams carries every dependency the HTTP surface needs. Redis, Limiter,
// BlockRecorder, WebhookGuard and Metrics may be nil.
type RouterParams struct {
	Config *config.Config
	Logger *logger.Logger

	DB    controllers.Pinger
	Redis controllers.Pinger

	Limiter       RateLimiter
	BlockRecorder BlockRecorder
	Metrics       http.Handler

	Capacity      CapacityService
	Registrations registrations.Service
	Messages      MessageAdmin
	Dispatch      DispatchRunner
	Auth          auth.Service
	AdminRegister auth.AdminRegisterService
	OTP           auth.OTPService
	Webhook       webhookcontrollers.MessagingWebhookService
	WebhookGuard  WebhookGuard
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	limits := cfg.RateLimit
	clientIP, err := middleware.NewClientIPResolver(limits.TrustedProxies)
	if err != nil {
		logg.Warn(logg.WithField(context.Background(), "error", err.Error()), "trusted proxies ignored")
		clientIP = nil
	}
	loginPolicy := middleware.NewRateLimitPolicy("login", limits.LoginWindow, limits.LoginIPLimit, limits.LoginIdentifierLimit, "email")
	otpVerifyPolicy := middleware.NewRateLimitPolicy("otp_verify", limits.OTPVerifyWindow, 0, limits.OTPVerifyLimit, "phone")
	otpRequestPolicy := middleware.NewRateLimitPolicy("otp_request", limits.OTPRequestWindow, limits.OTPRequestLimit, 0, "")
	registerPolicy := middleware.NewRateLimitPolicy("register", limits.RegisterWindow, limits.RegisterLimit, 0, "")

	limit := func(policy middleware.RateLimitPolicy) func(http.Handler) http.Handler {
		return middleware.RateLimit(policy.WithClientIP(clientIP), p.Limiter, p.BlockRecorder, logg)
	}

	metricsHandler := p.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, p.Redis))
	})
	r.Handle("/metrics", metricsHandler)

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
		r.Get("/capacity", controllers.PublicCapacity(p.Capacity, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		cronDispatch := controllers.CronDispatch(p.Dispatch, cfg.Cron.Secret, logg)
		r.Get("/cron/dispatch", cronDispatch)
		r.Post("/cron/dispatch", cronDispatch)

		r.Post("/webhooks/messaging", webhookcontrollers.MessagingWebhook(p.Webhook, cfg.Webhook.Secret, p.WebhookGuard, logg))

		r.With(limit(registerPolicy)).Post("/registrations", controllers.PublicRegister(p.Registrations, logg))

		r.Route("/auth/otp", func(r chi.Router) {
			r.With(limit(otpRequestPolicy)).Post("/request", controllers.OTPRequest(p.OTP, logg))
			r.With(limit(otpVerifyPolicy)).Post("/verify", controllers.OTPVerify(p.OTP, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.RequireRole(logg, enums.RoleTutor))
			r.Get("/me/registrations", controllers.MyRegistrations(p.Registrations, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			if !cfg.App.IsProd() {
				r.Post("/register", controllers.AdminAuthRegister(p.AdminRegister, logg))
			}
			r.With(limit(loginPolicy)).Post("/login", controllers.AdminAuthLogin(p.Auth, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.RequireRole(logg, enums.RoleAdmin))
			r.Get("/ping", controllers.AdminPing())
			r.Patch("/registrations/{id}/status", controllers.AdminUpdateRegistrationStatus(p.Registrations, logg))
			r.Get("/messages", controllers.AdminListMessages(p.Messages, logg))
			r.Post("/messages/{id}/requeue", controllers.AdminRequeueMessage(p.Messages, logg))
		})
	})

	return r
}
