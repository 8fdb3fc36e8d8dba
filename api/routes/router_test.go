package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mutirao/castracao-backend/internal/capacity"
	"github.com/mutirao/castracao-backend/internal/dispatch"
	"github.com/mutirao/castracao-backend/internal/queue"
	"github.com/mutirao/castracao-backend/internal/ratelimit"
	"github.com/mutirao/castracao-backend/internal/registrations"
	pkgAuth "github.com/mutirao/castracao-backend/pkg/auth"
	"github.com/mutirao/castracao-backend/pkg/config"
	"github.com/mutirao/castracao-backend/pkg/db/dbtest"
	"github.com/mutirao/castracao-backend/pkg/db/models"
	"github.com/mutirao/castracao-backend/pkg/enums"
	"github.com/mutirao/castracao-backend/pkg/logger"
	"github.com/mutirao/castracao-backend/pkg/metrics"
	"github.com/mutirao/castracao-backend/pkg/pagination"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubCapacity struct{}

func (stubCapacity) Summary(context.Context) (capacity.Summary, error) {
	return capacity.Summary{Cities: []capacity.Bucket{}, GeneratedAt: time.Now()}, nil
}

type stubDispatch struct{ calls int }

func (s *stubDispatch) RunOnce(context.Context) (dispatch.Result, error) {
	s.calls++
	return dispatch.Result{Processed: 1, Sent: 1}, nil
}

type stubMessages struct{}

func (stubMessages) List(context.Context, queue.ListParams) (pagination.Page[models.Message], error) {
	return pagination.Page[models.Message]{Items: []models.Message{}}, nil
}

func (stubMessages) Requeue(context.Context, uuid.UUID) (*models.Message, error) {
	return nil, queue.ErrNotFound
}

type stubRegistrations struct{ registered int }

func (s *stubRegistrations) Register(context.Context, registrations.RegisterInput) (*registrations.RegisterResult, error) {
	s.registered++
	return &registrations.RegisterResult{Registration: models.Registration{ID: uuid.New(), Status: enums.RegistrationStatusAwaitingService}}, nil
}

func (s *stubRegistrations) UpdateStatus(context.Context, uuid.UUID, registrations.UpdateStatusInput) (*registrations.UpdateStatusResult, error) {
	return nil, nil
}

func (s *stubRegistrations) ListForTutor(context.Context, uuid.UUID, pagination.Params) (pagination.Page[models.Registration], error) {
	return pagination.Page[models.Registration]{Items: []models.Registration{}}, nil
}

func testConfig(env string) *config.Config {
	return &config.Config{
		App:  config.AppConfig{Env: env},
		JWT:  config.JWTConfig{Secret: "secret", Issuer: "mutirao", ExpirationMinutes: 10},
		Cron: config.CronConfig{Secret: "cron-secret"},
		RateLimit: config.RateLimitConfig{
			RegisterWindow: time.Hour,
			RegisterLimit:  2,
		},
	}
}

type fixture struct {
	handler       http.Handler
	dispatch      *stubDispatch
	registrations *stubRegistrations
	registry      *prometheus.Registry
}

func newFixture(t *testing.T, env string) fixture {
	t.Helper()
	client := dbtest.Open(t)
	limiter, err := ratelimit.New(ratelimit.NewDBStore(client.DB(), nil))
	require.NoError(t, err)

	registry := prometheus.NewRegistry()
	f := fixture{
		dispatch:      &stubDispatch{},
		registrations: &stubRegistrations{},
		registry:      registry,
	}
	f.handler = NewRouter(RouterParams{
		Config:        testConfig(env),
		Logger:        logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		DB:            stubPinger{},
		Limiter:       limiter,
		BlockRecorder: metrics.NewRateLimitMetrics(registry),
		Metrics:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Capacity:      stubCapacity{},
		Registrations: f.registrations,
		Messages:      stubMessages{},
		Dispatch:      f.dispatch,
	})
	return f
}

func (f fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func bearer(t *testing.T, role enums.Role) string {
	t.Helper()
	cfg := testConfig("dev").JWT
	token, err := pkgAuth.MintAccessToken(cfg, time.Now(), pkgAuth.AccessTokenPayload{Subject: uuid.New(), Role: role, JTI: uuid.NewString()})
	require.NoError(t, err)
	return "Bearer " + token
}

func TestPublicRoutes(t *testing.T) {
	f := newFixture(t, "dev")

	assert.Equal(t, http.StatusOK, f.do(httptest.NewRequest(http.MethodGet, "/health/live", nil)).Code)
	assert.Equal(t, http.StatusOK, f.do(httptest.NewRequest(http.MethodGet, "/health/ready", nil)).Code)
	assert.Equal(t, http.StatusOK, f.do(httptest.NewRequest(http.MethodGet, "/api/public/capacity", nil)).Code)
	assert.Equal(t, http.StatusOK, f.do(httptest.NewRequest(http.MethodGet, "/api/public/ping", nil)).Code)
}

func TestCronDispatchRoute(t *testing.T) {
	f := newFixture(t, "dev")

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/cron/dispatch?secret=cron-secret", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cron/dispatch", nil)
	req.Header.Set("X-Cron-Secret", "wrong")
	assert.Equal(t, http.StatusUnauthorized, f.do(req).Code)
	assert.Equal(t, 1, f.dispatch.calls)
}

func TestRoleProtectedRoutes(t *testing.T) {
	f := newFixture(t, "dev")

	assert.Equal(t, http.StatusUnauthorized, f.do(httptest.NewRequest(http.MethodGet, "/api/v1/me/registrations", nil)).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me/registrations", nil)
	req.Header.Set("Authorization", bearer(t, enums.RoleTutor))
	assert.Equal(t, http.StatusOK, f.do(req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/admin/v1/messages", nil)
	req.Header.Set("Authorization", bearer(t, enums.RoleTutor))
	assert.Equal(t, http.StatusForbidden, f.do(req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/admin/v1/messages", nil)
	req.Header.Set("Authorization", bearer(t, enums.RoleAdmin))
	assert.Equal(t, http.StatusOK, f.do(req).Code)

	req = httptest.NewRequest(http.MethodPost, "/api/admin/v1/messages/"+uuid.NewString()+"/requeue", nil)
	req.Header.Set("Authorization", bearer(t, enums.RoleAdmin))
	assert.Equal(t, http.StatusNotFound, f.do(req).Code)
}

func TestAdminRegisterHiddenInProd(t *testing.T) {
	prod := newFixture(t, "prod")
	rec := prod.do(httptest.NewRequest(http.MethodPost, "/api/admin/v1/auth/register", strings.NewReader(`{}`)))
	assert.Contains(t, []int{http.StatusNotFound, http.StatusMethodNotAllowed}, rec.Code)

	dev := newFixture(t, "dev")
	rec = dev.do(httptest.NewRequest(http.MethodPost, "/api/admin/v1/auth/register", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code, "route exists but no service is wired")
}

func TestRegisterRouteIsRateLimitedPerIP(t *testing.T) {
	f := newFixture(t, "dev")
	body := `{"tutor_name":"Maria","phone":"32999991234","city":"Barbacena","animal_name":"Rex","species":"dog"}`

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/registrations", strings.NewReader(body))
		req.RemoteAddr = "10.1.2.3:5555"
		last = f.do(req)
	}

	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.NotEmpty(t, last.Header().Get("Retry-After"))
	assert.Equal(t, 2, f.registrations.registered)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/registrations", strings.NewReader(body))
	req.RemoteAddr = "10.9.9.9:5555"
	assert.Equal(t, http.StatusCreated, f.do(req).Code)

	metricsRec := f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, metricsRec.Code)
	assert.Contains(t, metricsRec.Body.String(), `policy="register"`)
}
