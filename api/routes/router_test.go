package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soumil-kumar17/MailMaven/internal/flash"
	"github.com/soumil-kumar17/MailMaven/internal/idempotency"
	"github.com/soumil-kumar17/MailMaven/internal/newsletters"
	pkgAuth "github.com/soumil-kumar17/MailMaven/pkg/auth"
	"github.com/soumil-kumar17/MailMaven/pkg/config"
	"github.com/soumil-kumar17/MailMaven/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubNewsletters struct {
	callers []uuid.UUID
}

func (s *stubNewsletters) Publish(ctx context.Context, input newsletters.PublishInput) (idempotency.Response, error) {
	s.callers = append(s.callers, input.UserID)
	return idempotency.SeeOther(newsletters.AdminNewslettersPath), nil
}

type stubFlashes struct{}

func (stubFlashes) Drain(context.Context, uuid.UUID) ([]flash.Message, error) { return nil, nil }

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", CORSOrigins: []string{"http://localhost:3000"}},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "mailmaven", ExpirationMinutes: 5},
	}
}

func newTestRouter(svc newsletters.Service) http.Handler {
	return NewRouter(testConfig(), logger.Nop(), Dependencies{
		DB:          stubPinger{},
		Redis:       stubPinger{},
		Newsletters: svc,
		Flashes:     stubFlashes{},
	})
}

func TestHealthRoutes(t *testing.T) {
	router := newTestRouter(&stubNewsletters{})
	for _, path := range []string{"/health/live", "/health/ready"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, resp.Code, path)
		assert.NotEmpty(t, resp.Header().Get("X-Request-Id"), path)
	}
}

func TestMetricsRoute(t *testing.T) {
	router := newTestRouter(&stubNewsletters{})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "go_goroutines")
}

func TestAdminRoutesRequireAuth(t *testing.T) {
	router := newTestRouter(&stubNewsletters{})

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(method, "/admin/newsletters", nil))
		assert.Equal(t, http.StatusUnauthorized, resp.Code, method)
	}
}

func TestPublishRouteUsesTokenSubject(t *testing.T) {
	svc := &stubNewsletters{}
	router := newTestRouter(svc)
	userID := uuid.New()
	token, err := pkgAuth.MintAccessToken(testConfig().JWT, time.Now(), pkgAuth.AccessTokenPayload{UserID: userID})
	require.NoError(t, err)

	body := `{"title":"t","html_content":"<p>h</p>","text_content":"h","idempotency_key":"abc"}`
	req := httptest.NewRequest(http.MethodPost, "/admin/newsletters", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusSeeOther, resp.Code)
	assert.Equal(t, newsletters.AdminNewslettersPath, resp.Header().Get("Location"))
	assert.Equal(t, []uuid.UUID{userID}, svc.callers)
}

func TestPublishFormRoute(t *testing.T) {
	router := newTestRouter(&stubNewsletters{})
	token, err := pkgAuth.MintAccessToken(testConfig().JWT, time.Now(), pkgAuth.AccessTokenPayload{UserID: uuid.New()})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/admin/newsletters", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "idempotency_key")
}
