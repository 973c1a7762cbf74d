package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/sjperalta/cashflow-api/internal/config"
	"github.com/sjperalta/cashflow-api/internal/models"
	"github.com/sjperalta/cashflow-api/internal/repository"
	"github.com/sjperalta/cashflow-api/internal/services"
	"github.com/sjperalta/cashflow-api/internal/storage"
)

const testSecret = "handler-test-secret"

type mockClientRepo struct {
	repository.ClientRepository
	mockFindByID func(ctx context.Context, id uint) (*models.Client, error)
	mockCreate   func(ctx context.Context, client *models.Client) error
	mockList     func(ctx context.Context, query *repository.ListQuery) ([]models.Client, int64, error)
}

func (m *mockClientRepo) FindByID(ctx context.Context, id uint) (*models.Client, error) {
	return m.mockFindByID(ctx, id)
}

func (m *mockClientRepo) Create(ctx context.Context, client *models.Client) error {
	return m.mockCreate(ctx, client)
}

func (m *mockClientRepo) List(ctx context.Context, query *repository.ListQuery) ([]models.Client, int64, error) {
	return m.mockList(ctx, query)
}

type mockUserRepo struct {
	repository.UserRepository
	mockList        func(ctx context.Context, query *repository.ListQuery) ([]models.User, int64, error)
	mockFindByEmail func(ctx context.Context, email string) (*models.User, error)
}

func (m *mockUserRepo) List(ctx context.Context, query *repository.ListQuery) ([]models.User, int64, error) {
	return m.mockList(ctx, query)
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.mockFindByEmail(ctx, email)
}

type mockAuditRepo struct {
	repository.AuditRepository
	mu      sync.Mutex
	entries []models.AuditLog
}

func (m *mockAuditRepo) Create(ctx context.Context, entry *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *entry)
	return nil
}

type mockAnalyticsRepo struct {
	repository.AnalyticsRepository
}

func (m *mockAnalyticsRepo) InvalidateAll(ctx context.Context) error { return nil }

type testServer struct {
	router  *gin.Engine
	clients *mockClientRepo
	users   *mockUserRepo
	audit   *mockAuditRepo
	pingErr error
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := storage.NewLocalStorage(t.TempDir(), 1<<20)
	require.NoError(t, err)

	s := &testServer{
		clients: &mockClientRepo{},
		users:   &mockUserRepo{},
		audit:   &mockAuditRepo{},
	}
	cfg := &config.Config{
		JWTSecret:          testSecret,
		JWTExpirationHours: 1,
		CurrencySymbol:     "R",
		NotifyTimezone:     "UTC",
	}
	repos := &repository.Repositories{
		User:      s.users,
		Audit:     s.audit,
		Analytics: &mockAnalyticsRepo{},
		Client:    s.clients,
	}
	svcs := services.NewServices(repos, nil, store, cfg)
	h := NewHandlers(svcs, LoanStoreProbe{
		Name: "sql",
		Ping: func(ctx context.Context) error { return s.pingErr },
	})

	s.router = gin.New()
	RegisterRoutes(s.router.Group("/api/v1"), h, testSecret)
	return s
}

func token(t *testing.T, role string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": 1,
		"email":   role + "@example.com",
		"role":    role,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

// do sends a JSON request; an empty role sends no token
func (s *testServer) do(t *testing.T, method, path, body, role string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, "/api/v1"+path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, role))
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) send(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}
