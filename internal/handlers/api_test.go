package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjperalta/cashflow-api/internal/models"
	"github.com/sjperalta/cashflow-api/internal/repository"
	"github.com/sjperalta/cashflow-api/internal/services"
)

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{services.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("load: %w", services.ErrNotFound), http.StatusNotFound},
		{services.ErrLoanSettled, http.StatusConflict},
		{services.ErrDuplicateEmail, http.StatusConflict},
		{services.ErrConcurrentUpdate, http.StatusConflict},
		{services.ErrInvalidCredentials, http.StatusUnauthorized},
		{services.ErrInvalidToken, http.StatusUnauthorized},
		{services.ErrInactiveAccount, http.StatusUnauthorized},
		{services.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("a.exe: %w", services.ErrInvalidFile), http.StatusBadRequest},
		{services.ErrFileTooLarge, http.StatusBadRequest},
		{services.ErrInvalidRecoveryCode, http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "sql", body["loan_store"])

	s.pingErr = errors.New("connection refused")
	w = s.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "degraded", decodeBody(t, w)["status"])
}

func TestClients_CreateAcceptsCamelCase(t *testing.T) {
	s := newTestServer(t)
	var created *models.Client
	s.clients.mockCreate = func(ctx context.Context, client *models.Client) error {
		client.ID = 12
		created = client
		return nil
	}

	body := `{"client": {"name": " Thandi ", "email": "Thandi@Example.com", "phone": "0821234567",
		"loanType": "Unsecured Loan", "loanAmount": 10000, "startDate": "2024-03-10", "idNumber": "9001015009087"}}`
	w := s.do(t, http.MethodPost, "/clients", body, models.RoleUser)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.NotNil(t, created)
	assert.Equal(t, "Thandi", created.Name)
	assert.Equal(t, "thandi@example.com", created.Email)
	assert.Equal(t, "9001015009087", created.IDNumber)
	assert.True(t, created.AmountDue.Equal(decimal.NewFromInt(15000)))

	client := decodeBody(t, w)["client"].(map[string]interface{})
	assert.Equal(t, float64(12), client["id"])
	assert.Equal(t, float64(15000), client["amount_due"])
	assert.Equal(t, models.ClientStatusNewLead, client["status"])

	require.Len(t, s.audit.entries, 1)
	assert.Equal(t, models.AuditActionCreate, s.audit.entries[0].Action)
	assert.Equal(t, uint(1), s.audit.entries[0].UserID)
}

func TestClients_CreateValidation(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/clients", `{"loanAmount": 0}`, models.RoleUser)
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "validation failed", body["error"])
	assert.Equal(t, []interface{}{
		"Name is required",
		"Email is required",
		"Phone is required",
		"Loan type must be one of: Secured Loan, Unsecured Loan",
		"Loan amount must be greater than 0",
	}, body["errors"])

	w = s.do(t, http.MethodPost, "/clients", `not json`, models.RoleUser)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/clients", `{}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestClients_RouteGuards(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		role   string
		want   int
	}{
		{"manager cannot delete", http.MethodDelete, "/clients/1", models.RoleManager, http.StatusForbidden},
		{"user cannot override status", http.MethodPut, "/clients/1/status", models.RoleUser, http.StatusForbidden},
		{"bad id", http.MethodGet, "/clients/abc/calculate", models.RoleUser, http.StatusBadRequest},
		{"zero id", http.MethodGet, "/clients/0/calculate", models.RoleUser, http.StatusBadRequest},
		{"users list is admin only", http.MethodGet, "/users", models.RoleManager, http.StatusForbidden},
		{"digest is admin only", http.MethodPost, "/notifications/payment-due", models.RoleManager, http.StatusForbidden},
		{"jobs without worker", http.MethodGet, "/jobs/status", models.RoleAdmin, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, tt.method, tt.path, `{}`, tt.role)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestClients_StatusOverrideRejectsUnknownStatus(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPut, "/clients/1/status", `{"status": "lost"}`, models.RoleManager)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []interface{}{"Invalid status"}, decodeBody(t, w)["errors"])
}

func TestPayments_Create(t *testing.T) {
	s := newTestServer(t)
	start := time.Now().AddDate(0, 0, -1)
	s.clients.mockFindByID = func(ctx context.Context, id uint) (*models.Client, error) {
		if id != 1 {
			return nil, repository.ErrNotFound
		}
		return &models.Client{
			ID: 1, Name: "Settled", LoanAmount: decimal.NewFromInt(1000),
			AmountDue: decimal.NewFromInt(1500), AmountPaid: decimal.NewFromInt(1500),
			StartDate: start, DueDate: start.AddDate(0, 1, 0), Status: models.ClientStatusPaid,
		}, nil
	}

	w := s.do(t, http.MethodPost, "/clients/1/payments", `{"amount": 100}`, models.RoleUser)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, services.ErrLoanSettled.Error(), decodeBody(t, w)["error"])

	w = s.do(t, http.MethodPost, "/clients/2/payments", `{"amount": 100}`, models.RoleUser)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/clients/1/payments", `{"payment": {"amount": 0}}`, models.RoleUser)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []interface{}{"Payment amount must be greater than 0"}, decodeBody(t, w)["errors"])
}

func TestUsers_IndexDefaultStatus(t *testing.T) {
	s := newTestServer(t)

	var captured *repository.ListQuery
	s.users.mockList = func(ctx context.Context, query *repository.ListQuery) ([]models.User, int64, error) {
		captured = query
		return []models.User{{ID: 1, Email: "a@example.com", Role: models.RoleAdmin, Status: models.UserStatusActive}}, 41, nil
	}

	// No status provided -> active only
	w := s.do(t, http.MethodGet, "/users", "", models.RoleAdmin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.UserStatusActive, captured.Filters["status"])
	pagination := decodeBody(t, w)["pagination"].(map[string]interface{})
	assert.Equal(t, float64(3), pagination["total_pages"])

	// "all" removes the filter
	s.do(t, http.MethodGet, "/users?status=all&role=manager&per_page=500&sort=email-DESC", "", models.RoleAdmin)
	assert.Equal(t, "", captured.Filters["status"])
	assert.Equal(t, "manager", captured.Filters["role"])
	assert.Equal(t, maxPerPage, captured.PerPage)
	assert.Equal(t, "email", captured.SortBy)
	assert.Equal(t, "desc", captured.SortDir)

	s.do(t, http.MethodGet, "/users?status=inactive", "", models.RoleAdmin)
	assert.Equal(t, models.UserStatusInactive, captured.Filters["status"])
}

func TestAuth_LoginAndRecovery(t *testing.T) {
	s := newTestServer(t)
	s.users.mockFindByEmail = func(ctx context.Context, email string) (*models.User, error) {
		return nil, repository.ErrNotFound
	}

	w := s.do(t, http.MethodPost, "/auth/login", `{"email": "x@example.com"}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/auth/login", `{"email": "x@example.com", "password": "secret123"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, services.ErrInvalidCredentials.Error(), decodeBody(t, w)["error"])

	// Unknown addresses get the same answer as known ones
	w = s.do(t, http.MethodPost, "/auth/recover", `{"email": "nobody@example.com"}`, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/auth/recover/reset", `{"email": "nobody@example.com", "code": "123456", "newPassword": "longenough"}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, services.ErrInvalidRecoveryCode.Error(), decodeBody(t, w)["error"])
}

func multipartRequest(t *testing.T, path string, fields map[string]string, files map[string]string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for field, filename := range files {
		part, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write([]byte("content"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1"+path, body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestApplications_RejectedBeforeWriting(t *testing.T) {
	s := newTestServer(t)
	s.clients.mockCreate = func(ctx context.Context, client *models.Client) error {
		t.Fatal("client must not be created")
		return nil
	}

	w := s.send(multipartRequest(t, "/applications/unsecured", map[string]string{"surname": "Mokoena"}, nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []interface{}{
		"Name is required",
		"ID number is required",
		"Phone is required",
		"Email is required",
		"Loan amount must be greater than 0",
		"Terms and conditions must be accepted",
	}, decodeBody(t, w)["errors"])

	fields := map[string]string{
		"name": "Thandi", "idNumber": "9001015009087", "phone": "0821234567",
		"email": "thandi@example.com", "amount": "5,000", "terms": "on",
	}
	w = s.send(multipartRequest(t, "/applications/unsecured", fields, map[string]string{"bank_statement": "statement.exe"}))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeBody(t, w)["error"], "statement.exe")

	w = s.do(t, http.MethodPost, "/applications/secured", `{"name": "json"}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalytics_ExportRejectsUnknownFormat(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/analytics/export?format=docx", "", models.RoleUser)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []interface{}{"Format must be one of: csv, xlsx, pdf"}, decodeBody(t, w)["errors"])
}
