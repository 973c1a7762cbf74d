package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sjperalta/cashflow-api/internal/models"
	"github.com/sjperalta/cashflow-api/internal/repository"
)

type mockClientRepo struct {
	repository.ClientRepository
	mockFindByID            func(ctx context.Context, id uint) (*models.Client, error)
	mockFindByIDWithDetails func(ctx context.Context, id uint) (*models.Client, error)
	mockCreate              func(ctx context.Context, client *models.Client) error
	mockUpdate              func(ctx context.Context, client *models.Client) error
	mockUpdateStatus        func(ctx context.Context, client *models.Client) error
	mockFindOpen            func(ctx context.Context) ([]models.Client, error)
	mockFindAll             func(ctx context.Context, includeArchived bool) ([]models.Client, error)
	mockRecordPayment       func(ctx context.Context, client *models.Client, payment *models.Payment, previousPaid decimal.Decimal) error
	mockList                func(ctx context.Context, query *repository.ListQuery) ([]models.Client, int64, error)
}

func (m *mockClientRepo) List(ctx context.Context, query *repository.ListQuery) ([]models.Client, int64, error) {
	return m.mockList(ctx, query)
}

func (m *mockClientRepo) FindByID(ctx context.Context, id uint) (*models.Client, error) {
	return m.mockFindByID(ctx, id)
}

func (m *mockClientRepo) FindByIDWithDetails(ctx context.Context, id uint) (*models.Client, error) {
	if m.mockFindByIDWithDetails != nil {
		return m.mockFindByIDWithDetails(ctx, id)
	}
	return m.mockFindByID(ctx, id)
}

func (m *mockClientRepo) Create(ctx context.Context, client *models.Client) error {
	return m.mockCreate(ctx, client)
}

func (m *mockClientRepo) Update(ctx context.Context, client *models.Client) error {
	return m.mockUpdate(ctx, client)
}

func (m *mockClientRepo) UpdateStatus(ctx context.Context, client *models.Client) error {
	if m.mockUpdateStatus != nil {
		return m.mockUpdateStatus(ctx, client)
	}
	return nil
}

func (m *mockClientRepo) FindOpen(ctx context.Context) ([]models.Client, error) {
	return m.mockFindOpen(ctx)
}

func (m *mockClientRepo) FindAll(ctx context.Context, includeArchived bool) ([]models.Client, error) {
	return m.mockFindAll(ctx, includeArchived)
}

func (m *mockClientRepo) RecordPayment(ctx context.Context, client *models.Client, payment *models.Payment, previousPaid decimal.Decimal) error {
	return m.mockRecordPayment(ctx, client, payment, previousPaid)
}

type mockPaymentRepo struct {
	repository.PaymentRepository
	mockListByClient func(ctx context.Context, clientID uint) ([]models.Payment, error)
	mockListSince    func(ctx context.Context, since time.Time) ([]models.Payment, error)
}

func (m *mockPaymentRepo) ListByClient(ctx context.Context, clientID uint) ([]models.Payment, error) {
	return m.mockListByClient(ctx, clientID)
}

func (m *mockPaymentRepo) ListSince(ctx context.Context, since time.Time) ([]models.Payment, error) {
	return m.mockListSince(ctx, since)
}

// mockNoteRepo keeps created notes in memory
type mockNoteRepo struct {
	repository.NoteRepository
	mu    sync.Mutex
	notes []models.Note
}

func (m *mockNoteRepo) Create(ctx context.Context, note *models.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	note.ID = uint(len(m.notes) + 1)
	m.notes = append(m.notes, *note)
	return nil
}

func (m *mockNoteRepo) FindByID(ctx context.Context, id uint) (*models.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.notes {
		if m.notes[i].ID == id {
			n := m.notes[i]
			return &n, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockNoteRepo) Delete(ctx context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.notes {
		if m.notes[i].ID == id {
			m.notes = append(m.notes[:i], m.notes[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

// mockDocumentRepo keeps document rows in memory
type mockDocumentRepo struct {
	repository.DocumentRepository
	mu   sync.Mutex
	docs []models.Document
	err  error
}

func (m *mockDocumentRepo) Create(ctx context.Context, doc *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	doc.ID = uint(len(m.docs) + 1)
	m.docs = append(m.docs, *doc)
	return nil
}

func (m *mockDocumentRepo) FindByID(ctx context.Context, id uint) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.docs {
		if m.docs[i].ID == id {
			d := m.docs[i]
			return &d, nil
		}
	}
	return nil, repository.ErrNotFound
}

// mockAuditRepo keeps audit entries in memory
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

func (m *mockAuditRepo) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Action
	}
	return out
}

type mockUserRepo struct {
	repository.UserRepository
	mockFindByEmail    func(ctx context.Context, email string) (*models.User, error)
	mockFindByID       func(ctx context.Context, id uint) (*models.User, error)
	mockCreate         func(ctx context.Context, user *models.User) error
	mockUpdate         func(ctx context.Context, user *models.User) error
	mockCount          func(ctx context.Context) (int64, error)
	mockFindStaff      func(ctx context.Context) ([]models.User, error)
	mockTouchLastLogin func(ctx context.Context, id uint, at time.Time) error
	mockSetRecovery    func(ctx context.Context, id uint, code string, at time.Time) error
}

func (m *mockUserRepo) SetRecoveryCode(ctx context.Context, id uint, code string, at time.Time) error {
	return m.mockSetRecovery(ctx, id, code, at)
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.mockFindByEmail(ctx, email)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id uint) (*models.User, error) {
	return m.mockFindByID(ctx, id)
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	return m.mockCreate(ctx, user)
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	return m.mockUpdate(ctx, user)
}

func (m *mockUserRepo) Count(ctx context.Context) (int64, error) {
	return m.mockCount(ctx)
}

func (m *mockUserRepo) FindStaff(ctx context.Context) ([]models.User, error) {
	if m.mockFindStaff != nil {
		return m.mockFindStaff(ctx)
	}
	return nil, nil
}

func (m *mockUserRepo) TouchLastLogin(ctx context.Context, id uint, at time.Time) error {
	if m.mockTouchLastLogin != nil {
		return m.mockTouchLastLogin(ctx, id, at)
	}
	return nil
}

type mockRTRepo struct {
	repository.RefreshTokenRepository
	mockFindByToken func(ctx context.Context, token string) (*models.RefreshToken, error)
	mockRevoke      func(ctx context.Context, token string) error
	created         []models.RefreshToken
}

func (m *mockRTRepo) FindByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	return m.mockFindByToken(ctx, token)
}

func (m *mockRTRepo) Create(ctx context.Context, rt *models.RefreshToken) error {
	m.created = append(m.created, *rt)
	return nil
}

func (m *mockRTRepo) Revoke(ctx context.Context, token string) error {
	if m.mockRevoke != nil {
		return m.mockRevoke(ctx, token)
	}
	return nil
}

// mockNotificationRepo keeps created notifications in memory
type mockNotificationRepo struct {
	repository.NotificationRepository
	mu      sync.Mutex
	created []models.Notification
}

func (m *mockNotificationRepo) Create(ctx context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, *n)
	return nil
}

func (m *mockNotificationRepo) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.created))
	for i, n := range m.created {
		out[i] = n.NotificationType
	}
	return out
}

// mockAnalyticsRepo is an in-memory cache honouring expiry
type mockAnalyticsRepo struct {
	repository.AnalyticsRepository
	mu      sync.Mutex
	entries map[string]models.AnalyticsCache
	sets    int
}

func newMockAnalyticsRepo() *mockAnalyticsRepo {
	return &mockAnalyticsRepo{entries: make(map[string]models.AnalyticsCache)}
}

func (m *mockAnalyticsRepo) GetCache(ctx context.Context, key string, now time.Time) (*models.AnalyticsCache, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key]
	if !ok || !now.Before(entry.ExpiresAt) {
		return nil, repository.ErrNotFound
	}
	return &entry, nil
}

func (m *mockAnalyticsRepo) SetCache(ctx context.Context, key string, data interface{}, expiresAt time.Time) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = models.AnalyticsCache{CacheKey: key, Data: raw, ExpiresAt: expiresAt}
	m.sets++
	return nil
}

func (m *mockAnalyticsRepo) InvalidateAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]models.AnalyticsCache)
	return nil
}

// recordingSender captures outgoing mail instead of sending it
type recordingSender struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (r *recordingSender) Send(ctx context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordingSender) messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.sent...)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
