package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjperalta/cashflow-api/internal/loan"
	"github.com/sjperalta/cashflow-api/internal/models"
	"github.com/sjperalta/cashflow-api/internal/repository"
)

var march10 = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func newClientService(repo *mockClientRepo, notes *mockNoteRepo, audit *mockAuditRepo, notification *NotificationService) *ClientService {
	service := NewClientService(repo, notes, NewAuditService(audit), notification, nil, nil, nil)
	service.now = fixedClock(march10)
	return service
}

func TestClientService_Create_AppliesLoanDefaults(t *testing.T) {
	var stored *models.Client
	repo := &mockClientRepo{
		mockCreate: func(ctx context.Context, client *models.Client) error {
			client.ID = 11
			stored = client
			return nil
		},
	}
	audit := &mockAuditRepo{}
	service := newClientService(repo, &mockNoteRepo{}, audit, nil)

	client, err := service.Create(context.Background(), ClientInput{
		Name:       "  Thandi Mokoena ",
		Email:      "Thandi@Example.com",
		Phone:      "0821234567",
		LoanType:   models.LoanTypeUnsecured,
		LoanAmount: 10000,
	}, Actor{UserID: 1, Email: "admin@example.com"})
	require.NoError(t, err)
	require.Same(t, stored, client)

	assert.Equal(t, "Thandi Mokoena", client.Name)
	assert.Equal(t, "thandi@example.com", client.Email)
	assert.Equal(t, models.ClientStatusNewLead, client.Status)
	assert.True(t, client.AmountDue.Equal(dec("15000")))
	assert.True(t, client.AmountPaid.IsZero())
	assert.Equal(t, march10, client.StartDate)
	assert.Equal(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), client.DueDate)
	assert.Equal(t, []string{models.AuditActionCreate}, audit.actions())
}

func TestClientService_Create_Validation(t *testing.T) {
	service := newClientService(&mockClientRepo{}, &mockNoteRepo{}, &mockAuditRepo{}, nil)

	_, err := service.Create(context.Background(), ClientInput{}, SystemActor)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, []string{
		"Name is required",
		"Email is required",
		"Phone is required",
		"Loan type must be one of: Secured Loan, Unsecured Loan",
		"Loan amount must be greater than 0",
	}, vErr.Messages)

	_, err = service.Create(context.Background(), ClientInput{
		Name:       "Sipho",
		Email:      "sipho@example.com",
		Phone:      "0830000000",
		LoanType:   models.LoanTypeSecured,
		LoanAmount: 500,
		StartDate:  "2024-03-10",
		DueDate:    "2024-03-01",
	}, SystemActor)
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, []string{"Due date cannot be before the start date"}, vErr.Messages)
}

func TestClientService_UpdateStatus_RecordsNoteAndAudit(t *testing.T) {
	client := &models.Client{
		ID:         5,
		Name:       "Lerato",
		LoanAmount: dec("1000"),
		AmountDue:  dec("1500"),
		AmountPaid: dec("200"),
		StartDate:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		DueDate:    time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		Status:     models.ClientStatusActive,
	}
	persisted := 0
	repo := &mockClientRepo{
		mockFindByID: func(ctx context.Context, id uint) (*models.Client, error) { return client, nil },
		mockUpdateStatus: func(ctx context.Context, c *models.Client) error {
			persisted++
			return nil
		},
	}
	notes := &mockNoteRepo{}
	audit := &mockAuditRepo{}
	service := newClientService(repo, notes, audit, nil)

	updated, err := service.UpdateStatus(context.Background(), 5, models.ClientStatusOverdue, " promised to pay Friday ", Actor{Email: "admin@example.com"})
	require.NoError(t, err)

	assert.Equal(t, models.ClientStatusOverdue, updated.Status)
	assert.Equal(t, march10, updated.LastStatusUpdate)
	assert.Equal(t, 1, persisted)
	require.Len(t, notes.notes, 1)
	assert.Equal(t, models.NoteTypeStatusChange, notes.notes[0].NoteType)
	assert.Equal(t, "Status changed from active to overdue by admin@example.com: promised to pay Friday", notes.notes[0].Content)
	assert.Equal(t, []string{models.AuditActionStatusChange}, audit.actions())

	// Same status again is a no-op
	_, err = service.UpdateStatus(context.Background(), 5, models.ClientStatusOverdue, "", SystemActor)
	require.NoError(t, err)
	assert.Equal(t, 1, persisted)

	_, err = service.UpdateStatus(context.Background(), 5, "closed", "", SystemActor)
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestClientService_RefreshStatuses(t *testing.T) {
	overdue := models.Client{
		ID: 1, Name: "Overdue", LoanAmount: dec("1000"), AmountDue: dec("1500"), AmountPaid: dec("100"),
		StartDate: time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC),
		DueDate:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		Status:    models.ClientStatusActive,
	}
	lead := models.Client{
		ID: 2, Name: "Lead", LoanAmount: dec("2000"), AmountDue: dec("3000"),
		StartDate: time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC),
		DueDate:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		Status:    models.ClientStatusNewLead,
	}
	dueSoon := models.Client{
		ID: 3, Name: "Due soon", LoanAmount: dec("1000"), AmountDue: dec("1500"), AmountPaid: dec("100"),
		StartDate: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		DueDate:   time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC),
		Status:    models.ClientStatusActive,
	}

	saved := map[uint]models.Client{}
	repo := &mockClientRepo{
		mockFindOpen: func(ctx context.Context) ([]models.Client, error) {
			return []models.Client{overdue, lead, dueSoon}, nil
		},
		mockUpdateStatus: func(ctx context.Context, c *models.Client) error {
			saved[c.ID] = *c
			return nil
		},
	}
	notifications := &mockNotificationRepo{}
	users := &mockUserRepo{
		mockFindStaff: func(ctx context.Context) ([]models.User, error) {
			return []models.User{{ID: 1, Role: models.RoleAdmin}}, nil
		},
	}
	cfg := testEmailConfig()
	notification := NewNotificationService(notifications, users, repo, NewEmailServiceWithSender(cfg, &recordingSender{}), nil, cfg)
	service := newClientService(repo, &mockNoteRepo{}, &mockAuditRepo{}, notification)

	updated, err := service.RefreshStatuses(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, updated)

	require.Contains(t, saved, uint(1))
	assert.Equal(t, models.ClientStatusOverdue, saved[1].Status)
	// 1400 unpaid grew once at Feb 15
	assert.True(t, saved[1].AmountDue.Equal(dec("2200")), saved[1].AmountDue.String())

	assert.NotContains(t, saved, uint(2))

	require.Contains(t, saved, uint(3))
	assert.Equal(t, models.ClientStatusRepaymentDue, saved[3].Status)

	assert.Equal(t, []string{models.NotificationTypeClientOverdue}, notifications.types())
}

func TestClientService_List_EvaluatesBalances(t *testing.T) {
	repo := &mockClientRepo{
		mockList: func(ctx context.Context, query *repository.ListQuery) ([]models.Client, int64, error) {
			return []models.Client{{
				ID: 1, LoanAmount: dec("1000"), AmountDue: dec("1500"), AmountPaid: dec("500"),
				StartDate: time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC),
				DueDate:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
				Status:    models.ClientStatusActive,
			}}, 1, nil
		},
	}
	service := newClientService(repo, &mockNoteRepo{}, &mockAuditRepo{}, nil)

	clients, total, err := service.List(context.Background(), repository.NewListQuery())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	// 1000 unpaid compounded at Feb 15 only; Mar 15 is still ahead
	assert.True(t, clients[0].AmountDue.Equal(dec("2000")), clients[0].AmountDue.String())
	assert.Equal(t, models.ClientStatusOverdue, clients[0].Status)
}

func TestClientService_Calculate(t *testing.T) {
	client := &models.Client{
		ID: 9, LoanAmount: dec("10000"), AmountDue: dec("15000"),
		StartDate: time.Date(2024, 3, 9, 8, 0, 0, 0, time.UTC),
		DueDate:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		Status:    models.ClientStatusNewLead,
	}
	repo := &mockClientRepo{
		mockFindByID: func(ctx context.Context, id uint) (*models.Client, error) {
			if id != 9 {
				return nil, repository.ErrNotFound
			}
			return client, nil
		},
	}
	service := newClientService(repo, &mockNoteRepo{}, &mockAuditRepo{}, nil)

	summary, err := service.Calculate(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, 15000.0, summary.TotalAmountDue)
	assert.Equal(t, 15000.0, summary.RemainingBalance)
	assert.Equal(t, 5000.0, summary.InterestAmount)
	assert.Equal(t, models.ClientStatusNewLead, summary.Status)
	assert.Equal(t, 21, summary.DaysUntilDue)
	assert.False(t, summary.IsFullyPaid)

	_, err = service.Calculate(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClientService_Calculate_ReloadsAfterConcurrentPayment(t *testing.T) {
	start := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	due := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	paidAt := time.Date(2024, 3, 10, 11, 0, 0, 0, time.UTC)

	loads := 0
	var written []models.Client
	repo := &mockClientRepo{
		mockFindByID: func(ctx context.Context, id uint) (*models.Client, error) {
			loads++
			if loads == 1 {
				return &models.Client{
					ID: 4, Name: "Read before payment", LoanAmount: dec("1000"), AmountDue: dec("1500"),
					StartDate: start, DueDate: due, Status: models.ClientStatusActive,
				}, nil
			}
			// the payment settled the loan in between
			return &models.Client{
				ID: 4, Name: "Read before payment", LoanAmount: dec("1000"), AmountDue: dec("1500"),
				AmountPaid: dec("1500"), LastPaymentDate: &paidAt,
				StartDate: start, DueDate: due, Status: models.ClientStatusPaid,
			}, nil
		},
		mockUpdateStatus: func(ctx context.Context, c *models.Client) error {
			written = append(written, *c)
			if c.AmountPaid.IsZero() {
				return repository.ErrConflict
			}
			return nil
		},
	}
	service := newClientService(repo, &mockNoteRepo{}, &mockAuditRepo{}, nil)

	summary, err := service.Calculate(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, models.ClientStatusPaid, summary.Status)
	assert.True(t, summary.IsFullyPaid)
	assert.Equal(t, 1500.0, summary.AmountPaid)

	require.Len(t, written, 1, "the reloaded state needs no further write")
	assert.Equal(t, models.ClientStatusOverdue, written[0].Status)
	assert.Equal(t, 2, loads)
}

func TestClientService_Calculate_GivesUpAfterRepeatedConflicts(t *testing.T) {
	repo := &mockClientRepo{
		mockFindByID: func(ctx context.Context, id uint) (*models.Client, error) {
			return &models.Client{
				ID: 5, LoanAmount: dec("1000"), AmountDue: dec("1500"),
				StartDate: time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC),
				DueDate:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
				Status:    models.ClientStatusActive,
			}, nil
		},
		mockUpdateStatus: func(ctx context.Context, c *models.Client) error {
			return repository.ErrConflict
		},
	}
	service := newClientService(repo, &mockNoteRepo{}, &mockAuditRepo{}, nil)

	_, err := service.Calculate(context.Background(), 5)
	assert.ErrorIs(t, err, ErrConcurrentUpdate)
}

func TestClientService_Update_WritesProfileBeforeStatus(t *testing.T) {
	var calls []string
	repo := &mockClientRepo{
		mockFindByID: func(ctx context.Context, id uint) (*models.Client, error) {
			return &models.Client{
				ID: 6, Name: "Old Name", Email: "old@example.com", Phone: "0821234567",
				LoanType: models.LoanTypeUnsecured, LoanAmount: dec("1000"), AmountDue: dec("1500"), AmountPaid: dec("200"),
				StartDate: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
				DueDate:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
				Status:    models.ClientStatusActive,
			}, nil
		},
		mockUpdate: func(ctx context.Context, c *models.Client) error {
			calls = append(calls, "profile")
			return nil
		},
		mockUpdateStatus: func(ctx context.Context, c *models.Client) error {
			calls = append(calls, "status:"+c.Status)
			return nil
		},
	}
	service := newClientService(repo, &mockNoteRepo{}, &mockAuditRepo{}, nil)

	// pulling the due date into the next few days opens the repayment window
	name, dueDate := "New Name", "2024-03-12"
	updated, err := service.Update(context.Background(), 6, ClientPatch{Name: &name, DueDate: &dueDate}, Actor{Email: "admin@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "New Name", updated.Name)
	assert.Equal(t, []string{"profile", "status:" + models.ClientStatusRepaymentDue}, calls)
}

func TestLoanSummary_ProgressKeysDoNotCollide(t *testing.T) {
	paidAt := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	client := &models.Client{
		ID: 8, LoanAmount: dec("1000"), AmountDue: dec("1500"), AmountPaid: dec("750"), LastPaymentDate: &paidAt,
		StartDate: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		DueDate:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		Status:    models.ClientStatusActive,
	}
	b := loan.Evaluate(loan.TermsOf(client), march10)

	raw, err := json.Marshal(summarize(client, b, march10))
	require.NoError(t, err)

	var body struct {
		PaymentProgress float64                    `json:"payment_progress"`
		Health          map[string]json.RawMessage `json:"health"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	// 750 of 1500 due, 750 of 1000 principal
	assert.InDelta(t, 50.0, body.PaymentProgress, 0.001)
	assert.NotContains(t, body.Health, "payment_progress")
	require.Contains(t, body.Health, "principal_repaid_pct")
	assert.JSONEq(t, "75", string(body.Health["principal_repaid_pct"]))
}
