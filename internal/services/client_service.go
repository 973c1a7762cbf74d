package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sjperalta/cashflow-api/internal/jobs"
	"github.com/sjperalta/cashflow-api/internal/loan"
	"github.com/sjperalta/cashflow-api/internal/models"
	"github.com/sjperalta/cashflow-api/internal/repository"
	"github.com/sjperalta/cashflow-api/internal/statemachine"
	"github.com/sjperalta/cashflow-api/internal/storage"
	"github.com/sjperalta/cashflow-api/pkg/logger"
)

// ClientInput is the body of create and update requests
type ClientInput struct {
	Name                  string   `json:"name" validate:"required"`
	Email                 string   `json:"email" validate:"required,email"`
	Phone                 string   `json:"phone" validate:"required"`
	IDNumber              string   `json:"id_number"`
	Address               *string  `json:"address"`
	Employer              *string  `json:"employer"`
	MonthlyIncome         *float64 `json:"monthly_income" validate:"omitnil,gte=0"`
	LoanType              string   `json:"loan_type" validate:"required,oneof='Secured Loan' 'Unsecured Loan'"`
	LoanAmount            float64  `json:"loan_amount" validate:"gt=0"`
	StartDate             string   `json:"start_date"`
	DueDate               string   `json:"due_date"`
	CollateralDescription *string  `json:"collateral_description"`
}

// ClientPatch is a partial update; nil fields are left alone
type ClientPatch struct {
	Name                  *string  `json:"name"`
	Email                 *string  `json:"email"`
	Phone                 *string  `json:"phone"`
	IDNumber              *string  `json:"id_number"`
	Address               *string  `json:"address"`
	Employer              *string  `json:"employer"`
	MonthlyIncome         *float64 `json:"monthly_income"`
	LoanType              *string  `json:"loan_type"`
	DueDate               *string  `json:"due_date"`
	CollateralDescription *string  `json:"collateral_description"`
}

// LoanSummary is the engine's view of one loan
type LoanSummary struct {
	ClientID         uint              `json:"client_id"`
	Status           string            `json:"status"`
	LoanAmount       float64           `json:"loan_amount"`
	TotalAmountDue   float64           `json:"total_amount_due"`
	AmountPaid       float64           `json:"amount_paid"`
	RemainingBalance float64           `json:"remaining_balance"`
	PaymentProgress  float64           `json:"payment_progress"`
	InterestAmount   float64           `json:"interest_amount"`
	MonthsCompounded int               `json:"months_compounded"`
	IsFullyPaid      bool              `json:"is_fully_paid"`
	StartDate        time.Time         `json:"start_date"`
	DueDate          time.Time         `json:"due_date"`
	DaysUntilDue     int               `json:"days_until_due"`
	DaysOverdue      int               `json:"days_overdue"`
	Health           loan.HealthReport `json:"health"`
	CalculatedAt     time.Time         `json:"calculated_at"`
}

type ClientService struct {
	clientRepo   repository.ClientRepository
	noteRepo     repository.NoteRepository
	audit        *AuditService
	notification *NotificationService
	analytics    *AnalyticsService
	storage      *storage.LocalStorage
	worker       *jobs.Worker
	now          func() time.Time
}

func NewClientService(
	clientRepo repository.ClientRepository,
	noteRepo repository.NoteRepository,
	audit *AuditService,
	notification *NotificationService,
	analytics *AnalyticsService,
	storage *storage.LocalStorage,
	worker *jobs.Worker,
) *ClientService {
	return &ClientService{
		clientRepo:   clientRepo,
		noteRepo:     noteRepo,
		audit:        audit,
		notification: notification,
		analytics:    analytics,
		storage:      storage,
		worker:       worker,
		now:          time.Now,
	}
}

// List returns a page of clients with balances evaluated at the current time
func (s *ClientService) List(ctx context.Context, query *repository.ListQuery) ([]models.Client, int64, error) {
	clients, total, err := s.clientRepo.List(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	now := s.now()
	for i := range clients {
		b := loan.Evaluate(loan.TermsOf(&clients[i]), now)
		clients[i].AmountDue = b.AmountDue
		clients[i].Status = loan.DeriveStatus(clients[i].Status, b, clients[i].DueDate, now)
	}
	return clients, total, nil
}

// Get loads a client with its history, re-deriving the balance and status and
// persisting them when they drifted
func (s *ClientService) Get(ctx context.Context, id uint) (*models.Client, error) {
	client, err := s.clientRepo.FindByIDWithDetails(ctx, id)
	if err != nil {
		return nil, fromRepo(err)
	}
	if _, _, err := s.refresh(ctx, client, s.now()); err != nil {
		return nil, err
	}
	return client, nil
}

// Create registers a new loan as a new lead
func (s *ClientService) Create(ctx context.Context, input ClientInput, actor Actor) (*models.Client, error) {
	client, err := s.buildClient(input)
	if err != nil {
		return nil, err
	}

	if err := s.clientRepo.Create(ctx, client); err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	s.afterWrite(actor, models.AuditActionCreate, client.ID,
		fmt.Sprintf("Client created: %s (%s, principal %s)", client.Name, client.LoanType, client.LoanAmount.StringFixed(2)))
	return client, nil
}

// buildClient validates input and applies the loan defaults
func (s *ClientService) buildClient(input ClientInput) (*models.Client, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Phone = strings.TrimSpace(input.Phone)
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	now := s.now()
	start, err := parseDate("start_date", input.StartDate, now.Location())
	if err != nil {
		return nil, err
	}
	if start.IsZero() {
		start = now
	}
	due, err := parseDate("due_date", input.DueDate, now.Location())
	if err != nil {
		return nil, err
	}
	if due.IsZero() {
		due = loan.DefaultDueDate(start)
	}
	if due.Before(truncateDay(start)) {
		return nil, NewValidationError("Due date cannot be before the start date")
	}

	principal := decimal.NewFromFloat(input.LoanAmount).Round(2)
	client := &models.Client{
		Name:                  input.Name,
		Email:                 input.Email,
		Phone:                 input.Phone,
		IDNumber:              strings.TrimSpace(input.IDNumber),
		Address:               input.Address,
		Employer:              input.Employer,
		LoanType:              input.LoanType,
		LoanAmount:            principal,
		AmountDue:             loan.InitialAmountDue(principal),
		AmountPaid:            decimal.Zero,
		StartDate:             start,
		DueDate:               due,
		Status:                models.ClientStatusNewLead,
		ApplicationDate:       now,
		LastStatusUpdate:      now,
		CollateralDescription: input.CollateralDescription,
	}
	if input.MonthlyIncome != nil {
		income := decimal.NewFromFloat(*input.MonthlyIncome).Round(2)
		client.MonthlyIncome = &income
	}
	return client, nil
}

// Update applies a partial update. Principal and start date are fixed once the
// loan exists.
func (s *ClientService) Update(ctx context.Context, id uint, patch ClientPatch, actor Actor) (*models.Client, error) {
	client, err := s.clientRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fromRepo(err)
	}

	check := ClientInput{
		Name:          client.Name,
		Email:         client.Email,
		Phone:         client.Phone,
		LoanType:      client.LoanType,
		LoanAmount:    client.LoanAmount.InexactFloat64(),
		MonthlyIncome: patch.MonthlyIncome,
	}
	var changed []string
	if patch.Name != nil {
		check.Name = strings.TrimSpace(*patch.Name)
		changed = append(changed, "name")
	}
	if patch.Email != nil {
		check.Email = strings.ToLower(strings.TrimSpace(*patch.Email))
		changed = append(changed, "email")
	}
	if patch.Phone != nil {
		check.Phone = strings.TrimSpace(*patch.Phone)
		changed = append(changed, "phone")
	}
	if patch.LoanType != nil {
		check.LoanType = *patch.LoanType
		changed = append(changed, "loan_type")
	}
	if err := validateStruct(check); err != nil {
		return nil, err
	}

	client.Name, client.Email, client.Phone, client.LoanType = check.Name, check.Email, check.Phone, check.LoanType
	if patch.IDNumber != nil {
		client.IDNumber = strings.TrimSpace(*patch.IDNumber)
		changed = append(changed, "id_number")
	}
	if patch.Address != nil {
		client.Address = patch.Address
		changed = append(changed, "address")
	}
	if patch.Employer != nil {
		client.Employer = patch.Employer
		changed = append(changed, "employer")
	}
	if patch.MonthlyIncome != nil {
		income := decimal.NewFromFloat(*patch.MonthlyIncome).Round(2)
		client.MonthlyIncome = &income
		changed = append(changed, "monthly_income")
	}
	if patch.CollateralDescription != nil {
		client.CollateralDescription = patch.CollateralDescription
		changed = append(changed, "collateral_description")
	}
	if patch.DueDate != nil {
		due, err := parseDate("due_date", *patch.DueDate, client.StartDate.Location())
		if err != nil {
			return nil, err
		}
		if due.IsZero() || due.Before(truncateDay(client.StartDate)) {
			return nil, NewValidationError("Due date cannot be before the start date")
		}
		client.DueDate = due
		changed = append(changed, "due_date")
	}

	if err := s.clientRepo.Update(ctx, client); err != nil {
		return nil, fmt.Errorf("failed to update client: %w", fromRepo(err))
	}

	// A new due date can move the loan in or out of the repayment window
	if _, _, err := s.refresh(ctx, client, s.now()); err != nil {
		return nil, err
	}

	s.afterWrite(actor, models.AuditActionUpdate, client.ID,
		fmt.Sprintf("Client updated: %s (%s)", client.Name, strings.Join(changed, ", ")))
	return client, nil
}

// Archive hides a client from default lists and digests
func (s *ClientService) Archive(ctx context.Context, id uint, actor Actor) (*models.Client, error) {
	return s.setArchived(ctx, id, true, actor)
}

// Unarchive restores an archived client
func (s *ClientService) Unarchive(ctx context.Context, id uint, actor Actor) (*models.Client, error) {
	return s.setArchived(ctx, id, false, actor)
}

func (s *ClientService) setArchived(ctx context.Context, id uint, archived bool, actor Actor) (*models.Client, error) {
	client, err := s.clientRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fromRepo(err)
	}
	if client.Archived == archived {
		return client, nil
	}

	client.Archived = archived
	if err := s.clientRepo.Update(ctx, client); err != nil {
		return nil, fmt.Errorf("failed to update client: %w", fromRepo(err))
	}

	action := models.AuditActionArchive
	if !archived {
		action = models.AuditActionUnarchive
	}
	s.afterWrite(actor, action, client.ID, fmt.Sprintf("Client %s: %s", strings.ToLower(action), client.Name))
	return client, nil
}

// Delete removes a client, its history and its stored documents
func (s *ClientService) Delete(ctx context.Context, id uint, actor Actor) error {
	client, err := s.clientRepo.FindByID(ctx, id)
	if err != nil {
		return fromRepo(err)
	}
	if err := s.clientRepo.Delete(ctx, id); err != nil {
		return fromRepo(err)
	}

	if s.storage != nil {
		if err := s.storage.DeleteDir(storage.ClientDir(id)); err != nil {
			logger.Warn("Failed to remove client documents", "client_id", id, "error", err)
		}
	}

	s.afterWrite(actor, models.AuditActionDelete, id, fmt.Sprintf("Client deleted: %s (%s)", client.Name, client.Email))
	return nil
}

// UpdateStatus overrides the derived status. The change is audited and kept
// as a status_change note on the client.
func (s *ClientService) UpdateStatus(ctx context.Context, id uint, status, reason string, actor Actor) (*models.Client, error) {
	if !models.IsValidClientStatus(status) {
		return nil, NewValidationError("Invalid status")
	}

	client, err := s.clientRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fromRepo(err)
	}

	previous := client.Status
	b := loan.Evaluate(loan.TermsOf(client), s.now())
	client.AmountDue = b.AmountDue

	changed, err := statemachine.NewClientFSM(client, s.now).Override(status)
	if err != nil {
		return nil, err
	}
	if !changed {
		return client, nil
	}

	if err := s.clientRepo.UpdateStatus(ctx, client); err != nil {
		return nil, fromRepo(err)
	}

	content := fmt.Sprintf("Status changed from %s to %s by %s", previous, status, actor.Name())
	if reason = strings.TrimSpace(reason); reason != "" {
		content += ": " + reason
	}
	note := &models.Note{ClientID: client.ID, Content: content, NoteType: models.NoteTypeStatusChange, CreatedBy: actor.Name()}
	if err := s.noteRepo.Create(ctx, note); err != nil {
		logger.Error("Failed to record status change note", "client_id", client.ID, "error", err)
	}

	s.afterWrite(actor, models.AuditActionStatusChange, client.ID, content)
	return client, nil
}

// Calculate returns the engine's summary for one loan, persisting any drift
func (s *ClientService) Calculate(ctx context.Context, id uint) (*LoanSummary, error) {
	client, err := s.clientRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fromRepo(err)
	}
	now := s.now()
	b, _, err := s.refresh(ctx, client, now)
	if err != nil {
		return nil, err
	}
	return summarize(client, b, now), nil
}

func summarize(client *models.Client, b loan.Balance, now time.Time) *LoanSummary {
	return &LoanSummary{
		ClientID:         client.ID,
		Status:           client.Status,
		LoanAmount:       b.Principal.InexactFloat64(),
		TotalAmountDue:   b.AmountDue.InexactFloat64(),
		AmountPaid:       b.AmountPaid.InexactFloat64(),
		RemainingBalance: b.Remaining.InexactFloat64(),
		PaymentProgress:  b.PaymentProgress(),
		InterestAmount:   b.Interest.InexactFloat64(),
		MonthsCompounded: b.MonthsCompounded,
		IsFullyPaid:      b.FullyPaid,
		StartDate:        client.StartDate,
		DueDate:          client.DueDate,
		DaysUntilDue:     loan.DaysUntil(client.DueDate, now),
		DaysOverdue:      loan.DaysOverdue(client.DueDate, now),
		Health:           loan.Health(b, client.Status, client.LastPaymentDate, now),
		CalculatedAt:     now,
	}
}

// RefreshStatuses re-evaluates every open loan and persists the changes.
// It returns how many clients changed.
func (s *ClientService) RefreshStatuses(ctx context.Context) (int, error) {
	clients, err := s.clientRepo.FindOpen(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load open clients: %w", err)
	}

	now := s.now()
	updated := 0
	for i := range clients {
		if ctx.Err() != nil {
			return updated, ctx.Err()
		}
		c := &clients[i]
		previous := c.Status
		_, d, err := s.refresh(ctx, c, now)
		if err != nil {
			logger.Error("[StatusSweep] Failed to refresh client", "client_id", c.ID, "error", err)
			continue
		}
		if d.dueChanged || d.statusChanged {
			updated++
		}
		if !d.statusChanged {
			continue
		}
		logger.Info("[StatusSweep] Status changed", "client_id", c.ID, "from", previous, "to", c.Status)

		if c.Status == models.ClientStatusOverdue && s.notification != nil {
			clientID := c.ID
			if err := s.notification.NotifyStaff(ctx, "Client overdue",
				fmt.Sprintf("%s is overdue with %s outstanding.", c.Name, c.Outstanding().StringFixed(2)),
				models.NotificationTypeClientOverdue, &clientID); err != nil {
				logger.Error("[StatusSweep] Failed to notify staff", "client_id", c.ID, "error", err)
			}
		}
	}

	if updated > 0 {
		s.invalidateAnalytics()
	}
	return updated, nil
}

type drift struct {
	statusChanged bool
	dueChanged    bool
}

// evaluate recomputes amount due and status in memory and reports what changed
func (s *ClientService) evaluate(ctx context.Context, client *models.Client, now time.Time) (loan.Balance, drift, error) {
	b := loan.Evaluate(loan.TermsOf(client), now)

	var d drift
	if !b.AmountDue.Equal(client.AmountDue) {
		client.AmountDue = b.AmountDue
		d.dueChanged = true
	}

	target := loan.DeriveStatus(client.Status, b, client.DueDate, now)
	if target != client.Status {
		if _, err := statemachine.NewClientFSM(client, s.now).Advance(ctx, target); err != nil {
			return b, d, err
		}
		d.statusChanged = true
	}
	return b, d, nil
}

// refresh evaluates the client at now and persists any drift. A payment
// written after client was loaded makes the write conflict; the totals are
// then reloaded and the loan evaluated again.
func (s *ClientService) refresh(ctx context.Context, client *models.Client, now time.Time) (loan.Balance, drift, error) {
	for attempt := 1; ; attempt++ {
		b, d, err := s.evaluate(ctx, client, now)
		if err != nil {
			return b, d, err
		}
		if !d.statusChanged && !d.dueChanged {
			return b, d, nil
		}

		err = s.clientRepo.UpdateStatus(ctx, client)
		if err == nil {
			return b, d, nil
		}
		if !errors.Is(err, repository.ErrConflict) || attempt == maxPaymentAttempts {
			return b, d, fmt.Errorf("failed to persist client %d status: %w", client.ID, fromRepo(err))
		}
		logger.Warn("Client totals changed while refreshing status, reloading", "client_id", client.ID, "attempt", attempt)
		if err := s.reloadTotals(ctx, client); err != nil {
			return b, d, err
		}
	}
}

// reloadTotals copies the stored balance and status onto client, leaving the
// profile and any preloaded history alone
func (s *ClientService) reloadTotals(ctx context.Context, client *models.Client) error {
	fresh, err := s.clientRepo.FindByID(ctx, client.ID)
	if err != nil {
		return fromRepo(err)
	}
	client.AmountPaid = fresh.AmountPaid
	client.AmountDue = fresh.AmountDue
	client.LastPaymentDate = fresh.LastPaymentDate
	client.Status = fresh.Status
	client.LastStatusUpdate = fresh.LastStatusUpdate
	return nil
}

// afterWrite audits and drops cached analytics in the background
func (s *ClientService) afterWrite(actor Actor, action string, clientID uint, details string) {
	runAsync(s.worker, "audit-client", func(ctx context.Context) error {
		s.audit.Record(ctx, actor, action, models.AuditEntityClient, clientID, details)
		return nil
	})
	s.invalidateAnalytics()
}

func (s *ClientService) invalidateAnalytics() {
	if s.analytics == nil {
		return
	}
	runAsync(s.worker, "invalidate-analytics", func(ctx context.Context) error {
		return s.analytics.Invalidate(ctx)
	})
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
