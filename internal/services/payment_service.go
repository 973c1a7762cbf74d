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
	"github.com/sjperalta/cashflow-api/pkg/logger"
)

// maxPaymentAttempts bounds the retries when another payment on the same loan
// is written between our read and our conditional write
const maxPaymentAttempts = 3

// PaymentInput is the body of a record-payment request
type PaymentInput struct {
	Amount    float64 `json:"amount" validate:"gt=0"`
	Method    string  `json:"method" validate:"omitempty,oneof=cash eft card debit-order bank-deposit"`
	Reference *string `json:"reference"`
	Notes     *string `json:"notes"`
}

// PaymentResult is the stored payment plus the loan after it was applied
type PaymentResult struct {
	Payment  models.PaymentResponse `json:"payment"`
	Client   models.ClientResponse  `json:"client"`
	Summary  *LoanSummary           `json:"summary"`
	Capped   bool                   `json:"capped"`
	Message  string                 `json:"message"`
	Previous string                 `json:"previous_status"`
}

type PaymentService struct {
	paymentRepo  repository.PaymentRepository
	clientRepo   repository.ClientRepository
	notification *NotificationService
	email        *EmailService
	audit        *AuditService
	analytics    *AnalyticsService
	worker       *jobs.Worker
	currency     string
	now          func() time.Time
}

func NewPaymentService(
	paymentRepo repository.PaymentRepository,
	clientRepo repository.ClientRepository,
	notification *NotificationService,
	email *EmailService,
	audit *AuditService,
	analytics *AnalyticsService,
	worker *jobs.Worker,
	currency string,
) *PaymentService {
	return &PaymentService{
		paymentRepo:  paymentRepo,
		clientRepo:   clientRepo,
		notification: notification,
		email:        email,
		audit:        audit,
		analytics:    analytics,
		worker:       worker,
		currency:     currency,
		now:          time.Now,
	}
}

// RecordPayment applies a payment to a loan. Amounts above the remaining
// balance are capped; a settled loan rejects further payments.
func (s *PaymentService) RecordPayment(ctx context.Context, clientID uint, input PaymentInput, actor Actor) (*PaymentResult, error) {
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	requested := decimal.NewFromFloat(input.Amount).Round(2)
	if !requested.IsPositive() {
		return nil, NewValidationError("Payment amount must be greater than 0")
	}

	for attempt := 1; attempt <= maxPaymentAttempts; attempt++ {
		result, err := s.tryRecordPayment(ctx, clientID, requested, input, actor)
		if errors.Is(err, repository.ErrConflict) {
			logger.Warn("Payment lost a concurrent write, retrying", "client_id", clientID, "attempt", attempt)
			continue
		}
		return result, err
	}
	return nil, ErrConcurrentUpdate
}

func (s *PaymentService) tryRecordPayment(ctx context.Context, clientID uint, requested decimal.Decimal, input PaymentInput, actor Actor) (*PaymentResult, error) {
	client, err := s.clientRepo.FindByID(ctx, clientID)
	if err != nil {
		return nil, fromRepo(err)
	}

	now := s.now()
	previousPaid := client.AmountPaid
	previousStatus := client.Status

	applied, next, err := loan.ApplyPayment(loan.TermsOf(client), requested, now)
	switch {
	case errors.Is(err, loan.ErrSettled):
		return nil, ErrLoanSettled
	case errors.Is(err, loan.ErrNonPositiveAmount):
		return nil, NewValidationError("Payment amount must be greater than 0")
	case err != nil:
		return nil, err
	}

	b := loan.Evaluate(next, now)
	client.AmountPaid = next.AmountPaid
	client.LastPaymentDate = next.LastPaymentDate
	client.AmountDue = b.AmountDue

	// new-lead -> active on the first payment, then whatever the balance says
	machine := statemachine.NewClientFSM(client, s.now)
	if client.Status == models.ClientStatusNewLead {
		if err := machine.Activate(ctx); err != nil {
			return nil, err
		}
	}
	target := loan.StatusAfterPayment(client.Status, b, client.DueDate, now)
	if _, err := machine.Advance(ctx, target); err != nil {
		return nil, err
	}

	method := strings.ToLower(strings.TrimSpace(input.Method))
	if method == "" {
		method = models.PaymentMethodCash
	}
	payment := &models.Payment{
		ClientID:        client.ID,
		Amount:          applied,
		RequestedAmount: requested,
		PaymentDate:     now,
		Method:          method,
		Reference:       input.Reference,
		Notes:           input.Notes,
		ProcessedBy:     actor.Name(),
		CreatedAt:       now,
	}

	if err := s.clientRepo.RecordPayment(ctx, client, payment, previousPaid); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to record payment: %w", fromRepo(err))
	}

	logger.Info("Payment recorded",
		"client_id", client.ID, "payment_id", payment.ID,
		"applied", applied.StringFixed(2), "requested", requested.StringFixed(2),
		"status", client.Status)

	s.afterPayment(client, payment, b, previousStatus, actor)

	result := &PaymentResult{
		Payment:  payment.ToResponse(),
		Client:   client.ToResponse(),
		Summary:  summarize(client, b, now),
		Capped:   payment.WasCapped(),
		Message:  "Payment recorded",
		Previous: previousStatus,
	}
	if result.Capped {
		result.Message = fmt.Sprintf("Payment capped at the remaining balance of %s", formatCurrency(s.currency, applied))
	}
	if client.Status == models.ClientStatusPaid {
		result.Message += ". Loan fully paid"
	}
	return result, nil
}

// afterPayment runs the side effects of a stored payment in the background
func (s *PaymentService) afterPayment(client *models.Client, payment *models.Payment, b loan.Balance, previousStatus string, actor Actor) {
	clientCopy := *client
	paymentCopy := *payment

	runAsync(s.worker, "audit-payment", func(ctx context.Context) error {
		details := fmt.Sprintf("Payment of %s recorded for %s (requested %s, remaining %s)",
			paymentCopy.Amount.StringFixed(2), clientCopy.Name, paymentCopy.RequestedAmount.StringFixed(2), b.Remaining.StringFixed(2))
		s.audit.Record(ctx, actor, models.AuditActionPayment, models.AuditEntityPayment, paymentCopy.ID, details)
		if previousStatus != clientCopy.Status {
			s.audit.Record(ctx, actor, models.AuditActionStatusChange, models.AuditEntityClient, clientCopy.ID,
				fmt.Sprintf("Status changed from %s to %s by payment", previousStatus, clientCopy.Status))
		}
		return nil
	})

	if s.analytics != nil {
		runAsync(s.worker, "invalidate-analytics", func(ctx context.Context) error {
			return s.analytics.Invalidate(ctx)
		})
	}

	if s.notification != nil {
		runAsync(s.worker, "notify-payment", func(ctx context.Context) error {
			clientID := clientCopy.ID
			if clientCopy.Status == models.ClientStatusPaid {
				return s.notification.NotifyStaff(ctx, "Loan paid",
					fmt.Sprintf("%s has fully repaid their loan.", clientCopy.Name),
					models.NotificationTypeLoanPaid, &clientID)
			}
			return s.notification.NotifyStaff(ctx, "Payment received",
				fmt.Sprintf("%s paid %s. Remaining %s.", clientCopy.Name,
					formatCurrency(s.currency, paymentCopy.Amount), formatCurrency(s.currency, b.Remaining)),
				models.NotificationTypePaymentReceived, &clientID)
		})
	}

	if s.email != nil {
		runAsync(s.worker, "payment-receipt", func(ctx context.Context) error {
			return s.email.SendPaymentReceipt(ctx, &clientCopy, &paymentCopy, b.Remaining)
		})
	}
}

// ListByClient returns a client's payments, newest first
func (s *PaymentService) ListByClient(ctx context.Context, clientID uint) ([]models.Payment, error) {
	if _, err := s.clientRepo.FindByID(ctx, clientID); err != nil {
		return nil, fromRepo(err)
	}
	return s.paymentRepo.ListByClient(ctx, clientID)
}

// Recent returns the latest payments across all clients
func (s *PaymentService) Recent(ctx context.Context, limit int) ([]models.Payment, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	return s.paymentRepo.Recent(ctx, limit)
}
