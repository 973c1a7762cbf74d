package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sjperalta/cashflow-api/internal/config"
	"github.com/sjperalta/cashflow-api/internal/loan"
	"github.com/sjperalta/cashflow-api/internal/models"
	"github.com/sjperalta/cashflow-api/internal/repository"
	"github.com/sjperalta/cashflow-api/pkg/logger"
)

type NotificationService struct {
	repo       repository.NotificationRepository
	userRepo   repository.UserRepository
	clientRepo repository.ClientRepository
	email      *EmailService
	audit      *AuditService
	cfg        *config.Config
	location   *time.Location
	now        func() time.Time
}

func NewNotificationService(
	repo repository.NotificationRepository,
	userRepo repository.UserRepository,
	clientRepo repository.ClientRepository,
	email *EmailService,
	audit *AuditService,
	cfg *config.Config,
) *NotificationService {
	return &NotificationService{
		repo:       repo,
		userRepo:   userRepo,
		clientRepo: clientRepo,
		email:      email,
		audit:      audit,
		cfg:        cfg,
		location:   LoadLocation(cfg.NotifyTimezone),
		now:        time.Now,
	}
}

// LoadLocation resolves a time zone name, falling back to UTC
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.Warn("Unknown time zone, using UTC", "timezone", name, "error", err)
		return time.UTC
	}
	return loc
}

func (s *NotificationService) List(ctx context.Context, userID uint, query *repository.ListQuery) ([]models.Notification, int64, error) {
	return s.repo.FindByUser(ctx, userID, query)
}

func (s *NotificationService) CountUnread(ctx context.Context, userID uint) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

// MarkAsRead marks one of the user's notifications as read
func (s *NotificationService) MarkAsRead(ctx context.Context, userID, id uint) error {
	notification, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fromRepo(err)
	}
	if notification.UserID != userID {
		return ErrNotFound
	}
	if notification.IsRead() {
		return nil
	}
	notification.MarkAsRead()
	return s.repo.Update(ctx, notification)
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uint) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}

// NotifyStaff creates an in-app notification for every active admin and manager
func (s *NotificationService) NotifyStaff(ctx context.Context, title, message, notifType string, clientID *uint) error {
	staff, err := s.userRepo.FindStaff(ctx)
	if err != nil {
		return err
	}
	for _, user := range staff {
		notification := &models.Notification{
			UserID:           user.ID,
			Title:            title,
			Message:          message,
			NotificationType: notifType,
			ClientID:         clientID,
		}
		if err := s.repo.Create(ctx, notification); err != nil {
			logger.Error("Failed to create notification", "user_id", user.ID, "type", notifType, "error", err)
		}
	}
	return nil
}

// DigestEntry is one client row of the payment-due digest
type DigestEntry struct {
	ClientID    uint
	Name        string
	Email       string
	Phone       string
	Status      string
	LoanType    string
	LoanAmount  string
	AmountDue   string
	AmountPaid  string
	Outstanding string
	DueDate     string
	DaysOverdue int

	amountDue decimal.Decimal
}

// PaymentDueDigest is the content of the month-end collection email
type PaymentDueDigest struct {
	CompanyName       string
	Currency          string
	GeneratedAt       string
	MonthEnd          string
	Entries           []DigestEntry
	TotalDue          string
	TotalOutstanding  string
	OverdueCount      int
	RepaymentDueCount int
	ActiveCount       int
	NewLeadCount      int
	Actions           []string
}

// DigestResult reports what a digest run did
type DigestResult struct {
	Sent             bool     `json:"sent"`
	Skipped          string   `json:"skipped,omitempty"`
	Recipients       []string `json:"recipients"`
	ClientCount      int      `json:"client_count"`
	TotalOutstanding string   `json:"total_outstanding"`
}

// IsDigestDay reports whether tomorrow is the last day of the month in the
// notification time zone
func (s *NotificationService) IsDigestDay(now time.Time) bool {
	tomorrow := now.In(s.location).AddDate(0, 0, 1)
	return tomorrow.AddDate(0, 0, 1).Day() == 1
}

// BuildPaymentDueDigest collects every non-archived client that still owes
// money, largest amount due first
func (s *NotificationService) BuildPaymentDueDigest(ctx context.Context) (*PaymentDueDigest, error) {
	clients, err := s.clientRepo.FindAll(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to load clients: %w", err)
	}

	now := s.now()
	local := now.In(s.location)
	currency := s.cfg.CurrencySymbol
	digest := &PaymentDueDigest{
		CompanyName: companyName,
		Currency:    currency,
		GeneratedAt: local.Format("02 Jan 2006 15:04"),
		MonthEnd:    loan.DefaultDueDate(local).Format("02 Jan 2006"),
	}

	totalDue := decimal.Zero
	totalOutstanding := decimal.Zero
	for i := range clients {
		c := &clients[i]
		b := loan.Evaluate(loan.TermsOf(c), now)
		if !b.Remaining.IsPositive() {
			continue
		}
		status := loan.DeriveStatus(c.Status, b, c.DueDate, now)

		switch status {
		case models.ClientStatusOverdue:
			digest.OverdueCount++
		case models.ClientStatusRepaymentDue:
			digest.RepaymentDueCount++
		case models.ClientStatusActive:
			digest.ActiveCount++
		case models.ClientStatusNewLead:
			digest.NewLeadCount++
		}

		totalDue = totalDue.Add(b.AmountDue)
		totalOutstanding = totalOutstanding.Add(b.Remaining)
		digest.Entries = append(digest.Entries, DigestEntry{
			ClientID:    c.ID,
			Name:        c.Name,
			Email:       c.Email,
			Phone:       c.Phone,
			Status:      status,
			LoanType:    c.LoanType,
			LoanAmount:  formatCurrency(currency, c.LoanAmount),
			AmountDue:   formatCurrency(currency, b.AmountDue),
			AmountPaid:  formatCurrency(currency, b.AmountPaid),
			Outstanding: formatCurrency(currency, b.Remaining),
			DueDate:     c.DueDate.Format("02 Jan 2006"),
			DaysOverdue: loan.DaysOverdue(c.DueDate, now),
			amountDue:   b.AmountDue,
		})
	}

	sort.SliceStable(digest.Entries, func(i, j int) bool {
		return digest.Entries[i].amountDue.GreaterThan(digest.Entries[j].amountDue)
	})

	digest.TotalDue = formatCurrency(currency, totalDue)
	digest.TotalOutstanding = formatCurrency(currency, totalOutstanding)
	digest.Actions = digestActions(digest)
	return digest, nil
}

func digestActions(d *PaymentDueDigest) []string {
	var actions []string
	if d.OverdueCount > 0 {
		actions = append(actions, fmt.Sprintf("Call the %d overdue clients first. Their balances keep compounding every month.", d.OverdueCount))
	}
	if d.RepaymentDueCount > 0 {
		actions = append(actions, fmt.Sprintf("Remind the %d clients whose repayment falls due within %d days.", d.RepaymentDueCount, loan.RepaymentWindowDays))
	}
	if d.NewLeadCount > 0 {
		actions = append(actions, fmt.Sprintf("Follow up the %d new leads that have not made a first payment.", d.NewLeadCount))
	}
	actions = append(actions, "Capture every payment received today before month end so it is applied before interest compounds.")
	return actions
}

// SendPaymentDueDigest emails the digest when tomorrow is month end, or
// always when force is set
func (s *NotificationService) SendPaymentDueDigest(ctx context.Context, force bool) (*DigestResult, error) {
	result := &DigestResult{Recipients: s.cfg.NotifyRecipients}

	if !force && !s.IsDigestDay(s.now()) {
		result.Skipped = "tomorrow is not the last day of the month"
		logger.Debug("[Digest] Skipped", "reason", result.Skipped)
		return result, nil
	}
	if !s.cfg.EnableEmailNotifications {
		result.Skipped = "email notifications are disabled"
		logger.Info("[Digest] Skipped", "reason", result.Skipped)
		return result, nil
	}

	digest, err := s.BuildPaymentDueDigest(ctx)
	if err != nil {
		return nil, err
	}
	result.ClientCount = len(digest.Entries)
	result.TotalOutstanding = digest.TotalOutstanding

	if err := s.email.SendPaymentDueDigest(ctx, s.cfg.NotifyRecipients, digest); err != nil {
		return nil, fmt.Errorf("failed to send payment due digest: %w", err)
	}
	result.Sent = true

	logger.Info("[Digest] Payment due digest sent", "clients", result.ClientCount, "outstanding", result.TotalOutstanding)
	s.audit.Record(ctx, SystemActor, models.AuditActionNotify, models.AuditEntityDigest, 0,
		fmt.Sprintf("Payment due digest sent to %d recipients (%d clients, %s outstanding)",
			len(result.Recipients), result.ClientCount, result.TotalOutstanding))

	if err := s.NotifyStaff(ctx, "Payment due digest sent",
		fmt.Sprintf("%d clients owe %s going into month end.", result.ClientCount, result.TotalOutstanding),
		models.NotificationTypeDigestSent, nil); err != nil {
		logger.Error("[Digest] Failed to notify staff", "error", err)
	}
	return result, nil
}
