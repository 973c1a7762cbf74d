package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sjperalta/cashflow-api/internal/loan"
	"github.com/sjperalta/cashflow-api/internal/models"
	"github.com/sjperalta/cashflow-api/internal/repository"
	"github.com/sjperalta/cashflow-api/pkg/logger"
)

// AnalyticsCacheTTL is how long computed dashboard figures are served from cache
const AnalyticsCacheTTL = 15 * time.Minute

const defaultCollectionMonths = 12

// Cache keys
const (
	cacheKeySummary     = "analytics_summary"
	cacheKeyStatus      = "analytics_status"
	cacheKeyLoanTypes   = "analytics_loan_types"
	cacheKeyCollections = "analytics_collections"
	cacheKeyHealth      = "analytics_health"
)

type AnalyticsService struct {
	analyticsRepo repository.AnalyticsRepository
	clientRepo    repository.ClientRepository
	paymentRepo   repository.PaymentRepository
	currency      string
	now           func() time.Time
}

func NewAnalyticsService(
	analyticsRepo repository.AnalyticsRepository,
	clientRepo repository.ClientRepository,
	paymentRepo repository.PaymentRepository,
	currency string,
) *AnalyticsService {
	return &AnalyticsService{
		analyticsRepo: analyticsRepo,
		clientRepo:    clientRepo,
		paymentRepo:   paymentRepo,
		currency:      currency,
		now:           time.Now,
	}
}

// cached serves key from the analytics cache or computes and stores it
func cached[T any](ctx context.Context, s *AnalyticsService, key string, compute func(context.Context) (T, error)) (T, error) {
	now := s.now()
	if entry, err := s.analyticsRepo.GetCache(ctx, key, now); err == nil {
		var value T
		if err := json.Unmarshal(entry.Data, &value); err == nil {
			return value, nil
		}
		logger.Warn("[Analytics] Discarding unreadable cache entry", "key", key)
	}

	value, err := compute(ctx)
	if err != nil {
		return value, err
	}

	if err := s.analyticsRepo.SetCache(ctx, key, value, now.Add(AnalyticsCacheTTL)); err != nil {
		logger.Warn("[Analytics] Failed to cache result", "key", key, "error", err)
	}
	return value, nil
}

// Summary returns the dashboard headline figures
func (s *AnalyticsService) Summary(ctx context.Context) (*models.AnalyticsSummary, error) {
	return cached(ctx, s, cacheKeySummary, s.computeSummary)
}

// StatusBreakdown counts clients per status
func (s *AnalyticsService) StatusBreakdown(ctx context.Context) ([]models.StatusCount, error) {
	return cached(ctx, s, cacheKeyStatus, s.computeStatusBreakdown)
}

// LoanTypes aggregates loans per loan type
func (s *AnalyticsService) LoanTypes(ctx context.Context) ([]models.LoanTypeBreakdown, error) {
	return cached(ctx, s, cacheKeyLoanTypes, s.computeLoanTypes)
}

// Collections returns payments collected per month over the last months
func (s *AnalyticsService) Collections(ctx context.Context, months int) ([]models.CollectionPoint, error) {
	if months <= 0 || months > 36 {
		months = defaultCollectionMonths
	}
	key := fmt.Sprintf("%s_%d", cacheKeyCollections, months)
	return cached(ctx, s, key, func(ctx context.Context) ([]models.CollectionPoint, error) {
		return s.computeCollections(ctx, months)
	})
}

// Health scores every open loan, weakest first
func (s *AnalyticsService) Health(ctx context.Context) ([]models.ClientHealth, error) {
	return cached(ctx, s, cacheKeyHealth, s.computeHealth)
}

// Invalidate drops every cached figure. Called after writes.
func (s *AnalyticsService) Invalidate(ctx context.Context) error {
	return s.analyticsRepo.InvalidateAll(ctx)
}

// Refresh recomputes and caches every figure. Run by the scheduler.
func (s *AnalyticsService) Refresh(ctx context.Context) error {
	if err := s.Invalidate(ctx); err != nil {
		return err
	}
	if _, err := s.Summary(ctx); err != nil {
		return err
	}
	if _, err := s.StatusBreakdown(ctx); err != nil {
		return err
	}
	if _, err := s.LoanTypes(ctx); err != nil {
		return err
	}
	if _, err := s.Collections(ctx, defaultCollectionMonths); err != nil {
		return err
	}
	_, err := s.Health(ctx)
	return err
}

// CleanExpired removes stale cache rows
func (s *AnalyticsService) CleanExpired(ctx context.Context) (int64, error) {
	return s.analyticsRepo.CleanExpiredCache(ctx, s.now())
}

// evaluated is a client together with its balance at evaluation time
type evaluated struct {
	client  *models.Client
	balance loan.Balance
	status  string
}

func (s *AnalyticsService) evaluateAll(ctx context.Context) ([]evaluated, time.Time, error) {
	clients, err := s.clientRepo.FindAll(ctx, false)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to load clients: %w", err)
	}
	now := s.now()
	out := make([]evaluated, len(clients))
	for i := range clients {
		c := &clients[i]
		b := loan.Evaluate(loan.TermsOf(c), now)
		out[i] = evaluated{client: c, balance: b, status: loan.DeriveStatus(c.Status, b, c.DueDate, now)}
	}
	return out, now, nil
}

func (s *AnalyticsService) computeSummary(ctx context.Context) (*models.AnalyticsSummary, error) {
	loans, _, err := s.evaluateAll(ctx)
	if err != nil {
		return nil, err
	}

	summary := &models.AnalyticsSummary{
		TotalClients:   len(loans),
		CurrencySymbol: s.currency,
	}

	totalLoan, totalPaid, totalDue, outstanding := decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
	for _, l := range loans {
		totalLoan = totalLoan.Add(l.balance.Principal)
		totalPaid = totalPaid.Add(l.balance.AmountPaid)
		totalDue = totalDue.Add(l.balance.AmountDue)
		outstanding = outstanding.Add(l.balance.Remaining)

		switch l.status {
		case models.ClientStatusActive, models.ClientStatusRepaymentDue:
			summary.ActiveLoans++
		case models.ClientStatusOverdue:
			summary.ActiveLoans++
			summary.OverdueCount++
		case models.ClientStatusPaid:
			summary.PaidCount++
		}
	}

	summary.TotalLoanAmount = totalLoan.Round(2).InexactFloat64()
	summary.TotalAmountPaid = totalPaid.Round(2).InexactFloat64()
	summary.TotalAmountDue = totalDue.Round(2).InexactFloat64()
	summary.TotalOutstanding = outstanding.Round(2).InexactFloat64()
	if totalDue.IsPositive() {
		summary.RepaymentRate = totalPaid.Div(totalDue).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
	}
	if len(loans) > 0 {
		summary.AvgLoanAmount = totalLoan.Div(decimal.NewFromInt(int64(len(loans)))).Round(2).InexactFloat64()
	}
	return summary, nil
}

func (s *AnalyticsService) computeStatusBreakdown(ctx context.Context) ([]models.StatusCount, error) {
	loans, _, err := s.evaluateAll(ctx)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(models.ClientStatuses))
	for _, l := range loans {
		counts[l.status]++
	}

	breakdown := make([]models.StatusCount, 0, len(models.ClientStatuses))
	for _, status := range models.ClientStatuses {
		breakdown = append(breakdown, models.StatusCount{Status: status, Count: counts[status]})
	}
	return breakdown, nil
}

func (s *AnalyticsService) computeLoanTypes(ctx context.Context) ([]models.LoanTypeBreakdown, error) {
	loans, _, err := s.evaluateAll(ctx)
	if err != nil {
		return nil, err
	}

	type totals struct {
		count                    int
		amount, due, outstanding decimal.Decimal
	}
	byType := make(map[string]*totals)
	for _, t := range models.LoanTypes {
		byType[t] = &totals{}
	}
	for _, l := range loans {
		t, ok := byType[l.client.LoanType]
		if !ok {
			t = &totals{}
			byType[l.client.LoanType] = t
		}
		t.count++
		t.amount = t.amount.Add(l.balance.Principal)
		t.due = t.due.Add(l.balance.AmountDue)
		t.outstanding = t.outstanding.Add(l.balance.Remaining)
	}

	names := make([]string, 0, len(byType))
	for name := range byType {
		names = append(names, name)
	}
	sort.Strings(names)

	breakdown := make([]models.LoanTypeBreakdown, 0, len(names))
	for _, name := range names {
		t := byType[name]
		breakdown = append(breakdown, models.LoanTypeBreakdown{
			Type:        name,
			Count:       t.count,
			Amount:      t.amount.Round(2).InexactFloat64(),
			TotalDue:    t.due.Round(2).InexactFloat64(),
			Outstanding: t.outstanding.Round(2).InexactFloat64(),
		})
	}
	return breakdown, nil
}

func (s *AnalyticsService) computeCollections(ctx context.Context, months int) ([]models.CollectionPoint, error) {
	now := s.now()
	y, m, _ := now.Date()
	start := time.Date(y, m-time.Month(months-1), 1, 0, 0, 0, 0, now.Location())

	payments, err := s.paymentRepo.ListSince(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("failed to load payments: %w", err)
	}

	amounts := make(map[string]decimal.Decimal, months)
	counts := make(map[string]int, months)
	for _, p := range payments {
		key := p.PaymentDate.In(now.Location()).Format("2006-01")
		amounts[key] = amounts[key].Add(p.Amount)
		counts[key]++
	}

	points := make([]models.CollectionPoint, 0, months)
	for i := 0; i < months; i++ {
		key := start.AddDate(0, i, 0).Format("2006-01")
		points = append(points, models.CollectionPoint{
			Month:  key,
			Amount: amounts[key].Round(2).InexactFloat64(),
			Count:  counts[key],
		})
	}
	return points, nil
}

func (s *AnalyticsService) computeHealth(ctx context.Context) ([]models.ClientHealth, error) {
	loans, now, err := s.evaluateAll(ctx)
	if err != nil {
		return nil, err
	}

	scores := make([]models.ClientHealth, 0, len(loans))
	for _, l := range loans {
		if l.status == models.ClientStatusPaid {
			continue
		}
		h := loan.Health(l.balance, l.status, l.client.LastPaymentDate, now)
		scores = append(scores, models.ClientHealth{
			ClientID:         l.client.ID,
			Name:             l.client.Name,
			Status:           l.status,
			Score:            h.Score,
			Label:            h.Label,
			PrincipalRepaid:  h.PrincipalRepaid,
			DaysSincePayment: h.DaysSincePayment,
			Outstanding:      l.balance.Remaining.Round(2).InexactFloat64(),
		})
	}

	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score < scores[j].Score
		}
		return scores[i].ClientID < scores[j].ClientID
	})
	return scores, nil
}
