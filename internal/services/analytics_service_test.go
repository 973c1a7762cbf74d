package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjperalta/cashflow-api/internal/models"
)

func portfolio() []models.Client {
	return []models.Client{
		{
			ID: 1, Name: "Paid up", LoanType: models.LoanTypeUnsecured,
			LoanAmount: dec("1000"), AmountDue: dec("1500"), AmountPaid: dec("1500"),
			StartDate: time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC),
			DueDate:   time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
			Status:    models.ClientStatusPaid,
		},
		{
			ID: 2, Name: "Lead", LoanType: models.LoanTypeSecured,
			LoanAmount: dec("2000"), AmountDue: dec("3000"),
			StartDate: time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC),
			DueDate:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
			Status:    models.ClientStatusNewLead,
		},
		{
			ID: 3, Name: "Late", LoanType: models.LoanTypeUnsecured,
			LoanAmount: dec("1000"), AmountDue: dec("1500"), AmountPaid: dec("500"),
			StartDate: time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC),
			DueDate:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			Status:    models.ClientStatusActive,
		},
	}
}

func newAnalyticsFixture(clients []models.Client, payments []models.Payment) (*AnalyticsService, *mockAnalyticsRepo, *int) {
	loads := 0
	cache := newMockAnalyticsRepo()
	clientRepo := &mockClientRepo{
		mockFindAll: func(ctx context.Context, includeArchived bool) ([]models.Client, error) {
			loads++
			return clients, nil
		},
	}
	paymentRepo := &mockPaymentRepo{
		mockListSince: func(ctx context.Context, since time.Time) ([]models.Payment, error) {
			var out []models.Payment
			for _, p := range payments {
				if !p.PaymentDate.Before(since) {
					out = append(out, p)
				}
			}
			return out, nil
		},
	}
	service := NewAnalyticsService(cache, clientRepo, paymentRepo, "R")
	service.now = fixedClock(march10)
	return service, cache, &loads
}

func TestAnalyticsService_Summary(t *testing.T) {
	service, cache, loads := newAnalyticsFixture(portfolio(), nil)

	summary, err := service.Summary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.TotalClients)
	assert.Equal(t, 4000.0, summary.TotalLoanAmount)
	assert.Equal(t, 2000.0, summary.TotalAmountPaid)
	// 1500 + 3000 + (500 + 1000 * 1.5)
	assert.Equal(t, 6500.0, summary.TotalAmountDue)
	assert.Equal(t, 4500.0, summary.TotalOutstanding)
	assert.Equal(t, 1, summary.ActiveLoans)
	assert.Equal(t, 1, summary.OverdueCount)
	assert.Equal(t, 1, summary.PaidCount)
	assert.Equal(t, 30.77, summary.RepaymentRate)
	assert.Equal(t, "R", summary.CurrencySymbol)

	// Second call is served from cache
	again, err := service.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, summary, again)
	assert.Equal(t, 1, *loads)
	assert.Equal(t, 1, cache.sets)

	require.NoError(t, service.Invalidate(context.Background()))
	_, err = service.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, *loads)
}

func TestAnalyticsService_StatusBreakdown(t *testing.T) {
	service, _, _ := newAnalyticsFixture(portfolio(), nil)

	breakdown, err := service.StatusBreakdown(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.StatusCount{
		{Status: models.ClientStatusNewLead, Count: 1},
		{Status: models.ClientStatusActive, Count: 0},
		{Status: models.ClientStatusRepaymentDue, Count: 0},
		{Status: models.ClientStatusOverdue, Count: 1},
		{Status: models.ClientStatusPaid, Count: 1},
	}, breakdown)
}

func TestAnalyticsService_LoanTypes(t *testing.T) {
	service, _, _ := newAnalyticsFixture(portfolio(), nil)

	types, err := service.LoanTypes(context.Background())
	require.NoError(t, err)
	require.Len(t, types, 2)
	assert.Equal(t, models.LoanTypeSecured, types[0].Type)
	assert.Equal(t, 1, types[0].Count)
	assert.Equal(t, 3000.0, types[0].Outstanding)
	assert.Equal(t, models.LoanTypeUnsecured, types[1].Type)
	assert.Equal(t, 2, types[1].Count)
	assert.Equal(t, 2000.0, types[1].Amount)
}

func TestAnalyticsService_Collections(t *testing.T) {
	payments := []models.Payment{
		{Amount: dec("500"), PaymentDate: time.Date(2024, 1, 20, 10, 0, 0, 0, time.UTC)},
		{Amount: dec("1000"), PaymentDate: time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)},
		{Amount: dec("500"), PaymentDate: time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)},
		{Amount: dec("700"), PaymentDate: time.Date(2023, 11, 9, 10, 0, 0, 0, time.UTC)},
	}
	service, _, _ := newAnalyticsFixture(nil, payments)

	points, err := service.Collections(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []models.CollectionPoint{
		{Month: "2024-01", Amount: 500, Count: 1},
		{Month: "2024-02", Amount: 0, Count: 0},
		{Month: "2024-03", Amount: 1500, Count: 2},
	}, points)
}

func TestAnalyticsService_Health_SkipsPaidLoans(t *testing.T) {
	service, _, _ := newAnalyticsFixture(portfolio(), nil)

	scores, err := service.Health(context.Background())
	require.NoError(t, err)
	require.Len(t, scores, 2)
	for _, s := range scores {
		assert.NotEqual(t, uint(1), s.ClientID)
	}
	assert.LessOrEqual(t, scores[0].Score, scores[1].Score)
}
