package models

import (
	"encoding/json"
	"time"
)

// AnalyticsCache holds a computed analytics payload until it expires or a write invalidates it
type AnalyticsCache struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	CacheKey  string          `gorm:"not null;uniqueIndex" json:"cache_key"`
	Data      json.RawMessage `gorm:"not null" json:"data"`
	ExpiresAt time.Time       `gorm:"not null;index" json:"expires_at"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TableName specifies the table name for AnalyticsCache
func (AnalyticsCache) TableName() string {
	return "analytics_cache"
}

// AnalyticsSummary is the dashboard headline figures
type AnalyticsSummary struct {
	TotalClients     int     `json:"total_clients"`
	TotalLoanAmount  float64 `json:"total_loan_amount"`
	TotalAmountPaid  float64 `json:"total_amount_paid"`
	TotalAmountDue   float64 `json:"total_amount_due"`
	TotalOutstanding float64 `json:"total_outstanding"`
	ActiveLoans      int     `json:"active_loans"`
	OverdueCount     int     `json:"overdue_count"`
	PaidCount        int     `json:"paid_count"`
	RepaymentRate    float64 `json:"repayment_rate"`
	AvgLoanAmount    float64 `json:"avg_loan_amount"`
	CurrencySymbol   string  `json:"currency_symbol"`
}

// StatusCount is one row of the status breakdown
type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// LoanTypeBreakdown aggregates loans of one type
type LoanTypeBreakdown struct {
	Type        string  `json:"type"`
	Count       int     `json:"count"`
	Amount      float64 `json:"amount"`
	TotalDue    float64 `json:"total_due"`
	Outstanding float64 `json:"outstanding"`
}

// CollectionPoint is the total collected in one calendar month
type CollectionPoint struct {
	Month  string  `json:"month"` // YYYY-MM
	Amount float64 `json:"amount"`
	Count  int     `json:"count"`
}

// ClientHealth is the loan health score for one client
type ClientHealth struct {
	ClientID         uint    `json:"client_id"`
	Name             string  `json:"name"`
	Status           string  `json:"status"`
	Score            int     `json:"score"`
	Label            string  `json:"label"`
	PrincipalRepaid  float64 `json:"principal_repaid_pct"`
	DaysSincePayment int     `json:"days_since_payment"`
	Outstanding      float64 `json:"outstanding"`
}
