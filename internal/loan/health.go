package loan

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sjperalta/cashflow-api/internal/models"
)

// Health labels
const (
	HealthExcellent = "excellent"
	HealthGood      = "good"
	HealthFair      = "fair"
	HealthPoor      = "poor"
)

// HealthReport scores how likely a loan is to be repaid, 0 to 100.
type HealthReport struct {
	Score int    `json:"score"`
	Label string `json:"label"`
	// PrincipalRepaid is amount paid over principal, in percent. Unlike
	// Balance.PaymentProgress it ignores interest.
	PrincipalRepaid float64 `json:"principal_repaid_pct"`
	// DaysSincePayment is -1 when no payment has been made.
	DaysSincePayment int `json:"days_since_payment"`
}

// Health scores a loan from its status, payment recency and how much of the
// principal has been repaid.
func Health(b Balance, status string, lastPayment *time.Time, now time.Time) HealthReport {
	score := 100

	switch status {
	case models.ClientStatusOverdue:
		score -= 40
	case models.ClientStatusRepaymentDue:
		score -= 20
	}

	days := -1
	if lastPayment != nil {
		days = int(now.Sub(*lastPayment).Hours() / 24)
		switch {
		case days > 60:
			score -= 30
		case days > 30:
			score -= 15
		}
	}

	var repaid float64
	if b.Principal.IsPositive() {
		repaid = b.AmountPaid.Div(b.Principal).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
	}
	if repaid < 25 {
		score -= 20
	}

	if score < 0 {
		score = 0
	}

	return HealthReport{
		Score:            score,
		Label:            healthLabel(score),
		PrincipalRepaid:  repaid,
		DaysSincePayment: days,
	}
}

func healthLabel(score int) string {
	switch {
	case score >= 80:
		return HealthExcellent
	case score >= 60:
		return HealthGood
	case score >= 40:
		return HealthFair
	default:
		return HealthPoor
	}
}
