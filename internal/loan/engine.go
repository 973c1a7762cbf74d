// Package loan computes what a borrower owes and which lifecycle status the
// loan is in. Everything here is pure: callers pass the evaluation time and
// persist the results themselves.
package loan

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sjperalta/cashflow-api/internal/models"
)

// RepaymentWindowDays is how close to the due date an active loan is flagged repayment-due.
const RepaymentWindowDays = 3

var (
	// InterestRate is the flat rate charged for the first period and re-applied
	// to the unpaid remainder at every elapsed month boundary.
	InterestRate = decimal.RequireFromString("0.5")

	growth = decimal.NewFromInt(1).Add(InterestRate)
)

var (
	ErrNonPositiveAmount = errors.New("amount must be greater than 0")
	ErrSettled           = errors.New("loan is already fully paid")
)

// Terms are the inputs the engine needs from a loan.
type Terms struct {
	Principal  decimal.Decimal
	AmountPaid decimal.Decimal
	StartDate  time.Time
	// LastPaymentDate defaults to StartDate when nil. It does not move the
	// compounding boundaries, which are always anchored on StartDate.
	LastPaymentDate *time.Time
	DueDate         time.Time
}

// LastPayment returns the last payment date, or the start date when nothing has been paid.
func (t Terms) LastPayment() time.Time {
	if t.LastPaymentDate != nil {
		return *t.LastPaymentDate
	}
	return t.StartDate
}

// Balance is the state of a loan at a point in time.
type Balance struct {
	Principal        decimal.Decimal
	BaseAmountDue    decimal.Decimal // principal plus the first period's interest
	AmountDue        decimal.Decimal // amount paid plus the compounded remainder
	AmountPaid       decimal.Decimal
	Remaining        decimal.Decimal
	Interest         decimal.Decimal // AmountDue minus Principal
	MonthsCompounded int
	FullyPaid        bool
}

// PaymentProgress is the share of the amount due already paid, in percent.
func (b Balance) PaymentProgress() float64 {
	if !b.AmountDue.IsPositive() {
		return 0
	}
	return b.AmountPaid.Div(b.AmountDue).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
}

// TermsOf extracts the engine inputs from a client record.
func TermsOf(c *models.Client) Terms {
	return Terms{
		Principal:       c.LoanAmount,
		AmountPaid:      c.AmountPaid,
		StartDate:       c.StartDate,
		LastPaymentDate: c.LastPaymentDate,
		DueDate:         c.DueDate,
	}
}

// InitialAmountDue is the amount owed at origination: principal plus 50%.
func InitialAmountDue(principal decimal.Decimal) decimal.Decimal {
	return principal.Mul(growth).Round(2)
}

// CurrentAmountDue returns what the borrower owes in total at now.
func CurrentAmountDue(t Terms, now time.Time) decimal.Decimal {
	return Evaluate(t, now).AmountDue
}

// Evaluate computes the balance of a loan at now.
//
// With nothing paid the amount due stays at the origination amount. Once
// something has been paid, the unpaid remainder is multiplied by 1.5 for every
// month boundary after StartDate that lies strictly before now. Re-evaluating
// at the same now always gives the same result.
func Evaluate(t Terms, now time.Time) Balance {
	base := InitialAmountDue(t.Principal)
	paid := t.AmountPaid
	if paid.IsNegative() {
		paid = decimal.Zero
	}

	b := Balance{
		Principal:     t.Principal,
		BaseAmountDue: base,
		AmountDue:     base,
		AmountPaid:    paid,
	}

	if paid.IsZero() {
		b.Remaining = base
		b.Interest = base.Sub(t.Principal)
		return b
	}

	remaining := base.Sub(paid)
	if !remaining.IsPositive() {
		b.Remaining = decimal.Zero
		b.Interest = base.Sub(t.Principal)
		b.FullyPaid = true
		return b
	}

	for k := 1; ; k++ {
		boundary := AddMonths(t.StartDate, k)
		if !boundary.Before(now) {
			break
		}
		remaining = remaining.Mul(growth).Round(2)
		b.MonthsCompounded++
	}

	b.AmountDue = paid.Add(remaining)
	b.Remaining = remaining
	b.Interest = b.AmountDue.Sub(t.Principal)
	return b
}

// ApplyPayment caps amount at the remaining balance and returns the amount
// actually applied together with the updated terms.
func ApplyPayment(t Terms, amount decimal.Decimal, now time.Time) (decimal.Decimal, Terms, error) {
	if !amount.IsPositive() {
		return decimal.Zero, t, ErrNonPositiveAmount
	}

	b := Evaluate(t, now)
	if !b.Remaining.IsPositive() {
		return decimal.Zero, t, ErrSettled
	}

	applied := decimal.Min(amount, b.Remaining)

	next := t
	next.AmountPaid = b.AmountPaid.Add(applied)
	paidAt := now
	next.LastPaymentDate = &paidAt
	return applied, next, nil
}

// DeriveStatus returns the status a loan should have after a recompute.
// Statuses the rules do not touch are returned unchanged.
func DeriveStatus(current string, b Balance, dueDate, now time.Time) string {
	if !b.Remaining.IsPositive() {
		return models.ClientStatusPaid
	}

	switch current {
	case models.ClientStatusPaid, models.ClientStatusNewLead:
		return current
	}

	days := DaysUntil(dueDate, now)
	if days < 0 {
		return models.ClientStatusOverdue
	}
	if current == models.ClientStatusActive && days <= RepaymentWindowDays {
		return models.ClientStatusRepaymentDue
	}
	return current
}

// StatusAfterPayment activates a new lead and then derives the status.
func StatusAfterPayment(current string, b Balance, dueDate, now time.Time) string {
	if current == models.ClientStatusNewLead {
		current = models.ClientStatusActive
	}
	return DeriveStatus(current, b, dueDate, now)
}

// DefaultDueDate is the last day of the month the loan started in.
func DefaultDueDate(start time.Time) time.Time {
	y, m, _ := start.Date()
	return time.Date(y, m+1, 0, 0, 0, 0, 0, start.Location())
}

// AddMonths moves t forward n calendar months, clamping the day to the end of
// the target month (Jan 31 + 1 month is Feb 28 or 29).
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(first); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

// DaysUntil counts calendar days from now to due; negative once due has passed.
func DaysUntil(due, now time.Time) int {
	dy, dm, dd := due.Date()
	ny, nm, nd := now.In(due.Location()).Date()
	dueDay := time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC)
	today := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	return int(dueDay.Sub(today).Hours() / 24)
}

// DaysOverdue is how many calendar days have passed since the due date, never negative.
func DaysOverdue(due, now time.Time) int {
	if d := DaysUntil(due, now); d < 0 {
		return -d
	}
	return 0
}

func daysIn(firstOfMonth time.Time) int {
	return firstOfMonth.AddDate(0, 1, -1).Day()
}
