package repository

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/sjperalta/cashflow-api/internal/models"
)

func TestClientDoc_UsesCamelCaseFieldNames(t *testing.T) {
	client := newClient("Naledi Khumalo", models.ClientStatusActive, "1234.56")
	client.ID = 42

	doc, err := newClientDoc(client)
	require.NoError(t, err)

	m, err := toBSONMap(doc)
	require.NoError(t, err)
	for _, key := range []string{"_id", "idNumber", "loanType", "loanAmount", "amountPaid", "startDate", "dueDate", "lastStatusUpdate", "paymentHistory"} {
		assert.Contains(t, m, key)
	}
	assert.NotContains(t, m, "lastPaymentDate", "unset optional fields are omitted")
}

func TestClientDoc_PreservesAmounts(t *testing.T) {
	paidAt := time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)
	income := decimal.RequireFromString("18500.00")
	client := newClient("Bongani Mthembu", models.ClientStatusActive, "2500.50")
	client.ID = 7
	client.MonthlyIncome = &income
	client.AmountPaid = decimal.RequireFromString("1000.25")

	doc, err := newClientDoc(client)
	require.NoError(t, err)

	payment, err := newPaymentDoc(&models.Payment{
		ID:              3,
		Amount:          decimal.RequireFromString("1000.25"),
		RequestedAmount: decimal.RequireFromString("1200"),
		PaymentDate:     paidAt,
		Method:          models.PaymentMethodEFT,
	})
	require.NoError(t, err)
	doc.PaymentHistory = append(doc.PaymentHistory, payment)

	back, err := doc.toModel()
	require.NoError(t, err)
	assert.True(t, client.LoanAmount.Equal(back.LoanAmount))
	assert.True(t, client.AmountPaid.Equal(back.AmountPaid))
	require.NotNil(t, back.MonthlyIncome)
	assert.True(t, income.Equal(*back.MonthlyIncome))

	require.Len(t, back.Payments, 1)
	assert.Equal(t, uint(7), back.Payments[0].ClientID)
	assert.True(t, back.Payments[0].WasCapped())
}

func TestProfileUpdate_LeavesBalanceFieldsAlone(t *testing.T) {
	paidAt := time.Date(2025, time.March, 9, 0, 0, 0, 0, time.UTC)
	client := newClient("Sipho Ndlovu", models.ClientStatusOverdue, "800")
	client.ID = 11
	client.AmountPaid = decimal.RequireFromString("400.50")
	client.LastPaymentDate = &paidAt
	client.Archived = true

	update, err := profileUpdate(client)
	require.NoError(t, err)

	set, ok := update["$set"].(bson.M)
	require.True(t, ok)
	assert.Equal(t, "Sipho Ndlovu", set["name"])
	assert.Equal(t, true, set["archived"])
	for _, key := range []string{"_id", "amountPaid", "amountDue", "loanAmount", "status", "lastPaymentDate", "lastStatusUpdate", "paymentHistory"} {
		assert.NotContains(t, set, key)
	}

	// cleared optional profile fields are removed, never balance fields
	unset, ok := update["$unset"].(bson.M)
	require.True(t, ok)
	assert.Contains(t, unset, "monthlyIncome")
	assert.NotContains(t, unset, "lastPaymentDate")
}

func TestUnwoundPayment_Decodes(t *testing.T) {
	amount, err := toDecimal128(decimal.RequireFromString("250"))
	require.NoError(t, err)

	raw, err := bson.Marshal(bson.M{
		"_id":            int64(5),
		"name":           "Zanele",
		"paymentHistory": bson.M{"id": int64(9), "amount": amount, "requestedAmount": amount, "method": "cash"},
	})
	require.NoError(t, err)

	var row unwoundPayment
	require.NoError(t, bson.Unmarshal(raw, &row))

	p, err := row.Payment.toModel(uint(row.ClientID))
	require.NoError(t, err)
	assert.Equal(t, uint(9), p.ID)
	assert.Equal(t, uint(5), p.ClientID)
	assert.True(t, decimal.NewFromInt(250).Equal(p.Amount))
}
