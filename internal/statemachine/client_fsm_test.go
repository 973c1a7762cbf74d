package statemachine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjperalta/cashflow-api/internal/models"
)

var fixedNow = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func TestClientFSM_Activate(t *testing.T) {
	client := &models.Client{ID: 1, Status: models.ClientStatusNewLead}
	m := NewClientFSM(client, clock)

	require.NoError(t, m.Activate(context.Background()))
	assert.Equal(t, models.ClientStatusActive, client.Status)
	assert.Equal(t, fixedNow, client.LastStatusUpdate)

	// only new leads can be activated
	assert.Error(t, m.Activate(context.Background()))
}

func TestClientFSM_Advance(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		changed bool
		wantErr bool
	}{
		{"active to repayment-due", models.ClientStatusActive, models.ClientStatusRepaymentDue, true, false},
		{"repayment-due to overdue", models.ClientStatusRepaymentDue, models.ClientStatusOverdue, true, false},
		{"active straight to overdue", models.ClientStatusActive, models.ClientStatusOverdue, true, false},
		{"overdue to paid", models.ClientStatusOverdue, models.ClientStatusPaid, true, false},
		{"new lead settled in one payment", models.ClientStatusNewLead, models.ClientStatusPaid, true, false},
		{"same status is a no-op", models.ClientStatusOverdue, models.ClientStatusOverdue, false, false},
		{"paid cannot reopen", models.ClientStatusPaid, models.ClientStatusActive, false, true},
		{"new lead cannot go overdue", models.ClientStatusNewLead, models.ClientStatusOverdue, false, true},
		{"unknown target", models.ClientStatusActive, "closed", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &models.Client{ID: 7, Status: tt.from}
			m := NewClientFSM(client, clock)

			changed, err := m.Advance(context.Background(), tt.to)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTransition)
				assert.Equal(t, tt.from, client.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.changed, changed)
			assert.Equal(t, tt.to, client.Status)
			assert.Equal(t, tt.to, m.Current())
		})
	}
}

func TestClientFSM_Override(t *testing.T) {
	client := &models.Client{ID: 3, Status: models.ClientStatusPaid}
	m := NewClientFSM(client, clock)

	changed, err := m.Override(models.ClientStatusActive)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, models.ClientStatusActive, client.Status)
	assert.Equal(t, fixedNow, client.LastStatusUpdate)
	assert.True(t, m.Can(EventFlagDue))

	_, err = m.Override("archived")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}
