package statemachine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/looplab/fsm"
	"github.com/sjperalta/cashflow-api/internal/models"
)

// Client status events
const (
	EventActivate    = "activate"
	EventFlagDue     = "flag_due"
	EventMarkOverdue = "mark_overdue"
	EventSettle      = "settle"
)

// ErrInvalidTransition is returned when no event leads from the current status to the target.
var ErrInvalidTransition = errors.New("invalid status transition")

// ClientFSM wraps a client with its loan status machine
type ClientFSM struct {
	client *models.Client
	fsm    *fsm.FSM
	now    func() time.Time
}

// NewClientFSM creates a new client state machine. now stamps LastStatusUpdate
// on every transition; nil means time.Now.
func NewClientFSM(client *models.Client, now func() time.Time) *ClientFSM {
	if now == nil {
		now = time.Now
	}
	c := &ClientFSM{
		client: client,
		now:    now,
	}

	c.fsm = fsm.NewFSM(
		client.Status,
		fsm.Events{
			// first payment
			{Name: EventActivate, Src: []string{models.ClientStatusNewLead}, Dst: models.ClientStatusActive},

			// due date inside the repayment window
			{Name: EventFlagDue, Src: []string{models.ClientStatusActive}, Dst: models.ClientStatusRepaymentDue},

			// due date passed with a balance left
			{Name: EventMarkOverdue, Src: []string{models.ClientStatusActive, models.ClientStatusRepaymentDue}, Dst: models.ClientStatusOverdue},

			// remaining balance reached zero
			{Name: EventSettle, Src: []string{
				models.ClientStatusNewLead,
				models.ClientStatusActive,
				models.ClientStatusRepaymentDue,
				models.ClientStatusOverdue,
			}, Dst: models.ClientStatusPaid},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				c.stamp(e.Dst)
			},
		},
	)

	return c
}

func (c *ClientFSM) stamp(status string) {
	c.client.Status = status
	c.client.LastStatusUpdate = c.now()
}

// Activate moves a new lead to active
func (c *ClientFSM) Activate(ctx context.Context) error {
	return c.fire(ctx, EventActivate)
}

// Settle marks the loan as paid
func (c *ClientFSM) Settle(ctx context.Context) error {
	return c.fire(ctx, EventSettle)
}

// Advance fires whichever event leads from the current status to target.
// It is a no-op when the client is already in target.
func (c *ClientFSM) Advance(ctx context.Context, target string) (bool, error) {
	if c.fsm.Current() == target {
		return false, nil
	}

	event, ok := eventFor(target)
	if !ok || !c.fsm.Can(event) {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.fsm.Current(), target)
	}

	if err := c.fire(ctx, event); err != nil {
		return false, err
	}
	return true, nil
}

// Override sets the status directly, bypassing the transition table. Used by
// the admin status endpoint.
func (c *ClientFSM) Override(target string) (bool, error) {
	if !models.IsValidClientStatus(target) {
		return false, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, target)
	}
	if c.fsm.Current() == target {
		return false, nil
	}

	c.fsm.SetState(target)
	c.stamp(target)
	return true, nil
}

func (c *ClientFSM) fire(ctx context.Context, event string) error {
	if err := c.fsm.Event(ctx, event); err != nil {
		return fmt.Errorf("failed to %s client %d: %w", event, c.client.ID, err)
	}
	return nil
}

// Current returns the current state
func (c *ClientFSM) Current() string {
	return c.fsm.Current()
}

// Can checks if a transition is possible
func (c *ClientFSM) Can(event string) bool {
	return c.fsm.Can(event)
}

func eventFor(target string) (string, bool) {
	switch target {
	case models.ClientStatusActive:
		return EventActivate, true
	case models.ClientStatusRepaymentDue:
		return EventFlagDue, true
	case models.ClientStatusOverdue:
		return EventMarkOverdue, true
	case models.ClientStatusPaid:
		return EventSettle, true
	}
	return "", false
}
