package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjperalta/cashflow-api/internal/models"
	"github.com/sjperalta/cashflow-api/internal/repository"
)

func TestNoteService_CreateAndDelete(t *testing.T) {
	clients := &mockClientRepo{
		mockFindByID: func(ctx context.Context, id uint) (*models.Client, error) {
			if id != 4 {
				return nil, repository.ErrNotFound
			}
			return &models.Client{ID: 4}, nil
		},
	}
	notes := &mockNoteRepo{}
	audit := &mockAuditRepo{}
	service := NewNoteService(notes, clients, NewAuditService(audit))
	service.now = fixedClock(march10)

	note, err := service.Create(context.Background(), 4, NoteInput{Content: "  Called, will pay on the 25th  "}, Actor{Email: "clerk@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "Called, will pay on the 25th", note.Content)
	assert.Equal(t, models.NoteTypeGeneral, note.NoteType)
	assert.Equal(t, "clerk@example.com", note.CreatedBy)
	assert.Equal(t, march10, note.CreatedAt)

	_, err = service.Create(context.Background(), 4, NoteInput{Content: "   "}, SystemActor)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, []string{"Note content is required"}, vErr.Messages)

	_, err = service.Create(context.Background(), 4, NoteInput{Content: "x", NoteType: "reminder"}, SystemActor)
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, []string{"Note type must be one of: general, payment, status_change"}, vErr.Messages)

	_, err = service.Create(context.Background(), 8, NoteInput{Content: "x"}, SystemActor)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, service.Delete(context.Background(), note.ID, SystemActor))
	assert.Empty(t, notes.notes)
	assert.ErrorIs(t, service.Delete(context.Background(), note.ID, SystemActor), ErrNotFound)

	assert.Equal(t, []string{models.AuditActionCreate, models.AuditActionDelete}, audit.actions())
}
