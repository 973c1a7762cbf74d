package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sjperalta/cashflow-api/internal/models"
	"github.com/sjperalta/cashflow-api/internal/repository"
)

// NoteInput is the body of an add-note request
type NoteInput struct {
	Content  string `json:"content" validate:"required"`
	NoteType string `json:"note_type" validate:"omitempty,oneof=general payment status_change"`
}

type NoteService struct {
	noteRepo   repository.NoteRepository
	clientRepo repository.ClientRepository
	audit      *AuditService
	now        func() time.Time
}

func NewNoteService(noteRepo repository.NoteRepository, clientRepo repository.ClientRepository, audit *AuditService) *NoteService {
	return &NoteService{noteRepo: noteRepo, clientRepo: clientRepo, audit: audit, now: time.Now}
}

func (s *NoteService) ListByClient(ctx context.Context, clientID uint) ([]models.Note, error) {
	if _, err := s.clientRepo.FindByID(ctx, clientID); err != nil {
		return nil, fromRepo(err)
	}
	return s.noteRepo.ListByClient(ctx, clientID)
}

func (s *NoteService) Create(ctx context.Context, clientID uint, input NoteInput, actor Actor) (*models.Note, error) {
	input.Content = strings.TrimSpace(input.Content)
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	if _, err := s.clientRepo.FindByID(ctx, clientID); err != nil {
		return nil, fromRepo(err)
	}

	note := &models.Note{
		ClientID:  clientID,
		Content:   input.Content,
		NoteType:  input.NoteType,
		CreatedBy: actor.Name(),
		CreatedAt: s.now(),
	}
	if note.NoteType == "" {
		note.NoteType = models.NoteTypeGeneral
	}
	if err := s.noteRepo.Create(ctx, note); err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}

	s.audit.Record(ctx, actor, models.AuditActionCreate, models.AuditEntityNote, note.ID,
		fmt.Sprintf("Note added to client %d", clientID))
	return note, nil
}

func (s *NoteService) Delete(ctx context.Context, id uint, actor Actor) error {
	note, err := s.noteRepo.FindByID(ctx, id)
	if err != nil {
		return fromRepo(err)
	}
	if err := s.noteRepo.Delete(ctx, id); err != nil {
		return fromRepo(err)
	}
	s.audit.Record(ctx, actor, models.AuditActionDelete, models.AuditEntityNote, id,
		fmt.Sprintf("Note removed from client %d", note.ClientID))
	return nil
}
