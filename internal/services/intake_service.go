package services

import (
	"context"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"github.com/sjperalta/cashflow-api/internal/jobs"
	"github.com/sjperalta/cashflow-api/internal/models"
	"github.com/sjperalta/cashflow-api/internal/repository"
	"github.com/sjperalta/cashflow-api/pkg/logger"
)

const applicationNote = "Application received via online form"

// ApplicationInput holds the fields shared by both public application forms
type ApplicationInput struct {
	Name       string  `form:"name" validate:"required"`
	Surname    string  `form:"surname"`
	IDNumber   string  `form:"id_number" validate:"required"`
	Phone      string  `form:"phone" validate:"required"`
	Email      string  `form:"email" validate:"required,email"`
	LoanAmount float64 `form:"amount" validate:"gt=0"`
	Terms      bool    `form:"terms" validate:"required"`
}

// UnsecuredApplication is the unsecured form with its supporting documents
type UnsecuredApplication struct {
	ApplicationInput
	Payslip       *multipart.FileHeader
	IDDocument    *multipart.FileHeader
	BankStatement *multipart.FileHeader
}

// SecuredApplication is the secured form with photos of the collateral
type SecuredApplication struct {
	ApplicationInput
	CollateralDescription string
	CollateralImages      []*multipart.FileHeader
}

// ApplicationResult is returned to the public form
type ApplicationResult struct {
	ClientID  uint   `json:"client_id"`
	Documents int    `json:"documents"`
	Message   string `json:"message"`
}

type IntakeService struct {
	clients      *ClientService
	documents    *DocumentService
	noteRepo     repository.NoteRepository
	notification *NotificationService
	audit        *AuditService
	worker       *jobs.Worker
	now          func() time.Time
}

func NewIntakeService(
	clients *ClientService,
	documents *DocumentService,
	noteRepo repository.NoteRepository,
	notification *NotificationService,
	audit *AuditService,
	worker *jobs.Worker,
) *IntakeService {
	return &IntakeService{
		clients:      clients,
		documents:    documents,
		noteRepo:     noteRepo,
		notification: notification,
		audit:        audit,
		worker:       worker,
		now:          time.Now,
	}
}

type pendingUpload struct {
	file     *multipart.FileHeader
	category string
}

// SubmitUnsecured registers an unsecured loan application as a new lead
func (s *IntakeService) SubmitUnsecured(ctx context.Context, app UnsecuredApplication, actor Actor) (*ApplicationResult, error) {
	uploads := []pendingUpload{
		{app.Payslip, models.DocumentCategoryPayslip},
		{app.IDDocument, models.DocumentCategoryIDDocument},
		{app.BankStatement, models.DocumentCategoryBankStatement},
	}
	input := s.clientInput(app.ApplicationInput, models.LoanTypeUnsecured, nil)
	return s.submit(ctx, app.ApplicationInput, input, uploads, actor)
}

// SubmitSecured registers a secured loan application as a new lead
func (s *IntakeService) SubmitSecured(ctx context.Context, app SecuredApplication, actor Actor) (*ApplicationResult, error) {
	uploads := make([]pendingUpload, 0, len(app.CollateralImages))
	for _, img := range app.CollateralImages {
		uploads = append(uploads, pendingUpload{img, models.DocumentCategoryCollateral})
	}

	var collateral *string
	if d := strings.TrimSpace(app.CollateralDescription); d != "" {
		collateral = &d
	}
	input := s.clientInput(app.ApplicationInput, models.LoanTypeSecured, collateral)
	return s.submit(ctx, app.ApplicationInput, input, uploads, actor)
}

func (s *IntakeService) clientInput(app ApplicationInput, loanType string, collateral *string) ClientInput {
	name := strings.TrimSpace(app.Name)
	if surname := strings.TrimSpace(app.Surname); surname != "" {
		name += " " + surname
	}
	return ClientInput{
		Name:                  name,
		Email:                 strings.TrimSpace(app.Email),
		Phone:                 strings.TrimSpace(app.Phone),
		IDNumber:              strings.TrimSpace(app.IDNumber),
		LoanType:              loanType,
		LoanAmount:            app.LoanAmount,
		CollateralDescription: collateral,
	}
}

func (s *IntakeService) submit(ctx context.Context, app ApplicationInput, input ClientInput, uploads []pendingUpload, actor Actor) (*ApplicationResult, error) {
	if err := validateStruct(app); err != nil {
		return nil, err
	}

	// Reject the whole application before anything is written
	present := uploads[:0]
	for _, u := range uploads {
		if u.file == nil {
			continue
		}
		if _, err := s.documents.storage.Validate(u.file); err != nil {
			return nil, fmt.Errorf("%s: %w", u.file.Filename, err)
		}
		present = append(present, u)
	}

	client, err := s.clients.buildClient(input)
	if err != nil {
		return nil, err
	}
	if err := s.clients.clientRepo.Create(ctx, client); err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	stored := 0
	for _, u := range present {
		if _, err := s.documents.store(ctx, client.ID, UploadInput{File: u.file, Category: u.category}, actor); err != nil {
			logger.Error("Failed to store application document",
				"client_id", client.ID, "category", u.category, "file", u.file.Filename, "error", err)
			continue
		}
		stored++
	}

	note := &models.Note{
		ClientID:  client.ID,
		Content:   applicationNote,
		NoteType:  models.NoteTypeGeneral,
		CreatedBy: actor.Name(),
		CreatedAt: s.now(),
	}
	if err := s.noteRepo.Create(ctx, note); err != nil {
		logger.Error("Failed to write application note", "client_id", client.ID, "error", err)
	}

	logger.Info("Loan application received", "client_id", client.ID, "loan_type", client.LoanType, "documents", stored)

	s.clients.invalidateAnalytics()
	clientCopy := *client
	runAsync(s.worker, "application-received", func(ctx context.Context) error {
		s.audit.Record(ctx, actor, models.AuditActionApply, models.AuditEntityClient, clientCopy.ID,
			fmt.Sprintf("%s application from %s for %s", clientCopy.LoanType, clientCopy.Name, clientCopy.LoanAmount.StringFixed(2)))
		if s.notification == nil {
			return nil
		}
		id := clientCopy.ID
		return s.notification.NotifyStaff(ctx, "New loan application",
			fmt.Sprintf("%s applied for a %s of %s.", clientCopy.Name, strings.ToLower(clientCopy.LoanType), clientCopy.LoanAmount.StringFixed(2)),
			models.NotificationTypeNewApplication, &id)
	})

	return &ApplicationResult{
		ClientID:  client.ID,
		Documents: stored,
		Message:   fmt.Sprintf("%s application submitted successfully.", client.LoanType),
	}, nil
}
