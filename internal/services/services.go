package services

import (
	"github.com/sjperalta/cashflow-api/internal/config"
	"github.com/sjperalta/cashflow-api/internal/jobs"
	"github.com/sjperalta/cashflow-api/internal/repository"
	"github.com/sjperalta/cashflow-api/internal/storage"
)

// Services holds all service instances
type Services struct {
	Auth         *AuthService
	User         *UserService
	Client       *ClientService
	Payment      *PaymentService
	Note         *NoteService
	Document     *DocumentService
	Intake       *IntakeService
	Notification *NotificationService
	Report       *ReportService
	Audit        *AuditService
	Email        *EmailService
	Analytics    *AnalyticsService
	Export       *ExportService
	Job          *JobService
}

// NewServices creates all service instances. worker may be nil for one-shot
// commands; async work then runs inline.
func NewServices(repos *repository.Repositories, worker *jobs.Worker, store *storage.LocalStorage, cfg *config.Config) *Services {
	auditSvc := NewAuditService(repos.Audit)
	emailSvc := NewEmailService(cfg)
	notificationSvc := NewNotificationService(repos.Notification, repos.User, repos.Client, emailSvc, auditSvc, cfg)
	analyticsSvc := NewAnalyticsService(repos.Analytics, repos.Client, repos.Payment, cfg.CurrencySymbol)
	imageSvc := NewImageService(store)

	clientSvc := NewClientService(repos.Client, repos.Note, auditSvc, notificationSvc, analyticsSvc, store, worker)
	documentSvc := NewDocumentService(repos.Document, repos.Client, store, imageSvc, auditSvc)

	svcs := &Services{
		Auth:         NewAuthService(repos.User, repos.RefreshToken, auditSvc, cfg),
		User:         NewUserService(repos.User, worker, emailSvc, auditSvc),
		Client:       clientSvc,
		Payment:      NewPaymentService(repos.Payment, repos.Client, notificationSvc, emailSvc, auditSvc, analyticsSvc, worker, cfg.CurrencySymbol),
		Note:         NewNoteService(repos.Note, repos.Client, auditSvc),
		Document:     documentSvc,
		Intake:       NewIntakeService(clientSvc, documentSvc, repos.Note, notificationSvc, auditSvc, worker),
		Notification: notificationSvc,
		Report:       NewReportService(repos.Client, repos.Payment, cfg.CurrencySymbol),
		Audit:        auditSvc,
		Email:        emailSvc,
		Analytics:    analyticsSvc,
		Export:       NewExportService(repos.Client, analyticsSvc, cfg.CurrencySymbol),
	}
	if worker != nil {
		svcs.Job = NewJobService(worker)
	}
	return svcs
}
