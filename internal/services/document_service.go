package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"time"

	"github.com/sjperalta/cashflow-api/internal/models"
	"github.com/sjperalta/cashflow-api/internal/repository"
	"github.com/sjperalta/cashflow-api/internal/storage"
	"github.com/sjperalta/cashflow-api/pkg/logger"
)

// UploadInput describes one uploaded document
type UploadInput struct {
	File        *multipart.FileHeader `validate:"required"`
	Category    string                `validate:"omitempty,oneof=payslip id_document bank_statement collateral other"`
	Description *string
}

// DocumentFile is a stored document ready to be streamed to the client
type DocumentFile struct {
	Path        string
	Name        string
	ContentType string
}

type DocumentService struct {
	documentRepo repository.DocumentRepository
	clientRepo   repository.ClientRepository
	storage      *storage.LocalStorage
	images       *ImageService
	audit        *AuditService
	now          func() time.Time
}

func NewDocumentService(
	documentRepo repository.DocumentRepository,
	clientRepo repository.ClientRepository,
	storage *storage.LocalStorage,
	images *ImageService,
	audit *AuditService,
) *DocumentService {
	return &DocumentService{
		documentRepo: documentRepo,
		clientRepo:   clientRepo,
		storage:      storage,
		images:       images,
		audit:        audit,
		now:          time.Now,
	}
}

func (s *DocumentService) ListByClient(ctx context.Context, clientID uint) ([]models.Document, error) {
	if _, err := s.clientRepo.FindByID(ctx, clientID); err != nil {
		return nil, fromRepo(err)
	}
	return s.documentRepo.ListByClient(ctx, clientID)
}

// Upload stores a file against a client
func (s *DocumentService) Upload(ctx context.Context, clientID uint, input UploadInput, actor Actor) (*models.Document, error) {
	if input.File == nil {
		return nil, NewValidationError("File is required")
	}
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	if _, err := s.clientRepo.FindByID(ctx, clientID); err != nil {
		return nil, fromRepo(err)
	}

	doc, err := s.store(ctx, clientID, input, actor)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, actor, models.AuditActionCreate, models.AuditEntityDocument, doc.ID,
		fmt.Sprintf("Uploaded %s (%s) for client %d", doc.OriginalName, doc.Category, clientID))
	return doc, nil
}

// store writes the file, its thumbnail and the document row. Files are
// removed again when the row cannot be written.
func (s *DocumentService) store(ctx context.Context, clientID uint, input UploadInput, actor Actor) (*models.Document, error) {
	dir := storage.ClientDir(clientID)
	stored, err := s.storage.Save(input.File, dir)
	if err != nil {
		return nil, err
	}

	category := input.Category
	if category == "" {
		category = models.DocumentCategoryOther
	}
	doc := &models.Document{
		ClientID:     clientID,
		FileName:     stored.Name,
		OriginalName: input.File.Filename,
		FileSize:     stored.Size,
		FileType:     stored.Ext,
		FilePath:     stored.Path,
		Category:     category,
		UploadedBy:   actor.Name(),
		Description:  input.Description,
		CreatedAt:    s.now(),
	}

	if doc.IsImage() && s.images != nil {
		thumb, err := s.images.Thumbnail(stored.Path, dir+"/thumbs")
		if err != nil {
			logger.Warn("Failed to create thumbnail", "client_id", clientID, "file", stored.Name, "error", err)
		} else {
			doc.ThumbnailPath = &thumb
		}
	}

	if err := s.documentRepo.Create(ctx, doc); err != nil {
		s.removeFiles(doc)
		return nil, fmt.Errorf("failed to save document: %w", err)
	}
	return doc, nil
}

// Open resolves a document for download. thumbnail selects the preview when
// one exists.
func (s *DocumentService) Open(ctx context.Context, id uint, thumbnail bool) (*DocumentFile, error) {
	doc, err := s.documentRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fromRepo(err)
	}

	rel := doc.FilePath
	if thumbnail && doc.ThumbnailPath != nil && *doc.ThumbnailPath != "" {
		rel = *doc.ThumbnailPath
	}
	if !s.storage.Exists(rel) {
		logger.Warn("Document file missing from storage", "document_id", id, "path", rel)
		return nil, ErrNotFound
	}
	full, err := s.storage.FullPath(rel)
	if err != nil {
		return nil, err
	}
	return &DocumentFile{
		Path:        full,
		Name:        doc.OriginalName,
		ContentType: storage.ContentType(doc.FileType),
	}, nil
}

func (s *DocumentService) Delete(ctx context.Context, id uint, actor Actor) error {
	doc, err := s.documentRepo.FindByID(ctx, id)
	if err != nil {
		return fromRepo(err)
	}
	if err := s.documentRepo.Delete(ctx, id); err != nil {
		return fromRepo(err)
	}
	s.removeFiles(doc)

	s.audit.Record(ctx, actor, models.AuditActionDelete, models.AuditEntityDocument, id,
		fmt.Sprintf("Deleted %s from client %d", doc.OriginalName, doc.ClientID))
	return nil
}

func (s *DocumentService) removeFiles(doc *models.Document) {
	paths := []string{doc.FilePath}
	if doc.ThumbnailPath != nil {
		paths = append(paths, *doc.ThumbnailPath)
	}
	for _, p := range paths {
		if err := s.storage.Delete(p); err != nil && !errors.Is(err, storage.ErrInvalidPath) {
			logger.Warn("Failed to remove document file", "path", p, "error", err)
		}
	}
}
