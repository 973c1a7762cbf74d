package services

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjperalta/cashflow-api/internal/models"
	"github.com/sjperalta/cashflow-api/internal/repository"
	"github.com/sjperalta/cashflow-api/internal/storage"
)

func uploadHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(body, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { form.RemoveAll() })
	return form.File["file"][0]
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{R: 200, A: 255})
	}
	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

type intakeFixture struct {
	service       *IntakeService
	store         *storage.LocalStorage
	created       []*models.Client
	docs          *mockDocumentRepo
	notes         *mockNoteRepo
	audit         *mockAuditRepo
	notifications *mockNotificationRepo
}

func newIntakeFixture(t *testing.T) *intakeFixture {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir(), 1<<20)
	require.NoError(t, err)

	f := &intakeFixture{
		store:         store,
		docs:          &mockDocumentRepo{},
		notes:         &mockNoteRepo{},
		audit:         &mockAuditRepo{},
		notifications: &mockNotificationRepo{},
	}
	clientRepo := &mockClientRepo{
		mockCreate: func(ctx context.Context, client *models.Client) error {
			client.ID = uint(20 + len(f.created) + 1)
			f.created = append(f.created, client)
			return nil
		},
		mockFindByID: func(ctx context.Context, id uint) (*models.Client, error) {
			for _, c := range f.created {
				if c.ID == id {
					return c, nil
				}
			}
			return nil, repository.ErrNotFound
		},
	}
	users := &mockUserRepo{
		mockFindStaff: func(ctx context.Context) ([]models.User, error) {
			return []models.User{{ID: 1}}, nil
		},
	}
	cfg := testEmailConfig()
	audit := NewAuditService(f.audit)
	notification := NewNotificationService(f.notifications, users, clientRepo, NewEmailServiceWithSender(cfg, &recordingSender{}), audit, cfg)

	clients := newClientService(clientRepo, f.notes, f.audit, notification)
	documents := NewDocumentService(f.docs, clientRepo, store, NewImageService(store), audit)
	f.service = NewIntakeService(clients, documents, f.notes, notification, audit, nil)
	f.service.now = fixedClock(march10)
	return f
}

func validApplication() ApplicationInput {
	return ApplicationInput{
		Name:       "Thandi",
		Surname:    "Mokoena",
		IDNumber:   "9001015009087",
		Phone:      "0821234567",
		Email:      "thandi@example.com",
		LoanAmount: 5000,
		Terms:      true,
	}
}

func TestIntakeService_SubmitUnsecured(t *testing.T) {
	f := newIntakeFixture(t)

	result, err := f.service.SubmitUnsecured(context.Background(), UnsecuredApplication{
		ApplicationInput: validApplication(),
		Payslip:          uploadHeader(t, "payslip.pdf", []byte("%PDF-1.4 payslip")),
		IDDocument:       uploadHeader(t, "id.png", pngBytes(t, 600, 400)),
	}, SystemActor)
	require.NoError(t, err)

	assert.Equal(t, uint(21), result.ClientID)
	assert.Equal(t, 2, result.Documents)
	assert.Equal(t, "Unsecured Loan application submitted successfully.", result.Message)

	require.Len(t, f.created, 1)
	client := f.created[0]
	assert.Equal(t, "Thandi Mokoena", client.Name)
	assert.Equal(t, "9001015009087", client.IDNumber)
	assert.Equal(t, models.ClientStatusNewLead, client.Status)
	assert.True(t, client.AmountDue.Equal(dec("7500")))

	require.Len(t, f.docs.docs, 2)
	assert.Equal(t, models.DocumentCategoryPayslip, f.docs.docs[0].Category)
	assert.Nil(t, f.docs.docs[0].ThumbnailPath)
	assert.Equal(t, models.DocumentCategoryIDDocument, f.docs.docs[1].Category)
	require.NotNil(t, f.docs.docs[1].ThumbnailPath)
	assert.True(t, f.store.Exists(*f.docs.docs[1].ThumbnailPath))

	require.Len(t, f.notes.notes, 1)
	assert.Equal(t, applicationNote, f.notes.notes[0].Content)
	assert.Contains(t, f.audit.actions(), models.AuditActionApply)
	assert.Equal(t, []string{models.NotificationTypeNewApplication}, f.notifications.types())
}

func TestIntakeService_SubmitSecured(t *testing.T) {
	f := newIntakeFixture(t)

	app := SecuredApplication{
		ApplicationInput:      validApplication(),
		CollateralDescription: "  2015 Toyota Corolla ",
		CollateralImages: []*multipart.FileHeader{
			uploadHeader(t, "front.png", pngBytes(t, 40, 30)),
			uploadHeader(t, "back.png", pngBytes(t, 40, 30)),
		},
	}
	result, err := f.service.SubmitSecured(context.Background(), app, SystemActor)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Documents)

	client := f.created[0]
	assert.Equal(t, models.LoanTypeSecured, client.LoanType)
	require.NotNil(t, client.CollateralDescription)
	assert.Equal(t, "2015 Toyota Corolla", *client.CollateralDescription)
	for _, d := range f.docs.docs {
		assert.Equal(t, models.DocumentCategoryCollateral, d.Category)
	}
}

func TestIntakeService_RejectsBeforeWriting(t *testing.T) {
	f := newIntakeFixture(t)

	_, err := f.service.SubmitUnsecured(context.Background(), UnsecuredApplication{
		ApplicationInput: validApplication(),
		Payslip:          uploadHeader(t, "payslip.pdf", []byte("%PDF-1.4")),
		BankStatement:    uploadHeader(t, "statement.exe", []byte("MZ")),
	}, SystemActor)
	assert.ErrorIs(t, err, ErrInvalidFile)
	assert.Contains(t, err.Error(), "statement.exe")
	assert.Empty(t, f.created)
	assert.Empty(t, f.docs.docs)

	app := validApplication()
	app.Terms = false
	app.IDNumber = ""
	_, err = f.service.SubmitUnsecured(context.Background(), UnsecuredApplication{ApplicationInput: app}, SystemActor)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, []string{"ID number is required", "Terms and conditions must be accepted"}, vErr.Messages)
	assert.Empty(t, f.created)
}

func TestDocumentService_UploadAndOpen(t *testing.T) {
	f := newIntakeFixture(t)
	_, err := f.service.SubmitUnsecured(context.Background(), UnsecuredApplication{ApplicationInput: validApplication()}, SystemActor)
	require.NoError(t, err)
	documents := f.service.documents

	_, err = documents.Upload(context.Background(), 21, UploadInput{}, SystemActor)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, []string{"File is required"}, vErr.Messages)

	_, err = documents.Upload(context.Background(), 99, UploadInput{File: uploadHeader(t, "a.pdf", []byte("%PDF"))}, SystemActor)
	assert.ErrorIs(t, err, ErrNotFound)

	doc, err := documents.Upload(context.Background(), 21, UploadInput{
		File:     uploadHeader(t, "car.png", pngBytes(t, 800, 600)),
		Category: models.DocumentCategoryCollateral,
	}, Actor{Email: "clerk@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "clerk@example.com", doc.UploadedBy)

	file, err := documents.Open(context.Background(), doc.ID, true)
	require.NoError(t, err)
	assert.Equal(t, "car.png", file.Name)
	assert.Equal(t, "image/png", file.ContentType)

	thumb, err := os.Open(file.Path)
	require.NoError(t, err)
	defer thumb.Close()
	cfg, _, err := image.DecodeConfig(thumb)
	require.NoError(t, err)
	assert.Equal(t, 256, cfg.Width)
	assert.Equal(t, 192, cfg.Height)

	// A row whose file is gone from disk reads as missing
	require.NoError(t, f.store.Delete(doc.FilePath))
	_, err = documents.Open(context.Background(), doc.ID, false)
	assert.ErrorIs(t, err, ErrNotFound)
}
