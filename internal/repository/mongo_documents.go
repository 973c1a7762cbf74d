package repository

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sjperalta/cashflow-api/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Document shapes for the MongoDB loan store. Field names follow the
// camelCase layout the dashboard has always read; payments, notes and
// documents are embedded in the client document.

type clientDoc struct {
	ID                    int64                 `bson:"_id"`
	Name                  string                `bson:"name"`
	Email                 string                `bson:"email"`
	Phone                 string                `bson:"phone"`
	IDNumber              string                `bson:"idNumber"`
	Address               *string               `bson:"address,omitempty"`
	Employer              *string               `bson:"employer,omitempty"`
	MonthlyIncome         *primitive.Decimal128 `bson:"monthlyIncome,omitempty"`
	LoanType              string                `bson:"loanType"`
	LoanAmount            primitive.Decimal128  `bson:"loanAmount"`
	AmountDue             primitive.Decimal128  `bson:"amountDue"`
	AmountPaid            primitive.Decimal128  `bson:"amountPaid"`
	StartDate             time.Time             `bson:"startDate"`
	DueDate               time.Time             `bson:"dueDate"`
	LastPaymentDate       *time.Time            `bson:"lastPaymentDate,omitempty"`
	Status                string                `bson:"status"`
	ApplicationDate       time.Time             `bson:"applicationDate"`
	LastStatusUpdate      time.Time             `bson:"lastStatusUpdate"`
	Archived              bool                  `bson:"archived"`
	CollateralDescription *string               `bson:"collateralDescription,omitempty"`
	CreatedAt             time.Time             `bson:"createdAt"`
	UpdatedAt             time.Time             `bson:"updatedAt"`

	PaymentHistory []paymentDoc  `bson:"paymentHistory"`
	Notes          []noteDoc     `bson:"notes"`
	Documents      []documentDoc `bson:"documents"`
}

type paymentDoc struct {
	ID              int64                `bson:"id"`
	Amount          primitive.Decimal128 `bson:"amount"`
	RequestedAmount primitive.Decimal128 `bson:"requestedAmount"`
	Date            time.Time            `bson:"date"`
	Method          string               `bson:"method"`
	Reference       *string              `bson:"reference,omitempty"`
	Notes           *string              `bson:"notes,omitempty"`
	ProcessedBy     string               `bson:"processedBy"`
	CreatedAt       time.Time            `bson:"createdAt"`
}

type noteDoc struct {
	ID        int64     `bson:"id"`
	Content   string    `bson:"content"`
	NoteType  string    `bson:"noteType"`
	CreatedBy string    `bson:"createdBy"`
	CreatedAt time.Time `bson:"createdAt"`
}

type documentDoc struct {
	ID            int64     `bson:"id"`
	FileName      string    `bson:"fileName"`
	OriginalName  string    `bson:"originalName"`
	FileSize      int64     `bson:"fileSize"`
	FileType      string    `bson:"fileType"`
	FilePath      string    `bson:"filePath"`
	ThumbnailPath *string   `bson:"thumbnailPath,omitempty"`
	Category      string    `bson:"category"`
	UploadedBy    string    `bson:"uploadedBy"`
	Description   *string   `bson:"description,omitempty"`
	CreatedAt     time.Time `bson:"uploadDate"`
}

// decimalEncoder converts amounts to Decimal128 and keeps the first failure,
// so a document can be built field by field and checked once.
type decimalEncoder struct {
	err error
}

func (e *decimalEncoder) encode(d decimal.Decimal) primitive.Decimal128 {
	if e.err != nil {
		return primitive.Decimal128{}
	}
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		e.err = fmt.Errorf("amount %s does not fit Decimal128: %w", d.String(), err)
	}
	return v
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	var enc decimalEncoder
	v := enc.encode(d)
	return v, enc.err
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	coeff, exp, err := v.BigInt()
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid Decimal128 %s: %w", v.String(), err)
	}
	return decimal.NewFromBigInt(coeff, int32(exp)), nil
}

func newClientDoc(c *models.Client) (clientDoc, error) {
	var enc decimalEncoder
	doc := clientDoc{
		ID:                    int64(c.ID),
		Name:                  c.Name,
		Email:                 c.Email,
		Phone:                 c.Phone,
		IDNumber:              c.IDNumber,
		Address:               c.Address,
		Employer:              c.Employer,
		LoanType:              c.LoanType,
		LoanAmount:            enc.encode(c.LoanAmount),
		AmountDue:             enc.encode(c.AmountDue),
		AmountPaid:            enc.encode(c.AmountPaid),
		StartDate:             c.StartDate,
		DueDate:               c.DueDate,
		LastPaymentDate:       c.LastPaymentDate,
		Status:                c.Status,
		ApplicationDate:       c.ApplicationDate,
		LastStatusUpdate:      c.LastStatusUpdate,
		Archived:              c.Archived,
		CollateralDescription: c.CollateralDescription,
		CreatedAt:             c.CreatedAt,
		UpdatedAt:             c.UpdatedAt,
		PaymentHistory:        []paymentDoc{},
		Notes:                 []noteDoc{},
		Documents:             []documentDoc{},
	}
	if c.MonthlyIncome != nil {
		income := enc.encode(*c.MonthlyIncome)
		doc.MonthlyIncome = &income
	}
	return doc, enc.err
}

func (d *clientDoc) toModel() (*models.Client, error) {
	c := &models.Client{
		ID:                    uint(d.ID),
		Name:                  d.Name,
		Email:                 d.Email,
		Phone:                 d.Phone,
		IDNumber:              d.IDNumber,
		Address:               d.Address,
		Employer:              d.Employer,
		LoanType:              d.LoanType,
		StartDate:             d.StartDate,
		DueDate:               d.DueDate,
		LastPaymentDate:       d.LastPaymentDate,
		Status:                d.Status,
		ApplicationDate:       d.ApplicationDate,
		LastStatusUpdate:      d.LastStatusUpdate,
		Archived:              d.Archived,
		CollateralDescription: d.CollateralDescription,
		CreatedAt:             d.CreatedAt,
		UpdatedAt:             d.UpdatedAt,
	}

	var err error
	if c.LoanAmount, err = fromDecimal128(d.LoanAmount); err != nil {
		return nil, err
	}
	if c.AmountDue, err = fromDecimal128(d.AmountDue); err != nil {
		return nil, err
	}
	if c.AmountPaid, err = fromDecimal128(d.AmountPaid); err != nil {
		return nil, err
	}
	if d.MonthlyIncome != nil {
		income, err := fromDecimal128(*d.MonthlyIncome)
		if err != nil {
			return nil, err
		}
		c.MonthlyIncome = &income
	}

	for i := range d.PaymentHistory {
		p, err := d.PaymentHistory[i].toModel(c.ID)
		if err != nil {
			return nil, err
		}
		c.Payments = append(c.Payments, *p)
	}
	for i := range d.Notes {
		c.Notes = append(c.Notes, *d.Notes[i].toModel(c.ID))
	}
	for i := range d.Documents {
		c.Documents = append(c.Documents, *d.Documents[i].toModel(c.ID))
	}
	return c, nil
}

func newPaymentDoc(p *models.Payment) (paymentDoc, error) {
	var enc decimalEncoder
	doc := paymentDoc{
		ID:              int64(p.ID),
		Amount:          enc.encode(p.Amount),
		RequestedAmount: enc.encode(p.RequestedAmount),
		Date:            p.PaymentDate,
		Method:          p.Method,
		Reference:       p.Reference,
		Notes:           p.Notes,
		ProcessedBy:     p.ProcessedBy,
		CreatedAt:       p.CreatedAt,
	}
	return doc, enc.err
}

func (d *paymentDoc) toModel(clientID uint) (*models.Payment, error) {
	amount, err := fromDecimal128(d.Amount)
	if err != nil {
		return nil, err
	}
	requested, err := fromDecimal128(d.RequestedAmount)
	if err != nil {
		return nil, err
	}
	return &models.Payment{
		ID:              uint(d.ID),
		ClientID:        clientID,
		Amount:          amount,
		RequestedAmount: requested,
		PaymentDate:     d.Date,
		Method:          d.Method,
		Reference:       d.Reference,
		Notes:           d.Notes,
		ProcessedBy:     d.ProcessedBy,
		CreatedAt:       d.CreatedAt,
	}, nil
}

func newNoteDoc(n *models.Note) noteDoc {
	return noteDoc{
		ID:        int64(n.ID),
		Content:   n.Content,
		NoteType:  n.NoteType,
		CreatedBy: n.CreatedBy,
		CreatedAt: n.CreatedAt,
	}
}

func (d *noteDoc) toModel(clientID uint) *models.Note {
	return &models.Note{
		ID:        uint(d.ID),
		ClientID:  clientID,
		Content:   d.Content,
		NoteType:  d.NoteType,
		CreatedBy: d.CreatedBy,
		CreatedAt: d.CreatedAt,
	}
}

func newDocumentDoc(doc *models.Document) documentDoc {
	return documentDoc{
		ID:            int64(doc.ID),
		FileName:      doc.FileName,
		OriginalName:  doc.OriginalName,
		FileSize:      doc.FileSize,
		FileType:      doc.FileType,
		FilePath:      doc.FilePath,
		ThumbnailPath: doc.ThumbnailPath,
		Category:      doc.Category,
		UploadedBy:    doc.UploadedBy,
		Description:   doc.Description,
		CreatedAt:     doc.CreatedAt,
	}
}

func (d *documentDoc) toModel(clientID uint) *models.Document {
	return &models.Document{
		ID:            uint(d.ID),
		ClientID:      clientID,
		FileName:      d.FileName,
		OriginalName:  d.OriginalName,
		FileSize:      d.FileSize,
		FileType:      d.FileType,
		FilePath:      d.FilePath,
		ThumbnailPath: d.ThumbnailPath,
		Category:      d.Category,
		UploadedBy:    d.UploadedBy,
		Description:   d.Description,
		CreatedAt:     d.CreatedAt,
	}
}

// profileFields are the client fields a profile edit may $set or $unset.
// Totals, status and the embedded histories are never written from here.
var profileFields = []string{
	"name", "email", "phone", "idNumber", "address", "employer", "monthlyIncome",
	"loanType", "dueDate", "archived", "collateralDescription", "updatedAt",
}

// profileUpdate builds the update document for a profile edit
func profileUpdate(client *models.Client) (bson.M, error) {
	doc, err := newClientDoc(client)
	if err != nil {
		return nil, err
	}
	all, err := toBSONMap(doc)
	if err != nil {
		return nil, err
	}

	set, unset := bson.M{}, bson.M{}
	for _, field := range profileFields {
		if v, ok := all[field]; ok {
			set[field] = v
		} else {
			unset[field] = ""
		}
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return update, nil
}
