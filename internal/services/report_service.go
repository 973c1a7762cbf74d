package services

import (
	"bytes"
	"context"
	"embed"
	"encoding/csv"
	"fmt"
	"html/template"
	"sort"
	"time"

	"github.com/SebastiaanKlippert/go-wkhtmltopdf"

	"github.com/sjperalta/cashflow-api/internal/loan"
	"github.com/sjperalta/cashflow-api/internal/models"
	"github.com/sjperalta/cashflow-api/internal/repository"
)

//go:embed templates/reports/*.html
var reportTemplates embed.FS

type ReportService struct {
	clientRepo  repository.ClientRepository
	paymentRepo repository.PaymentRepository
	currency    string
	now         func() time.Time
}

func NewReportService(clientRepo repository.ClientRepository, paymentRepo repository.PaymentRepository, currency string) *ReportService {
	return &ReportService{
		clientRepo:  clientRepo,
		paymentRepo: paymentRepo,
		currency:    currency,
		now:         time.Now,
	}
}

type statementPayment struct {
	ID        uint
	Date      string
	Method    string
	Reference string
	Amount    string
}

type statementData struct {
	CompanyName      string
	GeneratedAt      string
	Client           *models.Client
	StartDate        string
	DueDate          string
	Principal        string
	Interest         string
	MonthsCompounded int
	AmountDue        string
	AmountDueWords   string
	AmountPaid       string
	Remaining        string
	Progress         float64
	Payments         []statementPayment
}

// StatementHTML renders a client's statement of account
func (s *ReportService) StatementHTML(ctx context.Context, clientID uint) ([]byte, *models.Client, error) {
	client, err := s.clientRepo.FindByID(ctx, clientID)
	if err != nil {
		return nil, nil, fromRepo(err)
	}
	payments, err := s.paymentRepo.ListByClient(ctx, clientID)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	b := loan.Evaluate(loan.TermsOf(client), now)
	client.AmountDue = b.AmountDue
	client.Status = loan.DeriveStatus(client.Status, b, client.DueDate, now)

	data := statementData{
		CompanyName:      companyName,
		GeneratedAt:      now.Format("02 Jan 2006 15:04"),
		Client:           client,
		StartDate:        client.StartDate.Format("02 Jan 2006"),
		DueDate:          client.DueDate.Format("02 Jan 2006"),
		Principal:        formatCurrency(s.currency, b.Principal),
		Interest:         formatCurrency(s.currency, b.Interest),
		MonthsCompounded: b.MonthsCompounded,
		AmountDue:        formatCurrency(s.currency, b.AmountDue),
		AmountDueWords:   AmountInWords(b.AmountDue),
		AmountPaid:       formatCurrency(s.currency, b.AmountPaid),
		Remaining:        formatCurrency(s.currency, b.Remaining),
		Progress:         b.PaymentProgress(),
	}

	// Oldest first reads better on a statement
	sort.SliceStable(payments, func(i, j int) bool {
		return payments[i].PaymentDate.Before(payments[j].PaymentDate)
	})
	for _, p := range payments {
		ref := ""
		if p.Reference != nil {
			ref = *p.Reference
		}
		data.Payments = append(data.Payments, statementPayment{
			ID:        p.ID,
			Date:      p.PaymentDate.Format("02 Jan 2006"),
			Method:    p.Method,
			Reference: ref,
			Amount:    formatCurrency(s.currency, p.Amount),
		})
	}

	html, err := renderReport("client_statement.html", data)
	if err != nil {
		return nil, nil, err
	}
	return html, client, nil
}

// GenerateStatementPDF renders the statement and converts it with wkhtmltopdf
func (s *ReportService) GenerateStatementPDF(ctx context.Context, clientID uint) (*bytes.Buffer, string, error) {
	html, client, err := s.StatementHTML(ctx, clientID)
	if err != nil {
		return nil, "", err
	}
	pdf, err := htmlToPDF(html)
	if err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("statement_%d_%s.pdf", client.ID, s.now().Format("2006-01-02"))
	return pdf, filename, nil
}

// GenerateOverdueCSV lists every overdue loan, most days overdue first
func (s *ReportService) GenerateOverdueCSV(ctx context.Context) (*bytes.Buffer, error) {
	clients, err := s.clientRepo.FindOpen(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	type row struct {
		client  *models.Client
		balance loan.Balance
		days    int
	}
	var rows []row
	for i := range clients {
		c := &clients[i]
		b := loan.Evaluate(loan.TermsOf(c), now)
		if loan.DeriveStatus(c.Status, b, c.DueDate, now) != models.ClientStatusOverdue {
			continue
		}
		rows = append(rows, row{client: c, balance: b, days: loan.DaysOverdue(c.DueDate, now)})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].days > rows[j].days })

	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	header := []string{"ID", "Name", "Phone", "Email", "Loan Type", "Loan Amount", "Amount Due", "Amount Paid", "Outstanding", "Due Date", "Days Overdue", "Last Payment"}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, r := range rows {
		last := ""
		if r.client.LastPaymentDate != nil {
			last = r.client.LastPaymentDate.Format("2006-01-02")
		}
		record := []string{
			fmt.Sprintf("%d", r.client.ID),
			r.client.Name,
			r.client.Phone,
			r.client.Email,
			r.client.LoanType,
			r.balance.Principal.StringFixed(2),
			r.balance.AmountDue.StringFixed(2),
			r.balance.AmountPaid.StringFixed(2),
			r.balance.Remaining.StringFixed(2),
			r.client.DueDate.Format("2006-01-02"),
			fmt.Sprintf("%d", r.days),
			last,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf, w.Error()
}

func renderReport(name string, data interface{}) ([]byte, error) {
	tmpl, err := template.ParseFS(reportTemplates, "templates/reports/"+name)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// htmlToPDF needs the wkhtmltopdf binary on PATH
func htmlToPDF(html []byte) (*bytes.Buffer, error) {
	pdfg, err := wkhtmltopdf.NewPDFGenerator()
	if err != nil {
		return nil, fmt.Errorf("failed to create pdf generator: %w", err)
	}

	pdfg.Dpi.Set(300)
	pdfg.Orientation.Set(wkhtmltopdf.OrientationPortrait)
	pdfg.PageSize.Set(wkhtmltopdf.PageSizeA4)

	page := wkhtmltopdf.NewPageReader(bytes.NewReader(html))
	page.EnableLocalFileAccess.Set(true)
	pdfg.AddPage(page)

	if err := pdfg.Create(); err != nil {
		return nil, fmt.Errorf("failed to create pdf: %w", err)
	}
	return pdfg.Buffer(), nil
}
