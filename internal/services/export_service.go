package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"github.com/sjperalta/cashflow-api/internal/loan"
	"github.com/sjperalta/cashflow-api/internal/models"
	"github.com/sjperalta/cashflow-api/internal/repository"
)

// Export formats
const (
	ExportCSV  = "csv"
	ExportXLSX = "xlsx"
	ExportPDF  = "pdf"
)

// ExportFile is a generated download
type ExportFile struct {
	Data        []byte
	Filename    string
	ContentType string
}

type ExportService struct {
	clientRepo repository.ClientRepository
	analytics  *AnalyticsService
	currency   string
	now        func() time.Time
}

func NewExportService(clientRepo repository.ClientRepository, analytics *AnalyticsService, currency string) *ExportService {
	return &ExportService{clientRepo: clientRepo, analytics: analytics, currency: currency, now: time.Now}
}

var exportHeader = []string{"ID", "Name", "Email", "Phone", "ID Number", "Loan Type", "Status", "Loan Amount", "Amount Due", "Amount Paid", "Outstanding", "Start Date", "Due Date"}

type exportRow struct {
	client  models.Client
	status  string
	balance loan.Balance
}

func (r exportRow) cells() []string {
	return []string{
		fmt.Sprintf("%d", r.client.ID),
		r.client.Name,
		r.client.Email,
		r.client.Phone,
		r.client.IDNumber,
		r.client.LoanType,
		r.status,
		r.balance.Principal.StringFixed(2),
		r.balance.AmountDue.StringFixed(2),
		r.balance.AmountPaid.StringFixed(2),
		r.balance.Remaining.StringFixed(2),
		r.client.StartDate.Format("2006-01-02"),
		r.client.DueDate.Format("2006-01-02"),
	}
}

// ExportClients renders every non-archived client in the requested format
func (s *ExportService) ExportClients(ctx context.Context, format string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportCSV
	}
	if format != ExportCSV && format != ExportXLSX && format != ExportPDF {
		return nil, NewValidationError("Format must be one of: csv, xlsx, pdf")
	}

	clients, err := s.clientRepo.FindAll(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to load clients: %w", err)
	}
	now := s.now()
	rows := make([]exportRow, len(clients))
	for i, c := range clients {
		b := loan.Evaluate(loan.TermsOf(&c), now)
		rows[i] = exportRow{client: c, status: loan.DeriveStatus(c.Status, b, c.DueDate, now), balance: b}
	}

	base := fmt.Sprintf("clients_%s", now.Format("2006-01-02"))
	switch format {
	case ExportXLSX:
		data, err := s.xlsx(ctx, rows)
		if err != nil {
			return nil, err
		}
		return &ExportFile{Data: data, Filename: base + ".xlsx",
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"}, nil
	case ExportPDF:
		data, err := s.pdf(ctx, rows, now)
		if err != nil {
			return nil, err
		}
		return &ExportFile{Data: data, Filename: base + ".pdf", ContentType: "application/pdf"}, nil
	default:
		data, err := s.csv(rows)
		if err != nil {
			return nil, err
		}
		return &ExportFile{Data: data, Filename: base + ".csv", ContentType: "text/csv"}, nil
	}
}

func (s *ExportService) csv(rows []exportRow) ([]byte, error) {
	buf := new(bytes.Buffer)
	w := csv.NewWriter(buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, r := range rows {
		if err := w.Write(r.cells()); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func (s *ExportService) xlsx(ctx context.Context, rows []exportRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Clients"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	moneyStyle, _ := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00

	for i, h := range exportHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(exportHeader))
	_ = f.SetCellStyle(sheet, "A1", lastCol+"1", headerStyle)

	for i, r := range rows {
		row := i + 2
		values := []interface{}{
			r.client.ID, r.client.Name, r.client.Email, r.client.Phone, r.client.IDNumber,
			r.client.LoanType, r.status,
			r.balance.Principal.InexactFloat64(), r.balance.AmountDue.InexactFloat64(),
			r.balance.AmountPaid.InexactFloat64(), r.balance.Remaining.InexactFloat64(),
			r.client.StartDate.Format("2006-01-02"), r.client.DueDate.Format("2006-01-02"),
		}
		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(sheet, start, &values); err != nil {
			return nil, err
		}
	}
	if len(rows) > 0 {
		_ = f.SetCellStyle(sheet, "H2", fmt.Sprintf("K%d", len(rows)+1), moneyStyle)
	}
	_ = f.SetColWidth(sheet, "B", "C", 28)

	if s.analytics != nil {
		if err := s.summarySheet(ctx, f); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *ExportService) summarySheet(ctx context.Context, f *excelize.File) error {
	summary, err := s.analytics.Summary(ctx)
	if err != nil {
		return err
	}
	sheet := "Summary"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	lines := [][]interface{}{
		{"Metric", "Value"},
		{"Total clients", summary.TotalClients},
		{"Total loan amount", summary.TotalLoanAmount},
		{"Total amount due", summary.TotalAmountDue},
		{"Total amount paid", summary.TotalAmountPaid},
		{"Total outstanding", summary.TotalOutstanding},
		{"Active loans", summary.ActiveLoans},
		{"Overdue", summary.OverdueCount},
		{"Paid", summary.PaidCount},
		{"Repayment rate %", summary.RepaymentRate},
	}
	for i, line := range lines {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &line); err != nil {
			return err
		}
	}
	return nil
}

func (s *ExportService) pdf(ctx context.Context, rows []exportRow, now time.Time) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, companyName+" - Clients")
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 9)
	pdf.Cell(0, 8, "Generated "+now.Format("02 Jan 2006 15:04"))
	pdf.Ln(10)

	if s.analytics != nil {
		if summary, err := s.analytics.Summary(ctx); err == nil {
			pdf.SetFont("Arial", "B", 10)
			pdf.Cell(0, 6, fmt.Sprintf("%d clients, %d overdue, outstanding %s %.2f, repayment rate %.2f%%",
				summary.TotalClients, summary.OverdueCount, s.currency, summary.TotalOutstanding, summary.RepaymentRate))
			pdf.Ln(8)
		}
	}

	cols := []struct {
		title string
		width float64
		index int
	}{
		{"ID", 12, 0}, {"Name", 50, 1}, {"Phone", 30, 3}, {"Type", 30, 5}, {"Status", 28, 6},
		{"Loan", 28, 7}, {"Due", 28, 8}, {"Paid", 28, 9}, {"Outstanding", 28, 10}, {"Due Date", 25, 12},
	}

	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(224, 224, 224)
	for _, c := range cols {
		pdf.CellFormat(c.width, 7, c.title, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for _, r := range rows {
		cells := r.cells()
		for _, c := range cols {
			align := "L"
			if c.index >= 7 && c.index <= 10 {
				align = "R"
			}
			pdf.CellFormat(c.width, 6, cells[c.index], "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := new(bytes.Buffer)
	if err := pdf.Output(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
