package services

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
	"time"

	"github.com/jordan-wright/email"
	"github.com/resend/resend-go/v2"
	"github.com/shopspring/decimal"

	"github.com/sjperalta/cashflow-api/internal/config"
	"github.com/sjperalta/cashflow-api/internal/models"
	"github.com/sjperalta/cashflow-api/pkg/logger"
)

//go:embed templates/email/*.html
var emailTemplates embed.FS

// Message is a rendered email ready to hand to a provider
type Message struct {
	From    string
	To      []string
	Subject string
	HTML    string
}

// Sender delivers rendered emails
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender delivers mail through a plain SMTP relay
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
}

func NewSMTPSender(host string, port int, username, password string) *SMTPSender {
	return &SMTPSender{host: host, port: port, username: username, password: password}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	e := email.NewEmail()
	e.From = msg.From
	e.To = msg.To
	e.Subject = msg.Subject
	e.HTML = []byte(msg.HTML)

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	if err := e.Send(addr, auth); err != nil {
		return fmt.Errorf("smtp send to %s: %w", strings.Join(msg.To, ","), err)
	}
	return nil
}

// ResendSender delivers mail through the Resend API
type ResendSender struct {
	client *resend.Client
}

func NewResendSender(apiKey string) *ResendSender {
	return &ResendSender{client: resend.NewClient(apiKey)}
}

func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	params := &resend.SendEmailRequest{
		From:    msg.From,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
	}
	if _, err := s.client.Emails.Send(params); err != nil {
		return fmt.Errorf("resend send to %s: %w", strings.Join(msg.To, ","), err)
	}
	return nil
}

type EmailService struct {
	config *config.Config
	sender Sender
}

// NewEmailService picks the sender configured by EMAIL_PROVIDER
func NewEmailService(cfg *config.Config) *EmailService {
	var sender Sender
	switch cfg.EmailProvider {
	case config.EmailProviderResend:
		sender = NewResendSender(cfg.ResendAPIKey)
	default:
		sender = NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	}
	return NewEmailServiceWithSender(cfg, sender)
}

// NewEmailServiceWithSender creates an email service around any sender
func NewEmailServiceWithSender(cfg *config.Config, sender Sender) *EmailService {
	return &EmailService{config: cfg, sender: sender}
}

// checkEmailPreconditions reports whether an email should be sent. A false
// result with a nil error means notifications are switched off.
func (s *EmailService) checkEmailPreconditions(to []string, operation string) (bool, error) {
	if !s.config.EnableEmailNotifications {
		logger.Debug("[Email] Notifications disabled, skipping", "operation", operation)
		return false, nil
	}

	switch s.config.EmailProvider {
	case config.EmailProviderResend:
		if s.config.ResendAPIKey == "" {
			return false, errors.New("email is not configured: RESEND_API_KEY is not set")
		}
	default:
		if s.config.SMTPHost == "" {
			return false, errors.New("email is not configured: SMTP_HOST is not set")
		}
	}
	if s.config.FromEmail == "" {
		return false, errors.New("email is not configured: FROM_EMAIL is not set")
	}

	if len(to) == 0 {
		return false, errors.New("email address is empty")
	}
	for _, addr := range to {
		if strings.TrimSpace(addr) == "" {
			return false, errors.New("email address is empty")
		}
	}
	return true, nil
}

func (s *EmailService) send(ctx context.Context, to []string, subject, templateName string, data interface{}) error {
	ok, err := s.checkEmailPreconditions(to, subject)
	if err != nil || !ok {
		return err
	}

	body, err := s.renderTemplate(templateName, data)
	if err != nil {
		return err
	}

	msg := Message{From: s.config.FromEmail, To: to, Subject: subject, HTML: body}
	if err := s.sender.Send(ctx, msg); err != nil {
		logger.Error("[Email] Failed to send", "to", strings.Join(to, ","), "subject", subject, "error", err)
		return err
	}

	logger.Info("[Email] Sent", "to", strings.Join(to, ","), "subject", subject)
	return nil
}

// SendPaymentReceipt confirms a payment to the borrower
func (s *EmailService) SendPaymentReceipt(ctx context.Context, client *models.Client, payment *models.Payment, remaining decimal.Decimal) error {
	currency := s.config.CurrencySymbol
	reference := ""
	if payment.Reference != nil {
		reference = *payment.Reference
	}

	data := struct {
		Name        string
		ClientID    uint
		PaymentID   uint
		Amount      string
		Requested   string
		Capped      bool
		Method      string
		Reference   string
		PaidAt      string
		AmountPaid  string
		Remaining   string
		FullyPaid   bool
		DueDate     string
		CompanyName string
	}{
		Name:        client.Name,
		ClientID:    client.ID,
		PaymentID:   payment.ID,
		Amount:      formatCurrency(currency, payment.Amount),
		Requested:   formatCurrency(currency, payment.RequestedAmount),
		Capped:      payment.WasCapped(),
		Method:      payment.Method,
		Reference:   reference,
		PaidAt:      payment.PaymentDate.Format("02 Jan 2006 15:04"),
		AmountPaid:  formatCurrency(currency, client.AmountPaid),
		Remaining:   formatCurrency(currency, remaining),
		FullyPaid:   !remaining.IsPositive(),
		DueDate:     client.DueDate.Format("02 Jan 2006"),
		CompanyName: companyName,
	}

	subject := fmt.Sprintf("Payment received: %s", data.Amount)
	return s.send(ctx, []string{client.Email}, subject, "payment_receipt.html", data)
}

// SendPaymentDueDigest emails the month-end collection list to the team
func (s *EmailService) SendPaymentDueDigest(ctx context.Context, recipients []string, digest *PaymentDueDigest) error {
	subject := fmt.Sprintf("Payment due digest: %d clients, %s outstanding", len(digest.Entries), digest.TotalOutstanding)
	return s.send(ctx, recipients, subject, "payment_due_digest.html", digest)
}

// SendAccountCreated welcomes a new back-office user
func (s *EmailService) SendAccountCreated(ctx context.Context, user *models.User) error {
	data := struct {
		Name        string
		Email       string
		Role        string
		CompanyName string
	}{
		Name:        user.FullName,
		Email:       user.Email,
		Role:        user.Role,
		CompanyName: companyName,
	}
	return s.send(ctx, []string{user.Email}, "Your "+companyName+" account", "account_created.html", data)
}

// SendRecoveryCode emails a password recovery code to a back-office user
func (s *EmailService) SendRecoveryCode(ctx context.Context, user *models.User, code string, ttl time.Duration) error {
	data := struct {
		Name        string
		Code        string
		Minutes     int
		CompanyName string
	}{
		Name:        user.FullName,
		Code:        code,
		Minutes:     int(ttl.Minutes()),
		CompanyName: companyName,
	}
	return s.send(ctx, []string{user.Email}, "Your "+companyName+" recovery code", "recovery_code.html", data)
}

func (s *EmailService) renderTemplate(name string, data interface{}) (string, error) {
	tmpl, err := template.ParseFS(emailTemplates, "templates/email/"+name)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}

	return buf.String(), nil
}

const companyName = "CashFlow Loans"

// formatCurrency renders an amount as "R 12,345.67"
func formatCurrency(symbol string, d decimal.Decimal) string {
	s := d.StringFixed(2)
	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	out := b.String() + frac
	if negative {
		out = "-" + out
	}
	if symbol == "" {
		return out
	}
	return symbol + " " + out
}
