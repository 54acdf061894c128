package adapters

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/rail-service/ledger_service/internal/domain/entities"
)

// EmailServiceConfig holds email service configuration
type EmailServiceConfig struct {
	Provider  string // "sendgrid" or "log"
	APIKey    string
	FromEmail string
	FromName  string
	BaseURL   string // for transaction links
}

// EmailService sends ledger notifications. The "log" provider writes the
// message to the logger instead of delivering it.
type EmailService struct {
	logger *zap.Logger
	config EmailServiceConfig
	client *sendgrid.Client
}

// NewEmailService creates a new email service
func NewEmailService(logger *zap.Logger, config EmailServiceConfig) (*EmailService, error) {
	provider := strings.ToLower(strings.TrimSpace(config.Provider))
	if provider == "" {
		return nil, fmt.Errorf("email provider is required")
	}
	if strings.TrimSpace(config.FromEmail) == "" {
		return nil, fmt.Errorf("email from address is required")
	}
	config.Provider = provider

	var client *sendgrid.Client
	switch provider {
	case "sendgrid":
		if strings.TrimSpace(config.APIKey) == "" {
			return nil, fmt.Errorf("sendgrid api key is required")
		}
		client = sendgrid.NewSendClient(config.APIKey)
	case "log":
	default:
		return nil, fmt.Errorf("unsupported email provider: %s", provider)
	}

	return &EmailService{logger: logger, config: config, client: client}, nil
}

// sendEmail is a helper method to send emails via the configured provider
func (e *EmailService) sendEmail(ctx context.Context, to, subject, htmlContent, textContent string) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	switch e.config.Provider {
	case "sendgrid":
		return e.sendViaSendgrid(ctxWithTimeout, to, subject, htmlContent, textContent)
	case "log":
		e.logger.Info("Email (log provider)",
			zap.String("to", to),
			zap.String("subject", subject),
			zap.String("body", textContent))
		return nil
	default:
		return fmt.Errorf("unsupported email provider: %s", e.config.Provider)
	}
}

func (e *EmailService) sendViaSendgrid(ctx context.Context, to, subject, htmlContent, textContent string) error {
	from := mail.NewEmail(e.config.FromName, e.config.FromEmail)
	message := mail.NewSingleEmail(from, subject, mail.NewEmail("", to), textContent, htmlContent)

	response, err := e.client.SendWithContext(ctx, message)
	if err != nil {
		e.logger.Error("Failed to send email",
			zap.String("provider", "sendgrid"),
			zap.String("to", to),
			zap.String("subject", subject),
			zap.Error(err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	if response.StatusCode >= 400 {
		e.logger.Error("Email service returned error",
			zap.String("provider", "sendgrid"),
			zap.String("to", to),
			zap.Int("status_code", response.StatusCode),
			zap.String("response_body", response.Body))
		return fmt.Errorf("email service error: status %d", response.StatusCode)
	}

	e.logger.Info("Email sent successfully",
		zap.String("provider", "sendgrid"),
		zap.String("to", to),
		zap.String("subject", subject),
		zap.Int("status_code", response.StatusCode))
	return nil
}

// SendTransferEmails tells the sender what left their wallet and, for client
// transfers, tells the receiver what arrived.
func (e *EmailService) SendTransferEmails(ctx context.Context, sender, receiver *entities.User, from, to *entities.Transaction) error {
	meta := from.Metadata.Transfer
	if meta == nil {
		return fmt.Errorf("transaction %s has no transfer metadata", from.ID)
	}

	sent := message{
		subject: fmt.Sprintf("Transfer of %s %s", from.Amount.String(), meta.FromCurrency),
		lines: []string{
			fmt.Sprintf("Hi %s,", greetingName(sender)),
			fmt.Sprintf("You transferred %s %s from your %s wallet.", from.Amount.String(), meta.FromCurrency, meta.FromType),
			fmt.Sprintf("Fee: %s %s", from.Fee.String(), meta.FromCurrency),
			fmt.Sprintf("Received: %s %s in the %s wallet", meta.ReceiveAmount.String(), meta.ToCurrency, meta.ToType),
			fmt.Sprintf("Status: %s", from.Status),
		},
		link: e.transactionLink(from),
	}
	if err := e.sendMessage(ctx, sender.Email, sent); err != nil {
		return err
	}

	if receiver == nil || receiver.ID == sender.ID || to == nil {
		return nil
	}
	received := message{
		subject: fmt.Sprintf("You received %s %s", meta.ReceiveAmount.String(), meta.ToCurrency),
		lines: []string{
			fmt.Sprintf("Hi %s,", greetingName(receiver)),
			fmt.Sprintf("%s sent you %s %s to your %s wallet.", sender.Email, meta.ReceiveAmount.String(), meta.ToCurrency, meta.ToType),
			fmt.Sprintf("Status: %s", to.Status),
		},
		link: e.transactionLink(to),
	}
	return e.sendMessage(ctx, receiver.Email, received)
}

// SendTransactionStatusUpdateEmail reports the current status of a withdrawal
func (e *EmailService) SendTransactionStatusUpdateEmail(ctx context.Context, user *entities.User, tx *entities.Transaction) error {
	lines := []string{
		fmt.Sprintf("Hi %s,", greetingName(user)),
		fmt.Sprintf("Your withdrawal %s is now %s.", tx.ID, tx.Status),
		fmt.Sprintf("Amount: %s", tx.Amount.String()),
		fmt.Sprintf("Fee: %s", tx.Fee.String()),
	}
	if w := tx.Metadata.Withdrawal; w != nil {
		lines = append(lines, fmt.Sprintf("Destination: %s (%s)", w.ToAddress, w.Chain))
		if w.RejectReason != "" {
			lines = append(lines, fmt.Sprintf("Reason: %s", w.RejectReason))
		}
	}
	if tx.ReferenceID != nil {
		lines = append(lines, fmt.Sprintf("Reference: %s", *tx.ReferenceID))
	}

	return e.sendMessage(ctx, user.Email, message{
		subject: fmt.Sprintf("Withdrawal %s", strings.ToLower(string(tx.Status))),
		lines:   lines,
		link:    e.transactionLink(tx),
	})
}

type message struct {
	subject string
	lines   []string
	link    string
}

func (m message) text() string {
	var b strings.Builder
	for _, line := range m.lines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	if m.link != "" {
		b.WriteString("\nDetails: ")
		b.WriteString(m.link)
		b.WriteString("\n")
	}
	return b.String()
}

func (m message) html() string {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">`)
	for _, line := range m.lines {
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(line))
		b.WriteString("</p>")
	}
	if m.link != "" {
		fmt.Fprintf(&b, `<p><a href="%s">View transaction</a></p>`, html.EscapeString(m.link))
	}
	b.WriteString("</body></html>")
	return b.String()
}

func (e *EmailService) sendMessage(ctx context.Context, to string, m message) error {
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("recipient has no e-mail address")
	}
	return e.sendEmail(ctx, to, m.subject, m.html(), m.text())
}

func (e *EmailService) transactionLink(tx *entities.Transaction) string {
	if e.config.BaseURL == "" || tx == nil {
		return ""
	}
	return fmt.Sprintf("%s/finance/transactions/%s", strings.TrimRight(e.config.BaseURL, "/"), tx.ID)
}

func greetingName(u *entities.User) string {
	if u == nil || u.FirstName == "" {
		return "there"
	}
	return u.FirstName
}
