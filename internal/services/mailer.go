package services

import (
	"context"
	"fmt"
	"html"
	"strings"

	"creator-subscription-api/internal/models"
	"creator-subscription-api/pkg/logging"

	brevo "github.com/getbrevo/brevo-go/lib"
)

// WithdrawalMailer tells a creator that an administrator decided their withdrawal
type WithdrawalMailer interface {
	SendWithdrawalDecision(ctx context.Context, withdrawal *models.Withdrawal) error
}

// BrevoMailer sends transactional email through Brevo
type BrevoMailer struct {
	client      *brevo.APIClient
	fromEmail   string
	fromName    string
	serviceName string
}

// NewBrevoMailer creates a new Brevo mailer. basePath overrides the API
// endpoint and is empty in production.
func NewBrevoMailer(apiKey, fromEmail, fromName, serviceName, basePath string) *BrevoMailer {
	cfg := brevo.NewConfiguration()
	cfg.AddDefaultHeader("api-key", apiKey)
	if basePath != "" {
		cfg.BasePath = basePath
	}

	return &BrevoMailer{
		client:      brevo.NewAPIClient(cfg),
		fromEmail:   fromEmail,
		fromName:    fromName,
		serviceName: serviceName,
	}
}

// SendWithdrawalDecision sends the approval or rejection notice
func (m *BrevoMailer) SendWithdrawalDecision(ctx context.Context, withdrawal *models.Withdrawal) error {
	if withdrawal.OwnerEmail == "" {
		logging.Warnf("No email on file for withdrawal %s, skipping notification", withdrawal.ID)
		return nil
	}

	verb := "approved"
	if withdrawal.Status == models.WithdrawalRejected {
		verb = "rejected"
	}
	amount := fmt.Sprintf("%s %d", withdrawal.Currency, withdrawal.Amount)

	subject := fmt.Sprintf("Your withdrawal was %s - %s", verb, m.serviceName)

	var note string
	if withdrawal.Note != "" {
		note = fmt.Sprintf(`<p style="color: #666; font-size: 14px;">Note from the team: %s</p>`, html.EscapeString(withdrawal.Note))
	}

	htmlContent := fmt.Sprintf(`
		<!DOCTYPE html>
		<html>
		<head>
			<meta charset="UTF-8">
			<title>Withdrawal %s</title>
		</head>
		<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
			<div style="background-color: #f8f9fa; padding: 30px; border-radius: 10px; text-align: center;">
				<h1 style="color: #333; margin-bottom: 20px;">Withdrawal %s</h1>
				<p style="color: #666; font-size: 16px;">Your withdrawal request of</p>
				<div style="background-color: #007bff; color: white; padding: 20px; border-radius: 10px; font-size: 28px; font-weight: bold; margin: 20px 0;">
					%s
				</div>
				<p style="color: #666; font-size: 16px;">has been %s.</p>
				%s
				<p style="color: #999; font-size: 12px; margin-top: 30px;">Reference: %s</p>
			</div>
		</body>
		</html>
	`, verb, verb, amount, verb, note, withdrawal.ID)

	textContent := strings.TrimSpace(fmt.Sprintf(`
Withdrawal %s

Your withdrawal request of %s has been %s.
%s
Reference: %s
`, verb, amount, verb, withdrawal.Note, withdrawal.ID))

	email := brevo.SendSmtpEmail{
		Sender: &brevo.SendSmtpEmailSender{
			Name:  m.fromName,
			Email: m.fromEmail,
		},
		To: []brevo.SendSmtpEmailTo{
			{Email: withdrawal.OwnerEmail},
		},
		Subject:     subject,
		HtmlContent: htmlContent,
		TextContent: textContent,
	}

	if _, _, err := m.client.TransactionalEmailsApi.SendTransacEmail(ctx, email); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	logging.Infof("Withdrawal decision email sent - withdrawal: %s, status: %s", withdrawal.ID, withdrawal.Status)
	return nil
}
