package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-donations/app/entity"
)

var ErrNotConfigured = errors.New("email sender is not configured")

type ResendConfig struct {
	APIKey       string
	FromAddress  string
	AdminAddress string
	APIBaseURL   string
	HTTPTimeout  time.Duration
}

// ResendMailer sends transactional email through the Resend REST API. Every
// send is best-effort from the caller's point of view; failures carry no
// payment-state consequences.
type ResendMailer struct {
	cfg    ResendConfig
	client *http.Client
}

func NewResendMailer(cfg ResendConfig) *ResendMailer {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		cfg.APIBaseURL = "https://api.resend.com"
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")

	return &ResendMailer{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (m *ResendMailer) SendDonationReceipt(ctx context.Context, donation *entity.Donation) error {
	subject := "Thank you for your donation!"
	intro := fmt.Sprintf("<p>Dear %s,</p><p>Thank you for your generous donation of %s to our sled hockey program.</p>",
		htmlEscape(donation.DonorName), formatAmount(donation.AmountCents))
	if tag := derefString(donation.EventTag); tag != "" {
		subject = fmt.Sprintf("Thank you for supporting %s!", tag)
		intro = fmt.Sprintf("<p>Dear %s,</p><p>Thank you for your %s donation of %s.</p>",
			htmlEscape(donation.DonorName), htmlEscape(tag), formatAmount(donation.AmountCents))
	}

	body := intro
	if donation.Kind == entity.DonationKindRecurring {
		body += "<p>Your monthly gift will be charged automatically each billing cycle. You can cancel at any time by contacting us.</p>"
	}
	if honoree := derefString(donation.PlayerHonoree); honoree != "" {
		body += fmt.Sprintf("<p>Your gift honors %s.</p>", htmlEscape(honoree))
	}
	body += "<p>With gratitude,<br>The Team</p>"

	return m.send(ctx, donation.DonorEmail, subject, body)
}

func (m *ResendMailer) SendAdminDonationAlert(ctx context.Context, donation *entity.Donation) error {
	if strings.TrimSpace(m.cfg.AdminAddress) == "" {
		return ErrNotConfigured
	}

	donorLine := htmlEscape(donation.DonorName)
	if donation.Anonymous {
		donorLine += " (anonymous on public lists)"
	}

	subject := fmt.Sprintf("New %s donation: %s", donation.Kind, formatAmount(donation.AmountCents))
	if tag := derefString(donation.EventTag); tag != "" {
		subject = fmt.Sprintf("[%s] %s", tag, subject)
	}

	body := fmt.Sprintf("<p>Donation received.</p><ul><li>Donor: %s</li><li>Email: %s</li><li>Amount: %s</li><li>Kind: %s</li>",
		donorLine, htmlEscape(donation.DonorEmail), formatAmount(donation.AmountCents), donation.Kind)
	if company := derefString(donation.Company); company != "" {
		body += fmt.Sprintf("<li>Company: %s</li>", htmlEscape(company))
	}
	if campaign := derefString(donation.CampaignID); campaign != "" {
		body += fmt.Sprintf("<li>Campaign: %s</li>", htmlEscape(campaign))
	}
	if message := derefString(donation.Message); message != "" {
		body += fmt.Sprintf("<li>Message: %s</li>", htmlEscape(message))
	}
	body += "</ul>"

	return m.send(ctx, m.cfg.AdminAddress, subject, body)
}

func (m *ResendMailer) SendRegistrationConfirmation(ctx context.Context, registration *entity.EventRegistration) error {
	subject := fmt.Sprintf("Registration confirmed: %s", registration.EventName)
	body := fmt.Sprintf("<p>Hi %s,</p><p>Your registration for %s is confirmed.</p><ul><li>Package: %s (%s)</li>",
		htmlEscape(registration.ContactName),
		htmlEscape(registration.EventName),
		htmlEscape(registration.PackageName),
		formatAmount(registration.PackagePriceCents),
	)
	for _, addon := range registration.Addons {
		body += fmt.Sprintf("<li>Add-on: %s (%s)</li>", htmlEscape(addon.Name), formatAmount(addon.PriceCents))
	}
	if registration.DonationCents > 0 {
		body += fmt.Sprintf("<li>Donation: %s</li>", formatAmount(registration.DonationCents))
	}
	body += fmt.Sprintf("<li>Total paid: %s</li></ul><p>See you there!</p>", formatAmount(registration.TotalCents))

	return m.send(ctx, registration.ContactEmail, subject, body)
}

func (m *ResendMailer) SendAdminRegistrationAlert(ctx context.Context, registration *entity.EventRegistration) error {
	if strings.TrimSpace(m.cfg.AdminAddress) == "" {
		return ErrNotConfigured
	}

	subject := fmt.Sprintf("New registration: %s (%s)", registration.EventName, formatAmount(registration.TotalCents))
	body := fmt.Sprintf("<p>Registration paid.</p><ul><li>Event: %s</li><li>Contact: %s &lt;%s&gt;</li><li>Package: %s</li><li>Total: %s</li></ul>",
		htmlEscape(registration.EventName),
		htmlEscape(registration.ContactName),
		htmlEscape(registration.ContactEmail),
		htmlEscape(registration.PackageName),
		formatAmount(registration.TotalCents),
	)

	return m.send(ctx, m.cfg.AdminAddress, subject, body)
}

func (m *ResendMailer) send(ctx context.Context, to, subject, html string) error {
	if strings.TrimSpace(m.cfg.APIKey) == "" {
		return ErrNotConfigured
	}
	if strings.TrimSpace(to) == "" {
		return errors.New("recipient address is empty")
	}

	payload := map[string]interface{}{
		"from":    m.cfg.FromAddress,
		"to":      []string{to},
		"subject": subject,
		"html":    html,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.APIBaseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+m.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("resend request failed: status=%d body=%s", resp.StatusCode, string(respBody))
	}

	return nil
}

func formatAmount(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func htmlEscape(v string) string {
	replacer := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return replacer.Replace(v)
}
