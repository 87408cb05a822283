package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vibast-solutions/ms-go-donations/app/entity"
)

func TestSendDonationReceiptPostsToResend(t *testing.T) {
	var gotPath, gotAuth string
	var gotPayload map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)
		_, _ = w.Write([]byte(`{"id":"email_1"}`))
	}))
	defer server.Close()

	m := NewResendMailer(ResendConfig{
		APIKey:      "re_test",
		FromAddress: "donations@sledhockey.example",
		APIBaseURL:  server.URL,
	})

	tag := "golf-2026"
	donation := &entity.Donation{
		DonorName:   "Pat Donor",
		DonorEmail:  "pat@example.com",
		AmountCents: 2500,
		Kind:        entity.DonationKindRecurring,
		EventTag:    &tag,
	}
	if err := m.SendDonationReceipt(context.Background(), donation); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	if gotPath != "/emails" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotAuth != "Bearer re_test" {
		t.Fatalf("unexpected authorization %q", gotAuth)
	}
	if got, _ := gotPayload["subject"].(string); !strings.Contains(got, "golf-2026") {
		t.Fatalf("expected event tag in subject, got %q", got)
	}
	if got, _ := gotPayload["html"].(string); !strings.Contains(got, "$25.00") {
		t.Fatalf("expected formatted amount in body, got %q", got)
	}
	if got, _ := gotPayload["html"].(string); !strings.Contains(got, "monthly gift") {
		t.Fatalf("expected recurring note in body, got %q", got)
	}
}

func TestSendAdminDonationAlertRequiresAdminAddress(t *testing.T) {
	m := NewResendMailer(ResendConfig{APIKey: "re_test", FromAddress: "donations@sledhockey.example"})

	err := m.SendAdminDonationAlert(context.Background(), &entity.Donation{
		DonorName:   "Pat Donor",
		DonorEmail:  "pat@example.com",
		AmountCents: 2500,
		Kind:        entity.DonationKindOneTime,
	})
	if err != ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestSendWithoutAPIKeyIsNotConfigured(t *testing.T) {
	m := NewResendMailer(ResendConfig{FromAddress: "donations@sledhockey.example"})

	err := m.SendDonationReceipt(context.Background(), &entity.Donation{
		DonorName:   "Pat Donor",
		DonorEmail:  "pat@example.com",
		AmountCents: 2500,
		Kind:        entity.DonationKindOneTime,
	})
	if err != ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestSendRegistrationConfirmationListsLineItems(t *testing.T) {
	var gotPayload map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)
		_, _ = w.Write([]byte(`{"id":"email_1"}`))
	}))
	defer server.Close()

	m := NewResendMailer(ResendConfig{
		APIKey:      "re_test",
		FromAddress: "donations@sledhockey.example",
		APIBaseURL:  server.URL,
	})

	registration := &entity.EventRegistration{
		EventName:         "Golf Classic",
		ContactName:       "Sam Contact",
		ContactEmail:      "sam@example.com",
		PackageName:       "Foursome",
		PackagePriceCents: 40000,
		Addons:            []entity.RegistrationAddon{{Name: "Mulligan Pack", PriceCents: 2500}},
		DonationCents:     1000,
		SubtotalCents:     42500,
		TotalCents:        43500,
	}
	if err := m.SendRegistrationConfirmation(context.Background(), registration); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	html, _ := gotPayload["html"].(string)
	for _, want := range []string{"Golf Classic", "Foursome", "Mulligan Pack", "$435.00"} {
		if !strings.Contains(html, want) {
			t.Fatalf("expected %q in body, got %q", want, html)
		}
	}
}
