package provider

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func signPayload(payload []byte, secret string, ts int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(fmt.Sprintf("%d.%s", ts, string(payload))))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifyStripeSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	secret := "whsec_test"
	header := signPayload(payload, secret, time.Now().Unix())

	if !verifyStripeSignature(payload, header, secret, 300) {
		t.Fatal("expected signature to validate")
	}
	if verifyStripeSignature(payload, header, "wrong-secret", 300) {
		t.Fatal("expected signature with wrong secret to fail")
	}
}

func TestVerifyStripeSignatureRejectsStaleTimestamp(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	secret := "whsec_test"
	header := signPayload(payload, secret, time.Now().Add(-time.Hour).Unix())

	if verifyStripeSignature(payload, header, secret, 300) {
		t.Fatal("expected stale timestamp to fail")
	}
}

func TestVerifyAndParseEventWithSecret(t *testing.T) {
	gateway := NewStripeGateway(StripeConfig{SecretKey: "sk_test", WebhookSecret: "whsec_test"})
	payload := []byte(`{
		"id": "evt_1",
		"type": "payment_intent.succeeded",
		"data": {"object": {
			"id": "pi_1",
			"status": "succeeded",
			"metadata": {"record_type": "donation", "donor_name": "Pat", "donor_email": "pat@example.com", "anonymous": "true"}
		}}
	}`)

	event, err := gateway.VerifyAndParseEvent(payload, signPayload(payload, "whsec_test", time.Now().Unix()))
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if event.Type != "payment_intent.succeeded" {
		t.Fatalf("unexpected type %q", event.Type)
	}
	if event.PaymentIntent == nil || event.PaymentIntent.ID != "pi_1" {
		t.Fatalf("unexpected intent %+v", event.PaymentIntent)
	}
	if event.PaymentIntent.Metadata.DonorEmail != "pat@example.com" {
		t.Fatalf("unexpected metadata %+v", event.PaymentIntent.Metadata)
	}
	if !event.PaymentIntent.Metadata.Anonymous {
		t.Fatal("expected anonymous metadata flag")
	}

	if _, err := gateway.VerifyAndParseEvent(payload, "t=1,v1=deadbeef"); err != ErrInvalidSignature {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyAndParseEventTrustedWithoutSecret(t *testing.T) {
	gateway := NewStripeGateway(StripeConfig{SecretKey: "sk_test"})
	payload := []byte(`{
		"id": "evt_2",
		"type": "invoice.payment_succeeded",
		"data": {"object": {
			"id": "in_1",
			"subscription": "sub_1",
			"payment_intent": {"id": "pi_2", "client_secret": "pi_2_secret"},
			"period_end": 1767225600
		}}
	}`)

	event, err := gateway.VerifyAndParseEvent(payload, "")
	if err != nil {
		t.Fatalf("trusted parse failed: %v", err)
	}
	if event.Invoice == nil {
		t.Fatal("expected an invoice object")
	}
	if event.Invoice.SubscriptionID != "sub_1" {
		t.Fatalf("unexpected subscription id %q", event.Invoice.SubscriptionID)
	}
	if event.Invoice.PaymentIntentID != "pi_2" {
		t.Fatalf("unexpected payment intent id %q", event.Invoice.PaymentIntentID)
	}
	if event.Invoice.PeriodEnd.IsZero() {
		t.Fatal("expected parsed period end")
	}
}

func TestVerifyAndParseEventSubscriptionObject(t *testing.T) {
	gateway := NewStripeGateway(StripeConfig{SecretKey: "sk_test"})
	payload := []byte(`{
		"id": "evt_3",
		"type": "customer.subscription.deleted",
		"data": {"object": {
			"id": "sub_1",
			"customer": "cus_1",
			"status": "canceled",
			"latest_invoice": "in_9"
		}}
	}`)

	event, err := gateway.VerifyAndParseEvent(payload, "")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if event.Subscription == nil || event.Subscription.ID != "sub_1" {
		t.Fatalf("unexpected subscription %+v", event.Subscription)
	}
	if event.Subscription.CustomerID != "cus_1" {
		t.Fatalf("unexpected customer id %q", event.Subscription.CustomerID)
	}
	if event.Subscription.LatestInvoiceID != "in_9" {
		t.Fatalf("unexpected latest invoice id %q", event.Subscription.LatestInvoiceID)
	}
}

func TestCreatePaymentIntentSendsFormAndMetadata(t *testing.T) {
	var gotPath, gotAuth string
	var gotForm map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = r.ParseForm()
		gotForm = r.PostForm
		_, _ = w.Write([]byte(`{"id":"pi_1","client_secret":"pi_1_secret","status":"requires_payment_method","amount":2500}`))
	}))
	defer server.Close()

	gateway := NewStripeGateway(StripeConfig{SecretKey: "sk_test", APIBaseURL: server.URL})
	intent, err := gateway.CreatePaymentIntent(context.Background(), &PaymentIntentInput{
		AmountCents: 2500,
		Currency:    "USD",
		Description: "Donation from Pat",
		Metadata: &IntentMetadata{
			RecordType: RecordTypeDonation,
			DonorName:  "Pat",
			DonorEmail: "pat@example.com",
			EventTag:   "golf-2026",
		},
	})
	if err != nil {
		t.Fatalf("create intent failed: %v", err)
	}
	if intent.ID != "pi_1" || intent.ClientSecret != "pi_1_secret" {
		t.Fatalf("unexpected intent %+v", intent)
	}

	if gotPath != "/v1/payment_intents" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotAuth != "Bearer sk_test" {
		t.Fatalf("unexpected authorization header %q", gotAuth)
	}
	if got := gotForm["amount"]; len(got) != 1 || got[0] != "2500" {
		t.Fatalf("unexpected amount %v", got)
	}
	if got := gotForm["currency"]; len(got) != 1 || got[0] != "usd" {
		t.Fatalf("unexpected currency %v", got)
	}
	if got := gotForm["automatic_payment_methods[enabled]"]; len(got) != 1 || got[0] != "true" {
		t.Fatalf("expected automatic payment methods enabled, got %v", got)
	}
	if got := gotForm["metadata[event_tag]"]; len(got) != 1 || got[0] != "golf-2026" {
		t.Fatalf("unexpected event tag metadata %v", got)
	}
	if got := gotForm["metadata[record_type]"]; len(got) != 1 || got[0] != "donation" {
		t.Fatalf("unexpected record type metadata %v", got)
	}
}

func TestCreateSubscriptionParsesExpandedInvoice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if got := r.PostForm.Get("payment_behavior"); got != "default_incomplete" {
			t.Errorf("unexpected payment_behavior %q", got)
		}
		if got := r.PostForm.Get("expand[]"); got != "latest_invoice.payment_intent" {
			t.Errorf("unexpected expand %q", got)
		}
		_, _ = w.Write([]byte(`{
			"id": "sub_1",
			"customer": "cus_1",
			"status": "incomplete",
			"current_period_end": 1767225600,
			"latest_invoice": {
				"id": "in_1",
				"payment_intent": {"id": "pi_1", "client_secret": "pi_1_secret"}
			}
		}`))
	}))
	defer server.Close()

	gateway := NewStripeGateway(StripeConfig{SecretKey: "sk_test", APIBaseURL: server.URL})
	subscription, err := gateway.CreateSubscription(context.Background(), &SubscriptionInput{
		CustomerID: "cus_1",
		PriceID:    "price_1",
	})
	if err != nil {
		t.Fatalf("create subscription failed: %v", err)
	}
	if subscription.ID != "sub_1" {
		t.Fatalf("unexpected id %q", subscription.ID)
	}
	if subscription.LatestInvoiceID != "in_1" {
		t.Fatalf("unexpected latest invoice %q", subscription.LatestInvoiceID)
	}
	if subscription.PaymentIntentID != "pi_1" {
		t.Fatalf("unexpected payment intent %q", subscription.PaymentIntentID)
	}
	if subscription.PaymentIntentSecret != "pi_1_secret" {
		t.Fatalf("unexpected client secret %q", subscription.PaymentIntentSecret)
	}
	if subscription.CurrentPeriodEnd.IsZero() {
		t.Fatal("expected parsed period end")
	}
}

func TestFindMonthlyPriceMatchesExactAmount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data": [
			{"id": "price_year", "unit_amount": 1000, "recurring": {"interval": "year"}},
			{"id": "price_other", "unit_amount": 1500, "recurring": {"interval": "month"}},
			{"id": "price_match", "unit_amount": 1000, "recurring": {"interval": "month"}}
		]}`))
	}))
	defer server.Close()

	gateway := NewStripeGateway(StripeConfig{SecretKey: "sk_test", APIBaseURL: server.URL})
	price, err := gateway.FindMonthlyPrice(context.Background(), 1000)
	if err != nil {
		t.Fatalf("find price failed: %v", err)
	}
	if price == nil || price.ID != "price_match" {
		t.Fatalf("unexpected price %+v", price)
	}

	missing, err := gateway.FindMonthlyPrice(context.Background(), 9999)
	if err != nil {
		t.Fatalf("find price failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected no match, got %+v", missing)
	}
}

func TestGatewayNotConfigured(t *testing.T) {
	gateway := NewStripeGateway(StripeConfig{})
	if gateway.Configured() {
		t.Fatal("expected unconfigured gateway")
	}
	if _, err := gateway.CreatePaymentIntent(context.Background(), &PaymentIntentInput{AmountCents: 100, Currency: "usd"}); err != ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := gateway.GetPaymentIntent(context.Background(), "pi_1"); err != ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
