package provider

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type StripeConfig struct {
	SecretKey                 string
	WebhookSecret             string
	APIBaseURL                string
	SignatureToleranceSeconds int64
	HTTPTimeout               time.Duration
}

type StripeGateway struct {
	cfg    StripeConfig
	client *http.Client
}

func NewStripeGateway(cfg StripeConfig) *StripeGateway {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if cfg.SignatureToleranceSeconds <= 0 {
		cfg.SignatureToleranceSeconds = 300
	}
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		cfg.APIBaseURL = "https://api.stripe.com"
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")

	return &StripeGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (g *StripeGateway) Configured() bool {
	return strings.TrimSpace(g.cfg.SecretKey) != ""
}

func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, input *PaymentIntentInput) (*PaymentIntent, error) {
	if !g.Configured() {
		return nil, ErrNotConfigured
	}

	values := url.Values{}
	values.Set("amount", strconv.FormatInt(input.AmountCents, 10))
	values.Set("currency", strings.ToLower(input.Currency))
	values.Set("automatic_payment_methods[enabled]", "true")
	if strings.TrimSpace(input.Description) != "" {
		values.Set("description", input.Description)
	}
	input.Metadata.setFormValues(values)

	body, err := g.postForm(ctx, "/v1/payment_intents", values)
	if err != nil {
		return nil, err
	}

	return parsePaymentIntent(body)
}

func (g *StripeGateway) GetPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error) {
	if !g.Configured() {
		return nil, ErrNotConfigured
	}

	body, err := g.getJSON(ctx, "/v1/payment_intents/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}

	return parsePaymentIntent(body)
}

func (g *StripeGateway) FindCustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	if !g.Configured() {
		return nil, ErrNotConfigured
	}

	query := url.Values{}
	query.Set("email", email)
	query.Set("limit", "1")

	body, err := g.getJSON(ctx, "/v1/customers?"+query.Encode())
	if err != nil {
		return nil, err
	}

	var payload struct {
		Data []struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	if len(payload.Data) == 0 {
		return nil, nil
	}

	return &Customer{ID: payload.Data[0].ID, Email: payload.Data[0].Email}, nil
}

func (g *StripeGateway) CreateCustomer(ctx context.Context, input *CustomerInput) (*Customer, error) {
	if !g.Configured() {
		return nil, ErrNotConfigured
	}

	values := url.Values{}
	values.Set("email", input.Email)
	if strings.TrimSpace(input.Name) != "" {
		values.Set("name", input.Name)
	}
	if strings.TrimSpace(input.Phone) != "" {
		values.Set("phone", input.Phone)
	}

	body, err := g.postForm(ctx, "/v1/customers", values)
	if err != nil {
		return nil, err
	}

	var payload struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	return &Customer{ID: payload.ID, Email: payload.Email}, nil
}

// FindMonthlyPrice looks for an active recurring price with an exact unit
// amount and a monthly interval. Returns nil when no such price exists.
func (g *StripeGateway) FindMonthlyPrice(ctx context.Context, amountCents int64) (*Price, error) {
	if !g.Configured() {
		return nil, ErrNotConfigured
	}

	query := url.Values{}
	query.Set("active", "true")
	query.Set("type", "recurring")
	query.Set("limit", "100")

	body, err := g.getJSON(ctx, "/v1/prices?"+query.Encode())
	if err != nil {
		return nil, err
	}

	var payload struct {
		Data []struct {
			ID         string `json:"id"`
			UnitAmount int64  `json:"unit_amount"`
			Recurring  struct {
				Interval string `json:"interval"`
			} `json:"recurring"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	for _, item := range payload.Data {
		if item.UnitAmount == amountCents && item.Recurring.Interval == "month" {
			return &Price{ID: item.ID, UnitAmountCents: item.UnitAmount, Interval: item.Recurring.Interval}, nil
		}
	}

	return nil, nil
}

func (g *StripeGateway) CreateMonthlyPrice(ctx context.Context, amountCents int64, productName string) (*Price, error) {
	if !g.Configured() {
		return nil, ErrNotConfigured
	}

	productValues := url.Values{}
	productValues.Set("name", productName)
	productResp, err := g.postForm(ctx, "/v1/products", productValues)
	if err != nil {
		return nil, err
	}
	var product struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(productResp, &product); err != nil {
		return nil, err
	}
	if strings.TrimSpace(product.ID) == "" {
		return nil, fmt.Errorf("stripe product id missing")
	}

	priceValues := url.Values{}
	priceValues.Set("currency", "usd")
	priceValues.Set("unit_amount", strconv.FormatInt(amountCents, 10))
	priceValues.Set("recurring[interval]", "month")
	priceValues.Set("product", product.ID)

	priceResp, err := g.postForm(ctx, "/v1/prices", priceValues)
	if err != nil {
		return nil, err
	}
	var price struct {
		ID         string `json:"id"`
		UnitAmount int64  `json:"unit_amount"`
		Recurring  struct {
			Interval string `json:"interval"`
		} `json:"recurring"`
	}
	if err := json.Unmarshal(priceResp, &price); err != nil {
		return nil, err
	}
	if strings.TrimSpace(price.ID) == "" {
		return nil, fmt.Errorf("stripe price id missing")
	}

	return &Price{ID: price.ID, UnitAmountCents: price.UnitAmount, Interval: price.Recurring.Interval}, nil
}

func (g *StripeGateway) CreateSubscription(ctx context.Context, input *SubscriptionInput) (*Subscription, error) {
	if !g.Configured() {
		return nil, ErrNotConfigured
	}

	values := url.Values{}
	values.Set("customer", input.CustomerID)
	values.Set("items[0][price]", input.PriceID)
	values.Set("payment_behavior", "default_incomplete")
	values.Set("payment_settings[save_default_payment_method]", "on_subscription")
	values.Add("expand[]", "latest_invoice.payment_intent")
	input.Metadata.setFormValues(values)

	body, err := g.postForm(ctx, "/v1/subscriptions", values)
	if err != nil {
		return nil, err
	}

	return parseSubscription(body)
}

func (g *StripeGateway) GetSubscription(ctx context.Context, id string) (*Subscription, error) {
	if !g.Configured() {
		return nil, ErrNotConfigured
	}

	query := url.Values{}
	query.Add("expand[]", "latest_invoice.payment_intent")

	body, err := g.getJSON(ctx, "/v1/subscriptions/"+url.PathEscape(id)+"?"+query.Encode())
	if err != nil {
		return nil, err
	}

	return parseSubscription(body)
}

// VerifyAndParseEvent checks the webhook signature when a signing secret is
// configured and parses the envelope into a typed event. Without a secret
// the payload is parsed as trusted JSON (local/dev only).
func (g *StripeGateway) VerifyAndParseEvent(payload []byte, signature string) (*Event, error) {
	if strings.TrimSpace(g.cfg.WebhookSecret) != "" {
		if !verifyStripeSignature(payload, signature, g.cfg.WebhookSecret, g.cfg.SignatureToleranceSeconds) {
			return nil, ErrInvalidSignature
		}
	}

	var envelope struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object json.RawMessage `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, err
	}

	event := &Event{
		ID:   strings.TrimSpace(envelope.ID),
		Type: strings.TrimSpace(envelope.Type),
	}

	switch {
	case strings.HasPrefix(event.Type, "payment_intent."):
		event.PaymentIntent = parseEventPaymentIntent(envelope.Data.Object)
	case strings.HasPrefix(event.Type, "invoice."):
		event.Invoice = parseEventInvoice(envelope.Data.Object)
	case strings.HasPrefix(event.Type, "customer.subscription."):
		event.Subscription = parseEventSubscription(envelope.Data.Object)
	}

	return event, nil
}

func (g *StripeGateway) postForm(ctx context.Context, path string, values url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.APIBaseURL+path, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.SecretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	// Stripe replays the original response for a repeated key, so a network
	// retry cannot double-charge.
	req.Header.Set("Idempotency-Key", uuid.NewString())

	return g.do(req, path)
}

func (g *StripeGateway) getJSON(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.APIBaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.SecretKey)

	return g.do(req, path)
}

func (g *StripeGateway) do(req *http.Request, path string) ([]byte, error) {
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("stripe request failed: path=%s status=%d body=%s", path, resp.StatusCode, string(body))
	}

	return body, nil
}

func parsePaymentIntent(body []byte) (*PaymentIntent, error) {
	var payload struct {
		ID           string            `json:"id"`
		ClientSecret string            `json:"client_secret"`
		Status       string            `json:"status"`
		Amount       int64             `json:"amount"`
		Metadata     map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	return &PaymentIntent{
		ID:           strings.TrimSpace(payload.ID),
		ClientSecret: strings.TrimSpace(payload.ClientSecret),
		Status:       strings.TrimSpace(payload.Status),
		AmountCents:  payload.Amount,
		Metadata:     metadataFromMap(payload.Metadata),
	}, nil
}

func parseSubscription(body []byte) (*Subscription, error) {
	var payload struct {
		ID               string      `json:"id"`
		Customer         interface{} `json:"customer"`
		Status           string      `json:"status"`
		CurrentPeriodEnd int64       `json:"current_period_end"`
		LatestInvoice    json.RawMessage `json:"latest_invoice"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	result := &Subscription{
		ID:         strings.TrimSpace(payload.ID),
		CustomerID: parseStringish(payload.Customer),
		Status:     strings.TrimSpace(payload.Status),
	}
	if payload.CurrentPeriodEnd > 0 {
		result.CurrentPeriodEnd = time.Unix(payload.CurrentPeriodEnd, 0).UTC()
	}

	if len(payload.LatestInvoice) > 0 {
		result.LatestInvoiceID = parseStringish(json.RawMessage(payload.LatestInvoice))

		var invoice struct {
			ID            string          `json:"id"`
			PaymentIntent json.RawMessage `json:"payment_intent"`
		}
		if json.Unmarshal(payload.LatestInvoice, &invoice) == nil && len(invoice.PaymentIntent) > 0 {
			result.PaymentIntentID = parseStringish(json.RawMessage(invoice.PaymentIntent))

			var intent struct {
				ID           string `json:"id"`
				ClientSecret string `json:"client_secret"`
			}
			if json.Unmarshal(invoice.PaymentIntent, &intent) == nil {
				result.PaymentIntentSecret = strings.TrimSpace(intent.ClientSecret)
			}
		}
	}

	return result, nil
}

func parseEventPaymentIntent(payload json.RawMessage) *EventPaymentIntent {
	var object struct {
		ID       string            `json:"id"`
		Status   string            `json:"status"`
		Metadata map[string]string `json:"metadata"`
	}
	if json.Unmarshal(payload, &object) != nil {
		return nil
	}
	if strings.TrimSpace(object.ID) == "" {
		return nil
	}

	return &EventPaymentIntent{
		ID:       strings.TrimSpace(object.ID),
		Status:   strings.TrimSpace(object.Status),
		Metadata: metadataFromMap(object.Metadata),
	}
}

func parseEventInvoice(payload json.RawMessage) *EventInvoice {
	var object struct {
		ID            string      `json:"id"`
		Subscription  interface{} `json:"subscription"`
		PaymentIntent interface{} `json:"payment_intent"`
		PeriodEnd     int64       `json:"period_end"`
	}
	if json.Unmarshal(payload, &object) != nil {
		return nil
	}
	if strings.TrimSpace(object.ID) == "" {
		return nil
	}

	result := &EventInvoice{
		ID:              strings.TrimSpace(object.ID),
		SubscriptionID:  parseStringish(object.Subscription),
		PaymentIntentID: parseStringish(object.PaymentIntent),
	}
	if object.PeriodEnd > 0 {
		result.PeriodEnd = time.Unix(object.PeriodEnd, 0).UTC()
	}
	return result
}

func parseEventSubscription(payload json.RawMessage) *EventSubscription {
	var object struct {
		ID               string      `json:"id"`
		Customer         interface{} `json:"customer"`
		Status           string      `json:"status"`
		CurrentPeriodEnd int64       `json:"current_period_end"`
		LatestInvoice    interface{} `json:"latest_invoice"`
	}
	if json.Unmarshal(payload, &object) != nil {
		return nil
	}
	if strings.TrimSpace(object.ID) == "" {
		return nil
	}

	result := &EventSubscription{
		ID:              strings.TrimSpace(object.ID),
		CustomerID:      parseStringish(object.Customer),
		Status:          strings.TrimSpace(object.Status),
		LatestInvoiceID: parseStringish(object.LatestInvoice),
	}
	if object.CurrentPeriodEnd > 0 {
		result.CurrentPeriodEnd = time.Unix(object.CurrentPeriodEnd, 0).UTC()
	}
	return result
}

func (m *IntentMetadata) setFormValues(values url.Values) {
	if m == nil {
		return
	}

	recordType := m.RecordType
	if recordType == "" {
		recordType = RecordTypeDonation
	}
	values.Set("metadata[record_type]", recordType)
	values.Set("metadata[anonymous]", strconv.FormatBool(m.Anonymous))

	setIfNotEmpty := func(key, value string) {
		if strings.TrimSpace(value) != "" {
			values.Set("metadata["+key+"]", value)
		}
	}
	setIfNotEmpty("donor_name", m.DonorName)
	setIfNotEmpty("donor_email", m.DonorEmail)
	setIfNotEmpty("donor_phone", m.DonorPhone)
	setIfNotEmpty("company", m.Company)
	setIfNotEmpty("donation_kind", m.DonationKind)
	setIfNotEmpty("player_honoree", m.PlayerHonoree)
	setIfNotEmpty("message", m.Message)
	setIfNotEmpty("campaign_id", m.CampaignID)
	setIfNotEmpty("event_tag", m.EventTag)
}

func metadataFromMap(raw map[string]string) IntentMetadata {
	if raw == nil {
		return IntentMetadata{}
	}

	anonymous, _ := strconv.ParseBool(raw["anonymous"])
	return IntentMetadata{
		RecordType:    strings.TrimSpace(raw["record_type"]),
		DonorName:     strings.TrimSpace(raw["donor_name"]),
		DonorEmail:    strings.TrimSpace(raw["donor_email"]),
		DonorPhone:    strings.TrimSpace(raw["donor_phone"]),
		Company:       strings.TrimSpace(raw["company"]),
		DonationKind:  strings.TrimSpace(raw["donation_kind"]),
		PlayerHonoree: strings.TrimSpace(raw["player_honoree"]),
		Message:       strings.TrimSpace(raw["message"]),
		Anonymous:     anonymous,
		CampaignID:    strings.TrimSpace(raw["campaign_id"]),
		EventTag:      strings.TrimSpace(raw["event_tag"]),
	}
}

func verifyStripeSignature(payload []byte, signatureHeader string, webhookSecret string, toleranceSeconds int64) bool {
	signatureHeader = strings.TrimSpace(signatureHeader)
	if signatureHeader == "" || strings.TrimSpace(webhookSecret) == "" {
		return false
	}

	parts := strings.Split(signatureHeader, ",")
	var ts string
	v1 := make([]string, 0, 1)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "t=") {
			ts = strings.TrimSpace(strings.TrimPrefix(part, "t="))
		}
		if strings.HasPrefix(part, "v1=") {
			v1 = append(v1, strings.TrimSpace(strings.TrimPrefix(part, "v1=")))
		}
	}
	if ts == "" || len(v1) == 0 {
		return false
	}

	tsUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	now := time.Now().Unix()
	if now-tsUnix > toleranceSeconds || tsUnix-now > toleranceSeconds {
		return false
	}

	signedPayload := []byte(ts + "." + string(payload))
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	_, _ = mac.Write(signedPayload)
	expected := mac.Sum(nil)

	for _, sig := range v1 {
		candidate, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(candidate, expected) {
			return true
		}
	}

	return false
}

func parseStringish(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]interface{}:
		if raw, ok := t["id"]; ok {
			if s, ok := raw.(string); ok {
				return strings.TrimSpace(s)
			}
		}
	case json.RawMessage:
		if len(t) == 0 {
			return ""
		}
		if t[0] == '"' {
			var s string
			if json.Unmarshal(t, &s) == nil {
				return strings.TrimSpace(s)
			}
		}
		var obj map[string]interface{}
		if json.Unmarshal(t, &obj) == nil {
			if raw, ok := obj["id"]; ok {
				if s, ok := raw.(string); ok {
					return strings.TrimSpace(s)
				}
			}
		}
	}
	return ""
}
