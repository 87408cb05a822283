package types

import (
	"errors"
	"math"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	DonationTypeOneTime   = "one-time"
	DonationTypeRecurring = "recurring"
)

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type WebhookAckResponse struct {
	Received bool `json:"received"`
}

type DonorInfo struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Company string `json:"company,omitempty"`
}

type CreateDonationIntentRequest struct {
	Amount        float64   `json:"amount"`
	DonorInfo     DonorInfo `json:"donorInfo"`
	DonationType  string    `json:"donationType"`
	IsRecurring   bool      `json:"isRecurring"`
	PlayerHonoree string    `json:"playerHonoree,omitempty"`
	Message       string    `json:"message,omitempty"`
	Anonymous     bool      `json:"anonymous,omitempty"`
	CampaignID    string    `json:"campaignId,omitempty"`
	EventTag      string    `json:"eventTag,omitempty"`
}

func NewCreateDonationIntentRequestFromContext(ctx echo.Context) (*CreateDonationIntentRequest, error) {
	var body CreateDonationIntentRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.DonorInfo.Name = strings.TrimSpace(body.DonorInfo.Name)
	body.DonorInfo.Email = strings.TrimSpace(body.DonorInfo.Email)
	body.DonorInfo.Phone = strings.TrimSpace(body.DonorInfo.Phone)
	body.DonorInfo.Company = strings.TrimSpace(body.DonorInfo.Company)
	body.DonationType = strings.ToLower(strings.TrimSpace(body.DonationType))
	body.PlayerHonoree = strings.TrimSpace(body.PlayerHonoree)
	body.Message = strings.TrimSpace(body.Message)
	body.CampaignID = strings.TrimSpace(body.CampaignID)
	body.EventTag = strings.TrimSpace(body.EventTag)

	return &body, nil
}

func (r *CreateDonationIntentRequest) Validate() error {
	if !(r.Amount > 0) || math.IsInf(r.Amount, 0) {
		return errors.New("amount must be a positive number")
	}
	if strings.TrimSpace(r.DonorInfo.Name) == "" {
		return errors.New("donor name is required")
	}
	email := strings.TrimSpace(r.DonorInfo.Email)
	if email == "" {
		return errors.New("donor email is required")
	}
	if !strings.Contains(email, "@") {
		return errors.New("donor email is invalid")
	}
	if r.DonationType != "" && r.DonationType != DonationTypeOneTime && r.DonationType != DonationTypeRecurring {
		return errors.New("donationType must be one-time or recurring")
	}
	return nil
}

// Recurring reconciles the two ways the client expresses a monthly gift.
func (r *CreateDonationIntentRequest) Recurring() bool {
	return r.IsRecurring || r.DonationType == DonationTypeRecurring
}

type CreateDonationIntentResponse struct {
	ClientSecret   string `json:"clientSecret"`
	DonationID     uint64 `json:"donationId"`
	SubscriptionID string `json:"subscriptionId,omitempty"`
	CustomerID     string `json:"customerId,omitempty"`
}

type RegistrationAddonPayload struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type CreateRegistrationPaymentRequest struct {
	EventName      string                     `json:"eventName"`
	EventDate      string                     `json:"eventDate,omitempty"`
	ContactName    string                     `json:"contactName"`
	ContactEmail   string                     `json:"contactEmail"`
	ContactPhone   string                     `json:"contactPhone,omitempty"`
	PackageName    string                     `json:"packageName"`
	PackagePrice   float64                    `json:"packagePrice"`
	Addons         []RegistrationAddonPayload `json:"addons,omitempty"`
	DonationAmount float64                    `json:"donationAmount,omitempty"`
	// Total is display-only; the charge amount is always recomputed
	// server-side from the line items above.
	Total    float64 `json:"total,omitempty"`
	EventTag string  `json:"eventTag,omitempty"`
}

func NewCreateRegistrationPaymentRequestFromContext(ctx echo.Context) (*CreateRegistrationPaymentRequest, error) {
	var body CreateRegistrationPaymentRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.EventName = strings.TrimSpace(body.EventName)
	body.EventDate = strings.TrimSpace(body.EventDate)
	body.ContactName = strings.TrimSpace(body.ContactName)
	body.ContactEmail = strings.TrimSpace(body.ContactEmail)
	body.ContactPhone = strings.TrimSpace(body.ContactPhone)
	body.PackageName = strings.TrimSpace(body.PackageName)
	body.EventTag = strings.TrimSpace(body.EventTag)
	for i := range body.Addons {
		body.Addons[i].Name = strings.TrimSpace(body.Addons[i].Name)
	}

	return &body, nil
}

func (r *CreateRegistrationPaymentRequest) Validate() error {
	if r.EventName == "" {
		return errors.New("eventName is required")
	}
	if r.ContactName == "" {
		return errors.New("contactName is required")
	}
	if r.ContactEmail == "" {
		return errors.New("contactEmail is required")
	}
	if !strings.Contains(r.ContactEmail, "@") {
		return errors.New("contactEmail is invalid")
	}
	if r.PackageName == "" {
		return errors.New("packageName is required")
	}
	if !(r.PackagePrice > 0) || math.IsInf(r.PackagePrice, 0) {
		return errors.New("packagePrice must be a positive number")
	}
	for _, addon := range r.Addons {
		if addon.Name == "" {
			return errors.New("addon name is required")
		}
		if addon.Price < 0 || math.IsInf(addon.Price, 0) {
			return errors.New("addon price must not be negative")
		}
	}
	if r.DonationAmount < 0 || math.IsInf(r.DonationAmount, 0) {
		return errors.New("donationAmount must not be negative")
	}
	return nil
}

type CreateRegistrationPaymentResponse struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
	RegistrationID  uint64 `json:"registrationId"`
}

type SyncPendingResponse struct {
	Total        int      `json:"total"`
	Updated      int      `json:"updated"`
	StillPending int      `json:"stillPending"`
	Failed       int      `json:"failed"`
	Errors       []string `json:"errors"`
	Details      []string `json:"details"`
}
