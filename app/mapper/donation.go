package mapper

import (
	"github.com/vibast-solutions/ms-go-donations/app/service"
	"github.com/vibast-solutions/ms-go-donations/app/types"
)

func DonationIntentResultToResponse(result *service.DonationIntentResult) *types.CreateDonationIntentResponse {
	return &types.CreateDonationIntentResponse{
		ClientSecret:   result.ClientSecret,
		DonationID:     result.Donation.ID,
		SubscriptionID: result.SubscriptionID,
		CustomerID:     result.CustomerID,
	}
}

func RegistrationPaymentResultToResponse(result *service.RegistrationPaymentResult) *types.CreateRegistrationPaymentResponse {
	return &types.CreateRegistrationPaymentResponse{
		ClientSecret:    result.ClientSecret,
		PaymentIntentID: result.PaymentIntentID,
		RegistrationID:  result.Registration.ID,
	}
}

func SyncReportToResponse(report *service.SyncReport) *types.SyncPendingResponse {
	return &types.SyncPendingResponse{
		Total:        report.Total,
		Updated:      report.Updated,
		StillPending: report.StillPending,
		Failed:       report.Failed,
		Errors:       report.Errors,
		Details:      report.Details,
	}
}
