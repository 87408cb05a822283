package controller

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-donations/app/factory"
	"github.com/vibast-solutions/ms-go-donations/app/mapper"
	"github.com/vibast-solutions/ms-go-donations/app/service"
	"github.com/vibast-solutions/ms-go-donations/app/types"
)

type DonationController struct {
	donationService *service.DonationService
	logger          logrus.FieldLogger
}

func NewDonationController(donationService *service.DonationService) *DonationController {
	return &DonationController{
		donationService: donationService,
		logger:          factory.NewModuleLogger("donations-controller"),
	}
}

func (c *DonationController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *DonationController) CreateDonationIntent(ctx echo.Context) error {
	req, err := types.NewCreateDonationIntentRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}

	result, err := c.donationService.CreateDonationIntent(ctx.Request().Context(), req)
	if err != nil {
		return c.writeServiceError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, mapper.DonationIntentResultToResponse(result))
}

func (c *DonationController) CreateRegistrationPayment(ctx echo.Context) error {
	req, err := types.NewCreateRegistrationPaymentRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}

	result, err := c.donationService.CreateRegistrationPayment(ctx.Request().Context(), req)
	if err != nil {
		return c.writeServiceError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, mapper.RegistrationPaymentResultToResponse(result))
}

func (c *DonationController) HandleStripeWebhook(ctx echo.Context) error {
	payload, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "failed to read request body")
	}

	signature := ctx.Request().Header.Get("Stripe-Signature")
	if err := c.donationService.HandleWebhookEvent(ctx.Request().Context(), payload, signature); err != nil {
		if errors.Is(err, service.ErrInvalidSignature) {
			return writeError(ctx, http.StatusBadRequest, "invalid webhook signature")
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("webhook handling failed")
		return writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.WebhookAckResponse{Received: true})
}

func (c *DonationController) SyncPendingDonations(ctx echo.Context) error {
	report, err := c.donationService.SyncPendingDonations(ctx.Request().Context(), ctx.QueryParam("eventTagPrefix"))
	if err != nil {
		return c.writeServiceError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, mapper.SyncReportToResponse(report))
}

func (c *DonationController) writeServiceError(ctx echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return writeError(ctx, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrGatewayNotConfigured):
		return writeError(ctx, http.StatusInternalServerError, "payment processing is not configured")
	default:
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("request failed")
		return writeError(ctx, http.StatusInternalServerError, "internal server error")
	}
}

func writeError(ctx echo.Context, status int, message string) error {
	return ctx.JSON(status, &types.ErrorResponse{Error: message})
}
