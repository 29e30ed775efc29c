package payment

import (
	"github.com/gofiber/fiber/v2"

	"github.com/courseloop/api/services"
	"github.com/courseloop/api/utils/middleware"
	"github.com/courseloop/api/utils/response"
	"github.com/courseloop/api/utils/validation"
)

// PaymentHandler handles payment verification and gateway webhooks
type PaymentHandler struct {
	payments  *services.PaymentService
	validator *validation.Validator
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(payments *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		payments:  payments,
		validator: validation.NewValidator(),
	}
}

// VerifyRequest represents the request body for verifying a payment after
// the client-side gateway flow completes
type VerifyRequest struct {
	ImpUID  string `json:"imp_uid" validate:"required"`
	OrderID uint   `json:"order_id" validate:"required,min=1"`
}

// Verify handles POST /api/v1/payments/verify
func (h *PaymentHandler) Verify(c *fiber.Ctx) error {
	if _, ok := middleware.GetUserID(c); !ok {
		return response.Unauthorized(c, "")
	}

	var req VerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	payment, err := h.payments.VerifyPayment(c.Context(), req.ImpUID, req.OrderID)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.SuccessWithMessage(c, "Payment verified", payment)
}

// WebhookRequest represents the gateway's webhook notification body
type WebhookRequest struct {
	ImpUID        string `json:"imp_uid" validate:"required"`
	Status        string `json:"status" validate:"required"`
	TransactionID string `json:"pg_tid"`
	MerchantUID   string `json:"merchant_uid"`
}

// Webhook handles POST /api/v1/payments/webhook. The gateway calls this
// without user credentials and retries on non-2xx responses.
func (h *PaymentHandler) Webhook(c *fiber.Ctx) error {
	var req WebhookRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid webhook body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	payment, err := h.payments.HandleWebhook(c.Context(), req.ImpUID, req.Status, req.TransactionID)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, payment)
}
