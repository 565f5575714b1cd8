package handler

import (
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/planforge/api/internal/middleware"
	"github.com/planforge/api/internal/model"
	"github.com/planforge/api/internal/service"
	"github.com/planforge/api/pkg/response"
)

type PaymentHandler struct {
	payments  *service.PaymentService
	validator *validator.Validate
}

func NewPaymentHandler(payments *service.PaymentService, v *validator.Validate) *PaymentHandler {
	return &PaymentHandler{
		payments:  payments,
		validator: v,
	}
}

// CreateOrder handles POST /api/payments/order
// @Summary      Create a payment order
// @Description  Create a gateway order for the pro plan upgrade
// @Tags         Payments
// @Accept       json
// @Produce      json
// @Param        request body model.CreateOrderRequest true "Order request"
// @Success      200 {object} model.OrderResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      502 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/payments/order [post]
func (h *PaymentHandler) CreateOrder(c *fiber.Ctx) error {
	var req model.CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	userID := middleware.GetUserID(c)
	result, err := h.payments.CreateOrder(c.Context(), userID, req.Amount)
	if err != nil {
		log.Printf("Order creation failed for user %s: %v", userID, err)
		return response.UpstreamError(c, "Payment gateway unavailable")
	}

	return response.OK(c, result)
}

// Verify handles POST /api/payments/verify
// @Summary      Verify a checkout signature
// @Description  Verify the gateway HMAC signature; a valid one upgrades the caller to pro
// @Tags         Payments
// @Accept       json
// @Produce      json
// @Param        request body model.VerifyPaymentRequest true "Checkout handshake"
// @Success      200 {object} model.VerifyPaymentResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/payments/verify [post]
func (h *PaymentHandler) Verify(c *fiber.Ctx) error {
	var req model.VerifyPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	userID := middleware.GetUserID(c)
	result, err := h.payments.VerifyPayment(c.Context(), userID, &req)
	if err != nil {
		log.Printf("Payment verification failed for user %s: %v", userID, err)
		return response.ServiceError(c, "Failed to verify payment")
	}

	return response.OK(c, result)
}
