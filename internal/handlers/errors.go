package handlers

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"bookstore/internal/services"
)

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// First match wins. A consumption failure may wrap a voucher error, and the
// voucher causes come before ErrVoucherRejected so the response names the
// specific reason.
var errorMappings = []errorMapping{
	{services.ErrVoucherConsumptionFailed, fiber.StatusInternalServerError, "VOUCHER_CONSUMPTION_FAILED", "Order could not be placed, voucher was not recorded"},
	{services.ErrEmptyOrder, fiber.StatusBadRequest, "EMPTY_ORDER", "Order must contain at least one item"},
	{services.ErrMissingShippingInfo, fiber.StatusBadRequest, "MISSING_SHIPPING_INFO", "Shipping address and provider are required"},
	{services.ErrInvalidQuantity, fiber.StatusBadRequest, "INVALID_QUANTITY", "Quantity must be positive"},
	{services.ErrAddressNotFound, fiber.StatusNotFound, "ADDRESS_NOT_FOUND", "Shipping address not found"},
	{services.ErrBookNotFound, fiber.StatusNotFound, "BOOK_NOT_FOUND", "Book not found"},
	{services.ErrShippingProviderNotFound, fiber.StatusNotFound, "SHIPPING_PROVIDER_NOT_FOUND", "Shipping provider not found"},
	{services.ErrInsufficientStock, fiber.StatusConflict, "INSUFFICIENT_STOCK", "Insufficient stock"},
	{services.ErrOrderNotFound, fiber.StatusNotFound, "ORDER_NOT_FOUND", "Order not found"},
	{services.ErrInvalidStatus, fiber.StatusBadRequest, "INVALID_STATUS", "Invalid order status transition"},
	{services.ErrOrderNotCancellable, fiber.StatusBadRequest, "ORDER_NOT_CANCELLABLE", "Order cannot be cancelled"},
	{services.ErrStatusConflict, fiber.StatusConflict, "STATUS_CONFLICT", "Order was updated concurrently, retry the request"},
	{services.ErrVoucherNotFound, fiber.StatusBadRequest, "VOUCHER_NOT_FOUND", "Voucher rejected"},
	{services.ErrVoucherExpired, fiber.StatusBadRequest, "VOUCHER_EXPIRED", "Voucher rejected"},
	{services.ErrVoucherExhausted, fiber.StatusBadRequest, "VOUCHER_EXHAUSTED", "Voucher rejected"},
	{services.ErrVoucherNotApplicable, fiber.StatusBadRequest, "VOUCHER_NOT_APPLICABLE", "Voucher rejected"},
	{services.ErrMinimumAmountNotMet, fiber.StatusBadRequest, "MINIMUM_AMOUNT_NOT_MET", "Voucher rejected"},
	{services.ErrAlreadyUsedByUser, fiber.StatusBadRequest, "VOUCHER_ALREADY_USED", "Voucher rejected"},
	{services.ErrVoucherRejected, fiber.StatusBadRequest, "VOUCHER_REJECTED", "Voucher rejected"},
	{services.ErrUserExists, fiber.StatusConflict, "USER_EXISTS", "Registration failed"},
	{services.ErrInvalidCredentials, fiber.StatusUnauthorized, "INVALID_CREDENTIALS", "Authentication failed"},
}

// respondError writes err as a JSON error body. Unknown errors become 500
// and are logged.
func respondError(c *fiber.Ctx, logger *zap.Logger, err error) error {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			if m.status >= fiber.StatusInternalServerError {
				logger.Error("request failed", zap.String("code", m.code), zap.String("path", c.Path()), zap.Error(err))
			}
			return writeError(c, m, err)
		}
	}
	logger.Error("request failed", zap.String("method", c.Method()), zap.String("path", c.Path()), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"message": "Internal server error",
		"error":   err.Error(),
		"code":    "INTERNAL",
	})
}

func writeError(c *fiber.Ctx, m errorMapping, err error) error {
	return c.Status(m.status).JSON(fiber.Map{
		"message": m.message,
		"error":   err.Error(),
		"code":    m.code,
	})
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Invalid request body",
		"error":   err.Error(),
		"code":    "INVALID_BODY",
	})
}

// validationFailed reports the fields that failed validation.
func validationFailed(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return badRequest(c, err)
	}
	errorMessages := make(map[string]string, len(validationErrors))
	for _, e := range validationErrors {
		errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Validation failed",
		"errors":  errorMessages,
		"code":    "VALIDATION_FAILED",
	})
}
