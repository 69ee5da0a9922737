package handlers

import (
	"errors"
	"log"

	"grocer/internal/checkout"
	"grocer/internal/pricing"
	"grocer/internal/repositories"
	"grocer/internal/services"

	"github.com/gofiber/fiber/v2"
)

// respondError maps a service error onto an HTTP status and JSON body.
func respondError(c *fiber.Ctx, message string, err error) error {
	var (
		verr     *checkout.ValidationError
		intent   *checkout.PaymentIntentError
		declined *checkout.PaymentDeclinedError
		persist  *checkout.OrderPersistError
	)
	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  verr.Fields,
		})
	case errors.As(err, &persist):
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message":        "Payment received but the order could not be saved",
			"error":          err.Error(),
			"critical":       true,
			"idempotencyKey": persist.IdempotencyKey,
			"paymentRef":     persist.PaymentRef,
		})
	case errors.As(err, &intent):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"message": message, "error": err.Error()})
	case errors.As(err, &declined):
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"message": message, "error": err.Error()})
	}

	status := statusFor(err)
	if status == fiber.StatusInternalServerError {
		log.Printf("%s: %v", message, err)
	}
	return c.Status(status).JSON(fiber.Map{
		"message": message,
		"error":   err.Error(),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrInvalidToken):
		return fiber.StatusUnauthorized
	case errors.Is(err, services.ErrInvalidProduct),
		errors.Is(err, services.ErrInvalidUser),
		errors.Is(err, services.ErrInvalidQuantity),
		errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, pricing.ErrInvalidPromo),
		errors.Is(err, checkout.ErrEmptyCart):
		return fiber.StatusBadRequest
	case errors.Is(err, checkout.ErrCheckoutInProgress),
		errors.Is(err, checkout.ErrNoPendingPayment),
		errors.Is(err, checkout.ErrPaymentCaptured),
		errors.Is(err, checkout.ErrNothingToRetry),
		errors.Is(err, checkout.ErrSessionClosed),
		errors.Is(err, checkout.ErrAttemptSuperseded),
		errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrEmailTaken),
		errors.Is(err, services.ErrInsufficientStock),
		errors.Is(err, repositories.ErrDuplicate):
		return fiber.StatusConflict
	}
	return fiber.StatusInternalServerError
}

func badRequest(c *fiber.Ctx, err error) error {
	log.Printf("Error parsing request body: %v", err)
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Invalid request body",
		"error":   err.Error(),
	})
}
