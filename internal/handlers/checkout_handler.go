package handlers

import (
	"grocer/internal/checkout"
	"grocer/internal/services"

	"github.com/gofiber/fiber/v2"
)

// CheckoutHandler handles the checkout flow of a shopper session.
type CheckoutHandler struct {
	service *services.CheckoutService
}

func NewCheckoutHandler(service *services.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{service: service}
}

func (h *CheckoutHandler) RegisterRoutes(router fiber.Router) {
	checkoutRoutes := router.Group("/checkout")
	checkoutRoutes.Put("/details", h.HandleSubmitDetails)
	checkoutRoutes.Get("/quote", h.HandleQuote)
	checkoutRoutes.Post("/start", h.HandleStart)
	checkoutRoutes.Post("/confirm", h.HandleConfirm)
	checkoutRoutes.Post("/abandon", h.HandleAbandon)
	checkoutRoutes.Delete("/", h.HandleClose)
}

// RegisterAdminRoutes registers the back-office recovery route.
func (h *CheckoutHandler) RegisterAdminRoutes(router fiber.Router) {
	router.Post("/checkout/:sessionId/retry", h.HandleRetry)
}

func (h *CheckoutHandler) HandleSubmitDetails(c *fiber.Ctx) error {
	var details checkout.Details
	if err := c.BodyParser(&details); err != nil {
		return badRequest(c, err)
	}
	view, err := h.service.SubmitDetails(c.UserContext(), sessionID(c), details)
	if err != nil {
		return respondError(c, "Could not save details", err)
	}
	return c.JSON(view)
}

func (h *CheckoutHandler) HandleQuote(c *fiber.Ctx) error {
	quote, err := h.service.Quote(c.UserContext(), sessionID(c))
	if err != nil {
		return respondError(c, "Could not price cart", err)
	}
	return c.JSON(quote)
}

func (h *CheckoutHandler) HandleStart(c *fiber.Ctx) error {
	intent, err := h.service.Start(c.UserContext(), sessionID(c))
	if err != nil {
		return respondError(c, "Could not start checkout", err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"paymentIntent": intent.ID,
		"clientSecret":  intent.ClientSecret,
	})
}

func (h *CheckoutHandler) HandleConfirm(c *fiber.Ctx) error {
	var confirmation checkout.Confirmation
	if err := c.BodyParser(&confirmation); err != nil {
		return badRequest(c, err)
	}
	order, err := h.service.Confirm(c.UserContext(), sessionID(c), confirmation)
	if err != nil {
		return respondError(c, "Could not complete checkout", err)
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

func (h *CheckoutHandler) HandleAbandon(c *fiber.Ctx) error {
	view, err := h.service.Abandon(c.UserContext(), sessionID(c))
	if err != nil {
		return respondError(c, "Could not abandon checkout", err)
	}
	return c.JSON(view)
}

func (h *CheckoutHandler) HandleClose(c *fiber.Ctx) error {
	if err := h.service.Close(c.UserContext(), sessionID(c)); err != nil {
		return respondError(c, "Could not close session", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *CheckoutHandler) HandleRetry(c *fiber.Ctx) error {
	order, err := h.service.Retry(c.UserContext(), c.Params("sessionId"))
	if err != nil {
		return respondError(c, "Could not retry order", err)
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}
