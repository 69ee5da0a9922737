package handlers

import (
	"grocer/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// SessionHeader carries the shopper's session id on every storefront request.
const SessionHeader = "X-Session-ID"

// sessionID returns the request's session id, issuing a new one when the
// client did not send any.
func sessionID(c *fiber.Ctx) string {
	id := c.Get(SessionHeader)
	if id == "" {
		id = uuid.New().String()
	}
	c.Set(SessionHeader, id)
	return id
}

// CartHandler handles HTTP requests for the shopper's cart.
type CartHandler struct {
	service *services.CartService
}

func NewCartHandler(service *services.CartService) *CartHandler {
	return &CartHandler{service: service}
}

func (h *CartHandler) RegisterRoutes(router fiber.Router) {
	cartRoutes := router.Group("/cart")
	cartRoutes.Get("/", h.HandleGetCart)
	cartRoutes.Delete("/", h.HandleClearCart)
	cartRoutes.Post("/items", h.HandleAddItem)
	cartRoutes.Patch("/items/:productId", h.HandleSetQuantity)
	cartRoutes.Delete("/items/:productId", h.HandleRemoveItem)
}

// AddItemRequest is the body of POST /cart/items.
type AddItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// SetQuantityRequest is the body of PATCH /cart/items/:productId.
type SetQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *CartHandler) HandleGetCart(c *fiber.Ctx) error {
	view, err := h.service.GetCart(c.UserContext(), sessionID(c))
	if err != nil {
		return respondError(c, "Could not load cart", err)
	}
	return c.JSON(view)
}

func (h *CartHandler) HandleAddItem(c *fiber.Ctx) error {
	var req AddItemRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	view, err := h.service.AddItem(c.UserContext(), sessionID(c), req.ProductID, req.Quantity)
	if err != nil {
		return respondError(c, "Could not add item", err)
	}
	return c.JSON(view)
}

func (h *CartHandler) HandleSetQuantity(c *fiber.Ctx) error {
	var req SetQuantityRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	view, err := h.service.SetQuantity(c.UserContext(), sessionID(c), c.Params("productId"), req.Quantity)
	if err != nil {
		return respondError(c, "Could not update item", err)
	}
	return c.JSON(view)
}

func (h *CartHandler) HandleRemoveItem(c *fiber.Ctx) error {
	view, err := h.service.RemoveItem(c.UserContext(), sessionID(c), c.Params("productId"))
	if err != nil {
		return respondError(c, "Could not remove item", err)
	}
	return c.JSON(view)
}

func (h *CartHandler) HandleClearCart(c *fiber.Ctx) error {
	view, err := h.service.Clear(c.UserContext(), sessionID(c))
	if err != nil {
		return respondError(c, "Could not clear cart", err)
	}
	return c.JSON(view)
}
