package handlers

import (
	"grocer/internal/models"
	"grocer/internal/repositories"
	"grocer/internal/services"

	"github.com/gofiber/fiber/v2"
)

// OrderHandler serves the back-office order routes.
type OrderHandler struct {
	service *services.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService) *OrderHandler {
	return &OrderHandler{
		service: service,
	}
}

// RegisterRoutes registers the order routes. They are admin-only.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Get("/", h.HandleGetOrders)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
	orderRoutes.Patch("/:id/status", h.HandleUpdateOrderStatus)
}

// HandleGetOrders lists orders, filtered by ?status=, ?email= and ?limit=.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	filter := repositories.OrderFilter{
		Status: models.OrderStatus(c.Query("status")),
		Email:  c.Query("email"),
		Limit:  c.QueryInt("limit", 0),
	}
	orders, err := h.service.GetAllOrders(filter)
	if err != nil {
		return respondError(c, "Could not retrieve orders", err)
	}
	return c.JSON(orders)
}

// HandleGetOrderByID retrieves a single order by its ID.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	order, err := h.service.GetOrderByID(c.Params("id"))
	if err != nil {
		return respondError(c, "Could not retrieve order", err)
	}
	return c.JSON(order)
}

// UpdateStatusRequest is the body of PATCH /orders/:id/status.
type UpdateStatusRequest struct {
	Status models.OrderStatus `json:"status"`
}

// HandleUpdateOrderStatus moves an order along its status lifecycle.
func (h *OrderHandler) HandleUpdateOrderStatus(c *fiber.Ctx) error {
	var req UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	order, err := h.service.UpdateOrderStatus(c.Params("id"), req.Status)
	if err != nil {
		return respondError(c, "Could not update order status", err)
	}
	return c.JSON(order)
}
