package handlers

import (
	"grocer/internal/models"
	"grocer/internal/services"

	"github.com/gofiber/fiber/v2"
)

// PromoHandler serves promo code management for the back office.
type PromoHandler struct {
	service *services.PromoService
}

func NewPromoHandler(service *services.PromoService) *PromoHandler {
	return &PromoHandler{service: service}
}

func (h *PromoHandler) RegisterRoutes(router fiber.Router) {
	promoRoutes := router.Group("/promos")
	promoRoutes.Get("/", h.HandleGetPromos)
	promoRoutes.Put("/:code", h.HandleSavePromo)
}

func (h *PromoHandler) HandleGetPromos(c *fiber.Ctx) error {
	promos, err := h.service.GetAll()
	if err != nil {
		return respondError(c, "Could not retrieve promo codes", err)
	}
	return c.JSON(promos)
}

// HandleSavePromo creates or replaces the promo code named in the path.
func (h *PromoHandler) HandleSavePromo(c *fiber.Ctx) error {
	var promo models.PromoCode
	if err := c.BodyParser(&promo); err != nil {
		return badRequest(c, err)
	}
	promo.Code = c.Params("code")
	if err := h.service.Save(&promo); err != nil {
		return respondError(c, "Could not save promo code", err)
	}
	return c.JSON(promo)
}
