package handlers

import (
	"grocer/internal/models"
	"grocer/internal/repositories"
	"grocer/internal/services"

	"github.com/gofiber/fiber/v2"
)

// ProductHandler serves the catalogue.
type ProductHandler struct {
	service *services.ProductService
}

func NewProductHandler(service *services.ProductService) *ProductHandler {
	return &ProductHandler{service: service}
}

// RegisterRoutes registers the public catalogue routes.
func (h *ProductHandler) RegisterRoutes(router fiber.Router) {
	productRoutes := router.Group("/products")
	productRoutes.Get("/", h.HandleGetProducts)
	productRoutes.Get("/:id", h.HandleGetProductByID)
}

// RegisterAdminRoutes registers catalogue management routes.
func (h *ProductHandler) RegisterAdminRoutes(router fiber.Router) {
	productRoutes := router.Group("/products")
	productRoutes.Post("/", h.HandleCreateProduct)
	productRoutes.Put("/:id", h.HandleUpdateProduct)
	productRoutes.Delete("/:id", h.HandleDeleteProduct)
}

// HandleGetProducts lists products, filtered by ?category= and ?q=.
func (h *ProductHandler) HandleGetProducts(c *fiber.Ctx) error {
	products, err := h.service.GetAllProducts(repositories.ProductFilter{
		Category: c.Query("category"),
		Search:   c.Query("q"),
	})
	if err != nil {
		return respondError(c, "Could not retrieve products", err)
	}
	return c.JSON(products)
}

func (h *ProductHandler) HandleGetProductByID(c *fiber.Ctx) error {
	product, err := h.service.GetProductByID(c.Params("id"))
	if err != nil {
		return respondError(c, "Could not retrieve product", err)
	}
	return c.JSON(product)
}

func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	var product models.Product
	if err := c.BodyParser(&product); err != nil {
		return badRequest(c, err)
	}
	product.ID = ""
	if err := h.service.CreateProduct(&product); err != nil {
		return respondError(c, "Could not create product", err)
	}
	return c.Status(fiber.StatusCreated).JSON(product)
}

func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	var product models.Product
	if err := c.BodyParser(&product); err != nil {
		return badRequest(c, err)
	}
	product.ID = c.Params("id")
	if err := h.service.UpdateProduct(&product); err != nil {
		return respondError(c, "Could not update product", err)
	}
	return c.JSON(product)
}

func (h *ProductHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	if err := h.service.DeleteProduct(c.Params("id")); err != nil {
		return respondError(c, "Could not delete product", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
