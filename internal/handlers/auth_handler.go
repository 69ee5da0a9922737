package handlers

import (
	"fmt"
	"log"

	"grocer/internal/middleware"
	"grocer/internal/models"
	"grocer/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// AuthHandler handles HTTP requests for authentication and the user profile.
type AuthHandler struct {
	authService *services.AuthService
	validate    *validator.Validate
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validate:    validator.New(),
	}
}

// RegisterRoutes registers the authentication routes. Profile routes sit
// behind AuthRequired.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	authRoutes := router.Group("/auth")
	authRoutes.Post("/register", h.HandleRegister)
	authRoutes.Post("/login", h.HandleLogin)

	authRequired := middleware.AuthRequired(h.authService)
	authRoutes.Post("/logout", authRequired, h.HandleLogout)
	authRoutes.Get("/me", authRequired, h.HandleProfile)
	authRoutes.Post("/me/addresses", authRequired, h.HandleAddAddress)
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"omitempty,max=30"`
	Password string `json:"password" validate:"required,min=6"`
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// HandleRegister handles new user registration.
func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	user := models.User{Name: req.Name, Email: req.Email, Phone: req.Phone, Password: req.Password}
	if err := h.authService.RegisterUser(&user); err != nil {
		log.Printf("Error registering user: %v", err)
		return respondError(c, "Registration failed", err)
	}

	user.Password = ""
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User registered successfully",
		"user":    user,
	})
}

// HandleLogin handles user login and issues a JWT token.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	result, err := h.authService.LoginUser(req.Email, req.Password)
	if err != nil {
		log.Printf("Error during login for user %s: %v", req.Email, err)
		return respondError(c, "Authentication failed", err)
	}
	return c.JSON(result)
}

// HandleLogout revokes the caller's token.
func (h *AuthHandler) HandleLogout(c *fiber.Ctx) error {
	token, _ := c.Locals("token").(string)
	if err := h.authService.Logout(c.UserContext(), token); err != nil {
		return respondError(c, "Logout failed", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AuthHandler) HandleProfile(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	user, err := h.authService.Profile(userID)
	if err != nil {
		return respondError(c, "Could not load profile", err)
	}
	return c.JSON(user)
}

func (h *AuthHandler) HandleAddAddress(c *fiber.Ctx) error {
	var address models.Address
	if err := c.BodyParser(&address); err != nil {
		return badRequest(c, err)
	}
	userID, _ := c.Locals("user_id").(string)
	addresses, err := h.authService.AddAddress(userID, address)
	if err != nil {
		return respondError(c, "Could not save address", err)
	}
	return c.Status(fiber.StatusCreated).JSON(addresses)
}

func validationFailed(c *fiber.Ctx, err error) error {
	errorMessages := make(map[string]string)
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrors {
			errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
		}
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Validation failed",
		"errors":  errorMessages,
	})
}
