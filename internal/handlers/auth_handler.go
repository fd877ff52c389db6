package handlers

import (
	"fmt"
	"log"

	"debtbook/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// AuthHandler handles HTTP requests for authentication and account recovery.
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

// RegisterRoutes registers the public authentication routes.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	authRoutes := router.Group("/auth")
	authRoutes.Post("/register", h.HandleRegister)
	authRoutes.Post("/login", h.HandleLogin)
	authRoutes.Get("/recovery/:username", h.HandleFindUserForRecovery)
	authRoutes.Post("/recovery/verify", h.HandleVerifyRecoveryAnswer)
	authRoutes.Post("/recovery/reset", h.HandleResetPassword)
}

// RegisterAccountRoutes registers the routes that act on the authenticated
// account. Mount these behind the auth middleware.
func (h *AuthHandler) RegisterAccountRoutes(router fiber.Router) {
	accountRoutes := router.Group("/account")
	accountRoutes.Patch("/username", h.HandleUpdateUsername)
}

// RegisterRequest represents the request body for registration.
type RegisterRequest struct {
	Username         string `json:"username" validate:"required,min=3,max=100"`
	Password         string `json:"password" validate:"required,min=6"`
	RecoveryQuestion string `json:"recovery_question" validate:"required,max=255"`
	RecoveryAnswer   string `json:"recovery_answer" validate:"required,max=255"`
}

// HandleRegister handles new user registration and issues a session token.
func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing register request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if errs := h.validateStruct(req); errs != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  errs,
		})
	}

	token, user, err := h.authService.RegisterUser(req.Username, req.Password, req.RecoveryQuestion, req.RecoveryAnswer)
	if err != nil {
		log.Printf("Error registering user: %v", err)
		return errorJSON(c, "Registration failed", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":  "User registered successfully",
		"token":    token,
		"username": user.Username,
	})
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// HandleLogin handles user login and issues a session token.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing login request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if errs := h.validateStruct(req); errs != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  errs,
		})
	}

	token, user, err := h.authService.LoginUser(req.Username, req.Password)
	if err != nil {
		log.Printf("Error during login for user %s: %v", req.Username, err)
		return errorJSON(c, "Authentication failed", err)
	}

	return c.JSON(fiber.Map{
		"message":  "Login successful",
		"token":    token,
		"username": user.Username,
	})
}

// HandleFindUserForRecovery returns the recovery question for a username.
func (h *AuthHandler) HandleFindUserForRecovery(c *fiber.Ctx) error {
	username := c.Params("username")
	user, err := h.authService.FindUserForRecovery(username)
	if err != nil {
		log.Printf("Error finding user %s for recovery: %v", username, err)
		return errorJSON(c, "Recovery lookup failed", err)
	}

	return c.JSON(fiber.Map{
		"username":          user.Username,
		"recovery_question": user.RecoveryQuestion,
	})
}

// RecoveryVerifyRequest represents the request body for answer verification.
type RecoveryVerifyRequest struct {
	Username string `json:"username" validate:"required"`
	Answer   string `json:"answer" validate:"required"`
}

// HandleVerifyRecoveryAnswer checks a recovery answer.
func (h *AuthHandler) HandleVerifyRecoveryAnswer(c *fiber.Ctx) error {
	var req RecoveryVerifyRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing recovery verify request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if errs := h.validateStruct(req); errs != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  errs,
		})
	}

	if err := h.authService.VerifyRecoveryAnswer(req.Username, req.Answer); err != nil {
		log.Printf("Recovery answer verification failed for user %s: %v", req.Username, err)
		return errorJSON(c, "Verification failed", err)
	}

	return c.JSON(fiber.Map{
		"verified": true,
	})
}

// RecoveryResetRequest represents the request body for a password reset.
type RecoveryResetRequest struct {
	Username    string `json:"username" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6"`
}

// HandleResetPassword replaces a user's password.
func (h *AuthHandler) HandleResetPassword(c *fiber.Ctx) error {
	var req RecoveryResetRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing password reset request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if errs := h.validateStruct(req); errs != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  errs,
		})
	}

	if err := h.authService.ResetPassword(req.Username, req.NewPassword); err != nil {
		log.Printf("Error resetting password for user %s: %v", req.Username, err)
		return errorJSON(c, "Password reset failed", err)
	}

	return c.JSON(fiber.Map{
		"message": "Password reset successfully",
	})
}

// UpdateUsernameRequest represents the request body for a username change.
type UpdateUsernameRequest struct {
	NewUsername string `json:"new_username" validate:"required,min=3,max=100"`
}

// HandleUpdateUsername changes the authenticated user's username and issues a
// fresh token; the previous token stops resolving.
func (h *AuthHandler) HandleUpdateUsername(c *fiber.Ctx) error {
	var req UpdateUsernameRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing username update request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if errs := h.validateStruct(req); errs != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  errs,
		})
	}

	userID, _ := c.Locals("user_id").(string)
	user, err := h.authService.FindUserByID(userID)
	if err != nil {
		return errorJSON(c, "Could not resolve account", err)
	}

	token, updated, err := h.authService.UpdateUsername(user, req.NewUsername)
	if err != nil {
		log.Printf("Error updating username for user %s: %v", userID, err)
		return errorJSON(c, "Username update failed", err)
	}

	return c.JSON(fiber.Map{
		"message":  "Username updated successfully",
		"token":    token,
		"username": updated.Username,
	})
}

// validateStruct runs the struct tags and returns per-field messages, or nil
// when validation passed.
func (h *AuthHandler) validateStruct(s interface{}) map[string]string {
	if err := h.validate.Struct(s); err != nil {
		validationErrors := err.(validator.ValidationErrors)
		errorMessages := make(map[string]string)
		for _, e := range validationErrors {
			errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
		}
		return errorMessages
	}
	return nil
}
