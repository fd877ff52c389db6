package handlers

import (
	"errors"

	"debtbook/internal/services"

	"github.com/gofiber/fiber/v2"
)

// statusForError maps service errors to HTTP statuses. Anything outside the
// taxonomy is a 500.
func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrCustomerNotFound),
		errors.Is(err, services.ErrTransactionNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrIncorrectPassword),
		errors.Is(err, services.ErrRecoveryAnswerIncorrect),
		errors.Is(err, services.ErrUnauthorized):
		return fiber.StatusUnauthorized
	case errors.Is(err, services.ErrUsernameTaken):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// errorJSON writes the standard error body for a failed operation.
func errorJSON(c *fiber.Ctx, message string, err error) error {
	return c.Status(statusForError(err)).JSON(fiber.Map{
		"message": message,
		"error":   err.Error(),
	})
}
