package middleware

import (
	"quizforge/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// SessionIDLocal is the Locals key holding the validated session id.
const SessionIDLocal = "validated_session_id"

// ValidationMiddleware provides request validation middleware
type ValidationMiddleware struct {
	validator *validation.Validator
}

// NewValidationMiddleware creates a new validation middleware instance
func NewValidationMiddleware() *ValidationMiddleware {
	return &ValidationMiddleware{
		validator: validation.NewValidator(),
	}
}

// ValidateSessionID validates the :id path parameter
func (vm *ValidationMiddleware) ValidateSessionID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if errors := vm.validator.ValidateSessionID(id); len(errors) > 0 {
			return errors
		}
		c.Locals(SessionIDLocal, id)
		return c.Next()
	}
}
