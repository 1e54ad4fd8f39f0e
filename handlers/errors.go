// handlers/errors.go - Error to HTTP response mapping
package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"wordlewise/logger"
	"wordlewise/services"
)

const genericErrorMessage = "An error occurred. Please try again later."

// StatusFor maps a domain error kind to an HTTP status.
func StatusFor(kind services.Kind) int {
	switch kind {
	case services.KindValidation:
		return fiber.StatusBadRequest
	case services.KindAuthentication:
		return fiber.StatusUnauthorized
	case services.KindAuthorization:
		return fiber.StatusForbidden
	case services.KindNotFound:
		return fiber.StatusNotFound
	case services.KindConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler writes {success:false,error} for any error a handler
// returns. Domain messages are user-safe and pass through; 5xx text is
// replaced in production.
func ErrorHandler(production bool, log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal Server Error"

		var fe *fiber.Error
		var de *services.Error
		switch {
		case errors.As(err, &fe):
			code = fe.Code
			message = fe.Message
		case errors.As(err, &de):
			code = StatusFor(de.Kind)
			message = de.Message
		default:
			message = err.Error()
		}

		if code >= fiber.StatusInternalServerError {
			log.Error("request failed",
				zap.String("request_id", logger.RequestID(c)),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
			if production {
				message = genericErrorMessage
			}
		}

		return c.Status(code).JSON(fiber.Map{
			"success": false,
			"error":   message,
		})
	}
}
