package http

import (
	"errors"

	apperrors "codes-api/internal/shared/errors"
	"codes-api/internal/shared/logger"

	"github.com/gofiber/fiber/v2"
)

// NewErrorHandler returns the terminal error boundary. Client errors raised by
// middleware keep their status and message; everything else is logged and
// rendered as an opaque 500.
func NewErrorHandler(log logger.Logger) fiber.ErrorHandler {
	boundaryLog := log.WithComponent("error_boundary")

	return func(c *fiber.Ctx, err error) error {
		status, message := StatusFromError(err)
		if status >= fiber.StatusInternalServerError {
			boundaryLog.WithContext(c.UserContext()).WithFields(map[string]interface{}{
				"method": c.Method(),
				"path":   c.Path(),
				"error":  err.Error(),
			}).Error("Erro no servidor")
		}
		return c.Status(status).JSON(ErrorResponse{Error: message})
	}
}

// StatusFromError maps err to the status and public message it is rendered with.
func StatusFromError(err error) (int, string) {
	if apperrors.IsClientError(err) {
		appErr, _ := apperrors.AsAppError(err)
		return appErr.HTTPCode, appErr.Message
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		switch fiberErr.Code {
		case fiber.StatusRequestEntityTooLarge:
			return fiber.StatusRequestEntityTooLarge, MsgPayloadTooLarge
		case fiber.StatusNotFound:
			return fiber.StatusNotFound, MsgRouteNotFound
		case fiber.StatusBadRequest:
			return fiber.StatusBadRequest, MsgBadRequest
		case fiber.StatusTooManyRequests:
			return fiber.StatusTooManyRequests, MsgRateLimited
		}
	}

	return fiber.StatusInternalServerError, MsgInternalError
}
