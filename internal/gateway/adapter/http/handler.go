package http

import (
	"context"
	"time"

	"codes-api/internal/gateway/domain/model"
	"codes-api/internal/gateway/usecase"
	apperrors "codes-api/internal/shared/errors"
	"codes-api/internal/shared/logger"
	"codes-api/internal/shared/utils"

	"github.com/gofiber/fiber/v2"
)

// GatewayHTTPHandler serves the diagnostic routes.
type GatewayHTTPHandler struct {
	usecase        usecase.DiagnosticsUsecaseInterface
	requestTimeout time.Duration
	logger         logger.Logger
	now            func() time.Time
}

// NewGatewayHTTPHandler creates the handler. requestTimeout bounds every
// store query issued on behalf of a request.
func NewGatewayHTTPHandler(uc usecase.DiagnosticsUsecaseInterface, requestTimeout time.Duration, log logger.Logger) *GatewayHTTPHandler {
	return &GatewayHTTPHandler{
		usecase:        uc,
		requestTimeout: requestTimeout,
		logger:         log.WithComponent("handler"),
		now:            time.Now,
	}
}

// SetupRoutes registers the API routes under apiPrefix and /health at the root.
func (h *GatewayHTTPHandler) SetupRoutes(router fiber.Router, apiPrefix string) {
	api := router.Group(apiPrefix)
	api.Get("/test", h.Test)
	api.Get("/test-models", h.TestModels)

	router.Get("/health", h.Health)
}

// Test acknowledges that the backend is up.
func (h *GatewayHTTPHandler) Test(c *fiber.Ctx) error {
	return c.JSON(MessageResponse{
		Message:   MsgBackendOK,
		Timestamp: model.FormatTimestamp(h.now()),
	})
}

// TestModels reports the document count of each collection.
func (h *GatewayHTTPHandler) TestModels(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c, "test_models")
	defer cancel()

	stats, err := h.usecase.CollectionStats(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorDetailsResponse{
			Error:   MsgModelsError,
			Details: err.Error(),
		})
	}

	return c.JSON(ModelsResponse{
		Message:     MsgModelsOK,
		Collections: *stats,
		Timestamp:   model.FormatTimestamp(h.now()),
	})
}

// Health pings the store and optional dependencies.
func (h *GatewayHTTPHandler) Health(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c, "health")
	defer cancel()

	report := h.usecase.Health(ctx)
	resp := HealthResponse{
		Status:    StatusHealthy,
		Checks:    report.Checks,
		Timestamp: model.FormatTimestamp(h.now()),
	}

	if !report.Healthy() {
		h.logger.WithContext(ctx).Errorf("health check failed: %v", report.Err)
		resp.Status = StatusUnhealthy
		resp.Error = report.Err.Error()
		return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
	}
	return c.JSON(resp)
}

// NotFound is the catch-all for unmatched paths and methods. The error
// boundary renders it.
func (h *GatewayHTTPHandler) NotFound(c *fiber.Ctx) error {
	return apperrors.NewNotFoundError(MsgRouteNotFound)
}

// requestContext tags the user context with operation and bounds it by the
// request timeout.
func (h *GatewayHTTPHandler) requestContext(c *fiber.Ctx, operation string) (context.Context, context.CancelFunc) {
	ctx := utils.WithOperation(c.UserContext(), operation)
	if h.requestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, h.requestTimeout)
}
