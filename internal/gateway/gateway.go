package gateway

import (
	"errors"

	gatewayhttp "codes-api/internal/gateway/adapter/http"
	"codes-api/internal/gateway/config"
	"codes-api/internal/gateway/domain/repository"
	"codes-api/internal/gateway/usecase"
	"codes-api/internal/shared/logger"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
)

const appName = "codes-api"

// GatewayModule wires the HTTP gateway: middleware chain, diagnostic routes
// and the error boundary.
type GatewayModule struct {
	config     *config.Config
	handler    *gatewayhttp.GatewayHTTPHandler
	middleware *gatewayhttp.GatewayMiddleware
	logger     logger.Logger
}

// NewGatewayModule creates the gateway. counter may be nil, in which case
// rate limit counters are kept in process memory. A counter that can report
// its own health is included in /health.
func NewGatewayModule(cfg *config.Config, store repository.Store, counter repository.RateLimitCounter, log logger.Logger) (*GatewayModule, error) {
	if cfg == nil {
		return nil, errors.New("gateway config is required")
	}
	if store == nil {
		return nil, errors.New("gateway store is required")
	}

	var checkers []repository.HealthChecker
	if hc, ok := counter.(repository.HealthChecker); ok {
		checkers = append(checkers, hc)
	}

	diagnostics := usecase.NewDiagnosticsUsecase(store, log, checkers...)

	return &GatewayModule{
		config:     cfg,
		handler:    gatewayhttp.NewGatewayHTTPHandler(diagnostics, cfg.RequestTimeout, log),
		middleware: gatewayhttp.NewGatewayMiddleware(cfg, counter, log),
		logger:     log.WithComponent("gateway"),
	}, nil
}

// NewApp creates a Fiber application configured for the gateway with no
// handlers registered.
func (gm *GatewayModule) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               appName,
		BodyLimit:             gm.config.TransportBodyLimit(),
		ReadTimeout:           gm.config.ReadTimeout,
		WriteTimeout:          gm.config.WriteTimeout,
		IdleTimeout:           gm.config.IdleTimeout,
		ProxyHeader:           gm.config.ProxyHeader,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler:          gm.middleware.ErrorHandler(),
		DisableStartupMessage: true,
	})

	app.Hooks().OnListen(func(data fiber.ListenData) error {
		gm.logger.Infof("Servidor rodando na porta %s", data.Port)
		return nil
	})
	return app
}

// Build returns a fully wired application.
func (gm *GatewayModule) Build() *fiber.App {
	app := gm.NewApp()
	gm.RegisterMiddleware(app)
	gm.RegisterRoutes(app)
	gm.RegisterFallback(app)
	return app
}

// RegisterMiddleware installs the request policies. Order matters: the access
// log wraps panic recovery so recovered requests are logged too, security
// headers and CORS apply to every response, the limiter only counts requests
// under the API prefix, and bodies are parsed after a request is admitted.
func (gm *GatewayModule) RegisterMiddleware(app *fiber.App) {
	m := gm.middleware

	app.Use(m.RequestID())
	app.Use(m.RequestContext())
	app.Use(m.AccessLog())
	app.Use(m.Recover())
	app.Use(m.SecurityHeaders())
	app.Use(m.CORS())
	app.Use(gm.config.APIPrefix, m.RateLimiter())
	app.Use(m.BodyParser())
}

// RegisterRoutes registers the diagnostic routes.
func (gm *GatewayModule) RegisterRoutes(router fiber.Router) {
	gm.handler.SetupRoutes(router, gm.config.APIPrefix)
}

// RegisterFallback installs the catch-all 404. It must be registered last.
func (gm *GatewayModule) RegisterFallback(app *fiber.App) {
	app.Use(gm.handler.NotFound)
}
