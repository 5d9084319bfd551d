package http

import (
	"fmt"
	"runtime/debug"
	"strconv"
	"time"

	"codes-api/internal/gateway/config"
	"codes-api/internal/gateway/domain/repository"
	apperrors "codes-api/internal/shared/errors"
	"codes-api/internal/shared/logger"
	"codes-api/internal/shared/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
)

const (
	requestIDLocalsKey = "requestid"

	// contentSecurityPolicy mirrors helmet's default directive set.
	contentSecurityPolicy = "default-src 'self';base-uri 'self';font-src 'self' https: data:;" +
		"form-action 'self';frame-ancestors 'self';img-src 'self' data:;object-src 'none';" +
		"script-src 'self';script-src-attr 'none';style-src 'self' https: 'unsafe-inline';" +
		"upgrade-insecure-requests"

	hstsMaxAgeSeconds = 15552000

	corsAllowMethods = "GET,HEAD,PUT,PATCH,POST,DELETE"

	headerRateLimitLimit     = "X-RateLimit-Limit"
	headerRateLimitRemaining = "X-RateLimit-Remaining"
	headerRateLimitReset     = "X-RateLimit-Reset"
)

// securityHeaders is the helmet configuration. HSTS is sent on every
// response since TLS usually terminates at a proxy in front of the gateway.
var securityHeaders = helmet.Config{
	XSSProtection:             "0",
	ContentTypeNosniff:        "nosniff",
	XFrameOptions:             "SAMEORIGIN",
	HSTSMaxAge:                hstsMaxAgeSeconds,
	ContentSecurityPolicy:     contentSecurityPolicy,
	ReferrerPolicy:            "no-referrer",
	CrossOriginEmbedderPolicy: "require-corp",
	CrossOriginOpenerPolicy:   "same-origin",
	CrossOriginResourcePolicy: "same-origin",
	OriginAgentCluster:        "?1",
	XDNSPrefetchControl:       "off",
	XDownloadOptions:          "noopen",
	XPermittedCrossDomain:     "none",
}

var hstsValue = "max-age=" + strconv.Itoa(hstsMaxAgeSeconds) + "; includeSubDomains"

// GatewayMiddleware builds the cross-cutting request policies.
type GatewayMiddleware struct {
	cfg     *config.Config
	counter repository.RateLimitCounter
	logger  logger.Logger
}

// NewGatewayMiddleware creates the middleware set. A nil counter keeps rate
// limit counters in process memory.
func NewGatewayMiddleware(cfg *config.Config, counter repository.RateLimitCounter, log logger.Logger) *GatewayMiddleware {
	return &GatewayMiddleware{
		cfg:     cfg,
		counter: counter,
		logger:  log.WithComponent("http"),
	}
}

// Recover converts panics into errors handled by the error boundary.
func (m *GatewayMiddleware) Recover() fiber.Handler {
	return recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
			m.logger.WithContext(c.UserContext()).WithFields(map[string]interface{}{
				"panic": fmt.Sprint(e),
				"stack": string(debug.Stack()),
			}).Error("panic recovered")
		},
	})
}

// RequestID echoes X-Request-ID or generates a UUID for it.
func (m *GatewayMiddleware) RequestID() fiber.Handler {
	return requestid.New(requestid.Config{
		Header:     fiber.HeaderXRequestID,
		Generator:  uuid.NewString,
		ContextKey: requestIDLocalsKey,
	})
}

// RequestContext copies the request id and client key into the user context
// so downstream logging and store calls can see them.
func (m *GatewayMiddleware) RequestContext() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		if id, ok := c.Locals(requestIDLocalsKey).(string); ok && id != "" {
			ctx = utils.WithRequestID(ctx, id)
		}
		ctx = utils.WithClientIP(ctx, ClientKey(c))
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// AccessLog logs one line per request after the chain returns.
func (m *GatewayMiddleware) AccessLog() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status, _ = StatusFromError(err)
		}

		m.logger.WithContext(c.UserContext()).WithFields(map[string]interface{}{
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     status,
			"latency_ms": time.Since(start).Milliseconds(),
		}).Info("request completed")
		return err
	}
}

// SecurityHeaders applies the baseline security response headers.
func (m *GatewayMiddleware) SecurityHeaders() fiber.Handler {
	h := helmet.New(securityHeaders)
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderStrictTransportSecurity, hstsValue)
		return h(c)
	}
}

// CORS allows exactly one origin for the current environment, with
// credentials. Requests from other origins get no allow-origin header.
func (m *GatewayMiddleware) CORS() fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins:     m.cfg.AllowedOrigin(),
		AllowMethods:     corsAllowMethods,
		AllowCredentials: true,
	})
}

// ErrorHandler is the error boundary with the response policies applied
// again. Requests the server rejects before routing, such as bodies over the
// transport limit, never pass through SecurityHeaders or CORS.
func (m *GatewayMiddleware) ErrorHandler() fiber.ErrorHandler {
	boundary := NewErrorHandler(m.logger)
	return func(c *fiber.Ctx, err error) error {
		m.applyResponsePolicies(c)
		return boundary(c, err)
	}
}

// applyResponsePolicies sets the same headers SecurityHeaders and CORS would
// have set for a simple request.
func (m *GatewayMiddleware) applyResponsePolicies(c *fiber.Ctx) {
	h := securityHeaders
	c.Set(fiber.HeaderXXSSProtection, h.XSSProtection)
	c.Set(fiber.HeaderXContentTypeOptions, h.ContentTypeNosniff)
	c.Set(fiber.HeaderXFrameOptions, h.XFrameOptions)
	c.Set(fiber.HeaderContentSecurityPolicy, h.ContentSecurityPolicy)
	c.Set(fiber.HeaderReferrerPolicy, h.ReferrerPolicy)
	c.Set("Cross-Origin-Embedder-Policy", h.CrossOriginEmbedderPolicy)
	c.Set("Cross-Origin-Opener-Policy", h.CrossOriginOpenerPolicy)
	c.Set("Cross-Origin-Resource-Policy", h.CrossOriginResourcePolicy)
	c.Set("Origin-Agent-Cluster", h.OriginAgentCluster)
	c.Set(fiber.HeaderXDNSPrefetchControl, h.XDNSPrefetchControl)
	c.Set("X-Download-Options", h.XDownloadOptions)
	c.Set("X-Permitted-Cross-Domain-Policies", h.XPermittedCrossDomain)
	c.Set(fiber.HeaderStrictTransportSecurity, hstsValue)

	origin := c.Get(fiber.HeaderOrigin)
	if origin != "" && origin == m.cfg.AllowedOrigin() {
		c.Vary(fiber.HeaderOrigin)
		c.Set(fiber.HeaderAccessControlAllowOrigin, origin)
		c.Set(fiber.HeaderAccessControlAllowCredentials, "true")
	}
}

// RateLimiter enforces RateLimitMax requests per client within a sliding
// RateLimitWindow. With a shared counter every replica draws from the same
// budget; otherwise counters live in process memory.
func (m *GatewayMiddleware) RateLimiter() fiber.Handler {
	if m.counter != nil {
		return m.sharedRateLimiter()
	}
	return limiter.New(limiter.Config{
		Max:               m.cfg.RateLimitMax,
		Expiration:        m.cfg.RateLimitWindow,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      ClientKey,
		LimitReached:      m.limitReached,
	})
}

func (m *GatewayMiddleware) sharedRateLimiter() fiber.Handler {
	return func(c *fiber.Ctx) error {
		decision, err := m.counter.Allow(c.UserContext(), ClientKey(c), m.cfg.RateLimitMax, m.cfg.RateLimitWindow)
		if err != nil {
			// Fail open: an unavailable counter must not take the API down.
			m.logger.WithContext(c.UserContext()).Errorf("rate limit check failed: %v", err)
			return c.Next()
		}

		resetSeconds := strconv.Itoa(int(decision.ResetAfter.Round(time.Second).Seconds()))
		c.Set(headerRateLimitLimit, strconv.Itoa(decision.Limit))
		c.Set(headerRateLimitRemaining, strconv.Itoa(decision.Remaining))
		c.Set(headerRateLimitReset, resetSeconds)

		if !decision.Allowed {
			c.Set(fiber.HeaderRetryAfter, resetSeconds)
			return m.limitReached(c)
		}
		return c.Next()
	}
}

func (m *GatewayMiddleware) limitReached(c *fiber.Ctx) error {
	m.logger.WithContext(c.UserContext()).WithFields(map[string]interface{}{
		"method": c.Method(),
		"path":   c.Path(),
	}).Warn("rate limit exceeded")
	return apperrors.NewRateLimitError(MsgRateLimited)
}

// ClientKey identifies the client for rate limiting: the connection address,
// or the configured proxy header when one is trusted.
func ClientKey(c *fiber.Ctx) string {
	return c.IP()
}
