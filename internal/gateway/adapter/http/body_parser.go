package http

import (
	"bytes"
	"errors"
	"strings"

	apperrors "codes-api/internal/shared/errors"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
)

const parsedBodyLocalsKey = "parsedBody"

// BodyParser decodes JSON and URL-encoded bodies into c.Locals. Other media
// types pass through untouched. Rejections are raised as client errors.
func (m *GatewayMiddleware) BodyParser() fiber.Handler {
	formOpts := FormOptions{
		ParameterLimit: m.cfg.FormParamLimit,
		Depth:          m.cfg.FormNestDepth,
		ArrayLimit:     m.cfg.FormArrayLimit,
	}

	return func(c *fiber.Ctx) error {
		c.Locals(parsedBodyLocalsKey, map[string]interface{}{})

		body := c.Body()
		if len(body) == 0 {
			return c.Next()
		}

		switch mediaType(c) {
		case fiber.MIMEApplicationJSON:
			if len(body) > m.cfg.JSONBodyLimit {
				return apperrors.NewPayloadTooLargeError(MsgPayloadTooLarge).WithCause(apperrors.ErrBodyTooLarge)
			}
			value, err := decodeJSONBody(body)
			if err != nil {
				return apperrors.NewValidationError(MsgInvalidJSON).WithCause(err)
			}
			c.Locals(parsedBodyLocalsKey, value)

		case fiber.MIMEApplicationForm:
			if len(body) > m.cfg.FormBodyLimit {
				return apperrors.NewPayloadTooLargeError(MsgPayloadTooLarge).WithCause(apperrors.ErrBodyTooLarge)
			}
			value, err := ParseNestedForm(string(body), formOpts)
			if errors.Is(err, apperrors.ErrTooManyParams) {
				return apperrors.NewPayloadTooLargeError(MsgTooManyParams).WithCause(err)
			}
			if err != nil {
				return apperrors.NewValidationError(MsgInvalidForm).WithCause(err)
			}
			c.Locals(parsedBodyLocalsKey, value)
		}

		return c.Next()
	}
}

// ParsedBody returns the body decoded by BodyParser: a map or slice for JSON,
// a nested map for forms, or an empty map when there was nothing to decode.
func ParsedBody(c *fiber.Ctx) interface{} {
	return c.Locals(parsedBodyLocalsKey)
}

// decodeJSONBody accepts only objects and arrays at the top level.
func decodeJSONBody(body []byte) (interface{}, error) {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') {
		return nil, apperrors.ErrInvalidJSON
	}

	var value interface{}
	if err := json.Unmarshal(trimmed, &value); err != nil {
		return nil, err
	}
	return value, nil
}

func mediaType(c *fiber.Ctx) string {
	ct := string(c.Request().Header.ContentType())
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}
