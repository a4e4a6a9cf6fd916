package utils

import (
	"encoding/json"
	"strings"
	"time"

	"homecare-booking/types"

	"github.com/gofiber/fiber/v2"
)

// sensitiveFields are redacted from request bodies before logging.
var sensitiveFields = []string{"password", "token", "authorization", "card_number", "cvv"}

// ActorFromContext extracts the authenticated actor identifier from the
// request, or "anonymous" when the route is unauthenticated.
func ActorFromContext(c *fiber.Ctx) string {
	claims, ok := c.Locals("user").(map[string]interface{})
	if !ok {
		return "anonymous"
	}
	if sub, ok := claims["sub"].(string); ok && sub != "" {
		return sub
	}
	if email, ok := claims["email"].(string); ok && email != "" {
		return email
	}
	return "anonymous"
}

// CreateSanitizedLogEntry creates a deep copied and sanitized log entry for
// the async request logger.
func CreateSanitizedLogEntry(c *fiber.Ctx) types.LogEntry {
	method := string([]byte(c.Method()))
	url := string([]byte(c.OriginalURL()))
	requestBody := sanitizeRequestBody(c)
	responseBody := string(append([]byte(nil), c.Response().Body()...))

	requestHeaders := make([]byte, len(c.Request().Header.Header()))
	copy(requestHeaders, c.Request().Header.Header())

	responseHeaders := make([]byte, len(c.Response().Header.Header()))
	copy(responseHeaders, c.Response().Header.Header())

	return types.LogEntry{
		Method:          method,
		URL:             url,
		RequestBody:     requestBody,
		ResponseBody:    responseBody,
		RequestHeaders:  string(requestHeaders),
		ResponseHeaders: string(responseHeaders),
		StatusCode:      c.Response().StatusCode(),
		Actor:           ActorFromContext(c),
		CreatedAt:       time.Now(),
	}
}

// sanitizeRequestBody redacts sensitive fields from a JSON request body.
// Non-JSON bodies are logged truncated and as-is.
func sanitizeRequestBody(c *fiber.Ctx) string {
	body := c.Body()
	if len(body) == 0 {
		return ""
	}
	if len(body) > 10*1024 {
		return "[body truncated: too large]"
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return string(append([]byte(nil), body...))
	}

	for key := range parsed {
		for _, sensitive := range sensitiveFields {
			if strings.Contains(strings.ToLower(key), sensitive) {
				parsed[key] = "[redacted]"
			}
		}
	}

	sanitized, err := json.Marshal(parsed)
	if err != nil {
		return "[body sanitization failed]"
	}
	return string(sanitized)
}
