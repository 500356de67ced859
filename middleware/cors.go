package middleware

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CORSConfig lists the browser origins allowed to call the API.
// An empty AllowedOrigins admits any origin.
type CORSConfig struct {
	AllowedOrigins   []string
	AllowCredentials bool
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	MaxAge           int // seconds
}

func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowCredentials: true,
		AllowedMethods: []string{
			fiber.MethodGet, fiber.MethodPost, fiber.MethodPut,
			fiber.MethodDelete, fiber.MethodPatch, fiber.MethodOptions,
		},
		AllowedHeaders: []string{
			fiber.HeaderOrigin, fiber.HeaderContentType, fiber.HeaderAccept,
			fiber.HeaderAuthorization, fiber.HeaderXRequestedWith,
		},
		ExposedHeaders: []string{fiber.HeaderContentLength, "X-RateLimit-Remaining"},
		MaxAge:         3600,
	}
}

type corsPolicy struct {
	origins     map[string]bool
	anyOrigin   bool
	credentials bool
	methods     string
	headers     string
	exposed     string
	maxAge      string
}

func newCORSPolicy(cfg CORSConfig) corsPolicy {
	p := corsPolicy{
		origins:     make(map[string]bool, len(cfg.AllowedOrigins)),
		anyOrigin:   len(cfg.AllowedOrigins) == 0,
		credentials: cfg.AllowCredentials,
		methods:     strings.Join(cfg.AllowedMethods, ","),
		headers:     strings.Join(cfg.AllowedHeaders, ","),
		exposed:     strings.Join(cfg.ExposedHeaders, ","),
		maxAge:      strconv.Itoa(cfg.MaxAge),
	}
	for _, o := range cfg.AllowedOrigins {
		p.origins[strings.TrimRight(o, "/")] = true
	}
	return p
}

// allowOrigin returns the value for Access-Control-Allow-Origin, or "" when
// the origin is not admitted.
func (p corsPolicy) allowOrigin(origin string) string {
	switch {
	case origin == "":
		return ""
	case p.anyOrigin && !p.credentials:
		return "*"
	case p.anyOrigin || p.origins[origin]:
		return origin
	}
	return ""
}

// CORS answers preflight requests itself and decorates every other response
// with the allow headers for admitted origins.
func CORS(config ...CORSConfig) fiber.Handler {
	cfg := DefaultCORSConfig()
	if len(config) > 0 {
		cfg = config[0]
	}
	policy := newCORSPolicy(cfg)

	return func(c *fiber.Ctx) error {
		c.Vary(fiber.HeaderOrigin)
		allowed := policy.allowOrigin(c.Get(fiber.HeaderOrigin))

		preflight := c.Method() == fiber.MethodOptions
		if allowed == "" {
			if preflight {
				return c.SendStatus(fiber.StatusNoContent)
			}
			return c.Next()
		}

		c.Set(fiber.HeaderAccessControlAllowOrigin, allowed)
		if policy.credentials {
			c.Set(fiber.HeaderAccessControlAllowCredentials, "true")
		}

		if preflight {
			c.Set(fiber.HeaderAccessControlAllowMethods, policy.methods)
			c.Set(fiber.HeaderAccessControlAllowHeaders, policy.headers)
			c.Set(fiber.HeaderAccessControlMaxAge, policy.maxAge)
			return c.SendStatus(fiber.StatusNoContent)
		}

		if policy.exposed != "" {
			c.Set(fiber.HeaderAccessControlExposeHeaders, policy.exposed)
		}
		return c.Next()
	}
}
