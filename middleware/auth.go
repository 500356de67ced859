package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
	"mailwarm/models"
	"mailwarm/utils"
)

const accessCookie = "access_token"

var (
	errMissingCredentials = errors.New("authorization required")
	errMalformedHeader    = errors.New("authorization header must be 'Bearer <token>'")
)

// bearerToken reads the access token from the Authorization header, or from
// the access_token cookie when no header was sent.
func bearerToken(c *fiber.Ctx) (string, error) {
	header := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if header == "" {
		if cookie := c.Cookies(accessCookie); cookie != "" {
			return cookie, nil
		}
		return "", errMissingCredentials
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errMalformedHeader
	}
	return strings.TrimSpace(token), nil
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": msg})
}

// Protected resolves the mailbox owner behind an access token and stores it
// under c.Locals("user"). Tokens minted before the owner's last logout or
// password change carry a stale version and are rejected.
func Protected(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw, err := bearerToken(c)
		if err != nil {
			return unauthorized(c, err.Error())
		}

		claims, err := utils.ParseJWTToken(raw)
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return unauthorized(c, "access token expired")
		case err != nil:
			return unauthorized(c, "invalid access token")
		case claims.TokenType != utils.TokenAccess:
			return unauthorized(c, "refresh tokens cannot authorize requests")
		}

		var owner models.User
		if err := db.First(&owner, claims.UserID).Error; err != nil {
			return unauthorized(c, "unknown user")
		}
		if !owner.IsActive {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "account disabled"})
		}
		if claims.TokenVersion != owner.TokenVersion {
			return unauthorized(c, "session has been revoked")
		}

		c.Locals("user", &owner)
		return c.Next()
	}
}
