package utils

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/badoux/checkmail"
	"github.com/gofiber/fiber/v2"
)

// GenerateRateLimitKey creates a unique key for rate limiting
func GenerateRateLimitKey(userID uint, accountID, path string) string {
	return fmt.Sprintf("rl:%d:%s:%s", userID, accountID, path)
}

// CheckMailboxDomain verifies the address syntax and that its domain accepts mail.
func CheckMailboxDomain(email string) error {
	if err := checkmail.ValidateFormat(email); err != nil {
		return fmt.Errorf("invalid email format: %w", err)
	}
	records, err := net.LookupMX(domainOf(email))
	if err != nil || len(records) == 0 {
		return fmt.Errorf("no MX record for %s: %v", domainOf(email), err)
	}
	return nil
}

func domainOf(email string) string {
	if i := strings.LastIndex(email, "@"); i >= 0 {
		return email[i+1:]
	}
	return ""
}

// ErrorResponse creates a standardized error response
func ErrorResponse(c *fiber.Ctx, status int, message string, err error) error {
	response := fiber.Map{
		"error": message,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	return c.Status(status).JSON(response)
}

// ParseUint safely parses a string to uint
func ParseUint(s string) (uint, error) {
	i, err := strconv.ParseUint(s, 10, 32)
	if err != nil || i == 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return uint(i), nil
}
