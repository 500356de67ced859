package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"mailwarm/models"
	"mailwarm/utils"
)

// AccountTestRateLimiter throttles connection tests per user and account.
// A nil storage keeps counters in memory.
func AccountTestRateLimiter(max int, storage fiber.Storage) fiber.Handler {
	if max < 1 {
		max = 1
	}
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			user := c.Locals("user").(*models.User)
			return utils.GenerateRateLimitKey(user.ID, c.Params("id"), c.Route().Path)
		},
		LimitReached: func(c *fiber.Ctx) error {
			user := c.Locals("user").(*models.User)
			utils.LogEvent("rate_limit_hit", map[string]interface{}{
				"user_id":    user.ID,
				"endpoint":   c.Path(),
				"ip":         c.IP(),
				"user_agent": c.Get("User-Agent"),
			})

			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Too many test requests. Please wait before testing again.",
				"retry_after": strconv.Itoa(60),
			})
		},
		Storage: storage,
	})
}
