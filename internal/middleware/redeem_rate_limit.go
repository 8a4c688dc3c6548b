package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/claimlink/claimlink/internal/credential"
)

// RedeemRateLimit limits redemption attempts per credential (by fingerprint,
// never the raw token) or IP using Redis if available.
func RedeemRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 10
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next() // no-op without Redis
		}
		var req struct {
			Credential string `json:"credential"`
		}
		_ = c.BodyParser(&req)
		key := strings.TrimSpace(req.Credential)
		if key == "" {
			key = c.IP()
		} else {
			key = credential.Fingerprint(key)
		}
		key = "rl:redeem:" + key
		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err == nil && cnt == 1 {
			cache.Expire(c.UserContext(), key, time.Minute)
		}
		if err != nil {
			return c.Next() // fail-open on cache errors
		}
		if cnt > int64(maxPerMin) {
			return fiber.NewError(http.StatusTooManyRequests, "too many redemption attempts, try again later")
		}
		return c.Next()
	}
}
