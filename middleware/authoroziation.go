package middleware

import (
	"strings"
	"time"

	"logistics-backend/config"
	"logistics-backend/token"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	userLocalsKey        = "user"
	accessTokenDuration  = 15 * time.Minute
	refreshTokenDuration = 7 * 24 * time.Hour
)

// ActorFromContext returns the identity of the authenticated caller.
func ActorFromContext(c *fiber.Ctx) (string, bool) {
	payload, ok := c.Locals(userLocalsKey).(*token.Payload)
	if !ok || payload == nil {
		return "", false
	}
	return payload.Actor(), true
}

func accessTokenFrom(c *fiber.Ctx) string {
	if auth := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return c.Cookies("access_token")
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"message": "Unauthorized",
		"error":   msg,
	})
}

func internalError(c *fiber.Ctx) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"message": "Something went wrong",
		"error":   "An internal server error occurred.",
	})
}

// ProtectedRoute accepts a bearer token or access_token cookie. An expired access
// cookie is replaced using the single-use refresh token stored in redis.
func ProtectedRoute(ctx *AppContext) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if accessToken := accessTokenFrom(c); accessToken != "" {
			payload, err := ctx.PasetoMaker.VerifyToken(accessToken)
			if err == nil {
				c.Locals(userLocalsKey, payload)
				return c.Next()
			}
			config.Logger.Debug("Invalid access token encountered", zap.Error(err))
		}

		refreshToken := c.Cookies("refresh_token")
		if refreshToken == "" || ctx.RedisClient == nil {
			return unauthorized(c, "Authentication required")
		}

		refreshPayload, err := ctx.PasetoMaker.VerifyToken(refreshToken)
		if err != nil {
			config.Logger.Warn("Refresh token verification failed", zap.Error(err))
			return unauthorized(c, "Session expired or invalid. Please log in again.")
		}

		key := "refresh_token:" + refreshToken
		userID, err := ctx.RedisClient.Get(ctx.Ctx, key).Result()
		if err == redis.Nil {
			config.Logger.Warn("Refresh token not found in Redis",
				zap.String("payload_id", refreshPayload.ID.String()),
				zap.String("email", refreshPayload.Email),
			)
			return unauthorized(c, "Session invalid. Please log in again.")
		} else if err != nil {
			config.Logger.Error("Error accessing Redis for refresh token validation", zap.Error(err))
			return internalError(c)
		}

		if err := ctx.RedisClient.Del(ctx.Ctx, key).Err(); err != nil {
			config.Logger.Warn("Error deleting old refresh token from Redis",
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}

		newAccessToken, err := ctx.PasetoMaker.CreateToken(refreshPayload.Email, accessTokenDuration)
		if err != nil {
			config.Logger.Error("Could not generate new access token", zap.String("user_id", userID), zap.Error(err))
			return internalError(c)
		}
		newRefreshToken, err := ctx.PasetoMaker.CreateToken(refreshPayload.Email, refreshTokenDuration)
		if err != nil {
			config.Logger.Error("Could not generate new refresh token", zap.String("user_id", userID), zap.Error(err))
			return internalError(c)
		}

		if err := ctx.RedisClient.Set(ctx.Ctx, "refresh_token:"+newRefreshToken, userID, refreshTokenDuration).Err(); err != nil {
			config.Logger.Error("Error storing new refresh token in Redis", zap.String("user_id", userID), zap.Error(err))
			return internalError(c)
		}

		c.Cookie(ctx.sessionCookie("access_token", newAccessToken, accessTokenDuration))
		c.Cookie(ctx.sessionCookie("refresh_token", newRefreshToken, refreshTokenDuration))

		c.Locals(userLocalsKey, refreshPayload)
		return c.Next()
	}
}

func (ctx *AppContext) sessionCookie(name, value string, ttl time.Duration) *fiber.Cookie {
	return &fiber.Cookie{
		Name:     name,
		Value:    value,
		Expires:  time.Now().Add(ttl),
		HTTPOnly: true,
		Secure:   ctx.SecureCookies,
		SameSite: "Lax",
		Path:     "/",
		Domain:   ctx.CookieDomain,
	}
}
