package middleware

import (
	"context"

	"logistics-backend/token"

	"github.com/redis/go-redis/v9"
)

// AppContext bundles the dependencies of the auth middleware
type AppContext struct {
	PasetoMaker   token.Maker
	Ctx           context.Context
	RedisClient   *redis.Client
	CookieDomain  string
	SecureCookies bool
}
