package middleware

import (
	"strings"

	"github.com/arc-invoice/backend/internal/auth"
	"github.com/arc-invoice/backend/internal/config"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const CtxWallet = "wallet"

func bearerToken(c *fiber.Ctx) (string, bool) {
	header := c.Get("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	return token, header != "" && token != header
}

func AuthMiddleware(cfg *config.Config, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get("Authorization") == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing authorization header"})
		}

		tokenStr, ok := bearerToken(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid authorization format"})
		}

		claims, err := auth.ParseJWT(cfg.JWTSecret, tokenStr)
		if err != nil {
			log.Debug("jwt parse error", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid or expired token"})
		}

		c.Locals(CtxWallet, claims.Wallet)
		return c.Next()
	}
}

// OptionalAuthMiddleware sets the wallet when a valid bearer token is present
// and lets the request through either way.
func OptionalAuthMiddleware(cfg *config.Config, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr, ok := bearerToken(c)
		if !ok {
			return c.Next()
		}
		claims, err := auth.ParseJWT(cfg.JWTSecret, tokenStr)
		if err != nil {
			log.Debug("optional jwt ignored", zap.Error(err))
			return c.Next()
		}
		c.Locals(CtxWallet, claims.Wallet)
		return c.Next()
	}
}

// GetWallet returns the authenticated wallet, or "" for anonymous requests.
func GetWallet(c *fiber.Ctx) string {
	w, _ := c.Locals(CtxWallet).(string)
	return w
}
