package bootstrap

import (
	"time"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/config"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const devTokenTTL = 12 * time.Hour

// RegisterDevRoutes registers development-only routes without authentication.
// WARNING: Only enable in development environment!
func RegisterDevRoutes(app *fiber.App, cfg *config.Config) {
	dev := app.Group("/dev")

	// GET /dev/token?sub=someone@example.com
	dev.Get("/token", func(c *fiber.Ctx) error {
		sub := c.Query("sub", cfg.User)
		token, err := IssueToken(cfg.JWTSecret, sub, devTokenTTL)
		if err != nil {
			return err
		}
		logger.Info("[Dev] issued token for %s", sub)
		return c.JSON(fiber.Map{
			"token":      token,
			"subject":    sub,
			"expires_in": int(devTokenTTL.Seconds()),
		})
	})
}

// IssueToken signs an HS256 token the api accepts.
func IssueToken(secret, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
