package http

import (
	"time"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/infra/middleware"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

// AuthHandler lets an operator revoke the token they are calling with.
type AuthHandler struct {
	blacklist *middleware.TokenBlacklist
}

func NewAuthHandler(blacklist *middleware.TokenBlacklist) *AuthHandler {
	return &AuthHandler{blacklist: blacklist}
}

func (h *AuthHandler) Register(router fiber.Router) {
	router.Post("/auth/revoke", h.Revoke)
}

// Revoke blacklists the caller's token until it expires. Tokens without a
// jti cannot be revoked.
func (h *AuthHandler) Revoke(c *fiber.Ctx) error {
	if h.blacklist == nil {
		return apperr.NotFound("token revocation")
	}
	claims := middleware.Claims(c)
	jti, _ := claims["jti"].(string)
	if jti == "" {
		return apperr.BadRequest("token has no jti")
	}

	ttl := time.Hour
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		ttl = time.Until(exp.Time)
	}
	if ttl <= 0 {
		return c.SendStatus(fiber.StatusNoContent)
	}
	if err := h.blacklist.Revoke(c.UserContext(), jti, ttl); err != nil {
		return apperr.InternalWithError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
