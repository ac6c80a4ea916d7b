package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/apperr"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

// Locals keys set by JWTAuth.
const (
	LocalSubject = "subject"
	LocalClaims  = "claims"
)

// TokenBlacklist manages revoked tokens
type TokenBlacklist struct {
	redis  *redis.Client
	prefix string
}

// NewTokenBlacklist returns nil when redis is not configured; a nil blacklist
// revokes nothing.
func NewTokenBlacklist(client *redis.Client) *TokenBlacklist {
	if client == nil {
		logger.Warn("Redis client not provided, token blacklist disabled")
		return nil
	}
	return &TokenBlacklist{redis: client, prefix: "token:blacklist:"}
}

// Revoke adds a token id to the blacklist until expiry.
func (b *TokenBlacklist) Revoke(ctx context.Context, tokenID string, expiry time.Duration) error {
	if b == nil {
		return nil
	}
	return b.redis.Set(ctx, b.prefix+tokenID, "1", expiry).Err()
}

// IsRevoked checks if a token is blacklisted
func (b *TokenBlacklist) IsRevoked(ctx context.Context, tokenID string) bool {
	if b == nil {
		return false
	}
	exists, _ := b.redis.Exists(ctx, b.prefix+tokenID).Result()
	return exists > 0
}

// AuthConfig configures JWTAuth.
type AuthConfig struct {
	Secret    string
	Blacklist *TokenBlacklist
	// ClockSkew tolerated on iat. Defaults to one minute.
	ClockSkew time.Duration
}

// JWTAuth validates HS256 bearer tokens. The "sub" claim names the operator
// and ends up in the run history of runs triggered over the API.
func JWTAuth(cfg AuthConfig) fiber.Handler {
	skew := cfg.ClockSkew
	if skew <= 0 {
		skew = time.Minute
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(skew),
	)

	return func(c *fiber.Ctx) error {
		// Skip auth for CORS preflight requests
		if c.Method() == fiber.MethodOptions {
			return c.Next()
		}

		tokenString := bearerToken(c.Get(fiber.HeaderAuthorization))
		if tokenString == "" {
			return apperr.Unauthorized("missing authorization")
		}

		claims := jwt.MapClaims{}
		token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if cfg.Secret == "" {
				return nil, fmt.Errorf("JWT secret not configured")
			}
			return []byte(cfg.Secret), nil
		})
		if err != nil || !token.Valid {
			logger.WithError(err).Warn("JWT validation failed")
			appErr := apperr.Unauthorized("invalid token")
			appErr.Code = apperr.CodeInvalidToken
			if errors.Is(err, jwt.ErrTokenExpired) {
				appErr.Code = apperr.CodeTokenExpired
				appErr.Message = "token expired"
			}
			return appErr
		}

		// Reject tokens issued in the future
		if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
			if iat.After(time.Now().Add(skew)) {
				return apperr.Unauthorized("token issued in the future")
			}
		}

		// Check token blacklist (for revocation)
		if jti, ok := claims["jti"].(string); ok && jti != "" {
			if cfg.Blacklist.IsRevoked(c.Context(), jti) {
				return apperr.Unauthorized("token has been revoked")
			}
		}

		subject, err := claims.GetSubject()
		if err != nil || subject == "" {
			return apperr.Unauthorized("missing subject in token")
		}

		c.Locals(LocalSubject, subject)
		c.Locals(LocalClaims, claims)
		return c.Next()
	}
}

// Subject returns the authenticated subject, or "" outside JWTAuth.
func Subject(c *fiber.Ctx) string {
	s, _ := c.Locals(LocalSubject).(string)
	return s
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Claims returns the verified token claims, or nil outside JWTAuth.
func Claims(c *fiber.Ctx) jwt.MapClaims {
	claims, _ := c.Locals(LocalClaims).(jwt.MapClaims)
	return claims
}
