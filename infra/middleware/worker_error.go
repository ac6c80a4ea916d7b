package middleware

import (
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/apperr"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// LocalRequestID is the fiber locals key RequestID sets. pkg/response reads it too.
const LocalRequestID = "request_id"

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Success   bool        `json:"success"`
	Error     ErrorDetail `json:"error"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp string      `json:"timestamp"`
}

type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorHandler turns handler errors into the JSON error envelope. AppErrors
// keep their status and details even when wrapped.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		requestID := requestIDOf(c)

		var appErr *apperr.AppError
		var fiberErr *fiber.Error
		switch {
		case errors.As(err, &appErr):
			log := logger.WithField("request_id", requestID).
				WithField("error_code", appErr.Code).
				WithError(appErr.Err)
			if appErr.Status >= 500 {
				log.Error("%s %s failed: %s", c.Method(), c.Path(), appErr.Message)
			} else {
				log.Debug("%s %s rejected: %s", c.Method(), c.Path(), appErr.Message)
			}
			return writeError(c, appErr.Status, ErrorDetail{
				Code:    appErr.Code,
				Message: appErr.Message,
				Details: appErr.Details,
			})

		case errors.As(err, &fiberErr):
			return writeError(c, fiberErr.Code, ErrorDetail{
				Code:    codeForStatus(fiberErr.Code),
				Message: fiberErr.Message,
			})

		default:
			logger.WithField("request_id", requestID).
				WithError(err).
				Error("Unexpected error on %s %s", c.Method(), c.Path())
			return writeError(c, fiber.StatusInternalServerError, internalErrorDetail)
		}
	}
}

var internalErrorDetail = ErrorDetail{
	Code:    apperr.CodeInternalError,
	Message: "An unexpected error occurred",
}

func writeError(c *fiber.Ctx, status int, detail ErrorDetail) error {
	return c.Status(status).JSON(ErrorResponse{
		Success:   false,
		Error:     detail,
		RequestID: requestIDOf(c),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func requestIDOf(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalRequestID).(string)
	return id
}

// RequestID middleware adds a unique request ID to each request
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get(fiber.HeaderXRequestID)
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.NewString()
		}
		c.Locals(LocalRequestID, requestID)
		c.Set(fiber.HeaderXRequestID, requestID)
		return c.Next()
	}
}

// RequestLogger logs incoming requests and their responses
func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()
		if err != nil {
			// let the error handler set the final status before logging it
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				return herr
			}
			err = nil
		}

		log := logger.WithFields(map[string]any{
			"request_id":  requestIDOf(c),
			"method":      c.Method(),
			"path":        c.Path(),
			"status":      c.Response().StatusCode(),
			"duration_ms": float64(time.Since(start).Microseconds()) / 1000.0,
			"ip":          c.IP(),
		})
		if subject := Subject(c); subject != "" {
			log = log.WithField("subject", subject)
		}

		status := c.Response().StatusCode()
		switch {
		case status >= 500:
			log.Error("Request failed: %s %s -> %d", c.Method(), c.Path(), status)
		case status >= 400:
			log.Warn("Request error: %s %s -> %d", c.Method(), c.Path(), status)
		default:
			log.Info("Request completed: %s %s -> %d", c.Method(), c.Path(), status)
		}

		return err
	}
}

// Recover turns a panic in a handler into a 500.
func Recover() fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.WithFields(map[string]any{
					"request_id": requestIDOf(c),
					"panic":      fmt.Sprintf("%v", r),
					"path":       c.Path(),
					"method":     c.Method(),
					"stack":      string(debug.Stack()),
				}).Error("Panic recovered")
				err = writeError(c, fiber.StatusInternalServerError, internalErrorDetail)
			}
		}()
		return c.Next()
	}
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return apperr.CodeBadRequest
	case fiber.StatusUnauthorized:
		return apperr.CodeUnauthorized
	case fiber.StatusNotFound:
		return apperr.CodeNotFound
	case fiber.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case fiber.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	case fiber.StatusTooManyRequests:
		return "RATE_LIMITED"
	case fiber.StatusRequestTimeout, fiber.StatusGatewayTimeout:
		return apperr.CodeTimeout
	case fiber.StatusBadGateway, fiber.StatusServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	case fiber.StatusInternalServerError:
		return apperr.CodeInternalError
	default:
		return "UNKNOWN_ERROR"
	}
}
