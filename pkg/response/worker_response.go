// Package response provides the JSON envelope shared by all API handlers.
package response

import (
	"github.com/gofiber/fiber/v2"
)

// =============================================================================
// Standard API Response
// =============================================================================

// Response is the standard API response structure.
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Meta      *Meta       `json:"meta,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// Meta contains pagination metadata.
type Meta struct {
	Total    int  `json:"total"`
	Page     int  `json:"page,omitempty"`
	PageSize int  `json:"page_size,omitempty"`
	HasMore  bool `json:"has_more"`
}

// =============================================================================
// Response Builders
// =============================================================================

// OK returns a successful response.
func OK(c *fiber.Ctx, data interface{}) error {
	return c.JSON(envelope(c, data, nil))
}

// OKWithMeta returns a successful response with metadata.
func OKWithMeta(c *fiber.Ctx, data interface{}, meta *Meta) error {
	return c.JSON(envelope(c, data, meta))
}

// Created returns a 201 created response.
func Created(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(envelope(c, data, nil))
}

func envelope(c *fiber.Ctx, data interface{}, meta *Meta) Response {
	requestID, _ := c.Locals("request_id").(string)
	return Response{
		Success:   true,
		Data:      data,
		Meta:      meta,
		RequestID: requestID,
	}
}

// =============================================================================
// Pagination Helper
// =============================================================================

// PaginationParams extracts pagination parameters from request.
type PaginationParams struct {
	Page     int
	PageSize int
	Offset   int
}

// GetPagination extracts pagination params from request.
func GetPagination(c *fiber.Ctx, defaultPageSize, maxPageSize int) *PaginationParams {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}

	pageSize := c.QueryInt("page_size", defaultPageSize)
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	return &PaginationParams{
		Page:     page,
		PageSize: pageSize,
		Offset:   (page - 1) * pageSize,
	}
}

// Window returns the [start, end) bounds of the page within total items and
// the matching metadata.
func (p *PaginationParams) Window(total int) (int, int, *Meta) {
	start := min(p.Offset, total)
	end := min(start+p.PageSize, total)
	return start, end, &Meta{
		Total:    total,
		Page:     p.Page,
		PageSize: p.PageSize,
		HasMore:  end < total,
	}
}
