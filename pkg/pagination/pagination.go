// Package pagination implements the page/limit query contract shared by all
// list endpoints.
package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// Params holds pagination parameters extracted from a request.
type Params struct {
	Page  int
	Limit int
}

// FromContext extracts page and limit from the echo context, clamping both
// into their valid ranges.
func FromContext(c echo.Context) Params {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = DefaultPage
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	return Params{Page: page, Limit: limit}
}

// Offset returns the row offset for the current page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Links holds the next/prev page numbers, present only when in range.
type Links struct {
	Next *int `json:"next,omitempty"`
	Prev *int `json:"prev,omitempty"`
}

// Envelope is the standard list response body.
type Envelope struct {
	Success    bool        `json:"success"`
	Count      int         `json:"count"`
	Total      int         `json:"total"`
	Pagination Links       `json:"pagination"`
	Data       interface{} `json:"data"`
}

// NewEnvelope wraps a page of results. count is the number of items on this
// page; total is the full result-set size.
func NewEnvelope(data interface{}, count, total int, p Params) *Envelope {
	env := &Envelope{
		Success: true,
		Count:   count,
		Total:   total,
		Data:    data,
	}
	if p.Offset()+p.Limit < total {
		next := p.Page + 1
		env.Pagination.Next = &next
	}
	if p.Page > 1 {
		prev := p.Page - 1
		env.Pagination.Prev = &prev
	}
	return env
}
