package pagination

import (
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 25
	MaxLimit     = 200
)

// Params holds pagination parameters extracted from a request.
type Params struct {
	Limit  int
	Offset int
}

// FromContext extracts limit/offset (or page/page_size) from the request.
func FromContext(c echo.Context) Params {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit, _ = strconv.Atoi(c.QueryParam("page_size"))
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if offset <= 0 {
		if page, _ := strconv.Atoi(c.QueryParam("page")); page > 1 {
			offset = (page - 1) * limit
		}
	}
	if offset < 0 {
		offset = 0
	}

	return Params{Limit: limit, Offset: offset}
}

// Page wraps a paginated API response.
type Page[T any] struct {
	Data    []T    `json:"data"`
	Total   int    `json:"total"`
	Limit   int    `json:"limit"`
	Offset  int    `json:"offset"`
	HasMore bool   `json:"has_more"`
	Links   *Links `json:"links,omitempty"`
}

// Links are relative URLs for neighbouring pages.
type Links struct {
	Self     string `json:"self"`
	Next     string `json:"next,omitempty"`
	Previous string `json:"previous,omitempty"`
}

func NewPage[T any](data []T, total int, p Params) *Page[T] {
	if data == nil {
		data = []T{}
	}
	return &Page[T]{
		Data:    data,
		Total:   total,
		Limit:   p.Limit,
		Offset:  p.Offset,
		HasMore: p.HasNext(total),
	}
}

// WithLinks attaches navigation links rooted at basePath.
func (pg *Page[T]) WithLinks(basePath string) *Page[T] {
	p := Params{Limit: pg.Limit, Offset: pg.Offset}
	pg.Links = p.Links(basePath, pg.Total)
	return pg
}

// Window applies the params to an in-memory slice and returns the page
// together with the total size.
func Window[T any](items []T, p Params) ([]T, int) {
	total := len(items)
	if p.Offset >= total {
		return []T{}, total
	}
	end := p.Offset + p.Limit
	if end > total {
		end = total
	}
	return items[p.Offset:end], total
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset+p.Limit < total
}

// HasPrevious returns true if there are results before the current page.
func (p Params) HasPrevious() bool {
	return p.Offset > 0
}

// NextOffset returns the offset for the next page.
func (p Params) NextOffset() int {
	return p.Offset + p.Limit
}

// PreviousOffset returns the offset for the previous page.
// Returns 0 if the result would be negative.
func (p Params) PreviousOffset() int {
	prev := p.Offset - p.Limit
	if prev < 0 {
		return 0
	}
	return prev
}

func (p Params) Links(basePath string, total int) *Links {
	l := &Links{Self: fmt.Sprintf("%s?offset=%d&limit=%d", basePath, p.Offset, p.Limit)}
	if p.HasNext(total) {
		l.Next = fmt.Sprintf("%s?offset=%d&limit=%d", basePath, p.NextOffset(), p.Limit)
	}
	if p.HasPrevious() {
		l.Previous = fmt.Sprintf("%s?offset=%d&limit=%d", basePath, p.PreviousOffset(), p.Limit)
	}
	return l
}
