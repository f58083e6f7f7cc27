package shared

import "math"

// Pagination holds 1-based page parameters
type Pagination struct {
	Page     int
	PageSize int
}

// MaxOffset is the largest row offset a page can address
const MaxOffset = math.MaxInt32

// Offset returns the number of rows to skip, saturating at MaxOffset
func (p Pagination) Offset() int {
	if p.Page <= 1 || p.PageSize <= 0 {
		return 0
	}
	if p.Page-1 > MaxOffset/p.PageSize {
		return MaxOffset
	}
	return (p.Page - 1) * p.PageSize
}

// Normalize applies defaults, clamps the page size to max and caps the page
// number so Offset never exceeds MaxOffset
func (p Pagination) Normalize(defaultSize, maxSize int) Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = defaultSize
	}
	if maxSize > 0 && p.PageSize > maxSize {
		p.PageSize = maxSize
	}
	if p.PageSize > 0 {
		if last := MaxOffset/p.PageSize + 1; p.Page > last {
			p.Page = last
		}
	}
	return p
}

// Paginated represents a paginated result
type Paginated[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// NewPaginated creates a new paginated result
func NewPaginated[T any](items []T, total int64, page, pageSize int) Paginated[T] {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int(total) / pageSize
		if int(total)%pageSize > 0 {
			totalPages++
		}
	}
	if items == nil {
		items = []T{}
	}
	return Paginated[T]{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}
