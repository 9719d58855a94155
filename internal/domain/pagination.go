package domain

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// NormalizePage clamps page and page size into their accepted ranges.
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// Offset converts a 1-indexed page into a row offset.
func Offset(page, pageSize int) int {
	page, pageSize = NormalizePage(page, pageSize)
	return (page - 1) * pageSize
}

// Page is the list envelope returned by the API.
type Page[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"pagina"`
	PageSize   int `json:"tamanho_pagina"`
	TotalPages int `json:"total_paginas"`
}

// NewPage builds a Page, computing total pages with ceiling division.
func NewPage[T any](items []T, total, page, pageSize int) Page[T] {
	page, pageSize = NormalizePage(page, pageSize)
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}
}
