package utils

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page describes a requested page, 1-based.
type Page struct {
	Page  int
	Limit int
}

// Pagination is the metadata returned with a paginated list.
type Pagination struct {
	Total   int  `json:"total"`
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	Pages   int  `json:"pages"`
	HasNext bool `json:"has_next"`
	HasPrev bool `json:"has_prev"`
}

// Normalize fills defaults and clamps the limit.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	return p
}

// LimitOffset converts the page to SQL limit/offset values
func (p Page) LimitOffset() (limit, offset int) {
	p = p.Normalize()
	return p.Limit, (p.Page - 1) * p.Limit
}

// NewPagination builds the metadata for a page out of total items.
func NewPagination(p Page, total int) Pagination {
	p = p.Normalize()
	pages := (total + p.Limit - 1) / p.Limit
	return Pagination{
		Total:   total,
		Page:    p.Page,
		Limit:   p.Limit,
		Pages:   pages,
		HasNext: p.Page < pages,
		HasPrev: p.Page > 1,
	}
}
