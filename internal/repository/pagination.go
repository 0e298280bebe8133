package repository

// Listing defaults shared by every paged endpoint.
const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type PageRequest struct {
	Page     int
	PageSize int
}

// PageResult is the listing envelope payload. A page past the end is not
// an error; it comes back with no items and HasNext false.
type PageResult[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

// Offset is only meaningful on a normalized request.
func (p PageRequest) Offset() int { return (p.Page - 1) * p.PageSize }

// NormalizePageRequest substitutes defaults for non-positive values and caps
// the page size.
func NormalizePageRequest(in PageRequest) PageRequest {
	out := in
	if out.Page < 1 {
		out.Page = DefaultPage
	}
	switch {
	case out.PageSize < 1:
		out.PageSize = DefaultPageSize
	case out.PageSize > MaxPageSize:
		out.PageSize = MaxPageSize
	}
	return out
}

func CalcTotalPages(total int64, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	size := int64(pageSize)
	return int((total + size - 1) / size)
}

func NewPageResult[T any](req PageRequest, items []T, total int64) PageResult[T] {
	if items == nil {
		items = []T{}
	}
	pages := CalcTotalPages(total, req.PageSize)
	return PageResult[T]{
		Items:      items,
		Page:       req.Page,
		PageSize:   req.PageSize,
		Total:      total,
		TotalPages: pages,
		HasNext:    req.Page < pages,
		HasPrev:    req.Page > 1 && pages > 0,
	}
}
