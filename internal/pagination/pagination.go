// Package pagination slices result lists into pages and describes the page
// strip shown to clients.
package pagination

// DefaultPageSize is used when a request carries no usable size.
const DefaultPageSize = 25

// SizeOptions are the page sizes offered to clients.
var SizeOptions = []int{10, 25, 50, 100}

// MaxPageSize is the largest size a request may ask for.
const MaxPageSize = 100

// PageState is the requested page (1-based) and page size.
type PageState struct {
	Page int `json:"page"`
	Size int `json:"size"`
}

// NewPageState returns the first page at DefaultPageSize.
func NewPageState() PageState {
	return PageState{Page: 1, Size: DefaultPageSize}
}

// Normalize replaces a non-positive size with DefaultPageSize, caps the size
// at MaxPageSize and moves a page below 1 to 1.
func (s PageState) Normalize() PageState {
	if s.Size <= 0 {
		s.Size = DefaultPageSize
	}
	if s.Size > MaxPageSize {
		s.Size = MaxPageSize
	}
	if s.Page < 1 {
		s.Page = 1
	}
	return s
}

// WithSize changes the page size and goes back to the first page.
func (s PageState) WithSize(size int) PageState {
	return PageState{Page: 1, Size: size}.Normalize()
}

// WithPage moves to page p, clamped to [1, totalPages] when totalPages > 0.
func (s PageState) WithPage(p, totalPages int) PageState {
	if totalPages > 0 && p > totalPages {
		p = totalPages
	}
	s.Page = p
	return s.Normalize()
}

// Data contains pagination information for display.
type Data struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	PerPage     int   `json:"perPage"`
	Total       int   `json:"total"`
	HasPrevious bool  `json:"hasPrevious"`
	HasNext     bool  `json:"hasNext"`
	PrevPage    int   `json:"prevPage,omitempty"`
	NextPage    int   `json:"nextPage,omitempty"`
	Pages       []int `json:"pages"`
}

// Page is one slice of a result list plus its display data.
type Page[T any] struct {
	Items []T `json:"items"`
	Data
}

// TotalPages returns ceil(total/size), or 0 when there is nothing to show.
func TotalPages(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

// Paginate returns the page of items selected by state. Out-of-range pages
// yield an empty Items slice; indexes never leave [0, len(items)).
func Paginate[T any](items []T, state PageState) Page[T] {
	state = state.Normalize()
	total := len(items)
	totalPages := TotalPages(total, state.Size)

	start := (state.Page - 1) * state.Size
	if start > total {
		start = total
	}
	end := start + state.Size
	if end > total {
		end = total
	}

	return Page[T]{
		Items: items[start:end],
		Data:  NewData(state.Page, totalPages, state.Size, total),
	}
}

// NewData builds display data for the given position.
func NewData(currentPage, totalPages, perPage, total int) Data {
	d := Data{
		CurrentPage: currentPage,
		TotalPages:  totalPages,
		PerPage:     perPage,
		Total:       total,
		HasPrevious: currentPage > 1,
		HasNext:     currentPage < totalPages,
		Pages:       PageRange(currentPage, totalPages),
	}
	if d.HasPrevious {
		d.PrevPage = currentPage - 1
	}
	if d.HasNext {
		d.NextPage = currentPage + 1
	}
	return d
}

// Ellipsis marks a gap in the page strip returned by PageRange.
const Ellipsis = -1

// PageRange returns a slice of page numbers for pagination display.
// Returns Ellipsis for gap positions.
func PageRange(currentPage, totalPages int) []int {
	if totalPages <= 7 {
		pages := make([]int, totalPages)
		for i := range pages {
			pages[i] = i + 1
		}
		return pages
	}

	pages := []int{1}

	start := currentPage - 1
	end := currentPage + 1

	if start <= 2 {
		start = 2
	}
	if end >= totalPages {
		end = totalPages - 1
	}

	if start > 2 {
		pages = append(pages, Ellipsis)
	}

	for i := start; i <= end; i++ {
		pages = append(pages, i)
	}

	if end < totalPages-1 {
		pages = append(pages, Ellipsis)
	}

	pages = append(pages, totalPages)

	return pages
}
