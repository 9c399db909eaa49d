package service

import (
	"time"

	"github.com/DukeRupert/reelscout/internal/domain"
	"github.com/DukeRupert/reelscout/internal/pagination"
)

// ResultsQuery selects how a set of fetched posts is displayed.
type ResultsQuery struct {
	Filters domain.FilterCriteria `json:"filters"`

	// Sort is the state the client currently shows.
	Sort domain.SortState `json:"sort"`

	// Toggle is a sort key the user just clicked. When set it is applied on
	// top of Sort, flipping the direction for the same key.
	Toggle string `json:"toggle,omitempty"`

	Page pagination.PageState `json:"page"`

	// ShownSize is the page size the client displayed before this request.
	// A different Page.Size is a resize and starts again at page 1.
	ShownSize int `json:"shownSize,omitempty"`
}

// ResultsView is one rendered page of results and the state that produced it.
type ResultsView struct {
	Page        pagination.Page[domain.Post] `json:"page"`
	Sort        domain.SortState             `json:"sort"`
	Filters     domain.FilterCriteria        `json:"filters"`
	Fetched     int                          `json:"fetched"`
	Matched     int                          `json:"matched"`
	SizeOptions []int                        `json:"sizeOptions"`
}

// BuildView runs posts through filter, sort and paginate. Dates in the filter
// are interpreted in loc. The requested page is clamped to the last page.
func BuildView(posts []domain.Post, q ResultsQuery, loc *time.Location) ResultsView {
	if loc == nil {
		loc = time.Local
	}

	filtered := domain.FilterPostsIn(posts, q.Filters, loc)

	state := q.Sort
	var ordered []domain.Post
	if key, ok := domain.ParseSortKey(q.Toggle); ok {
		ordered, state = domain.SortPosts(filtered, key, q.Sort)
	} else {
		ordered = domain.OrderPosts(filtered, q.Sort)
	}

	pageState := q.Page.Normalize()
	if q.ShownSize > 0 && q.ShownSize != pageState.Size {
		pageState = pageState.WithSize(pageState.Size)
	}
	pageState = pageState.WithPage(pageState.Page, pagination.TotalPages(len(ordered), pageState.Size))

	return ResultsView{
		Page:        pagination.Paginate(ordered, pageState),
		Sort:        state,
		Filters:     q.Filters,
		Fetched:     len(posts),
		Matched:     len(filtered),
		SizeOptions: pagination.SizeOptions,
	}
}
