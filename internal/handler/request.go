package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/DukeRupert/reelscout/internal/domain"
	"github.com/DukeRupert/reelscout/internal/pagination"
	"github.com/DukeRupert/reelscout/internal/service"
)

// maxBodySize bounds JSON request bodies (64KB).
const maxBodySize = 64 * 1024

// decodeJSON reads a JSON body into v. An empty body leaves v unchanged.
func decodeJSON(w http.ResponseWriter, r *http.Request, op string, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return domain.Errorf(domain.ETOOLARGE, op, "Request body is too large.")
	}
	return domain.Invalid(op, "Request body is not valid JSON.")
}

// pathID parses the {id} path value.
func pathID(r *http.Request, op string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, domain.Invalid(op, "Invalid search ID.")
	}
	return id, nil
}

// queryInt returns the integer query parameter name, or def when it is
// missing or malformed.
func queryInt(q url.Values, name string, def int) int {
	if v, err := strconv.Atoi(q.Get(name)); err == nil {
		return v
	}
	return def
}

// resultsQueryFromURL reads filters, sort state, toggle and page from the
// query string. Malformed values fall back to no constraint or defaults.
func resultsQueryFromURL(q url.Values) service.ResultsQuery {
	rq := service.ResultsQuery{
		Filters: domain.FilterCriteria{
			PostsNewerThan: q.Get("postsNewerThan"),
			MinViews:       q.Get("minViews"),
			MinPlays:       q.Get("minPlays"),
			MinLikes:       q.Get("minLikes"),
			MinComments:    q.Get("minComments"),
			MinShares:      q.Get("minShares"),
			MinDuration:    q.Get("minDuration"),
			MinEngagement:  q.Get("minEngagement"),
		},
		Toggle:    q.Get("toggle"),
		ShownSize: queryInt(q, "shownSize", 0),
		Page: pagination.PageState{
			Page: queryInt(q, "page", 1),
			Size: queryInt(q, "size", pagination.DefaultPageSize),
		},
	}
	if key, ok := domain.ParseSortKey(q.Get("sort")); ok {
		rq.Sort = domain.SortState{Key: key, Direction: domain.ParseSortDirection(q.Get("dir"))}
	}
	return rq
}
