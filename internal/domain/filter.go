package domain

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// FilterCriteria holds the user's raw filter bounds. Every field is optional;
// an empty or unparsable value imposes no constraint.
type FilterCriteria struct {
	PostsNewerThan string `json:"postsNewerThan,omitempty"`
	MinViews       string `json:"minViews,omitempty"`
	MinPlays       string `json:"minPlays,omitempty"`
	MinLikes       string `json:"minLikes,omitempty"`
	MinComments    string `json:"minComments,omitempty"`
	MinShares      string `json:"minShares,omitempty"`
	MinDuration    string `json:"minDuration,omitempty"`
	MinEngagement  string `json:"minEngagement,omitempty"`
}

// IsEmpty reports whether no field is set.
func (c FilterCriteria) IsEmpty() bool {
	return c == FilterCriteria{}
}

// predicate is a single compiled filter bound.
type predicate func(Post) bool

// compile turns the criteria into the predicates that actually constrain.
func (c FilterCriteria) compile(loc *time.Location) []predicate {
	var preds []predicate

	if cutoff, ok := ParseDate(c.PostsNewerThan, loc); ok {
		preds = append(preds, func(p Post) bool { return !p.Timestamp.Before(cutoff) })
	}

	ints := []struct {
		raw   string
		field func(Post) int64
	}{
		{c.MinViews, func(p Post) int64 { return p.Views }},
		{c.MinPlays, func(p Post) int64 { return p.Plays }},
		{c.MinLikes, func(p Post) int64 { return p.Likes }},
		{c.MinComments, func(p Post) int64 { return p.Comments }},
		{c.MinShares, func(p Post) int64 { return p.Shares }},
	}
	for _, b := range ints {
		bound, ok := parseIntBound(b.raw)
		if !ok {
			continue
		}
		field := b.field
		preds = append(preds, func(p Post) bool { return field(p) >= bound })
	}

	if bound, ok := parseDecimalBound(c.MinDuration); ok {
		preds = append(preds, func(p Post) bool { return p.Duration >= bound })
	}
	if bound, err := ParsePercent(c.MinEngagement); err == nil {
		preds = append(preds, func(p Post) bool { return p.Engagement >= bound })
	}

	return preds
}

// FilterPosts returns the posts satisfying every non-empty criterion, in input
// order. With no effective criteria the input slice itself is returned.
func FilterPosts(posts []Post, c FilterCriteria) []Post {
	return FilterPostsIn(posts, c, time.Local)
}

// FilterPostsIn is FilterPosts with an explicit location for date bounds.
func FilterPostsIn(posts []Post, c FilterCriteria, loc *time.Location) []Post {
	preds := c.compile(loc)
	if len(preds) == 0 {
		return posts
	}

	out := make([]Post, 0, len(posts))
	for _, p := range posts {
		if matchesAll(p, preds) {
			out = append(out, p)
		}
	}
	return out
}

func matchesAll(p Post, preds []predicate) bool {
	for _, pred := range preds {
		if !pred(p) {
			return false
		}
	}
	return true
}

// thousandsPattern matches integers written with "." or "," group separators.
var thousandsPattern = regexp.MustCompile(`^\d{1,3}([.,]\d{3})+$`)

// parseIntBound parses an integer bound. Grouped input such as "1.000" is read
// as a thousands-separated integer; other decimals are truncated.
func parseIntBound(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if thousandsPattern.MatchString(s) {
		s = strings.NewReplacer(".", "", ",", "").Replace(s)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err == nil {
		return n, true
	}
	if errors.Is(err, strconv.ErrRange) {
		// ParseInt returns the clamped value on overflow.
		return n, true
	}
	f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	switch {
	case errors.Is(err, strconv.ErrRange):
		// Out of float64 range: f is ±Inf or 0 and saturates below.
	case err != nil, math.IsNaN(f), math.IsInf(f, 0):
		return 0, false
	}
	return clampToInt64(f), true
}

// clampToInt64 truncates f, saturating at the int64 limits.
func clampToInt64(f float64) int64 {
	switch {
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	default:
		return int64(f)
	}
}

func parseDecimalBound(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
