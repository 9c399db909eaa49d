package domain

import (
	"cmp"
	"slices"
	"strings"
)

// SortKey names a sortable post field.
type SortKey string

const (
	SortByDate       SortKey = "date"
	SortByViews      SortKey = "views"
	SortByPlays      SortKey = "plays"
	SortByLikes      SortKey = "likes"
	SortByComments   SortKey = "comments"
	SortByShares     SortKey = "shares"
	SortByEngagement SortKey = "engagement"
	SortByDuration   SortKey = "duration"
	SortByOwner      SortKey = "owner"
	SortByCaption    SortKey = "caption"
)

// sortKeyAliases maps the field names used by the platform tables to keys.
var sortKeyAliases = map[string]SortKey{
	"timestamp":           SortByDate,
	"uploadedatformatted": SortByDate,
	"viewscount":          SortByViews,
	"playscount":          SortByPlays,
	"likescount":          SortByLikes,
	"commentscount":       SortByComments,
	"sharescount":         SortByShares,
	"ownerusername":       SortByOwner,
	"channel.username":    SortByOwner,
	"title":               SortByCaption,
}

// ParseSortKey normalises a requested key. The boolean is false for unknown keys.
func ParseSortKey(s string) (SortKey, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if k, ok := sortKeyAliases[s]; ok {
		return k, true
	}
	k := SortKey(s)
	if _, ok := comparators[k]; ok {
		return k, true
	}
	return "", false
}

// SortDirection is ascending or descending.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// ParseSortDirection returns SortDesc for "desc" and SortAsc otherwise.
func ParseSortDirection(s string) SortDirection {
	if strings.EqualFold(strings.TrimSpace(s), string(SortDesc)) {
		return SortDesc
	}
	return SortAsc
}

// SortState is the active sort key and direction. The zero value means unsorted.
type SortState struct {
	Key       SortKey       `json:"key,omitempty"`
	Direction SortDirection `json:"direction,omitempty"`
}

// Next returns the state after the user requests key: the same key flips the
// direction, a new key starts ascending.
func (s SortState) Next(key SortKey) SortState {
	if s.Key == key {
		if s.Direction == SortAsc {
			return SortState{Key: key, Direction: SortDesc}
		}
		return SortState{Key: key, Direction: SortAsc}
	}
	return SortState{Key: key, Direction: SortAsc}
}

// comparators branch by field semantics: dates by timestamp, engagement by its
// decimal value, counts by raw value, text case-insensitively.
var comparators = map[SortKey]func(a, b Post) int{
	SortByDate:       func(a, b Post) int { return a.Timestamp.Compare(b.Timestamp) },
	SortByViews:      func(a, b Post) int { return cmp.Compare(a.Views, b.Views) },
	SortByPlays:      func(a, b Post) int { return cmp.Compare(a.Plays, b.Plays) },
	SortByLikes:      func(a, b Post) int { return cmp.Compare(a.Likes, b.Likes) },
	SortByComments:   func(a, b Post) int { return cmp.Compare(a.Comments, b.Comments) },
	SortByShares:     func(a, b Post) int { return cmp.Compare(a.Shares, b.Shares) },
	SortByEngagement: func(a, b Post) int { return cmp.Compare(a.Engagement, b.Engagement) },
	SortByDuration:   func(a, b Post) int { return cmp.Compare(a.Duration, b.Duration) },
	SortByOwner: func(a, b Post) int {
		return strings.Compare(strings.ToLower(a.OwnerUsername), strings.ToLower(b.OwnerUsername))
	},
	SortByCaption: func(a, b Post) int {
		return strings.Compare(strings.ToLower(a.Caption), strings.ToLower(b.Caption))
	},
}

// SortPosts applies a user sort request for key on top of the current state.
// It returns a newly ordered slice and the updated state; the input is not
// modified. Unknown keys leave both order and state unchanged.
func SortPosts(posts []Post, key SortKey, state SortState) ([]Post, SortState) {
	if _, ok := comparators[key]; !ok {
		return posts, state
	}
	next := state.Next(key)
	return OrderPosts(posts, next), next
}

// OrderPosts orders posts by an already-decided state without toggling.
// Equal elements keep their relative input order.
func OrderPosts(posts []Post, state SortState) []Post {
	compare, ok := comparators[state.Key]
	if !ok {
		return posts
	}

	out := slices.Clone(posts)
	if state.Direction == SortDesc {
		slices.SortStableFunc(out, func(a, b Post) int { return compare(b, a) })
	} else {
		slices.SortStableFunc(out, compare)
	}
	return out
}
