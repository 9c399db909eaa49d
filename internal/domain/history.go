package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultHistoryLimit is how many recent searches are listed by default.
const DefaultHistoryLimit = 10

// SearchHistory is one persisted search and the number of posts it kept.
type SearchHistory struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"-"`
	Query       string    `json:"query"`
	Platform    Platform  `json:"platform"`
	ResultCount int       `json:"resultCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

// SearchResults are the posts stored for a search history entry.
type SearchResults struct {
	HistoryID uuid.UUID `json:"historyId"`
	Posts     []Post    `json:"results"`
	CreatedAt time.Time `json:"createdAt"`
}

// ValidPosts returns the posts worth keeping in history, in input order.
func ValidPosts(posts []Post) []Post {
	out := make([]Post, 0, len(posts))
	for _, p := range posts {
		if p.IsValid() {
			out = append(out, p)
		}
	}
	return out
}
