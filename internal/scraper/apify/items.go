package apify

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/DukeRupert/reelscout/internal/domain"
	"github.com/DukeRupert/reelscout/internal/scraper"
)

// instagramItem is one dataset item from the Instagram actor.
type instagramItem struct {
	ID             string          `json:"id"`
	ShortCode      string          `json:"shortCode"`
	Type           string          `json:"type"`
	ProductType    string          `json:"productType"`
	URL            string          `json:"url"`
	Caption        string          `json:"caption"`
	OwnerUsername  string          `json:"ownerUsername"`
	Timestamp      string          `json:"timestamp"`
	VideoURL       string          `json:"videoUrl"`
	VideoViewCount int64           `json:"videoViewCount"`
	VideoPlayCount int64           `json:"videoPlayCount"`
	LikesCount     int64           `json:"likesCount"`
	CommentsCount  int64           `json:"commentsCount"`
	VideoDuration  json.RawMessage `json:"videoDuration"`
	Error          string          `json:"error"`
}

// tiktokItem is one dataset item from the TikTok actor.
type tiktokItem struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	WebVideoURL   string `json:"webVideoUrl"`
	CreateTimeISO string `json:"createTimeISO"`
	PlayCount     int64  `json:"playCount"`
	DiggCount     int64  `json:"diggCount"`
	CommentCount  int64  `json:"commentCount"`
	ShareCount    int64  `json:"shareCount"`
	AuthorMeta    struct {
		Name string `json:"name"`
	} `json:"authorMeta"`
	VideoMeta struct {
		Duration float64 `json:"duration"`
	} `json:"videoMeta"`
	Error string `json:"error"`
}

// decodeItems reads the dataset array and converts it to posts. Items the
// actor marks with an error (private or missing profiles) are skipped; if
// every item is an error the first one is returned.
func decodeItems(r io.Reader, platform domain.Platform) ([]domain.Post, error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}

	posts := make([]domain.Post, 0, len(raw))
	var firstErr string
	for _, item := range raw {
		var (
			post   domain.Post
			errMsg string
			err    error
		)
		switch platform {
		case domain.PlatformTikTok:
			post, errMsg, err = decodeTikTok(item)
		default:
			post, errMsg, err = decodeInstagram(item)
		}
		if err != nil {
			return nil, err
		}
		if errMsg != "" {
			if firstErr == "" {
				firstErr = errMsg
			}
			continue
		}
		posts = append(posts, post)
	}

	if len(posts) == 0 && firstErr != "" {
		return nil, fmt.Errorf("%w: %s", scraper.ErrNotFound, firstErr)
	}
	return posts, nil
}

func decodeInstagram(data json.RawMessage) (domain.Post, string, error) {
	var it instagramItem
	if err := json.Unmarshal(data, &it); err != nil {
		return domain.Post{}, "", fmt.Errorf("decode instagram item: %w", err)
	}
	if it.Error != "" {
		return domain.Post{}, it.Error, nil
	}

	id := it.ID
	if id == "" {
		id = it.ShortCode
	}
	views := it.VideoViewCount
	plays := it.VideoPlayCount
	if plays == 0 {
		plays = views
	}

	return domain.Post{
		ID:            id,
		OwnerUsername: it.OwnerUsername,
		Caption:       it.Caption,
		URL:           it.URL,
		VideoURL:      it.VideoURL,
		Timestamp:     parseTimestamp(it.Timestamp),
		Views:         views,
		Plays:         plays,
		Likes:         it.LikesCount,
		Comments:      it.CommentsCount,
		Engagement:    scraper.Engagement(views, it.LikesCount, it.CommentsCount, 0),
		Duration:      parseDuration(it.VideoDuration),
	}, "", nil
}

func decodeTikTok(data json.RawMessage) (domain.Post, string, error) {
	var it tiktokItem
	if err := json.Unmarshal(data, &it); err != nil {
		return domain.Post{}, "", fmt.Errorf("decode tiktok item: %w", err)
	}
	if it.Error != "" {
		return domain.Post{}, it.Error, nil
	}

	// TikTok reports a single play counter; it doubles as the view count.
	return domain.Post{
		ID:            it.ID,
		OwnerUsername: it.AuthorMeta.Name,
		Caption:       it.Text,
		URL:           it.WebVideoURL,
		Timestamp:     parseTimestamp(it.CreateTimeISO),
		Views:         it.PlayCount,
		Plays:         it.PlayCount,
		Likes:         it.DiggCount,
		Comments:      it.CommentCount,
		Shares:        it.ShareCount,
		Engagement:    scraper.Engagement(it.PlayCount, it.DiggCount, it.CommentCount, it.ShareCount),
		Duration:      it.VideoMeta.Duration,
	}, "", nil
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000Z"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// parseDuration accepts a number of seconds or a numeric string.
func parseDuration(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return v
		}
	}
	return 0
}
