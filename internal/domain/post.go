package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Platform identifies the social network a search runs against.
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
)

// Valid reports whether p is a supported platform.
func (p Platform) Valid() bool {
	return p == PlatformInstagram || p == PlatformTikTok
}

// Post is a fetched social-media post with its engagement metrics.
// Posts are read-only once fetched.
type Post struct {
	ID            string    `json:"id,omitempty"`
	OwnerUsername string    `json:"ownerUsername"`
	Caption       string    `json:"caption"`
	URL           string    `json:"url"`
	VideoURL      string    `json:"videoUrl,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	Views         int64     `json:"viewsCount"`
	Plays         int64     `json:"playsCount"`
	Likes         int64     `json:"likesCount"`
	Comments      int64     `json:"commentsCount"`
	Shares        int64     `json:"sharesCount"`
	Engagement    Percent   `json:"engagement"`
	Duration      float64   `json:"duration"`
}

// IsValid reports whether the post carries real play and view counts.
// Posts without them are not worth keeping in search history.
func (p Post) IsValid() bool {
	return p.Plays > 0 && p.Views > 0
}

// Percent is a decimal percentage. Providers send it either as a string with a
// trailing "%" or as a bare number; both decode to the same value.
type Percent float64

// ParsePercent parses "3.5%", " 3.5 " or "3,5" into a Percent.
func ParsePercent(s string) (Percent, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty percentage")
	}
	f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return 0, fmt.Errorf("parse percentage %q: %w", s, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("parse percentage %q: not a finite number", s)
	}
	return Percent(f), nil
}

// String renders the value with two decimals and a percent sign.
func (p Percent) String() string {
	return strconv.FormatFloat(float64(p), 'f', 2, 64) + "%"
}

// MarshalJSON encodes the percentage in its display form ("1.50%").
func (p Percent) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON accepts a JSON number, a numeric string or a "%"-suffixed string.
// Unparsable strings decode to zero rather than failing the whole post.
func (p *Percent) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*p = Percent(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("engagement must be a number or string: %w", err)
	}
	v, err := ParsePercent(s)
	if err != nil {
		*p = 0
		return nil
	}
	*p = v
	return nil
}

// dateLayouts are the accepted day-month-year layouts, ISO last.
var dateLayouts = []string{
	"02.01.2006",
	"02/01/2006",
	"02-01-2006",
	"2.1.2006",
	"2/1/2006",
	"2-1-2006",
	"2006-01-02",
	time.RFC3339,
}

// ParseDate parses a day-month-year date string in loc. The boolean is false
// for empty or malformed input.
func ParseDate(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
