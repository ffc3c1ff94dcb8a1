// Package watcher contains the core domain types for the Twitter watch service.
package watcher

import (
	"fmt"
	"strconv"
	"time"
)

// Account is one watched Twitter account with its delivery watermark.
type Account struct {
	AddedAt time.Time `json:"added_at"`           // When the account was added
	Handle  string    `json:"username"`           // Display-case handle, as supplied
	UserID  string    `json:"user_id"`            // Numeric Twitter user ID, fixed at creation
	SinceID string    `json:"since_id,omitempty"` // Last delivered tweet ID; empty until seeded
}

// Tweet is one item returned by the feed source.
type Tweet struct {
	ID        string
	Text      string
	CreatedAt string // RFC 3339 from the API, may be empty
}

// Event is the hook payload for one newly discovered tweet.
type Event struct {
	Handle    string `json:"username"`
	UserID    string `json:"user_id"`
	TweetID   string `json:"tweet_id"`
	TweetText string `json:"tweet_text"`
	TweetURL  string `json:"tweet_url"`
	CreatedAt string `json:"created_at"`
}

// TweetURL builds the canonical URL for a tweet.
func TweetURL(handle, tweetID string) string {
	return fmt.Sprintf("https://twitter.com/%s/status/%s", handle, tweetID)
}

// NewerID reports whether tweet ID a is strictly newer than b.
// An empty ID is older than any real one. Twitter IDs are numeric and
// monotonically increasing; non-numeric IDs fall back to length-then-lex
// comparison so a malformed ID can never drag a watermark backward.
func NewerID(a, b string) bool {
	if a == "" {
		return false
	}
	if b == "" {
		return true
	}
	ai, aerr := strconv.ParseUint(a, 10, 64)
	bi, berr := strconv.ParseUint(b, 10, 64)
	if aerr == nil && berr == nil {
		return ai > bi
	}
	if len(a) != len(b) {
		return len(a) > len(b)
	}
	return a > b
}
