// Package models contains data structures for the job board's domain models.
package models

import (
	"fmt"
	"time"
)

// JobPost is a single job listing. The JSON field names are the persisted
// schema of the board collection.
type JobPost struct {
	ID          string  `json:"id"`
	Image       string  `json:"image"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Phone       string  `json:"phone"`
	Likes       int     `json:"likes"`
	Timestamp   int64   `json:"timestamp"`
	Reports     int     `json:"reports"`
	Hidden      bool    `json:"hidden"`
}

// Draft holds the user supplied fields of a post before the store assigns
// identity and counters.
type Draft struct {
	Image       string  `json:"image"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Phone       string  `json:"phone"`
}

// CreatedAt returns the creation time of the post.
func (p JobPost) CreatedAt() time.Time {
	return time.UnixMilli(p.Timestamp)
}

// Expired reports whether the post is at least ttl old at now.
func (p JobPost) Expired(now time.Time, ttl time.Duration) bool {
	return now.UnixMilli()-p.Timestamp >= ttl.Milliseconds()
}

// PostView is the representation rendered by clients.
type PostView struct {
	JobPost
	Age       string    `json:"age"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewPostView decorates p with display fields computed at now.
func NewPostView(p JobPost, now time.Time, ttl time.Duration) PostView {
	return PostView{
		JobPost:   p,
		Age:       FormatAge(now.Sub(p.CreatedAt())),
		ExpiresAt: p.CreatedAt().Add(ttl).UTC(),
	}
}

// NewPostViews decorates every post in posts. The result is never nil.
func NewPostViews(posts []JobPost, now time.Time, ttl time.Duration) []PostView {
	out := make([]PostView, 0, len(posts))
	for _, p := range posts {
		out = append(out, NewPostView(p, now, ttl))
	}
	return out
}

// FormatAge renders the elapsed time since posting as seconds, minutes or
// hours. Anything from a full day on is shown as "24h".
func FormatAge(elapsed time.Duration) string {
	if elapsed < 0 {
		elapsed = 0
	}
	seconds := int64(elapsed / time.Second)
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	minutes := seconds / 60
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%dh", hours)
	}
	return "24h"
}
