// Package notifications fans board events out to live-feed WebSocket clients.
package notifications

import (
	"time"

	"jobboard/internal/models"
)

// EventType names a board change.
type EventType string

const (
	EventPostCreated  EventType = "post_created"
	EventPostLiked    EventType = "post_liked"
	EventPostReported EventType = "post_reported"
	EventPostHidden   EventType = "post_hidden"
	EventPostsExpired EventType = "posts_expired"
)

// Event is the payload pushed to live-feed subscribers.
type Event struct {
	Type    EventType       `json:"type"`
	PostID  string          `json:"post_id,omitempty"`
	Post    *models.JobPost `json:"post,omitempty"`
	Removed []string        `json:"removed,omitempty"`
	At      time.Time       `json:"at"`
}
