// Package service implements the job board's business logic.
package service

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"jobboard/internal/middleware"
	"jobboard/internal/models"
	"jobboard/internal/notifications"
	"jobboard/internal/observability"
	"jobboard/internal/repository"
	"jobboard/internal/validation"

	"github.com/rs/xid"
	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultReportThreshold = 3
	DefaultPostTTL         = 24 * time.Hour
)

// EventPublisher receives board events after each successful mutation.
type EventPublisher interface {
	Publish(ctx context.Context, ev notifications.Event) error
}

// PostServiceConfig holds the board rules.
type PostServiceConfig struct {
	ReportThreshold int
	TTL             time.Duration
	Limits          validation.Limits
}

// PostService owns the board collection. Every mutator is one read-modify-write
// of the whole collection under mu and returns a fresh copy of the result.
type PostService struct {
	mu        sync.Mutex
	posts     repository.PostRepository
	hidden    repository.PostRepository
	publisher EventPublisher
	threshold int
	ttl       time.Duration
	limits    validation.Limits
	now       func() time.Time
	newID     func() string
}

// NewPostService creates a PostService. publisher may be nil.
func NewPostService(
	posts repository.PostRepository,
	hidden repository.PostRepository,
	publisher EventPublisher,
	cfg PostServiceConfig,
) *PostService {
	if cfg.ReportThreshold < 1 {
		cfg.ReportThreshold = DefaultReportThreshold
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultPostTTL
	}
	return &PostService{
		posts:     posts,
		hidden:    hidden,
		publisher: publisher,
		threshold: cfg.ReportThreshold,
		ttl:       cfg.TTL,
		limits:    cfg.Limits,
		now:       time.Now,
		newID:     func() string { return xid.New().String() },
	}
}

// TTL is the lifetime of a post.
func (s *PostService) TTL() time.Duration { return s.ttl }

// Now is the service clock.
func (s *PostService) Now() time.Time { return s.now() }

// Load returns the visible posts, newest first. Expired and hidden records
// found in storage are purged.
func (s *PostService) Load(ctx context.Context) (_ []models.JobPost, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "PostService", "Load")
	defer func() { span.SetError(err); span.End() }()

	s.mu.Lock()
	posts, expired, err := s.loadVisibleLocked(ctx)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	out := slices.Clone(posts)
	s.mu.Unlock()

	s.publishExpired(ctx, expired)
	span.AddAttributes(attribute.Int("posts.count", len(out)))
	return out, nil
}

// AddPost validates d, stores it as the newest post and returns the board.
func (s *PostService) AddPost(ctx context.Context, d models.Draft) (_ []models.JobPost, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "PostService", "AddPost")
	defer func() { span.SetError(err); span.End() }()

	d, err = validation.ValidateDraft(d, s.limits)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	posts, expired, err := s.loadVisibleLocked(ctx)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	post := models.JobPost{
		ID:          s.newID(),
		Image:       d.Image,
		Title:       d.Title,
		Description: d.Description,
		Price:       d.Price,
		Phone:       d.Phone,
		Timestamp:   s.now().UnixMilli(),
	}
	posts = append([]models.JobPost{post}, posts...)

	if err := s.saveLocked(ctx, posts); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	out := slices.Clone(posts)
	s.mu.Unlock()

	observability.PostsCreated.Inc()
	span.AddAttributes(attribute.String("post.id", post.ID))
	s.publishExpired(ctx, expired)
	s.publish(ctx, notifications.Event{Type: notifications.EventPostCreated, PostID: post.ID, Post: &post})
	return out, nil
}

// LikePost adds one like to the post with id. Unknown ids leave the board unchanged.
func (s *PostService) LikePost(ctx context.Context, id string) (_ []models.JobPost, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "PostService", "LikePost")
	defer func() { span.SetError(err); span.End() }()
	span.AddAttributes(attribute.String("post.id", id))

	s.mu.Lock()
	posts, expired, err := s.loadVisibleLocked(ctx)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	idx := indexOf(posts, id)
	var liked models.JobPost
	if idx >= 0 {
		posts[idx].Likes++
		liked = posts[idx]
	}

	if err := s.saveLocked(ctx, posts); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	out := slices.Clone(posts)
	s.mu.Unlock()

	s.publishExpired(ctx, expired)
	if idx >= 0 {
		observability.PostsLiked.Inc()
		s.publish(ctx, notifications.Event{Type: notifications.EventPostLiked, PostID: id, Post: &liked})
	}
	return out, nil
}

// ReportPost adds one report to the post with id. When the count reaches the
// threshold the post is hidden: it leaves the board at once and moves to the
// moderation archive. Unknown ids leave the board unchanged.
func (s *PostService) ReportPost(ctx context.Context, id string) (_ []models.JobPost, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "PostService", "ReportPost")
	defer func() { span.SetError(err); span.End() }()
	span.AddAttributes(attribute.String("post.id", id))

	s.mu.Lock()
	posts, expired, err := s.loadVisibleLocked(ctx)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	idx := indexOf(posts, id)
	var reported models.JobPost
	if idx >= 0 {
		posts[idx].Reports++
		if posts[idx].Reports >= s.threshold {
			posts[idx].Hidden = true
		}
		reported = posts[idx]
	}

	if reported.Hidden {
		// archive first so a failed board write never loses the record
		if err := s.archiveLocked(ctx, reported); err != nil {
			s.mu.Unlock()
			return nil, err
		}
		posts = slices.Delete(posts, idx, idx+1)
	}

	if err := s.saveLocked(ctx, posts); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	out := slices.Clone(posts)
	s.mu.Unlock()

	s.publishExpired(ctx, expired)
	if idx >= 0 {
		observability.PostsReported.Inc()
		s.publish(ctx, notifications.Event{Type: notifications.EventPostReported, PostID: id, Post: &reported})
	}
	if reported.Hidden {
		observability.PostsHidden.Inc()
		middleware.Logger.InfoContext(ctx, "post hidden by reports",
			slog.String("post_id", id),
			slog.Int("reports", reported.Reports),
		)
		s.publish(ctx, notifications.Event{Type: notifications.EventPostHidden, PostID: id})
	}
	return out, nil
}

// Sweep purges expired posts from the board and from the moderation archive.
// It returns how many records were removed in total.
func (s *PostService) Sweep(ctx context.Context) (_ int, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "PostService", "Sweep")
	defer func() { span.SetError(err); span.End() }()

	s.mu.Lock()
	all, err := s.posts.Load(ctx)
	if err != nil {
		s.mu.Unlock()
		return 0, models.NewUnavailableError(err)
	}
	now := s.now()
	kept, expired, dropped := partition(all, now, s.ttl)
	if dropped > 0 {
		if err := s.saveLocked(ctx, kept); err != nil {
			s.mu.Unlock()
			return 0, err
		}
	}

	archivePurged, err := s.purgeArchiveLocked(ctx, now)
	s.mu.Unlock()
	if err != nil {
		middleware.Logger.WarnContext(ctx, "failed to purge moderation archive", slog.String("error", err.Error()))
	}

	s.publishExpired(ctx, expired)
	span.AddAttributes(
		attribute.Int("sweep.board_removed", dropped),
		attribute.Int("sweep.archive_removed", archivePurged),
	)
	return dropped + archivePurged, nil
}

func (s *PostService) purgeArchiveLocked(ctx context.Context, now time.Time) (int, error) {
	archived, err := s.hidden.Load(ctx)
	if err != nil {
		return 0, err
	}
	kept := make([]models.JobPost, 0, len(archived))
	for _, p := range archived {
		if !p.Expired(now, s.ttl) {
			kept = append(kept, p)
		}
	}
	purged := len(archived) - len(kept)
	if purged == 0 {
		return 0, nil
	}
	if err := s.hidden.Save(ctx, kept); err != nil {
		return 0, err
	}
	return purged, nil
}

// Hidden returns the non-expired posts in the moderation archive.
func (s *PostService) Hidden(ctx context.Context) (_ []models.JobPost, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "PostService", "Hidden")
	defer func() { span.SetError(err); span.End() }()

	s.mu.Lock()
	defer s.mu.Unlock()

	archived, err := s.hidden.Load(ctx)
	if err != nil {
		return nil, models.NewUnavailableError(err)
	}
	now := s.now()
	out := make([]models.JobPost, 0, len(archived))
	for _, p := range archived {
		if !p.Expired(now, s.ttl) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Get returns the visible post with id.
func (s *PostService) Get(ctx context.Context, id string) (models.JobPost, error) {
	posts, err := s.Load(ctx)
	if err != nil {
		return models.JobPost{}, err
	}
	if idx := indexOf(posts, id); idx >= 0 {
		return posts[idx], nil
	}
	return models.JobPost{}, models.NewNotFoundError("Post", id)
}

// loadVisibleLocked reads the board, drops expired and hidden records and
// rewrites storage when anything was dropped. It returns the ids that expired.
func (s *PostService) loadVisibleLocked(ctx context.Context) ([]models.JobPost, []string, error) {
	all, err := s.posts.Load(ctx)
	if err != nil {
		return nil, nil, models.NewUnavailableError(err)
	}

	kept, expired, dropped := partition(all, s.now(), s.ttl)
	if dropped > 0 {
		if err := s.posts.Save(ctx, kept); err != nil {
			// the purge is retried on the next read
			middleware.Logger.WarnContext(ctx, "failed to persist purged board",
				slog.Int("dropped", dropped),
				slog.String("error", err.Error()),
			)
		}
	}
	return kept, expired, nil
}

func (s *PostService) saveLocked(ctx context.Context, posts []models.JobPost) error {
	if err := s.posts.Save(ctx, posts); err != nil {
		return models.NewUnavailableError(err)
	}
	return nil
}

func (s *PostService) archiveLocked(ctx context.Context, post models.JobPost) error {
	archived, err := s.hidden.Load(ctx)
	if err != nil {
		return models.NewUnavailableError(err)
	}
	if idx := indexOf(archived, post.ID); idx >= 0 {
		archived[idx] = post
	} else {
		archived = append([]models.JobPost{post}, archived...)
	}
	if err := s.hidden.Save(ctx, archived); err != nil {
		return models.NewUnavailableError(err)
	}
	return nil
}

func (s *PostService) publishExpired(ctx context.Context, ids []string) {
	if len(ids) == 0 {
		return
	}
	observability.PostsExpired.Add(float64(len(ids)))
	s.publish(ctx, notifications.Event{Type: notifications.EventPostsExpired, Removed: ids})
}

func (s *PostService) publish(ctx context.Context, ev notifications.Event) {
	if s.publisher == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = s.now().UTC()
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish board event",
			slog.String("type", string(ev.Type)),
			slog.String("error", err.Error()),
		)
	}
}

// partition splits posts into the visible ones and the ids of expired ones.
// dropped counts every removed record, hidden ones included.
func partition(posts []models.JobPost, now time.Time, ttl time.Duration) (kept []models.JobPost, expired []string, dropped int) {
	kept = make([]models.JobPost, 0, len(posts))
	for _, p := range posts {
		switch {
		case p.Expired(now, ttl):
			expired = append(expired, p.ID)
			dropped++
		case p.Hidden:
			dropped++
		default:
			kept = append(kept, p)
		}
	}
	return kept, expired, dropped
}

func indexOf(posts []models.JobPost, id string) int {
	return slices.IndexFunc(posts, func(p models.JobPost) bool { return p.ID == id })
}
