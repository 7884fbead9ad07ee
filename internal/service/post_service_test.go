package service

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"sync"
	"testing"
	"time"

	"jobboard/internal/media"
	"jobboard/internal/models"
	"jobboard/internal/notifications"
	"jobboard/internal/repository"
	"jobboard/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	loadFn func(context.Context) ([]models.JobPost, error)
	saveFn func(context.Context, []models.JobPost) error
}

func (s *postRepoStub) Load(ctx context.Context) ([]models.JobPost, error) {
	return s.loadFn(ctx)
}
func (s *postRepoStub) Save(ctx context.Context, posts []models.JobPost) error {
	return s.saveFn(ctx, posts)
}

// publisherStub records published events.
type publisherStub struct {
	mu     sync.Mutex
	events []notifications.Event
	err    error
}

func (p *publisherStub) Publish(_ context.Context, ev notifications.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *publisherStub) types() []notifications.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]notifications.EventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	svc   *PostService
	kv    *storage.Memory
	clock *fakeClock
	pub   *publisherStub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	kv := storage.NewMemory()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	pub := &publisherStub{}

	svc := NewPostService(
		repository.NewPostRepository(kv, "jobPosts"),
		repository.NewPostRepository(kv, repository.HiddenKey("jobPosts")),
		pub,
		PostServiceConfig{},
	)
	svc.now = clock.Now
	var seq int
	svc.newID = func() string {
		seq++
		return fmt.Sprintf("id-%d", seq)
	}
	return &fixture{svc: svc, kv: kv, clock: clock, pub: pub}
}

func draft(title string) models.Draft {
	return models.Draft{
		Image:       media.SolidPNGDataURL(4, 4, color.White),
		Title:       title,
		Description: "Full time, weekdays",
		Price:       1500,
		Phone:       "555-010-2030",
	}
}

func ids(posts []models.JobPost) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.ID)
	}
	return out
}

func TestPostService_LoadEmptyStore(t *testing.T) {
	f := newFixture(t)
	posts, err := f.svc.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, posts)
	assert.Empty(t, posts)
}

func TestPostService_LoadCorruptIsEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.kv.Set(ctx, "jobPosts", []byte("not json")))

	posts, err := f.svc.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestPostService_AddPost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddPost(ctx, draft("First"))
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	posts, err := f.svc.AddPost(ctx, draft("Second"))
	require.NoError(t, err)

	require.Len(t, posts, 2)
	assert.Equal(t, []string{"id-2", "id-1"}, ids(posts))

	p := posts[0]
	assert.Equal(t, "Second", p.Title)
	assert.Equal(t, 0, p.Likes)
	assert.Equal(t, 0, p.Reports)
	assert.False(t, p.Hidden)
	assert.Equal(t, f.clock.Now().UnixMilli(), p.Timestamp)

	// persisted before returning
	loaded, err := f.svc.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, posts, loaded)

	assert.Equal(t, []notifications.EventType{notifications.EventPostCreated, notifications.EventPostCreated}, f.pub.types())
}

func TestPostService_AddPostRejectsInvalidDraft(t *testing.T) {
	f := newFixture(t)
	d := draft("No price")
	d.Price = 0

	_, err := f.svc.AddPost(context.Background(), d)
	require.Error(t, err)
	assert.Equal(t, 400, models.StatusFor(err))

	posts, err := f.svc.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestPostService_UniqueIDsWithDefaultGenerator(t *testing.T) {
	kv := storage.NewMemory()
	svc := NewPostService(
		repository.NewPostRepository(kv, "jobPosts"),
		repository.NewPostRepository(kv, "jobPosts:hidden"),
		nil,
		PostServiceConfig{},
	)

	var posts []models.JobPost
	var err error
	for i := 0; i < 20; i++ {
		posts, err = svc.AddPost(context.Background(), draft(fmt.Sprintf("Job %d", i)))
		require.NoError(t, err)
	}

	seen := map[string]bool{}
	for _, p := range posts {
		assert.False(t, seen[p.ID], "duplicate id %s", p.ID)
		seen[p.ID] = true
	}
}

func TestPostService_LikePost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.AddPost(ctx, draft("Cook"))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = f.svc.LikePost(ctx, "id-1")
		require.NoError(t, err)
	}
	posts, err := f.svc.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, posts[0].Likes)
}

func TestPostService_LikeUnknownIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	before, err := f.svc.AddPost(ctx, draft("Cook"))
	require.NoError(t, err)

	after, err := f.svc.LikePost(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, []notifications.EventType{notifications.EventPostCreated}, f.pub.types())
}

func TestPostService_ReportThreshold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.AddPost(ctx, draft("Cook"))
	require.NoError(t, err)

	posts, err := f.svc.ReportPost(ctx, "id-1")
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, 1, posts[0].Reports)

	posts, err = f.svc.ReportPost(ctx, "id-1")
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, 2, posts[0].Reports)

	posts, err = f.svc.ReportPost(ctx, "id-1")
	require.NoError(t, err)
	assert.Empty(t, posts)

	loaded, err := f.svc.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)

	hidden, err := f.svc.Hidden(ctx)
	require.NoError(t, err)
	require.Len(t, hidden, 1)
	assert.Equal(t, "id-1", hidden[0].ID)
	assert.True(t, hidden[0].Hidden)
	assert.Equal(t, 3, hidden[0].Reports)

	assert.Contains(t, f.pub.types(), notifications.EventPostHidden)

	// a hidden post can no longer be reported or liked
	posts, err = f.svc.ReportPost(ctx, "id-1")
	require.NoError(t, err)
	assert.Empty(t, posts)
	hidden, err = f.svc.Hidden(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, hidden[0].Reports)
}

func TestPostService_CustomThreshold(t *testing.T) {
	kv := storage.NewMemory()
	svc := NewPostService(
		repository.NewPostRepository(kv, "jobPosts"),
		repository.NewPostRepository(kv, "jobPosts:hidden"),
		nil,
		PostServiceConfig{ReportThreshold: 1},
	)
	posts, err := svc.AddPost(context.Background(), draft("Cook"))
	require.NoError(t, err)

	posts, err = svc.ReportPost(context.Background(), posts[0].ID)
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestPostService_Expiration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.AddPost(ctx, draft("Old"))
	require.NoError(t, err)

	f.clock.Advance(24*time.Hour - time.Millisecond)
	posts, err := f.svc.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, posts, 1)

	f.clock.Advance(time.Millisecond)
	posts, err = f.svc.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, posts)

	raw, err := f.kv.Get(ctx, "jobPosts")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
	assert.Contains(t, f.pub.types(), notifications.EventPostsExpired)
}

func TestPostService_Sweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddPost(ctx, draft("Reported"))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = f.svc.ReportPost(ctx, "id-1")
		require.NoError(t, err)
	}
	f.clock.Advance(12 * time.Hour)
	_, err = f.svc.AddPost(ctx, draft("Fresh"))
	require.NoError(t, err)

	n, err := f.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	f.clock.Advance(12 * time.Hour)
	n, err = f.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "archived post expires")

	f.clock.Advance(12 * time.Hour)
	n, err = f.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "board post expires")

	posts, err := f.svc.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, posts)
	hidden, err := f.svc.Hidden(ctx)
	require.NoError(t, err)
	assert.Empty(t, hidden)
}

func TestPostService_LoadDropsStoredHidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := f.clock.Now().UnixMilli()
	repo := repository.NewPostRepository(f.kv, "jobPosts")
	require.NoError(t, repo.Save(ctx, []models.JobPost{
		{ID: "a", Timestamp: now, Hidden: true, Reports: 3},
		{ID: "b", Timestamp: now},
	}))

	posts, err := f.svc.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(posts))
}

func TestPostService_SnapshotsAreIndependent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	posts, err := f.svc.AddPost(ctx, draft("Cook"))
	require.NoError(t, err)

	posts[0].Likes = 99
	loaded, err := f.svc.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, loaded[0].Likes)
}

func TestPostService_Get(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.AddPost(ctx, draft("Cook"))
	require.NoError(t, err)

	p, err := f.svc.Get(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "Cook", p.Title)

	_, err = f.svc.Get(ctx, "nope")
	assert.Equal(t, 404, models.StatusFor(err))
}

func TestPostService_ReadFailureNeverOverwrites(t *testing.T) {
	saved := false
	repo := &postRepoStub{
		loadFn: func(_ context.Context) ([]models.JobPost, error) { return nil, errors.New("redis down") },
		saveFn: func(_ context.Context, _ []models.JobPost) error {
			saved = true
			return nil
		},
	}
	svc := NewPostService(repo, repo, nil, PostServiceConfig{})
	ctx := context.Background()

	_, err := svc.AddPost(ctx, draft("Cook"))
	assert.Equal(t, 503, models.StatusFor(err))
	_, err = svc.LikePost(ctx, "a")
	assert.Equal(t, 503, models.StatusFor(err))
	_, err = svc.ReportPost(ctx, "a")
	assert.Equal(t, 503, models.StatusFor(err))
	_, err = svc.Sweep(ctx)
	assert.Error(t, err)
	_, err = svc.Load(ctx)
	assert.Error(t, err)

	assert.False(t, saved)
}

func TestPostService_WriteFailure(t *testing.T) {
	repo := &postRepoStub{
		loadFn: func(_ context.Context) ([]models.JobPost, error) { return []models.JobPost{}, nil },
		saveFn: func(_ context.Context, _ []models.JobPost) error { return errors.New("disk full") },
	}
	pub := &publisherStub{}
	svc := NewPostService(repo, repo, pub, PostServiceConfig{})

	_, err := svc.AddPost(context.Background(), draft("Cook"))
	assert.Equal(t, 503, models.StatusFor(err))
	assert.Empty(t, pub.types())
}

func TestPostService_PublishErrorDoesNotFailMutation(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("redis down")

	posts, err := f.svc.AddPost(context.Background(), draft("Cook"))
	require.NoError(t, err)
	assert.Len(t, posts, 1)
}

func TestPostService_ConcurrentLikes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.AddPost(ctx, draft("Cook"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.svc.LikePost(ctx, "id-1")
		}()
	}
	wg.Wait()

	posts, err := f.svc.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 25, posts[0].Likes)
}

// Two posts: likes and reports touch only their target, the third report
// hides B, and A expires a day after it was created.
func TestPostService_BoardScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddPost(ctx, draft("A"))
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	posts, err := f.svc.AddPost(ctx, draft("B"))
	require.NoError(t, err)
	assert.Equal(t, []string{"id-2", "id-1"}, ids(posts))

	_, err = f.svc.LikePost(ctx, "id-1")
	require.NoError(t, err)
	_, err = f.svc.LikePost(ctx, "id-1")
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err = f.svc.ReportPost(ctx, "id-2")
		require.NoError(t, err)
	}

	posts, err = f.svc.Load(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, 0, posts[0].Likes)
	assert.Equal(t, 2, posts[0].Reports)
	assert.Equal(t, 2, posts[1].Likes)
	assert.Equal(t, 0, posts[1].Reports)

	posts, err = f.svc.ReportPost(ctx, "id-2")
	require.NoError(t, err)
	assert.Equal(t, []string{"id-1"}, ids(posts))

	f.clock.Advance(24*time.Hour - time.Minute)
	removed, err := f.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	posts, err = f.svc.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, posts)
}
