package repository

import (
	"context"
	"errors"
	"testing"

	"jobboard/internal/models"
	"jobboard/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingKV struct {
	storage.KV
	getErr error
	setErr error
}

func (f *failingKV) Get(ctx context.Context, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.KV.Get(ctx, key)
}

func (f *failingKV) Set(ctx context.Context, key string, value []byte) error {
	if f.setErr != nil {
		return f.setErr
	}
	return f.KV.Set(ctx, key, value)
}

func TestPostRepository_MissingKeyIsEmpty(t *testing.T) {
	repo := NewPostRepository(storage.NewMemory(), "jobPosts")

	posts, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, posts)
	assert.Empty(t, posts)
}

func TestPostRepository_MalformedIsEmpty(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		raw  string
	}{
		{"Not JSON", "{{{"},
		{"Object Instead Of Array", `{"id":"1"}`},
		{"Null", "null"},
		{"Empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := storage.NewMemory()
			require.NoError(t, kv.Set(ctx, "jobPosts", []byte(tt.raw)))

			posts, err := NewPostRepository(kv, "jobPosts").Load(ctx)
			require.NoError(t, err)
			assert.NotNil(t, posts)
			assert.Empty(t, posts)
		})
	}
}

func TestPostRepository_SaveLoadKeepsOrder(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	repo := NewPostRepository(kv, "jobPosts")

	in := []models.JobPost{
		{ID: "b", Title: "Cook", Price: 2500, Timestamp: 2000, Likes: 1},
		{ID: "a", Title: "Driver", Price: 1800, Timestamp: 1000, Reports: 2},
	}
	require.NoError(t, repo.Save(ctx, in))

	out, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	raw, err := kv.Get(ctx, "jobPosts")
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"timestamp":2000`)
	assert.Contains(t, string(raw), `"hidden":false`)
}

func TestPostRepository_SaveNilWritesEmptyArray(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()

	require.NoError(t, NewPostRepository(kv, "jobPosts").Save(ctx, nil))

	raw, err := kv.Get(ctx, "jobPosts")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
}

func TestPostRepository_BackendErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("backend down")

	repo := NewPostRepository(&failingKV{KV: storage.NewMemory(), getErr: boom}, "jobPosts")
	_, err := repo.Load(ctx)
	assert.ErrorIs(t, err, boom)

	repo = NewPostRepository(&failingKV{KV: storage.NewMemory(), setErr: boom}, "jobPosts")
	assert.ErrorIs(t, repo.Save(ctx, []models.JobPost{{ID: "a"}}), boom)
}

func TestHiddenKey(t *testing.T) {
	assert.Equal(t, "jobPosts:hidden", HiddenKey("jobPosts"))
}
