// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"jobboard/internal/models"
	"jobboard/internal/observability"
	"jobboard/internal/storage"
)

// PostRepository defines the interface for post collection operations.
// The whole collection lives under a single key.
type PostRepository interface {
	Load(ctx context.Context) ([]models.JobPost, error)
	Save(ctx context.Context, posts []models.JobPost) error
}

// postRepository implements PostRepository
type postRepository struct {
	kv  storage.KV
	key string
	log *observability.RepoLogger
}

// NewPostRepository creates a repository over key in kv.
func NewPostRepository(kv storage.KV, key string) PostRepository {
	return &postRepository{
		kv:  kv,
		key: key,
		log: observability.NewRepoLogger(key),
	}
}

// HiddenKey returns the moderation archive key paired with a board key.
func HiddenKey(boardKey string) string {
	return boardKey + ":hidden"
}

func (r *postRepository) Load(ctx context.Context) ([]models.JobPost, error) {
	raw, err := r.kv.Get(ctx, r.key)
	if errors.Is(err, storage.ErrNotFound) {
		return []models.JobPost{}, nil
	}
	if err != nil {
		r.log.LogError(ctx, err, "read")
		return nil, fmt.Errorf("load %s: %w", r.key, err)
	}

	var posts []models.JobPost
	if err := json.Unmarshal(raw, &posts); err != nil {
		r.log.LogCorrupt(ctx, err)
		return []models.JobPost{}, nil
	}
	if posts == nil {
		posts = []models.JobPost{}
	}

	r.log.LogRead(ctx, map[string]interface{}{"count": len(posts), "bytes": len(raw)})
	return posts, nil
}

func (r *postRepository) Save(ctx context.Context, posts []models.JobPost) error {
	if posts == nil {
		posts = []models.JobPost{}
	}
	raw, err := json.Marshal(posts)
	if err != nil {
		return fmt.Errorf("encode %s: %w", r.key, err)
	}
	if err := r.kv.Set(ctx, r.key, raw); err != nil {
		r.log.LogError(ctx, err, "write")
		return fmt.Errorf("save %s: %w", r.key, err)
	}
	r.log.LogWrite(ctx, map[string]interface{}{"count": len(posts), "bytes": len(raw)})
	return nil
}
