// Command seed fills the configured board with demo job posts.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"jobboard/internal/bootstrap"
	"jobboard/internal/config"
	"jobboard/internal/models"
	"jobboard/internal/notifications"
	"jobboard/internal/repository"
	"jobboard/internal/seed"
	"jobboard/internal/service"
	"jobboard/internal/validation"
)

func main() {
	fixtures := flag.String("fixtures", "", "YAML fixture file (posts: [...])")
	count := flag.Int("count", 10, "Number of generated posts when no fixture file is given")
	randSeed := flag.Int64("seed", 0, "Generator seed (0 picks a random one)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	rt, err := bootstrap.InitRuntime(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := rt.Close(); err != nil {
			log.Printf("Storage close error: %v", err)
		}
	}()

	var drafts []models.Draft
	if *fixtures != "" {
		drafts, err = seed.LoadFixtures(*fixtures)
		if err != nil {
			log.Fatalf("Failed to load fixtures: %v", err)
		}
		log.Printf("Loaded %d posts from %s", len(drafts), *fixtures)
	} else {
		drafts = seed.Generate(*count, *randSeed)
		log.Printf("Generated %d posts", len(drafts))
	}

	// With Redis, running servers pick the new posts up on their live feed.
	svc := service.NewPostService(
		repository.NewPostRepository(rt.KV, cfg.StorageKey),
		repository.NewPostRepository(rt.KV, repository.HiddenKey(cfg.StorageKey)),
		notifications.NewNotifier(rt.Redis, nil),
		service.PostServiceConfig{
			ReportThreshold: cfg.ReportThreshold,
			TTL:             cfg.PostTTL,
			Limits:          validation.Limits{MaxPixels: cfg.ImageMaxPixels},
		},
	)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	added, err := seed.Posts(ctx, svc, drafts)
	if err != nil {
		log.Printf("Seeding stopped after %d posts: %v", added, err)
		return
	}
	log.Printf("Seeded %d posts into %s (%s)", added, cfg.StorageKey, rt.KV.Backend())
}
