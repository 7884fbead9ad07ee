// Package seed fills a board with demo posts, either from a YAML fixture
// file or from generated data. Intended for development only.
package seed

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"jobboard/internal/media"
	"jobboard/internal/middleware"
	"jobboard/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"gopkg.in/yaml.v3"
)

const (
	imageWidth  = 96
	imageHeight = 64
)

// PostAdder is the part of the post store the seeder needs.
type PostAdder interface {
	AddPost(ctx context.Context, d models.Draft) ([]models.JobPost, error)
}

// Fixture is one post in a fixture file. Image may be a data-URL; when it is
// empty a solid placeholder in Color (hex, default gray) is generated.
type Fixture struct {
	Title       string  `yaml:"title"`
	Description string  `yaml:"description"`
	Price       float64 `yaml:"price"`
	Phone       string  `yaml:"phone"`
	Image       string  `yaml:"image"`
	Color       string  `yaml:"color"`
}

type fixtureFile struct {
	Posts []Fixture `yaml:"posts"`
}

// LoadFixtures reads drafts from a YAML file.
func LoadFixtures(path string) ([]models.Draft, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	return ParseFixtures(raw)
}

// ParseFixtures decodes a fixture document of the form `posts: [...]`.
func ParseFixtures(raw []byte) ([]models.Draft, error) {
	var doc fixtureFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}

	drafts := make([]models.Draft, 0, len(doc.Posts))
	for i, f := range doc.Posts {
		img := f.Image
		if img == "" {
			c, err := parseHexColor(f.Color)
			if err != nil {
				return nil, fmt.Errorf("fixture %d: %w", i, err)
			}
			img = media.SolidPNGDataURL(imageWidth, imageHeight, c)
		}
		drafts = append(drafts, models.Draft{
			Image:       img,
			Title:       f.Title,
			Description: f.Description,
			Price:       f.Price,
			Phone:       f.Phone,
		})
	}
	return drafts, nil
}

// Generate builds n drafts from gofakeit. A zero seed picks a random one.
func Generate(n int, seed int64) []models.Draft {
	faker := gofakeit.New(seed)
	drafts := make([]models.Draft, 0, max(n, 0))
	for range max(n, 0) {
		c := color.RGBA{
			R: uint8(faker.Number(0, 255)),
			G: uint8(faker.Number(0, 255)),
			B: uint8(faker.Number(0, 255)),
			A: 255,
		}
		drafts = append(drafts, models.Draft{
			Image:       media.SolidPNGDataURL(imageWidth, imageHeight, c),
			Title:       fmt.Sprintf("%s %s at %s", faker.JobLevel(), faker.JobTitle(), faker.Company()),
			Description: faker.Paragraph(1, 3, 10, " "),
			Price:       faker.Price(50, 5000),
			Phone:       faker.Phone(),
		})
	}
	return drafts
}

// Posts adds every draft through the store. Drafts that fail validation are
// skipped with a warning; any other error stops seeding.
func Posts(ctx context.Context, store PostAdder, drafts []models.Draft) (int, error) {
	added := 0
	for i, d := range drafts {
		if _, err := store.AddPost(ctx, d); err != nil {
			var appErr *models.AppError
			if errors.As(err, &appErr) && appErr.Code == models.CodeValidation {
				middleware.Logger.Warn("Skipping invalid seed post",
					slog.Int("index", i),
					slog.String("title", d.Title),
					slog.String("reason", appErr.Message),
				)
				continue
			}
			return added, fmt.Errorf("seed post %d: %w", i, err)
		}
		added++
	}
	return added, nil
}

func parseHexColor(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if s == "" {
		return color.RGBA{R: 0x99, G: 0x99, B: 0x99, A: 0xff}, nil
	}
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
