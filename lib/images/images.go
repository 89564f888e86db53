package images

import (
	"context"
	"fmt"

	"log/slog"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
	"github.com/shelfmark/shelfmark/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service manages the cross-user shared image cache and cover generation.
// Shared rows accumulate indefinitely; there is no eviction.
type Service struct {
	db     *gorm.DB
	logger *slog.Logger
	openai *openai.Client
}

// New creates the image service. An empty openaiKey disables the AI
// generation path; covers then come from the deterministic placeholder
// generator.
func New(db *gorm.DB, logger *slog.Logger, openaiKey string) *Service {
	s := &Service{db: db, logger: logger}
	if openaiKey != "" {
		s.openai = openai.NewClient(openaiKey)
	}
	return s
}

// Find returns the top shared images for an exact (title, type) match,
// most reused first. At most five rows are returned.
func (s *Service) Find(ctx context.Context, title string, mediaType models.MediaType) ([]models.SharedImage, error) {
	var images []models.SharedImage
	err := s.db.WithContext(ctx).
		Where("title = ? AND type = ?", title, mediaType).
		Order("use_count DESC").
		Limit(5).
		Find(&images).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find shared images: %w", err)
	}
	return images, nil
}

// Add records a cover image use for (title, type). An existing row has
// its use count incremented; otherwise a new row starts at one.
func (s *Service) Add(ctx context.Context, title string, mediaType models.MediaType, imageURL, creatorID string) error {
	row := models.SharedImage{
		ID:        uuid.NewString(),
		Title:     title,
		Type:      mediaType,
		ImageURL:  imageURL,
		CreatorID: creatorID,
		UseCount:  1,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "title"}, {Name: "type"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"use_count": gorm.Expr("use_count + 1")}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to upsert shared image: %w", err)
	}
	return nil
}

// GeneratedImage is the result of a cover lookup or generation.
type GeneratedImage struct {
	URL string `json:"url"`
	// CreatorID attributes a reused shared image to the user who first
	// supplied it. Empty for generated and placeholder covers.
	CreatorID string `json:"creatorId,omitempty"`
	Source    string `json:"source"` // "shared", "generated" or "placeholder"
}

// Generate returns a cover URL for a title. A shared image wins when one
// exists; otherwise the AI path is tried when configured, and any failure
// falls back to the deterministic placeholder so the same title and type
// always yield the same URL in the absence of shared images.
func (s *Service) Generate(ctx context.Context, title string, mediaType models.MediaType) (*GeneratedImage, error) {
	shared, err := s.Find(ctx, title, mediaType)
	if err != nil {
		return nil, err
	}
	if len(shared) > 0 {
		return &GeneratedImage{
			URL:       shared[0].ImageURL,
			CreatorID: shared[0].CreatorID,
			Source:    "shared",
		}, nil
	}

	if s.openai != nil {
		url, err := s.generateWithAI(ctx, title, mediaType)
		if err != nil {
			s.logger.Error("AI image generation failed, using placeholder",
				slog.String("title", title),
				slog.Any("error", err))
		} else {
			return &GeneratedImage{URL: url, Source: "generated"}, nil
		}
	}

	return &GeneratedImage{
		URL:    PlaceholderURL(title, mediaType),
		Source: "placeholder",
	}, nil
}

func (s *Service) generateWithAI(ctx context.Context, title string, mediaType models.MediaType) (string, error) {
	var subject string
	switch mediaType {
	case models.MediaTypeMovie:
		subject = "movie poster"
	case models.MediaTypeTV:
		subject = "TV show poster"
	default:
		subject = "book cover"
	}

	resp, err := s.openai.CreateImage(ctx, openai.ImageRequest{
		Prompt: fmt.Sprintf("A %s for %q, no text, cinematic lighting", subject, title),
		Model:  openai.CreateImageModelDallE3,
		N:      1,
		Size:   openai.CreateImageSize1024x1024,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create image: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", fmt.Errorf("image response contained no URL")
	}
	return resp.Data[0].URL, nil
}
