package media

import (
	"context"
	"errors"
	"fmt"
	"time"

	"log/slog"

	"github.com/shelfmark/shelfmark/lib/images"
	"github.com/shelfmark/shelfmark/lib/validation"
	"github.com/shelfmark/shelfmark/models"
	"gorm.io/gorm"
)

var (
	// ErrNotAuthenticated blocks mutations before any store call.
	ErrNotAuthenticated = errors.New("you need to be logged in")
	// ErrNotFound reports an update or delete on an unknown item.
	ErrNotFound = errors.New("media item not found")
	// ErrValidation marks client errors that should not reach the store.
	ErrValidation = errors.New("invalid media item")
)

const maxReviewWords = 200

// Service orchestrates add/update/delete/list against the media store.
// All queries are scoped by the owning user id.
type Service struct {
	db     *gorm.DB
	logger *slog.Logger
	images *images.Service
}

func New(db *gorm.DB, logger *slog.Logger, images *images.Service) *Service {
	return &Service{db: db, logger: logger, images: images}
}

// Input is an item as submitted by the add flow. The id and added date
// are assigned server-side.
type Input struct {
	Title             string           `json:"title"`
	Type              models.MediaType `json:"type"`
	ImageURL          string           `json:"imageUrl"`
	Creator           string           `json:"creator"`
	ReleaseYear       *int             `json:"releaseYear"`
	Review            *models.Review   `json:"review"`
	Seasons           models.Seasons   `json:"seasons"`
	OriginalCreatorID string           `json:"originalCreatorId"`
}

// Update is a partial merge onto an existing item. Nil fields are left
// unchanged.
type Update struct {
	Title             *string           `json:"title"`
	Type              *models.MediaType `json:"type"`
	ImageURL          *string           `json:"imageUrl"`
	Creator           *string           `json:"creator"`
	ReleaseYear       *int              `json:"releaseYear"`
	Review            *models.Review    `json:"review"`
	Seasons           models.Seasons    `json:"seasons"`
	OriginalCreatorID *string           `json:"originalCreatorId"`
}

// AverageSeasonRating is the arithmetic mean of all rated seasons. A
// season counts only when its rating is defined and non-zero; a zero
// rating means unset. Returns 0 when no season qualifies.
func AverageSeasonRating(seasons models.Seasons) float64 {
	var sum float64
	var n int
	for _, season := range seasons {
		if season.Rating != nil && *season.Rating > 0 {
			sum += *season.Rating
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// List returns all items owned by userID, most recently added first.
func (s *Service) List(ctx context.Context, userID string) ([]models.MediaItem, error) {
	var items []models.MediaItem
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("added_date DESC, created_at DESC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load media items: %w", err)
	}
	return items, nil
}

// Get returns a single item owned by userID.
func (s *Service) Get(ctx context.Context, userID, id string) (*models.MediaItem, error) {
	var item models.MediaItem
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, id).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get media item: %w", err)
	}
	return &item, nil
}

// Add creates a new item for userID. The id is the media type plus a
// timestamp and the added date is today. For TV shows with rated seasons
// the review rating is recomputed from the season mean before persisting,
// and a user-supplied cover is registered as a shared image.
func (s *Service) Add(ctx context.Context, userID string, in Input) (*models.MediaItem, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	item := models.MediaItem{
		ID:                fmt.Sprintf("%s%d", in.Type, time.Now().UnixNano()),
		UserID:            userID,
		Title:             in.Title,
		Type:              in.Type,
		ImageURL:          in.ImageURL,
		Creator:           in.Creator,
		ReleaseYear:       in.ReleaseYear,
		AddedDate:         time.Now().Format("2006-01-02"),
		Seasons:           in.Seasons,
		OriginalCreatorID: in.OriginalCreatorID,
	}
	if in.Review != nil {
		item.ReviewRating = &in.Review.Rating
		item.ReviewText = in.Review.Text
		item.ReviewDate = reviewDate(in.Review.Date)
	}

	if item.Type == models.MediaTypeTV && len(item.Seasons) > 0 {
		avg := AverageSeasonRating(item.Seasons)
		if avg > 0 && (item.ReviewRating == nil || *item.ReviewRating == 0) {
			item.ReviewRating = &avg
			if item.ReviewDate == "" {
				item.ReviewDate = time.Now().Format("2006-01-02")
			}
		}
	}

	if item.ImageURL != "" && !images.IsPlaceholder(item.ImageURL) {
		if err := s.images.Add(ctx, item.Title, item.Type, item.ImageURL, userID); err != nil {
			return nil, err
		}
	}

	if err := s.db.WithContext(ctx).Create(&item).Error; err != nil {
		return nil, fmt.Errorf("failed to add media item: %w", err)
	}

	s.logger.Info("Added media item",
		slog.String("id", item.ID),
		slog.String("title", item.Title),
		slog.String("type", string(item.Type)))
	return &item, nil
}

// ApplyUpdate merges an update onto an existing item. When seasons change
// on a TV show the aggregate rating is recomputed and overwrites the
// review rating if the mean is positive. The added date never changes.
func ApplyUpdate(item *models.MediaItem, up Update) {
	if up.Title != nil {
		item.Title = *up.Title
	}
	if up.Type != nil {
		item.Type = *up.Type
	}
	if up.ImageURL != nil {
		item.ImageURL = *up.ImageURL
	}
	if up.Creator != nil {
		item.Creator = *up.Creator
	}
	if up.ReleaseYear != nil {
		item.ReleaseYear = up.ReleaseYear
	}
	if up.Review != nil {
		rating := up.Review.Rating
		item.ReviewRating = &rating
		item.ReviewText = up.Review.Text
		item.ReviewDate = reviewDate(up.Review.Date)
	}
	if up.Seasons != nil {
		item.Seasons = up.Seasons
	}
	if up.OriginalCreatorID != nil {
		item.OriginalCreatorID = *up.OriginalCreatorID
	}

	if up.Seasons != nil && item.Type == models.MediaTypeTV {
		if avg := AverageSeasonRating(item.Seasons); avg > 0 {
			item.ReviewRating = &avg
			if item.ReviewDate == "" {
				item.ReviewDate = time.Now().Format("2006-01-02")
			}
		}
	}
}

// UpdateItem merges updates onto an already persisted item and saves it.
func (s *Service) UpdateItem(ctx context.Context, userID, id string, up Update) (*models.MediaItem, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}

	item, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	previousURL := item.ImageURL
	ApplyUpdate(item, up)
	if err := validateItem(item); err != nil {
		return nil, err
	}

	if up.ImageURL != nil && item.ImageURL != "" && item.ImageURL != previousURL &&
		!images.IsPlaceholder(item.ImageURL) {
		if err := s.images.Add(ctx, item.Title, item.Type, item.ImageURL, userID); err != nil {
			return nil, err
		}
	}

	if err := s.db.WithContext(ctx).Save(item).Error; err != nil {
		return nil, fmt.Errorf("failed to update media item: %w", err)
	}

	s.logger.Info("Updated media item", slog.String("id", item.ID))
	return item, nil
}

// Delete removes an item and returns its title for the confirmation
// message. Deletion is irreversible; there is no soft delete.
func (s *Service) Delete(ctx context.Context, userID, id string) (string, error) {
	if userID == "" {
		return "", ErrNotAuthenticated
	}

	item, err := s.Get(ctx, userID, id)
	if err != nil {
		return "", err
	}

	err = s.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, id).
		Delete(&models.MediaItem{}).Error
	if err != nil {
		return "", fmt.Errorf("failed to delete media item: %w", err)
	}

	s.logger.Info("Deleted media item",
		slog.String("id", id),
		slog.String("title", item.Title))
	return item.Title, nil
}

// Counts are per-type item totals for a collection.
type Counts struct {
	All   int `json:"all"`
	Movie int `json:"movie"`
	TV    int `json:"tv"`
	Book  int `json:"book"`
}

// CountByType derives collection counts from a loaded item list.
func CountByType(items []models.MediaItem) Counts {
	counts := Counts{All: len(items)}
	for _, item := range items {
		switch item.Type {
		case models.MediaTypeMovie:
			counts.Movie++
		case models.MediaTypeTV:
			counts.TV++
		case models.MediaTypeBook:
			counts.Book++
		}
	}
	return counts
}

func validateInput(in Input) error {
	item := models.MediaItem{
		Title:   in.Title,
		Type:    in.Type,
		Seasons: in.Seasons,
	}
	if in.Review != nil {
		item.ReviewRating = &in.Review.Rating
		item.ReviewText = in.Review.Text
		item.ReviewDate = in.Review.Date
	}
	if in.ReleaseYear != nil {
		item.ReleaseYear = in.ReleaseYear
	}
	return validateItem(&item)
}

// validateItem enforces the cross-field invariants the JSON schema cannot
// express.
func validateItem(item *models.MediaItem) error {
	if item.Title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if !item.Type.Valid() {
		return fmt.Errorf("%w: unknown media type %q", ErrValidation, item.Type)
	}
	if item.Type == models.MediaTypeTV {
		if len(item.Seasons) < 1 || len(item.Seasons) > 20 {
			return fmt.Errorf("%w: tv shows need between 1 and 20 seasons", ErrValidation)
		}
	} else if item.Seasons != nil {
		return fmt.Errorf("%w: seasons are only valid for tv shows", ErrValidation)
	}
	if validation.WordCount(item.ReviewText) > maxReviewWords {
		return fmt.Errorf("%w: review text must be at most %d words", ErrValidation, maxReviewWords)
	}
	if item.ReviewRating != nil && (*item.ReviewRating < 0 || *item.ReviewRating > 5) {
		return fmt.Errorf("%w: rating must be between 0 and 5", ErrValidation)
	}
	if item.ReviewDate != "" {
		if err := validation.ValidateDate(item.ReviewDate); err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}
	return nil
}

func reviewDate(date string) string {
	if date == "" {
		return time.Now().Format("2006-01-02")
	}
	return date
}
