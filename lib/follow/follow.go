package follow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"log/slog"

	"github.com/google/uuid"
	"github.com/shelfmark/shelfmark/models"
	"gorm.io/gorm"
)

var (
	// ErrNotAuthenticated blocks follow mutations before any store call.
	ErrNotAuthenticated = errors.New("you need to be logged in")
	// ErrSelfFollow rejects a user following themselves.
	ErrSelfFollow = errors.New("you cannot follow yourself")
)

// Direction selects which end of a follow edge to list.
type Direction string

const (
	DirectionFollowers Direction = "followers"
	DirectionFollowing Direction = "following"
)

// Service orchestrates follow/unfollow/list/count against the follow
// graph. Edges are directed follower -> followee and mutated only by the
// follower.
type Service struct {
	db     *gorm.DB
	logger *slog.Logger
}

func New(db *gorm.DB, logger *slog.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// IsFollowing reports whether an edge viewer -> target exists.
func (s *Service) IsFollowing(ctx context.Context, viewerID, targetID string) (bool, error) {
	if viewerID == "" {
		return false, nil
	}
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND following_id = ?", viewerID, targetID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check follow status: %w", err)
	}
	return count > 0, nil
}

// Counts derives follower and following totals from edge row counts.
func (s *Service) Counts(ctx context.Context, userID string) (models.FollowCounts, error) {
	var counts models.FollowCounts

	err := s.db.WithContext(ctx).Model(&models.Follow{}).
		Where("following_id = ?", userID).
		Count(&counts.Followers).Error
	if err != nil {
		return counts, fmt.Errorf("failed to count followers: %w", err)
	}

	err = s.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ?", userID).
		Count(&counts.Following).Error
	if err != nil {
		return counts, fmt.Errorf("failed to count following: %w", err)
	}

	return counts, nil
}

// Follow inserts the edge viewer -> target. Following someone you already
// follow is success: the unique constraint keeps a single edge and the
// conflict is swallowed.
func (s *Service) Follow(ctx context.Context, viewerID, targetID string) error {
	if viewerID == "" {
		return ErrNotAuthenticated
	}
	if viewerID == targetID {
		return ErrSelfFollow
	}

	edge := models.Follow{
		ID:          uuid.NewString(),
		FollowerID:  viewerID,
		FollowingID: targetID,
	}
	if err := s.db.WithContext(ctx).Create(&edge).Error; err != nil {
		if isUniqueViolation(err) {
			s.logger.Debug("Already following",
				slog.String("follower", viewerID),
				slog.String("following", targetID))
			return nil
		}
		return fmt.Errorf("failed to follow user: %w", err)
	}
	return nil
}

// Unfollow deletes the edge viewer -> target. Deleting an absent edge is
// a no-op.
func (s *Service) Unfollow(ctx context.Context, viewerID, targetID string) error {
	if viewerID == "" {
		return ErrNotAuthenticated
	}
	err := s.db.WithContext(ctx).
		Where("follower_id = ? AND following_id = ?", viewerID, targetID).
		Delete(&models.Follow{}).Error
	if err != nil {
		return fmt.Errorf("failed to unfollow user: %w", err)
	}
	return nil
}

// List returns the profiles at the far end of userID's edges in the given
// direction, each annotated with whether viewerID follows that profile.
// The viewer annotation is resolved with one batched edge query over the
// candidate id set instead of a lookup per row.
func (s *Service) List(ctx context.Context, userID string, direction Direction, viewerID string) ([]models.ProfileWithFollow, error) {
	edgeColumn := "follower_id"
	whereColumn := "following_id"
	if direction == DirectionFollowing {
		edgeColumn = "following_id"
		whereColumn = "follower_id"
	}

	var ids []string
	err := s.db.WithContext(ctx).Model(&models.Follow{}).
		Where(whereColumn+" = ?", userID).
		Pluck(edgeColumn, &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", direction, err)
	}
	if len(ids) == 0 {
		return []models.ProfileWithFollow{}, nil
	}

	var profiles []models.Profile
	err = s.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&profiles).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load %s profiles: %w", direction, err)
	}

	followed := map[string]bool{}
	if viewerID != "" {
		var viewerEdges []string
		err = s.db.WithContext(ctx).Model(&models.Follow{}).
			Where("follower_id = ? AND following_id IN ?", viewerID, ids).
			Pluck("following_id", &viewerEdges).Error
		if err != nil {
			return nil, fmt.Errorf("failed to batch follow checks: %w", err)
		}
		for _, id := range viewerEdges {
			followed[id] = true
		}
	}

	result := make([]models.ProfileWithFollow, 0, len(profiles))
	for _, p := range profiles {
		result = append(result, models.ProfileWithFollow{
			ID:          p.ID,
			Username:    p.Username,
			AvatarURL:   p.AvatarURL,
			IsFollowing: followed[p.ID],
		})
	}
	return result, nil
}

// isUniqueViolation matches the sqlite unique constraint error for the
// follows pair index.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
