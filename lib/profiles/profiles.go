package profiles

import (
	"context"
	"errors"
	"fmt"

	"log/slog"

	"github.com/shelfmark/shelfmark/lib/follow"
	"github.com/shelfmark/shelfmark/models"
	"gorm.io/gorm"
)

// ErrNotFound reports a lookup for a user with no profile row. Profiles
// are provisioned externally; this service never creates or deletes them.
var ErrNotFound = errors.New("profile not found")

// Service serves public profiles, the edit-profile flow and the
// search-as-you-type user lookup.
type Service struct {
	db     *gorm.DB
	logger *slog.Logger
	follow *follow.Service
}

func New(db *gorm.DB, logger *slog.Logger, follow *follow.Service) *Service {
	return &Service{db: db, logger: logger, follow: follow}
}

// Get returns the bare profile row for a user.
func (s *Service) Get(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.WithContext(ctx).Where("id = ?", userID).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &profile, nil
}

// View is a profile page payload: profile fields, follow counts and, for
// a signed-in viewer looking at someone else, whether they follow them.
type View struct {
	models.Profile
	FollowCounts models.FollowCounts `json:"followCounts"`
	IsFollowing  *bool               `json:"isFollowing,omitempty"`
	IsSelf       bool                `json:"isSelf"`
}

// GetView assembles the profile page for userID as seen by viewerID
// (empty for anonymous visitors). Serves both the SELF and OTHER states
// of the profile route.
func (s *Service) GetView(ctx context.Context, userID, viewerID string) (*View, error) {
	profile, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	counts, err := s.follow.Counts(ctx, userID)
	if err != nil {
		return nil, err
	}

	view := &View{
		Profile:      *profile,
		FollowCounts: counts,
		IsSelf:       viewerID != "" && viewerID == userID,
	}
	if viewerID != "" && viewerID != userID {
		following, err := s.follow.IsFollowing(ctx, viewerID, userID)
		if err != nil {
			return nil, err
		}
		view.IsFollowing = &following
	}
	return view, nil
}

// Update holds the edit-profile form fields. Nil fields are unchanged.
type Update struct {
	Username  *string `json:"username"`
	AvatarURL *string `json:"avatar_url"`
	Bio       *string `json:"bio"`
}

// Update mutates the caller's own profile.
func (s *Service) Update(ctx context.Context, userID string, up Update) (*models.Profile, error) {
	profile, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if up.Username != nil {
		profile.Username = up.Username
	}
	if up.AvatarURL != nil {
		profile.AvatarURL = up.AvatarURL
	}
	if up.Bio != nil {
		profile.Bio = up.Bio
	}

	if err := s.db.WithContext(ctx).Save(profile).Error; err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	s.logger.Info("Updated profile", slog.String("user", userID))
	return profile, nil
}

// Search finds users whose username contains the query, case-insensitive,
// capped at ten results as the navbar lookup expects.
func (s *Service) Search(ctx context.Context, query string) ([]models.Profile, error) {
	var results []models.Profile
	err := s.db.WithContext(ctx).
		Where("lower(username) LIKE lower(?)", "%"+query+"%").
		Limit(10).
		Find(&results).Error
	if err != nil {
		return nil, fmt.Errorf("failed to search profiles: %w", err)
	}
	return results, nil
}
