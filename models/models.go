package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// MediaType is the kind of work a MediaItem catalogues.
type MediaType string

const (
	MediaTypeMovie MediaType = "movie"
	MediaTypeTV    MediaType = "tv"
	MediaTypeBook  MediaType = "book"
)

// Valid reports whether t is one of the known media types.
func (t MediaType) Valid() bool {
	switch t {
	case MediaTypeMovie, MediaTypeTV, MediaTypeBook:
		return true
	}
	return false
}

// Season is one watch-tracked unit of a TV show.
type Season struct {
	Number          int      `json:"number"`
	Watched         bool     `json:"watched"`
	Rating          *float64 `json:"rating,omitempty"`
	EpisodesWatched *int     `json:"episodesWatched,omitempty"`
	TotalEpisodes   *int     `json:"totalEpisodes,omitempty"`
}

// Seasons is stored as a JSON column on media_items.
type Seasons []Season

func (s Seasons) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal seasons: %w", err)
	}
	return string(b), nil
}

func (s *Seasons) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported seasons column type %T", value)
	}
	if len(b) == 0 {
		*s = nil
		return nil
	}
	return json.Unmarshal(b, s)
}

// Review is an optional rating and text attached to a MediaItem.
type Review struct {
	Rating float64 `json:"rating"`
	Text   string  `json:"text"`
	Date   string  `json:"date"`
}

// MediaItem is the persisted row shape of a catalogued work. Review fields
// are flattened into columns and seasons are kept as a JSON array.
type MediaItem struct {
	ID                string `gorm:"primaryKey"`
	UserID            string `gorm:"index"`
	Title             string
	Type              MediaType `gorm:"index"`
	ImageURL          string
	Creator           string
	ReleaseYear       *int
	AddedDate         string
	ReviewRating      *float64
	ReviewText        string
	ReviewDate        string
	Seasons           Seasons `gorm:"type:json"`
	OriginalCreatorID string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// MediaItemView is the API shape of a MediaItem.
type MediaItemView struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	Type              MediaType `json:"type"`
	ImageURL          string    `json:"imageUrl,omitempty"`
	Creator           string    `json:"creator,omitempty"`
	ReleaseYear       *int      `json:"releaseYear,omitempty"`
	AddedDate         string    `json:"addedDate"`
	Review            *Review   `json:"review,omitempty"`
	Seasons           Seasons   `json:"seasons,omitempty"`
	OriginalCreatorID string    `json:"originalCreatorId,omitempty"`
}

// View transforms the row shape into the API shape. A review is surfaced
// only when a non-zero rating exists; a missing review date defaults to
// today.
func (m *MediaItem) View() MediaItemView {
	v := MediaItemView{
		ID:                m.ID,
		Title:             m.Title,
		Type:              m.Type,
		ImageURL:          m.ImageURL,
		Creator:           m.Creator,
		ReleaseYear:       m.ReleaseYear,
		AddedDate:         m.AddedDate,
		Seasons:           m.Seasons,
		OriginalCreatorID: m.OriginalCreatorID,
	}
	if m.ReviewRating != nil && *m.ReviewRating != 0 {
		date := m.ReviewDate
		if date == "" {
			date = time.Now().Format("2006-01-02")
		}
		v.Review = &Review{
			Rating: *m.ReviewRating,
			Text:   m.ReviewText,
			Date:   date,
		}
	}
	return v
}

// Profile is the public per-user profile. One row per auth identity;
// created by an external provisioning step and never deleted here.
type Profile struct {
	ID        string  `gorm:"primaryKey" json:"id"`
	Username  *string `json:"username"`
	AvatarURL *string `json:"avatar_url"`
	Bio       *string `json:"bio"`
}

// Follow is a directed edge follower -> followee, unique per ordered pair.
type Follow struct {
	ID          string `gorm:"primaryKey"`
	FollowerID  string `gorm:"uniqueIndex:idx_follows_pair"`
	FollowingID string `gorm:"uniqueIndex:idx_follows_pair"`
	CreatedAt   time.Time
}

// FollowCounts are derived by counting edge rows.
type FollowCounts struct {
	Followers int64 `json:"followers"`
	Following int64 `json:"following"`
}

// ProfileWithFollow is a follower/following list entry annotated with
// whether the current viewer follows that profile.
type ProfileWithFollow struct {
	ID          string  `json:"id"`
	Username    *string `json:"username"`
	AvatarURL   *string `json:"avatar_url"`
	IsFollowing bool    `json:"isFollowing"`
}

// SharedImage maps a (title, type) pair to a previously used cover image
// so repeated titles across users converge on one image.
type SharedImage struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"uniqueIndex:idx_shared_images_title_type" json:"title"`
	Type      MediaType `gorm:"uniqueIndex:idx_shared_images_title_type" json:"type"`
	ImageURL  string    `json:"image_url"`
	CreatorID string    `json:"creator_id"`
	UseCount  int       `json:"use_count"`
	CreatedAt time.Time `json:"-"`
}

func (SharedImage) TableName() string {
	return "shared_media_images"
}
