package media

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"log/slog"

	"github.com/shelfmark/shelfmark/lib/db"
	"github.com/shelfmark/shelfmark/lib/images"
	"github.com/shelfmark/shelfmark/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	name := strings.ReplaceAll(t.Name(), "/", "_")
	gdb, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: db.NewGormLogger(logger),
	})
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(gdb, logger))
	return gdb
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	gdb := newTestDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(gdb, logger, images.New(gdb, logger, "")), gdb
}

func floatPtr(f float64) *float64 { return &f }

func TestAverageSeasonRating(t *testing.T) {
	seasons := models.Seasons{
		{Number: 1, Watched: true, Rating: floatPtr(4)},
		{Number: 2, Watched: true, Rating: floatPtr(5)},
		{Number: 3, Watched: false},
	}
	assert.Equal(t, 4.5, AverageSeasonRating(seasons))
}

func TestAverageSeasonRatingExcludesZero(t *testing.T) {
	seasons := models.Seasons{
		{Number: 1, Watched: true, Rating: floatPtr(0)},
		{Number: 2, Watched: true, Rating: floatPtr(3)},
	}
	// A zero rating means unset, so only season two counts.
	assert.Equal(t, 3.0, AverageSeasonRating(seasons))
}

func TestAverageSeasonRatingNoRatings(t *testing.T) {
	seasons := models.Seasons{{Number: 1, Watched: true}}
	assert.Equal(t, 0.0, AverageSeasonRating(seasons))
}

func TestAverageSeasonRatingIdempotent(t *testing.T) {
	seasons := models.Seasons{
		{Number: 1, Watched: true, Rating: floatPtr(2.5)},
		{Number: 2, Watched: true, Rating: floatPtr(3.5)},
	}
	first := AverageSeasonRating(seasons)
	second := AverageSeasonRating(seasons)
	assert.Equal(t, first, second)
}

func TestAddMovie(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	item, err := svc.Add(ctx, "user-a", Input{Title: "Dune", Type: models.MediaTypeMovie})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(item.ID, "movie"))
	assert.Equal(t, time.Now().Format("2006-01-02"), item.AddedDate)

	items, err := svc.List(ctx, "user-a")
	require.NoError(t, err)
	require.Len(t, items, 1)

	counts := CountByType(items)
	assert.Equal(t, 1, counts.Movie)
	assert.Equal(t, 1, counts.All)
	assert.Equal(t, 0, counts.TV)
}

func TestAddRequiresAuthentication(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Add(context.Background(), "", Input{Title: "Dune", Type: models.MediaTypeMovie})
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestAddValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, "user-a", Input{Title: "", Type: models.MediaTypeMovie})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Add(ctx, "user-a", Input{Title: "X", Type: models.MediaType("album")})
	assert.ErrorIs(t, err, ErrValidation)

	// Seasons on a movie violate the seasons-iff-tv invariant.
	_, err = svc.Add(ctx, "user-a", Input{
		Title:   "X",
		Type:    models.MediaTypeMovie,
		Seasons: models.Seasons{{Number: 1}},
	})
	assert.ErrorIs(t, err, ErrValidation)

	// A TV show needs at least one season and at most twenty.
	_, err = svc.Add(ctx, "user-a", Input{Title: "X", Type: models.MediaTypeTV})
	assert.ErrorIs(t, err, ErrValidation)

	many := make(models.Seasons, 21)
	for i := range many {
		many[i] = models.Season{Number: i + 1}
	}
	_, err = svc.Add(ctx, "user-a", Input{Title: "X", Type: models.MediaTypeTV, Seasons: many})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAddRejectsLongReview(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Add(context.Background(), "user-a", Input{
		Title:  "Dune",
		Type:   models.MediaTypeMovie,
		Review: &models.Review{Rating: 4, Text: strings.Repeat("word ", 201)},
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAddRejectsBadReviewDate(t *testing.T) {
	svc, _ := newTestService(t)

	for _, date := range []string{"not-a-date-9999", "15-01-2024", "2999-01-01"} {
		_, err := svc.Add(context.Background(), "user-a", Input{
			Title:  "Dune",
			Type:   models.MediaTypeMovie,
			Review: &models.Review{Rating: 4, Date: date},
		})
		assert.ErrorIs(t, err, ErrValidation, date)
	}

	_, err := svc.Add(context.Background(), "user-a", Input{
		Title:  "Dune",
		Type:   models.MediaTypeMovie,
		Review: &models.Review{Rating: 4, Date: "2024-01-15"},
	})
	require.NoError(t, err)
}

func TestUpdateRejectsBadReviewDate(t *testing.T) {
	svc, _ := newTestService(t)

	item, err := svc.Add(context.Background(), "user-a", Input{
		Title: "Dune",
		Type:  models.MediaTypeMovie,
	})
	require.NoError(t, err)

	_, err = svc.UpdateItem(context.Background(), "user-a", item.ID, Update{
		Review: &models.Review{Rating: 4, Date: "someday"},
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAddTVComputesAggregateRating(t *testing.T) {
	svc, _ := newTestService(t)

	item, err := svc.Add(context.Background(), "user-a", Input{
		Title: "Severance",
		Type:  models.MediaTypeTV,
		Seasons: models.Seasons{
			{Number: 1, Watched: true, Rating: floatPtr(4)},
			{Number: 2, Watched: true, Rating: floatPtr(5)},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, item.ReviewRating)
	assert.Equal(t, 4.5, *item.ReviewRating)
}

func TestAddTVKeepsExplicitReviewRating(t *testing.T) {
	svc, _ := newTestService(t)

	item, err := svc.Add(context.Background(), "user-a", Input{
		Title:  "Severance",
		Type:   models.MediaTypeTV,
		Review: &models.Review{Rating: 2, Text: "meh"},
		Seasons: models.Seasons{
			{Number: 1, Watched: true, Rating: floatPtr(5)},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, item.ReviewRating)
	assert.Equal(t, 2.0, *item.ReviewRating)
}

func TestUpdateSeasonsRecomputesRating(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	item, err := svc.Add(ctx, "user-a", Input{
		Title:   "Severance",
		Type:    models.MediaTypeTV,
		Seasons: models.Seasons{{Number: 1, Watched: true, Rating: floatPtr(3)}},
	})
	require.NoError(t, err)

	updated, err := svc.UpdateItem(ctx, "user-a", item.ID, Update{
		Seasons: models.Seasons{
			{Number: 1, Watched: true, Rating: floatPtr(3)},
			{Number: 2, Watched: true, Rating: floatPtr(5)},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, updated.ReviewRating)
	assert.Equal(t, 4.0, *updated.ReviewRating)

	// Recomputing with the same seasons yields the same value.
	again, err := svc.UpdateItem(ctx, "user-a", item.ID, Update{Seasons: updated.Seasons})
	require.NoError(t, err)
	assert.Equal(t, *updated.ReviewRating, *again.ReviewRating)
}

func TestUpdatePreservesAddedDate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	item, err := svc.Add(ctx, "user-a", Input{Title: "Dune", Type: models.MediaTypeMovie})
	require.NoError(t, err)

	title := "Dune: Part One"
	updated, err := svc.UpdateItem(ctx, "user-a", item.ID, Update{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Dune: Part One", updated.Title)
	assert.Equal(t, item.AddedDate, updated.AddedDate)
}

func TestUpdateUnknownItem(t *testing.T) {
	svc, _ := newTestService(t)
	title := "X"
	_, err := svc.UpdateItem(context.Background(), "user-a", "missing", Update{Title: &title})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteRemovesFromList(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	item, err := svc.Add(ctx, "user-a", Input{Title: "Dune", Type: models.MediaTypeMovie})
	require.NoError(t, err)

	title, err := svc.Delete(ctx, "user-a", item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dune", title)

	items, err := svc.List(ctx, "user-a")
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = svc.Delete(ctx, "user-a", item.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserScoping(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	item, err := svc.Add(ctx, "user-a", Input{Title: "Dune", Type: models.MediaTypeMovie})
	require.NoError(t, err)

	// Another user cannot see, update or delete it.
	items, err := svc.List(ctx, "user-b")
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = svc.Get(ctx, "user-b", item.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Delete(ctx, "user-b", item.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListOrdersByAddedDateDescending(t *testing.T) {
	svc, gdb := newTestService(t)
	ctx := context.Background()

	older := models.MediaItem{
		ID:        "movie1",
		UserID:    "user-a",
		Title:     "Old",
		Type:      models.MediaTypeMovie,
		AddedDate: "2020-05-01",
	}
	require.NoError(t, gdb.Create(&older).Error)

	_, err := svc.Add(ctx, "user-a", Input{Title: "New", Type: models.MediaTypeMovie})
	require.NoError(t, err)

	items, err := svc.List(ctx, "user-a")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "New", items[0].Title)
	assert.Equal(t, "Old", items[1].Title)
}

func TestAddRegistersSharedImage(t *testing.T) {
	svc, gdb := newTestService(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, "user-a", Input{
		Title:    "Dune",
		Type:     models.MediaTypeMovie,
		ImageURL: "https://covers.example.com/dune.jpg",
	})
	require.NoError(t, err)

	var shared models.SharedImage
	require.NoError(t, gdb.Where("title = ? AND type = ?", "Dune", models.MediaTypeMovie).First(&shared).Error)
	assert.Equal(t, "user-a", shared.CreatorID)
	assert.Equal(t, 1, shared.UseCount)
}

func TestAddSkipsPlaceholderImage(t *testing.T) {
	svc, gdb := newTestService(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, "user-a", Input{
		Title:    "Dune",
		Type:     models.MediaTypeMovie,
		ImageURL: images.PlaceholderURL("Dune", models.MediaTypeMovie),
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, gdb.Model(&models.SharedImage{}).Count(&count).Error)
	assert.Zero(t, count)
}
