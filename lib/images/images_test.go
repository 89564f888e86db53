package images

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"log/slog"

	"github.com/shelfmark/shelfmark/lib/db"
	"github.com/shelfmark/shelfmark/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	name := strings.ReplaceAll(t.Name(), "/", "_")
	gdb, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: db.NewGormLogger(logger),
	})
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(gdb, logger))
	return New(gdb, logger, "")
}

func TestPlaceholderIsDeterministic(t *testing.T) {
	a := PlaceholderURL("Dune", models.MediaTypeBook)
	b := PlaceholderURL("Dune", models.MediaTypeBook)
	assert.Equal(t, a, b)
	assert.Contains(t, a, "images.unsplash.com")
	assert.True(t, IsPlaceholder(a))
}

func TestPlaceholderVariesByTitleAndType(t *testing.T) {
	assert.NotEqual(t,
		PlaceholderURL("Dune", models.MediaTypeBook),
		PlaceholderURL("Dune Messiah", models.MediaTypeBook))
	assert.NotEqual(t,
		PlaceholderURL("Dune", models.MediaTypeBook),
		PlaceholderURL("Dune", models.MediaTypeMovie))
}

func TestIsPlaceholder(t *testing.T) {
	assert.True(t, IsPlaceholder("https://example.com/img?sat=40"))
	assert.False(t, IsPlaceholder("https://example.com/poster.jpg"))
	assert.False(t, IsPlaceholder(""))
}

func TestAddIncrementsUseCount(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, "Dune", models.MediaTypeBook, "https://example.com/dune.jpg", "u1"))
	require.NoError(t, svc.Add(ctx, "Dune", models.MediaTypeBook, "https://example.com/other.jpg", "u2"))

	found, err := svc.Find(ctx, "Dune", models.MediaTypeBook)
	require.NoError(t, err)
	require.Len(t, found, 1, "same title and type collapse to one row")
	assert.Equal(t, 2, found[0].UseCount)
	assert.Equal(t, "https://example.com/dune.jpg", found[0].ImageURL, "first registered image is kept")
	assert.Equal(t, "u1", found[0].CreatorID)
}

func TestFindIsScopedAndOrdered(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, "Dune", models.MediaTypeBook, "https://example.com/book.jpg", "u1"))
	require.NoError(t, svc.Add(ctx, "Dune", models.MediaTypeMovie, "https://example.com/movie.jpg", "u2"))
	require.NoError(t, svc.Add(ctx, "Dune", models.MediaTypeMovie, "https://example.com/movie.jpg", "u3"))

	found, err := svc.Find(ctx, "Dune", models.MediaTypeBook)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "https://example.com/book.jpg", found[0].ImageURL)

	found, err = svc.Find(ctx, "Dune", models.MediaTypeMovie)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, 2, found[0].UseCount)

	found, err = svc.Find(ctx, "Unknown Title", models.MediaTypeBook)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestGeneratePrefersSharedImage(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, "Dune", models.MediaTypeMovie, "https://example.com/dune.jpg", "u1"))

	img, err := svc.Generate(ctx, "Dune", models.MediaTypeMovie)
	require.NoError(t, err)
	assert.Equal(t, "shared", img.Source)
	assert.Equal(t, "https://example.com/dune.jpg", img.URL)
	assert.Equal(t, "u1", img.CreatorID)
}

func TestGenerateFallsBackToPlaceholder(t *testing.T) {
	svc := newTestService(t)

	img, err := svc.Generate(context.Background(), "Dune", models.MediaTypeMovie)
	require.NoError(t, err)
	assert.Equal(t, "placeholder", img.Source)
	assert.Equal(t, PlaceholderURL("Dune", models.MediaTypeMovie), img.URL)
	assert.Empty(t, img.CreatorID)
}
