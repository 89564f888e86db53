package profiles

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"log/slog"

	"github.com/shelfmark/shelfmark/lib/db"
	"github.com/shelfmark/shelfmark/lib/follow"
	"github.com/shelfmark/shelfmark/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *follow.Service, *gorm.DB) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	name := strings.ReplaceAll(t.Name(), "/", "_")
	gdb, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: db.NewGormLogger(logger),
	})
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(gdb, logger))
	followSvc := follow.New(gdb, logger)
	return New(gdb, logger, followSvc), followSvc, gdb
}

func strPtr(s string) *string { return &s }

func seedProfile(t *testing.T, gdb *gorm.DB, id, username string) {
	t.Helper()
	require.NoError(t, gdb.Create(&models.Profile{ID: id, Username: strPtr(username)}).Error)
}

func TestGet(t *testing.T) {
	svc, _, gdb := newTestService(t)
	seedProfile(t, gdb, "u1", "alice")

	p, err := svc.Get(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, p.Username)
	assert.Equal(t, "alice", *p.Username)

	_, err = svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetViewSelf(t *testing.T) {
	svc, _, gdb := newTestService(t)
	seedProfile(t, gdb, "u1", "alice")

	view, err := svc.GetView(context.Background(), "u1", "u1")
	require.NoError(t, err)
	assert.True(t, view.IsSelf)
	assert.Nil(t, view.IsFollowing, "no follow state on your own profile")
}

func TestGetViewOther(t *testing.T) {
	svc, followSvc, gdb := newTestService(t)
	seedProfile(t, gdb, "u1", "alice")
	seedProfile(t, gdb, "u2", "bob")

	require.NoError(t, followSvc.Follow(context.Background(), "u2", "u1"))

	view, err := svc.GetView(context.Background(), "u1", "u2")
	require.NoError(t, err)
	assert.False(t, view.IsSelf)
	require.NotNil(t, view.IsFollowing)
	assert.True(t, *view.IsFollowing)
	assert.Equal(t, int64(1), view.FollowCounts.Followers)
}

func TestGetViewAnonymous(t *testing.T) {
	svc, _, gdb := newTestService(t)
	seedProfile(t, gdb, "u1", "alice")

	view, err := svc.GetView(context.Background(), "u1", "")
	require.NoError(t, err)
	assert.False(t, view.IsSelf)
	assert.Nil(t, view.IsFollowing)
}

func TestUpdateMergesFields(t *testing.T) {
	svc, _, gdb := newTestService(t)
	seedProfile(t, gdb, "u1", "alice")

	p, err := svc.Update(context.Background(), "u1", Update{Bio: strPtr("reader of doorstoppers")})
	require.NoError(t, err)
	require.NotNil(t, p.Bio)
	assert.Equal(t, "reader of doorstoppers", *p.Bio)
	require.NotNil(t, p.Username)
	assert.Equal(t, "alice", *p.Username, "unset fields stay as they were")

	p, err = svc.Update(context.Background(), "u1", Update{Username: strPtr("alice2")})
	require.NoError(t, err)
	assert.Equal(t, "alice2", *p.Username)
	assert.Equal(t, "reader of doorstoppers", *p.Bio)
}

func TestUpdateUnknownUser(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Update(context.Background(), "missing", Update{Bio: strPtr("x")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSearchIsCaseInsensitive(t *testing.T) {
	svc, _, gdb := newTestService(t)
	seedProfile(t, gdb, "u1", "BookWorm")
	seedProfile(t, gdb, "u2", "cinephile")

	results, err := svc.Search(context.Background(), "bookw")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "u1", results[0].ID)

	results, err = svc.Search(context.Background(), "PHILE")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "u2", results[0].ID)
}

func TestSearchLimit(t *testing.T) {
	svc, _, gdb := newTestService(t)
	for i := 0; i < 15; i++ {
		seedProfile(t, gdb, fmt.Sprintf("u%d", i), fmt.Sprintf("reader%d", i))
	}

	results, err := svc.Search(context.Background(), "reader")
	require.NoError(t, err)
	assert.Len(t, results, 10)
}
