package db

import (
	"context"
	"fmt"

	"log/slog"

	"github.com/shelfmark/shelfmark/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Open connects to the SQLite database at path and runs migrations.
func Open(path string, logger *slog.Logger) (*gorm.DB, error) {
	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: NewGormLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := RunMigrations(gdb, logger); err != nil {
		return nil, err
	}
	return gdb, nil
}

// RunMigrations applies SQLite pragmas, auto-migrates the schema and
// creates the indexes the query paths depend on.
func RunMigrations(gdb *gorm.DB, logger *slog.Logger) error {
	ctx := context.Background()

	if err := enableSQLiteOptimizations(ctx, gdb, logger); err != nil {
		return fmt.Errorf("failed to enable SQLite optimizations: %w", err)
	}

	if err := gdb.AutoMigrate(
		&models.Profile{},
		&models.MediaItem{},
		&models.Follow{},
		&models.SharedImage{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	if err := createAdditionalIndexes(ctx, gdb, logger); err != nil {
		return fmt.Errorf("failed to create additional indexes: %w", err)
	}

	return nil
}

// enableSQLiteOptimizations enables SQLite-specific optimizations.
func enableSQLiteOptimizations(ctx context.Context, gdb *gorm.DB, logger *slog.Logger) error {
	optimizations := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}

	for _, pragma := range optimizations {
		if err := gdb.WithContext(ctx).Exec(pragma).Error; err != nil {
			logger.Warn("Failed to execute pragma", slog.String("pragma", pragma), slog.Any("error", err))
		}
	}

	return nil
}

// createAdditionalIndexes creates composite indexes for common queries.
func createAdditionalIndexes(ctx context.Context, gdb *gorm.DB, logger *slog.Logger) error {
	additionalIndexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_media_items_user_added ON media_items(user_id, added_date)",
		"CREATE INDEX IF NOT EXISTS idx_follows_following ON follows(following_id)",
		"CREATE INDEX IF NOT EXISTS idx_shared_media_images_use_count ON shared_media_images(title, type, use_count)",
		"CREATE INDEX IF NOT EXISTS idx_profiles_username ON profiles(lower(username))",
	}

	for _, indexSQL := range additionalIndexes {
		if err := gdb.WithContext(ctx).Exec(indexSQL).Error; err != nil {
			logger.Warn("Failed to create index", slog.String("sql", indexSQL), slog.Any("error", err))
		}
	}

	return nil
}
