// Package store caches fetched posts in SQLite so the feed can be served
// without calling every platform.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/gauthierbraillon/creatorfeed/internal/aggregator"
	"github.com/gauthierbraillon/creatorfeed/pkg/oauth"
)

// PostRecord is the cached row of one post, keyed by platform and post ID.
type PostRecord struct {
	Platform     string `gorm:"primaryKey"`
	PostID       string `gorm:"primaryKey"`
	ThumbnailURL string
	Title        string
	Caption      string
	Likes        int64
	Comments     int64
	Views        int64
	Date         time.Time `gorm:"index"`
	URL          string
	UpdatedAt    time.Time
}

func (PostRecord) TableName() string {
	return "posts"
}

func recordFromPost(p aggregator.Post) PostRecord {
	return PostRecord{
		Platform:     string(p.Platform),
		PostID:       p.ID,
		ThumbnailURL: p.ThumbnailURL,
		Title:        p.Title,
		Caption:      p.Caption,
		Likes:        p.Likes,
		Comments:     p.Comments,
		Views:        p.Views,
		Date:         p.Date,
		URL:          p.URL,
	}
}

func (r PostRecord) post() aggregator.Post {
	return aggregator.Post{
		ID:           r.PostID,
		Platform:     oauth.Platform(r.Platform),
		ThumbnailURL: r.ThumbnailURL,
		Title:        r.Title,
		Caption:      r.Caption,
		Likes:        r.Likes,
		Comments:     r.Comments,
		Views:        r.Views,
		Date:         r.Date.UTC(),
		URL:          r.URL,
	}
}

// PostStore persists posts. Writers are last-write-wins per post.
type PostStore struct {
	db *gorm.DB
}

// Open opens (creating if needed) the SQLite database at path.
func Open(path string) (*PostStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open post cache: %w", err)
	}
	return New(db)
}

// New wraps an open database and migrates the posts table.
func New(db *gorm.DB) (*PostStore, error) {
	if err := db.AutoMigrate(&PostRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate post cache: %w", err)
	}
	return &PostStore{db: db}, nil
}

// SavePosts inserts posts, replacing any cached post with the same
// platform and ID.
func (s *PostStore) SavePosts(ctx context.Context, posts []aggregator.Post) error {
	if len(posts) == 0 {
		return nil
	}

	records := make([]PostRecord, 0, len(posts))
	for _, p := range posts {
		if p.ID == "" {
			continue
		}
		records = append(records, recordFromPost(p))
	}
	if len(records) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(records, 100).Error
	if err != nil {
		return fmt.Errorf("failed to save posts: %w", err)
	}
	return nil
}

// ListPosts returns cached posts newest first. An empty platform lists every
// platform; a non-positive limit lists everything.
func (s *PostStore) ListPosts(ctx context.Context, platform oauth.Platform, limit int) ([]aggregator.Post, error) {
	q := s.db.WithContext(ctx).Order("date DESC")
	if platform != "" {
		q = q.Where("platform = ?", string(platform))
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var records []PostRecord
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}

	posts := make([]aggregator.Post, 0, len(records))
	for _, r := range records {
		posts = append(posts, r.post())
	}
	return posts, nil
}

// DeletePlatform drops every cached post of a platform and reports how many
// were removed.
func (s *PostStore) DeletePlatform(ctx context.Context, platform oauth.Platform) (int64, error) {
	res := s.db.WithContext(ctx).Where("platform = ?", string(platform)).Delete(&PostRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete posts: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Close releases the underlying database.
func (s *PostStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
