package models

import (
	"time"

	"github.com/socially-app/socially/internal/snowflake"
	"gorm.io/gorm"
)

// StoryTTL is how long a story remains visible after creation.
const StoryTTL = 24 * time.Hour

// A Story is an ephemeral media post. Stories are never mutated; they
// expire exactly StoryTTL after creation. Expiry is lazy: active queries
// filter on expires_at, and housekeeping deletes expired rows.
type Story struct {
	ID        snowflake.ID `gorm:"primarykey;autoIncrement:false"`
	UserID    snowflake.ID `gorm:"not null;index"`
	User      *User        `gorm:"constraint:OnDelete:CASCADE;<-:false;"`
	MediaURL  string       `gorm:"size:255;not null"`
	MediaType string       `gorm:"size:64;not null"`
	// ExpiresAt is always exactly StoryTTL after the creation time
	// encoded in the ID.
	ExpiresAt      time.Time `gorm:"not null;index"`
	IdempotencyKey string    `gorm:"size:36;uniqueIndex;not null"`
}

// CreatedAt is the time the story was posted, derived from the row's ID.
func (s *Story) CreatedAt() time.Time {
	return s.ID.ToTime()
}

// Expired reports whether the story has expired at now. A story is
// expired from the instant now reaches ExpiresAt.
func (s *Story) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

type Stories struct {
	db *gorm.DB
}

func NewStories(db *gorm.DB) *Stories {
	return &Stories{db: db}
}

// Create posts a new story expiring StoryTTL from now. Uploads are
// deduplicated by idempotency key.
func (s *Stories) Create(userID snowflake.ID, mediaURL, mediaType, idempotencyKey string) (*Story, error) {
	var existing Story
	err := s.db.First(&existing, "idempotency_key = ?", idempotencyKey).Error
	if err == nil {
		return &existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	id := snowflake.Now()
	story := &Story{
		ID:             id,
		UserID:         userID,
		MediaURL:       mediaURL,
		MediaType:      mediaType,
		ExpiresAt:      id.ToTime().Add(StoryTTL),
		IdempotencyKey: idempotencyKey,
	}
	if err := s.db.Create(story).Error; err != nil {
		return nil, err
	}
	return story, nil
}

// ActiveByUser returns the user's unexpired stories in creation order.
func (s *Stories) ActiveByUser(userID snowflake.ID, now time.Time) ([]Story, error) {
	var stories []Story
	err := s.db.
		Where("user_id = ? AND expires_at > ?", userID, now).
		Order("id ASC").
		Find(&stories).Error
	return stories, err
}

// Feed returns unexpired stories from the given users in creation order.
func (s *Stories) Feed(userIDs []snowflake.ID, now time.Time) ([]Story, error) {
	var stories []Story
	err := s.db.
		Where("user_id IN ? AND expires_at > ?", userIDs, now).
		Order("id ASC").
		Find(&stories).Error
	return stories, err
}

// DeleteExpired removes stories whose expiry has passed. Run from
// housekeeping; active queries already exclude them.
func (s *Stories) DeleteExpired(now time.Time) (int64, error) {
	res := s.db.Where("expires_at <= ?", now).Delete(&Story{})
	return res.RowsAffected, res.Error
}
