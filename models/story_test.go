package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/socially-app/socially/internal/snowflake"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// MockStory creates a story posted at ts directly in the database.
func MockStory(t *testing.T, tx *gorm.DB, user *User, ts time.Time) *Story {
	t.Helper()
	require := require.New(t)

	id := snowflake.TimeToID(ts)
	story := &Story{
		ID:             id,
		UserID:         user.ID,
		MediaURL:       "/media/stories/1.jpg",
		MediaType:      "image/jpeg",
		ExpiresAt:      id.ToTime().Add(StoryTTL),
		IdempotencyKey: uuid.NewString(),
	}
	require.NoError(tx.Create(story).Error)
	return story
}

func TestStories(t *testing.T) {
	db := setupTestDB(t)

	t.Run("create sets expiry one day out", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()
		alice := MockUser(t, tx, "alice")

		story, err := NewStories(tx).Create(alice.ID, "/media/stories/1.jpg", "image/jpeg", uuid.NewString())
		require.NoError(err)
		require.Equal(story.CreatedAt().Add(StoryTTL), story.ExpiresAt)
		require.False(story.Expired(time.Now()))
	})

	t.Run("replayed key returns the existing row", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()
		alice := MockUser(t, tx, "alice")
		stories := NewStories(tx)

		key := uuid.NewString()
		first, err := stories.Create(alice.ID, "/media/stories/1.jpg", "image/jpeg", key)
		require.NoError(err)
		second, err := stories.Create(alice.ID, "/media/stories/1.jpg", "image/jpeg", key)
		require.NoError(err)
		require.Equal(first.ID, second.ID)

		var count int64
		require.NoError(tx.Model(&Story{}).Count(&count).Error)
		require.EqualValues(1, count)
	})

	t.Run("expiry boundary", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()
		alice := MockUser(t, tx, "alice")
		story := MockStory(t, tx, alice, time.Now())

		require.False(story.Expired(story.ExpiresAt.Add(-time.Second)))
		// expired at exactly the deadline, not a moment later
		require.True(story.Expired(story.ExpiresAt))
		require.True(story.Expired(story.ExpiresAt.Add(time.Second)))
	})

	t.Run("active queries exclude expired stories", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()
		alice := MockUser(t, tx, "alice")
		stories := NewStories(tx)

		fresh := MockStory(t, tx, alice, time.Now().Add(-time.Hour))
		MockStory(t, tx, alice, time.Now().Add(-StoryTTL-time.Minute))

		active, err := stories.ActiveByUser(alice.ID, time.Now())
		require.NoError(err)
		require.Len(active, 1)
		require.Equal(fresh.ID, active[0].ID)

		// the expired row still exists until housekeeping runs
		var count int64
		require.NoError(tx.Model(&Story{}).Count(&count).Error)
		require.EqualValues(2, count)
	})

	t.Run("feed filters by author and expiry", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()
		alice := MockUser(t, tx, "alice")
		bob := MockUser(t, tx, "bob")
		carol := MockUser(t, tx, "carol")
		stories := NewStories(tx)

		s1 := MockStory(t, tx, alice, time.Now().Add(-2*time.Hour))
		s2 := MockStory(t, tx, bob, time.Now().Add(-time.Hour))
		MockStory(t, tx, bob, time.Now().Add(-StoryTTL-time.Minute))
		MockStory(t, tx, carol, time.Now())

		feed, err := stories.Feed([]snowflake.ID{alice.ID, bob.ID}, time.Now())
		require.NoError(err)
		require.Len(feed, 2)
		require.Equal(s1.ID, feed[0].ID)
		require.Equal(s2.ID, feed[1].ID)
	})

	t.Run("delete expired removes only expired rows", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()
		alice := MockUser(t, tx, "alice")
		stories := NewStories(tx)

		fresh := MockStory(t, tx, alice, time.Now())
		MockStory(t, tx, alice, time.Now().Add(-StoryTTL-time.Minute))

		n, err := stories.DeleteExpired(time.Now())
		require.NoError(err)
		require.EqualValues(1, n)

		var remaining []Story
		require.NoError(tx.Find(&remaining).Error)
		require.Len(remaining, 1)
		require.Equal(fresh.ID, remaining[0].ID)
	})
}
