package models

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/socially-app/socially/internal/snowflake"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MockUser creates a new user in the database.
func MockUser(t *testing.T, tx *gorm.DB, username string) *User {
	t.Helper()
	require := require.New(t)

	user, err := NewUsers(tx).Create(username, fmt.Sprintf("%s@example.com", username), "correct horse battery staple")
	require.NoError(err)
	return user
}

// WithCreatedAt backdates a message by giving it an ID for ts.
func WithCreatedAt(ts time.Time) func(*Message) {
	return func(m *Message) {
		m.ID = snowflake.TimeToID(ts)
	}
}

// WithVanishMode marks the message for delete-on-read.
func WithVanishMode() func(*Message) {
	return func(m *Message) {
		m.VanishMode = true
	}
}

// WithMedia makes the message a media message.
func WithMedia(url, typ string) func(*Message) {
	return func(m *Message) {
		m.MediaURL = &url
		m.MediaType = &typ
	}
}

// MockMessage creates a new message in the database.
func MockMessage(t *testing.T, tx *gorm.DB, sender, receiver *User, text string, opts ...func(*Message)) *Message {
	t.Helper()
	require := require.New(t)

	msg := &Message{
		ID:             snowflake.Now(),
		SenderID:       sender.ID,
		ReceiverID:     receiver.ID,
		Content:        &text,
		IdempotencyKey: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(msg)
	}
	require.NoError(tx.Create(msg).Error)
	return msg
}

// MockPost creates a new post in the database.
func MockPost(t *testing.T, tx *gorm.DB, user *User, caption string) *Post {
	t.Helper()
	require := require.New(t)

	post, err := NewPosts(tx).Create(user.ID, caption, "/media/posts/1.jpg", "image/jpeg", uuid.NewString())
	require.NoError(err)
	return post
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	require := require.New(t)
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	require.NoError(err)

	err = db.AutoMigrate(AllTables()...)
	require.NoError(err)

	// enable foreign key constraints
	err = db.Exec("PRAGMA foreign_keys = ON").Error
	require.NoError(err)

	return db
}
