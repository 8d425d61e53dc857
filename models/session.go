package models

import (
	"time"

	"github.com/socially-app/socially/internal/snowflake"
	"gorm.io/gorm"
)

// A Session is a login session. The session row is the revocation
// authority for the bearer token that carries its ID: deleting the row
// invalidates the token, which is how logout works.
type Session struct {
	ID        snowflake.ID `gorm:"primarykey;autoIncrement:false"`
	CreatedAt time.Time
	UserID    snowflake.ID `gorm:"not null;index"`
	User      *User        `gorm:"constraint:OnDelete:CASCADE;<-:false;"`
}

type Sessions struct {
	db *gorm.DB
}

func NewSessions(db *gorm.DB) *Sessions {
	return &Sessions{db: db}
}

// Create opens a new session for the user.
func (s *Sessions) Create(user *User) (*Session, error) {
	session := &Session{
		ID:     snowflake.Now(),
		UserID: user.ID,
	}
	if err := s.db.Create(session).Error; err != nil {
		return nil, err
	}
	session.User = user
	return session, nil
}

// Find returns the session with the given id, with its user preloaded.
func (s *Sessions) Find(id snowflake.ID) (*Session, error) {
	var session Session
	if err := s.db.Joins("User").First(&session, "sessions.id = ?", id).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// Revoke deletes the session, invalidating any token that references it.
func (s *Sessions) Revoke(id snowflake.ID) error {
	return s.db.Delete(&Session{}, id).Error
}
