package api

import (
	"time"

	"github.com/socially-app/socially/internal/snowflake"
	"github.com/socially-app/socially/models"
)

type user struct {
	ID             snowflake.ID `json:"id"`
	Username       string       `json:"username"`
	DisplayName    string       `json:"display_name"`
	Bio            string       `json:"bio,omitempty"`
	Avatar         string       `json:"avatar,omitempty"`
	FollowersCount int32        `json:"followers_count"`
	FollowingCount int32        `json:"following_count"`
	CreatedAt      time.Time    `json:"created_at"`
}

func serializeUser(u *models.User) *user {
	return &user{
		ID:             u.ID,
		Username:       u.Username,
		DisplayName:    u.DisplayName,
		Bio:            u.Bio,
		Avatar:         u.Avatar,
		FollowersCount: u.FollowersCount,
		FollowingCount: u.FollowingCount,
		CreatedAt:      u.CreatedAt(),
	}
}

type message struct {
	ID         snowflake.ID `json:"id"`
	SenderID   snowflake.ID `json:"sender_id"`
	ReceiverID snowflake.ID `json:"receiver_id"`
	Message    *string      `json:"message"`
	MediaURL   *string      `json:"media_url,omitempty"`
	MediaType  *string      `json:"media_type,omitempty"`
	VanishMode bool         `json:"vanish_mode"`
	Edited     bool         `json:"edited"`
	ReadAt     *time.Time   `json:"read_at,omitempty"`
	Deleted    bool         `json:"deleted"`
	CreatedAt  time.Time    `json:"created_at"`
}

// serializeMessage renders a message row. Soft-deleted rows come out as
// tombstones: present, but with no content or media.
func serializeMessage(m *models.Message) *message {
	msg := &message{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Message:    m.Content,
		MediaURL:   m.MediaURL,
		MediaType:  m.MediaType,
		VanishMode: m.VanishMode,
		Edited:     m.Edited,
		ReadAt:     m.ReadAt,
		CreatedAt:  m.CreatedAt(),
	}
	if m.DeletedAt != nil {
		msg.Deleted = true
		msg.Message = nil
		msg.MediaURL = nil
		msg.MediaType = nil
	}
	return msg
}

type post struct {
	ID            snowflake.ID `json:"id"`
	UserID        snowflake.ID `json:"user_id"`
	Username      string       `json:"username,omitempty"`
	Caption       string       `json:"caption"`
	MediaURL      string       `json:"media_url"`
	MediaType     string       `json:"media_type"`
	LikesCount    int32        `json:"likes_count"`
	CommentsCount int32        `json:"comments_count"`
	CreatedAt     time.Time    `json:"created_at"`
}

func serializePost(p *models.Post) *post {
	sp := &post{
		ID:            p.ID,
		UserID:        p.UserID,
		Caption:       p.Caption,
		MediaURL:      p.MediaURL,
		MediaType:     p.MediaType,
		LikesCount:    p.LikesCount,
		CommentsCount: p.CommentsCount,
		CreatedAt:     p.CreatedAt(),
	}
	if p.User != nil {
		sp.Username = p.User.Username
	}
	return sp
}

type comment struct {
	ID        snowflake.ID `json:"id"`
	PostID    snowflake.ID `json:"post_id"`
	UserID    snowflake.ID `json:"user_id"`
	Username  string       `json:"username,omitempty"`
	Comment   string       `json:"comment"`
	CreatedAt time.Time    `json:"created_at"`
}

func serializeComment(c *models.PostComment) *comment {
	sc := &comment{
		ID:        c.ID,
		PostID:    c.PostID,
		UserID:    c.UserID,
		Comment:   c.Content,
		CreatedAt: c.CreatedAt(),
	}
	if c.User != nil {
		sc.Username = c.User.Username
	}
	return sc
}

type story struct {
	ID        snowflake.ID `json:"id"`
	UserID    snowflake.ID `json:"user_id"`
	MediaURL  string       `json:"media_url"`
	MediaType string       `json:"media_type"`
	CreatedAt time.Time    `json:"created_at"`
	ExpiresAt time.Time    `json:"expires_at"`
}

func serializeStory(s *models.Story) *story {
	return &story{
		ID:        s.ID,
		UserID:    s.UserID,
		MediaURL:  s.MediaURL,
		MediaType: s.MediaType,
		CreatedAt: s.CreatedAt(),
		ExpiresAt: s.ExpiresAt,
	}
}

type follow struct {
	UserID    snowflake.ID       `json:"user_id"`
	TargetID  snowflake.ID       `json:"target_id"`
	State     models.FollowState `json:"state"`
	CreatedAt time.Time          `json:"created_at"`
}

func serializeFollow(f *models.Follow) *follow {
	return &follow{
		UserID:    f.UserID,
		TargetID:  f.TargetID,
		State:     f.State,
		CreatedAt: f.CreatedAt,
	}
}
