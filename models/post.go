package models

import (
	"time"

	"github.com/socially-app/socially/internal/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// A Post is a feed entry with media and an optional caption.
type Post struct {
	ID             snowflake.ID `gorm:"primarykey;autoIncrement:false"`
	UpdatedAt      time.Time
	UserID         snowflake.ID `gorm:"not null;index"`
	User           *User        `gorm:"constraint:OnDelete:CASCADE;<-:false;"`
	Caption        string       `gorm:"size:2000;not null;default:''"`
	MediaURL       string       `gorm:"size:255;not null"`
	MediaType      string       `gorm:"size:64;not null"`
	LikesCount     int32        `gorm:"not null;default:0"`
	CommentsCount  int32        `gorm:"not null;default:0"`
	IdempotencyKey string       `gorm:"size:36;uniqueIndex;not null"`
}

// CreatedAt is the time the post was created, derived from the row's ID.
func (p *Post) CreatedAt() time.Time {
	return p.ID.ToTime()
}

// A PostLike records that a user likes a post. The composite primary
// key makes liking naturally idempotent: applying the same like twice
// cannot double the count.
type PostLike struct {
	PostID    snowflake.ID `gorm:"primarykey;autoIncrement:false"`
	Post      *Post        `gorm:"constraint:OnDelete:CASCADE;<-:false;"`
	UserID    snowflake.ID `gorm:"primarykey;autoIncrement:false"`
	User      *User        `gorm:"constraint:OnDelete:CASCADE;<-:false;"`
	CreatedAt time.Time
}

// A PostComment is a comment on a post.
type PostComment struct {
	ID             snowflake.ID `gorm:"primarykey;autoIncrement:false"`
	PostID         snowflake.ID `gorm:"not null;index"`
	Post           *Post        `gorm:"constraint:OnDelete:CASCADE;<-:false;"`
	UserID         snowflake.ID `gorm:"not null"`
	User           *User        `gorm:"constraint:OnDelete:CASCADE;<-:false;"`
	Content        string       `gorm:"size:2000;not null"`
	IdempotencyKey string       `gorm:"size:36;uniqueIndex;not null"`
}

// CreatedAt is the time the comment was created, derived from the row's ID.
func (c *PostComment) CreatedAt() time.Time {
	return c.ID.ToTime()
}

type Posts struct {
	db *gorm.DB
}

func NewPosts(db *gorm.DB) *Posts {
	return &Posts{db: db}
}

// Create uploads a new post. Uploads are deduplicated by idempotency key.
func (p *Posts) Create(userID snowflake.ID, caption, mediaURL, mediaType, idempotencyKey string) (*Post, error) {
	var existing Post
	err := p.db.First(&existing, "idempotency_key = ?", idempotencyKey).Error
	if err == nil {
		return &existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	post := &Post{
		ID:             snowflake.Now(),
		UserID:         userID,
		Caption:        caption,
		MediaURL:       mediaURL,
		MediaType:      mediaType,
		IdempotencyKey: idempotencyKey,
	}
	if err := p.db.Create(post).Error; err != nil {
		return nil, err
	}
	return post, nil
}

// Find returns the post with the given id.
func (p *Posts) Find(id snowflake.ID) (*Post, error) {
	var post Post
	if err := p.db.First(&post, id).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

// Like records that user likes the post. Liking twice is a no-op.
func (p *Posts) Like(postID, userID snowflake.ID) (*Post, error) {
	var post Post
	err := p.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&post, postID).Error; err != nil {
			return err
		}
		err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&PostLike{
			PostID: postID,
			UserID: userID,
		}).Error
		if err != nil {
			return err
		}
		return p.updateLikesCount(tx, &post)
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// Unlike removes user's like from the post. Unliking twice is a no-op.
func (p *Posts) Unlike(postID, userID snowflake.ID) (*Post, error) {
	var post Post
	err := p.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&post, postID).Error; err != nil {
			return err
		}
		err := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&PostLike{}).Error
		if err != nil {
			return err
		}
		return p.updateLikesCount(tx, &post)
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// updateLikesCount refreshes the denormalised likes count from the
// post_likes table.
func (p *Posts) updateLikesCount(tx *gorm.DB, post *Post) error {
	likes := tx.Select("COUNT(*)").Where("post_id = ?", post.ID).Table("post_likes")
	if err := tx.Model(post).Update("likes_count", likes).Error; err != nil {
		return err
	}
	return tx.First(post, post.ID).Error
}

// Comment adds a comment to the post. Comments are deduplicated by
// idempotency key so a retried comment is applied once.
func (p *Posts) Comment(postID, userID snowflake.ID, content, idempotencyKey string) (*PostComment, error) {
	var existing PostComment
	err := p.db.First(&existing, "idempotency_key = ?", idempotencyKey).Error
	if err == nil {
		return &existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	comment := &PostComment{
		ID:             snowflake.Now(),
		PostID:         postID,
		UserID:         userID,
		Content:        content,
		IdempotencyKey: idempotencyKey,
	}
	err = p.db.Transaction(func(tx *gorm.DB) error {
		var post Post
		if err := tx.First(&post, postID).Error; err != nil {
			return err
		}
		if err := tx.Create(comment).Error; err != nil {
			return err
		}
		comments := tx.Select("COUNT(*)").Where("post_id = ?", postID).Table("post_comments")
		return tx.Model(&post).Update("comments_count", comments).Error
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// Comments returns the post's comments in creation order.
func (p *Posts) Comments(postID snowflake.ID, limit int) ([]PostComment, error) {
	if limit <= 0 {
		limit = 100
	}
	var comments []PostComment
	err := p.db.
		Preload("User").
		Where("post_id = ?", postID).
		Order("id ASC").
		Limit(limit).
		Find(&comments).Error
	return comments, err
}

// Feed returns the most recent posts by the given users, newest first.
func (p *Posts) Feed(userIDs []snowflake.ID, limit int) ([]Post, error) {
	if limit <= 0 {
		limit = 50
	}
	var posts []Post
	err := p.db.
		Preload("User").
		Where("user_id IN ?", userIDs).
		Order("id DESC").
		Limit(limit).
		Find(&posts).Error
	return posts, err
}
