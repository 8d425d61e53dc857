package models

import (
	"errors"
	"time"

	"github.com/socially-app/socially/internal/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

// ErrSelfFollow is returned when a user tries to follow themselves.
var ErrSelfFollow = errors.New("cannot follow yourself")

// A Follow is a directed edge in the follow graph. An edge starts
// pending and is counted only once the target accepts it. Requesting an
// existing edge again is a no-op, so replaying a queued follow cannot
// create duplicates.
type Follow struct {
	UserID    snowflake.ID `gorm:"primarykey;autoIncrement:false"`
	User      *User        `gorm:"constraint:OnDelete:CASCADE;<-:false;"`
	TargetID  snowflake.ID `gorm:"primarykey;autoIncrement:false"`
	Target    *User        `gorm:"constraint:OnDelete:CASCADE;<-:false;"`
	State     FollowState  `gorm:"not null;default:'pending'"`
	CreatedAt time.Time
}

type FollowState string

const (
	FollowPending  FollowState = "pending"
	FollowAccepted FollowState = "accepted"
)

func (FollowState) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "mysql", "postgres":
		return "enum('pending', 'accepted')"
	case "sqlite":
		return "TEXT"
	default:
		return ""
	}
}

type Follows struct {
	db *gorm.DB
}

func NewFollows(db *gorm.DB) *Follows {
	return &Follows{db: db}
}

// Request creates a pending follow edge from user to target. An
// existing edge, pending or accepted, is left untouched.
func (f *Follows) Request(userID, targetID snowflake.ID) (*Follow, error) {
	if userID == targetID {
		return nil, ErrSelfFollow
	}
	follow := &Follow{
		UserID:   userID,
		TargetID: targetID,
		State:    FollowPending,
	}
	err := f.db.Clauses(clause.OnConflict{DoNothing: true}).Create(follow).Error
	if err != nil {
		return nil, err
	}
	if err := f.db.First(follow, "user_id = ? AND target_id = ?", userID, targetID).Error; err != nil {
		return nil, err
	}
	return follow, nil
}

// Accept marks the pending edge from user to target as accepted and
// refreshes both follower counts.
func (f *Follows) Accept(userID, targetID snowflake.ID) (*Follow, error) {
	var follow Follow
	err := f.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&follow, "user_id = ? AND target_id = ?", userID, targetID).Error; err != nil {
			return err
		}
		follow.State = FollowAccepted
		if err := tx.Save(&follow).Error; err != nil {
			return err
		}
		return f.updateCounts(tx, userID, targetID)
	})
	if err != nil {
		return nil, err
	}
	return &follow, nil
}

// Reject removes a pending follow request from user to target. Accepted
// edges are untouched; unfollowing is the follower's move, not the target's.
func (f *Follows) Reject(userID, targetID snowflake.ID) error {
	res := f.db.
		Where("user_id = ? AND target_id = ? AND state = ?", userID, targetID, FollowPending).
		Delete(&Follow{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Unfollow removes the edge from user to target, whatever its state.
func (f *Follows) Unfollow(userID, targetID snowflake.ID) error {
	return f.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ? AND target_id = ?", userID, targetID).Delete(&Follow{}).Error
		if err != nil {
			return err
		}
		return f.updateCounts(tx, userID, targetID)
	})
}

// updateCounts refreshes the denormalised following count of the
// follower and followers count of the target.
func (f *Follows) updateCounts(tx *gorm.DB, userID, targetID snowflake.ID) error {
	following := tx.Select("COUNT(*)").Where("user_id = ? AND state = 'accepted'", userID).Table("follows")
	if err := tx.Model(&User{ID: userID}).Update("following_count", following).Error; err != nil {
		return err
	}
	followers := tx.Select("COUNT(*)").Where("target_id = ? AND state = 'accepted'", targetID).Table("follows")
	return tx.Model(&User{ID: targetID}).Update("followers_count", followers).Error
}

// Following returns the ids of users the given user follows, including
// the user themselves. Used to scope feed and story queries.
func (f *Follows) Following(userID snowflake.ID) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := f.db.Model(&Follow{}).
		Where("user_id = ? AND state = 'accepted'", userID).
		Pluck("target_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return append(ids, userID), nil
}

// Followers returns the users who follow the given user.
func (f *Follows) Followers(userID snowflake.ID) ([]User, error) {
	var users []User
	err := f.db.
		Joins("JOIN follows ON follows.user_id = users.id").
		Where("follows.target_id = ? AND follows.state = 'accepted'", userID).
		Find(&users).Error
	return users, err
}

// FollowingUsers returns the users the given user follows.
func (f *Follows) FollowingUsers(userID snowflake.ID) ([]User, error) {
	var users []User
	err := f.db.
		Joins("JOIN follows ON follows.target_id = users.id").
		Where("follows.user_id = ? AND follows.state = 'accepted'", userID).
		Find(&users).Error
	return users, err
}

// PendingRequests returns the users with an outstanding follow request
// to the given user, oldest first.
func (f *Follows) PendingRequests(targetID snowflake.ID) ([]User, error) {
	var users []User
	err := f.db.
		Joins("JOIN follows ON follows.user_id = users.id").
		Where("follows.target_id = ? AND follows.state = 'pending'", targetID).
		Order("follows.created_at ASC").
		Find(&users).Error
	return users, err
}
