package models

import (
	"time"

	"github.com/socially-app/socially/internal/snowflake"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// A User is a registered account on the instance.
type User struct {
	ID                snowflake.ID `gorm:"primarykey;autoIncrement:false"`
	UpdatedAt         time.Time
	Username          string `gorm:"size:30;uniqueIndex;not null"`
	Email             string `gorm:"size:64;uniqueIndex;not null"`
	EncryptedPassword []byte `gorm:"size:60;not null"`
	DisplayName       string `gorm:"size:64;not null;default:''"`
	Bio               string `gorm:"type:text"`
	Avatar            string `gorm:"size:255;not null;default:''"`
	FollowersCount    int32  `gorm:"not null;default:0"`
	FollowingCount    int32  `gorm:"not null;default:0"`
}

// CreatedAt is the time the user signed up, derived from the row's ID.
func (u *User) CreatedAt() time.Time {
	return u.ID.ToTime()
}

type Users struct {
	db *gorm.DB
}

func NewUsers(db *gorm.DB) *Users {
	return &Users{db: db}
}

// Create registers a new user with a bcrypt-hashed password.
func (u *Users) Create(username, email, password string) (*User, error) {
	passwd, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &User{
		ID:                snowflake.Now(),
		Username:          username,
		Email:             email,
		EncryptedPassword: passwd,
		DisplayName:       username,
	}
	if err := u.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate returns the user for the given email if the password matches.
func (u *Users) Authenticate(email, password string) (*User, error) {
	var user User
	if err := u.db.First(&user, "email = ?", email).Error; err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword(user.EncryptedPassword, []byte(password)); err != nil {
		return nil, err
	}
	return &user, nil
}

// Find returns the user with the given id.
func (u *Users) Find(id snowflake.ID) (*User, error) {
	var user User
	if err := u.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateProfile changes the user's display name and bio. Nil fields are
// left as they are.
func (u *Users) UpdateProfile(id snowflake.ID, displayName, bio *string) (*User, error) {
	var user User
	if err := u.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	if displayName != nil {
		user.DisplayName = *displayName
	}
	if bio != nil {
		user.Bio = *bio
	}
	if err := u.db.Save(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// SetAvatar replaces the user's avatar image.
func (u *Users) SetAvatar(id snowflake.ID, url string) (*User, error) {
	var user User
	if err := u.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	user.Avatar = url
	if err := u.db.Save(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Search returns users whose username or display name contains the
// query, in username order.
func (u *Users) Search(query string, limit int) ([]User, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + query + "%"
	var users []User
	err := u.db.
		Where("username LIKE ? OR display_name LIKE ?", pattern, pattern).
		Order("username ASC").
		Limit(limit).
		Find(&users).Error
	return users, err
}
