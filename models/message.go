package models

import (
	"errors"
	"time"

	"github.com/socially-app/socially/internal/snowflake"
	"gorm.io/gorm"
)

// EditWindow is the period after creation during which the sender may
// edit or delete a message. The server clock is authoritative; any
// client-side check against a cached row is advisory only.
const EditWindow = 5 * time.Minute

var (
	// ErrWindowExpired is returned when an edit or delete arrives after
	// the edit window has closed. It is distinct from not-found and
	// not-owned so callers can surface the specific reason.
	ErrWindowExpired = errors.New("edit window (5 minutes) has passed")
	// ErrNotSender is returned when someone other than the sender tries
	// to edit or delete a message.
	ErrNotSender = errors.New("only the sender can modify a message")
	// ErrNotEditable is returned when the sender tries to edit a media
	// message. Media messages can be deleted but not edited.
	ErrNotEditable = errors.New("media messages cannot be edited")
	// ErrSelfMessage is returned when a user tries to message themselves.
	ErrSelfMessage = errors.New("cannot message yourself")
	// ErrEmptyMessage is returned when a message has neither text nor media.
	ErrEmptyMessage = errors.New("message text or media is required")
)

// A Message is a directed content unit between two users.
//
// A message moves through a small set of states: active, edited (text
// changed, same identity), soft deleted (terminal, content hidden), and
// vanished (terminal, row removed). A vanish mode message is hard
// deleted once it has been read and the reader reports the conversation
// closed, regardless of the edit window.
type Message struct {
	ID         snowflake.ID `gorm:"primarykey;autoIncrement:false"`
	UpdatedAt  time.Time
	SenderID   snowflake.ID `gorm:"not null;index:idx_messages_sender_receiver"`
	Sender     *User        `gorm:"constraint:OnDelete:CASCADE;<-:false;"`
	ReceiverID snowflake.ID `gorm:"not null;index:idx_messages_sender_receiver"`
	Receiver   *User        `gorm:"constraint:OnDelete:CASCADE;<-:false;"`
	// Content is the message text, nil for media-only messages.
	Content   *string `gorm:"size:2000"`
	MediaURL  *string `gorm:"size:255"`
	MediaType *string `gorm:"size:64"`
	// VanishMode marks the message for hard deletion once read and the
	// conversation is closed by the reader.
	VanishMode bool `gorm:"not null;default:false"`
	// Edited records that the text was changed within the edit window.
	Edited bool `gorm:"not null;default:false"`
	// ReadAt is set when the receiver first sees the message.
	ReadAt *time.Time
	// DeletedAt is the soft-delete marker. The row is retained as a
	// tombstone; its content is not rendered.
	DeletedAt *time.Time
	// IdempotencyKey deduplicates retried sends. A send replayed after a
	// timeout whose original attempt actually succeeded matches the
	// existing row instead of creating a duplicate.
	IdempotencyKey string `gorm:"size:36;uniqueIndex;not null"`
}

// CreatedAt is the time the message was sent, derived from the row's ID.
func (m *Message) CreatedAt() time.Time {
	return m.ID.ToTime()
}

// CanEdit reports whether requester may still edit the message at now.
// Advisory for cached rows; the server re-validates with its own clock.
func (m *Message) CanEdit(requester snowflake.ID, now time.Time) bool {
	return requester == m.SenderID &&
		m.DeletedAt == nil &&
		m.MediaURL == nil &&
		!now.After(m.CreatedAt().Add(EditWindow))
}

// CanDelete reports whether requester may still delete the message at now.
// Unlike CanEdit, media messages can be deleted.
func (m *Message) CanDelete(requester snowflake.ID, now time.Time) bool {
	return requester == m.SenderID &&
		m.DeletedAt == nil &&
		!now.After(m.CreatedAt().Add(EditWindow))
}

type Messages struct {
	db *gorm.DB
}

func NewMessages(db *gorm.DB) *Messages {
	return &Messages{db: db}
}

// Send creates a message from sender to receiver. Sends are deduplicated
// by idempotency key: if a message with the given key already exists the
// existing row is returned and created is false.
func (m *Messages) Send(sender, receiver snowflake.ID, content, mediaURL, mediaType *string, vanishMode bool, idempotencyKey string) (*Message, bool, error) {
	if sender == receiver {
		return nil, false, ErrSelfMessage
	}
	if (content == nil || *content == "") && mediaURL == nil {
		return nil, false, ErrEmptyMessage
	}
	var existing Message
	err := m.db.First(&existing, "idempotency_key = ?", idempotencyKey).Error
	switch {
	case err == nil:
		return &existing, false, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, false, err
	}
	msg := &Message{
		ID:             snowflake.Now(),
		SenderID:       sender,
		ReceiverID:     receiver,
		Content:        content,
		MediaURL:       mediaURL,
		MediaType:      mediaType,
		VanishMode:     vanishMode,
		IdempotencyKey: idempotencyKey,
	}
	if err := m.db.Create(msg).Error; err != nil {
		return nil, false, err
	}
	return msg, true, nil
}

// Edit replaces the text of a message. Only the sender may edit, only
// text messages, only within the edit window, and only if the message
// has not been deleted.
func (m *Messages) Edit(id, requester snowflake.ID, content string) (*Message, error) {
	var msg Message
	if err := m.db.First(&msg, id).Error; err != nil {
		return nil, err
	}
	switch {
	case msg.DeletedAt != nil:
		return nil, gorm.ErrRecordNotFound
	case msg.SenderID != requester:
		return nil, ErrNotSender
	case msg.MediaURL != nil:
		return nil, ErrNotEditable
	case time.Now().After(msg.CreatedAt().Add(EditWindow)):
		return nil, ErrWindowExpired
	}
	msg.Content = &content
	msg.Edited = true
	if err := m.db.Save(&msg).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

// Delete soft-deletes a message, leaving a tombstone. Only the sender
// may delete, only within the edit window.
func (m *Messages) Delete(id, requester snowflake.ID) (*Message, error) {
	var msg Message
	if err := m.db.First(&msg, id).Error; err != nil {
		return nil, err
	}
	switch {
	case msg.DeletedAt != nil:
		return nil, gorm.ErrRecordNotFound
	case msg.SenderID != requester:
		return nil, ErrNotSender
	case time.Now().After(msg.CreatedAt().Add(EditWindow)):
		return nil, ErrWindowExpired
	}
	now := time.Now()
	msg.DeletedAt = &now
	if err := m.db.Save(&msg).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

// MarkRead records that the receiver has seen the message. Marking is
// idempotent and independent of the edit window. If the message is in
// vanish mode, has been read, and chatClosed reports the reader closed
// the conversation, the row is hard deleted.
func (m *Messages) MarkRead(id, reader snowflake.ID, chatClosed bool) (*Message, error) {
	var msg Message
	if err := m.db.First(&msg, id).Error; err != nil {
		return nil, err
	}
	if msg.ReceiverID != reader {
		return nil, gorm.ErrRecordNotFound
	}
	if msg.ReadAt == nil {
		now := time.Now()
		msg.ReadAt = &now
		if err := m.db.Save(&msg).Error; err != nil {
			return nil, err
		}
	}
	if chatClosed && msg.VanishMode && msg.ReadAt != nil {
		if err := m.db.Delete(&Message{}, msg.ID).Error; err != nil {
			return nil, err
		}
	}
	return &msg, nil
}

// Conversation returns the most recent messages between two users in
// creation order. Vanished messages are gone; soft-deleted messages are
// returned as tombstones for the caller to render.
func (m *Messages) Conversation(a, b snowflake.ID, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 100
	}
	var messages []Message
	err := m.db.
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a).
		Order("id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	// reverse into creation order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
