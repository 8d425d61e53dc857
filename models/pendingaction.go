package models

import (
	"time"

	"github.com/go-json-experiment/json"
	"github.com/socially-app/socially/internal/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// ActionType identifies the remote mutation a PendingAction replays.
type ActionType string

const (
	ActionSendMessage ActionType = "send_message"
	ActionLikePost    ActionType = "like_post"
	ActionCommentPost ActionType = "comment_post"
	ActionFollowUser  ActionType = "follow_user"
	ActionUploadPost  ActionType = "upload_post"
	ActionUploadStory ActionType = "upload_story"
)

func (ActionType) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "mysql", "postgres":
		return "enum('send_message', 'like_post', 'comment_post', 'follow_user', 'upload_post', 'upload_story')"
	case "sqlite":
		return "TEXT"
	default:
		return ""
	}
}

// ActionStatus is the queue state of a PendingAction. The only
// transitions are pending to in_progress, and in_progress back to
// pending (requeued) or to failed. There is no succeeded state; a row
// is deleted outright on confirmed success.
type ActionStatus string

const (
	ActionPending    ActionStatus = "pending"
	ActionInProgress ActionStatus = "in_progress"
	ActionFailed     ActionStatus = "failed"
)

func (ActionStatus) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "mysql", "postgres":
		return "enum('pending', 'in_progress', 'failed')"
	case "sqlite":
		return "TEXT"
	default:
		return ""
	}
}

// A PendingAction is a queued mutation awaiting application to the
// remote system. Rows are created when a direct call could not be
// confirmed, mutated only by the sync engine, and deleted on success or
// by an explicit purge of failed rows. The snowflake primary key
// encodes creation time, so ordering by id gives FIFO fairness across
// action types.
type PendingAction struct {
	ID        snowflake.ID `gorm:"primarykey;autoIncrement:false"`
	UpdatedAt time.Time
	// ActionType selects which gateway call replays this action.
	ActionType ActionType `gorm:"not null"`
	// Payload is the serialized parameters for the action, including a
	// client-generated idempotency key.
	Payload []byte `gorm:"type:text;not null"`
	// RetryCount is the number of failed dispatch attempts. It
	// increments exactly once per transient failure.
	RetryCount uint32 `gorm:"not null;default:0"`
	// MaxRetries is the attempt budget; once RetryCount reaches it the
	// row moves to failed and is excluded from drain passes.
	MaxRetries uint32 `gorm:"not null;default:3"`
	Status     ActionStatus `gorm:"not null;default:'pending';index"`
	// ErrorMessage is the detail of the last failed attempt.
	ErrorMessage string `gorm:"type:text"`
	// LastAttemptAt is the time of the last dispatch attempt.
	LastAttemptAt *time.Time
}

// CreatedAt is the time the action was enqueued, derived from the row's ID.
func (a *PendingAction) CreatedAt() time.Time {
	return a.ID.ToTime()
}

// PendingActions is the durable store of queued mutations. It never
// touches the network; dispatching is the sync engine's job.
type PendingActions struct {
	db *gorm.DB
}

func NewPendingActions(db *gorm.DB) *PendingActions {
	return &PendingActions{db: db}
}

// Enqueue serializes payload and appends it to the queue. It fails only
// on storage errors, which are fatal and surfaced to the caller.
func (p *PendingActions) Enqueue(actionType ActionType, payload any) (*PendingAction, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	action := &PendingAction{
		ID:         snowflake.Now(),
		ActionType: actionType,
		Payload:    raw,
		MaxRetries: 3,
		Status:     ActionPending,
	}
	if err := p.db.Create(action).Error; err != nil {
		return nil, err
	}
	return action, nil
}

// ListPending returns the pending actions in creation order. Failed and
// in-progress rows are excluded.
func (p *PendingActions) ListPending() ([]PendingAction, error) {
	var actions []PendingAction
	err := p.db.
		Where("status = ?", ActionPending).
		Order("id ASC").
		Find(&actions).Error
	return actions, err
}

// MarkInProgress records that a dispatch attempt for the action has begun.
func (p *PendingActions) MarkInProgress(id snowflake.ID) error {
	now := time.Now()
	return p.db.Model(&PendingAction{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":          ActionInProgress,
		"last_attempt_at": now,
	}).Error
}

// MarkSucceeded deletes the action; success leaves no resting state.
func (p *PendingActions) MarkSucceeded(id snowflake.ID) error {
	return p.db.Delete(&PendingAction{}, id).Error
}

// MarkFailed records a transiently failed attempt. The retry count
// increments once; when it reaches the budget the row moves to failed,
// otherwise it is requeued as pending. Reports whether the budget is
// now exhausted.
func (p *PendingActions) MarkFailed(id snowflake.ID, detail string) (bool, error) {
	var exhausted bool
	err := p.db.Transaction(func(tx *gorm.DB) error {
		var action PendingAction
		if err := tx.First(&action, id).Error; err != nil {
			return err
		}
		action.RetryCount++
		action.ErrorMessage = detail
		now := time.Now()
		action.LastAttemptAt = &now
		if action.RetryCount >= action.MaxRetries {
			action.Status = ActionFailed
			exhausted = true
		} else {
			action.Status = ActionPending
		}
		return tx.Save(&action).Error
	})
	return exhausted, err
}

// Drop deletes the action without applying it. Used for permanently
// rejected actions that can never succeed.
func (p *PendingActions) Drop(id snowflake.ID) error {
	return p.db.Delete(&PendingAction{}, id).Error
}

// Requeue returns in-progress rows to pending. A row left in progress
// means a previous pass was interrupted between marking and recording
// the outcome; it must be dispatched again, so every gateway call has
// at-least-once semantics and carries an idempotency key.
func (p *PendingActions) Requeue() (int64, error) {
	res := p.db.Model(&PendingAction{}).
		Where("status = ?", ActionInProgress).
		Update("status", ActionPending)
	return res.RowsAffected, res.Error
}

// PurgeFailed deletes rows that have exhausted their retry budget.
// Maintenance operation; never run automatically.
func (p *PendingActions) PurgeFailed() (int64, error) {
	res := p.db.
		Where("status = ? AND retry_count >= max_retries", ActionFailed).
		Delete(&PendingAction{})
	return res.RowsAffected, res.Error
}
