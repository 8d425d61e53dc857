package models

import (
	"testing"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestPendingActions(t *testing.T) {
	db := setupTestDB(t)

	type likePayload struct {
		IdempotencyKey string `json:"idempotency_key"`
		PostID         uint64 `json:"post_id"`
	}

	enqueue := func(t *testing.T, actions *PendingActions, actionType ActionType) *PendingAction {
		t.Helper()
		action, err := actions.Enqueue(actionType, likePayload{
			IdempotencyKey: uuid.NewString(),
			PostID:         1,
		})
		require.NoError(t, err)
		// snowflake ids only order across milliseconds
		time.Sleep(2 * time.Millisecond)
		return action
	}

	t.Run("enqueue serialises the payload", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()
		actions := NewPendingActions(tx)

		action, err := actions.Enqueue(ActionLikePost, likePayload{IdempotencyKey: "key-1", PostID: 42})
		require.NoError(err)
		require.Equal(ActionPending, action.Status)
		require.EqualValues(0, action.RetryCount)
		require.EqualValues(3, action.MaxRetries)

		var got likePayload
		require.NoError(json.Unmarshal(action.Payload, &got))
		require.Equal("key-1", got.IdempotencyKey)
		require.EqualValues(42, got.PostID)
	})

	t.Run("payload survives a reopen of the store", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()

		queued := enqueue(t, NewPendingActions(tx), ActionSendMessage)

		// a fresh store over the same database sees the same row
		pending, err := NewPendingActions(tx).ListPending()
		require.NoError(err)
		require.Len(pending, 1)
		require.Equal(queued.ID, pending[0].ID)
		require.Equal(queued.Payload, pending[0].Payload)
	})

	t.Run("list pending is fifo across action types", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()
		actions := NewPendingActions(tx)

		first := enqueue(t, actions, ActionSendMessage)
		second := enqueue(t, actions, ActionLikePost)
		third := enqueue(t, actions, ActionFollowUser)

		pending, err := actions.ListPending()
		require.NoError(err)
		require.Len(pending, 3)
		require.Equal(first.ID, pending[0].ID)
		require.Equal(second.ID, pending[1].ID)
		require.Equal(third.ID, pending[2].ID)
	})

	t.Run("mark failed increments once and requeues", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()
		actions := NewPendingActions(tx)

		action := enqueue(t, actions, ActionLikePost)
		require.NoError(actions.MarkInProgress(action.ID))

		exhausted, err := actions.MarkFailed(action.ID, "503 Service Unavailable")
		require.NoError(err)
		require.False(exhausted)

		var got PendingAction
		require.NoError(tx.First(&got, action.ID).Error)
		require.Equal(ActionPending, got.Status)
		require.EqualValues(1, got.RetryCount)
		require.Equal("503 Service Unavailable", got.ErrorMessage)
		require.NotNil(got.LastAttemptAt)
	})

	t.Run("exhausting the budget moves the row to failed", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()
		actions := NewPendingActions(tx)

		action := enqueue(t, actions, ActionLikePost)
		for i := 0; i < 2; i++ {
			exhausted, err := actions.MarkFailed(action.ID, "timeout")
			require.NoError(err)
			require.False(exhausted)
		}
		exhausted, err := actions.MarkFailed(action.ID, "timeout")
		require.NoError(err)
		require.True(exhausted)

		// failed rows are invisible to drain passes
		pending, err := actions.ListPending()
		require.NoError(err)
		require.Empty(pending)

		var got PendingAction
		require.NoError(tx.First(&got, action.ID).Error)
		require.Equal(ActionFailed, got.Status)
		require.EqualValues(3, got.RetryCount)
	})

	t.Run("mark succeeded deletes the row", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()
		actions := NewPendingActions(tx)

		action := enqueue(t, actions, ActionUploadPost)
		require.NoError(actions.MarkSucceeded(action.ID))

		err := tx.First(&PendingAction{}, action.ID).Error
		require.ErrorIs(err, gorm.ErrRecordNotFound)
	})

	t.Run("requeue recovers interrupted rows", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()
		actions := NewPendingActions(tx)

		action := enqueue(t, actions, ActionSendMessage)
		require.NoError(actions.MarkInProgress(action.ID))

		pending, err := actions.ListPending()
		require.NoError(err)
		require.Empty(pending)

		n, err := actions.Requeue()
		require.NoError(err)
		require.EqualValues(1, n)

		pending, err = actions.ListPending()
		require.NoError(err)
		require.Len(pending, 1)
		require.EqualValues(0, pending[0].RetryCount)
	})

	t.Run("purge removes only exhausted rows", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()
		actions := NewPendingActions(tx)

		healthy := enqueue(t, actions, ActionLikePost)
		doomed := enqueue(t, actions, ActionLikePost)
		for i := 0; i < 3; i++ {
			_, err := actions.MarkFailed(doomed.ID, "timeout")
			require.NoError(err)
		}

		n, err := actions.PurgeFailed()
		require.NoError(err)
		require.EqualValues(1, n)

		pending, err := actions.ListPending()
		require.NoError(err)
		require.Len(pending, 1)
		require.Equal(healthy.ID, pending[0].ID)
	})
}
