package syncer

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/socially-app/socially/gateway"
	"github.com/socially-app/socially/models"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fakeGateway returns scripted results and records every call. When the
// script runs out it keeps returning the last result.
type fakeGateway struct {
	mu     sync.Mutex
	script []gateway.Result
	calls  []string

	// hook runs inside each call, before the result is returned.
	hook func()
}

func (g *fakeGateway) next(call string) gateway.Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.hook != nil {
		g.hook()
	}
	g.calls = append(g.calls, call)
	if len(g.script) == 0 {
		return gateway.Result{Outcome: gateway.Applied}
	}
	res := g.script[0]
	if len(g.script) > 1 {
		g.script = g.script[1:]
	}
	return res
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func (g *fakeGateway) SendMessage(ctx context.Context, p gateway.SendMessagePayload) gateway.Result {
	return g.next("send_message:" + p.IdempotencyKey)
}

func (g *fakeGateway) LikePost(ctx context.Context, p gateway.LikePostPayload) gateway.Result {
	return g.next("like_post:" + p.IdempotencyKey)
}

func (g *fakeGateway) CommentPost(ctx context.Context, p gateway.CommentPostPayload) gateway.Result {
	return g.next("comment_post:" + p.IdempotencyKey)
}

func (g *fakeGateway) FollowUser(ctx context.Context, p gateway.FollowUserPayload) gateway.Result {
	return g.next("follow_user:" + p.IdempotencyKey)
}

func (g *fakeGateway) UploadPost(ctx context.Context, p gateway.UploadPostPayload) gateway.Result {
	return g.next("upload_post:" + p.IdempotencyKey)
}

func (g *fakeGateway) UploadStory(ctx context.Context, p gateway.UploadStoryPayload) gateway.Result {
	return g.next("upload_story:" + p.IdempotencyKey)
}

func setupTestEngine(t *testing.T, gw *fakeGateway) (*Engine, *models.PendingActions) {
	t.Helper()
	require := require.New(t)
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	require.NoError(err)
	require.NoError(db.AutoMigrate(&models.PendingAction{}))

	actions := models.NewPendingActions(db)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(actions, gw, log), actions
}

func enqueueLike(t *testing.T, actions *models.PendingActions, key string) *models.PendingAction {
	t.Helper()
	action, err := actions.Enqueue(models.ActionLikePost, gateway.LikePostPayload{
		IdempotencyKey: key,
		PostID:         1,
	})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	return action
}

func TestDrain(t *testing.T) {
	t.Run("applies in fifo order and empties the queue", func(t *testing.T) {
		require := require.New(t)
		gw := &fakeGateway{}
		engine, actions := setupTestEngine(t, gw)

		enqueueLike(t, actions, "key-1")
		enqueueLike(t, actions, "key-2")
		enqueueLike(t, actions, "key-3")

		result, err := engine.Drain(context.Background())
		require.NoError(err)
		require.Equal(Result{Applied: 3}, result)
		require.False(result.Retry())
		require.Equal([]string{"like_post:key-1", "like_post:key-2", "like_post:key-3"}, gw.calls)

		pending, err := actions.ListPending()
		require.NoError(err)
		require.Empty(pending)
	})

	t.Run("transient failure requeues then a later pass applies", func(t *testing.T) {
		require := require.New(t)
		gw := &fakeGateway{script: []gateway.Result{
			{Outcome: gateway.TransientFailure, Detail: "503 Service Unavailable"},
			{Outcome: gateway.Applied},
		}}
		engine, actions := setupTestEngine(t, gw)
		action := enqueueLike(t, actions, "key-1")

		result, err := engine.Drain(context.Background())
		require.NoError(err)
		require.Equal(Result{Requeued: 1}, result)
		require.True(result.Retry())

		pending, err := actions.ListPending()
		require.NoError(err)
		require.Len(pending, 1)
		require.Equal(action.ID, pending[0].ID)
		require.EqualValues(1, pending[0].RetryCount)
		require.Equal("503 Service Unavailable", pending[0].ErrorMessage)

		result, err = engine.Drain(context.Background())
		require.NoError(err)
		require.Equal(Result{Applied: 1}, result)

		pending, err = actions.ListPending()
		require.NoError(err)
		require.Empty(pending)
	})

	t.Run("permanent rejection drops without retry", func(t *testing.T) {
		require := require.New(t)
		gw := &fakeGateway{script: []gateway.Result{
			{Outcome: gateway.RejectedPermanently, Detail: "422 Unprocessable Entity"},
		}}
		engine, actions := setupTestEngine(t, gw)
		enqueueLike(t, actions, "key-1")

		result, err := engine.Drain(context.Background())
		require.NoError(err)
		require.Equal(Result{Dropped: 1}, result)
		require.False(result.Retry())
		require.Equal(1, gw.callCount())

		pending, err := actions.ListPending()
		require.NoError(err)
		require.Empty(pending)
	})

	t.Run("exhausted budget parks the action", func(t *testing.T) {
		require := require.New(t)
		gw := &fakeGateway{script: []gateway.Result{
			{Outcome: gateway.TransientFailure, Detail: "timeout"},
		}}
		engine, actions := setupTestEngine(t, gw)
		enqueueLike(t, actions, "key-1")

		for i := 0; i < 2; i++ {
			result, err := engine.Drain(context.Background())
			require.NoError(err)
			require.Equal(Result{Requeued: 1}, result)
		}
		result, err := engine.Drain(context.Background())
		require.NoError(err)
		require.Equal(Result{Exhausted: 1}, result)
		require.True(result.Retry())

		// parked actions are never dispatched again
		result, err = engine.Drain(context.Background())
		require.NoError(err)
		require.Equal(Result{}, result)
		require.Equal(3, gw.callCount())
	})

	t.Run("recovers actions left in progress", func(t *testing.T) {
		require := require.New(t)
		gw := &fakeGateway{}
		engine, actions := setupTestEngine(t, gw)

		// simulate a pass that died between marking and the outcome
		action := enqueueLike(t, actions, "key-1")
		require.NoError(actions.MarkInProgress(action.ID))

		result, err := engine.Drain(context.Background())
		require.NoError(err)
		require.Equal(Result{Applied: 1}, result)
		require.Equal([]string{"like_post:key-1"}, gw.calls)
	})

	t.Run("undecodable payload is rejected not retried", func(t *testing.T) {
		require := require.New(t)
		gw := &fakeGateway{}
		engine, actions := setupTestEngine(t, gw)

		_, err := actions.Enqueue("telegram", gateway.LikePostPayload{IdempotencyKey: "key-1"})
		require.NoError(err)

		result, err := engine.Drain(context.Background())
		require.NoError(err)
		require.Equal(Result{Dropped: 1}, result)
		require.Zero(gw.callCount())
	})

	t.Run("cancellation stops between actions", func(t *testing.T) {
		require := require.New(t)
		ctx, cancel := context.WithCancel(context.Background())
		gw := &fakeGateway{hook: cancel}
		engine, actions := setupTestEngine(t, gw)

		enqueueLike(t, actions, "key-1")
		enqueueLike(t, actions, "key-2")

		result, err := engine.Drain(ctx)
		require.ErrorIs(err, context.Canceled)
		require.Equal(Result{Applied: 1}, result)
		require.Equal(1, gw.callCount())

		// the undispatched action is still pending
		pending, err := actions.ListPending()
		require.NoError(err)
		require.Len(pending, 1)
		require.EqualValues(0, pending[0].RetryCount)
	})
}

func TestSubmit(t *testing.T) {
	payload := func() gateway.LikePostPayload {
		return gateway.LikePostPayload{IdempotencyKey: uuid.NewString(), PostID: 1}
	}

	t.Run("applies directly when the server is reachable", func(t *testing.T) {
		require := require.New(t)
		gw := &fakeGateway{}
		engine, actions := setupTestEngine(t, gw)

		queued, err := engine.Submit(context.Background(), models.ActionLikePost, payload())
		require.NoError(err)
		require.False(queued)

		pending, err := actions.ListPending()
		require.NoError(err)
		require.Empty(pending)
	})

	t.Run("falls back to the queue on transient failure", func(t *testing.T) {
		require := require.New(t)
		gw := &fakeGateway{script: []gateway.Result{
			{Outcome: gateway.TransientFailure, Detail: "connection refused"},
		}}
		engine, actions := setupTestEngine(t, gw)

		queued, err := engine.Submit(context.Background(), models.ActionLikePost, payload())
		require.NoError(err)
		require.True(queued)

		pending, err := actions.ListPending()
		require.NoError(err)
		require.Len(pending, 1)
		require.Equal(models.ActionLikePost, pending[0].ActionType)
	})

	t.Run("surfaces permanent rejections synchronously", func(t *testing.T) {
		require := require.New(t)
		gw := &fakeGateway{script: []gateway.Result{
			{Outcome: gateway.RejectedPermanently, Detail: "404 Not Found"},
		}}
		engine, actions := setupTestEngine(t, gw)

		queued, err := engine.Submit(context.Background(), models.ActionLikePost, payload())
		require.False(queued)
		var rejected *RejectedError
		require.ErrorAs(err, &rejected)
		require.Equal("404 Not Found", rejected.Detail)

		// nothing to retry
		pending, err := actions.ListPending()
		require.NoError(err)
		require.Empty(pending)
	})
}

func TestProcessor(t *testing.T) {
	t.Run("kick triggers an immediate pass", func(t *testing.T) {
		require := require.New(t)
		gw := &fakeGateway{}
		engine, actions := setupTestEngine(t, gw)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		done := make(chan error, 1)
		go func() {
			done <- NewProcessor(engine, Options{
				Interval: time.Hour,
				Jitter:   time.Nanosecond,
			})(ctx)
		}()

		// wait out the startup pass, then enqueue and kick
		require.Eventually(func() bool { return gw.callCount() == 0 }, time.Second, 10*time.Millisecond)
		enqueueLike(t, actions, "key-1")
		engine.Kick()

		require.Eventually(func() bool {
			pending, err := actions.ListPending()
			return err == nil && len(pending) == 0 && gw.callCount() == 1
		}, 5*time.Second, 10*time.Millisecond)

		cancel()
		require.NoError(<-done)
	})

	t.Run("passes are skipped while offline", func(t *testing.T) {
		require := require.New(t)
		gw := &fakeGateway{}
		engine, actions := setupTestEngine(t, gw)
		enqueueLike(t, actions, "key-1")

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		err := NewProcessor(engine, Options{
			Interval:    time.Hour,
			Jitter:      time.Nanosecond,
			BackoffBase: 10 * time.Millisecond,
			Online:      func(ctx context.Context) bool { return false },
		})(ctx)
		require.NoError(err)
		require.Zero(gw.callCount())
	})
}

func TestBackoff(t *testing.T) {
	require := require.New(t)
	base, cap := 30*time.Second, 10*time.Minute

	require.Equal(30*time.Second, backoff(base, cap, 1))
	require.Equal(time.Minute, backoff(base, cap, 2))
	require.Equal(2*time.Minute, backoff(base, cap, 3))
	require.Equal(4*time.Minute, backoff(base, cap, 4))
	require.Equal(8*time.Minute, backoff(base, cap, 5))
	require.Equal(10*time.Minute, backoff(base, cap, 6))
	require.Equal(10*time.Minute, backoff(base, cap, 60))
}
