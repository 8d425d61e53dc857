// Package syncer drives convergence between the local pending-action
// queue and the remote mutation API.
package syncer

import (
	"context"
	"sync"

	"github.com/go-json-experiment/json"
	"github.com/socially-app/socially/gateway"
	"github.com/socially-app/socially/models"
	"golang.org/x/exp/slog"
)

// An Engine drains the pending-action queue through a Gateway. Drain
// passes are serialized by an internal lease so the same action is
// never dispatched twice concurrently.
type Engine struct {
	mu      sync.Mutex
	actions *models.PendingActions
	gateway gateway.Gateway
	log     *slog.Logger
	kick    chan struct{}
}

func New(actions *models.PendingActions, gw gateway.Gateway, log *slog.Logger) *Engine {
	return &Engine{
		actions: actions,
		gateway: gw,
		log:     log,
		kick:    make(chan struct{}, 1),
	}
}

// A Result summarises one drain pass.
type Result struct {
	// Applied actions were confirmed remotely and deleted from the queue.
	Applied int
	// Dropped actions were rejected permanently and deleted without retry.
	Dropped int
	// Requeued actions failed transiently and will be retried.
	Requeued int
	// Exhausted actions failed transiently and have no retry budget
	// left; they moved to failed and await an explicit purge.
	Exhausted int
}

// Retry reports whether any transient failure occurred, in which case
// the scheduler should retry the pass with backoff rather than waiting
// for the next period.
func (r Result) Retry() bool {
	return r.Requeued > 0 || r.Exhausted > 0
}

// Drain makes one pass over the queue in FIFO order. Outcome policy:
// applied actions are deleted, permanent rejections are dropped with the
// reason logged, transient failures increment the retry count. The pass
// checks for cancellation between actions, never mid-dispatch. Errors
// returned are storage errors only; gateway failures are recorded on
// the rows.
func (e *Engine) Drain(ctx context.Context) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var r Result

	// Rows left in progress belong to a pass that died before the
	// outcome was recorded. Passes are serialized, so at this point any
	// such row is stale: return it to pending for at-least-once delivery.
	requeued, err := e.actions.Requeue()
	if err != nil {
		return r, err
	}
	if requeued > 0 {
		e.log.Info("recovered interrupted actions", "count", requeued)
	}

	actions, err := e.actions.ListPending()
	if err != nil {
		return r, err
	}

	for i := range actions {
		action := &actions[i]
		select {
		case <-ctx.Done():
			return r, ctx.Err()
		default:
		}
		if err := e.actions.MarkInProgress(action.ID); err != nil {
			return r, err
		}
		res := gateway.Dispatch(ctx, e.gateway, action)
		switch res.Outcome {
		case gateway.Applied:
			if err := e.actions.MarkSucceeded(action.ID); err != nil {
				return r, err
			}
			r.Applied++
		case gateway.RejectedPermanently:
			e.log.Warn("action rejected permanently",
				"id", action.ID, "type", action.ActionType, "detail", res.Detail)
			if err := e.actions.Drop(action.ID); err != nil {
				return r, err
			}
			r.Dropped++
		case gateway.TransientFailure:
			exhausted, err := e.actions.MarkFailed(action.ID, res.Detail)
			if err != nil {
				return r, err
			}
			if exhausted {
				e.log.Warn("action exhausted retries",
					"id", action.ID, "type", action.ActionType, "detail", res.Detail)
				r.Exhausted++
			} else {
				r.Requeued++
			}
		}
	}

	if len(actions) > 0 {
		e.log.Info("drain pass complete",
			"applied", r.Applied, "dropped", r.Dropped,
			"requeued", r.Requeued, "exhausted", r.Exhausted)
	}
	return r, nil
}

// Submit attempts a mutation directly and falls back to the queue on
// transient failure, so the caller never blocks on an unreachable
// server. It reports queued=true when the action was enqueued for later
// delivery. Permanent rejections and storage errors are returned to the
// caller; there is nothing eventual about either.
func (e *Engine) Submit(ctx context.Context, actionType models.ActionType, payload any) (queued bool, err error) {
	action := &models.PendingAction{ActionType: actionType}
	raw, err := marshalPayload(payload)
	if err != nil {
		return false, err
	}
	action.Payload = raw

	res := gateway.Dispatch(ctx, e.gateway, action)
	switch res.Outcome {
	case gateway.Applied:
		return false, nil
	case gateway.RejectedPermanently:
		return false, &RejectedError{Detail: res.Detail}
	default:
		if _, err := e.actions.Enqueue(actionType, payload); err != nil {
			return false, err
		}
		e.Kick()
		return true, nil
	}
}

// Kick requests an immediate drain pass from the background processor.
// Safe to call from any goroutine; kicks coalesce.
func (e *Engine) Kick() {
	select {
	case e.kick <- struct{}{}:
	default:
	}
}

// A RejectedError reports a mutation the remote system rejected
// permanently. It is surfaced synchronously; queueing it would retry
// something that can never succeed.
type RejectedError struct {
	Detail string
}

func (e *RejectedError) Error() string {
	return "rejected: " + e.Detail
}

func marshalPayload(payload any) ([]byte, error) {
	return json.Marshal(payload)
}
