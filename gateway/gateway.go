// Package gateway abstracts the remote mutation API that queued actions
// replay against. Implementations classify every failure as permanent
// or transient so the sync engine never retries what can never succeed.
package gateway

import (
	"context"
	"fmt"

	"github.com/go-json-experiment/json"
	"github.com/socially-app/socially/internal/snowflake"
	"github.com/socially-app/socially/models"
)

// Outcome classifies the result of dispatching a mutation.
type Outcome int

const (
	// Applied means the remote system confirmed the mutation.
	Applied Outcome = iota
	// RejectedPermanently means the mutation can never succeed, for
	// example a validation or ownership error. It must not be retried.
	RejectedPermanently
	// TransientFailure means the attempt failed for a reason that may
	// clear, such as a network error or server outage. Eligible for retry.
	TransientFailure
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case RejectedPermanently:
		return "rejected permanently"
	case TransientFailure:
		return "transient failure"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// A Result couples an Outcome with the detail of the attempt.
type Result struct {
	Outcome Outcome
	// Detail describes the failure, empty when the outcome is Applied.
	Detail string
}

func applied() Result {
	return Result{Outcome: Applied}
}

func rejected(format string, args ...any) Result {
	return Result{Outcome: RejectedPermanently, Detail: fmt.Sprintf(format, args...)}
}

func transient(format string, args ...any) Result {
	return Result{Outcome: TransientFailure, Detail: fmt.Sprintf(format, args...)}
}

// SendMessagePayload are the parameters for a queued message send.
// Every payload carries a client-generated IdempotencyKey so a send
// replayed after a timeout is not double-delivered.
type SendMessagePayload struct {
	IdempotencyKey string       `json:"idempotency_key"`
	ReceiverID     snowflake.ID `json:"receiver_id"`
	Content        *string      `json:"content,omitempty"`
	// MediaPath is a local file holding the media to upload, nil for
	// text-only messages.
	MediaPath  *string `json:"media_path,omitempty"`
	MediaType  *string `json:"media_type,omitempty"`
	VanishMode bool    `json:"vanish_mode"`
}

// LikePostPayload are the parameters for a queued like.
type LikePostPayload struct {
	IdempotencyKey string       `json:"idempotency_key"`
	PostID         snowflake.ID `json:"post_id"`
}

// CommentPostPayload are the parameters for a queued comment.
type CommentPostPayload struct {
	IdempotencyKey string       `json:"idempotency_key"`
	PostID         snowflake.ID `json:"post_id"`
	Content        string       `json:"content"`
}

// FollowUserPayload are the parameters for a queued follow request.
type FollowUserPayload struct {
	IdempotencyKey string       `json:"idempotency_key"`
	TargetID       snowflake.ID `json:"target_id"`
}

// UploadPostPayload are the parameters for a queued post upload.
type UploadPostPayload struct {
	IdempotencyKey string  `json:"idempotency_key"`
	Caption        string  `json:"caption"`
	MediaPath      string  `json:"media_path"`
	MediaType      *string `json:"media_type,omitempty"`
}

// UploadStoryPayload are the parameters for a queued story upload.
type UploadStoryPayload struct {
	IdempotencyKey string  `json:"idempotency_key"`
	MediaPath      string  `json:"media_path"`
	MediaType      *string `json:"media_type,omitempty"`
}

// A Gateway applies each kind of queued mutation to the remote system.
// Calls block on network I/O bounded by a per-call timeout and never
// panic; every outcome is reported through the Result.
type Gateway interface {
	SendMessage(ctx context.Context, p SendMessagePayload) Result
	LikePost(ctx context.Context, p LikePostPayload) Result
	CommentPost(ctx context.Context, p CommentPostPayload) Result
	FollowUser(ctx context.Context, p FollowUserPayload) Result
	UploadPost(ctx context.Context, p UploadPostPayload) Result
	UploadStory(ctx context.Context, p UploadStoryPayload) Result
}

// Dispatch decodes the action's payload and applies it through g.
// A payload that cannot be decoded, or an action type this build does
// not know, is rejected permanently; retrying cannot fix either.
func Dispatch(ctx context.Context, g Gateway, action *models.PendingAction) Result {
	switch action.ActionType {
	case models.ActionSendMessage:
		var p SendMessagePayload
		if err := json.Unmarshal(action.Payload, &p); err != nil {
			return rejected("decode %s payload: %v", action.ActionType, err)
		}
		return g.SendMessage(ctx, p)
	case models.ActionLikePost:
		var p LikePostPayload
		if err := json.Unmarshal(action.Payload, &p); err != nil {
			return rejected("decode %s payload: %v", action.ActionType, err)
		}
		return g.LikePost(ctx, p)
	case models.ActionCommentPost:
		var p CommentPostPayload
		if err := json.Unmarshal(action.Payload, &p); err != nil {
			return rejected("decode %s payload: %v", action.ActionType, err)
		}
		return g.CommentPost(ctx, p)
	case models.ActionFollowUser:
		var p FollowUserPayload
		if err := json.Unmarshal(action.Payload, &p); err != nil {
			return rejected("decode %s payload: %v", action.ActionType, err)
		}
		return g.FollowUser(ctx, p)
	case models.ActionUploadPost:
		var p UploadPostPayload
		if err := json.Unmarshal(action.Payload, &p); err != nil {
			return rejected("decode %s payload: %v", action.ActionType, err)
		}
		return g.UploadPost(ctx, p)
	case models.ActionUploadStory:
		var p UploadStoryPayload
		if err := json.Unmarshal(action.Payload, &p); err != nil {
			return rejected("decode %s payload: %v", action.ActionType, err)
		}
		return g.UploadStory(ctx, p)
	default:
		return rejected("unknown action type %q", action.ActionType)
	}
}
