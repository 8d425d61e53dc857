package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/carlmjohnson/requests"
)

// DefaultTimeout bounds each gateway call. A dispatch that exceeds it
// is reported as a transient failure, never left hanging.
const DefaultTimeout = 30 * time.Second

// Client is a Gateway that talks to the socially REST API.
type Client struct {
	base   string
	token  string
	client *http.Client
}

// NewClient returns a Client for the API at base, authenticating with
// the given bearer token.
func NewClient(base, token string) *Client {
	return &Client{
		base:  base,
		token: token,
		client: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

func (c *Client) SendMessage(ctx context.Context, p SendMessagePayload) Result {
	fields := map[string]string{
		"receiver_id":     strconv.FormatUint(uint64(p.ReceiverID), 10),
		"vanish_mode":     strconv.FormatBool(p.VanishMode),
		"idempotency_key": p.IdempotencyKey,
	}
	if p.Content != nil {
		fields["message"] = *p.Content
	}
	body, contentType, res := multipartBody(fields, p.MediaPath)
	if res != nil {
		return *res
	}
	return c.do(ctx, c.builder("/api/messages").
		BodyBytes(body).
		ContentType(contentType).
		Method(http.MethodPost))
}

func (c *Client) LikePost(ctx context.Context, p LikePostPayload) Result {
	return c.do(ctx, c.builder(fmt.Sprintf("/api/posts/%d/likes", p.PostID)).
		BodyJSON(map[string]any{
			"idempotency_key": p.IdempotencyKey,
		}).
		Method(http.MethodPost))
}

func (c *Client) CommentPost(ctx context.Context, p CommentPostPayload) Result {
	return c.do(ctx, c.builder(fmt.Sprintf("/api/posts/%d/comments", p.PostID)).
		BodyJSON(map[string]any{
			"comment":         p.Content,
			"idempotency_key": p.IdempotencyKey,
		}).
		Method(http.MethodPost))
}

func (c *Client) FollowUser(ctx context.Context, p FollowUserPayload) Result {
	return c.do(ctx, c.builder("/api/follows/request").
		BodyJSON(map[string]any{
			"target_id":       uint64(p.TargetID),
			"idempotency_key": p.IdempotencyKey,
		}).
		Method(http.MethodPost))
}

func (c *Client) UploadPost(ctx context.Context, p UploadPostPayload) Result {
	body, contentType, res := multipartBody(map[string]string{
		"caption":         p.Caption,
		"idempotency_key": p.IdempotencyKey,
	}, &p.MediaPath)
	if res != nil {
		return *res
	}
	return c.do(ctx, c.builder("/api/posts").
		BodyBytes(body).
		ContentType(contentType).
		Method(http.MethodPost))
}

func (c *Client) UploadStory(ctx context.Context, p UploadStoryPayload) Result {
	body, contentType, res := multipartBody(map[string]string{
		"idempotency_key": p.IdempotencyKey,
	}, &p.MediaPath)
	if res != nil {
		return *res
	}
	return c.do(ctx, c.builder("/api/stories").
		BodyBytes(body).
		ContentType(contentType).
		Method(http.MethodPost))
}

func (c *Client) builder(path string) *requests.Builder {
	return requests.URL(c.base).
		Path(path).
		Bearer(c.token).
		Client(c.client)
}

// do executes the request and classifies the result. Transport errors
// and timeouts are transient; a response is classified by status code.
func (c *Client) do(ctx context.Context, b *requests.Builder) Result {
	var status int
	err := b.
		AddValidator(nil).
		Handle(func(res *http.Response) error {
			status = res.StatusCode
			io.Copy(io.Discard, res.Body)
			return nil
		}).
		Fetch(ctx)
	if err != nil {
		return transient("%v", err)
	}
	return classify(status)
}

// classify maps a response status to an outcome. 2xx is applied. 4xx is
// a permanent rejection, except 408 and 429 which may clear on retry.
// Everything else, including all 5xx, is transient.
func classify(status int) Result {
	switch {
	case status >= 200 && status < 300:
		return applied()
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests:
		return transient("status %d", status)
	case status >= 400 && status < 500:
		return rejected("status %d", status)
	default:
		return transient("status %d", status)
	}
}

// multipartBody encodes fields plus an optional media file. A missing
// media file is a permanent rejection; re-dispatching cannot bring the
// file back.
func multipartBody(fields map[string]string, mediaPath *string) ([]byte, string, *Result) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			res := rejected("encode field %s: %v", k, err)
			return nil, "", &res
		}
	}
	if mediaPath != nil {
		f, err := os.Open(*mediaPath)
		if err != nil {
			res := rejected("media file: %v", err)
			return nil, "", &res
		}
		defer f.Close()
		part, err := w.CreateFormFile("media", filepath.Base(*mediaPath))
		if err != nil {
			res := rejected("encode media: %v", err)
			return nil, "", &res
		}
		if _, err := io.Copy(part, f); err != nil {
			res := transient("read media: %v", err)
			return nil, "", &res
		}
	}
	if err := w.Close(); err != nil {
		res := rejected("encode body: %v", err)
		return nil, "", &res
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

var _ Gateway = (*Client)(nil)
