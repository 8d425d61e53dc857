package api

import (
	"errors"
	"net/http"

	"github.com/socially-app/socially/internal/httpx"
	"github.com/socially-app/socially/models"
)

// PostsIndex returns the feed: recent posts from the users the caller
// follows, plus their own, newest first.
func PostsIndex(env *Env, w http.ResponseWriter, r *http.Request) error {
	self, err := env.authenticate(r)
	if err != nil {
		return err
	}
	var params struct {
		Limit int `schema:"limit"`
	}
	if err := httpx.Params(r, &params); err != nil {
		return err
	}
	following, err := models.NewFollows(env.DB).Following(self.ID)
	if err != nil {
		return err
	}
	posts, err := models.NewPosts(env.DB).Feed(following, params.Limit)
	if err != nil {
		return err
	}
	resp := make([]*post, 0, len(posts))
	for i := range posts {
		resp = append(resp, serializePost(&posts[i]))
	}
	return success(w, map[string]any{"posts": resp})
}

// PostsCreate uploads a post from multipart form data. Retried uploads
// are deduplicated by the idempotency key.
func PostsCreate(env *Env, w http.ResponseWriter, r *http.Request) error {
	self, err := env.authenticate(r)
	if err != nil {
		return err
	}
	var params struct {
		Caption        string `json:"caption" schema:"caption"`
		IdempotencyKey string `json:"idempotency_key" schema:"idempotency_key"`
	}
	if err := httpx.Params(r, &params); err != nil {
		return err
	}
	if params.IdempotencyKey == "" {
		return httpx.Error(http.StatusUnprocessableEntity, errors.New("idempotency_key is required"))
	}
	file, ok, err := formFile(r, "media")
	if err != nil {
		return err
	}
	if !ok {
		return httpx.Error(http.StatusUnprocessableEntity, errors.New("media is required"))
	}
	defer file.Close()
	stored, err := env.Media.Store(file, "posts")
	if err != nil {
		return err
	}
	p, err := models.NewPosts(env.DB).Create(self.ID, params.Caption, stored.URL, stored.MediaType, params.IdempotencyKey)
	if err != nil {
		return mapError(err)
	}
	return created(w, map[string]any{"post": serializePost(p)})
}

// LikesCreate likes a post. Liking an already-liked post changes nothing.
func LikesCreate(env *Env, w http.ResponseWriter, r *http.Request) error {
	self, err := env.authenticate(r)
	if err != nil {
		return err
	}
	id, err := urlID(r, "id")
	if err != nil {
		return err
	}
	p, err := models.NewPosts(env.DB).Like(id, self.ID)
	if err != nil {
		return mapError(err)
	}
	return success(w, map[string]any{"post": serializePost(p)})
}

// LikesDestroy removes the caller's like from a post.
func LikesDestroy(env *Env, w http.ResponseWriter, r *http.Request) error {
	self, err := env.authenticate(r)
	if err != nil {
		return err
	}
	id, err := urlID(r, "id")
	if err != nil {
		return err
	}
	p, err := models.NewPosts(env.DB).Unlike(id, self.ID)
	if err != nil {
		return mapError(err)
	}
	return success(w, map[string]any{"post": serializePost(p)})
}

// CommentsIndex returns a post's comments in creation order.
func CommentsIndex(env *Env, w http.ResponseWriter, r *http.Request) error {
	if _, err := env.authenticate(r); err != nil {
		return err
	}
	id, err := urlID(r, "id")
	if err != nil {
		return err
	}
	var params struct {
		Limit int `schema:"limit"`
	}
	if err := httpx.Params(r, &params); err != nil {
		return err
	}
	comments, err := models.NewPosts(env.DB).Comments(id, params.Limit)
	if err != nil {
		return err
	}
	resp := make([]*comment, 0, len(comments))
	for i := range comments {
		resp = append(resp, serializeComment(&comments[i]))
	}
	return success(w, map[string]any{"comments": resp})
}

// CommentsCreate adds a comment to a post. Retried comments are
// deduplicated by the idempotency key.
func CommentsCreate(env *Env, w http.ResponseWriter, r *http.Request) error {
	self, err := env.authenticate(r)
	if err != nil {
		return err
	}
	id, err := urlID(r, "id")
	if err != nil {
		return err
	}
	var params struct {
		Comment        string `json:"comment" schema:"comment"`
		IdempotencyKey string `json:"idempotency_key" schema:"idempotency_key"`
	}
	if err := httpx.Params(r, &params); err != nil {
		return err
	}
	if params.Comment == "" || params.IdempotencyKey == "" {
		return httpx.Error(http.StatusUnprocessableEntity, errors.New("comment and idempotency_key are required"))
	}
	c, err := models.NewPosts(env.DB).Comment(id, self.ID, params.Comment, params.IdempotencyKey)
	if err != nil {
		return mapError(err)
	}
	return created(w, map[string]any{"comment": serializeComment(c)})
}
