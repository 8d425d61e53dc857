package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/socially-app/socially/internal/httpx"
	"github.com/socially-app/socially/models"
)

// StoriesIndex returns unexpired stories from the users the caller
// follows, plus their own.
func StoriesIndex(env *Env, w http.ResponseWriter, r *http.Request) error {
	self, err := env.authenticate(r)
	if err != nil {
		return err
	}
	following, err := models.NewFollows(env.DB).Following(self.ID)
	if err != nil {
		return err
	}
	stories, err := models.NewStories(env.DB).Feed(following, time.Now())
	if err != nil {
		return err
	}
	resp := make([]*story, 0, len(stories))
	for i := range stories {
		resp = append(resp, serializeStory(&stories[i]))
	}
	return success(w, map[string]any{"stories": resp})
}

// StoriesCreate uploads a story from multipart form data. The story
// expires exactly 24 hours after creation. Retried uploads are
// deduplicated by the idempotency key.
func StoriesCreate(env *Env, w http.ResponseWriter, r *http.Request) error {
	self, err := env.authenticate(r)
	if err != nil {
		return err
	}
	var params struct {
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
	stored, err := env.Media.Store(file, "stories")
	if err != nil {
		return err
	}
	s, err := models.NewStories(env.DB).Create(self.ID, stored.URL, stored.MediaType, params.IdempotencyKey)
	if err != nil {
		return mapError(err)
	}
	return created(w, map[string]any{"story": serializeStory(s)})
}
