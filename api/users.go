package api

import (
	"errors"
	"net/http"

	"github.com/socially-app/socially/internal/httpx"
	"github.com/socially-app/socially/models"
)

// UsersShow returns a user's public profile.
func UsersShow(env *Env, w http.ResponseWriter, r *http.Request) error {
	if _, err := env.authenticate(r); err != nil {
		return err
	}
	id, err := urlID(r, "userID")
	if err != nil {
		return err
	}
	u, err := models.NewUsers(env.DB).Find(id)
	if err != nil {
		return mapError(err)
	}
	return success(w, map[string]any{"user": serializeUser(u)})
}

// UsersSearch finds users by username or display name.
func UsersSearch(env *Env, w http.ResponseWriter, r *http.Request) error {
	if _, err := env.authenticate(r); err != nil {
		return err
	}
	var params struct {
		Query string `schema:"q"`
		Limit int    `schema:"limit"`
	}
	if err := httpx.Params(r, &params); err != nil {
		return err
	}
	if params.Query == "" {
		return httpx.Error(http.StatusUnprocessableEntity, errors.New("q is required"))
	}
	users, err := models.NewUsers(env.DB).Search(params.Query, params.Limit)
	if err != nil {
		return err
	}
	resp := make([]*user, 0, len(users))
	for i := range users {
		resp = append(resp, serializeUser(&users[i]))
	}
	return success(w, map[string]any{"users": resp})
}

// ProfileUpdate changes the caller's display name and bio. Omitted
// fields are left untouched.
func ProfileUpdate(env *Env, w http.ResponseWriter, r *http.Request) error {
	self, err := env.authenticate(r)
	if err != nil {
		return err
	}
	var params struct {
		DisplayName *string `json:"display_name" schema:"display_name"`
		Bio         *string `json:"bio" schema:"bio"`
	}
	if err := httpx.Params(r, &params); err != nil {
		return err
	}
	u, err := models.NewUsers(env.DB).UpdateProfile(self.ID, params.DisplayName, params.Bio)
	if err != nil {
		return mapError(err)
	}
	return success(w, map[string]any{"user": serializeUser(u)})
}

// ProfileAvatar replaces the caller's avatar from multipart form data.
func ProfileAvatar(env *Env, w http.ResponseWriter, r *http.Request) error {
	self, err := env.authenticate(r)
	if err != nil {
		return err
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return httpx.Error(http.StatusBadRequest, err)
	}
	file, ok, err := formFile(r, "media")
	if err != nil {
		return err
	}
	if !ok {
		return httpx.Error(http.StatusUnprocessableEntity, errors.New("media is required"))
	}
	defer file.Close()
	stored, err := env.Media.Store(file, "avatars")
	if err != nil {
		return err
	}
	u, err := models.NewUsers(env.DB).SetAvatar(self.ID, stored.URL)
	if err != nil {
		return mapError(err)
	}
	return success(w, map[string]any{"user": serializeUser(u)})
}
