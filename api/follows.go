package api

import (
	"net/http"

	"github.com/socially-app/socially/internal/httpx"
	"github.com/socially-app/socially/internal/snowflake"
	"github.com/socially-app/socially/models"
)

// FollowsCreate requests to follow a user. Requesting an existing edge
// again changes nothing, so queued retries are safe.
func FollowsCreate(env *Env, w http.ResponseWriter, r *http.Request) error {
	self, err := env.authenticate(r)
	if err != nil {
		return err
	}
	var params struct {
		TargetID snowflake.ID `json:"target_id" schema:"target_id"`
	}
	if err := httpx.Params(r, &params); err != nil {
		return err
	}
	if _, err := models.NewUsers(env.DB).Find(params.TargetID); err != nil {
		return mapError(err)
	}
	f, err := models.NewFollows(env.DB).Request(self.ID, params.TargetID)
	if err != nil {
		return mapError(err)
	}
	return created(w, map[string]any{"follow": serializeFollow(f)})
}

// FollowsAccept accepts a pending follow request from the user in the URL.
func FollowsAccept(env *Env, w http.ResponseWriter, r *http.Request) error {
	self, err := env.authenticate(r)
	if err != nil {
		return err
	}
	userID, err := urlID(r, "userID")
	if err != nil {
		return err
	}
	f, err := models.NewFollows(env.DB).Accept(userID, self.ID)
	if err != nil {
		return mapError(err)
	}
	return success(w, map[string]any{"follow": serializeFollow(f)})
}

// FollowsReject declines a pending follow request from the user in the URL.
func FollowsReject(env *Env, w http.ResponseWriter, r *http.Request) error {
	self, err := env.authenticate(r)
	if err != nil {
		return err
	}
	userID, err := urlID(r, "userID")
	if err != nil {
		return err
	}
	if err := models.NewFollows(env.DB).Reject(userID, self.ID); err != nil {
		return mapError(err)
	}
	return success(w, map[string]any{"message": "request rejected"})
}

// FollowsDestroy unfollows the user in the URL.
func FollowsDestroy(env *Env, w http.ResponseWriter, r *http.Request) error {
	self, err := env.authenticate(r)
	if err != nil {
		return err
	}
	userID, err := urlID(r, "userID")
	if err != nil {
		return err
	}
	if err := models.NewFollows(env.DB).Unfollow(self.ID, userID); err != nil {
		return mapError(err)
	}
	return success(w, map[string]any{"message": "unfollowed"})
}

// FollowersIndex lists the caller's followers.
func FollowersIndex(env *Env, w http.ResponseWriter, r *http.Request) error {
	self, err := env.authenticate(r)
	if err != nil {
		return err
	}
	followers, err := models.NewFollows(env.DB).Followers(self.ID)
	if err != nil {
		return err
	}
	resp := make([]*user, 0, len(followers))
	for i := range followers {
		resp = append(resp, serializeUser(&followers[i]))
	}
	return success(w, map[string]any{"followers": resp})
}

// FollowingIndex lists the users the caller follows.
func FollowingIndex(env *Env, w http.ResponseWriter, r *http.Request) error {
	self, err := env.authenticate(r)
	if err != nil {
		return err
	}
	following, err := models.NewFollows(env.DB).FollowingUsers(self.ID)
	if err != nil {
		return err
	}
	resp := make([]*user, 0, len(following))
	for i := range following {
		resp = append(resp, serializeUser(&following[i]))
	}
	return success(w, map[string]any{"following": resp})
}

// FollowRequestsIndex lists the callers awaiting the caller's acceptance.
func FollowRequestsIndex(env *Env, w http.ResponseWriter, r *http.Request) error {
	self, err := env.authenticate(r)
	if err != nil {
		return err
	}
	requests, err := models.NewFollows(env.DB).PendingRequests(self.ID)
	if err != nil {
		return err
	}
	resp := make([]*user, 0, len(requests))
	for i := range requests {
		resp = append(resp, serializeUser(&requests[i]))
	}
	return success(w, map[string]any{"requests": resp})
}
