package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/socially-app/socially/internal/httpx"
	"github.com/socially-app/socially/internal/snowflake"
	"github.com/socially-app/socially/models"
)

// SignupCreate registers a user and opens their first session.
func SignupCreate(env *Env, w http.ResponseWriter, r *http.Request) error {
	var params struct {
		Username string `json:"username" schema:"username"`
		Email    string `json:"email" schema:"email"`
		Password string `json:"password" schema:"password"`
	}
	if err := httpx.Params(r, &params); err != nil {
		return err
	}
	if params.Username == "" || params.Email == "" || len(params.Password) < 8 {
		return httpx.Error(http.StatusUnprocessableEntity, errors.New("username, email and a password of at least 8 characters are required"))
	}
	user, err := models.NewUsers(env.DB).Create(params.Username, params.Email, params.Password)
	if err != nil {
		return httpx.Error(http.StatusUnprocessableEntity, errors.New("username or email already taken"))
	}
	return openSession(env, w, user, http.StatusCreated)
}

// LoginCreate authenticates a user and opens a session.
func LoginCreate(env *Env, w http.ResponseWriter, r *http.Request) error {
	var params struct {
		Email    string `json:"email" schema:"email"`
		Password string `json:"password" schema:"password"`
	}
	if err := httpx.Params(r, &params); err != nil {
		return err
	}
	user, err := models.NewUsers(env.DB).Authenticate(params.Email, params.Password)
	if err != nil {
		return httpx.Error(http.StatusUnauthorized, errors.New("invalid email or password"))
	}
	return openSession(env, w, user, http.StatusOK)
}

// LogoutCreate revokes the session named by the request's token.
// Deleting the session row is the whole mechanism; the token itself
// needs no blacklist.
func LogoutCreate(env *Env, w http.ResponseWriter, r *http.Request) error {
	bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(bearer, claims, func(t *jwt.Token) (interface{}, error) {
		return env.JWTSecret, nil
	})
	if err != nil {
		return httpx.Error(http.StatusUnauthorized, err)
	}
	sessionID, err := strconv.ParseUint(claims.ID, 10, 64)
	if err != nil {
		return httpx.Error(http.StatusUnauthorized, errors.New("malformed token id"))
	}
	if err := models.NewSessions(env.DB).Revoke(snowflake.ID(sessionID)); err != nil {
		return err
	}
	return success(w, map[string]any{"message": "logged out"})
}

func openSession(env *Env, w http.ResponseWriter, user *models.User, code int) error {
	session, err := models.NewSessions(env.DB).Create(user)
	if err != nil {
		return err
	}
	token, err := env.issueToken(session)
	if err != nil {
		return err
	}
	data := map[string]any{
		"token": token,
		"user":  serializeUser(user),
	}
	if code == http.StatusCreated {
		return created(w, data)
	}
	return success(w, data)
}
