// Package api implements the socially REST API. All responses use the
// envelope {"status":"success"|"error","data":...,"message":...}; the
// server is the authority for every state machine rule the clients also
// check optimistically.
package api

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/socially-app/socially/internal/httpx"
	"github.com/socially-app/socially/internal/snowflake"
	"github.com/socially-app/socially/internal/to"
	"github.com/socially-app/socially/media"
	"github.com/socially-app/socially/models"
	"gorm.io/gorm"
)

// tokenTTL bounds how long a token outlives its session row. The
// session row is the real revocation authority; the expiry is a
// backstop.
const tokenTTL = 30 * 24 * time.Hour

type Env struct {
	*models.Env
	// Media stores uploaded files.
	Media *media.Storage
	// JWTSecret signs and verifies bearer tokens.
	JWTSecret []byte
}

// Router returns the API routes. The caller mounts middleware.
func Router(env *Env) chi.Router {
	e := func(r *http.Request) *Env { return env }
	r := chi.NewRouter()

	r.Post("/auth/signup", httpx.HandlerFunc(e, SignupCreate))
	r.Post("/auth/login", httpx.HandlerFunc(e, LoginCreate))
	r.Post("/auth/logout", httpx.HandlerFunc(e, LogoutCreate))

	r.Get("/messages/{userID:[0-9]+}", httpx.HandlerFunc(e, MessagesIndex))
	r.Post("/messages", httpx.HandlerFunc(e, MessagesCreate))
	r.Put("/messages/{id:[0-9]+}", httpx.HandlerFunc(e, MessagesUpdate))
	r.Delete("/messages/{id:[0-9]+}", httpx.HandlerFunc(e, MessagesDestroy))
	r.Post("/messages/{id:[0-9]+}/read", httpx.HandlerFunc(e, MessagesRead))

	r.Get("/posts", httpx.HandlerFunc(e, PostsIndex))
	r.Post("/posts", httpx.HandlerFunc(e, PostsCreate))
	r.Post("/posts/{id:[0-9]+}/likes", httpx.HandlerFunc(e, LikesCreate))
	r.Delete("/posts/{id:[0-9]+}/likes", httpx.HandlerFunc(e, LikesDestroy))
	r.Get("/posts/{id:[0-9]+}/comments", httpx.HandlerFunc(e, CommentsIndex))
	r.Post("/posts/{id:[0-9]+}/comments", httpx.HandlerFunc(e, CommentsCreate))

	r.Post("/follows/request", httpx.HandlerFunc(e, FollowsCreate))
	r.Post("/follows/{userID:[0-9]+}/accept", httpx.HandlerFunc(e, FollowsAccept))
	r.Post("/follows/{userID:[0-9]+}/reject", httpx.HandlerFunc(e, FollowsReject))
	r.Delete("/follows/{userID:[0-9]+}", httpx.HandlerFunc(e, FollowsDestroy))
	r.Get("/follows/followers", httpx.HandlerFunc(e, FollowersIndex))
	r.Get("/follows/following", httpx.HandlerFunc(e, FollowingIndex))
	r.Get("/follows/requests", httpx.HandlerFunc(e, FollowRequestsIndex))

	r.Get("/users/search", httpx.HandlerFunc(e, UsersSearch))
	r.Get("/users/{userID:[0-9]+}", httpx.HandlerFunc(e, UsersShow))
	r.Put("/profile", httpx.HandlerFunc(e, ProfileUpdate))
	r.Post("/profile/avatar", httpx.HandlerFunc(e, ProfileAvatar))

	r.Get("/stories", httpx.HandlerFunc(e, StoriesIndex))
	r.Post("/stories", httpx.HandlerFunc(e, StoriesCreate))

	return r
}

// authenticate validates the bearer token attached to the request and,
// if the session it names still exists, returns the session's user.
func (e *Env) authenticate(r *http.Request) (*models.User, error) {
	bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if bearer == "" {
		return nil, httpx.Error(http.StatusUnauthorized, errors.New("missing bearer token"))
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(bearer, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return e.JWTSecret, nil
	})
	if err != nil {
		return nil, httpx.Error(http.StatusUnauthorized, err)
	}
	sessionID, err := strconv.ParseUint(claims.ID, 10, 64)
	if err != nil {
		return nil, httpx.Error(http.StatusUnauthorized, errors.New("malformed token id"))
	}
	session, err := models.NewSessions(e.DB).Find(snowflake.ID(sessionID))
	if err != nil {
		// session deleted == logged out
		return nil, httpx.Error(http.StatusUnauthorized, errors.New("session revoked"))
	}
	return session.User, nil
}

// issueToken signs a bearer token naming the session.
func (e *Env) issueToken(session *models.Session) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		ID:        strconv.FormatUint(uint64(session.ID), 10),
		Subject:   strconv.FormatUint(uint64(session.UserID), 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(e.JWTSecret)
}

// envelope is the response shape every endpoint uses.
type envelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func success(w http.ResponseWriter, data any) error {
	return to.JSON(w, envelope{Status: "success", Data: data})
}

func created(w http.ResponseWriter, data any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusCreated)
	return to.JSON(w, envelope{Status: "success", Data: data})
}

// mapError converts domain errors to their HTTP form. Window expiry is
// deliberately distinct from not-found and not-owned so clients can
// render the specific reason.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return httpx.Error(http.StatusNotFound, errors.New("not found"))
	case errors.Is(err, models.ErrWindowExpired):
		return httpx.Error(http.StatusForbidden, err)
	case errors.Is(err, models.ErrNotSender):
		return httpx.Error(http.StatusForbidden, err)
	case errors.Is(err, models.ErrNotEditable),
		errors.Is(err, models.ErrSelfMessage),
		errors.Is(err, models.ErrSelfFollow),
		errors.Is(err, models.ErrEmptyMessage):
		return httpx.Error(http.StatusUnprocessableEntity, err)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		// a mutation naming a row that does not exist can never succeed
		return httpx.Error(http.StatusUnprocessableEntity, errors.New("referenced row does not exist"))
	default:
		return err
	}
}

// urlID parses a numeric URL parameter as a snowflake ID.
func urlID(r *http.Request, name string) (snowflake.ID, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, httpx.Error(http.StatusBadRequest, err)
	}
	return snowflake.ID(id), nil
}

// formFile returns the named upload from a multipart request, or nil
// if the request has no such part.
func formFile(r *http.Request, name string) (multipart.File, bool, error) {
	if r.MultipartForm == nil {
		return nil, false, nil
	}
	headers := r.MultipartForm.File[name]
	if len(headers) == 0 {
		return nil, false, nil
	}
	f, err := headers[0].Open()
	if err != nil {
		return nil, false, httpx.Error(http.StatusBadRequest, err)
	}
	return f, true, nil
}
