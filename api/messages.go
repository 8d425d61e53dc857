package api

import (
	"net/http"

	"github.com/socially-app/socially/internal/httpx"
	"github.com/socially-app/socially/internal/snowflake"
	"github.com/socially-app/socially/models"
)

// MessagesIndex returns the conversation with the user in the URL, most
// recent messages in creation order.
func MessagesIndex(env *Env, w http.ResponseWriter, r *http.Request) error {
	self, err := env.authenticate(r)
	if err != nil {
		return err
	}
	peerID, err := urlID(r, "userID")
	if err != nil {
		return err
	}
	var params struct {
		Limit int `schema:"limit"`
	}
	if err := httpx.Params(r, &params); err != nil {
		return err
	}
	messages, err := models.NewMessages(env.DB).Conversation(self.ID, peerID, params.Limit)
	if err != nil {
		return err
	}
	resp := make([]*message, 0, len(messages))
	for i := range messages {
		resp = append(resp, serializeMessage(&messages[i]))
	}
	return success(w, map[string]any{"messages": resp})
}

// MessagesCreate sends a message, accepting multipart form data with an
// optional media part. Retried sends are deduplicated by the
// idempotency key in the form.
func MessagesCreate(env *Env, w http.ResponseWriter, r *http.Request) error {
	self, err := env.authenticate(r)
	if err != nil {
		return err
	}
	var params struct {
		ReceiverID     snowflake.ID `json:"receiver_id" schema:"receiver_id"`
		Message        string       `json:"message" schema:"message"`
		VanishMode     bool         `json:"vanish_mode" schema:"vanish_mode"`
		IdempotencyKey string       `json:"idempotency_key" schema:"idempotency_key"`
	}
	if err := httpx.Params(r, &params); err != nil {
		return err
	}
	if params.IdempotencyKey == "" {
		return httpx.Error(http.StatusUnprocessableEntity, models.ErrEmptyMessage)
	}
	if _, err := models.NewUsers(env.DB).Find(params.ReceiverID); err != nil {
		return mapError(err)
	}

	var mediaURL, mediaType *string
	file, ok, err := formFile(r, "media")
	if err != nil {
		return err
	}
	if ok {
		defer file.Close()
		stored, err := env.Media.Store(file, "messages")
		if err != nil {
			return err
		}
		mediaURL, mediaType = &stored.URL, &stored.MediaType
	}

	var content *string
	if params.Message != "" {
		content = &params.Message
	}
	msg, isNew, err := models.NewMessages(env.DB).Send(
		self.ID, params.ReceiverID, content, mediaURL, mediaType,
		params.VanishMode, params.IdempotencyKey)
	if err != nil {
		return mapError(err)
	}
	if isNew {
		return created(w, map[string]any{"message": serializeMessage(msg)})
	}
	return success(w, map[string]any{"message": serializeMessage(msg)})
}

// MessagesUpdate edits the text of a message within the edit window.
func MessagesUpdate(env *Env, w http.ResponseWriter, r *http.Request) error {
	self, err := env.authenticate(r)
	if err != nil {
		return err
	}
	id, err := urlID(r, "id")
	if err != nil {
		return err
	}
	var params struct {
		Message string `json:"message" schema:"message"`
	}
	if err := httpx.Params(r, &params); err != nil {
		return err
	}
	if params.Message == "" {
		return httpx.Error(http.StatusUnprocessableEntity, models.ErrEmptyMessage)
	}
	msg, err := models.NewMessages(env.DB).Edit(id, self.ID, params.Message)
	if err != nil {
		return mapError(err)
	}
	return success(w, map[string]any{"message": serializeMessage(msg)})
}

// MessagesDestroy soft-deletes a message within the edit window.
func MessagesDestroy(env *Env, w http.ResponseWriter, r *http.Request) error {
	self, err := env.authenticate(r)
	if err != nil {
		return err
	}
	id, err := urlID(r, "id")
	if err != nil {
		return err
	}
	if _, err := models.NewMessages(env.DB).Delete(id, self.ID); err != nil {
		return mapError(err)
	}
	return success(w, map[string]any{"message": "message deleted"})
}

// MessagesRead marks a message read. When the reader reports the chat
// closed and the message is in vanish mode, the row is hard deleted.
func MessagesRead(env *Env, w http.ResponseWriter, r *http.Request) error {
	self, err := env.authenticate(r)
	if err != nil {
		return err
	}
	id, err := urlID(r, "id")
	if err != nil {
		return err
	}
	var params struct {
		ChatClosed bool `json:"chat_closed" schema:"chat_closed"`
	}
	if err := httpx.Params(r, &params); err != nil {
		return err
	}
	msg, err := models.NewMessages(env.DB).MarkRead(id, self.ID, params.ChatClosed)
	if err != nil {
		return mapError(err)
	}
	return success(w, map[string]any{"message": serializeMessage(msg)})
}
