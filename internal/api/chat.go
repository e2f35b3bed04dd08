package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/growexx/Americana-Audit-trail-chatbot/internal/auth"
	"github.com/growexx/Americana-Audit-trail-chatbot/internal/chat"
)

type inquiryRequest struct {
	UserID      string `json:"user_id"`
	ChatID      string `json:"chat_id"`
	UserMessage string `json:"user_message"`
}

type historyRequest struct {
	UserID string `json:"user_id"`
	ChatID string `json:"chat_id"`
}

type previewsRequest struct {
	UserID string `json:"user_id"`
}

type signOutRequest struct {
	UserID string `json:"user_id"`
}

type deleteChatsRequest struct {
	UserID  string   `json:"user_id"`
	ChatIDs []string `json:"chat_ids"`
}

// handleInquiry runs one chat turn. The outcome payload is returned
// as-is with HTTP 200; its status field is the contract.
func handleInquiry(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	var req inquiryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	userID, err := resolveUserID(r, req.UserID)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if strings.TrimSpace(req.ChatID) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", "chat_id is required")
		return
	}
	if strings.TrimSpace(req.UserMessage) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", "user_message is required")
		return
	}

	outcome := deps.Chat.HandleTurn(r.Context(), userID, req.ChatID, req.UserMessage)
	writeJSON(w, http.StatusOK, outcome)
}

func handleHistory(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	var req historyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	userID, err := resolveUserID(r, req.UserID)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if strings.TrimSpace(req.ChatID) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", "chat_id is required")
		return
	}

	entries, err := deps.Chat.LoadChatHistory(r.Context(), userID, req.ChatID)
	if errors.Is(err, chat.ErrChatNotFound) {
		writeError(r.Context(), w, http.StatusNotFound, "CHAT_NOT_FOUND", "chat not found")
		return
	}
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "HISTORY_LOAD_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chat_id": req.ChatID, "messages": entries})
}

func handlePreviews(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	var req previewsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	userID, err := resolveUserID(r, req.UserID)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	previews, err := deps.Chat.ListChatPreviews(r.Context(), userID)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "PREVIEW_LIST_FAILED", err.Error())
		return
	}
	payload := make([]map[string]any, 0, len(previews))
	for _, preview := range previews {
		payload = append(payload, map[string]any{
			"chat_id":    preview.ChatID,
			"title":      preview.Title,
			"created_at": preview.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"previews": payload})
}

func handleSignOut(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	var req signOutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	userID, err := resolveUserID(r, req.UserID)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	deps.Chat.SignOut(userID)
	writeJSON(w, http.StatusOK, map[string]any{"status": "signed_out"})
}

func handleDeleteChats(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	var req deleteChatsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	userID, err := resolveUserID(r, req.UserID)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if len(req.ChatIDs) == 0 {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", "chat_ids is required")
		return
	}

	err = deps.Chat.DeleteChats(r.Context(), userID, req.ChatIDs)
	if errors.Is(err, chat.ErrChatNotFound) {
		writeError(r.Context(), w, http.StatusNotFound, "CHAT_NOT_FOUND", err.Error())
		return
	}
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "CHAT_DELETE_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "chat_ids": req.ChatIDs})
}

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// resolveUserID prefers the authenticated identity; the body field is
// the fallback for deployments without auth.
func resolveUserID(r *http.Request, bodyUserID string) (string, error) {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		return identity.UserID, nil
	}
	userID := strings.TrimSpace(bodyUserID)
	if userID == "" {
		return "", errors.New("user_id is required")
	}
	return userID, nil
}
