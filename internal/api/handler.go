// Package api is the HTTP edge: route registration, request
// validation and outcome encoding. It owns no chat semantics; every
// request is forwarded to the chat service and its payload returned
// unchanged.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/growexx/Americana-Audit-trail-chatbot/internal/chat"
	"github.com/growexx/Americana-Audit-trail-chatbot/internal/chatstore"
	"github.com/growexx/Americana-Audit-trail-chatbot/internal/config"
	"github.com/growexx/Americana-Audit-trail-chatbot/internal/observability"
)

type ReadinessCheck func(ctx context.Context) error

// ChatService is the slice of the chat orchestrator the HTTP layer
// consumes.
type ChatService interface {
	HandleTurn(ctx context.Context, userID, chatID, userMessage string) chat.Outcome
	LoadChatHistory(ctx context.Context, userID, chatID string) ([]chat.HistoryEntry, error)
	ListChatPreviews(ctx context.Context, userID string) ([]chatstore.Preview, error)
	DeleteChats(ctx context.Context, userID string, chatIDs []string) error
	SignOut(userID string)
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Chat              ChatService
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	protected := http.NewServeMux()
	protected.HandleFunc("POST /v1/chat/inquiry", func(w http.ResponseWriter, r *http.Request) {
		handleInquiry(deps, w, r)
	})
	protected.HandleFunc("POST /v1/chat/history", func(w http.ResponseWriter, r *http.Request) {
		handleHistory(deps, w, r)
	})
	protected.HandleFunc("POST /v1/chat/previews", func(w http.ResponseWriter, r *http.Request) {
		handlePreviews(deps, w, r)
	})
	protected.HandleFunc("POST /v1/chat/signout", func(w http.ResponseWriter, r *http.Request) {
		handleSignOut(deps, w, r)
	})
	protected.HandleFunc("DELETE /v1/chat", func(w http.ResponseWriter, r *http.Request) {
		handleDeleteChats(deps, w, r)
	})

	var protectedHandler http.Handler = protected
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but auth middleware missing")
			}
			protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration")
			})
		} else {
			protectedHandler = deps.AuthMiddleware(protectedHandler)
		}
	}
	mux.Handle("POST /v1/chat/inquiry", protectedHandler)
	mux.Handle("POST /v1/chat/history", protectedHandler)
	mux.Handle("POST /v1/chat/previews", protectedHandler)
	mux.Handle("POST /v1/chat/signout", protectedHandler)
	mux.Handle("DELETE /v1/chat", protectedHandler)

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

func CheckChatStoreDSN(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if cfg.ChatStore.DSN == "" {
			return errors.New("chat store dsn is not configured")
		}
		return nil
	}
}

func CheckObjectStoreConfig(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if cfg.ObjectStore.Endpoint == "" {
			return errors.New("object store endpoint is not configured")
		}
		if cfg.ObjectStore.Bucket == "" {
			return errors.New("object store bucket is not configured")
		}
		return nil
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
