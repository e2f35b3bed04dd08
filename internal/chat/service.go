// Package chat implements the turn orchestrator: guardrail, SQL
// generation, execution, history reconciliation, explanation and
// persistence for one user message, plus chat lifecycle operations
// (history load, previews, delete, sign-out).
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/growexx/Americana-Audit-trail-chatbot/internal/chatstore"
	"github.com/growexx/Americana-Audit-trail-chatbot/internal/export"
	"github.com/growexx/Americana-Audit-trail-chatbot/internal/extract"
	"github.com/growexx/Americana-Audit-trail-chatbot/internal/llm"
	"github.com/growexx/Americana-Audit-trail-chatbot/internal/metadata"
	"github.com/growexx/Americana-Audit-trail-chatbot/internal/observability"
	"github.com/growexx/Americana-Audit-trail-chatbot/internal/prompt"
	"github.com/growexx/Americana-Audit-trail-chatbot/internal/session"
	"github.com/growexx/Americana-Audit-trail-chatbot/internal/warehouse"
)

const (
	scenarioAnalysis = "analysis"
	scenarioRawData  = "raw_data"

	noDataMessage    = "No data found for following search"
	rejectionMessage = "I can only answer questions about the audit-trail sales data. Please rephrase your question around sales, projects, payments or audit events."
)

// ErrChatNotFound reports a history request for a chat the user does
// not own or that has no messages.
var ErrChatNotFound = errors.New("chat not found")

// Exporter uploads a full result set as downloadable artifacts.
type Exporter interface {
	ExportCSV(ctx context.Context, chatID string, result warehouse.Result) (export.Artifact, error)
	ExportParquet(ctx context.Context, chatID string, result warehouse.Result) (export.Artifact, error)
}

type Config struct {
	// ResponseRowLimit caps the records embedded in turn responses.
	ResponseRowLimit int
}

type Service struct {
	store            chatstore.Store
	executor         warehouse.Executor
	model            llm.Client
	prompts          *prompt.Builder
	schemas          metadata.Provider
	exporter         Exporter
	sessions         *session.Manager
	logger           *slog.Logger
	responseRowLimit int
}

func NewService(
	store chatstore.Store,
	executor warehouse.Executor,
	model llm.Client,
	prompts *prompt.Builder,
	schemas metadata.Provider,
	exporter Exporter,
	sessions *session.Manager,
	logger *slog.Logger,
	cfg Config,
) *Service {
	limit := cfg.ResponseRowLimit
	if limit <= 0 {
		limit = 10
	}
	return &Service{
		store:            store,
		executor:         executor,
		model:            model,
		prompts:          prompts,
		schemas:          schemas,
		exporter:         exporter,
		sessions:         sessions,
		logger:           logger,
		responseRowLimit: limit,
	}
}

// HandleTurn runs one user message through the turn state machine.
// Stage failures never escape: they become a status-0 outcome here,
// and the in-memory session is only updated once the turn persisted.
func (s *Service) HandleTurn(ctx context.Context, userID, chatID, userMessage string) Outcome {
	outcome, err := s.runTurn(ctx, userID, chatID, userMessage)
	if err != nil {
		s.logger.Error("chat turn failed",
			"chat_id", chatID,
			"user_id", userID,
			"error", err,
		)
		outcome = errorOutcome(chatID, userMessage, "The request could not be completed: "+err.Error())
	}
	observability.ObserveChatTurn(outcome.Status.String())
	return outcome
}

func (s *Service) runTurn(ctx context.Context, userID, chatID, userMessage string) (Outcome, error) {
	verdict, err := s.runGuardrail(ctx, userMessage)
	if err != nil {
		return Outcome{}, err
	}
	if !verdict.relevant {
		observability.IncrementGuardrailRejection()
		s.logger.Info("guardrail rejected question", "chat_id", chatID)
		return rejectedOutcome(chatID, userMessage, rejectionMessage), nil
	}

	schemaText, err := metadata.Assemble(s.schemas, verdict.tables)
	if err != nil {
		return Outcome{}, fmt.Errorf("assemble table metadata: %w", err)
	}

	generation, err := s.generateSQL(ctx, chatID, userMessage, schemaText)
	if err != nil {
		return Outcome{}, err
	}
	if generation.outOfScope {
		s.logger.Info("question out of analytic scope", "chat_id", chatID)
		return rejectedOutcome(chatID, userMessage, generation.message), nil
	}

	start := time.Now()
	result, err := s.executor.ExecuteQuery(ctx, generation.sql)
	observability.ObserveWarehouseQuery(time.Since(start))
	if err != nil {
		return Outcome{}, fmt.Errorf("execute generated sql: %w", err)
	}

	if result.IsVacuous() {
		return noDataOutcome(chatID, generation.sql), nil
	}

	explanation, err := s.explainAndPersist(ctx, userID, chatID, userMessage, generation.sql, result)
	if err != nil {
		return Outcome{}, err
	}

	return s.shapeResponse(ctx, chatID, generation, explanation, result)
}

type guardrailVerdict struct {
	relevant bool
	tables   []string
}

func (s *Service) runGuardrail(ctx context.Context, userMessage string) (guardrailVerdict, error) {
	guardPrompt, err := s.prompts.GuardrailPrompt(userMessage)
	if err != nil {
		return guardrailVerdict{}, err
	}
	reply, err := s.completeWithMetrics(ctx, "guardrail", guardPrompt, userMessage)
	if err != nil {
		return guardrailVerdict{}, fmt.Errorf("guardrail call: %w", err)
	}
	var record extract.Record
	if err := record.Set(reply); err != nil {
		return guardrailVerdict{}, fmt.Errorf("parse guardrail reply: %w", err)
	}
	relevant := strings.EqualFold(record.GetString("relevant_question", "no"), "yes")
	return guardrailVerdict{
		relevant: relevant,
		tables:   record.GetStrings("tables_related", nil),
	}, nil
}

type sqlGeneration struct {
	sql        string
	scenario   string
	outOfScope bool
	message    string
}

func (s *Service) generateSQL(ctx context.Context, chatID, userMessage, schemaText string) (sqlGeneration, error) {
	lastSQL, err := s.resolveLastSQL(ctx, chatID)
	if err != nil {
		return sqlGeneration{}, err
	}
	sqlPrompt, err := s.prompts.SQLPrompt(userMessage, schemaText, lastSQL)
	if err != nil {
		return sqlGeneration{}, err
	}
	reply, err := s.completeWithMetrics(ctx, "text2sql", sqlPrompt, userMessage)
	if err != nil {
		return sqlGeneration{}, fmt.Errorf("sql generation call: %w", err)
	}
	var record extract.Record
	if err := record.Set(reply); err != nil {
		return sqlGeneration{}, fmt.Errorf("parse sql generation reply: %w", err)
	}

	generation := sqlGeneration{
		sql:      strings.TrimSpace(record.GetString("sql_query", "")),
		scenario: record.GetString("scenario", scenarioAnalysis),
	}
	if extract.Truthy(record.Get("error_status", 0)) || generation.sql == "" {
		generation.outOfScope = true
		generation.message = record.GetString("message", rejectionMessage)
	}
	return generation, nil
}

// resolveLastSQL prefers the hydrated session, falling back to a
// durable point lookup. Absence is an empty string, not an error.
func (s *Service) resolveLastSQL(ctx context.Context, chatID string) (string, error) {
	if sess, ok := s.sessions.Get(chatID); ok {
		if sess.HasSQL {
			return sess.LastSQL, nil
		}
		return "", nil
	}
	lastSQL, found, err := s.store.LastSQLArtifact(ctx, chatID)
	if err != nil {
		return "", fmt.Errorf("resolve last sql: %w", err)
	}
	if !found {
		return "", nil
	}
	return lastSQL, nil
}

// explainAndPersist covers reconciliation, explanation and durable
// persistence under the chat's turn lock so concurrent turns cannot
// interleave sequence numbers. The session cache is written only
// after AppendTurn commits; any failure leaves the pre-turn state.
func (s *Service) explainAndPersist(ctx context.Context, userID, chatID, userMessage, sqlText string, result warehouse.Result) (string, error) {
	s.sessions.Lock(chatID)
	defer s.sessions.Unlock(chatID)

	sess, err := s.reconcileSession(ctx, userID, chatID, userMessage)
	if err != nil {
		return "", err
	}

	draft, err := s.prompts.AssistantPrompt(sqlText, result)
	if err != nil {
		return "", err
	}
	sess.History = append(sess.History,
		chatstore.Message{ChatID: chatID, Role: chatstore.RoleUser, Content: userMessage},
		chatstore.Message{ChatID: chatID, Role: chatstore.RoleSystem, Content: draft},
	)

	start := time.Now()
	reply, err := s.model.ChatHistory(ctx, toModelMessages(sess.History))
	observability.ObserveLLMCall("explanation", time.Since(start))
	if err != nil {
		return "", fmt.Errorf("explanation call: %w", err)
	}

	// The draft explanation request is transient; the model's raw
	// reply takes its place in the log.
	sess.History[len(sess.History)-1] = chatstore.Message{ChatID: chatID, Role: chatstore.RoleSystem, Content: reply}

	var record extract.Record
	if err := record.Set(reply); err != nil {
		return "", fmt.Errorf("parse explanation reply: %w", err)
	}
	explanation := record.GetString("message", "")

	nextNo, err := s.store.NextMessageNo(ctx, chatID)
	if err != nil {
		return "", fmt.Errorf("next message number: %w", err)
	}
	err = s.store.AppendTurn(ctx, chatID, nextNo, chatstore.Turn{
		UserMessage:      userMessage,
		AssistantMessage: reply,
		SQLArtifact:      sqlText,
	})
	if err != nil {
		return "", fmt.Errorf("persist turn: %w", err)
	}

	sess.History[len(sess.History)-2].MessageNo = nextNo
	sess.History[len(sess.History)-1].MessageNo = nextNo + 1
	sess.LastSQL = sqlText
	sess.HasSQL = true
	s.sessions.Put(sess)
	s.sessions.Activate(userID, chatID)
	return explanation, nil
}

// reconcileSession returns the working session for the turn: a fresh
// log for an unknown chat (plus title + preview persistence), the
// cached log when hydrated, or a rebuild from durable rows.
func (s *Service) reconcileSession(ctx context.Context, userID, chatID, userMessage string) (*session.Session, error) {
	owns, err := s.store.UserOwnsChat(ctx, userID, chatID)
	if err != nil {
		return nil, fmt.Errorf("check chat ownership: %w", err)
	}
	if !owns {
		title := s.generateTitle(ctx, chatID, userMessage)
		err := s.store.InsertPreview(ctx, chatstore.Preview{ChatID: chatID, UserID: userID, Title: title})
		if err != nil {
			return nil, fmt.Errorf("persist chat preview: %w", err)
		}
		return s.freshSession(userID, chatID), nil
	}

	if sess, ok := s.sessions.Get(chatID); ok {
		return sess, nil
	}

	messages, err := s.store.ListMessages(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("hydrate chat history: %w", err)
	}
	return s.buildSession(userID, chatID, messages), nil
}

func (s *Service) freshSession(userID, chatID string) *session.Session {
	return &session.Session{
		ChatID: chatID,
		UserID: userID,
		History: []chatstore.Message{
			{ChatID: chatID, Role: chatstore.RoleSystem, Content: s.prompts.MainPrompt()},
		},
	}
}

// buildSession seeds a session from durable rows: the system-init
// message plus every non-sql row, with the newest sql-artifact kept
// as follow-up context.
func (s *Service) buildSession(userID, chatID string, messages []chatstore.Message) *session.Session {
	sess := s.freshSession(userID, chatID)
	for _, msg := range messages {
		if msg.Role == chatstore.RoleSQL {
			sess.LastSQL = msg.Content
			sess.HasSQL = true
			continue
		}
		sess.History = append(sess.History, msg)
	}
	return sess
}

func (s *Service) generateTitle(ctx context.Context, chatID, userMessage string) string {
	fallback := "Chat_" + chatID
	if len(chatID) > 8 {
		fallback = "Chat_" + chatID[:8]
	}

	titlePrompt, err := s.prompts.TitlePrompt(userMessage)
	if err != nil {
		return fallback
	}
	reply, err := s.completeWithMetrics(ctx, "title", titlePrompt, userMessage)
	if err != nil {
		s.logger.Warn("title generation failed", "chat_id", chatID, "error", err)
		return fallback
	}
	var record extract.Record
	if err := record.Set(reply); err != nil {
		return fallback
	}
	title := strings.TrimSpace(record.GetString("title", ""))
	if title == "" {
		return fallback
	}
	return title
}

func (s *Service) shapeResponse(ctx context.Context, chatID string, generation sqlGeneration, explanation string, result warehouse.Result) (Outcome, error) {
	outcome := Outcome{
		Status:      StatusOK,
		ChatID:      chatID,
		LLMResponse: explanation,
		SQLQuery:    generation.sql,
		Results:     result.Head(s.responseRowLimit).Records(),
	}
	if generation.scenario != scenarioRawData {
		return outcome, nil
	}

	csvArtifact, err := s.exporter.ExportCSV(ctx, chatID, result)
	if err != nil {
		return Outcome{}, fmt.Errorf("export csv artifact: %w", err)
	}
	if _, err := s.exporter.ExportParquet(ctx, chatID, result); err != nil {
		return Outcome{}, fmt.Errorf("export parquet artifact: %w", err)
	}
	outcome.Scenario = scenarioRawData
	outcome.FilePath = csvArtifact.URL
	return outcome, nil
}

func (s *Service) completeWithMetrics(ctx context.Context, purpose, systemPrompt, userMessage string) (string, error) {
	start := time.Now()
	reply, err := s.model.Complete(ctx, systemPrompt, userMessage)
	observability.ObserveLLMCall(purpose, time.Since(start))
	return reply, err
}

// toModelMessages maps the stored log onto chat-completion roles: the
// leading system-init entry is the system message, user entries stay
// user turns, everything else speaks as the assistant.
func toModelMessages(history []chatstore.Message) []llm.Message {
	messages := make([]llm.Message, 0, len(history))
	for i, msg := range history {
		role := llm.RoleAssistant
		switch {
		case i == 0:
			role = llm.RoleSystem
		case msg.Role == chatstore.RoleUser:
			role = llm.RoleUser
		}
		messages = append(messages, llm.Message{Role: role, Content: msg.Content})
	}
	return messages
}
