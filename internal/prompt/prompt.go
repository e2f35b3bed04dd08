// Package prompt assembles the text prompts used across a chat turn:
// system initialization, guardrail classification, SQL generation,
// result explanation and chat-title generation. Builders are pure;
// templates are embedded at build time.
package prompt

import (
	"embed"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/growexx/Americana-Audit-trail-chatbot/internal/warehouse"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// NoPriorSQLPlaceholder marks the absence of a previous query in the
// SQL-generation prompt. An explicit marker keeps the template shape
// stable for the model.
const NoPriorSQLPlaceholder = "────────────────────────"

const defaultPromptRowLimit = 25

// sampleRows is the number of rows included when a result exceeds the
// prompt row limit.
const sampleRows = 10

var whitespacePattern = regexp.MustCompile(`\s+`)

type Builder struct {
	templates      *template.Template
	promptRowLimit int
}

func NewBuilder(promptRowLimit int) (*Builder, error) {
	if promptRowLimit <= 0 {
		promptRowLimit = defaultPromptRowLimit
	}
	templates, err := template.ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse prompt templates: %w", err)
	}
	return &Builder{templates: templates, promptRowLimit: promptRowLimit}, nil
}

// MainPrompt returns the system message that seeds every chat.
func (b *Builder) MainPrompt() string {
	var sb strings.Builder
	// The system template takes no data; execution cannot fail after parse.
	_ = b.templates.ExecuteTemplate(&sb, "system_init.tmpl", nil)
	return sb.String()
}

func (b *Builder) GuardrailPrompt(userMessage string) (string, error) {
	return b.render("guardrail.tmpl", map[string]string{
		"UserMessage": userMessage,
	})
}

// SQLPrompt builds the text-to-SQL prompt. Metadata whitespace is
// collapsed to keep token cost bounded; an empty lastSQL becomes an
// explicit placeholder rather than a silent omission.
func (b *Builder) SQLPrompt(userQuery, metadata, lastSQL string) (string, error) {
	priorSQL := NoPriorSQLPlaceholder
	if strings.TrimSpace(lastSQL) != "" {
		priorSQL = "Previous SQL (if any):\n" + lastSQL
	}
	return b.render("text2sql.tmpl", map[string]string{
		"UserQuery": userQuery,
		"Metadata":  CollapseWhitespace(metadata),
		"LastSQL":   priorSQL,
	})
}

// AssistantPrompt embeds the executed SQL and a bounded row sample:
// the full result when it fits the prompt row limit, else the first
// ten rows plus the true row/column counts.
func (b *Builder) AssistantPrompt(sqlQuery string, result warehouse.Result) (string, error) {
	sampled := result
	if result.RowCount() > b.promptRowLimit {
		sampled = result.Head(sampleRows)
	}
	records, err := json.Marshal(sampled.Records())
	if err != nil {
		return "", fmt.Errorf("marshal result sample: %w", err)
	}
	return b.render("assistant_analysis.tmpl", map[string]any{
		"SQLQuery":    sqlQuery,
		"DataRecords": string(records),
		"NumRecords":  result.RowCount(),
		"NumFields":   result.ColumnCount(),
	})
}

func (b *Builder) TitlePrompt(userMessage string) (string, error) {
	return b.render("chat_title.tmpl", map[string]string{
		"UserMessage": userMessage,
	})
}

func (b *Builder) render(name string, data any) (string, error) {
	var sb strings.Builder
	if err := b.templates.ExecuteTemplate(&sb, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return sb.String(), nil
}

// CollapseWhitespace folds runs of whitespace into single spaces.
func CollapseWhitespace(text string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
}
