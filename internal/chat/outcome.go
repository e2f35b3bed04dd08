package chat

// Status discriminates the payload shape of a finished turn.
type Status int

const (
	StatusError    Status = 0
	StatusOK       Status = 1
	StatusRejected Status = 2
	StatusNoData   Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusRejected:
		return "rejected"
	case StatusNoData:
		return "no_data"
	default:
		return "error"
	}
}

// Outcome is the tagged result of one chat turn. Every short-circuit
// (guardrail rejection, out-of-scope SQL, empty result, failure) is a
// variant of this type rather than an error escaping the handler.
type Outcome struct {
	Status      Status           `json:"status"`
	ChatID      string           `json:"chat_id,omitempty"`
	UserQuery   string           `json:"user_query,omitempty"`
	LLMResponse string           `json:"llm_response,omitempty"`
	SQLQuery    string           `json:"sql_query,omitempty"`
	Results     []map[string]any `json:"results_df,omitempty"`
	Scenario    string           `json:"scenario,omitempty"`
	FilePath    string           `json:"file_path,omitempty"`
}

func errorOutcome(chatID, userQuery, diagnostic string) Outcome {
	return Outcome{
		Status:      StatusError,
		ChatID:      chatID,
		UserQuery:   userQuery,
		LLMResponse: diagnostic,
	}
}

func rejectedOutcome(chatID, userQuery, message string) Outcome {
	return Outcome{
		Status:      StatusRejected,
		ChatID:      chatID,
		UserQuery:   userQuery,
		LLMResponse: message,
	}
}

func noDataOutcome(chatID, sqlQuery string) Outcome {
	return Outcome{
		Status:      StatusNoData,
		ChatID:      chatID,
		LLMResponse: noDataMessage,
		SQLQuery:    sqlQuery,
	}
}
