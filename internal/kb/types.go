// Package kb is the client for the LightRAG-compatible knowledge base
// service that stores the course corpus. It wraps the HTTP API with a
// small error-status taxonomy so callers can tell a bad query from a
// dead service without inspecting errors.
package kb

import (
	"coursenerd/internal/citation"
)

// Status classifies the outcome of a knowledge base operation.
type Status string

const (
	StatusSuccess         Status = "success"
	StatusBadRequest      Status = "bad_request"      // 400/422 or local validation failure
	StatusServerError     Status = "server_error"     // 5xx from the service
	StatusTimeout         Status = "timeout"          // request deadline exceeded
	StatusConnectionError Status = "connection_error" // service unreachable
)

// HistoryTurn is one turn of prior conversation passed for query context.
type HistoryTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// QueryParams carries the query text plus the optional retrieval knobs.
// Pointer fields left nil are omitted from the request body so the
// service applies its own defaults.
type QueryParams struct {
	Query string `json:"query" validate:"required"`
	Mode  string `json:"mode" validate:"omitempty,oneof=local global hybrid naive mix bypass"`

	// IncludeReferences is always sent; Query forces it on because the
	// citation pipeline needs the references block in every response.
	IncludeReferences bool `json:"include_references"`

	ResponseType    *string `json:"response_type,omitempty"`
	TopK            *int    `json:"top_k,omitempty" validate:"omitempty,gt=0"`
	ChunkTopK       *int    `json:"chunk_top_k,omitempty" validate:"omitempty,gt=0"`
	EnableRerank    *bool   `json:"enable_rerank,omitempty"`
	OnlyNeedContext *bool   `json:"only_need_context,omitempty"`
	OnlyNeedPrompt  *bool   `json:"only_need_prompt,omitempty"`

	HighLevelKeywords []string `json:"hl_keywords,omitempty"`
	LowLevelKeywords  []string `json:"ll_keywords,omitempty"`

	MaxEntityTokens   *int `json:"max_entity_tokens,omitempty"`
	MaxRelationTokens *int `json:"max_relation_tokens,omitempty"`
	MaxTotalTokens    *int `json:"max_total_tokens,omitempty"`

	ConversationHistory []HistoryTurn `json:"conversation_history,omitempty"`
	HistoryTurns        *int          `json:"history_turns,omitempty"`

	UserPrompt *string `json:"user_prompt,omitempty"`
	Stream     *bool   `json:"stream,omitempty"`
}

// QueryResult is the outcome of a Query call. Status is always set;
// Answer and Citations are populated only on success, Detail on failure.
type QueryResult struct {
	Status     Status                  `json:"status"`
	Answer     string                  `json:"answer,omitempty"`
	Detail     string                  `json:"detail,omitempty"`
	References []citation.RawReference `json:"references,omitempty"`
	Citations  []citation.Citation     `json:"-"`
}

// InsertResponse is the service acknowledgment for document ingestion.
type InsertResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	TrackID string `json:"track_id"`
}

// PipelineStatus reports the ingestion pipeline state.
type PipelineStatus struct {
	Busy            bool     `json:"busy"`
	JobName         string   `json:"job_name"`
	JobStart        string   `json:"job_start,omitempty"`
	Docs            int      `json:"docs"`
	Batches         int      `json:"batchs"` // spelling matches the service API
	CurrentBatch    int      `json:"cur_batch"`
	RequestPending  bool     `json:"request_pending"`
	LatestMessage   string   `json:"latest_message"`
	HistoryMessages []string `json:"history_messages,omitempty"`
}
