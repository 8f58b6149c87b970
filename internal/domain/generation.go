package domain

import (
	"encoding/json"
	"time"
)

// MediaType enumerates the kinds of media a generation can produce.
type MediaType string

const (
	MediaTypeVideo MediaType = "video"
	MediaTypeAudio MediaType = "audio"
)

// Valid reports whether the media type is one of the supported values.
func (m MediaType) Valid() bool {
	return m == MediaTypeVideo || m == MediaTypeAudio
}

// GenerationStatus enumerates generation lifecycle states.
type GenerationStatus string

const (
	StatusPendingClarification GenerationStatus = "pending_clarification"
	StatusPendingConfirmation  GenerationStatus = "pending_confirmation"
	StatusConfirmed            GenerationStatus = "confirmed"
	StatusQueued               GenerationStatus = "queued"
	StatusProcessing           GenerationStatus = "processing"
	StatusCompleted            GenerationStatus = "completed"
	StatusFailed               GenerationStatus = "failed"
	StatusCancelled            GenerationStatus = "cancelled"
)

// statusRanks gives each status its position in the monotonic lifecycle
// order. Both terminal outcomes share the top rank; cancelled sits outside
// the order and is reachable from any non-terminal state.
var statusRanks = map[GenerationStatus]int{
	StatusPendingClarification: 0,
	StatusPendingConfirmation:  1,
	StatusConfirmed:            2,
	StatusQueued:               3,
	StatusProcessing:           4,
	StatusCompleted:            5,
	StatusFailed:               5,
}

// Rank returns the monotonic rank of the status and whether the status is a
// known lifecycle state. Cancelled has no rank.
func (s GenerationStatus) Rank() (int, bool) {
	rank, ok := statusRanks[s]
	return rank, ok
}

// Valid reports whether the status is one of the enumerated lifecycle states.
func (s GenerationStatus) Valid() bool {
	if s == StatusCancelled {
		return true
	}
	_, ok := statusRanks[s]
	return ok
}

// Terminal reports whether the status accepts no further transitions.
func (s GenerationStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// ClarificationQuestion is a single follow-up question the worker asks before
// it will accept a dispatch.
type ClarificationQuestion struct {
	Key      string   `json:"key"`
	Question string   `json:"question"`
	Options  []string `json:"options,omitempty"`
}

// GenerationResult carries the artifact metadata reported by the worker on a
// completed generation.
type GenerationResult struct {
	ResultURL  string  `json:"result_url"`
	SizeBytes  int64   `json:"size_bytes,omitempty"`
	DurationMS int64   `json:"duration_ms,omitempty"`
	Format     string  `json:"format,omitempty"`
	CostCents  float64 `json:"cost_cents,omitempty"`
}

// Generation is the durable record of one media generation attempt. Status,
// progress, result and error fields move exclusively through the orchestrator;
// everything else is immutable after creation.
type Generation struct {
	ID                     string
	ExternalJobID          string
	OwnerID                string
	ConversationID         string
	SourceMessageID        string
	MediaType              MediaType
	Provider               string
	Model                  string
	Prompt                 string
	Locale                 string
	Parameters             json.RawMessage
	ClarificationQuestions []ClarificationQuestion
	ClarificationResponses map[string]string
	Status                 GenerationStatus
	Progress               int
	Result                 *GenerationResult
	ErrorMessage           string
	Version                int64
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Rank returns the monotonic rank of the record's current status.
func (g *Generation) Rank() int {
	rank, _ := g.Status.Rank()
	return rank
}
