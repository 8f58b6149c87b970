package domain

import (
	"context"
	"encoding/json"
)

// DispatchRequest carries the full generation payload to the external worker.
type DispatchRequest struct {
	GenerationID           string
	MediaType              MediaType
	Provider               string
	Model                  string
	Prompt                 string
	Parameters             json.RawMessage
	ClarificationResponses map[string]string
}

// DispatchResult is the worker's answer to a dispatch. When the worker still
// needs input it returns ClarificationRequired with a fresh question set
// instead of starting work.
type DispatchResult struct {
	JobID                  string
	ClarificationRequired  bool
	ClarificationQuestions []ClarificationQuestion
}

// ClarificationResult reports whether the worker accepted submitted responses.
type ClarificationResult struct {
	Accepted bool
}

// ConfirmResult identifies the worker-side operation started by a confirm.
type ConfirmResult struct {
	OperationID string
}

// StatusResult is a point-in-time status report pulled from the worker.
type StatusResult struct {
	Status   GenerationStatus
	Progress *int
	Result   *GenerationResult
	Error    string
}

// WorkerClient is the typed protocol adapter to the external asynchronous
// generation service. Implementations apply a bounded timeout per call and
// are safe to retry; they own no state. Failures surface as errors wrapping
// ErrUpstreamUnavailable and never corrupt local records.
type WorkerClient interface {
	Dispatch(ctx context.Context, req DispatchRequest) (*DispatchResult, error)
	SubmitClarification(ctx context.Context, jobID string, responses map[string]string) (*ClarificationResult, error)
	Confirm(ctx context.Context, jobID string) (*ConfirmResult, error)
	QueryStatus(ctx context.Context, jobID string) (*StatusResult, error)
	Cancel(ctx context.Context, jobID string) error
}
