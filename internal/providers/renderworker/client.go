package renderworker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"mediagen/internal/domain"
	"mediagen/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("renderworker: api key is required")

const defaultBaseURL = "https://render.example.com/api/v1"

// Options configures the render fleet client.
type Options struct {
	APIKey         string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls against the external render fleet API. Every
// call runs through a circuit breaker so a struggling fleet sheds load fast
// instead of tying up request handlers.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
	timeout    time.Duration
	breaker    *gobreaker.CircuitBreaker
}

type dispatchPayload struct {
	GenerationID           string            `json:"generation_id"`
	MediaType              string            `json:"media_type"`
	Provider               string            `json:"provider"`
	Model                  string            `json:"model"`
	Prompt                 string            `json:"prompt"`
	Parameters             json.RawMessage   `json:"parameters,omitempty"`
	ClarificationResponses map[string]string `json:"clarification_responses,omitempty"`
}

type dispatchResponse struct {
	JobID                  string                         `json:"job_id"`
	ClarificationRequired  bool                           `json:"clarification_required"`
	ClarificationQuestions []domain.ClarificationQuestion `json:"clarification_questions,omitempty"`
}

type clarificationPayload struct {
	Responses map[string]string `json:"responses"`
}

type clarificationResponse struct {
	Accepted bool `json:"accepted"`
}

type confirmResponse struct {
	OperationID string `json:"operation_id"`
}

type statusResponse struct {
	Status   string                   `json:"status"`
	Progress *int                     `json:"progress,omitempty"`
	Result   *domain.GenerationResult `json:"result,omitempty"`
	Error    string                   `json:"error,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "renderworker",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
	})
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
		timeout:    timeout,
		breaker:    breaker,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// Dispatch creates a generation job on the fleet. The generation id doubles
// as the idempotency key, so a retried dispatch returns the same job.
func (c *Client) Dispatch(ctx context.Context, req domain.DispatchRequest) (*domain.DispatchResult, error) {
	payload := dispatchPayload{
		GenerationID:           req.GenerationID,
		MediaType:              string(req.MediaType),
		Provider:               req.Provider,
		Model:                  req.Model,
		Prompt:                 req.Prompt,
		Parameters:             req.Parameters,
		ClarificationResponses: req.ClarificationResponses,
	}
	var decoded dispatchResponse
	if err := c.call(ctx, http.MethodPost, "/generations", req.GenerationID, payload, &decoded); err != nil {
		return nil, fmt.Errorf("renderworker: dispatch: %w", err)
	}
	if decoded.JobID == "" {
		return nil, fmt.Errorf("renderworker: dispatch: empty job id: %w", domain.ErrUpstreamUnavailable)
	}
	c.logger.Debug().
		Str("generation_id", req.GenerationID).
		Str("job_id", decoded.JobID).
		Bool("clarification_required", decoded.ClarificationRequired).
		Msg("renderworker: dispatched")
	return &domain.DispatchResult{
		JobID:                  decoded.JobID,
		ClarificationRequired:  decoded.ClarificationRequired,
		ClarificationQuestions: decoded.ClarificationQuestions,
	}, nil
}

// SubmitClarification forwards the user's clarification responses for a job.
func (c *Client) SubmitClarification(ctx context.Context, jobID string, responses map[string]string) (*domain.ClarificationResult, error) {
	var decoded clarificationResponse
	path := "/generations/" + jobID + "/clarification"
	if err := c.call(ctx, http.MethodPost, path, jobID, clarificationPayload{Responses: responses}, &decoded); err != nil {
		return nil, fmt.Errorf("renderworker: submit clarification: %w", err)
	}
	return &domain.ClarificationResult{Accepted: decoded.Accepted}, nil
}

// Confirm starts work on a previously created job.
func (c *Client) Confirm(ctx context.Context, jobID string) (*domain.ConfirmResult, error) {
	var decoded confirmResponse
	path := "/generations/" + jobID + "/confirm"
	if err := c.call(ctx, http.MethodPost, path, jobID, struct{}{}, &decoded); err != nil {
		return nil, fmt.Errorf("renderworker: confirm: %w", err)
	}
	return &domain.ConfirmResult{OperationID: decoded.OperationID}, nil
}

// QueryStatus pulls the current status report for a job.
func (c *Client) QueryStatus(ctx context.Context, jobID string) (*domain.StatusResult, error) {
	var decoded statusResponse
	path := "/generations/" + jobID + "/status"
	if err := c.call(ctx, http.MethodGet, path, jobID, nil, &decoded); err != nil {
		return nil, fmt.Errorf("renderworker: query status: %w", err)
	}
	status := domain.GenerationStatus(decoded.Status)
	if !status.Valid() {
		return nil, fmt.Errorf("renderworker: query status: unknown status %q: %w", decoded.Status, domain.ErrUpstreamUnavailable)
	}
	return &domain.StatusResult{
		Status:   status,
		Progress: decoded.Progress,
		Result:   decoded.Result,
		Error:    decoded.Error,
	}, nil
}

// Cancel asks the fleet to stop a job. Callers treat this as best-effort.
func (c *Client) Cancel(ctx context.Context, jobID string) error {
	path := "/generations/" + jobID + "/cancel"
	if err := c.call(ctx, http.MethodPost, path, jobID, struct{}{}, &struct{}{}); err != nil {
		return fmt.Errorf("renderworker: cancel: %w", err)
	}
	return nil
}

func (c *Client) call(ctx context.Context, method, path, idempotencyKey string, payload, out any) error {
	if !c.HasCredentials() {
		return ErrMissingAPIKey
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", idempotencyKey)
	}

	raw, err := c.breaker.Execute(func() (any, error) {
		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 300 {
			var detail errorResponse
			if err := json.Unmarshal(data, &detail); err == nil && detail.Message != "" {
				return nil, fmt.Errorf("%s (%s)", detail.Message, detail.Code)
			}
			return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		}
		return data, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.logger.Warn().Str("path", path).Msg("renderworker: circuit open, request rejected")
		}
		return fmt.Errorf("%v: %w", err, domain.ErrUpstreamUnavailable)
	}

	data := raw.([]byte)
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %v: %w", err, domain.ErrUpstreamUnavailable)
		}
	}
	return nil
}

var _ domain.WorkerClient = (*Client)(nil)
