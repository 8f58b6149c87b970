package renderworker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"mediagen/internal/domain"
)

type capturingTransport struct {
	requests []*http.Request
	bodies   [][]byte
	respond  func(req *http.Request) *http.Response
}

func (t *capturingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body != nil {
		data, _ := io.ReadAll(req.Body)
		t.bodies = append(t.bodies, data)
	} else {
		t.bodies = append(t.bodies, nil)
	}
	t.requests = append(t.requests, req)
	return t.respond(req), nil
}

func jsonResponse(status int, v any) *http.Response {
	raw, _ := json.Marshal(v)
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader(raw)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func newTestClient(t *testing.T, transport *capturingTransport) *Client {
	t.Helper()
	client, err := NewClient(Options{
		APIKey:     "key-123",
		BaseURL:    "https://fleet.test/api/v1",
		HTTPClient: &http.Client{Transport: transport},
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestDispatch(t *testing.T) {
	transport := &capturingTransport{respond: func(*http.Request) *http.Response {
		return jsonResponse(http.StatusCreated, map[string]any{"job_id": "job-1"})
	}}
	client := newTestClient(t, transport)

	res, err := client.Dispatch(context.Background(), domain.DispatchRequest{
		GenerationID: "gen-1",
		MediaType:    domain.MediaTypeVideo,
		Provider:     "veo3",
		Prompt:       "a red panda in the snow",
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if res.JobID != "job-1" || res.ClarificationRequired {
		t.Fatalf("result: %+v", res)
	}

	req := transport.requests[0]
	if req.Method != http.MethodPost || req.URL.Path != "/api/v1/generations" {
		t.Fatalf("request: %s %s", req.Method, req.URL.Path)
	}
	if got := req.Header.Get("Authorization"); got != "Bearer key-123" {
		t.Fatalf("authorization = %q", got)
	}
	if got := req.Header.Get("Idempotency-Key"); got != "gen-1" {
		t.Fatalf("idempotency key = %q", got)
	}
	var sent map[string]any
	if err := json.Unmarshal(transport.bodies[0], &sent); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if sent["media_type"] != "video" || sent["prompt"] != "a red panda in the snow" {
		t.Fatalf("payload: %v", sent)
	}
}

func TestDispatchClarificationRequired(t *testing.T) {
	transport := &capturingTransport{respond: func(*http.Request) *http.Response {
		return jsonResponse(http.StatusOK, map[string]any{
			"job_id":                 "job-2",
			"clarification_required": true,
			"clarification_questions": []map[string]any{
				{"key": "style", "question": "What visual style?"},
			},
		})
	}}
	client := newTestClient(t, transport)

	res, err := client.Dispatch(context.Background(), domain.DispatchRequest{GenerationID: "gen-2", MediaType: domain.MediaTypeVideo, Prompt: "x"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !res.ClarificationRequired || len(res.ClarificationQuestions) != 1 {
		t.Fatalf("result: %+v", res)
	}
	if res.ClarificationQuestions[0].Key != "style" {
		t.Fatalf("question: %+v", res.ClarificationQuestions[0])
	}
}

func TestQueryStatus(t *testing.T) {
	transport := &capturingTransport{respond: func(*http.Request) *http.Response {
		return jsonResponse(http.StatusOK, map[string]any{
			"status":   "processing",
			"progress": 40,
		})
	}}
	client := newTestClient(t, transport)

	res, err := client.QueryStatus(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("QueryStatus: %v", err)
	}
	if res.Status != domain.StatusProcessing {
		t.Fatalf("status = %s", res.Status)
	}
	if res.Progress == nil || *res.Progress != 40 {
		t.Fatalf("progress = %v", res.Progress)
	}
	req := transport.requests[0]
	if req.Method != http.MethodGet || req.URL.Path != "/api/v1/generations/job-1/status" {
		t.Fatalf("request: %s %s", req.Method, req.URL.Path)
	}
}

func TestQueryStatusRejectsUnknown(t *testing.T) {
	transport := &capturingTransport{respond: func(*http.Request) *http.Response {
		return jsonResponse(http.StatusOK, map[string]any{"status": "melted"})
	}}
	client := newTestClient(t, transport)

	_, err := client.QueryStatus(context.Background(), "job-1")
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want ErrUpstreamUnavailable", err)
	}
}

func TestErrorEnvelope(t *testing.T) {
	transport := &capturingTransport{respond: func(*http.Request) *http.Response {
		return jsonResponse(http.StatusUnprocessableEntity, map[string]any{
			"code":    "invalid_prompt",
			"message": "prompt too long",
		})
	}}
	client := newTestClient(t, transport)

	_, err := client.Dispatch(context.Background(), domain.DispatchRequest{GenerationID: "gen-1", MediaType: domain.MediaTypeVideo, Prompt: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want wrapped ErrUpstreamUnavailable", err)
	}
}

func TestMissingAPIKey(t *testing.T) {
	client, err := NewClient(Options{})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if client.HasCredentials() {
		t.Fatal("expected no credentials")
	}
	_, err = client.Dispatch(context.Background(), domain.DispatchRequest{GenerationID: "gen-1"})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("err = %v, want ErrMissingAPIKey", err)
	}
}

func TestCircuitBreakerOpens(t *testing.T) {
	transport := &capturingTransport{respond: func(*http.Request) *http.Response {
		return jsonResponse(http.StatusInternalServerError, map[string]any{"code": "boom", "message": "exploded"})
	}}
	client := newTestClient(t, transport)

	for i := 0; i < 3; i++ {
		if _, err := client.QueryStatus(context.Background(), "job-1"); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}
	before := len(transport.requests)
	if _, err := client.QueryStatus(context.Background(), "job-1"); !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want ErrUpstreamUnavailable", err)
	}
	if len(transport.requests) != before {
		t.Fatal("open breaker still forwarded the request")
	}
}
