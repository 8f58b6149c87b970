package handlers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"mediagen/internal/domain"
	"mediagen/internal/notify"
	"mediagen/internal/orchestrator"
)

const testWebhookSecret = "hook-secret"

type memGenerations struct {
	mu   sync.Mutex
	recs map[string]*domain.Generation
}

func newMemGenerations() *memGenerations {
	return &memGenerations{recs: map[string]*domain.Generation{}}
}

func (s *memGenerations) Create(_ context.Context, gen *domain.Generation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *gen
	s.recs[gen.ID] = &cp
	return nil
}

func (s *memGenerations) GetByID(_ context.Context, id string) (*domain.Generation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *memGenerations) GetByExternalJobID(_ context.Context, jobID string) (*domain.Generation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.recs {
		if rec.ExternalJobID == jobID {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *memGenerations) ListByOwner(_ context.Context, ownerID string, limit, offset int) ([]domain.Generation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Generation
	for _, rec := range s.recs {
		if rec.OwnerID == ownerID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (s *memGenerations) ListStale(_ context.Context, _ time.Time, _ int) ([]domain.Generation, error) {
	return nil, nil
}

func (s *memGenerations) Update(_ context.Context, gen *domain.Generation, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.recs[gen.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return domain.ErrVersionConflict
	}
	cp := *gen
	if cur.ExternalJobID != "" {
		cp.ExternalJobID = cur.ExternalJobID
	}
	cp.Version = expectedVersion + 1
	cp.UpdatedAt = time.Now().UTC()
	s.recs[gen.ID] = &cp
	gen.Version = cp.Version
	gen.ExternalJobID = cp.ExternalJobID
	return nil
}

type memMessages struct {
	mu   sync.Mutex
	msgs []domain.Message
}

func (s *memMessages) Create(_ context.Context, msg *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, *msg)
	return nil
}

func (s *memMessages) ListRecent(_ context.Context, conversationID string, limit int) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Message
	for i := len(s.msgs) - 1; i >= 0 && len(out) < limit; i-- {
		if s.msgs[i].ConversationID == conversationID {
			out = append(out, s.msgs[i])
		}
	}
	return out, nil
}

func (s *memMessages) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

type memAnalytics struct {
	mu       sync.Mutex
	counters map[string]int
}

func (s *memAnalytics) IncrementCounters(_ context.Context, _ string, counters map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counters == nil {
		s.counters = map[string]int{}
	}
	for k, v := range counters {
		s.counters[k] += v
	}
	return nil
}

func (s *memAnalytics) GetSummary(_ context.Context) (*domain.AnalyticsDaily, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counters == nil {
		return nil, domain.ErrNotFound
	}
	return &domain.AnalyticsDaily{
		Day:             time.Now().UTC().Truncate(24 * time.Hour),
		Requested:       s.counters["requested"],
		Dispatched:      s.counters["dispatched"],
		VideosCompleted: s.counters["videos_completed"],
		AudioCompleted:  s.counters["audio_completed"],
		Failed:          s.counters["failed"],
		Cancelled:       s.counters["cancelled"],
	}, nil
}

type scriptedWorker struct {
	mu          sync.Mutex
	dispatches  int
	dispatchRes domain.DispatchResult
	dispatchErr error
	status      domain.StatusResult
	statusErr   error
}

func (w *scriptedWorker) Dispatch(_ context.Context, _ domain.DispatchRequest) (*domain.DispatchResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dispatches++
	if w.dispatchErr != nil {
		return nil, w.dispatchErr
	}
	res := w.dispatchRes
	return &res, nil
}

func (w *scriptedWorker) SubmitClarification(_ context.Context, _ string, _ map[string]string) (*domain.ClarificationResult, error) {
	return &domain.ClarificationResult{Accepted: true}, nil
}

func (w *scriptedWorker) Confirm(_ context.Context, jobID string) (*domain.ConfirmResult, error) {
	return &domain.ConfirmResult{OperationID: "op-" + jobID}, nil
}

func (w *scriptedWorker) QueryStatus(_ context.Context, _ string) (*domain.StatusResult, error) {
	if w.statusErr != nil {
		return nil, w.statusErr
	}
	res := w.status
	return &res, nil
}

func (w *scriptedWorker) Cancel(_ context.Context, _ string) error { return nil }

type testApp struct {
	app    *App
	store  *memGenerations
	msgs   *memMessages
	worker *scriptedWorker
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	store := newMemGenerations()
	msgs := &memMessages{}
	analytics := &memAnalytics{}
	worker := &scriptedWorker{dispatchRes: domain.DispatchResult{JobID: "job-1"}}
	logger := zerolog.Nop()
	sink := notify.NewConversationNotifier(msgs, logger)
	orc := orchestrator.New(orchestrator.Options{
		Generations: store,
		Worker:      worker,
		Notifier:    sink,
		Renderer:    notify.NewRenderer(),
		Analytics:   analytics,
		Logger:      logger,
	})
	app := NewApp(orc, store, msgs, analytics, testWebhookSecret, logger)
	return &testApp{app: app, store: store, msgs: msgs, worker: worker}
}

func seedRecord(t *testing.T, store *memGenerations, status domain.GenerationStatus, jobID string) *domain.Generation {
	t.Helper()
	now := time.Now().UTC()
	gen := &domain.Generation{
		ID:              "22222222-2222-4222-8222-222222222222",
		ExternalJobID:   jobID,
		OwnerID:         "owner-1",
		ConversationID:  "conv-1",
		SourceMessageID: "msg-1",
		MediaType:       domain.MediaTypeVideo,
		Provider:        "veo3",
		Prompt:          "a drone shot over rice terraces",
		ClarificationResponses: map[string]string{
			"duration": "10s",
		},
		Status:    status,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.Create(context.Background(), gen); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return gen
}
