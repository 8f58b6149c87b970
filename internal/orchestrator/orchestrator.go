package orchestrator

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"

	"mediagen/internal/domain"
	"mediagen/internal/infra"
	"mediagen/internal/middleware"
	"mediagen/internal/notify"
)

// Orchestrator owns the generation lifecycle: transition validation,
// dispatch sequencing against the external worker, and the reconciliation
// algorithm shared by the webhook and polling paths. It holds no locks;
// every mutation is a conditional write keyed on the record version.
type Orchestrator struct {
	gens      domain.GenerationRepository
	worker    domain.WorkerClient
	sink      domain.NotificationSink
	renderer  *notify.Renderer
	analytics domain.AnalyticsRepository
	logger    infra.Logger
}

// Options wires the orchestrator's collaborators. Analytics is optional.
type Options struct {
	Generations domain.GenerationRepository
	Worker      domain.WorkerClient
	Notifier    domain.NotificationSink
	Renderer    *notify.Renderer
	Analytics   domain.AnalyticsRepository
	Logger      infra.Logger
}

// New constructs the orchestrator.
func New(opts Options) *Orchestrator {
	renderer := opts.Renderer
	if renderer == nil {
		renderer = notify.NewRenderer()
	}
	return &Orchestrator{
		gens:      opts.Generations,
		worker:    opts.Worker,
		sink:      opts.Notifier,
		renderer:  renderer,
		analytics: opts.Analytics,
		logger:    opts.Logger,
	}
}

// CreateParams carries the immutable payload of a new generation request.
type CreateParams struct {
	OwnerID         string
	ConversationID  string
	SourceMessageID string
	MediaType       domain.MediaType
	Provider        string
	Model           string
	Prompt          string
	Parameters      []byte
}

// Create records a new generation request in pending_clarification and posts
// the clarification questions into the conversation.
func (o *Orchestrator) Create(ctx context.Context, params CreateParams) (*domain.Generation, error) {
	if err := validateCreate(params); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	gen := &domain.Generation{
		ID:                     uuid.NewString(),
		OwnerID:                params.OwnerID,
		ConversationID:         params.ConversationID,
		SourceMessageID:        params.SourceMessageID,
		MediaType:              params.MediaType,
		Provider:               params.Provider,
		Model:                  params.Model,
		Prompt:                 strings.TrimSpace(params.Prompt),
		Locale:                 middleware.LocaleFromContext(ctx),
		Parameters:             params.Parameters,
		ClarificationQuestions: defaultQuestions(params.MediaType),
		Status:                 domain.StatusPendingClarification,
		Version:                1,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := o.gens.Create(ctx, gen); err != nil {
		return nil, fmt.Errorf("orchestrator: create generation: %w", err)
	}
	o.logger.Info().
		Str("generation_id", gen.ID).
		Str("media_type", string(gen.MediaType)).
		Str("provider", gen.Provider).
		Msg("orchestrator: generation created")
	o.notifyStatus(ctx, gen)
	o.bumpCounters(ctx, map[string]int{"requested": 1})
	return gen, nil
}

// Get returns the generation record.
func (o *Orchestrator) Get(ctx context.Context, id string) (*domain.Generation, error) {
	return o.gens.GetByID(ctx, id)
}

// SubmitClarification stores the user's clarification responses and advances
// the record to pending_confirmation. When the worker already owns a job for
// this record the responses are forwarded first; a worker failure surfaces to
// the caller without touching the record.
func (o *Orchestrator) SubmitClarification(ctx context.Context, id string, responses map[string]string, version int64) (*domain.Generation, error) {
	if len(responses) == 0 {
		return nil, fmt.Errorf("%w: clarification responses are required", domain.ErrValidation)
	}
	gen, err := o.gens.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if gen.Status != domain.StatusPendingClarification {
		return nil, fmt.Errorf("%w: cannot submit clarification while %s", domain.ErrInvalidState, gen.Status)
	}

	if gen.ExternalJobID != "" {
		res, err := o.worker.SubmitClarification(ctx, gen.ExternalJobID, responses)
		if err != nil {
			return nil, err
		}
		if !res.Accepted {
			return nil, fmt.Errorf("%w: worker rejected clarification responses", domain.ErrValidation)
		}
	}

	next := *gen
	next.ClarificationResponses = responses
	next.Status = domain.StatusPendingConfirmation
	if err := o.gens.Update(ctx, &next, version); err != nil {
		return nil, err
	}
	o.notifyStatus(ctx, &next)
	return &next, nil
}

// Confirm claims the record via a conditional write and dispatches it to the
// worker. Exactly one of any set of concurrent confirms wins the claim and
// performs the dispatch; the rest observe a version conflict without ever
// reaching the worker. A dispatch failure reverts the record to
// pending_confirmation so the user can retry explicitly.
func (o *Orchestrator) Confirm(ctx context.Context, id string, version int64) (*domain.Generation, error) {
	gen, err := o.gens.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if gen.Status != domain.StatusPendingConfirmation && gen.Status != domain.StatusConfirmed {
		return nil, fmt.Errorf("%w: cannot confirm while %s", domain.ErrInvalidState, gen.Status)
	}
	if len(gen.ClarificationResponses) == 0 {
		return nil, fmt.Errorf("%w: clarification responses missing", domain.ErrInvalidState)
	}

	claimed := *gen
	claimed.Status = domain.StatusConfirmed
	if err := o.gens.Update(ctx, &claimed, version); err != nil {
		return nil, err
	}

	if claimed.ExternalJobID == "" {
		return o.dispatch(ctx, &claimed)
	}
	return o.confirmExisting(ctx, &claimed)
}

func (o *Orchestrator) dispatch(ctx context.Context, gen *domain.Generation) (*domain.Generation, error) {
	res, err := o.worker.Dispatch(ctx, domain.DispatchRequest{
		GenerationID:           gen.ID,
		MediaType:              gen.MediaType,
		Provider:               gen.Provider,
		Model:                  gen.Model,
		Prompt:                 gen.Prompt,
		Parameters:             gen.Parameters,
		ClarificationResponses: gen.ClarificationResponses,
	})
	if err != nil {
		o.revertClaim(ctx, gen)
		return nil, err
	}

	next := *gen
	next.ExternalJobID = res.JobID
	if res.ClarificationRequired {
		// Worker wants more input before it will run the job: hand the
		// record back to the clarification step with the worker's questions.
		next.Status = domain.StatusPendingClarification
		next.ClarificationQuestions = res.ClarificationQuestions
	} else {
		next.Status = domain.StatusQueued
	}
	if err := o.gens.Update(ctx, &next, gen.Version); err != nil {
		return nil, err
	}
	o.logger.Info().
		Str("generation_id", next.ID).
		Str("job_id", next.ExternalJobID).
		Str("status", string(next.Status)).
		Msg("orchestrator: dispatched to worker")
	o.notifyStatus(ctx, &next)
	if next.Status == domain.StatusQueued {
		o.bumpCounters(ctx, map[string]int{"dispatched": 1})
	}
	return &next, nil
}

func (o *Orchestrator) confirmExisting(ctx context.Context, gen *domain.Generation) (*domain.Generation, error) {
	if _, err := o.worker.Confirm(ctx, gen.ExternalJobID); err != nil {
		o.revertClaim(ctx, gen)
		return nil, err
	}
	next := *gen
	next.Status = domain.StatusQueued
	if err := o.gens.Update(ctx, &next, gen.Version); err != nil {
		return nil, err
	}
	o.notifyStatus(ctx, &next)
	o.bumpCounters(ctx, map[string]int{"dispatched": 1})
	return &next, nil
}

// revertClaim returns a claimed record to pending_confirmation after a failed
// worker call so the request stays explicitly retryable.
func (o *Orchestrator) revertClaim(ctx context.Context, gen *domain.Generation) {
	reverted := *gen
	reverted.Status = domain.StatusPendingConfirmation
	if err := o.gens.Update(ctx, &reverted, gen.Version); err != nil {
		o.logger.Error().Err(err).
			Str("generation_id", gen.ID).
			Msg("orchestrator: failed to revert claim after dispatch failure")
	}
}

// Cancel moves a non-terminal record to cancelled. The local transition is
// authoritative; the out-of-band cancel request to the worker is best-effort
// and its failure is only logged.
func (o *Orchestrator) Cancel(ctx context.Context, id string, version int64) (*domain.Generation, error) {
	gen, err := o.gens.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if gen.Status.Terminal() {
		return nil, fmt.Errorf("%w: already %s", domain.ErrInvalidState, gen.Status)
	}

	next := *gen
	next.Status = domain.StatusCancelled
	if err := o.gens.Update(ctx, &next, version); err != nil {
		return nil, err
	}

	if next.ExternalJobID != "" {
		if err := o.worker.Cancel(ctx, next.ExternalJobID); err != nil {
			o.logger.Warn().Err(err).
				Str("generation_id", next.ID).
				Str("job_id", next.ExternalJobID).
				Msg("orchestrator: best-effort remote cancel failed")
		}
	}
	o.notifyStatus(ctx, &next)
	o.bumpCounters(ctx, map[string]int{"cancelled": 1})
	return &next, nil
}

// Poll pulls the worker's current status for a dispatched record and feeds it
// through Reconcile. When the worker is unreachable the last-known local
// record is returned together with the error so callers never block on
// worker availability.
func (o *Orchestrator) Poll(ctx context.Context, id string) (*domain.Generation, error) {
	gen, err := o.gens.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if gen.Status.Terminal() || gen.ExternalJobID == "" {
		return gen, nil
	}
	report, err := o.worker.QueryStatus(ctx, gen.ExternalJobID)
	if err != nil {
		return gen, err
	}
	return o.Reconcile(ctx, IncomingUpdate{
		GenerationID: gen.ID,
		JobID:        gen.ExternalJobID,
		Status:       report.Status,
		Progress:     report.Progress,
		Result:       report.Result,
		ErrorMessage: report.Error,
	})
}

// notifyStatus posts the rendered status message into the conversation. The
// locale captured at create time wins so webhook and poll driven updates,
// which arrive on contexts without a request locale, still render in the
// requester's language.
func (o *Orchestrator) notifyStatus(ctx context.Context, gen *domain.Generation) {
	locale := gen.Locale
	if locale == "" {
		locale = middleware.LocaleFromContext(ctx)
	}
	body, kind := o.renderer.StatusMessage(locale, gen)
	metadata := map[string]any{
		"generation_id": gen.ID,
		"status":        string(gen.Status),
	}
	if gen.Progress > 0 {
		metadata["progress"] = gen.Progress
	}
	if err := o.sink.Post(ctx, gen.ConversationID, body, kind, metadata); err != nil {
		o.logger.Warn().Err(err).
			Str("generation_id", gen.ID).
			Msg("orchestrator: notification failed after status commit")
	}
}

func (o *Orchestrator) bumpCounters(ctx context.Context, counters map[string]int) {
	if o.analytics == nil {
		return
	}
	day := time.Now().UTC().Format("2006-01-02")
	if err := o.analytics.IncrementCounters(ctx, day, counters); err != nil {
		o.logger.Warn().Err(err).Msg("orchestrator: analytics increment failed")
	}
}

func (o *Orchestrator) terminalCounters(ctx context.Context, gen *domain.Generation) {
	switch gen.Status {
	case domain.StatusCompleted:
		if gen.MediaType == domain.MediaTypeAudio {
			o.bumpCounters(ctx, map[string]int{"audio_completed": 1})
		} else {
			o.bumpCounters(ctx, map[string]int{"videos_completed": 1})
		}
	case domain.StatusFailed:
		o.bumpCounters(ctx, map[string]int{"failed": 1})
	case domain.StatusCancelled:
		o.bumpCounters(ctx, map[string]int{"cancelled": 1})
	}
}

func validateCreate(params CreateParams) error {
	if strings.TrimSpace(params.OwnerID) == "" {
		return fmt.Errorf("%w: owner id is required", domain.ErrValidation)
	}
	if strings.TrimSpace(params.ConversationID) == "" {
		return fmt.Errorf("%w: conversation id is required", domain.ErrValidation)
	}
	if strings.TrimSpace(params.SourceMessageID) == "" {
		return fmt.Errorf("%w: source message id is required", domain.ErrValidation)
	}
	if !params.MediaType.Valid() {
		return fmt.Errorf("%w: unsupported media type %q", domain.ErrValidation, params.MediaType)
	}
	if strings.TrimSpace(params.Provider) == "" {
		return fmt.Errorf("%w: provider is required", domain.ErrValidation)
	}
	if strings.TrimSpace(params.Prompt) == "" {
		return fmt.Errorf("%w: prompt is required", domain.ErrValidation)
	}
	return nil
}

func defaultQuestions(media domain.MediaType) []domain.ClarificationQuestion {
	if media == domain.MediaTypeAudio {
		return []domain.ClarificationQuestion{
			{Key: "duration", Question: "How long should the audio be?", Options: []string{"15s", "30s", "60s"}},
			{Key: "style", Question: "What style should the audio have?"},
		}
	}
	return []domain.ClarificationQuestion{
		{Key: "duration", Question: "How long should the video be?", Options: []string{"5s", "10s", "30s"}},
		{Key: "aspect_ratio", Question: "Which aspect ratio do you want?", Options: []string{"16:9", "9:16", "1:1"}},
	}
}

// unchangedQuestions reports whether the incoming follow-up question set is
// identical to what the record already holds.
func unchangedQuestions(current, incoming []domain.ClarificationQuestion) bool {
	return reflect.DeepEqual(current, incoming)
}
