package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"mediagen/internal/domain"
)

// IncomingUpdate is a status report from the outside world, either a webhook
// delivery or a polled worker status. JobID and GenerationID are alternative
// lookup keys; at least one must be set.
type IncomingUpdate struct {
	GenerationID           string
	JobID                  string
	Status                 domain.GenerationStatus
	Progress               *int
	Result                 *domain.GenerationResult
	ErrorMessage           string
	ClarificationQuestions []domain.ClarificationQuestion
}

// reconcileAttempts bounds the retry on a concurrent version conflict. One
// retry is enough: the second read observes the competing write, and a second
// conflict in a row means sustained contention better surfaced to the caller.
const reconcileAttempts = 2

// Reconcile folds an incoming status report into the stored record. Stale and
// duplicate reports are swallowed, progress only moves forward, and a status
// change is committed with a conditional write before exactly one
// notification goes out. Callers receive the post-reconcile record, which for
// ignored reports is simply the current one.
func (o *Orchestrator) Reconcile(ctx context.Context, upd IncomingUpdate) (*domain.Generation, error) {
	if !upd.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, upd.Status)
	}
	if upd.GenerationID == "" && upd.JobID == "" {
		return nil, fmt.Errorf("%w: update carries no lookup key", domain.ErrValidation)
	}
	// A completed record always carries its artifact. A worker that reports
	// completion without one sent a broken payload, not a lifecycle event.
	if upd.Status == domain.StatusCompleted && (upd.Result == nil || upd.Result.ResultURL == "") {
		return nil, fmt.Errorf("%w: completed report missing result", domain.ErrValidation)
	}

	var lastErr error
	for attempt := 0; attempt < reconcileAttempts; attempt++ {
		gen, err := o.resolve(ctx, upd)
		if err != nil {
			return nil, err
		}

		outcome, next := o.plan(gen, upd)
		switch outcome {
		case planIgnore:
			return gen, nil
		case planMerge:
			if err := o.gens.Update(ctx, next, gen.Version); err != nil {
				if errors.Is(err, domain.ErrVersionConflict) {
					lastErr = err
					continue
				}
				return nil, err
			}
			return next, nil
		case planAdvance:
			if err := o.gens.Update(ctx, next, gen.Version); err != nil {
				if errors.Is(err, domain.ErrVersionConflict) {
					lastErr = err
					continue
				}
				return nil, err
			}
			o.logger.Info().
				Str("generation_id", next.ID).
				Str("from", string(gen.Status)).
				Str("to", string(next.Status)).
				Msg("orchestrator: reconciled status change")
			o.notifyStatus(ctx, next)
			o.terminalCounters(ctx, next)
			return next, nil
		}
	}
	return nil, fmt.Errorf("%w: %v", domain.ErrReconcileConflict, lastErr)
}

type planOutcome int

const (
	planIgnore planOutcome = iota
	planMerge
	planAdvance
)

// plan decides what an incoming report means for the current record without
// touching storage. It returns the outcome plus the candidate record to write
// for merge and advance outcomes.
func (o *Orchestrator) plan(gen *domain.Generation, upd IncomingUpdate) (planOutcome, *domain.Generation) {
	if gen.Status.Terminal() {
		o.logger.Debug().
			Str("generation_id", gen.ID).
			Str("incoming", string(upd.Status)).
			Msg("orchestrator: update for terminal record ignored")
		return planIgnore, nil
	}

	// A remote cancellation is a terminal transition from any live state and
	// sits outside the rank ladder.
	if upd.Status == domain.StatusCancelled {
		next := *gen
		next.Status = domain.StatusCancelled
		o.adoptJobID(&next, upd)
		return planAdvance, &next
	}

	incomingRank, ok := upd.Status.Rank()
	if !ok {
		return planIgnore, nil
	}
	currentRank := gen.Rank()

	if incomingRank < currentRank {
		o.logger.Warn().
			Str("generation_id", gen.ID).
			Str("current", string(gen.Status)).
			Str("incoming", string(upd.Status)).
			Msg("orchestrator: out-of-order update rejected")
		return planIgnore, nil
	}

	if incomingRank == currentRank {
		return o.planMergeSameRank(gen, upd)
	}

	next := *gen
	next.Status = upd.Status
	o.adoptJobID(&next, upd)
	o.applyProgress(&next, upd.Progress)
	switch upd.Status {
	case domain.StatusCompleted:
		next.Progress = 100
		next.Result = upd.Result
		next.ErrorMessage = ""
	case domain.StatusFailed:
		next.ErrorMessage = upd.ErrorMessage
		next.Result = nil
	}
	return planAdvance, &next
}

// planMergeSameRank folds a same-rank report into the record: progress moves
// forward, a worker follow-up replaces the clarification questions, and a
// byte-for-byte duplicate becomes a no-op.
func (o *Orchestrator) planMergeSameRank(gen *domain.Generation, upd IncomingUpdate) (planOutcome, *domain.Generation) {
	next := *gen
	changed := false

	if gen.Status == domain.StatusPendingClarification && upd.Status == domain.StatusPendingClarification &&
		len(upd.ClarificationQuestions) > 0 && !unchangedQuestions(gen.ClarificationQuestions, upd.ClarificationQuestions) {
		next.ClarificationQuestions = upd.ClarificationQuestions
		next.ClarificationResponses = nil
		changed = true
	}

	if upd.Progress != nil {
		p, ok := o.validProgress(gen.ID, *upd.Progress)
		if ok && p > next.Progress {
			next.Progress = p
			changed = true
		}
	}

	if next.ExternalJobID == "" && upd.JobID != "" {
		next.ExternalJobID = upd.JobID
		changed = true
	}

	if !changed {
		return planIgnore, nil
	}
	return planMerge, &next
}

func (o *Orchestrator) adoptJobID(gen *domain.Generation, upd IncomingUpdate) {
	if gen.ExternalJobID == "" && upd.JobID != "" {
		gen.ExternalJobID = upd.JobID
	}
}

func (o *Orchestrator) applyProgress(gen *domain.Generation, progress *int) {
	if progress == nil {
		return
	}
	p, ok := o.validProgress(gen.ID, *progress)
	if ok && p > gen.Progress {
		gen.Progress = p
	}
}

func (o *Orchestrator) validProgress(genID string, p int) (int, bool) {
	if p < 0 || p > 100 {
		o.logger.Warn().
			Str("generation_id", genID).
			Int("progress", p).
			Msg("orchestrator: progress outside valid range ignored")
		return 0, false
	}
	return p, true
}

// resolve looks the record up by job id first and falls back to the
// generation id, so early webhooks that race the dispatch commit still find
// the record.
func (o *Orchestrator) resolve(ctx context.Context, upd IncomingUpdate) (*domain.Generation, error) {
	if upd.JobID != "" {
		gen, err := o.gens.GetByExternalJobID(ctx, upd.JobID)
		if err == nil {
			return gen, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	if upd.GenerationID != "" {
		return o.gens.GetByID(ctx, upd.GenerationID)
	}
	return nil, domain.ErrNotFound
}
