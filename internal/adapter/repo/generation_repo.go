package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"mediagen/internal/domain"
	"mediagen/internal/infra"
	"mediagen/internal/sqlinline"
)

// GenerationRepositoryPG implements domain.GenerationRepository.
type GenerationRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewGenerationRepository creates a new generation repository backed by PostgreSQL.
func NewGenerationRepository(sql infra.SQLExecutor) *GenerationRepositoryPG {
	return &GenerationRepositoryPG{sql: sql}
}

// Create inserts a new generation record.
func (r *GenerationRepositoryPG) Create(ctx context.Context, gen *domain.Generation) error {
	questions, err := marshalQuestions(gen.ClarificationQuestions)
	if err != nil {
		return err
	}
	_, err = r.sql.Exec(ctx, sqlinline.QInsertGeneration,
		gen.ID,
		gen.OwnerID,
		gen.ConversationID,
		gen.SourceMessageID,
		string(gen.MediaType),
		gen.Provider,
		gen.Model,
		gen.Prompt,
		gen.Locale,
		nullableJSON(gen.Parameters),
		questions,
		string(gen.Status),
	)
	return err
}

// GetByID fetches a generation by its internal identifier.
func (r *GenerationRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Generation, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectGenerationByID, id)
	return scanGeneration(row)
}

// GetByExternalJobID fetches a generation by the worker-assigned job identifier.
func (r *GenerationRepositoryPG) GetByExternalJobID(ctx context.Context, jobID string) (*domain.Generation, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectGenerationByExternalJobID, jobID)
	return scanGeneration(row)
}

// ListByOwner returns the owner's generations, newest first.
func (r *GenerationRepositoryPG) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]domain.Generation, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListGenerationsByOwner, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectGenerations(rows)
}

// ListStale returns dispatched, non-terminal generations that have not been
// updated since the given cutoff. Used by the background reconciler.
func (r *GenerationRepositoryPG) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]domain.Generation, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListStaleGenerations, olderThan, limit)
	if err != nil {
		return nil, err
	}
	return collectGenerations(rows)
}

// Update performs the conditional write guarding every mutation. The row is
// only touched when its stored version equals expectedVersion; otherwise
// domain.ErrVersionConflict is returned and nothing changes.
func (r *GenerationRepositoryPG) Update(ctx context.Context, gen *domain.Generation, expectedVersion int64) error {
	questions, err := marshalQuestions(gen.ClarificationQuestions)
	if err != nil {
		return err
	}
	responses, err := marshalResponses(gen.ClarificationResponses)
	if err != nil {
		return err
	}
	var result []byte
	if gen.Result != nil {
		result, err = json.Marshal(gen.Result)
		if err != nil {
			return fmt.Errorf("repo: encode result: %w", err)
		}
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QUpdateGenerationIfVersion,
		gen.ID,
		expectedVersion,
		gen.ExternalJobID,
		questions,
		responses,
		string(gen.Status),
		gen.Progress,
		result,
		gen.ErrorMessage,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVersionConflict
	}
	gen.Version = expectedVersion + 1
	return nil
}

func scanGeneration(row pgx.Row) (*domain.Generation, error) {
	var gen domain.Generation
	var mediaType, status string
	var parameters, questions, responses, result []byte
	if err := row.Scan(
		&gen.ID,
		&gen.ExternalJobID,
		&gen.OwnerID,
		&gen.ConversationID,
		&gen.SourceMessageID,
		&mediaType,
		&gen.Provider,
		&gen.Model,
		&gen.Prompt,
		&gen.Locale,
		&parameters,
		&questions,
		&responses,
		&status,
		&gen.Progress,
		&result,
		&gen.ErrorMessage,
		&gen.Version,
		&gen.CreatedAt,
		&gen.UpdatedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	gen.MediaType = domain.MediaType(mediaType)
	gen.Status = domain.GenerationStatus(status)
	if len(parameters) > 0 {
		gen.Parameters = append(json.RawMessage(nil), parameters...)
	}
	if len(questions) > 0 {
		if err := json.Unmarshal(questions, &gen.ClarificationQuestions); err != nil {
			return nil, fmt.Errorf("repo: decode clarification questions: %w", err)
		}
	}
	if len(responses) > 0 {
		if err := json.Unmarshal(responses, &gen.ClarificationResponses); err != nil {
			return nil, fmt.Errorf("repo: decode clarification responses: %w", err)
		}
	}
	if len(result) > 0 {
		gen.Result = &domain.GenerationResult{}
		if err := json.Unmarshal(result, gen.Result); err != nil {
			return nil, fmt.Errorf("repo: decode result: %w", err)
		}
	}
	return &gen, nil
}

func collectGenerations(rows pgx.Rows) ([]domain.Generation, error) {
	defer rows.Close()
	var items []domain.Generation
	for rows.Next() {
		gen, err := scanGeneration(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *gen)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func marshalQuestions(questions []domain.ClarificationQuestion) ([]byte, error) {
	if len(questions) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(questions)
	if err != nil {
		return nil, fmt.Errorf("repo: encode clarification questions: %w", err)
	}
	return raw, nil
}

func marshalResponses(responses map[string]string) ([]byte, error) {
	if len(responses) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(responses)
	if err != nil {
		return nil, fmt.Errorf("repo: encode clarification responses: %w", err)
	}
	return raw, nil
}

func nullableJSON(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

var _ domain.GenerationRepository = (*GenerationRepositoryPG)(nil)
