package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"mediagen/internal/domain"
)

type stubExecutor struct {
	tag     pgconn.CommandTag
	execErr error
	rowErr  error
	args    []any
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.args = args
	return s.tag, s.execErr
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return errRow{err: s.rowErr}
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

func TestCreatePersistsLocale(t *testing.T) {
	exec := &stubExecutor{tag: pgconn.NewCommandTag("INSERT 0 1")}
	r := NewGenerationRepository(exec)
	gen := &domain.Generation{
		ID:             "gen-1",
		OwnerID:        "owner-1",
		ConversationID: "conv-1",
		MediaType:      domain.MediaTypeVideo,
		Prompt:         "a cat surfing a wave",
		Locale:         "id",
		Status:         domain.StatusPendingClarification,
	}

	if err := r.Create(context.Background(), gen); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(exec.args) != 12 {
		t.Fatalf("args = %d, want 12", len(exec.args))
	}
	if got, ok := exec.args[8].(string); !ok || got != "id" {
		t.Fatalf("expected locale arg, got %T %v", exec.args[8], exec.args[8])
	}
}

func TestUpdateVersionConflict(t *testing.T) {
	exec := &stubExecutor{tag: pgconn.NewCommandTag("UPDATE 0")}
	r := NewGenerationRepository(exec)
	gen := &domain.Generation{ID: "gen-1", Status: domain.StatusQueued, Version: 3}

	err := r.Update(context.Background(), gen, 3)
	if !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("err = %v, want ErrVersionConflict", err)
	}
	if gen.Version != 3 {
		t.Fatalf("version mutated to %d on conflict", gen.Version)
	}
}

func TestUpdateBumpsVersion(t *testing.T) {
	exec := &stubExecutor{tag: pgconn.NewCommandTag("UPDATE 1")}
	r := NewGenerationRepository(exec)
	gen := &domain.Generation{
		ID:                     "gen-1",
		Status:                 domain.StatusQueued,
		ClarificationResponses: map[string]string{"duration": "10s"},
		Version:                3,
	}

	if err := r.Update(context.Background(), gen, 3); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if gen.Version != 4 {
		t.Fatalf("version = %d, want 4", gen.Version)
	}
	if len(exec.args) != 9 {
		t.Fatalf("args = %d, want 9", len(exec.args))
	}
	if got, ok := exec.args[1].(int64); !ok || got != 3 {
		t.Fatalf("expected version arg 3, got %T %v", exec.args[1], exec.args[1])
	}
}

func TestGetByIDNotFound(t *testing.T) {
	exec := &stubExecutor{rowErr: pgx.ErrNoRows}
	r := NewGenerationRepository(exec)

	_, err := r.GetByID(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
