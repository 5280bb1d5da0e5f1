package persistent

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/andreyxaxa/Event-Pseudonymizer/internal/entity"
	"github.com/andreyxaxa/Event-Pseudonymizer/pkg/postgres"
	"github.com/andreyxaxa/Event-Pseudonymizer/pkg/types/errs"
	"github.com/jackc/pgx/v5"
)

const (
	// Table
	pseudonymsTable = "user_pseudonyms"

	// Columns
	rawIDColumn     = "raw_id"
	pseudonymColumn = "pseudonym"
	createdAtColumn = "created_at"
)

type PseudonymRepo struct {
	*postgres.Postgres
}

func NewPseudonymRepo(pg *postgres.Postgres) *PseudonymRepo {
	return &PseudonymRepo{pg}
}

func (r *PseudonymRepo) Get(ctx context.Context, rawID string) (string, error) {
	sql, args, err := r.Builder.
		Select(pseudonymColumn).
		From(pseudonymsTable).
		Where(squirrel.Eq{rawIDColumn: rawID}).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("PseudonymRepo - Get - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	var pseudonym string
	err = executor.QueryRow(ctx, sql, args...).Scan(&pseudonym)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("PseudonymRepo - Get: %w", errs.ErrRecordNotFound)
		}
		return "", fmt.Errorf("PseudonymRepo - Get - executor.QueryRow.Scan: %w", err)
	}

	return pseudonym, nil
}

// Put inserts the mapping unless raw_id is already present; the first
// committed pseudonym is never overwritten.
func (r *PseudonymRepo) Put(ctx context.Context, mapping entity.PseudonymMapping) error {
	sql, args, err := r.Builder.
		Insert(pseudonymsTable).
		Columns(
			rawIDColumn,
			pseudonymColumn,
			createdAtColumn,
		).
		Values(
			mapping.RawID,
			mapping.Pseudonym,
			mapping.CreatedAt,
		).
		Suffix("ON CONFLICT (" + rawIDColumn + ") DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("PseudonymRepo - Put - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	_, err = executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("PseudonymRepo - Put - executor.Exec: %w", err)
	}

	return nil
}
