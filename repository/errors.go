package repository

import (
	"context"
	"errors"
	"fmt"

	"raffler/models"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres error codes the repositories translate
const (
	pgUniqueViolation   = "23505"
	pgLockNotAvailable  = "55P03"
	pgQueryCanceled     = "57014"
	pgCheckViolation    = "23514"
	pgForeignKeyViolate = "23503"
)

// translateError maps driver failures onto domain error kinds. Anything it
// does not recognise is wrapped with op and left as an internal error.
func translateError(err error, op string) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return &models.Error{Kind: models.KindConflict, Message: "record already exists", Err: fmt.Errorf("%s: %w", op, err)}
		case pgLockNotAvailable, pgQueryCanceled:
			return models.NewBusy(fmt.Errorf("%s: %w", op, err))
		case pgCheckViolation:
			return &models.Error{Kind: models.KindInvalidArgument, Message: "value violates a constraint", Err: fmt.Errorf("%s: %w", op, err)}
		case pgForeignKeyViolate:
			return &models.Error{Kind: models.KindNotFound, Message: "referenced record does not exist", Err: fmt.Errorf("%s: %w", op, err)}
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return models.NewBusy(fmt.Errorf("%s: %w", op, err))
	}

	return fmt.Errorf("failed to %s: %w", op, err)
}
