package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LockBusiness takes the row lock on a business. Every transaction that
// changes journal entries or closing periods of the business acquires it
// first, so writes and period closes for one business run one at a time.
func LockBusiness(ctx context.Context, tx pgx.Tx, businessID uuid.UUID) (bool, error) {
	var id uuid.UUID
	err := tx.QueryRow(ctx, `SELECT id FROM businesses WHERE id=$1 FOR UPDATE`, businessID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("platform/db: lock business: %w", err)
	}
	return true, nil
}
