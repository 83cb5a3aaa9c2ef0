package periods

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// TxRepository exposes transactional operations used by close and reopen.
type TxRepository interface {
	LockBusiness(ctx context.Context, businessID uuid.UUID) error
	FindClosedContaining(ctx context.Context, businessID uuid.UUID, date time.Time) (*ClosingPeriod, error)
	ListClosedByType(ctx context.Context, businessID uuid.UUID, periodType PeriodType) ([]ClosingPeriod, error)
	FindByRange(ctx context.Context, businessID uuid.UUID, periodType PeriodType, start, end time.Time) (*ClosingPeriod, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (ClosingPeriod, error)
	Insert(ctx context.Context, p ClosingPeriod) (ClosingPeriod, error)
	Update(ctx context.Context, p ClosingPeriod) (ClosingPeriod, error)
	LockEntries(ctx context.Context, businessID uuid.UUID, start, end, at time.Time, actorID *uuid.UUID) (int64, error)
	LockUnflaggedEntries(ctx context.Context, businessID uuid.UUID, start, end, at time.Time, actorID *uuid.UUID) (int64, error)
	UnlockEntries(ctx context.Context, businessID uuid.UUID, start, end time.Time) (int64, error)
	ListClosed(ctx context.Context, businessID uuid.UUID) ([]ClosingPeriod, error)
	UnlockOutsideClosed(ctx context.Context, businessID uuid.UUID) (int64, error)
}

// Repository persists closing periods and the entry lock projection.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// TxGuard checks period locks on a caller's open transaction.
type TxGuard struct {
	repo *txRepository
}

// NewTxGuard binds a guard to tx.
func NewTxGuard(tx pgx.Tx) *TxGuard {
	return &TxGuard{repo: &txRepository{tx: tx}}
}

// AssertUnlocked fails with a period-locked conflict when date lies in a closed period.
func (g *TxGuard) AssertUnlocked(ctx context.Context, businessID uuid.UUID, date time.Time) error {
	period, err := g.repo.FindClosedContaining(ctx, businessID, date)
	if err != nil {
		return shared.Internal("check period lock", err)
	}
	return lockedError(period)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// WithTx executes fn within a transaction serialized by the business row lock.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("periods repository not initialised")
	}
	return db.WithLockedTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const periodColumns = `id, business_id, period_type, start_date, end_date, status, closed_at, closed_by, reopened_at, reopened_by, notes, created_at, updated_at`

func scanPeriod(row pgx.Row) (ClosingPeriod, error) {
	var p ClosingPeriod
	err := row.Scan(&p.ID, &p.BusinessID, &p.PeriodType, &p.StartDate, &p.EndDate, &p.Status, &p.ClosedAt, &p.ClosedBy, &p.ReopenedAt, &p.ReopenedBy, &p.Notes, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func queryPeriods(ctx context.Context, q querier, sql string, args ...any) ([]ClosingPeriod, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ClosingPeriod
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func first(periods []ClosingPeriod, err error) (*ClosingPeriod, error) {
	if err != nil || len(periods) == 0 {
		return nil, err
	}
	p := periods[0]
	return &p, nil
}

const containingSQL = `SELECT ` + periodColumns + ` FROM closing_periods
WHERE business_id=$1 AND status='closed' AND start_date <= $2 AND end_date >= $2
ORDER BY start_date LIMIT 1`

// FindClosedContaining returns the closed period covering date, nil when the date is open.
func (r *Repository) FindClosedContaining(ctx context.Context, businessID uuid.UUID, date time.Time) (*ClosingPeriod, error) {
	return first(queryPeriods(ctx, r.pool, containingSQL, businessID, DateOnly(date)))
}

// ListOverlapping returns closed periods intersecting [start, end].
func (r *Repository) ListOverlapping(ctx context.Context, businessID uuid.UUID, start, end time.Time) ([]ClosingPeriod, error) {
	return queryPeriods(ctx, r.pool, `SELECT `+periodColumns+` FROM closing_periods
WHERE business_id=$1 AND status='closed' AND start_date <= $3 AND end_date >= $2
ORDER BY start_date`, businessID, DateOnly(start), DateOnly(end))
}

// List returns every closing period of the business, most recent first.
func (r *Repository) List(ctx context.Context, businessID uuid.UUID) ([]ClosingPeriod, error) {
	return queryPeriods(ctx, r.pool, `SELECT `+periodColumns+` FROM closing_periods
WHERE business_id=$1 ORDER BY end_date DESC, start_date DESC`, businessID)
}

// LockDrift counts entries whose lock flag disagrees with the closed periods.
type LockDrift struct {
	LockedOutside  int64
	UnlockedInside int64
}

// MeasureLockDrift compares journal entry lock flags with the closed period table.
func (r *Repository) MeasureLockDrift(ctx context.Context, businessID uuid.UUID) (LockDrift, error) {
	var drift LockDrift
	err := r.pool.QueryRow(ctx, `SELECT
  COUNT(*) FILTER (WHERE je.locked_at IS NOT NULL AND cp.id IS NULL),
  COUNT(*) FILTER (WHERE je.locked_at IS NULL AND cp.id IS NOT NULL)
FROM journal_entries je
LEFT JOIN LATERAL (
  SELECT id FROM closing_periods
  WHERE business_id = je.business_id AND status='closed' AND start_date <= je.entry_date AND end_date >= je.entry_date
  LIMIT 1
) cp ON TRUE
WHERE je.business_id=$1`, businessID).Scan(&drift.LockedOutside, &drift.UnlockedInside)
	return drift, err
}

func (r *txRepository) LockBusiness(ctx context.Context, businessID uuid.UUID) error {
	found, err := db.LockBusiness(ctx, r.tx, businessID)
	if err != nil {
		return err
	}
	if !found {
		return shared.NotFound("business", businessID)
	}
	return nil
}

func (r *txRepository) FindClosedContaining(ctx context.Context, businessID uuid.UUID, date time.Time) (*ClosingPeriod, error) {
	return first(queryPeriods(ctx, r.tx, containingSQL, businessID, DateOnly(date)))
}

func (r *txRepository) ListClosedByType(ctx context.Context, businessID uuid.UUID, periodType PeriodType) ([]ClosingPeriod, error) {
	return queryPeriods(ctx, r.tx, `SELECT `+periodColumns+` FROM closing_periods
WHERE business_id=$1 AND period_type=$2 AND status='closed' ORDER BY start_date`, businessID, periodType)
}

func (r *txRepository) FindByRange(ctx context.Context, businessID uuid.UUID, periodType PeriodType, start, end time.Time) (*ClosingPeriod, error) {
	return first(queryPeriods(ctx, r.tx, `SELECT `+periodColumns+` FROM closing_periods
WHERE business_id=$1 AND period_type=$2 AND start_date=$3 AND end_date=$4 FOR UPDATE`, businessID, periodType, DateOnly(start), DateOnly(end)))
}

func (r *txRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (ClosingPeriod, error) {
	p, err := scanPeriod(r.tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM closing_periods WHERE id=$1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return ClosingPeriod{}, shared.NotFound("closing_period", id)
	}
	return p, err
}

func (r *txRepository) Insert(ctx context.Context, p ClosingPeriod) (ClosingPeriod, error) {
	return scanPeriod(r.tx.QueryRow(ctx, `INSERT INTO closing_periods
(id, business_id, period_type, start_date, end_date, status, closed_at, closed_by, reopened_at, reopened_by, notes)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING `+periodColumns,
		p.ID, p.BusinessID, p.PeriodType, p.StartDate, p.EndDate, p.Status, p.ClosedAt, p.ClosedBy, p.ReopenedAt, p.ReopenedBy, p.Notes))
}

func (r *txRepository) Update(ctx context.Context, p ClosingPeriod) (ClosingPeriod, error) {
	return scanPeriod(r.tx.QueryRow(ctx, `UPDATE closing_periods
SET status=$2, closed_at=$3, closed_by=$4, reopened_at=$5, reopened_by=$6, notes=$7, updated_at=NOW()
WHERE id=$1 RETURNING `+periodColumns,
		p.ID, p.Status, p.ClosedAt, p.ClosedBy, p.ReopenedAt, p.ReopenedBy, p.Notes))
}

// LockEntries stamps every entry in [start, end], restamping ones already flagged.
func (r *txRepository) LockEntries(ctx context.Context, businessID uuid.UUID, start, end, at time.Time, actorID *uuid.UUID) (int64, error) {
	tag, err := r.tx.Exec(ctx, `UPDATE journal_entries SET locked_at=$4, locked_by=$5, updated_at=NOW()
WHERE business_id=$1 AND entry_date BETWEEN $2 AND $3`, businessID, DateOnly(start), DateOnly(end), at, actorID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// LockUnflaggedEntries flags only entries in [start, end] that carry no lock yet.
func (r *txRepository) LockUnflaggedEntries(ctx context.Context, businessID uuid.UUID, start, end, at time.Time, actorID *uuid.UUID) (int64, error) {
	tag, err := r.tx.Exec(ctx, `UPDATE journal_entries SET locked_at=$4, locked_by=$5, updated_at=NOW()
WHERE business_id=$1 AND entry_date BETWEEN $2 AND $3 AND locked_at IS NULL`, businessID, DateOnly(start), DateOnly(end), at, actorID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *txRepository) UnlockEntries(ctx context.Context, businessID uuid.UUID, start, end time.Time) (int64, error) {
	tag, err := r.tx.Exec(ctx, `UPDATE journal_entries SET locked_at=NULL, locked_by=NULL, updated_at=NOW()
WHERE business_id=$1 AND entry_date BETWEEN $2 AND $3`, businessID, DateOnly(start), DateOnly(end))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *txRepository) ListClosed(ctx context.Context, businessID uuid.UUID) ([]ClosingPeriod, error) {
	return queryPeriods(ctx, r.tx, `SELECT `+periodColumns+` FROM closing_periods
WHERE business_id=$1 AND status='closed' ORDER BY start_date`, businessID)
}

func (r *txRepository) UnlockOutsideClosed(ctx context.Context, businessID uuid.UUID) (int64, error) {
	tag, err := r.tx.Exec(ctx, `UPDATE journal_entries je SET locked_at=NULL, locked_by=NULL, updated_at=NOW()
WHERE je.business_id=$1 AND je.locked_at IS NOT NULL AND NOT EXISTS (
  SELECT 1 FROM closing_periods cp
  WHERE cp.business_id = je.business_id AND cp.status='closed' AND cp.start_date <= je.entry_date AND cp.end_date >= je.entry_date
)`, businessID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
