package reports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads aggregates from persisted journal lines.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a report repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SumByAccount totals debits and credits per account over [from, until).
func (r *Repository) SumByAccount(ctx context.Context, businessID uuid.UUID, from, until time.Time) (map[uuid.UUID]Sums, error) {
	rows, err := r.pool.Query(ctx, `SELECT l.account_id, COALESCE(SUM(l.debit), 0), COALESCE(SUM(l.credit), 0)
FROM journal_entry_lines l
JOIN journal_entries e ON e.id = l.journal_entry_id
WHERE e.business_id = $1 AND e.entry_date >= $2 AND e.entry_date < $3
GROUP BY l.account_id`, businessID, from, until)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uuid.UUID]Sums)
	for rows.Next() {
		var id uuid.UUID
		var s Sums
		if err := rows.Scan(&id, &s.Debit, &s.Credit); err != nil {
			return nil, err
		}
		out[id] = s
	}
	return out, rows.Err()
}

// LedgerLines returns every line of the business with its entry and account.
func (r *Repository) LedgerLines(ctx context.Context, businessID uuid.UUID) ([]LedgerLine, error) {
	rows, err := r.pool.Query(ctx, `SELECT l.id, l.line_number, e.id, e.entry_date, e.created_at, COALESCE(e.description, ''), e.locked_at IS NOT NULL,
  a.id, a.code, a.name, a.type, a.is_active, l.debit, l.credit, COALESCE(l.memo, '')
FROM journal_entry_lines l
JOIN journal_entries e ON e.id = l.journal_entry_id
JOIN accounts a ON a.id = l.account_id
WHERE e.business_id = $1
ORDER BY a.code, e.entry_date, e.created_at, l.line_number`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LedgerLine
	for rows.Next() {
		var l LedgerLine
		if err := rows.Scan(&l.LineID, &l.LineNumber, &l.EntryID, &l.EntryDate, &l.EntryCreatedAt, &l.Description, &l.EntryLocked,
			&l.AccountID, &l.AccountCode, &l.AccountName, &l.AccountType, &l.AccountActive, &l.Debit, &l.Credit, &l.Memo); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// CountEntries counts entries dated in [from, until).
func (r *Repository) CountEntries(ctx context.Context, businessID uuid.UUID, from, until time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM journal_entries WHERE business_id = $1 AND entry_date >= $2 AND entry_date < $3`,
		businessID, from, until).Scan(&n)
	return n, err
}

// UnbalancedEntries returns ids of entries whose lines do not balance.
func (r *Repository) UnbalancedEntries(ctx context.Context, businessID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT e.id
FROM journal_entries e
LEFT JOIN journal_entry_lines l ON l.journal_entry_id = e.id
WHERE e.business_id = $1
GROUP BY e.id
HAVING COALESCE(SUM(l.debit), 0) <> COALESCE(SUM(l.credit), 0) OR COUNT(l.id) < 2`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
