package journals

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/tax"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// Repository persists journal entries and their lines.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// txRepository reads references and period locks on the transaction's own
// connection, so a write never waits on the pool while holding the business lock.
type txRepository struct {
	*accounts.Reader
	*periods.TxGuard
	tx pgx.Tx
}

// WithTx executes fn within a transaction serialized by the business row lock.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("journals repository not initialised")
	}
	return db.WithLockedTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{Reader: accounts.NewReader(tx), TxGuard: periods.NewTxGuard(tx), tx: tx})
	})
}

const entryColumns = `id, business_id, entry_date, COALESCE(description, ''), locked_at, locked_by, created_by, created_at, updated_at`

func scanEntry(row pgx.Row) (JournalEntry, error) {
	var e JournalEntry
	err := row.Scan(&e.ID, &e.BusinessID, &e.EntryDate, &e.Description, &e.LockedAt, &e.LockedBy, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

// GetEntry loads an entry of the business with its lines.
func (r *Repository) GetEntry(ctx context.Context, businessID, entryID uuid.UUID) (JournalEntry, error) {
	entry, err := scanEntry(r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1 AND business_id=$2`, entryID, businessID))
	if errors.Is(err, pgx.ErrNoRows) {
		return JournalEntry{}, shared.NotFound("journal_entry", entryID)
	}
	if err != nil {
		return JournalEntry{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT l.id, l.journal_entry_id, l.line_number, l.account_id, a.code, a.name, l.debit, l.credit, COALESCE(l.memo, ''), l.tax_category_id
FROM journal_entry_lines l
JOIN accounts a ON a.id = l.account_id
WHERE l.journal_entry_id=$1
ORDER BY l.line_number`, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l JournalLine
		if err := rows.Scan(&l.ID, &l.EntryID, &l.LineNumber, &l.AccountID, &l.AccountCode, &l.AccountName, &l.Debit, &l.Credit, &l.Memo, &l.TaxCategoryID); err != nil {
			return JournalEntry{}, err
		}
		entry.Lines = append(entry.Lines, l)
	}
	return entry, rows.Err()
}

// ListRecent returns the latest entries by date with totals.
func (r *Repository) ListRecent(ctx context.Context, businessID uuid.UUID, limit int) ([]EntrySummary, error) {
	rows, err := r.pool.Query(ctx, `SELECT e.id, e.entry_date, COALESCE(e.description, ''),
  COALESCE(SUM(l.debit), 0), COALESCE(SUM(l.credit), 0), COUNT(l.id), e.locked_at, e.created_at
FROM journal_entries e
LEFT JOIN journal_entry_lines l ON l.journal_entry_id = e.id
WHERE e.business_id=$1
GROUP BY e.id
ORDER BY e.entry_date DESC, e.created_at DESC
LIMIT $2`, businessID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []EntrySummary
	for rows.Next() {
		var s EntrySummary
		if err := rows.Scan(&s.ID, &s.EntryDate, &s.Description, &s.TotalDebit, &s.TotalCredit, &s.LineCount, &s.LockedAt, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.IsLocked = s.LockedAt != nil
		out = append(out, s)
	}
	return out, rows.Err()
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

func (r *txRepository) GetEntryForUpdate(ctx context.Context, entryID uuid.UUID) (JournalEntry, error) {
	entry, err := scanEntry(r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1 FOR UPDATE`, entryID))
	if errors.Is(err, pgx.ErrNoRows) {
		return JournalEntry{}, shared.NotFound("journal_entry", entryID)
	}
	return entry, err
}

func (r *txRepository) InsertEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error) {
	return scanEntry(r.tx.QueryRow(ctx, `INSERT INTO journal_entries (id, business_id, entry_date, description, created_by)
VALUES ($1,$2,$3,NULLIF($4, ''),$5) RETURNING `+entryColumns, entry.ID, entry.BusinessID, entry.EntryDate, entry.Description, entry.CreatedBy))
}

func (r *txRepository) UpdateEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error) {
	return scanEntry(r.tx.QueryRow(ctx, `UPDATE journal_entries SET entry_date=$2, description=NULLIF($3, ''), updated_at=NOW()
WHERE id=$1 RETURNING `+entryColumns, entry.ID, entry.EntryDate, entry.Description))
}

// ReplaceLines deletes the entry's lines and inserts the new set in one batch.
func (r *txRepository) ReplaceLines(ctx context.Context, entryID uuid.UUID, lines []tax.Line) ([]JournalLine, error) {
	if _, err := r.tx.Exec(ctx, `DELETE FROM journal_entry_lines WHERE journal_entry_id=$1`, entryID); err != nil {
		return nil, err
	}
	batch := &pgx.Batch{}
	out := make([]JournalLine, 0, len(lines))
	for idx, line := range lines {
		jl := JournalLine{
			ID:            uuid.New(),
			EntryID:       entryID,
			LineNumber:    idx + 1,
			AccountID:     line.AccountID,
			Debit:         line.Debit,
			Credit:        line.Credit,
			Memo:          line.Memo,
			TaxCategoryID: line.TaxCategoryID,
		}
		batch.Queue(`INSERT INTO journal_entry_lines (id, journal_entry_id, line_number, account_id, debit, credit, memo, tax_category_id)
VALUES ($1,$2,$3,$4,$5,$6,NULLIF($7, ''),$8)`, jl.ID, jl.EntryID, jl.LineNumber, jl.AccountID, jl.Debit, jl.Credit, jl.Memo, jl.TaxCategoryID)
		out = append(out, jl)
	}
	if err := r.tx.SendBatch(ctx, batch).Close(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *txRepository) DeleteEntry(ctx context.Context, entryID uuid.UUID) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM journal_entry_lines WHERE journal_entry_id=$1`, entryID); err != nil {
		return err
	}
	_, err := r.tx.Exec(ctx, `DELETE FROM journal_entries WHERE id=$1`, entryID)
	return err
}
