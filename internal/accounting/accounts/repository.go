package accounts

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// TxRepository exposes transactional operations on the chart, tax categories
// and opening balances. Its reads run on the transaction's connection.
type TxRepository interface {
	LockBusiness(ctx context.Context, businessID uuid.UUID) error
	DeleteOpeningBalances(ctx context.Context, businessID uuid.UUID) error
	InsertOpeningBalances(ctx context.Context, balances []AccountBalance) error

	GetBusiness(ctx context.Context, id uuid.UUID) (Business, error)
	UpdateBusinessSettings(ctx context.Context, b Business) (Business, error)
	ListAccounts(ctx context.Context, businessID uuid.UUID, activeOnly bool) ([]Account, error)
	FindAccounts(ctx context.Context, businessID uuid.UUID, ids []uuid.UUID) ([]Account, error)
	FindAccountsByCode(ctx context.Context, businessID uuid.UUID, codes []string) ([]Account, error)
	InsertAccount(ctx context.Context, a Account) (Account, error)
	UpdateAccount(ctx context.Context, a Account) (Account, error)
	FindTaxCategories(ctx context.Context, ids []uuid.UUID) ([]TaxCategory, error)
	FindTaxCategoriesByCode(ctx context.Context, codes []string) ([]TaxCategory, error)
	InsertMissingTaxCategories(ctx context.Context, categories []TaxCategory) error
}

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Reader runs chart, tax category and settings lookups. Bound to a pgx.Tx it
// reads on the transaction's connection.
type Reader struct {
	q Querier
}

// NewReader binds a Reader to a pool or an open transaction.
func NewReader(q Querier) *Reader {
	return &Reader{q: q}
}

// Repository persists accounts, tax categories and business settings.
type Repository struct {
	*Reader
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{Reader: NewReader(pool), pool: pool}
}

type txRepository struct {
	*Reader
	tx pgx.Tx
}

// WithTx executes fn within a transaction serialized by the business row lock.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("accounts repository not initialised")
	}
	return db.WithLockedTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{Reader: NewReader(tx), tx: tx})
	})
}

const businessColumns = `id, name, accounting_mode, vat_payable_account_id, vat_receivable_account_id, fiscal_year_start_month, created_at, updated_at`

func scanBusiness(row pgx.Row) (Business, error) {
	var b Business
	err := row.Scan(&b.ID, &b.Name, &b.AccountingMode, &b.VATPayableAccountID, &b.VATReceivableAccountID, &b.FiscalYearStartMonth, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

// GetBusiness loads a business and its settings.
func (r *Reader) GetBusiness(ctx context.Context, id uuid.UUID) (Business, error) {
	b, err := scanBusiness(r.q.QueryRow(ctx, `SELECT `+businessColumns+` FROM businesses WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Business{}, shared.NotFound("business", id)
	}
	return b, err
}

// InsertBusiness creates a business row.
func (r *Repository) InsertBusiness(ctx context.Context, b Business) (Business, error) {
	return scanBusiness(r.pool.QueryRow(ctx, `INSERT INTO businesses
(id, name, accounting_mode, fiscal_year_start_month) VALUES ($1,$2,$3,$4)
RETURNING `+businessColumns, b.ID, b.Name, b.AccountingMode, b.FiscalYearStartMonth))
}

// UpdateBusinessSettings stores the mutable settings of a business.
func (r *Repository) UpdateBusinessSettings(ctx context.Context, b Business) (Business, error) {
	return updateBusiness(ctx, r.pool, b)
}

func (r *txRepository) UpdateBusinessSettings(ctx context.Context, b Business) (Business, error) {
	return updateBusiness(ctx, r.tx, b)
}

func updateBusiness(ctx context.Context, q Querier, b Business) (Business, error) {
	updated, err := scanBusiness(q.QueryRow(ctx, `UPDATE businesses
SET name=$2, accounting_mode=$3, vat_payable_account_id=$4, vat_receivable_account_id=$5, fiscal_year_start_month=$6, updated_at=NOW()
WHERE id=$1 RETURNING `+businessColumns, b.ID, b.Name, b.AccountingMode, b.VATPayableAccountID, b.VATReceivableAccountID, b.FiscalYearStartMonth))
	if errors.Is(err, pgx.ErrNoRows) {
		return Business{}, shared.NotFound("business", b.ID)
	}
	return updated, err
}

// ListBusinessIDs returns every business id, used by background jobs.
func (r *Reader) ListBusinessIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.q.Query(ctx, `SELECT id FROM businesses ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

const accountColumns = `id, business_id, code, name, type, tax_category_id, is_active, created_at, updated_at`

func collectAccounts(rows pgx.Rows, err error) ([]Account, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.BusinessID, &a.Code, &a.Name, &a.Type, &a.TaxCategoryID, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// ListAccounts returns the chart of accounts ordered by code.
func (r *Reader) ListAccounts(ctx context.Context, businessID uuid.UUID, activeOnly bool) ([]Account, error) {
	return collectAccounts(r.q.Query(ctx, `SELECT `+accountColumns+` FROM accounts
WHERE business_id=$1 AND ($2 = false OR is_active) ORDER BY code`, businessID, activeOnly))
}

// FindAccounts returns the accounts of the business among ids.
func (r *Reader) FindAccounts(ctx context.Context, businessID uuid.UUID, ids []uuid.UUID) ([]Account, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return collectAccounts(r.q.Query(ctx, `SELECT `+accountColumns+` FROM accounts
WHERE business_id=$1 AND id = ANY($2)`, businessID, ids))
}

// FindAccountsByCode returns the accounts of the business matching codes.
func (r *Reader) FindAccountsByCode(ctx context.Context, businessID uuid.UUID, codes []string) ([]Account, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	return collectAccounts(r.q.Query(ctx, `SELECT `+accountColumns+` FROM accounts
WHERE business_id=$1 AND code = ANY($2)`, businessID, codes))
}

const taxCategoryColumns = `id, code, name, rate::text`

func collectTaxCategories(rows pgx.Rows, err error) ([]TaxCategory, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var categories []TaxCategory
	for rows.Next() {
		var c TaxCategory
		var rate string
		if err := rows.Scan(&c.ID, &c.Code, &c.Name, &rate); err != nil {
			return nil, err
		}
		if err := c.Rate.UnmarshalText([]byte(rate)); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// FindTaxCategories loads the tax categories among ids.
func (r *Reader) FindTaxCategories(ctx context.Context, ids []uuid.UUID) ([]TaxCategory, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return collectTaxCategories(r.q.Query(ctx, `SELECT `+taxCategoryColumns+` FROM tax_categories WHERE id = ANY($1)`, ids))
}

// FindTaxCategoriesByCode loads the tax categories among codes.
func (r *Reader) FindTaxCategoriesByCode(ctx context.Context, codes []string) ([]TaxCategory, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	return collectTaxCategories(r.q.Query(ctx, `SELECT `+taxCategoryColumns+` FROM tax_categories WHERE code = ANY($1)`, codes))
}

// ListTaxCategories returns every tax category ordered by code.
func (r *Reader) ListTaxCategories(ctx context.Context) ([]TaxCategory, error) {
	return collectTaxCategories(r.q.Query(ctx, `SELECT `+taxCategoryColumns+` FROM tax_categories ORDER BY code`))
}

// UpdateTaxCategoryRate stores a new rate for one category.
func (r *Repository) UpdateTaxCategoryRate(ctx context.Context, id uuid.UUID, rate decimal.Decimal) (TaxCategory, error) {
	categories, err := collectTaxCategories(r.pool.Query(ctx, `UPDATE tax_categories SET rate=$2::numeric
WHERE id=$1 RETURNING `+taxCategoryColumns, id, rate.String()))
	if err != nil {
		return TaxCategory{}, err
	}
	if len(categories) == 0 {
		return TaxCategory{}, shared.NotFound("tax category", id)
	}
	return categories[0], nil
}

// ListOpeningBalances returns stored opening balances of the business.
func (r *Reader) ListOpeningBalances(ctx context.Context, businessID uuid.UUID) ([]AccountBalance, error) {
	rows, err := r.q.Query(ctx, `SELECT business_id, account_id, amount FROM account_balances WHERE business_id=$1`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var balances []AccountBalance
	for rows.Next() {
		var b AccountBalance
		if err := rows.Scan(&b.BusinessID, &b.AccountID, &b.Amount); err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
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

func (r *txRepository) DeleteOpeningBalances(ctx context.Context, businessID uuid.UUID) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM account_balances WHERE business_id=$1`, businessID)
	return err
}

func (r *txRepository) InsertOpeningBalances(ctx context.Context, balances []AccountBalance) error {
	if len(balances) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, b := range balances {
		batch.Queue(`INSERT INTO account_balances (business_id, account_id, amount) VALUES ($1,$2,$3)`, b.BusinessID, b.AccountID, b.Amount)
	}
	return r.tx.SendBatch(ctx, batch).Close()
}

// InsertMissingTaxCategories creates the categories whose code is not taken yet.
// Existing rows keep their rate.
func (r *txRepository) InsertMissingTaxCategories(ctx context.Context, categories []TaxCategory) error {
	if len(categories) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, c := range categories {
		batch.Queue(`INSERT INTO tax_categories (id, code, name, rate) VALUES ($1,$2,$3,$4::numeric)
ON CONFLICT (code) DO NOTHING`, c.ID, c.Code, c.Name, c.Rate.String())
	}
	return r.tx.SendBatch(ctx, batch).Close()
}

func (r *txRepository) InsertAccount(ctx context.Context, a Account) (Account, error) {
	created, err := collectAccounts(r.tx.Query(ctx, `INSERT INTO accounts
(id, business_id, code, name, type, tax_category_id, is_active) VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING `+accountColumns, a.ID, a.BusinessID, a.Code, a.Name, a.Type, a.TaxCategoryID, a.IsActive))
	if err != nil {
		return Account{}, duplicateCode(err, a.Code)
	}
	if len(created) == 0 {
		return Account{}, errors.New("insert account returned no row")
	}
	return created[0], nil
}

func (r *txRepository) UpdateAccount(ctx context.Context, a Account) (Account, error) {
	updated, err := collectAccounts(r.tx.Query(ctx, `UPDATE accounts
SET code=$3, name=$4, type=$5, tax_category_id=$6, is_active=$7, updated_at=NOW()
WHERE business_id=$1 AND id=$2 RETURNING `+accountColumns, a.BusinessID, a.ID, a.Code, a.Name, a.Type, a.TaxCategoryID, a.IsActive))
	if err != nil {
		return Account{}, duplicateCode(err, a.Code)
	}
	if len(updated) == 0 {
		return Account{}, shared.NotFound("account", a.ID)
	}
	return updated[0], nil
}

// duplicateCode maps a unique violation on (business_id, code) to a conflict.
func duplicateCode(err error, code string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return duplicateCodeConflict(code)
	}
	return err
}
