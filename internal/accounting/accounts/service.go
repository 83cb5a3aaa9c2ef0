package accounts

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/tax"
	platformshared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// RepositoryPort abstracts account and settings persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetBusiness(ctx context.Context, id uuid.UUID) (Business, error)
	UpdateBusinessSettings(ctx context.Context, b Business) (Business, error)
	ListAccounts(ctx context.Context, businessID uuid.UUID, activeOnly bool) ([]Account, error)
	FindAccounts(ctx context.Context, businessID uuid.UUID, ids []uuid.UUID) ([]Account, error)
	ListOpeningBalances(ctx context.Context, businessID uuid.UUID) ([]AccountBalance, error)
	InsertBusiness(ctx context.Context, b Business) (Business, error)
	ListTaxCategories(ctx context.Context) ([]TaxCategory, error)
	UpdateTaxCategoryRate(ctx context.Context, id uuid.UUID, rate decimal.Decimal) (TaxCategory, error)
}

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log platformshared.AuditLog) error
}

// CacheBumper invalidates derived report caches of a business.
type CacheBumper interface {
	Bump(ctx context.Context, businessID uuid.UUID) error
}

// Service manages the chart of accounts, business settings and opening balances.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	cache  CacheBumper
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the accounts service.
func NewService(repo RepositoryPort, audit AuditPort, cache CacheBumper, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, cache: cache, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// GetBusiness returns the business settings.
func (s *Service) GetBusiness(ctx context.Context, businessID uuid.UUID) (Business, error) {
	b, err := s.repo.GetBusiness(ctx, businessID)
	if err != nil {
		return Business{}, shared.Internal("get business", err)
	}
	return b, nil
}

// ListAccounts returns the chart ordered by type then code.
func (s *Service) ListAccounts(ctx context.Context, businessID uuid.UUID, activeOnly bool) ([]Account, error) {
	accounts, err := s.repo.ListAccounts(ctx, businessID, activeOnly)
	if err != nil {
		return nil, shared.Internal("list accounts", err)
	}
	SortByTypeAndCode(accounts)
	return accounts, nil
}

// SortByTypeAndCode orders accounts the way every report lists them.
func SortByTypeAndCode(accounts []Account) {
	sort.SliceStable(accounts, func(i, j int) bool {
		if accounts[i].Type.Rank() != accounts[j].Type.Rank() {
			return accounts[i].Type.Rank() < accounts[j].Type.Rank()
		}
		return accounts[i].Code < accounts[j].Code
	})
}

// SettingsInput carries a partial settings update; nil fields are left unchanged.
type SettingsInput struct {
	BusinessID             uuid.UUID
	ActorID                uuid.UUID
	Name                   *string
	AccountingMode         *tax.Mode
	VATPayableAccountID    *uuid.UUID
	VATReceivableAccountID *uuid.UUID
	FiscalYearStartMonth   *int
}

// UpdateSettings validates and applies a settings change.
func (s *Service) UpdateSettings(ctx context.Context, in SettingsInput) (Business, error) {
	current, err := s.repo.GetBusiness(ctx, in.BusinessID)
	if err != nil {
		return Business{}, shared.Internal("update settings", err)
	}
	next := current
	if in.Name != nil {
		if *in.Name == "" {
			return Business{}, shared.Malformed("business name must not be empty")
		}
		next.Name = *in.Name
	}
	if in.AccountingMode != nil {
		if !in.AccountingMode.Valid() {
			return Business{}, shared.Malformed("unknown accounting mode %q", *in.AccountingMode)
		}
		next.AccountingMode = *in.AccountingMode
	}
	if in.FiscalYearStartMonth != nil {
		if *in.FiscalYearStartMonth < 1 || *in.FiscalYearStartMonth > 12 {
			return Business{}, shared.Malformed("fiscal year start month must be between 1 and 12")
		}
		next.FiscalYearStartMonth = *in.FiscalYearStartMonth
	}
	var refs []uuid.UUID
	if in.VATPayableAccountID != nil {
		next.VATPayableAccountID = in.VATPayableAccountID
		refs = append(refs, *in.VATPayableAccountID)
	}
	if in.VATReceivableAccountID != nil {
		next.VATReceivableAccountID = in.VATReceivableAccountID
		refs = append(refs, *in.VATReceivableAccountID)
	}
	if err := s.ensureAccountsExist(ctx, in.BusinessID, refs); err != nil {
		return Business{}, err
	}
	updated, err := s.repo.UpdateBusinessSettings(ctx, next)
	if err != nil {
		return Business{}, shared.Internal("update settings", err)
	}
	s.bump(ctx, in.BusinessID)
	s.record(ctx, platformshared.AuditLog{
		BusinessID: in.BusinessID,
		ActorID:    in.ActorID,
		Action:     "business.settings",
		Entity:     "business",
		EntityID:   in.BusinessID.String(),
		Meta: map[string]any{
			"accounting_mode":         string(updated.AccountingMode),
			"fiscal_year_start_month": updated.FiscalYearStartMonth,
		},
	})
	return updated, nil
}

// ListOpeningBalances lists every active account with its opening balance, zero when unset.
func (s *Service) ListOpeningBalances(ctx context.Context, businessID uuid.UUID) ([]OpeningBalanceRow, error) {
	accounts, err := s.ListAccounts(ctx, businessID, true)
	if err != nil {
		return nil, err
	}
	balances, err := s.repo.ListOpeningBalances(ctx, businessID)
	if err != nil {
		return nil, shared.Internal("list opening balances", err)
	}
	amounts := make(map[uuid.UUID]int64, len(balances))
	for _, b := range balances {
		amounts[b.AccountID] = b.Amount
	}
	rows := make([]OpeningBalanceRow, 0, len(accounts))
	for _, a := range accounts {
		rows = append(rows, OpeningBalanceRow{
			AccountID:   a.ID,
			AccountCode: a.Code,
			AccountName: a.Name,
			AccountType: a.Type,
			Amount:      amounts[a.ID],
		})
	}
	return rows, nil
}

// BalanceInput is one opening balance in a replace request.
type BalanceInput struct {
	AccountID uuid.UUID
	Amount    int64
}

// ReplaceBalancesInput replaces every opening balance of a business.
type ReplaceBalancesInput struct {
	BusinessID uuid.UUID
	ActorID    uuid.UUID
	Balances   []BalanceInput
}

// ReplaceOpeningBalances deletes all stored balances and recreates them in one transaction.
func (s *Service) ReplaceOpeningBalances(ctx context.Context, in ReplaceBalancesInput) error {
	seen := make(map[uuid.UUID]struct{}, len(in.Balances))
	ids := make([]uuid.UUID, 0, len(in.Balances))
	balances := make([]AccountBalance, 0, len(in.Balances))
	for _, b := range in.Balances {
		if b.AccountID == uuid.Nil {
			return shared.Malformed("opening balance requires an account")
		}
		if _, dup := seen[b.AccountID]; dup {
			return shared.Malformed("account %s listed twice", b.AccountID)
		}
		seen[b.AccountID] = struct{}{}
		ids = append(ids, b.AccountID)
		balances = append(balances, AccountBalance{BusinessID: in.BusinessID, AccountID: b.AccountID, Amount: b.Amount})
	}
	if err := s.ensureAccountsExist(ctx, in.BusinessID, ids); err != nil {
		return err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockBusiness(ctx, in.BusinessID); err != nil {
			return err
		}
		if err := tx.DeleteOpeningBalances(ctx, in.BusinessID); err != nil {
			return err
		}
		return tx.InsertOpeningBalances(ctx, balances)
	})
	if err != nil {
		return shared.Internal("replace opening balances", err)
	}
	s.bump(ctx, in.BusinessID)
	s.record(ctx, platformshared.AuditLog{
		BusinessID: in.BusinessID,
		ActorID:    in.ActorID,
		Action:     "balances.replace",
		Entity:     "account_balances",
		EntityID:   in.BusinessID.String(),
		Meta:       map[string]any{"count": len(balances)},
	})
	return nil
}

func (s *Service) ensureAccountsExist(ctx context.Context, businessID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := s.repo.FindAccounts(ctx, businessID, ids)
	if err != nil {
		return shared.Internal("find accounts", err)
	}
	known := make(map[uuid.UUID]struct{}, len(found))
	for _, a := range found {
		known[a.ID] = struct{}{}
	}
	var missing []uuid.UUID
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return shared.UnknownReference("account", missing...)
	}
	return nil
}

func (s *Service) bump(ctx context.Context, businessID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx, businessID); err != nil {
		s.logger.Warn("bump report cache", slog.String("business_id", businessID.String()), slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, log platformshared.AuditLog) {
	if s.audit == nil {
		return
	}
	log.At = s.now()
	_ = s.audit.Record(ctx, log)
}
