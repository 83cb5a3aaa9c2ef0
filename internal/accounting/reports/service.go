package reports

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// ChartReader loads the business settings, chart of accounts and opening balances.
type ChartReader interface {
	GetBusiness(ctx context.Context, id uuid.UUID) (accounts.Business, error)
	ListAccounts(ctx context.Context, businessID uuid.UUID, activeOnly bool) ([]accounts.Account, error)
	ListOpeningBalances(ctx context.Context, businessID uuid.UUID) ([]accounts.AccountBalance, error)
}

// LedgerReader aggregates persisted journal lines.
type LedgerReader interface {
	SumByAccount(ctx context.Context, businessID uuid.UUID, from, until time.Time) (map[uuid.UUID]Sums, error)
	LedgerLines(ctx context.Context, businessID uuid.UUID) ([]LedgerLine, error)
	CountEntries(ctx context.Context, businessID uuid.UUID, from, until time.Time) (int, error)
}

// Service builds ledger reports, caching them per business version.
type Service struct {
	chart  ChartReader
	ledger LedgerReader
	cache  *Cache
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the report service. cache may be nil.
func NewService(chart ChartReader, ledger LedgerReader, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{chart: chart, ledger: ledger, cache: cache, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Business returns the business the reports are built for.
func (s *Service) Business(ctx context.Context, businessID uuid.UUID) (accounts.Business, error) {
	business, err := s.chart.GetBusiness(ctx, businessID)
	if err != nil {
		return accounts.Business{}, shared.Internal("load business", err)
	}
	return business, nil
}

func (s *Service) resolve(ctx context.Context, businessID uuid.UUID, raw string) (Period, error) {
	business, err := s.Business(ctx, businessID)
	if err != nil {
		return Period{}, err
	}
	return ResolveMonthlyPeriod(raw, business.FiscalMonth(), s.now().UTC())
}

// TrialBalance returns the trial balance of the month ("YYYY-MM", empty for current).
func (s *Service) TrialBalance(ctx context.Context, businessID uuid.UUID, month string) (TrialBalance, error) {
	period, err := s.resolve(ctx, businessID, month)
	if err != nil {
		return TrialBalance{}, err
	}
	var out TrialBalance
	err = s.cached(ctx, businessID, &out, func(ctx context.Context) (any, error) {
		return s.buildTrialBalance(ctx, businessID, period)
	}, "tb", period.Key)
	return out, s.wrap("trial balance", err)
}

func (s *Service) buildTrialBalance(ctx context.Context, businessID uuid.UUID, period Period) (TrialBalance, error) {
	chart, err := s.chart.ListAccounts(ctx, businessID, true)
	if err != nil {
		return TrialBalance{}, err
	}
	balances, err := s.chart.ListOpeningBalances(ctx, businessID)
	if err != nil {
		return TrialBalance{}, err
	}
	opening := make(map[uuid.UUID]int64, len(balances))
	for _, b := range balances {
		opening[b.AccountID] = b.Amount
	}
	before, err := s.ledger.SumByAccount(ctx, businessID, period.FiscalYearStart, period.Start)
	if err != nil {
		return TrialBalance{}, err
	}
	current, err := s.ledger.SumByAccount(ctx, businessID, period.Start, period.Until())
	if err != nil {
		return TrialBalance{}, err
	}
	return BuildTrialBalance(period, chart, opening, before, current), nil
}

// BalanceSheet returns the balance sheet at the end of the month.
func (s *Service) BalanceSheet(ctx context.Context, businessID uuid.UUID, month string) (BalanceSheet, error) {
	period, err := s.resolve(ctx, businessID, month)
	if err != nil {
		return BalanceSheet{}, err
	}
	var out BalanceSheet
	err = s.cached(ctx, businessID, &out, func(ctx context.Context) (any, error) {
		tb, err := s.buildTrialBalance(ctx, businessID, period)
		if err != nil {
			return nil, err
		}
		return BuildBalanceSheet(tb), nil
	}, "bs", period.Key)
	return out, s.wrap("balance sheet", err)
}

// IncomeStatement returns the month and fiscal year-to-date results.
func (s *Service) IncomeStatement(ctx context.Context, businessID uuid.UUID, month string) (IncomeStatement, error) {
	period, err := s.resolve(ctx, businessID, month)
	if err != nil {
		return IncomeStatement{}, err
	}
	var out IncomeStatement
	err = s.cached(ctx, businessID, &out, func(ctx context.Context) (any, error) {
		chart, err := s.chart.ListAccounts(ctx, businessID, true)
		if err != nil {
			return nil, err
		}
		current, err := s.ledger.SumByAccount(ctx, businessID, period.Start, period.Until())
		if err != nil {
			return nil, err
		}
		ytd, err := s.ledger.SumByAccount(ctx, businessID, period.FiscalYearStart, period.Until())
		if err != nil {
			return nil, err
		}
		return BuildIncomeStatement(period, chart, current, ytd), nil
	}, "is", period.Key)
	return out, s.wrap("income statement", err)
}

// GeneralLedger returns every account's postings with running balances.
func (s *Service) GeneralLedger(ctx context.Context, businessID uuid.UUID) ([]GeneralLedgerAccount, error) {
	var out []GeneralLedgerAccount
	err := s.cached(ctx, businessID, &out, func(ctx context.Context) (any, error) {
		lines, err := s.ledger.LedgerLines(ctx, businessID)
		if err != nil {
			return nil, err
		}
		return BuildGeneralLedger(lines), nil
	}, "gl")
	return out, s.wrap("general ledger", err)
}

// JournalDetail returns every entry with its lines.
func (s *Service) JournalDetail(ctx context.Context, businessID uuid.UUID) ([]JournalDetailEntry, error) {
	var out []JournalDetailEntry
	err := s.cached(ctx, businessID, &out, func(ctx context.Context) (any, error) {
		lines, err := s.ledger.LedgerLines(ctx, businessID)
		if err != nil {
			return nil, err
		}
		return BuildJournalDetail(lines), nil
	}, "journal")
	return out, s.wrap("journal detail", err)
}

// Dashboard summarises the current month with a six month history.
func (s *Service) Dashboard(ctx context.Context, businessID uuid.UUID) (Dashboard, error) {
	period, err := s.resolve(ctx, businessID, "")
	if err != nil {
		return Dashboard{}, err
	}
	var out Dashboard
	err = s.cached(ctx, businessID, &out, func(ctx context.Context) (any, error) {
		chart, err := s.chart.ListAccounts(ctx, businessID, false)
		if err != nil {
			return nil, err
		}
		types := make(map[uuid.UUID]accounts.AccountType, len(chart))
		for _, a := range chart {
			types[a.ID] = a.Type
		}
		history := make([]MonthTotals, 0, HistoryMonths)
		var current Movement
		for _, month := range trailingMonths(period, HistoryMonths) {
			sums, err := s.ledger.SumByAccount(ctx, businessID, month.Start, month.Until())
			if err != nil {
				return nil, err
			}
			moved := MovementByType(types, sums)
			history = append(history, MonthTotals{Month: month.Key, Revenue: moved.Revenue, Expense: moved.Expense})
			current = moved
		}
		count, err := s.ledger.CountEntries(ctx, businessID, period.Start, period.Until())
		if err != nil {
			return nil, err
		}
		return BuildDashboard(period, current, count, history), nil
	}, "dashboard", period.Key)
	return out, s.wrap("dashboard", err)
}

// Warm builds the current month's reports into the cache.
func (s *Service) Warm(ctx context.Context, businessID uuid.UUID) error {
	if _, err := s.TrialBalance(ctx, businessID, ""); err != nil {
		return err
	}
	if _, err := s.IncomeStatement(ctx, businessID, ""); err != nil {
		return err
	}
	if _, err := s.BalanceSheet(ctx, businessID, ""); err != nil {
		return err
	}
	_, err := s.Dashboard(ctx, businessID)
	return err
}

// cached serves dest from the versioned cache, building at most once per key
// across concurrent callers. Cache failures fall back to a direct build.
func (s *Service) cached(ctx context.Context, businessID uuid.UUID, dest any, build func(context.Context) (any, error), parts ...string) error {
	key, err := s.cache.BuildKey(ctx, businessID, parts...)
	if err != nil {
		s.logger.Warn("report cache key", slog.String("business_id", businessID.String()), slog.Any("error", err))
		value, err := build(ctx)
		if err != nil {
			return err
		}
		return roundTrip(value, dest)
	}
	var (
		built    bool
		value    any
		buildErr error
	)
	loader := func(ctx context.Context) (any, error) {
		built = true
		value, buildErr, _ = singleflightBuild(ctx, key, build)
		return value, buildErr
	}
	err = s.cache.FetchJSON(ctx, key, dest, loader)
	switch {
	case err == nil:
		return nil
	case built && buildErr != nil:
		return buildErr
	case built:
		s.logger.Warn("report cache store", slog.String("key", key), slog.Any("error", err))
		return roundTrip(value, dest)
	case ctx.Err() != nil:
		return ctx.Err()
	}
	s.logger.Warn("report cache fetch", slog.String("key", key), slog.Any("error", err))
	fresh, err := build(ctx)
	if err != nil {
		return err
	}
	return roundTrip(fresh, dest)
}

func (s *Service) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	wrapped := shared.Internal(op, err)
	if !shared.IsValidation(wrapped) && !shared.IsNotFound(wrapped) {
		s.logger.Error(op, slog.Any("error", err))
	}
	return wrapped
}
