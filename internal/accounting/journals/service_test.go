package journals

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/tax"
	platformshared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type memoryLedger struct {
	mu         sync.Mutex
	businesses map[uuid.UUID]accounts.Business
	accounts   map[uuid.UUID]accounts.Account
	categories map[uuid.UUID]accounts.TaxCategory
	entries    map[uuid.UUID]JournalEntry
	guard      PeriodGuard
	txCalls    int
	lockCalls  int
	txReads    int
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{
		businesses: map[uuid.UUID]accounts.Business{},
		accounts:   map[uuid.UUID]accounts.Account{},
		categories: map[uuid.UUID]accounts.TaxCategory{},
		entries:    map[uuid.UUID]JournalEntry{},
	}
}

func (m *memoryLedger) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txCalls++
	snapshot := make(map[uuid.UUID]JournalEntry, len(m.entries))
	for k, v := range m.entries {
		snapshot[k] = v
	}
	if err := fn(ctx, &memoryTx{ledger: m}); err != nil {
		m.entries = snapshot
		return err
	}
	return nil
}

func (m *memoryLedger) GetEntry(_ context.Context, businessID, entryID uuid.UUID) (JournalEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[entryID]
	if !ok || entry.BusinessID != businessID {
		return JournalEntry{}, shared.NotFound("journal_entry", entryID)
	}
	return entry, nil
}

func (m *memoryLedger) ListRecent(_ context.Context, businessID uuid.UUID, limit int) ([]EntrySummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []EntrySummary
	for _, e := range m.entries {
		if e.BusinessID != businessID {
			continue
		}
		s := EntrySummary{ID: e.ID, EntryDate: e.EntryDate, Description: e.Description, LineCount: len(e.Lines), IsLocked: e.Locked(), LockedAt: e.LockedAt, CreatedAt: e.CreatedAt}
		for _, l := range e.Lines {
			s.TotalDebit += l.Debit
			s.TotalCredit += l.Credit
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntryDate.After(out[j].EntryDate) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memoryTx struct {
	ledger *memoryLedger
}

func (t *memoryTx) GetBusiness(_ context.Context, id uuid.UUID) (accounts.Business, error) {
	t.ledger.txReads++
	b, ok := t.ledger.businesses[id]
	if !ok {
		return accounts.Business{}, shared.NotFound("business", id)
	}
	return b, nil
}

func (t *memoryTx) FindAccounts(_ context.Context, businessID uuid.UUID, ids []uuid.UUID) ([]accounts.Account, error) {
	t.ledger.txReads++
	var out []accounts.Account
	for _, id := range ids {
		if a, ok := t.ledger.accounts[id]; ok && a.BusinessID == businessID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (t *memoryTx) FindAccountsByCode(_ context.Context, businessID uuid.UUID, codes []string) ([]accounts.Account, error) {
	t.ledger.txReads++
	var out []accounts.Account
	for _, a := range t.ledger.accounts {
		if a.BusinessID != businessID || !a.IsActive {
			continue
		}
		for _, c := range codes {
			if a.Code == c {
				out = append(out, a)
			}
		}
	}
	return out, nil
}

func (t *memoryTx) FindTaxCategories(_ context.Context, ids []uuid.UUID) ([]accounts.TaxCategory, error) {
	t.ledger.txReads++
	var out []accounts.TaxCategory
	for _, id := range ids {
		if c, ok := t.ledger.categories[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (t *memoryTx) AssertUnlocked(ctx context.Context, businessID uuid.UUID, date time.Time) error {
	t.ledger.txReads++
	if t.ledger.guard == nil {
		return nil
	}
	return t.ledger.guard.AssertUnlocked(ctx, businessID, date)
}

func (t *memoryTx) LockBusiness(_ context.Context, businessID uuid.UUID) error {
	t.ledger.lockCalls++
	if _, ok := t.ledger.businesses[businessID]; !ok {
		return shared.NotFound("business", businessID)
	}
	return nil
}

func (t *memoryTx) GetEntryForUpdate(_ context.Context, entryID uuid.UUID) (JournalEntry, error) {
	entry, ok := t.ledger.entries[entryID]
	if !ok {
		return JournalEntry{}, shared.NotFound("journal_entry", entryID)
	}
	return entry, nil
}

func (t *memoryTx) InsertEntry(_ context.Context, entry JournalEntry) (JournalEntry, error) {
	entry.CreatedAt = time.Now()
	entry.UpdatedAt = entry.CreatedAt
	t.ledger.entries[entry.ID] = entry
	return entry, nil
}

func (t *memoryTx) UpdateEntry(_ context.Context, entry JournalEntry) (JournalEntry, error) {
	entry.UpdatedAt = time.Now()
	t.ledger.entries[entry.ID] = entry
	return entry, nil
}

func (t *memoryTx) ReplaceLines(_ context.Context, entryID uuid.UUID, lines []tax.Line) ([]JournalLine, error) {
	entry := t.ledger.entries[entryID]
	out := make([]JournalLine, 0, len(lines))
	for idx, l := range lines {
		out = append(out, JournalLine{ID: uuid.New(), EntryID: entryID, LineNumber: idx + 1, AccountID: l.AccountID, Debit: l.Debit, Credit: l.Credit, Memo: l.Memo, TaxCategoryID: l.TaxCategoryID})
	}
	entry.Lines = out
	t.ledger.entries[entryID] = entry
	return out, nil
}

func (t *memoryTx) DeleteEntry(_ context.Context, entryID uuid.UUID) error {
	delete(t.ledger.entries, entryID)
	return nil
}

// rangeGuard locks inclusive date ranges and flags entries in them, the way
// closing a period does.
type rangeGuard struct {
	ledger *memoryLedger
	closed []shared.LockedRange
}

func (g *rangeGuard) AssertUnlocked(_ context.Context, _ uuid.UUID, date time.Time) error {
	for _, r := range g.closed {
		if !date.Before(r.StartDate) && !date.After(r.EndDate) {
			period := r
			return &shared.ConflictError{Reason: shared.ReasonPeriodLocked, Period: &period}
		}
	}
	return nil
}

func (g *rangeGuard) close(start, end time.Time) {
	g.closed = append(g.closed, shared.LockedRange{ID: uuid.New(), PeriodType: "monthly", StartDate: start, EndDate: end})
	now := time.Now()
	for id, e := range g.ledger.entries {
		if !e.EntryDate.Before(start) && !e.EntryDate.After(end) {
			e.LockedAt = &now
			g.ledger.entries[id] = e
		}
	}
}

func (g *rangeGuard) reopenAll() {
	g.closed = nil
	for id, e := range g.ledger.entries {
		e.LockedAt = nil
		g.ledger.entries[id] = e
	}
}

type recordingAudit struct {
	logs []platformshared.AuditLog
}

func (a *recordingAudit) Record(_ context.Context, log platformshared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

type countingBumper struct {
	bumps int
}

func (b *countingBumper) Bump(context.Context, uuid.UUID) error {
	b.bumps++
	return nil
}

type recordingObserver struct {
	ops  []string
	errs []error
}

func (o *recordingObserver) JournalWrite(op string, err error) {
	o.ops = append(o.ops, op)
	o.errs = append(o.errs, err)
}

type fixture struct {
	ledger   *memoryLedger
	guard    *rangeGuard
	audit    *recordingAudit
	cache    *countingBumper
	observer *recordingObserver
	service  *Service

	business  uuid.UUID
	actor     uuid.UUID
	cash      uuid.UUID
	expense   uuid.UUID
	sales     uuid.UUID
	inputVAT  uuid.UUID
	outputVAT uuid.UUID
	dormant   uuid.UUID
	standard  uuid.UUID
}

func newFixture(t *testing.T, mode tax.Mode) *fixture {
	t.Helper()
	ledger := newMemoryLedger()
	f := &fixture{
		ledger:   ledger,
		guard:    &rangeGuard{ledger: ledger},
		audit:    &recordingAudit{},
		cache:    &countingBumper{},
		observer: &recordingObserver{},

		business:  uuid.New(),
		actor:     uuid.New(),
		cash:      uuid.New(),
		expense:   uuid.New(),
		sales:     uuid.New(),
		inputVAT:  uuid.New(),
		outputVAT: uuid.New(),
		dormant:   uuid.New(),
		standard:  uuid.New(),
	}
	ledger.businesses[f.business] = accounts.Business{ID: f.business, Name: "Acme", AccountingMode: mode}
	ledger.categories[f.standard] = accounts.TaxCategory{ID: f.standard, Code: "STD", Name: "Standard", Rate: decimal.RequireFromString("0.10")}
	add := func(id uuid.UUID, code string, typ accounts.AccountType, active bool, category *uuid.UUID) {
		ledger.accounts[id] = accounts.Account{ID: id, BusinessID: f.business, Code: code, Name: code, Type: typ, IsActive: active, TaxCategoryID: category}
	}
	add(f.cash, "101", accounts.AccountTypeAsset, true, nil)
	add(f.inputVAT, accounts.VATReceivableCode, accounts.AccountTypeAsset, true, nil)
	add(f.outputVAT, accounts.VATPayableCode, accounts.AccountTypeLiability, true, nil)
	add(f.sales, "401", accounts.AccountTypeRevenue, true, nil)
	add(f.expense, "501", accounts.AccountTypeExpense, true, &f.standard)
	add(f.dormant, "599", accounts.AccountTypeExpense, false, nil)

	ledger.guard = f.guard
	f.service = NewService(ledger, f.audit, f.cache, nil)
	f.service.WithObserver(f.observer)
	return f
}

func (f *fixture) entry(date string, lines ...LineInput) EntryInput {
	return EntryInput{BusinessID: f.business, ActorID: f.actor, EntryDate: date, Description: "test", Lines: lines}
}

func (f *fixture) simple(date string, amount int64) EntryInput {
	return f.entry(date,
		LineInput{AccountID: f.cash, Debit: amount},
		LineInput{AccountID: f.sales, Credit: amount},
	)
}

func day(raw string) time.Time {
	t, _ := time.Parse(time.DateOnly, raw)
	return t
}

func TestSubmitRejectsMalformedInput(t *testing.T) {
	f := newFixture(t, tax.ModeInclusive)
	ctx := context.Background()

	cases := map[string]EntryInput{
		"bad date":     f.simple("2024-13-40", 100),
		"one line":     f.entry("2024-01-10", LineInput{AccountID: f.cash, Debit: 100}),
		"negative":     f.entry("2024-01-10", LineInput{AccountID: f.cash, Debit: -100}, LineInput{AccountID: f.sales, Credit: -100}),
		"missing acct": f.entry("2024-01-10", LineInput{Debit: 100}, LineInput{AccountID: f.sales, Credit: 100}),
		"no business":  {EntryDate: "2024-01-10", Lines: f.simple("2024-01-10", 1).Lines},
	}
	for name, in := range cases {
		_, err := f.service.Submit(ctx, in)
		require.Error(t, err, name)
		assert.Equal(t, shared.ReasonMalformed, shared.ValidationReasonOf(err), name)
	}
	assert.Zero(t, f.ledger.txCalls)
	assert.Empty(t, f.ledger.entries)
}

func TestSubmitRejectsUnbalanced(t *testing.T) {
	f := newFixture(t, tax.ModeInclusive)
	_, err := f.service.Submit(context.Background(), f.entry("2024-01-10",
		LineInput{AccountID: f.cash, Debit: 100},
		LineInput{AccountID: f.sales, Credit: 90},
	))
	require.Error(t, err)
	assert.Equal(t, shared.ReasonUnbalanced, shared.ValidationReasonOf(err))
	assert.Empty(t, f.ledger.entries)
}

func TestSubmitRejectsUnknownReferences(t *testing.T) {
	f := newFixture(t, tax.ModeInclusive)
	ctx := context.Background()
	missingCategory := uuid.New()

	cases := map[string]EntryInput{
		"unknown account":  f.entry("2024-01-10", LineInput{AccountID: uuid.New(), Debit: 100}, LineInput{AccountID: f.sales, Credit: 100}),
		"inactive account": f.entry("2024-01-10", LineInput{AccountID: f.dormant, Debit: 100}, LineInput{AccountID: f.sales, Credit: 100}),
		"unknown category": f.entry("2024-01-10", LineInput{AccountID: f.cash, Debit: 100, TaxCategoryID: &missingCategory}, LineInput{AccountID: f.sales, Credit: 100}),
	}
	for name, in := range cases {
		_, err := f.service.Submit(ctx, in)
		require.Error(t, err, name)
		assert.Equal(t, shared.ReasonUnknownReference, shared.ValidationReasonOf(err), name)
	}
	assert.Empty(t, f.ledger.entries)
}

func TestSubmitUnknownBusinessIsNotFound(t *testing.T) {
	f := newFixture(t, tax.ModeInclusive)
	in := f.simple("2024-01-10", 100)
	in.BusinessID = uuid.New()
	_, err := f.service.Submit(context.Background(), in)
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
}

func TestSubmitExclusiveSplitsIntoVATAccount(t *testing.T) {
	f := newFixture(t, tax.ModeExclusive)
	entry, err := f.service.Submit(context.Background(), f.entry("2024-01-10",
		LineInput{AccountID: f.expense, Debit: 11000},
		LineInput{AccountID: f.cash, Credit: 11000},
	))
	require.NoError(t, err)

	require.Len(t, entry.Lines, 3)
	assert.Equal(t, int64(10000), entry.Lines[0].Debit)
	require.NotNil(t, entry.Lines[0].TaxCategoryID)
	assert.Equal(t, f.standard, *entry.Lines[0].TaxCategoryID)
	assert.Equal(t, f.inputVAT, entry.Lines[2].AccountID)
	assert.Equal(t, int64(1000), entry.Lines[2].Debit)
	assert.Equal(t, tax.InputVATMemo, entry.Lines[2].Memo)
	assert.Equal(t, 3, entry.Lines[2].LineNumber)

	stored, err := f.service.Get(context.Background(), f.business, entry.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Lines, 3)
}

func TestSubmitInclusiveKeepsGrossAndAttachesCategory(t *testing.T) {
	f := newFixture(t, tax.ModeInclusive)
	entry, err := f.service.Submit(context.Background(), f.entry("2024-01-10",
		LineInput{AccountID: f.expense, Debit: 11000},
		LineInput{AccountID: f.cash, Credit: 11000},
	))
	require.NoError(t, err)
	require.Len(t, entry.Lines, 2)
	assert.Equal(t, int64(11000), entry.Lines[0].Debit)
	require.NotNil(t, entry.Lines[0].TaxCategoryID)
	assert.Equal(t, f.standard, *entry.Lines[0].TaxCategoryID)
}

func TestSubmitRecordsAuditAndBumpsCache(t *testing.T) {
	f := newFixture(t, tax.ModeInclusive)
	entry, err := f.service.Submit(context.Background(), f.simple("2024-01-10", 500))
	require.NoError(t, err)

	require.Len(t, f.audit.logs, 1)
	assert.Equal(t, "journal.submit", f.audit.logs[0].Action)
	assert.Equal(t, entry.ID.String(), f.audit.logs[0].EntityID)
	assert.Equal(t, f.actor, f.audit.logs[0].ActorID)
	assert.Equal(t, 1, f.cache.bumps)
	assert.Equal(t, 1, f.ledger.lockCalls)
	assert.Equal(t, []string{"submit"}, f.observer.ops)
	assert.NoError(t, f.observer.errs[0])
	require.NotNil(t, entry.CreatedBy)
	assert.Equal(t, f.actor, *entry.CreatedBy)
}

func TestPeriodLockBlocksWritesUntilReopen(t *testing.T) {
	f := newFixture(t, tax.ModeInclusive)
	ctx := context.Background()

	inside, err := f.service.Submit(ctx, f.simple("2024-01-15", 100))
	require.NoError(t, err)
	outside, err := f.service.Submit(ctx, f.simple("2024-02-01", 100))
	require.NoError(t, err)

	f.guard.close(day("2024-01-01"), day("2024-01-31"))

	_, err = f.service.Submit(ctx, f.simple("2024-01-31", 100))
	require.Error(t, err)
	assert.Equal(t, shared.ReasonPeriodLocked, shared.ConflictReasonOf(err))
	var ce *shared.ConflictError
	require.True(t, errors.As(err, &ce))
	require.NotNil(t, ce.Period)
	assert.Equal(t, day("2024-01-01"), ce.Period.StartDate)

	_, err = f.service.Update(ctx, UpdateInput{EntryInput: f.simple("2024-01-20", 200), EntryID: inside.ID})
	require.Error(t, err)
	assert.True(t, shared.IsConflict(err))

	err = f.service.Delete(ctx, DeleteInput{BusinessID: f.business, EntryID: inside.ID, ActorID: f.actor})
	require.Error(t, err)
	assert.True(t, shared.IsConflict(err))

	// moving an open entry into the closed range is refused too
	_, err = f.service.Update(ctx, UpdateInput{EntryInput: f.simple("2024-01-20", 100), EntryID: outside.ID})
	require.Error(t, err)
	assert.Equal(t, shared.ReasonPeriodLocked, shared.ConflictReasonOf(err))

	_, err = f.service.Submit(ctx, f.simple("2024-02-01", 100))
	require.NoError(t, err)

	f.guard.reopenAll()

	updated, err := f.service.Update(ctx, UpdateInput{EntryInput: f.simple("2024-01-20", 200), EntryID: inside.ID})
	require.NoError(t, err)
	assert.Equal(t, day("2024-01-20"), updated.EntryDate)
	assert.Equal(t, int64(200), updated.Lines[0].Debit)

	require.NoError(t, f.service.Delete(ctx, DeleteInput{BusinessID: f.business, EntryID: inside.ID, ActorID: f.actor}))
	_, err = f.service.Get(ctx, f.business, inside.ID)
	assert.True(t, shared.IsNotFound(err))
}

func TestLockedEntryFlagRejectsChanges(t *testing.T) {
	f := newFixture(t, tax.ModeInclusive)
	ctx := context.Background()
	entry, err := f.service.Submit(ctx, f.simple("2024-03-05", 100))
	require.NoError(t, err)

	stored := f.ledger.entries[entry.ID]
	now := time.Now()
	stored.LockedAt = &now
	f.ledger.entries[entry.ID] = stored

	_, err = f.service.Update(ctx, UpdateInput{EntryInput: f.simple("2024-03-06", 100), EntryID: entry.ID})
	require.Error(t, err)
	assert.Equal(t, shared.ReasonEntryLocked, shared.ConflictReasonOf(err))

	err = f.service.Delete(ctx, DeleteInput{BusinessID: f.business, EntryID: entry.ID})
	require.Error(t, err)
	assert.Equal(t, shared.ReasonEntryLocked, shared.ConflictReasonOf(err))
}

func TestUpdateAndDeleteOfForeignEntryAreNotFound(t *testing.T) {
	f := newFixture(t, tax.ModeInclusive)
	ctx := context.Background()
	entry, err := f.service.Submit(ctx, f.simple("2024-03-05", 100))
	require.NoError(t, err)

	other := uuid.New()
	f.ledger.businesses[other] = accounts.Business{ID: other, AccountingMode: tax.ModeInclusive}

	err = f.service.Delete(ctx, DeleteInput{BusinessID: other, EntryID: entry.ID})
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))

	err = f.service.Delete(ctx, DeleteInput{BusinessID: f.business, EntryID: uuid.New()})
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))

	_, err = f.service.Get(ctx, other, entry.ID)
	assert.True(t, shared.IsNotFound(err))
	assert.Contains(t, f.ledger.entries, entry.ID)
}

func TestUpdateRequiresEntryID(t *testing.T) {
	f := newFixture(t, tax.ModeInclusive)
	_, err := f.service.Update(context.Background(), UpdateInput{EntryInput: f.simple("2024-03-05", 100)})
	require.Error(t, err)
	assert.Equal(t, shared.ReasonMalformed, shared.ValidationReasonOf(err))
	assert.Equal(t, []string{"update"}, f.observer.ops)
	assert.Error(t, f.observer.errs[0])
}

func TestFailedUpdateLeavesEntryUntouched(t *testing.T) {
	f := newFixture(t, tax.ModeInclusive)
	ctx := context.Background()
	entry, err := f.service.Submit(ctx, f.simple("2024-03-05", 100))
	require.NoError(t, err)

	_, err = f.service.Update(ctx, UpdateInput{EntryInput: f.entry("2024-03-06",
		LineInput{AccountID: f.cash, Debit: 100},
		LineInput{AccountID: uuid.New(), Credit: 100},
	), EntryID: entry.ID})
	require.Error(t, err)

	stored := f.ledger.entries[entry.ID]
	assert.Equal(t, day("2024-03-05"), stored.EntryDate)
	assert.Len(t, stored.Lines, 2)
	assert.Len(t, f.audit.logs, 1)
}

func TestListRecentReportsTotalsAndLockState(t *testing.T) {
	f := newFixture(t, tax.ModeInclusive)
	ctx := context.Background()
	_, err := f.service.Submit(ctx, f.simple("2024-01-05", 300))
	require.NoError(t, err)
	_, err = f.service.Submit(ctx, f.simple("2024-02-05", 700))
	require.NoError(t, err)
	f.guard.close(day("2024-01-01"), day("2024-01-31"))

	list, err := f.service.ListRecent(ctx, f.business)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, day("2024-02-05"), list[0].EntryDate)
	assert.Equal(t, int64(700), list[0].TotalDebit)
	assert.False(t, list[0].IsLocked)
	assert.True(t, list[1].IsLocked)
}

func TestParseEntryDateAcceptsTimestamps(t *testing.T) {
	d, err := ParseEntryDate("2024-05-06T23:10:00Z")
	require.NoError(t, err)
	assert.Equal(t, day("2024-05-06"), d)

	_, err = ParseEntryDate("")
	assert.Equal(t, shared.ReasonMalformed, shared.ValidationReasonOf(err))
}

func TestWritesReadReferencesThroughTheTransaction(t *testing.T) {
	f := newFixture(t, tax.ModeExclusive)
	ctx := context.Background()

	entry, err := f.service.Submit(ctx, f.entry("2024-01-10",
		LineInput{AccountID: f.expense, Debit: 11000},
		LineInput{AccountID: f.cash, Credit: 11000},
	))
	require.NoError(t, err)
	afterSubmit := f.ledger.txReads
	assert.GreaterOrEqual(t, afterSubmit, 5)

	_, err = f.service.Update(ctx, UpdateInput{EntryInput: f.simple("2024-01-11", 200), EntryID: entry.ID})
	require.NoError(t, err)
	afterUpdate := f.ledger.txReads
	assert.Greater(t, afterUpdate, afterSubmit)

	require.NoError(t, f.service.Delete(ctx, DeleteInput{BusinessID: f.business, EntryID: entry.ID}))
	assert.Equal(t, afterUpdate+1, f.ledger.txReads)
}

func TestSubmitRejectsTotalsBeyondInt64(t *testing.T) {
	f := newFixture(t, tax.ModeInclusive)
	_, err := f.service.Submit(context.Background(), f.entry("2024-01-10",
		LineInput{AccountID: f.cash, Debit: math.MaxInt64},
		LineInput{AccountID: f.cash, Debit: math.MaxInt64},
		LineInput{AccountID: f.cash, Debit: 2},
		LineInput{AccountID: f.sales},
	))
	require.Error(t, err)
	assert.Equal(t, shared.ReasonMalformed, shared.ValidationReasonOf(err))
	assert.Empty(t, f.ledger.entries)
}
