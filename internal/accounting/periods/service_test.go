package periods

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	platformshared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type memoryEntry struct {
	date     time.Time
	lockedAt *time.Time
	lockedBy *uuid.UUID
}

type memoryRepo struct {
	businessID uuid.UUID
	periods    map[uuid.UUID]ClosingPeriod
	entries    map[uuid.UUID]*memoryEntry
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		businessID: uuid.New(),
		periods:    map[uuid.UUID]ClosingPeriod{},
		entries:    map[uuid.UUID]*memoryEntry{},
	}
}

func (r *memoryRepo) addEntry(date time.Time) uuid.UUID {
	id := uuid.New()
	r.entries[id] = &memoryEntry{date: date}
	return id
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	periods := make(map[uuid.UUID]ClosingPeriod, len(r.periods))
	for k, v := range r.periods {
		periods[k] = v
	}
	locks := make(map[uuid.UUID]*time.Time, len(r.entries))
	for k, v := range r.entries {
		locks[k] = v.lockedAt
	}
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.periods = periods
		for k, v := range locks {
			r.entries[k].lockedAt = v
		}
		return err
	}
	return nil
}

func (r *memoryRepo) closed() []ClosingPeriod {
	var out []ClosingPeriod
	for _, p := range r.periods {
		if p.Status == StatusClosed {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out
}

func (r *memoryRepo) FindClosedContaining(ctx context.Context, businessID uuid.UUID, date time.Time) (*ClosingPeriod, error) {
	for _, p := range r.closed() {
		if p.BusinessID == businessID && p.Contains(date) {
			found := p
			return &found, nil
		}
	}
	return nil, nil
}

func (r *memoryRepo) ListOverlapping(ctx context.Context, businessID uuid.UUID, start, end time.Time) ([]ClosingPeriod, error) {
	var out []ClosingPeriod
	for _, p := range r.closed() {
		if p.BusinessID == businessID && p.Overlaps(start, end) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryRepo) List(ctx context.Context, businessID uuid.UUID) ([]ClosingPeriod, error) {
	var out []ClosingPeriod
	for _, p := range r.periods {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndDate.After(out[j].EndDate) })
	return out, nil
}

func (r *memoryRepo) MeasureLockDrift(ctx context.Context, businessID uuid.UUID) (LockDrift, error) {
	var drift LockDrift
	for _, e := range r.entries {
		covered, _ := r.FindClosedContaining(ctx, businessID, e.date)
		switch {
		case e.lockedAt != nil && covered == nil:
			drift.LockedOutside++
		case e.lockedAt == nil && covered != nil:
			drift.UnlockedInside++
		}
	}
	return drift, nil
}

func (t *memoryTx) LockBusiness(ctx context.Context, businessID uuid.UUID) error {
	if businessID != t.repo.businessID {
		return shared.NotFound("business", businessID)
	}
	return nil
}

func (t *memoryTx) FindClosedContaining(ctx context.Context, businessID uuid.UUID, date time.Time) (*ClosingPeriod, error) {
	return t.repo.FindClosedContaining(ctx, businessID, date)
}

func (t *memoryTx) ListClosedByType(ctx context.Context, businessID uuid.UUID, periodType PeriodType) ([]ClosingPeriod, error) {
	var out []ClosingPeriod
	for _, p := range t.repo.closed() {
		if p.PeriodType == periodType {
			out = append(out, p)
		}
	}
	return out, nil
}

func (t *memoryTx) ListClosed(ctx context.Context, businessID uuid.UUID) ([]ClosingPeriod, error) {
	return t.repo.closed(), nil
}

func (t *memoryTx) FindByRange(ctx context.Context, businessID uuid.UUID, periodType PeriodType, start, end time.Time) (*ClosingPeriod, error) {
	for _, p := range t.repo.periods {
		if p.PeriodType == periodType && p.StartDate.Equal(start) && p.EndDate.Equal(end) {
			found := p
			return &found, nil
		}
	}
	return nil, nil
}

func (t *memoryTx) GetForUpdate(ctx context.Context, id uuid.UUID) (ClosingPeriod, error) {
	p, ok := t.repo.periods[id]
	if !ok {
		return ClosingPeriod{}, shared.NotFound("closing_period", id)
	}
	return p, nil
}

func (t *memoryTx) Insert(ctx context.Context, p ClosingPeriod) (ClosingPeriod, error) {
	t.repo.periods[p.ID] = p
	return p, nil
}

func (t *memoryTx) Update(ctx context.Context, p ClosingPeriod) (ClosingPeriod, error) {
	t.repo.periods[p.ID] = p
	return p, nil
}

func (t *memoryTx) LockEntries(ctx context.Context, businessID uuid.UUID, start, end, at time.Time, actorID *uuid.UUID) (int64, error) {
	return t.lock(start, end, at, actorID, false), nil
}

func (t *memoryTx) LockUnflaggedEntries(ctx context.Context, businessID uuid.UUID, start, end, at time.Time, actorID *uuid.UUID) (int64, error) {
	return t.lock(start, end, at, actorID, true), nil
}

func (t *memoryTx) lock(start, end, at time.Time, actorID *uuid.UUID, unflaggedOnly bool) int64 {
	var n int64
	for _, e := range t.repo.entries {
		if e.date.Before(start) || e.date.After(end) || (unflaggedOnly && e.lockedAt != nil) {
			continue
		}
		stamp := at
		e.lockedAt = &stamp
		e.lockedBy = actorID
		n++
	}
	return n
}

func (t *memoryTx) UnlockEntries(ctx context.Context, businessID uuid.UUID, start, end time.Time) (int64, error) {
	var n int64
	for _, e := range t.repo.entries {
		if !e.date.Before(start) && !e.date.After(end) {
			e.lockedAt = nil
			e.lockedBy = nil
			n++
		}
	}
	return n, nil
}

func (t *memoryTx) UnlockOutsideClosed(ctx context.Context, businessID uuid.UUID) (int64, error) {
	var n int64
	for _, e := range t.repo.entries {
		covered, _ := t.repo.FindClosedContaining(ctx, businessID, e.date)
		if e.lockedAt != nil && covered == nil {
			e.lockedAt = nil
			e.lockedBy = nil
			n++
		}
	}
	return n, nil
}

type recordingAudit struct {
	actions []string
}

func (a *recordingAudit) Record(ctx context.Context, log platformshared.AuditLog) error {
	a.actions = append(a.actions, log.Action)
	return nil
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestManager() (*Manager, *memoryRepo, *recordingAudit) {
	repo := newMemoryRepo()
	audit := &recordingAudit{}
	m := NewManager(repo, audit, nil, nil)
	m.WithNow(func() time.Time { return time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC) })
	return m, repo, audit
}

func closeMonth(t *testing.T, m *Manager, repo *memoryRepo, month time.Month) ClosingPeriod {
	t.Helper()
	start := date(2024, month, 1)
	p, err := m.Close(context.Background(), CloseInput{
		BusinessID: repo.businessID,
		PeriodType: PeriodTypeMonthly,
		StartDate:  start,
		EndDate:    start.AddDate(0, 1, -1),
		ActorID:    uuid.New(),
	})
	require.NoError(t, err)
	return p
}

func TestCloseLocksEntriesInRange(t *testing.T) {
	m, repo, audit := newTestManager()
	inside := repo.addEntry(date(2024, 3, 15))
	edge := repo.addEntry(date(2024, 3, 31))
	outside := repo.addEntry(date(2024, 4, 1))

	p := closeMonth(t, m, repo, time.March)

	require.Equal(t, StatusClosed, p.Status)
	require.NotNil(t, repo.entries[inside].lockedAt)
	require.NotNil(t, repo.entries[edge].lockedAt)
	require.Nil(t, repo.entries[outside].lockedAt)
	require.Equal(t, []string{"period.close"}, audit.actions)

	err := m.AssertUnlocked(context.Background(), repo.businessID, date(2024, 3, 20))
	require.Equal(t, shared.ReasonPeriodLocked, shared.ConflictReasonOf(err))
	require.NoError(t, m.AssertUnlocked(context.Background(), repo.businessID, date(2024, 4, 1)))
}

func TestCloseRejectsOverlapOfSameType(t *testing.T) {
	m, repo, _ := newTestManager()
	closeMonth(t, m, repo, time.March)

	_, err := m.Close(context.Background(), CloseInput{
		BusinessID: repo.businessID,
		PeriodType: PeriodTypeMonthly,
		StartDate:  date(2024, 3, 31),
		EndDate:    date(2024, 4, 30),
	})
	require.True(t, shared.IsConflict(err))

	_, err = m.Close(context.Background(), CloseInput{
		BusinessID: repo.businessID,
		PeriodType: PeriodTypeMonthly,
		StartDate:  date(2024, 2, 1),
		EndDate:    date(2024, 4, 30),
	})
	require.Equal(t, shared.ReasonPeriodOverlap, shared.ConflictReasonOf(err))
	require.Len(t, repo.periods, 1)
}

func TestCloseYearlyAroundClosedMonth(t *testing.T) {
	m, repo, _ := newTestManager()
	closeMonth(t, m, repo, time.March)

	_, err := m.Close(context.Background(), CloseInput{
		BusinessID: repo.businessID,
		PeriodType: PeriodTypeYearly,
		StartDate:  date(2024, 1, 1),
		EndDate:    date(2024, 12, 31),
	})
	require.NoError(t, err)
	require.Len(t, repo.periods, 2)
}

func TestCloseValidatesInput(t *testing.T) {
	m, repo, _ := newTestManager()

	_, err := m.Close(context.Background(), CloseInput{
		BusinessID: repo.businessID,
		PeriodType: PeriodTypeMonthly,
		StartDate:  date(2024, 4, 30),
		EndDate:    date(2024, 4, 1),
	})
	require.True(t, shared.IsValidation(err))

	_, err = m.Close(context.Background(), CloseInput{
		BusinessID: repo.businessID,
		PeriodType: "weekly",
		StartDate:  date(2024, 4, 1),
		EndDate:    date(2024, 4, 30),
	})
	require.True(t, shared.IsValidation(err))
}

func TestReopenUnlocksAndAllowsReclose(t *testing.T) {
	m, repo, audit := newTestManager()
	entry := repo.addEntry(date(2024, 3, 10))
	p := closeMonth(t, m, repo, time.March)

	reopened, err := m.Reopen(context.Background(), ReopenInput{BusinessID: repo.businessID, PeriodID: p.ID, ActorID: uuid.New()})
	require.NoError(t, err)
	require.Equal(t, StatusReopened, reopened.Status)
	require.NotNil(t, reopened.ReopenedAt)
	require.Nil(t, repo.entries[entry].lockedAt)
	require.NoError(t, m.AssertUnlocked(context.Background(), repo.businessID, date(2024, 3, 10)))

	_, err = m.Reopen(context.Background(), ReopenInput{BusinessID: repo.businessID, PeriodID: p.ID})
	require.Equal(t, shared.ReasonPeriodNotClosed, shared.ConflictReasonOf(err))

	again := closeMonth(t, m, repo, time.March)
	require.Equal(t, p.ID, again.ID)
	require.Len(t, repo.periods, 1)
	require.NotNil(t, repo.entries[entry].lockedAt)
	require.Equal(t, []string{"period.close", "period.reopen", "period.close"}, audit.actions)
}

func TestReopenUnknownPeriod(t *testing.T) {
	m, repo, _ := newTestManager()
	_, err := m.Reopen(context.Background(), ReopenInput{BusinessID: repo.businessID, PeriodID: uuid.New()})
	require.True(t, shared.IsNotFound(err))

	p := closeMonth(t, m, repo, time.March)
	_, err = m.Reopen(context.Background(), ReopenInput{BusinessID: uuid.New(), PeriodID: p.ID})
	require.True(t, shared.IsNotFound(err))
}

func TestLockStatusForRange(t *testing.T) {
	m, repo, _ := newTestManager()
	closeMonth(t, m, repo, time.March)

	status, err := m.LockStatusForRange(context.Background(), repo.businessID, date(2024, 3, 25), date(2024, 4, 5))
	require.NoError(t, err)
	require.True(t, status.Locked)
	require.Len(t, status.Periods, 1)

	status, err = m.LockStatusForRange(context.Background(), repo.businessID, date(2024, 4, 1), date(2024, 4, 30))
	require.NoError(t, err)
	require.False(t, status.Locked)
}

func TestReprojectLocksRepairsDrift(t *testing.T) {
	m, repo, _ := newTestManager()
	march := repo.addEntry(date(2024, 3, 10))
	closeMonth(t, m, repo, time.March)
	yearly, err := m.Close(context.Background(), CloseInput{
		BusinessID: repo.businessID,
		PeriodType: PeriodTypeYearly,
		StartDate:  date(2024, 1, 1),
		EndDate:    date(2024, 12, 31),
	})
	require.NoError(t, err)

	// Reopening the year clears every flag in the range, March included.
	_, err = m.Reopen(context.Background(), ReopenInput{BusinessID: repo.businessID, PeriodID: yearly.ID})
	require.NoError(t, err)
	require.Nil(t, repo.entries[march].lockedAt)

	drift, err := m.LockDrift(context.Background(), repo.businessID)
	require.NoError(t, err)
	require.Equal(t, int64(1), drift.UnlockedInside)

	fixed, err := m.ReprojectLocks(context.Background(), repo.businessID)
	require.NoError(t, err)
	require.Equal(t, int64(1), fixed.UnlockedInside)
	require.NotNil(t, repo.entries[march].lockedAt)

	drift, err = m.LockDrift(context.Background(), repo.businessID)
	require.NoError(t, err)
	require.Zero(t, drift)
}

func TestListOrdersByEndDateDesc(t *testing.T) {
	m, repo, _ := newTestManager()
	closeMonth(t, m, repo, time.January)
	closeMonth(t, m, repo, time.March)
	closeMonth(t, m, repo, time.February)

	periods, err := m.List(context.Background(), repo.businessID)
	require.NoError(t, err)
	require.Len(t, periods, 3)
	require.Equal(t, time.March, periods[0].StartDate.Month())
	require.Equal(t, time.January, periods[2].StartDate.Month())
}

func TestCloseRestampsEntriesAlreadyLocked(t *testing.T) {
	m, repo, _ := newTestManager()
	march := repo.addEntry(date(2024, 3, 10))
	closeMonth(t, m, repo, time.March)
	monthlyStamp := *repo.entries[march].lockedAt

	later := time.Date(2025, 1, 5, 9, 0, 0, 0, time.UTC)
	m.WithNow(func() time.Time { return later })
	closer := uuid.New()
	_, err := m.Close(context.Background(), CloseInput{
		BusinessID: repo.businessID,
		PeriodType: PeriodTypeYearly,
		StartDate:  date(2024, 1, 1),
		EndDate:    date(2024, 12, 31),
		ActorID:    closer,
	})
	require.NoError(t, err)

	require.NotEqual(t, monthlyStamp, *repo.entries[march].lockedAt)
	require.Equal(t, later, *repo.entries[march].lockedAt)
	require.NotNil(t, repo.entries[march].lockedBy)
	require.Equal(t, closer, *repo.entries[march].lockedBy)
}
