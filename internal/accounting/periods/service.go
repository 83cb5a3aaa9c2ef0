package periods

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	platformshared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// RepositoryPort abstracts closing period persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	FindClosedContaining(ctx context.Context, businessID uuid.UUID, date time.Time) (*ClosingPeriod, error)
	ListOverlapping(ctx context.Context, businessID uuid.UUID, start, end time.Time) ([]ClosingPeriod, error)
	List(ctx context.Context, businessID uuid.UUID) ([]ClosingPeriod, error)
	MeasureLockDrift(ctx context.Context, businessID uuid.UUID) (LockDrift, error)
}

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log platformshared.AuditLog) error
}

// CacheBumper invalidates derived report caches of a business.
type CacheBumper interface {
	Bump(ctx context.Context, businessID uuid.UUID) error
}

// TransitionObserver is notified after a period changes state.
type TransitionObserver interface {
	PeriodTransition(action string, entries int64)
}

// Manager owns closing periods and the journal entry lock projection.
type Manager struct {
	repo     RepositoryPort
	audit    AuditPort
	cache    CacheBumper
	observer TransitionObserver
	logger   *slog.Logger
	now      func() time.Time
}

// NewManager constructs the period lock manager.
func NewManager(repo RepositoryPort, audit AuditPort, cache CacheBumper, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{repo: repo, audit: audit, cache: cache, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (m *Manager) WithNow(now func() time.Time) {
	if now != nil {
		m.now = now
	}
}

// WithObserver attaches a transition observer, typically metrics.
func (m *Manager) WithObserver(observer TransitionObserver) {
	m.observer = observer
}

// AssertUnlocked fails with a period-locked conflict when date lies in a closed period.
func (m *Manager) AssertUnlocked(ctx context.Context, businessID uuid.UUID, date time.Time) error {
	period, err := m.repo.FindClosedContaining(ctx, businessID, date)
	if err != nil {
		return shared.Internal("check period lock", err)
	}
	return lockedError(period)
}

func lockedError(period *ClosingPeriod) error {
	if period == nil {
		return nil
	}
	return &shared.ConflictError{Reason: shared.ReasonPeriodLocked, Period: period.LockedRange()}
}

// IsDateLocked reports whether date lies in a closed period.
func (m *Manager) IsDateLocked(ctx context.Context, businessID uuid.UUID, date time.Time) (bool, error) {
	period, err := m.repo.FindClosedContaining(ctx, businessID, date)
	if err != nil {
		return false, shared.Internal("check period lock", err)
	}
	return period != nil, nil
}

// LockStatusForRange lists closed periods overlapping [start, end].
func (m *Manager) LockStatusForRange(ctx context.Context, businessID uuid.UUID, start, end time.Time) (LockStatus, error) {
	if DateOnly(start).After(DateOnly(end)) {
		return LockStatus{}, shared.Malformed("start date must not be after end date")
	}
	periods, err := m.repo.ListOverlapping(ctx, businessID, start, end)
	if err != nil {
		return LockStatus{}, shared.Internal("lock status", err)
	}
	return LockStatus{Locked: len(periods) > 0, Periods: periods}, nil
}

// List returns every closing period ordered by end date, latest first.
func (m *Manager) List(ctx context.Context, businessID uuid.UUID) ([]ClosingPeriod, error) {
	periods, err := m.repo.List(ctx, businessID)
	if err != nil {
		return nil, shared.Internal("list closing periods", err)
	}
	return periods, nil
}

// Close marks [start, end] closed and locks every entry inside it.
func (m *Manager) Close(ctx context.Context, in CloseInput) (ClosingPeriod, error) {
	if err := in.Validate(); err != nil {
		return ClosingPeriod{}, err
	}
	start, end := DateOnly(in.StartDate), DateOnly(in.EndDate)
	now := m.now()
	var (
		closed ClosingPeriod
		locked int64
	)
	err := m.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockBusiness(ctx, in.BusinessID); err != nil {
			return err
		}
		for _, edge := range []time.Time{start, end} {
			period, err := tx.FindClosedContaining(ctx, in.BusinessID, edge)
			if err != nil {
				return err
			}
			if err := lockedError(period); err != nil {
				return err
			}
		}
		sameType, err := tx.ListClosedByType(ctx, in.BusinessID, in.PeriodType)
		if err != nil {
			return err
		}
		for _, p := range sameType {
			if p.Overlaps(start, end) {
				return &shared.ConflictError{Reason: shared.ReasonPeriodOverlap, Period: p.LockedRange()}
			}
		}
		existing, err := tx.FindByRange(ctx, in.BusinessID, in.PeriodType, start, end)
		if err != nil {
			return err
		}
		if existing != nil {
			if err := ValidateTransition(existing.Status, StatusClosed); err != nil {
				return err
			}
			next := *existing
			next.Status = StatusClosed
			next.ClosedAt = &now
			next.ClosedBy = actorPtr(in.ActorID)
			next.Notes = in.Notes
			closed, err = tx.Update(ctx, next)
		} else {
			closed, err = tx.Insert(ctx, ClosingPeriod{
				ID:         uuid.New(),
				BusinessID: in.BusinessID,
				PeriodType: in.PeriodType,
				StartDate:  start,
				EndDate:    end,
				Status:     StatusClosed,
				ClosedAt:   &now,
				ClosedBy:   actorPtr(in.ActorID),
				Notes:      in.Notes,
			})
		}
		if err != nil {
			return err
		}
		locked, err = tx.LockEntries(ctx, in.BusinessID, start, end, now, actorPtr(in.ActorID))
		return err
	})
	if err != nil {
		return ClosingPeriod{}, shared.Internal("close period", err)
	}
	m.afterTransition(ctx, "period.close", closed, in.ActorID, locked)
	return closed, nil
}

// Reopen marks a closed period reopened and clears entry locks in its range.
func (m *Manager) Reopen(ctx context.Context, in ReopenInput) (ClosingPeriod, error) {
	if in.PeriodID == uuid.Nil {
		return ClosingPeriod{}, shared.Malformed("period id required")
	}
	now := m.now()
	var (
		reopened ClosingPeriod
		unlocked int64
	)
	err := m.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockBusiness(ctx, in.BusinessID); err != nil {
			return err
		}
		current, err := tx.GetForUpdate(ctx, in.PeriodID)
		if err != nil {
			return err
		}
		if current.BusinessID != in.BusinessID {
			return shared.NotFound("closing_period", in.PeriodID)
		}
		if err := ValidateTransition(current.Status, StatusReopened); err != nil {
			return err
		}
		next := current
		next.Status = StatusReopened
		next.ReopenedAt = &now
		next.ReopenedBy = actorPtr(in.ActorID)
		if in.Notes != nil {
			next.Notes = in.Notes
		}
		reopened, err = tx.Update(ctx, next)
		if err != nil {
			return err
		}
		unlocked, err = tx.UnlockEntries(ctx, in.BusinessID, current.StartDate, current.EndDate)
		return err
	})
	if err != nil {
		return ClosingPeriod{}, shared.Internal("reopen period", err)
	}
	m.afterTransition(ctx, "period.reopen", reopened, in.ActorID, unlocked)
	return reopened, nil
}

// LockDrift counts entries whose lock flag disagrees with the closed periods.
func (m *Manager) LockDrift(ctx context.Context, businessID uuid.UUID) (LockDrift, error) {
	drift, err := m.repo.MeasureLockDrift(ctx, businessID)
	if err != nil {
		return LockDrift{}, shared.Internal("measure lock drift", err)
	}
	return drift, nil
}

// ReprojectLocks rebuilds entry lock flags from the closed periods.
func (m *Manager) ReprojectLocks(ctx context.Context, businessID uuid.UUID) (LockDrift, error) {
	now := m.now()
	var fixed LockDrift
	err := m.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockBusiness(ctx, businessID); err != nil {
			return err
		}
		unlocked, err := tx.UnlockOutsideClosed(ctx, businessID)
		if err != nil {
			return err
		}
		fixed.LockedOutside = unlocked
		closed, err := tx.ListClosed(ctx, businessID)
		if err != nil {
			return err
		}
		for _, p := range closed {
			locked, err := tx.LockUnflaggedEntries(ctx, businessID, p.StartDate, p.EndDate, now, p.ClosedBy)
			if err != nil {
				return err
			}
			fixed.UnlockedInside += locked
		}
		return nil
	})
	if err != nil {
		return LockDrift{}, shared.Internal("reproject locks", err)
	}
	if fixed.LockedOutside > 0 || fixed.UnlockedInside > 0 {
		m.logger.Warn("lock projection repaired",
			slog.String("business_id", businessID.String()),
			slog.Int64("unlocked", fixed.LockedOutside),
			slog.Int64("locked", fixed.UnlockedInside))
		if m.cache != nil {
			_ = m.cache.Bump(ctx, businessID)
		}
	}
	return fixed, nil
}

func (m *Manager) afterTransition(ctx context.Context, action string, p ClosingPeriod, actorID uuid.UUID, entries int64) {
	m.logger.Info(action,
		slog.String("business_id", p.BusinessID.String()),
		slog.String("period_id", p.ID.String()),
		slog.String("period_type", string(p.PeriodType)),
		slog.Int64("entries", entries))
	if m.observer != nil {
		m.observer.PeriodTransition(action, entries)
	}
	if m.cache != nil {
		if err := m.cache.Bump(ctx, p.BusinessID); err != nil {
			m.logger.Warn("bump report cache", slog.String("business_id", p.BusinessID.String()), slog.Any("error", err))
		}
	}
	if m.audit != nil {
		_ = m.audit.Record(ctx, platformshared.AuditLog{
			BusinessID: p.BusinessID,
			ActorID:    actorID,
			Action:     action,
			Entity:     "closing_period",
			EntityID:   p.ID.String(),
			Meta: map[string]any{
				"period_type": string(p.PeriodType),
				"start_date":  p.StartDate.Format(time.DateOnly),
				"end_date":    p.EndDate.Format(time.DateOnly),
				"entries":     entries,
			},
			At: m.now(),
		})
	}
}

func actorPtr(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
