package journals

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/tax"
	platformshared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// RepositoryPort abstracts journal persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetEntry(ctx context.Context, businessID, entryID uuid.UUID) (JournalEntry, error)
	ListRecent(ctx context.Context, businessID uuid.UUID, limit int) ([]EntrySummary, error)
}

// TxRepository exposes transactional journal operations. Reference lookups
// and the period check run inside the same transaction.
type TxRepository interface {
	ReferenceLookup
	PeriodGuard
	LockBusiness(ctx context.Context, businessID uuid.UUID) error
	GetEntryForUpdate(ctx context.Context, entryID uuid.UUID) (JournalEntry, error)
	InsertEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error)
	UpdateEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error)
	ReplaceLines(ctx context.Context, entryID uuid.UUID, lines []tax.Line) ([]JournalLine, error)
	DeleteEntry(ctx context.Context, entryID uuid.UUID) error
}

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log platformshared.AuditLog) error
}

// CacheBumper invalidates derived report caches of a business.
type CacheBumper interface {
	Bump(ctx context.Context, businessID uuid.UUID) error
}

// Observer is notified of every journal write attempt, typically metrics.
type Observer interface {
	JournalWrite(op string, err error)
}

// Service coordinates submitting, replacing and deleting journal entries.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	cache    CacheBumper
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the journal service.
func NewService(repo RepositoryPort, audit AuditPort, cache CacheBumper, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		audit:  audit,
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithObserver attaches a write observer.
func (s *Service) WithObserver(observer Observer) {
	s.observer = observer
}

// Submit validates and persists a new journal entry.
func (s *Service) Submit(ctx context.Context, in EntryInput) (entry JournalEntry, err error) {
	defer func() { s.observe("submit", err) }()
	if _, err = checkStructure(in); err != nil {
		return JournalEntry{}, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockBusiness(ctx, in.BusinessID); err != nil {
			return err
		}
		prepared, err := NewValidator(tx, tx).Validate(ctx, in)
		if err != nil {
			return err
		}
		inserted, err := tx.InsertEntry(ctx, JournalEntry{
			ID:          uuid.New(),
			BusinessID:  in.BusinessID,
			EntryDate:   prepared.Date,
			Description: prepared.Description,
			CreatedBy:   actorPtr(in.ActorID),
		})
		if err != nil {
			return err
		}
		lines, err := tx.ReplaceLines(ctx, inserted.ID, prepared.Lines)
		if err != nil {
			return err
		}
		inserted.Lines = lines
		entry = inserted
		return nil
	})
	if err != nil {
		return JournalEntry{}, s.fail("submit journal entry", err)
	}
	s.afterWrite(ctx, "journal.submit", entry.BusinessID, entry.ID, in.ActorID, map[string]any{
		"entry_date": entry.EntryDate.Format(time.DateOnly),
		"lines":      len(entry.Lines),
	})
	return entry, nil
}

// Update replaces date, description and every line of an unlocked entry.
func (s *Service) Update(ctx context.Context, in UpdateInput) (entry JournalEntry, err error) {
	defer func() { s.observe("update", err) }()
	if in.EntryID == uuid.Nil {
		err = shared.Malformed("entry id required")
		return JournalEntry{}, err
	}
	if _, err = checkStructure(in.EntryInput); err != nil {
		return JournalEntry{}, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockBusiness(ctx, in.BusinessID); err != nil {
			return err
		}
		current, err := s.loadMutable(ctx, tx, in.BusinessID, in.EntryID)
		if err != nil {
			return err
		}
		prepared, err := NewValidator(tx, tx).Validate(ctx, in.EntryInput)
		if err != nil {
			return err
		}
		current.EntryDate = prepared.Date
		current.Description = prepared.Description
		updated, err := tx.UpdateEntry(ctx, current)
		if err != nil {
			return err
		}
		lines, err := tx.ReplaceLines(ctx, updated.ID, prepared.Lines)
		if err != nil {
			return err
		}
		updated.Lines = lines
		entry = updated
		return nil
	})
	if err != nil {
		return JournalEntry{}, s.fail("update journal entry", err)
	}
	s.afterWrite(ctx, "journal.update", entry.BusinessID, entry.ID, in.ActorID, map[string]any{
		"entry_date": entry.EntryDate.Format(time.DateOnly),
		"lines":      len(entry.Lines),
	})
	return entry, nil
}

// Delete removes an unlocked entry and its lines.
func (s *Service) Delete(ctx context.Context, in DeleteInput) (err error) {
	defer func() { s.observe("delete", err) }()
	if in.EntryID == uuid.Nil {
		err = shared.Malformed("entry id required")
		return err
	}
	var removed JournalEntry
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockBusiness(ctx, in.BusinessID); err != nil {
			return err
		}
		current, err := s.loadMutable(ctx, tx, in.BusinessID, in.EntryID)
		if err != nil {
			return err
		}
		removed = current
		return tx.DeleteEntry(ctx, current.ID)
	})
	if err != nil {
		return s.fail("delete journal entry", err)
	}
	s.afterWrite(ctx, "journal.delete", in.BusinessID, in.EntryID, in.ActorID, map[string]any{
		"entry_date": removed.EntryDate.Format(time.DateOnly),
	})
	return nil
}

// loadMutable fetches an entry that may still be changed: it must belong to
// the business, carry no lock flag and sit outside every closed period.
func (s *Service) loadMutable(ctx context.Context, tx TxRepository, businessID, entryID uuid.UUID) (JournalEntry, error) {
	current, err := tx.GetEntryForUpdate(ctx, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	if current.BusinessID != businessID {
		return JournalEntry{}, shared.NotFound("journal_entry", entryID)
	}
	if current.Locked() {
		return JournalEntry{}, &shared.ConflictError{Reason: shared.ReasonEntryLocked, Detail: "entry " + entryID.String() + " is locked"}
	}
	if err := tx.AssertUnlocked(ctx, businessID, current.EntryDate); err != nil {
		return JournalEntry{}, err
	}
	return current, nil
}

// Get returns one entry with its lines.
func (s *Service) Get(ctx context.Context, businessID, entryID uuid.UUID) (JournalEntry, error) {
	entry, err := s.repo.GetEntry(ctx, businessID, entryID)
	if err != nil {
		return JournalEntry{}, shared.Internal("get journal entry", err)
	}
	return entry, nil
}

// ListRecent returns the latest entries by date with their lock state.
func (s *Service) ListRecent(ctx context.Context, businessID uuid.UUID) ([]EntrySummary, error) {
	entries, err := s.repo.ListRecent(ctx, businessID, RecentLimit)
	if err != nil {
		return nil, shared.Internal("list journal entries", err)
	}
	return entries, nil
}

func (s *Service) fail(op string, err error) error {
	wrapped := shared.Internal(op, err)
	if !isCallerError(wrapped) {
		s.logger.Error(op, slog.Any("error", err))
	}
	return wrapped
}

func isCallerError(err error) bool {
	return shared.IsValidation(err) || shared.IsConflict(err) || shared.IsNotFound(err)
}

func (s *Service) observe(op string, err error) {
	if s.observer != nil {
		s.observer.JournalWrite(op, err)
	}
}

func (s *Service) afterWrite(ctx context.Context, action string, businessID, entryID, actorID uuid.UUID, meta map[string]any) {
	if s.cache != nil {
		if err := s.cache.Bump(ctx, businessID); err != nil {
			s.logger.Warn("bump report cache", slog.String("business_id", businessID.String()), slog.Any("error", err))
		}
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, platformshared.AuditLog{
			BusinessID: businessID,
			ActorID:    actorID,
			Action:     action,
			Entity:     "journal_entry",
			EntityID:   entryID.String(),
			Meta:       meta,
			At:         s.now(),
		})
	}
}

func actorPtr(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
