package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// BusinessLister enumerates the businesses the worker maintains.
type BusinessLister interface {
	ListBusinessIDs(ctx context.Context) ([]uuid.UUID, error)
}

// LockAuditor compares and repairs the entry lock projection.
type LockAuditor interface {
	LockDrift(ctx context.Context, businessID uuid.UUID) (periods.LockDrift, error)
	ReprojectLocks(ctx context.Context, businessID uuid.UUID) (periods.LockDrift, error)
}

// BalanceAuditor finds persisted entries that do not balance.
type BalanceAuditor interface {
	UnbalancedEntries(ctx context.Context, businessID uuid.UUID) ([]uuid.UUID, error)
}

// IntegrityReport summarises one business scan.
type IntegrityReport struct {
	BusinessID uuid.UUID
	Drift      periods.LockDrift
	Repaired   periods.LockDrift
	Unbalanced []uuid.UUID
}

// IntegrityJob checks that entry lock flags match the closed periods and
// that every persisted entry balances.
type IntegrityJob struct {
	Businesses BusinessLister
	Locks      LockAuditor
	Balances   BalanceAuditor
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
}

// NewIntegrityJob wires dependencies for the integrity handler.
func NewIntegrityJob(businesses BusinessLister, locks LockAuditor, balances BalanceAuditor, logger *slog.Logger, metrics *jobmetrics.Metrics) *IntegrityJob {
	return &IntegrityJob{Businesses: businesses, Locks: locks, Balances: balances, Logger: logger, Metrics: metrics}
}

// Handle processes ledger integrity tasks.
func (j *IntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Businesses == nil || j.Locks == nil || j.Balances == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	var payload IntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskLedgerIntegrity)
	_, err := j.Run(ctx, payload)
	return tracker.End(err)
}

// Run scans the businesses in scope and returns one report per business.
func (j *IntegrityJob) Run(ctx context.Context, payload IntegrityPayload) ([]IntegrityReport, error) {
	logger := j.logger()
	start := time.Now()
	ids, err := scope(payload.BusinessID, func() ([]uuid.UUID, error) {
		return j.Businesses.ListBusinessIDs(ctx)
	})
	if err != nil {
		logger.Error("list businesses", slog.Any("error", err))
		return nil, err
	}

	reports := make([]IntegrityReport, 0, len(ids))
	for _, id := range ids {
		report, err := j.scan(ctx, id, payload.Repair)
		if err != nil {
			logger.Error("scan business", slog.String("business_id", id.String()), slog.Any("error", err))
			return reports, err
		}
		reports = append(reports, report)
	}
	logger.Info("completed ledger integrity scan", slog.Int("businesses", len(reports)), slog.Duration("duration", time.Since(start)))
	return reports, nil
}

func (j *IntegrityJob) scan(ctx context.Context, businessID uuid.UUID, repair bool) (IntegrityReport, error) {
	report := IntegrityReport{BusinessID: businessID}
	drift, err := j.Locks.LockDrift(ctx, businessID)
	if err != nil {
		return report, err
	}
	report.Drift = drift
	unbalanced, err := j.Balances.UnbalancedEntries(ctx, businessID)
	if err != nil {
		return report, err
	}
	report.Unbalanced = unbalanced

	m := j.metrics()
	m.AddFindings("locked_outside_period", drift.LockedOutside)
	m.AddFindings("unlocked_inside_period", drift.UnlockedInside)
	m.AddFindings("unbalanced_entry", int64(len(unbalanced)))

	logger := j.logger().With(slog.String("business_id", businessID.String()))
	if len(unbalanced) > 0 {
		ids := make([]string, 0, len(unbalanced))
		for _, id := range unbalanced {
			ids = append(ids, id.String())
		}
		logger.Error("unbalanced journal entries", slog.Any("entry_ids", ids))
	}
	if drift.LockedOutside == 0 && drift.UnlockedInside == 0 {
		return report, nil
	}
	logger.Warn("lock projection drift",
		slog.Int64("locked_outside", drift.LockedOutside),
		slog.Int64("unlocked_inside", drift.UnlockedInside))
	if !repair {
		return report, nil
	}
	repaired, err := j.Locks.ReprojectLocks(ctx, businessID)
	if err != nil {
		return report, err
	}
	report.Repaired = repaired
	return report, nil
}

func (j *IntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerIntegrity))
	}
	return slog.Default().With(slog.String("job", TaskLedgerIntegrity))
}

func (j *IntegrityJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
