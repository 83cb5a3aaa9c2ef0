package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

// ReportWarmer rebuilds the cached current-period reports of a business.
type ReportWarmer interface {
	Warm(ctx context.Context, businessID uuid.UUID) error
}

// ReportWarmupJob pre-populates report caches after the ledger changes.
type ReportWarmupJob struct {
	Reports    ReportWarmer
	Businesses BusinessLister
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
}

// NewReportWarmupJob wires dependencies for the warmup handler.
func NewReportWarmupJob(reports ReportWarmer, businesses BusinessLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportWarmupJob {
	return &ReportWarmupJob{Reports: reports, Businesses: businesses, Logger: logger, Metrics: metrics}
}

// Handle processes report warmup tasks.
func (j *ReportWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Reports == nil {
		return errors.New("report warmup: handler not configured")
	}
	var payload WarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskReportWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	ids, err := scope(payload.BusinessID, func() ([]uuid.UUID, error) {
		if j.Businesses == nil {
			return nil, errors.New("report warmup: business lister not configured")
		}
		return j.Businesses.ListBusinessIDs(ctx)
	})
	if err != nil {
		resultErr = err
		logger.Error("load warmup scope", slog.Any("error", err))
		return resultErr
	}

	start := time.Now()
	for _, id := range ids {
		// Bound each business so one slow ledger does not stall the queue.
		scopeCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
		err := j.Reports.Warm(scopeCtx, id)
		cancel()
		if err != nil {
			resultErr = err
			logger.Error("warm business", slog.String("business_id", id.String()), slog.Any("error", err))
			return resultErr
		}
	}
	logger.Info("completed report warmup", slog.Int("businesses", len(ids)), slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *ReportWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReportWarmup))
	}
	return slog.Default().With(slog.String("job", TaskReportWarmup))
}

func (j *ReportWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

// BumpSubscriber delivers the business id of every report cache bump.
type BumpSubscriber interface {
	Subscribe(ctx context.Context, fn func(uuid.UUID)) error
}

// WarmupEnqueuer schedules a warmup for one business.
type WarmupEnqueuer interface {
	EnqueueReportWarmup(ctx context.Context, businessID uuid.UUID) (*asynq.TaskInfo, error)
}

// WarmOnBump enqueues a warmup task whenever a business's report cache is
// invalidated. It returns once the subscription is established.
func WarmOnBump(ctx context.Context, cache BumpSubscriber, client WarmupEnqueuer, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	return cache.Subscribe(ctx, func(businessID uuid.UUID) {
		_, err := client.EnqueueReportWarmup(ctx, businessID)
		if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) && !errors.Is(err, asynq.ErrDuplicateTask) {
			logger.Warn("enqueue report warmup", slog.String("business_id", businessID.String()), slog.Any("error", err))
		}
	})
}
