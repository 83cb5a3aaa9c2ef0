package jobs

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrity scans journal entries for lock drift and imbalance.
	TaskLedgerIntegrity = "ledger:integrity"
	// TaskReportWarmup rebuilds the cached reports of one or all businesses.
	TaskReportWarmup = "ledger:reports:warmup"
)

// IntegrityPayload scopes an integrity scan. A nil business means all.
type IntegrityPayload struct {
	BusinessID *uuid.UUID `json:"business_id,omitempty"`
	Repair     bool       `json:"repair"`
}

// NewIntegrityTask constructs a ledger integrity task.
func NewIntegrityTask(payload IntegrityPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, data), nil
}

// WarmupPayload scopes a report warmup. A nil business means all.
type WarmupPayload struct {
	BusinessID *uuid.UUID `json:"business_id,omitempty"`
}

// NewReportWarmupTask constructs a report warmup task.
func NewReportWarmupTask(payload WarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportWarmup, data), nil
}

// scope resolves the businesses a task applies to.
func scope(id *uuid.UUID, all func() ([]uuid.UUID, error)) ([]uuid.UUID, error) {
	if id != nil {
		return []uuid.UUID{*id}, nil
	}
	return all()
}
