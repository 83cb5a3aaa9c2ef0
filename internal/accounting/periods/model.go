package periods

import (
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// PeriodType distinguishes monthly and yearly closes.
type PeriodType string

const (
	PeriodTypeMonthly PeriodType = "monthly"
	PeriodTypeYearly  PeriodType = "yearly"
)

// Valid reports whether t is a known period type.
func (t PeriodType) Valid() bool {
	return t == PeriodTypeMonthly || t == PeriodTypeYearly
}

// Status enumerates closing period states.
type Status string

const (
	StatusClosed   Status = "closed"
	StatusReopened Status = "reopened"
)

// ClosingPeriod records a closed (or reopened) date range of a business.
type ClosingPeriod struct {
	ID         uuid.UUID  `json:"id"`
	BusinessID uuid.UUID  `json:"businessId"`
	PeriodType PeriodType `json:"periodType"`
	StartDate  time.Time  `json:"startDate"`
	EndDate    time.Time  `json:"endDate"`
	Status     Status     `json:"status"`
	ClosedAt   *time.Time `json:"closedAt,omitempty"`
	ClosedBy   *uuid.UUID `json:"closedBy,omitempty"`
	ReopenedAt *time.Time `json:"reopenedAt,omitempty"`
	ReopenedBy *uuid.UUID `json:"reopenedBy,omitempty"`
	Notes      *string    `json:"notes,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Contains reports whether date falls inside the inclusive range.
func (p ClosingPeriod) Contains(date time.Time) bool {
	d := DateOnly(date)
	return !d.Before(p.StartDate) && !d.After(p.EndDate)
}

// Overlaps reports whether the inclusive ranges intersect.
func (p ClosingPeriod) Overlaps(start, end time.Time) bool {
	return !DateOnly(start).After(p.EndDate) && !DateOnly(end).Before(p.StartDate)
}

// LockedRange converts the period into the conflict payload.
func (p ClosingPeriod) LockedRange() *shared.LockedRange {
	return &shared.LockedRange{ID: p.ID, PeriodType: string(p.PeriodType), StartDate: p.StartDate, EndDate: p.EndDate}
}

// CloseInput requests closing a date range.
type CloseInput struct {
	BusinessID uuid.UUID
	PeriodType PeriodType
	StartDate  time.Time
	EndDate    time.Time
	ActorID    uuid.UUID
	Notes      *string
}

// Validate performs structural checks before any lookup.
func (in CloseInput) Validate() error {
	if in.BusinessID == uuid.Nil {
		return shared.Malformed("business id required")
	}
	if !in.PeriodType.Valid() {
		return shared.Malformed("unknown period type %q", in.PeriodType)
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return shared.Malformed("start and end dates required")
	}
	if DateOnly(in.StartDate).After(DateOnly(in.EndDate)) {
		return shared.Malformed("start date must not be after end date")
	}
	return nil
}

// ReopenInput requests reopening a closed period.
type ReopenInput struct {
	BusinessID uuid.UUID
	PeriodID   uuid.UUID
	ActorID    uuid.UUID
	Notes      *string
}

// LockStatus answers whether a date range touches closed periods.
type LockStatus struct {
	Locked  bool            `json:"locked"`
	Periods []ClosingPeriod `json:"periods"`
}

// DateOnly truncates t to midnight UTC of its calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ValidateTransition checks status changes of a closing period.
func ValidateTransition(current, target Status) error {
	switch {
	case current == StatusReopened && target == StatusClosed:
		return nil
	case current == StatusClosed && target == StatusReopened:
		return nil
	case current == StatusClosed && target == StatusClosed:
		return &shared.ConflictError{Reason: shared.ReasonPeriodOverlap, Detail: "period already closed"}
	default:
		return &shared.ConflictError{Reason: shared.ReasonPeriodNotClosed}
	}
}
