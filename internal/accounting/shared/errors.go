package shared

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ValidationReason classifies why a request was rejected before any write.
type ValidationReason string

const (
	// ReasonMalformed flags structurally invalid input.
	ReasonMalformed ValidationReason = "malformed"
	// ReasonUnbalanced flags lines whose debit and credit totals differ.
	ReasonUnbalanced ValidationReason = "unbalanced"
	// ReasonUnknownReference flags accounts or tax categories that do not exist.
	ReasonUnknownReference ValidationReason = "unknown_reference"
)

// ConflictReason classifies state conflicts with the current ledger.
type ConflictReason string

const (
	// ReasonPeriodLocked rejects writes dated inside a closed period.
	ReasonPeriodLocked ConflictReason = "period_locked"
	// ReasonPeriodOverlap rejects a close overlapping another closed period of the same type.
	ReasonPeriodOverlap ConflictReason = "period_overlap"
	// ReasonEntryLocked rejects changes to an entry carrying a lock flag.
	ReasonEntryLocked ConflictReason = "entry_locked"
	// ReasonPeriodNotClosed rejects reopening a period that is not closed.
	ReasonPeriodNotClosed ConflictReason = "period_not_closed"
	// ReasonDuplicateRequest rejects a replayed idempotency key.
	ReasonDuplicateRequest ConflictReason = "duplicate_request"
	// ReasonDuplicateCode rejects an account code already used by the business.
	ReasonDuplicateCode ConflictReason = "duplicate_code"
	// ReasonCodeRangeFull rejects auto-numbering when a type's code block is exhausted.
	ReasonCodeRangeFull ConflictReason = "code_range_full"
)

var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("accounting: validation failed")
	// ErrConflict is matched by every *ConflictError.
	ErrConflict = errors.New("accounting: conflict")
	// ErrNotFound is matched by every *NotFoundError.
	ErrNotFound = errors.New("accounting: not found")
	// ErrInternal is matched by every *InternalError.
	ErrInternal = errors.New("accounting: internal error")
	// ErrInternalImbalance marks tax split output that no longer balances.
	ErrInternalImbalance = errors.New("accounting: internal imbalance")
)

// ValidationError reports rejected input.
type ValidationError struct {
	Reason ValidationReason
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("accounting: %s", e.Reason)
	}
	return fmt.Sprintf("accounting: %s: %s", e.Reason, e.Detail)
}

// Is lets errors.Is match the ErrValidation sentinel.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Malformed builds a malformed-input validation error.
func Malformed(format string, args ...any) error {
	return &ValidationError{Reason: ReasonMalformed, Detail: fmt.Sprintf(format, args...)}
}

// Unbalanced builds an unbalanced-entry validation error.
func Unbalanced(debit, credit int64) error {
	return &ValidationError{Reason: ReasonUnbalanced, Detail: fmt.Sprintf("debit %d != credit %d", debit, credit)}
}

// UnknownReference builds an unknown-reference validation error.
func UnknownReference(kind string, ids ...uuid.UUID) error {
	return &ValidationError{Reason: ReasonUnknownReference, Detail: fmt.Sprintf("%s %v", kind, ids)}
}

// InternalImbalance builds the internal error raised when split lines stop
// balancing. The caller cannot correct it.
func InternalImbalance(debit, credit int64) error {
	return &InternalError{Op: "tax split", Err: fmt.Errorf("%w: debit %d != credit %d", ErrInternalImbalance, debit, credit)}
}

// IsInternalImbalance reports whether err is a post-split imbalance.
func IsInternalImbalance(err error) bool {
	return errors.Is(err, ErrInternalImbalance)
}

// LockedRange identifies the closed period that blocked an operation.
type LockedRange struct {
	ID         uuid.UUID `json:"id"`
	PeriodType string    `json:"periodType"`
	StartDate  time.Time `json:"startDate"`
	EndDate    time.Time `json:"endDate"`
}

// ConflictError reports a write rejected by the ledger state.
type ConflictError struct {
	Reason ConflictReason
	Period *LockedRange
	Detail string
}

func (e *ConflictError) Error() string {
	msg := fmt.Sprintf("accounting: %s", e.Reason)
	if e.Period != nil {
		msg += fmt.Sprintf(" (%s %s..%s)", e.Period.PeriodType, e.Period.StartDate.Format(time.DateOnly), e.Period.EndDate.Format(time.DateOnly))
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Is lets errors.Is match the ErrConflict sentinel.
func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// NotFoundError reports a missing entity.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("accounting: %s %s not found", e.Entity, e.ID)
}

// Is lets errors.Is match the ErrNotFound sentinel.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NotFound builds a NotFoundError for the given entity.
func NotFound(entity string, id uuid.UUID) error {
	return &NotFoundError{Entity: entity, ID: id.String()}
}

// InternalError wraps failures the caller cannot act on.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("accounting: %s: %v", e.Op, e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }

// Is lets errors.Is match the ErrInternal sentinel.
func (e *InternalError) Is(target error) bool { return target == ErrInternal }

// Internal wraps err as an InternalError unless it already belongs to the taxonomy.
func Internal(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsValidation(err) || IsConflict(err) || IsNotFound(err) || errors.Is(err, ErrInternal) {
		return err
	}
	return &InternalError{Op: op, Err: err}
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsConflict reports whether err is a ledger state conflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsNotFound reports whether err refers to a missing entity.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// ConflictReasonOf extracts the conflict reason, empty when err is not a conflict.
func ConflictReasonOf(err error) ConflictReason {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce.Reason
	}
	return ""
}

// ValidationReasonOf extracts the validation reason, empty when err is not a validation error.
func ValidationReasonOf(err error) ValidationReason {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Reason
	}
	return ""
}
