package shared

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestTaxonomyMatchesSentinels(t *testing.T) {
	require.True(t, IsValidation(Malformed("no lines")))
	require.True(t, IsValidation(fmt.Errorf("wrap: %w", Unbalanced(100, 90))))
	require.Equal(t, ReasonUnbalanced, ValidationReasonOf(Unbalanced(1, 2)))

	conflict := &ConflictError{Reason: ReasonPeriodLocked, Period: &LockedRange{
		ID:         uuid.New(),
		PeriodType: "monthly",
		StartDate:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
	}}
	require.True(t, IsConflict(conflict))
	require.Equal(t, ReasonPeriodLocked, ConflictReasonOf(fmt.Errorf("submit: %w", conflict)))
	require.Contains(t, conflict.Error(), "2024-03-01..2024-03-31")

	require.True(t, IsNotFound(NotFound("journal_entry", uuid.New())))
	require.False(t, IsNotFound(conflict))
}

func TestInternalKeepsTaxonomyErrors(t *testing.T) {
	base := Malformed("bad date")
	require.Same(t, base, Internal("submit", base))

	wrapped := Internal("submit", errors.New("connection reset"))
	require.ErrorIs(t, wrapped, ErrInternal)
	require.False(t, IsValidation(wrapped))
	require.Nil(t, Internal("noop", nil))

	imbalance := Internal("split", InternalImbalance(10, 9))
	require.True(t, IsInternalImbalance(imbalance))
	require.ErrorIs(t, imbalance, ErrInternal)
	require.False(t, IsValidation(imbalance))
	require.Empty(t, ValidationReasonOf(imbalance))
}
