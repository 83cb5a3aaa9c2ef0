package journals

import (
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/tax"
)

// LineInput describes a journal line as submitted.
type LineInput struct {
	AccountID     uuid.UUID
	Debit         int64
	Credit        int64
	Memo          string
	TaxCategoryID *uuid.UUID
}

// EntryInput groups fields required to create or replace a journal entry.
type EntryInput struct {
	BusinessID  uuid.UUID
	ActorID     uuid.UUID
	EntryDate   string
	Description string
	Lines       []LineInput
}

// UpdateInput replaces an existing entry wholesale.
type UpdateInput struct {
	EntryInput
	EntryID uuid.UUID
}

// DeleteInput removes an entry.
type DeleteInput struct {
	BusinessID uuid.UUID
	EntryID    uuid.UUID
	ActorID    uuid.UUID
}

// Prepared is a validated entry ready for persistence.
type Prepared struct {
	Business    accounts.Business
	Date        time.Time
	Description string
	Lines       []tax.Line
}

var dateLayouts = []string{time.DateOnly, time.RFC3339, time.RFC3339Nano}

// ParseEntryDate accepts YYYY-MM-DD or an RFC 3339 timestamp and keeps the calendar date.
func ParseEntryDate(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, shared.Malformed("entry date %q is not a valid date", raw)
}

func (in EntryInput) taxLines() []tax.Line {
	lines := make([]tax.Line, 0, len(in.Lines))
	for _, l := range in.Lines {
		lines = append(lines, tax.Line{AccountID: l.AccountID, Debit: l.Debit, Credit: l.Credit, Memo: l.Memo, TaxCategoryID: l.TaxCategoryID})
	}
	return lines
}
