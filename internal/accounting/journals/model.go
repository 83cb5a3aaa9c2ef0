package journals

import (
	"time"

	"github.com/google/uuid"
)

// JournalEntry is a dated, balanced set of lines.
type JournalEntry struct {
	ID          uuid.UUID     `json:"id"`
	BusinessID  uuid.UUID     `json:"businessId"`
	EntryDate   time.Time     `json:"entryDate"`
	Description string        `json:"description,omitempty"`
	LockedAt    *time.Time    `json:"lockedAt,omitempty"`
	LockedBy    *uuid.UUID    `json:"lockedBy,omitempty"`
	CreatedBy   *uuid.UUID    `json:"createdBy,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
	Lines       []JournalLine `json:"lines"`
}

// Locked reports whether the entry carries the period lock flag.
func (e JournalEntry) Locked() bool {
	return e.LockedAt != nil
}

// JournalLine is one account-amount pair within an entry.
type JournalLine struct {
	ID            uuid.UUID  `json:"id"`
	EntryID       uuid.UUID  `json:"entryId"`
	LineNumber    int        `json:"lineNumber"`
	AccountID     uuid.UUID  `json:"accountId"`
	AccountCode   string     `json:"accountCode,omitempty"`
	AccountName   string     `json:"accountName,omitempty"`
	Debit         int64      `json:"debit"`
	Credit        int64      `json:"credit"`
	Memo          string     `json:"memo,omitempty"`
	TaxCategoryID *uuid.UUID `json:"taxCategoryId,omitempty"`
}

// EntrySummary is the list view of an entry.
type EntrySummary struct {
	ID          uuid.UUID  `json:"id"`
	EntryDate   time.Time  `json:"entryDate"`
	Description string     `json:"description,omitempty"`
	TotalDebit  int64      `json:"totalDebit"`
	TotalCredit int64      `json:"totalCredit"`
	LineCount   int        `json:"lineCount"`
	IsLocked    bool       `json:"isLocked"`
	LockedAt    *time.Time `json:"lockedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// RecentLimit bounds the recent entries listing.
const RecentLimit = 20
