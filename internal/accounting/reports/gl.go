package reports

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

// LedgerLine is a persisted journal line joined to its entry and account.
// Lines on inactive accounts are included.
type LedgerLine struct {
	LineID         uuid.UUID
	LineNumber     int
	EntryID        uuid.UUID
	EntryDate      time.Time
	EntryCreatedAt time.Time
	Description    string
	EntryLocked    bool
	AccountID      uuid.UUID
	AccountCode    string
	AccountName    string
	AccountType    accounts.AccountType
	AccountActive  bool
	Debit          int64
	Credit         int64
	Memo           string
}

func entryOrderLess(a, b LedgerLine) bool {
	if !a.EntryDate.Equal(b.EntryDate) {
		return a.EntryDate.Before(b.EntryDate)
	}
	if !a.EntryCreatedAt.Equal(b.EntryCreatedAt) {
		return a.EntryCreatedAt.Before(b.EntryCreatedAt)
	}
	if a.EntryID != b.EntryID {
		return a.EntryID.String() < b.EntryID.String()
	}
	return a.LineNumber < b.LineNumber
}

// GeneralLedgerEntry is one posting with the running balance after it.
type GeneralLedgerEntry struct {
	LineID      uuid.UUID `json:"lineId"`
	EntryID     uuid.UUID `json:"journalEntryId"`
	EntryDate   time.Time `json:"entryDate"`
	Description string    `json:"description,omitempty"`
	Debit       int64     `json:"debit"`
	Credit      int64     `json:"credit"`
	Memo        string    `json:"memo,omitempty"`
	Balance     int64     `json:"balance"`
}

// GeneralLedgerTotals carries raw sums and the final debit-minus-credit balance.
type GeneralLedgerTotals struct {
	Debit   int64 `json:"debit"`
	Credit  int64 `json:"credit"`
	Balance int64 `json:"balance"`
}

// GeneralLedgerAccount lists the postings of one account.
type GeneralLedgerAccount struct {
	AccountID uuid.UUID            `json:"accountId"`
	Code      string               `json:"code"`
	Name      string               `json:"name"`
	Type      accounts.AccountType `json:"type"`
	IsActive  bool                 `json:"isActive"`
	Entries   []GeneralLedgerEntry `json:"entries"`
	Totals    GeneralLedgerTotals  `json:"totals"`
}

// BuildGeneralLedger groups lines by account code. Balances are raw
// debit minus credit regardless of account type.
func BuildGeneralLedger(lines []LedgerLine) []GeneralLedgerAccount {
	ordered := append([]LedgerLine(nil), lines...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].AccountCode != ordered[j].AccountCode {
			return ordered[i].AccountCode < ordered[j].AccountCode
		}
		if ordered[i].AccountID != ordered[j].AccountID {
			return ordered[i].AccountID.String() < ordered[j].AccountID.String()
		}
		return entryOrderLess(ordered[i], ordered[j])
	})

	out := []GeneralLedgerAccount{}
	index := make(map[uuid.UUID]int)
	for _, line := range ordered {
		idx, ok := index[line.AccountID]
		if !ok {
			out = append(out, GeneralLedgerAccount{
				AccountID: line.AccountID,
				Code:      line.AccountCode,
				Name:      line.AccountName,
				Type:      line.AccountType,
				IsActive:  line.AccountActive,
			})
			idx = len(out) - 1
			index[line.AccountID] = idx
		}
		ledger := &out[idx]
		ledger.Totals.Debit += line.Debit
		ledger.Totals.Credit += line.Credit
		ledger.Totals.Balance += line.Debit - line.Credit
		ledger.Entries = append(ledger.Entries, GeneralLedgerEntry{
			LineID:      line.LineID,
			EntryID:     line.EntryID,
			EntryDate:   line.EntryDate,
			Description: line.Description,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Memo:        line.Memo,
			Balance:     ledger.Totals.Balance,
		})
	}
	return out
}

// JournalDetailLine is a line as printed in the journal.
type JournalDetailLine struct {
	ID          uuid.UUID `json:"id"`
	LineNumber  int       `json:"lineNumber"`
	AccountID   uuid.UUID `json:"accountId"`
	AccountCode string    `json:"accountCode"`
	AccountName string    `json:"accountName"`
	Debit       int64     `json:"debit"`
	Credit      int64     `json:"credit"`
	Memo        string    `json:"memo,omitempty"`
}

// JournalDetailEntry is an entry with its lines and totals.
type JournalDetailEntry struct {
	ID          uuid.UUID           `json:"id"`
	EntryDate   time.Time           `json:"entryDate"`
	Description string              `json:"description,omitempty"`
	IsLocked    bool                `json:"isLocked"`
	Totals      Totals              `json:"totals"`
	Lines       []JournalDetailLine `json:"lines"`
}

// BuildJournalDetail lists entries by date then creation, lines by line number.
func BuildJournalDetail(lines []LedgerLine) []JournalDetailEntry {
	ordered := append([]LedgerLine(nil), lines...)
	sort.SliceStable(ordered, func(i, j int) bool { return entryOrderLess(ordered[i], ordered[j]) })

	out := []JournalDetailEntry{}
	index := make(map[uuid.UUID]int)
	for _, line := range ordered {
		idx, ok := index[line.EntryID]
		if !ok {
			out = append(out, JournalDetailEntry{
				ID:          line.EntryID,
				EntryDate:   line.EntryDate,
				Description: line.Description,
				IsLocked:    line.EntryLocked,
			})
			idx = len(out) - 1
			index[line.EntryID] = idx
		}
		entry := &out[idx]
		entry.Totals.Debit += line.Debit
		entry.Totals.Credit += line.Credit
		entry.Lines = append(entry.Lines, JournalDetailLine{
			ID:          line.LineID,
			LineNumber:  line.LineNumber,
			AccountID:   line.AccountID,
			AccountCode: line.AccountCode,
			AccountName: line.AccountName,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Memo:        line.Memo,
		})
	}
	return out
}
