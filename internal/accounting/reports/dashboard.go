package reports

import (
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

// HistoryMonths is the number of months shown in the dashboard trend.
const HistoryMonths = 6

// MonthTotals is a month of revenue and expense.
type MonthTotals struct {
	Month   string `json:"month"`
	Revenue int64  `json:"revenue"`
	Expense int64  `json:"expense"`
}

// Dashboard summarises the current month.
type Dashboard struct {
	Period             Period        `json:"period"`
	Revenue            int64         `json:"revenue"`
	Expense            int64         `json:"expense"`
	Cash               int64         `json:"cash"`
	NetIncome          int64         `json:"netIncome"`
	RecentEntriesCount int           `json:"recentEntriesCount"`
	Periods            []MonthTotals `json:"periods"`
}

// Movement is the signed activity of a month by account type.
type Movement struct {
	Revenue int64
	Expense int64
	Assets  int64
}

// MovementByType signs sums by each account's type. Accounts missing from
// types are skipped.
func MovementByType(types map[uuid.UUID]accounts.AccountType, sums map[uuid.UUID]Sums) Movement {
	var m Movement
	for id, s := range sums {
		switch types[id] {
		case accounts.AccountTypeRevenue:
			m.Revenue += s.Credit - s.Debit
		case accounts.AccountTypeExpense:
			m.Expense += s.Debit - s.Credit
		case accounts.AccountTypeAsset:
			m.Assets += s.Debit - s.Credit
		}
	}
	return m
}

// BuildDashboard combines the current month movement with its history.
func BuildDashboard(period Period, current Movement, entries int, history []MonthTotals) Dashboard {
	return Dashboard{
		Period:             period,
		Revenue:            current.Revenue,
		Expense:            current.Expense,
		Cash:               current.Assets,
		NetIncome:          current.Revenue - current.Expense,
		RecentEntriesCount: entries,
		Periods:            history,
	}
}
